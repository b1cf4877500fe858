package store

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConstraint matches every *ConstraintError.
	ErrConstraint = errors.New("constraint violation")
)

// ConstraintError reports an operation refused because it would break a
// reference or uniqueness rule. Msg is shown to the user verbatim.
type ConstraintError struct {
	Msg     string
	Presets []string
}

func (e *ConstraintError) Error() string { return e.Msg }

// Is lets errors.Is(err, ErrConstraint) match.
func (e *ConstraintError) Is(target error) bool { return target == ErrConstraint }

func soundInUse(presets []string) error {
	return &ConstraintError{
		Msg:     fmt.Sprintf("Cannot delete sound. It is used in the following presets: %s. Please delete the presets first.", strings.Join(presets, ", ")),
		Presets: presets,
	}
}

func categoryInUse(presets []string) error {
	return &ConstraintError{
		Msg:     fmt.Sprintf("Cannot delete category. Sounds from this category are used in: %s. Please delete the presets first.", strings.Join(presets, ", ")),
		Presets: presets,
	}
}

func duplicateSound(name string) error {
	return &ConstraintError{Msg: fmt.Sprintf("Sound %q already exists in this category.", name)}
}

func duplicateCategory(name string) error {
	return &ConstraintError{Msg: fmt.Sprintf("Category %q already exists.", name)}
}
