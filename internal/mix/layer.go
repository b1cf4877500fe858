// Package mix holds the declarative, serializable state of the current
// soundscape: an ordered list of layers plus the master volume.
//
// Nothing in this package touches audio. The engine is the only writer;
// everyone else works with Snapshots.
package mix

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultVolume       = 75
	DefaultMasterVolume = 70
)

// Layer is one independent looping sound channel.
type Layer struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	SelectedCategory   *string `json:"selectedCategory"`
	SelectedCategoryID *string `json:"selectedCategoryId,omitempty"`
	SelectedSoundID    *string `json:"selectedSoundId"`
	Volume             int     `json:"volume"`
	IsPlaying          bool    `json:"isPlaying"`
	IsMuted            bool    `json:"isMuted"`
	Loop               bool    `json:"loop"`
}

// NewLayerID returns a unique layer id: creation timestamp plus a random suffix.
func NewLayerID() string {
	return fmt.Sprintf("layer-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// NewLayer returns a layer with the add-layer defaults.
func NewLayer(name string) Layer {
	return Layer{
		ID:     NewLayerID(),
		Name:   name,
		Volume: DefaultVolume,
		Loop:   true,
	}
}

// StrPtr returns a pointer to s, or nil for the empty string.
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// SoundID returns the selected sound id or "" when none is selected.
func (l Layer) SoundID() string { return deref(l.SelectedSoundID) }

// Category returns the selected category name or "".
func (l Layer) Category() string { return deref(l.SelectedCategory) }

// CategoryID returns the selected category id or "".
func (l Layer) CategoryID() string { return deref(l.SelectedCategoryID) }

// Gain is the audible gain fraction for this layer.
func (l Layer) Gain() float64 {
	if l.IsMuted {
		return 0
	}
	return float64(l.Volume) / 100
}

// SetCategory selects a category. A sound picked from another category is
// never retained, so the sound selection is cleared and playback stops.
func (l *Layer) SetCategory(name, id string) {
	l.SelectedCategory = StrPtr(name)
	l.SelectedCategoryID = StrPtr(id)
	l.SelectedSoundID = nil
	l.IsPlaying = false
}

// SetSound selects a sound. Playback must be restarted explicitly.
func (l *Layer) SetSound(id string) {
	l.SelectedSoundID = StrPtr(id)
	l.IsPlaying = false
}

// Clone returns a deep copy.
func (l Layer) Clone() Layer {
	c := l
	c.SelectedCategory = StrPtr(deref(l.SelectedCategory))
	c.SelectedCategoryID = StrPtr(deref(l.SelectedCategoryID))
	c.SelectedSoundID = StrPtr(deref(l.SelectedSoundID))
	return c
}

// ClampVolume limits a percentage to 0-100.
func ClampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
