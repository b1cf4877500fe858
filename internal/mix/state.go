package mix

import (
	"errors"
	"fmt"
)

// ErrIndexOutOfRange is returned by Move for indices outside the layer list.
var ErrIndexOutOfRange = errors.New("layer index out of range")

// Snapshot is an immutable copy of the mix handed to observers.
type Snapshot struct {
	Layers       []Layer `json:"layers"`
	MasterVolume int     `json:"masterVolume"`
	Version      uint64  `json:"version"`
}

// Playing returns the ids of layers currently reported as playing.
func (s Snapshot) Playing() []string {
	var ids []string
	for _, l := range s.Layers {
		if l.IsPlaying {
			ids = append(ids, l.ID)
		}
	}
	return ids
}

// State is the mutable mix. It is not safe for concurrent use; the engine
// serializes access.
type State struct {
	layers  []Layer
	master  int
	version uint64
}

// NewState creates an empty mix with the given master volume.
func NewState(masterVolume int) *State {
	return &State{master: ClampVolume(masterVolume)}
}

// Snapshot returns a deep copy of the current mix.
func (s *State) Snapshot() Snapshot {
	layers := make([]Layer, len(s.layers))
	for i, l := range s.layers {
		layers[i] = l.Clone()
	}
	return Snapshot{Layers: layers, MasterVolume: s.master, Version: s.version}
}

// Len returns the number of layers.
func (s *State) Len() int { return len(s.layers) }

// MasterVolume returns the master volume percentage.
func (s *State) MasterVolume() int { return s.master }

// SetMasterVolume stores a clamped master volume.
func (s *State) SetMasterVolume(v int) {
	s.master = ClampVolume(v)
	s.version++
}

// Get returns a copy of the layer with the given id.
func (s *State) Get(id string) (Layer, bool) {
	if i := s.index(id); i >= 0 {
		return s.layers[i].Clone(), true
	}
	return Layer{}, false
}

// IDs returns the layer ids in display order.
func (s *State) IDs() []string {
	ids := make([]string, len(s.layers))
	for i, l := range s.layers {
		ids[i] = l.ID
	}
	return ids
}

// Append adds a layer at the end of the list.
func (s *State) Append(l Layer) {
	s.layers = append(s.layers, l.Clone())
	s.version++
}

// Update applies fn to the layer in place. Returns false if id is unknown.
func (s *State) Update(id string, fn func(*Layer)) bool {
	i := s.index(id)
	if i < 0 {
		return false
	}
	fn(&s.layers[i])
	s.layers[i].Volume = ClampVolume(s.layers[i].Volume)
	s.version++
	return true
}

// UpdateAll applies fn to every layer as a single change.
func (s *State) UpdateAll(fn func(*Layer)) {
	for i := range s.layers {
		fn(&s.layers[i])
	}
	s.version++
}

// Remove deletes the layer. Returns false if id is unknown.
func (s *State) Remove(id string) bool {
	i := s.index(id)
	if i < 0 {
		return false
	}
	s.layers = append(s.layers[:i], s.layers[i+1:]...)
	s.version++
	return true
}

// Move relocates the layer at from to index to, shifting the others.
func (s *State) Move(from, to int) error {
	n := len(s.layers)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("move %d -> %d of %d: %w", from, to, n, ErrIndexOutOfRange)
	}
	if from == to {
		return nil
	}
	moved := s.layers[from]
	s.layers = append(s.layers[:from], s.layers[from+1:]...)
	s.layers = append(s.layers[:to], append([]Layer{moved}, s.layers[to:]...)...)
	s.version++
	return nil
}

// Replace swaps the whole layer list. Adopted layers never start playing.
func (s *State) Replace(layers []Layer) {
	s.layers = make([]Layer, 0, len(layers))
	for _, l := range layers {
		c := l.Clone()
		c.IsPlaying = false
		c.Volume = ClampVolume(c.Volume)
		s.layers = append(s.layers, c)
	}
	s.version++
}

func (s *State) index(id string) int {
	for i := range s.layers {
		if s.layers[i].ID == id {
			return i
		}
	}
	return -1
}
