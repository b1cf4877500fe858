// Package preset converts between the live mix and stored presets, and
// picks the mix a fresh process starts with.
package preset

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/satindergrewal/soundscape/internal/catalog"
	"github.com/satindergrewal/soundscape/internal/events"
	"github.com/satindergrewal/soundscape/internal/logging"
	"github.com/satindergrewal/soundscape/internal/mix"
	"github.com/satindergrewal/soundscape/internal/store"
)

// ZenSounds make up the mix loaded when there are no presets.
var ZenSounds = []string{
	"gentle-rain",
	"flowing-stream",
	"soft-breeze",
	"meditation-bell",
	"cricket-chorus",
}

const (
	// ZenName is reported by Bootstrap when the zen mix was loaded.
	ZenName   = "Zen"
	zenVolume = 50
)

// Store is the preset half of the resource store.
type Store interface {
	PutPreset(ctx context.Context, name string, layers []store.PresetLayer, masterVolume int) (store.PresetRecord, error)
	ListPresets(ctx context.Context) ([]store.PresetRecord, error)
	GetPreset(ctx context.Context, id string) (store.PresetRecord, error)
	DeletePreset(ctx context.Context, id string) error
}

// Mixer is the part of the engine a preset is applied to.
type Mixer interface {
	Snapshot() mix.Snapshot
	SetMasterVolume(percent int)
	AdoptLayerSet(layers []mix.Layer)
}

// Resolver looks sounds up by id.
type Resolver interface {
	Resolve(id string) (catalog.Sound, bool)
}

// Publisher is notified when the preset list changes.
type Publisher interface {
	Publish(eventType events.EventType, payload events.Payload)
}

// Loaded is a preset ready to be adopted by the engine.
type Loaded struct {
	Name         string
	Layers       []mix.Layer
	MasterVolume int
}

// Coordinator saves, loads and applies presets.
type Coordinator struct {
	store   Store
	mixer   Mixer
	catalog Resolver
	bus     Publisher
	logger  zerolog.Logger

	bootOnce sync.Once
	bootName string
	bootErr  error
}

// NewCoordinator creates a coordinator. bus may be nil.
func NewCoordinator(st Store, mixer Mixer, cat Resolver, bus Publisher, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		store:   st,
		mixer:   mixer,
		catalog: cat,
		bus:     bus,
		logger:  logging.Component(logger, "preset"),
	}
}

// Save persists the layers and master volume of snap under name.
func (c *Coordinator) Save(ctx context.Context, name string, snap mix.Snapshot) (store.PresetRecord, error) {
	rec, err := c.store.PutPreset(ctx, name, Sanitize(snap.Layers), snap.MasterVolume)
	if err != nil {
		return store.PresetRecord{}, fmt.Errorf("save preset: %w", err)
	}
	c.publish()
	return rec, nil
}

// Sanitize converts live layers to their stored form. Playback state is
// never saved.
func Sanitize(layers []mix.Layer) []store.PresetLayer {
	out := make([]store.PresetLayer, 0, len(layers))
	for _, l := range layers {
		l = l.Clone()
		vol := mix.ClampVolume(l.Volume)
		muted := l.IsMuted
		loop := l.Loop
		out = append(out, store.PresetLayer{
			ID:                 l.ID,
			Name:               l.Name,
			SelectedCategory:   l.SelectedCategory,
			SelectedCategoryID: l.SelectedCategoryID,
			SelectedSoundID:    l.SelectedSoundID,
			Volume:             &vol,
			IsMuted:            &muted,
			Loop:               &loop,
		})
	}
	return out
}

// Load turns a stored preset into layers for the engine. Every layer comes
// back stopped; fields missing from old records get their defaults.
func Load(rec store.PresetRecord) Loaded {
	layers := make([]mix.Layer, 0, len(rec.Layers))
	for _, pl := range rec.Layers {
		l := mix.Layer{
			ID:                 pl.ID,
			Name:               pl.Name,
			SelectedCategory:   mix.StrPtr(deref(pl.SelectedCategory)),
			SelectedCategoryID: mix.StrPtr(deref(pl.SelectedCategoryID)),
			SelectedSoundID:    mix.StrPtr(deref(pl.SelectedSoundID)),
			Volume:             mix.DefaultVolume,
			Loop:               true,
		}
		if pl.Volume != nil {
			l.Volume = mix.ClampVolume(*pl.Volume)
		}
		if l.ID == "" {
			l.ID = mix.NewLayerID()
		}
		if pl.IsMuted != nil {
			l.IsMuted = *pl.IsMuted
		}
		if pl.Loop != nil {
			l.Loop = *pl.Loop
		}
		layers = append(layers, l)
	}
	master := store.DefaultMasterVolume
	if rec.MasterVolume != nil {
		master = mix.ClampVolume(*rec.MasterVolume)
	}
	return Loaded{Name: rec.Name, Layers: layers, MasterVolume: master}
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Apply loads the preset with the given id into the mixer. Nothing starts
// playing.
func (c *Coordinator) Apply(ctx context.Context, id string) (Loaded, error) {
	rec, err := c.store.GetPreset(ctx, id)
	if err != nil {
		return Loaded{}, err
	}
	loaded := Load(rec)
	c.adopt(loaded)
	c.logger.Info().Str("preset_id", id).Str("name", rec.Name).Int("layers", len(loaded.Layers)).Msg("preset applied")
	return loaded, nil
}

func (c *Coordinator) adopt(l Loaded) {
	c.mixer.SetMasterVolume(l.MasterVolume)
	c.mixer.AdoptLayerSet(l.Layers)
}

// List returns presets oldest first.
func (c *Coordinator) List(ctx context.Context) ([]store.PresetRecord, error) {
	return c.store.ListPresets(ctx)
}

// Delete removes a preset.
func (c *Coordinator) Delete(ctx context.Context, id string) error {
	if err := c.store.DeletePreset(ctx, id); err != nil {
		return err
	}
	c.publish()
	return nil
}

// Bootstrap picks the starting mix once per coordinator: the most recently
// saved preset, or the zen mix when there are no presets and the mix is
// empty. It returns the name of what was loaded, or "" when nothing was.
// Later calls return the first result.
func (c *Coordinator) Bootstrap(ctx context.Context) (string, error) {
	c.bootOnce.Do(func() {
		c.bootName, c.bootErr = c.bootstrap(ctx)
	})
	return c.bootName, c.bootErr
}

func (c *Coordinator) bootstrap(ctx context.Context) (string, error) {
	presets, err := c.store.ListPresets(ctx)
	if err != nil {
		return "", fmt.Errorf("bootstrap: %w", err)
	}
	if n := len(presets); n > 0 {
		loaded := Load(presets[n-1])
		c.adopt(loaded)
		c.logger.Info().Str("name", loaded.Name).Msg("loaded most recent preset")
		return loaded.Name, nil
	}
	if len(c.mixer.Snapshot().Layers) > 0 {
		return "", nil
	}

	layers := c.zenLayers()
	if len(layers) == 0 {
		return "", nil
	}
	c.mixer.AdoptLayerSet(layers)
	c.logger.Info().Int("layers", len(layers)).Msg("loaded zen mix")
	return ZenName, nil
}

func (c *Coordinator) zenLayers() []mix.Layer {
	layers := make([]mix.Layer, 0, len(ZenSounds))
	for _, id := range ZenSounds {
		snd, ok := c.catalog.Resolve(id)
		if !ok {
			c.logger.Warn().Str("sound_id", id).Msg("zen sound missing from catalog")
			continue
		}
		l := mix.NewLayer(snd.Name)
		l.SelectedCategory = mix.StrPtr(snd.Category)
		l.SelectedSoundID = mix.StrPtr(snd.ID)
		l.Volume = zenVolume
		layers = append(layers, l)
	}
	return layers
}

func (c *Coordinator) publish() {
	if c.bus == nil {
		return
	}
	c.bus.Publish(events.EventPresetsChanged, events.Payload{})
}
