// Package catalog is the registry of playable sounds: the built-in library
// shipped with the binary plus sounds uploaded by the user.
package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/satindergrewal/soundscape/internal/store"
)

//go:embed sounds.yaml
var builtinManifest []byte

// Kind tags where a sound definition came from.
type Kind string

const (
	Builtin Kind = "builtin"
	Custom  Kind = "custom"
)

// Sound is a read-only sound definition. Built-in and custom sounds share
// the same shape; Kind tells them apart.
type Sound struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	CategoryID string `json:"categoryId,omitempty"`
	Icon       string `json:"icon"`
	Locator    string `json:"resourceLocator"`
	Kind       Kind   `json:"kind"`
}

// Category is a category name with the number of sounds it holds.
type Category struct {
	Name  string `json:"category"`
	ID    string `json:"id,omitempty"`
	Icon  string `json:"icon"`
	Count int    `json:"count"`
	Kind  Kind   `json:"kind"`
}

const customIcon = "🎵"

type manifest struct {
	Categories []struct {
		Name   string `yaml:"name"`
		Icon   string `yaml:"icon"`
		Sounds []struct {
			ID   string `yaml:"id"`
			Name string `yaml:"name"`
			Icon string `yaml:"icon"`
			File string `yaml:"file"`
		} `yaml:"sounds"`
	} `yaml:"categories"`
}

// Catalog merges built-in and custom sounds behind one lookup.
type Catalog struct {
	builtin     []Sound
	builtinByID map[string]Sound
	builtinCats []Category

	mu         sync.RWMutex
	custom     []Sound
	customByID map[string]Sound
	customCats []store.CategoryRecord
}

// Load parses the embedded built-in library.
func Load() (*Catalog, error) {
	return Parse(builtinManifest)
}

// Parse builds a catalog from a YAML manifest.
func Parse(data []byte) (*Catalog, error) {
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse sound manifest: %w", err)
	}

	c := &Catalog{
		builtinByID: make(map[string]Sound),
		customByID:  make(map[string]Sound),
	}
	for _, cat := range m.Categories {
		for _, s := range cat.Sounds {
			if _, dup := c.builtinByID[s.ID]; dup {
				return nil, fmt.Errorf("duplicate built-in sound id %q", s.ID)
			}
			snd := Sound{
				ID:       s.ID,
				Name:     s.Name,
				Category: cat.Name,
				Icon:     s.Icon,
				Locator:  s.File,
				Kind:     Builtin,
			}
			c.builtin = append(c.builtin, snd)
			c.builtinByID[s.ID] = snd
		}
		c.builtinCats = append(c.builtinCats, Category{
			Name:  cat.Name,
			Icon:  cat.Icon,
			Count: len(cat.Sounds),
			Kind:  Builtin,
		})
	}
	return c, nil
}

// Resolve looks a sound up by id, built-ins first.
func (c *Catalog) Resolve(id string) (Sound, bool) {
	if s, ok := c.builtinByID[id]; ok {
		return s, true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.customByID[id]
	return s, ok
}

// ListCategories returns built-in categories in library order followed by
// custom categories sorted by name.
func (c *Catalog) ListCategories() []Category {
	out := append([]Category(nil), c.builtinCats...)

	c.mu.RLock()
	defer c.mu.RUnlock()

	counts := make(map[string]int)
	for _, s := range c.custom {
		counts[s.CategoryID]++
	}
	cats := append([]store.CategoryRecord(nil), c.customCats...)
	sort.Slice(cats, func(i, j int) bool { return cats[i].Name < cats[j].Name })
	for _, cat := range cats {
		out = append(out, Category{
			Name:  cat.Name,
			ID:    cat.ID,
			Icon:  customIcon,
			Count: counts[cat.ID],
			Kind:  Custom,
		})
	}
	return out
}

// ListSoundsByCategory returns every sound whose category matches exactly.
func (c *Catalog) ListSoundsByCategory(category string) []Sound {
	var out []Sound
	for _, s := range c.builtin {
		if s.Category == category {
			out = append(out, s)
		}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.custom {
		if s.Category == category {
			out = append(out, s)
		}
	}
	return out
}

// ListSoundsByCategoryID returns the custom sounds filed under a custom
// category id.
func (c *Catalog) ListSoundsByCategoryID(id string) []Sound {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Sound
	for _, s := range c.custom {
		if s.CategoryID == id {
			out = append(out, s)
		}
	}
	return out
}

// Len returns the number of built-in and custom sounds.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.builtin) + len(c.custom)
}

// SetCustom replaces the custom sounds and categories. Records whose id
// collides with a built-in sound are skipped.
func (c *Catalog) SetCustom(sounds []store.SoundRecord, categories []store.CategoryRecord) {
	custom := make([]Sound, 0, len(sounds))
	byID := make(map[string]Sound, len(sounds))
	for _, r := range sounds {
		if _, clash := c.builtinByID[r.ID]; clash {
			continue
		}
		s := Sound{
			ID:         r.ID,
			Name:       r.Name,
			Category:   r.Category,
			CategoryID: r.CategoryID,
			Icon:       customIcon,
			Locator:    r.ResourceLocator,
			Kind:       Custom,
		}
		custom = append(custom, s)
		byID[s.ID] = s
	}

	c.mu.Lock()
	c.custom = custom
	c.customByID = byID
	c.customCats = append([]store.CategoryRecord(nil), categories...)
	c.mu.Unlock()
}

// CustomSource lists the user's uploaded sounds and categories.
type CustomSource interface {
	ListAudioResources(ctx context.Context) ([]store.SoundRecord, error)
	ListCategories(ctx context.Context) ([]store.CategoryRecord, error)
}

// Sync reloads the custom entries from src.
func (c *Catalog) Sync(ctx context.Context, src CustomSource) error {
	sounds, err := src.ListAudioResources(ctx)
	if err != nil {
		return fmt.Errorf("list custom sounds: %w", err)
	}
	cats, err := src.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("list custom categories: %w", err)
	}
	c.SetCustom(sounds, cats)
	return nil
}
