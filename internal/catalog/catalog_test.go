package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/satindergrewal/soundscape/internal/store"
)

func TestLoadBuiltinLibrary(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := c.Len(); got != 37 {
		t.Errorf("Len() = %d, want 37", got)
	}

	cats := c.ListCategories()
	if len(cats) != 10 {
		t.Fatalf("ListCategories() returned %d, want 10", len(cats))
	}
	if cats[0].Name != "Beach & Ocean" || cats[0].Count != 3 {
		t.Errorf("first category = %+v, want Beach & Ocean with 3 sounds", cats[0])
	}
	if cats[1].Name != "Rain & Storms" || cats[1].Count != 7 {
		t.Errorf("second category = %+v, want Rain & Storms with 7 sounds", cats[1])
	}

	total := 0
	for _, cat := range cats {
		if cat.Icon == "" {
			t.Errorf("category %q has no icon", cat.Name)
		}
		total += cat.Count
	}
	if total != 37 {
		t.Errorf("category counts sum to %d, want 37", total)
	}
}

func TestDefaultPresetSoundsExist(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, id := range []string{"gentle-rain", "flowing-stream", "soft-breeze", "meditation-bell", "cricket-chorus", "calming-rain"} {
		s, ok := c.Resolve(id)
		if !ok {
			t.Errorf("Resolve(%q) not found", id)
			continue
		}
		if s.Kind != Builtin {
			t.Errorf("Resolve(%q).Kind = %q, want builtin", id, s.Kind)
		}
		if s.Locator == "" {
			t.Errorf("Resolve(%q) has no locator", id)
		}
	}
}

func TestListSoundsByCategoryExactMatch(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := len(c.ListSoundsByCategory("Rain & Storms")); got != 7 {
		t.Errorf("Rain & Storms = %d sounds, want 7", got)
	}
	if got := len(c.ListSoundsByCategory("rain & storms")); got != 0 {
		t.Errorf("case-folded category matched %d sounds, want 0", got)
	}
}

func TestParseRejectsDuplicateIDs(t *testing.T) {
	manifest := []byte(`
categories:
  - name: A
    sounds:
      - id: x
        name: X
        file: /sounds/a/x.mp3
  - name: B
    sounds:
      - id: x
        name: X again
        file: /sounds/b/x.mp3
`)
	if _, err := Parse(manifest); err == nil {
		t.Error("Parse accepted duplicate ids")
	}
}

func TestCustomSoundsMerged(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	c.SetCustom([]store.SoundRecord{
		{ID: "custom-1-abc", Name: "My Rain", Category: "Mine", CategoryID: "cat-1", ResourceLocator: "store://custom-1-abc"},
		{ID: "gong", Name: "Shadow", Category: "Mine", CategoryID: "cat-1"},
	}, []store.CategoryRecord{{ID: "cat-1", Name: "Mine"}, {ID: "cat-2", Name: "Empty"}})

	s, ok := c.Resolve("custom-1-abc")
	if !ok {
		t.Fatal("custom sound not resolvable")
	}
	if s.Kind != Custom || s.Locator != "store://custom-1-abc" {
		t.Errorf("custom sound = %+v", s)
	}

	gong, _ := c.Resolve("gong")
	if gong.Kind != Builtin {
		t.Error("custom record shadowed a built-in id")
	}

	cats := c.ListCategories()
	if len(cats) != 12 {
		t.Fatalf("ListCategories() = %d, want 12", len(cats))
	}
	if cats[10].Name != "Empty" || cats[10].Count != 0 {
		t.Errorf("cats[10] = %+v, want Empty with 0", cats[10])
	}
	if cats[11].Name != "Mine" || cats[11].Count != 1 || cats[11].ID != "cat-1" {
		t.Errorf("cats[11] = %+v, want Mine with 1", cats[11])
	}
	if got := len(c.ListSoundsByCategory("Mine")); got != 1 {
		t.Errorf("Mine = %d sounds, want 1", got)
	}
	if got := c.ListSoundsByCategoryID("cat-1"); len(got) != 1 || got[0].ID != "custom-1-abc" {
		t.Errorf("ListSoundsByCategoryID(cat-1) = %+v", got)
	}
	if got := c.ListSoundsByCategoryID("cat-2"); len(got) != 0 {
		t.Errorf("ListSoundsByCategoryID(cat-2) = %d sounds, want 0", len(got))
	}

	c.SetCustom(nil, nil)
	if _, ok := c.Resolve("custom-1-abc"); ok {
		t.Error("custom sound still resolvable after reset")
	}
}

type stubSource struct {
	sounds []store.SoundRecord
	cats   []store.CategoryRecord
	err    error
}

func (s stubSource) ListAudioResources(context.Context) ([]store.SoundRecord, error) {
	return s.sounds, s.err
}

func (s stubSource) ListCategories(context.Context) ([]store.CategoryRecord, error) {
	return s.cats, nil
}

func TestSync(t *testing.T) {
	c, _ := Load()
	src := stubSource{sounds: []store.SoundRecord{{ID: "custom-9", Name: "N", Category: "C", CategoryID: "cat-c"}}}
	if err := c.Sync(context.Background(), src); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if _, ok := c.Resolve("custom-9"); !ok {
		t.Error("synced sound missing")
	}

	boom := errors.New("boom")
	if err := c.Sync(context.Background(), stubSource{err: boom}); !errors.Is(err, boom) {
		t.Errorf("Sync err = %v, want wrapped boom", err)
	}
	if _, ok := c.Resolve("custom-9"); !ok {
		t.Error("failed sync dropped existing custom sounds")
	}
}
