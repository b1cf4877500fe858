// Package store persists uploaded sounds, custom categories and presets.
//
// Records live in a gorm database (sqlite by default); audio bytes are kept
// in a media.Storage backend and referenced by key.
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/satindergrewal/soundscape/internal/logging"
	"github.com/satindergrewal/soundscape/internal/media"
)

// DefaultMasterVolume is assumed for presets saved without a master volume.
const DefaultMasterVolume = 70

// ResourceStore is the persistence contract used by the catalog, the preset
// coordinator and the HTTP API.
type ResourceStore interface {
	PutAudioResource(ctx context.Context, data []byte, category, name, categoryID string) (SoundRecord, error)
	ListAudioResources(ctx context.Context) ([]SoundRecord, error)
	OpenAudioResource(ctx context.Context, id string) (io.ReadCloser, error)
	DeleteAudioResource(ctx context.Context, id string) error

	PutCategory(ctx context.Context, name string) (CategoryRecord, error)
	ListCategories(ctx context.Context) ([]CategoryRecord, error)
	DeleteCategory(ctx context.Context, id string) error

	PutPreset(ctx context.Context, name string, layers []PresetLayer, masterVolume int) (PresetRecord, error)
	ListPresets(ctx context.Context) ([]PresetRecord, error)
	GetPreset(ctx context.Context, id string) (PresetRecord, error)
	DeletePreset(ctx context.Context, id string) error
}

// DBStore implements ResourceStore on gorm.
type DBStore struct {
	db     *gorm.DB
	blobs  media.Storage
	logger zerolog.Logger
	now    func() time.Time
}

// Connect opens the sqlite database at dsn with gorm logging limited to warnings.
func Connect(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// Close releases database resources.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// New migrates the schema and returns a store backed by db and blobs.
func New(db *gorm.DB, blobs media.Storage, logger zerolog.Logger) (*DBStore, error) {
	if err := db.AutoMigrate(&SoundRecord{}, &CategoryRecord{}, &PresetRecord{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &DBStore{
		db:     db,
		blobs:  blobs,
		logger: logging.Component(logger, "store"),
		now:    time.Now,
	}, nil
}

// normalize folds a name for duplicate checks. SQLite's LOWER only folds
// ASCII, so the folded form is stored in name_key and compared exactly.
func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// PutAudioResource stores an uploaded sound in the category categoryID. The
// stored category name always comes from the category record; a differing
// category argument is ignored.
func (s *DBStore) PutAudioResource(ctx context.Context, data []byte, category, name, categoryID string) (SoundRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return SoundRecord{}, errors.New("sound name is required")
	}

	var cat CategoryRecord
	if err := s.db.WithContext(ctx).First(&cat, "id = ?", categoryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return SoundRecord{}, fmt.Errorf("category %q: %w", categoryID, ErrNotFound)
		}
		return SoundRecord{}, fmt.Errorf("load category: %w", err)
	}
	if category = strings.TrimSpace(category); category != "" && category != cat.Name {
		s.logger.Debug().Str("category", category).Str("category_id", categoryID).Msg("category name differs from record, using record name")
	}

	var dup int64
	err := s.db.WithContext(ctx).Model(&SoundRecord{}).
		Where("category_id = ? AND name_key = ?", categoryID, normalize(name)).
		Count(&dup).Error
	if err != nil {
		return SoundRecord{}, fmt.Errorf("check duplicate sound: %w", err)
	}
	if dup > 0 {
		return SoundRecord{}, duplicateSound(name)
	}

	now := s.now()
	id := fmt.Sprintf("custom-%d-%s", now.UnixMilli(), uuid.NewString()[:8])
	key, err := s.blobs.Store(ctx, id, bytes.NewReader(data))
	if err != nil {
		return SoundRecord{}, fmt.Errorf("store audio blob: %w", err)
	}

	rec := SoundRecord{
		ID:              id,
		Name:            name,
		NameKey:         normalize(name),
		Category:        cat.Name,
		CategoryID:      categoryID,
		ResourceLocator: media.StoreScheme + id,
		BlobKey:         key,
		Size:            int64(len(data)),
		CreatedAt:       now,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.logger.Warn().Err(delErr).Str("key", key).Msg("orphaned audio blob")
		}
		return SoundRecord{}, fmt.Errorf("create sound: %w", err)
	}

	s.logger.Info().Str("sound_id", id).Str("name", name).Str("category_id", categoryID).Int("bytes", len(data)).Msg("sound stored")
	return rec, nil
}

// ListAudioResources returns every uploaded sound, oldest first.
func (s *DBStore) ListAudioResources(ctx context.Context) ([]SoundRecord, error) {
	var out []SoundRecord
	if err := s.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list sounds: %w", err)
	}
	return out, nil
}

// OpenAudioResource streams the bytes of an uploaded sound.
func (s *DBStore) OpenAudioResource(ctx context.Context, id string) (io.ReadCloser, error) {
	var rec SoundRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("sound %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("load sound: %w", err)
	}
	return s.blobs.Open(ctx, rec.BlobKey)
}

// DeleteAudioResource removes a sound unless a preset still selects it.
func (s *DBStore) DeleteAudioResource(ctx context.Context, id string) error {
	var rec SoundRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&rec, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("sound %q: %w", id, ErrNotFound)
			}
			return fmt.Errorf("load sound: %w", err)
		}

		var presets []PresetRecord
		if err := tx.Order("created_at ASC").Find(&presets).Error; err != nil {
			return fmt.Errorf("list presets: %w", err)
		}
		var using []string
		for _, p := range presets {
			if p.References(id) {
				using = append(using, p.Name)
			}
		}
		if len(using) > 0 {
			return soundInUse(using)
		}

		return tx.Delete(&SoundRecord{}, "id = ?", id).Error
	})
	if err != nil {
		return err
	}

	s.deleteBlob(ctx, rec.BlobKey)
	s.logger.Info().Str("sound_id", id).Msg("sound deleted")
	return nil
}

// PutCategory creates a category. Names are unique ignoring case.
func (s *DBStore) PutCategory(ctx context.Context, name string) (CategoryRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return CategoryRecord{}, errors.New("category name is required")
	}

	var dup int64
	if err := s.db.WithContext(ctx).Model(&CategoryRecord{}).Where("name_key = ?", normalize(name)).Count(&dup).Error; err != nil {
		return CategoryRecord{}, fmt.Errorf("check duplicate category: %w", err)
	}
	if dup > 0 {
		return CategoryRecord{}, duplicateCategory(name)
	}

	rec := CategoryRecord{ID: "cat-" + uuid.NewString(), Name: name, NameKey: normalize(name), CreatedAt: s.now()}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return CategoryRecord{}, fmt.Errorf("create category: %w", err)
	}
	s.logger.Info().Str("category_id", rec.ID).Str("name", name).Msg("category created")
	return rec, nil
}

// ListCategories returns every custom category ordered by name.
func (s *DBStore) ListCategories(ctx context.Context) ([]CategoryRecord, error) {
	var out []CategoryRecord
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}

// DeleteCategory removes a category together with its sounds. It is refused
// while any preset selects the category or one of its sounds.
func (s *DBStore) DeleteCategory(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("invalid category id")
	}

	var sounds []SoundRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cat CategoryRecord
		if err := tx.First(&cat, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("category %q: %w", id, ErrNotFound)
			}
			return fmt.Errorf("load category: %w", err)
		}

		if err := tx.Where("category_id = ?", id).Find(&sounds).Error; err != nil {
			return fmt.Errorf("list category sounds: %w", err)
		}
		soundIDs := make(map[string]bool, len(sounds))
		for _, snd := range sounds {
			soundIDs[snd.ID] = true
		}

		var presets []PresetRecord
		if err := tx.Order("created_at ASC").Find(&presets).Error; err != nil {
			return fmt.Errorf("list presets: %w", err)
		}
		var using []string
		for _, p := range presets {
			if p.referencesCategory(id, soundIDs) {
				using = append(using, p.Name)
			}
		}
		if len(using) > 0 {
			return categoryInUse(using)
		}

		if err := tx.Where("category_id = ?", id).Delete(&SoundRecord{}).Error; err != nil {
			return fmt.Errorf("delete category sounds: %w", err)
		}
		return tx.Delete(&CategoryRecord{}, "id = ?", id).Error
	})
	if err != nil {
		return err
	}

	for _, snd := range sounds {
		s.deleteBlob(ctx, snd.BlobKey)
	}
	s.logger.Info().Str("category_id", id).Int("sounds", len(sounds)).Msg("category deleted")
	return nil
}

// PutPreset saves a named mix.
func (s *DBStore) PutPreset(ctx context.Context, name string, layers []PresetLayer, masterVolume int) (PresetRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return PresetRecord{}, errors.New("preset name is required")
	}
	if layers == nil {
		layers = []PresetLayer{}
	}
	mv := masterVolume
	rec := PresetRecord{
		ID:           "preset-" + uuid.NewString(),
		Name:         name,
		Layers:       layers,
		MasterVolume: &mv,
		CreatedAt:    s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return PresetRecord{}, fmt.Errorf("create preset: %w", err)
	}
	s.logger.Info().Str("preset_id", rec.ID).Str("name", name).Int("layers", len(layers)).Msg("preset saved")
	return rec, nil
}

// ListPresets returns presets oldest first.
func (s *DBStore) ListPresets(ctx context.Context) ([]PresetRecord, error) {
	var out []PresetRecord
	if err := s.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}
	return out, nil
}

// GetPreset loads one preset.
func (s *DBStore) GetPreset(ctx context.Context, id string) (PresetRecord, error) {
	var rec PresetRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return PresetRecord{}, fmt.Errorf("preset %q: %w", id, ErrNotFound)
		}
		return PresetRecord{}, fmt.Errorf("load preset: %w", err)
	}
	return rec, nil
}

// DeletePreset removes a preset.
func (s *DBStore) DeletePreset(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&PresetRecord{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete preset: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("preset %q: %w", id, ErrNotFound)
	}
	s.logger.Info().Str("preset_id", id).Msg("preset deleted")
	return nil
}

// MigrateLegacy backfills category ids on records written before ids were
// tracked, matching by trimmed case-insensitive category name, fills missing
// name keys, and gives presets without a master volume the default. It is safe to run repeatedly.
func (s *DBStore) MigrateLegacy(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cats []CategoryRecord
		if err := tx.Find(&cats).Error; err != nil {
			return fmt.Errorf("list categories: %w", err)
		}
		byName := make(map[string]string, len(cats))
		for _, c := range cats {
			byName[normalize(c.Name)] = c.ID
		}

		keysFixed := 0
		for _, c := range cats {
			if c.NameKey != "" {
				continue
			}
			if err := tx.Model(&CategoryRecord{}).Where("id = ?", c.ID).Update("name_key", normalize(c.Name)).Error; err != nil {
				return fmt.Errorf("backfill category key %s: %w", c.ID, err)
			}
			keysFixed++
		}
		var unkeyed []SoundRecord
		if err := tx.Where("name_key = ? OR name_key IS NULL", "").Find(&unkeyed).Error; err != nil {
			return fmt.Errorf("list unkeyed sounds: %w", err)
		}
		for _, snd := range unkeyed {
			if err := tx.Model(&SoundRecord{}).Where("id = ?", snd.ID).Update("name_key", normalize(snd.Name)).Error; err != nil {
				return fmt.Errorf("backfill sound key %s: %w", snd.ID, err)
			}
			keysFixed++
		}

		var sounds []SoundRecord
		if err := tx.Where("category_id = ?", "").Find(&sounds).Error; err != nil {
			return fmt.Errorf("list legacy sounds: %w", err)
		}
		soundsFixed := 0
		for _, snd := range sounds {
			id, ok := byName[normalize(snd.Category)]
			if !ok {
				continue
			}
			if err := tx.Model(&SoundRecord{}).Where("id = ?", snd.ID).Update("category_id", id).Error; err != nil {
				return fmt.Errorf("backfill sound %s: %w", snd.ID, err)
			}
			soundsFixed++
		}

		var presets []PresetRecord
		if err := tx.Find(&presets).Error; err != nil {
			return fmt.Errorf("list presets: %w", err)
		}
		presetsFixed := 0
		for _, p := range presets {
			changed := false
			if p.MasterVolume == nil {
				mv := DefaultMasterVolume
				p.MasterVolume = &mv
				changed = true
			}
			for i := range p.Layers {
				l := &p.Layers[i]
				if l.SelectedCategoryID != nil || l.SelectedCategory == nil {
					continue
				}
				if id, ok := byName[normalize(*l.SelectedCategory)]; ok {
					l.SelectedCategoryID = &id
					changed = true
				}
			}
			if !changed {
				continue
			}
			if err := tx.Save(&p).Error; err != nil {
				return fmt.Errorf("backfill preset %s: %w", p.ID, err)
			}
			presetsFixed++
		}

		if soundsFixed > 0 || presetsFixed > 0 || keysFixed > 0 {
			s.logger.Info().Int("sounds", soundsFixed).Int("presets", presetsFixed).Int("name_keys", keysFixed).Msg("legacy records migrated")
		}
		return nil
	})
}

func (s *DBStore) deleteBlob(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.blobs.Delete(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("delete audio blob failed")
	}
}
