package store

import "time"

// SoundRecord is an uploaded audio resource. The bytes live in blob storage
// under BlobKey; ResourceLocator is what the media fetcher resolves.
// NameKey is the folded name used for duplicate checks.
type SoundRecord struct {
	ID              string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name            string    `gorm:"type:varchar(255)" json:"name"`
	NameKey         string    `gorm:"type:varchar(255);index" json:"-"`
	Category        string    `gorm:"type:varchar(255)" json:"category"`
	CategoryID      string    `gorm:"type:varchar(64);index" json:"categoryId"`
	ResourceLocator string    `gorm:"type:varchar(255)" json:"resourceLocator"`
	BlobKey         string    `gorm:"type:varchar(255)" json:"-"`
	Size            int64     `json:"size"`
	CreatedAt       time.Time `json:"createdAt"`
}

// TableName overrides for GORM.
func (SoundRecord) TableName() string { return "sounds" }

// CategoryRecord is a user-defined category.
type CategoryRecord struct {
	ID        string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255)" json:"name"`
	NameKey   string    `gorm:"type:varchar(255);index" json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName overrides for GORM.
func (CategoryRecord) TableName() string { return "categories" }

// PresetLayer is a layer as persisted inside a preset. Pointer fields are
// nil in records written before the field existed.
type PresetLayer struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	SelectedCategory   *string `json:"selectedCategory"`
	SelectedCategoryID *string `json:"selectedCategoryId"`
	SelectedSoundID    *string `json:"selectedSoundId"`
	Volume             *int    `json:"volume,omitempty"`
	IsMuted            *bool   `json:"isMuted,omitempty"`
	Loop               *bool   `json:"loop,omitempty"`
}

// PresetRecord is a saved mix.
type PresetRecord struct {
	ID           string        `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name         string        `gorm:"type:varchar(255)" json:"name"`
	Layers       []PresetLayer `gorm:"type:text;serializer:json" json:"layers"`
	MasterVolume *int          `json:"masterVolume"`
	CreatedAt    time.Time     `gorm:"index" json:"createdAt"`
}

// TableName overrides for GORM.
func (PresetRecord) TableName() string { return "presets" }

// References reports whether any layer selects soundID.
func (p PresetRecord) References(soundID string) bool {
	for _, l := range p.Layers {
		if l.SelectedSoundID != nil && *l.SelectedSoundID == soundID {
			return true
		}
	}
	return false
}

func (p PresetRecord) referencesCategory(categoryID string, soundIDs map[string]bool) bool {
	for _, l := range p.Layers {
		if l.SelectedCategoryID != nil && *l.SelectedCategoryID == categoryID {
			return true
		}
		if l.SelectedSoundID != nil && soundIDs[*l.SelectedSoundID] {
			return true
		}
	}
	return false
}
