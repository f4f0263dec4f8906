// Package db provides GORM-based database operations for contextd.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"gorm.io/gorm"

	"github.com/thebtf/contextd/pkg/models"
)

// Settings keys. One JSON-encoded value per component; last-write-wins.
const (
	SettingsKeySkills        = "skills"
	SettingsKeySummarization = "summarization"
	SettingsKeyMemory        = "memory"
)

// SettingsStore provides typed access to the key/value settings table.
// Missing rows yield defaults rather than errors, so a fresh database
// behaves sensibly without seeding.
type SettingsStore struct {
	db *gorm.DB
}

// NewSettingsStore creates a new settings store.
func NewSettingsStore(store *Store) *SettingsStore {
	return &SettingsStore{db: store.DB}
}

// GetSkillsSettings retrieves the skills settings, or defaults.
func (s *SettingsStore) GetSkillsSettings(ctx context.Context) (models.SkillsSettings, error) {
	settings := models.DefaultSkillsSettings()
	err := s.get(ctx, SettingsKeySkills, &settings)
	return settings, err
}

// PutSkillsSettings stores the skills settings.
func (s *SettingsStore) PutSkillsSettings(ctx context.Context, settings models.SkillsSettings) error {
	return s.put(ctx, SettingsKeySkills, settings)
}

// GetSummarizationSettings retrieves the summarization settings, or defaults.
func (s *SettingsStore) GetSummarizationSettings(ctx context.Context) (models.SummarizationSettings, error) {
	settings := models.DefaultSummarizationSettings()
	err := s.get(ctx, SettingsKeySummarization, &settings)
	return settings, err
}

// PutSummarizationSettings stores the summarization settings.
func (s *SettingsStore) PutSummarizationSettings(ctx context.Context, settings models.SummarizationSettings) error {
	return s.put(ctx, SettingsKeySummarization, settings)
}

// GetMemorySettings retrieves the memory settings, or defaults.
func (s *SettingsStore) GetMemorySettings(ctx context.Context) (models.MemorySettings, error) {
	settings := models.DefaultMemorySettings()
	err := s.get(ctx, SettingsKeyMemory, &settings)
	return settings, err
}

// PutMemorySettings stores the memory settings.
func (s *SettingsStore) PutMemorySettings(ctx context.Context, settings models.MemorySettings) error {
	return s.put(ctx, SettingsKeyMemory, settings)
}

// get decodes the JSON value for key into out, leaving out untouched when no
// row exists.
func (s *SettingsStore) get(ctx context.Context, key string, out interface{}) error {
	var row Setting
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(row.Value), out); err != nil {
		return fmt.Errorf("decode settings %q: %w", key, err)
	}
	return nil
}

// put encodes value as JSON and upserts the row for key.
func (s *SettingsStore) put(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode settings %q: %w", key, err)
	}
	row := Setting{
		Key:       key,
		Value:     string(data),
		UpdatedAt: time.Now().Format(time.RFC3339),
	}
	return s.db.WithContext(ctx).Save(&row).Error
}
