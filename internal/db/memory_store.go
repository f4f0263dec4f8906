// Package db provides GORM-based database operations for contextd.
package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/thebtf/contextd/pkg/models"
)

// MemoryStore provides user memory database operations.
type MemoryStore struct {
	db *gorm.DB
}

// NewMemoryStore creates a new memory store.
func NewMemoryStore(store *Store) *MemoryStore {
	return &MemoryStore{db: store.DB}
}

// GetMemory retrieves the memory row for (user, category). A nil categoryID
// selects the global row. Returns nil when no row exists.
func (s *MemoryStore) GetMemory(ctx context.Context, userID int64, categoryID *int64) (*models.UserMemory, error) {
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if categoryID == nil {
		query = query.Where("category_id IS NULL")
	} else {
		query = query.Where("category_id = ?", *categoryID)
	}

	var row UserMemory
	err := query.First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toModelMemory(&row), nil
}

// GetMemories retrieves the user's global row plus the rows for the given
// categories, global first then ascending category id.
func (s *MemoryStore) GetMemories(ctx context.Context, userID int64, categoryIDs []int64) ([]*models.UserMemory, error) {
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if len(categoryIDs) > 0 {
		query = query.Where("category_id IS NULL OR category_id IN ?", categoryIDs)
	} else {
		query = query.Where("category_id IS NULL")
	}

	var rows []UserMemory
	if err := query.Order("category_id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	memories := make([]*models.UserMemory, 0, len(rows))
	for i := range rows {
		memories = append(memories, toModelMemory(&rows[i]))
	}
	return memories, nil
}

// ReplaceFacts upserts the (user, category) row with a full replacement of
// its fact list. The stored list is always the merged-and-capped result of
// the most recent extraction, never an append log.
func (s *MemoryStore) ReplaceFacts(ctx context.Context, userID int64, categoryID *int64, facts []string) (*models.UserMemory, error) {
	now := time.Now()
	row := &UserMemory{
		UserID:         userID,
		CategoryID:     nullInt64Ptr(categoryID),
		Facts:          models.StringList(facts),
		UpdatedAt:      now.Format(time.RFC3339),
		UpdatedAtEpoch: now.UnixMilli(),
	}

	// The unique scope index is an expression index, so ON CONFLICT cannot
	// name it portably; do a read-then-write inside a transaction instead.
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Where("user_id = ?", userID)
		if categoryID == nil {
			query = query.Where("category_id IS NULL")
		} else {
			query = query.Where("category_id = ?", *categoryID)
		}

		var existing UserMemory
		err := query.First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(row).Error
		}
		if err != nil {
			return err
		}

		row.ID = existing.ID
		row.CreatedAt = existing.CreatedAt
		row.CreatedAtEpoch = existing.CreatedAtEpoch
		return tx.Model(&UserMemory{}).Where("id = ?", existing.ID).Updates(map[string]interface{}{
			"facts":            row.Facts,
			"updated_at":       row.UpdatedAt,
			"updated_at_epoch": row.UpdatedAtEpoch,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return toModelMemory(row), nil
}

// DeleteMemory removes the (user, category) row. Used for explicit resets.
func (s *MemoryStore) DeleteMemory(ctx context.Context, userID int64, categoryID *int64) error {
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if categoryID == nil {
		query = query.Where("category_id IS NULL")
	} else {
		query = query.Where("category_id = ?", *categoryID)
	}
	return query.Delete(&UserMemory{}).Error
}

// DeleteAllMemories removes every memory row for a user.
func (s *MemoryStore) DeleteAllMemories(ctx context.Context, userID int64) error {
	return s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&UserMemory{}).Error
}
