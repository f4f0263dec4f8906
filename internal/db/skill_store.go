// Package db provides GORM-based database operations for contextd.
package db

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/thebtf/contextd/pkg/models"
)

// ErrCoreSkill is returned when attempting to delete a core skill.
// Core skills can only be deactivated.
var ErrCoreSkill = errors.New("core skills cannot be deleted")

// ErrSkillNotFound is returned when a skill id does not exist.
var ErrSkillNotFound = errors.New("skill not found")

// SkillStore provides skill-related database operations.
type SkillStore struct {
	db *gorm.DB
}

// NewSkillStore creates a new skill store.
func NewSkillStore(store *Store) *SkillStore {
	return &SkillStore{db: store.DB}
}

// CreateSkill inserts a skill and its category links.
func (s *SkillStore) CreateSkill(ctx context.Context, skill *models.Skill) (*models.Skill, error) {
	row := &Skill{
		Name:               skill.Name,
		Description:        nullString(skill.Description),
		Prompt:             skill.Prompt,
		TriggerKind:        string(skill.TriggerKind),
		TriggerValue:       nullString(skill.TriggerValue),
		CategoryRestricted: skill.CategoryRestricted,
		IsIndex:            skill.IsIndex,
		Priority:           skill.Priority,
		Active:             skill.Active,
		Core:               skill.Core,
		TokenEstimate:      skill.TokenEstimate,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		return replaceCategoryLinks(tx, row.ID, skill.CategoryIDs)
	})
	if err != nil {
		return nil, err
	}
	return toModelSkill(row, skill.CategoryIDs), nil
}

// UpdateSkill updates a skill's mutable fields and replaces its category links.
func (s *SkillStore) UpdateSkill(ctx context.Context, skill *models.Skill) error {
	updates := map[string]interface{}{
		"name":                skill.Name,
		"description":         nullString(skill.Description),
		"prompt":              skill.Prompt,
		"trigger_kind":        string(skill.TriggerKind),
		"trigger_value":       nullString(skill.TriggerValue),
		"category_restricted": skill.CategoryRestricted,
		"is_index":            skill.IsIndex,
		"priority":            skill.Priority,
		"active":              skill.Active,
		"token_estimate":      skill.TokenEstimate,
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Skill{}).Where("id = ?", skill.ID).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrSkillNotFound
		}
		return replaceCategoryLinks(tx, skill.ID, skill.CategoryIDs)
	})
}

// SetActive toggles a skill's active flag.
func (s *SkillStore) SetActive(ctx context.Context, skillID int64, active bool) error {
	res := s.db.WithContext(ctx).
		Model(&Skill{}).
		Where("id = ?", skillID).
		UpdateColumn("active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSkillNotFound
	}
	return nil
}

// DeleteSkill removes a non-core skill and its category links. Core skills
// are protected; callers should deactivate them instead.
func (s *SkillStore) DeleteSkill(ctx context.Context, skillID int64) error {
	var row Skill
	err := s.db.WithContext(ctx).First(&row, skillID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrSkillNotFound
	}
	if err != nil {
		return err
	}
	if row.Core {
		return ErrCoreSkill
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("skill_id = ?", skillID).Delete(&SkillCategory{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Skill{}, skillID).Error
	})
}

// GetSkill retrieves a skill with its category links.
func (s *SkillStore) GetSkill(ctx context.Context, skillID int64) (*models.Skill, error) {
	var row Skill
	err := s.db.WithContext(ctx).First(&row, skillID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSkillNotFound
	}
	if err != nil {
		return nil, err
	}
	skills, err := s.attachCategories(ctx, []Skill{row})
	if err != nil {
		return nil, err
	}
	return skills[0], nil
}

// ListSkills retrieves all skills ordered by priority.
func (s *SkillStore) ListSkills(ctx context.Context) ([]*models.Skill, error) {
	var rows []Skill
	err := s.db.WithContext(ctx).Order("priority ASC, id ASC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return s.attachCategories(ctx, rows)
}

// ActiveSkills retrieves active skills of the given trigger kind, ordered by
// priority then id. Collection order matters to the resolver's tie-break.
func (s *SkillStore) ActiveSkills(ctx context.Context, kind models.TriggerKind) ([]*models.Skill, error) {
	var rows []Skill
	err := s.db.WithContext(ctx).
		Where("active = ? AND trigger_kind = ?", true, string(kind)).
		Order("priority ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return s.attachCategories(ctx, rows)
}

// IndexSkills retrieves each selected category's active index skill.
func (s *SkillStore) IndexSkills(ctx context.Context, categoryIDs []int64) ([]*models.Skill, error) {
	if len(categoryIDs) == 0 {
		return nil, nil
	}
	var rows []Skill
	err := s.db.WithContext(ctx).
		Joins("JOIN skill_categories ON skill_categories.skill_id = skills.id").
		Where("skills.active = ? AND skills.is_index = ? AND skill_categories.category_id IN ?",
			true, true, categoryIDs).
		Group("skills.id").
		Order("skills.priority ASC, skills.id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return s.attachCategories(ctx, rows)
}

// attachCategories loads category links for the given skill rows.
func (s *SkillStore) attachCategories(ctx context.Context, rows []Skill) ([]*models.Skill, error) {
	skills := make([]*models.Skill, 0, len(rows))
	for i := range rows {
		var ids []int64
		err := s.db.WithContext(ctx).
			Model(&SkillCategory{}).
			Where("skill_id = ?", rows[i].ID).
			Order("category_id").
			Pluck("category_id", &ids).Error
		if err != nil {
			return nil, err
		}
		skills = append(skills, toModelSkill(&rows[i], ids))
	}
	return skills, nil
}

// replaceCategoryLinks rewrites a skill's category links inside a transaction.
func replaceCategoryLinks(tx *gorm.DB, skillID int64, categoryIDs []int64) error {
	if err := tx.Where("skill_id = ?", skillID).Delete(&SkillCategory{}).Error; err != nil {
		return err
	}
	for _, categoryID := range categoryIDs {
		link := &SkillCategory{SkillID: skillID, CategoryID: categoryID}
		if err := tx.Create(link).Error; err != nil {
			return err
		}
	}
	return nil
}
