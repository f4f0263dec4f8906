// Package db provides GORM-based database operations for contextd.
package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/thebtf/contextd/pkg/models"
)

// SkillStoreSuite exercises skill CRUD and resolver-facing lookups.
type SkillStoreSuite struct {
	suite.Suite
	store  *Store
	skills *SkillStore
	ctx    context.Context
}

func TestSkillStoreSuite(t *testing.T) {
	suite.Run(t, new(SkillStoreSuite))
}

func (s *SkillStoreSuite) SetupTest() {
	s.store = testStore(s.T())
	s.skills = NewSkillStore(s.store)
	s.ctx = context.Background()
}

func (s *SkillStoreSuite) createSkill(skill models.Skill) *models.Skill {
	created, err := s.skills.CreateSkill(s.ctx, &skill)
	s.Require().NoError(err)
	return created
}

func (s *SkillStoreSuite) TestCreateAndGetSkill() {
	created := s.createSkill(models.Skill{
		Name:         "hr-leave",
		Prompt:       "Explain leave policy precisely.",
		TriggerKind:  models.TriggerKeyword,
		TriggerValue: "leave, vacation",
		Priority:     50,
		Active:       true,
		CategoryIDs:  []int64{5},
	})

	got, err := s.skills.GetSkill(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal("hr-leave", got.Name)
	s.Equal(models.TriggerKeyword, got.TriggerKind)
	s.Equal([]int64{5}, got.CategoryIDs)
}

func (s *SkillStoreSuite) TestDeleteCoreSkillRefused() {
	var core Skill
	s.Require().NoError(s.store.DB.Where("core = ?", true).First(&core).Error)

	err := s.skills.DeleteSkill(s.ctx, core.ID)
	s.ErrorIs(err, ErrCoreSkill)

	// Deactivation is allowed.
	s.Require().NoError(s.skills.SetActive(s.ctx, core.ID, false))
	got, err := s.skills.GetSkill(s.ctx, core.ID)
	s.Require().NoError(err)
	s.False(got.Active)
}

func (s *SkillStoreSuite) TestDeleteSkillRemovesLinks() {
	created := s.createSkill(models.Skill{
		Name:        "finance-index",
		Prompt:      "Broad finance context.",
		TriggerKind: models.TriggerCategory,
		IsIndex:     true,
		Active:      true,
		CategoryIDs: []int64{3},
	})

	s.Require().NoError(s.skills.DeleteSkill(s.ctx, created.ID))

	_, err := s.skills.GetSkill(s.ctx, created.ID)
	s.ErrorIs(err, ErrSkillNotFound)

	var count int64
	s.Require().NoError(s.store.DB.Model(&SkillCategory{}).
		Where("skill_id = ?", created.ID).Count(&count).Error)
	s.Zero(count)
}

func (s *SkillStoreSuite) TestActiveSkillsFiltersInactive() {
	s.createSkill(models.Skill{
		Name: "active-kw", Prompt: "p", TriggerKind: models.TriggerKeyword,
		TriggerValue: "budget", Active: true, Priority: 10,
	})
	s.createSkill(models.Skill{
		Name: "inactive-kw", Prompt: "p", TriggerKind: models.TriggerKeyword,
		TriggerValue: "budget", Active: false, Priority: 5,
	})

	skills, err := s.skills.ActiveSkills(s.ctx, models.TriggerKeyword)
	s.Require().NoError(err)
	s.Require().Len(skills, 1)
	s.Equal("active-kw", skills[0].Name)
}

func (s *SkillStoreSuite) TestIndexSkillsForCategories() {
	s.createSkill(models.Skill{
		Name: "finance-index", Prompt: "p", TriggerKind: models.TriggerCategory,
		IsIndex: true, Active: true, CategoryIDs: []int64{3},
	})
	s.createSkill(models.Skill{
		Name: "hr-index", Prompt: "p", TriggerKind: models.TriggerCategory,
		IsIndex: true, Active: true, CategoryIDs: []int64{5},
	})
	s.createSkill(models.Skill{
		Name: "hr-extra", Prompt: "p", TriggerKind: models.TriggerCategory,
		IsIndex: false, Active: true, CategoryIDs: []int64{5},
	})

	skills, err := s.skills.IndexSkills(s.ctx, []int64{5})
	s.Require().NoError(err)
	s.Require().Len(skills, 1)
	s.Equal("hr-index", skills[0].Name)

	none, err := s.skills.IndexSkills(s.ctx, nil)
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *SkillStoreSuite) TestUpdateSkillReplacesLinks() {
	created := s.createSkill(models.Skill{
		Name: "kw", Prompt: "p", TriggerKind: models.TriggerKeyword,
		TriggerValue: "budget", Active: true, CategoryIDs: []int64{3},
	})

	created.Priority = 7
	created.CategoryIDs = []int64{5, 9}
	s.Require().NoError(s.skills.UpdateSkill(s.ctx, created))

	got, err := s.skills.GetSkill(s.ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(7, got.Priority)
	s.Equal([]int64{5, 9}, got.CategoryIDs)
}
