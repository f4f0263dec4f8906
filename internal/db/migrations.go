// Package db provides GORM-based database operations for contextd.
package db

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: Thread tables (Thread, Message, ThreadSummary, ArchivedMessage)
		{
			ID: "001_thread_tables",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&Thread{}); err != nil {
					return err
				}
				if err := tx.AutoMigrate(&ThreadCategory{}); err != nil {
					return err
				}
				if err := tx.AutoMigrate(&Message{}); err != nil {
					return err
				}
				if err := tx.AutoMigrate(&ThreadSummary{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&ArchivedMessage{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(
					"threads", "thread_categories", "messages",
					"thread_summaries", "archived_messages",
				)
			},
		},

		// Migration 002: Skills and category links
		{
			ID: "002_skills",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&Skill{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&SkillCategory{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("skills", "skill_categories")
			},
		},

		// Migration 003: User memories with uniqueness over (user, category)
		// including the NULL (global) row. A plain unique index treats NULLs
		// as distinct, so the index is built over COALESCE(category_id, 0).
		{
			ID: "003_user_memories",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&UserMemory{}); err != nil {
					return err
				}
				return tx.Exec(
					`CREATE UNIQUE INDEX IF NOT EXISTS idx_user_memories_scope
					 ON user_memories(user_id, COALESCE(category_id, 0))`,
				).Error
			},
			Rollback: func(tx *gorm.DB) error {
				if err := tx.Exec("DROP INDEX IF EXISTS idx_user_memories_scope").Error; err != nil {
					return err
				}
				return tx.Migrator().DropTable("user_memories")
			},
		},

		// Migration 004: Key/value settings table
		{
			ID: "004_settings",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&Setting{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("settings")
			},
		},

		// Migration 005: Core skill seed. Core skills can be deactivated but
		// never deleted.
		{
			ID: "005_seed_core_skills",
			Migrate: func(tx *gorm.DB) error {
				seeds := []Skill{
					{
						Name:          "answer-grounding",
						Description:   nullString("Keeps answers grounded in retrieved policy documents"),
						Prompt:        "Base every answer on the retrieved policy excerpts. When the documents do not cover the question, say so instead of guessing, and point the user to the document owner.",
						TriggerKind:   "always",
						Priority:      10,
						Active:        true,
						Core:          true,
						TokenEstimate: 48,
					},
					{
						Name:          "citation-style",
						Description:   nullString("Cites source documents for every factual claim"),
						Prompt:        "Cite the source document and section for each factual claim, using the citation markers provided with the retrieved excerpts.",
						TriggerKind:   "always",
						Priority:      20,
						Active:        true,
						Core:          true,
						TokenEstimate: 33,
					},
				}
				for i := range seeds {
					if err := tx.Where("name = ?", seeds[i].Name).
						FirstOrCreate(&seeds[i]).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Where("core = ?", true).Delete(&Skill{}).Error
			},
		},
	})

	return m.Migrate()
}
