// Package db provides GORM-based database operations for contextd.
package db

import (
	"database/sql"
	"time"

	"gorm.io/gorm"

	"github.com/thebtf/contextd/pkg/models"
)

// GORM models. Domain models live in pkg/models; these structs carry the
// schema tags and are converted at the store boundary.

// Thread represents a persistent conversation.
type Thread struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	UserID         int64  `gorm:"index;not null"`
	Title          sql.NullString
	RunningTokens  int64  `gorm:"default:0;not null"`
	Summarized     bool   `gorm:"default:false;not null"`
	CreatedAt      string `gorm:"not null"`
	CreatedAtEpoch int64  `gorm:"index:idx_threads_created,sort:desc;not null"`
}

func (Thread) TableName() string { return "threads" }

// BeforeCreate hook to ensure timestamps are set.
func (t *Thread) BeforeCreate(tx *gorm.DB) error {
	if t.CreatedAtEpoch == 0 {
		t.CreatedAtEpoch = time.Now().UnixMilli()
	}
	if t.CreatedAt == "" {
		t.CreatedAt = time.Now().Format(time.RFC3339)
	}
	return nil
}

// ThreadCategory links a thread to a selected category.
type ThreadCategory struct {
	ThreadID   int64 `gorm:"primaryKey;autoIncrement:false"`
	CategoryID int64 `gorm:"primaryKey;autoIncrement:false;index"`
}

func (ThreadCategory) TableName() string { return "thread_categories" }

// Message represents a live message in a thread. Ids come from a single
// autoincrement sequence that is never reset, so archived rows keep their
// original id without collision.
type Message struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	ThreadID       int64  `gorm:"index;not null"`
	Role           string `gorm:"type:text;check:role IN ('user', 'assistant', 'system', 'tool');not null"`
	Content        string `gorm:"type:text;not null"`
	Citations      sql.NullString
	CreatedAt      string `gorm:"not null"`
	CreatedAtEpoch int64  `gorm:"index:idx_messages_created;not null"`
}

func (Message) TableName() string { return "messages" }

// BeforeCreate hook to ensure timestamps are set.
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.CreatedAtEpoch == 0 {
		m.CreatedAtEpoch = time.Now().UnixMilli()
	}
	if m.CreatedAt == "" {
		m.CreatedAt = time.Now().Format(time.RFC3339)
	}
	return nil
}

// ThreadSummary represents one compression pass. Rows are append-only.
type ThreadSummary struct {
	ID                 int64  `gorm:"primaryKey;autoIncrement"`
	ThreadID           int64  `gorm:"index;not null"`
	Summary            string `gorm:"type:text;not null"`
	MessagesSummarized int    `gorm:"default:0;not null"`
	TokensBefore       int    `gorm:"default:0;not null"`
	TokensAfter        int    `gorm:"default:0;not null"`
	CreatedAt          string `gorm:"not null"`
	CreatedAtEpoch     int64  `gorm:"index:idx_summaries_created,sort:desc;not null"`
}

func (ThreadSummary) TableName() string { return "thread_summaries" }

// BeforeCreate hook to ensure timestamps are set.
func (s *ThreadSummary) BeforeCreate(tx *gorm.DB) error {
	if s.CreatedAtEpoch == 0 {
		s.CreatedAtEpoch = time.Now().UnixMilli()
	}
	if s.CreatedAt == "" {
		s.CreatedAt = time.Now().Format(time.RFC3339)
	}
	return nil
}

// ArchivedMessage preserves a summarized-away message. Never mutated.
type ArchivedMessage struct {
	OriginalMessageID int64 `gorm:"primaryKey;autoIncrement:false"`
	ThreadID          int64 `gorm:"index;not null"`
	SummaryID         sql.NullInt64
	Role              string `gorm:"type:text;not null"`
	Content           string `gorm:"type:text;not null"`
	Citations         sql.NullString
	CreatedAt         string `gorm:"not null"`
	CreatedAtEpoch    int64  `gorm:"not null"`
	ArchivedAt        string `gorm:"not null"`
	ArchivedAtEpoch   int64  `gorm:"index:idx_archived_at;not null"`
}

func (ArchivedMessage) TableName() string { return "archived_messages" }

// BeforeCreate hook to ensure archival timestamps are set.
func (a *ArchivedMessage) BeforeCreate(tx *gorm.DB) error {
	if a.ArchivedAtEpoch == 0 {
		a.ArchivedAtEpoch = time.Now().UnixMilli()
	}
	if a.ArchivedAt == "" {
		a.ArchivedAt = time.Now().Format(time.RFC3339)
	}
	return nil
}

// Skill represents a conditionally-activated prompt fragment.
type Skill struct {
	ID                 int64  `gorm:"primaryKey;autoIncrement"`
	Name               string `gorm:"uniqueIndex;not null"`
	Description        sql.NullString
	Prompt             string `gorm:"type:text;not null"`
	TriggerKind        string `gorm:"type:text;check:trigger_kind IN ('always', 'category', 'keyword');not null"`
	TriggerValue       sql.NullString
	CategoryRestricted bool   `gorm:"default:false;not null"`
	IsIndex            bool   `gorm:"default:false;not null"`
	Priority           int    `gorm:"default:100;index;not null"`
	Active             bool   `gorm:"default:true;index;not null"`
	Core               bool   `gorm:"default:false;not null"`
	TokenEstimate      int    `gorm:"default:0;not null"`
	CreatedAt          string `gorm:"not null"`
	CreatedAtEpoch     int64  `gorm:"not null"`
}

func (Skill) TableName() string { return "skills" }

// BeforeCreate hook to ensure timestamps are set.
func (s *Skill) BeforeCreate(tx *gorm.DB) error {
	if s.CreatedAtEpoch == 0 {
		s.CreatedAtEpoch = time.Now().UnixMilli()
	}
	if s.CreatedAt == "" {
		s.CreatedAt = time.Now().Format(time.RFC3339)
	}
	return nil
}

// SkillCategory links a skill to a category.
type SkillCategory struct {
	SkillID    int64 `gorm:"primaryKey;autoIncrement:false"`
	CategoryID int64 `gorm:"primaryKey;autoIncrement:false;index"`
}

func (SkillCategory) TableName() string { return "skill_categories" }

// UserMemory stores a per-user fact list. CategoryID NULL is the global
// scope; uniqueness over (user_id, category_id) including the NULL row is
// enforced by an expression index created in migrations.
type UserMemory struct {
	ID             int64             `gorm:"primaryKey;autoIncrement"`
	UserID         int64             `gorm:"index;not null"`
	CategoryID     sql.NullInt64     `gorm:"index"`
	Facts          models.StringList `gorm:"type:text;not null"`
	CreatedAt      string            `gorm:"not null"`
	CreatedAtEpoch int64             `gorm:"not null"`
	UpdatedAt      string            `gorm:"not null"`
	UpdatedAtEpoch int64             `gorm:"not null"`
}

func (UserMemory) TableName() string { return "user_memories" }

// BeforeCreate hook to ensure timestamps are set.
func (m *UserMemory) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if m.CreatedAtEpoch == 0 {
		m.CreatedAtEpoch = now.UnixMilli()
	}
	if m.CreatedAt == "" {
		m.CreatedAt = now.Format(time.RFC3339)
	}
	if m.UpdatedAtEpoch == 0 {
		m.UpdatedAtEpoch = now.UnixMilli()
	}
	if m.UpdatedAt == "" {
		m.UpdatedAt = now.Format(time.RFC3339)
	}
	return nil
}

// Setting is a key/value settings row with a JSON-encoded value.
// Last-write-wins; no history retained.
type Setting struct {
	Key       string `gorm:"primaryKey;type:text"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt string `gorm:"not null"`
}

func (Setting) TableName() string { return "settings" }

// Converters between GORM and domain models.

func toModelThread(t *Thread, categoryIDs []int64) *models.Thread {
	m := &models.Thread{
		ID:             t.ID,
		UserID:         t.UserID,
		RunningTokens:  t.RunningTokens,
		Summarized:     t.Summarized,
		CategoryIDs:    categoryIDs,
		CreatedAt:      t.CreatedAt,
		CreatedAtEpoch: t.CreatedAtEpoch,
	}
	if t.Title.Valid {
		m.Title = t.Title.String
	}
	return m
}

func toModelMessage(m *Message) *models.Message {
	msg := &models.Message{
		ID:             m.ID,
		ThreadID:       m.ThreadID,
		Role:           m.Role,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
		CreatedAtEpoch: m.CreatedAtEpoch,
	}
	if m.Citations.Valid {
		msg.Citations = m.Citations.String
	}
	return msg
}

func toModelSummary(s *ThreadSummary) *models.ThreadSummary {
	return &models.ThreadSummary{
		ID:                 s.ID,
		ThreadID:           s.ThreadID,
		Summary:            s.Summary,
		MessagesSummarized: s.MessagesSummarized,
		TokensBefore:       s.TokensBefore,
		TokensAfter:        s.TokensAfter,
		CreatedAt:          s.CreatedAt,
		CreatedAtEpoch:     s.CreatedAtEpoch,
	}
}

func toModelArchived(a *ArchivedMessage) *models.ArchivedMessage {
	m := &models.ArchivedMessage{
		OriginalMessageID: a.OriginalMessageID,
		ThreadID:          a.ThreadID,
		Role:              a.Role,
		Content:           a.Content,
		CreatedAt:         a.CreatedAt,
		CreatedAtEpoch:    a.CreatedAtEpoch,
		ArchivedAt:        a.ArchivedAt,
		ArchivedAtEpoch:   a.ArchivedAtEpoch,
	}
	if a.SummaryID.Valid {
		id := a.SummaryID.Int64
		m.SummaryID = &id
	}
	if a.Citations.Valid {
		m.Citations = a.Citations.String
	}
	return m
}

func toModelSkill(s *Skill, categoryIDs []int64) *models.Skill {
	m := &models.Skill{
		ID:                 s.ID,
		Name:               s.Name,
		Prompt:             s.Prompt,
		TriggerKind:        models.TriggerKind(s.TriggerKind),
		CategoryRestricted: s.CategoryRestricted,
		IsIndex:            s.IsIndex,
		Priority:           s.Priority,
		Active:             s.Active,
		Core:               s.Core,
		TokenEstimate:      s.TokenEstimate,
		CategoryIDs:        categoryIDs,
		CreatedAt:          s.CreatedAt,
		CreatedAtEpoch:     s.CreatedAtEpoch,
	}
	if s.Description.Valid {
		m.Description = s.Description.String
	}
	if s.TriggerValue.Valid {
		m.TriggerValue = s.TriggerValue.String
	}
	return m
}

func toModelMemory(m *UserMemory) *models.UserMemory {
	mem := &models.UserMemory{
		ID:             m.ID,
		UserID:         m.UserID,
		Facts:          m.Facts,
		CreatedAt:      m.CreatedAt,
		CreatedAtEpoch: m.CreatedAtEpoch,
		UpdatedAt:      m.UpdatedAt,
		UpdatedAtEpoch: m.UpdatedAtEpoch,
	}
	if m.CategoryID.Valid {
		id := m.CategoryID.Int64
		mem.CategoryID = &id
	}
	return mem
}
