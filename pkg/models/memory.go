// Package models contains domain models for contextd.
package models

// UserMemory is a durable fact list scoped to a user and optionally a
// category. CategoryID nil means the global scope. At most one row exists
// per (user, category) pair, the global row included.
type UserMemory struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"user_id"`
	CategoryID     *int64     `json:"category_id,omitempty"`
	Facts          StringList `json:"facts"`
	CreatedAt      string     `json:"created_at"`
	CreatedAtEpoch int64      `json:"created_at_epoch"`
	UpdatedAt      string     `json:"updated_at"`
	UpdatedAtEpoch int64      `json:"updated_at_epoch"`
}

// Global reports whether the memory row is the user's global scope.
func (m *UserMemory) Global() bool {
	return m.CategoryID == nil
}
