// Package models contains domain models for contextd.
package models

// Message roles. Tool messages are excluded from summarization.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Thread is a persistent multi-turn conversation owned by a user.
// RunningTokens accumulates the estimated token cost of every appended
// message and drives the summarization trigger.
type Thread struct {
	ID             int64   `json:"id"`
	UserID         int64   `json:"user_id"`
	Title          string  `json:"title,omitempty"`
	CategoryIDs    []int64 `json:"category_ids,omitempty"`
	RunningTokens  int64   `json:"running_tokens"`
	Summarized     bool    `json:"summarized"`
	CreatedAt      string  `json:"created_at"`
	CreatedAtEpoch int64   `json:"created_at_epoch"`
}

// Message is a single live turn in a thread. Ids are never reused, so an
// archived message keeps its original id without risk of collision.
type Message struct {
	ID             int64  `json:"id"`
	ThreadID       int64  `json:"thread_id"`
	Role           string `json:"role"`
	Content        string `json:"content"`
	Citations      string `json:"citations,omitempty"`
	CreatedAt      string `json:"created_at"`
	CreatedAtEpoch int64  `json:"created_at_epoch"`
}
