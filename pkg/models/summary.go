// Package models contains domain models for contextd.
package models

// ThreadSummary is the immutable result of one compression pass over a
// thread's history. Summaries are append-only; the most recent row is the
// thread's current summary.
type ThreadSummary struct {
	ID                 int64  `json:"id"`
	ThreadID           int64  `json:"thread_id"`
	Summary            string `json:"summary"`
	MessagesSummarized int    `json:"messages_summarized"`
	TokensBefore       int    `json:"tokens_before"`
	TokensAfter        int    `json:"tokens_after"`
	CreatedAt          string `json:"created_at"`
	CreatedAtEpoch     int64  `json:"created_at_epoch"`
}

// ArchivedMessage is an original message moved out of the live window by a
// summarization pass. It preserves the original message id, content, and
// timestamp, and is never mutated after creation.
type ArchivedMessage struct {
	OriginalMessageID int64  `json:"original_message_id"`
	ThreadID          int64  `json:"thread_id"`
	SummaryID         *int64 `json:"summary_id,omitempty"`
	Role              string `json:"role"`
	Content           string `json:"content"`
	Citations         string `json:"citations,omitempty"`
	CreatedAt         string `json:"created_at"`
	CreatedAtEpoch    int64  `json:"created_at_epoch"`
	ArchivedAt        string `json:"archived_at"`
	ArchivedAtEpoch   int64  `json:"archived_at_epoch"`
}
