// Package summarize compresses older thread messages into rolling summaries
// and serves budgeted thread context for live turns.
package summarize

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/contextd/internal/llm"
	"github.com/thebtf/contextd/internal/telemetry"
	"github.com/thebtf/contextd/internal/tokens"
	"github.com/thebtf/contextd/pkg/models"
)

// Summarization outcomes.
const (
	OutcomeCreated = "created"
	OutcomeTooFew  = "too_few_messages"
	OutcomeFailed  = "failed"
)

const summaryTemperature = 0.3

// Store provides the thread persistence the summarizer needs.
type Store interface {
	GetThread(ctx context.Context, threadID int64) (*models.Thread, error)
	GetMessagesForThread(ctx context.Context, threadID int64) ([]*models.Message, error)
	MessagesNewestFirst(ctx context.Context, threadID int64, limit int) ([]*models.Message, error)
	LatestSummary(ctx context.Context, threadID int64) (*models.ThreadSummary, error)
	ArchiveMessages(ctx context.Context, summary *models.ThreadSummary, msgs []*models.Message, archive bool) (*models.ThreadSummary, error)
}

// Result is the outcome of one summarization attempt. On anything but
// OutcomeCreated the database is untouched and the thread will be retried on
// the next qualifying turn.
type Result struct {
	Outcome string
	Summary *models.ThreadSummary
}

// Context is the summary-plus-recent-messages block for a live turn.
type Context struct {
	Summary     string
	Messages    []*models.Message
	TotalTokens int
}

// Summarizer monitors thread token totals and compresses history.
type Summarizer struct {
	store     Store
	completer llm.Completer
	estimator tokens.Estimator
	model     string
	metrics   *telemetry.Metrics
}

// NewSummarizer creates a thread summarizer.
func NewSummarizer(store Store, completer llm.Completer, estimator tokens.Estimator, model string, metrics *telemetry.Metrics) *Summarizer {
	if estimator == nil {
		estimator = tokens.Heuristic{}
	}
	return &Summarizer{
		store:     store,
		completer: completer,
		estimator: estimator,
		model:     model,
		metrics:   metrics,
	}
}

// ShouldSummarize reports whether a compression pass is due: the feature is
// enabled and the thread's running token counter has reached the threshold.
func ShouldSummarize(thread *models.Thread, settings models.SummarizationSettings) bool {
	if !settings.Enabled {
		return false
	}
	return thread.RunningTokens >= int64(settings.TokenThreshold)
}

// Summarize runs one compression pass: fold the eligible older messages into
// a prose summary via the LLM, then archive-and-delete them atomically. A
// failed or empty completion leaves the thread exactly as before.
func (s *Summarizer) Summarize(ctx context.Context, threadID int64, settings models.SummarizationSettings) (Result, error) {
	messages, err := s.store.GetMessagesForThread(ctx, threadID)
	if err != nil {
		return s.fail(ctx, fmt.Errorf("load messages: %w", err))
	}

	eligible := make([]*models.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role != models.RoleTool {
			eligible = append(eligible, m)
		}
	}

	// The newest KeepRecentMessages stay untouched as live context.
	cut := len(eligible) - settings.KeepRecentMessages
	if cut < 2 {
		// A single-message summary is degenerate; wait for more history.
		s.metrics.RecordSummarizePass(ctx, OutcomeTooFew, 0)
		return Result{Outcome: OutcomeTooFew}, nil
	}
	selected := eligible[:cut]

	tokensBefore := s.estimator.EstimateMessages(deref(selected))

	var previousSummary string
	if latest, err := s.store.LatestSummary(ctx, threadID); err != nil {
		return s.fail(ctx, fmt.Errorf("load latest summary: %w", err))
	} else if latest != nil {
		previousSummary = latest.Summary
	}

	prompt := llm.BuildSummaryPrompt(llm.FormatTranscript(selected), previousSummary)
	summaryText, err := s.completer.Complete(ctx, llm.Request{
		Model:       s.model,
		Temperature: summaryTemperature,
		MaxTokens:   settings.SummaryMaxTokens,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
	})
	if err != nil {
		log.Warn().Err(err).Int64("thread_id", threadID).Msg("Summarization call failed")
		s.metrics.RecordSummarizePass(ctx, OutcomeFailed, 0)
		return Result{Outcome: OutcomeFailed}, nil
	}
	if summaryText == "" {
		log.Warn().Int64("thread_id", threadID).Msg("Summarization returned empty text")
		s.metrics.RecordSummarizePass(ctx, OutcomeFailed, 0)
		return Result{Outcome: OutcomeFailed}, nil
	}

	// tokensAfter can exceed tokensBefore on a bad pass; record it faithfully
	// either way.
	tokensAfter := s.estimator.Estimate(summaryText)

	summary, err := s.store.ArchiveMessages(ctx, &models.ThreadSummary{
		ThreadID:           threadID,
		Summary:            summaryText,
		MessagesSummarized: len(selected),
		TokensBefore:       tokensBefore,
		TokensAfter:        tokensAfter,
	}, selected, settings.ArchiveOriginalMessages)
	if err != nil {
		return s.fail(ctx, fmt.Errorf("archive messages: %w", err))
	}

	log.Info().
		Int64("thread_id", threadID).
		Int("messages_summarized", len(selected)).
		Int("tokens_before", tokensBefore).
		Int("tokens_after", tokensAfter).
		Msg("Thread summarized")
	s.metrics.RecordSummarizePass(ctx, OutcomeCreated, len(selected))
	return Result{Outcome: OutcomeCreated, Summary: summary}, nil
}

// ThreadContext returns the latest summary plus as many of the newest live
// messages as fit under maxTokens, walking backward from the newest message.
// Recency is preferred over completeness: packing stops before the first
// message that would overflow.
func (s *Summarizer) ThreadContext(ctx context.Context, threadID int64, maxTokens int) (*Context, error) {
	result := &Context{}

	if latest, err := s.store.LatestSummary(ctx, threadID); err != nil {
		return nil, fmt.Errorf("load latest summary: %w", err)
	} else if latest != nil {
		result.Summary = latest.Summary
		result.TotalTokens = s.estimator.Estimate(latest.Summary)
	}

	newestFirst, err := s.store.MessagesNewestFirst(ctx, threadID, 0)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	var included []*models.Message
	for _, m := range newestFirst {
		cost := s.estimator.EstimateMessages([]models.Message{*m})
		if result.TotalTokens+cost > maxTokens {
			break
		}
		result.TotalTokens += cost
		included = append(included, m)
	}

	// Walked newest-first; restore chronological order.
	for i, j := 0, len(included)-1; i < j; i, j = i+1, j-1 {
		included[i], included[j] = included[j], included[i]
	}
	result.Messages = included
	return result, nil
}

func (s *Summarizer) fail(ctx context.Context, err error) (Result, error) {
	s.metrics.RecordSummarizePass(ctx, OutcomeFailed, 0)
	return Result{Outcome: OutcomeFailed}, err
}

func deref(msgs []*models.Message) []models.Message {
	out := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, *m)
	}
	return out
}
