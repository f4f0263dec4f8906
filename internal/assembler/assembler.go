// Package assembler composes the per-turn model context from skills, user
// memory, and thread history. Every component is best-effort: a failure
// logs, drops that section, and never aborts the turn.
package assembler

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/contextd/internal/memory"
	"github.com/thebtf/contextd/internal/skills"
	"github.com/thebtf/contextd/internal/summarize"
	"github.com/thebtf/contextd/internal/tokens"
	"github.com/thebtf/contextd/pkg/models"
)

// Settings provides the current component settings for a turn.
type Settings interface {
	GetSkillsSettings(ctx context.Context) (models.SkillsSettings, error)
	GetSummarizationSettings(ctx context.Context) (models.SummarizationSettings, error)
	GetMemorySettings(ctx context.Context) (models.MemorySettings, error)
}

// Threads provides the thread lookups the assembler needs around a turn.
type Threads interface {
	GetThread(ctx context.Context, threadID int64) (*models.Thread, error)
	GetMessagesForThread(ctx context.Context, threadID int64) ([]*models.Message, error)
}

// TurnRequest describes one conversation turn to assemble context for.
type TurnRequest struct {
	UserID           int64   `json:"user_id"`
	ThreadID         int64   `json:"thread_id"`
	CategoryIDs      []int64 `json:"category_ids,omitempty"`
	UserMessage      string  `json:"user_message"`
	MaxContextTokens int     `json:"max_context_tokens"`
}

// TurnContext is the assembled context placed ahead of the live message
// list in the model request.
type TurnContext struct {
	SkillPrompt   string              `json:"skill_prompt,omitempty"`
	SkillTrace    []skills.TraceEntry `json:"skill_trace,omitempty"`
	MemoryContext string              `json:"memory_context,omitempty"`
	ThreadSummary string              `json:"thread_summary,omitempty"`
	Messages      []*models.Message   `json:"messages,omitempty"`
	Combined      string              `json:"combined"`
	TotalTokens   int                 `json:"total_tokens"`
}

// Assembler is the top-level composition over the three context components.
type Assembler struct {
	settings   Settings
	threads    Threads
	resolver   *skills.Resolver
	builder    *memory.Builder
	summarizer *summarize.Summarizer
	extractor  *memory.Extractor
	estimator  tokens.Estimator
}

// New creates an assembler.
func New(settings Settings, threads Threads, resolver *skills.Resolver, builder *memory.Builder, summarizer *summarize.Summarizer, extractor *memory.Extractor, estimator tokens.Estimator) *Assembler {
	if estimator == nil {
		estimator = tokens.Heuristic{}
	}
	return &Assembler{
		settings:   settings,
		threads:    threads,
		resolver:   resolver,
		builder:    builder,
		summarizer: summarizer,
		extractor:  extractor,
		estimator:  estimator,
	}
}

// Assemble builds the turn context: skill prompt, memory block, and thread
// summary plus recent messages, concatenated in that order. Component
// failures degrade to empty sections.
func (a *Assembler) Assemble(ctx context.Context, req TurnRequest) (*TurnContext, error) {
	result := &TurnContext{}

	if skillsSettings, err := a.settings.GetSkillsSettings(ctx); err != nil {
		log.Warn().Err(err).Msg("Loading skills settings failed; skipping skills")
	} else if resolution, err := a.resolver.Resolve(ctx, req.CategoryIDs, req.UserMessage, skillsSettings); err != nil {
		log.Warn().Err(err).Msg("Skill resolution failed; skipping skills")
	} else {
		result.SkillPrompt = resolution.Prompt
		result.SkillTrace = resolution.Trace
	}

	if memorySettings, err := a.settings.GetMemorySettings(ctx); err != nil {
		log.Warn().Err(err).Msg("Loading memory settings failed; skipping memory")
	} else if memoryContext, err := a.builder.Context(ctx, req.UserID, req.CategoryIDs, memorySettings); err != nil {
		log.Warn().Err(err).Msg("Memory context failed; skipping memory")
	} else {
		result.MemoryContext = memoryContext
	}

	if threadContext, err := a.summarizer.ThreadContext(ctx, req.ThreadID, req.MaxContextTokens); err != nil {
		log.Warn().Err(err).Int64("thread_id", req.ThreadID).Msg("Thread context failed; skipping history")
	} else {
		result.ThreadSummary = threadContext.Summary
		result.Messages = threadContext.Messages
	}

	var sections []string
	for _, section := range []string{result.SkillPrompt, result.MemoryContext, result.ThreadSummary} {
		if section != "" {
			sections = append(sections, section)
		}
	}
	result.Combined = strings.Join(sections, "\n\n")
	result.TotalTokens = a.estimator.Estimate(result.Combined) +
		a.estimator.EstimateMessages(derefMessages(result.Messages))

	return result, nil
}

// AfterTurn runs the post-turn side effects: a summarization pass when the
// thread's running tokens have crossed the threshold, and a memory refresh
// for the global and selected category scopes when auto-extraction is on.
// Both are best-effort.
func (a *Assembler) AfterTurn(ctx context.Context, threadID, userID int64, categoryIDs []int64) {
	thread, err := a.threads.GetThread(ctx, threadID)
	if err != nil {
		log.Warn().Err(err).Int64("thread_id", threadID).Msg("Post-turn thread lookup failed")
		return
	}

	if summarizationSettings, err := a.settings.GetSummarizationSettings(ctx); err != nil {
		log.Warn().Err(err).Msg("Loading summarization settings failed")
	} else if summarize.ShouldSummarize(thread, summarizationSettings) {
		if _, err := a.summarizer.Summarize(ctx, threadID, summarizationSettings); err != nil {
			log.Warn().Err(err).Int64("thread_id", threadID).Msg("Post-turn summarization failed")
		}
	}

	memorySettings, err := a.settings.GetMemorySettings(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Loading memory settings failed")
		return
	}
	if !memorySettings.Enabled || !memorySettings.AutoExtractOnThreadEnd {
		return
	}

	messages, err := a.threads.GetMessagesForThread(ctx, threadID)
	if err != nil {
		log.Warn().Err(err).Int64("thread_id", threadID).Msg("Post-turn message load failed")
		return
	}

	scopes := []*int64{nil}
	for i := range categoryIDs {
		scopes = append(scopes, &categoryIDs[i])
	}
	for _, scope := range scopes {
		if _, err := a.extractor.Refresh(ctx, userID, scope, messages, memorySettings); err != nil {
			log.Warn().Err(err).Int64("user_id", userID).
				Str("scope", scopeLabel(scope)).
				Msg("Post-turn memory refresh failed")
		}
	}
}

func scopeLabel(categoryID *int64) string {
	if categoryID == nil {
		return "global"
	}
	return fmt.Sprintf("category:%d", *categoryID)
}

func derefMessages(msgs []*models.Message) []models.Message {
	out := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, *m)
	}
	return out
}
