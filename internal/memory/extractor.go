package memory

import (
	"context"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/contextd/internal/llm"
	"github.com/thebtf/contextd/internal/telemetry"
	"github.com/thebtf/contextd/pkg/models"
)

// Extraction outcomes. Extraction never aborts the surrounding turn; the
// outcome makes the soft-failure path explicit and testable.
const (
	OutcomeUpdated        = "updated"
	OutcomeUnchanged      = "unchanged"
	OutcomeDisabled       = "disabled"
	OutcomeBelowThreshold = "below_threshold"
	OutcomeFailed         = "failed"
)

const extractionTemperature = 0.2

// Writer provides the memory rows the extractor updates.
type Writer interface {
	GetMemory(ctx context.Context, userID int64, categoryID *int64) (*models.UserMemory, error)
	ReplaceFacts(ctx context.Context, userID int64, categoryID *int64, facts []string) (*models.UserMemory, error)
}

// ExtractResult is the outcome of one extraction pass. Facts always holds a
// usable fact list: the merged result on success, the unchanged existing
// list otherwise.
type ExtractResult struct {
	Facts   []string
	Outcome string
}

// Extractor refreshes fact lists from conversation transcripts via the
// external LLM boundary.
type Extractor struct {
	completer llm.Completer
	writer    Writer
	model     string
	metrics   *telemetry.Metrics
}

// NewExtractor creates a memory extractor. The model is used for every
// extraction call.
func NewExtractor(completer llm.Completer, writer Writer, model string, metrics *telemetry.Metrics) *Extractor {
	return &Extractor{completer: completer, writer: writer, model: model, metrics: metrics}
}

// Extract computes a refreshed fact list from the conversation. Guarded by
// the feature flag and the minimum-message threshold; any LLM or parse
// failure returns the existing facts unchanged.
func (e *Extractor) Extract(ctx context.Context, messages []*models.Message, existingFacts []string, settings models.MemorySettings) ExtractResult {
	if !settings.Enabled {
		return e.result(ctx, existingFacts, OutcomeDisabled)
	}
	if len(messages) < settings.ExtractionThreshold {
		return e.result(ctx, existingFacts, OutcomeBelowThreshold)
	}

	prompt := llm.BuildExtractionPrompt(
		llm.FormatTranscript(messages), existingFacts, settings.MaxFactsPerCategory)

	reply, err := e.completer.Complete(ctx, llm.Request{
		Model:       e.model,
		Temperature: extractionTemperature,
		MaxTokens:   1024,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
	})
	if err != nil {
		log.Warn().Err(err).Msg("Memory extraction call failed")
		return e.result(ctx, existingFacts, OutcomeFailed)
	}

	fresh, ok := parseFactArray(reply)
	if !ok {
		log.Warn().Str("reply", truncateForLog(reply)).Msg("Memory extraction reply not parseable")
		return e.result(ctx, existingFacts, OutcomeFailed)
	}

	merged := mergeFacts(existingFacts, fresh, settings.MaxFactsPerCategory)
	if equalFacts(merged, existingFacts) {
		return e.result(ctx, existingFacts, OutcomeUnchanged)
	}
	return e.result(ctx, merged, OutcomeUpdated)
}

// Refresh runs extraction for one (user, category) scope and full-replaces
// the stored row when the fact list changed.
func (e *Extractor) Refresh(ctx context.Context, userID int64, categoryID *int64, messages []*models.Message, settings models.MemorySettings) (ExtractResult, error) {
	var existing []string
	if mem, err := e.writer.GetMemory(ctx, userID, categoryID); err != nil {
		return ExtractResult{Outcome: OutcomeFailed}, err
	} else if mem != nil {
		existing = mem.Facts
	}

	result := e.Extract(ctx, messages, existing, settings)
	if result.Outcome != OutcomeUpdated {
		return result, nil
	}

	if _, err := e.writer.ReplaceFacts(ctx, userID, categoryID, result.Facts); err != nil {
		return ExtractResult{Facts: existing, Outcome: OutcomeFailed}, err
	}
	return result, nil
}

func (e *Extractor) result(ctx context.Context, facts []string, outcome string) ExtractResult {
	e.metrics.RecordExtraction(ctx, outcome)
	return ExtractResult{Facts: facts, Outcome: outcome}
}

// parseFactArray extracts the first bracket-delimited JSON array from the
// model reply. Models wrap arrays in prose or code fences often enough that
// strict unmarshaling of the whole reply would fail constantly.
func parseFactArray(reply string) ([]string, bool) {
	start := strings.Index(reply, "[")
	end := strings.LastIndex(reply, "]")
	if start < 0 || end <= start {
		return nil, false
	}
	var facts []string
	if err := json.Unmarshal([]byte(reply[start:end+1]), &facts); err != nil {
		return nil, false
	}
	return facts, true
}

// mergeFacts appends fresh facts to the existing list, removes exact
// duplicates preserving first occurrence, and truncates to maxFacts. There
// is no explicit eviction policy beyond the cap truncation.
func mergeFacts(existing, fresh []string, maxFacts int) []string {
	seen := make(map[string]bool, len(existing)+len(fresh))
	merged := make([]string, 0, len(existing)+len(fresh))
	for _, fact := range append(append([]string{}, existing...), fresh...) {
		fact = strings.TrimSpace(fact)
		if fact == "" || seen[fact] {
			continue
		}
		seen[fact] = true
		merged = append(merged, fact)
	}
	if maxFacts > 0 && len(merged) > maxFacts {
		merged = merged[:maxFacts]
	}
	return merged
}

func equalFacts(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func truncateForLog(s string) string {
	if len(s) > 200 {
		return s[:200]
	}
	return s
}
