package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/contextd/internal/llm"
	"github.com/thebtf/contextd/pkg/models"
)

// fakeCompleter returns a canned reply or error and records the last prompt.
type fakeCompleter struct {
	reply      string
	err        error
	lastPrompt string
	calls      int
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	f.calls++
	if len(req.Messages) > 0 {
		f.lastPrompt = req.Messages[len(req.Messages)-1].Content
	}
	return f.reply, f.err
}

// fakeWriter is an in-memory Writer keyed by category scope.
type fakeWriter struct {
	rows map[string]*models.UserMemory
}

func scopeKey(categoryID *int64) string {
	if categoryID == nil {
		return "global"
	}
	return "cat"
}

func (f *fakeWriter) GetMemory(_ context.Context, userID int64, categoryID *int64) (*models.UserMemory, error) {
	return f.rows[scopeKey(categoryID)], nil
}

func (f *fakeWriter) ReplaceFacts(_ context.Context, userID int64, categoryID *int64, facts []string) (*models.UserMemory, error) {
	if f.rows == nil {
		f.rows = make(map[string]*models.UserMemory)
	}
	row := &models.UserMemory{UserID: userID, CategoryID: categoryID, Facts: models.StringList(facts)}
	f.rows[scopeKey(categoryID)] = row
	return row, nil
}

func testMessages(n int) []*models.Message {
	msgs := make([]*models.Message, 0, n)
	for i := 0; i < n; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		msgs = append(msgs, &models.Message{Role: role, Content: "message content"})
	}
	return msgs
}

func extractionSettings() models.MemorySettings {
	return models.MemorySettings{
		Enabled:             true,
		ExtractionThreshold: 4,
		MaxFactsPerCategory: 20,
	}
}

func TestExtractDisabled(t *testing.T) {
	completer := &fakeCompleter{}
	extractor := NewExtractor(completer, nil, "gpt-test", nil)

	settings := extractionSettings()
	settings.Enabled = false

	result := extractor.Extract(context.Background(), testMessages(10), []string{"existing"}, settings)
	assert.Equal(t, OutcomeDisabled, result.Outcome)
	assert.Equal(t, []string{"existing"}, result.Facts)
	assert.Zero(t, completer.calls)
}

func TestExtractBelowThreshold(t *testing.T) {
	completer := &fakeCompleter{}
	extractor := NewExtractor(completer, nil, "gpt-test", nil)

	result := extractor.Extract(context.Background(), testMessages(3), []string{"existing"}, extractionSettings())
	assert.Equal(t, OutcomeBelowThreshold, result.Outcome)
	assert.Equal(t, []string{"existing"}, result.Facts)
	assert.Zero(t, completer.calls)
}

func TestExtractMergesAndDeduplicates(t *testing.T) {
	completer := &fakeCompleter{reply: `["User is in Finance", "Prefers short answers"]`}
	extractor := NewExtractor(completer, nil, "gpt-test", nil)

	result := extractor.Extract(context.Background(), testMessages(6),
		[]string{"User is in Finance"}, extractionSettings())

	assert.Equal(t, OutcomeUpdated, result.Outcome)
	assert.Equal(t, []string{"User is in Finance", "Prefers short answers"}, result.Facts)
}

func TestExtractParsesArrayFromProse(t *testing.T) {
	completer := &fakeCompleter{
		reply: "Here are the facts:\n```json\n[\"Works remotely\"]\n```\nHope that helps!",
	}
	extractor := NewExtractor(completer, nil, "gpt-test", nil)

	result := extractor.Extract(context.Background(), testMessages(6), nil, extractionSettings())
	assert.Equal(t, OutcomeUpdated, result.Outcome)
	assert.Equal(t, []string{"Works remotely"}, result.Facts)
}

func TestExtractTruncatesToMaxFacts(t *testing.T) {
	completer := &fakeCompleter{reply: `["c", "d", "e"]`}
	extractor := NewExtractor(completer, nil, "gpt-test", nil)

	settings := extractionSettings()
	settings.MaxFactsPerCategory = 3

	result := extractor.Extract(context.Background(), testMessages(6), []string{"a", "b"}, settings)
	assert.Equal(t, OutcomeUpdated, result.Outcome)
	assert.Equal(t, []string{"a", "b", "c"}, result.Facts)
}

func TestExtractCallFailureReturnsExistingFacts(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("unreachable")}
	extractor := NewExtractor(completer, nil, "gpt-test", nil)

	result := extractor.Extract(context.Background(), testMessages(6), []string{"kept"}, extractionSettings())
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, []string{"kept"}, result.Facts)
}

func TestExtractParseFailureReturnsExistingFacts(t *testing.T) {
	completer := &fakeCompleter{reply: "I could not find any facts."}
	extractor := NewExtractor(completer, nil, "gpt-test", nil)

	result := extractor.Extract(context.Background(), testMessages(6), []string{"kept"}, extractionSettings())
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, []string{"kept"}, result.Facts)
}

func TestExtractUnchangedWhenNoNewFacts(t *testing.T) {
	completer := &fakeCompleter{reply: `["existing"]`}
	extractor := NewExtractor(completer, nil, "gpt-test", nil)

	result := extractor.Extract(context.Background(), testMessages(6), []string{"existing"}, extractionSettings())
	assert.Equal(t, OutcomeUnchanged, result.Outcome)
}

func TestExtractPromptIncludesExistingFacts(t *testing.T) {
	completer := &fakeCompleter{reply: `[]`}
	extractor := NewExtractor(completer, nil, "gpt-test", nil)

	extractor.Extract(context.Background(), testMessages(6), []string{"User is in Finance"}, extractionSettings())
	assert.Contains(t, completer.lastPrompt, "User is in Finance")
}

func TestRefreshReplacesRowOnlyWhenUpdated(t *testing.T) {
	writer := &fakeWriter{rows: map[string]*models.UserMemory{
		"global": {UserID: 1, Facts: models.StringList{"existing"}},
	}}
	completer := &fakeCompleter{reply: `["existing", "new fact"]`}
	extractor := NewExtractor(completer, writer, "gpt-test", nil)

	result, err := extractor.Refresh(context.Background(), 1, nil, testMessages(6), extractionSettings())
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, result.Outcome)
	assert.Equal(t, models.StringList{"existing", "new fact"}, writer.rows["global"].Facts)

	// A second identical pass changes nothing.
	result, err = extractor.Refresh(context.Background(), 1, nil, testMessages(6), extractionSettings())
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnchanged, result.Outcome)
}

func TestMergeFactsSpecScenario(t *testing.T) {
	// existingFacts ["User is in Finance"], LLM output repeats it plus one
	// new fact; stored list is deduplicated, not doubled.
	merged := mergeFacts(
		[]string{"User is in Finance"},
		[]string{"User is in Finance", "Prefers short answers"},
		20,
	)
	assert.Equal(t, []string{"User is in Finance", "Prefers short answers"}, merged)
}
