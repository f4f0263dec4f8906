package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thebtf/contextd/pkg/models"
)

func TestFormatTranscript(t *testing.T) {
	messages := []*models.Message{
		{Role: models.RoleUser, Content: "What is the travel policy?"},
		{Role: models.RoleAssistant, Content: "Economy class under 6 hours."},
	}
	got := FormatTranscript(messages)
	assert.Equal(t, "user: What is the travel policy?\nassistant: Economy class under 6 hours.", got)
}

func TestFormatTranscriptScrubsPrivateContent(t *testing.T) {
	messages := []*models.Message{
		{Role: models.RoleUser, Content: "<private>my salary is 90k</private>"},
		{Role: models.RoleUser, Content: "deploy with token=abc123 tonight"},
	}
	got := FormatTranscript(messages)
	assert.Equal(t, "user: deploy with [redacted] tonight", got)
}

func TestBuildSummaryPromptIncludesPrevious(t *testing.T) {
	prompt := BuildSummaryPrompt("user: hello", "Earlier we discussed budgets.")
	assert.Contains(t, prompt, "Earlier we discussed budgets.")
	assert.Contains(t, prompt, "user: hello")
}

func TestBuildSummaryPromptNoPrevious(t *testing.T) {
	prompt := BuildSummaryPrompt("user: hello", "")
	assert.NotContains(t, prompt, "already summarized")
	assert.Contains(t, prompt, "Summary:")
}

func TestBuildExtractionPromptListsExistingFacts(t *testing.T) {
	prompt := BuildExtractionPrompt("user: hi", []string{"User is in Finance"}, 20)
	assert.Contains(t, prompt, "- User is in Finance")
	assert.Contains(t, prompt, "at most 20")
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("x", 100)
	got := truncate(long, 10)
	assert.True(t, strings.HasPrefix(got, "xxxxxxxxxx"))
	assert.Contains(t, got, "truncated")

	assert.Equal(t, "short", truncate("short", 10))
}
