package llm

import (
	"fmt"
	"strings"

	"github.com/thebtf/contextd/internal/privacy"
	"github.com/thebtf/contextd/pkg/models"
)

const (
	// maxTranscriptChars bounds the transcript embedded in a prompt.
	maxTranscriptChars = 24000
)

// FormatTranscript renders messages as role-prefixed lines for inclusion in
// an instruction template. Entirely private messages are dropped; the rest
// pass through privacy.Clean so secrets never reach the model.
func FormatTranscript(messages []*models.Message) string {
	var sb strings.Builder
	for _, m := range messages {
		if privacy.IsEntirelyPrivate(m.Content) {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(m.Role)
		sb.WriteString(": ")
		sb.WriteString(privacy.Clean(m.Content))
	}
	return sb.String()
}

// BuildSummaryPrompt builds the instruction for compressing older thread
// messages into a rolling prose summary.
func BuildSummaryPrompt(transcript, previousSummary string) string {
	var sb strings.Builder

	sb.WriteString("Summarize the following conversation between a user and a policy-document assistant. ")
	sb.WriteString("Preserve the questions asked, the policies discussed, decisions reached, and any commitments or open items, so the conversation can continue seamlessly from the summary alone. ")
	sb.WriteString("Write plain prose, no headings or bullet points.\n\n")

	if previousSummary != "" {
		sb.WriteString("Earlier parts of this conversation were already summarized as:\n")
		sb.WriteString(truncate(previousSummary, 4000))
		sb.WriteString("\n\nFold that summary together with the new messages below into one updated summary.\n\n")
	}

	sb.WriteString("Conversation:\n")
	sb.WriteString(truncate(transcript, maxTranscriptChars))
	sb.WriteString("\n\nSummary:")

	return sb.String()
}

// BuildExtractionPrompt builds the instruction for extracting durable user
// facts from a conversation. The model must reply with a JSON array of
// short fact strings.
func BuildExtractionPrompt(transcript string, existingFacts []string, maxFacts int) string {
	var sb strings.Builder

	sb.WriteString("Extract durable facts about the user from the conversation below: role, team, preferences, recurring needs, constraints. ")
	sb.WriteString("Only include facts that will still be true in future conversations. ")
	sb.WriteString(fmt.Sprintf("Reply with a JSON array of at most %d short fact strings and nothing else. ", maxFacts))
	sb.WriteString("If no new facts are present, reply with an empty array.\n\n")

	if len(existingFacts) > 0 {
		sb.WriteString("Already known facts (do not repeat them):\n")
		for _, fact := range existingFacts {
			sb.WriteString("- ")
			sb.WriteString(fact)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Conversation:\n")
	sb.WriteString(truncate(transcript, maxTranscriptChars))

	return sb.String()
}

// truncate shortens s to at most max characters, marking the cut.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n[...truncated]"
}
