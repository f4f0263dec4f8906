// Package privacy scrubs message content before it is embedded in LLM
// prompts. Users can wrap text in <private>...</private> to keep it out of
// summaries and memory extraction entirely; credential-shaped strings are
// redacted regardless.
package privacy

import (
	"regexp"
	"strings"
)

var (
	// privateTagRegex matches <private>...</private> blocks.
	privateTagRegex = regexp.MustCompile(`(?s)<private>.*?</private>`)

	// secretRegexes match common credential shapes: bearer tokens, API key
	// assignments, and long opaque key-like literals.
	secretRegexes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._\-]{16,}`),
		regexp.MustCompile(`(?i)(api[_-]?key|secret|token|password)\s*[:=]\s*\S+`),
		regexp.MustCompile(`\bsk-[A-Za-z0-9]{20,}\b`),
	}
)

const redactedMarker = "[redacted]"

// StripPrivateTags removes all <private>...</private> content from text.
func StripPrivateTags(text string) string {
	return privateTagRegex.ReplaceAllString(text, "")
}

// RedactSecrets replaces credential-shaped substrings with a marker.
func RedactSecrets(text string) string {
	for _, re := range secretRegexes {
		text = re.ReplaceAllString(text, redactedMarker)
	}
	return text
}

// IsEntirelyPrivate reports whether nothing remains once private blocks are
// removed. Such messages are dropped from transcripts altogether.
func IsEntirelyPrivate(text string) bool {
	return strings.TrimSpace(StripPrivateTags(text)) == ""
}

// Clean prepares message content for inclusion in a prompt: private blocks
// removed, secrets redacted, whitespace trimmed.
func Clean(text string) string {
	text = StripPrivateTags(text)
	text = RedactSecrets(text)
	return strings.TrimSpace(text)
}
