package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripPrivateTags(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "no tags",
			input:    "Hello world",
			expected: "Hello world",
		},
		{
			name:     "single private tag",
			input:    "Hello <private>secret</private> world",
			expected: "Hello  world",
		},
		{
			name:     "multiple private tags",
			input:    "Hello <private>secret1</private> and <private>secret2</private> world",
			expected: "Hello  and  world",
		},
		{
			name:     "multiline private tag",
			input:    "Hello <private>\nmultiline\nsecret\n</private> world",
			expected: "Hello  world",
		},
		{
			name:     "entirely private",
			input:    "<private>everything is secret</private>",
			expected: "",
		},
		{
			name:     "unmatched opening tag",
			input:    "Hello <private>unclosed",
			expected: "Hello <private>unclosed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripPrivateTags(tt.input))
		})
	}
}

func TestRedactSecrets(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "no secrets",
			input:    "What is the travel policy?",
			expected: "What is the travel policy?",
		},
		{
			name:     "bearer token",
			input:    "use Bearer abc123def456ghi789jkl to call it",
			expected: "use [redacted] to call it",
		},
		{
			name:     "api key assignment",
			input:    "set api_key=sk_live_abcdef please",
			expected: "set [redacted] please",
		},
		{
			name:     "password assignment",
			input:    "my password: hunter2!",
			expected: "my [redacted]",
		},
		{
			name:     "openai style key",
			input:    "key is sk-abcdefghijklmnopqrstuvwx ok",
			expected: "key is [redacted] ok",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RedactSecrets(tt.input))
		})
	}
}

func TestIsEntirelyPrivate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{
			name:     "not private",
			input:    "Hello world",
			expected: false,
		},
		{
			name:     "entirely private",
			input:    "<private>secret</private>",
			expected: true,
		},
		{
			name:     "entirely private with whitespace",
			input:    "  <private>secret</private>  ",
			expected: true,
		},
		{
			name:     "partially private",
			input:    "Hello <private>secret</private>",
			expected: false,
		},
		{
			name:     "empty string",
			input:    "",
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsEntirelyPrivate(tt.input))
		})
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain text untouched",
			input:    "Hello world",
			expected: "Hello world",
		},
		{
			name:     "strips private tags and trims",
			input:    "  Hello <private>secret</private> world  ",
			expected: "Hello  world",
		},
		{
			name:     "redacts secrets inside kept text",
			input:    "deploy with token=abc123 tonight",
			expected: "deploy with [redacted] tonight",
		},
		{
			name:     "entirely stripped content",
			input:    "  <private>secret</private>  ",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Clean(tt.input))
		})
	}
}

func TestPrivacyEdgeCases(t *testing.T) {
	t.Run("html-like content is not confused with tags", func(t *testing.T) {
		input := "Hello <div>world</div>"
		assert.Equal(t, input, StripPrivateTags(input))
	})

	t.Run("case sensitive tags", func(t *testing.T) {
		input := "Hello <PRIVATE>secret</PRIVATE> world"
		assert.Equal(t, input, StripPrivateTags(input))
	})

	t.Run("nested tags match the first close", func(t *testing.T) {
		input := "<private>outer <private>inner</private> outer</private>"
		assert.Equal(t, " outer</private>", StripPrivateTags(input))
	})
}
