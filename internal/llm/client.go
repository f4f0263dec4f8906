// Package llm wraps the chat-completion boundary used by the summarizer and
// the memory extractor. Everything behind Completer is opaque to the engine;
// failures surface as ordinary errors and are absorbed by the callers.
package llm

import "context"

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single role/content pair in a completion request.
type Message struct {
	Role    string
	Content string
}

// Request is one chat-completion call.
type Request struct {
	Model       string
	Temperature float32
	MaxTokens   int
	Messages    []Message
}

// Completer issues a chat-completion request and returns the completion
// text. An empty completion is returned as ("", nil); callers treat it as a
// soft failure.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}
