package tokens

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"

	"github.com/thebtf/contextd/pkg/models"
)

// Exact counts tokens with a real BPE vocabulary. It is an opt-in
// alternative to Heuristic for deployments that want accurate accounting
// and accept the vocabulary dependency.
type Exact struct {
	codec tokenizer.Codec
}

// NewExact returns an Exact estimator using the cl100k_base encoding.
func NewExact() (*Exact, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	return &Exact{codec: codec}, nil
}

// Estimate returns the exact token count for text. Encoding failures fall
// back to the heuristic so callers never see an error from counting.
func (e *Exact) Estimate(text string) int {
	if text == "" {
		return 0
	}
	ids, _, err := e.codec.Encode(text)
	if err != nil {
		return Estimate(text)
	}
	return len(ids)
}

// EstimateMessages sums exact per-message counts plus the same framing
// overhead as the heuristic.
func (e *Exact) EstimateMessages(messages []models.Message) int {
	total := 0
	for _, m := range messages {
		total += e.Estimate(m.Content) + messageOverheadTokens
	}
	return total
}
