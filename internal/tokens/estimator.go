// Package tokens provides token estimation shared by skills, memory, and
// summarization. The default estimator is a calibrated heuristic that works
// for any downstream model; it never loads a tokenizer vocabulary.
package tokens

import (
	"math"
	"strings"

	"github.com/thebtf/contextd/pkg/models"
)

const (
	// charsPerToken is the empirical characters-per-token ratio.
	charsPerToken = 3.5
	// tokensPerWord approximates subword splitting of English text.
	tokensPerWord = 1.3
	// messageOverheadTokens models per-message role/framing cost.
	messageOverheadTokens = 4
)

// Estimator estimates token counts for text and message lists.
type Estimator interface {
	Estimate(text string) int
	EstimateMessages(messages []models.Message) int
}

// Heuristic is the default tokenizer-agnostic estimator. It averages a
// character-based and a word-based estimate and rounds up, which is
// deliberately conservative.
type Heuristic struct{}

// Estimate returns the estimated token count for text.
func (Heuristic) Estimate(text string) int {
	return Estimate(text)
}

// EstimateMessages returns the estimated token count for a message list,
// including per-message overhead.
func (Heuristic) EstimateMessages(messages []models.Message) int {
	return EstimateMessages(messages)
}

// Estimate is a pure function mapping text to an approximate token count.
func Estimate(text string) int {
	if text == "" {
		return 0
	}
	charEstimate := float64(len([]rune(text))) / charsPerToken
	wordEstimate := float64(len(strings.Fields(text))) * tokensPerWord
	return int(math.Ceil((charEstimate + wordEstimate) / 2))
}

// EstimateMessages sums per-message estimates plus a fixed framing overhead
// for each message.
func EstimateMessages(messages []models.Message) int {
	total := 0
	for _, m := range messages {
		total += Estimate(m.Content) + messageOverheadTokens
	}
	return total
}
