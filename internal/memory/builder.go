// Package memory maintains durable per-user fact lists and formats them for
// injection into the model context.
package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/thebtf/contextd/pkg/models"
)

// ContextHeading is the fixed heading above the injected fact block.
const ContextHeading = "What is known about this user:"

// Reader provides the memory rows the builder needs.
type Reader interface {
	GetMemories(ctx context.Context, userID int64, categoryIDs []int64) ([]*models.UserMemory, error)
}

// Builder formats stored user memory for a turn. No token budgeting happens
// here; fact lists are bounded upstream by MaxFactsPerCategory.
type Builder struct {
	reader Reader
}

// NewBuilder creates a memory context builder.
func NewBuilder(reader Reader) *Builder {
	return &Builder{reader: reader}
}

// Context returns the bulleted memory block for a user, combining the global
// row with every selected category's row, deduplicated by exact string
// equality. Disabled settings or no stored facts yield an empty string.
func (b *Builder) Context(ctx context.Context, userID int64, categoryIDs []int64, settings models.MemorySettings) (string, error) {
	if !settings.Enabled {
		return "", nil
	}

	memories, err := b.reader.GetMemories(ctx, userID, categoryIDs)
	if err != nil {
		return "", fmt.Errorf("load memories: %w", err)
	}

	seen := make(map[string]bool)
	var facts []string
	for _, mem := range memories {
		for _, fact := range mem.Facts {
			if fact == "" || seen[fact] {
				continue
			}
			seen[fact] = true
			facts = append(facts, fact)
		}
	}
	if len(facts) == 0 {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(ContextHeading)
	for _, fact := range facts {
		sb.WriteString("\n- ")
		sb.WriteString(fact)
	}
	return sb.String(), nil
}
