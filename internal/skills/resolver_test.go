package skills

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/contextd/internal/tokens"
	"github.com/thebtf/contextd/pkg/models"
)

// fakeSource serves skills from memory in priority-then-id order, matching
// the store contract.
type fakeSource struct {
	skills []*models.Skill
}

func (f *fakeSource) ActiveSkills(_ context.Context, kind models.TriggerKind) ([]*models.Skill, error) {
	var out []*models.Skill
	for _, s := range f.skills {
		if s.Active && s.TriggerKind == kind {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSource) IndexSkills(_ context.Context, categoryIDs []int64) ([]*models.Skill, error) {
	var out []*models.Skill
	for _, s := range f.skills {
		if s.Active && s.IsIndex && s.LinkedTo(categoryIDs) {
			out = append(out, s)
		}
	}
	return out, nil
}

func newResolver(source Source) *Resolver {
	return NewResolver(source, tokens.Heuristic{}, nil)
}

func enabled(maxTokens int) models.SkillsSettings {
	return models.SkillsSettings{Enabled: true, MaxTotalTokens: maxTokens}
}

func TestResolveDisabledReturnsEmpty(t *testing.T) {
	source := &fakeSource{skills: []*models.Skill{
		{ID: 1, Name: "a", Prompt: "p", TriggerKind: models.TriggerAlways, Active: true},
	}}
	resolver := newResolver(source)

	res, err := resolver.Resolve(context.Background(), nil, "anything", models.SkillsSettings{Enabled: false})
	require.NoError(t, err)
	assert.Empty(t, res.Included)
	assert.Empty(t, res.Prompt)
	assert.Zero(t, res.TotalTokens)
}

func TestResolveAlwaysSkillsAlwaysIncluded(t *testing.T) {
	source := &fakeSource{skills: []*models.Skill{
		{ID: 1, Name: "grounding", Prompt: "Stay grounded.", TriggerKind: models.TriggerAlways, Active: true, Priority: 10, TokenEstimate: 5},
	}}
	resolver := newResolver(source)

	for _, message := range []string{"", "totally unrelated", "budget question"} {
		res, err := resolver.Resolve(context.Background(), nil, message, enabled(1000))
		require.NoError(t, err)
		require.Len(t, res.Included, 1)
		assert.Equal(t, "grounding", res.Included[0].Name)
	}
}

func TestResolveKeywordWholeWordOnly(t *testing.T) {
	source := &fakeSource{skills: []*models.Skill{
		{ID: 1, Name: "cat-skill", Prompt: "p", TriggerKind: models.TriggerKeyword,
			TriggerValue: "cat", Active: true, TokenEstimate: 2},
	}}
	resolver := newResolver(source)

	// "cat" inside "category" must not trigger.
	res, err := resolver.Resolve(context.Background(), nil, "which category is this", enabled(1000))
	require.NoError(t, err)
	assert.Empty(t, res.Included)

	res, err = resolver.Resolve(context.Background(), nil, "my cat is sick", enabled(1000))
	require.NoError(t, err)
	require.Len(t, res.Included, 1)

	// Case-insensitive, punctuation-adjacent still a word boundary.
	res, err = resolver.Resolve(context.Background(), nil, "About the CAT.", enabled(1000))
	require.NoError(t, err)
	require.Len(t, res.Included, 1)
}

func TestResolveCategoryGateOnRestrictedKeyword(t *testing.T) {
	source := &fakeSource{skills: []*models.Skill{
		{ID: 1, Name: "budget-open", Prompt: "open", TriggerKind: models.TriggerKeyword,
			TriggerValue: "budget", Active: true, TokenEstimate: 2},
		{ID: 2, Name: "budget-restricted", Prompt: "restricted", TriggerKind: models.TriggerKeyword,
			TriggerValue: "budget", Active: true, CategoryRestricted: true,
			CategoryIDs: []int64{5}, TokenEstimate: 2},
	}}
	resolver := newResolver(source)

	res, err := resolver.Resolve(context.Background(), []int64{3}, "what is the budget", enabled(1000))
	require.NoError(t, err)
	require.Len(t, res.Included, 1)
	assert.Equal(t, "budget-open", res.Included[0].Name)

	var gated *TraceEntry
	for i := range res.Trace {
		if res.Trace[i].SkillID == 2 {
			gated = &res.Trace[i]
		}
	}
	require.NotNil(t, gated)
	assert.Equal(t, StatusSkippedCategory, gated.Status)
	assert.NotContains(t, res.Prompt, "restricted")
}

func TestResolveIndexSkillsForSelectedCategories(t *testing.T) {
	source := &fakeSource{skills: []*models.Skill{
		{ID: 1, Name: "finance-index", Prompt: "finance", TriggerKind: models.TriggerCategory,
			IsIndex: true, Active: true, CategoryIDs: []int64{3}, TokenEstimate: 2},
		{ID: 2, Name: "hr-index", Prompt: "hr", TriggerKind: models.TriggerCategory,
			IsIndex: true, Active: true, CategoryIDs: []int64{5}, TokenEstimate: 2},
	}}
	resolver := newResolver(source)

	res, err := resolver.Resolve(context.Background(), []int64{3}, "hello", enabled(1000))
	require.NoError(t, err)
	require.Len(t, res.Included, 1)
	assert.Equal(t, "finance-index", res.Included[0].Name)

	// No selected categories: no index skills.
	res, err = resolver.Resolve(context.Background(), nil, "hello", enabled(1000))
	require.NoError(t, err)
	assert.Empty(t, res.Included)
}

func TestResolveDeduplicatesAcrossTriggerPaths(t *testing.T) {
	// Index skill that would also match by keyword: included once,
	// attributed to the category path.
	source := &fakeSource{skills: []*models.Skill{
		{ID: 1, Name: "finance-index", Prompt: "finance", TriggerKind: models.TriggerCategory,
			IsIndex: true, Active: true, CategoryIDs: []int64{3}, TokenEstimate: 2},
	}}
	resolver := newResolver(source)

	res, err := resolver.Resolve(context.Background(), []int64{3}, "finance", enabled(1000))
	require.NoError(t, err)
	require.Len(t, res.Included, 1)
	require.Len(t, res.Trace, 1)
	assert.Equal(t, TriggerPathCategory, res.Trace[0].Trigger)
}

func TestResolvePriorityOrdersPacking(t *testing.T) {
	source := &fakeSource{skills: []*models.Skill{
		{ID: 1, Name: "low-priority", Prompt: "LOW", TriggerKind: models.TriggerAlways,
			Active: true, Priority: 90, TokenEstimate: 5},
		{ID: 2, Name: "high-priority", Prompt: "HIGH", TriggerKind: models.TriggerAlways,
			Active: true, Priority: 10, TokenEstimate: 5},
	}}
	resolver := newResolver(source)

	res, err := resolver.Resolve(context.Background(), nil, "", enabled(1000))
	require.NoError(t, err)
	require.Len(t, res.Included, 2)
	assert.Equal(t, "high-priority", res.Included[0].Name)
	assert.Equal(t, "HIGH\n\nLOW", res.Prompt)
}

func TestResolveBudgetNeverExceeded(t *testing.T) {
	source := &fakeSource{skills: []*models.Skill{
		{ID: 1, Name: "first", Prompt: "a", TriggerKind: models.TriggerAlways,
			Active: true, Priority: 1, TokenEstimate: 40},
		{ID: 2, Name: "too-big", Prompt: "b", TriggerKind: models.TriggerAlways,
			Active: true, Priority: 2, TokenEstimate: 70},
		{ID: 3, Name: "fits-after-skip", Prompt: "c", TriggerKind: models.TriggerAlways,
			Active: true, Priority: 3, TokenEstimate: 50},
	}}
	resolver := newResolver(source)

	res, err := resolver.Resolve(context.Background(), nil, "", enabled(100))
	require.NoError(t, err)

	// Without the budget check the three skills would total 160 tokens;
	// with it the oversized middle skill is skipped whole.
	assert.LessOrEqual(t, res.TotalTokens, 100)
	require.Len(t, res.Included, 2)
	assert.Equal(t, "first", res.Included[0].Name)
	assert.Equal(t, "fits-after-skip", res.Included[1].Name)

	var skipped []string
	for _, entry := range res.Trace {
		if entry.Status == StatusSkippedBudget {
			skipped = append(skipped, entry.Name)
		}
	}
	assert.Equal(t, []string{"too-big"}, skipped)
}

func TestResolveEstimatesTokensWhenCacheEmpty(t *testing.T) {
	source := &fakeSource{skills: []*models.Skill{
		{ID: 1, Name: "uncached", Prompt: "hello world", TriggerKind: models.TriggerAlways, Active: true},
	}}
	resolver := newResolver(source)

	res, err := resolver.Resolve(context.Background(), nil, "", enabled(1000))
	require.NoError(t, err)
	assert.Equal(t, tokens.Estimate("hello world"), res.TotalTokens)
}
