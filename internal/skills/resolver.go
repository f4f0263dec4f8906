// Package skills selects and packs prompt fragments for a conversation
// turn. Resolution is pure selection and string composition; no LLM call is
// made here.
package skills

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/contextd/internal/telemetry"
	"github.com/thebtf/contextd/internal/tokens"
	"github.com/thebtf/contextd/pkg/models"
)

// Trigger attribution paths, in precedence order. A skill activated by more
// than one path is attributed to the first that found it.
const (
	TriggerPathAlways   = "always"
	TriggerPathCategory = "category"
	TriggerPathKeyword  = "keyword"
)

// Trace entry statuses.
const (
	StatusIncluded        = "included"
	StatusSkippedBudget   = "skipped_budget"
	StatusSkippedCategory = "skipped_category"
)

// Source provides the skills visible to the resolver.
type Source interface {
	ActiveSkills(ctx context.Context, kind models.TriggerKind) ([]*models.Skill, error)
	IndexSkills(ctx context.Context, categoryIDs []int64) ([]*models.Skill, error)
}

// TraceEntry records why a skill was or was not included. Budget and
// category skips live here, never in an error.
type TraceEntry struct {
	SkillID int64  `json:"skill_id"`
	Name    string `json:"name"`
	Trigger string `json:"trigger"`
	Status  string `json:"status"`
	Tokens  int    `json:"tokens"`
}

// Resolution is the result of one skill resolution pass.
type Resolution struct {
	Included    []*models.Skill `json:"included"`
	Prompt      string          `json:"prompt"`
	TotalTokens int             `json:"total_tokens"`
	Trace       []TraceEntry    `json:"trace"`
}

// Resolver selects, orders, and budget-packs skills for a turn.
type Resolver struct {
	source    Source
	estimator tokens.Estimator
	metrics   *telemetry.Metrics
}

// NewResolver creates a skill resolver.
func NewResolver(source Source, estimator tokens.Estimator, metrics *telemetry.Metrics) *Resolver {
	if estimator == nil {
		estimator = tokens.Heuristic{}
	}
	return &Resolver{source: source, estimator: estimator, metrics: metrics}
}

// candidate pairs a skill with the trigger path that activated it.
type candidate struct {
	skill   *models.Skill
	trigger string
	order   int
}

// Resolve runs the selection algorithm: always-on skills, then each selected
// category's index skill, then keyword matches against the user message;
// priority-ordered and greedily packed into the settings token budget.
// Disabled settings yield an empty resolution, never an error.
func (r *Resolver) Resolve(ctx context.Context, categoryIDs []int64, userMessage string, settings models.SkillsSettings) (*Resolution, error) {
	resolution := &Resolution{}
	if !settings.Enabled {
		return resolution, nil
	}

	seen := make(map[int64]bool)
	var candidates []candidate
	collect := func(skill *models.Skill, trigger string) {
		if seen[skill.ID] {
			return
		}
		seen[skill.ID] = true
		candidates = append(candidates, candidate{skill: skill, trigger: trigger, order: len(candidates)})
	}

	// 1. Always-on skills, unconditionally.
	always, err := r.source.ActiveSkills(ctx, models.TriggerAlways)
	if err != nil {
		return nil, fmt.Errorf("load always skills: %w", err)
	}
	for _, skill := range always {
		collect(skill, TriggerPathAlways)
	}

	// 2. Index skill for every selected category.
	if len(categoryIDs) > 0 {
		indexSkills, err := r.source.IndexSkills(ctx, categoryIDs)
		if err != nil {
			return nil, fmt.Errorf("load index skills: %w", err)
		}
		for _, skill := range indexSkills {
			collect(skill, TriggerPathCategory)
		}
	}

	// 3. Keyword matches, gated by category restriction.
	keywordSkills, err := r.source.ActiveSkills(ctx, models.TriggerKeyword)
	if err != nil {
		return nil, fmt.Errorf("load keyword skills: %w", err)
	}
	for _, skill := range keywordSkills {
		if seen[skill.ID] {
			continue
		}
		matched, keyword := matchesKeyword(skill, userMessage)
		if !matched {
			continue
		}
		if skill.CategoryRestricted && len(categoryIDs) > 0 && !skill.LinkedTo(categoryIDs) {
			// Keyword hit outside the skill's categories: traced, not escalated.
			resolution.Trace = append(resolution.Trace, TraceEntry{
				SkillID: skill.ID,
				Name:    skill.Name,
				Trigger: TriggerPathKeyword,
				Status:  StatusSkippedCategory,
			})
			if settings.DebugMode {
				log.Debug().Str("skill", skill.Name).Str("keyword", keyword).
					Msg("Keyword skill skipped by category gate")
			}
			continue
		}
		collect(skill, TriggerPathKeyword)
	}

	// 4. Ascending priority; ties keep collection order (always > category > keyword).
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].skill.Priority != candidates[j].skill.Priority {
			return candidates[i].skill.Priority < candidates[j].skill.Priority
		}
		return candidates[i].order < candidates[j].order
	})

	// 5. Greedy packing; an overflowing fragment is skipped whole.
	var prompts []string
	for _, c := range candidates {
		cost := c.skill.TokenEstimate
		if cost <= 0 {
			cost = r.estimator.Estimate(c.skill.Prompt)
		}
		entry := TraceEntry{
			SkillID: c.skill.ID,
			Name:    c.skill.Name,
			Trigger: c.trigger,
			Tokens:  cost,
		}
		if resolution.TotalTokens+cost > settings.MaxTotalTokens {
			entry.Status = StatusSkippedBudget
			resolution.Trace = append(resolution.Trace, entry)
			continue
		}
		entry.Status = StatusIncluded
		resolution.Trace = append(resolution.Trace, entry)
		resolution.Included = append(resolution.Included, c.skill)
		resolution.TotalTokens += cost
		prompts = append(prompts, c.skill.Prompt)
	}

	resolution.Prompt = strings.Join(prompts, "\n\n")

	skipped := 0
	for _, entry := range resolution.Trace {
		if entry.Status == StatusSkippedBudget {
			skipped++
		}
	}
	r.metrics.RecordResolution(ctx, skipped)
	if settings.DebugMode {
		log.Debug().Int("included", len(resolution.Included)).
			Int("total_tokens", resolution.TotalTokens).
			Int("budget_skips", skipped).
			Msg("Skill resolution complete")
	}

	return resolution, nil
}

// matchesKeyword reports whether any of the skill's keywords appears in the
// message as a whole word, and returns the first keyword that matched.
func matchesKeyword(skill *models.Skill, message string) (bool, string) {
	for _, keyword := range skill.Keywords() {
		pattern := `(?i)\b` + regexp.QuoteMeta(keyword) + `\b`
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		if re.MatchString(message) {
			return true, keyword
		}
	}
	return false, ""
}
