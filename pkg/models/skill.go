// Package models contains domain models for contextd.
package models

import "strings"

// TriggerKind is the activation rule for a skill.
type TriggerKind string

const (
	TriggerAlways   TriggerKind = "always"
	TriggerCategory TriggerKind = "category"
	TriggerKeyword  TriggerKind = "keyword"
)

// Skill is a reusable prompt fragment injected into the model context
// when its trigger condition matches the current turn.
type Skill struct {
	ID                 int64       `json:"id"`
	Name               string      `json:"name"`
	Description        string      `json:"description,omitempty"`
	Prompt             string      `json:"prompt"`
	TriggerKind        TriggerKind `json:"trigger_kind"`
	TriggerValue       string      `json:"trigger_value,omitempty"`
	CategoryRestricted bool        `json:"category_restricted"`
	IsIndex            bool        `json:"is_index"`
	Priority           int         `json:"priority"`
	Active             bool        `json:"active"`
	Core               bool        `json:"core"`
	TokenEstimate      int         `json:"token_estimate"`
	CategoryIDs        []int64     `json:"category_ids,omitempty"`
	CreatedAt          string      `json:"created_at"`
	CreatedAtEpoch     int64       `json:"created_at_epoch"`
}

// Keywords returns the skill's trigger keywords, trimmed and lowercased.
// Only meaningful for keyword-trigger skills.
func (s *Skill) Keywords() []string {
	if s.TriggerValue == "" {
		return nil
	}
	parts := strings.Split(s.TriggerValue, ",")
	keywords := make([]string, 0, len(parts))
	for _, p := range parts {
		kw := strings.ToLower(strings.TrimSpace(p))
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return keywords
}

// LinkedTo reports whether the skill is linked to any of the given categories.
func (s *Skill) LinkedTo(categoryIDs []int64) bool {
	for _, linked := range s.CategoryIDs {
		for _, selected := range categoryIDs {
			if linked == selected {
				return true
			}
		}
	}
	return false
}
