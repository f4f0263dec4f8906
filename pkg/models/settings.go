// Package models contains domain models for contextd.
package models

// SkillsSettings controls the skill resolver.
type SkillsSettings struct {
	Enabled        bool `json:"enabled"`
	MaxTotalTokens int  `json:"max_total_tokens"`
	DebugMode      bool `json:"debug_mode"`
}

// SummarizationSettings controls the thread summarizer.
type SummarizationSettings struct {
	Enabled                 bool `json:"enabled"`
	TokenThreshold          int  `json:"token_threshold"`
	KeepRecentMessages      int  `json:"keep_recent_messages"`
	SummaryMaxTokens        int  `json:"summary_max_tokens"`
	ArchiveOriginalMessages bool `json:"archive_original_messages"`
}

// MemorySettings controls memory extraction and retrieval.
type MemorySettings struct {
	Enabled                bool `json:"enabled"`
	ExtractionThreshold    int  `json:"extraction_threshold"`
	MaxFactsPerCategory    int  `json:"max_facts_per_category"`
	AutoExtractOnThreadEnd bool `json:"auto_extract_on_thread_end"`
}

// DefaultSkillsSettings returns the defaults used when no settings row exists.
func DefaultSkillsSettings() SkillsSettings {
	return SkillsSettings{
		Enabled:        true,
		MaxTotalTokens: 2000,
	}
}

// DefaultSummarizationSettings returns the defaults used when no settings row exists.
func DefaultSummarizationSettings() SummarizationSettings {
	return SummarizationSettings{
		Enabled:                 true,
		TokenThreshold:          100000,
		KeepRecentMessages:      10,
		SummaryMaxTokens:        1000,
		ArchiveOriginalMessages: true,
	}
}

// DefaultMemorySettings returns the defaults used when no settings row exists.
func DefaultMemorySettings() MemorySettings {
	return MemorySettings{
		Enabled:                true,
		ExtractionThreshold:    4,
		MaxFactsPerCategory:    20,
		AutoExtractOnThreadEnd: true,
	}
}
