// Package db provides GORM-based database operations for contextd.
package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/contextd/pkg/models"
)

func TestSettingsDefaultsWhenMissing(t *testing.T) {
	store := testStore(t)
	settings := NewSettingsStore(store)
	ctx := context.Background()

	skills, err := settings.GetSkillsSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSkillsSettings(), skills)

	summarization, err := settings.GetSummarizationSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSummarizationSettings(), summarization)

	memory, err := settings.GetMemorySettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultMemorySettings(), memory)
}

func TestSettingsLastWriteWins(t *testing.T) {
	store := testStore(t)
	settings := NewSettingsStore(store)
	ctx := context.Background()

	first := models.SummarizationSettings{
		Enabled:            true,
		TokenThreshold:     50000,
		KeepRecentMessages: 5,
		SummaryMaxTokens:   500,
	}
	require.NoError(t, settings.PutSummarizationSettings(ctx, first))

	second := first
	second.TokenThreshold = 80000
	require.NoError(t, settings.PutSummarizationSettings(ctx, second))

	got, err := settings.GetSummarizationSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 80000, got.TokenThreshold)
	assert.Equal(t, 5, got.KeepRecentMessages)
}

func TestSettingsRoundTripSkills(t *testing.T) {
	store := testStore(t)
	settings := NewSettingsStore(store)
	ctx := context.Background()

	want := models.SkillsSettings{Enabled: false, MaxTotalTokens: 1234, DebugMode: true}
	require.NoError(t, settings.PutSkillsSettings(ctx, want))

	got, err := settings.GetSkillsSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
