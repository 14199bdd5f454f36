package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tmmerge/internal/models"
	"github.com/iudanet/tmmerge/internal/server/storage"
)

func TestTransMemoryStorage(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	tm, err := s.SaveTranslationMemory(ctx, &models.TranslationMemory{Slug: "legacy", Description: "old tool", CreatedAt: time.Now()})
	require.NoError(t, err)
	assert.NotZero(t, tm.ID)

	// повторное сохранение без описания не стирает его
	again, err := s.SaveTranslationMemory(ctx, &models.TranslationMemory{Slug: "legacy", CreatedAt: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, tm.ID, again.ID)
	assert.Equal(t, "old tool", again.Description)

	units := []*models.TransMemoryUnit{
		{UniqueID: "u1", SourceLocale: "en-US", Variants: map[string]string{"en-US": "Save file", "de": "Datei speichern"}, LastChanged: time.Now()},
		{UniqueID: "u2", SourceLocale: "en-US", Context: "menu", Variants: map[string]string{"en-US": "Open", "fr": "Ouvrir"}, LastChanged: time.Now()},
	}
	n, err := s.SaveTransMemoryUnits(ctx, "legacy", units)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// upsert по unique id
	n, err = s.SaveTransMemoryUnits(ctx, "legacy", []*models.TransMemoryUnit{
		{UniqueID: "u1", SourceLocale: "en-US", Variants: map[string]string{"en-US": "Save file", "de": "Datei sichern"}, LastChanged: time.Now()},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	candidates, err := s.FindTransMemoryUnitCandidates(ctx, storage.CandidateQuery{SourceLocale: "en-US", TargetLocale: "de"})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "u1", candidates[0].UniqueID)
	assert.Equal(t, "legacy", candidates[0].TMSlug)
	assert.Equal(t, "Datei sichern", candidates[0].Variants["de"])

	candidates, err = s.FindTransMemoryUnitCandidates(ctx, storage.CandidateQuery{
		SourceLocale: "en-US", TargetLocale: "fr", Context: "toolbar", RequireContext: true,
	})
	require.NoError(t, err)
	assert.Empty(t, candidates)

	// u1 без контекста проходит любой фильтр по контексту
	candidates, err = s.FindTransMemoryUnitCandidates(ctx, storage.CandidateQuery{
		SourceLocale: "en-US", TargetLocale: "de", Context: "toolbar", RequireContext: true,
	})
	require.NoError(t, err)
	assert.Len(t, candidates, 1)

	// страница после u1 пуста
	candidates, err = s.FindTransMemoryUnitCandidates(ctx, storage.CandidateQuery{
		SourceLocale: "en-US", TargetLocale: "de", AfterID: units[0].ID, Limit: 1,
	})
	require.NoError(t, err)
	assert.Empty(t, candidates)

	unit, err := s.GetTransMemoryUnit(ctx, units[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "menu", unit.Context)
	assert.Equal(t, map[string]string{"en-US": "Open", "fr": "Ouvrir"}, unit.Variants)

	_, err = s.GetTransMemoryUnit(ctx, 9999)
	assert.ErrorIs(t, err, storage.ErrTransMemoryNotFound)

	_, err = s.SaveTransMemoryUnits(ctx, "missing", units)
	assert.ErrorIs(t, err, storage.ErrTransMemoryNotFound)
}
