package tmsearch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tmmerge/internal/models"
	"github.com/iudanet/tmmerge/internal/server/statecache"
	"github.com/iudanet/tmmerge/internal/server/storage"
)

type fakeTextFlows struct {
	err        error
	candidates []*storage.TextFlowCandidate
	lastQuery  storage.CandidateQuery
	pages      int
}

func (f *fakeTextFlows) FindTextFlowCandidates(_ context.Context, q storage.CandidateQuery) ([]*storage.TextFlowCandidate, error) {
	f.lastQuery = q
	f.pages++
	if f.err != nil {
		return nil, f.err
	}
	// имитируем фильтры хранилища по Require*, AfterID и Limit
	var out []*storage.TextFlowCandidate
	for _, c := range f.candidates {
		if q.RequireProject && c.ProjectSlug != q.ProjectSlug {
			continue
		}
		if c.TextFlowID <= q.AfterID {
			continue
		}
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeTextFlows) GetTransMemoryDetail(_ context.Context, _ string, textFlowID int64) (*models.TransMemoryDetails, error) {
	if textFlowID == 404 {
		return nil, storage.ErrTextFlowNotFound
	}
	return &models.TransMemoryDetails{ProjectSlug: "guide", ResID: "r1"}, nil
}

type fakeUnits struct {
	units  []*models.TransMemoryUnit
	called bool
	pages  int
}

func (f *fakeUnits) FindTransMemoryUnitCandidates(_ context.Context, q storage.CandidateQuery) ([]*models.TransMemoryUnit, error) {
	f.called = true
	f.pages++
	var out []*models.TransMemoryUnit
	for _, u := range f.units {
		if u.ID <= q.AfterID {
			continue
		}
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
		out = append(out, u)
	}
	return out, nil
}

type fakeLoader struct {
	ids []int64
}

func (f fakeLoader) TranslatedTextFlowIDs(context.Context, string) ([]int64, error) {
	return f.ids, nil
}

var (
	t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	destination = &models.TextFlow{
		ID:       1,
		ResID:    "save",
		Context:  "menu",
		Contents: []string{"Save the file"},
		Document: &models.Document{ProjectSlug: "guide", VersionSlug: "1.0", DocID: "ui.po", SourceLocale: "en-US"},
	}
)

func candidate(id int64, project, doc, context, source, target string, changed time.Time) *storage.TextFlowCandidate {
	return &storage.TextFlowCandidate{
		TextFlowID:     id,
		ProjectSlug:    project,
		DocID:          doc,
		Context:        context,
		SourceContents: []string{source},
		TargetContents: []string{target},
		LastChanged:    changed,
	}
}

func newTestService(tfs *fakeTextFlows, units *fakeUnits, translated ...int64) *Service {
	return newPagedTestService(tfs, units, 0, translated...)
}

func newPagedTestService(tfs *fakeTextFlows, units *fakeUnits, limit int, translated ...int64) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cache := statecache.New(logger, fakeLoader{ids: translated})
	return NewService(logger, tfs, units, cache, limit)
}

func baseQuery() Query {
	return Query{
		TextFlow:         destination,
		SourceLocale:     "en-US",
		TargetLocale:     "de",
		ThresholdPercent: 80,
	}
}

func TestSearchBestMatch_PicksHighestScore(t *testing.T) {
	tfs := &fakeTextFlows{candidates: []*storage.TextFlowCandidate{
		candidate(10, "guide", "ui.po", "menu", "Save the files", "Dateien speichern", t0),
		candidate(11, "guide", "ui.po", "menu", "Save the file", "Datei speichern", t0),
	}}
	s := newTestService(tfs, &fakeUnits{}, 10, 11)

	item, err := s.SearchBestMatch(context.Background(), baseQuery())
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, models.MatchTextFlow, item.MatchType)
	assert.Equal(t, int64(11), item.SourceID())
	assert.Equal(t, 100.0, item.SimilarityPercent)
	assert.Equal(t, []string{"Datei speichern"}, item.TargetContents)

	// длина "save the file" = 13, порог 80
	assert.Equal(t, 10, tfs.lastQuery.MinLength)
	assert.Equal(t, 17, tfs.lastQuery.MaxLength)
	assert.Equal(t, int64(1), tfs.lastQuery.ExcludeTextFlowID)
}

func TestSearchBestMatch_ScoresEveryPage(t *testing.T) {
	var candidates []*storage.TextFlowCandidate
	var translated []int64
	for id := int64(10); id < 15; id++ {
		candidates = append(candidates, candidate(id, "guide", "ui.po", "menu", "Save the fil", "Datei", t0))
		translated = append(translated, id)
	}
	// лучший кандидат на последней странице
	candidates = append(candidates, candidate(15, "guide", "ui.po", "menu", "Save the file", "Datei speichern", t0))
	translated = append(translated, 15)

	units := &fakeUnits{units: []*models.TransMemoryUnit{
		{ID: 1, Variants: map[string]string{"en-US": "Save a file", "de": "X"}},
		{ID: 2, Variants: map[string]string{"en-US": "Save the fil", "de": "Y"}},
		{ID: 3, Variants: map[string]string{"en-US": "Save the file", "de": "Z"}},
	}}
	tfs := &fakeTextFlows{candidates: candidates}
	s := newPagedTestService(tfs, units, 2, translated...)

	item, err := s.SearchBestMatch(context.Background(), baseQuery())
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, int64(15), item.SourceID())
	assert.Equal(t, 100.0, item.SimilarityPercent)

	// 6 строк по 2: три полные страницы и пустая после id 15
	assert.Equal(t, 4, tfs.pages)
	assert.Equal(t, int64(15), tfs.lastQuery.AfterID)
	assert.Equal(t, 2, units.pages)
}

func TestSearchBestMatch_BelowThreshold(t *testing.T) {
	tfs := &fakeTextFlows{candidates: []*storage.TextFlowCandidate{
		candidate(10, "guide", "ui.po", "menu", "Open a window", "Fenster öffnen", t0),
	}}
	s := newTestService(tfs, &fakeUnits{}, 10)

	item, err := s.SearchBestMatch(context.Background(), baseQuery())
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestSearchBestMatch_OnlyTranslatedTargets(t *testing.T) {
	tfs := &fakeTextFlows{candidates: []*storage.TextFlowCandidate{
		candidate(10, "guide", "ui.po", "menu", "Save the file", "Datei speichern?", t0),
	}}
	// 10 не переведен (например NeedReview)
	s := newTestService(tfs, &fakeUnits{})

	item, err := s.SearchBestMatch(context.Background(), baseQuery())
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestSearchBestMatch_TieBreaks(t *testing.T) {
	tests := []struct {
		name       string
		candidates []*storage.TextFlowCandidate
		units      []*models.TransMemoryUnit
		wantID     int64
		wantType   models.MatchType
	}{
		{
			name: "more equal dimensions",
			candidates: []*storage.TextFlowCandidate{
				candidate(10, "other", "x.po", "menu", "Save the file", "A", t0),
				candidate(11, "guide", "ui.po", "menu", "Save the file", "B", t0),
			},
			wantID:   11,
			wantType: models.MatchTextFlow,
		},
		{
			name: "internal before imported",
			candidates: []*storage.TextFlowCandidate{
				candidate(10, "other", "x.po", "", "Save the file", "A", t0),
			},
			units: []*models.TransMemoryUnit{
				{ID: 5, TMSlug: "legacy", UniqueID: "u5", Variants: map[string]string{"en-US": "Save the file", "de": "C"}, LastChanged: t0.Add(time.Hour)},
			},
			wantID:   10,
			wantType: models.MatchTextFlow,
		},
		{
			name: "most recent",
			candidates: []*storage.TextFlowCandidate{
				candidate(10, "guide", "ui.po", "menu", "Save the file", "A", t0),
				candidate(11, "guide", "ui.po", "menu", "Save the file", "B", t0.Add(time.Hour)),
			},
			wantID:   11,
			wantType: models.MatchTextFlow,
		},
		{
			name: "lowest id",
			candidates: []*storage.TextFlowCandidate{
				candidate(12, "guide", "ui.po", "menu", "Save the file", "A", t0),
				candidate(11, "guide", "ui.po", "menu", "Save the file", "B", t0),
			},
			wantID:   11,
			wantType: models.MatchTextFlow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestService(&fakeTextFlows{candidates: tt.candidates}, &fakeUnits{units: tt.units}, 10, 11, 12)
			item, err := s.SearchBestMatch(context.Background(), baseQuery())
			require.NoError(t, err)
			require.NotNil(t, item)
			assert.Equal(t, tt.wantID, item.SourceID())
			assert.Equal(t, tt.wantType, item.MatchType)
		})
	}
}

func TestSearchBestMatch_GroupsIdenticalContents(t *testing.T) {
	tfs := &fakeTextFlows{candidates: []*storage.TextFlowCandidate{
		candidate(20, "guide", "a.po", "menu", "Save the file", "Datei speichern", t0),
		candidate(21, "guide", "ui.po", "menu", "Save the file", "Datei speichern", t0),
		candidate(22, "guide", "ui.po", "menu", "Save the file", "Speichern", t0),
	}}
	s := newTestService(tfs, &fakeUnits{}, 20, 21, 22)

	item, err := s.SearchBestMatch(context.Background(), baseQuery())
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, []int64{21, 20}, item.SourceIDList)
}

func TestSearchBestMatch_RejectDifferentProject(t *testing.T) {
	tfs := &fakeTextFlows{candidates: []*storage.TextFlowCandidate{
		candidate(10, "other", "ui.po", "menu", "Save the file", "Datei speichern", t0),
	}}
	units := &fakeUnits{units: []*models.TransMemoryUnit{
		{ID: 5, UniqueID: "u5", Variants: map[string]string{"en-US": "Save the file", "de": "Datei speichern"}},
	}}
	s := newTestService(tfs, units, 10)

	q := baseQuery()
	q.RejectDifferentProject = true
	item, err := s.SearchBestMatch(context.Background(), q)
	require.NoError(t, err)
	assert.Nil(t, item)
	assert.True(t, tfs.lastQuery.RequireProject)
	// импорт без проекта не запрашивается вовсе
	assert.False(t, units.called)
}

func TestSearchBestMatch_Imported(t *testing.T) {
	units := &fakeUnits{units: []*models.TransMemoryUnit{
		{ID: 5, TMSlug: "legacy", UniqueID: "u5", Context: "toolbar", Variants: map[string]string{"en-US": "Save the file", "de": "Datei sichern"}},
		{ID: 6, TMSlug: "legacy", UniqueID: "u6", Variants: map[string]string{"en-US": "Save the file", "de": "Datei speichern"}},
	}}
	s := newTestService(&fakeTextFlows{}, units)

	q := baseQuery()
	q.RejectDifferentContext = true
	item, err := s.SearchBestMatch(context.Background(), q)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, models.MatchImported, item.MatchType)
	assert.Equal(t, int64(6), item.SourceID())
	assert.Equal(t, "legacy", item.OriginDocument)
	assert.Equal(t, []string{"Datei speichern"}, item.TargetContents)
}

func TestSearchBestMatch_PluralForms(t *testing.T) {
	plural := *destination
	plural.Contents = []string{"%d file", "%d files"}

	tfs := &fakeTextFlows{candidates: []*storage.TextFlowCandidate{
		{TextFlowID: 10, ProjectSlug: "guide", DocID: "ui.po", Context: "menu",
			SourceContents: []string{"%d file", "%d files"}, TargetContents: []string{"%d Datei", "%d Dateien"}},
	}}
	units := &fakeUnits{units: []*models.TransMemoryUnit{
		{ID: 5, Variants: map[string]string{"en-US": "%d file", "de": "%d Datei"}},
	}}
	s := newTestService(tfs, units, 10)

	q := baseQuery()
	q.TextFlow = &plural
	item, err := s.SearchBestMatch(context.Background(), q)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, []string{"%d Datei", "%d Dateien"}, item.TargetContents)
	assert.Zero(t, tfs.lastQuery.MaxLength)
	assert.False(t, units.called)
}

func TestSearchBestMatch_StorageError(t *testing.T) {
	boom := errors.New("boom")
	s := newTestService(&fakeTextFlows{err: boom}, &fakeUnits{})

	_, err := s.SearchBestMatch(context.Background(), baseQuery())
	assert.ErrorIs(t, err, boom)
}

func TestGetTransMemoryDetail(t *testing.T) {
	s := newTestService(&fakeTextFlows{}, &fakeUnits{})

	d, err := s.GetTransMemoryDetail(context.Background(), "de", 10)
	require.NoError(t, err)
	assert.Equal(t, "r1", d.ResID)

	_, err = s.GetTransMemoryDetail(context.Background(), "de", 404)
	assert.ErrorIs(t, err, storage.ErrTextFlowNotFound)
}
