package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tmmerge/internal/models"
	"github.com/iudanet/tmmerge/internal/server/storage"
)

func saveTestDocument(t *testing.T, ctx context.Context, s *Storage, project, version, docID string, sources ...string) []*models.TextFlow {
	flows := make([]*models.TextFlow, 0, len(sources))
	for i, src := range sources {
		flows = append(flows, &models.TextFlow{
			ResID:    docID + "-" + string(rune('a'+i)),
			Contents: []string{src},
		})
	}
	_, err := s.SaveDocument(ctx, &models.Document{
		ProjectSlug:  project,
		VersionSlug:  version,
		DocID:        docID,
		SourceLocale: "en-US",
	}, flows)
	require.NoError(t, err)
	return flows
}

func saveTestTarget(t *testing.T, ctx context.Context, s *Storage, textFlowID int64, locale string, state models.ContentState, contents ...string) {
	err := s.RunInTx(ctx, func(tx storage.TargetTx) error {
		return tx.SaveTarget(ctx, &models.TextFlowTarget{
			TextFlowID:  textFlowID,
			LocaleID:    locale,
			State:       state,
			Contents:    contents,
			Version:     1,
			LastChanged: time.Now(),
		})
	})
	require.NoError(t, err)
}

func TestDocumentStorage_SaveDocument(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	createTestWorkspace(t, ctx, s, "guide", "1.0")

	flows := saveTestDocument(t, ctx, s, "guide", "1.0", "intro.po", "Hello", "World")
	require.Len(t, flows, 2)
	assert.NotZero(t, flows[0].ID)
	assert.Equal(t, 1, flows[1].Position)

	doc, err := s.GetDocument(ctx, "guide", "1.0", "intro.po")
	require.NoError(t, err)
	assert.Equal(t, "en-US", doc.SourceLocale)

	saveTestTarget(t, ctx, s, flows[0].ID, "de", models.StateTranslated, "Hallo")

	// повторная загрузка: intro.po-a сохраняется, intro.po-b удаляется
	again := []*models.TextFlow{
		{ResID: "intro.po-new", Contents: []string{"New"}},
		{ResID: "intro.po-a", Contents: []string{"Hello!"}},
	}
	_, err = s.SaveDocument(ctx, doc, again)
	require.NoError(t, err)
	assert.Equal(t, flows[0].ID, again[1].ID)

	listed, err := s.ListTextFlows(ctx, models.WorkspaceID{ProjectSlug: "guide", VersionSlug: "1.0", LocaleID: "de"}, "intro.po")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "intro.po-new", listed[0].ResID)
	assert.Nil(t, listed[0].Target)
	assert.Equal(t, []string{"Hello!"}, listed[1].Contents)
	require.NotNil(t, listed[1].Target)
	assert.Equal(t, []string{"Hallo"}, listed[1].Target.Contents)

	_, err = s.GetDocument(ctx, "guide", "1.0", "missing.po")
	assert.ErrorIs(t, err, storage.ErrDocumentNotFound)
}

func TestDocumentStorage_SaveDocumentErrors(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	createTestWorkspace(t, ctx, s, "guide", "1.0")

	_, err := s.SaveDocument(ctx, &models.Document{ProjectSlug: "guide", VersionSlug: "9.9", DocID: "a", SourceLocale: "en-US"}, nil)
	assert.ErrorIs(t, err, storage.ErrVersionNotFound)

	_, err = s.SaveDocument(ctx, &models.Document{ProjectSlug: "guide", VersionSlug: "1.0", DocID: "a", SourceLocale: "zz"}, nil)
	assert.ErrorIs(t, err, storage.ErrLocaleNotFound)
}

func TestTextFlowStorage_FindTextFlowsByIDs(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	createTestWorkspace(t, ctx, s, "guide", "1.0")
	createTestWorkspace(t, ctx, s, "frozen", "1.0")
	flows := saveTestDocument(t, ctx, s, "guide", "1.0", "intro.po", "One", "Two", "Three")
	foreign := saveTestDocument(t, ctx, s, "frozen", "1.0", "intro.po", "One")
	saveTestTarget(t, ctx, s, flows[1].ID, "de", models.StateNeedReview, "Zwei")
	saveTestTarget(t, ctx, s, flows[1].ID, "fr", models.StateTranslated, "Deux")

	guideDE := models.WorkspaceID{ProjectSlug: "guide", VersionSlug: "1.0", LocaleID: "de"}
	found, err := s.FindTextFlowsByIDs(ctx, guideDE, []int64{flows[2].ID, flows[1].ID, foreign[0].ID, 9999})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, flows[1].ID, found[0].ID)
	require.NotNil(t, found[0].Target)
	assert.Equal(t, models.StateNeedReview, found[0].Target.State)
	assert.Equal(t, "de", found[0].Target.LocaleID)
	assert.Equal(t, "guide", found[0].Document.ProjectSlug)
	assert.Nil(t, found[1].Target)

	// id другого проекта не загружается через этот workspace
	found, err = s.FindTextFlowsByIDs(ctx, models.WorkspaceID{ProjectSlug: "guide", VersionSlug: "2.0", LocaleID: "de"}, []int64{flows[1].ID})
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = s.FindTextFlowsByIDs(ctx, guideDE, nil)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestTextFlowStorage_FindTextFlowCandidates(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	createTestWorkspace(t, ctx, s, "guide", "1.0")
	createTestWorkspace(t, ctx, s, "other", "1.0")

	guide := saveTestDocument(t, ctx, s, "guide", "1.0", "a.po", "Save file", "Open file")
	other := saveTestDocument(t, ctx, s, "other", "1.0", "b.po", "Save file")
	saveTestTarget(t, ctx, s, guide[1].ID, "de", models.StateTranslated, "Datei öffnen")
	saveTestTarget(t, ctx, s, other[0].ID, "de", models.StateApproved, "Datei speichern")

	candidates, err := s.FindTextFlowCandidates(ctx, storage.CandidateQuery{
		SourceLocale:      "en-US",
		TargetLocale:      "de",
		ExcludeTextFlowID: guide[0].ID,
	})
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	candidates, err = s.FindTextFlowCandidates(ctx, storage.CandidateQuery{
		SourceLocale:      "en-US",
		TargetLocale:      "de",
		ExcludeTextFlowID: guide[0].ID,
		ProjectSlug:       "guide",
		RequireProject:    true,
	})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, guide[1].ID, candidates[0].TextFlowID)
	assert.Equal(t, []string{"Datei öffnen"}, candidates[0].TargetContents)
	assert.Equal(t, "a.po", candidates[0].DocID)

	// все исходные тексты короче 20 символов
	candidates, err = s.FindTextFlowCandidates(ctx, storage.CandidateQuery{
		SourceLocale: "en-US",
		TargetLocale: "de",
		MinLength:    20,
	})
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestTextFlowStorage_FindTextFlowCandidates_StateAndPaging(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	createTestWorkspace(t, ctx, s, "guide", "1.0")
	flows := saveTestDocument(t, ctx, s, "guide", "1.0", "a.po", "One", "Two", "Three", "Four", "Five", "Six")
	saveTestTarget(t, ctx, s, flows[0].ID, "de", models.StateNeedReview, "Eins")
	saveTestTarget(t, ctx, s, flows[1].ID, "de", models.StateTranslated, "Zwei")
	saveTestTarget(t, ctx, s, flows[2].ID, "de", models.StateRejected, "Drei")
	saveTestTarget(t, ctx, s, flows[3].ID, "de", models.StateApproved, "Vier")
	saveTestTarget(t, ctx, s, flows[4].ID, "de", models.StateTranslated, "Fünf")
	// flows[5] без перевода

	cq := storage.CandidateQuery{SourceLocale: "en-US", TargetLocale: "de", Limit: 2}

	page, err := s.FindTextFlowCandidates(ctx, cq)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, flows[1].ID, page[0].TextFlowID)
	assert.Equal(t, flows[3].ID, page[1].TextFlowID)

	cq.AfterID = page[1].TextFlowID
	page, err = s.FindTextFlowCandidates(ctx, cq)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, flows[4].ID, page[0].TextFlowID)

	cq.AfterID = page[0].TextFlowID
	page, err = s.FindTextFlowCandidates(ctx, cq)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestTextFlowStorage_GetTransMemoryDetail(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	createTestWorkspace(t, ctx, s, "guide", "1.0")
	flows := saveTestDocument(t, ctx, s, "guide", "1.0", "a.po", "Hello")
	saveTestTarget(t, ctx, s, flows[0].ID, "de", models.StateTranslated, "Hallo")

	d, err := s.GetTransMemoryDetail(ctx, "de", flows[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Project guide", d.ProjectName)
	assert.Equal(t, "guide", d.ProjectSlug)
	assert.Equal(t, "1.0", d.IterationName)
	assert.Equal(t, "a.po", d.DocID)
	assert.Equal(t, "a.po-a", d.ResID)
	assert.False(t, d.LastModified.IsZero())

	_, err = s.GetTransMemoryDetail(ctx, "de", 9999)
	assert.ErrorIs(t, err, storage.ErrTextFlowNotFound)
}

func TestTextFlowStorage_TranslatedTextFlowIDs(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	createTestWorkspace(t, ctx, s, "guide", "1.0")
	flows := saveTestDocument(t, ctx, s, "guide", "1.0", "a.po", "One", "Two", "Three")
	saveTestTarget(t, ctx, s, flows[0].ID, "de", models.StateTranslated, "Eins")
	saveTestTarget(t, ctx, s, flows[1].ID, "de", models.StateNeedReview, "Zwei")
	saveTestTarget(t, ctx, s, flows[2].ID, "de", models.StateApproved, "Drei")

	ids, err := s.TranslatedTextFlowIDs(ctx, "de")
	require.NoError(t, err)
	assert.Equal(t, []int64{flows[0].ID, flows[2].ID}, ids)
}

func TestTargetStorage_RunInTx(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	createTestWorkspace(t, ctx, s, "guide", "1.0")
	flows := saveTestDocument(t, ctx, s, "guide", "1.0", "a.po", "One")
	id := flows[0].ID
	ws := models.WorkspaceID{ProjectSlug: "guide", VersionSlug: "1.0", LocaleID: "de"}

	t.Run("commit", func(t *testing.T) {
		err := s.RunInTx(ctx, func(tx storage.TargetTx) error {
			ok, err := tx.TextFlowExists(ctx, ws, id)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = tx.TextFlowExists(ctx, models.WorkspaceID{ProjectSlug: "frozen", VersionSlug: "1.0"}, id)
			require.NoError(t, err)
			assert.False(t, ok)

			got, err := tx.GetTarget(ctx, id, "de")
			require.NoError(t, err)
			assert.Nil(t, got)

			return tx.SaveTarget(ctx, &models.TextFlowTarget{
				TextFlowID: id, LocaleID: "de", State: models.StateTranslated,
				Contents: []string{"Eins"}, Version: 1, LastChanged: time.Now(),
			})
		})
		require.NoError(t, err)
	})

	t.Run("rollback", func(t *testing.T) {
		boom := errors.New("boom")
		err := s.RunInTx(ctx, func(tx storage.TargetTx) error {
			prev, err := tx.GetTarget(ctx, id, "de")
			require.NoError(t, err)
			require.NoError(t, tx.AppendHistory(ctx, prev))
			require.NoError(t, tx.SaveTarget(ctx, &models.TextFlowTarget{
				TextFlowID: id, LocaleID: "de", State: models.StateNeedReview,
				Contents: []string{"Ein"}, Version: 2, LastChanged: time.Now(),
			}))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		found, err := s.FindTextFlowsByIDs(ctx, ws, []int64{id})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, 1, found[0].Target.Version)

		history, err := s.TargetHistory(ctx, id, "de")
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("history", func(t *testing.T) {
		err := s.RunInTx(ctx, func(tx storage.TargetTx) error {
			prev, err := tx.GetTarget(ctx, id, "de")
			if err != nil {
				return err
			}
			if err := tx.AppendHistory(ctx, prev); err != nil {
				return err
			}
			next := *prev
			next.Version = 2
			next.Contents = []string{"Eins!"}
			return tx.SaveTarget(ctx, &next)
		})
		require.NoError(t, err)

		history, err := s.TargetHistory(ctx, id, "de")
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, []string{"Eins"}, history[0].Contents)
		assert.Equal(t, 1, history[0].Version)
	})

	t.Run("unknown text flow", func(t *testing.T) {
		err := s.RunInTx(ctx, func(tx storage.TargetTx) error {
			ok, err := tx.TextFlowExists(ctx, ws, 9999)
			require.NoError(t, err)
			assert.False(t, ok)
			return tx.SaveTarget(ctx, &models.TextFlowTarget{
				TextFlowID: 9999, LocaleID: "de", State: models.StateTranslated,
				Contents: []string{"x"}, Version: 1, LastChanged: time.Now(),
			})
		})
		assert.ErrorIs(t, err, storage.ErrTextFlowNotFound)
	})
}
