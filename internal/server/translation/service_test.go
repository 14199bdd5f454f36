package translation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"maps"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tmmerge/internal/models"
	"github.com/iudanet/tmmerge/internal/server/storage"
)

var testWorkspace = models.WorkspaceID{ProjectSlug: "guide", VersionSlug: "1.0", LocaleID: "de"}

type key struct {
	locale string
	id     int64
}

// memTargets хранит targets в памяти; транзакция работает на копии
type memTargets struct {
	failOn    int64
	textFlows map[int64]string // id -> project/version
	targets   map[key]*models.TextFlowTarget
	history   []*models.TextFlowTarget
}

type memTx struct {
	store   *memTargets
	targets map[key]*models.TextFlowTarget
	history []*models.TextFlowTarget
}

func newMemTargets(ids ...int64) *memTargets {
	m := &memTargets{textFlows: map[int64]string{}, targets: map[key]*models.TextFlowTarget{}}
	for _, id := range ids {
		m.textFlows[id] = "guide/1.0"
	}
	return m
}

func (m *memTargets) RunInTx(_ context.Context, fn func(tx storage.TargetTx) error) error {
	tx := &memTx{store: m, targets: maps.Clone(m.targets)}
	if err := fn(tx); err != nil {
		return err
	}
	m.targets = tx.targets
	m.history = append(m.history, tx.history...)
	return nil
}

func (t *memTx) TextFlowExists(_ context.Context, ws models.WorkspaceID, id int64) (bool, error) {
	v, ok := t.store.textFlows[id]
	return ok && v == ws.ProjectSlug+"/"+ws.VersionSlug, nil
}

func (t *memTx) GetTarget(_ context.Context, id int64, locale string) (*models.TextFlowTarget, error) {
	if t.store.failOn == id {
		return nil, errors.New("disk full")
	}
	target, ok := t.targets[key{locale, id}]
	if !ok {
		return nil, nil
	}
	cp := *target
	return &cp, nil
}

func (t *memTx) SaveTarget(_ context.Context, target *models.TextFlowTarget) error {
	cp := *target
	t.targets[key{target.LocaleID, target.TextFlowID}] = &cp
	return nil
}

func (t *memTx) AppendHistory(_ context.Context, previous *models.TextFlowTarget) error {
	t.history = append(t.history, previous)
	return nil
}

type recorder struct {
	updates []models.ContentState
}

func (r *recorder) TextFlowStateUpdated(_ int64, _ string, state models.ContentState) {
	r.updates = append(r.updates, state)
}

func newTestService(targets storage.TargetStorage, listener StateListener) *Service {
	s := NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), targets, listener)
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestTranslate_NewAndExistingTargets(t *testing.T) {
	store := newMemTargets(1, 2)
	store.targets[key{"de", 2}] = &models.TextFlowTarget{
		TextFlowID: 2, LocaleID: "de", State: models.StateNeedReview, Contents: []string{"alt"}, Version: 3,
	}
	rec := &recorder{}
	s := newTestService(store, rec)

	results, err := s.Translate(context.Background(), testWorkspace, "alice", []models.TransUnitUpdateRequest{
		{TransUnitID: 1, Contents: []string{"Hallo"}, State: models.StateTranslated, BaseTranslationVersion: 0, TargetComment: "c1"},
		{TransUnitID: 2, Contents: []string{"neu"}, State: models.StateTranslated, BaseTranslationVersion: 3},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.True(t, results[0].Success)
	assert.Equal(t, 1, results[0].NewVersion)
	assert.True(t, results[1].Success)
	assert.Equal(t, 3, results[1].BaseVersion)
	assert.Equal(t, 4, results[1].NewVersion)

	saved := store.targets[key{"de", 1}]
	assert.Equal(t, "c1", saved.Comment)
	assert.Equal(t, "alice", saved.LastModifiedBy)
	require.Len(t, store.history, 1)
	assert.Equal(t, []string{"alt"}, store.history[0].Contents)

	assert.Equal(t, []models.ContentState{models.StateTranslated, models.StateTranslated}, rec.updates)
}

func TestTranslate_VersionConflictIsPerUnit(t *testing.T) {
	store := newMemTargets(1, 2)
	store.targets[key{"de", 1}] = &models.TextFlowTarget{
		TextFlowID: 1, LocaleID: "de", State: models.StateTranslated, Contents: []string{"x"}, Version: 2,
	}
	rec := &recorder{}
	s := newTestService(store, rec)

	results, err := s.Translate(context.Background(), testWorkspace, "alice", []models.TransUnitUpdateRequest{
		{TransUnitID: 1, Contents: []string{"y"}, State: models.StateTranslated, BaseTranslationVersion: 1},
		{TransUnitID: 2, Contents: []string{"z"}, State: models.StateNeedReview},
		{TransUnitID: 99, Contents: []string{"q"}, State: models.StateTranslated},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].ErrorMessage, ErrPersistenceConflict.Error())
	assert.Equal(t, 2, results[0].NewVersion)
	assert.Equal(t, []string{"x"}, results[0].Contents)

	assert.True(t, results[1].Success)

	assert.False(t, results[2].Success)
	assert.Contains(t, results[2].ErrorMessage, ErrTextFlowNotFound.Error())

	assert.Equal(t, []string{"x"}, store.targets[key{"de", 1}].Contents)
	assert.Equal(t, []models.ContentState{models.StateNeedReview}, rec.updates)
}

func TestTranslate_StorageErrorRollsBack(t *testing.T) {
	store := newMemTargets(1, 2)
	store.failOn = 2
	rec := &recorder{}
	s := newTestService(store, rec)

	_, err := s.Translate(context.Background(), testWorkspace, "alice", []models.TransUnitUpdateRequest{
		{TransUnitID: 1, Contents: []string{"a"}, State: models.StateTranslated},
		{TransUnitID: 2, Contents: []string{"b"}, State: models.StateTranslated},
	})
	require.Error(t, err)
	assert.Empty(t, store.targets)
	assert.Empty(t, rec.updates)
}

func TestTranslate_EmptyContentsBecomeNew(t *testing.T) {
	store := newMemTargets(1)
	s := newTestService(store, nil)

	results, err := s.Translate(context.Background(), testWorkspace, "alice", []models.TransUnitUpdateRequest{
		{TransUnitID: 1, Contents: []string{"  "}, State: models.StateTranslated},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.StateNew, results[0].State)
}

func TestTranslate_UnchangedKeepsVersion(t *testing.T) {
	store := newMemTargets(1)
	store.targets[key{"de", 1}] = &models.TextFlowTarget{
		TextFlowID: 1, LocaleID: "de", State: models.StateTranslated, Contents: []string{"x"}, Version: 5,
	}
	s := newTestService(store, nil)

	results, err := s.Translate(context.Background(), testWorkspace, "alice", []models.TransUnitUpdateRequest{
		{TransUnitID: 1, Contents: []string{"x"}, State: models.StateTranslated, BaseTranslationVersion: 5},
	})
	require.NoError(t, err)
	assert.True(t, results[0].Success)
	assert.Equal(t, 5, results[0].NewVersion)
	assert.Empty(t, store.history)
}

func TestTranslate_InvalidState(t *testing.T) {
	s := newTestService(newMemTargets(1), nil)

	results, err := s.Translate(context.Background(), testWorkspace, "alice", []models.TransUnitUpdateRequest{
		{TransUnitID: 1, Contents: []string{"x"}, State: "Bogus"},
	})
	require.NoError(t, err)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].ErrorMessage, ErrInvalidState.Error())
}

func TestTranslate_EmptyBatch(t *testing.T) {
	s := newTestService(newMemTargets(), nil)
	results, err := s.Translate(context.Background(), testWorkspace, "alice", nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestTranslate_TextFlowOfOtherVersionIsNotFound(t *testing.T) {
	store := newMemTargets(1)
	store.textFlows[2] = "frozen/1.0"
	rec := &recorder{}
	s := newTestService(store, rec)

	results, err := s.Translate(context.Background(), testWorkspace, "alice", []models.TransUnitUpdateRequest{
		{TransUnitID: 2, Contents: []string{"fremd"}, State: models.StateTranslated},
		{TransUnitID: 1, Contents: []string{"eigen"}, State: models.StateTranslated},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].ErrorMessage, ErrTextFlowNotFound.Error())
	assert.True(t, results[1].Success)

	_, written := store.targets[key{"de", 2}]
	assert.False(t, written)
	assert.Equal(t, []models.ContentState{models.StateTranslated}, rec.updates)
}
