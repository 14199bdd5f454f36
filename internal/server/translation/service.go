// Package translation applies batches of target updates atomically.
package translation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/iudanet/tmmerge/internal/models"
	"github.com/iudanet/tmmerge/internal/server/storage"
)

// Per-unit failure reasons reported in TranslationResult.ErrorMessage.
var (
	ErrPersistenceConflict = errors.New("persistence conflict")
	ErrTextFlowNotFound    = errors.New("text flow not found")
	ErrInvalidState        = errors.New("invalid content state")
)

// StateListener is told about every committed target state.
type StateListener interface {
	TextFlowStateUpdated(textFlowID int64, localeID string, state models.ContentState)
}

// Service implements translation apply.
type Service struct {
	logger   *slog.Logger
	targets  storage.TargetStorage
	listener StateListener
	now      func() time.Time
}

// NewService creates the service. listener may be nil.
func NewService(logger *slog.Logger, targets storage.TargetStorage, listener StateListener) *Service {
	return &Service{
		logger:   logger,
		targets:  targets,
		listener: listener,
		now:      time.Now,
	}
}

// Translate applies updates to the targets of ws in one transaction and returns
// one result per update, in order. A version conflict or a text flow outside the
// workspace version fails only that update; a storage error fails the whole batch
// and nothing is written.
func (s *Service) Translate(ctx context.Context, ws models.WorkspaceID, username string, updates []models.TransUnitUpdateRequest) ([]models.TranslationResult, error) {
	if len(updates) == 0 {
		return []models.TranslationResult{}, nil
	}

	var results []models.TranslationResult
	err := s.targets.RunInTx(ctx, func(tx storage.TargetTx) error {
		results = make([]models.TranslationResult, 0, len(updates))
		for _, u := range updates {
			r, err := s.apply(ctx, tx, ws, username, u)
			if err != nil {
				return err
			}
			results = append(results, r)
		}
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "translation batch failed",
			slog.String("workspace", ws.String()),
			slog.Int("updates", len(updates)),
			slog.Any("error", err))
		return nil, fmt.Errorf("failed to apply translations: %w", err)
	}

	succeeded := 0
	for _, r := range results {
		if !r.Success {
			continue
		}
		succeeded++
		if s.listener != nil {
			s.listener.TextFlowStateUpdated(r.TransUnitID, ws.LocaleID, r.State)
		}
	}

	s.logger.InfoContext(ctx, "translations applied",
		slog.String("workspace", ws.String()),
		slog.Int("updates", len(updates)),
		slog.Int("succeeded", succeeded))

	return results, nil
}

func (s *Service) apply(ctx context.Context, tx storage.TargetTx, ws models.WorkspaceID, username string, u models.TransUnitUpdateRequest) (models.TranslationResult, error) {
	result := models.TranslationResult{
		TransUnitID: u.TransUnitID,
		BaseVersion: u.BaseTranslationVersion,
	}

	// id из другой версии ведет себя как несуществующий
	exists, err := tx.TextFlowExists(ctx, ws, u.TransUnitID)
	if err != nil {
		return result, err
	}
	if !exists {
		result.ErrorMessage = fmt.Sprintf("%v: %d", ErrTextFlowNotFound, u.TransUnitID)
		return result, nil
	}

	state := u.State
	if !state.Valid() {
		result.ErrorMessage = fmt.Sprintf("%v: %q", ErrInvalidState, u.State)
		return result, nil
	}
	// пустой перевод не может считаться переведенным
	if allEmpty(u.Contents) {
		state = models.StateNew
	}

	current, err := tx.GetTarget(ctx, u.TransUnitID, ws.LocaleID)
	if err != nil {
		return result, err
	}
	currentVersion := models.TargetVersion(current)

	if u.BaseTranslationVersion != currentVersion {
		result.ErrorMessage = fmt.Sprintf("%v: base version %d, current version %d",
			ErrPersistenceConflict, u.BaseTranslationVersion, currentVersion)
		result.NewVersion = currentVersion
		result.State = models.TargetState(current)
		if current != nil {
			result.Contents = current.Contents
		}
		return result, nil
	}

	// ничего не изменилось: новая версия не нужна
	if current != nil && current.State == state && slices.Equal(current.Contents, u.Contents) {
		result.Success = true
		result.NewVersion = currentVersion
		result.State = state
		result.Contents = current.Contents
		return result, nil
	}

	if current != nil {
		if err := tx.AppendHistory(ctx, current); err != nil {
			return result, err
		}
	}

	next := &models.TextFlowTarget{
		TextFlowID:     u.TransUnitID,
		LocaleID:       ws.LocaleID,
		State:          state,
		Contents:       u.Contents,
		Version:        currentVersion + 1,
		Comment:        u.TargetComment,
		LastModifiedBy: username,
		LastChanged:    s.now(),
	}
	if err := tx.SaveTarget(ctx, next); err != nil {
		return result, err
	}

	result.Success = true
	result.NewVersion = next.Version
	result.State = next.State
	result.Contents = next.Contents
	return result, nil
}

func allEmpty(contents []string) bool {
	for _, c := range contents {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
