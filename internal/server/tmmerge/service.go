// Package tmmerge fills a workspace from the translation memory: for every
// requested text flow it looks up the best TM match, decides the state the
// match may be saved with and applies all accepted updates in one batch.
package tmmerge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/iudanet/tmmerge/internal/models"
	"github.com/iudanet/tmmerge/internal/server/security"
	"github.com/iudanet/tmmerge/internal/server/storage"
	"github.com/iudanet/tmmerge/internal/server/tmsearch"
)

var (
	// ErrLocaleNotFound is returned when the workspace locale is unknown or disabled.
	ErrLocaleNotFound = errors.New("locale not found")
	// ErrNotAuthorized is returned when the caller may not modify the workspace.
	ErrNotAuthorized = security.ErrNotAuthorized
	// ErrInvalidRequest is returned for malformed merge requests.
	ErrInvalidRequest = errors.New("invalid merge request")
)

// DefaultConcurrency is the number of text flows looked up in parallel.
const DefaultConcurrency = 4

// Actor is the user running the merge.
type Actor struct {
	UserID   string
	Username string
}

// LocaleResolver loads locales.
type LocaleResolver interface {
	GetLocale(ctx context.Context, localeID string) (*models.Locale, error)
}

// Authorizer checks workspace permissions.
type Authorizer interface {
	CheckWorkspaceAction(ctx context.Context, userID string, ws models.WorkspaceID, action security.Action) error
}

// TextFlowLoader batch loads text flows of a workspace version with their target.
type TextFlowLoader interface {
	FindTextFlowsByIDs(ctx context.Context, ws models.WorkspaceID, ids []int64) ([]*models.TextFlow, error)
}

// Lookup searches the translation memory.
type Lookup interface {
	SearchBestMatch(ctx context.Context, q tmsearch.Query) (*models.TransMemoryResultItem, error)
	GetTransMemoryDetail(ctx context.Context, localeID string, textFlowID int64) (*models.TransMemoryDetails, error)
}

// UnitLoader loads imported TM units.
type UnitLoader interface {
	GetTransMemoryUnit(ctx context.Context, id int64) (*models.TransMemoryUnit, error)
}

// Applier saves a batch of updates.
type Applier interface {
	Translate(ctx context.Context, ws models.WorkspaceID, username string, updates []models.TransUnitUpdateRequest) ([]models.TranslationResult, error)
}

// EventSink receives target update notifications.
type EventSink interface {
	Active(ws models.WorkspaceID) bool
	Publish(ctx context.Context, ev models.TextFlowTargetUpdated)
}

// Service runs TM merges.
type Service struct {
	logger      *slog.Logger
	locales     LocaleResolver
	auth        Authorizer
	textFlows   TextFlowLoader
	lookup      Lookup
	units       UnitLoader
	applier     Applier
	events      EventSink
	concurrency int
}

// Deps groups the collaborators of Service.
type Deps struct {
	Locales   LocaleResolver
	Auth      Authorizer
	TextFlows TextFlowLoader
	Lookup    Lookup
	Units     UnitLoader
	Applier   Applier
	Events    EventSink
}

// NewService creates a merge service. concurrency <= 0 selects DefaultConcurrency.
func NewService(logger *slog.Logger, deps Deps, concurrency int) *Service {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Service{
		logger:      logger,
		locales:     deps.Locales,
		auth:        deps.Auth,
		textFlows:   deps.TextFlows,
		lookup:      deps.Lookup,
		units:       deps.Units,
		applier:     deps.Applier,
		events:      deps.Events,
		concurrency: concurrency,
	}
}

// ExecuteMerge runs one merge request and returns the apply results.
// An empty result means nothing was merged.
func (s *Service) ExecuteMerge(ctx context.Context, actor Actor, req *models.TransMemoryMerge) ([]models.TranslationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	ws := req.WorkspaceID

	// 1. локаль
	locale, err := s.locales.GetLocale(ctx, ws.LocaleID)
	if err != nil {
		if errors.Is(err, storage.ErrLocaleNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrLocaleNotFound, ws.LocaleID)
		}
		return nil, fmt.Errorf("failed to resolve locale: %w", err)
	}
	if !locale.Enabled {
		return nil, fmt.Errorf("%w: %s is disabled", ErrLocaleNotFound, ws.LocaleID)
	}
	ws.LocaleID = locale.LocaleID

	// 2. права на изменение до любой работы
	if err := s.auth.CheckWorkspaceAction(ctx, actor.UserID, ws, security.ActionModify); err != nil {
		return nil, err
	}

	// 3. запросы по id, при повторе id побеждает последний
	requests := make(map[int64]models.TransUnitUpdateRequest, len(req.UpdateRequests))
	ids := make([]int64, 0, len(req.UpdateRequests))
	for _, u := range req.UpdateRequests {
		if _, seen := requests[u.TransUnitID]; !seen {
			ids = append(ids, u.TransUnitID)
		}
		requests[u.TransUnitID] = u
	}

	// 4. text flows этой версии; неизвестные и чужие id просто отсутствуют
	loaded, err := s.textFlows.FindTextFlowsByIDs(ctx, ws, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load text flows: %w", err)
	}
	byID := make(map[int64]*models.TextFlow, len(loaded))
	for _, tf := range loaded {
		byID[tf.ID] = tf
	}
	textFlows := make([]*models.TextFlow, 0, len(loaded))
	for _, id := range ids {
		if tf, ok := byID[id]; ok {
			textFlows = append(textFlows, tf)
		}
	}

	// 5. поиск и решение по каждой единице, порядок сохраняется
	updates, err := s.buildUpdates(ctx, req, requests, textFlows)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tm merge prepared",
		slog.String("workspace", ws.String()),
		slog.Int("requested", len(req.UpdateRequests)),
		slog.Int("loaded", len(textFlows)),
		slog.Int("accepted", len(updates)))

	// 6. нечего применять
	if len(updates) == 0 {
		return []models.TranslationResult{}, nil
	}

	// 7. уведомления до применения
	if s.events != nil && s.events.Active(ws) {
		for _, u := range updates {
			tf := byID[u.TransUnitID]
			s.events.Publish(ctx, models.TextFlowTargetUpdated{
				Workspace:      ws,
				EditorClientID: req.EditorClientID,
				UpdateType:     models.UpdateNonEditorSave,
				DocID:          tf.Document.DocID,
				TextFlowID:     u.TransUnitID,
				State:          u.State,
				PreviousState:  models.TargetState(tf.Target),
				Contents:       u.Contents,
				BaseVersion:    u.BaseTranslationVersion,
				Username:       actor.Username,
			})
		}
	}

	// 8. одна пачка
	return s.applier.Translate(ctx, ws, actor.Username, updates)
}

func (s *Service) buildUpdates(ctx context.Context, req *models.TransMemoryMerge, requests map[int64]models.TransUnitUpdateRequest, textFlows []*models.TextFlow) ([]models.TransUnitUpdateRequest, error) {
	slots := make([]*models.TransUnitUpdateRequest, len(textFlows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, tf := range textFlows {
		if models.TargetState(tf.Target).IsTranslated() {
			s.logger.WarnContext(ctx, "text flow is already translated, ignored",
				slog.Int64("text_flow_id", tf.ID),
				slog.String("state", string(tf.Target.State)))
			continue
		}
		g.Go(func() error {
			u, err := s.buildUpdate(gctx, req, requests[tf.ID], tf)
			if err != nil {
				return fmt.Errorf("text flow %d: %w", tf.ID, err)
			}
			slots[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	updates := make([]models.TransUnitUpdateRequest, 0, len(slots))
	for _, u := range slots {
		if u != nil {
			updates = append(updates, *u)
		}
	}
	return updates, nil
}

func (s *Service) buildUpdate(ctx context.Context, req *models.TransMemoryMerge, unfilled models.TransUnitUpdateRequest, tf *models.TextFlow) (*models.TransUnitUpdateRequest, error) {
	item, err := s.lookup.SearchBestMatch(ctx, tmsearch.Query{
		TextFlow:                tf,
		SourceLocale:            tf.Document.SourceLocale,
		TargetLocale:            req.WorkspaceID.LocaleID,
		ThresholdPercent:        req.ThresholdPercent,
		RejectDifferentContext:  req.DifferentContextRule == models.RuleReject,
		RejectDifferentDocument: req.DifferentDocumentRule == models.RuleReject,
		RejectDifferentProject:  req.DifferentProjectRule == models.RuleReject,
	})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}

	origin, err := s.resolveOrigin(ctx, req.WorkspaceID.LocaleID, item)
	if err != nil {
		return nil, err
	}

	state, ok := DecideStatus(req, tf, Match{Origin: origin, Item: item}, tf.Target)
	if !ok {
		return nil, nil
	}

	u := &models.TransUnitUpdateRequest{
		TransUnitID:            tf.ID,
		Contents:               item.TargetContents,
		State:                  state,
		BaseTranslationVersion: unfilled.BaseTranslationVersion,
		TargetComment:          ProvenanceComment(origin),
	}
	s.logger.DebugContext(ctx, "auto translate from translation memory",
		slog.Int64("text_flow_id", tf.ID),
		slog.String("state", string(state)),
		slog.Float64("similarity", item.SimilarityPercent))
	return u, nil
}

func (s *Service) resolveOrigin(ctx context.Context, localeID string, item *models.TransMemoryResultItem) (Origin, error) {
	if item.MatchType == models.MatchImported {
		unit, err := s.units.GetTransMemoryUnit(ctx, item.SourceID())
		if err != nil {
			return nil, fmt.Errorf("failed to load tm unit: %w", err)
		}
		return ImportedOrigin{TMSlug: unit.TMSlug, UniqueID: unit.UniqueID, Context: unit.Context}, nil
	}

	details, err := s.lookup.GetTransMemoryDetail(ctx, localeID, item.SourceID())
	if err != nil {
		return nil, err
	}
	return TextFlowOrigin{Details: *details}, nil
}
