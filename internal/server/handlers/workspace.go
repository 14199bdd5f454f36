package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iudanet/tmmerge/internal/models"
	"github.com/iudanet/tmmerge/internal/server/events"
	"github.com/iudanet/tmmerge/internal/server/security"
	"github.com/iudanet/tmmerge/internal/server/tmmerge"
	"github.com/iudanet/tmmerge/pkg/api"
)

// heartbeatInterval держит SSE соединение живым за прокси
const heartbeatInterval = 25 * time.Second

// WorkspaceAuthorizer проверяет права на workspace
type WorkspaceAuthorizer interface {
	CheckWorkspaceAction(ctx context.Context, userID string, ws models.WorkspaceID, action security.Action) error
}

// UnitLister отдает text flows workspace
type UnitLister interface {
	ListTextFlows(ctx context.Context, ws models.WorkspaceID, docID string) ([]*models.TextFlow, error)
}

// LocaleGetter загружает локаль
type LocaleGetter interface {
	GetLocale(ctx context.Context, localeID string) (*models.Locale, error)
}

// Merger выполняет TM merge
type Merger interface {
	ExecuteMerge(ctx context.Context, actor tmmerge.Actor, req *models.TransMemoryMerge) ([]models.TranslationResult, error)
}

// Translator сохраняет переводы пачкой
type Translator interface {
	Translate(ctx context.Context, ws models.WorkspaceID, username string, updates []models.TransUnitUpdateRequest) ([]models.TranslationResult, error)
}

// EventStream раздает уведомления редакторам
type EventStream interface {
	Subscribe(ws models.WorkspaceID) *events.Subscription
	Active(ws models.WorkspaceID) bool
	Publish(ctx context.Context, ev models.TextFlowTargetUpdated)
}

// WorkspaceHandler обрабатывает запросы к workspace (проект, версия, локаль)
type WorkspaceHandler struct {
	responder
	auth       WorkspaceAuthorizer
	units      UnitLister
	locales    LocaleGetter
	merger     Merger
	translator Translator
	events     EventStream
}

// WorkspaceDeps зависимости WorkspaceHandler
type WorkspaceDeps struct {
	Auth       WorkspaceAuthorizer
	Units      UnitLister
	Locales    LocaleGetter
	Merger     Merger
	Translator Translator
	Events     EventStream
}

// NewWorkspaceHandler создает handler workspace
func NewWorkspaceHandler(logger *slog.Logger, deps WorkspaceDeps) *WorkspaceHandler {
	return &WorkspaceHandler{
		responder:  responder{logger: logger},
		auth:       deps.Auth,
		units:      deps.Units,
		locales:    deps.Locales,
		merger:     deps.Merger,
		translator: deps.Translator,
		events:     deps.Events,
	}
}

func workspaceFromRequest(r *http.Request) models.WorkspaceID {
	return models.WorkspaceID{
		ProjectSlug: chi.URLParam(r, "project"),
		VersionSlug: chi.URLParam(r, "version"),
		LocaleID:    chi.URLParam(r, "locale"),
	}
}

// ListUnits обрабатывает GET /api/v1/workspaces/{project}/{version}/{locale}/units?doc=
func (h *WorkspaceHandler) ListUnits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	ws := workspaceFromRequest(r)

	if _, err := h.locales.GetLocale(ctx, ws.LocaleID); err != nil {
		h.sendServiceError(w, r, "list units", err)
		return
	}
	if err := h.auth.CheckWorkspaceAction(ctx, userID, ws, security.ActionRead); err != nil {
		h.sendServiceError(w, r, "list units", err)
		return
	}

	textFlows, err := h.units.ListTextFlows(ctx, ws, r.URL.Query().Get("doc"))
	if err != nil {
		h.sendServiceError(w, r, "list units", err)
		return
	}

	resp := api.UnitsResponse{Units: make([]api.TextUnit, 0, len(textFlows))}
	for _, tf := range textFlows {
		resp.Units = append(resp.Units, toTextUnit(tf))
	}
	h.sendJSON(w, resp, http.StatusOK)
}

// Merge обрабатывает POST /api/v1/workspaces/{project}/{version}/{locale}/tm-merge
func (h *WorkspaceHandler) Merge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, username, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req api.MergeRequest
	if !h.decode(w, r, &req) {
		return
	}

	merge, err := toMergeRequest(workspaceFromRequest(r), &req)
	if err != nil {
		h.sendServiceError(w, r, "tm merge", err)
		return
	}

	results, err := h.merger.ExecuteMerge(ctx, tmmerge.Actor{UserID: userID, Username: username}, merge)
	if err != nil {
		h.sendServiceError(w, r, "tm merge", err)
		return
	}

	h.logger.InfoContext(ctx, "tm merge finished",
		slog.String("workspace", merge.WorkspaceID.String()),
		slog.String("username", username),
		slog.Int("requested", len(req.Units)),
		slog.Int("results", len(results)))

	h.sendJSON(w, toTranslationResults(results), http.StatusOK)
}

func toMergeRequest(ws models.WorkspaceID, req *api.MergeRequest) (*models.TransMemoryMerge, error) {
	rules := make([]models.MergeRule, 0, 3)
	for _, raw := range []string{req.DifferentContextRule, req.DifferentDocumentRule, req.DifferentProjectRule} {
		rule, err := models.ParseMergeRule(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errInvalidInput, err)
		}
		rules = append(rules, rule)
	}

	merge := &models.TransMemoryMerge{
		WorkspaceID:           ws,
		EditorClientID:        req.EditorClientID,
		ThresholdPercent:      req.ThresholdPercent,
		DifferentContextRule:  rules[0],
		DifferentDocumentRule: rules[1],
		DifferentProjectRule:  rules[2],
		UpdateRequests:        make([]models.TransUnitUpdateRequest, 0, len(req.Units)),
	}
	for _, u := range req.Units {
		merge.UpdateRequests = append(merge.UpdateRequests, models.TransUnitUpdateRequest{
			TransUnitID:            u.ID,
			BaseTranslationVersion: u.BaseVersion,
		})
	}
	return merge, nil
}

// Translate обрабатывает POST /api/v1/workspaces/{project}/{version}/{locale}/translations
// Сохранение из редактора; уведомления EditorSave уходят после применения
func (h *WorkspaceHandler) Translate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, username, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req api.TranslateRequest
	if !h.decode(w, r, &req) {
		return
	}
	ws := workspaceFromRequest(r)

	updates := make([]models.TransUnitUpdateRequest, 0, len(req.Updates))
	for _, u := range req.Updates {
		state, err := models.ParseContentState(u.State)
		if err != nil {
			h.sendServiceError(w, r, "translate", fmt.Errorf("%w: unit %d: %w", errInvalidInput, u.ID, err))
			return
		}
		updates = append(updates, models.TransUnitUpdateRequest{
			TransUnitID:            u.ID,
			Contents:               u.Contents,
			State:                  state,
			BaseTranslationVersion: u.BaseVersion,
			TargetComment:          u.Comment,
		})
	}

	locale, err := h.locales.GetLocale(ctx, ws.LocaleID)
	if err != nil {
		h.sendServiceError(w, r, "translate", err)
		return
	}
	if !locale.Enabled {
		h.sendServiceError(w, r, "translate", fmt.Errorf("%w: %s is disabled", tmmerge.ErrLocaleNotFound, ws.LocaleID))
		return
	}
	if err := h.auth.CheckWorkspaceAction(ctx, userID, ws, security.ActionModify); err != nil {
		h.sendServiceError(w, r, "translate", err)
		return
	}

	ws.LocaleID = locale.LocaleID
	results, err := h.translator.Translate(ctx, ws, username, updates)
	if err != nil {
		h.sendServiceError(w, r, "translate", err)
		return
	}

	if h.events.Active(ws) {
		for _, res := range results {
			if !res.Success {
				continue
			}
			h.events.Publish(ctx, models.TextFlowTargetUpdated{
				Workspace:      ws,
				EditorClientID: req.EditorClientID,
				UpdateType:     models.UpdateEditorSave,
				TextFlowID:     res.TransUnitID,
				State:          res.State,
				Contents:       res.Contents,
				BaseVersion:    res.BaseVersion,
				Username:       username,
			})
		}
	}

	h.sendJSON(w, toTranslationResults(results), http.StatusOK)
}

// Events обрабатывает GET /api/v1/workspaces/{project}/{version}/{locale}/events
// Server-Sent Events: каждое событие это "id: ...", "event: <type>", "data: <json>"
func (h *WorkspaceHandler) Events(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	ws := workspaceFromRequest(r)
	if err := h.auth.CheckWorkspaceAction(ctx, userID, ws, security.ActionRead); err != nil {
		h.sendServiceError(w, r, "subscribe", err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.sendError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub := h.events.Subscribe(ws)
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	h.logger.InfoContext(ctx, "editor subscribed", slog.String("workspace", ws.String()), slog.String("user_id", userID))

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev, open := <-sub.Events():
			if !open {
				return
			}
			data, err := json.Marshal(toEvent(ev))
			if err != nil {
				h.logger.ErrorContext(ctx, "failed to encode event", slog.Any("error", err))
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.UpdateType, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
