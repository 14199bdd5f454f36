package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iudanet/tmmerge/internal/models"
	"github.com/iudanet/tmmerge/pkg/api"
)

// ProjectService управляет проектами, версиями и документами
type ProjectService interface {
	CreateProject(ctx context.Context, userID string, project *models.Project) (*models.Project, error)
	GetProject(ctx context.Context, slug string) (*models.Project, error)
	CreateVersion(ctx context.Context, userID, projectSlug, versionSlug string) (*models.ProjectVersion, error)
	UpdateProjectStatus(ctx context.Context, userID, projectSlug string, status models.EntityStatus) error
	UpdateVersionStatus(ctx context.Context, userID, projectSlug, versionSlug string, status models.EntityStatus) error
	ListVersions(ctx context.Context, userID, projectSlug string) ([]*models.ProjectVersion, error)
	AddMaintainer(ctx context.Context, userID, projectSlug, username string) error
	RemoveMaintainer(ctx context.Context, userID, projectSlug, username string) error
	GrantTranslator(ctx context.Context, userID, username, localeID, projectSlug string) error
	UploadDocument(ctx context.Context, userID string, doc *models.Document, textFlows []*models.TextFlow) (*models.Document, error)
}

// LocaleLister отдает список локалей сервера
type LocaleLister interface {
	ListLocales(ctx context.Context) ([]*models.Locale, error)
}

// ProjectHandler обрабатывает запросы к проектам
type ProjectHandler struct {
	responder
	projects ProjectService
	locales  LocaleLister
}

// NewProjectHandler создает handler проектов
func NewProjectHandler(logger *slog.Logger, projects ProjectService, locales LocaleLister) *ProjectHandler {
	return &ProjectHandler{
		responder: responder{logger: logger},
		projects:  projects,
		locales:   locales,
	}
}

// CreateProject обрабатывает POST /api/v1/projects
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req api.CreateProjectRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.projects.CreateProject(r.Context(), userID, &models.Project{
		Slug:        req.Slug,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		h.sendServiceError(w, r, "create project", err)
		return
	}
	h.sendJSON(w, toProjectResponse(p), http.StatusCreated)
}

// GetProject обрабатывает GET /api/v1/projects/{project}
func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.projects.GetProject(r.Context(), chi.URLParam(r, "project"))
	if err != nil {
		h.sendServiceError(w, r, "get project", err)
		return
	}
	h.sendJSON(w, toProjectResponse(p), http.StatusOK)
}

// UpdateProjectStatus обрабатывает PUT /api/v1/projects/{project}/status
func (h *ProjectHandler) UpdateProjectStatus(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	status, ok := h.decodeStatus(w, r)
	if !ok {
		return
	}
	if err := h.projects.UpdateProjectStatus(r.Context(), userID, chi.URLParam(r, "project"), status); err != nil {
		h.sendServiceError(w, r, "update project status", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateVersion обрабатывает POST /api/v1/projects/{project}/versions
func (h *ProjectHandler) CreateVersion(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req api.CreateVersionRequest
	if !h.decode(w, r, &req) {
		return
	}
	v, err := h.projects.CreateVersion(r.Context(), userID, chi.URLParam(r, "project"), req.Slug)
	if err != nil {
		h.sendServiceError(w, r, "create version", err)
		return
	}
	h.sendJSON(w, toVersionResponse(v), http.StatusCreated)
}

// ListVersions обрабатывает GET /api/v1/projects/{project}/versions
func (h *ProjectHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	versions, err := h.projects.ListVersions(r.Context(), userID, chi.URLParam(r, "project"))
	if err != nil {
		h.sendServiceError(w, r, "list versions", err)
		return
	}
	resp := api.VersionListResponse{Versions: make([]api.VersionResponse, 0, len(versions))}
	for _, v := range versions {
		resp.Versions = append(resp.Versions, toVersionResponse(v))
	}
	h.sendJSON(w, resp, http.StatusOK)
}

// UpdateVersionStatus обрабатывает PUT /api/v1/projects/{project}/versions/{version}/status
func (h *ProjectHandler) UpdateVersionStatus(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	status, ok := h.decodeStatus(w, r)
	if !ok {
		return
	}
	err := h.projects.UpdateVersionStatus(r.Context(), userID, chi.URLParam(r, "project"), chi.URLParam(r, "version"), status)
	if err != nil {
		h.sendServiceError(w, r, "update version status", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddMaintainer обрабатывает POST /api/v1/projects/{project}/maintainers
func (h *ProjectHandler) AddMaintainer(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req api.MaintainerRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.projects.AddMaintainer(r.Context(), userID, chi.URLParam(r, "project"), req.Username); err != nil {
		h.sendServiceError(w, r, "add maintainer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveMaintainer обрабатывает DELETE /api/v1/projects/{project}/maintainers/{username}
func (h *ProjectHandler) RemoveMaintainer(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	err := h.projects.RemoveMaintainer(r.Context(), userID, chi.URLParam(r, "project"), chi.URLParam(r, "username"))
	if err != nil {
		h.sendServiceError(w, r, "remove maintainer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GrantTranslator обрабатывает POST /api/v1/permissions/translators
func (h *ProjectHandler) GrantTranslator(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req api.GrantTranslatorRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.projects.GrantTranslator(r.Context(), userID, req.Username, req.LocaleID, req.ProjectSlug); err != nil {
		h.sendServiceError(w, r, "grant translator", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadDocument обрабатывает PUT /api/v1/projects/{project}/versions/{version}/documents/*
// docId может содержать '/', поэтому берется из wildcard
func (h *ProjectHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req api.UploadDocumentRequest
	if !h.decode(w, r, &req) {
		return
	}

	doc := &models.Document{
		ProjectSlug:  chi.URLParam(r, "project"),
		VersionSlug:  chi.URLParam(r, "version"),
		DocID:        chi.URLParam(r, "*"),
		SourceLocale: req.SourceLocale,
	}
	textFlows := make([]*models.TextFlow, 0, len(req.TextFlows))
	for _, tf := range req.TextFlows {
		textFlows = append(textFlows, &models.TextFlow{
			ResID:    tf.ResID,
			Context:  tf.Context,
			Contents: tf.Contents,
		})
	}

	saved, err := h.projects.UploadDocument(r.Context(), userID, doc, textFlows)
	if err != nil {
		h.sendServiceError(w, r, "upload document", err)
		return
	}
	h.sendJSON(w, api.DocumentResponse{
		ID:           saved.ID,
		ProjectSlug:  saved.ProjectSlug,
		VersionSlug:  saved.VersionSlug,
		DocID:        saved.DocID,
		SourceLocale: saved.SourceLocale,
		TextFlows:    len(textFlows),
	}, http.StatusOK)
}

// ListLocales обрабатывает GET /api/v1/locales
func (h *ProjectHandler) ListLocales(w http.ResponseWriter, r *http.Request) {
	locales, err := h.locales.ListLocales(r.Context())
	if err != nil {
		h.sendServiceError(w, r, "list locales", err)
		return
	}
	resp := make([]api.LocaleResponse, 0, len(locales))
	for _, l := range locales {
		resp = append(resp, api.LocaleResponse{LocaleID: l.LocaleID, DisplayName: l.DisplayName, Enabled: l.Enabled})
	}
	h.sendJSON(w, resp, http.StatusOK)
}

func (h *ProjectHandler) decodeStatus(w http.ResponseWriter, r *http.Request) (models.EntityStatus, bool) {
	var req api.StatusRequest
	if !h.decode(w, r, &req) {
		return "", false
	}
	status, err := models.ParseEntityStatus(req.Status)
	if err != nil {
		h.sendServiceError(w, r, "parse status", fmt.Errorf("%w: %w", errInvalidInput, err))
		return "", false
	}
	return status, true
}
