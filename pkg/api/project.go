package api

import "time"

// CreateProjectRequest is the body of POST /api/v1/projects.
type CreateProjectRequest struct {
	Slug        string `json:"slug"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// ProjectResponse describes a project.
type ProjectResponse struct {
	CreatedAt   time.Time `json:"created_at"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	Maintainers []string  `json:"maintainers"`
}

// CreateVersionRequest is the body of POST /api/v1/projects/{project}/versions.
type CreateVersionRequest struct {
	Slug string `json:"slug"`
}

// VersionResponse describes a project version.
type VersionResponse struct {
	CreatedAt   time.Time `json:"created_at"`
	ProjectSlug string    `json:"project_slug"`
	Slug        string    `json:"slug"`
	Status      string    `json:"status"`
}

// VersionListResponse lists the versions of a project.
type VersionListResponse struct {
	Versions []VersionResponse `json:"versions"`
}

// StatusRequest changes the status of a project or version.
// Accepts ACTIVE, READONLY, OBSOLETE or their initials.
type StatusRequest struct {
	Status string `json:"status"`
}

// MaintainerRequest adds a maintainer to a project.
type MaintainerRequest struct {
	Username string `json:"username"`
}

// GrantTranslatorRequest is the body of POST /api/v1/permissions/translators.
// An empty ProjectSlug grants the locale for every project (admins only).
type GrantTranslatorRequest struct {
	Username    string `json:"username"`
	LocaleID    string `json:"locale_id"`
	ProjectSlug string `json:"project_slug,omitempty"`
}

// SourceTextFlow is one source unit of an uploaded document.
type SourceTextFlow struct {
	ResID    string   `json:"res_id"`
	Context  string   `json:"context,omitempty"`
	Contents []string `json:"contents"`
}

// UploadDocumentRequest is the body of PUT .../documents/{docId}.
type UploadDocumentRequest struct {
	SourceLocale string           `json:"source_locale"`
	TextFlows    []SourceTextFlow `json:"text_flows"`
}

// DocumentResponse describes a stored document.
type DocumentResponse struct {
	ProjectSlug  string `json:"project_slug"`
	VersionSlug  string `json:"version_slug"`
	DocID        string `json:"doc_id"`
	SourceLocale string `json:"source_locale"`
	ID           int64  `json:"id"`
	TextFlows    int    `json:"text_flows"`
}

// LocaleResponse describes a locale.
type LocaleResponse struct {
	LocaleID    string `json:"locale_id"`
	DisplayName string `json:"display_name,omitempty"`
	Enabled     bool   `json:"enabled"`
}
