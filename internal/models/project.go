package models

import "time"

// Project is the top level of the document hierarchy.
type Project struct {
	CreatedAt   time.Time    `json:"created_at"`
	Slug        string       `json:"slug"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Status      EntityStatus `json:"status"`
	Maintainers []string     `json:"maintainers,omitempty"` // usernames
}

// ProjectVersion (project iteration) groups the documents of one release.
type ProjectVersion struct {
	CreatedAt   time.Time    `json:"created_at"`
	ProjectSlug string       `json:"project_slug"`
	Slug        string       `json:"slug"`
	Status      EntityStatus `json:"status"`
}

// Document is a source document inside a version.
type Document struct {
	ProjectSlug  string `json:"project_slug"`
	VersionSlug  string `json:"version_slug"`
	DocID        string `json:"doc_id"`
	SourceLocale string `json:"source_locale"`
	ID           int64  `json:"id"`
}

// Locale is a language a project can be translated into.
type Locale struct {
	LocaleID    string `json:"locale_id"`
	DisplayName string `json:"display_name,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// WorkspaceID identifies the translation workspace of one locale in one version.
type WorkspaceID struct {
	ProjectSlug string `json:"project_slug"`
	VersionSlug string `json:"version_slug"`
	LocaleID    string `json:"locale_id"`
}

func (w WorkspaceID) String() string {
	return w.ProjectSlug + "/" + w.VersionSlug + "/" + w.LocaleID
}
