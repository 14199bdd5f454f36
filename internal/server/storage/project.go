package storage

import (
	"context"

	"github.com/iudanet/tmmerge/internal/models"
)

// ProjectStorage persists projects, versions and maintainers.
type ProjectStorage interface {
	// CreateProject inserts the project and makes maintainerID its first maintainer.
	// Returns ErrAlreadyExists if the slug is taken.
	CreateProject(ctx context.Context, project *models.Project, maintainerID string) error

	// GetProject returns the project with its maintainer usernames.
	// Returns ErrProjectNotFound if it doesn't exist.
	GetProject(ctx context.Context, slug string) (*models.Project, error)

	// UpdateProjectStatus sets the project status and, in the same transaction,
	// the status of every version listed in versions.
	UpdateProjectStatus(ctx context.Context, slug string, status models.EntityStatus, versions map[string]models.EntityStatus) error

	// CreateVersion inserts a version. Returns ErrAlreadyExists if the project
	// already has a version with that slug, ErrProjectNotFound for an unknown project.
	CreateVersion(ctx context.Context, version *models.ProjectVersion) error

	// GetVersion returns ErrVersionNotFound if it doesn't exist.
	GetVersion(ctx context.Context, projectSlug, versionSlug string) (*models.ProjectVersion, error)

	// ListVersions returns all versions of a project, newest first.
	ListVersions(ctx context.Context, projectSlug string) ([]*models.ProjectVersion, error)

	// UpdateVersionStatus returns ErrVersionNotFound if it doesn't exist.
	UpdateVersionStatus(ctx context.Context, projectSlug, versionSlug string, status models.EntityStatus) error

	AddMaintainer(ctx context.Context, projectSlug, userID string) error
	RemoveMaintainer(ctx context.Context, projectSlug, userID string) error
	IsMaintainer(ctx context.Context, projectSlug, userID string) (bool, error)
}

// LocaleStorage persists the locales known to the server.
type LocaleStorage interface {
	// GetLocale returns ErrLocaleNotFound for an unknown id.
	GetLocale(ctx context.Context, localeID string) (*models.Locale, error)

	// SaveLocale inserts or updates a locale.
	SaveLocale(ctx context.Context, locale *models.Locale) error

	ListLocales(ctx context.Context) ([]*models.Locale, error)
}

// PermissionStorage persists translator permissions.
type PermissionStorage interface {
	GrantTranslator(ctx context.Context, perm *models.TranslatorPermission) error

	// HasTranslatorPermission reports whether the user may translate into the
	// locale, either globally or for the given project.
	HasTranslatorPermission(ctx context.Context, userID, localeID, projectSlug string) (bool, error)
}
