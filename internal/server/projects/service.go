// Package projects manages projects, their versions, maintainers,
// translator permissions and source documents.
package projects

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/iudanet/tmmerge/internal/models"
	"github.com/iudanet/tmmerge/internal/server/security"
	"github.com/iudanet/tmmerge/internal/server/storage"
	"github.com/iudanet/tmmerge/internal/validation"
)

var (
	// ErrInvalidInput is returned for requests that fail validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrLastMaintainer is returned when removing the only maintainer of a project.
	ErrLastMaintainer = errors.New("project must keep at least one maintainer")
)

// Authorizer checks project level permissions.
type Authorizer interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
	CheckProjectUpdate(ctx context.Context, userID, projectSlug string) error
}

// Repository is the storage used by Service.
type Repository interface {
	storage.ProjectStorage
	storage.PermissionStorage
	storage.DocumentStorage
	GetLocale(ctx context.Context, localeID string) (*models.Locale, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Service implements project management.
type Service struct {
	logger *slog.Logger
	repo   Repository
	auth   Authorizer
	now    func() time.Time
}

// NewService creates a project service.
func NewService(logger *slog.Logger, repo Repository, auth Authorizer) *Service {
	return &Service{
		logger: logger,
		repo:   repo,
		auth:   auth,
		now:    time.Now,
	}
}

// CreateProject creates an ACTIVE project with the caller as its maintainer.
func (s *Service) CreateProject(ctx context.Context, userID string, project *models.Project) (*models.Project, error) {
	if err := validation.ValidateSlug("project", project.Slug); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	name := strings.TrimSpace(project.Name)
	if name == "" {
		name = project.Slug
	}

	p := &models.Project{
		Slug:        project.Slug,
		Name:        name,
		Description: strings.TrimSpace(project.Description),
		Status:      models.StatusActive,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.CreateProject(ctx, p, userID); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	s.logger.InfoContext(ctx, "project created",
		slog.String("project", p.Slug),
		slog.String("user_id", userID))

	return s.repo.GetProject(ctx, p.Slug)
}

// GetProject returns a project with its maintainers.
func (s *Service) GetProject(ctx context.Context, slug string) (*models.Project, error) {
	return s.repo.GetProject(ctx, slug)
}

// CreateVersion adds an ACTIVE version to a project.
func (s *Service) CreateVersion(ctx context.Context, userID, projectSlug, versionSlug string) (*models.ProjectVersion, error) {
	if err := validation.ValidateSlug("version", versionSlug); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := s.auth.CheckProjectUpdate(ctx, userID, projectSlug); err != nil {
		return nil, err
	}

	v := &models.ProjectVersion{
		ProjectSlug: projectSlug,
		Slug:        versionSlug,
		Status:      models.StatusActive,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.CreateVersion(ctx, v); err != nil {
		return nil, fmt.Errorf("failed to create version: %w", err)
	}

	s.logger.InfoContext(ctx, "version created",
		slog.String("project", projectSlug),
		slog.String("version", versionSlug))
	return v, nil
}

// UpdateProjectStatus changes the project status. READONLY makes every ACTIVE
// version READONLY, OBSOLETE makes every version OBSOLETE.
func (s *Service) UpdateProjectStatus(ctx context.Context, userID, projectSlug string, status models.EntityStatus) error {
	if err := s.auth.CheckProjectUpdate(ctx, userID, projectSlug); err != nil {
		return err
	}

	versions, err := s.repo.ListVersions(ctx, projectSlug)
	if err != nil {
		return fmt.Errorf("failed to list versions: %w", err)
	}

	cascade := make(map[string]models.EntityStatus)
	for _, v := range versions {
		switch {
		case status == models.StatusReadOnly && v.Status == models.StatusActive:
			cascade[v.Slug] = models.StatusReadOnly
		case status == models.StatusObsolete && v.Status != models.StatusObsolete:
			cascade[v.Slug] = models.StatusObsolete
		}
	}

	if err := s.repo.UpdateProjectStatus(ctx, projectSlug, status, cascade); err != nil {
		return fmt.Errorf("failed to update project status: %w", err)
	}

	s.logger.InfoContext(ctx, "project status updated",
		slog.String("project", projectSlug),
		slog.String("status", string(status)),
		slog.Int("versions_changed", len(cascade)))
	return nil
}

// UpdateVersionStatus changes the status of one version.
func (s *Service) UpdateVersionStatus(ctx context.Context, userID, projectSlug, versionSlug string, status models.EntityStatus) error {
	if err := s.auth.CheckProjectUpdate(ctx, userID, projectSlug); err != nil {
		return err
	}
	if err := s.repo.UpdateVersionStatus(ctx, projectSlug, versionSlug, status); err != nil {
		return fmt.Errorf("failed to update version status: %w", err)
	}
	return nil
}

// ListVersions returns the versions of a project ordered ACTIVE, READONLY,
// OBSOLETE, newest first within a status. Obsolete versions are visible to admins only.
func (s *Service) ListVersions(ctx context.Context, userID, projectSlug string) ([]*models.ProjectVersion, error) {
	if _, err := s.repo.GetProject(ctx, projectSlug); err != nil {
		return nil, err
	}
	versions, err := s.repo.ListVersions(ctx, projectSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}

	admin, err := s.auth.IsAdmin(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !admin {
		versions = slices.DeleteFunc(versions, func(v *models.ProjectVersion) bool {
			return v.Status == models.StatusObsolete
		})
	}

	slices.SortStableFunc(versions, func(a, b *models.ProjectVersion) int {
		switch {
		case a.Status.Less(b.Status):
			return -1
		case b.Status.Less(a.Status):
			return 1
		}
		return 0
	})
	return versions, nil
}

// AddMaintainer makes the user with username a maintainer of the project.
func (s *Service) AddMaintainer(ctx context.Context, userID, projectSlug, username string) error {
	if err := s.auth.CheckProjectUpdate(ctx, userID, projectSlug); err != nil {
		return err
	}
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if err := s.repo.AddMaintainer(ctx, projectSlug, user.ID); err != nil {
		return fmt.Errorf("failed to add maintainer: %w", err)
	}
	return nil
}

// RemoveMaintainer removes a maintainer unless they are the last one.
func (s *Service) RemoveMaintainer(ctx context.Context, userID, projectSlug, username string) error {
	if err := s.auth.CheckProjectUpdate(ctx, userID, projectSlug); err != nil {
		return err
	}
	project, err := s.repo.GetProject(ctx, projectSlug)
	if err != nil {
		return err
	}
	if !slices.Contains(project.Maintainers, username) {
		return fmt.Errorf("%w: %s is not a maintainer", storage.ErrUserNotFound, username)
	}
	if len(project.Maintainers) <= 1 {
		return ErrLastMaintainer
	}

	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if err := s.repo.RemoveMaintainer(ctx, projectSlug, user.ID); err != nil {
		return fmt.Errorf("failed to remove maintainer: %w", err)
	}
	return nil
}

// GrantTranslator lets username translate the project into localeID.
// Only admins may grant a permission for every project (empty projectSlug).
func (s *Service) GrantTranslator(ctx context.Context, userID, username, localeID, projectSlug string) error {
	if projectSlug == "" {
		admin, err := s.auth.IsAdmin(ctx, userID)
		if err != nil {
			return err
		}
		if !admin {
			return fmt.Errorf("%w: admin rights required for a global grant", security.ErrNotAuthorized)
		}
	} else if err := s.auth.CheckProjectUpdate(ctx, userID, projectSlug); err != nil {
		return err
	}

	if _, err := s.repo.GetLocale(ctx, localeID); err != nil {
		return err
	}
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}

	perm := &models.TranslatorPermission{UserID: user.ID, LocaleID: localeID, ProjectSlug: projectSlug}
	if err := s.repo.GrantTranslator(ctx, perm); err != nil {
		return fmt.Errorf("failed to grant translator: %w", err)
	}

	s.logger.InfoContext(ctx, "translator permission granted",
		slog.String("username", username),
		slog.String("locale", localeID),
		slog.String("project", projectSlug))
	return nil
}

// UploadDocument creates or replaces a source document of an ACTIVE version.
// Text flows are matched by resId, so translations of unchanged ids survive.
func (s *Service) UploadDocument(ctx context.Context, userID string, doc *models.Document, textFlows []*models.TextFlow) (*models.Document, error) {
	if err := validation.ValidateDocID(doc.DocID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := validation.ValidateLocaleID(doc.SourceLocale); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := validateTextFlows(textFlows); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := s.auth.CheckProjectUpdate(ctx, userID, doc.ProjectSlug); err != nil {
		return nil, err
	}

	version, err := s.repo.GetVersion(ctx, doc.ProjectSlug, doc.VersionSlug)
	if err != nil {
		return nil, err
	}
	if version.Status != models.StatusActive {
		return nil, fmt.Errorf("%w: version %s is %s", security.ErrNotAuthorized, version.Slug, version.Status)
	}

	saved, err := s.repo.SaveDocument(ctx, doc, textFlows)
	if err != nil {
		return nil, fmt.Errorf("failed to save document: %w", err)
	}

	s.logger.InfoContext(ctx, "document uploaded",
		slog.String("project", doc.ProjectSlug),
		slog.String("version", doc.VersionSlug),
		slog.String("doc_id", doc.DocID),
		slog.Int("text_flows", len(textFlows)))
	return saved, nil
}

func validateTextFlows(textFlows []*models.TextFlow) error {
	seen := make(map[string]struct{}, len(textFlows))
	for i, tf := range textFlows {
		if tf.ResID == "" {
			return fmt.Errorf("text flow %d: resId cannot be empty", i)
		}
		if _, dup := seen[tf.ResID]; dup {
			return fmt.Errorf("duplicate resId %q", tf.ResID)
		}
		seen[tf.ResID] = struct{}{}
		if len(tf.Contents) == 0 {
			return fmt.Errorf("text flow %q has no contents", tf.ResID)
		}
	}
	return nil
}
