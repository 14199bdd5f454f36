// Package security decides whether a user may act on a workspace or project.
package security

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iudanet/tmmerge/internal/models"
)

// ErrNotAuthorized is returned when the user lacks the required permission.
var ErrNotAuthorized = errors.New("not authorized")

// Action is an operation on a workspace.
type Action string

const (
	// ActionRead lists units and subscribes to events.
	ActionRead Action = "read"
	// ActionModify changes translations (editor save, TM merge).
	ActionModify Action = "modify"
)

// UserReader loads users.
type UserReader interface {
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
}

// ProjectReader loads projects, versions and maintainers.
type ProjectReader interface {
	GetProject(ctx context.Context, slug string) (*models.Project, error)
	GetVersion(ctx context.Context, projectSlug, versionSlug string) (*models.ProjectVersion, error)
	IsMaintainer(ctx context.Context, projectSlug, userID string) (bool, error)
}

// PermissionChecker answers translator permission questions.
type PermissionChecker interface {
	HasTranslatorPermission(ctx context.Context, userID, localeID, projectSlug string) (bool, error)
}

// Service implements the authorization rules.
type Service struct {
	logger      *slog.Logger
	users       UserReader
	projects    ProjectReader
	permissions PermissionChecker
}

// NewService creates an authorization service.
func NewService(logger *slog.Logger, users UserReader, projects ProjectReader, permissions PermissionChecker) *Service {
	return &Service{
		logger:      logger,
		users:       users,
		projects:    projects,
		permissions: permissions,
	}
}

// IsAdmin reports whether the user is a server administrator.
func (s *Service) IsAdmin(ctx context.Context, userID string) (bool, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to load user: %w", err)
	}
	return user.Admin, nil
}

// CheckWorkspaceAction returns nil when the user may perform action on ws.
// Storage not-found errors for the project or version are passed through.
//
// Any authenticated user may read. Modifying requires an ACTIVE project and
// version, and either admin rights or a translator permission for the locale.
func (s *Service) CheckWorkspaceAction(ctx context.Context, userID string, ws models.WorkspaceID, action Action) error {
	project, err := s.projects.GetProject(ctx, ws.ProjectSlug)
	if err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}
	version, err := s.projects.GetVersion(ctx, ws.ProjectSlug, ws.VersionSlug)
	if err != nil {
		return fmt.Errorf("failed to load version: %w", err)
	}

	if action == ActionRead {
		return nil
	}

	if project.Status != models.StatusActive || version.Status != models.StatusActive {
		s.logger.WarnContext(ctx, "workspace is not active",
			slog.String("workspace", ws.String()),
			slog.String("project_status", string(project.Status)),
			slog.String("version_status", string(version.Status)))
		return fmt.Errorf("%w: %s is %s", ErrNotAuthorized, ws, inactiveStatus(project, version))
	}

	admin, err := s.IsAdmin(ctx, userID)
	if err != nil {
		return err
	}
	if admin {
		return nil
	}

	ok, err := s.permissions.HasTranslatorPermission(ctx, userID, ws.LocaleID, ws.ProjectSlug)
	if err != nil {
		return fmt.Errorf("failed to check translator permission: %w", err)
	}
	if !ok {
		s.logger.WarnContext(ctx, "translator permission missing",
			slog.String("user_id", userID),
			slog.String("workspace", ws.String()))
		return fmt.Errorf("%w: no translator permission for %s", ErrNotAuthorized, ws.LocaleID)
	}
	return nil
}

// CheckProjectUpdate allows admins and maintainers of the project.
func (s *Service) CheckProjectUpdate(ctx context.Context, userID, projectSlug string) error {
	if _, err := s.projects.GetProject(ctx, projectSlug); err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}

	admin, err := s.IsAdmin(ctx, userID)
	if err != nil {
		return err
	}
	if admin {
		return nil
	}

	ok, err := s.projects.IsMaintainer(ctx, projectSlug, userID)
	if err != nil {
		return fmt.Errorf("failed to check maintainer: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: not a maintainer of %s", ErrNotAuthorized, projectSlug)
	}
	return nil
}

// CheckAdmin allows only administrators.
func (s *Service) CheckAdmin(ctx context.Context, userID string) error {
	admin, err := s.IsAdmin(ctx, userID)
	if err != nil {
		return err
	}
	if !admin {
		return fmt.Errorf("%w: admin rights required", ErrNotAuthorized)
	}
	return nil
}

func inactiveStatus(p *models.Project, v *models.ProjectVersion) string {
	if p.Status != models.StatusActive {
		return "project " + string(p.Status)
	}
	return "version " + string(v.Status)
}
