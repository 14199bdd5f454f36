package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/iudanet/tmmerge/internal/models"
	"github.com/iudanet/tmmerge/internal/server/storage"
)

// CreateProject inserts the project and its first maintainer in one transaction
func (s *Storage) CreateProject(ctx context.Context, project *models.Project, maintainerID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO projects (slug, name, description, status, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, project.Slug, project.Name, project.Description, string(project.Status), project.CreatedAt.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert project: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO project_maintainers (project_slug, user_id) VALUES (?, ?)`,
		project.Slug, maintainerID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return storage.ErrUserNotFound
		}
		return fmt.Errorf("failed to insert maintainer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetProject returns the project with its maintainer usernames
func (s *Storage) GetProject(ctx context.Context, slug string) (*models.Project, error) {
	p := &models.Project{}
	var (
		status    string
		createdAt int64
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT slug, name, description, status, created_at
		FROM projects
		WHERE slug = ?
	`, slug).Scan(&p.Slug, &p.Name, &p.Description, &status, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	p.Status = models.EntityStatus(status)
	p.CreatedAt = unixToTime(createdAt)

	rows, err := s.db.QueryContext(ctx, `
		SELECT u.username
		FROM project_maintainers m
		JOIN users u ON u.id = m.user_id
		WHERE m.project_slug = ?
		ORDER BY u.username
	`, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to query maintainers: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, fmt.Errorf("failed to scan maintainer: %w", err)
		}
		p.Maintainers = append(p.Maintainers, username)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return p, nil
}

// UpdateProjectStatus sets the status of the project and of the listed versions atomically
func (s *Storage) UpdateProjectStatus(ctx context.Context, slug string, status models.EntityStatus, versions map[string]models.EntityStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `UPDATE projects SET status = ? WHERE slug = ?`, string(status), slug)
	if err != nil {
		return fmt.Errorf("failed to update project status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return storage.ErrProjectNotFound
	}

	for versionSlug, versionStatus := range versions {
		query, args, err := s.sq.Update("project_versions").
			Set("status", string(versionStatus)).
			Where(sq.Eq{"project_slug": slug, "slug": versionSlug}).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build version update: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to update version %s: %w", versionSlug, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreateVersion inserts a project version
func (s *Storage) CreateVersion(ctx context.Context, version *models.ProjectVersion) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO project_versions (project_slug, slug, status, created_at)
		VALUES (?, ?, ?, ?)
	`, version.ProjectSlug, version.Slug, string(version.Status), version.CreatedAt.Unix())
	if err != nil {
		if isForeignKeyViolation(err) {
			return storage.ErrProjectNotFound
		}
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert version: %w", err)
	}
	return nil
}

// GetVersion returns one version of a project
func (s *Storage) GetVersion(ctx context.Context, projectSlug, versionSlug string) (*models.ProjectVersion, error) {
	v := &models.ProjectVersion{}
	var (
		status    string
		createdAt int64
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT project_slug, slug, status, created_at
		FROM project_versions
		WHERE project_slug = ? AND slug = ?
	`, projectSlug, versionSlug).Scan(&v.ProjectSlug, &v.Slug, &status, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrVersionNotFound
		}
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	v.Status = models.EntityStatus(status)
	v.CreatedAt = unixToTime(createdAt)
	return v, nil
}

// ListVersions returns all versions of a project, newest first
func (s *Storage) ListVersions(ctx context.Context, projectSlug string) ([]*models.ProjectVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT project_slug, slug, status, created_at
		FROM project_versions
		WHERE project_slug = ?
		ORDER BY created_at DESC, rowid DESC
	`, projectSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to query versions: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var versions []*models.ProjectVersion
	for rows.Next() {
		v := &models.ProjectVersion{}
		var (
			status    string
			createdAt int64
		)
		if err := rows.Scan(&v.ProjectSlug, &v.Slug, &status, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		v.Status = models.EntityStatus(status)
		v.CreatedAt = unixToTime(createdAt)
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return versions, nil
}

// UpdateVersionStatus sets the status of one version
func (s *Storage) UpdateVersionStatus(ctx context.Context, projectSlug, versionSlug string, status models.EntityStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE project_versions SET status = ? WHERE project_slug = ? AND slug = ?`,
		string(status), projectSlug, versionSlug)
	if err != nil {
		return fmt.Errorf("failed to update version status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return storage.ErrVersionNotFound
	}
	return nil
}

// AddMaintainer makes the user a maintainer of the project; adding twice is a no-op
func (s *Storage) AddMaintainer(ctx context.Context, projectSlug, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO project_maintainers (project_slug, user_id) VALUES (?, ?)`,
		projectSlug, userID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return storage.ErrProjectNotFound
		}
		return fmt.Errorf("failed to add maintainer: %w", err)
	}
	return nil
}

// RemoveMaintainer returns ErrUserNotFound if the user is not a maintainer
func (s *Storage) RemoveMaintainer(ctx context.Context, projectSlug, userID string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM project_maintainers WHERE project_slug = ? AND user_id = ?`,
		projectSlug, userID)
	if err != nil {
		return fmt.Errorf("failed to remove maintainer: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return storage.ErrUserNotFound
	}
	return nil
}

// IsMaintainer reports whether the user maintains the project
func (s *Storage) IsMaintainer(ctx context.Context, projectSlug, userID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM project_maintainers WHERE project_slug = ? AND user_id = ?`,
		projectSlug, userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check maintainer: %w", err)
	}
	return n > 0, nil
}
