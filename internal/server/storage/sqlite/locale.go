package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iudanet/tmmerge/internal/models"
	"github.com/iudanet/tmmerge/internal/server/storage"
)

// GetLocale returns a locale by id
func (s *Storage) GetLocale(ctx context.Context, localeID string) (*models.Locale, error) {
	l := &models.Locale{}
	var enabled int

	err := s.db.QueryRowContext(ctx,
		`SELECT locale_id, display_name, enabled FROM locales WHERE locale_id = ?`,
		localeID).Scan(&l.LocaleID, &l.DisplayName, &enabled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrLocaleNotFound
		}
		return nil, fmt.Errorf("failed to get locale: %w", err)
	}
	l.Enabled = enabled != 0
	return l, nil
}

// SaveLocale inserts or updates a locale
func (s *Storage) SaveLocale(ctx context.Context, locale *models.Locale) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO locales (locale_id, display_name, enabled) VALUES (?, ?, ?)
		ON CONFLICT(locale_id) DO UPDATE SET display_name = excluded.display_name, enabled = excluded.enabled
	`, locale.LocaleID, locale.DisplayName, boolToInt(locale.Enabled))
	if err != nil {
		return fmt.Errorf("failed to save locale: %w", err)
	}
	return nil
}

// ListLocales returns all locales ordered by id
func (s *Storage) ListLocales(ctx context.Context) ([]*models.Locale, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT locale_id, display_name, enabled FROM locales ORDER BY locale_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query locales: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var locales []*models.Locale
	for rows.Next() {
		l := &models.Locale{}
		var enabled int
		if err := rows.Scan(&l.LocaleID, &l.DisplayName, &enabled); err != nil {
			return nil, fmt.Errorf("failed to scan locale: %w", err)
		}
		l.Enabled = enabled != 0
		locales = append(locales, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return locales, nil
}

// GrantTranslator stores a translator permission; granting twice is a no-op
func (s *Storage) GrantTranslator(ctx context.Context, perm *models.TranslatorPermission) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO translator_permissions (user_id, locale_id, project_slug)
		VALUES (?, ?, ?)
	`, perm.UserID, perm.LocaleID, perm.ProjectSlug)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("unknown user or locale: %w", storage.ErrLocaleNotFound)
		}
		return fmt.Errorf("failed to grant translator permission: %w", err)
	}
	return nil
}

// HasTranslatorPermission checks for a global or project scoped permission
func (s *Storage) HasTranslatorPermission(ctx context.Context, userID, localeID, projectSlug string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM translator_permissions
		WHERE user_id = ? AND locale_id = ? AND (project_slug = '' OR project_slug = ?)
	`, userID, localeID, projectSlug).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check translator permission: %w", err)
	}
	return n > 0, nil
}
