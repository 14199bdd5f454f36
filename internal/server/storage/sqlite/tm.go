package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	sq "github.com/Masterminds/squirrel"

	"github.com/iudanet/tmmerge/internal/models"
	"github.com/iudanet/tmmerge/internal/server/storage"
	"github.com/iudanet/tmmerge/internal/similarity"
)

// SaveTranslationMemory creates the memory if needed and returns the stored row
func (s *Storage) SaveTranslationMemory(ctx context.Context, tm *models.TranslationMemory) (*models.TranslationMemory, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO translation_memories (slug, description, created_at) VALUES (?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET description = CASE
			WHEN excluded.description = '' THEN translation_memories.description
			ELSE excluded.description END
	`, tm.Slug, tm.Description, tm.CreatedAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to save translation memory: %w", err)
	}
	return s.getTranslationMemory(ctx, tm.Slug)
}

func (s *Storage) getTranslationMemory(ctx context.Context, slug string) (*models.TranslationMemory, error) {
	saved := &models.TranslationMemory{}
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, slug, description, created_at FROM translation_memories WHERE slug = ?`, slug).
		Scan(&saved.ID, &saved.Slug, &saved.Description, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrTransMemoryNotFound
		}
		return nil, fmt.Errorf("failed to get translation memory: %w", err)
	}
	saved.CreatedAt = unixToTime(createdAt)
	return saved, nil
}

// SaveTransMemoryUnits upserts units by unique id, replacing their variants
func (s *Storage) SaveTransMemoryUnits(ctx context.Context, tmSlug string, units []*models.TransMemoryUnit) (int, error) {
	tm, err := s.getTranslationMemory(ctx, tmSlug)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, u := range units {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO tm_units (tm_id, unique_id, source_locale, context, last_changed)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(tm_id, unique_id) DO UPDATE SET
				source_locale = excluded.source_locale,
				context = excluded.context,
				last_changed = excluded.last_changed
			RETURNING id
		`, tm.ID, u.UniqueID, u.SourceLocale, u.Context, u.LastChanged.Unix()).Scan(&u.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert tm unit %s: %w", u.UniqueID, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM tm_unit_variants WHERE unit_id = ?`, u.ID); err != nil {
			return 0, fmt.Errorf("failed to clear variants of %s: %w", u.UniqueID, err)
		}

		// стабильный порядок вставки
		locales := make([]string, 0, len(u.Variants))
		for locale := range u.Variants {
			locales = append(locales, locale)
		}
		sort.Strings(locales)

		for _, locale := range locales {
			content := u.Variants[locale]
			_, err := tx.ExecContext(ctx, `
				INSERT INTO tm_unit_variants (unit_id, locale_id, content, length) VALUES (?, ?, ?, ?)
			`, u.ID, locale, content, similarity.Length(content))
			if err != nil {
				return 0, fmt.Errorf("failed to insert variant %s of %s: %w", locale, u.UniqueID, err)
			}
		}
		u.TMSlug = tm.Slug
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return len(units), nil
}

// FindTransMemoryUnitCandidates returns units having variants in both locales.
// The returned units carry only those two variants.
func (s *Storage) FindTransMemoryUnitCandidates(ctx context.Context, cq storage.CandidateQuery) ([]*models.TransMemoryUnit, error) {
	q := s.sq.Select(
		"u.id", "tm.slug", "u.unique_id", "u.source_locale", "u.context", "u.last_changed", "sv.content", "tv.content",
	).
		From("tm_units u").
		Join("translation_memories tm ON tm.id = u.tm_id").
		Join("tm_unit_variants sv ON sv.unit_id = u.id AND sv.locale_id = ?", cq.SourceLocale).
		Join("tm_unit_variants tv ON tv.unit_id = u.id AND tv.locale_id = ?", cq.TargetLocale).
		OrderBy("u.id")

	if cq.AfterID > 0 {
		q = q.Where(sq.Gt{"u.id": cq.AfterID})
	}
	if cq.MinLength > 0 {
		q = q.Where(sq.GtOrEq{"sv.length": cq.MinLength})
	}
	if cq.MaxLength > 0 {
		q = q.Where(sq.LtOrEq{"sv.length": cq.MaxLength})
	}
	if cq.RequireContext {
		// пустой контекст у импортированной единицы значит "неизвестен"
		q = q.Where(sq.Or{sq.Eq{"u.context": cq.Context}, sq.Eq{"u.context": ""}})
	}
	if cq.Limit > 0 {
		q = q.Limit(uint64(cq.Limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tm units: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var units []*models.TransMemoryUnit
	for rows.Next() {
		u := &models.TransMemoryUnit{}
		var (
			lastChanged    int64
			source, target string
		)
		if err := rows.Scan(&u.ID, &u.TMSlug, &u.UniqueID, &u.SourceLocale, &u.Context, &lastChanged, &source, &target); err != nil {
			return nil, fmt.Errorf("failed to scan tm unit: %w", err)
		}
		u.LastChanged = unixToTime(lastChanged)
		u.Variants = map[string]string{
			cq.SourceLocale: source,
			cq.TargetLocale: target,
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return units, nil
}

// GetTransMemoryUnit returns a unit with all its variants
func (s *Storage) GetTransMemoryUnit(ctx context.Context, id int64) (*models.TransMemoryUnit, error) {
	u := &models.TransMemoryUnit{Variants: make(map[string]string)}
	var lastChanged int64

	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, tm.slug, u.unique_id, u.source_locale, u.context, u.last_changed
		FROM tm_units u
		JOIN translation_memories tm ON tm.id = u.tm_id
		WHERE u.id = ?
	`, id).Scan(&u.ID, &u.TMSlug, &u.UniqueID, &u.SourceLocale, &u.Context, &lastChanged)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrTransMemoryNotFound
		}
		return nil, fmt.Errorf("failed to get tm unit: %w", err)
	}
	u.LastChanged = unixToTime(lastChanged)

	rows, err := s.db.QueryContext(ctx, `SELECT locale_id, content FROM tm_unit_variants WHERE unit_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query variants: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()
	for rows.Next() {
		var locale, content string
		if err := rows.Scan(&locale, &content); err != nil {
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}
		u.Variants[locale] = content
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return u, nil
}
