package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/iudanet/tmmerge/internal/models"
	"github.com/iudanet/tmmerge/internal/server/storage"
	"github.com/iudanet/tmmerge/internal/similarity"
)

// SaveDocument creates or replaces a document and its text flows.
// Text flows are matched by resId, so existing ones keep their id and targets.
func (s *Storage) SaveDocument(ctx context.Context, doc *models.Document, textFlows []*models.TextFlow) (*models.Document, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM project_versions WHERE project_slug = ? AND slug = ?`,
		doc.ProjectSlug, doc.VersionSlug).Scan(&n); err != nil {
		return nil, fmt.Errorf("failed to check version: %w", err)
	}
	if n == 0 {
		return nil, storage.ErrVersionNotFound
	}
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM locales WHERE locale_id = ?`, doc.SourceLocale).Scan(&n); err != nil {
		return nil, fmt.Errorf("failed to check locale: %w", err)
	}
	if n == 0 {
		return nil, storage.ErrLocaleNotFound
	}

	saved := *doc
	err = tx.QueryRowContext(ctx, `
		INSERT INTO documents (project_slug, version_slug, doc_id, source_locale)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(project_slug, version_slug, doc_id) DO UPDATE SET source_locale = excluded.source_locale
		RETURNING id
	`, doc.ProjectSlug, doc.VersionSlug, doc.DocID, doc.SourceLocale).Scan(&saved.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert document: %w", err)
	}

	// Существующие text flows документа: resId -> id
	existing := make(map[string]int64)
	rows, err := tx.QueryContext(ctx, `SELECT id, res_id FROM text_flows WHERE document_id = ?`, saved.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query text flows: %w", err)
	}
	for rows.Next() {
		var (
			id    int64
			resID string
		)
		if err := rows.Scan(&id, &resID); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan text flow: %w", err)
		}
		existing[resID] = id
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	_ = rows.Close()

	keep := make([]int64, 0, len(textFlows))
	for i, tf := range textFlows {
		contents, err := encodeContents(tf.Contents)
		if err != nil {
			return nil, err
		}
		length := 0
		if len(tf.Contents) > 0 {
			length = similarity.Length(tf.Contents[0])
		}

		if id, ok := existing[tf.ResID]; ok {
			_, err = tx.ExecContext(ctx, `
				UPDATE text_flows SET position = ?, context = ?, contents = ?, source_length = ?
				WHERE id = ?
			`, i, tf.Context, contents, length, id)
			if err != nil {
				return nil, fmt.Errorf("failed to update text flow %s: %w", tf.ResID, err)
			}
			tf.ID = id
		} else {
			err = tx.QueryRowContext(ctx, `
				INSERT INTO text_flows (document_id, res_id, position, context, contents, source_length)
				VALUES (?, ?, ?, ?, ?, ?)
				RETURNING id
			`, saved.ID, tf.ResID, i, tf.Context, contents, length).Scan(&tf.ID)
			if err != nil {
				if isUniqueViolation(err) {
					return nil, fmt.Errorf("duplicate resId %s: %w", tf.ResID, storage.ErrAlreadyExists)
				}
				return nil, fmt.Errorf("failed to insert text flow %s: %w", tf.ResID, err)
			}
			// повторный resId в той же загрузке обновит эту же строку
			existing[tf.ResID] = tf.ID
		}
		tf.Position = i
		tf.Document = &saved
		keep = append(keep, tf.ID)
	}

	del := s.sq.Delete("text_flows").Where(sq.Eq{"document_id": saved.ID})
	if len(keep) > 0 {
		del = del.Where(sq.NotEq{"id": keep})
	}
	query, args, err := del.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build delete: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to delete removed text flows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &saved, nil
}

// GetDocument returns a document of a version
func (s *Storage) GetDocument(ctx context.Context, projectSlug, versionSlug, docID string) (*models.Document, error) {
	d := &models.Document{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_slug, version_slug, doc_id, source_locale
		FROM documents
		WHERE project_slug = ? AND version_slug = ? AND doc_id = ?
	`, projectSlug, versionSlug, docID).Scan(&d.ID, &d.ProjectSlug, &d.VersionSlug, &d.DocID, &d.SourceLocale)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return d, nil
}
