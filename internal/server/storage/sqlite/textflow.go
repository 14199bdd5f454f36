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

var textFlowColumns = []string{
	"tf.id", "tf.res_id", "tf.position", "tf.context", "tf.contents",
	"d.id", "d.project_slug", "d.version_slug", "d.doc_id", "d.source_locale",
	"t.locale_id", "t.state", "t.contents", "t.version", "t.comment", "t.last_modified_by", "t.last_changed",
}

// selectTextFlows строит SELECT text flows с target в локали localeID (LEFT JOIN)
func (s *Storage) selectTextFlows(localeID string) sq.SelectBuilder {
	return s.sq.Select(textFlowColumns...).
		From("text_flows tf").
		Join("documents d ON d.id = tf.document_id").
		LeftJoin("text_flow_targets t ON t.text_flow_id = tf.id AND t.locale_id = ?", localeID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTextFlow(row rowScanner) (*models.TextFlow, error) {
	tf := &models.TextFlow{Document: &models.Document{}}
	var (
		contents       string
		tLocale        sql.NullString
		tState         sql.NullString
		tContents      sql.NullString
		tVersion       sql.NullInt64
		tComment       sql.NullString
		tModifiedBy    sql.NullString
		tLastChangedAt sql.NullInt64
	)

	err := row.Scan(
		&tf.ID, &tf.ResID, &tf.Position, &tf.Context, &contents,
		&tf.Document.ID, &tf.Document.ProjectSlug, &tf.Document.VersionSlug, &tf.Document.DocID, &tf.Document.SourceLocale,
		&tLocale, &tState, &tContents, &tVersion, &tComment, &tModifiedBy, &tLastChangedAt,
	)
	if err != nil {
		return nil, err
	}

	if tf.Contents, err = decodeContents(contents); err != nil {
		return nil, err
	}

	if tLocale.Valid {
		target := &models.TextFlowTarget{
			TextFlowID:     tf.ID,
			LocaleID:       tLocale.String,
			State:          models.ContentState(tState.String),
			Version:        int(tVersion.Int64),
			Comment:        tComment.String,
			LastModifiedBy: tModifiedBy.String,
			LastChanged:    unixToTime(tLastChangedAt.Int64),
		}
		if target.Contents, err = decodeContents(tContents.String); err != nil {
			return nil, err
		}
		tf.Target = target
	}

	return tf, nil
}

func (s *Storage) queryTextFlows(ctx context.Context, q sq.SelectBuilder) ([]*models.TextFlow, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query text flows: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.TextFlow
	for rows.Next() {
		tf, err := scanTextFlow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan text flow: %w", err)
		}
		result = append(result, tf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return result, nil
}

// FindTextFlowsByIDs loads text flows of the workspace version by id with their targets
func (s *Storage) FindTextFlowsByIDs(ctx context.Context, ws models.WorkspaceID, ids []int64) ([]*models.TextFlow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := s.selectTextFlows(ws.LocaleID).
		Where(sq.Eq{"tf.id": ids, "d.project_slug": ws.ProjectSlug, "d.version_slug": ws.VersionSlug}).
		OrderBy("tf.id")
	return s.queryTextFlows(ctx, q)
}

// ListTextFlows lists text flows of a workspace in document order
func (s *Storage) ListTextFlows(ctx context.Context, ws models.WorkspaceID, docID string) ([]*models.TextFlow, error) {
	q := s.selectTextFlows(ws.LocaleID).
		Where(sq.Eq{"d.project_slug": ws.ProjectSlug, "d.version_slug": ws.VersionSlug}).
		OrderBy("d.doc_id", "tf.position")
	if docID != "" {
		q = q.Where(sq.Eq{"d.doc_id": docID})
	}
	return s.queryTextFlows(ctx, q)
}

// FindTextFlowCandidates returns text flows translated or approved in the target locale
func (s *Storage) FindTextFlowCandidates(ctx context.Context, cq storage.CandidateQuery) ([]*storage.TextFlowCandidate, error) {
	q := s.sq.Select(
		"tf.id", "tf.context", "tf.contents", "d.project_slug", "d.doc_id", "t.contents", "t.last_changed",
	).
		From("text_flows tf").
		Join("documents d ON d.id = tf.document_id").
		Join("text_flow_targets t ON t.text_flow_id = tf.id AND t.locale_id = ?", cq.TargetLocale).
		Where(sq.Eq{
			"d.source_locale": cq.SourceLocale,
			// только готовые переводы годятся как TM
			"t.state": []string{string(models.StateTranslated), string(models.StateApproved)},
		}).
		OrderBy("tf.id")

	if cq.AfterID > 0 {
		q = q.Where(sq.Gt{"tf.id": cq.AfterID})
	}
	if cq.ExcludeTextFlowID != 0 {
		q = q.Where(sq.NotEq{"tf.id": cq.ExcludeTextFlowID})
	}
	if cq.MinLength > 0 {
		q = q.Where(sq.GtOrEq{"tf.source_length": cq.MinLength})
	}
	if cq.MaxLength > 0 {
		q = q.Where(sq.LtOrEq{"tf.source_length": cq.MaxLength})
	}
	if cq.RequireContext {
		q = q.Where(sq.Eq{"tf.context": cq.Context})
	}
	if cq.RequireDocument {
		q = q.Where(sq.Eq{"d.doc_id": cq.DocID})
	}
	if cq.RequireProject {
		q = q.Where(sq.Eq{"d.project_slug": cq.ProjectSlug})
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
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*storage.TextFlowCandidate
	for rows.Next() {
		c := &storage.TextFlowCandidate{}
		var (
			source, target string
			lastChanged    int64
		)
		if err := rows.Scan(&c.TextFlowID, &c.Context, &source, &c.ProjectSlug, &c.DocID, &target, &lastChanged); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		if c.SourceContents, err = decodeContents(source); err != nil {
			return nil, err
		}
		if c.TargetContents, err = decodeContents(target); err != nil {
			return nil, err
		}
		c.LastChanged = unixToTime(lastChanged)
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return result, nil
}

// GetTransMemoryDetail describes the origin of an internal TM match
func (s *Storage) GetTransMemoryDetail(ctx context.Context, localeID string, textFlowID int64) (*models.TransMemoryDetails, error) {
	d := &models.TransMemoryDetails{}
	var (
		modifiedBy  sql.NullString
		lastChanged sql.NullInt64
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT p.name, p.slug, d.version_slug, d.doc_id, tf.res_id, tf.context,
		       t.last_modified_by, t.last_changed
		FROM text_flows tf
		JOIN documents d ON d.id = tf.document_id
		JOIN projects p ON p.slug = d.project_slug
		LEFT JOIN text_flow_targets t ON t.text_flow_id = tf.id AND t.locale_id = ?
		WHERE tf.id = ?
	`, localeID, textFlowID).Scan(
		&d.ProjectName, &d.ProjectSlug, &d.IterationName, &d.DocID, &d.ResID, &d.MsgContext,
		&modifiedBy, &lastChanged,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrTextFlowNotFound
		}
		return nil, fmt.Errorf("failed to get trans memory detail: %w", err)
	}

	d.LastModifiedBy = modifiedBy.String
	if lastChanged.Valid {
		d.LastModified = unixToTime(lastChanged.Int64)
	}
	return d, nil
}

// TranslatedTextFlowIDs returns ids of text flows translated or approved in localeID
func (s *Storage) TranslatedTextFlowIDs(ctx context.Context, localeID string) ([]int64, error) {
	query, args, err := s.sq.Select("text_flow_id").
		From("text_flow_targets").
		Where(sq.Eq{
			"locale_id": localeID,
			"state":     []string{string(models.StateTranslated), string(models.StateApproved)},
		}).
		OrderBy("text_flow_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query translated text flows: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return ids, nil
}
