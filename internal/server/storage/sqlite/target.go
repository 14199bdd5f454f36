package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iudanet/tmmerge/internal/models"
	"github.com/iudanet/tmmerge/internal/server/storage"
)

// targetTx реализует storage.TargetTx поверх одной sql транзакции
type targetTx struct {
	tx *sql.Tx
}

var _ storage.TargetTx = (*targetTx)(nil)

// RunInTx runs fn in a transaction, committing when it returns nil
func (s *Storage) RunInTx(ctx context.Context, fn func(tx storage.TargetTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(&targetTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (t *targetTx) TextFlowExists(ctx context.Context, ws models.WorkspaceID, textFlowID int64) (bool, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM text_flows tf
		JOIN documents d ON d.id = tf.document_id
		WHERE tf.id = ? AND d.project_slug = ? AND d.version_slug = ?
	`, textFlowID, ws.ProjectSlug, ws.VersionSlug).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check text flow: %w", err)
	}
	return n > 0, nil
}

func (t *targetTx) GetTarget(ctx context.Context, textFlowID int64, localeID string) (*models.TextFlowTarget, error) {
	target := &models.TextFlowTarget{}
	var (
		state       string
		contents    string
		lastChanged int64
	)

	err := t.tx.QueryRowContext(ctx, `
		SELECT text_flow_id, locale_id, state, contents, version, comment, last_modified_by, last_changed
		FROM text_flow_targets
		WHERE text_flow_id = ? AND locale_id = ?
	`, textFlowID, localeID).Scan(
		&target.TextFlowID, &target.LocaleID, &state, &contents, &target.Version,
		&target.Comment, &target.LastModifiedBy, &lastChanged,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get target: %w", err)
	}

	target.State = models.ContentState(state)
	target.LastChanged = unixToTime(lastChanged)
	if target.Contents, err = decodeContents(contents); err != nil {
		return nil, err
	}
	return target, nil
}

func (t *targetTx) SaveTarget(ctx context.Context, target *models.TextFlowTarget) error {
	contents, err := encodeContents(target.Contents)
	if err != nil {
		return err
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO text_flow_targets
			(text_flow_id, locale_id, state, contents, version, comment, last_modified_by, last_changed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(text_flow_id, locale_id) DO UPDATE SET
			state = excluded.state,
			contents = excluded.contents,
			version = excluded.version,
			comment = excluded.comment,
			last_modified_by = excluded.last_modified_by,
			last_changed = excluded.last_changed
	`, target.TextFlowID, target.LocaleID, string(target.State), contents, target.Version,
		target.Comment, target.LastModifiedBy, target.LastChanged.Unix())
	if err != nil {
		if isForeignKeyViolation(err) {
			return storage.ErrTextFlowNotFound
		}
		return fmt.Errorf("failed to save target: %w", err)
	}
	return nil
}

func (t *targetTx) AppendHistory(ctx context.Context, previous *models.TextFlowTarget) error {
	contents, err := encodeContents(previous.Contents)
	if err != nil {
		return err
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO text_flow_target_history
			(text_flow_id, locale_id, state, contents, version, comment, last_modified_by, last_changed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, previous.TextFlowID, previous.LocaleID, string(previous.State), contents, previous.Version,
		previous.Comment, previous.LastModifiedBy, previous.LastChanged.Unix())
	if err != nil {
		return fmt.Errorf("failed to append target history: %w", err)
	}
	return nil
}

// TargetHistory returns the previous revisions of a target, oldest first
func (s *Storage) TargetHistory(ctx context.Context, textFlowID int64, localeID string) ([]*models.TextFlowTarget, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT text_flow_id, locale_id, state, contents, version, comment, last_modified_by, last_changed
		FROM text_flow_target_history
		WHERE text_flow_id = ? AND locale_id = ?
		ORDER BY version, id
	`, textFlowID, localeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query target history: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var history []*models.TextFlowTarget
	for rows.Next() {
		h := &models.TextFlowTarget{}
		var (
			state, contents string
			lastChanged     int64
		)
		if err := rows.Scan(&h.TextFlowID, &h.LocaleID, &state, &contents, &h.Version,
			&h.Comment, &h.LastModifiedBy, &lastChanged); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		h.State = models.ContentState(state)
		h.LastChanged = unixToTime(lastChanged)
		if h.Contents, err = decodeContents(contents); err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return history, nil
}
