package storage

import (
	"context"
	"time"

	"github.com/iudanet/tmmerge/internal/models"
)

// DocumentStorage persists source documents.
type DocumentStorage interface {
	// SaveDocument creates or replaces a document. Text flows are matched by resId:
	// existing ones keep their id (and translations), missing ones are removed.
	SaveDocument(ctx context.Context, doc *models.Document, textFlows []*models.TextFlow) (*models.Document, error)

	// GetDocument returns ErrDocumentNotFound if it doesn't exist.
	GetDocument(ctx context.Context, projectSlug, versionSlug, docID string) (*models.Document, error)
}

// CandidateQuery narrows the TM candidates loaded for one source text.
type CandidateQuery struct {
	SourceLocale string
	TargetLocale string
	// MinLength and MaxLength bound the normalized source length; zero MaxLength means no bound.
	MinLength int
	MaxLength int
	// ExcludeTextFlowID skips the text flow being translated.
	ExcludeTextFlowID int64
	// Context, DocID and ProjectSlug describe the destination; the Require flags
	// restrict candidates to an equal origin in that dimension.
	Context         string
	DocID           string
	ProjectSlug     string
	RequireContext  bool
	RequireDocument bool
	RequireProject  bool
	// AfterID and Limit page through candidates in id order: only ids greater
	// than AfterID, at most Limit rows (zero means no limit).
	AfterID int64
	Limit   int
}

// TextFlowCandidate is a translated text flow that may serve as a TM match.
type TextFlowCandidate struct {
	LastChanged    time.Time
	ProjectSlug    string
	DocID          string
	Context        string
	SourceContents []string
	TargetContents []string
	TextFlowID     int64
}

// TextFlowStorage loads text flows and their targets.
type TextFlowStorage interface {
	// FindTextFlowsByIDs loads the text flows with the given ids that belong to the
	// project version of ws; each carries its target in ws.LocaleID if one exists.
	// Unknown ids and ids of other versions are silently absent.
	FindTextFlowsByIDs(ctx context.Context, ws models.WorkspaceID, ids []int64) ([]*models.TextFlow, error)

	// ListTextFlows lists text flows of a version (optionally one document) in
	// document order, with their targets in the workspace locale.
	ListTextFlows(ctx context.Context, ws models.WorkspaceID, docID string) ([]*models.TextFlow, error)

	// FindTextFlowCandidates returns text flows in the source locale whose target
	// in the target locale is Translated or Approved, in id order.
	FindTextFlowCandidates(ctx context.Context, q CandidateQuery) ([]*TextFlowCandidate, error)

	// GetTransMemoryDetail describes where a text flow and its target in localeID live.
	// Returns ErrTextFlowNotFound if the text flow doesn't exist.
	GetTransMemoryDetail(ctx context.Context, localeID string, textFlowID int64) (*models.TransMemoryDetails, error)

	// TranslatedTextFlowIDs returns ids of text flows whose target in localeID is
	// Translated or Approved.
	TranslatedTextFlowIDs(ctx context.Context, localeID string) ([]int64, error)
}

// TargetTx is the view of text flow targets inside one transaction.
type TargetTx interface {
	// TextFlowExists reports whether a text flow with the id exists in the
	// project version of ws.
	TextFlowExists(ctx context.Context, ws models.WorkspaceID, textFlowID int64) (bool, error)

	// GetTarget returns nil, nil when the text flow has no target in the locale.
	GetTarget(ctx context.Context, textFlowID int64, localeID string) (*models.TextFlowTarget, error)

	// SaveTarget inserts or updates the target; the caller sets the new version.
	SaveTarget(ctx context.Context, target *models.TextFlowTarget) error

	// AppendHistory records a target as it was before an update.
	AppendHistory(ctx context.Context, previous *models.TextFlowTarget) error
}

// TargetStorage runs target updates atomically.
type TargetStorage interface {
	// RunInTx commits when fn returns nil and rolls back otherwise.
	RunInTx(ctx context.Context, fn func(tx TargetTx) error) error
}

// TransMemoryStorage persists imported translation memories.
type TransMemoryStorage interface {
	// SaveTranslationMemory creates the memory if it doesn't exist and returns it.
	SaveTranslationMemory(ctx context.Context, tm *models.TranslationMemory) (*models.TranslationMemory, error)

	// SaveTransMemoryUnits upserts units by unique id and returns their number.
	SaveTransMemoryUnits(ctx context.Context, tmSlug string, units []*models.TransMemoryUnit) (int, error)

	// FindTransMemoryUnitCandidates returns units with variants in both locales of q.
	// Only RequireContext applies, and units without a context always pass it;
	// imported units carry no document or project.
	FindTransMemoryUnitCandidates(ctx context.Context, q CandidateQuery) ([]*models.TransMemoryUnit, error)

	// GetTransMemoryUnit returns ErrTransMemoryNotFound if it doesn't exist.
	GetTransMemoryUnit(ctx context.Context, id int64) (*models.TransMemoryUnit, error)
}
