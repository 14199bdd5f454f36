// Package tmsearch finds the best translation memory match for a text flow.
//
// Candidates come from two sources: translated text flows of the server
// (internal matches) and units of imported translation memories.
package tmsearch

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iudanet/tmmerge/internal/models"
	"github.com/iudanet/tmmerge/internal/server/statecache"
	"github.com/iudanet/tmmerge/internal/server/storage"
	"github.com/iudanet/tmmerge/internal/similarity"
)

// DefaultCandidateLimit is the page size used when loading candidates.
// Every page is scored, the limit only bounds memory per round trip.
const DefaultCandidateLimit = 500

// TextFlowSource provides internal candidates.
type TextFlowSource interface {
	FindTextFlowCandidates(ctx context.Context, q storage.CandidateQuery) ([]*storage.TextFlowCandidate, error)
	GetTransMemoryDetail(ctx context.Context, localeID string, textFlowID int64) (*models.TransMemoryDetails, error)
}

// UnitSource provides imported candidates.
type UnitSource interface {
	FindTransMemoryUnitCandidates(ctx context.Context, q storage.CandidateQuery) ([]*models.TransMemoryUnit, error)
}

// StateFilter tells which text flows are translated in a locale.
type StateFilter interface {
	Filter(ctx context.Context, localeID string) (statecache.Filter, error)
}

// Query describes one lookup.
type Query struct {
	TextFlow                *models.TextFlow
	SourceLocale            string
	TargetLocale            string
	ThresholdPercent        int
	RejectDifferentContext  bool
	RejectDifferentDocument bool
	RejectDifferentProject  bool
}

// Service performs TM lookups.
type Service struct {
	logger    *slog.Logger
	textFlows TextFlowSource
	units     UnitSource
	states    StateFilter
	limit     int
}

// NewService creates a lookup service. limit is the candidate page size,
// <= 0 selects DefaultCandidateLimit.
func NewService(logger *slog.Logger, textFlows TextFlowSource, units UnitSource, states StateFilter, limit int) *Service {
	if limit <= 0 {
		limit = DefaultCandidateLimit
	}
	return &Service{
		logger:    logger,
		textFlows: textFlows,
		units:     units,
		states:    states,
		limit:     limit,
	}
}

// scored is a candidate with its ranking keys.
type scored struct {
	lastChanged time.Time
	item        *models.TransMemoryResultItem
	score       float64
	equalDims   int
	id          int64
	internal    bool
}

// SearchBestMatch returns the best match at or above the threshold, or nil.
func (s *Service) SearchBestMatch(ctx context.Context, q Query) (*models.TransMemoryResultItem, error) {
	tf := q.TextFlow
	if tf == nil || len(tf.Contents) == 0 || tf.Document == nil {
		return nil, nil
	}
	threshold := float64(q.ThresholdPercent)

	cq := storage.CandidateQuery{
		SourceLocale:      q.SourceLocale,
		TargetLocale:      q.TargetLocale,
		ExcludeTextFlowID: tf.ID,
		Context:           tf.Context,
		DocID:             tf.Document.DocID,
		ProjectSlug:       tf.Document.ProjectSlug,
		RequireContext:    q.RejectDifferentContext,
		RequireDocument:   q.RejectDifferentDocument,
		RequireProject:    q.RejectDifferentProject,
		Limit:             s.limit,
	}
	// для plural форм длины не ограничиваем: сравнивается каждая форма
	if len(tf.Contents) == 1 {
		if lo, hi, ok := similarity.LengthBounds(similarity.Length(tf.Contents[0]), threshold); ok {
			cq.MinLength, cq.MaxLength = lo, hi
		}
	}

	var internal, imported []scored
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		internal, err = s.internalCandidates(gctx, q, cq, threshold)
		return err
	})
	// происхождение импортированных единиц неизвестно, т.е. документ и проект
	// считаются другими; REJECT по ним исключает весь импорт
	if !q.RejectDifferentDocument && !q.RejectDifferentProject {
		g.Go(func() error {
			var err error
			imported, err = s.importedCandidates(gctx, q, cq, threshold)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := append(internal, imported...)
	if len(all) == 0 {
		return nil, nil
	}
	slices.SortStableFunc(all, compareScored)

	best := all[0]
	best.item.SourceIDList = []int64{best.id}
	bestKey := contentKey(best.item)
	for _, c := range all[1:] {
		if c.internal == best.internal && contentKey(c.item) == bestKey {
			best.item.SourceIDList = append(best.item.SourceIDList, c.id)
		}
	}

	s.logger.DebugContext(ctx, "tm match found",
		slog.Int64("text_flow_id", tf.ID),
		slog.String("match_type", string(best.item.MatchType)),
		slog.Float64("similarity", best.score),
		slog.Int("candidates", len(all)))

	return best.item, nil
}

func (s *Service) internalCandidates(ctx context.Context, q Query, cq storage.CandidateQuery, threshold float64) ([]scored, error) {
	filter, err := s.states.Filter(ctx, q.TargetLocale)
	if err != nil {
		return nil, err
	}

	var result []scored
	for {
		rows, err := s.textFlows.FindTextFlowCandidates(ctx, cq)
		if err != nil {
			return nil, fmt.Errorf("failed to load text flow candidates: %w", err)
		}
		result = scoreTextFlows(q, filter, threshold, rows, result)
		if len(rows) < cq.Limit {
			return result, nil
		}
		cq.AfterID = rows[len(rows)-1].TextFlowID
	}
}

func scoreTextFlows(q Query, filter statecache.Filter, threshold float64, rows []*storage.TextFlowCandidate, result []scored) []scored {
	tf := q.TextFlow
	for _, c := range rows {
		if !filter.Contains(c.TextFlowID) {
			continue
		}
		score := similarity.ScoreContents(tf.Contents, c.SourceContents)
		if score < threshold || score == 0 {
			continue
		}
		sameContext := c.Context == tf.Context
		sameDoc := c.DocID == tf.Document.DocID
		sameProject := c.ProjectSlug == tf.Document.ProjectSlug
		if (q.RejectDifferentContext && !sameContext) ||
			(q.RejectDifferentDocument && !sameDoc) ||
			(q.RejectDifferentProject && !sameProject) {
			continue
		}

		result = append(result, scored{
			item: &models.TransMemoryResultItem{
				LastModified:      c.LastChanged,
				MatchType:         models.MatchTextFlow,
				OriginProject:     c.ProjectSlug,
				OriginDocument:    c.DocID,
				OriginContext:     c.Context,
				SourceContents:    c.SourceContents,
				TargetContents:    c.TargetContents,
				SimilarityPercent: score,
			},
			score:       score,
			equalDims:   countTrue(sameContext, sameDoc, sameProject),
			internal:    true,
			lastChanged: c.LastChanged,
			id:          c.TextFlowID,
		})
	}
	return result
}

func (s *Service) importedCandidates(ctx context.Context, q Query, cq storage.CandidateQuery, threshold float64) ([]scored, error) {
	tf := q.TextFlow
	// единица TM хранит одну форму
	if len(tf.Contents) != 1 {
		return nil, nil
	}

	var result []scored
	for {
		units, err := s.units.FindTransMemoryUnitCandidates(ctx, cq)
		if err != nil {
			return nil, fmt.Errorf("failed to load tm unit candidates: %w", err)
		}
		result = scoreUnits(q, threshold, units, result)
		if len(units) < cq.Limit {
			return result, nil
		}
		cq.AfterID = units[len(units)-1].ID
	}
}

func scoreUnits(q Query, threshold float64, units []*models.TransMemoryUnit, result []scored) []scored {
	tf := q.TextFlow
	for _, u := range units {
		source := []string{u.Variants[q.SourceLocale]}
		score := similarity.ScoreContents(tf.Contents, source)
		if score < threshold || score == 0 {
			continue
		}
		if q.RejectDifferentContext && u.Context != "" && u.Context != tf.Context {
			continue
		}

		result = append(result, scored{
			item: &models.TransMemoryResultItem{
				LastModified:      u.LastChanged,
				MatchType:         models.MatchImported,
				OriginDocument:    u.TMSlug,
				OriginContext:     u.Context,
				SourceContents:    source,
				TargetContents:    []string{u.Variants[q.TargetLocale]},
				SimilarityPercent: score,
			},
			score:       score,
			equalDims:   countTrue(u.Context == tf.Context),
			lastChanged: u.LastChanged,
			id:          u.ID,
		})
	}
	return result
}

// GetTransMemoryDetail describes where an internal match lives.
func (s *Service) GetTransMemoryDetail(ctx context.Context, localeID string, textFlowID int64) (*models.TransMemoryDetails, error) {
	d, err := s.textFlows.GetTransMemoryDetail(ctx, localeID, textFlowID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tm detail: %w", err)
	}
	return d, nil
}

// compareScored: выше балл, больше совпавших измерений, внутренние раньше
// импортированных, более свежие, меньший id.
func compareScored(a, b scored) int {
	if c := cmp.Compare(b.score, a.score); c != 0 {
		return c
	}
	if c := cmp.Compare(b.equalDims, a.equalDims); c != 0 {
		return c
	}
	if a.internal != b.internal {
		if a.internal {
			return -1
		}
		return 1
	}
	if c := b.lastChanged.Compare(a.lastChanged); c != 0 {
		return c
	}
	return cmp.Compare(a.id, b.id)
}

func contentKey(item *models.TransMemoryResultItem) string {
	return strings.Join(item.SourceContents, "\x00") + "\x01" + strings.Join(item.TargetContents, "\x00")
}

func countTrue(flags ...bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}
