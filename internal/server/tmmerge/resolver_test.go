package tmmerge

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iudanet/tmmerge/internal/models"
)

// короткие имена правил для таблиц
const (
	R = models.RuleReject
	F = models.RuleFuzzy
	O = models.RuleOverwrite
)

var dest = &models.TextFlow{
	ID:       1,
	Context:  "menu",
	Contents: []string{"Save"},
	Document: &models.Document{ProjectSlug: "guide", VersionSlug: "1.0", DocID: "ui.po", SourceLocale: "en-US"},
}

func mergeRequest(threshold int, ctxRule, docRule, projectRule models.MergeRule) *models.TransMemoryMerge {
	return &models.TransMemoryMerge{
		WorkspaceID:           models.WorkspaceID{ProjectSlug: "guide", VersionSlug: "1.0", LocaleID: "de"},
		ThresholdPercent:      threshold,
		DifferentContextRule:  ctxRule,
		DifferentDocumentRule: docRule,
		DifferentProjectRule:  projectRule,
	}
}

func internalMatch(score float64, project, doc, context string) Match {
	return Match{
		Item: &models.TransMemoryResultItem{MatchType: models.MatchTextFlow, SimilarityPercent: score},
		Origin: TextFlowOrigin{Details: models.TransMemoryDetails{
			ProjectSlug: project, DocID: doc, MsgContext: context,
		}},
	}
}

func importedMatch(score float64, context string) Match {
	return Match{
		Item:   &models.TransMemoryResultItem{MatchType: models.MatchImported, SimilarityPercent: score},
		Origin: ImportedOrigin{TMSlug: "legacy", UniqueID: "u1", Context: context},
	}
}

func TestDecideStatus(t *testing.T) {
	needReview := &models.TextFlowTarget{State: models.StateNeedReview}
	rejected := &models.TextFlowTarget{State: models.StateRejected}
	untranslated := &models.TextFlowTarget{State: models.StateNew}

	tests := []struct {
		old       *models.TextFlowTarget
		req       *models.TransMemoryMerge
		name      string
		want      models.ContentState
		match     Match
		wantApply bool
	}{
		{
			name:      "95 with everything equal is translated",
			req:       mergeRequest(80, F, F, F),
			match:     internalMatch(95, "guide", "ui.po", "menu"),
			want:      models.StateTranslated,
			wantApply: true,
		},
		{
			name:  "below threshold",
			req:   mergeRequest(80, F, F, F),
			match: internalMatch(70, "guide", "ui.po", "menu"),
		},
		{
			name:      "threshold is inclusive",
			req:       mergeRequest(80, F, F, F),
			match:     internalMatch(80, "guide", "ui.po", "menu"),
			want:      models.StateTranslated,
			wantApply: true,
		},
		{
			name:  "different project rejected",
			req:   mergeRequest(80, F, F, R),
			match: internalMatch(100, "other", "ui.po", "menu"),
		},
		{
			name:      "different project fuzzy",
			req:       mergeRequest(80, O, O, F),
			match:     internalMatch(100, "other", "ui.po", "menu"),
			want:      models.StateNeedReview,
			wantApply: true,
		},
		{
			name:      "different project overwrite",
			req:       mergeRequest(80, R, R, O),
			match:     internalMatch(100, "other", "ui.po", "menu"),
			want:      models.StateTranslated,
			wantApply: true,
		},
		{
			name:  "different context rejected",
			req:   mergeRequest(80, R, O, O),
			match: internalMatch(100, "guide", "ui.po", "toolbar"),
		},
		{
			name:      "different document fuzzy",
			req:       mergeRequest(80, O, F, O),
			match:     internalMatch(100, "guide", "other.po", "menu"),
			want:      models.StateNeedReview,
			wantApply: true,
		},
		{
			name:  "fuzzy over need review is skipped",
			req:   mergeRequest(80, O, F, O),
			match: internalMatch(100, "guide", "other.po", "menu"),
			old:   needReview,
		},
		{
			name:  "fuzzy over rejected is skipped",
			req:   mergeRequest(80, O, F, O),
			match: internalMatch(100, "guide", "other.po", "menu"),
			old:   rejected,
		},
		{
			name:      "fuzzy over new target",
			req:       mergeRequest(80, O, F, O),
			match:     internalMatch(100, "guide", "other.po", "menu"),
			old:       untranslated,
			want:      models.StateNeedReview,
			wantApply: true,
		},
		{
			name:      "translated over need review",
			req:       mergeRequest(80, F, F, F),
			match:     internalMatch(100, "guide", "ui.po", "menu"),
			old:       needReview,
			want:      models.StateTranslated,
			wantApply: true,
		},
		{
			name:      "imported exact with overwrite",
			req:       mergeRequest(80, R, O, O),
			match:     importedMatch(100, "menu"),
			want:      models.StateTranslated,
			wantApply: true,
		},
		{
			name:      "imported fuzzy document rule",
			req:       mergeRequest(80, O, F, O),
			match:     importedMatch(100, "menu"),
			want:      models.StateNeedReview,
			wantApply: true,
		},
		{
			name:  "imported reject project rule",
			req:   mergeRequest(80, O, O, R),
			match: importedMatch(100, "menu"),
		},
		{
			name:      "imported below 100",
			req:       mergeRequest(80, O, O, O),
			match:     importedMatch(90, "menu"),
			want:      models.StateNeedReview,
			wantApply: true,
		},
		{
			name:  "imported different context rejected",
			req:   mergeRequest(80, R, O, O),
			match: importedMatch(100, "toolbar"),
		},
		{
			name:      "imported without context passes context reject",
			req:       mergeRequest(80, R, O, O),
			match:     importedMatch(100, ""),
			want:      models.StateTranslated,
			wantApply: true,
		},
		{
			name:  "missing item",
			req:   mergeRequest(0, O, O, O),
			match: Match{Origin: ImportedOrigin{}},
		},
		{
			name:  "unknown origin",
			req:   mergeRequest(0, O, O, O),
			match: Match{Item: &models.TransMemoryResultItem{SimilarityPercent: 100}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DecideStatus(tt.req, dest, tt.match, tt.old)
			assert.Equal(t, tt.wantApply, ok)
			if tt.wantApply {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestDecideStatus_Deterministic(t *testing.T) {
	req := mergeRequest(50, F, F, F)
	match := internalMatch(88, "other", "x.po", "")
	before := *match.Item

	first, ok1 := DecideStatus(req, dest, match, nil)
	for range 10 {
		got, ok := DecideStatus(req, dest, match, nil)
		assert.Equal(t, first, got)
		assert.Equal(t, ok1, ok)
	}
	assert.Equal(t, before, *match.Item)
}

func TestProvenanceComment(t *testing.T) {
	assert.Equal(t,
		"auto translated by TM merge from translation memory: legacy, unique id: u-42",
		ProvenanceComment(ImportedOrigin{TMSlug: "legacy", UniqueID: "u-42"}))

	assert.Equal(t,
		"auto translated by TM merge from project: User Guide, version: 1.0, DocId: docs/intro.po",
		ProvenanceComment(TextFlowOrigin{Details: models.TransMemoryDetails{
			ProjectName: "User Guide", IterationName: "1.0", DocID: "docs/intro.po",
		}}))
}
