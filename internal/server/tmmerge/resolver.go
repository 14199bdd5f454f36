package tmmerge

import (
	"github.com/iudanet/tmmerge/internal/models"
	"github.com/iudanet/tmmerge/internal/similarity"
)

// Origin tells where a TM match comes from: ImportedOrigin or TextFlowOrigin.
type Origin interface {
	origin()
}

// ImportedOrigin is a unit of an imported translation memory.
type ImportedOrigin struct {
	TMSlug   string
	UniqueID string
	// Context is empty when the memory did not record one.
	Context string
}

// TextFlowOrigin is a translated text flow of this server.
type TextFlowOrigin struct {
	Details models.TransMemoryDetails
}

func (ImportedOrigin) origin() {}
func (TextFlowOrigin) origin() {}

// Match is a TM result together with its provenance.
type Match struct {
	Origin Origin
	Item   *models.TransMemoryResultItem
}

// DecideStatus returns the state a merged translation gets, or false when the
// match must not be applied. It only reads its arguments.
func DecideStatus(req *models.TransMemoryMerge, dest *models.TextFlow, match Match, oldTarget *models.TextFlowTarget) (models.ContentState, bool) {
	if match.Item == nil || match.Item.SimilarityPercent < float64(req.ThresholdPercent) {
		return "", false
	}

	needReview := false
	check := func(differs bool, rule models.MergeRule) bool {
		if !differs {
			return true
		}
		switch rule {
		case models.RuleReject:
			return false
		case models.RuleFuzzy:
			needReview = true
		}
		return true
	}

	switch o := match.Origin.(type) {
	case TextFlowOrigin:
		var docID, project string
		if dest.Document != nil {
			docID, project = dest.Document.DocID, dest.Document.ProjectSlug
		}
		if !check(o.Details.MsgContext != dest.Context, req.DifferentContextRule) ||
			!check(o.Details.DocID != docID, req.DifferentDocumentRule) ||
			!check(o.Details.ProjectSlug != project, req.DifferentProjectRule) {
			return "", false
		}

	case ImportedOrigin:
		// документ и проект импортированной единицы неизвестны: считаем их другими
		if !check(o.Context != "" && o.Context != dest.Context, req.DifferentContextRule) ||
			!check(true, req.DifferentDocumentRule) ||
			!check(true, req.DifferentProjectRule) {
			return "", false
		}
		if match.Item.SimilarityPercent < similarity.Exact {
			needReview = true
		}

	default:
		return "", false
	}

	if !needReview {
		return models.StateTranslated, true
	}
	// не заменяем один непроверенный перевод другим
	if models.TargetState(oldTarget).IsRejectedOrFuzzy() {
		return "", false
	}
	return models.StateNeedReview, true
}
