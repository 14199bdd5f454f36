package models

import "time"

// MatchType tells where a TM match came from.
type MatchType string

const (
	// MatchImported is an entry of an imported translation memory (TMX and the like).
	MatchImported MatchType = "Imported"
	// MatchTextFlow is an existing translation of another text flow.
	MatchTextFlow MatchType = "InternalTextFlow"
)

// TransMemoryResultItem is the best TM match found for a text flow.
type TransMemoryResultItem struct {
	LastModified   time.Time `json:"last_modified"`
	MatchType      MatchType `json:"match_type"`
	OriginProject  string    `json:"origin_project,omitempty"`
	OriginDocument string    `json:"origin_document,omitempty"`
	OriginContext  string    `json:"origin_context,omitempty"`
	SourceContents []string  `json:"source_contents"`
	TargetContents []string  `json:"target_contents"`
	// SourceIDList holds the text flow ids (MatchTextFlow) or TM unit ids (MatchImported)
	// sharing this match; the first one is the representative.
	SourceIDList      []int64 `json:"source_id_list"`
	SimilarityPercent float64 `json:"similarity_percent"`
}

// SourceID returns the representative source id of the match.
func (r *TransMemoryResultItem) SourceID() int64 {
	if r == nil || len(r.SourceIDList) == 0 {
		return 0
	}
	return r.SourceIDList[0]
}

// TransMemoryDetails describes where an internal TM match lives.
type TransMemoryDetails struct {
	LastModified   time.Time `json:"last_modified"`
	ProjectName    string    `json:"project_name"`
	ProjectSlug    string    `json:"project_slug"`
	IterationName  string    `json:"iteration_name"`
	DocID          string    `json:"doc_id"`
	ResID          string    `json:"res_id"`
	MsgContext     string    `json:"msg_context,omitempty"`
	LastModifiedBy string    `json:"last_modified_by,omitempty"`
}

// TranslationMemory is a named collection of imported TM units.
type TranslationMemory struct {
	CreatedAt   time.Time `json:"created_at"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	ID          int64     `json:"id"`
}

// TransMemoryUnit is one translation unit of an imported memory.
type TransMemoryUnit struct {
	LastChanged  time.Time `json:"last_changed"`
	TMSlug       string    `json:"tm_slug"`
	UniqueID     string    `json:"unique_id"`
	SourceLocale string    `json:"source_locale"`
	Context      string    `json:"context,omitempty"`
	// Variants maps locale id to the text of that locale.
	Variants map[string]string `json:"variants"`
	ID       int64             `json:"id"`
}
