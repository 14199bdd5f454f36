package api

import "time"

// TextUnit is a text flow with its translation in the workspace locale.
type TextUnit struct {
	DocID          string   `json:"doc_id"`
	ResID          string   `json:"res_id"`
	Context        string   `json:"context,omitempty"`
	State          string   `json:"state"`
	Contents       []string `json:"contents"`
	TargetContents []string `json:"target_contents,omitempty"`
	ID             int64    `json:"id"`
	Version        int      `json:"version"`
}

// UnitsResponse lists the units of a workspace.
type UnitsResponse struct {
	Units []TextUnit `json:"units"`
}

// UnitRef names a text unit and the target version the caller has seen.
type UnitRef struct {
	ID          int64 `json:"id"`
	BaseVersion int   `json:"base_version"`
}

// MergeRequest is the body of POST .../tm-merge.
// Rules are REJECT, FUZZY or OVERWRITE.
type MergeRequest struct {
	EditorClientID        string    `json:"editor_client_id,omitempty"`
	DifferentContextRule  string    `json:"different_context_rule"`
	DifferentDocumentRule string    `json:"different_document_rule"`
	DifferentProjectRule  string    `json:"different_project_rule"`
	Units                 []UnitRef `json:"units"`
	ThresholdPercent      int       `json:"threshold_percent"`
}

// TranslationUpdate sets the translation of one unit.
type TranslationUpdate struct {
	State       string   `json:"state"`
	Comment     string   `json:"comment,omitempty"`
	Contents    []string `json:"contents"`
	ID          int64    `json:"id"`
	BaseVersion int      `json:"base_version"`
}

// TranslateRequest is the body of POST .../translations.
type TranslateRequest struct {
	EditorClientID string              `json:"editor_client_id,omitempty"`
	Updates        []TranslationUpdate `json:"updates"`
}

// TranslationResult is the outcome for one unit.
type TranslationResult struct {
	State       string   `json:"state"`
	Error       string   `json:"error,omitempty"`
	Contents    []string `json:"contents,omitempty"`
	ID          int64    `json:"id"`
	BaseVersion int      `json:"base_version"`
	NewVersion  int      `json:"new_version"`
	Success     bool     `json:"success"`
}

// TranslationResultsResponse is returned by tm-merge and translations.
type TranslationResultsResponse struct {
	Results []TranslationResult `json:"results"`
}

// Event is one Server-Sent Event of the workspace stream.
type Event struct {
	Time           time.Time `json:"time"`
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	EditorClientID string    `json:"editor_client_id,omitempty"`
	DocID          string    `json:"doc_id,omitempty"`
	State          string    `json:"state"`
	PreviousState  string    `json:"previous_state"`
	Username       string    `json:"username,omitempty"`
	Contents       []string  `json:"contents"`
	TextFlowID     int64     `json:"text_flow_id"`
	BaseVersion    int       `json:"base_version"`
}

// TMUnit is one unit of an imported translation memory.
type TMUnit struct {
	UniqueID     string            `json:"unique_id"`
	SourceLocale string            `json:"source_locale"`
	Context      string            `json:"context,omitempty"`
	Variants     map[string]string `json:"variants"`
}

// ImportTMRequest is the body of PUT /api/v1/tm/{slug}.
type ImportTMRequest struct {
	Description string   `json:"description,omitempty"`
	Units       []TMUnit `json:"units"`
}

// ImportTMResponse summarizes an import.
type ImportTMResponse struct {
	Slug  string `json:"slug"`
	Units int    `json:"units"`
}
