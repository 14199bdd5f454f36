package models

import (
	"fmt"
	"strings"
)

// MergeRule says what to do when a TM match differs from the destination
// in one dimension (context, document or project).
type MergeRule string

const (
	RuleReject    MergeRule = "REJECT"
	RuleFuzzy     MergeRule = "FUZZY"
	RuleOverwrite MergeRule = "OVERWRITE"
)

// ParseMergeRule parses a rule name case-insensitively.
func ParseMergeRule(v string) (MergeRule, error) {
	switch MergeRule(strings.ToUpper(strings.TrimSpace(v))) {
	case RuleReject:
		return RuleReject, nil
	case RuleFuzzy:
		return RuleFuzzy, nil
	case RuleOverwrite:
		return RuleOverwrite, nil
	}
	return "", fmt.Errorf("unknown merge rule %q", v)
}

// UpdateType tags a target update notification.
type UpdateType string

const (
	UpdateEditorSave    UpdateType = "EditorSave"
	UpdateNonEditorSave UpdateType = "NonEditorSave"
)

// TransUnitUpdateRequest asks to set the translation of one text flow.
type TransUnitUpdateRequest struct {
	State                  ContentState `json:"state"`
	TargetComment          string       `json:"target_comment,omitempty"`
	Contents               []string     `json:"contents"`
	TransUnitID            int64        `json:"trans_unit_id"`
	BaseTranslationVersion int          `json:"base_translation_version"`
}

// TransMemoryMerge is a request to fill a workspace from the translation memory.
type TransMemoryMerge struct {
	WorkspaceID           WorkspaceID              `json:"workspace_id"`
	EditorClientID        string                   `json:"editor_client_id"`
	DifferentContextRule  MergeRule                `json:"different_context_rule"`
	DifferentDocumentRule MergeRule                `json:"different_document_rule"`
	DifferentProjectRule  MergeRule                `json:"different_project_rule"`
	UpdateRequests        []TransUnitUpdateRequest `json:"update_requests"`
	ThresholdPercent      int                      `json:"threshold_percent"`
}

// Validate checks the request shape.
func (m *TransMemoryMerge) Validate() error {
	if m.WorkspaceID.LocaleID == "" {
		return fmt.Errorf("locale id is required")
	}
	if m.ThresholdPercent < 0 || m.ThresholdPercent > 100 {
		return fmt.Errorf("threshold must be between 0 and 100, got %d", m.ThresholdPercent)
	}
	for _, r := range []MergeRule{m.DifferentContextRule, m.DifferentDocumentRule, m.DifferentProjectRule} {
		switch r {
		case RuleReject, RuleFuzzy, RuleOverwrite:
		default:
			return fmt.Errorf("unknown merge rule %q", r)
		}
	}
	return nil
}

// TranslationResult is the outcome of applying one update request.
type TranslationResult struct {
	State        ContentState `json:"state"`
	ErrorMessage string       `json:"error_message,omitempty"`
	Contents     []string     `json:"contents,omitempty"`
	TransUnitID  int64        `json:"trans_unit_id"`
	BaseVersion  int          `json:"base_version"`
	NewVersion   int          `json:"new_version"`
	Success      bool         `json:"success"`
}
