package models

import "time"

// TextFlow is a source text unit of a document.
type TextFlow struct {
	Document *Document `json:"document"`
	// Target is the translation in the locale the text flow was loaded for.
	Target   *TextFlowTarget `json:"target,omitempty"`
	ResID    string          `json:"res_id"`
	Context  string          `json:"context,omitempty"` // msgctxt
	Contents []string        `json:"contents"`
	ID       int64           `json:"id"`
	Position int             `json:"position"`
}

// TextFlowTarget is the translation of a text flow into one locale.
type TextFlowTarget struct {
	LastChanged    time.Time    `json:"last_changed"`
	LocaleID       string       `json:"locale_id"`
	State          ContentState `json:"state"`
	Comment        string       `json:"comment,omitempty"`
	LastModifiedBy string       `json:"last_modified_by,omitempty"`
	Contents       []string     `json:"contents"`
	TextFlowID     int64        `json:"text_flow_id"`
	Version        int          `json:"version"`
}

// TargetState returns the state of an optional target, New when absent.
func TargetState(t *TextFlowTarget) ContentState {
	if t == nil {
		return StateNew
	}
	return t.State
}

// TargetVersion returns the version of an optional target, 0 when absent.
func TargetVersion(t *TextFlowTarget) int {
	if t == nil {
		return 0
	}
	return t.Version
}
