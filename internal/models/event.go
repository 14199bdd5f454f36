package models

import "time"

// TextFlowTargetUpdated notifies editors of a workspace that a target changed.
// Merge notifications are sent before the change is applied and carry the
// requested state and contents.
type TextFlowTargetUpdated struct {
	Time           time.Time    `json:"time"`
	ID             string       `json:"id"`
	Workspace      WorkspaceID  `json:"workspace"`
	EditorClientID string       `json:"editor_client_id,omitempty"`
	UpdateType     UpdateType   `json:"update_type"`
	DocID          string       `json:"doc_id,omitempty"`
	State          ContentState `json:"state"`
	PreviousState  ContentState `json:"previous_state"`
	Username       string       `json:"username,omitempty"`
	Contents       []string     `json:"contents"`
	TextFlowID     int64        `json:"text_flow_id"`
	BaseVersion    int          `json:"base_version"`
}
