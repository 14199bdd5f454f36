package models

import (
	"fmt"
	"strings"
)

// ContentState is the review state of a translation.
type ContentState string

const (
	StateNew        ContentState = "New"
	StateNeedReview ContentState = "NeedReview"
	StateTranslated ContentState = "Translated"
	StateApproved   ContentState = "Approved"
	StateRejected   ContentState = "Rejected"
)

// IsTranslated reports whether the state counts as a complete translation.
func (s ContentState) IsTranslated() bool {
	return s == StateTranslated || s == StateApproved
}

// IsRejectedOrFuzzy reports whether the state still needs reviewer attention.
func (s ContentState) IsRejectedOrFuzzy() bool {
	return s == StateNeedReview || s == StateRejected
}

// Valid reports whether s is one of the known states.
func (s ContentState) Valid() bool {
	switch s {
	case StateNew, StateNeedReview, StateTranslated, StateApproved, StateRejected:
		return true
	}
	return false
}

// ParseContentState parses a state name case-insensitively.
func ParseContentState(v string) (ContentState, error) {
	for _, s := range []ContentState{StateNew, StateNeedReview, StateTranslated, StateApproved, StateRejected} {
		if strings.EqualFold(string(s), v) {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown content state %q", v)
}

// EntityStatus is the lifecycle status of projects and versions.
type EntityStatus string

const (
	StatusActive   EntityStatus = "ACTIVE"
	StatusReadOnly EntityStatus = "READONLY"
	StatusObsolete EntityStatus = "OBSOLETE"
)

// ParseEntityStatus accepts a full status name or its initial (A, R, O).
func ParseEntityStatus(v string) (EntityStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "A", string(StatusActive):
		return StatusActive, nil
	case "R", string(StatusReadOnly):
		return StatusReadOnly, nil
	case "O", string(StatusObsolete):
		return StatusObsolete, nil
	}
	return "", fmt.Errorf("unknown entity status %q", v)
}

// rank orders statuses for display: active, read-only, obsolete.
func (s EntityStatus) rank() int {
	switch s {
	case StatusActive:
		return 0
	case StatusReadOnly:
		return 1
	case StatusObsolete:
		return 2
	}
	return 3
}

// Less reports whether s sorts before other.
func (s EntityStatus) Less(other EntityStatus) bool {
	return s.rank() < other.rank()
}
