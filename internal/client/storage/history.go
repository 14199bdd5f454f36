package storage

import (
	"context"
	"time"
)

// HistoryStorage keeps a local log of TM merges run from this client
type HistoryStorage interface {
	// AddMergeRecord appends a record and assigns its ID
	AddMergeRecord(ctx context.Context, rec *MergeRecord) error

	// ListMergeRecords returns up to limit records, newest first; limit <= 0 returns all
	ListMergeRecords(ctx context.Context, limit int) ([]*MergeRecord, error)
}

// MergeRecord summarizes one merge request
type MergeRecord struct {
	Time       time.Time `json:"time"`
	Workspace  string    `json:"workspace"` // project/version/locale
	DocID      string    `json:"doc_id"`
	Rules      string    `json:"rules"` // context/document/project
	ID         uint64    `json:"id"`
	Threshold  int       `json:"threshold"`
	Requested  int       `json:"requested"`
	Translated int       `json:"translated"`
	NeedReview int       `json:"need_review"`
	Failed     int       `json:"failed"`
}
