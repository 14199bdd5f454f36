package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/tmmerge/internal/client/storage"
)

// ключи big-endian, поэтому курсор обходит записи в порядке добавления
func historyKey(id uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, id)
	return key
}

// AddMergeRecord appends a merge record and assigns its ID
func (s *Storage) AddMergeRecord(ctx context.Context, rec *storage.MergeRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketHistory)
		if bucket == nil {
			return fmt.Errorf("history bucket not found")
		}

		id, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate record id: %w", err)
		}
		stored := *rec
		stored.ID = id

		data, err := json.Marshal(&stored)
		if err != nil {
			return fmt.Errorf("failed to marshal merge record: %w", err)
		}
		if err := bucket.Put(historyKey(id), data); err != nil {
			return fmt.Errorf("failed to save merge record: %w", err)
		}
		rec.ID = id
		return nil
	})
}

// ListMergeRecords returns up to limit records, newest first
func (s *Storage) ListMergeRecords(ctx context.Context, limit int) ([]*storage.MergeRecord, error) {
	var records []*storage.MergeRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketHistory)
		if bucket == nil {
			return fmt.Errorf("history bucket not found")
		}

		c := bucket.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(records) >= limit {
				break
			}
			rec := &storage.MergeRecord{}
			if err := json.Unmarshal(v, rec); err != nil {
				return fmt.Errorf("failed to unmarshal merge record %x: %w", k, err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}
