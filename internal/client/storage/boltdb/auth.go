package boltdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/tmmerge/internal/client/storage"
)

// клиент хранит ровно одну сессию
var sessionKey = []byte("session")

func authBucket(tx *bbolt.Tx) (*bbolt.Bucket, error) {
	b := tx.Bucket(bucketAuth)
	if b == nil {
		return nil, fmt.Errorf("bucket %s not found", bucketAuth)
	}
	return b, nil
}

// SaveAuth replaces the current session.
func (s *Storage) SaveAuth(_ context.Context, auth *storage.AuthData) error {
	data, err := json.Marshal(auth)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b, err := authBucket(tx)
		if err != nil {
			return err
		}
		return b.Put(sessionKey, data)
	})
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// GetAuth returns storage.ErrAuthNotFound when nobody is logged in.
func (s *Storage) GetAuth(_ context.Context) (*storage.AuthData, error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := authBucket(tx)
		if err != nil {
			return err
		}
		// значение из Get живет только до конца транзакции
		data = bytes.Clone(b.Get(sessionKey))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if data == nil {
		return nil, storage.ErrAuthNotFound
	}

	var auth storage.AuthData
	if err := json.Unmarshal(data, &auth); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &auth, nil
}

// DeleteAuth drops the session on logout.
func (s *Storage) DeleteAuth(_ context.Context) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := authBucket(tx)
		if err != nil {
			return err
		}
		if b.Get(sessionKey) == nil {
			return storage.ErrAuthNotFound
		}
		return b.Delete(sessionKey)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrAuthNotFound):
		return err
	default:
		return fmt.Errorf("failed to delete session: %w", err)
	}
}
