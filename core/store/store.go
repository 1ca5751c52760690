// Package store keeps opaque records keyed by kind and id.
//
// Writes are last-write-wins, there are no transactions. Callers that need a
// single writer per id take a lease from a [Locker] first.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("record not found")

// Store is a keyed record store.
type Store interface {
	Get(ctx context.Context, kind, id string) ([]byte, error)
	Put(ctx context.Context, kind, id string, data []byte) error
	// List returns the ids stored under kind, in no particular order.
	List(ctx context.Context, kind string) ([]string, error)
}

// GetJSON reads a record and decodes it into a T.
func GetJSON[T any](ctx context.Context, s Store, kind, id string) (T, error) {
	var v T
	data, err := s.Get(ctx, kind, id)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("failed to decode %s %q: %w", kind, id, err)
	}
	return v, nil
}

// PutJSON encodes v and writes it as a record.
func PutJSON(ctx context.Context, s Store, kind, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s %q: %w", kind, id, err)
	}
	return s.Put(ctx, kind, id, data)
}
