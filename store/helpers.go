package store

import (
	"context"

	"github.com/pkg/errors"
)

// Get reads a document and returns ErrNotFound when it is absent.
func Get(ctx context.Context, s Store, key Key) (*Snapshot, error) {
	snap, err := s.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	if !snap.Exists() {
		return nil, errors.Wrap(ErrNotFound, key.String())
	}
	return snap, nil
}

// Set creates or overwrites a document.
func Set(ctx context.Context, s Store, key Key, fields Fields) error {
	return s.Commit(ctx, nil, []Write{{Key: key, Op: OpSet, Fields: fields}})
}

// Update merges fields into an existing document.
func Update(ctx context.Context, s Store, key Key, fields Fields) error {
	return s.Commit(ctx, nil, []Write{{Key: key, Op: OpUpdate, Fields: fields}})
}

// Delete removes a document. Deleting a missing document is not an error.
func Delete(ctx context.Context, s Store, key Key) error {
	return s.Commit(ctx, nil, []Write{{Key: key, Op: OpDelete}})
}
