// Package store defines the transactional key-document contract the ledger
// runs on. Backends only implement Read, Commit and List; single-document
// writes, transactions and batches are all expressed through Commit.
package store

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrNotFound       = errors.New("store: document not found")
	ErrConflict       = errors.New("store: transaction conflict")
	ErrReadAfterWrite = errors.New("store: transaction reads must precede writes")
	ErrInvalidWrite   = errors.New("store: invalid write")
)

// Fields is the content of a document. Values must be JSON-encodable.
type Fields map[string]any

// Key addresses one document.
type Key struct {
	Collection string
	ID         string
}

func (k Key) String() string {
	return k.Collection + "/" + k.ID
}

// Snapshot is a document as read at a given version. Version 0 means the
// document did not exist.
type Snapshot struct {
	Key     Key
	Fields  Fields
	Version int64
}

func (s *Snapshot) Exists() bool {
	return s != nil && s.Version > 0
}

// DataTo decodes the document fields into v.
func (s *Snapshot) DataTo(v any) error {
	data, err := json.Marshal(s.Fields)
	if err != nil {
		return errors.Wrapf(err, "store: encode %s", s.Key)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "store: decode %s", s.Key)
	}
	return nil
}

type Op int

const (
	OpSet Op = iota + 1
	OpUpdate
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpSet:
		return "set"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	}
	return "unknown"
}

// Write is one buffered mutation. Set overwrites the document, Update merges
// top-level fields into an existing document and Delete removes it.
type Write struct {
	Key    Key
	Op     Op
	Fields Fields
}

// ReadStamp records the version a transaction observed for a key.
type ReadStamp struct {
	Key     Key
	Version int64
}

// Store is implemented by every backend.
type Store interface {
	// Read never fails for a missing document; it returns a snapshot whose
	// Exists reports false.
	Read(ctx context.Context, key Key) (*Snapshot, error)

	// Commit applies writes atomically after checking that every read stamp
	// still matches the stored version. A mismatch returns ErrConflict and
	// nothing is applied. An Update of a missing document returns
	// ErrNotFound. With no reads Commit behaves as a plain batched write.
	Commit(ctx context.Context, reads []ReadStamp, writes []Write) error

	// List returns every document of a collection ordered by id.
	List(ctx context.Context, collection string) ([]*Snapshot, error)

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// NewID returns an opaque document id.
func NewID() string {
	return uuid.NewString()
}

// EncodeFields converts any JSON-encodable value into Fields.
func EncodeFields(v any) (Fields, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "store: encode fields")
	}
	return DecodeFields(data)
}

// MarshalFields encodes fields as a JSON object.
func MarshalFields(f Fields) ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, errors.Wrap(err, "store: encode fields")
	}
	return data, nil
}

// DecodeFields parses a JSON object, keeping numbers exact.
func DecodeFields(data []byte) (Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var f Fields
	if err := dec.Decode(&f); err != nil {
		return nil, errors.Wrap(err, "store: decode fields")
	}
	if f == nil {
		f = Fields{}
	}
	return f, nil
}

// Merge returns a copy of f with the top-level fields of patch applied.
func (f Fields) Merge(patch Fields) Fields {
	out := make(Fields, len(f)+len(patch))
	for k, v := range f {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// Validate checks the shape of a write before a backend applies it.
func (w Write) Validate() error {
	if w.Key.Collection == "" || w.Key.ID == "" {
		return errors.Wrapf(ErrInvalidWrite, "empty key %q", w.Key)
	}
	switch w.Op {
	case OpSet, OpUpdate, OpDelete:
		return nil
	}
	return errors.Wrapf(ErrInvalidWrite, "op %d on %s", w.Op, w.Key)
}
