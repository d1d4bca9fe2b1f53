// Package memory provides an in-process store.Store guarded by a single
// mutex. It is used by tests and by STORE_DRIVER=memory.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/toxnroot/trans-invoice-v3/store"
)

var _ store.Store = (*Store)(nil)

type entry struct {
	data    []byte
	version int64
}

type Store struct {
	mu sync.RWMutex

	// seq feeds versions so a deleted-then-recreated document never reuses
	// a version a stale reader may hold.
	seq  int64
	docs map[store.Key]entry
}

func New() *Store {
	return &Store{docs: make(map[store.Key]entry)}
}

func (s *Store) Read(_ context.Context, key store.Key) (*store.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.docs[key]
	if !ok {
		return &store.Snapshot{Key: key}, nil
	}
	return snapshot(key, e)
}

func (s *Store) Commit(_ context.Context, reads []store.ReadStamp, writes []store.Write) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range reads {
		if s.docs[r.Key].version != r.Version {
			return errors.Wrap(store.ErrConflict, r.Key.String())
		}
	}

	// Stage every write before touching the map so a failing write leaves
	// the store unchanged.
	staged := make(map[store.Key]*entry)
	current := func(k store.Key) *entry {
		if e, ok := staged[k]; ok {
			return e
		}
		if e, ok := s.docs[k]; ok {
			return &e
		}
		return nil
	}

	seq := s.seq
	for _, w := range writes {
		if err := w.Validate(); err != nil {
			return err
		}
		switch w.Op {
		case store.OpDelete:
			staged[w.Key] = nil
		case store.OpSet:
			data, err := store.MarshalFields(w.Fields)
			if err != nil {
				return err
			}
			seq++
			staged[w.Key] = &entry{data: data, version: seq}
		case store.OpUpdate:
			cur := current(w.Key)
			if cur == nil {
				return errors.Wrap(store.ErrNotFound, w.Key.String())
			}
			fields, err := store.DecodeFields(cur.data)
			if err != nil {
				return err
			}
			data, err := store.MarshalFields(fields.Merge(w.Fields))
			if err != nil {
				return err
			}
			seq++
			staged[w.Key] = &entry{data: data, version: seq}
		}
	}

	s.seq = seq
	for k, e := range staged {
		if e == nil {
			delete(s.docs, k)
			continue
		}
		s.docs[k] = *e
	}
	return nil
}

func (s *Store) List(_ context.Context, collection string) ([]*store.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*store.Snapshot, 0)
	for k, e := range s.docs {
		if k.Collection != collection {
			continue
		}
		snap, err := snapshot(k, e)
		if err != nil {
			return nil, err
		}
		result = append(result, snap)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key.ID < result[j].Key.ID })
	return result, nil
}

func (s *Store) Migrate(context.Context) error { return nil }

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func snapshot(key store.Key, e entry) (*store.Snapshot, error) {
	fields, err := store.DecodeFields(e.data)
	if err != nil {
		return nil, err
	}
	return &store.Snapshot{Key: key, Fields: fields, Version: e.version}, nil
}
