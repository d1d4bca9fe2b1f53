package store

import "context"

// Tx collects the read set and buffered writes of one transaction attempt.
type Tx struct {
	ctx    context.Context
	s      Store
	reads  map[Key]*Snapshot
	order  []Key
	writes []Write
}

// Get reads key and records its version in the read set. Repeated reads of
// the same key return the first snapshot.
func (tx *Tx) Get(key Key) (*Snapshot, error) {
	if snap, ok := tx.reads[key]; ok {
		return snap, nil
	}
	if len(tx.writes) > 0 {
		return nil, ErrReadAfterWrite
	}
	snap, err := tx.s.Read(tx.ctx, key)
	if err != nil {
		return nil, err
	}
	tx.reads[key] = snap
	tx.order = append(tx.order, key)
	return snap, nil
}

// List reads every document of collection and records each version in the
// read set. Documents created after the listing are not detected, so callers
// guard inserts into the collection with a key they also read.
func (tx *Tx) List(collection string) ([]*Snapshot, error) {
	if len(tx.writes) > 0 {
		return nil, ErrReadAfterWrite
	}
	snaps, err := tx.s.List(tx.ctx, collection)
	if err != nil {
		return nil, err
	}
	out := make([]*Snapshot, 0, len(snaps))
	for _, snap := range snaps {
		if seen, ok := tx.reads[snap.Key]; ok {
			out = append(out, seen)
			continue
		}
		tx.reads[snap.Key] = snap
		tx.order = append(tx.order, snap.Key)
		out = append(out, snap)
	}
	return out, nil
}

func (tx *Tx) Set(key Key, fields Fields) {
	tx.writes = append(tx.writes, Write{Key: key, Op: OpSet, Fields: fields})
}

func (tx *Tx) Update(key Key, fields Fields) {
	tx.writes = append(tx.writes, Write{Key: key, Op: OpUpdate, Fields: fields})
}

func (tx *Tx) Delete(key Key) {
	tx.writes = append(tx.writes, Write{Key: key, Op: OpDelete})
}

func (tx *Tx) stamps() []ReadStamp {
	stamps := make([]ReadStamp, 0, len(tx.order))
	for _, k := range tx.order {
		stamps = append(stamps, ReadStamp{Key: k, Version: tx.reads[k].Version})
	}
	return stamps
}

// RunTransaction runs fn once and commits its writes together with the read
// set it observed. If fn returns an error nothing is written. A concurrent
// change to anything fn read makes the commit fail with ErrConflict; retrying
// is left to the caller.
func RunTransaction(ctx context.Context, s Store, fn func(tx *Tx) error) error {
	tx := &Tx{ctx: ctx, s: s, reads: make(map[Key]*Snapshot)}
	if err := fn(tx); err != nil {
		return err
	}
	if len(tx.writes) == 0 {
		return nil
	}
	return s.Commit(ctx, tx.stamps(), tx.writes)
}
