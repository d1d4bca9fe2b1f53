package store

import "context"

// Batch groups writes that commit together without read-set validation.
type Batch struct {
	s      Store
	writes []Write
}

func NewBatch(s Store) *Batch {
	return &Batch{s: s}
}

func (b *Batch) Set(key Key, fields Fields) *Batch {
	b.writes = append(b.writes, Write{Key: key, Op: OpSet, Fields: fields})
	return b
}

func (b *Batch) Update(key Key, fields Fields) *Batch {
	b.writes = append(b.writes, Write{Key: key, Op: OpUpdate, Fields: fields})
	return b
}

func (b *Batch) Delete(key Key) *Batch {
	b.writes = append(b.writes, Write{Key: key, Op: OpDelete})
	return b
}

func (b *Batch) Len() int {
	return len(b.writes)
}

func (b *Batch) Commit(ctx context.Context) error {
	if len(b.writes) == 0 {
		return nil
	}
	return b.s.Commit(ctx, nil, b.writes)
}
