// Package storetest holds behaviour checks every store.Store backend must
// pass. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toxnroot/trans-invoice-v3/store"
)

// Factory returns an empty, migrated store. It is called once per subtest.
type Factory func(t *testing.T) store.Store

func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"SetThenGet", testSetThenGet},
		{"ReadMissing", testReadMissing},
		{"UpdateMerges", testUpdateMerges},
		{"UpdateMissing", testUpdateMissing},
		{"DeleteIdempotent", testDeleteIdempotent},
		{"TransactionCommits", testTransactionCommits},
		{"StaleReadConflicts", testStaleReadConflicts},
		{"AbsentReadConflicts", testAbsentReadConflicts},
		{"RecreatedDocumentConflicts", testRecreatedDocumentConflicts},
		{"ListedReadConflicts", testListedReadConflicts},
		{"ListAfterWriteRefused", testListAfterWriteRefused},
		{"FailedCommitWritesNothing", testFailedCommitWritesNothing},
		{"FnErrorWritesNothing", testFnErrorWritesNothing},
		{"BatchAppliesAll", testBatchAppliesAll},
		{"ListOrderedByID", testListOrderedByID},
		{"InvalidWrite", testInvalidWrite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			tt.fn(t, s)
		})
	}
}

var (
	counterKey = store.Key{Collection: "metadata", ID: "counter"}
	docA       = store.Key{Collection: "things", ID: "a"}
	docB       = store.Key{Collection: "things", ID: "b"}
	docC       = store.Key{Collection: "things", ID: "c"}
)

func intField(t *testing.T, snap *store.Snapshot, name string) int64 {
	t.Helper()
	n, ok := snap.Fields[name].(json.Number)
	require.True(t, ok, "field %s is %T", name, snap.Fields[name])
	v, err := n.Int64()
	require.NoError(t, err)
	return v
}

func testSetThenGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, s, docA, store.Fields{"name": "cotton", "count": 3}))

	snap, err := store.Get(ctx, s, docA)
	require.NoError(t, err)
	assert.True(t, snap.Exists())
	assert.Equal(t, "cotton", snap.Fields["name"])
	assert.Equal(t, int64(3), intField(t, snap, "count"))

	require.NoError(t, store.Set(ctx, s, docA, store.Fields{"name": "silk"}))
	snap, err = store.Get(ctx, s, docA)
	require.NoError(t, err)
	assert.Equal(t, "silk", snap.Fields["name"])
	assert.NotContains(t, snap.Fields, "count")
}

func testReadMissing(t *testing.T, s store.Store) {
	ctx := context.Background()

	snap, err := s.Read(ctx, docA)
	require.NoError(t, err)
	assert.False(t, snap.Exists())

	_, err = store.Get(ctx, s, docA)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testUpdateMerges(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, s, docA, store.Fields{"name": "cotton", "note": ""}))
	require.NoError(t, store.Update(ctx, s, docA, store.Fields{"note": "urgent"}))

	snap, err := store.Get(ctx, s, docA)
	require.NoError(t, err)
	assert.Equal(t, "cotton", snap.Fields["name"])
	assert.Equal(t, "urgent", snap.Fields["note"])
}

func testUpdateMissing(t *testing.T, s store.Store) {
	err := store.Update(context.Background(), s, docA, store.Fields{"note": "x"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testDeleteIdempotent(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, s, docA, store.Fields{"name": "cotton"}))
	require.NoError(t, store.Delete(ctx, s, docA))
	require.NoError(t, store.Delete(ctx, s, docA))

	snap, err := s.Read(ctx, docA)
	require.NoError(t, err)
	assert.False(t, snap.Exists())
}

func increment(ctx context.Context, s store.Store) (int64, error) {
	var next int64
	err := store.RunTransaction(ctx, s, func(tx *store.Tx) error {
		snap, err := tx.Get(counterKey)
		if err != nil {
			return err
		}
		next = 1
		if snap.Exists() {
			n, err := snap.Fields["value"].(json.Number).Int64()
			if err != nil {
				return err
			}
			next = n + 1
		}
		tx.Set(counterKey, store.Fields{"value": next})
		tx.Set(store.Key{Collection: "things", ID: strconv.FormatInt(next, 10)}, store.Fields{"n": next})
		return nil
	})
	return next, err
}

func testTransactionCommits(t *testing.T, s store.Store) {
	ctx := context.Background()

	n, err := increment(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = increment(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	snap, err := store.Get(ctx, s, counterKey)
	require.NoError(t, err)
	assert.Equal(t, int64(2), intField(t, snap, "value"))

	all, err := s.List(ctx, "things")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func testStaleReadConflicts(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, s, counterKey, store.Fields{"value": 1}))

	stale, err := s.Read(ctx, counterKey)
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, s, counterKey, store.Fields{"value": 2}))

	err = s.Commit(ctx,
		[]store.ReadStamp{{Key: counterKey, Version: stale.Version}},
		[]store.Write{{Key: counterKey, Op: store.OpSet, Fields: store.Fields{"value": 99}}},
	)
	assert.ErrorIs(t, err, store.ErrConflict)

	snap, err := store.Get(ctx, s, counterKey)
	require.NoError(t, err)
	assert.Equal(t, int64(2), intField(t, snap, "value"))
}

func testAbsentReadConflicts(t *testing.T, s store.Store) {
	ctx := context.Background()

	// The transaction saw no counter, but one appeared before commit.
	err := store.RunTransaction(ctx, s, func(tx *store.Tx) error {
		snap, err := tx.Get(counterKey)
		if err != nil {
			return err
		}
		require.False(t, snap.Exists())

		require.NoError(t, store.Set(ctx, s, counterKey, store.Fields{"value": 5}))

		tx.Set(counterKey, store.Fields{"value": 1})
		return nil
	})
	assert.ErrorIs(t, err, store.ErrConflict)

	snap, err := store.Get(ctx, s, counterKey)
	require.NoError(t, err)
	assert.Equal(t, int64(5), intField(t, snap, "value"))
}

func testRecreatedDocumentConflicts(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, s, docA, store.Fields{"name": "cotton"}))

	stale, err := s.Read(ctx, docA)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, s, docA))
	gone, err := s.Read(ctx, docA)
	require.NoError(t, err)
	assert.False(t, gone.Exists())
	assert.Zero(t, gone.Version)

	require.NoError(t, store.Set(ctx, s, docA, store.Fields{"name": "silk"}))
	fresh, err := s.Read(ctx, docA)
	require.NoError(t, err)
	assert.NotEqual(t, stale.Version, fresh.Version, "a recreated document must not reuse a version")

	err = s.Commit(ctx,
		[]store.ReadStamp{{Key: docA, Version: stale.Version}},
		[]store.Write{{Key: docA, Op: store.OpSet, Fields: store.Fields{"name": "linen"}}},
	)
	assert.ErrorIs(t, err, store.ErrConflict)

	snap, err := store.Get(ctx, s, docA)
	require.NoError(t, err)
	assert.Equal(t, "silk", snap.Fields["name"])

	all, err := s.List(ctx, "things")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func testListedReadConflicts(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, s, docA, store.Fields{"name": "cotton"}))
	require.NoError(t, store.Set(ctx, s, docB, store.Fields{"name": "silk"}))
	require.NoError(t, store.Set(ctx, s, docC, store.Fields{"name": "linen"}))
	require.NoError(t, store.Delete(ctx, s, docC))

	err := store.RunTransaction(ctx, s, func(tx *store.Tx) error {
		all, err := tx.List("things")
		if err != nil {
			return err
		}
		require.Len(t, all, 2)

		require.NoError(t, store.Update(ctx, s, docB, store.Fields{"name": "wool"}))

		tx.Set(counterKey, store.Fields{"value": int64(len(all))})
		return nil
	})
	assert.ErrorIs(t, err, store.ErrConflict)

	snap, err := s.Read(ctx, counterKey)
	require.NoError(t, err)
	assert.False(t, snap.Exists())
}

func testListAfterWriteRefused(t *testing.T, s store.Store) {
	err := store.RunTransaction(context.Background(), s, func(tx *store.Tx) error {
		tx.Set(docA, store.Fields{"name": "cotton"})
		_, err := tx.List("things")
		return err
	})
	assert.ErrorIs(t, err, store.ErrReadAfterWrite)
}

func testFailedCommitWritesNothing(t *testing.T, s store.Store) {
	ctx := context.Background()

	err := s.Commit(ctx, nil, []store.Write{
		{Key: docA, Op: store.OpSet, Fields: store.Fields{"name": "cotton"}},
		{Key: docB, Op: store.OpUpdate, Fields: store.Fields{"name": "silk"}},
	})
	assert.ErrorIs(t, err, store.ErrNotFound)

	snap, err := s.Read(ctx, docA)
	require.NoError(t, err)
	assert.False(t, snap.Exists())
}

func testFnErrorWritesNothing(t *testing.T, s store.Store) {
	ctx := context.Background()
	boom := assert.AnError

	err := store.RunTransaction(ctx, s, func(tx *store.Tx) error {
		tx.Set(docA, store.Fields{"name": "cotton"})
		return boom
	})
	assert.ErrorIs(t, err, boom)

	snap, err := s.Read(ctx, docA)
	require.NoError(t, err)
	assert.False(t, snap.Exists())
}

func testBatchAppliesAll(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, s, docC, store.Fields{"name": "linen"}))

	b := store.NewBatch(s).
		Set(docA, store.Fields{"name": "cotton"}).
		Set(docB, store.Fields{"name": "silk"}).
		Delete(docC).
		Set(counterKey, store.Fields{"value": 0})
	assert.Equal(t, 4, b.Len())
	require.NoError(t, b.Commit(ctx))

	all, err := s.List(ctx, "things")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Key.ID)
	assert.Equal(t, "b", all[1].Key.ID)

	snap, err := store.Get(ctx, s, counterKey)
	require.NoError(t, err)
	assert.Equal(t, int64(0), intField(t, snap, "value"))
}

func testListOrderedByID(t *testing.T, s store.Store) {
	ctx := context.Background()
	for _, k := range []store.Key{docC, docA, docB} {
		require.NoError(t, store.Set(ctx, s, k, store.Fields{"id": k.ID}))
	}
	require.NoError(t, store.Set(ctx, s, counterKey, store.Fields{"value": 1}))

	all, err := s.List(ctx, "things")
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, id := range []string{"a", "b", "c"} {
		assert.Equal(t, id, all[i].Key.ID)
		assert.True(t, all[i].Exists())
	}

	none, err := s.List(ctx, "nothing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testInvalidWrite(t *testing.T, s store.Store) {
	err := store.Set(context.Background(), s, store.Key{Collection: "things"}, store.Fields{})
	assert.ErrorIs(t, err, store.ErrInvalidWrite)
}
