package sqlstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/toxnroot/trans-invoice-v3/store"
	"github.com/toxnroot/trans-invoice-v3/store/storetest"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	return db
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s := New(setupTestDB(t))
		require.NoError(t, s.Migrate(context.Background()))
		return s
	})
}

func TestVersionIncrementsOnWrite(t *testing.T) {
	ctx := context.Background()
	s := New(setupTestDB(t))
	require.NoError(t, s.Migrate(ctx))

	key := store.Key{Collection: "metadata", ID: "lastInvoiceNumber"}
	require.NoError(t, store.Set(ctx, s, key, store.Fields{"value": 1}))
	first, err := s.Read(ctx, key)
	require.NoError(t, err)

	require.NoError(t, store.Update(ctx, s, key, store.Fields{"value": 2}))
	second, err := s.Read(ctx, key)
	require.NoError(t, err)

	require.Equal(t, first.Version+1, second.Version)
}

func TestDeleteKeepsTombstone(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	s := New(db)
	require.NoError(t, s.Migrate(ctx))

	key := store.Key{Collection: "invoices", ID: "inv-1"}
	require.NoError(t, store.Set(ctx, s, key, store.Fields{"invoiceNumber": 1}))
	require.NoError(t, store.Delete(ctx, s, key))

	var doc document
	require.NoError(t, db.Where("collection = ? AND id = ?", key.Collection, key.ID).Take(&doc).Error)
	require.True(t, doc.Deleted)
	require.Equal(t, int64(2), doc.Version)

	require.NoError(t, store.Set(ctx, s, key, store.Fields{"invoiceNumber": 1}))
	snap, err := s.Read(ctx, key)
	require.NoError(t, err)
	require.True(t, snap.Exists())
	require.Equal(t, int64(3), snap.Version)

	err = store.Update(ctx, s, store.Key{Collection: "invoices", ID: "gone"}, store.Fields{"note": "x"})
	require.ErrorIs(t, err, store.ErrNotFound)
}
