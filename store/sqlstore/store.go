// Package sqlstore keeps documents as JSON rows in a relational database
// through gorm. Postgres is the production dialect; sqlite serves tests and
// local runs.
package sqlstore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/toxnroot/trans-invoice-v3/store"
)

var _ store.Store = (*Store)(nil)

type document struct {
	Collection string    `gorm:"primaryKey;size:64"`
	ID         string    `gorm:"primaryKey;size:128"`
	Data       string    `gorm:"type:text;not null"`
	Version    int64     `gorm:"not null"`
	Deleted    bool      `gorm:"not null;default:false"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName overrides the table name
func (document) TableName() string {
	return "documents"
}

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&document{}); err != nil {
		return errors.Wrap(err, "sqlstore: migrate")
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "sqlstore: ping")
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "sqlstore: close")
	}
	return sqlDB.Close()
}

func (s *Store) Read(ctx context.Context, key store.Key) (*store.Snapshot, error) {
	doc, err := find(s.db.WithContext(ctx), key, false)
	if err != nil {
		return nil, err
	}
	if !live(doc) {
		return &store.Snapshot{Key: key}, nil
	}
	return toSnapshot(doc)
}

func (s *Store) Commit(ctx context.Context, reads []store.ReadStamp, writes []store.Write) error {
	for _, w := range writes {
		if err := w.Validate(); err != nil {
			return err
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range reads {
			doc, err := find(tx, r.Key, true)
			if err != nil {
				return err
			}
			if versionOf(doc) != r.Version {
				return errors.Wrap(store.ErrConflict, r.Key.String())
			}
		}
		for _, w := range writes {
			if err := apply(tx, w); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.Wrap(store.ErrConflict, err.Error())
	}
	return err
}

func (s *Store) List(ctx context.Context, collection string) ([]*store.Snapshot, error) {
	var docs []document
	err := s.db.WithContext(ctx).
		Where("collection = ? AND deleted = ?", collection, false).
		Order("id").
		Find(&docs).Error
	if err != nil {
		return nil, errors.Wrapf(err, "sqlstore: list %s", collection)
	}

	result := make([]*store.Snapshot, len(docs))
	for i := range docs {
		snap, err := toSnapshot(&docs[i])
		if err != nil {
			return nil, err
		}
		result[i] = snap
	}
	return result, nil
}

// apply writes one change. Deletes keep the row as a tombstone so a
// recreated document continues the old version sequence instead of
// restarting at 1.
func apply(tx *gorm.DB, w store.Write) error {
	cur, err := find(tx, w.Key, true)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if w.Op == store.OpDelete {
		if !live(cur) {
			return nil
		}
		return bump(tx, w.Key, cur.Version, map[string]any{
			"data":       "{}",
			"deleted":    true,
			"updated_at": now,
		})
	}

	fields := w.Fields
	if w.Op == store.OpUpdate {
		if !live(cur) {
			return errors.Wrap(store.ErrNotFound, w.Key.String())
		}
		existing, err := store.DecodeFields([]byte(cur.Data))
		if err != nil {
			return err
		}
		fields = existing.Merge(w.Fields)
	}

	data, err := store.MarshalFields(fields)
	if err != nil {
		return err
	}

	if cur == nil {
		doc := document{
			Collection: w.Key.Collection,
			ID:         w.Key.ID,
			Data:       string(data),
			Version:    1,
			UpdatedAt:  now,
		}
		if err := tx.Create(&doc).Error; err != nil {
			return errors.Wrapf(err, "sqlstore: create %s", w.Key)
		}
		return nil
	}

	return bump(tx, w.Key, cur.Version, map[string]any{
		"data":       string(data),
		"deleted":    false,
		"updated_at": now,
	})
}

// bump updates the row at version and moves it to version+1.
func bump(tx *gorm.DB, key store.Key, version int64, values map[string]any) error {
	values["version"] = version + 1
	res := tx.Model(&document{}).
		Where("collection = ? AND id = ? AND version = ?", key.Collection, key.ID, version).
		Updates(values)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "sqlstore: write %s", key)
	}
	if res.RowsAffected == 0 {
		return errors.Wrap(store.ErrConflict, key.String())
	}
	return nil
}

// find loads one row, tombstones included, or nil when absent. lock takes a
// row lock on dialects that support it.
func find(db *gorm.DB, key store.Key, lock bool) (*document, error) {
	q := db.Where("collection = ? AND id = ?", key.Collection, key.ID)
	if lock && db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var doc document
	err := q.Take(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "sqlstore: read %s", key)
	}
	return &doc, nil
}

func live(doc *document) bool {
	return doc != nil && !doc.Deleted
}

// versionOf is the version a reader observed: 0 for a missing or deleted
// document.
func versionOf(doc *document) int64 {
	if !live(doc) {
		return 0
	}
	return doc.Version
}

func toSnapshot(doc *document) (*store.Snapshot, error) {
	fields, err := store.DecodeFields([]byte(doc.Data))
	if err != nil {
		return nil, err
	}
	return &store.Snapshot{
		Key:     store.Key{Collection: doc.Collection, ID: doc.ID},
		Fields:  fields,
		Version: doc.Version,
	}, nil
}
