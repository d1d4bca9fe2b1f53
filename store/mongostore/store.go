// Package mongostore implements store.Store on MongoDB. Each store
// collection maps to a Mongo collection of {_id, data, version} records.
// Deleted documents stay behind as tombstones so versions never repeat.
// Commits run in a multi-document transaction, so the server must be a
// replica set.
package mongostore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/toxnroot/trans-invoice-v3/store"
)

var _ store.Store = (*Store)(nil)

type record struct {
	ID        string    `bson:"_id"`
	Data      string    `bson:"data"`
	Version   int64     `bson:"version"`
	Deleted   bool      `bson:"deleted,omitempty"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials uri and returns a store on the named database.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "mongostore: connect")
	}
	s := New(client, database)
	if err := s.Ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func New(client *mongo.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database)}
}

// Migrate is a no-op: the only index needed is _id, and collections are
// created on first write.
func (s *Store) Migrate(context.Context) error {
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return errors.Wrap(s.client.Ping(ctx, nil), "mongostore: ping")
}

func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

func (s *Store) Read(ctx context.Context, key store.Key) (*store.Snapshot, error) {
	rec, err := s.find(ctx, key)
	if err != nil {
		return nil, err
	}
	if !live(rec) {
		return &store.Snapshot{Key: key}, nil
	}
	return toSnapshot(key.Collection, rec)
}

func (s *Store) Commit(ctx context.Context, reads []store.ReadStamp, writes []store.Write) error {
	for _, w := range writes {
		if err := w.Validate(); err != nil {
			return err
		}
	}

	sess, err := s.client.StartSession()
	if err != nil {
		return errors.Wrap(err, "mongostore: start session")
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		for _, r := range reads {
			if err := s.checkStamp(ctx, r); err != nil {
				return nil, err
			}
		}
		for _, w := range writes {
			if err := s.apply(ctx, w); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if mongo.IsDuplicateKeyError(err) {
		return errors.Wrap(store.ErrConflict, err.Error())
	}
	return err
}

func (s *Store) List(ctx context.Context, collection string) ([]*store.Snapshot, error) {
	cur, err := s.db.Collection(collection).Find(ctx, bson.M{"deleted": bson.M{"$ne": true}},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, errors.Wrapf(err, "mongostore: list %s", collection)
	}

	var recs []record
	if err := cur.All(ctx, &recs); err != nil {
		return nil, errors.Wrapf(err, "mongostore: list %s", collection)
	}

	result := make([]*store.Snapshot, len(recs))
	for i := range recs {
		snap, err := toSnapshot(collection, &recs[i])
		if err != nil {
			return nil, err
		}
		result[i] = snap
	}
	return result, nil
}

// checkStamp verifies a read stamp inside the transaction. Existing
// documents are touched so a concurrent writer hits a write conflict.
func (s *Store) checkStamp(ctx context.Context, r store.ReadStamp) error {
	if r.Version == 0 {
		rec, err := s.find(ctx, r.Key)
		if err != nil {
			return err
		}
		if rec == nil {
			return nil
		}
		if live(rec) {
			return errors.Wrap(store.ErrConflict, r.Key.String())
		}
		// Touch the tombstone so a concurrent recreate conflicts.
		return s.touch(ctx, r.Key, bson.M{"_id": r.Key.ID, "version": rec.Version, "deleted": true})
	}

	return s.touch(ctx, r.Key, bson.M{"_id": r.Key.ID, "version": r.Version, "deleted": bson.M{"$ne": true}})
}

func (s *Store) touch(ctx context.Context, key store.Key, filter bson.M) error {
	res, err := s.db.Collection(key.Collection).UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"touches": 1}})
	if err != nil {
		return errors.Wrapf(err, "mongostore: check %s", key)
	}
	if res.MatchedCount == 0 {
		return errors.Wrap(store.ErrConflict, key.String())
	}
	return nil
}

func (s *Store) apply(ctx context.Context, w store.Write) error {
	coll := s.db.Collection(w.Key.Collection)

	cur, err := s.find(ctx, w.Key)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if w.Op == store.OpDelete {
		if !live(cur) {
			return nil
		}
		return s.bump(ctx, w.Key, cur.Version, bson.M{"data": "{}", "deleted": true, "updated_at": now})
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

	data, err := encode(fields)
	if err != nil {
		return errors.Wrapf(err, "mongostore: encode %s", w.Key)
	}

	if cur == nil {
		_, err := coll.InsertOne(ctx, record{ID: w.Key.ID, Data: data, Version: 1, UpdatedAt: now})
		return errors.Wrapf(err, "mongostore: insert %s", w.Key)
	}
	return s.bump(ctx, w.Key, cur.Version, bson.M{"data": data, "deleted": false, "updated_at": now})
}

// bump sets values on the record at version and moves it to version+1.
func (s *Store) bump(ctx context.Context, key store.Key, version int64, values bson.M) error {
	values["version"] = version + 1
	res, err := s.db.Collection(key.Collection).UpdateOne(ctx,
		bson.M{"_id": key.ID, "version": version},
		bson.M{"$set": values})
	if err != nil {
		return errors.Wrapf(err, "mongostore: write %s", key)
	}
	if res.MatchedCount == 0 {
		return errors.Wrap(store.ErrConflict, key.String())
	}
	return nil
}

func live(rec *record) bool {
	return rec != nil && !rec.Deleted
}

func (s *Store) find(ctx context.Context, key store.Key) (*record, error) {
	var rec record
	err := s.db.Collection(key.Collection).FindOne(ctx, bson.M{"_id": key.ID}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "mongostore: read %s", key)
	}
	return &rec, nil
}

func encode(fields store.Fields) (string, error) {
	raw, err := store.MarshalFields(fields)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func toSnapshot(collection string, rec *record) (*store.Snapshot, error) {
	fields, err := store.DecodeFields([]byte(rec.Data))
	if err != nil {
		return nil, err
	}
	return &store.Snapshot{
		Key:     store.Key{Collection: collection, ID: rec.ID},
		Fields:  fields,
		Version: rec.Version,
	}, nil
}
