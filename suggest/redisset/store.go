// Package redisset keeps suggestion lists as Redis sets, one key per list.
package redisset

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/toxnroot/trans-invoice-v3/models"
)

const defaultPrefix = "suggestions:"

type Store struct {
	rdb    *redis.Client
	prefix string
}

// New wraps an existing client. Keys are "suggestions:<list>" unless prefix
// is non-empty.
func New(rdb *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{rdb: rdb, prefix: prefix}
}

// Connect dials addr and verifies the connection.
func Connect(ctx context.Context, addr string) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		DB:       0,
		PoolSize: 20,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrapf(err, "redisset: connect %s", addr)
	}
	return New(rdb, ""), nil
}

func (s *Store) key(list models.SuggestionList) string {
	return s.prefix + string(list)
}

func (s *Store) Members(ctx context.Context, list models.SuggestionList) ([]string, error) {
	members, err := s.rdb.SMembers(ctx, s.key(list)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "redisset: members of %s", list)
	}
	return members, nil
}

func (s *Store) Add(ctx context.Context, list models.SuggestionList, value string) error {
	return errors.Wrapf(s.rdb.SAdd(ctx, s.key(list), value).Err(), "redisset: add to %s", list)
}

func (s *Store) Remove(ctx context.Context, list models.SuggestionList, value string) error {
	return errors.Wrapf(s.rdb.SRem(ctx, s.key(list), value).Err(), "redisset: remove from %s", list)
}

func (s *Store) Close() error {
	return s.rdb.Close()
}
