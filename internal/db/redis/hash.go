package redis

import (
	"context"
	"slices"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/taxdex/internal/db"
)

// HSetWithTTL writes fields to the hash at key and resets its expiry in one
// round trip. A zero ttl leaves the key without expiry.
func (s *Store) HSetWithTTL(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error {
	if len(fields) == 0 {
		return nil
	}
	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, f)
	}
	slices.Sort(names)

	hset := s.b().Hset().Key(key).FieldValue()
	for _, f := range names {
		hset = hset.FieldValue(f, fields[f])
	}
	cmds := []rueidis.Completed{hset.Build()}
	if ttl > 0 {
		cmds = append(cmds, s.b().Pexpire().Key(key).Milliseconds(ttl.Milliseconds()).Build())
	}

	results := s.client.DoMulti(ctx, cmds...)
	if err := results[0].Error(); err != nil {
		return &db.Error{Op: db.OpHSet, Err: err}
	}
	if len(results) > 1 {
		if err := results[1].Error(); err != nil {
			return &db.Error{Op: db.OpExpire, Err: err}
		}
	}
	return nil
}

// HGetAll returns all fields of the hash at key, or db.ErrKeyNotFound when
// the key does not exist.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := s.do(ctx, s.b().Hgetall().Key(key).Build()).AsStrMap()
	if err != nil {
		return nil, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	if len(m) == 0 {
		return nil, db.ErrKeyNotFound
	}
	return m, nil
}

// Del deletes a key.
func (s *Store) Del(ctx context.Context, key string) error {
	if err := s.do(ctx, s.b().Del().Key(key).Build()).Error(); err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}
