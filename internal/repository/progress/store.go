package progress

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/taxdex/internal/db"
	"github.com/kailas-cloud/taxdex/internal/domain"
	domprogress "github.com/kailas-cloud/taxdex/internal/domain/progress"
)

// Hash fields of a stored progress entry.
const (
	fieldCurrent  = "current"
	fieldTotal    = "total"
	fieldComplete = "complete"
)

// store is the consumer interface for progress operations (ISP).
type store interface {
	HSetWithTTL(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
}

// Store keeps progress entries as hashes in a shared store so that any
// replica can answer progress polls.
type Store struct {
	store store
	ttl   time.Duration
}

// New creates a shared progress store. Every write resets the entry's expiry
// to ttl so abandoned streams do not leak keys.
func New(s store, ttl time.Duration) *Store {
	return &Store{store: s, ttl: ttl}
}

func key(id string) string {
	return domain.KeyPrefix + "progress:" + id
}

// Set writes the state for id.
func (s *Store) Set(ctx context.Context, id string, st domprogress.State) error {
	fields := map[string]string{
		fieldCurrent:  strconv.FormatInt(st.Current, 10),
		fieldTotal:    strconv.FormatInt(st.Total, 10),
		fieldComplete: strconv.FormatBool(st.Complete),
	}
	if err := s.store.HSetWithTTL(ctx, key(id), fields, s.ttl); err != nil {
		return fmt.Errorf("progress set %s: %w", id, err)
	}
	return nil
}

// Get returns the state for id, or domain.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (domprogress.State, error) {
	fields, err := s.store.HGetAll(ctx, key(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domprogress.State{}, domain.ErrNotFound
		}
		return domprogress.State{}, fmt.Errorf("progress get %s: %w", id, err)
	}
	st, err := parseState(fields)
	if err != nil {
		return domprogress.State{}, fmt.Errorf("parse progress %s: %w", id, err)
	}
	return st, nil
}

// Delete removes the state for id.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.store.Del(ctx, key(id)); err != nil {
		return fmt.Errorf("progress delete %s: %w", id, err)
	}
	return nil
}

func parseState(fields map[string]string) (domprogress.State, error) {
	var (
		st  domprogress.State
		err error
	)
	if st.Current, err = strconv.ParseInt(fields[fieldCurrent], 10, 64); err != nil {
		return st, fmt.Errorf("%s: %w", fieldCurrent, err)
	}
	if st.Total, err = strconv.ParseInt(fields[fieldTotal], 10, 64); err != nil {
		return st, fmt.Errorf("%s: %w", fieldTotal, err)
	}
	if v, ok := fields[fieldComplete]; ok {
		if st.Complete, err = strconv.ParseBool(v); err != nil {
			return st, fmt.Errorf("%s: %w", fieldComplete, err)
		}
	}
	return st, nil
}
