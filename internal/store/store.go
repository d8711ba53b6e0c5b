// Package store persists the credential collection under a single key.
//
// Every mutation is a read-modify-write of the whole collection followed by
// a fresh read, so callers always render what is actually stored. The cycle
// is serialised within one Store but not across processes; two popups
// writing at once can lose an update.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zarlcorp/zpass/internal/credential"
)

// Key is the storage key holding the collection.
const Key = "passwords"

// ErrStorageUnavailable wraps every backend failure.
var ErrStorageUnavailable = errors.New("storage unavailable")

// Store is the credential persistence boundary.
type Store struct {
	mu      sync.Mutex
	backend Backend
	now     func() time.Time
	newID   func() (string, error)
}

// New creates a store over backend.
func New(backend Backend) *Store {
	return &Store{
		backend: backend,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   credential.NewID,
	}
}

// Load returns the stored collection, or an empty one when nothing has been
// saved yet. Records written without an ID get one and are written back.
func (s *Store) Load(ctx context.Context) (credential.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Save replaces the stored collection.
func (s *Store) Save(ctx context.Context, col credential.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, col)
}

// Clear removes the key. Clearing an empty store succeeds.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Remove(ctx, Key); err != nil {
		return fmt.Errorf("%w: clear: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// Add appends c and returns the collection as persisted.
func (s *Store) Add(ctx context.Context, c credential.Credential) (credential.Collection, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return s.mutate(ctx, func(col credential.Collection) (credential.Collection, error) {
		if c.ID == "" {
			id, err := s.newID()
			if err != nil {
				return nil, fmt.Errorf("%w: add: %w", ErrStorageUnavailable, err)
			}
			c.ID = id
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = s.now()
			c.UpdatedAt = c.CreatedAt
		}
		return col.Append(c), nil
	})
}

// Update overwrites the credential with c.ID in place and returns the
// collection as persisted.
func (s *Store) Update(ctx context.Context, c credential.Credential) (credential.Collection, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return s.mutate(ctx, func(col credential.Collection) (credential.Collection, error) {
		prev, ok := col.Find(c.ID)
		if !ok {
			return nil, fmt.Errorf("update %s: %w", c.ID, credential.ErrNotFound)
		}
		c.CreatedAt = prev.CreatedAt
		c.UpdatedAt = s.now()
		return col.Replace(c)
	})
}

// Delete removes the credential with the given ID and returns the
// collection as persisted.
func (s *Store) Delete(ctx context.Context, id string) (credential.Collection, error) {
	return s.mutate(ctx, func(col credential.Collection) (credential.Collection, error) {
		return col.Remove(id)
	})
}

func (s *Store) mutate(ctx context.Context, fn func(credential.Collection) (credential.Collection, error)) (credential.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	next, err := fn(col)
	if err != nil {
		return nil, err
	}

	if err := s.save(ctx, next); err != nil {
		return nil, err
	}

	return s.load(ctx)
}

func (s *Store) load(ctx context.Context) (credential.Collection, error) {
	col, ok, err := s.backend.Get(ctx, Key)
	if err != nil {
		return nil, fmt.Errorf("%w: load: %w", ErrStorageUnavailable, err)
	}
	if !ok || col == nil {
		return credential.Collection{}, nil
	}

	col, changed, err := col.AssignIDs(s.newID)
	if err != nil {
		return nil, fmt.Errorf("%w: load: %w", ErrStorageUnavailable, err)
	}
	if changed {
		if err := s.save(ctx, col); err != nil {
			// ids stay valid for this read; the next load retries the write
			slog.Warn("assign credential ids", "err", err)
		}
	}

	return col, nil
}

func (s *Store) save(ctx context.Context, col credential.Collection) error {
	if err := s.backend.Set(ctx, Key, col); err != nil {
		return fmt.Errorf("%w: save: %w", ErrStorageUnavailable, err)
	}
	return nil
}
