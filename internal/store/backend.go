package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"github.com/zarlcorp/core/pkg/zfilesystem"
	"github.com/zarlcorp/core/pkg/zstore"
	"github.com/zarlcorp/zpass/internal/credential"
)

// Backend is the key-value storage the popup persists through. A missing
// key is reported by ok == false, never by an error.
type Backend interface {
	Get(ctx context.Context, key string) (col credential.Collection, ok bool, err error)
	Set(ctx context.Context, key string, col credential.Collection) error
	Remove(ctx context.Context, key string) error
}

// FileBackend keeps each key as a plain JSON file named <key>.json.
type FileBackend struct {
	fs zfilesystem.ReadWriteFileFS
}

// NewFileBackend stores keys as JSON files in fsys.
func NewFileBackend(fsys zfilesystem.ReadWriteFileFS) *FileBackend {
	return &FileBackend{fs: fsys}
}

func (b *FileBackend) Get(ctx context.Context, key string) (credential.Collection, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	data, err := b.fs.ReadFile(filePath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}

	var col credential.Collection
	if err := json.Unmarshal(data, &col); err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", key, err)
	}

	return col, true, nil
}

func (b *FileBackend) Set(ctx context.Context, key string, col credential.Collection) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if col == nil {
		col = credential.Collection{}
	}

	data, err := json.MarshalIndent(col, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	if err := b.fs.WriteFile(filePath(key), data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}

	return nil
}

func (b *FileBackend) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := b.fs.Remove(filePath(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", key, err)
	}

	return nil
}

func filePath(key string) string {
	return key + ".json"
}

// slot is one sealed record. The key travels inside the record so lookups
// only need List, which never fails on an empty collection.
type slot struct {
	Key       string                `json:"key"`
	Passwords credential.Collection `json:"passwords"`
}

// SealedBackend keeps keys in an encrypted zstore collection.
type SealedBackend struct {
	col *zstore.Collection[slot]
}

// OpenSealed opens the encrypted store in fsys with the master password
// and returns the backend together with the store, which the caller closes.
func OpenSealed(fsys zfilesystem.ReadWriteFileFS, password []byte) (*SealedBackend, *zstore.Store, error) {
	s, err := zstore.Open(fsys, password)
	if err != nil {
		return nil, nil, err
	}

	col, err := zstore.NewCollection[slot](s, "vault")
	if err != nil {
		s.Close()
		return nil, nil, fmt.Errorf("open vault collection: %w", err)
	}

	return &SealedBackend{col: col}, s, nil
}

func (b *SealedBackend) Get(ctx context.Context, key string) (credential.Collection, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s, ok, err := b.find(key)
	if err != nil || !ok {
		return nil, false, err
	}
	return s.Passwords, true, nil
}

func (b *SealedBackend) Set(ctx context.Context, key string, col credential.Collection) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := b.col.Put(key, slot{Key: key, Passwords: col}); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (b *SealedBackend) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, ok, err := b.find(key)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if err := b.col.Delete(key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (b *SealedBackend) find(key string) (slot, bool, error) {
	all, err := b.col.List()
	if err != nil {
		return slot{}, false, fmt.Errorf("list vault: %w", err)
	}
	for _, s := range all {
		if s.Key == key {
			return s, true, nil
		}
	}
	return slot{}, false, nil
}
