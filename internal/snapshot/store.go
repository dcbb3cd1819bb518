// Package snapshot persists opaque model state as key to JSON blob pairs.
//
// Two backends are provided: FileStore writes one file per key in a
// directory, guarded by an flock(2) lock for cross-process safety, and
// SQLiteStore keeps all keys in a single SQLite table.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Load when no snapshot exists for the key.
var ErrNotFound = errors.New("snapshot not found")

// Store saves and loads snapshots by key.
type Store interface {
	Save(ctx context.Context, key string, data []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
	Close() error
}

// validateKey rejects keys that would escape a FileStore directory or
// produce an unusable file name.
func validateKey(key string) error {
	if key == "" {
		return errors.New("snapshot key is empty")
	}
	if strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("invalid snapshot key %q", key)
	}
	return nil
}
