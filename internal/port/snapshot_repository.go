package port

import (
	"context"
	"errors"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

type SnapshotRepository interface {
	// Load returns the blob stored under key, or ErrSnapshotNotFound
	Load(ctx context.Context, key string) ([]byte, error)

	// Save replaces the blob stored under key
	Save(ctx context.Context, key string, blob []byte) error
}
