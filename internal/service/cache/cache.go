// Package cache provides the small byte-oriented cache used to keep
// resolved optimizer parameters off the hot path. Values are JSON blobs;
// callers own serialization.
package cache

import (
	"context"
	"time"
)

// BytesCache stores raw bytes with per-key TTL.
type BytesCache interface {
	GetBytes(ctx context.Context, key string) (b []byte, ok bool, err error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
