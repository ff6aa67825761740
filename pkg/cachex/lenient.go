package cachex

import (
	"context"
	"errors"
	"time"

	"github.com/beaverio/beaver-core/pkg/slogx"
)

// Lenient wraps a Cache so that backend failures degrade to misses. Use it
// only where the cache is an optimisation and the source of truth is
// elsewhere.
type Lenient struct {
	Cache
}

// NewLenient wraps c.
func NewLenient(c Cache) *Lenient {
	return &Lenient{Cache: c}
}

func (l *Lenient) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := l.Cache.Get(ctx, key)
	if err != nil && !errors.Is(err, ErrMiss) {
		slogx.FromContext(ctx).Warn("cache get failed", "key", key, "err", err)
		return nil, ErrMiss
	}
	return b, err
}

func (l *Lenient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := l.Cache.Set(ctx, key, value, ttl); err != nil {
		slogx.FromContext(ctx).Warn("cache set failed", "key", key, "err", err)
	}
	return nil
}

func (l *Lenient) Delete(ctx context.Context, keys ...string) error {
	if err := l.Cache.Delete(ctx, keys...); err != nil {
		slogx.FromContext(ctx).Warn("cache delete failed", "keys", keys, "err", err)
	}
	return nil
}
