package cachex_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/beaverio/beaver-core/pkg/cachex"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend down")

// brokenCache fails every operation.
type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, error) { return nil, errBackend }
func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return errBackend
}
func (brokenCache) Delete(context.Context, ...string) error { return errBackend }
func (brokenCache) Ping(context.Context) error              { return errBackend }
func (brokenCache) Close() error                            { return nil }

func TestLenientSwallowsErrors(t *testing.T) {
	ctx := t.Context()
	c := cachex.NewLenient(brokenCache{})

	_, err := c.Get(ctx, "k")
	require.ErrorIs(t, err, cachex.ErrMiss)
	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, c.Delete(ctx, "k"))

	// Ping is not softened so readiness still sees the failure.
	require.ErrorIs(t, c.Ping(ctx), errBackend)
}

func TestLenientPassesThrough(t *testing.T) {
	ctx := t.Context()
	c := cachex.NewLenient(cachex.NewMemory(time.Minute))

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)
}

func TestInstrumentedStats(t *testing.T) {
	ctx := t.Context()
	reg := prometheus.NewRegistry()
	c := cachex.Instrument(cachex.NewMemory(time.Minute), reg)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	_, _ = c.Get(ctx, "k")
	_, _ = c.Get(ctx, "k")
	_, _ = c.Get(ctx, "missing")

	s := c.Stats()
	require.Equal(t, int64(2), s.Hits)
	require.Equal(t, int64(1), s.Misses)
	require.Equal(t, int64(0), s.Errors)
	require.InDelta(t, 2.0/3.0, s.HitRate, 1e-9)

	n, err := testutil.GatherAndCount(reg, "beaver_cache_operations_total")
	require.NoError(t, err)
	require.Equal(t, 3, n) // get/hit, get/miss, set/ok
}

func TestInstrumentedCountsErrors(t *testing.T) {
	ctx := t.Context()
	c := cachex.Instrument(brokenCache{}, nil)

	_, err := c.Get(ctx, "k")
	require.ErrorIs(t, err, errBackend)
	require.Error(t, c.Set(ctx, "k", nil, 0))

	s := c.Stats()
	require.Equal(t, int64(2), s.Errors)
	require.Zero(t, s.HitRate)
}
