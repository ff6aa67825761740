package cachex

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Stats is a snapshot of an Instrumented cache's counters.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Errors  int64   `json:"errors"`
	HitRate float64 `json:"hitRate"`
}

// Instrumented counts hits, misses and errors of the wrapped Cache, both in
// process (Stats) and as Prometheus counters.
type Instrumented struct {
	Cache

	hits, misses, errs atomic.Int64
	ops                *prometheus.CounterVec
}

// Instrument wraps c. When reg is nil the Prometheus counters are created
// but not registered.
func Instrument(c Cache, reg prometheus.Registerer) *Instrumented {
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "beaver",
		Subsystem: "cache",
		Name:      "operations_total",
		Help:      "Cache operations by operation and result.",
	}, []string{"op", "result"})
	if reg != nil {
		reg.MustRegister(ops)
	}
	return &Instrumented{Cache: c, ops: ops}
}

func (i *Instrumented) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := i.Cache.Get(ctx, key)
	switch {
	case err == nil:
		i.hits.Add(1)
		i.ops.WithLabelValues("get", "hit").Inc()
	case errors.Is(err, ErrMiss):
		i.misses.Add(1)
		i.ops.WithLabelValues("get", "miss").Inc()
	default:
		i.errs.Add(1)
		i.ops.WithLabelValues("get", "error").Inc()
	}
	return b, err
}

func (i *Instrumented) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := i.Cache.Set(ctx, key, value, ttl)
	i.observe("set", err)
	return err
}

func (i *Instrumented) Delete(ctx context.Context, keys ...string) error {
	err := i.Cache.Delete(ctx, keys...)
	i.observe("delete", err)
	return err
}

func (i *Instrumented) observe(op string, err error) {
	if err != nil {
		i.errs.Add(1)
		i.ops.WithLabelValues(op, "error").Inc()
		return
	}
	i.ops.WithLabelValues(op, "ok").Inc()
}

// Stats returns the current counters.
func (i *Instrumented) Stats() Stats {
	s := Stats{
		Hits:   i.hits.Load(),
		Misses: i.misses.Load(),
		Errors: i.errs.Load(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}
