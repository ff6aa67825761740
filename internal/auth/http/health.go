package http

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/beaverio/beaver-core/pkg/authsdk"
	"github.com/beaverio/beaver-core/pkg/cachex"
	"github.com/beaverio/beaver-core/pkg/httpx"
	"github.com/beaverio/beaver-core/pkg/slogx"
)

const healthProbeKey = "health:probe"

// HealthHandler godoc
//
//	@Summary		Cache Health
//	@Description	Writes and reads back a probe key to check that the cache is usable
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.CacheHealthResponse	"status, timestamp, services"
//	@Failure		503	{object}	authsdk.CacheHealthResponse	"cache unhealthy"
//	@Router			/health [get].
func HealthHandler(cache cachex.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().UTC()

		status, code := "ok", http.StatusOK
		cacheStatus := "healthy"

		want := []byte(strconv.FormatInt(now.UnixNano(), 10))
		err := cache.Set(ctx, healthProbeKey, want, 10*time.Second)
		var got []byte
		if err == nil {
			got, err = cache.Get(ctx, healthProbeKey)
		}
		if err != nil || !bytes.Equal(got, want) {
			slogx.FromContext(ctx).Warn("cache health probe failed", "err", err)
			status, code = "error", http.StatusServiceUnavailable
			cacheStatus = "unhealthy"
		}

		httpx.WriteJSON(w, code, authsdk.CacheHealthResponse{
			Status:    status,
			Timestamp: now,
			Services:  map[string]string{"cache": cacheStatus},
		})
	}
}

// CacheMetricsHandler godoc
//
//	@Summary		Cache Metrics
//	@Description	Hit, miss and error counters of the cache since startup
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.CacheMetricsResponse
//	@Router			/health/cache [get].
func CacheMetricsHandler(cache *cachex.Instrumented) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := cache.Stats()
		httpx.WriteJSON(w, http.StatusOK, authsdk.CacheMetricsResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC(),
			Hits:      stats.Hits,
			Misses:    stats.Misses,
			Errors:    stats.Errors,
			HitRate:   stats.HitRate,
		})
	}
}
