package authsdk

import (
	"context"
	"net/http"
)

// GetLiveness checks if the service is alive.
func (c *SDKClient) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.get(ctx, "/livez", &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// GetReadiness checks if the service and its store and cache are ready.
func (c *SDKClient) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.get(ctx, "/readyz", &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// GetHealth returns the cache health summary.
func (c *SDKClient) GetHealth(ctx context.Context) (*CacheHealthResponse, error) {
	var health CacheHealthResponse
	if err := c.get(ctx, "/health", &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// GetCacheMetrics returns cache hit/miss counters.
func (c *SDKClient) GetCacheMetrics(ctx context.Context) (*CacheMetricsResponse, error) {
	var metrics CacheMetricsResponse
	if err := c.get(ctx, "/health/cache", &metrics); err != nil {
		return nil, err
	}
	return &metrics, nil
}

func (c *SDKClient) get(ctx context.Context, path string, target any) error {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return decodeJSON(resp, target, http.StatusOK)
}
