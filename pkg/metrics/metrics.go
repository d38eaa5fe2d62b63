// Package metrics exposes the push client's Prometheus metrics.
// Metrics are declared with promauto next to the code that updates them
// (client, cache, ratelimit, listing, push) and land in the default registry.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry is the registerer every push client metric is registered with.
var Registry = prometheus.DefaultRegisterer

// Handler serves the default gatherer in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes Handler on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Serving metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - push_api_requests_total{resource, status} (Counter): requests by resource and HTTP status
//   - push_api_request_duration_seconds{resource} (Histogram): request duration by resource
//   - push_api_errors_total{class} (Counter): errors by class (client, unauthorized, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - push_api_retries_total{error_class} (Counter): retry attempts
//   - push_api_retry_backoff_seconds{error_class} (Histogram): backoff durations
//   - push_api_retry_exhausted_total{error_class} (Counter): requests that used every attempt
//
// List Metrics (pkg/listing):
//   - push_list_loads_total{list, kind, outcome} (Counter): page loads, kind first|next, outcome success|error|discarded
//   - push_list_items{list} (Gauge): items currently accumulated
//
// Rate Limit Metrics (pkg/ratelimit):
//   - push_rate_limit_remaining (Gauge): requests left in the window
//   - push_rate_limit_blocks_total (Counter): requests refused locally
//   - push_rate_limit_throttles_total (Counter): requests delayed
//
// Cache Metrics (pkg/cache):
//   - push_cache_lookups_total{result} (Counter): lookups by result (hit, miss, error)
//   - push_cache_conditional_requests_total (Counter): requests sent with If-None-Match or If-Modified-Since
//   - push_cache_revalidations_total (Counter): 304 answers served from cache
//   - push_cache_invalidated_keys_total (Counter): entries dropped after writes or a rejected token
//   - push_cache_errors_total{operation} (Counter)
//
// Push Metrics (pkg/push):
//   - push_messages_received_total{kind} (Counter): deliveries by kind (message, response)
//
// Example Prometheus Queries:
//
//   # Share of list loads that failed
//   sum(rate(push_list_loads_total{outcome="error"}[5m])) / sum(rate(push_list_loads_total[5m]))
//
//   # P95 request latency per resource
//   histogram_quantile(0.95, sum by (le, resource) (rate(push_api_request_duration_seconds_bucket[5m])))
//
//   # Conditional request hit rate
//   rate(push_cache_revalidations_total[5m]) / rate(push_cache_conditional_requests_total[5m])
