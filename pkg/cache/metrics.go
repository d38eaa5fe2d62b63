package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "push_cache_lookups_total",
		Help: "Response cache lookups by result (hit, miss, error)",
	}, []string{"result"})

	cacheConditionalRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "push_cache_conditional_requests_total",
		Help: "Requests sent with If-None-Match or If-Modified-Since",
	})

	cacheRevalidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "push_cache_revalidations_total",
		Help: "304 responses answered from the cache",
	})

	cacheInvalidatedKeys = promauto.NewCounter(prometheus.CounterOpts{
		Name: "push_cache_invalidated_keys_total",
		Help: "Entries removed by Invalidate and Purge",
	})

	cacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "push_cache_errors_total",
		Help: "Redis errors by operation",
	}, []string{"operation"})
)
