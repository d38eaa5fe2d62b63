// Package listing accumulates the pages of a list resource into one state
// object that a view can render: the merged items, the current page, the last
// pagination meta, loading flags and a user-facing error.
//
// One Controller serves one list. Operations block until their fetch
// completes and are safe for concurrent use. Fetch failures never escape an
// operation; they are stored in State.Err.
package listing

import (
	"context"
	"sync"

	"github.com/brutalpush/pushclient/pkg/client"
	"github.com/brutalpush/pushclient/pkg/pagination"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for list controllers.
var (
	listLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "push_list_loads_total",
		Help: "Total list page loads by list, kind (first, next) and outcome (success, error, discarded)",
	}, []string{"list", "kind", "outcome"})

	listItems = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "push_list_items",
		Help: "Items currently accumulated by a list controller",
	}, []string{"list"})
)

const (
	kindFirst = "first"
	kindNext  = "next"
)

// Default user-facing messages when the server supplies none.
const (
	DefaultLoadFailedMessage     = "Failed to load list"
	DefaultLoadMoreFailedMessage = "Failed to load more items"
)

// Options configures a Controller.
type Options struct {
	// Name labels logs and metrics, e.g. "subscriptions".
	Name string
	// LoadFailedMessage is stored when a first-page load fails without a server message.
	LoadFailedMessage string
	// LoadMoreFailedMessage is stored when a next-page load fails without a server message.
	LoadMoreFailedMessage string
	// Logger overrides the component logger.
	Logger *zerolog.Logger
}

// Controller merges pages from a Fetcher.
//
// A first-page load (LoadFirstPage or Refresh) supersedes an in-flight
// next-page load: the next-page result is discarded when it arrives and
// LoadingMore is cleared as soon as the first-page load starts, so Loading and
// LoadingMore are never both true. LoadNextPage does nothing while a
// first-page load is in flight. Of overlapping first-page loads the most
// recently started one wins.
type Controller[T any] struct {
	fetcher pagination.Fetcher[T]
	opts    Options
	logger  zerolog.Logger

	mu       sync.Mutex
	state    State[T]
	phase    Phase
	firstGen uint64
	nextGen  uint64
	closed   bool
	watchers map[*Watcher[T]]struct{}
}

// New creates a controller with empty state.
func New[T any](fetcher pagination.Fetcher[T], opts Options) *Controller[T] {
	if opts.Name == "" {
		opts.Name = "list"
	}
	if opts.LoadFailedMessage == "" {
		opts.LoadFailedMessage = DefaultLoadFailedMessage
	}
	if opts.LoadMoreFailedMessage == "" {
		opts.LoadMoreFailedMessage = DefaultLoadMoreFailedMessage
	}

	var logger zerolog.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	} else {
		logger = log.With().Str("component", "list-controller").Logger()
	}
	logger = logger.With().Str("list", opts.Name).Logger()

	return &Controller[T]{
		fetcher:  fetcher,
		opts:     opts,
		logger:   logger,
		state:    State[T]{Items: []T{}},
		watchers: make(map[*Watcher[T]]struct{}),
	}
}

// LoadFirstPage fetches page 1 and replaces the accumulated items with it.
// On failure the previous items, page and meta are kept and Err is set.
func (c *Controller[T]) LoadFirstPage(ctx context.Context, perPage int) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	c.firstGen++
	gen := c.firstGen
	if c.state.LoadingMore {
		// Invalidate the in-flight next page; its result will be dropped.
		c.nextGen++
		c.state.LoadingMore = false
		c.logger.Debug().Int("page", c.state.CurrentPage+1).Msg("Next-page load superseded by first-page load")
	}
	c.state.Loading = true
	c.state.Err = ""
	c.phase = PhaseLoadingFirst
	c.notifyLocked()
	c.mu.Unlock()

	c.logger.Debug().Int("page", 1).Int("per_page", perPage).Msg("Loading first page")
	page, err := c.fetcher.FetchPage(ctx, 1, perPage)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || gen != c.firstGen {
		listLoadsTotal.WithLabelValues(c.opts.Name, kindFirst, "discarded").Inc()
		return
	}

	c.state.Loading = false

	if err != nil {
		c.state.Err = client.UserMessage(err, c.opts.LoadFailedMessage)
		c.phase = PhaseLoadError
		listLoadsTotal.WithLabelValues(c.opts.Name, kindFirst, "error").Inc()
		c.logger.Warn().Err(err).Int("page", 1).Msg("Failed to load first page")
		c.notifyLocked()
		return
	}

	c.state.Items = append(make([]T, 0, len(page.Items)), page.Items...)
	c.state.CurrentPage = 1
	meta := page.Meta
	c.state.Meta = &meta
	c.phase = PhaseLoaded
	listLoadsTotal.WithLabelValues(c.opts.Name, kindFirst, "success").Inc()
	listItems.WithLabelValues(c.opts.Name).Set(float64(len(c.state.Items)))

	c.logger.Info().
		Int("items", len(c.state.Items)).
		Int("total", meta.Total).
		Bool("has_next", meta.HasNext).
		Msg("First page loaded")
	c.notifyLocked()
}

// LoadNextPage fetches CurrentPage+1 and appends its items. It returns
// immediately without touching state when no meta is present yet, when
// meta.HasNext is false, or when a load is already in flight.
func (c *Controller[T]) LoadNextPage(ctx context.Context, perPage int) {
	c.mu.Lock()
	if c.closed || c.state.Meta == nil || !c.state.Meta.HasNext || c.state.LoadingMore || c.state.Loading {
		c.mu.Unlock()
		return
	}

	c.nextGen++
	gen := c.nextGen
	next := c.state.CurrentPage + 1
	c.state.LoadingMore = true
	c.state.Err = ""
	c.phase = PhaseLoadingMore
	c.notifyLocked()
	c.mu.Unlock()

	c.logger.Debug().Int("page", next).Int("per_page", perPage).Msg("Loading next page")
	page, err := c.fetcher.FetchPage(ctx, next, perPage)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || gen != c.nextGen {
		listLoadsTotal.WithLabelValues(c.opts.Name, kindNext, "discarded").Inc()
		c.logger.Debug().Int("page", next).Msg("Discarding superseded next page")
		return
	}

	c.state.LoadingMore = false

	if err != nil {
		c.state.Err = client.UserMessage(err, c.opts.LoadMoreFailedMessage)
		c.phase = PhaseLoadErrorPartial
		listLoadsTotal.WithLabelValues(c.opts.Name, kindNext, "error").Inc()
		c.logger.Warn().Err(err).Int("page", next).Msg("Failed to load next page")
		c.notifyLocked()
		return
	}

	c.state.Items = append(c.state.Items, page.Items...)
	c.state.CurrentPage = next
	meta := page.Meta
	c.state.Meta = &meta
	c.phase = PhaseLoaded
	listLoadsTotal.WithLabelValues(c.opts.Name, kindNext, "success").Inc()
	listItems.WithLabelValues(c.opts.Name).Set(float64(len(c.state.Items)))

	c.logger.Debug().
		Int("page", next).
		Int("items", len(c.state.Items)).
		Bool("has_next", meta.HasNext).
		Msg("Next page appended")
	c.notifyLocked()
}

// Refresh reloads page 1, as on a pull-to-refresh. It behaves exactly like
// LoadFirstPage.
func (c *Controller[T]) Refresh(ctx context.Context, perPage int) {
	c.LoadFirstPage(ctx, perPage)
}

// State returns a snapshot of the current state.
func (c *Controller[T]) State() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Phase returns the current phase.
func (c *Controller[T]) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Close tears the controller down. Later operations return immediately and
// results of fetches still in flight are dropped. Watchers are closed.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for w := range c.watchers {
		w.closeLocked()
	}
	c.watchers = nil
	listItems.DeleteLabelValues(c.opts.Name)
	c.logger.Debug().Msg("List controller closed")
}

// Closed reports whether Close was called.
func (c *Controller[T]) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
