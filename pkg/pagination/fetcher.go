package pagination

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/brutalpush/pushclient/pkg/client"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrInvalidPage is returned when a page or perPage below 1 is requested.
var ErrInvalidPage = errors.New("page and perPage must be >= 1")

// Fetcher fetches a single page of a list resource.
type Fetcher[T any] interface {
	FetchPage(ctx context.Context, page, perPage int) (Page[T], error)
}

// Getter issues a GET and decodes the JSON response. *client.Client satisfies it.
type Getter interface {
	GetJSON(ctx context.Context, path string, query url.Values, out any) error
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc[T any] func(ctx context.Context, page, perPage int) (Page[T], error)

// FetchPage calls f.
func (f FetcherFunc[T]) FetchPage(ctx context.Context, page, perPage int) (Page[T], error) {
	return f(ctx, page, perPage)
}

// ResourceFetcher fetches pages of one REST resource, e.g. "/subscriptions".
type ResourceFetcher[T any] struct {
	getter   Getter
	resource string
	query    url.Values
	logger   zerolog.Logger
}

// NewResourceFetcher returns a fetcher for GET resource?page=n&perPage=m.
func NewResourceFetcher[T any](getter Getter, resource string) *ResourceFetcher[T] {
	return &ResourceFetcher[T]{
		getter:   getter,
		resource: resource,
		logger:   log.With().Str("component", "page-fetcher").Str("resource", resource).Logger(),
	}
}

// WithQuery returns a copy of the fetcher that adds fixed query parameters
// (filters such as topicName) to every page request.
func (f *ResourceFetcher[T]) WithQuery(query url.Values) *ResourceFetcher[T] {
	cp := *f
	cp.query = make(url.Values, len(query))
	for k, v := range query {
		cp.query[k] = append([]string(nil), v...)
	}
	return &cp
}

// Resource returns the resource path.
func (f *ResourceFetcher[T]) Resource() string {
	return f.resource
}

// FetchPage performs one GET with client retries switched off, so a failed
// page surfaces at once. Transport errors are returned as the client reports
// them (*client.APIError).
func (f *ResourceFetcher[T]) FetchPage(ctx context.Context, page, perPage int) (Page[T], error) {
	if page < 1 || perPage < 1 {
		return Page[T]{}, fmt.Errorf("%w (page=%d, perPage=%d)", ErrInvalidPage, page, perPage)
	}

	query := url.Values{}
	for k, v := range f.query {
		query[k] = v
	}
	query.Set("page", strconv.Itoa(page))
	query.Set("perPage", strconv.Itoa(perPage))

	start := time.Now()
	var env envelope[T]
	if err := f.getter.GetJSON(client.WithoutRetry(ctx), f.resource, query, &env); err != nil {
		return Page[T]{}, err
	}

	if err := env.Meta.Validate(); err != nil {
		f.logger.Warn().Err(err).Int("page", page).Msg("Server returned inconsistent pagination meta")
	}

	f.logger.Debug().
		Int("page", page).
		Int("per_page", perPage).
		Int("items", len(env.Data)).
		Dur("duration", time.Since(start)).
		Msg("Page fetched")

	items := env.Data
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Meta: env.Meta}, nil
}
