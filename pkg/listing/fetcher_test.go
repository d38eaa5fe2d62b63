package listing

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/brutalpush/pushclient/pkg/pagination"
	"github.com/stretchr/testify/require"
)

// gatedFetcher serves in-memory pages. A page can be gated so its next fetch
// blocks until the returned channel is closed.
type gatedFetcher struct {
	mu      sync.Mutex
	items   []sub
	gates   map[int]chan struct{}
	calls   map[int]int
	arrived chan int
	delay   time.Duration
}

func newGatedFetcher(n int) *gatedFetcher {
	f := &gatedFetcher{
		gates:   make(map[int]chan struct{}),
		calls:   make(map[int]int),
		arrived: make(chan int, 16),
	}
	f.setItems(n)
	return f
}

func (f *gatedFetcher) setItems(n int) {
	items := make([]sub, n)
	for i := range items {
		items[i] = sub{ID: fmt.Sprintf("item-%d", i+1)}
	}
	f.mu.Lock()
	f.items = items
	f.mu.Unlock()
}

func (f *gatedFetcher) gate(page int) chan struct{} {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[page] = ch
	f.mu.Unlock()
	return ch
}

func (f *gatedFetcher) callCount(page int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[page]
}

func (f *gatedFetcher) awaitArrival(t *testing.T) int {
	t.Helper()
	select {
	case page := <-f.arrived:
		return page
	case <-time.After(2 * time.Second):
		require.FailNow(t, "gated fetch never started")
		return 0
	}
}

func (f *gatedFetcher) FetchPage(ctx context.Context, page, perPage int) (pagination.Page[sub], error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[int]int)
	}
	f.calls[page]++
	g, gated := f.gates[page]
	delete(f.gates, page)
	f.mu.Unlock()

	if gated {
		f.arrived <- page
		select {
		case <-g:
		case <-ctx.Done():
			return pagination.Page[sub]{}, ctx.Err()
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	total := len(f.items)
	lastPage := max((total+perPage-1)/perPage, 1)
	start := min((page-1)*perPage, total)
	end := min(start+perPage, total)
	return pagination.Page[sub]{
		Items: append([]sub{}, f.items[start:end]...),
		Meta: pagination.Meta{
			Page:     page,
			PerPage:  perPage,
			Total:    total,
			LastPage: lastPage,
			HasNext:  page < lastPage,
			HasPrev:  page > 1,
		},
	}, nil
}
