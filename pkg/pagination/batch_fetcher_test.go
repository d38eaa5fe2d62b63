package pagination

import (
	"context"
	"testing"
	"time"
)

func TestNewBatchFetcher_Defaults(t *testing.T) {
	bf := NewBatchFetcher[testItem](&fakeFetcher{}, Config{})
	if bf.config.MaxConcurrency != 4 {
		t.Errorf("MaxConcurrency = %d, want 4", bf.config.MaxConcurrency)
	}
	if bf.config.Timeout != 15*time.Second {
		t.Errorf("Timeout = %v, want 15s", bf.config.Timeout)
	}
}

func TestBatchFetcher_FetchAll(t *testing.T) {
	tests := []struct {
		name    string
		total   int
		perPage int
		workers int
	}{
		{"single page", 7, 20, 4},
		{"exact multiple", 40, 20, 4},
		{"partial last page", 55, 20, 2},
		{"many pages one worker", 95, 10, 1},
		{"empty", 0, 20, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFetcher{items: makeItems(tt.total)}
			bf := NewBatchFetcher[testItem](f, Config{MaxConcurrency: tt.workers, Timeout: time.Second})

			items, meta, err := bf.FetchAll(context.Background(), tt.perPage)
			if err != nil {
				t.Fatalf("FetchAll() error: %v", err)
			}
			if len(items) != tt.total {
				t.Fatalf("items = %d, want %d", len(items), tt.total)
			}
			for i := range items {
				if items[i] != f.items[i] {
					t.Fatalf("items[%d] = %v, want %v (page order)", i, items[i], f.items[i])
				}
			}
			if meta.HasNext {
				t.Error("final meta HasNext = true")
			}
			for page, n := range f.calls {
				if n != 1 {
					t.Errorf("page %d fetched %d times, want 1", page, n)
				}
			}
		})
	}
}

func TestBatchFetcher_PartialFailure(t *testing.T) {
	f := &fakeFetcher{items: makeItems(100), failPage: 3}
	bf := NewBatchFetcher[testItem](f, Config{MaxConcurrency: 1, Timeout: time.Second})

	items, _, err := bf.FetchAll(context.Background(), 20)
	if err == nil {
		t.Fatal("expected error for failed page")
	}
	if len(items) != 40 {
		t.Errorf("items = %d, want 40 (pages 1-2 before the failure)", len(items))
	}
}

func TestBatchFetcher_FirstPageFailure(t *testing.T) {
	f := &fakeFetcher{items: makeItems(10), failPage: 1}
	bf := NewBatchFetcher[testItem](f, DefaultConfig())

	items, _, err := bf.FetchAll(context.Background(), 20)
	if err == nil {
		t.Fatal("expected error")
	}
	if items != nil {
		t.Errorf("items = %v, want nil", items)
	}
}
