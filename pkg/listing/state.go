package listing

import "github.com/brutalpush/pushclient/pkg/pagination"

// Phase is the controller's position in its load cycle.
type Phase int

const (
	// PhaseIdle is the initial phase; nothing has been requested yet.
	PhaseIdle Phase = iota
	// PhaseLoadingFirst means a first-page load or refresh is in flight.
	PhaseLoadingFirst
	// PhaseLoaded means the last load succeeded.
	PhaseLoaded
	// PhaseLoadError means the last first-page load failed.
	PhaseLoadError
	// PhaseLoadingMore means a next-page load is in flight.
	PhaseLoadingMore
	// PhaseLoadErrorPartial means the last next-page load failed; earlier pages are kept.
	PhaseLoadErrorPartial
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoadingFirst:
		return "loading_first"
	case PhaseLoaded:
		return "loaded"
	case PhaseLoadError:
		return "load_error"
	case PhaseLoadingMore:
		return "loading_more"
	case PhaseLoadErrorPartial:
		return "load_error_partial"
	default:
		return "unknown"
	}
}

// State is a snapshot of a controller. Snapshots share nothing with the
// controller and may be kept or modified freely.
type State[T any] struct {
	// Items accumulated in page order, then server order within each page.
	Items []T
	// CurrentPage is the last page merged into Items. 0 before the first success.
	CurrentPage int
	// Meta from the last successful fetch, nil before the first success.
	Meta *pagination.Meta
	// Loading is true while a first-page load or refresh is in flight.
	Loading bool
	// LoadingMore is true while a next-page load is in flight.
	LoadingMore bool
	// Err is the user-facing message of the last failure, "" when none.
	Err string
}

// HasNext reports whether another page can be requested.
func (s State[T]) HasNext() bool {
	return s.Meta != nil && s.Meta.HasNext
}

// clone deep-copies the slice and meta.
func (s State[T]) clone() State[T] {
	out := s
	out.Items = append(make([]T, 0, len(s.Items)), s.Items...)
	if s.Meta != nil {
		m := *s.Meta
		out.Meta = &m
	}
	return out
}
