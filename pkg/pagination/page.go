package pagination

import (
	"errors"
	"fmt"
)

// ErrInvalidMeta is returned by Meta.Validate when the metadata breaks its invariants.
var ErrInvalidMeta = errors.New("invalid pagination meta")

// Meta is the pagination metadata returned alongside every page.
type Meta struct {
	Page     int  `json:"page"`
	PerPage  int  `json:"perPage"`
	Total    int  `json:"total"`
	LastPage int  `json:"lastPage"`
	HasNext  bool `json:"hasNext"`
	HasPrev  bool `json:"hasPrev"`
}

// Validate checks the metadata invariants: positive page, perPage and
// lastPage, non-negative total, and HasNext == (Page < LastPage).
func (m Meta) Validate() error {
	switch {
	case m.Page < 1:
		return fmt.Errorf("%w: page %d < 1", ErrInvalidMeta, m.Page)
	case m.PerPage < 1:
		return fmt.Errorf("%w: perPage %d < 1", ErrInvalidMeta, m.PerPage)
	case m.Total < 0:
		return fmt.Errorf("%w: total %d < 0", ErrInvalidMeta, m.Total)
	case m.LastPage < 1:
		return fmt.Errorf("%w: lastPage %d < 1", ErrInvalidMeta, m.LastPage)
	case m.HasNext != (m.Page < m.LastPage):
		return fmt.Errorf("%w: hasNext=%t with page %d of %d", ErrInvalidMeta, m.HasNext, m.Page, m.LastPage)
	}
	return nil
}

// Page is one slice of a list resource. It is not modified after FetchPage returns it.
type Page[T any] struct {
	Items []T
	Meta  Meta
}

// envelope is the wire shape of a list response.
type envelope[T any] struct {
	Data []T `json:"data"`
	Meta Meta `json:"meta"`
}
