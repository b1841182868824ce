package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/pthm/hxselect/widget"
)

// Query is what a search callback receives.
type Query struct {
	// Term is the trimmed search text. Empty for id lookups.
	Term string
	// ID is set for detail lookups instead of Term.
	ID string
	// Vars holds the remaining request parameters (the field's getVars).
	Vars map[string]string
	// Header holds the request headers the field was configured with.
	Header map[string]string
}

// IsLookup reports whether q asks for a single id.
func (q Query) IsLookup() bool { return q.ID != "" }

// Func is an in-process search callback. It implements widget.Searcher, so
// a field can be backed by Go code instead of an HTTP endpoint.
//
// For lookups Func is called with Query.ID set; it should return the
// matching result first, or ErrNotFound.
type Func func(ctx context.Context, q Query) ([]widget.Result, error)

var _ widget.Searcher = Func(nil)

// Search implements widget.Searcher.
func (f Func) Search(ctx context.Context, req widget.Request) ([]widget.Result, error) {
	if f == nil {
		return nil, widget.ErrSearchConfig
	}
	results, err := f(ctx, Query{Term: req.Query, Vars: req.GetVars, Header: req.Headers})
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []widget.Result{}
	}
	return results, nil
}

// Lookup implements widget.Searcher.
func (f Func) Lookup(ctx context.Context, req widget.Request, id string) (widget.Result, error) {
	if f == nil {
		return nil, widget.ErrSearchConfig
	}
	results, err := f(ctx, Query{ID: id, Vars: req.GetVars, Header: req.Headers})
	if err != nil {
		return nil, err
	}
	return pick(results, id)
}

// pick returns the result with the given id, or the only result when the
// callback ignored the id and returned one item.
func pick(results []widget.Result, id string) (widget.Result, error) {
	for _, r := range results {
		if r.ID() == id {
			return r, nil
		}
	}
	if len(results) == 1 && results[0].ID() == "" {
		return results[0], nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
