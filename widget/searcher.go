package widget

import "context"

// Request describes one search call: where to send it and what to attach.
type Request struct {
	Endpoint string
	GetVars  map[string]string
	Headers  map[string]string
	Query    string
}

// Searcher runs searches for a widget.
//
// search.Client implements it over HTTP; search.Func adapts an in-process
// callback.
type Searcher interface {
	// Search returns the results for req.Query.
	Search(ctx context.Context, req Request) ([]Result, error)

	// Lookup returns the detail object for a single id.
	Lookup(ctx context.Context, req Request, id string) (Result, error)
}
