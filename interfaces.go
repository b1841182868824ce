package hxselect

import (
	"context"
	"net/http"

	"github.com/a-h/templ"
)

// Hydrater rebuilds request-scoped state from decoded props. It runs once
// per request, before any handler, including plain renders.
//
//	func (s *Select) Hydrate(ctx context.Context, props *SelectProps) error {
//	    props.widget, err = widget.New(props.Payload, s.searcherFor(props.Payload))
//	    ...
//	}
type Hydrater[P any] interface {
	Hydrate(ctx context.Context, props *P) error
}

// Renderer produces the component's markup from hydrated props. It is
// called for GET requests and after handlers that return OK or Err.
type Renderer[P any] interface {
	Render(ctx context.Context, props P) templ.Component
}

// Lifecycle is the pair of methods Component.Serve drives.
type Lifecycle[P any] interface {
	Hydrater[P]
	Renderer[P]
}

// HXComponent is what the Registry routes requests to.
//
// HXPrefix returns the unique URL prefix of the component instance;
// HXServeHTTP handles every request below it.
type HXComponent interface {
	HXPrefix() string
	HXServeHTTP(w http.ResponseWriter, r *http.Request)
}
