// Package hxselect provides an ajax select and multi-select form field for
// server-rendered Go applications built on templ and htmx.
//
// A Field renders a placeholder that carries its configuration as JSON in
// a data-payload attribute, plus a hidden input holding the initial value.
// The registry's Middleware scans outgoing HTML with a mount watcher and
// replaces every placeholder's content with a live widget:
//
//	reg := hxselect.NewRegistry(key, hxselect.WithLogger(logger))
//	hxselect.SetDefault(reg)
//
//	mux.Handle(reg.BasePath(), reg.Handler())
//	mux.Handle("/", reg.Middleware(pages))
//
//	field := hxselect.NewField("Page",
//	    hxselect.WithEndpoint("/api/pages"),
//	    hxselect.Multiple(),
//	    hxselect.Sortable(),
//	)
//	@field.Placeholder(reg)
//
// # Components
//
// The widget is a component: it embeds *Component[P] where P is its props
// type, and implements Hydrate and Render.
//
//	type Select struct {
//	    *hxselect.Component[SelectProps]
//	    reg *Registry
//	}
//
// Props travel between requests in the "p" parameter, msgpack encoded and
// either signed or, for components marked Sensitive, AES-GCM encrypted.
// The select component is sensitive because payloads may carry search
// headers. Hydrate rebuilds a widget.Widget from the props on every
// request; handlers mutate it and return a Result.
//
// Actions are registered by name and reached below the component prefix:
//
//	s.Action("search", s.handleSearch).Method(http.MethodGet)
//	s.Action("select", s.handleSelect)
//
// and referenced from markup through Call, which returns an Action builder
// for the htmx attributes:
//
//	s.Call("search", props).OnInput(300 * time.Millisecond).Sync("this:replace").Attrs()
//
// # Search
//
// A field searches either a remote JSON endpoint (WithEndpoint) or an
// in-process callback (WithSearchCallback). Callbacks get a route below
// the registry base path, served by search.Handler, and widgets rendered
// by the same registry call them directly without an HTTP round trip.
//
// # Events
//
// Every selection change answers with an HX-Trigger for EventChanged whose
// detail carries the field name and the new hidden value. Rejected reorders
// add a warning flash rendered out of band into the #toasts container.
//
// # Security
//
// Mutating requests must carry the HX-Request header that htmx sends;
// Registry.Handler rejects them otherwise.
package hxselect
