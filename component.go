package hxselect

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/a-h/templ"
	"go.uber.org/zap"
)

// Handler is an action handler. Props arrive decoded and hydrated.
type Handler[P any] func(ctx context.Context, props P, r *http.Request) Result[P]

type actionDef struct {
	name    string
	method  string
	handler any
}

// ErrorHandler answers a request that failed.
type ErrorHandler func(http.ResponseWriter, *http.Request, error)

// Component is the base type embedded by components. P is the props type,
// carried between requests in the "p" parameter.
//
//	type Select struct {
//	    *hxselect.Component[SelectProps]
//	    reg *Registry
//	}
//
// Each instance gets a URL prefix derived from its name and the source
// location of the New call, so two instances never share routes.
type Component[P any] struct {
	name      string
	route     string
	prefix    string
	sensitive bool
	actions   map[string]*actionDef
	encoder   *Encoder
	onError   ErrorHandler
	logger    *zap.Logger
}

// New creates a component. Props are signed by default; call Sensitive to
// encrypt them.
func New[P any](name string) *Component[P] {
	route := name + "-" + componentHash(name, 1)
	return &Component[P]{
		name:    name,
		route:   route,
		prefix:  DefaultBasePath + route,
		actions: make(map[string]*actionDef),
		logger:  zap.NewNop(),
	}
}

// Sensitive switches props to AES-GCM encryption.
func (c *Component[P]) Sensitive() *Component[P] {
	c.sensitive = true
	return c
}

func (c *Component[P]) Name() string      { return c.name }
func (c *Component[P]) Prefix() string    { return c.prefix }
func (c *Component[P]) IsSensitive() bool { return c.sensitive }

// HXPrefix implements HXComponent.
func (c *Component[P]) HXPrefix() string { return c.prefix }

// Action registers a named handler, POST unless overridden:
//
//	c.Action("select", c.handleSelect)
//	c.Action("search", c.handleSearch).Method(http.MethodGet)
func (c *Component[P]) Action(name string, h Handler[P]) *ActionBuilder {
	def := &actionDef{name: name, method: http.MethodPost, handler: h}
	c.actions[name] = def
	return &ActionBuilder{action: def}
}

// Actions returns the registered actions.
func (c *Component[P]) Actions() map[string]*actionDef {
	return c.actions
}

// SetBasePath moves the component's routes below base. Called by the
// registry.
func (c *Component[P]) SetBasePath(base string) { c.prefix = base + c.route }

// SetEncoder is called by the registry.
func (c *Component[P]) SetEncoder(enc *Encoder) { c.encoder = enc }

// Encoder returns the props encoder.
func (c *Component[P]) Encoder() *Encoder { return c.encoder }

// SetOnError sets the error handler. The registry installs its own OnError
// unless one is already set.
func (c *Component[P]) SetOnError(h ErrorHandler) { c.onError = h }

// OnError returns the error handler.
func (c *Component[P]) OnError() ErrorHandler { return c.onError }

// SetLogger is called by the registry.
func (c *Component[P]) SetLogger(l *zap.Logger) {
	if l != nil {
		c.logger = l.With(zap.String("component", c.name))
	}
}

// Logger returns the component logger.
func (c *Component[P]) Logger() *zap.Logger { return c.logger }

// Call returns the request builder for a registered action. An empty name
// is the default render.
func (c *Component[P]) Call(action string, props P) *Action {
	method := http.MethodGet
	path := c.prefix + "/"
	if action != "" {
		path += action
		if def, ok := c.actions[action]; ok {
			method = def.method
		}
	}
	encoded, err := c.Encode(props)
	if err != nil {
		c.logger.Error("encode props", zap.String("action", action), zap.Error(err))
	}
	return newWiredAction(path, method, encoded)
}

// Refresh returns the builder for re-rendering with props.
func (c *Component[P]) Refresh(props P) *Action {
	return c.Call("", props)
}

// Defer renders placeholder and replaces it with the component once the
// page has loaded.
func (c *Component[P]) Defer(props P, placeholder templ.Component) templ.Component {
	return lazyComponent(c.Refresh(props).URL(), placeholder, "load")
}

// Lazy is like Defer but waits until the placeholder scrolls into view.
func (c *Component[P]) Lazy(props P, placeholder templ.Component) templ.Component {
	return lazyComponent(c.Refresh(props).URL(), placeholder, "intersect once")
}

// Encode serializes props for the "p" parameter.
func (c *Component[P]) Encode(props P) (string, error) {
	if c.encoder == nil {
		return "", fmt.Errorf("hxselect: component %q is not registered", c.name)
	}
	return c.encoder.Encode(props, c.sensitive)
}

// Decode reads props from the request's "p" parameter. A missing parameter
// yields zero props.
func (c *Component[P]) Decode(r *http.Request) (P, error) {
	var props P
	encoded := r.FormValue("p")
	if encoded == "" {
		return props, nil
	}
	if c.encoder == nil {
		return props, fmt.Errorf("hxselect: component %q is not registered", c.name)
	}
	if err := c.encoder.Decode(encoded, c.sensitive, &props); err != nil {
		return props, WrapDecodeError(err)
	}
	return props, nil
}

// Serve runs one request through the component lifecycle: decode props,
// Hydrate, dispatch to the action named by the path, then answer according
// to the handler's Result.
func (c *Component[P]) Serve(w http.ResponseWriter, r *http.Request, lc Lifecycle[P]) {
	props, err := c.Decode(r)
	if err != nil {
		c.fail(w, r, err)
		return
	}
	if err := lc.Hydrate(r.Context(), &props); err != nil {
		c.fail(w, r, fmt.Errorf("%w: %w", ErrHydrationFailed, err))
		return
	}

	name := strings.Trim(strings.TrimPrefix(r.URL.Path, c.prefix), "/")
	if name == "" {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			c.fail(w, r, ErrMethodNotAllowed)
			return
		}
		c.respond(w, r, lc, OK(props))
		return
	}

	def, ok := c.actions[name]
	if !ok {
		c.fail(w, r, fmt.Errorf("%w: action %q", ErrNotFound, name))
		return
	}
	if r.Method != def.method {
		c.fail(w, r, fmt.Errorf("%w: %s %s", ErrMethodNotAllowed, r.Method, name))
		return
	}
	h, ok := def.handler.(Handler[P])
	if !ok {
		c.fail(w, r, fmt.Errorf("hxselect: action %q has handler type %T", name, def.handler))
		return
	}
	c.respond(w, r, lc, h(r.Context(), props, r))
}

// respond applies a handler Result. Headers are set before the status is
// written; the body is rendered into a buffer first so a render error can
// still be answered through OnError.
func (c *Component[P]) respond(w http.ResponseWriter, r *http.Request, lc Lifecycle[P], res Result[P]) {
	if err := res.GetErr(); err != nil {
		c.fail(w, r, err)
		return
	}
	if res.ShouldSkip() {
		return
	}

	h := w.Header()
	for k, v := range res.GetHeaders() {
		h.Set(k, v)
	}
	if t := BuildTriggerHeader(res.GetTrigger(), res.GetTriggerData()); t != "" {
		h.Set("HX-Trigger", t)
	}
	if t := res.GetTriggerAfterSettle(); t != "" {
		h.Set("HX-Trigger-After-Settle", t)
	}
	status := res.GetStatus()
	if status == 0 {
		status = http.StatusOK
	}

	if url := res.GetRedirect(); url != "" {
		h.Set("HX-Redirect", url)
		w.WriteHeader(status)
		return
	}

	var buf bytes.Buffer
	if err := lc.Render(r.Context(), res.GetProps()).Render(r.Context(), &buf); err != nil {
		c.fail(w, r, err)
		return
	}
	buf.WriteString(RenderFlashesOOB(res.GetFlashes()))

	h.Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		_, _ = w.Write(buf.Bytes())
	}
}

func (c *Component[P]) fail(w http.ResponseWriter, r *http.Request, err error) {
	if c.onError != nil {
		c.onError(w, r, err)
		return
	}
	c.logger.Error("component request failed", zap.String("path", r.URL.Path), zap.Error(err))
	http.Error(w, "Internal error", http.StatusInternalServerError)
}

// componentHash hashes name with the caller's file:line.
func componentHash(name string, skip int) string {
	input := name
	if _, file, line, ok := runtime.Caller(skip + 1); ok {
		input = fmt.Sprintf("%s:%d:%s", filepath.Base(file), line, name)
	}
	h := sha256.Sum256([]byte(input))
	return hex.EncodeToString(h[:4])
}

func lazyComponent(url string, placeholder templ.Component, trigger string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<div hx-get="`+templ.EscapeString(url)+
			`" hx-trigger="`+trigger+`" hx-swap="outerHTML">`)
		if err != nil {
			return err
		}
		if placeholder != nil {
			if err := placeholder.Render(ctx, w); err != nil {
				return err
			}
		}
		_, err = io.WriteString(w, `</div>`)
		return err
	})
}
