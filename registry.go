package hxselect

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/pthm/hxselect/locale"
	"github.com/pthm/hxselect/search"
	"github.com/pthm/hxselect/watch"
	"github.com/pthm/hxselect/widget"
)

// DefaultBasePath is where component and search routes live.
const DefaultBasePath = "/_c/"

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger. Components added later inherit it.
func WithLogger(l *zap.Logger) Option {
	return func(reg *Registry) {
		if l != nil {
			reg.logger = l
		}
	}
}

// WithBasePath changes the route prefix for components and local search
// endpoints.
func WithBasePath(path string) Option {
	return func(reg *Registry) {
		if path != "" {
			reg.basePath = "/" + strings.Trim(path, "/") + "/"
		}
	}
}

// WithSearchClient sets the HTTP client used for remote search endpoints.
func WithSearchClient(c *search.Client) Option {
	return func(reg *Registry) {
		if c != nil {
			reg.client = c
		}
	}
}

// WithSearchTimeout bounds every widget search and lookup.
func WithSearchTimeout(d time.Duration) Option {
	return func(reg *Registry) {
		reg.timeout = d
	}
}

// WithCatalog sets the message catalog for widgets.
func WithCatalog(c *locale.Catalog) Option {
	return func(reg *Registry) {
		if c != nil {
			reg.catalog = c
		}
	}
}

type mount struct {
	selector string
	fn       watch.Callback
}

// Registry routes component requests, serves local search callbacks and
// mounts select widgets into rendered pages.
type Registry struct {
	mu         sync.RWMutex
	mux        *http.ServeMux
	encoder    *Encoder
	components map[string]HXComponent
	searches   map[string]search.Func
	mounts     []mount

	selectOnce sync.Once
	sel        *Select

	basePath string
	client   *search.Client
	catalog  *locale.Catalog
	timeout  time.Duration
	logger   *zap.Logger

	// OnError answers failed component requests. The default maps not
	// found to 404, bad requests to 400 and everything else to 500.
	OnError ErrorHandler
}

var (
	defaultMu  sync.RWMutex
	defaultReg *Registry
)

// SetDefault makes reg the process-wide default registry.
func SetDefault(reg *Registry) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultReg = reg
}

// Default returns the process-wide registry, or nil if none was set.
func Default() *Registry {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultReg
}

// MustDefault is like Default but panics when no registry was set.
func MustDefault() *Registry {
	reg := Default()
	if reg == nil {
		panic("hxselect: no default registry, call SetDefault")
	}
	return reg
}

// NewRegistry creates a registry. key signs and encrypts component props;
// it should be 32 random bytes.
func NewRegistry(key []byte, opts ...Option) *Registry {
	enc, err := NewEncoder(key)
	if err != nil {
		panic(fmt.Sprintf("hxselect: failed to create encoder: %v", err))
	}

	reg := &Registry{
		mux:        http.NewServeMux(),
		encoder:    enc,
		components: make(map[string]HXComponent),
		searches:   make(map[string]search.Func),
		basePath:   DefaultBasePath,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(reg)
	}
	if reg.client == nil {
		reg.client, err = search.NewClient(search.WithLogger(reg.logger))
		if err != nil {
			panic(fmt.Sprintf("hxselect: failed to create search client: %v", err))
		}
	}
	if reg.catalog == nil {
		reg.catalog = locale.Default()
	}
	reg.OnError = reg.defaultOnError
	reg.mux.HandleFunc(reg.searchPrefix(), reg.serveSearch)
	reg.mounts = append(reg.mounts, mount{selector: PlaceholderSelector, fn: reg.Mounter()})
	// Select actions must route even before the first page is mounted.
	reg.Select()
	return reg
}

// Encoder returns the props encoder.
func (reg *Registry) Encoder() *Encoder { return reg.encoder }

// Logger returns the registry logger.
func (reg *Registry) Logger() *zap.Logger { return reg.logger }

// BasePath returns the route prefix, e.g. "/_c/".
func (reg *Registry) BasePath() string { return reg.basePath }

type wiredComponent interface {
	SetBasePath(string)
	SetEncoder(*Encoder)
	SetOnError(ErrorHandler)
	OnError() ErrorHandler
	SetLogger(*zap.Logger)
}

// Add registers components. Panics on a prefix collision.
func (reg *Registry) Add(components ...HXComponent) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for _, comp := range components {
		wc, wired := comp.(wiredComponent)
		if wired {
			wc.SetBasePath(reg.basePath)
		}
		prefix := comp.HXPrefix()
		if _, exists := reg.components[prefix]; exists {
			panic(fmt.Sprintf("hxselect: prefix collision for %q", prefix))
		}
		if wired {
			wc.SetEncoder(reg.encoder)
			wc.SetLogger(reg.logger)
			if wc.OnError() == nil {
				wc.SetOnError(func(w http.ResponseWriter, r *http.Request, err error) {
					reg.OnError(w, r, err)
				})
			}
		}
		reg.components[prefix] = comp
		reg.mux.HandleFunc(prefix+"/", comp.HXServeHTTP)
	}
}

// Handler serves component and local search routes. Mount it at the base
// path. Mutating requests without the HX-Request header are rejected.
func (reg *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead && r.Method != http.MethodOptions {
			if !IsHTMX(r) {
				http.Error(w, "Forbidden: HTMX request required", http.StatusForbidden)
				return
			}
		}
		reg.mux.ServeHTTP(w, r)
	})
}

// Select returns the registry's select component.
func (reg *Registry) Select() *Select {
	reg.selectOnce.Do(func() {
		reg.sel = NewSelect(reg)
	})
	return reg.sel
}

func (reg *Registry) searchPrefix() string {
	return reg.basePath + "search/"
}

// HandleSearch serves fn as a local JSON search endpoint and returns its
// path. Registering the same key again replaces the callback.
func (reg *Registry) HandleSearch(key string, fn search.Func) string {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.searches[key] = fn
	return reg.searchPrefix() + url.PathEscape(key)
}

func (reg *Registry) serveSearch(w http.ResponseWriter, r *http.Request) {
	key, err := url.PathUnescape(strings.TrimPrefix(r.URL.EscapedPath(), reg.searchPrefix()))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	reg.mu.RLock()
	fn, ok := reg.searches[key]
	reg.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	search.Handler(fn, search.WithHandlerLogger(reg.logger)).ServeHTTP(w, r)
}

// Searcher returns the searcher for a payload. Endpoints pointing at a
// local search route call the callback directly; anything else goes
// through the HTTP client.
func (reg *Registry) Searcher(p widget.Payload) widget.Searcher {
	if u, err := url.Parse(p.Config.SearchEndpoint); err == nil && u.Host == "" {
		if key, ok := strings.CutPrefix(u.EscapedPath(), reg.searchPrefix()); ok {
			if key, err := url.PathUnescape(key); err == nil {
				reg.mu.RLock()
				fn, found := reg.searches[key]
				reg.mu.RUnlock()
				if found {
					return fn
				}
			}
		}
	}
	return reg.client
}

// WidgetOptions returns the options used for widgets built by this
// registry.
func (reg *Registry) WidgetOptions() []widget.Option {
	opts := []widget.Option{
		widget.WithLogger(reg.logger),
		widget.WithCatalog(reg.catalog),
	}
	if reg.timeout > 0 {
		opts = append(opts, widget.WithSearchTimeout(reg.timeout))
	}
	return opts
}

// Mount adds a watch callback applied by Middleware.
func (reg *Registry) Mount(selector string, fn watch.Callback) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.mounts = append(reg.mounts, mount{selector: selector, fn: fn})
}

// Mounter returns the watch callback for select placeholders: it parses
// the element's data-payload and renders the widget into the element.
func (reg *Registry) Mounter() watch.Callback {
	return func(ctx context.Context, el *goquery.Selection) (watch.Disposer, error) {
		id, _ := el.Attr("id")
		raw, ok := el.Attr("data-payload")
		if !ok {
			return nil, fmt.Errorf("%w: placeholder %q has no data-payload", widget.ErrInvalidPayload, id)
		}
		p, err := widget.ParsePayload([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("placeholder %q: %w", id, err)
		}

		var buf bytes.Buffer
		if err := reg.Select().Mount(ctx, p).Render(ctx, &buf); err != nil {
			return nil, fmt.Errorf("placeholder %q: %w", id, err)
		}
		el.SetHtml(buf.String())
		return nil, nil
	}
}

// Middleware mounts widgets into HTML responses of next. Every registered
// mount is applied to each text/html response, full pages and htmx
// fragments alike, so placeholders inserted by later swaps are mounted
// when their response passes through. A failed mount is answered with 500.
func (reg *Registry) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := &bufferedResponse{header: w.Header(), status: http.StatusOK}
		next.ServeHTTP(buf, r)

		reg.mu.RLock()
		mounts := append([]mount(nil), reg.mounts...)
		reg.mu.RUnlock()

		body := buf.body.Bytes()
		if len(body) > 0 && w.Header().Get("Content-Type") == "" {
			// net/http would sniff on the first Write; the buffer skipped that.
			w.Header().Set("Content-Type", http.DetectContentType(body))
		}
		if len(mounts) == 0 || len(body) == 0 || !strings.HasPrefix(w.Header().Get("Content-Type"), "text/html") {
			buf.flush(w, body)
			return
		}

		out, err := reg.mountHTML(r.Context(), body, mounts)
		if err != nil {
			reg.logger.Error("mounting widgets failed", zap.String("path", r.URL.Path), zap.Error(err))
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		buf.flush(w, out)
	})
}

func (reg *Registry) mountHTML(ctx context.Context, body []byte, mounts []mount) ([]byte, error) {
	doc, err := watch.Parse(body)
	if err != nil {
		return nil, err
	}
	watcher := watch.New(doc, watch.WithLogger(reg.logger))
	defer watcher.Close()

	var errs []error
	for _, m := range mounts {
		if err := watcher.Watch(ctx, m.selector, m.fn); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if watcher.Len() == 0 {
		return body, nil
	}
	return watch.Render(doc)
}

// Dispose drops every mount and local search route. Component routes stay
// registered.
func (reg *Registry) Dispose() {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.mounts = nil
	reg.searches = make(map[string]search.Func)
}

func (reg *Registry) defaultOnError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case IsNotFound(err):
		reg.logger.Warn("component route not found", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, ErrMethodNotAllowed):
		reg.logger.Warn("method not allowed", zap.String("path", r.URL.Path), zap.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	case IsBadRequest(err):
		reg.logger.Warn("bad component request", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "Bad request", http.StatusBadRequest)
	default:
		reg.logger.Error("component request failed", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

// bufferedResponse holds a handler's output so the middleware can rewrite
// it. Headers go straight to the real writer's header map.
type bufferedResponse struct {
	header      http.Header
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(status int) {
	if b.wroteHeader {
		return
	}
	b.status = status
	b.wroteHeader = true
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	b.wroteHeader = true
	return b.body.Write(p)
}

func (b *bufferedResponse) flush(w http.ResponseWriter, body []byte) {
	w.Header().Del("Content-Length")
	w.WriteHeader(b.status)
	_, _ = w.Write(body)
}
