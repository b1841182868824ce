package hxselect

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"

	"github.com/a-h/templ"
)

// TestResult is the recorded outcome of a component request in tests.
type TestResult struct {
	HTML        string
	StatusCode  int
	Headers     http.Header
	Events      map[string]map[string]any
	Flashes     []Flash
	RedirectURL string
}

// TestableComponent is a component whose lifecycle tests can drive
// without HTTP.
type TestableComponent[P any] interface {
	Lifecycle[P]
}

// TestRender runs Hydrate and Render on props, skipping encoding and
// routing.
//
//	res, err := hxselect.TestRender(reg.Select(), hxselect.SelectProps{Payload: p})
func TestRender[P any](comp TestableComponent[P], props P) (*TestResult, error) {
	return TestRenderWithContext(context.Background(), comp, props)
}

// TestRenderWithContext is TestRender with a caller context.
func TestRenderWithContext[P any](ctx context.Context, comp TestableComponent[P], props P) (*TestResult, error) {
	if err := comp.Hydrate(ctx, &props); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := comp.Render(ctx, props).Render(ctx, &buf); err != nil {
		return nil, err
	}
	return &TestResult{
		HTML:       buf.String(),
		StatusCode: http.StatusOK,
		Headers:    make(http.Header),
		Flashes:    parseFlashes(buf.String()),
	}, nil
}

// TestGet sends an htmx GET to comp.
func TestGet(comp HXComponent, target string) *TestResult {
	return NewTestRequest(http.MethodGet, target).Execute(comp)
}

// TestPost sends an htmx POST with form values to comp.
func TestPost(comp HXComponent, target string, form url.Values) *TestResult {
	return NewTestRequest(http.MethodPost, target).WithForm(form).Execute(comp)
}

// TestRequestBuilder builds a request against a component.
//
//	res := hxselect.NewTestRequest(http.MethodPost, a.URL()).
//	    WithFormValue("p", encoded).
//	    WithFormValue("order", "2", "1").
//	    Execute(sel)
type TestRequestBuilder struct {
	method  string
	url     string
	form    url.Values
	headers http.Header
	ctx     context.Context
	htmx    bool
}

// NewTestRequest starts a request. It carries HX-Request: true unless
// WithoutHTMX is called.
func NewTestRequest(method, target string) *TestRequestBuilder {
	return &TestRequestBuilder{
		method:  method,
		url:     target,
		form:    make(map[string][]string),
		headers: make(http.Header),
		ctx:     context.Background(),
		htmx:    true,
	}
}

// WithFormValue adds values for key.
func (b *TestRequestBuilder) WithFormValue(key string, values ...string) *TestRequestBuilder {
	b.form[key] = append(b.form[key], values...)
	return b
}

// WithForm adds all values in form.
func (b *TestRequestBuilder) WithForm(form url.Values) *TestRequestBuilder {
	for k, vs := range form {
		b.form[k] = append(b.form[k], vs...)
	}
	return b
}

// WithVals adds the parameters an Action sends in hx-vals.
func (b *TestRequestBuilder) WithVals(a *Action) *TestRequestBuilder {
	raw, ok := a.Attrs()["hx-vals"].(string)
	if !ok {
		return b
	}
	var vals map[string]any
	if err := json.Unmarshal([]byte(raw), &vals); err != nil {
		return b
	}
	for k, v := range vals {
		if s, ok := v.(string); ok {
			b.form.Add(k, s)
			continue
		}
		data, _ := json.Marshal(v)
		b.form.Add(k, string(data))
	}
	return b
}

// WithHeader sets a request header.
func (b *TestRequestBuilder) WithHeader(key, value string) *TestRequestBuilder {
	b.headers.Set(key, value)
	return b
}

// WithContext sets the request context.
func (b *TestRequestBuilder) WithContext(ctx context.Context) *TestRequestBuilder {
	b.ctx = ctx
	return b
}

// WithoutHTMX drops the HX-Request header.
func (b *TestRequestBuilder) WithoutHTMX() *TestRequestBuilder {
	b.htmx = false
	return b
}

// Request returns the built request.
func (b *TestRequestBuilder) Request() *http.Request {
	body := strings.NewReader(b.form.Encode())
	req := httptest.NewRequest(b.method, b.url, body).WithContext(b.ctx)
	if len(b.form) > 0 {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if b.htmx {
		req.Header.Set("HX-Request", "true")
	}
	for k, vs := range b.headers {
		req.Header[k] = vs
	}
	return req
}

// Execute sends the request to comp.
func (b *TestRequestBuilder) Execute(comp HXComponent) *TestResult {
	return b.ServeWith(http.HandlerFunc(comp.HXServeHTTP))
}

// ServeWith sends the request through any handler, such as
// Registry.Handler or Registry.Middleware.
func (b *TestRequestBuilder) ServeWith(h http.Handler) *TestResult {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, b.Request())
	return recordResult(rec)
}

func recordResult(rec *httptest.ResponseRecorder) *TestResult {
	res := &TestResult{
		HTML:        rec.Body.String(),
		StatusCode:  rec.Code,
		Headers:     rec.Header(),
		Events:      parseTrigger(rec.Header().Get("HX-Trigger")),
		RedirectURL: rec.Header().Get("HX-Redirect"),
	}
	res.Flashes = parseFlashes(res.HTML)
	return res
}

// HTMLContains reports whether the body contains substr.
func (r *TestResult) HTMLContains(substr string) bool {
	return strings.Contains(r.HTML, substr)
}

// HTMLContainsAll reports whether the body contains every substring.
func (r *TestResult) HTMLContainsAll(substrs ...string) bool {
	for _, s := range substrs {
		if !strings.Contains(r.HTML, s) {
			return false
		}
	}
	return true
}

// HasEvent reports whether HX-Trigger named event.
func (r *TestResult) HasEvent(event string) bool {
	_, ok := r.Events[event]
	return ok
}

// EventNames returns the triggered events, sorted.
func (r *TestResult) EventNames() []string {
	names := make([]string, 0, len(r.Events))
	for name := range r.Events {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EventDetail returns the data sent with event, nil for bare events.
func (r *TestResult) EventDetail(event string) map[string]any {
	return r.Events[event]
}

// HasFlash reports whether a flash with level and message was rendered.
func (r *TestResult) HasFlash(level, message string) bool {
	for _, f := range r.Flashes {
		if f.Level == level && f.Message == message {
			return true
		}
	}
	return false
}

// HasFlashLevel reports whether any flash with level was rendered.
func (r *TestResult) HasFlashLevel(level string) bool {
	for _, f := range r.Flashes {
		if f.Level == level {
			return true
		}
	}
	return false
}

func (r *TestResult) IsOK() bool                  { return r.StatusCode == http.StatusOK }
func (r *TestResult) HasStatus(code int) bool     { return r.StatusCode == code }
func (r *TestResult) WasRedirected() bool         { return r.RedirectURL != "" }
func (r *TestResult) GetHeader(key string) string { return r.Headers.Get(key) }

// parseTrigger reads an HX-Trigger value: a JSON object of events to
// details, or a comma separated list of bare names.
func parseTrigger(header string) map[string]map[string]any {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}
	events := make(map[string]map[string]any)
	if strings.HasPrefix(header, "{") {
		var raw map[string]any
		if err := json.Unmarshal([]byte(header), &raw); err != nil {
			return nil
		}
		for name, v := range raw {
			detail, _ := v.(map[string]any)
			events[name] = detail
		}
		return events
	}
	for _, name := range strings.Split(header, ",") {
		if name = strings.TrimSpace(name); name != "" {
			events[name] = nil
		}
	}
	return events
}

// parseFlashes extracts toasts rendered by RenderFlashesOOB. Messages are
// returned unescaped.
func parseFlashes(body string) []Flash {
	const prefix = `<div class="toast toast-`
	var flashes []Flash
	for {
		start := strings.Index(body, prefix)
		if start < 0 {
			return flashes
		}
		body = body[start+len(prefix):]
		level, rest, ok := strings.Cut(body, `"`)
		if !ok {
			return flashes
		}
		_, rest, ok = strings.Cut(rest, ">")
		if !ok {
			return flashes
		}
		msg, rest, ok := strings.Cut(rest, "</div>")
		if !ok {
			return flashes
		}
		flashes = append(flashes, Flash{Level: level, Message: unescape(msg)})
		body = rest
	}
}

func unescape(s string) string {
	return strings.NewReplacer("&lt;", "<", "&gt;", ">", "&#34;", `"`, "&#39;", "'", "&amp;", "&").Replace(s)
}

// MockHydrater wraps a component with a custom Hydrate, e.g. to attach a
// widget backed by a fake searcher.
type MockHydrater[P any] struct {
	Component   TestableComponent[P]
	HydrateFunc func(ctx context.Context, props *P) error
	last        *P
}

// NewMockHydrater wraps comp.
func NewMockHydrater[P any](comp TestableComponent[P], hydrate func(ctx context.Context, props *P) error) *MockHydrater[P] {
	return &MockHydrater[P]{Component: comp, HydrateFunc: hydrate}
}

// Hydrate calls HydrateFunc.
func (m *MockHydrater[P]) Hydrate(ctx context.Context, props *P) error {
	m.last = props
	return m.HydrateFunc(ctx, props)
}

// Render delegates to the wrapped component.
func (m *MockHydrater[P]) Render(ctx context.Context, props P) templ.Component {
	return m.Component.Render(ctx, props)
}

// LastHydratedProps returns the props of the last Hydrate call.
func (m *MockHydrater[P]) LastHydratedProps() *P { return m.last }
