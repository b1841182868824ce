package hxselect

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"testing"

	"github.com/a-h/templ"
)

// mockProps is a simple props type for testing
type mockProps struct {
	Name  string
	Count int
}

// mockComponent implements TestableComponent for testing
type mockComponent struct {
	hydrateErr  error
	renderErr   error
	lastProps   *mockProps
	renderCount int
}

func (m *mockComponent) Hydrate(ctx context.Context, props *mockProps) error {
	m.lastProps = props
	return m.hydrateErr
}

func (m *mockComponent) Render(ctx context.Context, props mockProps) templ.Component {
	m.renderCount++
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if m.renderErr != nil {
			return m.renderErr
		}
		_, err := io.WriteString(w, `<div class="mock">`+templ.EscapeString(props.Name)+`</div>`)
		return err
	})
}

// mockHXComponent implements HXComponent for testing
type mockHXComponent struct {
	prefix  string
	handler func(w http.ResponseWriter, r *http.Request)
	lastReq *http.Request
}

func (m *mockHXComponent) HXPrefix() string { return m.prefix }

func (m *mockHXComponent) HXServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.lastReq = r
	if m.handler != nil {
		m.handler(w, r)
	}
}

func TestTestRender(t *testing.T) {
	comp := &mockComponent{}
	result, err := TestRender(comp, mockProps{Name: "Page"})
	if err != nil {
		t.Fatalf("TestRender() error = %v", err)
	}
	if !result.IsOK() || !result.HTMLContains(`<div class="mock">Page</div>`) {
		t.Errorf("TestRender() = %+v", result)
	}
	if comp.lastProps == nil || comp.lastProps.Name != "Page" {
		t.Error("Hydrate was not called with the props")
	}
}

func TestTestRender_Errors(t *testing.T) {
	hydrateErr := errors.New("lookup failed")
	if _, err := TestRender(&mockComponent{hydrateErr: hydrateErr}, mockProps{}); !errors.Is(err, hydrateErr) {
		t.Errorf("TestRender() hydrate error = %v, want %v", err, hydrateErr)
	}

	renderErr := errors.New("render failed")
	comp := &mockComponent{renderErr: renderErr}
	if _, err := TestRender(comp, mockProps{}); !errors.Is(err, renderErr) {
		t.Errorf("TestRender() render error = %v, want %v", err, renderErr)
	}
	if comp.renderCount != 1 {
		t.Errorf("renderCount = %d, want 1", comp.renderCount)
	}
}

func TestTestRenderWithContext(t *testing.T) {
	type ctxKey struct{}
	var seen any
	mock := NewMockHydrater[mockProps](&mockComponent{}, func(ctx context.Context, props *mockProps) error {
		seen = ctx.Value(ctxKey{})
		return nil
	})

	ctx := context.WithValue(context.Background(), ctxKey{}, "editor")
	if _, err := TestRenderWithContext(ctx, mock, mockProps{}); err != nil {
		t.Fatalf("TestRenderWithContext() error = %v", err)
	}
	if seen != "editor" {
		t.Errorf("context value = %v, want editor", seen)
	}
}

func TestTestRequestBuilder(t *testing.T) {
	comp := &mockHXComponent{
		prefix: "/_c/select",
		handler: func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("HX-Trigger", `{"hxselect:changed":{"name":"Tags","value":"[\"1\",\"2\"]"}}`)
			_, _ = io.WriteString(w, `<div class="hxselect"></div>`+
				RenderFlashesOOB([]Flash{{Level: FlashWarning, Message: "Order & more"}}))
		},
	}

	result := NewTestRequest(http.MethodPost, "/_c/select/reorder").
		WithFormValue("order", "2", "1").
		WithHeader("HX-Target", "Form_Tags").
		Execute(comp)

	req := comp.lastReq
	if req.Header.Get("HX-Request") != "true" || req.Header.Get("HX-Target") != "Form_Tags" {
		t.Errorf("request headers = %v", req.Header)
	}
	if err := req.ParseForm(); err != nil {
		t.Fatal(err)
	}
	if got := req.PostForm["order"]; !reflect.DeepEqual(got, []string{"2", "1"}) {
		t.Errorf("order = %v, want [2 1]", got)
	}

	if !result.HasEvent(EventChanged) {
		t.Fatalf("events = %v", result.EventNames())
	}
	if got := result.EventDetail(EventChanged)["value"]; got != `["1","2"]` {
		t.Errorf("event value = %v", got)
	}
	if !result.HasFlash(FlashWarning, "Order & more") {
		t.Errorf("flashes = %+v", result.Flashes)
	}
}

func TestTestRequestBuilder_WithoutHTMX(t *testing.T) {
	comp := &mockHXComponent{prefix: "/_c/select"}
	NewTestRequest(http.MethodGet, "/_c/select/").WithoutHTMX().Execute(comp)
	if IsHTMX(comp.lastReq) {
		t.Error("WithoutHTMX() should drop HX-Request")
	}
}

func TestTestRequestBuilder_WithVals(t *testing.T) {
	comp := &mockHXComponent{prefix: "/_c/select"}
	a := newWiredAction("/_c/select/remove", http.MethodPost, "enc").Vals(map[string]any{"id": "7", "n": 3})

	NewTestRequest(http.MethodPost, a.URL()).WithVals(a).Execute(comp)

	if err := comp.lastReq.ParseForm(); err != nil {
		t.Fatal(err)
	}
	want := url.Values{"p": {"enc"}, "id": {"7"}, "n": {"3"}}
	if !reflect.DeepEqual(comp.lastReq.PostForm, want) {
		t.Errorf("form = %v, want %v", comp.lastReq.PostForm, want)
	}
}

func TestTestGetAndPost(t *testing.T) {
	comp := &mockHXComponent{
		prefix: "/_c/select",
		handler: func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				w.Header().Set("HX-Redirect", "/done")
				return
			}
			w.WriteHeader(http.StatusTeapot)
		},
	}

	if res := TestGet(comp, "/_c/select/"); !res.HasStatus(http.StatusTeapot) {
		t.Errorf("TestGet() status = %d", res.StatusCode)
	}
	res := TestPost(comp, "/_c/select/clear", url.Values{"p": {"x"}})
	if !res.WasRedirected() || res.RedirectURL != "/done" {
		t.Errorf("TestPost() redirect = %q", res.RedirectURL)
	}
}

func TestParseTrigger(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   map[string]map[string]any
	}{
		{"empty", "", nil},
		{"bare", "hxselect:changed", map[string]map[string]any{"hxselect:changed": nil}},
		{"list", "a, b", map[string]map[string]any{"a": nil, "b": nil}},
		{"json", `{"hxselect:changed":{"name":"Page"},"other":"x"}`, map[string]map[string]any{
			"hxselect:changed": {"name": "Page"},
			"other":            nil,
		}},
		{"broken json", `{"a":`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseTrigger(tt.header); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseTrigger(%q) = %v, want %v", tt.header, got, tt.want)
			}
		})
	}
}

func TestMockHydrater(t *testing.T) {
	inner := &mockComponent{}
	mock := NewMockHydrater[mockProps](inner, func(ctx context.Context, props *mockProps) error {
		props.Name = "hydrated"
		return nil
	})

	result, err := TestRender(mock, mockProps{Name: "raw"})
	if err != nil {
		t.Fatalf("TestRender() error = %v", err)
	}
	if !result.HTMLContains("hydrated") {
		t.Errorf("HTML = %s", result.HTML)
	}
	if mock.LastHydratedProps() == nil || mock.LastHydratedProps().Name != "hydrated" {
		t.Error("LastHydratedProps() should return the hydrated props")
	}
	if inner.lastProps != nil {
		t.Error("wrapped Hydrate should not run")
	}
}
