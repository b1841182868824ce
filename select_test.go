package hxselect

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/pthm/hxselect/search"
	"github.com/pthm/hxselect/widget"
)

var pages = []widget.Result{
	{"id": 1, "title": "Home"},
	{"id": 2, "title": "About"},
	{"id": 3, "title": "About the team"},
	{"id": 4, "title": "Contact"},
}

// pageSearch matches titles containing the term and looks pages up by id.
func pageSearch(ctx context.Context, q search.Query) ([]widget.Result, error) {
	var out []widget.Result
	for _, p := range pages {
		switch {
		case q.IsLookup() && p.ID() == q.ID:
			return []widget.Result{p}, nil
		case !q.IsLookup() && strings.Contains(strings.ToLower(p.Title()), strings.ToLower(q.Term)):
			out = append(out, p)
		}
	}
	return out, nil
}

func newSelectFixture(t *testing.T, opts ...FieldOption) (*Registry, *Select, widget.Payload) {
	t.Helper()
	reg := NewRegistry(testKey())
	opts = append([]FieldOption{WithID("Form_Pages"), WithSearchCallback(pageSearch)}, opts...)
	p, err := NewField("Pages", opts...).Payload(reg)
	if err != nil {
		t.Fatalf("Payload() error = %v", err)
	}
	return reg, reg.Select(), p
}

func post(reg *Registry, a *Action) *TestResult {
	return NewTestRequest(http.MethodPost, a.URL()).WithVals(a).ServeWith(reg.Handler())
}

func mountHTML(t *testing.T, s *Select, p widget.Payload) string {
	t.Helper()
	var buf bytes.Buffer
	if err := s.Mount(context.Background(), p).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Mount() error = %v", err)
	}
	return buf.String()
}

func TestSelectMountRendersSelection(t *testing.T) {
	_, s, p := newSelectFixture(t, Multiple(), Sortable(),
		WithValue([]map[string]any{{"id": 1, "title": "Home"}, {"id": 2, "title": "About"}}))

	html := mountHTML(t, s, p)
	for _, want := range []string{
		`class="hxselect hxselect-multiple hxselect-sortable"`,
		`data-widget="Form_Pages"`,
		`<input type="hidden" name="Pages" value="[{&#34;id&#34;:1,&#34;title&#34;:&#34;Home&#34;},{&#34;id&#34;:2,&#34;title&#34;:&#34;About&#34;}]">`,
		`<li class="hxselect-item" data-id="1">`,
		`<li class="hxselect-item" data-id="2">`,
		`class="hxselect-move-down"`,
		`class="hxselect-move-up"`,
		`hx-trigger="input changed delay:300ms, search"`,
		`hx-sync="this:replace"`,
		`placeholder="Search"`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("mounted widget missing %s\n%s", want, html)
		}
	}
}

func TestSelectSearch(t *testing.T) {
	reg, s, p := newSelectFixture(t)
	props := SelectProps{Payload: p}
	searchURL := s.Call("search", props).URL()

	tests := []struct {
		name  string
		query string
		want  []string
		count int
	}{
		{"matches", "abo", []string{`data-id="2"`, `data-id="3"`, "About the team"}, 2},
		{"below min chars", "ab", []string{"Type at least 3 characters"}, 0},
		{"empty", "  ", nil, 0},
		{"no results", "zzz", []string{"No results"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewTestRequest(http.MethodGet, searchURL+"&query="+strings.ReplaceAll(tt.query, " ", "+")).
				ServeWith(reg.Handler())
			if !res.IsOK() {
				t.Fatalf("status = %d: %s", res.StatusCode, res.HTML)
			}
			for _, want := range tt.want {
				if !res.HTMLContains(want) {
					t.Errorf("results missing %q: %s", want, res.HTML)
				}
			}
			if got := strings.Count(res.HTML, `class="hxselect-result`); got != tt.count {
				t.Errorf("result buttons = %d, want %d", got, tt.count)
			}
			if strings.Contains(res.HTML, `class="hxselect"`) {
				t.Error("search should answer with the result list only")
			}
		})
	}
}

func TestSelectMountCarriesLookedUpItems(t *testing.T) {
	reg := NewRegistry(testKey())
	var lookups atomic.Int32
	counting := func(ctx context.Context, q search.Query) ([]widget.Result, error) {
		if q.IsLookup() {
			lookups.Add(1)
		}
		return pageSearch(ctx, q)
	}
	p, err := NewField("Pages", WithSearchCallback(counting), Multiple(), IDOnly(), WithValue([]int{1, 4})).Payload(reg)
	if err != nil {
		t.Fatal(err)
	}

	html := mountHTML(t, reg.Select(), p)
	if got := lookups.Load(); got != 2 {
		t.Fatalf("lookups while mounting = %d, want 2", got)
	}
	if !strings.Contains(html, "Contact") {
		t.Errorf("mounted widget lacks looked-up titles: %s", html)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}
	searchURL, ok := doc.Find("input.hxselect-input").Attr("hx-get")
	if !ok {
		t.Fatalf("search input has no hx-get: %s", html)
	}

	for range 3 {
		res := NewTestRequest(http.MethodGet, searchURL+"&query=abo").ServeWith(reg.Handler())
		if !res.IsOK() {
			t.Fatalf("status = %d: %s", res.StatusCode, res.HTML)
		}
	}
	if got := lookups.Load(); got != 2 {
		t.Errorf("lookups after searching = %d, want the 2 from mounting", got)
	}
}

func TestSelectSearchFailure(t *testing.T) {
	reg := NewRegistry(testKey())
	failing := func(ctx context.Context, q search.Query) ([]widget.Result, error) {
		return nil, errors.New("index offline")
	}
	p, err := NewField("Pages", WithSearchCallback(failing)).Payload(reg)
	if err != nil {
		t.Fatal(err)
	}

	url := reg.Select().Call("search", SelectProps{Payload: p}).URL() + "&query=home"
	res := NewTestRequest(http.MethodGet, url).ServeWith(reg.Handler())
	if !res.IsOK() || !res.HTMLContains("Search failed, please try again") {
		t.Errorf("search failure = %d %s", res.StatusCode, res.HTML)
	}
}

func TestSelectPickSingle(t *testing.T) {
	reg, s, p := newSelectFixture(t, WithValue(map[string]any{"id": 1, "title": "Home"}))

	props := SelectProps{Payload: p, Items: `[{"id":1,"title":"Home"}]`, Pick: `{"id":4,"title":"Contact"}`}
	res := post(reg, s.Call("select", props))
	if !res.IsOK() {
		t.Fatalf("status = %d: %s", res.StatusCode, res.HTML)
	}
	if !res.HTMLContains("Contact") || res.HTMLContains(">Home<") {
		t.Errorf("single select should replace the value: %s", res.HTML)
	}
	detail := res.EventDetail(EventChanged)
	if detail["name"] != "Pages" || detail["value"] != `{"id":4,"title":"Contact"}` {
		t.Errorf("changed detail = %v", detail)
	}
}

func TestSelectPickMultipleDedupes(t *testing.T) {
	reg, s, p := newSelectFixture(t, Multiple())

	props := SelectProps{Payload: p, Items: `[{"id":2,"title":"About"}]`, Pick: `{"id":3,"title":"About the team"}`}
	res := post(reg, s.Call("select", props))
	if got := res.EventDetail(EventChanged)["value"]; got != `[{"id":2,"title":"About"},{"id":3,"title":"About the team"}]` {
		t.Errorf("value after append = %v", got)
	}

	props.Pick = `{"id":2,"title":"About"}`
	res = post(reg, s.Call("select", props))
	if !res.IsOK() || res.HasEvent(EventChanged) {
		t.Errorf("selecting a present id should not change anything: %d %v", res.StatusCode, res.EventNames())
	}
}

func TestSelectPickInvalid(t *testing.T) {
	reg, s, p := newSelectFixture(t)
	res := post(reg, s.Call("select", SelectProps{Payload: p, Pick: "not json"}))
	if !res.HasStatus(http.StatusBadRequest) {
		t.Errorf("status = %d, want 400", res.StatusCode)
	}
}

func TestSelectRemove(t *testing.T) {
	reg, s, p := newSelectFixture(t, Multiple(), IDOnly())
	props := SelectProps{Payload: p, Items: `[{"id":1,"title":"Home"},{"id":2,"title":"About"},{"id":4,"title":"Contact"}]`}

	res := post(reg, s.Call("remove", props).Vals(map[string]any{"id": "2"}))
	if got := res.EventDetail(EventChanged)["value"]; got != "[1,4]" {
		t.Errorf("value after remove = %v, want [1,4]", got)
	}
	if res.HTMLContains(`data-id="2"`) {
		t.Error("removed item is still rendered")
	}

	sreg, single, sp := newSelectFixture(t)
	res = post(sreg, single.Call("remove", SelectProps{Payload: sp}).Vals(map[string]any{"id": "1"}))
	if !res.HasStatus(http.StatusBadRequest) {
		t.Errorf("remove on single select = %d, want 400", res.StatusCode)
	}
}

func TestSelectReorder(t *testing.T) {
	reg, s, p := newSelectFixture(t, Multiple(), Sortable(), IDOnly())
	props := SelectProps{Payload: p, Items: `[{"id":1,"title":"Home"},{"id":2,"title":"About"}]`}

	res := post(reg, s.Call("reorder", props).Vals(map[string]any{"order": `["2","1"]`}))
	if got := res.EventDetail(EventChanged)["value"]; got != "[2,1]" {
		t.Errorf("value after reorder = %v, want [2,1]", got)
	}

	res = post(reg, s.Call("reorder", props).Vals(map[string]any{"order": `["2","9"]`}))
	if !res.IsOK() || res.HasEvent(EventChanged) {
		t.Errorf("invalid order = %d %v", res.StatusCode, res.EventNames())
	}
	if !res.HasFlash(FlashWarning, "The new order could not be applied") {
		t.Errorf("flashes = %+v", res.Flashes)
	}
	if strings.Index(res.HTML, `data-id="1"`) > strings.Index(res.HTML, `data-id="2"`) {
		t.Error("rejected reorder should keep the previous order")
	}
}

func TestSelectReorderRepeatedValues(t *testing.T) {
	reg, s, p := newSelectFixture(t, Multiple(), Sortable(), IDOnly())
	a := s.Call("reorder", SelectProps{Payload: p, Items: `[{"id":1},{"id":2},{"id":3}]`})

	res := NewTestRequest(http.MethodPost, a.URL()).WithVals(a).
		WithFormValue("order", "3", "1", "2").
		ServeWith(reg.Handler())
	if got := res.EventDetail(EventChanged)["value"]; got != "[3,1,2]" {
		t.Errorf("value = %v, want [3,1,2]", got)
	}
}

func TestSelectReorderNotSortable(t *testing.T) {
	reg, s, p := newSelectFixture(t, Multiple())
	res := post(reg, s.Call("reorder", SelectProps{Payload: p, Items: `[{"id":1},{"id":2}]`}).
		Vals(map[string]any{"order": `["2","1"]`}))
	if !res.HasStatus(http.StatusBadRequest) {
		t.Errorf("status = %d, want 400", res.StatusCode)
	}
}

func TestSelectClear(t *testing.T) {
	reg, s, p := newSelectFixture(t)
	res := post(reg, s.Call("clear", SelectProps{Payload: p, Items: `[{"id":1,"title":"Home"}]`}))
	if got := res.EventDetail(EventChanged)["value"]; got != "null" {
		t.Errorf("value after clear = %v, want null", got)
	}
	if !res.HTMLContains("Nothing selected") {
		t.Errorf("cleared widget = %s", res.HTML)
	}
}

func TestSelectHydratesIDOnlyValues(t *testing.T) {
	_, s, p := newSelectFixture(t, Multiple(), IDOnly(), WithValue([]int{4, 1}))

	html := mountHTML(t, s, p)
	if !strings.Contains(html, ">Contact<") || !strings.Contains(html, ">Home<") {
		t.Errorf("id-only values should be looked up: %s", html)
	}
	if !strings.Contains(html, `value="[4,1]"`) {
		t.Errorf("hidden value should keep bare ids: %s", html)
	}
}

func TestSelectLocale(t *testing.T) {
	_, s, p := newSelectFixture(t, WithLocale("de"))
	html := mountHTML(t, s, p)
	if !strings.Contains(html, `placeholder="Suchen"`) || !strings.Contains(html, `lang="de"`) {
		t.Errorf("german widget = %s", html)
	}

	_, s, p = newSelectFixture(t, WithLocale("xx"), WithPlaceholder("Find a page"))
	html = mountHTML(t, s, p)
	if !strings.Contains(html, `placeholder="Find a page"`) || !strings.Contains(html, `lang="en"`) {
		t.Errorf("fallback widget = %s", html)
	}
}

func TestSelectRejectsMissingPayload(t *testing.T) {
	reg := NewRegistry(testKey())
	res := NewTestRequest(http.MethodGet, reg.Select().Prefix()+"/").ServeWith(reg.Handler())
	if !res.HasStatus(http.StatusBadRequest) {
		t.Errorf("status = %d, want 400", res.StatusCode)
	}
}
