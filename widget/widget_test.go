package widget

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSearcher answers from fixed maps. A query with a gate blocks until
// the gate is closed; entered receives the query once the call is in.
type fakeSearcher struct {
	mu      sync.Mutex
	results map[string][]Result
	details map[string]Result
	gates   map[string]chan struct{}
	entered chan string
	err     error
	calls   []string
}

func (f *fakeSearcher) Search(ctx context.Context, req Request) ([]Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.Query)
	gate := f.gates[req.Query]
	res, err := f.results[req.Query], f.err
	f.mu.Unlock()

	if f.entered != nil {
		f.entered <- req.Query
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return res, err
}

func (f *fakeSearcher) Lookup(ctx context.Context, req Request, id string) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.details[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return r, nil
}

func (f *fakeSearcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func testPayload(cfg Config, value string) Payload {
	if cfg.SearchEndpoint == "" {
		cfg.SearchEndpoint = "/search"
	}
	p := Payload{ID: "Form_Field", Name: "Field", Config: cfg}
	if value != "" {
		p.InitialValue = json.RawMessage(value)
	}
	return p
}

func newWidget(t *testing.T, cfg Config, value string, s Searcher, opts ...Option) *Widget {
	t.Helper()
	w, err := New(testPayload(cfg, value), s, opts...)
	require.NoError(t, err)
	return w
}

func TestNewValidates(t *testing.T) {
	_, err := New(Payload{Name: "x"}, &fakeSearcher{})
	assert.ErrorIs(t, err, ErrSearchConfig)

	_, err = New(testPayload(Config{}, ""), nil)
	assert.ErrorIs(t, err, ErrSearchConfig)

	_, err = New(testPayload(Config{}, `{"title":"no id"}`), &fakeSearcher{})
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestSearchBelowMinCharsSendsNoRequest(t *testing.T) {
	fs := &fakeSearcher{}
	w := newWidget(t, Config{MinSearchChars: 3}, "", fs)

	for _, q := range []string{"", "a", "ab", "  ab  "} {
		o := w.Search(context.Background(), q)
		assert.True(t, o.Skipped, q)
		assert.Empty(t, o.Results, q)
		assert.NotNil(t, o.Results, q)
	}
	assert.Empty(t, fs.Calls())
	assert.Equal(t, PhaseTyping, w.Phase())

	w.Search(context.Background(), "")
	assert.Equal(t, PhaseIdle, w.Phase())
}

func TestSearchCountsRunes(t *testing.T) {
	fs := &fakeSearcher{results: map[string][]Result{"äöü": {{"id": 1}}}}
	w := newWidget(t, Config{MinSearchChars: 3}, "", fs)

	o := w.Search(context.Background(), "äöü")
	assert.False(t, o.Skipped)
	assert.Equal(t, []string{"äöü"}, fs.Calls())
}

func TestSearchPublishesResults(t *testing.T) {
	fs := &fakeSearcher{results: map[string][]Result{
		"abc": {
			{"id": 1, "title": "abc one"},
			{"id": 2, "title": "abc two"},
			{"id": 3, "title": "abc three"},
		},
	}}
	w := newWidget(t, Config{MinSearchChars: 3}, "", fs)

	var events []Event
	w.Subscribe(func(ev Event) { events = append(events, ev) })

	o := w.Search(context.Background(), " abc ")
	require.NoError(t, o.Err)
	assert.Equal(t, "abc", o.Query)
	assert.Equal(t, PhaseResultsReady, o.Phase)
	require.Len(t, o.Results, 3)
	assert.Equal(t, []string{"abc one", "abc two", "abc three"},
		[]string{o.Results[0].Title(), o.Results[1].Title(), o.Results[2].Title()})

	assert.Equal(t, []string{"abc"}, fs.Calls(), "query is trimmed")
	assert.Equal(t, " abc ", w.Query())
	assert.False(t, w.Loading())
	assert.Len(t, w.Results(), 3)

	require.Len(t, events, 3)
	assert.Equal(t, Event{Kind: EventPhase, Name: "Field", Phase: PhaseSearching}, events[0])
	assert.Equal(t, Event{Kind: EventPhase, Name: "Field", Phase: PhaseResultsReady}, events[1])
	assert.Equal(t, EventResults, events[2].Kind)
	assert.Len(t, events[2].Results, 3)
}

func TestSearchNullResultsAreEmpty(t *testing.T) {
	w := newWidget(t, Config{MinSearchChars: 1}, "", &fakeSearcher{})
	o := w.Search(context.Background(), "x")
	assert.Equal(t, PhaseResultsReady, o.Phase)
	assert.NotNil(t, o.Results)
	assert.Empty(t, o.Results)
}

func TestSearchFailureDegradesToEmpty(t *testing.T) {
	fs := &fakeSearcher{err: errors.New("boom")}
	w := newWidget(t, Config{MinSearchChars: 1}, `{"id":1,"title":"kept"}`, fs)

	o := w.Search(context.Background(), "x")
	assert.Error(t, o.Err)
	assert.Equal(t, PhaseSearchFailed, o.Phase)
	assert.Empty(t, o.Results)
	assert.Equal(t, PhaseSearchFailed, w.Phase())
	assert.JSONEq(t, `{"id":1,"title":"kept"}`, w.HiddenValue(), "a failed search leaves the selection alone")
}

func TestSearchTimeout(t *testing.T) {
	fs := &fakeSearcher{gates: map[string]chan struct{}{"slow": make(chan struct{})}}
	w := newWidget(t, Config{MinSearchChars: 1}, "", fs, WithSearchTimeout(10*time.Millisecond))

	o := w.Search(context.Background(), "slow")
	assert.ErrorIs(t, o.Err, context.DeadlineExceeded)
	assert.Equal(t, PhaseSearchFailed, o.Phase)
}

func TestLatestSearchWins(t *testing.T) {
	slow := make(chan struct{})
	fs := &fakeSearcher{
		results: map[string][]Result{
			"abc":  {{"id": 1, "title": "old"}},
			"abcd": {{"id": 2, "title": "new"}},
		},
		gates:   map[string]chan struct{}{"abc": slow},
		entered: make(chan string, 2),
	}
	w := newWidget(t, Config{MinSearchChars: 3}, "", fs)

	first := make(chan Outcome, 1)
	go func() { first <- w.Search(context.Background(), "abc") }()
	require.Equal(t, "abc", <-fs.entered)

	second := w.Search(context.Background(), "abcd")
	<-fs.entered
	require.False(t, second.Stale)
	assert.Equal(t, "new", second.Results[0].Title())

	close(slow)
	o := <-first
	assert.True(t, o.Stale)
	assert.Empty(t, o.Results)

	require.Len(t, w.Results(), 1)
	assert.Equal(t, "new", w.Results()[0].Title(), "late response must not overwrite newer results")
	assert.Equal(t, PhaseResultsReady, w.Phase())
}

func TestSelectInvalidatesPendingSearch(t *testing.T) {
	slow := make(chan struct{})
	fs := &fakeSearcher{
		results: map[string][]Result{"abc": {{"id": 1}}},
		gates:   map[string]chan struct{}{"abc": slow},
		entered: make(chan string, 1),
	}
	w := newWidget(t, Config{MinSearchChars: 3}, "", fs)

	done := make(chan Outcome, 1)
	go func() { done <- w.Search(context.Background(), "abc") }()
	<-fs.entered

	changed, err := w.Select(Result{"id": 9, "title": "picked"})
	require.NoError(t, err)
	assert.True(t, changed)

	close(slow)
	assert.True(t, (<-done).Stale)
	assert.Nil(t, w.Results())
	assert.Equal(t, PhaseIdle, w.Phase())
}

func TestSingleSelectScenario(t *testing.T) {
	fs := &fakeSearcher{results: map[string][]Result{"abo": {{"id": 2, "title": "About"}}}}
	w := newWidget(t, Config{MinSearchChars: 3}, "", fs)
	assert.Equal(t, "null", w.HiddenValue())

	var changes []string
	w.Subscribe(func(ev Event) {
		if ev.Kind == EventChanged {
			changes = append(changes, ev.Value)
		}
	})

	o := w.Search(context.Background(), "abo")
	changed, err := w.Select(o.Results[0])
	require.NoError(t, err)
	assert.True(t, changed)
	assert.JSONEq(t, `{"id":2,"title":"About"}`, w.HiddenValue())
	assert.Equal(t, "abo", w.Query(), "single select keeps the query")
	assert.Nil(t, w.Results())

	changed, err = w.Select(Result{"id": 2, "title": "About"})
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = w.Clear()
	require.NoError(t, err)
	assert.Equal(t, "null", w.HiddenValue())
	require.Len(t, changes, 2)
	assert.Equal(t, "null", changes[1])
}

func TestMultiSelectScenario(t *testing.T) {
	fs := &fakeSearcher{results: map[string][]Result{
		"pag": {{"id": 1, "title": "Page one"}, {"id": 3, "title": "Page three"}},
	}}
	w := newWidget(t, Config{MinSearchChars: 3, Multiple: true, IsSortable: true},
		`[{"id":1,"title":"Page one"},{"id":2,"title":"Page two"}]`, fs)
	assert.Equal(t, []string{"1", "2"}, w.Selection().IDs())

	o := w.Search(context.Background(), "pag")
	changed, err := w.Select(o.Results[0])
	require.NoError(t, err)
	assert.False(t, changed, "already selected")

	changed, err = w.Select(o.Results[1])
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Empty(t, w.Query(), "multi select clears the query")
	assert.Equal(t, []string{"1", "2", "3"}, w.Selection().IDs())

	removed, err := w.Remove("1")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.JSONEq(t, `[{"id":2,"title":"Page two"},{"id":3,"title":"Page three"}]`, w.HiddenValue())

	require.NoError(t, w.Reorder([]string{"3", "2"}))
	assert.Equal(t, []string{"3", "2"}, w.Selection().IDs())

	assert.ErrorIs(t, w.Reorder([]string{"3"}), ErrInvalidOrder)
	assert.Equal(t, []string{"3", "2"}, w.Selection().IDs())
}

func TestRemoveNeedsMultiple(t *testing.T) {
	w := newWidget(t, Config{}, `1`, &fakeSearcher{})
	_, err := w.Remove("1")
	assert.ErrorIs(t, err, ErrNotMultiple)
}

func TestReorderWithoutChangeEmitsNothing(t *testing.T) {
	w := newWidget(t, Config{Multiple: true, IsSortable: true}, `[1,2]`, &fakeSearcher{})
	var n int
	w.Subscribe(func(Event) { n++ })

	require.NoError(t, w.Reorder([]string{"1", "2"}))
	assert.Zero(t, n)
}

func TestHydrateIDOnly(t *testing.T) {
	fs := &fakeSearcher{details: map[string]Result{
		"3": {"id": 3, "title": "About the team"},
		"4": {"id": "4", "title": "Contact"},
	}}
	w := newWidget(t, Config{Multiple: true, IDOnly: true}, `[3,4,99]`, fs)

	require.NoError(t, w.Hydrate(context.Background()))

	items := w.Selection().Items()
	require.Len(t, items, 3)
	assert.Equal(t, "About the team", items[0].Title())
	assert.Equal(t, "Contact", items[1].Title())
	assert.False(t, items[2].HasDetail(), "failed lookup keeps the bare id")
	assert.JSONEq(t, `[3,"4",99]`, w.HiddenValue())
}

func TestHydrateSkipsDetailedItems(t *testing.T) {
	fs := &fakeSearcher{}
	w := newWidget(t, Config{}, `{"id":1,"title":"A"}`, fs)
	require.NoError(t, w.Hydrate(context.Background()))
	assert.Equal(t, "A", w.Selection().Items()[0].Title())
}

func TestPlaceholderLocalized(t *testing.T) {
	w := newWidget(t, Config{}, "", &fakeSearcher{})
	assert.Equal(t, "Search", w.Placeholder())

	p := testPayload(Config{}, "")
	p.Locale = "de"
	w, err := New(p, &fakeSearcher{})
	require.NoError(t, err)
	assert.Equal(t, "Suchen", w.Placeholder())
	assert.Equal(t, "de", w.Localizer().Lang())

	w = newWidget(t, Config{Placeholder: "Find a page"}, "", &fakeSearcher{})
	assert.Equal(t, "Find a page", w.Placeholder())
}

func TestClose(t *testing.T) {
	w := newWidget(t, Config{MinSearchChars: 1}, "", &fakeSearcher{})
	w.Close()

	assert.Equal(t, PhaseClosed, w.Phase())
	assert.ErrorIs(t, w.Search(context.Background(), "abc").Err, ErrClosed)
	_, err := w.Select(Result{"id": 1})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, w.Hydrate(context.Background()), ErrClosed)
}
