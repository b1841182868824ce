// Package widget implements the ajax select widget: the configuration
// payload, the Selection State and the search-as-you-type state machine.
//
// A Widget is bound to one payload and one Searcher. Searches may overlap;
// only the outcome of the most recently issued search is published; older
// responses are discarded when they arrive.
package widget

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pthm/hxselect/locale"
)

// Phase is the search state of a widget.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseTyping
	PhaseSearching
	PhaseResultsReady
	PhaseSearchFailed
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseTyping:
		return "typing"
	case PhaseSearching:
		return "searching"
	case PhaseResultsReady:
		return "results-ready"
	case PhaseSearchFailed:
		return "search-failed"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// EventKind identifies a widget notification.
type EventKind string

const (
	// EventChanged fires after the selection changed.
	EventChanged EventKind = "changed"
	// EventResults fires when a result list is published.
	EventResults EventKind = "results"
	// EventPhase fires on every phase transition.
	EventPhase EventKind = "phase"
)

// Event is delivered to subscribers.
type Event struct {
	Kind    EventKind
	Name    string
	Value   string
	Phase   Phase
	Results []Result
}

// Outcome describes what a Search call did.
type Outcome struct {
	Token   uint64
	Query   string
	Results []Result
	Phase   Phase

	// Skipped is set when the query was below minSearchChars and no
	// request was issued.
	Skipped bool

	// Stale is set when a newer search was issued before this one
	// completed; its results were discarded.
	Stale bool

	// Err is the search error, if any. It is informational: the widget
	// has already degraded to an empty result list.
	Err error
}

// Option configures a Widget.
type Option func(*Widget)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(w *Widget) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithSearchTimeout bounds every search and lookup call.
func WithSearchTimeout(d time.Duration) Option {
	return func(w *Widget) {
		w.timeout = d
	}
}

// WithCatalog sets the message catalog used to resolve the payload locale.
func WithCatalog(c *locale.Catalog) Option {
	return func(w *Widget) {
		if c != nil {
			w.catalog = c
		}
	}
}

// WithLookupConcurrency limits parallel detail lookups in Hydrate.
func WithLookupConcurrency(n int) Option {
	return func(w *Widget) {
		if n > 0 {
			w.lookupLimit = n
		}
	}
}

// Widget is a single mounted select widget.
type Widget struct {
	payload     Payload
	searcher    Searcher
	logger      *zap.Logger
	timeout     time.Duration
	catalog     *locale.Catalog
	loc         *locale.Localizer
	lookupLimit int

	mu      sync.Mutex
	sel     Selection
	query   string
	phase   Phase
	loading bool
	results []Result
	latest  uint64
	subs    []func(Event)
	closed  bool
}

// New mounts a widget: it validates the payload, seeds the selection from
// the initial value and installs the payload locale.
func New(p Payload, s Searcher, opts ...Option) (*Widget, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrSearchConfig
	}
	sel, err := SeedSelection(p.Mode(), p.InitialValue)
	if err != nil {
		return nil, err
	}

	w := &Widget{
		payload:     p,
		searcher:    s,
		logger:      zap.NewNop(),
		lookupLimit: 4,
		sel:         sel,
		phase:       PhaseIdle,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.catalog == nil {
		w.catalog = locale.Default()
	}
	w.loc = w.catalog.For(p.Locale)
	w.logger = w.logger.With(zap.String("widget", p.ID), zap.String("field", p.Name))
	return w, nil
}

// Payload returns the mount payload.
func (w *Widget) Payload() Payload { return w.payload }

// Localizer returns the installed display-language context.
func (w *Widget) Localizer() *locale.Localizer { return w.loc }

// Placeholder returns the input placeholder, localized when the payload
// does not set one.
func (w *Widget) Placeholder() string {
	if w.payload.Config.Placeholder != "" {
		return w.payload.Config.Placeholder
	}
	return w.loc.T(locale.MsgPlaceholder)
}

// Subscribe registers fn for widget events. Events are delivered
// synchronously on the goroutine that caused them, after internal locks
// are released.
func (w *Widget) Subscribe(fn func(Event)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.subs = append(w.subs, fn)
}

// Search runs one search cycle for query.
//
// Queries shorter than minSearchChars (after trimming) publish an empty
// list without a request. Otherwise the widget enters searching, calls the
// Searcher and publishes the outcome, unless a newer Search (or a
// selection) happened in the meantime.
func (w *Widget) Search(ctx context.Context, query string) Outcome {
	term := strings.TrimSpace(query)

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return Outcome{Query: term, Phase: PhaseClosed, Err: ErrClosed}
	}
	w.latest++
	token := w.latest
	w.query = query

	if term == "" || utf8.RuneCountInString(term) < w.payload.Config.MinSearchChars {
		phase := PhaseTyping
		if term == "" {
			phase = PhaseIdle
		}
		w.loading = false
		w.results = []Result{}
		events := w.transition(phase)
		events = append(events, w.event(EventResults))
		subs := w.subscribers()
		w.mu.Unlock()

		deliver(subs, events)
		return Outcome{Token: token, Query: term, Results: []Result{}, Phase: phase, Skipped: true}
	}

	w.loading = true
	events := w.transition(PhaseSearching)
	req := w.payload.Request()
	req.Query = term
	subs := w.subscribers()
	w.mu.Unlock()
	deliver(subs, events)

	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	results, err := w.searcher.Search(ctx, req)

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return Outcome{Token: token, Query: term, Phase: PhaseClosed, Stale: true, Err: ErrClosed}
	}
	if token != w.latest {
		phase := w.phase
		w.mu.Unlock()
		w.logger.Debug("discarding stale search response",
			zap.Uint64("token", token), zap.String("query", term))
		return Outcome{Token: token, Query: term, Phase: phase, Stale: true, Err: err}
	}

	w.loading = false
	var phase Phase
	if err != nil {
		w.results = []Result{}
		phase = PhaseSearchFailed
	} else {
		if results == nil {
			results = []Result{}
		}
		w.results = results
		phase = PhaseResultsReady
	}
	events = w.transition(phase)
	events = append(events, w.event(EventResults))
	published := w.copyResults()
	subs = w.subscribers()
	w.mu.Unlock()

	if err != nil {
		w.logger.Warn("search failed", zap.String("query", term), zap.Error(err))
	}
	deliver(subs, events)
	return Outcome{Token: token, Query: term, Results: published, Phase: phase, Err: err}
}

// Select applies a chosen result.
//
// Single mode replaces the selection and closes the result list. Multi mode
// appends (deduplicated by id) and clears the query. Either way a pending
// search is invalidated.
func (w *Widget) Select(r Result) (bool, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false, ErrClosed
	}
	changed := w.sel.Select(r)
	w.latest++
	w.loading = false
	w.results = nil
	if w.payload.Mode().Multiple {
		w.query = ""
	}
	events := w.transition(PhaseIdle)
	if changed {
		events = append(events, w.event(EventChanged))
	}
	subs := w.subscribers()
	w.mu.Unlock()

	deliver(subs, events)
	return changed, nil
}

// Clear empties the selection.
func (w *Widget) Clear() (bool, error) {
	return w.mutate(func(s *Selection) (bool, error) {
		return s.Clear(), nil
	})
}

// Remove drops a selected item by id (multi mode only).
func (w *Widget) Remove(id string) (bool, error) {
	if !w.payload.Mode().Multiple {
		return false, ErrNotMultiple
	}
	return w.mutate(func(s *Selection) (bool, error) {
		return s.Remove(id), nil
	})
}

// Reorder applies a user-chosen order (sortable multi mode only). An order
// that does not contain exactly the selected ids is rejected and the
// previous order is kept.
func (w *Widget) Reorder(ids []string) error {
	_, err := w.mutate(func(s *Selection) (bool, error) {
		before := strings.Join(s.IDs(), "\x00")
		if err := s.Reorder(ids); err != nil {
			return false, err
		}
		return strings.Join(s.IDs(), "\x00") != before, nil
	})
	return err
}

// Hydrate looks up details for selected items that only carry an id, as
// seeded from an id-only value. Lookups run concurrently; a failed lookup
// leaves the bare id in place.
func (w *Widget) Hydrate(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	var bare []string
	for _, r := range w.sel.Items() {
		if !r.HasDetail() {
			bare = append(bare, r.ID())
		}
	}
	req := w.payload.Request()
	w.mu.Unlock()

	if len(bare) == 0 {
		return nil
	}

	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	var g errgroup.Group
	g.SetLimit(w.lookupLimit)
	for _, id := range bare {
		g.Go(func() error {
			r, err := w.searcher.Lookup(ctx, req, id)
			if err != nil {
				w.logger.Warn("detail lookup failed", zap.String("id", id), zap.Error(err))
				return nil
			}
			if r.ID() != id {
				r = r.Clone()
				r["id"] = id
			}
			w.mu.Lock()
			w.sel.Replace(r)
			w.mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

// Close discards the widget state. Later calls return ErrClosed and
// in-flight searches are dropped.
func (w *Widget) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.phase = PhaseClosed
	w.loading = false
	w.results = nil
	w.subs = nil
}

// Selection returns a copy of the current Selection State.
func (w *Widget) Selection() Selection {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Selection{mode: w.sel.mode, items: w.sel.Items()}
}

// HiddenValue returns the serialized selection for the hidden form input.
func (w *Widget) HiddenValue() string {
	return w.Selection().String()
}

// Query returns the raw query of the latest search.
func (w *Widget) Query() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.query
}

// Phase returns the current phase.
func (w *Widget) Phase() Phase {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.phase
}

// Loading reports whether the latest search is still in flight.
func (w *Widget) Loading() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loading
}

// Results returns the published result list.
func (w *Widget) Results() []Result {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.copyResults()
}

func (w *Widget) mutate(fn func(*Selection) (bool, error)) (bool, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false, ErrClosed
	}
	changed, err := fn(&w.sel)
	if err != nil || !changed {
		w.mu.Unlock()
		return false, err
	}
	events := []Event{w.event(EventChanged)}
	subs := w.subscribers()
	w.mu.Unlock()

	deliver(subs, events)
	return true, nil
}

// transition must be called with mu held.
func (w *Widget) transition(to Phase) []Event {
	if w.phase == to {
		return nil
	}
	w.phase = to
	return []Event{{Kind: EventPhase, Name: w.payload.Name, Phase: to}}
}

// event must be called with mu held.
func (w *Widget) event(kind EventKind) Event {
	ev := Event{Kind: kind, Name: w.payload.Name, Phase: w.phase}
	switch kind {
	case EventChanged:
		ev.Value = w.sel.String()
	case EventResults:
		ev.Results = w.copyResults()
	}
	return ev
}

func (w *Widget) copyResults() []Result {
	if w.results == nil {
		return nil
	}
	out := make([]Result, len(w.results))
	copy(out, w.results)
	return out
}

func (w *Widget) subscribers() []func(Event) {
	if len(w.subs) == 0 {
		return nil
	}
	out := make([]func(Event), len(w.subs))
	copy(out, w.subs)
	return out
}

func deliver(subs []func(Event), events []Event) {
	for _, ev := range events {
		for _, fn := range subs {
			fn(ev)
		}
	}
}
