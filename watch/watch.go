// Package watch mounts callbacks onto elements of an HTML document.
//
// A Watcher owns one goquery document. Each Watch call registers a CSS
// selector and a callback; every element matching the selector is passed
// to the callback exactly once, whether it was present at the first scan
// or inserted by a later Mutate. Processed elements are tracked by the
// watcher; the document itself is never annotated.
package watch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// Sentinel errors.
var (
	ErrInvalidSelector = errors.New("watch: invalid selector")
	ErrClosed          = errors.New("watch: watcher closed")
)

// maxPasses bounds the rescans triggered by callbacks that insert new
// matching elements themselves.
const maxPasses = 8

// Disposer releases whatever a callback set up for an element.
type Disposer func()

// Callback is invoked once per matching element. It may return a Disposer,
// which runs when the element is disposed or the watcher is closed.
type Callback func(ctx context.Context, el *goquery.Selection) (Disposer, error)

// Mutation changes the watched document.
type Mutation func(doc *goquery.Document)

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithID names the watcher in log output. A random id is used otherwise.
func WithID(id string) Option {
	return func(w *Watcher) {
		if id != "" {
			w.id = id
		}
	}
}

// WithErrorHandler receives scan errors that happen during Observe.
func WithErrorHandler(fn func(error)) Option {
	return func(w *Watcher) {
		w.onError = fn
	}
}

type listener struct {
	selector string
	matcher  cascadia.Selector
	fn       Callback
}

type mountKey struct {
	listener int
	node     *html.Node
}

// Watcher mounts callbacks onto matching elements of one document.
type Watcher struct {
	id      string
	logger  *zap.Logger
	onError func(error)

	// scan serializes scans; callbacks run while it is held, so they must
	// not call Watch, Mutate or Close on the same watcher.
	scan sync.Mutex

	mu        sync.Mutex
	doc       *goquery.Document
	listeners []listener
	processed map[mountKey]Disposer
	closed    bool
}

// New creates a watcher for doc.
func New(doc *goquery.Document, opts ...Option) *Watcher {
	w := &Watcher{
		id:        uuid.NewString(),
		logger:    zap.NewNop(),
		doc:       doc,
		processed: make(map[mountKey]Disposer),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(zap.String("watcher", w.id))
	if w.onError == nil {
		w.onError = func(err error) {
			w.logger.Error("mount failed", zap.Error(err))
		}
	}
	return w
}

// Document returns the watched document.
func (w *Watcher) Document() *goquery.Document {
	return w.doc
}

// Watch registers fn for elements matching selector and scans the document
// right away. The returned error joins every callback failure of that scan.
func (w *Watcher) Watch(ctx context.Context, selector string, fn Callback) error {
	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidSelector, selector, err)
	}
	if fn == nil {
		return fmt.Errorf("watch: nil callback for %q", selector)
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	w.listeners = append(w.listeners, listener{selector: selector, matcher: matcher, fn: fn})
	w.mu.Unlock()

	return w.Scan(ctx)
}

// Scan mounts every unprocessed matching element. Listeners are visited in
// registration order and elements in document order. An element whose
// callback failed is still marked as processed.
func (w *Watcher) Scan(ctx context.Context) error {
	w.scan.Lock()
	defer w.scan.Unlock()

	var errs []error
	for pass := 0; pass < maxPasses; pass++ {
		mounted, err := w.pass(ctx)
		if err != nil {
			errs = append(errs, err)
		}
		if mounted == 0 || ctx.Err() != nil {
			break
		}
	}
	return errors.Join(errs...)
}

func (w *Watcher) pass(ctx context.Context) (int, error) {
	type pending struct {
		key mountKey
		el  *goquery.Selection
		l   listener
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return 0, ErrClosed
	}
	var work []pending
	for i, l := range w.listeners {
		w.doc.FindMatcher(l.matcher).Each(func(_ int, s *goquery.Selection) {
			key := mountKey{listener: i, node: s.Get(0)}
			if _, done := w.processed[key]; done {
				return
			}
			w.processed[key] = nil
			work = append(work, pending{key: key, el: s, l: l})
		})
	}
	w.mu.Unlock()

	var errs []error
	for _, p := range work {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		dispose, err := p.l.fn(ctx, p.el)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.l.selector, err))
		}
		if dispose != nil {
			w.mu.Lock()
			if _, ok := w.processed[p.key]; ok && !w.closed {
				w.processed[p.key] = dispose
				dispose = nil
			}
			w.mu.Unlock()
			if dispose != nil {
				dispose()
			}
		}
	}
	if len(work) > 0 {
		w.logger.Debug("scan mounted elements", zap.Int("count", len(work)))
	}
	return len(work), errors.Join(errs...)
}

// Mutate applies m to the document and mounts any new matching elements.
func (w *Watcher) Mutate(ctx context.Context, m Mutation) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	w.mu.Unlock()

	w.scan.Lock()
	m(w.doc)
	w.scan.Unlock()
	return w.Scan(ctx)
}

// Observe applies mutations from ch until it is closed or ctx is done.
// Scan errors go to the error handler. A nil channel means there is no
// mutation source: only the elements found so far stay mounted.
func (w *Watcher) Observe(ctx context.Context, ch <-chan Mutation) error {
	if ch == nil {
		w.logger.Debug("no mutation source, later insertions are not observed")
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			if err := w.Mutate(ctx, m); err != nil {
				if errors.Is(err, ErrClosed) {
					return err
				}
				w.onError(err)
			}
		}
	}
}

// Mounted reports whether el has been processed by any listener.
func (w *Watcher) Mounted(el *goquery.Selection) bool {
	if el == nil || el.Length() == 0 {
		return false
	}
	node := el.Get(0)
	w.mu.Lock()
	defer w.mu.Unlock()
	for key := range w.processed {
		if key.node == node {
			return true
		}
	}
	return false
}

// Len returns the number of processed element/listener pairs.
func (w *Watcher) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.processed)
}

// Dispose runs the disposers registered for el and forgets it, so a later
// scan may mount it again.
func (w *Watcher) Dispose(el *goquery.Selection) {
	if el == nil {
		return
	}
	var disposers []Disposer
	w.mu.Lock()
	for _, node := range el.Nodes {
		for key, d := range w.processed {
			if key.node != node {
				continue
			}
			delete(w.processed, key)
			if d != nil {
				disposers = append(disposers, d)
			}
		}
	}
	w.mu.Unlock()

	for _, d := range disposers {
		d()
	}
}

// Close disposes every mounted element and stops further scans.
func (w *Watcher) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	processed := w.processed
	w.processed = make(map[mountKey]Disposer)
	w.listeners = nil
	w.mu.Unlock()

	for _, d := range processed {
		if d != nil {
			d()
		}
	}
}
