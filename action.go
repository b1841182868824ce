package hxselect

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/a-h/templ"
)

// ActionBuilder configures a registered action.
//
//	c.Action("select", c.handleSelect)                    // POST
//	c.Action("search", c.handleSearch).Method("GET")
type ActionBuilder struct {
	action *actionDef
}

// Method overrides the default POST method for an action.
func (ab *ActionBuilder) Method(m string) *ActionBuilder {
	ab.action.method = m
	return ab
}

// Action is a fluent builder for the htmx attributes of one request.
//
//	c.Call("select", props).Target("closest .hxselect").Attrs()
type Action struct {
	path    string
	method  string
	encoded string

	target    string
	swap      SwapMode
	trigger   string
	sync      string
	indicator string
	vals      map[string]any
}

// NewAction creates an action for url with the given HTTP method. An empty
// method means GET.
func NewAction(url, method string) *Action {
	return &Action{path: url, method: method, swap: SwapOuter}
}

func newWiredAction(path, method, encoded string) *Action {
	a := NewAction(path, method)
	a.encoded = encoded
	return a
}

// URL returns the request URL, including encoded props for GET actions.
func (a *Action) URL() string {
	if a.encoded != "" && (a.method == "" || a.method == http.MethodGet) {
		return a.path + "?p=" + a.encoded
	}
	return a.path
}

// Target sets hx-target to a CSS selector.
func (a *Action) Target(selector string) *Action { a.target = selector; return a }

// TargetClosest targets the closest ancestor matching selector.
func (a *Action) TargetClosest(selector string) *Action { return a.Target("closest " + selector) }

// TargetNext targets the next sibling matching selector.
func (a *Action) TargetNext(selector string) *Action { return a.Target("next " + selector) }

// Swap sets the swap strategy.
func (a *Action) Swap(mode SwapMode) *Action { a.swap = mode; return a }

// Trigger sets a raw hx-trigger specification.
func (a *Action) Trigger(spec string) *Action { a.trigger = spec; return a }

// OnInput fires on input changes, debounced by delay, and on the search
// event of type="search" inputs.
func (a *Action) OnInput(delay time.Duration) *Action {
	return a.Trigger("input changed delay:" + formatDuration(delay) + ", search")
}

// Sync sets hx-sync, e.g. "this:replace" to abort in-flight requests.
func (a *Action) Sync(spec string) *Action { a.sync = spec; return a }

// Indicator sets the element shown while the request is in flight.
func (a *Action) Indicator(selector string) *Action { a.indicator = selector; return a }

// Vals adds extra parameters sent with the request.
func (a *Action) Vals(vals map[string]any) *Action {
	if a.vals == nil {
		a.vals = make(map[string]any, len(vals))
	}
	for k, v := range vals {
		a.vals[k] = v
	}
	return a
}

// Attrs returns the htmx attributes for use in templates.
func (a *Action) Attrs() templ.Attributes {
	attrs := WireAttrs(a.path, a.method, a.encoded)

	if len(a.vals) > 0 {
		vals := make(map[string]any, len(a.vals)+1)
		if existing, ok := attrs["hx-vals"].(string); ok {
			_ = json.Unmarshal([]byte(existing), &vals)
		}
		for k, v := range a.vals {
			vals[k] = v
		}
		data, _ := json.Marshal(vals)
		attrs["hx-vals"] = string(data)
	}
	if a.target != "" {
		attrs["hx-target"] = a.target
	}
	if a.swap != "" {
		attrs["hx-swap"] = string(a.swap)
	}
	if a.trigger != "" {
		attrs["hx-trigger"] = a.trigger
	}
	if a.sync != "" {
		attrs["hx-sync"] = a.sync
	}
	if a.indicator != "" {
		attrs["hx-indicator"] = a.indicator
	}
	return attrs
}

// WireAttrs builds the request attributes for a component action. GET
// actions carry the encoded props in the URL; other methods send them in
// hx-vals so long encrypted props stay out of the URL.
func WireAttrs(path, method, encoded string) templ.Attributes {
	attrs := templ.Attributes{}

	if method == http.MethodGet || method == "" {
		url := path
		if encoded != "" {
			url = path + "?p=" + encoded
		}
		attrs["hx-get"] = url
		return attrs
	}

	switch method {
	case http.MethodPost:
		attrs["hx-post"] = path
	case http.MethodPut:
		attrs["hx-put"] = path
	case http.MethodPatch:
		attrs["hx-patch"] = path
	case http.MethodDelete:
		attrs["hx-delete"] = path
	}
	if encoded != "" {
		data, _ := json.Marshal(map[string]string{"p": encoded})
		attrs["hx-vals"] = string(data)
	}
	return attrs
}

// formatDuration renders d in htmx timing syntax: whole seconds when d is
// at least a second, milliseconds otherwise.
func formatDuration(d time.Duration) string {
	if d >= time.Second {
		return fmt.Sprintf("%ds", int(d/time.Second))
	}
	return fmt.Sprintf("%dms", d.Milliseconds())
}
