package hxselect

// Result is what an action handler returns. It tells Component.Serve how to
// answer: render the props, pass an error to OnError, redirect, or do
// nothing because the handler already wrote the response. Flashes, events
// and headers ride along.
//
//	return hxselect.OK(props).Trigger(EventChanged, map[string]any{"name": n, "value": v})
//	return hxselect.OK(props).Flash(hxselect.FlashWarning, msg)
//	return hxselect.Err(props, widget.ErrNotSortable)
type Result[P any] struct {
	props              P
	err                error
	redirect           string
	flashes            []Flash
	trigger            string
	triggerData        map[string]any
	triggerAfterSettle string
	headers            map[string]string
	status             int
	skip               bool
}

// OK renders the component with props.
func OK[P any](props P) Result[P] {
	return Result[P]{props: props}
}

// Err hands err to the registry's OnError handler.
func Err[P any](props P, err error) Result[P] {
	return Result[P]{props: props, err: err}
}

// Skip signals that the handler wrote its own response, headers included.
func Skip[P any]() Result[P] {
	return Result[P]{skip: true}
}

// Redirect answers with an HX-Redirect header.
func Redirect[P any](url string) Result[P] {
	return Result[P]{redirect: url}
}

// Flash appends a toast notification.
func (r Result[P]) Flash(level, message string) Result[P] {
	r.flashes = append(r.flashes, Flash{Level: level, Message: message})
	return r
}

// Trigger emits event through HX-Trigger. With data the header is JSON and
// listeners see the data as event detail.
func (r Result[P]) Trigger(event string, data ...map[string]any) Result[P] {
	r.trigger = event
	if len(data) > 0 {
		r.triggerData = data[0]
	}
	return r
}

// PushURL sets HX-Push-Url.
func (r Result[P]) PushURL(url string) Result[P] {
	return r.Header("HX-Push-Url", url)
}

// TriggerAfterSettle emits event through HX-Trigger-After-Settle, once the
// swapped content has settled.
func (r Result[P]) TriggerAfterSettle(event string) Result[P] {
	r.triggerAfterSettle = event
	return r
}

// Header sets a response header.
func (r Result[P]) Header(key, value string) Result[P] {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[key] = value
	return r
}

// Status sets the response status. Zero means 200.
func (r Result[P]) Status(code int) Result[P] {
	r.status = code
	return r
}

func (r Result[P]) GetProps() P                    { return r.props }
func (r Result[P]) GetErr() error                  { return r.err }
func (r Result[P]) GetRedirect() string            { return r.redirect }
func (r Result[P]) GetFlashes() []Flash            { return r.flashes }
func (r Result[P]) GetTrigger() string             { return r.trigger }
func (r Result[P]) GetTriggerData() map[string]any { return r.triggerData }
func (r Result[P]) GetTriggerAfterSettle() string  { return r.triggerAfterSettle }
func (r Result[P]) GetHeaders() map[string]string  { return r.headers }
func (r Result[P]) GetStatus() int                 { return r.status }
func (r Result[P]) ShouldSkip() bool               { return r.skip }
