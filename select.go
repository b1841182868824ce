package hxselect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"go.uber.org/zap"

	"github.com/pthm/hxselect/locale"
	"github.com/pthm/hxselect/widget"
)

const (
	// PlaceholderClass marks the element a field renders for the mounter.
	PlaceholderClass = "hxselect-placeholder"
	// PlaceholderSelector matches placeholders.
	PlaceholderSelector = "." + PlaceholderClass

	// EventChanged is triggered on the client after every selection
	// change. Its detail carries the field name and the new hidden value.
	EventChanged = "hxselect:changed"
)

// SelectProps is the state a select widget carries between requests.
type SelectProps struct {
	Payload widget.Payload `msgpack:"p"`

	// Items is the JSON array of selected results. It keeps display
	// details across requests, also in id-only mode where the hidden value
	// holds bare ids.
	Items string `msgpack:"s,omitempty"`

	// Pick is the JSON result a result button selects.
	Pick string `msgpack:"k,omitempty"`

	w       *widget.Widget
	outcome *widget.Outcome
}

// Widget returns the hydrated widget. It is nil before Hydrate.
func (p SelectProps) Widget() *widget.Widget { return p.w }

// Select is the ajax select component. One instance per registry serves
// every mounted widget; per-widget state travels in SelectProps.
type Select struct {
	*Component[SelectProps]
	reg *Registry
}

// NewSelect creates the select component and adds it to reg. Most callers
// want reg.Select instead.
func NewSelect(reg *Registry) *Select {
	s := &Select{
		Component: New[SelectProps]("select").Sensitive(),
		reg:       reg,
	}
	s.Action("search", s.handleSearch).Method(http.MethodGet)
	s.Action("select", s.handleSelect)
	s.Action("remove", s.handleRemove)
	s.Action("reorder", s.handleReorder)
	s.Action("clear", s.handleClear)
	reg.Add(s)
	return s
}

// HXServeHTTP implements HXComponent.
func (s *Select) HXServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Serve(w, r, s)
}

// Hydrate builds the widget for this request from the payload and the
// carried selection, then looks up details for bare ids.
func (s *Select) Hydrate(ctx context.Context, props *SelectProps) error {
	p := props.Payload
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %w", widget.ErrInvalidPayload, err)
	}
	if props.Items != "" {
		p.InitialValue = json.RawMessage(props.Items)
	}
	w, err := widget.New(p, s.reg.Searcher(p), s.reg.WidgetOptions()...)
	if err != nil {
		return err
	}
	w.Subscribe(func(ev widget.Event) {
		if ev.Kind == widget.EventPhase {
			s.Logger().Debug("widget phase",
				zap.String("widget", p.ID), zap.String("phase", ev.Phase.String()))
		}
	})
	if err := w.Hydrate(ctx); err != nil {
		return err
	}
	props.w = w
	return nil
}

// Render draws the whole widget, or only the result list after a search.
func (s *Select) Render(ctx context.Context, props SelectProps) templ.Component {
	if props.outcome != nil {
		return resultsView(s, props)
	}
	return selectView(s, props)
}

// Mount renders the widget for a payload. The looked-up selection is carried
// in the rendered props so later actions skip the lookups. Hydration errors
// are returned from the component's Render.
func (s *Select) Mount(ctx context.Context, p widget.Payload) templ.Component {
	props := SelectProps{Payload: p}
	if err := s.Hydrate(ctx, &props); err != nil {
		return templ.ComponentFunc(func(context.Context, io.Writer) error {
			return fmt.Errorf("%w: %w", ErrHydrationFailed, err)
		})
	}
	return s.Render(ctx, s.commit(props))
}

func (s *Select) handleSearch(ctx context.Context, props SelectProps, r *http.Request) Result[SelectProps] {
	out := props.w.Search(ctx, r.FormValue("query"))
	props.outcome = &out
	return OK(props)
}

func (s *Select) handleSelect(ctx context.Context, props SelectProps, r *http.Request) Result[SelectProps] {
	picked, err := widget.DecodeResult([]byte(props.Pick))
	if err != nil {
		return Err(props, fmt.Errorf("%w: %v", widget.ErrInvalidValue, err))
	}
	changed, err := props.w.Select(picked)
	if err != nil {
		return Err(props, err)
	}
	return s.changed(props, changed)
}

func (s *Select) handleRemove(ctx context.Context, props SelectProps, r *http.Request) Result[SelectProps] {
	changed, err := props.w.Remove(r.FormValue("id"))
	if err != nil {
		return Err(props, err)
	}
	return s.changed(props, changed)
}

func (s *Select) handleReorder(ctx context.Context, props SelectProps, r *http.Request) Result[SelectProps] {
	order, err := orderFrom(r)
	if err != nil {
		return Err(props, err)
	}
	before := props.w.Selection().String()
	if err := props.w.Reorder(order); err != nil {
		if errors.Is(err, widget.ErrInvalidOrder) {
			s.Logger().Warn("rejected reorder", zap.Strings("order", order), zap.Error(err))
			return OK(s.commit(props)).Flash(FlashWarning, props.w.Localizer().T(locale.MsgInvalidOrder))
		}
		return Err(props, err)
	}
	return s.changed(props, props.w.Selection().String() != before)
}

func (s *Select) handleClear(ctx context.Context, props SelectProps, r *http.Request) Result[SelectProps] {
	changed, err := props.w.Clear()
	if err != nil {
		return Err(props, err)
	}
	return s.changed(props, changed)
}

// commit writes the widget's selection back into props.
func (s *Select) commit(props SelectProps) SelectProps {
	props.Pick = ""
	data, err := json.Marshal(props.w.Selection().Items())
	if err != nil {
		s.Logger().Error("encode selection", zap.Error(err))
		return props
	}
	props.Items = string(data)
	return props
}

func (s *Select) changed(props SelectProps, changed bool) Result[SelectProps] {
	props = s.commit(props)
	res := OK(props)
	if changed {
		res = res.Trigger(EventChanged, map[string]any{
			"name":  props.Payload.Name,
			"value": props.w.HiddenValue(),
		})
	}
	return res
}

// orderFrom reads the requested order: repeated "order" values, or a
// single value holding a JSON array as sent by the move buttons.
func orderFrom(r *http.Request) ([]string, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("%w: %v", widget.ErrInvalidValue, err)
	}
	values := r.Form["order"]
	if len(values) == 1 && strings.HasPrefix(strings.TrimSpace(values[0]), "[") {
		var ids []string
		if err := json.Unmarshal([]byte(values[0]), &ids); err != nil {
			return nil, fmt.Errorf("%w: %v", widget.ErrInvalidValue, err)
		}
		return ids, nil
	}
	return values, nil
}
