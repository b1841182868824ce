package hxselect

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/a-h/templ"
	"github.com/google/uuid"

	"github.com/pthm/hxselect/search"
	"github.com/pthm/hxselect/widget"
)

// FieldOption configures a Field.
type FieldOption func(*Field)

// Field builds the mount payload and placeholder markup for one select
// form field.
//
//	f := hxselect.NewField("Page",
//	    hxselect.WithEndpoint("/api/pages"),
//	    hxselect.Multiple(),
//	    hxselect.WithDisplayFields(widget.DisplayField{Key: "title", Label: "Title"}),
//	)
//	@f.Placeholder(reg)
type Field struct {
	name     string
	id       string
	endpoint string
	callback search.Func
	minChars *int
	value    any
	hasValue bool
	lang     string
	config   widget.Config
}

// NewField creates a field named name.
func NewField(name string, opts ...FieldOption) *Field {
	f := &Field{name: name}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// WithID sets the placeholder id. A random id is used otherwise.
func WithID(id string) FieldOption {
	return func(f *Field) { f.id = id }
}

// WithEndpoint sets the search endpoint URL. It wins over a callback.
func WithEndpoint(url string) FieldOption {
	return func(f *Field) { f.endpoint = url }
}

// WithSearchCallback serves fn on a registry-local search route.
func WithSearchCallback(fn search.Func) FieldOption {
	return func(f *Field) { f.callback = fn }
}

// WithMinSearchChars sets how many characters start a search. Zero
// searches on every non-empty query.
func WithMinSearchChars(n int) FieldOption {
	return func(f *Field) { f.minChars = &n }
}

// WithPlaceholder sets the search input placeholder.
func WithPlaceholder(text string) FieldOption {
	return func(f *Field) { f.config.Placeholder = text }
}

// WithGetVars adds query parameters to every search request.
func WithGetVars(vars map[string]string) FieldOption {
	return func(f *Field) { f.config.GetVars = widget.StringMap(vars) }
}

// WithSearchHeaders adds headers to every search request.
func WithSearchHeaders(headers map[string]string) FieldOption {
	return func(f *Field) { f.config.Headers = widget.StringMap(headers) }
}

// Multiple turns the field into a multi-select.
func Multiple() FieldOption {
	return func(f *Field) { f.config.Multiple = true }
}

// WithDisplayFields sets the result keys shown, in order.
func WithDisplayFields(fields ...widget.DisplayField) FieldOption {
	return func(f *Field) { f.config.DisplayFields = fields }
}

// Sortable lets users reorder a multi-select.
func Sortable() FieldOption {
	return func(f *Field) { f.config.IsSortable = true }
}

// IDOnly submits ids instead of whole result objects.
func IDOnly() FieldOption {
	return func(f *Field) { f.config.IDOnly = true }
}

// WithLocale sets the display language, e.g. "de".
func WithLocale(lang string) FieldOption {
	return func(f *Field) { f.lang = lang }
}

// WithValue sets the initial value: a result object, a bare id, or a slice
// of either for multi-selects. It is marshalled to JSON.
func WithValue(v any) FieldOption {
	return func(f *Field) {
		f.value = v
		f.hasValue = true
	}
}

// Name returns the form field name.
func (f *Field) Name() string { return f.name }

// Payload resolves the mount payload. The endpoint is used when set;
// otherwise the callback is registered on reg. Without either it fails
// with ErrSearchConfig.
func (f *Field) Payload(reg *Registry) (widget.Payload, error) {
	p := widget.Payload{
		ID:     f.id,
		Name:   f.name,
		Locale: f.lang,
		Config: f.config,
	}
	if p.ID == "" {
		p.ID = "hxselect-" + uuid.NewString()
	}
	p.Config.MinSearchChars = widget.DefaultMinSearchChars
	if f.minChars != nil {
		p.Config.MinSearchChars = *f.minChars
	}

	switch {
	case f.endpoint != "":
		p.Config.SearchEndpoint = f.endpoint
	case f.callback != nil:
		key := f.id
		if key == "" {
			key = f.name
		}
		p.Config.SearchEndpoint = reg.HandleSearch(key, f.callback)
	default:
		return p, ErrSearchConfig
	}

	if f.hasValue && f.value != nil {
		data, err := json.Marshal(f.value)
		if err != nil {
			return p, fmt.Errorf("%w: %v", widget.ErrInvalidValue, err)
		}
		p.InitialValue = data
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// Placeholder renders the mount placeholder: a div carrying the payload in
// data-payload and a hidden input with the initial value, so forms still
// submit it when the widget never mounts.
func (f *Field) Placeholder(reg *Registry) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p, err := f.Payload(reg)
		if err != nil {
			return err
		}
		data, err := p.Encode()
		if err != nil {
			return err
		}
		sel, err := widget.SeedSelection(p.Mode(), p.InitialValue)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w,
			`<div id="%s" class="%s" data-payload='%s'><input type="hidden" name="%s" value="%s"></div>`,
			esc(p.ID), PlaceholderClass, esc(data), esc(p.Name), esc(sel.String()))
		return err
	})
}

// Render renders the mounted widget directly, without a placeholder or
// middleware.
func (f *Field) Render(reg *Registry) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p, err := f.Payload(reg)
		if err != nil {
			return err
		}
		return reg.Select().Mount(ctx, p).Render(ctx, w)
	})
}

// Defer renders placeholder and loads the widget once the page has loaded.
func (f *Field) Defer(reg *Registry, placeholder templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p, err := f.Payload(reg)
		if err != nil {
			return err
		}
		return reg.Select().Defer(SelectProps{Payload: p}, placeholder).Render(ctx, w)
	})
}
