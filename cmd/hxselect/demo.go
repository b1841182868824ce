package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/pthm/hxselect"
	hxselectecho "github.com/pthm/hxselect/adapters/echo"
	"github.com/pthm/hxselect/internal/catalog"
	"github.com/pthm/hxselect/widget"
)

const htmxScript = `<script src="https://unpkg.com/htmx.org@2.0.4"></script>`

const demoStyle = `<style>
.hxselect{max-width:28rem;margin-bottom:1rem}
.hxselect-results button{display:block;width:100%;text-align:left}
.hxselect-selected{font-weight:bold}
.hxselect-field-id{color:#888;margin-right:.5rem}
.htmx-indicator{display:none}.htmx-request .htmx-indicator{display:inline}
</style>`

type demo struct {
	reg *hxselect.Registry
	cat *catalog.Catalog
	app *app
}

func (d *demo) fields(page, related json.RawMessage) []*hxselect.Field {
	common := []hxselect.FieldOption{
		hxselect.WithLocale(d.app.cfg.Locale),
		hxselect.WithMinSearchChars(d.app.cfg.Search.MinChars),
	}
	if d.app.cfg.Search.Endpoint != "" {
		common = append(common, hxselect.WithEndpoint(d.app.cfg.Search.Endpoint))
	} else {
		common = append(common, hxselect.WithSearchCallback(d.cat.Func()))
	}

	pageOpts := append([]hxselect.FieldOption{hxselect.WithID("Form_Page"), hxselect.IDOnly()}, common...)
	if page != nil {
		pageOpts = append(pageOpts, hxselect.WithValue(page))
	}
	relatedOpts := append([]hxselect.FieldOption{
		hxselect.WithID("Form_Related"),
		hxselect.Multiple(),
		hxselect.Sortable(),
		hxselect.WithDisplayFields(
			widget.DisplayField{Key: "title", Label: "Title"},
			widget.DisplayField{Key: "urlSegment", Label: "URL"},
		),
	}, common...)
	if related != nil {
		relatedOpts = append(relatedOpts, hxselect.WithValue(related))
	}

	return []*hxselect.Field{
		hxselect.NewField("Page", pageOpts...),
		hxselect.NewField("Related", relatedOpts...),
	}
}

func (d *demo) show(c echo.Context) error {
	return hxselectecho.Render(c, d.page(d.fields(json.RawMessage("1"), nil), nil))
}

func (d *demo) submit(c echo.Context) error {
	page, related := formValue(c, "Page"), formValue(c, "Related")
	submitted := map[string]string{
		"Page":    string(page),
		"Related": string(related),
	}
	return hxselectecho.Render(c, d.page(d.fields(page, related), submitted))
}

// formValue returns the submitted JSON, or nil when it is missing or not JSON.
func formValue(c echo.Context, name string) json.RawMessage {
	v := c.FormValue(name)
	if v == "" || !json.Valid([]byte(v)) {
		return nil
	}
	return json.RawMessage(v)
}

func (d *demo) page(fields []*hxselect.Field, submitted map[string]string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, "<!DOCTYPE html><html><head><meta charset=\"utf-8\"><title>hxselect</title>"+
			htmxScript+demoStyle+"</head><body><h1>hxselect</h1>"); err != nil {
			return err
		}
		if submitted != nil {
			if _, err := io.WriteString(w, "<dl class=\"submitted\">"); err != nil {
				return err
			}
			for _, name := range []string{"Page", "Related"} {
				if _, err := fmt.Fprintf(w, "<dt>%s</dt><dd><code>%s</code></dd>",
					templ.EscapeString(name), templ.EscapeString(submitted[name])); err != nil {
					return err
				}
			}
			if _, err := io.WriteString(w, "</dl>"); err != nil {
				return err
			}
		}

		if _, err := fmt.Fprintf(w, `<form method="%s" action="/">`, http.MethodPost); err != nil {
			return err
		}
		for _, f := range fields {
			if _, err := fmt.Fprintf(w, "<label>%s</label>", templ.EscapeString(f.Name())); err != nil {
				return err
			}
			if err := f.Placeholder(d.reg).Render(ctx, w); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `<button type="submit">Save</button></form></body></html>`)
		return err
	})
}
