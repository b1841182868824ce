package hxselect

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/pthm/hxselect/locale"
	"github.com/pthm/hxselect/widget"
)

// searchDelay debounces keystrokes in the search input.
const searchDelay = 300 * time.Millisecond

func esc(s string) string { return templ.EscapeString(s) }

// writeAttrs writes attrs in key order, each with a leading space.
func writeAttrs(sb *strings.Builder, attrs templ.Attributes) {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := attrs[k].(type) {
		case bool:
			if v {
				sb.WriteString(" " + esc(k))
			}
		default:
			fmt.Fprintf(sb, ` %s="%s"`, esc(k), esc(fmt.Sprint(v)))
		}
	}
}

func selectView(s *Select, props SelectProps) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		wd := props.w
		p := wd.Payload()
		mode := p.Mode()
		loc := wd.Localizer()

		class := "hxselect"
		if mode.Multiple {
			class += " hxselect-multiple"
		}
		if mode.Sortable {
			class += " hxselect-sortable"
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, `<div class="%s" data-widget="%s" data-name="%s" lang="%s">`,
			class, esc(p.ID), esc(p.Name), esc(loc.Lang()))
		fmt.Fprintf(&sb, `<input type="hidden" name="%s" value="%s">`, esc(p.Name), esc(wd.HiddenValue()))

		writeSelection(&sb, s, props, loc)

		sb.WriteString(`<div class="hxselect-search">`)
		sb.WriteString(`<input type="search" class="hxselect-input" name="query" autocomplete="off"`)
		fmt.Fprintf(&sb, ` placeholder="%s" value="%s"`, esc(wd.Placeholder()), esc(wd.Query()))
		writeAttrs(&sb, s.Call("search", props).
			OnInput(searchDelay).
			Sync("this:replace").
			TargetNext(".hxselect-results").
			Swap(SwapInner).
			Indicator("closest .hxselect").
			Attrs())
		sb.WriteString(`>`)
		fmt.Fprintf(&sb, `<div class="hxselect-results" role="listbox"></div>`)
		fmt.Fprintf(&sb, `<span class="hxselect-loading htmx-indicator">%s</span>`, esc(loc.T(locale.MsgSearching)))
		sb.WriteString(`</div></div>`)

		_, err := io.WriteString(w, sb.String())
		return err
	})
}

func writeSelection(sb *strings.Builder, s *Select, props SelectProps, loc *locale.Localizer) {
	p := props.w.Payload()
	mode := p.Mode()
	items := props.w.Selection().Items()

	if !mode.Multiple {
		sb.WriteString(`<div class="hxselect-value">`)
		if len(items) == 0 {
			fmt.Fprintf(sb, `<span class="hxselect-empty">%s</span>`, esc(loc.T(locale.MsgEmptySelection)))
		} else {
			writeFields(sb, p.Fields(), items[0])
			sb.WriteString(`<button type="button" class="hxselect-clear"`)
			fmt.Fprintf(sb, ` aria-label="%s"`, esc(loc.T(locale.MsgRemove)))
			writeAttrs(sb, s.Call("clear", props).TargetClosest(".hxselect").Attrs())
			sb.WriteString(`>&times;</button>`)
		}
		sb.WriteString(`</div>`)
		return
	}

	sb.WriteString(`<ul class="hxselect-selection">`)
	if len(items) == 0 {
		fmt.Fprintf(sb, `<li class="hxselect-empty">%s</li>`, esc(loc.T(locale.MsgEmptySelection)))
	}
	ids := props.w.Selection().IDs()
	for i, item := range items {
		fmt.Fprintf(sb, `<li class="hxselect-item" data-id="%s">`, esc(item.ID()))
		writeFields(sb, p.Fields(), item)
		if mode.Sortable {
			if i > 0 {
				writeMove(sb, s, props, swapped(ids, i, i-1), "hxselect-move-up", loc.T(locale.MsgMoveUp), "&uarr;")
			}
			if i < len(items)-1 {
				writeMove(sb, s, props, swapped(ids, i, i+1), "hxselect-move-down", loc.T(locale.MsgMoveDown), "&darr;")
			}
		}
		sb.WriteString(`<button type="button" class="hxselect-remove"`)
		fmt.Fprintf(sb, ` aria-label="%s"`, esc(loc.T(locale.MsgRemove)))
		writeAttrs(sb, s.Call("remove", props).
			Vals(map[string]any{"id": item.ID()}).
			TargetClosest(".hxselect").
			Attrs())
		sb.WriteString(`>&times;</button></li>`)
	}
	sb.WriteString(`</ul>`)
}

func writeMove(sb *strings.Builder, s *Select, props SelectProps, order []string, class, label, glyph string) {
	data, _ := json.Marshal(order)
	fmt.Fprintf(sb, `<button type="button" class="%s" aria-label="%s"`, class, esc(label))
	writeAttrs(sb, s.Call("reorder", props).
		Vals(map[string]any{"order": string(data)}).
		TargetClosest(".hxselect").
		Attrs())
	fmt.Fprintf(sb, `>%s</button>`, glyph)
}

func swapped(ids []string, i, j int) []string {
	out := append([]string(nil), ids...)
	out[i], out[j] = out[j], out[i]
	return out
}

func writeFields(sb *strings.Builder, fields widget.DisplayFields, r widget.Result) {
	for _, f := range fields {
		v := r.Field(f.Key)
		if f.Key == "title" {
			v = r.Title()
		}
		fmt.Fprintf(sb, `<span class="hxselect-field hxselect-field-%s" title="%s">%s</span>`,
			esc(f.Key), esc(f.Label), esc(v))
	}
}

// resultsView renders the list swapped into .hxselect-results after a
// search. Each hit is a button that posts the result to the select action.
func resultsView(s *Select, props SelectProps) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		out := props.outcome
		p := props.w.Payload()
		loc := props.w.Localizer()

		var sb strings.Builder
		switch {
		case out.Skipped && out.Query != "":
			fmt.Fprintf(&sb, `<div class="hxselect-hint">%s</div>`, esc(loc.MinChars(p.Config.MinSearchChars)))
		case out.Skipped:
		case out.Phase == widget.PhaseSearchFailed:
			fmt.Fprintf(&sb, `<div class="hxselect-error" role="alert">%s</div>`, esc(loc.T(locale.MsgSearchFailed)))
		case len(out.Results) == 0:
			fmt.Fprintf(&sb, `<div class="hxselect-none">%s</div>`, esc(loc.T(locale.MsgNoResults)))
		default:
			selected := props.w.Selection()
			for _, r := range out.Results {
				data, err := json.Marshal(r)
				if err != nil {
					return err
				}
				pick := props
				pick.Pick = string(data)
				pick.outcome = nil

				class := "hxselect-result"
				if selected.Contains(r.ID()) {
					class += " hxselect-selected"
				}
				fmt.Fprintf(&sb, `<button type="button" class="%s" role="option" data-id="%s"`, class, esc(r.ID()))
				writeAttrs(&sb, s.Call("select", pick).TargetClosest(".hxselect").Attrs())
				sb.WriteString(`>`)
				writeFields(&sb, p.Fields(), r)
				sb.WriteString(`</button>`)
			}
		}
		_, err := io.WriteString(w, sb.String())
		return err
	})
}
