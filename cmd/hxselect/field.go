package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/pthm/hxselect"
	"github.com/pthm/hxselect/search"
	"github.com/pthm/hxselect/widget"
)

// fieldFlags describes a field on the command line.
type fieldFlags struct {
	name        string
	id          string
	endpoint    string
	value       string
	placeholder string
	fields      []string
	minChars    int
	multiple    bool
	sortable    bool
	idOnly      bool
}

func (ff *fieldFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&ff.name, "name", "Pages", "form field name")
	fs.StringVar(&ff.id, "id", "", "placeholder element id (generated when empty)")
	fs.StringVar(&ff.endpoint, "endpoint", "", "search endpoint (default: the built-in catalog)")
	fs.StringVar(&ff.value, "value", "", "initial value as JSON")
	fs.StringVar(&ff.placeholder, "placeholder", "", "search input placeholder")
	fs.StringSliceVar(&ff.fields, "fields", nil, "display fields as key=Label pairs")
	fs.IntVar(&ff.minChars, "min-chars", 0, "minimum query length before searching (default from config)")
	fs.BoolVar(&ff.multiple, "multiple", false, "allow several values")
	fs.BoolVar(&ff.sortable, "sortable", false, "allow reordering selected values")
	fs.BoolVar(&ff.idOnly, "id-only", false, "submit ids instead of whole results")
}

// field builds the field. Without an endpoint the field searches fn.
func (ff *fieldFlags) field(cmd *cobra.Command, a *app, fn search.Func) (*hxselect.Field, error) {
	opts := []hxselect.FieldOption{hxselect.WithLocale(a.cfg.Locale)}

	if ff.id != "" {
		opts = append(opts, hxselect.WithID(ff.id))
	}
	switch endpoint := firstNonEmpty(ff.endpoint, a.cfg.Search.Endpoint); {
	case endpoint != "":
		opts = append(opts, hxselect.WithEndpoint(endpoint))
	case fn != nil:
		opts = append(opts, hxselect.WithSearchCallback(fn))
	}

	minChars := a.cfg.Search.MinChars
	if cmd.Flags().Changed("min-chars") {
		minChars = ff.minChars
	}
	opts = append(opts, hxselect.WithMinSearchChars(minChars))

	if ff.value != "" {
		if !json.Valid([]byte(ff.value)) {
			return nil, fmt.Errorf("%w: --value is not valid JSON", widget.ErrInvalidValue)
		}
		opts = append(opts, hxselect.WithValue(json.RawMessage(ff.value)))
	}
	if ff.placeholder != "" {
		opts = append(opts, hxselect.WithPlaceholder(ff.placeholder))
	}
	if len(ff.fields) > 0 {
		dfs, err := parseDisplayFields(ff.fields)
		if err != nil {
			return nil, err
		}
		opts = append(opts, hxselect.WithDisplayFields(dfs...))
	}
	if ff.multiple {
		opts = append(opts, hxselect.Multiple())
	}
	if ff.sortable {
		opts = append(opts, hxselect.Sortable())
	}
	if ff.idOnly {
		opts = append(opts, hxselect.IDOnly())
	}
	return hxselect.NewField(ff.name, opts...), nil
}

func parseDisplayFields(pairs []string) ([]widget.DisplayField, error) {
	out := make([]widget.DisplayField, 0, len(pairs))
	for _, pair := range pairs {
		key, label, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("invalid display field %q", pair)
		}
		if !ok || label == "" {
			label = key
		}
		out = append(out, widget.DisplayField{Key: key, Label: label})
	}
	return out, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
