// Package locale provides the widget's display strings.
//
// Messages are embedded YAML files under lang/, one per language, loaded
// into a go-i18n bundle. Asking for a language the bundle does not have
// falls back to English.
package locale

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Message ids.
const (
	MsgPlaceholder    = "placeholder"
	MsgSearching      = "searching"
	MsgNoResults      = "no_results"
	MsgSearchFailed   = "search_failed"
	MsgMinChars       = "min_chars"
	MsgRemove         = "remove"
	MsgEmptySelection = "empty_selection"
	MsgMoveUp         = "move_up"
	MsgMoveDown       = "move_down"
	MsgInvalidOrder   = "invalid_order"
)

//go:embed lang/*.yaml
var langFiles embed.FS

// Catalog holds the loaded message bundle.
type Catalog struct {
	bundle  *i18n.Bundle
	matcher language.Matcher
	tags    []language.Tag
}

var defaultCatalog = sync.OnceValue(func() *Catalog {
	c, err := NewCatalog()
	if err != nil {
		panic(fmt.Sprintf("locale: embedded messages: %v", err))
	}
	return c
})

// Default returns the catalog built from the embedded message files.
func Default() *Catalog {
	return defaultCatalog()
}

// For returns a localizer from the default catalog.
func For(lang string) *Localizer {
	return Default().For(lang)
}

// NewCatalog loads the embedded message files.
func NewCatalog() (*Catalog, error) {
	return NewCatalogFS(langFiles, "lang")
}

// NewCatalogFS loads every *.yaml file in dir of fsys. File names carry the
// language tag, e.g. "de.yaml". English must be present; it is the
// fallback language.
func NewCatalogFS(fsys fs.FS, dir string) (*Catalog, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	hasEnglish := false
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".yaml" {
			continue
		}
		p := path.Join(dir, e.Name())
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, err
		}
		mf, err := bundle.ParseMessageFileBytes(data, p)
		if err != nil {
			return nil, fmt.Errorf("locale: %s: %w", p, err)
		}
		if mf.Tag == language.English && len(mf.Messages) > 0 {
			hasEnglish = true
		}
	}
	if !hasEnglish {
		return nil, fmt.Errorf("locale: no English messages in %s", dir)
	}

	// English first so it is the matcher's fallback.
	ordered := []language.Tag{language.English}
	for _, t := range bundle.LanguageTags() {
		if t != language.English {
			ordered = append(ordered, t)
		}
	}

	return &Catalog{
		bundle:  bundle,
		matcher: language.NewMatcher(ordered),
		tags:    ordered,
	}, nil
}

// Languages returns the available languages, English first.
func (c *Catalog) Languages() []string {
	out := make([]string, len(c.tags))
	for i, t := range c.tags {
		out[i] = t.String()
	}
	return out
}

// For returns the localizer for lang, a two-letter code such as "de".
// Unknown, malformed or empty codes fall back to English.
func (c *Catalog) For(lang string) *Localizer {
	tag := language.English
	if lang != "" {
		if requested, err := language.Parse(lang); err == nil {
			_, idx, conf := c.matcher.Match(requested)
			if conf != language.No {
				tag = c.tags[idx]
			}
		}
	}
	return &Localizer{
		tag: tag,
		loc: i18n.NewLocalizer(c.bundle, tag.String()),
	}
}

// Localizer resolves messages for one language.
type Localizer struct {
	tag language.Tag
	loc *i18n.Localizer
}

// Lang returns the resolved language code.
func (l *Localizer) Lang() string {
	base, _ := l.tag.Base()
	return base.String()
}

// T returns the message for id, or id itself when it is unknown.
func (l *Localizer) T(id string) string {
	s, err := l.loc.Localize(&i18n.LocalizeConfig{MessageID: id})
	if err != nil {
		return id
	}
	return s
}

// MinChars returns the "type at least n characters" hint.
func (l *Localizer) MinChars(n int) string {
	s, err := l.loc.Localize(&i18n.LocalizeConfig{
		MessageID:    MsgMinChars,
		TemplateData: map[string]any{"Count": n},
		PluralCount:  n,
	})
	if err != nil {
		return fmt.Sprintf("%s (%d)", MsgMinChars, n)
	}
	return s
}
