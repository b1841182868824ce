// Package catalog serves a small YAML dataset through fuzzy title search.
// The CLI uses it as the search callback behind demo widgets.
package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"gopkg.in/yaml.v3"

	"github.com/pthm/hxselect/search"
	"github.com/pthm/hxselect/widget"
)

// DefaultLimit caps the number of results returned by Search.
const DefaultLimit = 20

// ErrInvalidCatalog is returned for datasets with missing or duplicate ids.
var ErrInvalidCatalog = errors.New("catalog: invalid dataset")

//go:embed pages.yaml
var pagesYAML []byte

// Catalog is an in-memory result set.
type Catalog struct {
	items  []widget.Result
	titles []string
	byID   map[string]widget.Result
	limit  int
}

// Default returns the built-in page catalog.
func Default() *Catalog {
	c, err := Parse(pagesYAML)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded dataset: %v", err))
	}
	return c
}

// Load reads a YAML dataset from path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return Parse(data)
}

// Parse reads a YAML list of objects. Every object needs a unique id.
func Parse(data []byte) (*Catalog, error) {
	var raw []map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	c := &Catalog{byID: make(map[string]widget.Result, len(raw)), limit: DefaultLimit}
	for i, m := range raw {
		r := widget.Result(m)
		id := r.ID()
		if id == "" {
			return nil, fmt.Errorf("%w: entry %d has no id", ErrInvalidCatalog, i)
		}
		if _, dup := c.byID[id]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidCatalog, id)
		}
		c.byID[id] = r
		c.items = append(c.items, r)
		c.titles = append(c.titles, r.Title())
	}
	return c, nil
}

// WithLimit returns a copy of c capped at n results. n <= 0 means no cap.
func (c *Catalog) WithLimit(n int) *Catalog {
	cp := *c
	cp.limit = n
	return &cp
}

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.items) }

// Search implements search.Func. Lookups match ids exactly; terms are
// fuzzy-matched against titles, best match first.
func (c *Catalog) Search(ctx context.Context, q search.Query) ([]widget.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if q.IsLookup() {
		if r, ok := c.byID[q.ID]; ok {
			return []widget.Result{r.Clone()}, nil
		}
		return nil, nil
	}

	ranks := fuzzy.RankFindFold(q.Term, c.titles)
	slices.SortStableFunc(ranks, func(a, b fuzzy.Rank) int {
		if a.Distance != b.Distance {
			return a.Distance - b.Distance
		}
		return a.OriginalIndex - b.OriginalIndex
	})

	out := make([]widget.Result, 0, len(ranks))
	for _, rank := range ranks {
		if c.limit > 0 && len(out) == c.limit {
			break
		}
		out = append(out, c.items[rank.OriginalIndex].Clone())
	}
	return out, nil
}

// Func returns Search as a search.Func.
func (c *Catalog) Func() search.Func { return c.Search }
