package widget

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Selection is the widget's selected value(s).
//
// In single mode it holds at most one item; in multi mode an ordered list
// unique by Result.ID. The submitted value is always derived from the items
// and the mode, never stored separately.
type Selection struct {
	mode  Mode
	items []Result
}

// NewSelection returns an empty selection for the given mode.
func NewSelection(mode Mode) Selection {
	return Selection{mode: mode}
}

// SeedSelection rebuilds a selection from a serialized value.
//
// Accepted shapes: null, a result object, a bare id (string or number), or
// in multi mode an array of either. A bare id seeds {"id": <id>}.
func SeedSelection(mode Mode, raw json.RawMessage) (Selection, error) {
	sel := NewSelection(mode)
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || isJSONNull(trimmed) {
		return sel, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return sel, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	if list, ok := v.([]any); ok {
		if !mode.Multiple && len(list) > 1 {
			return sel, fmt.Errorf("%w: %d values for a single-select field", ErrInvalidValue, len(list))
		}
		for _, item := range list {
			r, err := seedItem(item)
			if err != nil {
				return sel, err
			}
			sel.add(r)
		}
		return sel, nil
	}

	r, err := seedItem(v)
	if err != nil {
		return sel, err
	}
	sel.add(r)
	return sel, nil
}

func seedItem(v any) (Result, error) {
	switch t := v.(type) {
	case map[string]any:
		r := Result(t)
		if r.ID() == "" {
			return nil, fmt.Errorf("%w: item without id", ErrInvalidValue)
		}
		return r, nil
	case string, json.Number:
		if idString(t) == "" {
			return nil, fmt.Errorf("%w: empty id", ErrInvalidValue)
		}
		return Result{"id": t}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported item %T", ErrInvalidValue, v)
	}
}

// Mode returns the selection's mode.
func (s Selection) Mode() Mode { return s.mode }

// Len returns the number of selected items.
func (s Selection) Len() int { return len(s.items) }

// Items returns a copy of the selected items in order.
func (s Selection) Items() []Result {
	out := make([]Result, len(s.items))
	copy(out, s.items)
	return out
}

// IDs returns the selected ids in order.
func (s Selection) IDs() []string {
	ids := make([]string, len(s.items))
	for i, r := range s.items {
		ids[i] = r.ID()
	}
	return ids
}

// Contains reports whether id is selected.
func (s Selection) Contains(id string) bool {
	return s.index(id) >= 0
}

// Select applies a chosen result. Single mode replaces the selection; multi
// mode appends unless the id is already selected. It reports whether the
// selection changed.
func (s *Selection) Select(r Result) bool {
	if r == nil || r.ID() == "" {
		return false
	}
	// id-only mode keeps the full result for display; Value narrows it.
	item := r.Clone()
	if !s.mode.Multiple {
		if len(s.items) == 1 && s.items[0].ID() == item.ID() && equalResult(s.items[0], item) {
			return false
		}
		s.items = []Result{item}
		return true
	}
	return s.add(item)
}

// Clear empties the selection.
func (s *Selection) Clear() bool {
	if len(s.items) == 0 {
		return false
	}
	s.items = nil
	return true
}

// Remove drops the item with the given id, keeping the relative order of
// the rest. It reports whether an item was removed.
func (s *Selection) Remove(id string) bool {
	i := s.index(id)
	if i < 0 {
		return false
	}
	items := make([]Result, 0, len(s.items)-1)
	items = append(items, s.items[:i]...)
	items = append(items, s.items[i+1:]...)
	s.items = items
	return true
}

// Reorder applies a new order. ids must contain exactly the selected ids;
// otherwise ErrInvalidOrder is returned and the order is unchanged.
func (s *Selection) Reorder(ids []string) error {
	if !s.mode.Multiple || !s.mode.Sortable {
		return ErrNotSortable
	}
	if len(ids) != len(s.items) {
		return fmt.Errorf("%w: got %d ids, have %d", ErrInvalidOrder, len(ids), len(s.items))
	}

	byID := make(map[string]Result, len(s.items))
	for _, r := range s.items {
		byID[r.ID()] = r
	}
	reordered := make([]Result, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		r, ok := byID[id]
		if !ok {
			return fmt.Errorf("%w: unknown id %q", ErrInvalidOrder, id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidOrder, id)
		}
		seen[id] = struct{}{}
		reordered = append(reordered, r)
	}
	s.items = reordered
	return nil
}

// Replace swaps the item with the same id for r, used when details for an
// id-only item have been looked up.
func (s *Selection) Replace(r Result) bool {
	i := s.index(r.ID())
	if i < 0 {
		return false
	}
	s.items[i] = r
	return true
}

// Value returns the submitted value: an object, an id, or nil in single
// mode; a list of objects or ids in multi mode.
func (s Selection) Value() any {
	if !s.mode.Multiple {
		if len(s.items) == 0 {
			return nil
		}
		return s.valueOf(s.items[0])
	}
	out := make([]any, len(s.items))
	for i, r := range s.items {
		out[i] = s.valueOf(r)
	}
	return out
}

// MarshalJSON implements json.Marshaler by serializing Value.
func (s Selection) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Value())
}

// String returns the JSON value, as written into the hidden input.
func (s Selection) String() string {
	data, err := s.MarshalJSON()
	if err != nil {
		return ""
	}
	return string(data)
}

func (s Selection) valueOf(r Result) any {
	if s.mode.IDOnly {
		return r["id"]
	}
	return map[string]any(r)
}

func (s *Selection) add(r Result) bool {
	if s.index(r.ID()) >= 0 {
		return false
	}
	if !s.mode.Multiple {
		s.items = []Result{r}
		return true
	}
	s.items = append(s.items, r)
	return true
}

func (s Selection) index(id string) int {
	for i, r := range s.items {
		if r.ID() == id {
			return i
		}
	}
	return -1
}

func equalResult(a, b Result) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if fmt.Sprint(b[k]) != fmt.Sprint(v) {
			return false
		}
	}
	return true
}
