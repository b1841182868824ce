package widget

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Result is a single search hit as returned by a search endpoint.
//
// Results are opaque mappings. The widget relies only on "id" (for identity
// and deduplication) and "title" (for display); every other key is carried
// through untouched and can be shown via the payload's displayFields.
type Result map[string]any

// ID returns the canonical string form of the result's "id".
//
// Numeric ids decoded as json.Number keep their literal form, so 1 and "1"
// compare equal.
func (r Result) ID() string {
	return idString(r["id"])
}

// Title returns the display title, falling back to "name" and then the id.
func (r Result) Title() string {
	if s, ok := r["title"].(string); ok && s != "" {
		return s
	}
	if s, ok := r["name"].(string); ok && s != "" {
		return s
	}
	return r.ID()
}

// Field returns the display string for an arbitrary key.
func (r Result) Field(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// HasDetail reports whether the result carries more than a bare id.
func (r Result) HasDetail() bool {
	for k := range r {
		if k != "id" {
			return true
		}
	}
	return false
}

// Clone returns a shallow copy of the result.
func (r Result) Clone() Result {
	out := make(Result, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// DecodeResults decodes a JSON array of result objects. A JSON null decodes
// to an empty list.
func DecodeResults(data []byte) ([]Result, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(raw))
	for _, m := range raw {
		if m == nil {
			continue
		}
		out = append(out, Result(m))
	}
	return out, nil
}

// DecodeResult decodes a single JSON result object.
func DecodeResult(data []byte) (Result, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("%w: null result", ErrInvalidValue)
	}
	return Result(m), nil
}

func idString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(t)
	default:
		return fmt.Sprint(t)
	}
}
