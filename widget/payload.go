package widget

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultMinSearchChars is used when a payload does not set minSearchChars.
const DefaultMinSearchChars = 3

// Payload is the configuration handed to a widget at mount time.
//
// The JSON shape matches what the field renders into the placeholder's
// data-payload attribute:
//
//	{"id": "...", "name": "...", "value": ..., "lang": "de", "config": {...}}
type Payload struct {
	ID           string          `json:"id" msgpack:"i"`
	Name         string          `json:"name" msgpack:"n"`
	InitialValue json.RawMessage `json:"value,omitempty" msgpack:"v,omitempty"`
	Locale       string          `json:"lang,omitempty" msgpack:"l,omitempty"`
	Config       Config          `json:"config" msgpack:"c"`
}

// Config holds the search and display settings of a payload.
type Config struct {
	MinSearchChars int           `json:"minSearchChars" msgpack:"m"`
	SearchEndpoint string        `json:"searchEndpoint" msgpack:"e"`
	Placeholder    string        `json:"placeholder,omitempty" msgpack:"p,omitempty"`
	GetVars        StringMap     `json:"getVars,omitempty" msgpack:"g,omitempty"`
	Headers        StringMap     `json:"headers,omitempty" msgpack:"h,omitempty"`
	DisplayFields  DisplayFields `json:"displayFields,omitempty" msgpack:"d,omitempty"`
	IsSortable     bool          `json:"isSortable,omitempty" msgpack:"s,omitempty"`
	IDOnly         bool          `json:"idOnlyMode,omitempty" msgpack:"o,omitempty"`
	Multiple       bool          `json:"multiple,omitempty" msgpack:"u,omitempty"`
}

// Mode is the set of flags that shape the Selection State.
type Mode struct {
	Multiple bool
	IDOnly   bool
	Sortable bool
}

// Mode derives the selection mode. Sorting only applies to multi-select.
func (p Payload) Mode() Mode {
	return Mode{
		Multiple: p.Config.Multiple,
		IDOnly:   p.Config.IDOnly,
		Sortable: p.Config.Multiple && p.Config.IsSortable,
	}
}

// Fields returns the display fields, defaulting to id and title.
func (p Payload) Fields() DisplayFields {
	if len(p.Config.DisplayFields) == 0 {
		return DisplayFields{{Key: "id", Label: "ID"}, {Key: "title", Label: "Title"}}
	}
	return p.Config.DisplayFields
}

// Validate checks the payload for integration errors.
func (p Payload) Validate() error {
	if strings.TrimSpace(p.Config.SearchEndpoint) == "" {
		return ErrSearchConfig
	}
	if p.Config.MinSearchChars < 0 {
		return fmt.Errorf("%w: minSearchChars must not be negative", ErrInvalidPayload)
	}
	return nil
}

// Request returns the search request template for this payload.
func (p Payload) Request() Request {
	return Request{
		Endpoint: p.Config.SearchEndpoint,
		GetVars:  p.Config.GetVars,
		Headers:  p.Config.Headers,
	}
}

// ParsePayload decodes and validates a mount payload.
//
// A missing minSearchChars key defaults to DefaultMinSearchChars; an
// explicit 0 is kept.
func ParsePayload(data []byte) (Payload, error) {
	var p Payload
	if len(bytes.TrimSpace(data)) == 0 {
		return p, fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}

	var probe struct {
		Config map[string]json.RawMessage `json:"config"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if probe.Config == nil {
		return p, fmt.Errorf("%w: missing config", ErrInvalidPayload)
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if _, ok := probe.Config["minSearchChars"]; !ok {
		p.Config.MinSearchChars = DefaultMinSearchChars
	}
	if isJSONNull(p.InitialValue) {
		p.InitialValue = nil
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// Encode returns the JSON form used for the data-payload attribute.
func (p Payload) Encode() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// StringMap is a string-to-string mapping that tolerates the shapes PHP's
// json_encode produces: null, an empty array, or an object with scalar
// values.
type StringMap map[string]string

// UnmarshalJSON implements json.Unmarshaler.
func (m *StringMap) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if isJSONNull(trimmed) || bytes.Equal(trimmed, []byte("[]")) {
		*m = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	out := make(StringMap, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = t
		case json.Number:
			out[k] = t.String()
		case bool:
			if t {
				out[k] = "1"
			} else {
				out[k] = "0"
			}
		default:
			return fmt.Errorf("value for %q must be a scalar", k)
		}
	}
	*m = out
	return nil
}

// DisplayField maps a result key to a human readable label.
type DisplayField struct {
	Key   string `msgpack:"k"`
	Label string `msgpack:"l"`
}

// DisplayFields is an ordered list of display fields. Its JSON form is an
// object; key order is preserved in both directions.
type DisplayFields []DisplayField

// MarshalJSON implements json.Marshaler.
func (d DisplayFields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Label)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *DisplayFields) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if isJSONNull(trimmed) || bytes.Equal(trimmed, []byte("[]")) {
		*d = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("displayFields must be an object")
	}

	var out DisplayFields
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("displayFields: unexpected key %v", keyTok)
		}
		var label string
		if err := dec.Decode(&label); err != nil {
			return fmt.Errorf("displayFields[%q]: %w", key, err)
		}
		out = append(out, DisplayField{Key: key, Label: label})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*d = out
	return nil
}

func isJSONNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}
