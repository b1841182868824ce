package widget

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	single      = Mode{}
	multi       = Mode{Multiple: true}
	sortable    = Mode{Multiple: true, Sortable: true}
	idOnly      = Mode{IDOnly: true}
	multiIDOnly = Mode{Multiple: true, IDOnly: true}
)

func TestSelectSingleReplaces(t *testing.T) {
	s := NewSelection(single)
	assert.True(t, s.Select(Result{"id": 1, "title": "A"}))
	assert.True(t, s.Select(Result{"id": 2, "title": "B"}))
	assert.Equal(t, []string{"2"}, s.IDs())

	assert.False(t, s.Select(Result{"id": 2, "title": "B"}), "same item is not a change")
	assert.True(t, s.Select(Result{"id": 2, "title": "B2"}), "new details for the same id are")
}

func TestSelectMultiAppendsAndDedupes(t *testing.T) {
	s := NewSelection(multi)
	assert.True(t, s.Select(Result{"id": 1}))
	assert.True(t, s.Select(Result{"id": "2"}))
	assert.False(t, s.Select(Result{"id": "1"}), "1 and \"1\" are the same id")
	assert.Equal(t, []string{"1", "2"}, s.IDs())
}

func TestSelectIgnoresMissingID(t *testing.T) {
	s := NewSelection(multi)
	assert.False(t, s.Select(nil))
	assert.False(t, s.Select(Result{"title": "no id"}))
	assert.Zero(t, s.Len())
}

func TestSelectCopiesResult(t *testing.T) {
	s := NewSelection(single)
	r := Result{"id": 1, "title": "A"}
	s.Select(r)
	r["title"] = "changed"
	assert.Equal(t, "A", s.Items()[0].Title())
}

func TestRemoveKeepsOrder(t *testing.T) {
	s := NewSelection(multi)
	for _, id := range []string{"a", "b", "c", "d"} {
		s.Select(Result{"id": id})
	}
	assert.True(t, s.Remove("b"))
	assert.False(t, s.Remove("b"))
	assert.Equal(t, []string{"a", "c", "d"}, s.IDs())
}

func TestReorder(t *testing.T) {
	seed := func(t *testing.T, mode Mode) Selection {
		t.Helper()
		s, err := SeedSelection(mode, json.RawMessage(`[1,2,3]`))
		require.NoError(t, err)
		return s
	}

	t.Run("applies permutation", func(t *testing.T) {
		s := seed(t, sortable)
		require.NoError(t, s.Reorder([]string{"3", "1", "2"}))
		assert.Equal(t, []string{"3", "1", "2"}, s.IDs())
	})

	tests := []struct {
		name string
		ids  []string
	}{
		{name: "missing id", ids: []string{"1", "2"}},
		{name: "unknown id", ids: []string{"1", "2", "9"}},
		{name: "duplicate id", ids: []string{"1", "1", "2"}},
		{name: "extra id", ids: []string{"1", "2", "3", "4"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := seed(t, sortable)
			assert.ErrorIs(t, s.Reorder(tt.ids), ErrInvalidOrder)
			assert.Equal(t, []string{"1", "2", "3"}, s.IDs())
		})
	}

	t.Run("not sortable", func(t *testing.T) {
		s := seed(t, multi)
		assert.ErrorIs(t, s.Reorder([]string{"3", "2", "1"}), ErrNotSortable)
		assert.Equal(t, []string{"1", "2", "3"}, s.IDs())
	})
}

func TestValueSerialization(t *testing.T) {
	tests := []struct {
		name  string
		mode  Mode
		items []Result
		want  string
	}{
		{name: "empty single", mode: single, want: `null`},
		{name: "empty multi", mode: multi, want: `[]`},
		{name: "single object", mode: single, items: []Result{{"id": 1, "title": "A"}}, want: `{"id":1,"title":"A"}`},
		{name: "single id only", mode: idOnly, items: []Result{{"id": 1, "title": "A"}}, want: `1`},
		{name: "multi objects", mode: multi, items: []Result{{"id": 1}, {"id": "x"}}, want: `[{"id":1},{"id":"x"}]`},
		{name: "multi id only", mode: multiIDOnly, items: []Result{{"id": 1, "title": "A"}, {"id": "x"}}, want: `[1,"x"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSelection(tt.mode)
			for _, r := range tt.items {
				s.Select(r)
			}
			assert.JSONEq(t, tt.want, s.String())
		})
	}
}

func TestSeedRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		mode Mode
		raw  string
	}{
		{name: "single object", mode: single, raw: `{"id":7,"title":"Seven","extra":{"a":1}}`},
		{name: "single id", mode: idOnly, raw: `7`},
		{name: "multi objects", mode: multi, raw: `[{"id":1,"title":"A"},{"id":"b","title":"B"}]`},
		{name: "multi ids", mode: multiIDOnly, raw: `[3,1,"2"]`},
		{name: "null", mode: single, raw: `null`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := SeedSelection(tt.mode, json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.JSONEq(t, tt.raw, s.String())

			again, err := SeedSelection(tt.mode, json.RawMessage(s.String()))
			require.NoError(t, err)
			assert.Equal(t, s.IDs(), again.IDs())
		})
	}
}

func TestSeedShapes(t *testing.T) {
	s, err := SeedSelection(single, nil)
	require.NoError(t, err)
	assert.Zero(t, s.Len())

	s, err = SeedSelection(single, json.RawMessage(`"abc"`))
	require.NoError(t, err)
	assert.Equal(t, []string{"abc"}, s.IDs())
	assert.False(t, s.Items()[0].HasDetail())

	s, err = SeedSelection(single, json.RawMessage(`[5]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"5"}, s.IDs())

	s, err = SeedSelection(multi, json.RawMessage(`[1,1,2]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, s.IDs())
}

func TestSeedRejects(t *testing.T) {
	tests := []struct {
		name string
		mode Mode
		raw  string
	}{
		{name: "malformed", mode: single, raw: `{"id":`},
		{name: "object without id", mode: single, raw: `{"title":"A"}`},
		{name: "empty id", mode: single, raw: `""`},
		{name: "bool", mode: single, raw: `true`},
		{name: "list for single", mode: single, raw: `[1,2]`},
		{name: "nested list", mode: multi, raw: `[[1]]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SeedSelection(tt.mode, json.RawMessage(tt.raw))
			assert.ErrorIs(t, err, ErrInvalidValue)
		})
	}
}
