package portfolio

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func record(id, title, created string) ContentRecord {
	return ContentRecord{ID: id, Title: title, PrimaryKey: "collections/drawings/" + id + "/original", CreatedAt: day(created)}
}

func sequences(doc *Document) map[string]int {
	out := make(map[string]int, len(doc.Items))
	for _, item := range doc.Items {
		if item.Sequence != nil {
			out[item.ID] = *item.Sequence
		}
	}
	return out
}

func TestDecodeDocument(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		items   int
		corrupt bool
	}{
		{name: "empty object", data: `{}`, items: 0},
		{name: "null items", data: `{"items":null}`, items: 0},
		{name: "empty items", data: `{"items":[]}`, items: 0},
		{name: "two items", data: `{"items":[{"id":"a","created_at":"2024-01-01T00:00:00Z"},{"id":"b","created_at":"2024-01-02T00:00:00Z"}]}`, items: 2},
		{name: "unknown fields ignored", data: `{"items":[{"id":"a","created_at":"2024-01-01T00:00:00Z","colour":"red"}],"owner":"x"}`, items: 1},
		{name: "not json", data: `<html>`, corrupt: true},
		{name: "empty body", data: ``, corrupt: true},
		{name: "array body", data: `[{"id":"a"}]`, corrupt: true},
		{name: "items is object", data: `{"items":{"id":"a"}}`, corrupt: true},
		{name: "items is string", data: `{"items":"a"}`, corrupt: true},
		{name: "item without id", data: `{"items":[{"title":"x"}]}`, corrupt: true},
		{name: "duplicate ids", data: `{"items":[{"id":"a","created_at":"2024-01-01T00:00:00Z"},{"id":"a","created_at":"2024-01-01T00:00:00Z"}]}`, corrupt: true},
		{name: "item without created_at", data: `{"items":[{"id":"legacy","title":"Old"}]}`, corrupt: true},
		{name: "truncated", data: `{"items":[{"id":"a"}`, corrupt: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := DecodeDocument([]byte(tt.data), "v1")
			if tt.corrupt {
				assert.ErrorIs(t, err, ErrDecodeFailure)
				assert.Nil(t, doc)
				return
			}
			require.NoError(t, err)
			assert.Len(t, doc.Items, tt.items)
			assert.NotNil(t, doc.Items)
			assert.Equal(t, Version("v1"), doc.Version)
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	seq := 2
	doc := &Document{Items: []ContentRecord{
		{
			ID:           "a1",
			Title:        "Sketch 1",
			Description:  "charcoal on paper",
			PrimaryKey:   "collections/drawings/a1/sketch.jpg",
			ThumbnailKey: "collections/drawings/a1/thumb/sketch.jpg",
			ContentType:  "image/jpeg",
			CreatedAt:    day("2024-01-01"),
			UpdatedAt:    day("2024-01-02"),
			Sequence:     &seq,
			Metadata:     map[string]string{"year": "2024"},
		},
		{ID: "a2", Title: "Sketch 2", PrimaryKey: "collections/drawings/a2/x.png", CreatedAt: day("2024-01-03")},
	}}

	data, err := EncodeDocument(doc)
	require.NoError(t, err)

	decoded, err := DecodeDocument(data, "v2")
	require.NoError(t, err)
	if diff := cmp.Diff(doc.Items, decoded.Items); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	assert.NotContains(t, string(data), "v2")
}

func TestEncodeNilItems(t *testing.T) {
	data, err := EncodeDocument(&Document{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[]}`, string(data))
}

func TestAppend(t *testing.T) {
	doc := NewDocument()

	next, err := Append(doc, record("a1", "Sketch 1", "2024-01-01"))
	require.NoError(t, err)
	assert.Len(t, next.Items, 1)
	assert.Empty(t, doc.Items, "input document must not change")

	_, err = Append(next, record("a1", "Other", "2024-01-02"))
	assert.ErrorIs(t, err, ErrDuplicateID)

	_, err = Append(next, ContentRecord{Title: "no id", CreatedAt: day("2024-01-01")})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = Append(next, ContentRecord{ID: "a2"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAppendDoesNotAlias(t *testing.T) {
	rec := record("a1", "Sketch 1", "2024-01-01")
	rec.Metadata = map[string]string{"medium": "ink"}

	next, err := Append(NewDocument(), rec)
	require.NoError(t, err)
	rec.Metadata["medium"] = "oil"
	assert.Equal(t, "ink", next.Items[0].Metadata["medium"])
}

func TestRemoveIsIdempotent(t *testing.T) {
	doc := &Document{Items: []ContentRecord{
		record("a", "A", "2024-01-01"),
		record("b", "B", "2024-01-02"),
		record("c", "C", "2024-01-03"),
	}, Version: "v1"}

	once, removed := Remove(doc, "b")
	assert.True(t, removed)
	twice, removed := Remove(once, "b")
	assert.False(t, removed)

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("second remove changed the document (-once +twice):\n%s", diff)
	}
	assert.Equal(t, []string{"a", "c"}, []string{twice.Items[0].ID, twice.Items[1].ID})
	assert.Len(t, doc.Items, 3)
	assert.Equal(t, Version("v1"), twice.Version)
}

func TestReplaceKeepsImmutableFields(t *testing.T) {
	doc := &Document{Items: []ContentRecord{record("a", "A", "2024-01-01")}}

	next, err := Replace(doc, ContentRecord{ID: "a", Title: "Renamed", PrimaryKey: "k", CreatedAt: day("2030-01-01")})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", next.Items[0].Title)
	assert.Equal(t, day("2024-01-01"), next.Items[0].CreatedAt)
	assert.Equal(t, "A", doc.Items[0].Title)

	_, err = Replace(doc, ContentRecord{ID: "missing"})
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestRenumberByCreatedAt(t *testing.T) {
	doc := &Document{Items: []ContentRecord{
		record("march", "C", "2024-03-01"),
		record("jan", "A", "2024-01-01"),
		record("feb", "B", "2024-02-01"),
	}}

	next, err := Renumber(doc, SortByCreatedAt)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"jan": 1, "feb": 2, "march": 3}, sequences(next))
	assert.Equal(t, "jan", next.Items[0].ID)
	assert.Nil(t, doc.Items[0].Sequence)
}

func TestRenumberIsIdempotentAndStable(t *testing.T) {
	doc := &Document{Items: []ContentRecord{
		record("x", "Same", "2024-01-01"),
		record("y", "Same", "2024-01-01"),
		record("z", "Earlier", "2023-12-31"),
	}}

	for _, key := range []SortKey{SortByCreatedAt, SortByCreatedAtDesc, SortByTitle, SortBySequence} {
		t.Run(string(key), func(t *testing.T) {
			once, err := Renumber(doc, key)
			require.NoError(t, err)
			twice, err := Renumber(once, key)
			require.NoError(t, err)
			if diff := cmp.Diff(once, twice); diff != "" {
				t.Errorf("renumber is not idempotent (-once +twice):\n%s", diff)
			}
		})
	}

	next, err := Renumber(doc, SortByCreatedAt)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"z": 1, "x": 2, "y": 3}, sequences(next))
}

func TestRenumberBySequenceKeepsUnnumberedLast(t *testing.T) {
	one, three := 1, 3
	doc := &Document{Items: []ContentRecord{
		{ID: "none", CreatedAt: day("2024-01-01")},
		{ID: "third", CreatedAt: day("2024-01-01"), Sequence: &three},
		{ID: "first", CreatedAt: day("2024-01-01"), Sequence: &one},
	}}
	next, err := Renumber(doc, SortBySequence)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"first": 1, "third": 2, "none": 3}, sequences(next))
}

func TestRenumberRejectsUnknownKey(t *testing.T) {
	_, err := Renumber(NewDocument(), "colour")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestReorder(t *testing.T) {
	doc := &Document{Items: []ContentRecord{
		record("a", "A", "2024-01-01"),
		record("b", "B", "2024-01-02"),
		record("c", "C", "2024-01-03"),
	}, Version: "v7"}

	next, err := Reorder(doc, []string{"c", "a", "b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"c": 1, "a": 2, "b": 3}, sequences(next))
	assert.Equal(t, Version("v7"), next.Version)

	for name, ids := range map[string][]string{
		"missing id":  {"a", "b"},
		"unknown id":  {"a", "b", "d"},
		"repeated id": {"a", "a", "b"},
		"extra id":    {"a", "b", "c", "d"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Reorder(doc, ids)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestParseSortKey(t *testing.T) {
	key, err := ParseSortKey("")
	require.NoError(t, err)
	assert.Equal(t, SortByCreatedAt, key)

	key, err = ParseSortKey("title")
	require.NoError(t, err)
	assert.Equal(t, SortByTitle, key)

	_, err = ParseSortKey("random")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestVersionString(t *testing.T) {
	assert.Equal(t, "ABSENT", VersionAbsent.String())
	assert.True(t, NewDocument().Version.IsAbsent())
	assert.Equal(t, "abc", Version("abc").String())
}
