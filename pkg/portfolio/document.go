package portfolio

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// storedDocument is the on-disk shape. Items is a raw message so that a
// non-array value is reported as corrupt instead of being coerced.
type storedDocument struct {
	Items json.RawMessage `json:"items"`
}

// DecodeDocument parses a stored registry document.
// Any shape violation wraps ErrDecodeFailure; it is never read as empty.
// Every item must pass ValidateRecord.
func DecodeDocument(data []byte, version Version) (*Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: document is not a JSON object", ErrDecodeFailure)
	}

	var stored storedDocument
	if err := json.Unmarshal(trimmed, &stored); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}

	doc := &Document{Items: []ContentRecord{}, Version: version}
	raw := bytes.TrimSpace(stored.Items)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return doc, nil
	}
	if raw[0] != '[' {
		return nil, fmt.Errorf("%w: items is not an array", ErrDecodeFailure)
	}
	if err := json.Unmarshal(raw, &doc.Items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}

	seen := make(map[string]struct{}, len(doc.Items))
	for i, item := range doc.Items {
		if strings.TrimSpace(item.ID) == "" {
			return nil, fmt.Errorf("%w: item %d has no id", ErrDecodeFailure, i)
		}
		// Commit runs the same check, so whatever loads can be written back.
		if err := ValidateRecord(item); err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", ErrDecodeFailure, i, err)
		}
		if _, dup := seen[item.ID]; dup {
			return nil, fmt.Errorf("%w: id %q appears more than once", ErrDecodeFailure, item.ID)
		}
		seen[item.ID] = struct{}{}
	}
	return doc, nil
}

// EncodeDocument serializes the document items. The version is not part of the body.
func EncodeDocument(doc *Document) ([]byte, error) {
	items := doc.Items
	if items == nil {
		items = []ContentRecord{}
	}
	return json.MarshalIndent(struct {
		Items []ContentRecord `json:"items"`
	}{Items: items}, "", "  ")
}

// ValidateRecord checks the fields every stored record must carry.
// Blob keys are optional here; the service checks them against the collection.
func ValidateRecord(rec ContentRecord) error {
	if strings.TrimSpace(rec.ID) == "" {
		return InvalidInputf("record id is required")
	}
	if rec.CreatedAt.IsZero() {
		return InvalidInputf("record %s: created_at is required", rec.ID)
	}
	return nil
}

// Append returns a copy of doc with rec added at the end.
func Append(doc *Document, rec ContentRecord) (*Document, error) {
	if err := ValidateRecord(rec); err != nil {
		return nil, err
	}
	if doc.indexOf(rec.ID) >= 0 {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, rec.ID)
	}
	out := doc.Clone()
	out.Items = append(out.Items, rec.Clone())
	return out, nil
}

// Remove returns a copy of doc without the record id.
// The boolean reports whether anything was removed; a missing id is not an error.
func Remove(doc *Document, id string) (*Document, bool) {
	out := doc.Clone()
	i := out.indexOf(id)
	if i < 0 {
		return out, false
	}
	out.Items = append(out.Items[:i], out.Items[i+1:]...)
	return out, true
}

// Replace returns a copy of doc where the record with rec.ID is replaced.
// ID and CreatedAt of the stored record are kept.
func Replace(doc *Document, rec ContentRecord) (*Document, error) {
	i := doc.indexOf(rec.ID)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, rec.ID)
	}
	rec.CreatedAt = doc.Items[i].CreatedAt
	if err := ValidateRecord(rec); err != nil {
		return nil, err
	}
	out := doc.Clone()
	out.Items[i] = rec.Clone()
	return out, nil
}

// Renumber returns a copy of doc sorted by key with Sequence set to the 1-based rank.
// The sort is stable, so equal keys keep their relative order and repeated calls
// produce the same assignment.
func Renumber(doc *Document, key SortKey) (*Document, error) {
	var less func(a, b ContentRecord) bool
	switch key {
	case SortByCreatedAt, "":
		less = func(a, b ContentRecord) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case SortByCreatedAtDesc:
		less = func(a, b ContentRecord) bool { return a.CreatedAt.After(b.CreatedAt) }
	case SortByTitle:
		less = func(a, b ContentRecord) bool { return strings.ToLower(a.Title) < strings.ToLower(b.Title) }
	case SortBySequence:
		less = func(a, b ContentRecord) bool {
			switch {
			case a.Sequence == nil:
				return false
			case b.Sequence == nil:
				return true
			default:
				return *a.Sequence < *b.Sequence
			}
		}
	default:
		return nil, InvalidInputf("unsupported sort key %q", key)
	}

	out := doc.Clone()
	sort.SliceStable(out.Items, func(i, j int) bool {
		return less(out.Items[i], out.Items[j])
	})
	assignSequence(out.Items)
	return out, nil
}

// Reorder returns a copy of doc in the order given by ids, renumbered from 1.
// ids must name every record exactly once.
func Reorder(doc *Document, ids []string) (*Document, error) {
	if len(ids) != len(doc.Items) {
		return nil, InvalidInputf("reorder lists %d ids, document has %d items", len(ids), len(doc.Items))
	}
	out := &Document{Items: make([]ContentRecord, 0, len(ids)), Version: doc.Version}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return nil, InvalidInputf("reorder lists id %q twice", id)
		}
		seen[id] = struct{}{}
		rec, ok := doc.Find(id)
		if !ok {
			return nil, InvalidInputf("reorder lists unknown id %q", id)
		}
		out.Items = append(out.Items, rec.Clone())
	}
	assignSequence(out.Items)
	return out, nil
}

func assignSequence(items []ContentRecord) {
	for i := range items {
		seq := i + 1
		items[i].Sequence = &seq
	}
}
