package feed

import "fmt"

// Document is an opaque row identified by its "id" field.
type Document map[string]any

// IDField is the primary key field of every document.
const IDField = "id"

// ID returns the document's id and whether it is set.
func (d Document) ID() (any, bool) {
	id, ok := d[IDField]
	return id, ok && id != nil
}

// Key returns the id in canonical string form, or "" when missing.
func (d Document) Key() string {
	id, ok := d.ID()
	if !ok {
		return ""
	}
	return KeyOf(id)
}

// KeyOf returns the canonical string form of a document id. JSON numbers
// decode as float64, so 7 and 7.0 share a key.
func KeyOf(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
	}
	return fmt.Sprint(id)
}

// Clone returns a shallow copy of d.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Kind classifies a change record.
type Kind string

const (
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// ChangeRecord is one change event. OldVal is nil for inserts and NewVal is
// nil for deletes; updates and replaces carry both.
type ChangeRecord struct {
	OldVal Document `json:"old_val"`
	NewVal Document `json:"new_val"`
}

// Kind classifies the record.
func (r *ChangeRecord) Kind() Kind {
	switch {
	case r.OldVal == nil:
		return KindInsert
	case r.NewVal == nil:
		return KindDelete
	default:
		return KindUpdate
	}
}

// Key returns the id of the changed document.
func (r *ChangeRecord) Key() string {
	if r.NewVal != nil {
		return r.NewVal.Key()
	}
	return r.OldVal.Key()
}
