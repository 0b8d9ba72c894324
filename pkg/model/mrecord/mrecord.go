package mrecord

import (
	"errors"
	"time"

	"github.com/listwise/listwise/pkg/idwrap"
)

// ErrNoKey is returned when a record reference carries no primary key.
var ErrNoKey = errors.New("mrecord: reference has no primary key")

// Record is a row of a sequenced collection in transit through the engine.
// Fields maps column name to value. A key present with a nil value is an
// explicit SQL NULL; a missing key means the mutation does not touch that
// column.
type Record struct {
	ID     idwrap.IDWrap
	Fields map[string]any
}

func New(id idwrap.IDWrap) Record {
	return Record{ID: id, Fields: make(map[string]any)}
}

// Get returns the value of a field and whether the record supplies it at all.
// A supplied explicit NULL yields (nil, true).
func (r Record) Get(name string) (any, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

func (r Record) Has(name string) bool {
	_, ok := r.Fields[name]
	return ok
}

func (r *Record) Set(name string, v any) {
	if r.Fields == nil {
		r.Fields = make(map[string]any)
	}
	r.Fields[name] = v
}

// Int reads a field as an integer. ok is false when the field is absent,
// explicitly NULL, or not an integer. Values read back from the store arrive
// as int64.
func (r Record) Int(name string) (int, bool) {
	v, ok := r.Fields[name]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	}
	return 0, false
}

// Clone returns a copy with its own field map, so callers' records are never
// mutated in place.
func (r Record) Clone() Record {
	out := Record{ID: r.ID, Fields: make(map[string]any, len(r.Fields))}
	for k, v := range r.Fields {
		out.Fields[k] = v
	}
	return out
}

func (r Record) GetCreatedTime() time.Time {
	return r.ID.Time()
}

// RefKind discriminates the three shapes callers may hand to the bulk
// sequencer: a bare key, a key plus a partial field set, or a full record.
type RefKind int

const (
	RefIdentity RefKind = iota
	RefPartial
	RefFull
)

// Ref is a normalized reference to a record. Build one with ByID, ByFields or
// ByRecord.
type Ref struct {
	kind   RefKind
	id     idwrap.IDWrap
	fields map[string]any
}

func ByID(id idwrap.IDWrap) Ref {
	return Ref{kind: RefIdentity, id: id}
}

func ByFields(id idwrap.IDWrap, fields map[string]any) Ref {
	return Ref{kind: RefPartial, id: id, fields: fields}
}

func ByRecord(rec Record) Ref {
	return Ref{kind: RefFull, id: rec.ID, fields: rec.Fields}
}

func (f Ref) Kind() RefKind {
	return f.kind
}

func (f Ref) ID() idwrap.IDWrap {
	return f.id
}

// Record normalizes the reference to a record carrying whatever fields the
// caller supplied. The returned record owns its field map.
func (f Ref) Record() (Record, error) {
	if f.id.IsZero() {
		return Record{}, ErrNoKey
	}
	rec := Record{ID: f.id, Fields: make(map[string]any, len(f.fields))}
	for k, v := range f.fields {
		rec.Fields[k] = v
	}
	return rec, nil
}
