// Package scope resolves the partition a record belongs to. A scope is an
// ordered mapping from field name to either a concrete value or an explicit
// NULL marker; records sharing a scope are sequenced together, independently
// of every other scope. The empty scope is the single global partition.
package scope

import (
	"github.com/listwise/listwise/pkg/idwrap"
	"github.com/listwise/listwise/pkg/model/mrecord"
)

// Value is one scope field value: either a concrete comparable value or an
// explicit NULL. NULL must never be matched with plain equality in SQL, so
// the marker is kept distinct from the value itself.
type Value struct {
	V    any
	Null bool
}

func Of(v any) Value {
	if v == nil {
		return Value{Null: true}
	}
	return Value{V: v}
}

func Null() Value {
	return Value{Null: true}
}

func (v Value) Equal(o Value) bool {
	if v.Null || o.Null {
		return v.Null == o.Null
	}
	return normalize(v.V) == normalize(o.V)
}

// normalize folds the representations a value can take on either side of the
// store boundary: callers hand the engine int or idwrap keys, the database
// hands back int64 and []byte.
func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case []byte:
		return string(n)
	case idwrap.IDWrap:
		return string(n.Bytes())
	}
	return v
}

// Scope is an immutable field→value mapping with a stable field order.
type Scope struct {
	fields []string
	values map[string]Value
}

// FromValues builds a scope over names, reading each value from values.
// Missing names are treated as explicit NULL.
func FromValues(names []string, values map[string]Value) Scope {
	s := Scope{
		fields: append([]string(nil), names...),
		values: make(map[string]Value, len(names)),
	}
	for _, f := range names {
		v, ok := values[f]
		if !ok {
			v = Null()
		}
		s.values[f] = v
	}
	return s
}

// Extract builds the scope of rec over the configured scope fields. ok is
// false when rec does not supply every field; callers treat that as "scope
// unknown" and skip order maintenance for the mutation.
func Extract(rec mrecord.Record, fields []string) (Scope, bool) {
	s := Scope{
		fields: append([]string(nil), fields...),
		values: make(map[string]Value, len(fields)),
	}
	for _, f := range fields {
		v, ok := rec.Get(f)
		if !ok {
			return Scope{}, false
		}
		s.values[f] = Of(v)
	}
	return s, true
}

// Overlay returns a copy of s with any scope fields supplied by rec replacing
// the committed values. Fields rec does not mention keep their old values.
// This is the full merged mapping used to decide whether a scope changed.
func (s Scope) Overlay(rec mrecord.Record) Scope {
	out := Scope{
		fields: append([]string(nil), s.fields...),
		values: make(map[string]Value, len(s.fields)),
	}
	for _, f := range s.fields {
		if v, ok := rec.Get(f); ok {
			out.values[f] = Of(v)
		} else {
			out.values[f] = s.values[f]
		}
	}
	return out
}

func (s Scope) Len() int {
	return len(s.fields)
}

// Fields returns the scope field names in their configured order.
func (s Scope) Fields() []string {
	return s.fields
}

func (s Scope) Value(name string) (Value, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Equal compares the complete mapping, never a subset: two scopes are equal
// only when they cover the same fields with pairwise equal values.
func (s Scope) Equal(o Scope) bool {
	if len(s.fields) != len(o.fields) {
		return false
	}
	for _, f := range s.fields {
		ov, ok := o.values[f]
		if !ok || !s.values[f].Equal(ov) {
			return false
		}
	}
	return true
}
