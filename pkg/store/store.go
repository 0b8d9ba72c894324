// Package store defines the persistence collaborator of the sequencing
// engine: a handful of set-based operations over one table of records.
package store

import (
	"context"
	"errors"

	"github.com/listwise/listwise/pkg/idwrap"
	"github.com/listwise/listwise/pkg/model/mrecord"
)

// ErrNotFound is returned by FindOne and GetByKey when no record matches.
var ErrNotFound = errors.New("store: record not found")

// Op enumerates the comparisons the engine issues against the order field and
// the scope columns.
type Op int

const (
	OpEq Op = iota
	OpGt
	OpGte
	OpLt
	OpLte
	OpIsNull
)

// Cond is one field comparison. Value is ignored for OpIsNull.
type Cond struct {
	Field string
	Op    Op
	Value any
}

// Delta is a set-based shift of an integer column, rendered as
// "field = field + n" over every matching row in one statement.
type Delta struct {
	Field string
	N     int
}

// OrderBy names a single ordering column.
type OrderBy struct {
	Field string
	Desc  bool
}

// Store is the record store the engine drives. All conditions in a call are
// combined with logical AND. InTx hands the callback a Store bound to the
// transaction and rolls back when the callback errors; calls on a Store that
// is already transaction-bound join the ambient transaction.
type Store interface {
	// FindOne returns the first record matching conds under orderBy, or
	// ErrNotFound.
	FindOne(ctx context.Context, conds []Cond, orderBy *OrderBy) (mrecord.Record, error)

	// UpdateAll applies delta to every record matching conds in one atomic
	// statement and reports how many rows were touched.
	UpdateAll(ctx context.Context, delta Delta, conds []Cond) (int64, error)

	// GetByKey loads the named fields of one record, or ErrNotFound.
	GetByKey(ctx context.Context, id idwrap.IDWrap, fields []string) (mrecord.Record, error)

	// Save persists the fields the record supplies, updating the existing row
	// or inserting a new one.
	Save(ctx context.Context, rec mrecord.Record) error

	// DeleteByKey removes one record. Deleting a missing record is not an
	// error.
	DeleteByKey(ctx context.Context, id idwrap.IDWrap) error

	// List returns every record matching conds, ordered by orderBy when
	// given.
	List(ctx context.Context, conds []Cond, orderBy *OrderBy) ([]mrecord.Record, error)

	// InTx runs fn inside one transaction.
	InTx(ctx context.Context, fn func(tx Store) error) error
}
