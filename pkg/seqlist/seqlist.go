// Package seqlist keeps an integer order column contiguous within each scope
// of a record collection: after every successful create, update or delete the
// order values of a scope are exactly start..start+n-1, one per record.
//
// The engine decides, per mutation, which other records must shift and issues
// the shift as a single conditional batch update. It exposes the decision
// logic as lifecycle hooks (PreCreate, PreUpdate, PreDelete) for hosts that
// own their transactions, and as transactional wrappers (Create, Update,
// Delete) that pair the shift with the record write. SetOrder bypasses the
// maintainer entirely and rewrites the order of a caller-supplied sequence.
package seqlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/listwise/listwise/pkg/idwrap"
	"github.com/listwise/listwise/pkg/model/mrecord"
	"github.com/listwise/listwise/pkg/scope"
	"github.com/listwise/listwise/pkg/store"
)

// Engine maintains the order column of one record collection. It holds no
// mutable state; every method is a pure decision over the store.
type Engine struct {
	store  store.Store
	cfg    Config
	logger *slog.Logger
}

func New(st store.Store, cfg Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{store: st, cfg: cfg, logger: logger}, nil
}

func (e *Engine) Config() Config {
	return e.cfg
}

// committedFields are the columns fetched to recover a record's previously
// committed order and scope.
func (e *Engine) committedFields() []string {
	return append([]string{e.cfg.OrderField}, e.cfg.ScopeFields...)
}

func (e *Engine) scopeConds(sc scope.Scope) []store.Cond {
	conds := make([]store.Cond, 0, sc.Len())
	for _, f := range sc.Fields() {
		v, _ := sc.Value(f)
		if v.Null {
			conds = append(conds, store.Cond{Field: f, Op: store.OpIsNull})
		} else {
			conds = append(conds, store.Cond{Field: f, Op: store.OpEq, Value: v.V})
		}
	}
	return conds
}

// highestOrder returns the maximum order value within sc, or start-1 when the
// scope holds no records, so that +1 always yields the next free slot.
func (e *Engine) highestOrder(ctx context.Context, st store.Store, sc scope.Scope) (int, error) {
	rec, err := st.FindOne(ctx, e.scopeConds(sc), &store.OrderBy{Field: e.cfg.OrderField, Desc: true})
	if errors.Is(err, store.ErrNotFound) {
		return e.cfg.Start - 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("seqlist: find highest order: %w", err)
	}
	n, ok := rec.Int(e.cfg.OrderField)
	if !ok {
		// Rows with a NULL order are outside the sequence.
		return e.cfg.Start - 1, nil
	}
	return n, nil
}

// shift moves every record of sc matching conds by delta, as one atomic
// set-based update.
func (e *Engine) shift(ctx context.Context, st store.Store, delta int, conds []store.Cond, sc scope.Scope) error {
	all := make([]store.Cond, 0, len(conds)+sc.Len())
	all = append(all, conds...)
	all = append(all, e.scopeConds(sc)...)
	if _, err := st.UpdateAll(ctx, store.Delta{Field: e.cfg.OrderField, N: delta}, all); err != nil {
		return fmt.Errorf("seqlist: shift %s by %+d: %w", e.cfg.OrderField, delta, err)
	}
	return nil
}

// PreCreate prepares a record about to be inserted: it assigns the record's
// order and shifts any records it displaces. Without an explicit order the
// record is appended to its scope; with one, every record at or above that
// order moves up. The returned record must be persisted in the same
// transaction as the shift; Create does both.
func (e *Engine) PreCreate(ctx context.Context, rec mrecord.Record) (mrecord.Record, error) {
	return e.preCreate(ctx, e.store, rec)
}

func (e *Engine) preCreate(ctx context.Context, st store.Store, rec mrecord.Record) (mrecord.Record, error) {
	rec = rec.Clone()
	sc, ok := scope.Extract(rec, e.cfg.ScopeFields)
	if !ok {
		e.logger.DebugContext(ctx, "scope incomplete, order maintenance skipped",
			"record_id", rec.ID.String())
		return rec, nil
	}
	return e.place(ctx, st, rec, sc)
}

// place appends rec to sc or inserts it at its explicit order, shifting
// successors up.
func (e *Engine) place(ctx context.Context, st store.Store, rec mrecord.Record, sc scope.Scope) (mrecord.Record, error) {
	order, explicit := rec.Int(e.cfg.OrderField)
	if !explicit {
		top, err := e.highestOrder(ctx, st, sc)
		if err != nil {
			return rec, err
		}
		rec.Set(e.cfg.OrderField, top+1)
		return rec, nil
	}
	err := e.shift(ctx, st, +1, []store.Cond{{Field: e.cfg.OrderField, Op: store.OpGte, Value: order}}, sc)
	if err != nil {
		return rec, err
	}
	rec.Set(e.cfg.OrderField, order)
	return rec, nil
}

// PreUpdate prepares a modification of an existing record. rec carries the
// primary key plus only the fields the mutation touches; the previously
// committed order and scope are fetched by key. Depending on what changed the
// record is moved within its scope, moved to another scope (closing the gap
// it leaves behind), or left alone.
func (e *Engine) PreUpdate(ctx context.Context, rec mrecord.Record) (mrecord.Record, error) {
	return e.preUpdate(ctx, e.store, rec)
}

func (e *Engine) preUpdate(ctx context.Context, st store.Store, rec mrecord.Record) (mrecord.Record, error) {
	rec = rec.Clone()
	newOrder, hasOrder := rec.Int(e.cfg.OrderField)
	touchesScope := false
	for _, f := range e.cfg.ScopeFields {
		if rec.Has(f) {
			touchesScope = true
			break
		}
	}
	if !hasOrder && !touchesScope {
		return rec, nil
	}

	old, err := st.GetByKey(ctx, rec.ID, e.committedFields())
	if err != nil {
		return rec, fmt.Errorf("seqlist: load committed record: %w", err)
	}
	oldScope, ok := scope.Extract(old, e.cfg.ScopeFields)
	if !ok {
		e.logger.DebugContext(ctx, "committed scope incomplete, order maintenance skipped",
			"record_id", rec.ID.String())
		return rec, nil
	}
	// The full merged mapping decides whether the scope changed: committed
	// values overlaid with whatever scope fields this mutation supplies.
	newScope := oldScope.Overlay(rec)

	oldOrder, sequenced := old.Int(e.cfg.OrderField)
	if !sequenced {
		// The record was never sequenced (created while its scope was
		// unresolvable). Place it like a fresh insert; there is no gap to
		// close.
		return e.place(ctx, st, rec, newScope)
	}

	if newScope.Equal(oldScope) {
		if !hasOrder || newOrder == oldOrder {
			return rec, nil
		}
		if newOrder < oldOrder {
			// Move toward the front: everything in [newOrder, oldOrder)
			// steps back.
			err = e.shift(ctx, st, +1, []store.Cond{
				{Field: e.cfg.OrderField, Op: store.OpGte, Value: newOrder},
				{Field: e.cfg.OrderField, Op: store.OpLt, Value: oldOrder},
			}, oldScope)
		} else {
			// Move toward the back: everything in (oldOrder, newOrder]
			// steps forward.
			err = e.shift(ctx, st, -1, []store.Cond{
				{Field: e.cfg.OrderField, Op: store.OpGt, Value: oldOrder},
				{Field: e.cfg.OrderField, Op: store.OpLte, Value: newOrder},
			}, oldScope)
		}
		if err != nil {
			return rec, err
		}
		rec.Set(e.cfg.OrderField, newOrder)
		return rec, nil
	}

	// Scope change: close the gap in the old scope, then append to or insert
	// into the new one. The old numeric order is never carried across.
	err = e.shift(ctx, st, -1, []store.Cond{{Field: e.cfg.OrderField, Op: store.OpGt, Value: oldOrder}}, oldScope)
	if err != nil {
		return rec, err
	}
	return e.place(ctx, st, rec, newScope)
}

// PreDelete closes the gap the record will leave behind: every record of its
// scope above its committed order steps back by one. Call it before the row
// is deleted, in the same transaction; Delete does both.
func (e *Engine) PreDelete(ctx context.Context, id idwrap.IDWrap) error {
	return e.preDelete(ctx, e.store, id)
}

func (e *Engine) preDelete(ctx context.Context, st store.Store, id idwrap.IDWrap) error {
	old, err := st.GetByKey(ctx, id, e.committedFields())
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("seqlist: load committed record: %w", err)
	}
	oldOrder, sequenced := old.Int(e.cfg.OrderField)
	if !sequenced {
		return nil
	}
	oldScope, ok := scope.Extract(old, e.cfg.ScopeFields)
	if !ok {
		return nil
	}
	return e.shift(ctx, st, -1, []store.Cond{{Field: e.cfg.OrderField, Op: store.OpGt, Value: oldOrder}}, oldScope)
}

// Create runs PreCreate and persists the record, shift and write in one
// transaction.
func (e *Engine) Create(ctx context.Context, rec mrecord.Record) (mrecord.Record, error) {
	var out mrecord.Record
	err := e.store.InTx(ctx, func(tx store.Store) error {
		r, err := e.preCreate(ctx, tx, rec)
		if err != nil {
			return err
		}
		if err := tx.Save(ctx, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	return out, err
}

// Update runs PreUpdate and persists the record, shift and write in one
// transaction.
func (e *Engine) Update(ctx context.Context, rec mrecord.Record) (mrecord.Record, error) {
	var out mrecord.Record
	err := e.store.InTx(ctx, func(tx store.Store) error {
		r, err := e.preUpdate(ctx, tx, rec)
		if err != nil {
			return err
		}
		if err := tx.Save(ctx, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	return out, err
}

// Delete runs PreDelete and removes the record in one transaction.
func (e *Engine) Delete(ctx context.Context, id idwrap.IDWrap) error {
	return e.store.InTx(ctx, func(tx store.Store) error {
		if err := e.preDelete(ctx, tx, id); err != nil {
			return err
		}
		return tx.DeleteByKey(ctx, id)
	})
}

// SetOrder rewrites the order of the given records to start, start+1, … in
// slice order, inside one transaction: if any write fails nothing is
// committed. It writes the order values directly and never consults the
// maintainer, so records of the same scope left out of the slice are not
// repositioned; resulting overlaps or gaps are the caller's responsibility.
func (e *Engine) SetOrder(ctx context.Context, refs []mrecord.Ref) error {
	recs := make([]mrecord.Record, len(refs))
	for i, ref := range refs {
		rec, err := ref.Record()
		if err != nil {
			return fmt.Errorf("seqlist: normalize reference %d: %w", i, err)
		}
		recs[i] = rec
	}
	return e.store.InTx(ctx, func(tx store.Store) error {
		for i, rec := range recs {
			rec.Set(e.cfg.OrderField, e.cfg.Start+i)
			if err := tx.Save(ctx, rec); err != nil {
				return fmt.Errorf("seqlist: save record %s: %w", rec.ID.String(), err)
			}
		}
		return nil
	})
}

// List returns the records of sc ordered ascending by the order field. The
// empty scope lists the global partition.
func (e *Engine) List(ctx context.Context, sc scope.Scope) ([]mrecord.Record, error) {
	return e.store.List(ctx, e.scopeConds(sc), &store.OrderBy{Field: e.cfg.OrderField})
}
