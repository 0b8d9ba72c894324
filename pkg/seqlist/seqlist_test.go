package seqlist_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listwise/listwise/pkg/dbtest"
	"github.com/listwise/listwise/pkg/idwrap"
	"github.com/listwise/listwise/pkg/logger/mocklogger"
	"github.com/listwise/listwise/pkg/model/mrecord"
	"github.com/listwise/listwise/pkg/scope"
	"github.com/listwise/listwise/pkg/seqlist"
	"github.com/listwise/listwise/pkg/store"
	"github.com/listwise/listwise/pkg/store/sqlitestore"
)

// spyStore wraps a store to count batch updates and optionally fail the save
// of a specific record.
type spyStore struct {
	store.Store
	updateAlls *int
	failSaveID string
}

func (s *spyStore) UpdateAll(ctx context.Context, delta store.Delta, conds []store.Cond) (int64, error) {
	*s.updateAlls++
	return s.Store.UpdateAll(ctx, delta, conds)
}

func (s *spyStore) Save(ctx context.Context, rec mrecord.Record) error {
	if s.failSaveID != "" && rec.ID.String() == s.failSaveID {
		return errors.New("spy: save refused")
	}
	return s.Store.Save(ctx, rec)
}

func (s *spyStore) InTx(ctx context.Context, fn func(tx store.Store) error) error {
	return s.Store.InTx(ctx, func(tx store.Store) error {
		return fn(&spyStore{Store: tx, updateAlls: s.updateAlls, failSaveID: s.failSaveID})
	})
}

type fixture struct {
	eng   *seqlist.Engine
	store *spyStore
	logs  *mocklogger.Handler
	calls int
}

func newFixture(t *testing.T, cfg seqlist.Config) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := dbtest.GetTestDB(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.ExecContext(ctx, `
		CREATE TABLE items (
			id BLOB PRIMARY KEY,
			title TEXT,
			board TEXT,
			owner TEXT,
			position INTEGER
		)`)
	require.NoError(t, err)

	base, err := sqlitestore.New(db, sqlitestore.TableConfig{
		Table:  "items",
		Fields: []string{"title", "board", "owner", "position"},
	}, nil)
	require.NoError(t, err)

	f := &fixture{}
	f.store = &spyStore{Store: base, updateAlls: &f.calls}

	logger, logs := mocklogger.NewMockLogger()
	f.logs = logs

	f.eng, err = seqlist.New(f.store, cfg, logger)
	require.NoError(t, err)
	return f
}

func boardScope(name any) scope.Scope {
	return scope.FromValues([]string{"board"}, map[string]scope.Value{"board": scope.Of(name)})
}

func (f *fixture) create(t *testing.T, title string, fields map[string]any) idwrap.IDWrap {
	t.Helper()
	rec := mrecord.New(idwrap.NewNow())
	rec.Set("title", title)
	for k, v := range fields {
		rec.Set(k, v)
	}
	out, err := f.eng.Create(context.Background(), rec)
	require.NoError(t, err)
	return out.ID
}

// requireSequence asserts that sc holds exactly wantTitles in order, with
// positions running start..start+n-1 without gaps or duplicates.
func (f *fixture) requireSequence(t *testing.T, sc scope.Scope, wantTitles ...string) {
	t.Helper()
	recs, err := f.eng.List(context.Background(), sc)
	require.NoError(t, err)

	titles := make([]string, len(recs))
	for i, r := range recs {
		v, _ := r.Get("title")
		titles[i], _ = v.(string)
		pos, ok := r.Int("position")
		require.True(t, ok, "record %q has no position", titles[i])
		require.Equal(t, f.eng.Config().Start+i, pos,
			"positions must be contiguous from start; record %q", titles[i])
	}
	require.Equal(t, wantTitles, titles)
}

func TestCreateAppends(t *testing.T) {
	t.Parallel()
	f := newFixture(t, seqlist.Config{ScopeFields: seqlist.ScopeFields{"board"}})

	f.create(t, "a", map[string]any{"board": "inbox"})
	f.create(t, "b", map[string]any{"board": "inbox"})
	f.create(t, "c", map[string]any{"board": "inbox"})
	f.create(t, "solo", map[string]any{"board": "done"})

	f.requireSequence(t, boardScope("inbox"), "a", "b", "c")
	f.requireSequence(t, boardScope("done"), "solo")
}

func TestCreateWithExplicitOrderShiftsSuccessors(t *testing.T) {
	t.Parallel()
	f := newFixture(t, seqlist.Config{ScopeFields: seqlist.ScopeFields{"board"}})

	f.create(t, "a", map[string]any{"board": "inbox"})
	f.create(t, "b", map[string]any{"board": "inbox"})
	f.create(t, "c", map[string]any{"board": "inbox"})

	f.create(t, "wedge", map[string]any{"board": "inbox", "position": 2})

	f.requireSequence(t, boardScope("inbox"), "a", "wedge", "b", "c")
}

func TestCreateCustomStart(t *testing.T) {
	t.Parallel()
	f := newFixture(t, seqlist.Config{Start: 100})

	f.create(t, "a", nil)
	f.create(t, "b", nil)

	f.requireSequence(t, scope.FromValues(nil, nil), "a", "b")
}

func TestCreateIncompleteScopeSkipsOrdering(t *testing.T) {
	t.Parallel()
	f := newFixture(t, seqlist.Config{ScopeFields: seqlist.ScopeFields{"board"}})

	rec := mrecord.New(idwrap.NewNow())
	rec.Set("title", "unscoped")
	out, err := f.eng.Create(context.Background(), rec)
	require.NoError(t, err)

	_, has := out.Get("position")
	assert.False(t, has, "no order is assigned when the scope cannot be resolved")
	assert.Zero(t, f.calls)
	assert.Contains(t, f.logs.Messages(), "scope incomplete, order maintenance skipped")
}

func TestMoveTowardFront(t *testing.T) {
	t.Parallel()
	f := newFixture(t, seqlist.Config{ScopeFields: seqlist.ScopeFields{"board"}})

	ids := make(map[string]idwrap.IDWrap)
	for _, title := range []string{"r1", "r2", "r3", "r4", "r5", "r6", "r7"} {
		ids[title] = f.create(t, title, map[string]any{"board": "inbox"})
	}

	// Move the record at position 4 to position 2.
	patch := mrecord.New(ids["r4"])
	patch.Set("position", 2)
	_, err := f.eng.Update(context.Background(), patch)
	require.NoError(t, err)

	f.requireSequence(t, boardScope("inbox"), "r1", "r4", "r2", "r3", "r5", "r6", "r7")
}

func TestMoveTowardBack(t *testing.T) {
	t.Parallel()
	f := newFixture(t, seqlist.Config{ScopeFields: seqlist.ScopeFields{"board"}})

	ids := make(map[string]idwrap.IDWrap)
	for _, title := range []string{"r1", "r2", "r3", "r4", "r5", "r6", "r7"} {
		ids[title] = f.create(t, title, map[string]any{"board": "inbox"})
	}

	// Move the record at position 2 to position 4.
	patch := mrecord.New(ids["r2"])
	patch.Set("position", 4)
	_, err := f.eng.Update(context.Background(), patch)
	require.NoError(t, err)

	f.requireSequence(t, boardScope("inbox"), "r1", "r3", "r4", "r2", "r5", "r6", "r7")
}

func TestUpdateWithoutOrderOrScopeIsNoop(t *testing.T) {
	t.Parallel()
	f := newFixture(t, seqlist.Config{ScopeFields: seqlist.ScopeFields{"board"}})

	id := f.create(t, "a", map[string]any{"board": "inbox"})
	f.create(t, "b", map[string]any{"board": "inbox"})
	f.calls = 0

	patch := mrecord.New(id)
	patch.Set("title", "renamed")
	_, err := f.eng.Update(context.Background(), patch)
	require.NoError(t, err)

	assert.Zero(t, f.calls, "an update touching neither order nor scope must not shift anything")
	f.requireSequence(t, boardScope("inbox"), "renamed", "b")
}

func TestUpdateSamePlaceIsNoop(t *testing.T) {
	t.Parallel()
	f := newFixture(t, seqlist.Config{ScopeFields: seqlist.ScopeFields{"board"}})

	f.create(t, "a", map[string]any{"board": "inbox"})
	id := f.create(t, "b", map[string]any{"board": "inbox"})
	f.calls = 0

	// Same order, same scope, both supplied explicitly.
	patch := mrecord.New(id)
	patch.Set("board", "inbox")
	patch.Set("position", 2)
	_, err := f.eng.Update(context.Background(), patch)
	require.NoError(t, err)

	assert.Zero(t, f.calls)
	f.requireSequence(t, boardScope("inbox"), "a", "b")
}

func TestDeleteClosesGap(t *testing.T) {
	t.Parallel()
	f := newFixture(t, seqlist.Config{ScopeFields: seqlist.ScopeFields{"board"}})

	ids := make(map[string]idwrap.IDWrap)
	for _, title := range []string{"r1", "r2", "r3", "r4", "r5", "r6", "r7"} {
		ids[title] = f.create(t, title, map[string]any{"board": "inbox"})
	}

	require.NoError(t, f.eng.Delete(context.Background(), ids["r3"]))

	f.requireSequence(t, boardScope("inbox"), "r1", "r2", "r4", "r5", "r6", "r7")
}

func TestDeleteMissingRecordIsNoop(t *testing.T) {
	t.Parallel()
	f := newFixture(t, seqlist.Config{ScopeFields: seqlist.ScopeFields{"board"}})

	f.create(t, "a", map[string]any{"board": "inbox"})
	require.NoError(t, f.eng.Delete(context.Background(), idwrap.NewNow()))
	f.requireSequence(t, boardScope("inbox"), "a")
}

func TestScopeChangeAppendsToNewScope(t *testing.T) {
	t.Parallel()
	f := newFixture(t, seqlist.Config{ScopeFields: seqlist.ScopeFields{"board"}})

	ids := make(map[string]idwrap.IDWrap)
	for _, title := range []string{"a1", "a2", "a3", "a4", "a5"} {
		ids[title] = f.create(t, title, map[string]any{"board": "a"})
	}
	for _, title := range []string{"b1", "b2", "b3"} {
		ids[title] = f.create(t, title, map[string]any{"board": "b"})
	}

	// Move a2 (position 2 of A) to board B without an explicit order.
	patch := mrecord.New(ids["a2"])
	patch.Set("board", "b")
	out, err := f.eng.Update(context.Background(), patch)
	require.NoError(t, err)

	pos, ok := out.Int("position")
	require.True(t, ok)
	assert.Equal(t, 4, pos, "a scope change appends; the old number is never carried over")

	f.requireSequence(t, boardScope("a"), "a1", "a3", "a4", "a5")
	f.requireSequence(t, boardScope("b"), "b1", "b2", "b3", "a2")
}

func TestScopeChangeWithExplicitOrderInserts(t *testing.T) {
	t.Parallel()
	f := newFixture(t, seqlist.Config{ScopeFields: seqlist.ScopeFields{"board"}})

	ids := make(map[string]idwrap.IDWrap)
	for _, title := range []string{"a1", "a2", "a3"} {
		ids[title] = f.create(t, title, map[string]any{"board": "a"})
	}
	for _, title := range []string{"b1", "b2", "b3"} {
		ids[title] = f.create(t, title, map[string]any{"board": "b"})
	}

	patch := mrecord.New(ids["a3"])
	patch.Set("board", "b")
	patch.Set("position", 2)
	_, err := f.eng.Update(context.Background(), patch)
	require.NoError(t, err)

	f.requireSequence(t, boardScope("a"), "a1", "a2")
	f.requireSequence(t, boardScope("b"), "b1", "a3", "b2", "b3")
}

func TestPartialScopeChangeComparesFullMapping(t *testing.T) {
	t.Parallel()
	f := newFixture(t, seqlist.Config{ScopeFields: seqlist.ScopeFields{"board", "owner"}})

	ids := make(map[string]idwrap.IDWrap)
	for _, title := range []string{"x1", "x2", "x3"} {
		ids[title] = f.create(t, title, map[string]any{"board": "inbox", "owner": "alice"})
	}
	f.create(t, "y1", map[string]any{"board": "inbox", "owner": "bob"})

	// Change only the owner; the board keeps its committed value. The merged
	// mapping differs, so this is a scope change.
	patch := mrecord.New(ids["x1"])
	patch.Set("owner", "bob")
	_, err := f.eng.Update(context.Background(), patch)
	require.NoError(t, err)

	alice := scope.FromValues([]string{"board", "owner"}, map[string]scope.Value{
		"board": scope.Of("inbox"), "owner": scope.Of("alice"),
	})
	bob := scope.FromValues([]string{"board", "owner"}, map[string]scope.Value{
		"board": scope.Of("inbox"), "owner": scope.Of("bob"),
	})
	f.requireSequence(t, alice, "x2", "x3")
	f.requireSequence(t, bob, "y1", "x1")
}

func TestNullScopeIsItsOwnPartition(t *testing.T) {
	t.Parallel()
	f := newFixture(t, seqlist.Config{ScopeFields: seqlist.ScopeFields{"board"}})

	f.create(t, "n1", map[string]any{"board": nil})
	f.create(t, "n2", map[string]any{"board": nil})
	f.create(t, "i1", map[string]any{"board": "inbox"})

	f.requireSequence(t, boardScope(nil), "n1", "n2")
	f.requireSequence(t, boardScope("inbox"), "i1")

	// Moving out of the NULL partition closes its gap.
	recs, err := f.eng.List(context.Background(), boardScope(nil))
	require.NoError(t, err)
	patch := mrecord.New(recs[0].ID)
	patch.Set("board", "inbox")
	_, err = f.eng.Update(context.Background(), patch)
	require.NoError(t, err)

	f.requireSequence(t, boardScope(nil), "n2")
	f.requireSequence(t, boardScope("inbox"), "i1", "n1")
}

func TestUpdateCompletingScopePlacesRecord(t *testing.T) {
	t.Parallel()
	f := newFixture(t, seqlist.Config{ScopeFields: seqlist.ScopeFields{"board"}})

	f.create(t, "a", map[string]any{"board": "inbox"})

	// Created without a resolvable scope: no order assigned.
	rec := mrecord.New(idwrap.NewNow())
	rec.Set("title", "late")
	out, err := f.eng.Create(context.Background(), rec)
	require.NoError(t, err)
	_, has := out.Get("position")
	require.False(t, has)

	// Supplying the scope later sequences the record like a fresh insert.
	patch := mrecord.New(out.ID)
	patch.Set("board", "inbox")
	_, err = f.eng.Update(context.Background(), patch)
	require.NoError(t, err)

	f.requireSequence(t, boardScope("inbox"), "a", "late")
}

func TestSetOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t, seqlist.Config{ScopeFields: seqlist.ScopeFields{"board"}})

	a := f.create(t, "a", map[string]any{"board": "inbox"})
	b := f.create(t, "b", map[string]any{"board": "inbox"})
	c := f.create(t, "c", map[string]any{"board": "inbox"})

	full := mrecord.New(c)
	full.Set("title", "c")

	// All three reference shapes normalize to the same thing.
	err := f.eng.SetOrder(context.Background(), []mrecord.Ref{
		mrecord.ByRecord(full),
		mrecord.ByID(a),
		mrecord.ByFields(b, map[string]any{"title": "b"}),
	})
	require.NoError(t, err)

	f.requireSequence(t, boardScope("inbox"), "c", "a", "b")
}

func TestSetOrderRollsBackWholeBatch(t *testing.T) {
	t.Parallel()
	f := newFixture(t, seqlist.Config{ScopeFields: seqlist.ScopeFields{"board"}})

	a := f.create(t, "a", map[string]any{"board": "inbox"})
	b := f.create(t, "b", map[string]any{"board": "inbox"})
	c := f.create(t, "c", map[string]any{"board": "inbox"})

	f.store.failSaveID = b.String()
	err := f.eng.SetOrder(context.Background(), []mrecord.Ref{
		mrecord.ByID(c), mrecord.ByID(b), mrecord.ByID(a),
	})
	require.Error(t, err)

	// Nothing moved, including records saved before the failure.
	f.requireSequence(t, boardScope("inbox"), "a", "b", "c")
}

func TestSetOrderRejectsKeylessRef(t *testing.T) {
	t.Parallel()
	f := newFixture(t, seqlist.Config{})

	err := f.eng.SetOrder(context.Background(), []mrecord.Ref{mrecord.ByID(idwrap.IDWrap{})})
	assert.ErrorIs(t, err, mrecord.ErrNoKey)
}

func TestInvariantSurvivesMixedMutations(t *testing.T) {
	t.Parallel()
	f := newFixture(t, seqlist.Config{ScopeFields: seqlist.ScopeFields{"board"}})
	ctx := context.Background()

	ids := make(map[string]idwrap.IDWrap)
	for _, title := range []string{"a", "b", "c", "d", "e"} {
		ids[title] = f.create(t, title, map[string]any{"board": "one"})
	}
	for _, title := range []string{"x", "y"} {
		ids[title] = f.create(t, title, map[string]any{"board": "two"})
	}

	// Wedge a record into the middle of board one.
	ids["w"] = f.create(t, "w", map[string]any{"board": "one", "position": 3})
	f.requireSequence(t, boardScope("one"), "a", "b", "w", "c", "d", "e")

	// Shuffle within board one.
	patch := mrecord.New(ids["e"])
	patch.Set("position", 1)
	_, err := f.eng.Update(ctx, patch)
	require.NoError(t, err)
	f.requireSequence(t, boardScope("one"), "e", "a", "b", "w", "c", "d")

	// Cross-scope move, then a delete in each scope.
	patch = mrecord.New(ids["b"])
	patch.Set("board", "two")
	_, err = f.eng.Update(ctx, patch)
	require.NoError(t, err)
	require.NoError(t, f.eng.Delete(ctx, ids["w"]))
	require.NoError(t, f.eng.Delete(ctx, ids["x"]))

	f.requireSequence(t, boardScope("one"), "e", "a", "c", "d")
	f.requireSequence(t, boardScope("two"), "y", "b")
}
