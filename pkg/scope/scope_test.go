package scope_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listwise/listwise/pkg/idwrap"
	"github.com/listwise/listwise/pkg/model/mrecord"
	"github.com/listwise/listwise/pkg/scope"
)

func TestExtract(t *testing.T) {
	t.Parallel()

	rec := mrecord.New(idwrap.NewNow())
	rec.Set("board", "inbox")
	rec.Set("owner", nil)

	sc, ok := scope.Extract(rec, []string{"board", "owner"})
	require.True(t, ok)
	require.Equal(t, 2, sc.Len())

	v, ok := sc.Value("board")
	require.True(t, ok)
	assert.False(t, v.Null)
	assert.Equal(t, "inbox", v.V)

	v, ok = sc.Value("owner")
	require.True(t, ok)
	assert.True(t, v.Null, "explicit nil must become the NULL marker, not a value")
}

func TestExtractIncomplete(t *testing.T) {
	t.Parallel()

	rec := mrecord.New(idwrap.NewNow())
	rec.Set("board", "inbox")

	_, ok := scope.Extract(rec, []string{"board", "owner"})
	assert.False(t, ok, "a record missing a configured scope field has no resolvable scope")
}

func TestExtractEmptyFieldList(t *testing.T) {
	t.Parallel()

	sc, ok := scope.Extract(mrecord.New(idwrap.NewNow()), nil)
	require.True(t, ok)
	assert.Equal(t, 0, sc.Len(), "no scope fields means the single global partition")
}

func TestEqualFullMapping(t *testing.T) {
	t.Parallel()

	a := scope.FromValues([]string{"board", "owner"}, map[string]scope.Value{
		"board": scope.Of("inbox"),
		"owner": scope.Null(),
	})
	b := scope.FromValues([]string{"board", "owner"}, map[string]scope.Value{
		"board": scope.Of("inbox"),
		"owner": scope.Null(),
	})
	c := scope.FromValues([]string{"board", "owner"}, map[string]scope.Value{
		"board": scope.Of("inbox"),
		"owner": scope.Of("alice"),
	})
	oneField := scope.FromValues([]string{"board"}, map[string]scope.Value{
		"board": scope.Of("inbox"),
	})

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c), "null vs value must not compare equal")
	assert.False(t, a.Equal(oneField), "a subset of fields is never equal to the full mapping")
}

func TestEqualNormalizesIntWidths(t *testing.T) {
	t.Parallel()

	// Caller-side values are int, values read back from SQLite are int64.
	caller := scope.FromValues([]string{"lane"}, map[string]scope.Value{"lane": scope.Of(3)})
	db := scope.FromValues([]string{"lane"}, map[string]scope.Value{"lane": scope.Of(int64(3))})
	assert.True(t, caller.Equal(db))
}

func TestEqualNormalizesKeyBytes(t *testing.T) {
	t.Parallel()

	id := idwrap.NewNow()
	caller := scope.FromValues([]string{"parent_id"}, map[string]scope.Value{"parent_id": scope.Of(id)})
	db := scope.FromValues([]string{"parent_id"}, map[string]scope.Value{"parent_id": scope.Of(id.Bytes())})
	assert.True(t, caller.Equal(db))
}

func TestOverlay(t *testing.T) {
	t.Parallel()

	committed := scope.FromValues([]string{"board", "owner"}, map[string]scope.Value{
		"board": scope.Of("inbox"),
		"owner": scope.Of("alice"),
	})

	update := mrecord.New(idwrap.NewNow())
	update.Set("owner", nil)

	merged := committed.Overlay(update)

	v, ok := merged.Value("board")
	require.True(t, ok)
	assert.Equal(t, "inbox", v.V, "untouched fields keep their committed values")

	v, ok = merged.Value("owner")
	require.True(t, ok)
	assert.True(t, v.Null, "a supplied nil overrides the committed value with NULL")

	assert.False(t, merged.Equal(committed))

	// An update touching no scope fields merges back to the committed scope.
	noop := mrecord.New(idwrap.NewNow())
	assert.True(t, committed.Overlay(noop).Equal(committed))
}
