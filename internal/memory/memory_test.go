package memory

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

type item struct {
	ID   int
	Name string
}

func newStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	require.NoError(t, Register(s, "ID", func(i *item) int { return i.ID }))
	return s
}

func open(t *testing.T, s *Store) (*Context, types.EntitySet) {
	t.Helper()
	db, err := s.Open(context.Background())
	require.NoError(t, err)
	set, err := types.SetFor[*item](db)
	require.NoError(t, err)
	return db.(*Context), set
}

func names(t *testing.T, db types.EntityContext, set types.EntitySet) []string {
	t.Helper()
	list, err := db.ToList(context.Background(), set.Query())
	require.NoError(t, err)
	out := make([]string, len(list))
	for i, v := range list {
		out[i] = v.(*item).Name
	}
	return out
}

func TestChangesInvisibleUntilApplied(t *testing.T) {
	s := newStore(t)
	db, set := open(t, s)
	ctx := context.Background()

	_, err := set.Create(ctx, &item{ID: 1, Name: "flour"})
	require.NoError(t, err)
	assert.Empty(t, names(t, db, set))
	assert.Equal(t, 1, db.Pending())

	n, err := db.ApplyChanges(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"flour"}, names(t, db, set))
	assert.Zero(t, db.Pending())
}

func TestApplyIsAllOrNothing(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Seed(&item{ID: 1, Name: "flour"}))
	db, set := open(t, s)
	ctx := context.Background()

	_, err := set.Create(ctx, &item{ID: 2, Name: "sugar"}, &item{ID: 1, Name: "again"})
	require.NoError(t, err)

	_, err = db.ApplyChanges(ctx)
	assert.ErrorIs(t, err, types.ErrDuplicateKey)
	assert.Equal(t, []string{"flour"}, names(t, db, set))
	assert.Zero(t, db.Pending(), "a failed apply clears staged changes")
}

func TestUpdateAndDeleteKeepOrder(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Seed(&item{ID: 1, Name: "a"}, &item{ID: 2, Name: "b"}, &item{ID: 3, Name: "c"}))
	db, set := open(t, s)
	ctx := context.Background()

	_, err := set.Delete(ctx, &item{ID: 1})
	require.NoError(t, err)
	_, err = set.Update(ctx, &item{ID: 3, Name: "C"})
	require.NoError(t, err)
	_, err = db.ApplyChanges(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "C"}, names(t, db, set))

	_, err = set.Update(ctx, &item{ID: 9})
	require.NoError(t, err)
	_, err = db.ApplyChanges(ctx)
	assert.ErrorIs(t, err, types.ErrEntityNotFound)
}

func TestApplyCommitsEditsMadeAfterStaging(t *testing.T) {
	s := newStore(t)
	db, set := open(t, s)
	ctx := context.Background()

	staged := &item{Name: "flour"}
	_, err := set.Create(ctx, staged)
	require.NoError(t, err)
	staged.ID = 7
	staged.Name = "rye flour"

	_, err = db.ApplyChanges(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"rye flour"}, names(t, db, set))

	staged.Name = "after commit"
	assert.Equal(t, []string{"rye flour"}, names(t, db, set), "commit stores a copy")

	_, err = set.Delete(ctx, &item{ID: 7})
	require.NoError(t, err)
	_, err = db.ApplyChanges(ctx)
	require.NoError(t, err, "the create was keyed by the ID set after staging")
	assert.Empty(t, names(t, db, set))
}

func TestReadsReturnCopies(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Seed(&item{ID: 1, Name: "flour"}))
	db, set := open(t, s)

	list, err := db.ToList(context.Background(), set.Query())
	require.NoError(t, err)
	list[0].(*item).Name = "changed"

	assert.Equal(t, []string{"flour"}, names(t, db, set))
}

func TestSingleOrDefault(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Seed(&item{ID: 1, Name: "a"}, &item{ID: 2, Name: "a"}))
	db, set := open(t, s)
	ctx := context.Background()

	_, found, err := db.SingleOrDefault(ctx, set.Query().Where(func(v any) bool { return v.(*item).ID == 5 }))
	require.NoError(t, err)
	assert.False(t, found)

	v, found, err := db.SingleOrDefault(ctx, set.Query().Where(func(v any) bool { return v.(*item).ID == 2 }))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 2, v.(*item).ID)

	_, _, err = db.SingleOrDefault(ctx, set.Query())
	assert.ErrorIs(t, err, types.ErrMultipleMatches)
}

func TestUnknownSetAndDuplicateRegistration(t *testing.T) {
	s := newStore(t)
	db, err := s.Open(context.Background())
	require.NoError(t, err)

	_, err = db.Set(reflect.TypeFor[item]())
	assert.ErrorIs(t, err, types.ErrUnknownSet)

	err = Register(s, "ID", func(i *item) int { return i.ID })
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestStageRejectsWrongType(t *testing.T) {
	s := newStore(t)
	_, set := open(t, s)

	_, err := set.Create(context.Background(), item{ID: 1})
	assert.ErrorIs(t, err, types.ErrTypeMismatch)
}

func TestDiscard(t *testing.T) {
	s := newStore(t)
	db, set := open(t, s)
	ctx := context.Background()

	_, err := set.Create(ctx, &item{ID: 1})
	require.NoError(t, err)
	db.Discard()

	n, err := db.ApplyChanges(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, s.Len(reflect.TypeFor[*item]()))
}
