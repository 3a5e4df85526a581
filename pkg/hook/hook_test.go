package hook

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/pantry/pkg/typeset"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

type createUser struct{ Name string }

type user struct{ Name string }

type named interface{ GetName() string }

func (r createUser) GetName() string { return r.Name }

// counter counts the runs of one instance.
type counter struct{ runs int }

func (c *counter) HandleRequest(context.Context, createUser) error {
	c.runs++
	return nil
}

// upper is activated fresh for every run.
type upper struct{ seen int }

func (u *upper) HandleItem(_ context.Context, _ createUser, item user) (user, error) {
	u.seen++
	if u.seen > 1 {
		return item, errors.New("instance reused")
	}
	item.Name = strings.ToUpper(item.Name)
	return item, nil
}

func TestRequestHookFromInstanceIsShared(t *testing.T) {
	c := &counter{}
	h := FromRequest[createUser](c)

	require.NoError(t, RunRequests(context.Background(), []Request{h, h}, createUser{}))
	assert.Equal(t, 2, c.runs)
	assert.Equal(t, typeset.Of[createUser](), h.RequestType())
}

func TestItemHookFromTypeIsActivatedPerRun(t *testing.T) {
	h := NewItem[createUser, user, upper]()

	ctx := context.Background()
	first, err := RunItems(ctx, []Item{h}, createUser{}, user{Name: "ann"})
	require.NoError(t, err)
	second, err := RunItems(ctx, []Item{h}, createUser{}, user{Name: "bob"})
	require.NoError(t, err)

	assert.Equal(t, user{Name: "ANN"}, first)
	assert.Equal(t, user{Name: "BOB"}, second)
	assert.Equal(t, typeset.Of[user](), h.ItemType())
}

func TestHookDeclaredForInterfaceRunsForConcreteRequest(t *testing.T) {
	var trail []string
	h := FromRequest[named](RequestFunc[named](func(_ context.Context, r named) error {
		trail = append(trail, r.GetName())
		return nil
	}))

	require.NoError(t, h.Run(context.Background(), createUser{Name: "ann"}))
	assert.Equal(t, []string{"ann"}, trail)
	assert.True(t, typeset.Assignable(typeset.Of[createUser](), h.RequestType()))
}

func TestHooksRunInOrderAndStopOnError(t *testing.T) {
	var trail []string
	boom := errors.New("boom")
	step := func(name string, err error) Entity {
		return FromEntity[createUser, user](EntityFunc[createUser, user](func(context.Context, createUser, user) error {
			trail = append(trail, name)
			return err
		}))
	}

	err := RunEntities(context.Background(), []Entity{step("a", nil), step("b", boom), step("c", nil)}, createUser{}, user{})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a", "b"}, trail)
}

func TestEntityHookRejectsWrongEntity(t *testing.T) {
	h := FromEntity[createUser, user](EntityFunc[createUser, user](func(context.Context, createUser, user) error { return nil }))

	err := h.Run(context.Background(), createUser{}, "not a user")
	assert.ErrorIs(t, err, types.ErrTypeMismatch)
}

func TestResultHookSkipsOtherResultTypes(t *testing.T) {
	h := FromResult[createUser, string](ResultFunc[createUser, string](func(_ context.Context, _ createUser, s string) (string, error) {
		return s + "!", nil
	}))

	got, err := RunResults(context.Background(), []Result{h, h}, createUser{}, "hi")
	require.NoError(t, err)
	assert.Equal(t, "hi!!", got)

	got, err = h.Run(context.Background(), createUser{}, 42)
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestRunnersStopWhenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &counter{}

	err := RunRequests(ctx, []Request{FromRequest[createUser](c)}, createUser{})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, c.runs)
}
