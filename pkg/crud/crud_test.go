package crud

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/pantry/internal/memory"
	"github.com/mesh-intelligence/pantry/pkg/key"
	"github.com/mesh-intelligence/pantry/pkg/profile"
	"github.com/mesh-intelligence/pantry/pkg/sorter"
	"github.com/mesh-intelligence/pantry/pkg/types"
)

type traced interface {
	Trace(step string)
}

type user struct {
	ID    int
	Name  string
	Team  string
	Trail string
}

func (u *user) Trace(step string) { u.Trail += step }

type newUser struct {
	ID   int
	Name string
	Team string
}

type userView struct {
	ID   int
	Name string
}

func userKey() key.Key { return key.MustField[*user]("ID") }

type fixture struct {
	engine *Engine
	store  *memory.Store
}

func newFixture(t *testing.T, opts []Option, profiles ...profile.Profile) *fixture {
	t.Helper()
	reg := profile.NewRegistry()
	require.NoError(t, reg.Add(profiles...))
	mem := memory.NewStore()
	require.NoError(t, memory.Register(mem, "ID", func(u *user) int { return u.ID }))
	return &fixture{
		engine: New(profile.NewStore(reg), mem.Open, opts...),
		store:  mem,
	}
}

func (f *fixture) seed(t *testing.T, users ...*user) {
	t.Helper()
	entities := make([]any, len(users))
	for i, u := range users {
		entities[i] = u
	}
	require.NoError(t, f.store.Seed(entities...))
}

func (f *fixture) users(t *testing.T) []*user {
	t.Helper()
	db, err := f.store.Open(context.Background())
	require.NoError(t, err)
	set, err := types.SetFor[*user](db)
	require.NoError(t, err)
	list, err := db.ToList(context.Background(), set.Query())
	require.NoError(t, err)
	out := make([]*user, len(list))
	for i, v := range list {
		out[i] = v.(*user)
	}
	return out
}

func names[T interface{ *user | userView }](vs []T) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		switch u := any(v).(type) {
		case *user:
			out[i] = u.Name
		case userView:
			out[i] = u.Name
		}
	}
	return out
}

// create

type createUser struct {
	ID   int
	Name string
}

func TestCreateUsesMapperWithoutCreator(t *testing.T) {
	f := newFixture(t, nil, profile.For[createUser]())

	resp, err := Create[createUser, *user, userView](f.engine).Handle(context.Background(), createUser{ID: 7, Name: "ada"})
	require.NoError(t, err)
	require.False(t, resp.HasErrors(), "%v", resp.Err())

	assert.Equal(t, userView{ID: 7, Name: "ada"}, resp.Result)
	require.Len(t, f.users(t), 1)
	assert.Equal(t, "ada", f.users(t)[0].Name)
}

func TestCreateWithoutMapperFails(t *testing.T) {
	f := newFixture(t, []Option{WithMapper(nil)}, profile.For[createUser]())

	resp, err := Create[createUser, *user, types.NoResult](f.engine).Handle(context.Background(), createUser{ID: 1})
	require.NoError(t, err)
	require.Len(t, resp.Errors, 1)
	assert.ErrorIs(t, resp.Errors[0], types.ErrCreateEntityFailed)
	assert.ErrorIs(t, resp.Errors[0], types.ErrNoMapper)
	assert.Empty(t, f.users(t))
}

type createUsers struct {
	Users []newUser
}

func (r createUsers) RequestItems() []newUser { return r.Users }

func TestCreateAllTracesActionsGeneralToSpecific(t *testing.T) {
	p := profile.ForBulk[createUsers, newUser]()
	profile.BulkEntity[*user](p).CreateEntityWith(func(_ context.Context, _ createUsers, it newUser) (*user, error) {
		return &user{ID: it.ID, Name: it.Name}, nil
	})
	p.AfterCreating(func(_ context.Context, _ createUsers, e any) error {
		e.(traced).Trace("PostCreate/")
		return nil
	})
	profile.Entity[traced](p.RequestProfile).AfterCreating(func(_ context.Context, _ createUsers, e traced) error {
		e.Trace("Entity/")
		return nil
	})
	profile.Entity[*user](p.RequestProfile).AfterCreating(func(_ context.Context, _ createUsers, u *user) error {
		u.Trace("User[" + u.Name + "]")
		return nil
	})
	f := newFixture(t, nil, p)

	req := createUsers{Users: []newUser{{ID: 2, Name: "zoe"}, {ID: 1, Name: "abe"}}}
	resp, err := CreateAll[createUsers, *user, *user](f.engine).Handle(context.Background(), req)
	require.NoError(t, err)
	require.False(t, resp.HasErrors(), "%v", resp.Err())

	require.Len(t, resp.Result, 2)
	assert.Equal(t, []string{"zoe", "abe"}, names(resp.Result))
	assert.Equal(t, "PostCreate/Entity/User[zoe]", resp.Result[0].Trail)
	assert.Equal(t, "PostCreate/Entity/User[abe]", resp.Result[1].Trail)
	assert.Len(t, f.users(t), 2)
}

func TestCreateAllSkipsNilItems(t *testing.T) {
	type pointerUsers struct{ Users []*newUser }
	p := profile.ForBulk[pointerUsers, *newUser]().UseItems(func(r pointerUsers) []*newUser { return r.Users })
	profile.BulkEntity[*user](p).CreateEntityWith(func(_ context.Context, _ pointerUsers, it *newUser) (*user, error) {
		return &user{ID: it.ID, Name: it.Name}, nil
	})
	f := newFixture(t, nil, p)

	req := pointerUsers{Users: []*newUser{{ID: 1, Name: "a"}, nil, {ID: 2, Name: "b"}}}
	resp, err := CreateAll[pointerUsers, *user, *user](f.engine).Handle(context.Background(), req)
	require.NoError(t, err)
	require.False(t, resp.HasErrors())
	assert.Equal(t, []string{"a", "b"}, names(resp.Result))
}

func TestHookEditsAreCommitted(t *testing.T) {
	stamp := func(_ context.Context, _ any, u *user) error {
		u.Team = "stamped"
		return nil
	}

	t.Run("create", func(t *testing.T) {
		p := profile.For[createUser]()
		profile.Entity[*user](p).
			AddEntityHookFunc(func(ctx context.Context, r createUser, u *user) error { return stamp(ctx, r, u) }).
			AfterCreating(func(_ context.Context, _ createUser, u *user) error {
				u.Trace("created")
				return nil
			})
		f := newFixture(t, nil, p)

		resp, err := Create[createUser, *user, *user](f.engine).Handle(context.Background(), createUser{ID: 1, Name: "ada"})
		require.NoError(t, err)
		require.False(t, resp.HasErrors(), "%v", resp.Err())
		assert.Equal(t, "stamped", resp.Result.Team)
		assert.Equal(t, []*user{{ID: 1, Name: "ada", Team: "stamped", Trail: "created"}}, f.users(t))
	})

	t.Run("update", func(t *testing.T) {
		p := renameProfile()
		profile.Entity[*user](p).
			AddEntityHookFunc(func(ctx context.Context, r renameUser, u *user) error { return stamp(ctx, r, u) }).
			AfterUpdating(func(_ context.Context, _ renameUser, u *user) error {
				u.Trace("updated")
				return nil
			})
		f := newFixture(t, nil, p)
		f.seed(t, &user{ID: 1, Name: "ada", Team: "red"})

		_, err := Update[renameUser, *user, *user](f.engine).Handle(context.Background(), renameUser{ID: 1, Name: "grace"})
		require.NoError(t, err)
		assert.Equal(t, []*user{{ID: 1, Name: "grace", Team: "stamped", Trail: "updated"}}, f.users(t))
	})
}

func TestCreateAllFailureCarriesUncommittedEntities(t *testing.T) {
	boom := errors.New("boom")
	p := profile.ForBulk[createUsers, newUser]()
	profile.BulkEntity[*user](p).CreateEntityWith(func(_ context.Context, _ createUsers, it newUser) (*user, error) {
		if it.ID == 3 {
			return nil, boom
		}
		return &user{ID: it.ID, Name: it.Name}, nil
	})
	f := newFixture(t, nil, p)

	req := createUsers{Users: []newUser{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}, {ID: 3, Name: "c"}}}
	resp, err := CreateAll[createUsers, *user, userView](f.engine).Handle(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resp.Errors, 1)
	assert.ErrorIs(t, resp.Errors[0], types.ErrCreateEntityFailed)
	assert.Equal(t, []userView{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}}, resp.Result)
	assert.Equal(t, []userView{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}}, resp.Errors[0].Result)
	assert.Empty(t, f.users(t), "nothing before the failing item is committed")
}

func TestCancellationBeforeMutationLeavesStoreUnchanged(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := profile.For[createUser]().AddRequestHookFunc(func(context.Context, createUser) error {
		cancel()
		return nil
	})
	f := newFixture(t, nil, p)

	resp, err := Create[createUser, *user, *user](f.engine).Handle(ctx, createUser{ID: 1, Name: "late"})
	require.NoError(t, err)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, types.KindRequestCanceled, resp.Errors[0].Kind)
	assert.ErrorIs(t, resp.Errors[0], context.Canceled)
	assert.Empty(t, f.users(t))
}

func TestFailureKinds(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name  string
		setup func(p *profile.RequestProfile[createUser])
		want  error
	}{
		{
			name: "request hook",
			setup: func(p *profile.RequestProfile[createUser]) {
				p.AddRequestHookFunc(func(context.Context, createUser) error { return boom })
			},
			want: types.ErrHookFailed,
		},
		{
			name: "entity hook",
			setup: func(p *profile.RequestProfile[createUser]) {
				profile.Entity[*user](p).AddEntityHookFunc(func(context.Context, createUser, *user) error { return boom })
			},
			want: types.ErrHookFailed,
		},
		{
			name: "action",
			setup: func(p *profile.RequestProfile[createUser]) {
				profile.Entity[*user](p).BeforeCreating(func(context.Context, createUser, *user) error { return boom })
			},
			want: types.ErrRequestFailed,
		},
		{
			name: "creator",
			setup: func(p *profile.RequestProfile[createUser]) {
				profile.Entity[*user](p).CreateEntityWith(func(context.Context, createUser) (*user, error) { return nil, boom })
			},
			want: types.ErrCreateEntityFailed,
		},
		{
			name: "result transform",
			setup: func(p *profile.RequestProfile[createUser]) {
				profile.ResultWith(profile.Entity[*user](p), func(context.Context, *user) (userView, error) {
					return userView{}, boom
				})
			},
			want: types.ErrCreateResultFailed,
		},
		{
			name: "custom kind passes through",
			setup: func(p *profile.RequestProfile[createUser]) {
				profile.Entity[*user](p).BeforeCreating(func(_ context.Context, req createUser, _ *user) error {
					return types.NewError(types.KindFailedToFind, req, boom)
				})
			},
			want: types.ErrFailedToFind,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := profile.For[createUser]()
			tt.setup(p)
			f := newFixture(t, nil, p)

			resp, err := Create[createUser, *user, userView](f.engine).Handle(context.Background(), createUser{ID: 1, Name: "x"})
			require.NoError(t, err)
			require.Len(t, resp.Errors, 1)
			assert.ErrorIs(t, resp.Errors[0], tt.want)
			assert.ErrorIs(t, resp.Errors[0], boom)
		})
	}
}

func TestNilRequestIsUnmodeled(t *testing.T) {
	f := newFixture(t, nil)

	_, err := Create[*createUser, *user, *user](f.engine).Handle(context.Background(), nil)
	assert.ErrorIs(t, err, types.ErrNilRequest)
}

// get

type getUser struct{ ID int }

func getProfile() *profile.RequestProfile[getUser] {
	p := profile.For[getUser]()
	profile.Entity[*user](p).UseKeys(key.MustField[getUser]("ID"), userKey())
	return p
}

func TestGetNotFoundPolicies(t *testing.T) {
	t.Run("error by default", func(t *testing.T) {
		f := newFixture(t, nil, getProfile())

		resp, err := Get[getUser, *user, *user](f.engine).Handle(context.Background(), getUser{ID: 9})
		require.NoError(t, err)
		require.Len(t, resp.Errors, 1)
		assert.ErrorIs(t, resp.Errors[0], types.ErrFailedToFind)
		assert.Nil(t, resp.Result)
	})

	t.Run("silent returns the default", func(t *testing.T) {
		p := getProfile()
		profile.Entity[*user](p).
			ConfigureErrors(types.ErrorConfig{FailedToFindInGetIsError: types.Bool(false)}).
			UseDefault(&user{Name: "nobody"})
		f := newFixture(t, nil, p)

		resp, err := Get[getUser, *user, userView](f.engine).Handle(context.Background(), getUser{ID: 9})
		require.NoError(t, err)
		assert.False(t, resp.HasErrors())
		assert.Equal(t, userView{Name: "nobody"}, resp.Result)
	})
}

func TestGetRunsEntityAndResultHooks(t *testing.T) {
	p := getProfile()
	var seen []string
	profile.Entity[*user](p).AddEntityHookFunc(func(_ context.Context, _ getUser, u *user) error {
		seen = append(seen, u.Name)
		return nil
	})
	profile.AddResultHookFunc(p, func(_ context.Context, _ getUser, v userView) (userView, error) {
		v.Name = strings.ToUpper(v.Name)
		return v, nil
	})
	f := newFixture(t, nil, p)
	f.seed(t, &user{ID: 1, Name: "ada"}, &user{ID: 2, Name: "bob"})

	resp, err := Get[getUser, *user, userView](f.engine).Handle(context.Background(), getUser{ID: 2})
	require.NoError(t, err)
	require.False(t, resp.HasErrors())
	assert.Equal(t, userView{ID: 2, Name: "BOB"}, resp.Result)
	assert.Equal(t, []string{"bob"}, seen)
}

type listUsers struct {
	Team   string
	Page   int
	Size   int
	Column string
}

func (r listUsers) Paging() (int, int) { return r.Page, r.Size }

func listProfile() *profile.RequestProfile[listUsers] {
	p := profile.For[listUsers]()
	profile.Entity[*user](p).
		FilterWhen(
			func(r listUsers) bool { return r.Team != "" },
			func(r listUsers, u *user) bool { return u.Team == r.Team },
		).
		SortWith(sorter.Basic(sorter.Always(sorter.By("Name", func(u *user) string { return u.Name }))))
	return p
}

func seedTeam(t *testing.T, f *fixture) {
	t.Helper()
	f.seed(t,
		&user{ID: 1, Name: "eve", Team: "red"},
		&user{ID: 2, Name: "bob", Team: "blue"},
		&user{ID: 3, Name: "dan", Team: "red"},
		&user{ID: 4, Name: "amy", Team: "red"},
		&user{ID: 5, Name: "cat", Team: "blue"},
	)
}

func TestGetAllFiltersAndSorts(t *testing.T) {
	f := newFixture(t, nil, listProfile())
	seedTeam(t, f)

	resp, err := GetAll[listUsers, *user, userView](f.engine).Handle(context.Background(), listUsers{Team: "red"})
	require.NoError(t, err)
	require.False(t, resp.HasErrors())
	assert.Equal(t, []string{"amy", "dan", "eve"}, names(resp.Result))

	resp, err = GetAll[listUsers, *user, userView](f.engine).Handle(context.Background(), listUsers{Team: "green"})
	require.NoError(t, err)
	assert.False(t, resp.HasErrors(), "an empty list is not an error by default")
	assert.Empty(t, resp.Result)
}

func TestGetAllProjection(t *testing.T) {
	p := listProfile()
	hooked := 0
	ep := profile.Entity[*user](p).
		ConfigureOptions(types.Options{UseProjection: types.Bool(true)}).
		AddEntityHookFunc(func(context.Context, listUsers, *user) error {
			hooked++
			return nil
		})
	profile.ResultWith(ep, func(_ context.Context, u *user) (string, error) {
		return u.Team + ":" + u.Name, nil
	})
	f := newFixture(t, nil, p)
	seedTeam(t, f)

	resp, err := GetAll[listUsers, *user, string](f.engine).Handle(context.Background(), listUsers{Team: "blue"})
	require.NoError(t, err)
	require.False(t, resp.HasErrors())
	assert.Equal(t, []string{"blue:bob", "blue:cat"}, resp.Result)
	assert.Zero(t, hooked, "projected reads never materialize entities")
}

func TestPagedGetAll(t *testing.T) {
	f := newFixture(t, nil, listProfile())
	seedTeam(t, f)

	resp, err := PagedGetAll[listUsers, *user, userView](f.engine).Handle(context.Background(), listUsers{Page: 2, Size: 2})
	require.NoError(t, err)
	require.False(t, resp.HasErrors())

	got := resp.Result
	assert.Equal(t, []string{"cat", "dan"}, names(got.Items))
	assert.Equal(t, 2, got.PageNumber)
	assert.Equal(t, 2, got.PageSize)
	assert.Equal(t, 3, got.PageCount)
	assert.Equal(t, 5, got.TotalItemCount)
}

type findPage struct {
	ID   int
	Size int
}

func (r findPage) Paging() (int, int) { return 0, r.Size }

func TestPagedGetFindsThePageOfTheSelectedEntity(t *testing.T) {
	p := profile.For[findPage]()
	profile.Entity[*user](p).
		UseKeys(key.MustField[findPage]("ID"), userKey()).
		SortWith(sorter.Basic(sorter.Always(sorter.By("Name", func(u *user) string { return u.Name }))))
	f := newFixture(t, nil, p)
	seedTeam(t, f)

	resp, err := PagedGet[findPage, *user, userView](f.engine).Handle(context.Background(), findPage{ID: 1, Size: 2})
	require.NoError(t, err)
	require.False(t, resp.HasErrors())
	assert.Equal(t, []string{"eve"}, names(resp.Result.Items))
	assert.Equal(t, 3, resp.Result.PageNumber)
	assert.Equal(t, 3, resp.Result.PageCount)

	resp, err = PagedGet[findPage, *user, userView](f.engine).Handle(context.Background(), findPage{ID: 42, Size: 2})
	require.NoError(t, err)
	require.Len(t, resp.Errors, 1)
	assert.ErrorIs(t, resp.Errors[0], types.ErrFailedToFind)
}

// update and save

type renameUser struct {
	ID   int
	Name string
}

func renameProfile() *profile.RequestProfile[renameUser] {
	p := profile.For[renameUser]()
	profile.Entity[*user](p).
		UseKeys(key.MustField[renameUser]("ID"), userKey()).
		UpdateEntityWith(func(_ context.Context, r renameUser, u *user) (*user, error) {
			u.Name = r.Name
			return u, nil
		}).
		CreateEntityWith(func(_ context.Context, r renameUser) (*user, error) {
			return &user{ID: r.ID, Name: r.Name}, nil
		})
	return p
}

func TestUpdate(t *testing.T) {
	f := newFixture(t, nil, renameProfile())
	f.seed(t, &user{ID: 1, Name: "ada", Team: "red"})

	resp, err := Update[renameUser, *user, *user](f.engine).Handle(context.Background(), renameUser{ID: 1, Name: "grace"})
	require.NoError(t, err)
	require.False(t, resp.HasErrors())
	assert.Equal(t, &user{ID: 1, Name: "grace", Team: "red"}, f.users(t)[0])

	resp, err = Update[renameUser, *user, *user](f.engine).Handle(context.Background(), renameUser{ID: 2, Name: "x"})
	require.NoError(t, err)
	require.Len(t, resp.Errors, 1)
	assert.ErrorIs(t, resp.Errors[0], types.ErrFailedToFind)
}

func TestSaveCreatesOrUpdates(t *testing.T) {
	p := renameProfile()
	var trail []string
	record := func(step string) func(context.Context, renameUser, *user) error {
		return func(context.Context, renameUser, *user) error {
			trail = append(trail, step)
			return nil
		}
	}
	profile.Entity[*user](p).
		BeforeSaving(record("before save")).
		AfterSaving(record("after save")).
		BeforeCreating(record("before create")).
		AfterCreating(record("after create")).
		BeforeUpdating(record("before update")).
		ConfigureOptions(types.Options{SuppressUpdateActionsInSave: types.Bool(true)})
	f := newFixture(t, nil, p)
	save := Save[renameUser, *user, *user](f.engine)

	_, err := save.Handle(context.Background(), renameUser{ID: 1, Name: "ada"})
	require.NoError(t, err)
	assert.Equal(t, []string{"before save", "before create", "after create", "after save"}, trail)

	trail = nil
	_, err = save.Handle(context.Background(), renameUser{ID: 1, Name: "grace"})
	require.NoError(t, err)
	assert.Equal(t, []string{"before save", "after save"}, trail, "update actions are suppressed inside save")

	require.Len(t, f.users(t), 1)
	assert.Equal(t, "grace", f.users(t)[0].Name)
}

// delete

type deleteUser struct{ ID int }

func TestDeleteMissingIsSilentWhenConfigured(t *testing.T) {
	p := profile.For[deleteUser]()
	profile.Entity[*user](p).
		UseKeys(key.MustField[deleteUser]("ID"), userKey()).
		ConfigureErrors(types.ErrorConfig{FailedToFindInDeleteIsError: types.Bool(false)})
	f := newFixture(t, nil, p)
	f.seed(t, &user{ID: 1, Name: "ada"})

	resp, err := Delete[deleteUser, *user, *user](f.engine).Handle(context.Background(), deleteUser{ID: 99})
	require.NoError(t, err)
	assert.False(t, resp.HasErrors())
	assert.Nil(t, resp.Result)
	assert.Equal(t, []*user{{ID: 1, Name: "ada"}}, f.users(t))
}

func TestDeleteAllBySelection(t *testing.T) {
	type clearTeam struct{ Team string }
	p := profile.For[clearTeam]()
	profile.Entity[*user](p).SelectBy(func(r clearTeam, u *user) bool { return u.Team == r.Team })
	f := newFixture(t, nil, p)
	seedTeam(t, f)

	resp, err := DeleteAll[clearTeam, *user, types.NoResult](f.engine).Handle(context.Background(), clearTeam{Team: "red"})
	require.NoError(t, err)
	require.False(t, resp.HasErrors())
	assert.Len(t, resp.Result, 3)
	assert.Equal(t, []string{"bob", "cat"}, names(f.users(t)))
}

// bulk joins

type userBatch struct {
	Team  string
	Users []newUser
}

func (r userBatch) RequestItems() []newUser { return r.Users }

type counts struct{ created, updated, deleted int }

func batchProfile(c *counts) *profile.BulkProfile[userBatch, newUser] {
	p := profile.ForBulk[userBatch, newUser]()
	profile.BulkEntity[*user](p).
		UseKeys(key.MustField[newUser]("ID"), userKey()).
		CreateEntityWith(func(_ context.Context, r userBatch, it newUser) (*user, error) {
			return &user{ID: it.ID, Name: it.Name, Team: r.Team}, nil
		}).
		UpdateEntityWith(func(_ context.Context, _ userBatch, it newUser, u *user) (*user, error) {
			u.Name = it.Name
			return u, nil
		})
	ep := profile.Entity[*user](p.RequestProfile).
		FilterOn(func(r userBatch, u *user) bool { return u.Team == r.Team })
	ep.AfterCreating(func(context.Context, userBatch, *user) error {
		c.created++
		return nil
	})
	ep.AfterUpdating(func(context.Context, userBatch, *user) error {
		c.updated++
		return nil
	})
	ep.AfterDeleting(func(context.Context, userBatch, *user) error {
		c.deleted++
		return nil
	})
	return p
}

func TestMergeKeepsItemOrder(t *testing.T) {
	var c counts
	f := newFixture(t, nil, batchProfile(&c))
	f.seed(t, &user{ID: 1, Name: "old", Team: "red"})

	req := userBatch{Team: "red", Users: []newUser{{ID: 3, Name: "new"}, {ID: 1, Name: "renamed"}}}
	resp, err := Merge[userBatch, *user, userView](f.engine).Handle(context.Background(), req)
	require.NoError(t, err)
	require.False(t, resp.HasErrors())

	assert.Equal(t, []userView{{ID: 3, Name: "new"}, {ID: 1, Name: "renamed"}}, resp.Result)
	assert.Equal(t, counts{created: 1, updated: 1}, c)
	assert.Equal(t, []string{"renamed", "new"}, names(f.users(t)))
}

func TestSynchronize(t *testing.T) {
	var c counts
	f := newFixture(t, nil, batchProfile(&c))
	f.seed(t,
		&user{ID: 1, Name: "a", Team: "red"},
		&user{ID: 2, Name: "b", Team: "red"},
		&user{ID: 3, Name: "c", Team: "red"},
		&user{ID: 4, Name: "d", Team: "red"},
		&user{ID: 5, Name: "e", Team: "red"},
		&user{ID: 50, Name: "outsider", Team: "blue"},
	)

	req := userBatch{Team: "red", Users: []newUser{
		{ID: 2, Name: "B"},
		{ID: 6, Name: "f"},
		{ID: 4, Name: "D"},
		{ID: 7, Name: "g"},
		{ID: 8, Name: "h"},
	}}
	resp, err := Synchronize[userBatch, *user, userView](f.engine).Handle(context.Background(), req)
	require.NoError(t, err)
	require.False(t, resp.HasErrors(), "%v", resp.Err())

	assert.Equal(t, counts{created: 3, updated: 2, deleted: 3}, c)
	assert.Equal(t, []string{"B", "f", "D", "g", "h"}, names(resp.Result))
	assert.ElementsMatch(t, []string{"B", "D", "outsider", "f", "g", "h"}, names(f.users(t)))
}

func TestUpdateAll(t *testing.T) {
	var c counts
	f := newFixture(t, nil, batchProfile(&c))
	f.seed(t, &user{ID: 1, Name: "a", Team: "red"}, &user{ID: 2, Name: "b", Team: "red"})

	req := userBatch{Team: "red", Users: []newUser{{ID: 2, Name: "B"}, {ID: 9, Name: "ghost"}}}
	resp, err := UpdateAll[userBatch, *user, userView](f.engine).Handle(context.Background(), req)
	require.NoError(t, err)
	require.False(t, resp.HasErrors(), "unmatched items are silent in bulk updates")
	assert.Equal(t, []userView{{ID: 2, Name: "B"}}, resp.Result)
	assert.Equal(t, counts{updated: 1}, c)
}

func TestBulkPipelines(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(p *profile.BulkProfile[userBatch, newUser], trail *[]string)
		handler func(*Engine) Handler[userBatch, []userView]
		users   []newUser
		want    []userView
		wantErr error
		counts  counts
		stored  []string
		trail   []string
	}{
		{
			name:    "delete all by key membership",
			handler: DeleteAll[userBatch, *user, userView],
			users:   []newUser{{ID: 1}, {ID: 9}},
			want:    []userView{{ID: 1, Name: "a"}},
			counts:  counts{deleted: 1},
			stored:  []string{"b"},
		},
		{
			name: "update all with unmatched items as errors",
			setup: func(p *profile.BulkProfile[userBatch, newUser], _ *[]string) {
				profile.Entity[*user](p.RequestProfile).
					ConfigureErrors(types.ErrorConfig{FailedToFindInUpdateIsError: types.Bool(true)})
			},
			handler: UpdateAll[userBatch, *user, userView],
			users:   []newUser{{ID: 2, Name: "B"}, {ID: 9, Name: "ghost"}},
			wantErr: types.ErrFailedToFind,
			stored:  []string{"a", "b"},
		},
		{
			name:    "synchronize with repeated keys",
			handler: Synchronize[userBatch, *user, userView],
			users:   []newUser{{ID: 1, Name: "x"}, {ID: 1, Name: "y"}},
			want:    []userView{{ID: 1, Name: "y"}, {ID: 1, Name: "y"}},
			counts:  counts{updated: 2, deleted: 1},
			stored:  []string{"y"},
		},
		{
			name: "item hooks run in order before any entity is built",
			setup: func(p *profile.BulkProfile[userBatch, newUser], trail *[]string) {
				p.RequestProfile.AddRequestHookFunc(func(context.Context, userBatch) error {
					*trail = append(*trail, "request")
					return nil
				})
				p.AddItemHookFunc(func(_ context.Context, _ userBatch, it newUser) (newUser, error) {
					*trail = append(*trail, "trim:"+it.Name)
					it.Name = strings.TrimSpace(it.Name)
					return it, nil
				})
				p.AddItemHookFunc(func(_ context.Context, _ userBatch, it newUser) (newUser, error) {
					*trail = append(*trail, "upper:"+it.Name)
					it.Name = strings.ToUpper(it.Name)
					return it, nil
				})
				profile.Entity[*user](p.RequestProfile).BeforeCreating(func(_ context.Context, _ userBatch, u *user) error {
					*trail = append(*trail, "create:"+u.Name)
					return nil
				})
			},
			handler: CreateAll[userBatch, *user, userView],
			users:   []newUser{{ID: 3, Name: " c "}, {ID: 4, Name: "d"}},
			want:    []userView{{ID: 3, Name: "C"}, {ID: 4, Name: "D"}},
			counts:  counts{created: 2},
			stored:  []string{"a", "b", "C", "D"},
			trail:   []string{"request", "trim: c ", "upper:c", "trim:d", "upper:d", "create:C", "create:D"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				c     counts
				trail []string
			)
			p := batchProfile(&c)
			if tt.setup != nil {
				tt.setup(p, &trail)
			}
			f := newFixture(t, nil, p)
			f.seed(t, &user{ID: 1, Name: "a", Team: "red"}, &user{ID: 2, Name: "b", Team: "red"})

			resp, err := tt.handler(f.engine).Handle(context.Background(), userBatch{Team: "red", Users: tt.users})
			require.NoError(t, err)
			if tt.wantErr != nil {
				require.Len(t, resp.Errors, 1)
				assert.ErrorIs(t, resp.Errors[0], tt.wantErr)
			} else {
				require.False(t, resp.HasErrors(), "%v", resp.Err())
				assert.Equal(t, tt.want, resp.Result)
			}
			assert.Equal(t, tt.counts, c)
			assert.Equal(t, tt.stored, names(f.users(t)))
			assert.Equal(t, tt.trail, trail)
		})
	}
}

func TestBulkWithoutKeysIsUnmodeled(t *testing.T) {
	p := profile.ForBulk[userBatch, newUser]()
	f := newFixture(t, nil, p)

	_, err := Merge[userBatch, *user, *user](f.engine).Handle(context.Background(), userBatch{Users: []newUser{{ID: 1}}})
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

// error handlers

type forgiving struct{ types.DefaultErrorHandler }

func (forgiving) HandleFailedToFind(*types.Error) *types.Response {
	return types.Success(userView{Name: "fallback"})
}

func TestErrorHandlerPrecedence(t *testing.T) {
	t.Run("engine handler", func(t *testing.T) {
		f := newFixture(t, []Option{WithErrorHandler(func() types.ErrorHandler { return forgiving{} })}, getProfile())

		resp, err := Get[getUser, *user, userView](f.engine).Handle(context.Background(), getUser{ID: 1})
		require.NoError(t, err)
		assert.False(t, resp.HasErrors())
		assert.Equal(t, "fallback", resp.Result.Name)
	})

	t.Run("profile handler wins", func(t *testing.T) {
		p := getProfile().UseErrorHandler(types.DefaultErrorHandlerFactory)
		f := newFixture(t, []Option{WithErrorHandler(func() types.ErrorHandler { return forgiving{} })}, p)

		resp, err := Get[getUser, *user, userView](f.engine).Handle(context.Background(), getUser{ID: 1})
		require.NoError(t, err)
		assert.True(t, resp.HasErrors())
	})

	t.Run("mismatched handler result", func(t *testing.T) {
		f := newFixture(t, []Option{WithErrorHandler(func() types.ErrorHandler { return forgiving{} })}, getProfile())

		_, err := Get[getUser, *user, *user](f.engine).Handle(context.Background(), getUser{ID: 1})
		assert.ErrorIs(t, err, types.ErrTypeMismatch)
	})
}

func TestHandlersShareTheStore(t *testing.T) {
	f := newFixture(t, nil, getProfile())

	_, err := Get[getUser, *user, *user](f.engine).Handle(context.Background(), getUser{ID: 1})
	require.NoError(t, err)

	cfg, err := f.engine.Store().Config(reflect.TypeFor[getUser]())
	require.NoError(t, err)
	assert.Equal(t, []reflect.Type{reflect.TypeFor[*user]()}, cfg.EntityTypes())
}
