package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/mesh-intelligence/pantry/pkg/types"
)

type jar struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Grams int    `json:"grams"`
}

func attached(t *testing.T) (*Backend, string) {
	t.Helper()
	dir := t.TempDir()
	b := NewBackend()
	if err := Register(b, "jars", func(j *jar) string { return j.ID }); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	t.Cleanup(func() { b.Detach() })
	return b, dir
}

func jarSet(t *testing.T, b *Backend) (*Context, types.EntitySet) {
	t.Helper()
	db, err := b.Open(context.Background())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	set, err := db.Set(reflect.TypeFor[*jar]())
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	return db.(*Context), set
}

func labels(t *testing.T, db *Context, set types.EntitySet) []string {
	t.Helper()
	list, err := db.ToList(context.Background(), set.Query())
	if err != nil {
		t.Fatalf("ToList failed: %v", err)
	}
	out := make([]string, len(list))
	for i, v := range list {
		out[i] = v.(*jar).Label
	}
	return out
}

func TestBackend_Attach(t *testing.T) {
	b, dir := attached(t)

	if _, err := os.Stat(filepath.Join(dir, DatabaseFile)); os.IsNotExist(err) {
		t.Errorf("%s not created", DatabaseFile)
	}
	err := b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir})
	if !errors.Is(err, ErrAlreadyAttached) {
		t.Errorf("expected ErrAlreadyAttached, got %v", err)
	}
}

func TestBackend_AttachRejectsInvalidConfig(t *testing.T) {
	b := NewBackend()
	if err := b.Attach(types.Config{Backend: types.BackendSQLite}); !errors.Is(err, types.ErrDataDirEmpty) {
		t.Errorf("expected ErrDataDirEmpty, got %v", err)
	}
	if err := b.Attach(types.Config{Backend: types.BackendMemory}); !errors.Is(err, types.ErrBackendUnknown) {
		t.Errorf("expected ErrBackendUnknown, got %v", err)
	}
}

func TestBackend_Detach(t *testing.T) {
	b, _ := attached(t)

	if err := b.Detach(); err != nil {
		t.Fatalf("Detach failed: %v", err)
	}
	if err := b.Detach(); err != nil {
		t.Errorf("second Detach should not error, got %v", err)
	}
	if _, err := b.Open(context.Background()); !errors.Is(err, ErrDetached) {
		t.Errorf("expected ErrDetached, got %v", err)
	}
}

func TestBackend_RegisterTwice(t *testing.T) {
	b, _ := attached(t)

	err := Register(b, "jars", func(j *jar) string { return j.ID })
	if !errors.Is(err, ErrSetRegistered) {
		t.Errorf("expected ErrSetRegistered, got %v", err)
	}
}

func TestContext_CRUD(t *testing.T) {
	b, _ := attached(t)
	db, set := jarSet(t, b)
	ctx := context.Background()

	if _, err := set.Create(ctx, &jar{ID: "j1", Label: "rice"}, &jar{ID: "j2", Label: "oats"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if got := labels(t, db, set); len(got) != 0 {
		t.Errorf("staged changes must not be visible, got %v", got)
	}
	n, err := db.ApplyChanges(ctx)
	if err != nil {
		t.Fatalf("ApplyChanges failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 writes, got %d", n)
	}
	if got := labels(t, db, set); !reflect.DeepEqual(got, []string{"rice", "oats"}) {
		t.Errorf("expected insertion order, got %v", got)
	}

	if _, err := set.Update(ctx, &jar{ID: "j1", Label: "brown rice", Grams: 500}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if _, err := set.Delete(ctx, &jar{ID: "j2"}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := db.ApplyChanges(ctx); err != nil {
		t.Fatalf("ApplyChanges failed: %v", err)
	}

	v, found, err := db.SingleOrDefault(ctx, set.Query())
	if err != nil || !found {
		t.Fatalf("SingleOrDefault: found=%v err=%v", found, err)
	}
	if got := v.(*jar); got.Label != "brown rice" || got.Grams != 500 {
		t.Errorf("unexpected jar %+v", got)
	}
}

func TestContext_ApplyIsAtomic(t *testing.T) {
	b, _ := attached(t)
	db, set := jarSet(t, b)
	ctx := context.Background()

	set.Create(ctx, &jar{ID: "j1", Label: "rice"})
	if _, err := db.ApplyChanges(ctx); err != nil {
		t.Fatalf("ApplyChanges failed: %v", err)
	}

	set.Create(ctx, &jar{ID: "j2", Label: "oats"}, &jar{ID: "j1", Label: "dupe"})
	if _, err := db.ApplyChanges(ctx); !errors.Is(err, types.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	if got := labels(t, db, set); !reflect.DeepEqual(got, []string{"rice"}) {
		t.Errorf("failed apply must roll back, got %v", got)
	}

	set.Update(ctx, &jar{ID: "missing"})
	if _, err := db.ApplyChanges(ctx); !errors.Is(err, types.ErrEntityNotFound) {
		t.Errorf("expected ErrEntityNotFound, got %v", err)
	}
}

func TestContext_EncodesAtApply(t *testing.T) {
	b, _ := attached(t)
	db, set := jarSet(t, b)
	ctx := context.Background()

	staged := &jar{Label: "rice"}
	if _, err := set.Create(ctx, staged); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	staged.ID = "j9"
	staged.Grams = 250
	if _, err := db.ApplyChanges(ctx); err != nil {
		t.Fatalf("ApplyChanges failed: %v", err)
	}

	v, found, err := db.SingleOrDefault(ctx, set.Query())
	if err != nil || !found {
		t.Fatalf("SingleOrDefault: found=%v err=%v", found, err)
	}
	if got := v.(*jar); got.ID != "j9" || got.Grams != 250 {
		t.Errorf("edits made after staging were not stored, got %+v", got)
	}

	set.Delete(ctx, &jar{ID: "j9"})
	if _, err := db.ApplyChanges(ctx); err != nil {
		t.Errorf("document should be keyed by the ID set after staging: %v", err)
	}
}

func TestContext_DataSurvivesReattach(t *testing.T) {
	b, dir := attached(t)
	db, set := jarSet(t, b)
	ctx := context.Background()

	set.Create(ctx, &jar{ID: "j1", Label: "rice"})
	if _, err := db.ApplyChanges(ctx); err != nil {
		t.Fatalf("ApplyChanges failed: %v", err)
	}
	if err := b.Detach(); err != nil {
		t.Fatalf("Detach failed: %v", err)
	}
	if err := b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	db, set = jarSet(t, b)
	if got := labels(t, db, set); !reflect.DeepEqual(got, []string{"rice"}) {
		t.Errorf("expected persisted jar, got %v", got)
	}
}

func TestContext_UnknownSet(t *testing.T) {
	b, _ := attached(t)
	db, err := b.Open(context.Background())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := db.Set(reflect.TypeFor[jar]()); !errors.Is(err, types.ErrUnknownSet) {
		t.Errorf("expected ErrUnknownSet, got %v", err)
	}
}
