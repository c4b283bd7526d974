package notes

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"
)

type fakeStore struct {
	mu    sync.Mutex
	notes map[string]Note
	err   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{notes: make(map[string]Note)}
}

func (f *fakeStore) List(context.Context) ([]Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []Note
	for _, n := range f.notes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) Get(_ context.Context, id string) (Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return Note{}, f.err
	}
	n, ok := f.notes[id]
	if !ok {
		return Note{}, ErrNotFound
	}
	return n, nil
}

func (f *fakeStore) Create(_ context.Context, n Note) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.notes[n.ID] = n
	return nil
}

func (f *fakeStore) Update(_ context.Context, n Note) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.notes[n.ID]; !ok {
		return ErrNotFound
	}
	f.notes[n.ID] = n
	return nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.notes[id]; !ok {
		return ErrNotFound
	}
	delete(f.notes, id)
	return nil
}

func newTestService(store Store) (*Service, *time.Time) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seq := 0
	svc := NewService(store,
		WithClock(func() time.Time { return now }),
		WithIDFunc(func() string {
			seq++
			return "n" + string(rune('0'+seq))
		}),
	)
	return svc, &now
}

func TestCreateTrimsAndStamps(t *testing.T) {
	store := newFakeStore()
	svc, now := newTestService(store)

	n, err := svc.Create(context.Background(), "  groceries ", "\tmilk\n")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if n.ID != "n1" || n.Title != "groceries" || n.Content != "milk" {
		t.Fatalf("note = %+v", n)
	}
	if !n.CreatedAt.Equal(*now) || !n.UpdatedAt.Equal(*now) {
		t.Fatalf("timestamps = %s / %s", n.CreatedAt, n.UpdatedAt)
	}
	if _, ok := store.notes["n1"]; !ok {
		t.Fatal("note not persisted")
	}
}

func TestCreateRejectsBlankFields(t *testing.T) {
	svc, _ := newTestService(newFakeStore())
	for _, tc := range [][2]string{{"", "body"}, {"title", ""}, {"   ", "  "}} {
		if _, err := svc.Create(context.Background(), tc[0], tc[1]); !errors.Is(err, ErrInvalidNote) {
			t.Fatalf("create(%q, %q) err = %v", tc[0], tc[1], err)
		}
	}
}

func TestListNeverNil(t *testing.T) {
	svc, _ := newTestService(newFakeStore())
	list, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list == nil {
		t.Fatal("list should be empty, not nil")
	}
}

func TestUpdateBumpsUpdatedAt(t *testing.T) {
	svc, now := newTestService(newFakeStore())
	ctx := context.Background()

	created, err := svc.Create(ctx, "a", "b")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	*now = now.Add(time.Minute)

	updated, err := svc.Update(ctx, created.ID, "a2", "b2")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "a2" || updated.Content != "b2" {
		t.Fatalf("updated = %+v", updated)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Fatal("update must not touch createdAt")
	}
	if !updated.UpdatedAt.Equal(*now) {
		t.Fatalf("updatedAt = %s, want %s", updated.UpdatedAt, *now)
	}
}

func TestUnknownIDsAreNotFound(t *testing.T) {
	svc, _ := newTestService(newFakeStore())
	ctx := context.Background()

	if _, err := svc.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get: %v", err)
	}
	if _, err := svc.Get(ctx, " "); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get blank: %v", err)
	}
	if _, err := svc.Update(ctx, "nope", "t", "c"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update: %v", err)
	}
	if err := svc.Delete(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete: %v", err)
	}
}

func TestUpdateValidatesBeforeLookup(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("should not be called")
	svc, _ := newTestService(store)

	if _, err := svc.Update(context.Background(), "x", "", "c"); !errors.Is(err, ErrInvalidNote) {
		t.Fatalf("err = %v", err)
	}
}

func TestStoreErrorsAreWrapped(t *testing.T) {
	boom := errors.New("connection refused")
	store := newFakeStore()
	store.err = boom
	svc, _ := newTestService(store)
	ctx := context.Background()

	if _, err := svc.List(ctx); !errors.Is(err, boom) {
		t.Fatalf("list: %v", err)
	}
	if _, err := svc.Create(ctx, "t", "c"); !errors.Is(err, boom) {
		t.Fatalf("create: %v", err)
	}
	err := svc.Delete(ctx, "x")
	if !errors.Is(err, boom) || errors.Is(err, ErrNotFound) {
		t.Fatalf("delete: %v", err)
	}
}

func TestDeleteRemoves(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)
	ctx := context.Background()

	n, _ := svc.Create(ctx, "t", "c")
	if err := svc.Delete(ctx, n.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(store.notes) != 0 {
		t.Fatal("note still stored")
	}
}

func TestNewServiceNilStorePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	NewService(nil)
}
