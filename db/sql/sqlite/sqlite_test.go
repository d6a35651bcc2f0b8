package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/adeilh/carefeed/cache"
)

func openTemp(t *testing.T) *Backend {
	t.Helper()
	b, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "cache.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := Open(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestBackendCRUD(t *testing.T) {
	ctx := context.Background()
	b := openTemp(t)

	if _, err := b.Get(ctx, "missing"); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}
	if err := b.Set(ctx, "a_1", []byte("one")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := b.Set(ctx, "a_1", []byte("uno")); err != nil {
		t.Fatalf("overwrite Set() error = %v", err)
	}
	if err := b.Set(ctx, "a_2", []byte("two")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := b.Set(ctx, "b_1", []byte("other")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := b.Get(ctx, "a_1")
	if err != nil || string(got) != "uno" {
		t.Fatalf("Get() = %q, %v", got, err)
	}

	keys, err := b.Keys(ctx, "a_")
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if want := []string{"a_1", "a_2"}; !reflect.DeepEqual(keys, want) {
		t.Fatalf("Keys() = %v, want %v", keys, want)
	}

	if err := b.Delete(ctx, "a_1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := b.Delete(ctx, "a_1"); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestKeysTreatsLikeWildcardsLiterally(t *testing.T) {
	ctx := context.Background()
	b := openTemp(t)

	for _, k := range []string{"p%_x", "pa_x", "p%_y"} {
		if err := b.Set(ctx, k, []byte("v")); err != nil {
			t.Fatalf("Set(%q) error = %v", k, err)
		}
	}
	keys, err := b.Keys(ctx, "p%_")
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if want := []string{"p%_x", "p%_y"}; !reflect.DeepEqual(keys, want) {
		t.Fatalf("Keys() = %v, want %v", keys, want)
	}
}

func TestBackendPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	first, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	store := cache.NewStore(first)
	store.Set(ctx, "videos_cache", []int{3, 2, 1})
	if err := first.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	second, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer second.Close()

	got, ok := cache.Load[[]int](ctx, cache.NewStore(second), "videos_cache")
	if !ok || !reflect.DeepEqual(got, []int{3, 2, 1}) {
		t.Fatalf("Load() after reopen = %v, %v", got, ok)
	}
}

func TestBackendStaleReadSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base

	b, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer b.Close()

	store := cache.NewStore(b, cache.WithClock(func() time.Time { return now }))
	store.Set(ctx, "faq_cache", "answer")
	now = base.Add(48 * time.Hour)

	if _, ok := store.Get(ctx, "faq_cache"); ok {
		t.Fatalf("expected expiry")
	}
	if got, _, ok := cache.LoadStale[string](ctx, store, "faq_cache"); !ok || got != "answer" {
		t.Fatalf("LoadStale() = %q, %v", got, ok)
	}
}
