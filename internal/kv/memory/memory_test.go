package memory

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"budgetbuddy/internal/kv"
)

func TestStoreBasicOperations(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, ok, err := s.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}
	if err := s.Set(ctx, "a", "1"); err != nil {
		t.Fatal(err)
	}
	if v, ok, _ := s.Get(ctx, "a"); !ok || v != "1" {
		t.Fatalf("got %q ok=%v", v, ok)
	}

	if err := s.MultiSet(ctx, []kv.Pair{{Key: "b", Value: "2"}, {Key: "c", Value: "3"}}); err != nil {
		t.Fatal(err)
	}
	got, err := s.MultiGet(ctx, []string{"c", "zz", "a"})
	if err != nil {
		t.Fatal(err)
	}
	want := []kv.Pair{{Key: "c", Value: "3", Found: true}, {Key: "zz"}, {Key: "a", Value: "1", Found: true}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("MultiGet got %+v want %+v", got, want)
	}

	keys, _ := s.GetAllKeys(ctx)
	if !reflect.DeepEqual(keys, []string{"a", "b", "c"}) {
		t.Fatalf("keys: %v", keys)
	}

	if err := s.MultiRemove(ctx, []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove(ctx, "nope"); err != nil {
		t.Fatalf("removing an absent key should succeed: %v", err)
	}
	keys, _ = s.GetAllKeys(ctx)
	if !reflect.DeepEqual(keys, []string{"c"}) {
		t.Fatalf("keys after remove: %v", keys)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	keys, _ = s.GetAllKeys(ctx)
	if len(keys) != 0 {
		t.Fatalf("expected empty store, got %v", keys)
	}
}

func TestNewFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.json")
	seed := `{"expenses":[{"id":"1"}],"user_preferences":"{\"currency\":\"USD\"}"}`
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := NewFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if v, _, _ := s.Get(ctx, "expenses"); v != `[{"id":"1"}]` {
		t.Fatalf("non-string seed value: %q", v)
	}
	if v, _, _ := s.Get(ctx, "user_preferences"); v != `{"currency":"USD"}` {
		t.Fatalf("string seed value: %q", v)
	}

	empty, err := NewFromFile(filepath.Join(dir, "absent.json"))
	if err != nil {
		t.Fatalf("missing seed file: %v", err)
	}
	if keys, _ := empty.GetAllKeys(ctx); len(keys) != 0 {
		t.Fatalf("expected empty store, got %v", keys)
	}
}
