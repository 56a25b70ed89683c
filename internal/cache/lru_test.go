package cache

import (
	"errors"
	"testing"
	"time"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[int](2, 0)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should be cached")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("a: %v %v", v, ok)
	}
	if c.Size() != 2 || c.Stats().Evictions != 1 {
		t.Fatalf("size=%d stats=%+v", c.Size(), c.Stats())
	}
}

func TestLRUExpiry(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRU[string](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("2024-03", "report")
	c.Set("2024-02", "older")
	now = now.Add(30 * time.Second)
	if _, ok := c.Get("2024-03"); !ok {
		t.Fatal("entry expired too early")
	}

	now = now.Add(time.Minute)
	if n := c.CleanExpired(); n != 2 {
		t.Fatalf("expected 2 expired, got %d", n)
	}
	if c.Size() != 0 {
		t.Fatalf("size after clean: %d", c.Size())
	}
}

func TestGetOrCompute(t *testing.T) {
	c := NewLRU[int](4, 0)
	calls := 0
	compute := func() (int, error) {
		calls++
		return 42, nil
	}
	for i := 0; i < 3; i++ {
		v, err := c.GetOrCompute("k", compute)
		if err != nil || v != 42 {
			t.Fatalf("got %v %v", v, err)
		}
	}
	if calls != 1 {
		t.Fatalf("compute ran %d times", calls)
	}

	boom := errors.New("boom")
	if _, err := c.GetOrCompute("bad", func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, ok := c.Get("bad"); ok {
		t.Fatalf("errors must not be cached")
	}
}

func TestPurgeAndDelete(t *testing.T) {
	c := NewLRU[int](4, 0)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("a should be deleted")
	}
	c.Purge()
	if c.Size() != 0 {
		t.Fatalf("size after purge: %d", c.Size())
	}
	c.Set("c", 3)
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Fatalf("cache unusable after purge")
	}
}

func TestJanitor(t *testing.T) {
	c := NewLRU[int](4, time.Nanosecond)
	c.Set("a", 1)
	time.Sleep(time.Millisecond)

	j := NewJanitor()
	j.Register(c)
	if n := j.CleanNow(); n != 1 {
		t.Fatalf("expected 1 cleaned, got %d", n)
	}

	j.Start(time.Millisecond)
	j.Start(time.Millisecond)
	j.Stop()
	j.Stop()
}
