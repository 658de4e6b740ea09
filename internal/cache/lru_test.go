package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestCache(maxSize int, ttl time.Duration) (*LRUCache[string], *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](maxSize, ttl)
	c.now = clock.now
	return c, clock
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Hour)
	c.Set("a", "1")
	c.Set("b", "2")
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should be present")
	}
	c.Set("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if c.Size() != 2 {
		t.Fatalf("size = %d", c.Size())
	}
}

func TestLRUExpiry(t *testing.T) {
	c, clock := newTestCache(10, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	clock.t = clock.t.Add(2 * time.Minute)
	c.Set("c", "3")

	if _, ok := c.Get("a"); ok {
		t.Fatal("a should be expired")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("CleanExpired removed %d, want 1", n)
	}
	if v, ok := c.Get("c"); !ok || v != "3" {
		t.Fatalf("c = %q %v", v, ok)
	}
}

func TestSetIfAbsent(t *testing.T) {
	c, clock := newTestCache(10, time.Minute)
	if v, stored := c.SetIfAbsent("k", "first"); !stored || v != "first" {
		t.Fatalf("first SetIfAbsent = %q %v", v, stored)
	}
	if v, stored := c.SetIfAbsent("k", "second"); stored || v != "first" {
		t.Fatalf("second SetIfAbsent = %q %v", v, stored)
	}
	clock.t = clock.t.Add(time.Hour)
	if v, stored := c.SetIfAbsent("k", "third"); !stored || v != "third" {
		t.Fatalf("SetIfAbsent after expiry = %q %v", v, stored)
	}
}

func TestDelete(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	c.Set("k", "v")
	c.Delete("k")
	c.Delete("missing")
	if _, ok := c.Get("k"); ok || c.Size() != 0 {
		t.Fatal("k should be gone")
	}
}

func TestOnEvict(t *testing.T) {
	c, clock := newTestCache(2, time.Minute)
	var evicted []string
	c.OnEvict(func(key, data string) { evicted = append(evicted, key+"="+data) })

	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("c", "3") // a is least recently used
	c.Set("b", "4") // replaces 2
	c.Delete("c")
	clock.t = clock.t.Add(2 * time.Minute)
	c.CleanExpired()

	want := []string{"a=1", "b=2", "c=3", "b=4"}
	if len(evicted) != len(want) {
		t.Fatalf("evicted %v, want %v", evicted, want)
	}
	for i := range want {
		if evicted[i] != want[i] {
			t.Fatalf("evicted %v, want %v", evicted, want)
		}
	}
}

func TestManagerCleanup(t *testing.T) {
	c := NewLRUCache[int](10, time.Nanosecond)
	c.Set("k", 1)
	m := NewManager(nil)
	m.Register(c)
	m.StartCleanup(time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for c.Size() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	m.Stop()
	m.Stop()
	if c.Size() != 0 {
		t.Fatal("expired entry was not cleaned")
	}
}

func TestManagerStopWithoutStart(t *testing.T) {
	NewManager(nil).Stop()
}
