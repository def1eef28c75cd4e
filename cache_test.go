package depcache

import (
	"context"
	"testing"
	"time"

	"github.com/unkn0wn-root/depcache/store"
	"github.com/unkn0wn-root/depcache/store/memory"
)

func newTestCache(t *testing.T, prefix string) *Cache {
	t.Helper()
	c, err := New(Options{Prefix: prefix, Store: memory.New()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { c.Close(context.Background()) })
	return c
}

// ==============================
// Manager basics
// ==============================

func TestNewRequiresStore(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected a config error without a store")
	}
}

func TestNewDefaults(t *testing.T) {
	c, err := New(Options{Store: memory.New()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Prefix() != "cache" || c.Name() != "cache" {
		t.Fatalf("defaults = %q/%q", c.Name(), c.Prefix())
	}
}

func TestSetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, "t1")

	if err := c.Set(ctx, "user:1", map[string]any{"name": "ada"}, 0, nil); err != nil {
		t.Fatalf("Set: %v", err)
	}

	v, ok, err := c.Get(ctx, "user:1")
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v, %v", v, ok, err)
	}
	m, _ := v.(map[string]any)
	if m["name"] != "ada" {
		t.Fatalf("decoded value = %#v", v)
	}

	var dst map[string]any
	if found, err := c.GetInto(ctx, "user:1", &dst); err != nil || !found {
		t.Fatalf("GetInto = %v, %v", found, err)
	}
	if dst["name"] != "ada" {
		t.Fatalf("GetInto decoded = %#v", dst)
	}

	n, err := c.Delete(ctx, "user:1", "user:2")
	if err != nil || n != 1 {
		t.Fatalf("Delete = %d, %v", n, err)
	}
	if _, ok, _ := c.Get(ctx, "user:1"); ok {
		t.Fatal("entry survived delete")
	}
}

func TestGetMiss(t *testing.T) {
	c := newTestCache(t, "t2")
	if v, ok, err := c.Get(context.Background(), "nope"); ok || err != nil || v != nil {
		t.Fatalf("miss = %v, %v, %v", v, ok, err)
	}
}

func TestExistsAndTTL(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, "t3")

	if ok, _ := c.Exists(ctx, "k"); ok {
		t.Fatal("absent key reported present")
	}
	if ttl, _ := c.TTL(ctx, "k"); ttl != store.Missing {
		t.Fatalf("absent TTL = %v", ttl)
	}

	if err := c.Set(ctx, "k", 1, time.Minute, nil); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if ok, _ := c.Exists(ctx, "k"); !ok {
		t.Fatal("set key reported absent")
	}
	ttl, err := c.TTL(ctx, "k")
	if err != nil || ttl <= 50*time.Second || ttl > time.Minute {
		t.Fatalf("TTL = %v, %v", ttl, err)
	}

	if err := c.Set(ctx, "p", 1, 0, nil); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if ttl, _ := c.TTL(ctx, "p"); ttl != store.NoExpiry {
		t.Fatalf("persistent TTL = %v", ttl)
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, "t4")
	for _, k := range []string{"a:1", "a:2", "b:1"} {
		if err := c.Set(ctx, k, k, 0, nil); err != nil {
			t.Fatalf("Set %s: %v", k, err)
		}
	}

	n, err := c.Clear(ctx, "a:*")
	if err != nil || n != 2 {
		t.Fatalf("Clear(a:*) = %d, %v", n, err)
	}
	if ok, _ := c.Exists(ctx, "b:1"); !ok {
		t.Fatal("Clear removed a key outside the pattern")
	}

	n, err = c.Clear(ctx, "")
	if err != nil || n != 1 {
		t.Fatalf("Clear(all) = %d, %v", n, err)
	}
}

// ==============================
// Dependency invalidation
// ==============================

func TestInvalidateDependency(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, "t5")

	if err := c.Set(ctx, "k1", "v1", 0, []string{"tag"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.Set(ctx, "k2", "v2", 0, []string{"tag", "other"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.Set(ctx, "k3", "v3", 0, []string{"other"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	n, err := c.InvalidateDependency(ctx, "tag")
	if err != nil || n != 2 {
		t.Fatalf("InvalidateDependency = %d, %v", n, err)
	}
	for _, k := range []string{"k1", "k2"} {
		if ok, _ := c.Exists(ctx, k); ok {
			t.Fatalf("%s survived invalidation", k)
		}
	}
	if ok, _ := c.Exists(ctx, "k3"); !ok {
		t.Fatal("k3 was removed by an unrelated tag")
	}

	// the index is gone too, so a repeat is a no-op
	n, err = c.InvalidateDependency(ctx, "tag")
	if err != nil || n != 0 {
		t.Fatalf("second InvalidateDependency = %d, %v", n, err)
	}
}

func TestDependencyIndexTTLExtension(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, "t6")

	// entry with the longer TTL drives the index lifetime
	if err := c.Set(ctx, "k1", "v1", time.Minute, []string{"A"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	// shorter-lived entry must not shrink the index TTL
	if err := c.Set(ctx, "k2", "v2", 30*time.Second, []string{"A"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// "deps:A" resolves to the index key under the same prefix
	ttl, err := c.TTL(ctx, "deps:A")
	if err != nil || ttl <= 50*time.Second || ttl > time.Minute {
		t.Fatalf("index TTL = %v, %v", ttl, err)
	}

	n, err := c.InvalidateDependency(ctx, "A")
	if err != nil || n != 2 {
		t.Fatalf("InvalidateDependency = %d, %v", n, err)
	}
	if ok, _ := c.Exists(ctx, "deps:A"); ok {
		t.Fatal("index survived invalidation")
	}
}

func TestDependencyIndexShorterThanEntryIsRaised(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, "t7")

	if err := c.Set(ctx, "k1", "v1", 10*time.Second, []string{"A"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.Set(ctx, "k2", "v2", time.Minute, []string{"A"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	ttl, err := c.TTL(ctx, "deps:A")
	if err != nil || ttl <= 50*time.Second {
		t.Fatalf("index TTL not raised: %v, %v", ttl, err)
	}
}

func TestPersistentIndexStaysPersistent(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, "t8")

	// no-TTL entry makes the index persistent
	if err := c.Set(ctx, "k1", "v1", 0, []string{"B"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if ttl, _ := c.TTL(ctx, "deps:B"); ttl != store.NoExpiry {
		t.Fatalf("index TTL = %v, want persistent", ttl)
	}

	// a later finite-TTL entry must not demote it
	if err := c.Set(ctx, "k2", "v2", 30*time.Second, []string{"B"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if ttl, _ := c.TTL(ctx, "deps:B"); ttl != store.NoExpiry {
		t.Fatalf("index TTL after finite set = %v, want persistent", ttl)
	}
}

// ==============================
// Events
// ==============================

func TestCacheEvents(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, "t9")

	var seen []EventType
	off := c.Events().OnAll(func(ev Event) { seen = append(seen, ev.Type) })
	defer off()

	c.Set(ctx, "k", "v", 0, []string{"tag"})
	c.Get(ctx, "k")
	c.Get(ctx, "missing")
	c.InvalidateDependency(ctx, "tag")

	want := []EventType{EventSet, EventHit, EventMiss, EventInvalidate}
	if len(seen) != len(want) {
		t.Fatalf("events = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("events = %v, want %v", seen, want)
		}
	}
}

func TestListenerPanicIsContained(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, "t10")

	c.Events().On(EventSet, func(Event) { panic("listener boom") })
	hits := 0
	c.Events().On(EventSet, func(Event) { hits++ })

	if err := c.Set(ctx, "k", "v", 0, nil); err != nil {
		t.Fatalf("Set failed because of a listener: %v", err)
	}
	if hits != 1 {
		t.Fatalf("second listener not reached, hits = %d", hits)
	}
}

func TestListenerOff(t *testing.T) {
	c := newTestCache(t, "t11")
	calls := 0
	off := c.Events().On(EventSet, func(Event) { calls++ })
	c.Events().Emit(Event{Type: EventSet})
	off()
	c.Events().Emit(Event{Type: EventSet})
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestStatsCollector(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, "t12")

	sc := NewStatsCollector()
	off := c.Events().OnAll(sc.Listen)
	defer off()

	c.Set(ctx, "k", "v", 0, nil)
	c.Get(ctx, "k")
	c.Get(ctx, "k")
	c.Get(ctx, "missing")

	st := sc.Snapshot()
	if st.Hits != 2 || st.Misses != 1 || st.Sets != 1 {
		t.Fatalf("stats = %+v", st)
	}
	if st.HitRatio < 0.66 || st.HitRatio > 0.67 {
		t.Fatalf("hit ratio = %v", st.HitRatio)
	}

	sc.Reset()
	if st := sc.Snapshot(); st.Hits != 0 {
		t.Fatalf("stats after reset = %+v", st)
	}
}
