package cache

import (
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestStoreFreshness(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := New[string](Options{TTL: 60 * time.Second, Now: clock.Now})

	if _, _, ok := s.Get("http://a/feed.xml"); ok {
		t.Fatal("empty store returned an entry")
	}

	s.Put("http://a/feed.xml", "<rss/>")
	clock.Advance(59 * time.Second)

	entry, fresh, ok := s.Get("http://a/feed.xml")
	if !ok || !fresh || entry.Value != "<rss/>" {
		t.Fatalf("Get() = %+v fresh=%v ok=%v", entry, fresh, ok)
	}

	clock.Advance(2 * time.Second)
	entry, fresh, ok = s.Get("http://a/feed.xml")
	if !ok {
		t.Fatal("stale entry should still be returned")
	}
	if fresh {
		t.Error("entry older than TTL reported fresh")
	}
	if entry.Age(clock.Now()) != 61*time.Second {
		t.Errorf("Age() = %v", entry.Age(clock.Now()))
	}
	if _, ok := s.GetFresh("http://a/feed.xml"); ok {
		t.Error("GetFresh() returned a stale value")
	}
}

func TestStoreOverwrite(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	s := New[int](Options{TTL: time.Minute, Now: clock.Now})

	s.Put("k", 1)
	clock.Advance(2 * time.Minute)
	s.Put("k", 2)

	v, ok := s.GetFresh("k")
	if !ok || v != 2 {
		t.Errorf("GetFresh() = %d, %v; want 2, true", v, ok)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d", s.Len())
	}
}

func TestStoreEvictsOldest(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	s := New[string](Options{MaxEntries: 2, Now: clock.Now})

	s.Put("a", "A")
	clock.Advance(time.Second)
	s.Put("b", "B")
	clock.Advance(time.Second)
	s.Put("c", "C")

	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	if _, _, ok := s.Get("a"); ok {
		t.Error("oldest entry was not evicted")
	}
	for _, k := range []string{"b", "c"} {
		if _, _, ok := s.Get(k); !ok {
			t.Errorf("entry %q missing", k)
		}
	}
}

func TestStoreNoTTLAlwaysFresh(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	s := New[string](Options{Now: clock.Now})
	s.Put("k", "v")
	clock.Advance(24 * time.Hour)
	if _, ok := s.GetFresh("k"); !ok {
		t.Error("entry without TTL should stay fresh")
	}
}
