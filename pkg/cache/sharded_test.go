package cache

import (
	"testing"
	"time"
)

func TestSetGetDelete(t *testing.T) {
	c := New[int](0)
	c.Set("a", 1)
	c.Set("b", 2)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a)=%v,%v, expected 1,true", v, ok)
	}
	if c.Len() != 2 {
		t.Fatalf("Len=%d, expected 2", c.Len())
	}

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("Get(a) succeeded after Delete")
	}
}

func TestTTLExpiry(t *testing.T) {
	c := New[string](10 * time.Millisecond)
	c.Set("k", "v")

	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry missing before TTL")
	}

	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry still served after TTL")
	}
	if removed := c.Cleanup(); removed != 1 {
		t.Fatalf("Cleanup removed %d, expected 1", removed)
	}
	if c.Len() != 0 {
		t.Fatalf("Len=%d, expected 0 after cleanup", c.Len())
	}
}

func TestMissReturnsZeroValue(t *testing.T) {
	c := New[[]float64](0)
	v, ok := c.Get("absent")
	if ok || v != nil {
		t.Fatalf("Get(absent)=%v,%v, expected nil,false", v, ok)
	}
}
