package asynchook

import (
	"sync"
	"testing"

	"github.com/unkn0wn-root/entcache"
)

type countHooks struct {
	entcache.NopHooks
	mu    sync.Mutex
	heals int
	hits  int
	block chan struct{}
}

func (c *countHooks) Hit(string) {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
}

func (c *countHooks) SelfHeal(string, string) {
	c.mu.Lock()
	c.heals++
	c.mu.Unlock()
}

func TestEventsDeliveredBeforeClose(t *testing.T) {
	inner := &countHooks{}
	h := New(inner, 2, 64)
	for i := 0; i < 10; i++ {
		h.SelfHeal("k", "corrupt")
	}
	h.Close()

	if inner.heals != 10 {
		t.Fatalf("expected 10 delivered events, got %d", inner.heals)
	}
	h.Hit("k") // after Close: dropped, no panic
	if h.Dropped() != 1 {
		t.Fatalf("dropped = %d", h.Dropped())
	}
}

func TestFullQueueDrops(t *testing.T) {
	inner := &countHooks{block: make(chan struct{})}
	h := New(inner, 1, 1)

	for i := 0; i < 5; i++ {
		h.Hit("k")
	}
	// at most one running and one queued
	if h.Dropped() < 3 {
		t.Fatalf("expected drops, got %d", h.Dropped())
	}
	close(inner.block)
	h.Close()
}
