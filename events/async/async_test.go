package async

import (
	"sync"
	"testing"

	"github.com/unkn0wn-root/depcache"
)

func TestDispatchDeliversAll(t *testing.T) {
	var mu sync.Mutex
	got := 0
	d := New(func(depcache.Event) {
		mu.Lock()
		got++
		mu.Unlock()
	}, 4, 64)

	for i := 0; i < 50; i++ {
		d.Listen(depcache.Event{Type: depcache.EventHit})
	}
	d.Close()

	if got != 50 {
		t.Fatalf("delivered %d events, want 50", got)
	}
}

func TestDropWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	d := New(func(depcache.Event) { <-block }, 1, 1)

	// one event occupies the worker, one fills the queue; the rest drop
	for i := 0; i < 10; i++ {
		d.Listen(depcache.Event{Type: depcache.EventSet})
	}
	close(block)
	d.Close()
}

func TestCloseIsIdempotent(t *testing.T) {
	d := New(func(depcache.Event) {}, 1, 1)
	d.Close()
	d.Close()
}
