// Package async decouples event listeners from cache hot paths.
// Events are handed to a worker pool through a bounded queue; when the
// queue is full events are dropped rather than blocking the caller.
package async

import (
	"sync"

	"github.com/unkn0wn-root/depcache"
)

type Dispatcher struct {
	inner depcache.Listener
	q     chan depcache.Event
	wg    sync.WaitGroup
	once  sync.Once
}

// New starts a dispatcher feeding inner from a pool of workers.
// Attach Dispatcher.Listen to an emitter.
func New(inner depcache.Listener, workers, qlen int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	d := &Dispatcher{inner: inner, q: make(chan depcache.Event, qlen)}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer d.wg.Done()
			for ev := range d.q {
				d.inner(ev)
			}
		}()
	}
	return d
}

// Listen enqueues an event for asynchronous delivery.
func (d *Dispatcher) Listen(ev depcache.Event) {
	select {
	case d.q <- ev:
	default: // drop
	}
}

// Close drains the queue and stops the workers.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.q)
		d.wg.Wait()
	})
}
