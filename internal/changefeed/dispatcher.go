// Package changefeed holds the handler registry shared by the change-feed
// adapters. Adapters call Fire when the store reports a playlist change.
package changefeed

import (
	"log/slog"
	"sync"
)

type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[uint64]func()
	nextID   uint64
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[uint64]func())}
}

// OnChange registers handler and returns the func that removes it. The
// returned func may be called more than once.
func (d *Dispatcher) OnChange(handler func()) (unregister func()) {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.handlers[id] = handler
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.handlers, id)
			d.mu.Unlock()
		})
	}
}

// Fire runs every registered handler. A panicking handler is logged and
// does not stop the others.
func (d *Dispatcher) Fire() {
	d.mu.RLock()
	handlers := make([]func(), 0, len(d.handlers))
	for _, h := range d.handlers {
		handlers = append(handlers, h)
	}
	d.mu.RUnlock()

	for _, h := range handlers {
		runHandler(h)
	}
}

func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers)
}

func runHandler(h func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Change handler panic recovered", "panic", r)
		}
	}()
	h()
}
