package extension

import (
	"errors"
	"sync"
	"time"
)

// AsyncEventBroker keeps the listeners for one kind of after-the-fact event.
// Emit returns immediately; each listener runs in its own goroutine.
type AsyncEventBroker[E any] struct {
	mu        sync.RWMutex
	names     []string
	listeners []func(E)
}

// Emit hands a copy of event to every listener.
func (eb *AsyncEventBroker[E]) Emit(event *E) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, l := range eb.listeners {
		go l(*event)
	}
}

// AddListener registers listener under name, replacing a listener already
// using that name.
func (eb *AsyncEventBroker[E]) AddListener(name string, listener func(E)) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.names, eb.listeners = withoutListener(eb.names, eb.listeners, name)
	eb.names = append(eb.names, name)
	eb.listeners = append(eb.listeners, listener)
}

// RemoveListener unregisters the named listener.
func (eb *AsyncEventBroker[E]) RemoveListener(name string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.names, eb.listeners = withoutListener(eb.names, eb.listeners, name)
}

// AsyncTestListener registers a listener that buffers up to capacity events
// and returns a func that waits for the next one.  The listener removes
// itself once capacity events have been read.
func (eb *AsyncEventBroker[E]) AsyncTestListener(name string, capacity int) func() (*E, error) {
	events := make(chan E, capacity)
	eb.AddListener(name, func(e E) {
		events <- e
	})

	received := 0
	return func() (*E, error) {
		received++
		defer func() {
			if received >= capacity {
				eb.RemoveListener(name)
			}
		}()

		select {
		case e := <-events:
			return &e, nil
		case <-time.After(2 * time.Second):
			return nil, errors.New("timeout waiting for event")
		}
	}
}
