package extension

import (
	"sync"
)

// EventBroker keeps the listeners for one kind of synchronous event.  Each
// listener may answer with a result; the first non-nil answer wins.
type EventBroker[E any, R any] struct {
	mu        sync.RWMutex
	names     []string     // Listener names in priority order.
	listeners []func(E) *R // Listener funcs, parallel to names.
}

// Emit passes a copy of event to each listener in priority order and
// returns the first non-nil result, or nil when every listener defers.
func (eb *EventBroker[E, R]) Emit(event *E) *R {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, l := range eb.listeners {
		if result := l(*event); result != nil {
			return result
		}
	}
	return nil
}

// AddListener registers listener under name, replacing a listener already
// using that name.  Listeners run in the order they were added.
func (eb *EventBroker[E, R]) AddListener(name string, listener func(E) *R) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.names, eb.listeners = withoutListener(eb.names, eb.listeners, name)
	eb.names = append(eb.names, name)
	eb.listeners = append(eb.listeners, listener)
}

// RemoveListener unregisters the named listener.
func (eb *EventBroker[E, R]) RemoveListener(name string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.names, eb.listeners = withoutListener(eb.names, eb.listeners, name)
}

// Len returns the number of registered listeners.
func (eb *EventBroker[E, R]) Len() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	return len(eb.names)
}

// withoutListener drops name and its func from the parallel slices.
func withoutListener[F any](names []string, funcs []F, name string) ([]string, []F) {
	for i, n := range names {
		if n == name {
			return append(names[:i], names[i+1:]...), append(funcs[:i], funcs[i+1:]...)
		}
	}
	return names, funcs
}
