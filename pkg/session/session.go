// Package session keeps per-browser state between the steps of a form flow.
package session

import (
	"strings"
	"sync"
	"time"
)

// Store is the key/value contract the form flow reads and writes. Get accepts dotted paths such
// as "_cf_uploaded.photo" to read into nested values.
type Store interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	Delete(key string)
}

// Lookuper is implemented by values that support dotted-path reads into themselves.
type Lookuper interface {
	Lookup(key string) (any, bool)
}

// Session is the state of one browser session.
type Session struct {
	ID string

	mu      sync.Mutex
	values  map[string]any
	touched time.Time
}

// New returns an empty Session.
func New(id string) *Session {
	return &Session{ID: id, values: make(map[string]any), touched: time.Now()}
}

// Get implements Store.
func (s *Session) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	head, rest, nested := strings.Cut(key, ".")
	v, ok := s.values[head]
	if !ok {
		return nil, false
	}
	if !nested {
		return v, true
	}
	return lookupPath(v, rest)
}

// Set implements Store.
func (s *Session) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Delete implements Store.
func (s *Session) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// Take returns the top level value stored under key and deletes it in one step, so only one
// caller can consume a one-time value.
func (s *Session) Take(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	delete(s.values, key)
	return v, ok
}

// Len returns the number of top level keys.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.touched = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.touched)
}

func lookupPath(v any, path string) (any, bool) {
	for _, key := range strings.Split(path, ".") {
		switch m := v.(type) {
		case map[string]any:
			next, ok := m[key]
			if !ok {
				return nil, false
			}
			v = next
		case map[string]string:
			next, ok := m[key]
			if !ok {
				return nil, false
			}
			v = next
		case Lookuper:
			next, ok := m.Lookup(key)
			if !ok {
				return nil, false
			}
			v = next
		default:
			return nil, false
		}
	}
	return v, true
}

// GetString returns the string stored under key, or "".
func GetString(s Store, key string) string {
	v, _ := s.Get(key)
	str, _ := v.(string)
	return str
}

// Taker is implemented by stores that can read and delete a key atomically.
type Taker interface {
	Take(key string) (any, bool)
}

// Take returns the value stored under key and deletes it.  Stores implementing Taker do both
// under one lock.
func Take(s Store, key string) (any, bool) {
	if t, ok := s.(Taker); ok {
		return t.Take(key)
	}
	v, ok := s.Get(key)
	if ok {
		s.Delete(key)
	}
	return v, ok
}
