// Package mem implements an in-memory submission store.
package mem

import (
	"sort"
	"strconv"
	"sync"

	"github.com/formmailer/formmailer/pkg/config"
	"github.com/formmailer/formmailer/pkg/storage"
)

// Store implements an in-memory submission store.
type Store struct {
	sync.RWMutex
	forms map[string]*formBox
	byID  map[string]*entry
	last  int
	cap   int // Per-form submission cap.
}

type formBox struct {
	entries []*entry
}

type entry struct {
	index int
	sub   storage.Submission
}

var _ storage.Store = &Store{}

// New returns an empty memory store.
func New(cfg config.Storage) (storage.Store, error) {
	return &Store{
		forms: make(map[string]*formBox),
		byID:  make(map[string]*entry),
		cap:   cfg.FormCap,
	}, nil
}

// Add stores a copy of the submission and assigns its ID.
func (s *Store) Add(sub *storage.Submission) (string, error) {
	s.Lock()
	defer s.Unlock()
	s.last++
	id := strconv.Itoa(s.last)
	e := &entry{index: s.last, sub: copySubmission(sub)}
	e.sub.ID = id
	sub.ID = id

	box, ok := s.forms[sub.Form]
	if !ok {
		box = &formBox{}
		s.forms[sub.Form] = box
	}
	box.entries = append(box.entries, e)
	s.byID[id] = e
	if s.cap > 0 {
		// Enforce cap.
		for len(box.entries) > s.cap {
			delete(s.byID, box.entries[0].sub.ID)
			box.entries = box.entries[1:]
		}
	}
	return id, nil
}

// Get returns a submission by ID.
func (s *Store) Get(id string) (*storage.Submission, error) {
	s.RLock()
	defer s.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return nil, storage.ErrNotExist
	}
	sub := copySubmission(&e.sub)
	return &sub, nil
}

// ListForm returns the submissions of a form in insertion order.
func (s *Store) ListForm(formName string) ([]*storage.Submission, error) {
	s.RLock()
	defer s.RUnlock()
	box, ok := s.forms[formName]
	if !ok {
		return []*storage.Submission{}, nil
	}
	entries := append([]*entry{}, box.entries...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].index < entries[j].index })
	out := make([]*storage.Submission, len(entries))
	for i, e := range entries {
		sub := copySubmission(&e.sub)
		out[i] = &sub
	}
	return out, nil
}

// Remove deletes a submission.
func (s *Store) Remove(id string) error {
	s.Lock()
	defer s.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return storage.ErrNotExist
	}
	delete(s.byID, id)
	box := s.forms[e.sub.Form]
	for i, be := range box.entries {
		if be == e {
			box.entries = append(box.entries[:i], box.entries[i+1:]...)
			break
		}
	}
	return nil
}

func copySubmission(sub *storage.Submission) storage.Submission {
	c := *sub
	c.Fields = append([]storage.Field(nil), sub.Fields...)
	return c
}
