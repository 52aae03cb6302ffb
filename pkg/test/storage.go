package test

import (
	"errors"
	"strconv"

	"github.com/formmailer/formmailer/pkg/storage"
)

// StoreStub stubs storage.Store for testing.
type StoreStub struct {
	subs []*storage.Submission
	// FailForm makes every operation on the named form fail.
	FailForm string
}

var _ storage.Store = &StoreStub{}

// NewStore creates a new StoreStub.
func NewStore() *StoreStub {
	return &StoreStub{}
}

// Add appends the submission.
func (s *StoreStub) Add(sub *storage.Submission) (string, error) {
	if sub.Form == s.FailForm && s.FailForm != "" {
		return "", errors.New("internal error")
	}
	sub.ID = strconv.Itoa(len(s.subs) + 1)
	s.subs = append(s.subs, sub)
	return sub.ID, nil
}

// Get gets a submission by ID.
func (s *StoreStub) Get(id string) (*storage.Submission, error) {
	for _, sub := range s.subs {
		if sub.ID == id {
			return sub, nil
		}
	}
	return nil, storage.ErrNotExist
}

// ListForm gets all the submissions of a form.
func (s *StoreStub) ListForm(formName string) ([]*storage.Submission, error) {
	if formName == s.FailForm && s.FailForm != "" {
		return nil, errors.New("internal error")
	}
	out := []*storage.Submission{}
	for _, sub := range s.subs {
		if sub.Form == formName {
			out = append(out, sub)
		}
	}
	return out, nil
}

// Remove deletes a submission by ID.
func (s *StoreStub) Remove(id string) error {
	for i, sub := range s.subs {
		if sub.ID == id {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotExist
}

// All returns every stored submission.
func (s *StoreStub) All() []*storage.Submission {
	return s.subs
}
