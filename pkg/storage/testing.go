package storage

import (
	"github.com/stretchr/testify/mock"
)

// MockStore is a shared mock for unit testing.
type MockStore struct {
	mock.Mock
}

var _ Store = &MockStore{}

// Add mock function
func (m *MockStore) Add(s *Submission) (string, error) {
	args := m.Called(s)
	return args.String(0), args.Error(1)
}

// Get mock function
func (m *MockStore) Get(id string) (*Submission, error) {
	args := m.Called(id)
	sub, _ := args.Get(0).(*Submission)
	return sub, args.Error(1)
}

// ListForm mock function
func (m *MockStore) ListForm(formName string) ([]*Submission, error) {
	args := m.Called(formName)
	subs, _ := args.Get(0).([]*Submission)
	return subs, args.Error(1)
}

// Remove mock function
func (m *MockStore) Remove(id string) error {
	args := m.Called(id)
	return args.Error(0)
}
