// Package storage persists successful form submissions.
package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/formmailer/formmailer/pkg/config"
	"github.com/formmailer/formmailer/pkg/form"
)

// ErrNotExist indicates the requested submission does not exist.
var ErrNotExist = errors.New("submission does not exist")

// SkipFields are never persisted.
var SkipFields = []string{"veri"}

// Field is one stored form value. Rank preserves the submitted field order.
type Field struct {
	Name  string
	Value string
	Rank  int
}

// Submission is a stored form submission.
type Submission struct {
	ID      string
	Form    string
	Created time.Time
	Fields  []Field
}

// Value returns the stored value of the named field.
func (s *Submission) Value(name string) (string, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// NewSubmission flattens values for storage. Arrays are joined with ",".
func NewSubmission(formName string, values *form.Values, created time.Time) *Submission {
	s := &Submission{Form: formName, Created: created}
	rank := 0
	for _, name := range values.Keys() {
		if isSkipped(name) {
			continue
		}
		s.Fields = append(s.Fields, Field{
			Name:  name,
			Value: strings.Join(values.Value(name).Strings(), ","),
			Rank:  rank,
		})
		rank++
	}
	return s
}

func isSkipped(name string) bool {
	for _, s := range SkipFields {
		if s == name {
			return true
		}
	}
	return false
}

// Store persists submissions.
type Store interface {
	// Add stores s, assigning its ID, and returns the ID.
	Add(s *Submission) (string, error)
	Get(id string) (*Submission, error)
	// ListForm returns the submissions of a form, oldest first.
	ListForm(formName string) ([]*Submission, error)
	Remove(id string) error
}

// Constructor creates a Store from configuration.
type Constructor func(config.Storage) (Store, error)

// Constructors maps storage type names to their constructor.
var Constructors = make(map[string]Constructor)

// FromConfig creates the Store named by the configuration.
func FromConfig(c config.Storage) (Store, error) {
	cons, ok := Constructors[c.Type]
	if !ok {
		return nil, fmt.Errorf("storage type %q not registered", c.Type)
	}
	return cons(c)
}
