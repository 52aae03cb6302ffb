package test

import (
	"testing"
	"time"

	"github.com/formmailer/formmailer/pkg/storage"
)

// AddSubmission stores a submission with a single name field, returning its ID.
func AddSubmission(t *testing.T, store storage.Store, formName, name string) string {
	t.Helper()
	id, err := store.Add(&storage.Submission{
		Form:    formName,
		Created: time.Now().UTC().Truncate(time.Millisecond),
		Fields: []storage.Field{
			{Name: "name", Value: name, Rank: 0},
			{Name: "email", Value: "visitor@example.com", Rank: 1},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return id
}
