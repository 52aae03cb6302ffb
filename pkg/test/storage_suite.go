package test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/formmailer/formmailer/pkg/config"
	"github.com/formmailer/formmailer/pkg/storage"
	"github.com/google/go-cmp/cmp"
)

// StoreFactory returns a new store for the test suite.
type StoreFactory func(config.Storage) (store storage.Store, destroy func(), err error)

// StoreSuite runs a set of general tests on the provided Store.
func StoreSuite(t *testing.T, factory StoreFactory) {
	t.Helper()
	testCases := []struct {
		name string
		test func(*testing.T, storage.Store)
		conf config.Storage
	}{
		{"content", testContent, config.Storage{}},
		{"insertion order", testInsertionOrder, config.Storage{}},
		{"separate forms", testSeparateForms, config.Storage{}},
		{"remove", testRemove, config.Storage{}},
		{"not exist", testNotExist, config.Storage{}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store, destroy, err := factory(tc.conf)
			if err != nil {
				t.Fatal(err)
			}
			tc.test(t, store)
			destroy()
		})
	}
}

// testContent verifies submission fields survive a round trip in rank order.
func testContent(t *testing.T, store storage.Store) {
	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	want := &storage.Submission{
		Form:    "contact",
		Created: created,
		Fields: []storage.Field{
			{Name: "name", Value: "Taro", Rank: 0},
			{Name: "colors", Value: "red,blue", Rank: 1},
			{Name: "message", Value: "line one\nline two", Rank: 2},
		},
	}
	id, err := store.Add(want)
	if err != nil {
		t.Fatal(err)
	}
	if id == "" || want.ID != id {
		t.Fatalf("Add returned id %q, submission has %q", id, want.ID)
	}
	got, err := store.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Get() mismatch (-want +got):\n%s", diff)
	}
}

// testInsertionOrder verifies ListForm returns submissions oldest first.
func testInsertionOrder(t *testing.T, store storage.Store) {
	for i := 0; i < 5; i++ {
		AddSubmission(t, store, "order", fmt.Sprintf("visitor %d", i))
	}
	subs, err := store.ListForm("order")
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 5 {
		t.Fatalf("got %d submissions, want 5", len(subs))
	}
	for i, sub := range subs {
		got, _ := sub.Value("name")
		if want := fmt.Sprintf("visitor %d", i); got != want {
			t.Errorf("subs[%d] name = %q, want %q", i, got, want)
		}
	}
}

// testSeparateForms verifies submissions are listed per form.
func testSeparateForms(t *testing.T, store storage.Store) {
	AddSubmission(t, store, "alpha", "a")
	AddSubmission(t, store, "beta", "b1")
	AddSubmission(t, store, "beta", "b2")
	for form, want := range map[string]int{"alpha": 1, "beta": 2, "gamma": 0} {
		subs, err := store.ListForm(form)
		if err != nil {
			t.Fatal(err)
		}
		if subs == nil {
			t.Errorf("ListForm(%q) returned nil slice", form)
		}
		if len(subs) != want {
			t.Errorf("ListForm(%q) got %d, want %d", form, len(subs), want)
		}
	}
}

// testRemove verifies a removed submission is gone from Get and ListForm.
func testRemove(t *testing.T, store storage.Store) {
	keep := AddSubmission(t, store, "remove", "keep")
	gone := AddSubmission(t, store, "remove", "gone")
	if err := store.Remove(gone); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(gone); !errors.Is(err, storage.ErrNotExist) {
		t.Errorf("Get(removed) error = %v, want ErrNotExist", err)
	}
	subs, err := store.ListForm("remove")
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 1 || subs[0].ID != keep {
		t.Errorf("ListForm after remove got %v, want only %q", subs, keep)
	}
	if err := store.Remove(gone); !errors.Is(err, storage.ErrNotExist) {
		t.Errorf("second Remove error = %v, want ErrNotExist", err)
	}
}

// testNotExist verifies lookups of unknown ids.
func testNotExist(t *testing.T, store storage.Store) {
	for _, id := range []string{"9999", "not-a-number", ""} {
		if _, err := store.Get(id); !errors.Is(err, storage.ErrNotExist) {
			t.Errorf("Get(%q) error = %v, want ErrNotExist", id, err)
		}
	}
}
