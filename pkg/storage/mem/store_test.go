package mem

import (
	"strconv"
	"testing"

	"github.com/formmailer/formmailer/pkg/config"
	"github.com/formmailer/formmailer/pkg/storage"
	"github.com/formmailer/formmailer/pkg/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSuite runs storage package test suite on memory store.
func TestSuite(t *testing.T) {
	test.StoreSuite(t, func(conf config.Storage) (storage.Store, func(), error) {
		s, _ := New(conf)
		destroy := func() {}
		return s, destroy, nil
	})
}

// TestFormCap verifies the oldest submissions are dropped once a form exceeds its cap.
func TestFormCap(t *testing.T) {
	s, _ := New(config.Storage{FormCap: 3})
	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, test.AddSubmission(t, s, "capped", strconv.Itoa(i)))
	}
	test.AddSubmission(t, s, "other", "x")

	subs, err := s.ListForm("capped")
	require.NoError(t, err)
	require.Len(t, subs, 3)
	name, _ := subs[0].Value("name")
	assert.Equal(t, "2", name)

	_, err = s.Get(ids[0])
	assert.ErrorIs(t, err, storage.ErrNotExist)

	other, err := s.ListForm("other")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

// TestCopies verifies callers cannot mutate stored submissions.
func TestCopies(t *testing.T) {
	s, _ := New(config.Storage{})
	id := test.AddSubmission(t, s, "copy", "original")
	got, err := s.Get(id)
	require.NoError(t, err)
	got.Fields[0].Value = "changed"

	again, err := s.Get(id)
	require.NoError(t, err)
	name, _ := again.Value("name")
	assert.Equal(t, "original", name)
}
