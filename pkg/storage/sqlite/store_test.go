package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/formmailer/formmailer/pkg/config"
	"github.com/formmailer/formmailer/pkg/storage"
	"github.com/formmailer/formmailer/pkg/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSuite runs storage package test suite on the SQLite store.
func TestSuite(t *testing.T) {
	test.StoreSuite(t, func(conf config.Storage) (storage.Store, func(), error) {
		conf.Path = filepath.Join(t.TempDir(), "submissions.db")
		s, err := New(conf)
		if err != nil {
			return nil, nil, err
		}
		destroy := func() {
			_ = s.(*Store).Close()
		}
		return s, destroy, nil
	})
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")
	s, err := Open(path)
	require.NoError(t, err)
	id := test.AddSubmission(t, s, "contact", "Hanako")
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(id)
	require.NoError(t, err)
	name, ok := got.Value("name")
	assert.True(t, ok)
	assert.Equal(t, "Hanako", name)
}
