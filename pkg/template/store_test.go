package template_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/formmailer/formmailer/pkg/template"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, path, text string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(text), 0o600))
}

func TestClassify(t *testing.T) {
	testCases := []struct {
		ref  string
		kind template.Kind
		name string
	}{
		{"contact", template.KindChunk, "contact"},
		{" 12 ", template.KindResource, "12"},
		{"012", template.KindChunk, "012"},
		{"@FILE: forms/a.html", template.KindFile, "forms/a.html"},
		{"@FILE:", template.KindChunk, "@FILE:"},
	}
	for _, tc := range testCases {
		kind, name := template.Classify(tc.ref)
		assert.Equal(t, tc.kind, kind, tc.ref)
		assert.Equal(t, tc.name, name, tc.ref)
	}
}

func TestFileStore(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "chunks", "input.html"), "chunk")
	write(t, filepath.Join(root, "resources", "7.html"), "resource")
	write(t, filepath.Join(root, "second", "mail", "admin.txt"), "file")
	write(t, filepath.Join(root, "secret.txt"), "secret")

	fs := &template.FileStore{
		ChunkDir:    filepath.Join(root, "chunks"),
		ResourceDir: filepath.Join(root, "resources"),
		BaseDirs:    []string{filepath.Join(root, "first"), filepath.Join(root, "second")},
		Cache:       true,
	}

	got, err := fs.Load("input")
	require.NoError(t, err)
	assert.Equal(t, "chunk", got)

	got, err = fs.Load("7")
	require.NoError(t, err)
	assert.Equal(t, "resource", got)

	got, err = fs.Load("@FILE:mail/admin.txt")
	require.NoError(t, err)
	assert.Equal(t, "file", got)

	_, err = fs.Load("@FILE:../secret.txt")
	assert.True(t, errors.Is(err, template.ErrNotExist))

	_, err = fs.Load("missing")
	assert.EqualError(t, err, "tpl read error (missing)")

	_, err = fs.Load("")
	assert.EqualError(t, err, "tpl read error")

	// Cached content survives removal of the file.
	require.NoError(t, os.Remove(filepath.Join(root, "chunks", "input.html")))
	got, err = fs.Load("input")
	require.NoError(t, err)
	assert.Equal(t, "chunk", got)
}

func TestMemStore(t *testing.T) {
	ms := template.NewMemStore()
	ms.Add("contact", "<form></form>")

	got, err := ms.Load(" contact ")
	require.NoError(t, err)
	assert.Equal(t, "<form></form>", got)

	_, err = ms.Load("other")
	assert.ErrorIs(t, err, template.ErrNotExist)
}
