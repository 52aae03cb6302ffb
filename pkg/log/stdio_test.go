//go:build !windows

package log

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestReassignStdout(t *testing.T) {
	// Preserve the real descriptors so the test runner keeps its output.
	savedOut, err := unix.Dup(1)
	require.NoError(t, err)
	savedErr, err := unix.Dup(2)
	require.NoError(t, err)
	defer func() {
		_ = unix.Dup2(savedOut, 1)
		_ = unix.Dup2(savedErr, 2)
		_ = unix.Close(savedOut)
		_ = unix.Close(savedErr)
	}()

	path := filepath.Join(t.TempDir(), "out.log")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, reassignStdout(f))
	_, err = os.Stdout.WriteString("to stdout\n")
	require.NoError(t, err)
	_, err = os.Stderr.WriteString("to stderr\n")
	require.NoError(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "to stdout\nto stderr\n", string(b))
}
