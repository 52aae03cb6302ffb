//go:build windows

package log

import (
	"os"
)

var stdOutsClosed = false

// closeStdin does nothing on Windows, it would always fail.
func closeStdin() {}

// reassignStdout swaps the os.Stdout and os.Stderr variables on systems without Dup2.  Output
// written directly to the original handles, such as panics, is lost.
func reassignStdout(f *os.File) error {
	if stdOutsClosed {
		return nil
	}
	_ = os.Stderr.Close()
	_ = os.Stdin.Close()
	os.Stdout = f
	os.Stderr = f
	stdOutsClosed = true
	return nil
}
