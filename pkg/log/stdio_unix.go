//go:build !windows

package log

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// closeStdin closes stdin, standard practice for daemons.
func closeStdin() {
	_ = os.Stdin.Close()
}

// reassignStdout duplicates f onto file descriptors 1 and 2.
func reassignStdout(f *os.File) error {
	if err := unix.Dup2(int(f.Fd()), 1); err != nil {
		return fmt.Errorf("re-assign stdout to logfile: %w", err)
	}
	if err := unix.Dup2(int(f.Fd()), 2); err != nil {
		return fmt.Errorf("re-assign stderr to logfile: %w", err)
	}
	return nil
}
