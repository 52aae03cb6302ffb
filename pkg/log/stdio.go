// Package log holds the daemon's process level log plumbing.
package log

import (
	"os"
)

// RedirectStdio points stdout and stderr at f so stray writes and panics land in the logfile, and
// closes stdin.  Failures are returned but are not fatal to the daemon.
func RedirectStdio(f *os.File) error {
	closeStdin()
	return reassignStdout(f)
}
