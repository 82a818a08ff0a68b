package sh

import (
	"os"

	"golang.org/x/term"
)

// IsTerminal reports whether f is attached to a terminal, for callers
// deciding whether a sink/source they pass to Out/In (typically
// os.Stdout/os.Stdin) is already a terminal. The package itself does
// not call it; TTYIn/TTYOut allocate a pty regardless.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// withHostRawMode puts f (the host's own terminal, not the child's
// pty) into raw mode for the duration of fn, restoring the prior
// terminal state afterward. This matters when the host's stdin is
// forwarded into a TTYIn child: without it, the host terminal's own
// line-discipline double-processes control characters the child
// expects to see raw (Ctrl-C, Ctrl-D) before the child's pty ever gets
// them.
func withHostRawMode(f *os.File, fn func()) error {
	if !term.IsTerminal(int(f.Fd())) {
		fn()
		return nil
	}
	state, err := term.MakeRaw(int(f.Fd()))
	if err != nil {
		return err
	}
	defer term.Restore(int(f.Fd()), state)
	fn()
	return nil
}
