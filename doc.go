// Package sh lets a Go program invoke external executables as if they
// were ordinary procedures. A Template describes how to run a
// command; calling it produces a Handle whose text is the captured
// stdout, while still exposing exit status, stderr, and the literal
// argv that was executed.
//
//	ls, err := sh.NewCommand("ls")
//	out, err := ls.Call(ctx, "-la", sh.Cwd("/tmp"))
//	fmt.Println(out) // out.String() == captured stdout
//
// Templates bake: Bake returns a new Template with extra prefix
// arguments and defaults fixed in, without mutating the parent. Piping
// composes Handles: passing one Handle (created with Piped()) as a
// positional argument to another Call feeds its stdout into the new
// invocation's stdin, the way a shell pipeline would.
package sh
