package sh

import "io"

// Option is a special option: a configuration value that changes how
// a call is executed rather than what argv it receives. Options are
// threaded through the same variadic argument list as positionals and
// Flags (Go has no keyword-argument syntax to separate them), and are
// pulled out by splitArgs before marshalling.
type Option interface {
	apply(*invocation) error
}

type optionFunc func(*invocation) error

func (f optionFunc) apply(inv *invocation) error { return f(inv) }

// In sets the child's stdin. Accepted sources: string, []byte,
// io.Reader, a channel of strings/[]byte (each value is written then
// the pipe is closed when the channel closes), or a StdinWriter that
// is invoked with the pipe once the child has started.
func In(src any) Option {
	return optionFunc(func(inv *invocation) error {
		inv.stdinSrc = src
		return nil
	})
}

// Out redirects stdout to an additional sink (io.Writer) on top of
// whatever capture/callback/Piped behavior is already configured.
func Out(w io.Writer) Option {
	return optionFunc(func(inv *invocation) error {
		inv.stdoutSinks = append(inv.stdoutSinks, w)
		return nil
	})
}

// Err redirects stderr to an additional sink.
func Err(w io.Writer) Option {
	return optionFunc(func(inv *invocation) error {
		inv.stderrSinks = append(inv.stderrSinks, w)
		return nil
	})
}

// ErrToOut merges stderr into the stdout stream instead of keeping
// them separate.
func ErrToOut() Option {
	return optionFunc(func(inv *invocation) error {
		inv.errToOut = true
		return nil
	})
}

// Piped marks the resulting Handle as a pipeline source: its stdout is
// captured (as normal) but the Handle may also be passed as a
// positional argument to a subsequent Call, which feeds this child's
// stdout into the next child's stdin through an in-process pipe and
// the next call's stdin pump. Piped implies Bg: the call
// does not block waiting for this command to finish.
func Piped() Option {
	return optionFunc(func(inv *invocation) error {
		inv.piped = true
		return nil
	})
}

// Bg runs the command in the background: Call returns immediately
// with a Handle whose Wait method blocks until the child exits.
func Bg() Option {
	return optionFunc(func(inv *invocation) error {
		inv.bg = true
		return nil
	})
}

// StdoutCallback1 is invoked once per chunk of stdout output.
type StdoutCallback1 func(chunk string)

// StdoutCallback2 additionally receives the child's stdin, letting the
// callback drive an interactive session.
type StdoutCallback2 func(chunk string, stdin io.Writer)

// StdoutCallback3 additionally receives the running Process, letting
// the callback terminate or signal the child based on its own output.
type StdoutCallback3 func(chunk string, stdin io.Writer, proc *Process)

// OnStdout registers a callback invoked for every chunk of stdout as
// it is produced (chunk size is controlled by OutBufsize). Returning
// false from a returned stop function is not supported; instead use
// one of the three callback arities matching how much control the
// callback needs, mirroring spec §4.3's dynamic-arity dispatch with Go
// function overloading via distinct named types.
func OnStdout(cb any) Option {
	return optionFunc(func(inv *invocation) error {
		switch fn := cb.(type) {
		case StdoutCallback1:
			inv.stdoutCallback = func(chunk string, w io.Writer, p *Process) { fn(chunk) }
		case StdoutCallback2:
			inv.stdoutCallback = func(chunk string, w io.Writer, p *Process) { fn(chunk, w) }
		case StdoutCallback3:
			inv.stdoutCallback = fn
		case func(string):
			inv.stdoutCallback = func(chunk string, w io.Writer, p *Process) { fn(chunk) }
		case func(string, io.Writer):
			inv.stdoutCallback = func(chunk string, w io.Writer, p *Process) { fn(chunk, w) }
		case func(string, io.Writer, *Process):
			inv.stdoutCallback = fn
		default:
			return &IncompatibleOptionsError{Reason: "OnStdout requires a StdoutCallback1/2/3-shaped function"}
		}
		return nil
	})
}

// OnStderr is OnStdout for the stderr stream.
func OnStderr(cb any) Option {
	return optionFunc(func(inv *invocation) error {
		switch fn := cb.(type) {
		case StdoutCallback1:
			inv.stderrCallback = func(chunk string, w io.Writer, p *Process) { fn(chunk) }
		case StdoutCallback2:
			inv.stderrCallback = func(chunk string, w io.Writer, p *Process) { fn(chunk, w) }
		case StdoutCallback3:
			inv.stderrCallback = fn
		case func(string):
			inv.stderrCallback = func(chunk string, w io.Writer, p *Process) { fn(chunk) }
		case func(string, io.Writer):
			inv.stderrCallback = func(chunk string, w io.Writer, p *Process) { fn(chunk, w) }
		case func(string, io.Writer, *Process):
			inv.stderrCallback = fn
		default:
			return &IncompatibleOptionsError{Reason: "OnStderr requires a StdoutCallback1/2/3-shaped function"}
		}
		return nil
	})
}

// Iter puts the named stream ("out" or "err") into iterator mode: the
// returned Handle exposes a channel of chunks via Iter (or IterErr for
// "err"), and the capture buffer is still filled as well. Mutually
// exclusive with Piped on the same stream.
func Iter(stream string) Option {
	return optionFunc(func(inv *invocation) error {
		switch stream {
		case "out":
			inv.iterOut = true
		case "err":
			inv.iterErr = true
		default:
			return &IncompatibleOptionsError{Reason: "Iter stream must be \"out\" or \"err\", got " + stream}
		}
		return nil
	})
}

// IterNoblock is Iter with a non-blocking channel: a send that would
// block because nothing has read the previous chunk drops the new
// chunk instead of stalling the pump.
func IterNoblock(stream string) Option {
	return optionFunc(func(inv *invocation) error {
		if err := Iter(stream).apply(inv); err != nil {
			return err
		}
		inv.iterNoblock = true
		return nil
	})
}

// TTYIn allocates a pseudo-terminal for the child, so that programs
// which check isatty on their input behave as if run interactively.
// One pty is attached to all three of the child's standard streams;
// stdin is not given a pty of its own apart from stdout/stderr.
func TTYIn() Option {
	return optionFunc(func(inv *invocation) error {
		inv.ttyIn = true
		return nil
	})
}

// TTYOut allocates a pseudo-terminal for the child. As with TTYIn, one
// pty is attached to all three standard streams, stdin included.
func TTYOut() Option {
	return optionFunc(func(inv *invocation) error {
		inv.ttyOut = true
		return nil
	})
}

// Cwd sets the child's working directory.
func Cwd(dir string) Option {
	return optionFunc(func(inv *invocation) error {
		inv.dir = dir
		return nil
	})
}

// Env replaces the child's entire environment with env (formatted as
// "KEY=VALUE" strings, as in os.Environ). Unlike Cwd, which merely
// narrows the default, Env is a full replacement: the child does not
// inherit this process's environment at all once Env is given, per
// spec §4.2's "env replaces entirely" behavior.
func Env(env []string) Option {
	return optionFunc(func(inv *invocation) error {
		inv.env = env
		inv.envSet = true
		return nil
	})
}

// OkCode overrides the set of exit codes treated as success. The
// default is {0}.
func OkCode(codes ...int) Option {
	return optionFunc(func(inv *invocation) error {
		inv.okCodes = codes
		return nil
	})
}

// OutBufsize controls the granularity stdout is delivered in to
// callbacks/iterators/capture: 0 means unbuffered, one byte at a time;
// 1 (the default) means line-buffered, one callback/yield per line
// including its trailing newline; anything greater delivers fixed-size
// chunks of that many bytes.
func OutBufsize(n int) Option {
	return optionFunc(func(inv *invocation) error {
		inv.outBufsize = n
		return nil
	})
}

// ErrBufsize is OutBufsize for stderr; it also defaults to 1
// (line-buffered).
func ErrBufsize(n int) Option {
	return optionFunc(func(inv *invocation) error {
		inv.errBufsize = n
		return nil
	})
}

// InternalBufsize caps how many bufsize-sized chunks of output are
// retained for Handle.Stdout/Stderr/String, whether or not a callback
// or iterator is also consuming the stream: only the most recent n
// chunks are kept, oldest first discarded, rather than accumulating without
// bound (spec §9, resolving the internal_bufsize open question).
func InternalBufsize(n int) Option {
	return optionFunc(func(inv *invocation) error {
		inv.internalBufsize = n
		return nil
	})
}

// StdinWriter is implemented by callers that want to drive the
// child's stdin themselves once the process has started, instead of
// handing In a static source.
type StdinWriter interface {
	WriteStdin(w io.WriteCloser) error
}
