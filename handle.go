package sh

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"
)

// Handle is the result of a Call: it exposes captured output the way
// Python's sh library exposes a RunningCommand (stringifying to
// stdout), plus whatever streaming surface the call's options asked
// for (an iterator channel, a piped reader for the next command, or
// control over the live Process).
type Handle struct {
	argv    []string
	okCodes []int
	piped   bool
	logger  *slog.Logger

	process   *Process
	waitGroup *errgroup.Group
	started   bool

	stdoutSinks   []io.Writer
	stdoutCapture *capture
	stderrCapture *capture

	pipeR     *io.PipeReader
	iterOutCh chan string
	iterErrCh chan string

	// upstream is set when this call's stdin source was a Piped
	// Handle: waiting on this Handle also reaps upstream instead of
	// leaving it running forever unreaped (spec §9 "Pipeline
	// lifetime"). Upstream pump errors surface; its exit status does not.
	upstream *Handle

	waitOnce sync.Once
	waitErr  error
	exitCode int
	ran      bool
}

// wait drains the pump goroutines and then waits for the process to
// exit, in that order: exec.Cmd.Wait documents that it is incorrect to
// call Wait before all reads from a StdoutPipe/StderrPipe have
// finished, since Wait closes the underlying pipes as soon as the
// child exits.
func (h *Handle) wait(ctx context.Context) error {
	h.waitOnce.Do(func() {
		pumpErr := h.waitGroup.Wait()
		waitErr := h.process.cmd.Wait()
		h.ran = true
		h.exitCode = exitCodeOf(waitErr)

		if h.logger != nil {
			h.logger.DebugContext(ctx, "sh: finished", "sh.exit_code", h.exitCode)
		}

		_, waitErrIsExit := waitErr.(*exec.ExitError)
		switch {
		case waitErr != nil && !waitErrIsExit:
			h.waitErr = fmt.Errorf("sh: waiting for %s: %w", h.argv[0], waitErr)
		case !h.okCode(h.exitCode):
			h.waitErr = &ExitError{
				Argv:       h.argv,
				ExitCode:   h.exitCode,
				StdoutTail: string(h.stdoutCapture.Bytes()),
				StderrTail: string(h.stderrCapture.Bytes()),
			}
		case pumpErr != nil:
			h.waitErr = fmt.Errorf("sh: streaming %s: %w", h.argv[0], pumpErr)
		}

		// Reap the upstream side of a pipeline unconditionally, even if
		// this handle's own wait already failed above: otherwise a
		// Piped producer is left running (and unreaped) forever once
		// its consumer exits (spec §9 "Pipeline lifetime"). A producer
		// that stops only because we killed it after its downstream
		// consumer went away (outputPump.deliver, pipeSink write
		// failure) is expected, the same way a shell pipeline's exit
		// status ignores an upstream's SIGPIPE death unless pipefail is
		// set: only genuine infrastructure/pump errors from upstream are
		// surfaced, not its plain non-zero/signal exit.
		if h.upstream != nil {
			upstreamErr := h.upstream.wait(ctx)
			if h.waitErr == nil {
				if _, isExit := upstreamErr.(*ExitError); !isExit {
					h.waitErr = upstreamErr
				}
			}
		}
	})
	return h.waitErr
}

func (h *Handle) okCode(code int) bool {
	for _, c := range h.okCodes {
		if c == code {
			return true
		}
	}
	return false
}

// exitCodeOf decodes an exec.Cmd.Wait error into the exit code
// convention spec §6 uses: a non-negative code for a normal exit, or
// the negative signal number when the child was killed by a signal
// (mirroring the reference implementation's use of the negated
// signal).
func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		return -1
	}
	ws, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok {
		return exitErr.ExitCode()
	}
	if ws.Signaled() {
		return -int(ws.Signal())
	}
	return ws.ExitStatus()
}

// Wait blocks until the child has exited and every pump has finished
// draining, returning the same error Call would have returned had the
// options not deferred waiting (Bg, Piped, Iter).
func (h *Handle) Wait(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return h.wait(ctx)
}

// Ran returns the literal argv that was executed, with argv[0] the
// resolved absolute executable path (spec §8, I1).
func (h *Handle) Ran() []string { return h.argv }

// ExitCode returns the child's exit status: non-negative for a normal
// exit, negative (the negated signal number) if it was killed by a
// signal. It is only meaningful after Wait/Call has returned.
func (h *Handle) ExitCode() int { return h.exitCode }

// Stdout returns the bytes captured from stdout so far, bounded by
// InternalBufsize if one was set.
func (h *Handle) Stdout() []byte { return h.stdoutCapture.Bytes() }

// Stderr returns the bytes captured from stderr so far.
func (h *Handle) Stderr() []byte { return h.stderrCapture.Bytes() }

// Bytes is an alias for Stdout, for callers that find it reads better
// at the call site than Stdout does.
func (h *Handle) Bytes() []byte { return h.Stdout() }

// String returns the captured stdout as text, letting a Handle be
// used directly wherever a command's output is expected as a string.
// For a started child it first waits for completion, as Wait does.
func (h *Handle) String() string {
	if h.started {
		h.wait(context.Background()) //nolint:errcheck // the error is reported by Call/Wait
	}
	return string(h.Stdout())
}

// Int parses the captured stdout, trimmed of surrounding whitespace,
// as a base-10 integer.
func (h *Handle) Int() (int, error) {
	return strconv.Atoi(strings.TrimSpace(h.String()))
}

// Process returns the running child, for callers that registered an
// OnStdout/OnStderr callback with process control and want the same
// handle outside the callback too.
func (h *Handle) Process() *Process { return h.process }

// Terminate sends SIGTERM to the child's process group.
func (h *Handle) Terminate() error { return h.process.Terminate() }

// Kill sends SIGKILL to the child's process group.
func (h *Handle) Kill() error { return h.process.Kill() }

// Signal sends sig to the child's process group.
func (h *Handle) Signal(sig syscall.Signal) error { return h.process.Signal(sig) }

// Iter returns the channel of stdout chunks requested via
// Iter("out")/IterNoblock("out"). It is closed once stdout reaches
// EOF. Calling Iter without having set one of those options returns a
// nil channel.
func (h *Handle) Iter() <-chan string { return h.iterOutCh }

// IterErr is Iter for the stderr stream.
func (h *Handle) IterErr() <-chan string { return h.iterErrCh }
