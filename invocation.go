package sh

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// invocation collects every special option baked or supplied for a
// single Call before the child process is spawned. It is assembled by
// applying a template's baked Options followed by the call site's own
// Options, in order, so a later option of the same kind overrides an
// earlier one; Out and Err sinks accumulate instead.
type invocation struct {
	stdinSrc    any
	stdoutSinks []io.Writer
	stderrSinks []io.Writer
	errToOut    bool

	piped bool
	bg    bool

	stdoutCallback func(chunk string, stdin io.Writer, proc *Process)
	stderrCallback func(chunk string, stdin io.Writer, proc *Process)

	iterOut, iterErr, iterNoblock bool

	ttyIn, ttyOut bool

	dir    string
	env    []string
	envSet bool

	okCodes []int

	outBufsize, errBufsize, internalBufsize int
}

// newInvocation sets the defaults spec §4.3 specifies: exit code 0 is
// the only success code, and both streams are line-buffered
// (bufsize=1) unless a call overrides it with OutBufsize/ErrBufsize.
func newInvocation() *invocation {
	return &invocation{okCodes: []int{0}, outBufsize: 1, errBufsize: 1}
}

// validate rejects combinations of options that cannot be honored
// together, per spec §4.4.
func (inv *invocation) validate() error {
	if inv.piped && inv.iterOut {
		return &IncompatibleOptionsError{Reason: "Piped and Iter(\"out\") cannot both be set: Piped already streams stdout to the next call"}
	}
	if inv.ttyIn && inv.bg {
		return &IncompatibleOptionsError{Reason: "TTYIn is not supported for background calls"}
	}
	return nil
}

// invoke is the single entry point reached from Template.Call: it
// resolves the final argv (folding in any ambient WithContext prefix
// and this template's baked state), applies options, configures the
// child's stdio, starts it, and either blocks for completion or
// returns immediately, depending on which options were given.
func (t *Template) invoke(ctx context.Context, args []any) (*Handle, error) {
	execPath := t.execPath
	baseArgv := append([]string{}, t.argv...)
	bakedOpts := append([]Option{}, t.opts...)

	if prefix := prefixFromContext(ctx); prefix != nil {
		baseArgv = append(append(append([]string{}, prefix.argv...), execPath), baseArgv...)
		execPath = prefix.execPath
		bakedOpts = append(append([]Option{}, prefix.opts...), bakedOpts...)
	}

	tokens, callOpts := splitArgs(args)
	callArgv, upstream, err := marshalArgs(tokens, true)
	if err != nil {
		return nil, err
	}
	argv := append(baseArgv, callArgv...)

	inv := newInvocation()
	if upstream != nil {
		inv.stdinSrc = upstream
	}
	for _, opt := range append(bakedOpts, callOpts...) {
		if err := opt.apply(inv); err != nil {
			return nil, err
		}
	}
	if err := inv.validate(); err != nil {
		return nil, err
	}

	logger := t.logger
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.New().String()
	fullArgv := append([]string{execPath}, argv...)
	logger = logger.With("sh.invocation", id, "sh.argv", fullArgv)

	cmd := exec.CommandContext(ctx, execPath, argv...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if inv.envSet {
		cmd.Env = inv.env
	}
	if inv.dir != "" {
		cmd.Dir = inv.dir
	}

	h := &Handle{
		argv:          fullArgv,
		okCodes:       inv.okCodes,
		piped:         inv.piped,
		stdoutCapture: newCapture(inv.internalBufsize),
		stderrCapture: newCapture(inv.internalBufsize),
		logger:        logger,
	}
	// An explicit In() at bake or call time can still override the
	// piped stdin source applied above; only chain the upstream's
	// completion into this handle's Wait when it is still the actual
	// stdin source.
	if stdinUpstream, ok := inv.stdinSrc.(*Handle); ok {
		h.upstream = stdinUpstream
	}

	group := &errgroup.Group{}

	if inv.ttyIn || inv.ttyOut {
		if err := startWithPTY(cmd, inv, h, group); err != nil {
			return nil, err
		}
	} else {
		if err := startWithPipes(cmd, inv, h, group); err != nil {
			return nil, err
		}
	}

	h.waitGroup = group
	h.started = true

	logger.InfoContext(ctx, "sh: started")

	if inv.bg || inv.piped || inv.iterOut || inv.iterErr {
		return h, nil
	}

	waitErr := h.wait(ctx)
	return h, waitErr
}

// startWithPipes wires the child's stdio through plain OS pipes and
// starts the pump goroutines that drain them.
func startWithPipes(cmd *exec.Cmd, inv *invocation, h *Handle, group *errgroup.Group) error {
	var stdinW io.WriteCloser
	if inv.stdinSrc != nil {
		w, err := cmd.StdinPipe()
		if err != nil {
			return fmt.Errorf("sh: stdin pipe: %w", err)
		}
		stdinW = w
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("sh: stdout pipe: %w", err)
	}

	var stderr io.ReadCloser
	if inv.errToOut {
		cmd.Stderr = cmd.Stdout
	} else {
		stderr, err = cmd.StderrPipe()
		if err != nil {
			return fmt.Errorf("sh: stderr pipe: %w", err)
		}
	}

	if err := cmd.Start(); err != nil {
		return classifyStartError(cmd, err)
	}
	h.process = &Process{cmd: cmd}

	if stdinW != nil {
		group.Go(func() error { return stdinPump(stdinW, inv.stdinSrc) })
	}

	h.stdoutSinks = inv.stdoutSinks
	var pipeSink *io.PipeWriter
	if inv.piped {
		pr, pw := io.Pipe()
		h.pipeR = pr
		pipeSink = pw
	}
	if inv.iterOut {
		h.iterOutCh = make(chan string, 16)
	}

	outPump := &outputPump{
		src:         stdout,
		bufsize:     inv.outBufsize,
		sinks:       h.stdoutSinks,
		pipeSink:    pipeSink,
		capture:     h.stdoutCapture,
		callback:    inv.stdoutCallback,
		stdinW:      stdinW,
		proc:        h.process,
		iterCh:      h.iterOutCh,
		iterNoblock: inv.iterNoblock,
	}
	group.Go(func() error {
		err := outPump.run()
		if pipeSink != nil {
			pipeSink.Close()
		}
		return err
	})

	if stderr != nil {
		if inv.iterErr {
			h.iterErrCh = make(chan string, 16)
		}
		errPump := &outputPump{
			src:         stderr,
			bufsize:     inv.errBufsize,
			sinks:       inv.stderrSinks,
			capture:     h.stderrCapture,
			callback:    inv.stderrCallback,
			stdinW:      stdinW,
			proc:        h.process,
			iterCh:      h.iterErrCh,
			iterNoblock: inv.iterNoblock,
		}
		group.Go(errPump.run)
	}

	return nil
}

// startWithPTY allocates a pseudo-terminal for the child so that
// isatty checks in the child pass, then pumps the single combined
// master fd exactly as startWithPipes pumps stdout.
func startWithPTY(cmd *exec.Cmd, inv *invocation, h *Handle, group *errgroup.Group) error {
	master, err := pty.Start(cmd)
	if err != nil {
		return classifyStartError(cmd, err)
	}
	h.process = &Process{cmd: cmd}

	if inv.stdinSrc != nil {
		group.Go(func() error {
			if f, ok := inv.stdinSrc.(*os.File); ok {
				var pumpErr error
				if err := withHostRawMode(f, func() { pumpErr = stdinPump(nopCloser{master}, f) }); err != nil {
					return err
				}
				return pumpErr
			}
			return stdinPump(nopCloser{master}, inv.stdinSrc)
		})
	}

	h.stdoutSinks = inv.stdoutSinks
	if inv.iterOut {
		h.iterOutCh = make(chan string, 16)
	}
	outPump := &outputPump{
		src:         master,
		bufsize:     inv.outBufsize,
		sinks:       h.stdoutSinks,
		capture:     h.stdoutCapture,
		callback:    inv.stdoutCallback,
		stdinW:      master,
		proc:        h.process,
		iterCh:      h.iterOutCh,
		iterNoblock: inv.iterNoblock,
	}
	group.Go(func() error {
		err := outPump.run()
		master.Close()
		return err
	})
	return nil
}

// nopCloser adapts the pty master fd, which must stay open for
// reading after stdin is done being written, to io.WriteCloser.
type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// classifyStartError maps the narrow set of exec.Cmd.Start failures
// worth distinguishing (missing executable) onto ErrCommandNotFound;
// everything else is returned wrapped as-is.
func classifyStartError(cmd *exec.Cmd, err error) error {
	if os.IsNotExist(err) {
		return &ErrCommandNotFound{Name: cmd.Path, Err: err}
	}
	return fmt.Errorf("sh: starting %s: %w", cmd.Path, err)
}

// Process is a running child, exposing the minimal control surface
// Python's sh library gives background/callback code: the ability to
// signal it. Signals are delivered to the whole process group (the
// child was started with Setpgid), matching a shell's own job-control
// behavior of killing a pipeline as a unit rather than one pid.
type Process struct {
	cmd *exec.Cmd
}

// Pid returns the child's process id.
func (p *Process) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Signal delivers sig to the child's process group.
func (p *Process) Signal(sig syscall.Signal) error {
	pid := p.Pid()
	if pid == 0 {
		return fmt.Errorf("sh: process has not started")
	}
	return syscall.Kill(-pid, sig)
}

// Terminate sends SIGTERM to the child's process group.
func (p *Process) Terminate() error { return p.Signal(syscall.SIGTERM) }

// Kill sends SIGKILL to the child's process group.
func (p *Process) Kill() error { return p.Signal(syscall.SIGKILL) }
