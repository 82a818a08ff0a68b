package sh

import (
	"context"
	"log/slog"
)

// Template is an immutable description of how to invoke an
// executable: an absolute path, a baked argument prefix, and a set of
// baked special-option defaults. New templates are produced by Bake,
// which combines an existing template with additional prefix
// arguments and/or defaults without mutating the parent.
type Template struct {
	execPath string
	argv     []string
	opts     []Option
	logger   *slog.Logger
}

// New builds a Template from an already-resolved absolute executable
// path. Name resolution itself (walking PATH) is the job of Which /
// NewCommand; New never touches the filesystem.
func New(execPath string) *Template {
	return &Template{execPath: execPath, logger: slog.Default()}
}

// NewCommand resolves name on PATH and builds a Template for it.
func NewCommand(name string) (*Template, error) {
	path, err := Which(name)
	if err != nil {
		return nil, err
	}
	return New(path), nil
}

// Bake returns a new Template with args fixed in as a prefix: any
// plain positional/flag values are marshalled and appended to the
// baked argv (always ahead of whatever a future Call supplies), and
// any Options are recorded as defaults applied before call-time
// options, so a Call can still override them.
//
// Bake is associative: t.Bake(a).Bake(b) and t.Bake(a, b) produce the
// same template, and never mutates t.
func (t *Template) Bake(args ...any) *Template {
	tokens, opts := splitArgs(args)
	bakedArgv, _, err := marshalArgs(tokens, false)
	if err != nil {
		// Bake has no error return in the spec surface (baking never
		// fails in the reference implementation); a marshalling
		// problem here is a programmer error, recorded as a literal
		// "<bake error: ...>" argv element that the child receives
		// when this template is called, instead of panicking at bake
		// time. Call itself does not report it as an error.
		bakedArgv = append(bakedArgv, "<bake error: "+err.Error()+">")
	}

	next := &Template{
		execPath: t.execPath,
		argv:     append(append([]string{}, t.argv...), bakedArgv...),
		opts:     append(append([]Option{}, t.opts...), opts...),
		logger:   t.logger,
	}
	return next
}

// Sub returns a new template with name appended as a subcommand
// token, e.g. git.Sub("commit") behaves like Bake("commit") but reads
// as attribute access at the call site.
func (t *Template) Sub(name string) *Template {
	return t.Bake(name)
}

// WithLogger returns a new template that logs through logger instead
// of slog.Default().
func (t *Template) WithLogger(logger *slog.Logger) *Template {
	next := *t
	next.logger = logger
	return &next
}

// Path returns the template's resolved executable path.
func (t *Template) Path() string { return t.execPath }

// Call marshals args (positional values, Flag values, and Options)
// against this template and runs the resulting invocation. Whether it
// blocks until the child finishes depends on the Options in play: Bg,
// Iter/IterNoblock, and Piped all return without waiting; otherwise
// Call blocks until the child exits and returns the completed Handle.
func (t *Template) Call(ctx context.Context, args ...any) (*Handle, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return t.invoke(ctx, args)
}
