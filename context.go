package sh

import "context"

// prefixKey is the context key under which a scoped default template
// is carried. Go has no thread-local storage, so the "with"-scoped
// default-provider from spec §4.5/§9 is modeled as an explicit
// context.Context value instead of an implicit dynamic/thread-local
// stack: callers that want "with"-style scoping pass the returned
// context down explicitly.
type prefixKey struct{}

// WithContext returns a copy of ctx under which any Call composes
// prefix as a wrapping command: prefix.argv becomes the executable
// actually run, with the nested template's own resolved command
// appended as its trailing arguments. This is how a timing wrapper
// ("time some-command ...") or similar outer command is composed
// around an inner one.
//
// Nesting is supported: WithContext layered twice composes both
// prefixes outermost-first.
func WithContext(ctx context.Context, prefix *Template) context.Context {
	if outer := prefixFromContext(ctx); outer != nil {
		prefix = &Template{
			execPath: outer.execPath,
			argv:     append(append(append([]string{}, outer.argv...), prefix.execPath), prefix.argv...),
			opts:     append(append([]Option{}, outer.opts...), prefix.opts...),
			logger:   prefix.logger,
		}
	}
	return context.WithValue(ctx, prefixKey{}, prefix)
}

func prefixFromContext(ctx context.Context) *Template {
	t, _ := ctx.Value(prefixKey{}).(*Template)
	return t
}
