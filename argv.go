package sh

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// flagArg is produced by Flag and represents a single keyword
// argument: name "x" (one rune) becomes "-x", anything longer becomes
// "--name" with underscores mapped to hyphens, exactly per spec §4.1.
type flagArg struct {
	name  string
	value any
}

// Flag builds a keyword-style argument for use alongside positional
// values in a Call or Bake, e.g. Flag("l", true) or Flag("out_file",
// "/tmp/x"). It is the idiomatic-Go stand-in for Python's **kwargs:
// Go has no analogous call syntax, so keyword arguments are ordinary
// values threaded through the same variadic argument list as
// positionals, and distinguished by type at marshalling time.
func Flag(name string, value any) any {
	return flagArg{name: name, value: value}
}

// splitArgs separates a Call/Bake argument list into marshalable
// tokens (positionals and Flags) and Options (special options), each
// preserving its relative order.
func splitArgs(args []any) (tokens []any, opts []Option) {
	for _, a := range args {
		if opt, ok := a.(Option); ok {
			opts = append(opts, opt)
			continue
		}
		tokens = append(tokens, a)
	}
	return tokens, opts
}

// marshalArgs turns a token list into an argv slice following spec
// §4.1's rules. When allowUpstream is true, a *Handle token marked
// Piped is not stringified: it is instead returned as the upstream
// invocation whose stdout becomes this call's stdin.
func marshalArgs(tokens []any, allowUpstream bool) (argv []string, upstream *Handle, err error) {
	for _, tok := range tokens {
		switch v := tok.(type) {
		case flagArg:
			toks, ferr := marshalFlag(v)
			if ferr != nil {
				return nil, nil, ferr
			}
			argv = append(argv, toks...)
		case *Handle:
			if allowUpstream && v.piped {
				if upstream != nil {
					return nil, nil, fmt.Errorf("sh: at most one piped upstream handle per call")
				}
				upstream = v
				continue
			}
			argv = append(argv, v.String())
		case []string:
			if len(v) == 0 {
				slog.Warn("sh: empty positional argument, possible failed glob expansion")
				continue
			}
			argv = append(argv, v...)
		case []any:
			if len(v) == 0 {
				slog.Warn("sh: empty positional argument, possible failed glob expansion")
				continue
			}
			for _, elem := range v {
				s, serr := stringify(elem)
				if serr != nil {
					return nil, nil, serr
				}
				argv = append(argv, s)
			}
		default:
			s, serr := stringify(v)
			if serr != nil {
				return nil, nil, serr
			}
			argv = append(argv, s)
		}
	}
	return argv, upstream, nil
}

// marshalFlag implements spec §4.1's keyword-argument rule: a
// single-rune name becomes "-X", anything longer becomes "--name"
// with underscores mapped to hyphens. Boolean true emits the bare
// flag, false suppresses it entirely, and any other value follows the
// flag as its own argv element.
func marshalFlag(f flagArg) ([]string, error) {
	name := f.name
	if len([]rune(name)) == 1 {
		name = "-" + name
	} else {
		name = "--" + strings.ReplaceAll(name, "_", "-")
	}

	if b, ok := f.value.(bool); ok {
		if b {
			return []string{name}, nil
		}
		return nil, nil
	}

	s, err := stringify(f.value)
	if err != nil {
		return nil, err
	}
	return []string{name, s}, nil
}

// stringify converts a single positional or flag value to its argv
// text. Values are never shell-quoted: they become distinct argv
// elements passed straight to exec, so embedded quotes and whitespace
// survive verbatim (spec §4.1, S6).
func stringify(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case fmt.Stringer:
		return x.String(), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), nil
	case bool:
		return strconv.FormatBool(x), nil
	case nil:
		return "", fmt.Errorf("sh: nil positional argument")
	default:
		return fmt.Sprintf("%v", x), nil
	}
}
