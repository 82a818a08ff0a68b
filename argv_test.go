package sh

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMarshalFlag(t *testing.T) {
	cases := []struct {
		name string
		flag flagArg
		want []string
	}{
		{"short true", flagArg{"l", true}, []string{"-l"}},
		{"short false omitted", flagArg{"l", false}, nil},
		{"long name hyphenated", flagArg{"out_file", "x.txt"}, []string{"--out-file", "x.txt"}},
		{"long true bare", flagArg{"verbose", true}, []string{"--verbose"}},
		{"int value", flagArg{"n", 5}, []string{"-n", "5"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := marshalFlag(tc.flag)
			if err != nil {
				t.Fatalf("marshalFlag: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("marshalFlag() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSplitArgs(t *testing.T) {
	bg := Bg()
	tokens, opts := splitArgs([]any{"-la", Flag("l", true), bg, "/tmp"})
	if len(opts) != 1 {
		t.Fatalf("splitArgs opts = %v, want [bg]", opts)
	}
	inv := newInvocation()
	if err := opts[0].apply(inv); err != nil || !inv.bg {
		t.Fatalf("splitArgs opts[0] did not apply Bg (err %v)", err)
	}
	if len(tokens) != 3 {
		t.Fatalf("splitArgs tokens = %v, want 3 entries", tokens)
	}
}

func TestMarshalArgsPositionalsAndFlags(t *testing.T) {
	tokens, _ := splitArgs([]any{"-la", Flag("out_file", "x"), 42, []string{"a", "b"}})
	argv, upstream, err := marshalArgs(tokens, false)
	if err != nil {
		t.Fatalf("marshalArgs: %v", err)
	}
	if upstream != nil {
		t.Fatalf("unexpected upstream handle")
	}
	want := []string{"-la", "--out-file", "x", "42", "a", "b"}
	if diff := cmp.Diff(want, argv); diff != "" {
		t.Errorf("marshalArgs() mismatch (-want +got):\n%s", diff)
	}
}

func TestMarshalArgsEmptySliceOmitted(t *testing.T) {
	tokens, _ := splitArgs([]any{[]string{}})
	argv, _, err := marshalArgs(tokens, false)
	if err != nil {
		t.Fatalf("marshalArgs: %v", err)
	}
	if len(argv) != 0 {
		t.Errorf("marshalArgs() = %v, want empty argv for an empty glob result", argv)
	}
}

func TestMarshalArgsPipedHandleBecomesUpstream(t *testing.T) {
	h := &Handle{piped: true, stdoutCapture: newCapture(0)}
	tokens, _ := splitArgs([]any{h})

	argv, upstream, err := marshalArgs(tokens, true)
	if err != nil {
		t.Fatalf("marshalArgs: %v", err)
	}
	if upstream != h {
		t.Fatalf("marshalArgs() upstream = %v, want the piped handle", upstream)
	}
	if len(argv) != 0 {
		t.Errorf("marshalArgs() argv = %v, want empty since the handle became stdin, not an argument", argv)
	}
}

func TestMarshalArgsNonPipedHandleStringifies(t *testing.T) {
	h := &Handle{stdoutCapture: newCapture(0)}
	h.stdoutCapture.add([]byte("result\n"))
	tokens, _ := splitArgs([]any{h})

	argv, upstream, err := marshalArgs(tokens, true)
	if err != nil {
		t.Fatalf("marshalArgs: %v", err)
	}
	if upstream != nil {
		t.Fatalf("marshalArgs() upstream = %v, want nil for a non-piped handle", upstream)
	}
	if diff := cmp.Diff([]string{"result\n"}, argv); diff != "" {
		t.Errorf("marshalArgs() mismatch (-want +got):\n%s", diff)
	}
}
