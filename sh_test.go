package sh

import (
	"context"
	"strings"
	"testing"
	"time"
)

func mustCommand(t *testing.T, name string) *Template {
	t.Helper()
	tpl, err := NewCommand(name)
	if err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
	return tpl
}

func TestCallEchoRoundtrip(t *testing.T) {
	echo := mustCommand(t, "echo")
	out, err := echo.Call(context.Background(), "hello", "world")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got, want := out.String(), "hello world\n"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if out.ExitCode() != 0 {
		t.Errorf("ExitCode() = %d, want 0", out.ExitCode())
	}
}

func TestRanFirstElementIsAbsolutePath(t *testing.T) {
	echo := mustCommand(t, "echo")
	out, err := echo.Call(context.Background(), "x")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	argv := out.Ran()
	if len(argv) == 0 || !strings.HasPrefix(argv[0], "/") {
		t.Errorf("Ran()[0] = %v, want an absolute path", argv)
	}
}

func TestArgumentsArePassedLiterally(t *testing.T) {
	echo := mustCommand(t, "echo")
	weird := `it's "quoted" and has $dollar`
	out, err := echo.Call(context.Background(), weird)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got, want := strings.TrimRight(out.String(), "\n"), weird; got != want {
		t.Errorf("String() = %q, want %q (argv must not be shell-quoted/expanded)", got, want)
	}
}

func TestExitCodeNonZeroIsError(t *testing.T) {
	shCmd := mustCommand(t, "sh")
	_, err := shCmd.Call(context.Background(), "-c", "exit 3")
	if err == nil {
		t.Fatal("Call: want an error for non-zero exit")
	}
	exitErr, ok := err.(*ExitError)
	if !ok {
		t.Fatalf("Call error = %T, want *ExitError", err)
	}
	if exitErr.ExitCode != 3 {
		t.Errorf("ExitError.ExitCode = %d, want 3", exitErr.ExitCode)
	}
}

func TestOkCodeAcceptsAlternateCodes(t *testing.T) {
	shCmd := mustCommand(t, "sh")
	out, err := shCmd.Call(context.Background(), "-c", "exit 3", OkCode(0, 3))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if out.ExitCode() != 3 {
		t.Errorf("ExitCode() = %d, want 3", out.ExitCode())
	}
}

func TestBakePrefixesArgsBeforeCallSite(t *testing.T) {
	echo := mustCommand(t, "echo")
	baked := echo.Bake("baked")
	out, err := baked.Call(context.Background(), "call-site")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got, want := out.String(), "baked call-site\n"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestBakeDoesNotMutateParent(t *testing.T) {
	echo := mustCommand(t, "echo")
	_ = echo.Bake("baked")
	out, err := echo.Call(context.Background(), "plain")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got, want := out.String(), "plain\n"; got != want {
		t.Errorf("Bake must not mutate its receiver: String() = %q, want %q", got, want)
	}
}

func TestInStringFeedsStdin(t *testing.T) {
	cat := mustCommand(t, "cat")
	out, err := cat.Call(context.Background(), In("hello via stdin"))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got, want := out.String(), "hello via stdin"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestEnvReplacesEntirely(t *testing.T) {
	shCmd := mustCommand(t, "sh")
	// The shell sets a default PATH itself, so a host-only variable is
	// what shows whether the host environment leaked through.
	t.Setenv("SH_TEST_HOST_ONLY", "host")
	out, err := shCmd.Call(context.Background(), "-c", "echo $FOO-$SH_TEST_HOST_ONLY", Env([]string{"FOO=bar"}))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got, want := out.String(), "bar-\n"; got != want {
		t.Errorf("String() = %q, want %q (Env must replace, not merge)", got, want)
	}
}

func TestCwdChangesWorkingDirectory(t *testing.T) {
	pwd := mustCommand(t, "pwd")
	out, err := pwd.Call(context.Background(), Cwd("/"))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got, want := strings.TrimRight(out.String(), "\n"), "/"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestPipeline(t *testing.T) {
	echo := mustCommand(t, "echo")
	tr := mustCommand(t, "tr")

	upper, err := echo.Call(context.Background(), "abc", Piped())
	if err != nil {
		t.Fatalf("upstream Call: %v", err)
	}
	out, err := tr.Call(context.Background(), "a-z", "A-Z", upper)
	if err != nil {
		t.Fatalf("downstream Call: %v", err)
	}
	if got, want := out.String(), "ABC\n"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestBgDoesNotBlock(t *testing.T) {
	shCmd := mustCommand(t, "sh")
	start := time.Now()
	h, err := shCmd.Call(context.Background(), "-c", "sleep 5", Bg())
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Call with Bg() blocked for %v, want near-instant return", elapsed)
	}
	if err := h.Terminate(); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	_ = h.Wait(context.Background())
}

func TestTerminateYieldsNegativeSignalExitCode(t *testing.T) {
	shCmd := mustCommand(t, "sh")
	h, err := shCmd.Call(context.Background(), "-c", "sleep 30", Bg())
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if err := h.Terminate(); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	_ = h.Wait(context.Background())
	if h.ExitCode() >= 0 {
		t.Errorf("ExitCode() = %d, want negative (signaled)", h.ExitCode())
	}
}

func TestOnStdoutCallbackReceivesChunks(t *testing.T) {
	shCmd := mustCommand(t, "sh")
	var got []string
	_, err := shCmd.Call(context.Background(), "-c", "echo one; echo two",
		OutBufsize(1024),
		OnStdout(StdoutCallback1(func(chunk string) { got = append(got, chunk) })))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("OnStdout callback was never invoked")
	}
	joined := strings.Join(got, "")
	if joined != "one\ntwo\n" {
		t.Errorf("callback chunks joined = %q, want %q", joined, "one\ntwo\n")
	}
}

func TestIterOutStreamsLinesInOrder(t *testing.T) {
	shCmd := mustCommand(t, "sh")
	h, err := shCmd.Call(context.Background(), "-c", "echo one; echo two; echo three", OutBufsize(1), Iter("out"))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	var got []string
	for chunk := range h.Iter() {
		got = append(got, chunk)
	}
	if err := h.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	want := []string{"one\n", "two\n", "three\n"}
	if len(got) != len(want) {
		t.Fatalf("Iter() yielded %d chunks %q, want %d chunks %q", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("yield %d = %q, want %q", i, got[i], want[i])
		}
	}
}

// TestOnStdoutCallbackLineBufferedCount grounds spec §4.3's default
// bufsize=1 behavior: one callback invocation per printed line,
// mirroring the reference implementation's test_stdout_callback_line_buffered
// (5 printed lines, 5 callback calls) rather than per-byte or
// per-joined-output delivery.
func TestOnStdoutCallbackLineBufferedCount(t *testing.T) {
	shCmd := mustCommand(t, "sh")
	var got []string
	_, err := shCmd.Call(context.Background(), "-c", "echo a; echo b; echo c; echo d; echo e",
		OnStdout(StdoutCallback1(func(chunk string) { got = append(got, chunk) })))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	want := []string{"a\n", "b\n", "c\n", "d\n", "e\n"}
	if len(got) != len(want) {
		t.Fatalf("callback fired %d times with %q, want %d times with %q", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("callback %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestInternalBufsizeBoundsCapture(t *testing.T) {
	shCmd := mustCommand(t, "sh")
	out, err := shCmd.Call(context.Background(), "-c", "printf 'A%.0s' $(seq 1 1000)",
		OutBufsize(0), InternalBufsize(100))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got := len(out.Stdout()); got != 100 {
		t.Errorf("len(Stdout()) = %d, want 100 (1-byte chunks capped to the last 100)", got)
	}
}

func TestHugePipedDataDoesNotDeadlock(t *testing.T) {
	yes := mustCommand(t, "yes")
	head := mustCommand(t, "head")

	done := make(chan struct{})
	go func() {
		defer close(done)
		source, err := yes.Call(context.Background(), Piped())
		if err != nil {
			t.Errorf("upstream Call: %v", err)
			return
		}
		out, err := head.Call(context.Background(), "-c", "1000000", source)
		if err != nil {
			t.Errorf("downstream Call: %v", err)
			return
		}
		if len(out.Stdout()) != 1000000 {
			t.Errorf("len(Stdout()) = %d, want 1000000", len(out.Stdout()))
		}
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("piping a large stream deadlocked")
	}
}

func TestIntParsesTrimmedStdout(t *testing.T) {
	echo := mustCommand(t, "echo")
	out, err := echo.Call(context.Background(), "42")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	n, err := out.Int()
	if err != nil {
		t.Fatalf("Int: %v", err)
	}
	if n != 42 {
		t.Errorf("Int() = %d, want 42", n)
	}
}

func TestWithContextComposesWrapper(t *testing.T) {
	wrapper := mustCommand(t, "echo").Bake("via-prefix")
	inner := mustCommand(t, "echo")

	ctx := WithContext(context.Background(), wrapper)
	out, err := inner.Call(ctx, "x")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	fields := strings.Fields(out.String())
	if len(fields) < 3 || fields[0] != "via-prefix" || fields[len(fields)-1] != "x" {
		t.Errorf("String() = %q, want it to start with the wrapper's prefix arg and end with the inner call's arg", out.String())
	}
}
