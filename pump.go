package sh

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"syscall"
)

// capture accumulates stdout/stderr chunks for later retrieval via
// Handle.Stdout/Stderr/String/Int. When max is zero every chunk
// written is kept; when max is positive only the most recently
// written max chunks are retained, oldest discarded first. This is
// how InternalBufsize bounds memory when a callback or iterator is
// also draining the same stream (spec §9).
type capture struct {
	mu     sync.Mutex
	max    int
	chunks [][]byte
}

func newCapture(max int) *capture {
	return &capture{max: max}
}

func (c *capture) add(b []byte) {
	if c == nil {
		return
	}
	cp := append([]byte(nil), b...)
	c.mu.Lock()
	c.chunks = append(c.chunks, cp)
	if c.max > 0 && len(c.chunks) > c.max {
		c.chunks = c.chunks[len(c.chunks)-c.max:]
	}
	c.mu.Unlock()
}

func (c *capture) Bytes() []byte {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var buf bytes.Buffer
	for _, chunk := range c.chunks {
		buf.Write(chunk)
	}
	return buf.Bytes()
}

// outputPump reads src in bufsize-sized chunks and fans each chunk out
// to every configured destination: raw sinks, the bounded capture
// buffer, a user callback, and/or an iterator channel. All four are
// independent and any subset may be active at once.
type outputPump struct {
	src     io.Reader
	bufsize int
	sinks   []io.Writer
	// pipeSink is the write end of a Piped() Handle's downstream
	// connection, if any. Unlike sinks, a write failure here (the
	// downstream consumer went away) kills proc and ends the pump
	// early instead of being ignored: otherwise an infinite producer
	// like "yes" piped into something that stops reading would pump
	// forever with nothing to show for it.
	pipeSink    *io.PipeWriter
	capture     *capture
	callback    func(chunk string, stdin io.Writer, proc *Process)
	stdinW      io.Writer
	proc        *Process
	iterCh      chan string
	iterNoblock bool
}

// run dispatches on bufsize per spec §4.3: 0 delivers raw bytes as
// they arrive (unbuffered), 1 accumulates until a newline and
// delivers whole lines (line-buffered, the default), and anything
// greater delivers fixed-size byte chunks.
func (p *outputPump) run() error {
	defer func() {
		if p.iterCh != nil {
			close(p.iterCh)
		}
	}()
	if p.bufsize == 1 {
		return p.runLineBuffered()
	}
	return p.runChunked()
}

func (p *outputPump) runChunked() error {
	bufsize := p.bufsize
	if bufsize <= 0 {
		bufsize = 1
	}
	buf := make([]byte, bufsize)
	for {
		n, err := io.ReadFull(p.src, buf)
		if n > 0 {
			if !p.deliver(buf[:n]) {
				return nil
			}
		}
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return err
		}
	}
}

// runLineBuffered accumulates bytes until a newline and delivers each
// line, newline included, as one chunk; any trailing bytes with no
// final newline are delivered as a last, short chunk at EOF. This is
// the "_out_bufsize=1" behavior of the reference implementation:
// test_stdout_callback_line_buffered expects one callback invocation
// per printed line, not per byte.
func (p *outputPump) runLineBuffered() error {
	r := bufio.NewReader(p.src)
	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			if !p.deliver(line) {
				return nil
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// deliver fans one chunk out to every configured destination: raw
// sinks, the bounded capture buffer, a user callback, and/or an
// iterator channel. It returns false when pipeSink's downstream
// consumer has gone away, telling the caller to stop pumping instead
// of reading an upstream producer (e.g. "yes") forever with nowhere
// for the output to go.
func (p *outputPump) deliver(chunk []byte) bool {
	for _, s := range p.sinks {
		s.Write(chunk) //nolint:errcheck // best-effort fan-out, draining continues regardless
	}
	if p.pipeSink != nil {
		if _, err := p.pipeSink.Write(chunk); err != nil {
			if p.proc != nil {
				p.proc.Kill() //nolint:errcheck // downstream is gone, nothing left to wait for
			}
			return false
		}
	}
	p.capture.add(chunk)
	if p.callback != nil {
		p.callback(string(chunk), p.stdinW, p.proc)
	}
	if p.iterCh != nil {
		text := string(chunk)
		if p.iterNoblock {
			select {
			case p.iterCh <- text:
			default:
			}
		} else {
			p.iterCh <- text
		}
	}
	return true
}

// stdinPump writes src to w and closes w when done, regardless of the
// concrete source type. It is run in its own goroutine so that a slow
// or unbounded reader on the other side (spec's huge-piped-data case)
// can be drained concurrently with the output pumps instead of
// serialized behind them. A broken pipe (the child closed its stdin
// early, e.g. "head -c N") is treated as a clean end of input.
func stdinPump(w io.WriteCloser, src any) (err error) {
	defer w.Close()
	defer func() {
		if errors.Is(err, syscall.EPIPE) {
			err = nil
		}
	}()
	switch v := src.(type) {
	case nil:
		return nil
	case *Handle:
		if v.pipeR != nil {
			_, err := io.Copy(w, v.pipeR)
			// Unblock the upstream pump's write into the other end of
			// this pipe once we stop reading, whether we stopped
			// because the source was exhausted or because our own
			// write side errored out early (e.g. "head -c N").
			v.pipeR.CloseWithError(err)
			return err
		}
		_, err := io.WriteString(w, v.String())
		return err
	case string:
		_, err := io.WriteString(w, v)
		return err
	case []byte:
		_, err := w.Write(v)
		return err
	case StdinWriter:
		return v.WriteStdin(w)
	case chan string:
		for s := range v {
			if _, err := io.WriteString(w, s); err != nil {
				return err
			}
		}
		return nil
	case <-chan string:
		for s := range v {
			if _, err := io.WriteString(w, s); err != nil {
				return err
			}
		}
		return nil
	case chan []byte:
		for b := range v {
			if _, err := w.Write(b); err != nil {
				return err
			}
		}
		return nil
	case <-chan []byte:
		for b := range v {
			if _, err := w.Write(b); err != nil {
				return err
			}
		}
		return nil
	case io.Reader:
		_, err := io.Copy(w, v)
		return err
	default:
		return fmt.Errorf("sh: unsupported stdin source type %T", src)
	}
}
