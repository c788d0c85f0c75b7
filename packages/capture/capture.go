package capture

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Options selects which streams are intercepted during a run.
type Options struct {
	Stdout bool
	Stderr bool
	Log    bool
}

// Streams holds the buffers a run writes into. Buffers for disabled streams
// are nil. In parallel mode every worker owns a private Streams value; no
// process-level redirection happens there.
type Streams struct {
	Stdout *bytes.Buffer
	Stderr *bytes.Buffer
	Log    *bytes.Buffer
}

// NewStreams allocates buffers for the enabled streams.
func NewStreams(opts Options) *Streams {
	s := &Streams{}
	if opts.Stdout {
		s.Stdout = &bytes.Buffer{}
	}
	if opts.Stderr {
		s.Stderr = &bytes.Buffer{}
	}
	if opts.Log {
		s.Log = &bytes.Buffer{}
	}
	return s
}

// Empty reports whether nothing was written to any enabled stream.
func (s *Streams) Empty() bool {
	for _, buf := range []*bytes.Buffer{s.Stdout, s.Stderr, s.Log} {
		if buf != nil && buf.Len() > 0 {
			return false
		}
	}
	return true
}

// Combined renders all non-empty streams as one labelled text block.
func (s *Streams) Combined() string {
	var b strings.Builder
	section := func(label string, buf *bytes.Buffer) {
		if buf == nil || buf.Len() == 0 {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Captured %s:\n%s", label, buf.String())
	}
	section("stdout", s.Stdout)
	section("stderr", s.Stderr)
	section("logging", s.Log)
	return b.String()
}

// Reset truncates all buffers so the streams can be reused for the next job.
func (s *Streams) Reset() {
	for _, buf := range []*bytes.Buffer{s.Stdout, s.Stderr, s.Log} {
		if buf != nil {
			buf.Reset()
		}
	}
}

// LogWriter returns the destination for captured log output, or io.Discard
// when log capture is off.
func (s *Streams) LogWriter() io.Writer {
	if s.Log == nil {
		return io.Discard
	}
	return s.Log
}

// Capture redirects the process-level stdout/stderr file descriptors into a
// Streams value for the span between Start and Stop. Acquisition and release
// must pair exactly; Stop restores the original descriptors on every path.
//
// Only the sequential scheduler uses process-level redirection. Workers write
// through their private Streams directly, since swapping os.Stdout is global.
type Capture struct {
	opts    Options
	streams *Streams

	origStdout *os.File
	origStderr *os.File
	outPipe    *pipeCopier
	errPipe    *pipeCopier
	active     bool
}

// New prepares a capture with freshly allocated streams.
func New(opts Options) *Capture {
	return &Capture{opts: opts, streams: NewStreams(opts)}
}

// Streams exposes the buffers this capture writes into.
func (c *Capture) Streams() *Streams {
	return c.streams
}

// Start begins redirection. Calling Start on an active capture is an error.
func (c *Capture) Start() error {
	if c.active {
		return fmt.Errorf("capture already started")
	}
	if c.opts.Stdout {
		pc, err := newPipeCopier(c.streams.Stdout)
		if err != nil {
			return fmt.Errorf("redirecting stdout: %w", err)
		}
		c.origStdout = os.Stdout
		os.Stdout = pc.w
		c.outPipe = pc
	}
	if c.opts.Stderr {
		pc, err := newPipeCopier(c.streams.Stderr)
		if err != nil {
			c.restoreStdout()
			return fmt.Errorf("redirecting stderr: %w", err)
		}
		c.origStderr = os.Stderr
		os.Stderr = pc.w
		c.errPipe = pc
	}
	c.active = true
	return nil
}

// Stop ends redirection, restores the original descriptors and flushes the
// buffers. Safe to call once per Start.
func (c *Capture) Stop() error {
	if !c.active {
		return nil
	}
	c.active = false
	c.restoreStdout()
	if c.errPipe != nil {
		os.Stderr = c.origStderr
		c.errPipe.close()
		c.errPipe = nil
	}
	return nil
}

func (c *Capture) restoreStdout() {
	if c.outPipe != nil {
		os.Stdout = c.origStdout
		c.outPipe.close()
		c.outPipe = nil
	}
}

type pipeCopier struct {
	r, w *os.File
	done sync.WaitGroup
}

func newPipeCopier(dst io.Writer) (*pipeCopier, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	pc := &pipeCopier{r: r, w: w}
	pc.done.Add(1)
	go func() {
		defer pc.done.Done()
		_, _ = io.Copy(dst, r)
	}()
	return pc, nil
}

func (pc *pipeCopier) close() {
	_ = pc.w.Close()
	pc.done.Wait()
	_ = pc.r.Close()
}
