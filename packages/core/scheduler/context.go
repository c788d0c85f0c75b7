package scheduler

import (
	"fmt"
	"runtime"

	"github.com/rs/zerolog"

	"github.com/abdul-hamid-achik/featspec/packages/core/config"
)

// actor identifies who performed a context write: the framework itself or
// user code running inside UserMode.
type actor int

const (
	actorFramework actor = iota
	actorUser
)

func (a actor) String() string {
	if a == actorUser {
		return "user"
	}
	return "framework"
}

// AttributeNotFoundError is returned when a name does not resolve in any
// visible scope (Get) or in the innermost scope (Delete).
type AttributeNotFoundError struct {
	Name string
}

func (e *AttributeNotFoundError) Error() string {
	return fmt.Sprintf("context has no attribute %q at this level", e.Name)
}

type frame map[string]any

// callSite records where an attribute was most recently set, for masking
// diagnostics.
type callSite struct {
	file     string
	line     int
	function string
}

// Context is the scoped key/value store passed to every hook and step.
//
// It is an ordered stack of frames, innermost first, with a fixed root frame
// at the bottom that seeds failed=false, the active configuration and
// active_outline=nil. Scope entry and exit push and pop frames above the
// root and must pair exactly. Writes always land in the innermost frame;
// reads resolve innermost first.
//
// A Context belongs to exactly one scheduler (or one worker) for the span of
// a run and is not safe for concurrent use.
type Context struct {
	stack    []frame // innermost first; root is always last
	origin   map[string]actor
	record   map[string]callSite
	mode     actor
	verbose  bool
	masking  bool
	log      zerolog.Logger
	warnings []string
}

// ContextOption configures a Context at construction.
type ContextOption func(*Context)

// WithoutMaskingDiagnostics disables the masking checks. Worker-private
// contexts use this: provenance call sites recorded in another goroutine's
// context are meaningless there.
func WithoutMaskingDiagnostics() ContextOption {
	return func(c *Context) {
		c.masking = false
	}
}

// NewContext builds a context whose root frame carries the run-wide state.
func NewContext(cfg *config.Config, log zerolog.Logger, opts ...ContextOption) *Context {
	root := frame{
		"failed":         false,
		"config":         cfg,
		"active_outline": nil,
	}
	c := &Context{
		stack:   []frame{root},
		origin:  make(map[string]actor),
		record:  make(map[string]callSite),
		mode:    actorFramework,
		verbose: cfg != nil && cfg.Verbose,
		masking: true,
		log:     log,
	}
	// The seeded attributes count as framework writes, so shadowing them
	// from user code still produces a masking diagnostic.
	for name := range root {
		c.origin[name] = actorFramework
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get resolves name innermost frame first.
func (c *Context) Get(name string) (any, error) {
	for _, f := range c.stack {
		if v, ok := f[name]; ok {
			return v, nil
		}
	}
	return nil, &AttributeNotFoundError{Name: name}
}

// Set writes name into the innermost frame. If the name already exists in an
// outer frame a masking diagnostic may fire per the actor matrix; the write
// proceeds regardless.
func (c *Context) Set(name string, value any) {
	for _, f := range c.stack[1:] {
		if _, ok := f[name]; ok {
			c.emitMaskingWarning(name)
			break
		}
	}
	c.record[name] = callerSite(2)
	c.stack[0][name] = value
	if _, ok := c.origin[name]; !ok {
		c.origin[name] = c.mode
	}
}

// SetRoot bypasses frame ordering and writes directly into the root frame.
// Only the scheduler uses it, for suite-global signals such as "failed".
func (c *Context) SetRoot(name string, value any) {
	root := c.stack[len(c.stack)-1]
	for _, f := range c.stack[:len(c.stack)-1] {
		if _, ok := f[name]; ok {
			c.emitMaskingWarning(name)
			break
		}
	}
	c.record[name] = callerSite(2)
	root[name] = value
	if _, ok := c.origin[name]; !ok {
		c.origin[name] = c.mode
	}
}

// FailedRoot flips the suite-global failed flag in the root frame.
func (c *Context) FailedRoot() {
	c.SetRoot("failed", true)
}

// Delete removes name from the innermost frame only. Deletion is scope-local:
// a name visible only through an outer frame cannot be deleted here.
func (c *Context) Delete(name string) error {
	f := c.stack[0]
	if _, ok := f[name]; !ok {
		return &AttributeNotFoundError{Name: name}
	}
	delete(f, name)
	delete(c.record, name)
	return nil
}

// Contains reports whether name resolves in any visible frame.
func (c *Context) Contains(name string) bool {
	_, err := c.Get(name)
	return err == nil
}

// PushScope adds an empty innermost frame.
func (c *Context) PushScope() {
	c.stack = append([]frame{{}}, c.stack...)
}

// PopScope removes the innermost frame. The root frame is never popped;
// unbalanced calls are a scheduler bug.
func (c *Context) PopScope() {
	if len(c.stack) == 1 {
		panic("scheduler: context scope underflow, root frame cannot be popped")
	}
	c.stack = c.stack[1:]
}

// Depth reports the number of frames including the root.
func (c *Context) Depth() int {
	return len(c.stack)
}

// UserMode runs fn with the context's actor switched to user, reverting to
// framework on every exit path.
func (c *Context) UserMode(fn func() error) error {
	prev := c.mode
	c.mode = actorUser
	defer func() { c.mode = prev }()
	return fn()
}

// MaskingWarnings returns the diagnostics emitted so far.
func (c *Context) MaskingWarnings() []string {
	return c.warnings
}

// emitMaskingWarning applies the writer-mode x original-actor matrix. The
// diagnostics are non-fatal; runs never abort because of shadowing.
func (c *Context) emitMaskingWarning(name string) {
	if !c.masking {
		return
	}
	origin, known := c.origin[name]
	if !known {
		return
	}

	var msg string
	switch {
	case c.mode == actorFramework && origin == actorUser:
		site := c.record[name]
		msg = fmt.Sprintf("runner is masking context attribute %q originally set in %s (%s:%d)",
			name, site.function, site.file, site.line)
	case c.mode == actorUser && origin == actorFramework:
		msg = fmt.Sprintf("user code is masking context attribute %q originally set by the runner", name)
	case c.mode == actorUser && origin == actorUser:
		if !c.verbose {
			return
		}
		msg = fmt.Sprintf("user code is masking context attribute %q set earlier by user code", name)
	default:
		// framework over framework: expected, no diagnostic
		return
	}

	c.warnings = append(c.warnings, msg)
	c.log.Warn().Str("attribute", name).Str("writer", c.mode.String()).
		Str("origin", origin.String()).Msg(msg)
}

// callerSite captures file, line and enclosing function skip frames up.
func callerSite(skip int) callSite {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return callSite{file: "unknown", function: "unknown"}
	}
	fn := runtime.FuncForPC(pc)
	name := "unknown"
	if fn != nil {
		name = fn.Name()
	}
	return callSite{file: file, line: line, function: name}
}
