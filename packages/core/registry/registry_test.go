package registry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/featspec/packages/core/model"
)

func noop(ctx model.Context, args ...string) error { return nil }

func TestFindMatchesByKind(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Given(`a precondition`, noop))
	require.NoError(t, reg.When(`an action`, noop))
	require.NoError(t, reg.Then(`an outcome`, noop))
	snap := reg.Snapshot()

	_, _, ok := snap.Find(model.KindGiven, "a precondition")
	assert.True(t, ok)

	// A Given registration does not answer for When lines.
	_, _, ok = snap.Find(model.KindWhen, "a precondition")
	assert.False(t, ok)

	_, _, ok = snap.Find(model.KindThen, "an outcome")
	assert.True(t, ok)
}

func TestFindAnyKindMatchesEverything(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Step(`something happens`, noop))
	snap := reg.Snapshot()

	for _, kind := range []model.StepKind{model.KindGiven, model.KindWhen, model.KindThen} {
		_, _, ok := snap.Find(kind, "something happens")
		assert.True(t, ok, "kind %v", kind)
	}
}

func TestFindCapturesGroups(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Given(`the user "([^"]*)" has (\d+) points`, noop))
	snap := reg.Snapshot()

	_, args, ok := snap.Find(model.KindGiven, `the user "alice" has 42 points`)
	require.True(t, ok)
	assert.Equal(t, []string{"alice", "42"}, args)
}

func TestFindPatternsAreAnchored(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Given(`a thing`, noop))
	snap := reg.Snapshot()

	_, _, ok := snap.Find(model.KindGiven, "a thing with extra words")
	assert.False(t, ok)
}

func TestFindFirstRegistrationWins(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Given(`the value (\w+)`, func(ctx model.Context, args ...string) error {
		ctx.Set("matched", "first")
		return nil
	}))
	require.NoError(t, reg.Given(`the value \w+`, func(ctx model.Context, args ...string) error {
		ctx.Set("matched", "second")
		return nil
	}))
	snap := reg.Snapshot()

	fn, args, ok := snap.Find(model.KindGiven, "the value abc")
	require.True(t, ok)
	assert.Equal(t, []string{"abc"}, args)

	ctx := &recordingContext{values: map[string]any{}}
	require.NoError(t, fn(ctx, args...))
	assert.Equal(t, "first", ctx.values["matched"])
}

func TestInvalidPattern(t *testing.T) {
	reg := New()
	err := reg.Given(`an unclosed (group`, noop)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compiling step pattern")
}

func TestSnapshotIsImmutable(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Given(`first`, noop))
	snap := reg.Snapshot()

	require.NoError(t, reg.Given(`second`, noop))
	reg.Hook("before_all", func(ctx model.Context, args ...any) error { return nil })

	assert.Equal(t, 1, snap.StepCount())
	_, _, ok := snap.Find(model.KindGiven, "second")
	assert.False(t, ok)
	_, ok = snap.HookNamed("before_all")
	assert.False(t, ok)
}

func TestHookReplacement(t *testing.T) {
	reg := New()
	reg.Hook("before_all", func(ctx model.Context, args ...any) error { return nil })
	reg.Hook("before_all", func(ctx model.Context, args ...any) error { return assertErr })
	snap := reg.Snapshot()

	fn, ok := snap.HookNamed("before_all")
	require.True(t, ok)
	assert.ErrorIs(t, fn(nil), assertErr)

	_, ok = snap.HookNamed("after_all")
	assert.False(t, ok)
}

func TestCustomMatcher(t *testing.T) {
	reg := New()
	reg.SetMatcher(prefixMatcher{})
	require.NoError(t, reg.Given(`the file`, noop))
	snap := reg.Snapshot()

	_, _, ok := snap.Find(model.KindGiven, "the file exists somewhere")
	assert.True(t, ok)
}

var assertErr = errString("hook failed")

type errString string

func (e errString) Error() string { return string(e) }

// prefixMatcher matches any step text starting with the pattern.
type prefixMatcher struct{}

type prefixPattern string

func (prefixMatcher) Compile(pattern string) (StepPattern, error) {
	return prefixPattern(pattern), nil
}

func (p prefixPattern) Match(text string) ([]string, bool) {
	return nil, strings.HasPrefix(text, string(p))
}

// recordingContext is a minimal model.Context for exercising step funcs.
type recordingContext struct {
	values map[string]any
}

func (c *recordingContext) Get(name string) (any, error) { return c.values[name], nil }
func (c *recordingContext) Set(name string, value any)   { c.values[name] = value }
func (c *recordingContext) Delete(name string) error {
	delete(c.values, name)
	return nil
}
func (c *recordingContext) Contains(name string) bool {
	_, ok := c.values[name]
	return ok
}
func (c *recordingContext) FailedRoot() {}
