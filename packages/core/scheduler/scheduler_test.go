package scheduler

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/featspec/packages/core/config"
	"github.com/abdul-hamid-achik/featspec/packages/core/model"
	"github.com/abdul-hamid-achik/featspec/packages/core/registry"
)

func writeFeature(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// testSnapshot registers a minimal step vocabulary used across scheduler
// tests.
func testSnapshot(t *testing.T) *registry.Snapshot {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.Step(`a passing step`, func(ctx model.Context, args ...string) error {
		return nil
	}))
	require.NoError(t, reg.Step(`a failing step`, func(ctx model.Context, args ...string) error {
		return errors.New("intentional failure")
	}))
	require.NoError(t, reg.Step(`the value is "([^"]*)"`, func(ctx model.Context, args ...string) error {
		ctx.Set("value", args[0])
		return nil
	}))
	return reg.Snapshot()
}

// testConfig disables output capture so tests never touch the real
// os.Stdout file descriptor.
func testConfig(paths ...string) *config.Config {
	cfg := config.Default()
	cfg.Paths = paths
	cfg.Format = "plain"
	cfg.NoColor = true
	off := false
	cfg.StdoutCapture = &off
	cfg.StderrCapture = &off
	cfg.LogCapture = &off
	return cfg
}

const passingFeature = `Feature: Greeting
  Scenario: Passes
    Given a passing step
    Then a passing step
`

const failingFeature = `Feature: Broken
  Scenario: Fails midway
    Given a passing step
    When a failing step
    Then a passing step
`

func TestRunnerAllPassing(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "greeting.feature", passingFeature)

	var out bytes.Buffer
	r := New(testConfig(dir), testSnapshot(t), WithOutput(&out), WithLogger(zerolog.Nop()))

	failed, err := r.Run()
	require.NoError(t, err)
	assert.False(t, failed)

	require.Len(t, r.Features(), 1)
	assert.Equal(t, model.StatusPassed, r.Features()[0].Status)
	assert.Contains(t, out.String(), "Feature: Greeting")
	assert.Contains(t, out.String(), ". Given a passing step")
}

func TestRunnerFailingStepSkipsRemainder(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "broken.feature", failingFeature)

	var out bytes.Buffer
	r := New(testConfig(dir), testSnapshot(t), WithOutput(&out), WithLogger(zerolog.Nop()))

	failed, err := r.Run()
	require.NoError(t, err)
	assert.True(t, failed)

	feature := r.Features()[0]
	assert.Equal(t, model.StatusFailed, feature.Status)
	steps := feature.Scenarios[0].Steps
	assert.Equal(t, model.StatusPassed, steps[0].Status)
	assert.Equal(t, model.StatusFailed, steps[1].Status)
	assert.Equal(t, model.StatusSkipped, steps[2].Status)

	// The suite-global failed flag is visible in the root frame.
	v, err := r.Context().Get("failed")
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestRunnerStopOnFirstFailure(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "a_broken.feature", failingFeature)
	writeFeature(t, dir, "b_greeting.feature", passingFeature)

	cfg := testConfig(dir)
	cfg.Stop = true
	var out bytes.Buffer
	r := New(cfg, testSnapshot(t), WithOutput(&out), WithLogger(zerolog.Nop()))

	failed, err := r.Run()
	require.NoError(t, err)
	assert.True(t, failed)
	// The second feature is never reached.
	assert.Len(t, r.Features(), 1)
}

func TestRunnerDryRunSkipsStepsAndHooks(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "greeting.feature", passingFeature)

	hookCalls := 0
	reg := registry.New()
	require.NoError(t, reg.Step(`a passing step`, func(ctx model.Context, args ...string) error {
		return errors.New("must not execute")
	}))
	reg.Hook("before_all", func(ctx model.Context, args ...any) error {
		hookCalls++
		return nil
	})

	cfg := testConfig(dir)
	cfg.DryRun = true
	var out bytes.Buffer
	r := New(cfg, reg.Snapshot(), WithOutput(&out), WithLogger(zerolog.Nop()))

	failed, err := r.Run()
	require.NoError(t, err)
	assert.False(t, failed)
	assert.Equal(t, 0, hookCalls)

	for _, st := range r.Features()[0].Scenarios[0].Steps {
		assert.Equal(t, model.StatusSkipped, st.Status)
	}
}

func TestRunnerUndefinedStep(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "unknown.feature", `Feature: Unknown
  Scenario: No match
    Given a step nobody registered
    Then a passing step
`)

	var out bytes.Buffer
	r := New(testConfig(dir), testSnapshot(t), WithOutput(&out), WithLogger(zerolog.Nop()))

	failed, err := r.Run()
	require.NoError(t, err)
	assert.False(t, failed)

	sc := r.Features()[0].Scenarios[0]
	assert.Equal(t, model.StatusUndefined, sc.Status)
	assert.Equal(t, model.StatusUndefined, sc.Steps[0].Status)
	assert.Equal(t, model.StatusSkipped, sc.Steps[1].Status)
}

func TestRunnerUndefinedStepStrict(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "unknown.feature", `Feature: Unknown
  Scenario: No match
    Given a step nobody registered
`)

	cfg := testConfig(dir)
	cfg.Strict = true
	var out bytes.Buffer
	r := New(cfg, testSnapshot(t), WithOutput(&out), WithLogger(zerolog.Nop()))

	failed, err := r.Run()
	require.NoError(t, err)
	assert.True(t, failed)
	assert.Equal(t, model.StatusFailed, r.Features()[0].Scenarios[0].Status)
}

func TestRunnerTagFilter(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "tagged.feature", `Feature: Tagged
  @smoke
  Scenario: Selected
    Given a passing step

  Scenario: Not selected
    Given a failing step
`)

	cfg := testConfig(dir)
	cfg.Tags = []string{"smoke"}
	var out bytes.Buffer
	r := New(cfg, testSnapshot(t), WithOutput(&out), WithLogger(zerolog.Nop()))

	failed, err := r.Run()
	require.NoError(t, err)
	assert.False(t, failed)

	scenarios := r.Features()[0].Scenarios
	assert.Equal(t, model.StatusPassed, scenarios[0].Status)
	assert.Equal(t, model.StatusSkipped, scenarios[1].Status)
}

func TestRunnerExcludePattern(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "keep.feature", passingFeature)
	writeFeature(t, dir, "skip_this.feature", failingFeature)

	cfg := testConfig(dir)
	cfg.Exclude = []string{"skip_*.feature"}
	var out bytes.Buffer
	r := New(cfg, testSnapshot(t), WithOutput(&out), WithLogger(zerolog.Nop()))

	failed, err := r.Run()
	require.NoError(t, err)
	assert.False(t, failed)
	assert.Len(t, r.Features(), 1)
}

func TestRunnerParseErrorAborts(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "bad.feature", "Scenario: no feature header\n")

	var out bytes.Buffer
	r := New(testConfig(dir), testSnapshot(t), WithOutput(&out), WithLogger(zerolog.Nop()))

	failed, err := r.Run()
	assert.True(t, failed)
	require.Error(t, err)
}

func TestRunnerHookErrorRaisesFailedFlag(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "greeting.feature", passingFeature)

	reg := registry.New()
	require.NoError(t, reg.Step(`a passing step`, func(ctx model.Context, args ...string) error {
		return nil
	}))
	reg.Hook("before_feature", func(ctx model.Context, args ...any) error {
		return errors.New("setup blew up")
	})

	var out bytes.Buffer
	r := New(testConfig(dir), reg.Snapshot(), WithOutput(&out), WithLogger(zerolog.Nop()))

	_, err := r.Run()
	require.NoError(t, err)

	v, err := r.Context().Get("failed")
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestRunSuiteSequentialTotals(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "greeting.feature", passingFeature)
	writeFeature(t, dir, "broken.feature", failingFeature)

	totals, err := RunSuite(testConfig(dir), testSnapshot(t),
		WithOutput(&bytes.Buffer{}), WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	assert.Equal(t, 1, totals.Features.Passed)
	assert.Equal(t, 1, totals.Features.Failed)
	assert.Equal(t, 1, totals.Scenarios.Passed)
	assert.Equal(t, 1, totals.Scenarios.Failed)
	assert.Equal(t, 3, totals.Steps.Passed)
	assert.Equal(t, 1, totals.Steps.Failed)
	assert.Equal(t, 1, totals.Steps.Skipped)
}
