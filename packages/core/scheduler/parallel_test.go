package scheduler

import (
	"bytes"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/featspec/packages/capture"
	"github.com/abdul-hamid-achik/featspec/packages/core/config"
	"github.com/abdul-hamid-achik/featspec/packages/core/gherkin"
	"github.com/abdul-hamid-achik/featspec/packages/core/model"
	"github.com/abdul-hamid-achik/featspec/packages/output"
)

func parallelConfig(procs int, element string, paths ...string) *config.Config {
	cfg := testConfig(paths...)
	cfg.ProcCount = procs
	cfg.ParallelElement = element
	return cfg
}

func newTestParallelRunner(t *testing.T, cfg *config.Config, out io.Writer) *ParallelRunner {
	t.Helper()
	p := NewParallelRunner(cfg, testSnapshot(t), WithOutput(out), WithLogger(zerolog.Nop()))
	p.progress = io.Discard
	return p
}

func TestParallelRequiresGranularity(t *testing.T) {
	cfg := parallelConfig(2, "", t.TempDir())

	p := newTestParallelRunner(t, cfg, &bytes.Buffer{})
	_, err := p.Run()

	var cfgErr *config.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestPartitionScenarioGranularity(t *testing.T) {
	feature, err := gherkin.Parse(`Feature: Math
  Scenario: One
    Given a passing step

  Scenario Outline: Many
    Given the value is "<v>"

    Examples:
      | v |
      | 1 |
      | 2 |
      | 3 |
`, "math.feature")
	require.NoError(t, err)

	p := newTestParallelRunner(t, parallelConfig(2, "scenario"), &bytes.Buffer{})
	p.partition([]*model.Feature{feature})

	// One plain scenario plus one job per example row.
	require.Len(t, p.Jobs(), 4)
	for _, j := range p.Jobs() {
		assert.Equal(t, JobScenario, j.Kind)
		assert.Equal(t, "math.feature"+"Math", j.Key())
	}
}

func TestPartitionFeatureGranularity(t *testing.T) {
	feature, err := gherkin.Parse(`Feature: Math
  Scenario: One
    Given a passing step

  Scenario: Two
    Given a passing step
`, "math.feature")
	require.NoError(t, err)

	p := newTestParallelRunner(t, parallelConfig(2, "feature"), &bytes.Buffer{})
	p.partition([]*model.Feature{feature})

	require.Len(t, p.Jobs(), 1)
	assert.Equal(t, JobFeature, p.Jobs()[0].Kind)
}

func TestPartitionSerialTagForcesFeatureJob(t *testing.T) {
	feature, err := gherkin.Parse(`@serial
Feature: Ordered
  Scenario: First
    Given a passing step

  Scenario: Second
    Given a passing step
`, "ordered.feature")
	require.NoError(t, err)

	// Scenario granularity is requested, but the serial tag wins.
	p := newTestParallelRunner(t, parallelConfig(2, "scenario"), &bytes.Buffer{})
	p.partition([]*model.Feature{feature})

	require.Len(t, p.Jobs(), 1)
	assert.Equal(t, JobFeature, p.Jobs()[0].Kind)
}

func TestNextIndexEmptyQueue(t *testing.T) {
	p := newTestParallelRunner(t, parallelConfig(1, "scenario"), &bytes.Buffer{})
	p.indexQueue = make(chan int, 1)

	p.indexQueue <- 7
	idx, err := p.nextIndex()
	require.NoError(t, err)
	assert.Equal(t, 7, idx)

	_, err = p.nextIndex()
	require.ErrorIs(t, err, ErrQueueEmpty)
}

func TestParallelRunScenarioGranularity(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "greeting.feature", passingFeature)
	writeFeature(t, dir, "broken.feature", failingFeature)
	writeFeature(t, dir, "pair.feature", `Feature: Pair
  Scenario: First half
    Given a passing step

  Scenario: Second half
    Given a passing step
`)

	var out bytes.Buffer
	p := newTestParallelRunner(t, parallelConfig(2, "scenario", dir), &out)

	failed, err := p.Run()
	require.NoError(t, err)
	assert.Equal(t, 1, failed)
	assert.Len(t, p.Jobs(), 4)

	totals := p.Totals()
	// Every scenario is accounted for exactly once, and the two Pair jobs
	// regroup into a single feature entry.
	assert.Equal(t, 3, totals.Features.Total())
	assert.Equal(t, 2, totals.Features.Passed)
	assert.Equal(t, 1, totals.Features.Failed)
	assert.Equal(t, 4, totals.Scenarios.Total())
	assert.Equal(t, 3, totals.Scenarios.Passed)
	assert.Equal(t, 1, totals.Scenarios.Failed)
	assert.Equal(t, 5, totals.Steps.Passed)
	assert.Equal(t, 1, totals.Steps.Failed)
	assert.Equal(t, 1, totals.Steps.Skipped)

	report := out.String()
	assert.Contains(t, report, "Scenario:Passes")
	assert.Contains(t, report, "Scenario:Fails midway")
	assert.Contains(t, report, "Scenario:First half")
	assert.Contains(t, report, "Scenario:Second half")
	assert.Contains(t, report, "features passed")
}

func TestParallelRunFeatureGranularity(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "greeting.feature", passingFeature)
	writeFeature(t, dir, "broken.feature", failingFeature)

	var out bytes.Buffer
	p := newTestParallelRunner(t, parallelConfig(2, "feature", dir), &out)

	failed, err := p.Run()
	require.NoError(t, err)
	assert.Equal(t, 1, failed)

	totals := p.Totals()
	assert.Equal(t, 1, totals.Features.Passed)
	assert.Equal(t, 1, totals.Features.Failed)
	assert.Equal(t, 2, totals.Scenarios.Total())

	assert.Contains(t, out.String(), "Feature:Greeting")
	assert.Contains(t, out.String(), "Feature:Broken")
}

func TestParallelRunOutlineFanout(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "outline.feature", `Feature: Outline
  Scenario Outline: Values
    Given the value is "<v>"

    Examples:
      | v |
      | a |
      | b |
      | c |
`)

	var out bytes.Buffer
	p := newTestParallelRunner(t, parallelConfig(3, "scenario", dir), &out)

	failed, err := p.Run()
	require.NoError(t, err)
	assert.Equal(t, 0, failed)

	assert.Len(t, p.Jobs(), 3)
	totals := p.Totals()
	assert.Equal(t, 3, totals.Scenarios.Passed)
	assert.Equal(t, 1, totals.Features.Passed)
}

func TestParallelMoreWorkersThanJobs(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "greeting.feature", passingFeature)

	var out bytes.Buffer
	p := newTestParallelRunner(t, parallelConfig(8, "scenario", dir), &out)

	failed, err := p.Run()
	require.NoError(t, err)
	assert.Equal(t, 0, failed)
	assert.Equal(t, 1, p.Totals().Scenarios.Passed)
}

func TestParallelWorkerReportShape(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "broken.feature", failingFeature)

	var out bytes.Buffer
	p := newTestParallelRunner(t, parallelConfig(1, "scenario", dir), &out)

	_, err := p.Run()
	require.NoError(t, err)

	report := out.String()
	assert.Contains(t, report, "WORKER0 START")
	assert.Contains(t, report, "Scenario:Fails midway|Feature:Broken")
	// A failing scenario lists the steps skipped because of the failure.
	assert.Contains(t, report, "Skipped because of failure")
	assert.Contains(t, report, "WORKER0 END|")
	assert.Contains(t, report, "status:failed")
}

func TestDropSilentPolicy(t *testing.T) {
	silent := capture.NewStreams(capture.Options{})

	emit := true
	drop := false

	cfgEmit := config.Default()
	cfgEmit.EmitSilent = &emit
	cfgDrop := config.Default()
	cfgDrop.EmitSilent = &drop

	pEmit := NewParallelRunner(cfgEmit, testSnapshot(t), WithLogger(zerolog.Nop()))
	pDrop := NewParallelRunner(cfgDrop, testSnapshot(t), WithLogger(zerolog.Nop()))

	// Default policy keeps every result, silent or not.
	assert.False(t, pEmit.dropSilent(0, silent))
	assert.False(t, pEmit.dropSilent(6, silent))

	// Legacy policy drops only fully silent results.
	assert.True(t, pDrop.dropSilent(0, silent))
	assert.False(t, pDrop.dropSilent(6, silent))
}

// A scenario deselected by the tag filter runs as a job that writes nothing
// past the formatter preamble, so it is the one kind of work the legacy
// policy actually discards.
func TestDropSilentResultsEndToEnd(t *testing.T) {
	const tagged = `Feature: Tagged
  @smoke
  Scenario: Wanted
    Given a passing step

  Scenario: Not wanted
    Given a failing step
`

	for _, tc := range []struct {
		name          string
		emitSilent    bool
		wantScenarios int
		wantSkipped   int
	}{
		{"default keeps silent results", true, 2, 1},
		{"legacy drops silent results", false, 1, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFeature(t, dir, "tagged.feature", tagged)

			cfg := parallelConfig(2, "scenario", dir)
			cfg.Tags = []string{"smoke"}
			cfg.EmitSilent = &tc.emitSilent

			var out bytes.Buffer
			p := newTestParallelRunner(t, cfg, &out)

			failed, err := p.Run()
			require.NoError(t, err)
			assert.Equal(t, 0, failed)

			totals := p.Totals()
			assert.Equal(t, tc.wantScenarios, totals.Scenarios.Total())
			assert.Equal(t, 1, totals.Scenarios.Passed)
			assert.Equal(t, tc.wantSkipped, totals.Scenarios.Skipped)
			if !tc.emitSilent {
				assert.NotContains(t, out.String(), "Not wanted")
			}
		})
	}
}

func TestParallelRunFeedsReporters(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "greeting.feature", passingFeature)
	writeFeature(t, dir, "broken.feature", failingFeature)

	var junit, summary bytes.Buffer
	p := NewParallelRunner(parallelConfig(2, "scenario", dir), testSnapshot(t),
		WithOutput(io.Discard),
		WithLogger(zerolog.Nop()),
		WithReporters(output.NewJUnitReporter(&junit), output.NewSummaryReporter(&summary)))
	p.progress = io.Discard

	_, err := p.Run()
	require.NoError(t, err)

	assert.Contains(t, junit.String(), "<testsuites")
	assert.Contains(t, junit.String(), `name="Greeting"`)
	assert.Contains(t, junit.String(), `name="Broken"`)
	assert.Contains(t, summary.String(), "1 features passed, 1 failed")
}
