package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/abdul-hamid-achik/featspec/packages/builtin"
	"github.com/abdul-hamid-achik/featspec/packages/core/config"
	"github.com/abdul-hamid-achik/featspec/packages/core/gherkin"
	"github.com/abdul-hamid-achik/featspec/packages/core/registry"
	"github.com/abdul-hamid-achik/featspec/packages/core/scheduler"
	"github.com/abdul-hamid-achik/featspec/packages/history"
	"github.com/abdul-hamid-achik/featspec/packages/output"
)

var runCmd = &cobra.Command{
	Use:   "run [file|directory|@list]...",
	Short: "Run feature files",
	Long: `Run Gherkin feature files with the built-in step vocabulary.

Examples:
  featspec run features/
  featspec run features/login.feature --tags smoke
  featspec run @smoke.txt --processes 4 --parallel-element scenario
  featspec run features/ --dry-run
  featspec run features/ --watch`,
	RunE: runCommand,
}

var (
	configFlag          string
	processesFlag       int
	parallelElementFlag string
	tagsFlag            string
	excludeFlag         string
	stopFlag            bool
	dryRunFlag          bool
	strictFlag          bool
	formatFlag          string
	noColorFlag         bool
	verboseFlag         bool
	watchFlag           bool
	historyDBFlag       string
	junitFileFlag       string
	dropSilentFlag      bool
)

func init() {
	runCmd.Flags().StringVar(&configFlag, "config", getEnvString("FEATSPEC_CONFIG", ""), "Path to config file (env: FEATSPEC_CONFIG)")
	runCmd.Flags().IntVarP(&processesFlag, "processes", "p", 0, "Number of parallel workers (0 = sequential)")
	runCmd.Flags().StringVar(&parallelElementFlag, "parallel-element", "", "Parallel granularity: feature or scenario")
	runCmd.Flags().StringVarP(&tagsFlag, "tags", "t", getEnvString("FEATSPEC_TAGS", ""), "Run only scenarios with these tags (comma-separated) (env: FEATSPEC_TAGS)")
	runCmd.Flags().StringVar(&excludeFlag, "exclude", "", "Skip feature files matching these patterns (comma-separated)")
	runCmd.Flags().BoolVar(&stopFlag, "stop", false, "Stop at the first failing feature")
	runCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Parse and match steps without executing them")
	runCmd.Flags().BoolVar(&strictFlag, "strict", false, "Treat undefined steps as failures")
	runCmd.Flags().StringVarP(&formatFlag, "format", "f", getEnvString("FEATSPEC_FORMAT", ""), "Output format: plain, pretty, json (env: FEATSPEC_FORMAT)")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("FEATSPEC_NO_COLOR", false), "Disable colored output (env: FEATSPEC_NO_COLOR)")
	runCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "Verbose output, including masking diagnostics")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch feature files for changes and re-run")
	runCmd.Flags().StringVar(&historyDBFlag, "history-db", getEnvString("FEATSPEC_HISTORY_DB", ""), "SQLite file for run history (env: FEATSPEC_HISTORY_DB)")
	runCmd.Flags().StringVar(&junitFileFlag, "junit-file", "featspec-report.xml", "Output file for the junit reporter")
	runCmd.Flags().BoolVar(&dropSilentFlag, "drop-silent-results", false, "Discard parallel results that produced no output")
}

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "1" || strings.EqualFold(val, "true")
	}
	return defaultVal
}

func buildConfig(args []string) (*config.Config, error) {
	cfg := config.Default()

	var fileCfg *config.Config
	var err error
	if configFlag != "" {
		fileCfg, err = config.Load(configFlag)
	} else {
		fileCfg, err = config.FindAndLoad(".")
	}
	if err != nil {
		return nil, err
	}
	cfg = cfg.Merge(fileCfg)

	override := &config.Config{
		Paths:           args,
		ProcCount:       processesFlag,
		ParallelElement: parallelElementFlag,
		DryRun:          dryRunFlag,
		Stop:            stopFlag,
		Strict:          strictFlag,
		Verbose:         verboseFlag,
		Format:          formatFlag,
		NoColor:         noColorFlag,
		HistoryDB:       historyDBFlag,
	}
	if tagsFlag != "" {
		override.Tags = splitList(tagsFlag)
	}
	if excludeFlag != "" {
		override.Exclude = splitList(excludeFlag)
	}
	if dropSilentFlag {
		emit := false
		override.EmitSilent = &emit
	}
	cfg = cfg.Merge(override)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func newLogger() zerolog.Logger {
	level := zerolog.WarnLevel
	if verboseFlag {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).With().Timestamp().Logger()
}

func buildReporters(cfg *config.Config) ([]output.Reporter, func(), error) {
	var reporters []output.Reporter
	var closers []func()
	for _, name := range cfg.Reporters {
		w := os.Stdout
		if name == "junit" {
			f, err := os.Create(junitFileFlag)
			if err != nil {
				return nil, nil, fmt.Errorf("cannot create junit file: %w", err)
			}
			closers = append(closers, func() { _ = f.Close() })
			w = f
		}
		rep, err := output.NewReporter(name, w)
		if err != nil {
			return nil, nil, err
		}
		reporters = append(reporters, rep)
	}
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}
	return reporters, cleanup, nil
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(ExitConfigError)
	}

	log := newLogger()

	reg := registry.New()
	if err := builtin.Register(reg); err != nil {
		return err
	}
	snapshot := reg.Snapshot()

	execute := func() (int, error) {
		reporters, cleanup, err := buildReporters(cfg)
		if err != nil {
			return 0, err
		}
		defer cleanup()

		start := time.Now()
		totals, err := scheduler.RunSuite(cfg, snapshot,
			scheduler.WithLogger(log),
			scheduler.WithReporters(reporters...))
		if err != nil {
			return 0, err
		}
		if cfg.HistoryDB != "" {
			if herr := recordRun(cfg.HistoryDB, totals, time.Since(start)); herr != nil {
				log.Warn().Err(herr).Msg("failed to record run history")
			}
		}
		return totals.Features.Failed, nil
	}

	failed, err := execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}

	if !watchFlag {
		if failed > 0 {
			os.Exit(ExitTestFailure)
		}
		return nil
	}

	return watchLoop(cmd, cfg, execute)
}

func exitCodeFor(err error) int {
	var parseErr *gherkin.ParseError
	if errors.As(err, &parseErr) {
		return ExitParseError
	}
	var cfgErr *config.ConfigError
	if errors.As(err, &cfgErr) {
		return ExitConfigError
	}
	return ExitTestFailure
}

func recordRun(path string, totals scheduler.SuiteTally, elapsed time.Duration) error {
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return store.Record(ctx, history.Run{
		Duration:         elapsed,
		FeaturesPassed:   totals.Features.Passed,
		FeaturesFailed:   totals.Features.Failed,
		FeaturesSkipped:  totals.Features.Skipped + totals.Features.Undefined,
		ScenariosPassed:  totals.Scenarios.Passed,
		ScenariosFailed:  totals.Scenarios.Failed,
		ScenariosSkipped: totals.Scenarios.Skipped + totals.Scenarios.Undefined,
		StepsPassed:      totals.Steps.Passed,
		StepsFailed:      totals.Steps.Failed,
		StepsSkipped:     totals.Steps.Skipped,
		StepsUndefined:   totals.Steps.Undefined,
	})
}

// watchLoop re-runs the suite when a feature file changes. Reruns are rate
// limited to one per second so editor save bursts trigger a single run.
func watchLoop(cmd *cobra.Command, cfg *config.Config, execute func() (int, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	files, err := scheduler.FeatureFiles(cfg.Paths)
	if err != nil {
		return err
	}
	watched := make(map[string]bool)
	for _, file := range files {
		dir := filepath.Dir(file)
		if !watched[dir] {
			if err := watcher.Add(dir); err != nil {
				fmt.Fprintf(os.Stderr, "failed to watch %s: %v\n", dir, err)
			}
			watched[dir] = true
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	limiter := rate.NewLimiter(rate.Every(time.Second), 1)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) || filepath.Ext(event.Name) != ".feature" {
				continue
			}
			if !limiter.Allow() {
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nFile changed: %s\nRe-running...\n\n", event.Name)
			if _, err := execute(); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watcher error: %v\n", err)
		}
	}
}
