package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the runtime configuration consumed by the schedulers. Loading
// merges file values under explicit flag values; zero values fall back to
// defaults.
type Config struct {
	Paths           []string `yaml:"paths,omitempty"`
	Language        string   `yaml:"language,omitempty"`
	ProcCount       int      `yaml:"procCount,omitempty" validate:"gte=0"`
	ParallelElement string   `yaml:"parallelElement,omitempty" validate:"omitempty,oneof=feature scenario"`
	DryRun          bool     `yaml:"dryRun,omitempty"`
	Stop            bool     `yaml:"stop,omitempty"`
	Strict          bool     `yaml:"strict,omitempty"`
	Verbose         bool     `yaml:"verbose,omitempty"`
	Format          string   `yaml:"format,omitempty" validate:"omitempty,oneof=plain pretty json"`
	NoColor         bool     `yaml:"noColor,omitempty"`
	Tags            []string `yaml:"tags,omitempty"`
	Exclude         []string `yaml:"exclude,omitempty"`
	Reporters       []string `yaml:"reporters,omitempty"`
	StdoutCapture   *bool    `yaml:"stdoutCapture,omitempty"`
	StderrCapture   *bool    `yaml:"stderrCapture,omitempty"`
	LogCapture      *bool    `yaml:"logCapture,omitempty"`
	// EmitSilent controls whether a parallel job that produced no buffered
	// output still emits a result record. Disabling it reproduces the legacy
	// drop-when-silent behavior and silently loses that job's statistics.
	EmitSilent *bool  `yaml:"emitSilent,omitempty"`
	HistoryDB  string `yaml:"historyDb,omitempty"`
}

// ConfigError is a fatal pre-run configuration problem.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return "config: " + e.Msg
}

// boolVal returns the value of a bool pointer, or the default if unset.
func boolVal(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// BoolPtr returns a pointer to b, for populating optional fields.
func BoolPtr(b bool) *bool {
	return &b
}

// GetStdoutCapture defaults to true.
func (c *Config) GetStdoutCapture() bool { return boolVal(c.StdoutCapture, true) }

// GetStderrCapture defaults to true.
func (c *Config) GetStderrCapture() bool { return boolVal(c.StderrCapture, true) }

// GetLogCapture defaults to true.
func (c *Config) GetLogCapture() bool { return boolVal(c.LogCapture, true) }

// GetEmitSilent defaults to true: silent jobs still contribute statistics.
func (c *Config) GetEmitSilent() bool { return boolVal(c.EmitSilent, true) }

// Parallel reports whether the run should use the worker-pool scheduler.
func (c *Config) Parallel() bool { return c.ProcCount > 0 }

// Excluded reports whether a feature file path is excluded by configuration.
// Patterns match with filepath.Match against the path and its basename.
func (c *Config) Excluded(path string) bool {
	for _, pattern := range c.Exclude {
		if ok, _ := filepath.Match(pattern, path); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, filepath.Base(path)); ok {
			return true
		}
	}
	return false
}

// Validate checks field and cross-field constraints. Parallel runs require a
// valid partition granularity.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			f := verrs[0]
			return &ConfigError{Msg: fmt.Sprintf("invalid %s: %v", f.StructField(), f.Value())}
		}
		return &ConfigError{Msg: err.Error()}
	}
	if c.Parallel() && c.ParallelElement != "feature" && c.ParallelElement != "scenario" {
		return &ConfigError{Msg: "parallel runs require parallelElement to be 'feature' or 'scenario'"}
	}
	return nil
}

// Filenames are the config files searched for, in order.
var Filenames = []string{
	"featspec.yaml",
	".featspec.yaml",
	"featspec.yml",
}

// Load reads configuration from path, or searches the current directory when
// path is empty. A missing config file yields defaults, not an error.
func Load(path string) (*Config, error) {
	if path != "" {
		return loadFile(path)
	}
	return FindAndLoad(".")
}

// FindAndLoad searches dir for a config file and loads the first found.
func FindAndLoad(dir string) (*Config, error) {
	for _, name := range Filenames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return loadFile(p)
		}
	}
	return Default(), nil
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Merge overlays other onto c, with other taking precedence, and returns the
// merged copy.
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}
	result := *c

	if len(other.Paths) > 0 {
		result.Paths = other.Paths
	}
	if other.Language != "" {
		result.Language = other.Language
	}
	if other.ProcCount > 0 {
		result.ProcCount = other.ProcCount
	}
	if other.ParallelElement != "" {
		result.ParallelElement = other.ParallelElement
	}
	if other.Format != "" {
		result.Format = other.Format
	}
	if other.HistoryDB != "" {
		result.HistoryDB = other.HistoryDB
	}
	if len(other.Tags) > 0 {
		result.Tags = other.Tags
	}
	if len(other.Exclude) > 0 {
		result.Exclude = other.Exclude
	}
	if len(other.Reporters) > 0 {
		result.Reporters = other.Reporters
	}

	if other.DryRun {
		result.DryRun = true
	}
	if other.Stop {
		result.Stop = true
	}
	if other.Strict {
		result.Strict = true
	}
	if other.Verbose {
		result.Verbose = true
	}
	if other.NoColor {
		result.NoColor = true
	}

	if other.StdoutCapture != nil {
		result.StdoutCapture = other.StdoutCapture
	}
	if other.StderrCapture != nil {
		result.StderrCapture = other.StderrCapture
	}
	if other.LogCapture != nil {
		result.LogCapture = other.LogCapture
	}
	if other.EmitSilent != nil {
		result.EmitSilent = other.EmitSilent
	}

	return &result
}
