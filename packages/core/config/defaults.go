package config

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		Paths:           []string{"features"},
		Language:        "en",
		ProcCount:       0,
		ParallelElement: "",
		Format:          "pretty",
		Reporters:       []string{"summary"},
		StdoutCapture:   BoolPtr(true),
		StderrCapture:   BoolPtr(true),
		LogCapture:      BoolPtr(true),
		EmitSilent:      BoolPtr(true),
	}
}
