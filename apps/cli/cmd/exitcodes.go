package cmd

// Exit codes for the featspec CLI
const (
	// ExitSuccess indicates all features passed
	ExitSuccess = 0

	// ExitTestFailure indicates one or more features failed
	ExitTestFailure = 1

	// ExitParseError indicates a feature file parsing error
	ExitParseError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)
