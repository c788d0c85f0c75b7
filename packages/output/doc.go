// Package output provides formatters and reporters for displaying run
// results.
//
// Supported output formats:
//   - pretty: human-readable colored terminal output
//   - plain: the same layout without ANSI colors
//   - JSON: machine-readable report document
//
// Reporters consume whole features after execution; the summary reporter
// prints suite totals and the JUnit reporter writes XML for CI integration.
package output
