// Package gherkin parses feature files into the runnable artifact tree.
//
// It covers the pragmatic subset the runner needs: Feature, Background,
// Scenario, Scenario Outline with Examples tables, tag lines and comments.
// Outlines are expanded and background steps are inlined at parse time, so
// consumers never see unexpanded templates.
package gherkin
