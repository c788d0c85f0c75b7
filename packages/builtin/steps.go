// Package builtin provides the step vocabulary available to feature files
// run straight from the CLI, without a compiled-in step package.
//
// Available steps:
//   - I set "name" to "value"
//   - "name" should equal "value"
//   - I run "command"
//   - the output should contain "text"
//   - the exit status should be N
//   - I wait for Nms
//   - the environment variable "NAME" should be set
//   - the file "path" should exist
package builtin

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/featspec/packages/core/model"
	"github.com/abdul-hamid-achik/featspec/packages/core/registry"
)

// Context attribute names written by the shell steps.
const (
	AttrCommandOutput = "last_command_output"
	AttrCommandStatus = "last_command_status"
)

// Register installs the built-in steps into reg.
func Register(reg *registry.Registry) error {
	steps := []struct {
		add     func(string, model.StepFunc) error
		pattern string
		fn      model.StepFunc
	}{
		{reg.Step, `I set "([^"]*)" to "([^"]*)"`, setAttribute},
		{reg.Then, `"([^"]*)" should equal "([^"]*)"`, attributeEquals},
		{reg.When, `I run "(.*)"`, runCommand},
		{reg.Then, `the output should contain "(.*)"`, outputContains},
		{reg.Then, `the exit status should be (\d+)`, exitStatusIs},
		{reg.Step, `I wait for (\d+)ms`, waitMillis},
		{reg.Then, `the environment variable "([^"]*)" should be set`, envIsSet},
		{reg.Then, `the file "(.*)" should exist`, fileExists},
	}
	for _, s := range steps {
		if err := s.add(s.pattern, s.fn); err != nil {
			return err
		}
	}
	return nil
}

func setAttribute(ctx model.Context, args ...string) error {
	ctx.Set(args[0], args[1])
	return nil
}

func attributeEquals(ctx model.Context, args ...string) error {
	val, err := ctx.Get(args[0])
	if err != nil {
		return err
	}
	if got := fmt.Sprint(val); got != args[1] {
		return fmt.Errorf("expected %q to equal %q, got %q", args[0], args[1], got)
	}
	return nil
}

func runCommand(ctx model.Context, args ...string) error {
	cmd := exec.Command("sh", "-c", args[0])
	out, err := cmd.CombinedOutput()
	ctx.Set(AttrCommandOutput, string(out))
	if cmd.ProcessState != nil {
		ctx.Set(AttrCommandStatus, cmd.ProcessState.ExitCode())
	}
	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			// Non-zero exit is observable through the exit status step.
			return nil
		}
		return fmt.Errorf("running %q: %w", args[0], err)
	}
	return nil
}

func outputContains(ctx model.Context, args ...string) error {
	val, err := ctx.Get(AttrCommandOutput)
	if err != nil {
		return fmt.Errorf("no command has been run yet: %w", err)
	}
	out, _ := val.(string)
	if !strings.Contains(out, args[0]) {
		return fmt.Errorf("output %q does not contain %q", out, args[0])
	}
	return nil
}

func exitStatusIs(ctx model.Context, args ...string) error {
	want, err := strconv.Atoi(args[0])
	if err != nil {
		return err
	}
	val, err := ctx.Get(AttrCommandStatus)
	if err != nil {
		return fmt.Errorf("no command has been run yet: %w", err)
	}
	got, _ := val.(int)
	if got != want {
		return fmt.Errorf("expected exit status %d, got %d", want, got)
	}
	return nil
}

func waitMillis(_ model.Context, args ...string) error {
	ms, err := strconv.Atoi(args[0])
	if err != nil {
		return err
	}
	time.Sleep(time.Duration(ms) * time.Millisecond)
	return nil
}

func envIsSet(_ model.Context, args ...string) error {
	if os.Getenv(args[0]) == "" {
		return fmt.Errorf("environment variable %q is not set", args[0])
	}
	return nil
}

func fileExists(_ model.Context, args ...string) error {
	if _, err := os.Stat(args[0]); err != nil {
		return fmt.Errorf("file %q does not exist: %w", args[0], err)
	}
	return nil
}
