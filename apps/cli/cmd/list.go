package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/featspec/packages/core/config"
	"github.com/abdul-hamid-achik/featspec/packages/core/gherkin"
	"github.com/abdul-hamid-achik/featspec/packages/core/scheduler"
)

var listCmd = &cobra.Command{
	Use:   "list [file|directory|@list]...",
	Short: "List features and scenarios without running them",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths := args
		if len(paths) == 0 {
			paths = config.Default().Paths
		}
		files, err := scheduler.FeatureFiles(paths)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(ExitUsageError)
		}
		for _, file := range files {
			feature, err := gherkin.ParseFile(file, "en")
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(ExitParseError)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", feature.Filename, feature.Name)
			for _, sc := range feature.Scenarios {
				tags := ""
				if len(sc.Tags) > 0 {
					tags = " @" + strings.Join(sc.Tags, " @")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  %s:%d: %s%s\n", feature.Filename, sc.Line, sc.Name, tags)
			}
		}
		return nil
	},
}
