package main

import (
	"github.com/spf13/cobra"
)

var (
	formatFlag    string
	jsonFlag      bool
	projectFlag   string
	verbosityFlag int
	quietFlag     bool
	noRebuildFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "qms",
	Short: "qms - quality records in plain text",
	Long: `qms manages quality records (requirements, risks, tests, components,
suppliers, NCRs, CAPAs, ...) stored as *.qms.yaml files in a project tree.

Queries are answered from a local SQLite cache under .qms/ which is rebuilt
automatically whenever the document tree changes.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("qms version {{.Version}}\n")

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&formatFlag, "format", "human", "Output format (json, human)")
	flags.BoolVar(&jsonFlag, "json", false, "Shorthand for --format json")
	flags.StringVarP(&projectFlag, "project", "C", ".", "Directory inside the project")
	flags.CountVarP(&verbosityFlag, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	flags.BoolVarP(&quietFlag, "quiet", "q", false, "Suppress all log output")
	flags.BoolVar(&noRebuildFlag, "no-rebuild", false, "Answer from the cache as is, even when stale")
}

func outputFormat() OutputFormat {
	if jsonFlag {
		return FormatJSON
	}
	return OutputFormat(formatFlag)
}
