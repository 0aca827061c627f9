package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"qms/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if outputFormat() == FormatJSON {
			return render(cmd, map[string]string{
				"version":   version.Version,
				"commit":    version.Commit,
				"buildDate": version.BuildDate,
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), version.Full())
		return nil
	},
}

func init() {
	rootCmd.Version = version.Info()
	rootCmd.AddCommand(versionCmd)
}
