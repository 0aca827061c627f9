package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"qms/internal/config"
	"qms/internal/errors"
	"qms/internal/index"
	"qms/internal/paths"
	"qms/internal/records"
)

var (
	initForce bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a qms project",
	Long: `Creates .qms/ with a default config.toml, the per-kind document directories
and an empty cache in the directory given by --project.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Rewrite config.toml with defaults")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	root, err := filepath.Abs(projectFlag)
	if err != nil {
		return errors.Wrap(errors.InternalError, "Failed to resolve project directory", err)
	}
	out := cmd.OutOrStdout()

	toolDir := paths.ToolDir(root)
	if _, statErr := os.Stat(toolDir); statErr == nil && !initForce {
		// Already initialized is success.
		fmt.Fprintln(out, "qms already initialized.")
		fmt.Fprintf(out, "Configuration at: %s\n", paths.ConfigPath(root))
		fmt.Fprintln(out, "\nRun 'qms init --force' to rewrite the configuration.")
		return nil
	}

	if err := config.DefaultConfig().Save(root); err != nil {
		return errors.Wrap(errors.InternalError, "Failed to write config file", err)
	}

	for _, kind := range records.All() {
		for _, dir := range kind.Dirs {
			if err := os.MkdirAll(filepath.Join(root, filepath.FromSlash(dir)), 0755); err != nil {
				return errors.Wrap(errors.InternalError, "Failed to create "+dir, err)
			}
		}
	}

	s, cfgErr := newSession(root, cmd.ErrOrStderr())
	defer s.Close()
	if cfgErr != nil {
		return cfgErr
	}
	cache, err := index.Open(root, index.Options{Logger: s.logger})
	if err != nil {
		return err
	}
	s.cache = cache

	fmt.Fprintf(out, "Initialized qms project in %s\n", root)
	fmt.Fprintf(out, "Configuration at: %s\n", paths.ConfigPath(root))
	fmt.Fprintf(out, "Cache at: %s\n", paths.CachePath(root))
	return nil
}
