package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"qms/internal/config"
	"qms/internal/index"
	"qms/internal/paths"
	"qms/internal/slogutil"
)

// session bundles what every command needs: the project root, its config,
// the logger and the open cache.
type session struct {
	root    string
	cfg     *config.Config
	logger  *slog.Logger
	factory *slogutil.LoggerFactory
	cache   *index.Cache
}

// sessionOptions adjusts how the cache is opened.
type sessionOptions struct {
	// noRebuild skips the automatic staleness rebuild.
	noRebuild bool
}

// openSession locates the project, loads config and opens the cache.
func openSession(opts sessionOptions) (*session, error) {
	root, err := paths.FindProjectRoot(projectFlag)
	if err != nil {
		return nil, err
	}
	s, cfgErr := newSession(root, os.Stderr)
	if cfgErr != nil {
		s.logger.Warn("Failed to load config, using defaults", "error", cfgErr.Error())
	}

	cache, err := index.Open(root, index.Options{
		Logger:        s.logger,
		NoAutoRebuild: opts.noRebuild || noRebuildFlag || !s.cfg.Cache.AutoRebuild,
		SearchLimit:   s.cfg.Cache.SearchLimit,
	})
	if err != nil {
		s.factory.Close()
		return nil, err
	}
	s.cache = cache
	return s, nil
}

// newSession loads config for root and builds the logger. A config error is
// returned alongside a session that uses the defaults.
func newSession(root string, logOut io.Writer) (*session, error) {
	cfg, cfgErr := config.LoadConfig(root)
	if cfgErr == nil {
		cfgErr = cfg.Validate()
	}
	if cfgErr != nil {
		cfg = config.DefaultConfig()
	}

	factory := slogutil.NewLoggerFactory(root, cfg)
	if verbosityFlag > 0 || quietFlag {
		factory.WithCLILevel(slogutil.LevelFromVerbosity(verbosityFlag, quietFlag))
	}

	return &session{
		root:    root,
		cfg:     cfg,
		logger:  factory.CLILogger(logOut),
		factory: factory,
	}, cfgErr
}

func (s *session) Close() {
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Debug("Failed to close cache", "error", err.Error())
		}
	}
	s.factory.Close()
}

// withSession opens a session for the duration of fn.
func withSession(opts sessionOptions, fn func(s *session) error) error {
	s, err := openSession(opts)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

// render writes resp to the command's output in the selected format.
func render(cmd *cobra.Command, resp interface{}) error {
	output, err := FormatResponse(resp, outputFormat())
	if err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), output)
	return nil
}

// shortIDsFor assigns short ids to ids for display. Allocation failures only
// cost the short column.
func (s *session) shortIDsFor(ids []string) map[string]string {
	if len(ids) == 0 {
		return nil
	}
	m, err := s.cache.EnsureShortIDs(ids)
	if err != nil {
		s.logger.Debug("Short id allocation failed", "error", err.Error())
		return nil
	}
	return m
}
