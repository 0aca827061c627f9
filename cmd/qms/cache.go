package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"qms/internal/index"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the local cache",
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cache location, size, counts and last rebuild",
	RunE:  runCacheStatus,
}

var cacheRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the cache from the document tree",
	Long: `Rebuild discards every derived table and re-indexes all *.qms.yaml documents.
Short ids are kept. Documents that fail to parse are reported and skipped.`,
	RunE: runCacheRebuild,
}

var cacheCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Report whether the cache is stale, without rebuilding",
	RunE:  runCacheCheck,
}

var cacheCompactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Check integrity and reclaim free space in the cache file",
	RunE:  runCacheCompact,
}

func init() {
	cacheCmd.AddCommand(cacheStatusCmd, cacheRebuildCmd, cacheCheckCmd, cacheCompactCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheStatus(cmd *cobra.Command, args []string) error {
	return withSession(sessionOptions{}, func(s *session) error {
		st := s.cache.CacheStatus()
		return render(cmd, &st)
	})
}

func runCacheRebuild(cmd *cobra.Command, args []string) error {
	return withSession(sessionOptions{noRebuild: true}, func(s *session) error {
		report, err := s.cache.Rebuild()
		if err != nil {
			return err
		}
		return render(cmd, newRebuildResponse(report))
	})
}

func runCacheCheck(cmd *cobra.Command, args []string) error {
	return withSession(sessionOptions{noRebuild: true}, func(s *session) error {
		st := s.cache.CacheStatus()
		return render(cmd, &CheckResponse{Stale: st.Stale, CachedFiles: st.Files, LastRebuildAt: st.LastRebuildAt})
	})
}

func runCacheCompact(cmd *cobra.Command, args []string) error {
	return withSession(sessionOptions{noRebuild: true}, func(s *session) error {
		result, err := s.cache.Compact(context.Background())
		if err != nil {
			return err
		}
		return render(cmd, result)
	})
}

// RebuildResponse is the CLI view of a rebuild report.
type RebuildResponse struct {
	ID         string        `json:"id"`
	Files      int           `json:"files"`
	Indexed    int           `json:"indexed"`
	Links      int           `json:"links"`
	DurationMs int64         `json:"durationMs"`
	Failures   []FailureView `json:"failures,omitempty"`
}

// FailureView is one document that could not be indexed.
type FailureView struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

func newRebuildResponse(r *index.RebuildReport) *RebuildResponse {
	resp := &RebuildResponse{
		ID:         r.ID,
		Files:      r.Files,
		Indexed:    r.Indexed,
		Links:      r.Links,
		DurationMs: r.Duration.Milliseconds(),
	}
	for _, f := range r.Failures {
		resp.Failures = append(resp.Failures, FailureView{Path: f.Path, Error: f.Err.Error()})
	}
	return resp
}

// CheckResponse reports cache freshness.
type CheckResponse struct {
	Stale         bool      `json:"stale"`
	CachedFiles   int       `json:"cachedFiles"`
	LastRebuildAt time.Time `json:"lastRebuildAt,omitempty"`
}
