package main

import (
	"github.com/spf13/cobra"

	"qms/internal/index"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count records by type and status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(sessionOptions{}, func(s *session) error {
			counts := s.cache.CountsByType()
			resp := &StatsResponse{Counts: counts}
			for _, c := range counts {
				resp.Total += c.Count
			}
			return render(cmd, resp)
		})
	},
}

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Show how many requirements are verified by a test",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(sessionOptions{}, func(s *session) error {
			cov := s.cache.RequirementCoverage()
			return render(cmd, &cov)
		})
	},
}

var risksCmd = &cobra.Command{
	Use:   "risks",
	Short: "Summarize risks by level and status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(sessionOptions{}, func(s *session) error {
			d := s.cache.RiskDistribution()
			return render(cmd, &d)
		})
	},
}

var quotesCmd = &cobra.Command{
	Use:   "quotes",
	Short: "Roll up quotes by supplier",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(sessionOptions{}, func(s *session) error {
			return render(cmd, &QuotesResponse{Suppliers: s.cache.QuoteRollup()})
		})
	},
}

func init() {
	rootCmd.AddCommand(statsCmd, coverageCmd, risksCmd, quotesCmd)
}

// StatsResponse counts records per prefix and status.
type StatsResponse struct {
	Total  int                     `json:"total"`
	Counts []index.TypeStatusCount `json:"counts"`
}

// QuotesResponse is the per-supplier quote rollup.
type QuotesResponse struct {
	Suppliers []index.SupplierQuotes `json:"suppliers"`
}
