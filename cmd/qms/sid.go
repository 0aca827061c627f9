package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"qms/internal/records"
)

var sidCmd = &cobra.Command{
	Use:   "sid",
	Short: "Manage short ids (PREFIX@N)",
	Long: `Short ids are stable per-project aliases such as REQ@3. They are assigned in
order of first use and survive cache rebuilds. Any command taking a record id
also accepts its short id.`,
}

var sidEnsureCmd = &cobra.Command{
	Use:   "ensure <id>...",
	Short: "Assign short ids to canonical ids",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSidEnsure,
}

var sidResolveCmd = &cobra.Command{
	Use:   "resolve <short-id>",
	Short: "Print the canonical id for a short id",
	Args:  cobra.ExactArgs(1),
	RunE:  runSidResolve,
}

var sidShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print the short id assigned to a canonical id",
	Args:  cobra.ExactArgs(1),
	RunE:  runSidShow,
}

func init() {
	sidCmd.AddCommand(sidEnsureCmd, sidResolveCmd, sidShowCmd)
	rootCmd.AddCommand(sidCmd)
}

func runSidEnsure(cmd *cobra.Command, args []string) error {
	for _, id := range args {
		if _, err := records.PrefixOf(id); err != nil {
			return err
		}
	}
	return withSession(sessionOptions{}, func(s *session) error {
		var assigned map[string]string
		var err error
		if len(args) == 1 {
			var short string
			short, err = s.cache.EnsureShortID(args[0])
			assigned = map[string]string{args[0]: short}
		} else {
			assigned, err = s.cache.EnsureShortIDs(args)
		}
		if err != nil {
			return err
		}

		resp := &ShortIDsResponse{}
		for _, id := range args {
			resp.ShortIDs = append(resp.ShortIDs, ShortIDView{ShortID: assigned[id], ID: id})
		}
		return render(cmd, resp)
	})
}

func runSidResolve(cmd *cobra.Command, args []string) error {
	return withSession(sessionOptions{}, func(s *session) error {
		id, ok := s.cache.ResolveShortID(args[0])
		if !ok {
			return fmt.Errorf("short id %s is not assigned", args[0])
		}
		return render(cmd, &ShortIDsResponse{ShortIDs: []ShortIDView{{ShortID: args[0], ID: id}}})
	})
}

func runSidShow(cmd *cobra.Command, args []string) error {
	return withSession(sessionOptions{}, func(s *session) error {
		short, ok := s.cache.ShortID(args[0])
		if !ok {
			return fmt.Errorf("%s has no short id; run 'qms sid ensure %s'", args[0], args[0])
		}
		return render(cmd, &ShortIDsResponse{ShortIDs: []ShortIDView{{ShortID: short, ID: args[0]}}})
	})
}

// ShortIDView pairs a short id with its canonical id.
type ShortIDView struct {
	ShortID string `json:"shortId"`
	ID      string `json:"id"`
}

// ShortIDsResponse lists short id assignments.
type ShortIDsResponse struct {
	ShortIDs []ShortIDView `json:"shortIds"`
}
