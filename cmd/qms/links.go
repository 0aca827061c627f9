package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"qms/internal/index"
	"qms/internal/records"
	"qms/internal/storage"
)

var (
	traceReverse bool
	traceDepth   int
	bomDepth     int
	orphansType  string
)

var linksCmd = &cobra.Command{
	Use:   "links <id>",
	Short: "Show a record and its direct links in both directions",
	Args:  cobra.ExactArgs(1),
	RunE:  runLinks,
}

var traceCmd = &cobra.Command{
	Use:   "trace <id>",
	Short: "Follow links transitively from a record",
	Long: `Trace follows outgoing links breadth-first, each record reported once at
its shallowest depth. With --to it follows incoming links instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runTrace,
}

var bomCmd = &cobra.Command{
	Use:   "bom <assembly>",
	Short: "Expand an assembly's bill of materials",
	Args:  cobra.ExactArgs(1),
	RunE:  runBOM,
}

var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "List records with no links in either direction",
	RunE:  runOrphans,
}

var danglingCmd = &cobra.Command{
	Use:   "dangling",
	Short: "List links whose target is not a known record",
	RunE:  runDangling,
}

func init() {
	traceCmd.Flags().BoolVar(&traceReverse, "to", false, "Follow incoming links")
	traceCmd.Flags().IntVarP(&traceDepth, "depth", "d", 0, "Maximum depth (default from config)")
	bomCmd.Flags().IntVarP(&bomDepth, "depth", "d", 0, "Maximum depth (default from config)")
	orphansCmd.Flags().StringVarP(&orphansType, "type", "t", "", "Only this prefix")
	rootCmd.AddCommand(linksCmd, traceCmd, bomCmd, orphansCmd, danglingCmd)
}

func runLinks(cmd *cobra.Command, args []string) error {
	return withSession(sessionOptions{}, func(s *session) error {
		id := s.cache.ResolveRef(args[0])
		resp := &LinksResponse{
			ID:       id,
			Outgoing: s.cache.LinksFrom(id),
			Incoming: s.cache.LinksTo(id),
		}
		if e, ok := s.cache.Entity(id); ok {
			resp.Entity = e
		}
		return render(cmd, resp)
	})
}

func runTrace(cmd *cobra.Command, args []string) error {
	return withSession(sessionOptions{}, func(s *session) error {
		id := s.cache.ResolveRef(args[0])
		depth := depthOrDefault(traceDepth, s)

		resp := &TraceResponse{Root: id, Direction: "from", MaxDepth: depth}
		if traceReverse {
			resp.Direction = "to"
			resp.Steps = s.cache.TraceTo(id, depth)
		} else {
			resp.Steps = s.cache.TraceFrom(id, depth)
		}
		return render(cmd, resp)
	})
}

func runBOM(cmd *cobra.Command, args []string) error {
	return withSession(sessionOptions{}, func(s *session) error {
		id := s.cache.ResolveRef(args[0])
		if prefix, err := records.PrefixOf(id); err != nil || prefix != records.AssemblyKind.Prefix {
			return fmt.Errorf("%s is not an assembly id", id)
		}
		depth := depthOrDefault(bomDepth, s)
		return render(cmd, &TraceResponse{
			Root:      id,
			Direction: records.LinkContains,
			MaxDepth:  depth,
			Steps:     s.cache.ExpandBOM(id, depth),
		})
	})
}

func runOrphans(cmd *cobra.Command, args []string) error {
	return withSession(sessionOptions{}, func(s *session) error {
		return render(cmd, newEntityList(s, "Orphaned records", s.cache.FindOrphans(orphansType)))
	})
}

func runDangling(cmd *cobra.Command, args []string) error {
	return withSession(sessionOptions{}, func(s *session) error {
		return render(cmd, &DanglingResponse{Links: s.cache.DanglingLinks()})
	})
}

func depthOrDefault(flag int, s *session) int {
	if flag > 0 {
		return flag
	}
	return s.cfg.Cache.TraceDepth
}

// LinksResponse is a record with its direct edges.
type LinksResponse struct {
	ID       string          `json:"id"`
	Entity   *storage.Entity `json:"entity,omitempty"`
	Outgoing []storage.Link  `json:"outgoing"`
	Incoming []storage.Link  `json:"incoming"`
}

// TraceResponse is the result of a transitive walk.
type TraceResponse struct {
	Root      string            `json:"root"`
	Direction string            `json:"direction"`
	MaxDepth  int               `json:"maxDepth"`
	Steps     []index.TraceStep `json:"steps"`
}

// DanglingResponse lists edges pointing at unknown records.
type DanglingResponse struct {
	Links []storage.Link `json:"links"`
}
