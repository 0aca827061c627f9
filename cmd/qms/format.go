package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"qms/internal/index"
	"qms/internal/storage"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
)

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// formatJSON formats the response as JSON
func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// formatHuman formats the response in human-readable format
func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *index.Status:
		return formatCacheStatusHuman(v), nil
	case *RebuildResponse:
		return formatRebuildHuman(v), nil
	case *CheckResponse:
		return formatCheckHuman(v), nil
	case *storage.CompactResult:
		return formatCompactHuman(v), nil
	case *ListResponse:
		return formatListHuman(v), nil
	case *EntityListResponse:
		return formatEntityListHuman(v), nil
	case *LinksResponse:
		return formatLinksHuman(v), nil
	case *TraceResponse:
		return formatTraceHuman(v), nil
	case *DanglingResponse:
		return formatDanglingHuman(v), nil
	case *StatsResponse:
		return formatStatsHuman(v), nil
	case *index.Coverage:
		return formatCoverageHuman(v), nil
	case *index.RiskDistribution:
		return formatRisksHuman(v), nil
	case *QuotesResponse:
		return formatQuotesHuman(v), nil
	case *ShortIDsResponse:
		return formatShortIDsHuman(v), nil
	default:
		// For unknown types, fall back to JSON
		return formatJSON(resp)
	}
}

func formatCacheStatusHuman(st *index.Status) string {
	var b strings.Builder

	b.WriteString("Cache Status\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	state := "fresh"
	if st.Stale {
		state = "stale"
	}
	b.WriteString(fmt.Sprintf("  Path: %s\n", st.Path))
	b.WriteString(fmt.Sprintf("  Size: %s\n", formatBytes(st.SizeBytes)))
	b.WriteString(fmt.Sprintf("  Schema Version: %d\n", st.SchemaVersion))
	b.WriteString(fmt.Sprintf("  State: %s\n\n", state))

	b.WriteString("Contents:\n")
	b.WriteString(fmt.Sprintf("  Records: %d\n", st.Entities))
	b.WriteString(fmt.Sprintf("  Links: %d\n", st.Links))
	b.WriteString(fmt.Sprintf("  Short IDs: %d\n", st.ShortIDs))
	b.WriteString(fmt.Sprintf("  Files: %d\n", st.Files))

	if st.LastRebuildID != "" {
		b.WriteString("\nLast Rebuild:\n")
		b.WriteString(fmt.Sprintf("  ID: %s\n", st.LastRebuildID))
		b.WriteString(fmt.Sprintf("  At: %s\n", formatTime(st.LastRebuildAt)))
		b.WriteString(fmt.Sprintf("  Newest Document: %s\n", formatTime(st.MaxMtime)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatRebuildHuman(r *RebuildResponse) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Indexed %d of %d documents, %d links in %dms\n",
		r.Indexed, r.Files, r.Links, r.DurationMs))
	b.WriteString(fmt.Sprintf("Rebuild ID: %s", r.ID))
	if len(r.Failures) > 0 {
		b.WriteString(fmt.Sprintf("\n\nSkipped %d document(s):\n", len(r.Failures)))
		for _, f := range r.Failures {
			b.WriteString(fmt.Sprintf("  %s\n    %s\n", f.Path, f.Error))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatCheckHuman(c *CheckResponse) string {
	if c.Stale {
		return "Cache is stale; the next command will rebuild it."
	}
	return fmt.Sprintf("Cache is up to date (%d files, rebuilt %s).", c.CachedFiles, formatTime(c.LastRebuildAt))
}

func formatCompactHuman(r *storage.CompactResult) string {
	var b strings.Builder
	integrity := "ok"
	if !r.IntegrityOK {
		integrity = "FAILED (file not rewritten)"
	}
	b.WriteString(fmt.Sprintf("Integrity: %s\n", integrity))
	b.WriteString(fmt.Sprintf("Size: %s -> %s (reclaimed %s) in %dms\n",
		formatBytes(r.SizeBefore), formatBytes(r.SizeAfter), formatBytes(r.BytesReclaimed), r.DurationMs))
	for _, e := range r.Errors {
		b.WriteString("  " + e + "\n")
	}
	if !r.IntegrityOK {
		b.WriteString("Run 'qms cache rebuild' or delete .qms/cache.db to start over; short ids live in that file.\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatListHuman(r *ListResponse) string {
	if len(r.Rows) == 0 {
		return fmt.Sprintf("No %s records found.", r.Kind)
	}

	header := []string{"SID", "ID", "STATUS", "TITLE"}
	for _, c := range r.Columns {
		header = append(header, strings.ToUpper(c))
	}
	rows := make([][]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		line := []string{r.ShortIDs[row.ID], row.ID, row.Status, truncate(row.Title, 50)}
		for _, c := range r.Columns {
			line = append(line, formatValue(row.Fields[c]))
		}
		rows = append(rows, line)
	}
	return table(header, rows) + fmt.Sprintf("\n%d %s record(s)", len(r.Rows), r.Kind)
}

func formatEntityListHuman(r *EntityListResponse) string {
	if len(r.Entities) == 0 {
		return r.Title + ": none"
	}
	rows := make([][]string, 0, len(r.Entities))
	for _, e := range r.Entities {
		rows = append(rows, []string{r.ShortIDs[e.ID], e.ID, e.Status, e.Author, truncate(e.Title, 50)})
	}
	return fmt.Sprintf("%s (%d)\n\n", r.Title, len(r.Entities)) +
		table([]string{"SID", "ID", "STATUS", "AUTHOR", "TITLE"}, rows)
}

func formatLinksHuman(r *LinksResponse) string {
	var b strings.Builder
	if r.Entity != nil {
		b.WriteString(fmt.Sprintf("%s  %s\n", r.Entity.ID, r.Entity.Title))
		b.WriteString(fmt.Sprintf("  Status: %s   Author: %s   File: %s\n\n",
			r.Entity.Status, r.Entity.Author, r.Entity.FilePath))
	} else {
		b.WriteString(fmt.Sprintf("%s (not a known record)\n\n", r.ID))
	}

	b.WriteString(fmt.Sprintf("Outgoing (%d):\n", len(r.Outgoing)))
	for _, l := range r.Outgoing {
		b.WriteString(fmt.Sprintf("  --%s--> %s\n", l.LinkType, l.TargetID))
	}
	b.WriteString(fmt.Sprintf("Incoming (%d):\n", len(r.Incoming)))
	for _, l := range r.Incoming {
		b.WriteString(fmt.Sprintf("  %s --%s-->\n", l.SourceID, l.LinkType))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatTraceHuman(r *TraceResponse) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s (%s, depth <= %d)\n", r.Root, r.Direction, r.MaxDepth))
	if len(r.Steps) == 0 {
		b.WriteString("  no linked records")
		return b.String()
	}
	for _, s := range r.Steps {
		b.WriteString(fmt.Sprintf("%s%s  [%s from %s]\n", strings.Repeat("  ", s.Depth), s.ID, s.LinkType, s.From))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatDanglingHuman(r *DanglingResponse) string {
	if len(r.Links) == 0 {
		return "No dangling links."
	}
	rows := make([][]string, 0, len(r.Links))
	for _, l := range r.Links {
		rows = append(rows, []string{l.SourceID, l.LinkType, l.TargetID})
	}
	return fmt.Sprintf("Dangling links (%d)\n\n", len(r.Links)) +
		table([]string{"SOURCE", "TYPE", "MISSING TARGET"}, rows)
}

func formatStatsHuman(r *StatsResponse) string {
	if r.Total == 0 {
		return "No records indexed."
	}
	byPrefix := map[string][]index.TypeStatusCount{}
	var prefixes []string
	for _, c := range r.Counts {
		if _, seen := byPrefix[c.Prefix]; !seen {
			prefixes = append(prefixes, c.Prefix)
		}
		byPrefix[c.Prefix] = append(byPrefix[c.Prefix], c)
	}
	sort.Strings(prefixes)

	rows := make([][]string, 0, len(prefixes))
	for _, p := range prefixes {
		total := 0
		parts := make([]string, 0, len(byPrefix[p]))
		for _, c := range byPrefix[p] {
			total += c.Count
			parts = append(parts, fmt.Sprintf("%s=%d", c.Status, c.Count))
		}
		rows = append(rows, []string{p, fmt.Sprintf("%d", total), strings.Join(parts, " ")})
	}
	return table([]string{"TYPE", "TOTAL", "BY STATUS"}, rows) + fmt.Sprintf("\n%d record(s)", r.Total)
}

func formatCoverageHuman(c *index.Coverage) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Requirement coverage: %.1f%%\n", c.Percent))
	b.WriteString(fmt.Sprintf("  Requirements: %d\n", c.Total))
	b.WriteString(fmt.Sprintf("  Verified: %d\n", c.WithTests))
	b.WriteString(fmt.Sprintf("  Unverified: %d\n", c.WithoutTests))
	if len(c.Uncovered) > 0 {
		b.WriteString("\nUnverified requirements:\n")
		for _, id := range c.Uncovered {
			b.WriteString("  " + id + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatRisksHuman(d *index.RiskDistribution) string {
	if d.Total == 0 {
		return "No risks indexed."
	}
	groupRows := func(groups []index.RiskGroup) [][]string {
		rows := make([][]string, 0, len(groups))
		for _, g := range groups {
			rows = append(rows, []string{g.Key, fmt.Sprintf("%d", g.Count),
				fmt.Sprintf("%.1f", g.AvgRPN), fmt.Sprintf("%d", g.MaxRPN)})
		}
		return rows
	}
	header := []string{"", "COUNT", "AVG RPN", "MAX RPN"}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Risks: %d\n\nBy level:\n", d.Total))
	header[0] = "LEVEL"
	b.WriteString(table(header, groupRows(d.ByLevel)))
	b.WriteString("\nBy status:\n")
	header[0] = "STATUS"
	b.WriteString(table(header, groupRows(d.ByStatus)))
	return strings.TrimRight(b.String(), "\n")
}

func formatQuotesHuman(r *QuotesResponse) string {
	if len(r.Suppliers) == 0 {
		return "No quotes indexed."
	}
	rows := make([][]string, 0, len(r.Suppliers))
	for _, s := range r.Suppliers {
		rows = append(rows, []string{s.SupplierID, truncate(s.SupplierName, 40), fmt.Sprintf("%d", s.Quotes),
			fmt.Sprintf("%.2f", s.TotalValue), fmt.Sprintf("%.1f", s.AvgLeadTimeDays)})
	}
	return table([]string{"SUPPLIER", "NAME", "QUOTES", "TOTAL", "AVG LEAD (DAYS)"}, rows)
}

func formatShortIDsHuman(r *ShortIDsResponse) string {
	rows := make([][]string, 0, len(r.ShortIDs))
	for _, s := range r.ShortIDs {
		rows = append(rows, []string{s.ShortID, s.ID})
	}
	return strings.TrimRight(table(nil, rows), "\n")
}

// table renders rows as aligned columns, with an optional header line.
func table(header []string, rows [][]string) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	if len(header) > 0 {
		fmt.Fprintln(w, strings.Join(header, "\t"))
	}
	for _, r := range rows {
		fmt.Fprintln(w, strings.Join(r, "\t"))
	}
	_ = w.Flush()
	return b.String()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprint(x)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// formatBytes formats bytes as human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
