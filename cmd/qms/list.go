package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"qms/internal/index"
	"qms/internal/records"
	"qms/internal/storage"
)

var (
	listStatus  []string
	listFilters []string
	listAuthor  string
	listSearch  string
	listSort    string
	listDesc    bool
	listLimit   int
)

var listCmd = &cobra.Command{
	Use:   "list <kind>",
	Short: "List records of one kind",
	Long: `List records of one kind (by prefix, name or table: REQ, risk, work-instruction).

Filters on kind columns use --filter column=value and may repeat. Sorting accepts
id, title, status, author, created, priority, subtype, category or any kind column.`,
	Args: cobra.ExactArgs(1),
	RunE: runList,
}

var (
	searchTypes  []string
	searchStatus []string
	searchAuthor string
	searchTag    string
	searchLimit  int
)

var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Search records of every kind by id or title",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSearch,
}

func init() {
	listCmd.Flags().StringSliceVarP(&listStatus, "status", "s", nil, "Only these statuses")
	listCmd.Flags().StringArrayVarP(&listFilters, "filter", "f", nil, "Kind column filter, column=value")
	listCmd.Flags().StringVar(&listAuthor, "author", "", "Author substring")
	listCmd.Flags().StringVar(&listSearch, "search", "", "Id or title substring")
	listCmd.Flags().StringVar(&listSort, "sort", "", "Sort column")
	listCmd.Flags().BoolVar(&listDesc, "desc", false, "Sort descending")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "Maximum rows (0 for all)")
	rootCmd.AddCommand(listCmd)

	searchCmd.Flags().StringSliceVarP(&searchTypes, "type", "t", nil, "Only these prefixes (REQ, RISK, ...)")
	searchCmd.Flags().StringSliceVarP(&searchStatus, "status", "s", nil, "Only these statuses")
	searchCmd.Flags().StringVar(&searchAuthor, "author", "", "Author substring")
	searchCmd.Flags().StringVar(&searchTag, "tag", "", "Records carrying this tag")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "Maximum rows (default from config)")
	rootCmd.AddCommand(searchCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	kind, ok := records.Lookup(args[0])
	if !ok {
		return fmt.Errorf("unknown record kind %q (known: %s)", args[0], knownKinds())
	}
	filters, err := parseFilters(listFilters)
	if err != nil {
		return err
	}

	return withSession(sessionOptions{}, func(s *session) error {
		rows := s.cache.List(kind, index.ListOptions{
			Status:  listStatus,
			Filters: filters,
			Author:  listAuthor,
			Search:  listSearch,
			SortBy:  listSort,
			Desc:    listDesc,
			Limit:   listLimit,
		})

		ids := make([]string, len(rows))
		for i, r := range rows {
			ids[i] = r.ID
		}
		cols := make([]string, 0, len(kind.Columns))
		for _, c := range kind.FilterColumns() {
			cols = append(cols, c.Name)
		}
		return render(cmd, &ListResponse{
			Kind:     kind.Name,
			Columns:  cols,
			ShortIDs: s.shortIDsFor(ids),
			Rows:     rows,
		})
	})
}

func runSearch(cmd *cobra.Command, args []string) error {
	var text string
	if len(args) == 1 {
		text = args[0]
	}
	return withSession(sessionOptions{}, func(s *session) error {
		found := s.cache.Search(index.SearchOptions{
			Query:    text,
			Prefixes: searchTypes,
			Status:   searchStatus,
			Author:   searchAuthor,
			Tag:      searchTag,
			Limit:    searchLimit,
		})
		return render(cmd, newEntityList(s, "Search results", found))
	})
}

// parseFilters turns "column=value" arguments into filters.
func parseFilters(args []string) ([]index.Filter, error) {
	filters := make([]index.Filter, 0, len(args))
	for _, arg := range args {
		col, val, ok := strings.Cut(arg, "=")
		col = strings.TrimSpace(col)
		if !ok || col == "" {
			return nil, fmt.Errorf("invalid filter %q, expected column=value", arg)
		}
		filters = append(filters, index.Filter{Column: col, Value: strings.TrimSpace(val)})
	}
	return filters, nil
}

func knownKinds() string {
	names := make([]string, 0, len(records.All()))
	for _, k := range records.All() {
		names = append(names, k.Prefix)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// ListResponse is one kind's records with their filterable columns.
type ListResponse struct {
	Kind     string            `json:"kind"`
	Columns  []string          `json:"columns"`
	ShortIDs map[string]string `json:"shortIds,omitempty"`
	Rows     []index.Row       `json:"rows"`
}

// EntityListResponse is a titled list of generic records.
type EntityListResponse struct {
	Title    string            `json:"title"`
	ShortIDs map[string]string `json:"shortIds,omitempty"`
	Entities []storage.Entity  `json:"entities"`
}

func newEntityList(s *session, title string, entities []storage.Entity) *EntityListResponse {
	ids := make([]string, len(entities))
	for i, e := range entities {
		ids[i] = e.ID
	}
	return &EntityListResponse{
		Title:    title,
		ShortIDs: s.shortIDsFor(ids),
		Entities: entities,
	}
}
