package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/chunkenizer/internal/models"
)

var (
	searchTopK     int
	searchFilters  []string
	searchDocument string
	searchJSON     bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search stored chunks",
	Long: `Embeds the query and returns the nearest chunks. --filter key=value
restricts results to chunks whose metadata has that value; repeat it to
combine conditions.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 5, "maximum number of results")
	searchCmd.Flags().StringArrayVar(&searchFilters, "filter", nil, "metadata equality filter key=value")
	searchCmd.Flags().StringVar(&searchDocument, "document", "", "only search this document id")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := requireApp()
	if err != nil {
		return err
	}

	filter, err := parseFilters(searchFilters)
	if err != nil {
		return err
	}
	filter.DocumentID = searchDocument

	hits, err := a.Search.Search(cmd.Context(), args[0], searchTopK, filter)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		data, err := json.MarshalIndent(hits, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(hits) == 0 {
		cmd.Println("No results found.")
		return nil
	}
	for i, h := range hits {
		cmd.Printf("[%d] %.4f  %s #%d\n", i+1, h.Score, h.DocumentName, h.ChunkIndex)
		cmd.Printf("    %s\n", snippet(h.Text, 160))
	}
	return nil
}

// parseFilters turns key=value pairs into a metadata filter. Values that
// parse as booleans or numbers match those types; anything else is a string.
func parseFilters(pairs []string) (models.SearchFilter, error) {
	var f models.SearchFilter
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return f, fmt.Errorf("filter %q: want key=value", p)
		}
		if f.Metadata == nil {
			f.Metadata = make(map[string]any)
		}
		f.Metadata[k] = filterValue(v)
	}
	return f, nil
}

func filterValue(v string) any {
	switch v {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	if x, err := strconv.ParseFloat(v, 64); err == nil {
		return x
	}
	return v
}

func snippet(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
