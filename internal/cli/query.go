package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/biaslens/internal/model"
	"github.com/ppiankov/biaslens/internal/rank"
)

var (
	queryText    string
	queryFile    string
	queryPrefer  string
	queryOnly    string
	queryExclude string
	queryLimit   int
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search the corpus and re-rank results by predicted leaning",
	Long: `Query runs a BM25 full-text search over title, topic and content, predicts
the leaning of every hit and re-ranks them.

--bias boosts hits predicted as that class by the configured factor
(ranking.boost, 1.1 by default) before re-sorting. --only keeps just one
class and --exclude drops one. The search index is built on first use.

Example:
  biaslens query -q "immigration policy" --bias right
  biaslens query -q "climate" --only center --limit 5`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search text")
	queryCmd.Flags().StringVarP(&queryFile, "file", "f", "", "file holding the search text")
	queryCmd.Flags().StringVar(&queryPrefer, "bias", "", "preferred class to boost (left, center, right, none)")
	queryCmd.Flags().StringVar(&queryOnly, "only", "", "keep only hits predicted as this class")
	queryCmd.Flags().StringVar(&queryExclude, "exclude", "", "drop hits predicted as this class")
	queryCmd.Flags().IntVar(&queryLimit, "limit", 0, "maximum results (default from config: ranking.limit)")
	queryCmd.Flags().Float64("boost", 0, "boost factor for the preferred class (default from config)")
	_ = viper.BindPFlag("ranking.boost", queryCmd.Flags().Lookup("boost"))
}

// queryOptions parses the class flags
func queryOptions() (rank.Options, error) {
	var opts rank.Options
	var err error

	if opts.Prefer, err = model.ParseClass(queryPrefer); err != nil {
		return opts, fmt.Errorf("--bias: %w", err)
	}
	if opts.Only, err = model.ParseClass(queryOnly); err != nil {
		return opts, fmt.Errorf("--only: %w", err)
	}
	if opts.Exclude, err = model.ParseClass(queryExclude); err != nil {
		return opts, fmt.Errorf("--exclude: %w", err)
	}
	opts.Limit = queryLimit
	return opts, opts.Validate()
}

func queryInput() (string, error) {
	switch {
	case queryText != "" && queryFile != "":
		return "", errors.New("use either -q or -f, not both")
	case queryText != "":
		return queryText, nil
	case queryFile != "":
		data, err := os.ReadFile(queryFile)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", queryFile, err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return "", errors.New("a search text is required (-q or -f)")
}

func runQuery(cmd *cobra.Command, args []string) error {
	text, err := queryInput()
	if err != nil {
		return err
	}
	opts, err := queryOptions()
	if err != nil {
		return err
	}

	p, _, err := openPipeline()
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	hits, err := p.Query(context.Background(), text, opts)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if jsonOut {
		return writeJSON(os.Stdout, hits)
	}
	renderHits(os.Stdout, hits)
	return nil
}
