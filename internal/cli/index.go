package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var indexForce bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the full-text search index",
	Long: `Index stores every corpus document in the SQLite search index. An index
built from the same corpus is kept as is unless --force is given.

Example:
  biaslens index
  biaslens index --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, cfg, err := openPipeline()
		if err != nil {
			return err
		}
		defer func() { _ = p.Close() }()

		start := time.Now()
		built, stats, err := p.BuildIndex(context.Background(), indexForce)
		if err != nil {
			return fmt.Errorf("build index: %w", err)
		}

		if jsonOut {
			return writeJSON(os.Stdout, map[string]any{"built": built, "path": cfg.Search.IndexPath, "stats": stats})
		}

		if built {
			fmt.Println(okStyle.Render(fmt.Sprintf("✓ Indexed %d documents in %s", stats.Documents, time.Since(start).Round(time.Millisecond))))
		} else {
			fmt.Println(dimStyle.Render("Index is up to date (use --force to rebuild)"))
		}
		fmt.Printf("  path:        %s\n", cfg.Search.IndexPath)
		fmt.Printf("  terms:       %d\n", stats.Terms)
		fmt.Printf("  avg length:  %.1f\n", stats.AvgDocLength)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVar(&indexForce, "force", false, "rebuild even when the corpus is unchanged")
}
