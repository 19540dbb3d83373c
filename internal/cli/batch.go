package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/biaslens/internal/model"
	"github.com/ppiankov/biaslens/internal/pipeline"
	"github.com/ppiankov/biaslens/internal/worker"
)

var (
	outputDir    string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Classify many article URLs from a file in parallel",
	Long: `Batch fetches and classifies every URL listed in a file (one per line,
# starts a comment) with a pool of workers. Requests to the same host are
rate limited and slowed further when robots.txt asks for a crawl delay.

With --output-dir each report is also written as JSON.

Example:
  biaslens batch urls.txt
  biaslens batch urls.txt --concurrency 8 --output-dir ./reports`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().Int("concurrency", 0, "number of concurrent workers (default from config)")
	batchCmd.Flags().Float64("rps", 0, "requests per second per host (default from config)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "", "write one JSON report per URL into this directory")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
	_ = viper.BindPFlag("concurrency.workers", batchCmd.Flags().Lookup("concurrency"))
	_ = viper.BindPFlag("rate_limiting.requests_per_second", batchCmd.Flags().Lookup("rps"))

	// LLM flags
	batchCmd.Flags().BoolVar(&llmEnabled, "llm", false, "ask the LLM for a second opinion on every article")
	batchCmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name (default from config)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyLLMFlags(cfg); err != nil {
		return err
	}

	urls, err := worker.ReadURLsFromFile(file)
	if err != nil {
		return fmt.Errorf("read URLs: %w", err)
	}

	fmt.Fprintf(os.Stderr, "%s\n\n", headingStyle.Render("biaslens batch"))
	fmt.Fprintf(os.Stderr, "  Input file:   %s (%d URLs)\n", file, len(urls))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Rate limit:   %.1f req/s per host\n", cfg.RateLimiting.RequestsPerSecond)
	if outputDir != "" {
		fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	}
	if llmEnabled {
		fmt.Fprintf(os.Stderr, "  LLM:          %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	}
	fmt.Fprintln(os.Stderr)

	if outputDir != "" {
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	p, err := pipeline.New(cfg, pipeline.WithLogger(newLogger(cfg)))
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	results, err := p.ClassifyURLs(ctx, urls)
	if err != nil {
		return err
	}

	counts := make(map[model.Class]int, model.NumClasses)
	failures := 0
	var reports []*model.Report

	for _, result := range results {
		if result.Error != nil {
			failures++
			fmt.Fprintf(os.Stderr, "%s %s: %v\n", warnStyle.Render("✗"), result.URL, result.Error)
			continue
		}

		report := result.Report
		counts[report.Predicted]++
		reports = append(reports, report)

		if outputDir != "" {
			path := filepath.Join(outputDir, fmt.Sprintf("%03d-%s.json", result.Index+1, sanitizeFilename(report.Subject)))
			if err := writeReportFile(path, report); err != nil {
				fmt.Fprintf(os.Stderr, "%s %s: %v\n", warnStyle.Render("✗"), result.URL, err)
			}
		}

		fmt.Fprintf(os.Stderr, "%s %s %s\n", okStyle.Render("✓"), classLabel(report.Predicted), truncate(report.Subject, 70))
	}

	if jsonOut {
		if err := writeJSON(os.Stdout, reports); err != nil {
			return err
		}
	}

	fmt.Fprintf(os.Stderr, "\n%s\n\n", headingStyle.Render("Batch complete"))
	fmt.Fprintf(os.Stderr, "  Total:     %d URLs\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", len(results)-failures)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failures)
	for _, c := range model.Classes {
		fmt.Fprintf(os.Stderr, "  %-9s  %d\n", classLabel(c)+":", counts[c])
	}
	fmt.Fprintln(os.Stderr)

	if failures > 0 && failures == len(results) {
		return fmt.Errorf("all %d URLs failed", failures)
	}
	return nil
}

func writeReportFile(path string, report *model.Report) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close report: %w", closeErr)
		}
	}()
	return writeJSON(f, report)
}

var filenameReplacer = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
	"\"", "_", "<", "_", ">", "_", "|", "_", " ", "-",
)

// sanitizeFilename sanitizes a string for use as a filename
func sanitizeFilename(s string) string {
	s = filenameReplacer.Replace(strings.TrimSpace(s))
	s = strings.Trim(s, ".-_")
	if s == "" {
		s = "report"
	}

	// Limit length
	if r := []rune(s); len(r) > 80 {
		s = string(r[:80])
	}
	return s
}
