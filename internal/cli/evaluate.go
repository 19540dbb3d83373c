package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

var evalSplit string

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Measure accuracy on a labeled split",
	Long: `Evaluate classifies every document of a labeled split and compares the
prediction with its label.

Example:
  biaslens evaluate
  biaslens evaluate --split valid`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, cfg, err := openPipeline()
		if err != nil {
			return err
		}
		defer func() { _ = p.Close() }()

		split := evalSplit
		if split == "" {
			split = cfg.Corpus.TestSplit
		}

		eval, err := p.Evaluate(context.Background(), split)
		if err != nil {
			return err
		}

		if jsonOut {
			return writeJSON(os.Stdout, eval)
		}
		renderEvaluation(os.Stdout, split, eval)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().StringVar(&evalSplit, "split", "", "split to evaluate (default from config: corpus.test_split)")
}
