package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/biaslens/internal/pipeline"
)

var trainForce bool

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Aggregate word counts and train the classifier",
	Long: `Train loads the training split, preprocesses it with the configured chain,
aggregates per-class word counts and derives add-one smoothed parameters.

Stats and parameters are cached under a fingerprint of the corpus and the
chain. A second run over the same data loads them instead of recomputing;
--force recomputes and overwrites.

Example:
  biaslens train
  biaslens train --split valid --chain stop_stem --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, cfg, err := openPipeline(pipeline.WithForce(trainForce))
		if err != nil {
			return err
		}
		defer func() { _ = p.Close() }()

		if cfg.Output.Verbose {
			fmt.Fprintf(os.Stderr, "Training on %s split %q with chain %s\n", cfg.Corpus.Root, cfg.Corpus.TrainSplit, p.Chain().Name())
		}

		result, err := p.Train(context.Background())
		if err != nil {
			return err
		}

		if jsonOut {
			return writeJSON(os.Stdout, map[string]any{
				"split":      result.Split,
				"chain":      p.Chain().Name(),
				"documents":  result.Summary,
				"vocabulary": result.Vocabulary,
				"elapsed_ms": result.Elapsed.Milliseconds(),
			})
		}

		renderSummary(os.Stdout, "Training documents", result.Summary)
		fmt.Printf("\nVocabulary: %d words (chain %s)\n", result.Vocabulary, p.Chain().Name())
		fmt.Println(okStyle.Render(fmt.Sprintf("✓ Model ready in %s", result.Elapsed.Round(time.Millisecond))))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().String("split", "", "training split (default from config: corpus.train_split)")
	trainCmd.Flags().BoolVar(&trainForce, "force", false, "recompute cached stats and parameters")
	_ = viper.BindPFlag("corpus.train_split", trainCmd.Flags().Lookup("split"))
}
