package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	docsSplit string
	docsID    string
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Inspect the labeled corpus",
}

var docsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count documents per class",
	Long: `Count documents per class for a split, or for the whole corpus when
--split is empty.

Example:
  biaslens docs stats
  biaslens docs stats --split test`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, _, err := openPipeline()
		if err != nil {
			return err
		}
		defer func() { _ = p.Close() }()

		set, err := p.LoadSplit(context.Background(), docsSplit)
		if err != nil {
			return err
		}
		sum := set.Summarize()

		if jsonOut {
			return writeJSON(os.Stdout, sum)
		}
		title := "Corpus"
		if docsSplit != "" {
			title = "Split " + docsSplit
		}
		renderSummary(os.Stdout, title, sum)
		return nil
	},
}

var docsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show one document by ID",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, _, err := openPipeline()
		if err != nil {
			return err
		}
		defer func() { _ = p.Close() }()

		doc, err := p.Document(context.Background(), docsID)
		if err != nil {
			return err
		}

		if jsonOut {
			return writeJSON(os.Stdout, doc)
		}
		fmt.Println(headingStyle.Render(doc.Title))
		fmt.Println(dimStyle.Render(fmt.Sprintf("%s · %s · %s · %s", doc.ID, doc.Source, doc.Date, doc.Topic)))
		fmt.Printf("Label: %s\n", classLabel(doc.Bias))
		if doc.URL != "" {
			fmt.Println(doc.URL)
		}
		fmt.Println()
		fmt.Println(doc.Content)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(docsCmd)
	docsCmd.AddCommand(docsStatsCmd)
	docsCmd.AddCommand(docsShowCmd)

	docsStatsCmd.Flags().StringVar(&docsSplit, "split", "", "split name (train, valid, test); empty for the whole corpus")
	docsShowCmd.Flags().StringVar(&docsID, "id", "", "document ID")
	_ = docsShowCmd.MarkFlagRequired("id")
}
