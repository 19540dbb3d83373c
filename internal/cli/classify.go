package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/biaslens/internal/corpus"
	"github.com/ppiankov/biaslens/internal/model"
	"github.com/ppiankov/biaslens/internal/pipeline"
)

var (
	classifyText    string
	classifyFile    string
	classifyJSON    string
	classifyURL     string
	classifyScale   bool
	classifyTimeout time.Duration
	llmEnabled      bool
	llmModel        string
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Predict the political leaning of a text, file or article URL",
	Long: `Classify scores a text against the trained model and reports the
log-probability of each class.

At most one input is accepted: inline text (-q), a plain text file (-f),
a corpus-style JSON file (-j, its "content" field is used) or an article
URL (--url) that is fetched, honouring robots.txt. With no input, or with
-q - or -f -, the text is read from standard input.

--scale adds how strongly the text leans: the ratio of the winning class
score to the opposing class score and the per-token log margin.

--llm asks the configured LLM for an independent label. It is printed
next to the prediction and never changes it.

Example:
  biaslens classify -q "The tax cuts will help working families"
  echo "The tax cuts will help working families" | biaslens classify
  biaslens classify -j data/jsons/abc123.json --scale
  biaslens classify --url https://example.com/politics/story --llm`,
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().StringVarP(&classifyText, "query", "q", "", "text to classify")
	classifyCmd.Flags().StringVarP(&classifyFile, "file", "f", "", "plain text file to classify")
	classifyCmd.Flags().StringVarP(&classifyJSON, "json-file", "j", "", "JSON article whose content field is classified")
	classifyCmd.Flags().StringVar(&classifyURL, "url", "", "article URL to fetch and classify")
	classifyCmd.Flags().BoolVar(&classifyScale, "scale", false, "report centeredness and term weight")
	classifyCmd.Flags().DurationVar(&classifyTimeout, "timeout", 2*time.Minute, "overall timeout")

	// LLM flags
	classifyCmd.Flags().BoolVar(&llmEnabled, "llm", false, "ask the LLM for a second opinion")
	classifyCmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name (default from config)")

	// HTTP flags
	classifyCmd.Flags().String("ua", "", "HTTP User-Agent (default from config)")
	classifyCmd.Flags().Bool("insecure", false, "skip TLS certificate verification")
	classifyCmd.Flags().String("http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	classifyCmd.Flags().String("https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
	_ = viper.BindPFlag("http.user_agent", classifyCmd.Flags().Lookup("ua"))
	_ = viper.BindPFlag("http.insecure_tls", classifyCmd.Flags().Lookup("insecure"))
	_ = viper.BindPFlag("http.http_proxy", classifyCmd.Flags().Lookup("http-proxy"))
	_ = viper.BindPFlag("http.https_proxy", classifyCmd.Flags().Lookup("https-proxy"))
}

// classifyInput resolves the single input flag into a document. For --url
// only the URL is set; the article is fetched later. No flag, -q - and
// -f - read the text from stdin.
func classifyInput(stdin io.Reader) (model.Document, error) {
	set := 0
	for _, v := range []string{classifyText, classifyFile, classifyJSON, classifyURL} {
		if v != "" {
			set++
		}
	}
	if set > 1 {
		return model.Document{}, errors.New("only one of -q, -f, -j or --url may be given")
	}

	switch {
	case set == 0 || classifyText == "-" || classifyFile == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return model.Document{}, fmt.Errorf("read stdin: %w", err)
		}
		if strings.TrimSpace(string(data)) == "" {
			return model.Document{}, errors.New("no input: pass -q, -f, -j or --url, or pipe text on stdin")
		}
		return model.Document{Content: string(data)}, nil
	case classifyURL != "":
		return model.Document{URL: classifyURL}, nil
	case classifyText != "":
		return model.Document{Content: classifyText}, nil
	case classifyFile != "":
		data, err := os.ReadFile(classifyFile)
		if err != nil {
			return model.Document{}, fmt.Errorf("read %s: %w", classifyFile, err)
		}
		return model.Document{ID: classifyFile, Content: string(data)}, nil
	default:
		content, err := corpus.ReadJSONContent(classifyJSON)
		if err != nil {
			return model.Document{}, err
		}
		return model.Document{ID: classifyJSON, Content: content}, nil
	}
}

// applyLLMFlags enables the LLM provider when --llm is set
func applyLLMFlags(cfg *model.Config) error {
	if !llmEnabled {
		cfg.LLM.Provider = ""
		return nil
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	if llmModel != "" {
		cfg.LLM.Model = llmModel
	}
	if cfg.LLM.APIKey == "" && os.Getenv("OPENAI_API_KEY") == "" {
		return fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	return nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), classifyTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyLLMFlags(cfg); err != nil {
		return err
	}

	doc, err := classifyInput(cmd.InOrStdin())
	if err != nil {
		return err
	}

	p, err := pipeline.New(cfg, pipeline.WithLogger(newLogger(cfg)))
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	if cfg.Output.Verbose && p.Advisor().IsEnabled() {
		fmt.Fprintf(os.Stderr, "LLM second opinion: %s/%s\n", p.Advisor().ProviderName(), cfg.LLM.Model)
	}

	var report *model.Report
	if classifyURL != "" {
		if cfg.Output.Verbose {
			fmt.Fprintf(os.Stderr, "Fetching: %s\n", classifyURL)
		}
		report, err = p.ClassifyURL(ctx, classifyURL)
	} else {
		report, err = p.ClassifyDocument(ctx, doc)
	}
	if err != nil {
		return fmt.Errorf("classify failed: %w", err)
	}

	if llmEnabled && report.LLM == nil {
		fmt.Fprintln(os.Stderr, warnStyle.Render("Warning: LLM opinion unavailable (run with -v for details)"))
	}

	if jsonOut {
		return writeJSON(os.Stdout, report)
	}
	renderReport(os.Stdout, report, classifyScale)
	return nil
}
