package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/biaslens/internal/model"
	"github.com/ppiankov/biaslens/internal/pipeline"
)

// version is overridden at build time with -ldflags "-X ...cli.version=..."
var version = "0.1.0"

var (
	cfgFile    string
	verbose    bool
	corpusRoot string
	chainSpec  string
	noCache    bool
	jsonOut    bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "biaslens",
	Short: "biaslens - political bias classification for news articles",
	Long: `biaslens labels news articles as left, center or right leaning with an
add-one smoothed naive Bayes model trained on a labeled article corpus.

The same model re-ranks full-text search results toward a preferred
leaning, so a query can surface coverage from one side first, only from
one side, or from everything except one side.

Scores are log-probabilities from word counts. They describe which
class's vocabulary an article resembles, not whether it is accurate.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("biaslens v%s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.biaslens/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&corpusRoot, "corpus", "", "corpus root holding jsons/ and splits/")
	rootCmd.PersistentFlags().StringVar(&chainSpec, "chain", "", "preprocessing chain (vanilla, stemmed, stopword, stop_stem or a step list)")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "disable the on-disk model cache")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print JSON instead of formatted output")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("output.json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("corpus.root", rootCmd.PersistentFlags().Lookup("corpus"))
	_ = viper.BindPFlag("chain", rootCmd.PersistentFlags().Lookup("chain"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if err := configureViper(viper.GetViper(), cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring: %v\n", err)
		return
	}

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// configureViper points v at the config file and the BIASLENS_ environment
func configureViper(v *viper.Viper, configPath string) error {
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("find home directory: %w", err)
		}

		v.AddConfigPath(filepath.Join(home, ".biaslens"))
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	// BIASLENS_CORPUS_ROOT overrides corpus.root and so on
	v.SetEnvPrefix("BIASLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("llm.api_key", "BIASLENS_LLM_API_KEY", "OPENAI_API_KEY")

	return registerDefaults(v, model.DefaultConfig())
}

// registerDefaults makes every config key known to v so that AutomaticEnv
// applies to Unmarshal
func registerDefaults(v *viper.Viper, cfg *model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return err
	}
	setDefaults(v, "", tree)
	return nil
}

func setDefaults(v *viper.Viper, prefix string, tree map[string]any) {
	for key, value := range tree {
		if prefix != "" {
			key = prefix + "." + key
		}
		if sub, ok := value.(map[string]any); ok {
			setDefaults(v, key, sub)
			continue
		}
		v.SetDefault(key, value)
	}
}

// LoadConfig reads configuration outside of a command run, e.g. for the MCP
// server. An empty configPath looks for ~/.biaslens/config.yaml; a missing
// default file is not an error.
func LoadConfig(configPath string) (*model.Config, error) {
	v := viper.New()
	if err := configureViper(v, configPath); err != nil {
		return nil, err
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse configuration: %w", err)
	}
	return cfg, nil
}

// loadConfig merges defaults, the config file, environment and flags
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse configuration: %w", err)
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	cfg.Output.Verbose = cfg.Output.Verbose || verbose
	return cfg, nil
}

// newLogger returns a stderr text logger when verbose, otherwise a discard logger
func newLogger(cfg *model.Config) *slog.Logger {
	if !cfg.Output.Verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// openPipeline loads configuration and builds a pipeline from it
func openPipeline(opts ...pipeline.Option) (*pipeline.Pipeline, *model.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	opts = append([]pipeline.Option{pipeline.WithLogger(newLogger(cfg))}, opts...)
	p, err := pipeline.New(cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	return p, cfg, nil
}
