package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/biaslens/internal/model"
)

const precedence = `Settings are resolved in this order, first match wins:
  1. command-line flags
  2. environment (BIASLENS_CORPUS_ROOT, BIASLENS_LLM_PROVIDER, OPENAI_API_KEY, ...)
  3. the config file
  4. built-in defaults`

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the biaslens configuration",
	Long:  "Inspect or create the biaslens configuration.\n\n" + precedence,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		source := "built-in defaults (no config file)"
		if used := viper.ConfigFileUsed(); used != "" {
			source = used
		}
		fmt.Fprintln(os.Stderr, dimStyle.Render("source: "+source))

		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		fmt.Println(headingStyle.Render("Effective configuration"))
		fmt.Println(string(out))

		if cfg.LLM.APIKey != "" {
			fmt.Println(dimStyle.Render("llm api key: set (hidden)"))
		}
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print where the config file is read from",
	RunE: func(cmd *cobra.Command, args []string) error {
		if used := viper.ConfigFileUsed(); used != "" {
			fmt.Println(used)
			return nil
		}
		path, err := defaultConfigPath()
		if err != nil {
			return err
		}
		fmt.Println(path + dimStyle.Render(" (not present)"))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := defaultConfigPath()
		if err != nil {
			return err
		}
		if configForce {
			_ = os.Remove(path)
		}
		if err := writeDefaultConfig(filepath.Dir(path), path); err != nil {
			return err
		}
		fmt.Printf("%s wrote %s\n", okStyle.Render("✓"), path)
		fmt.Println(dimStyle.Render("edit it, then check the result with: biaslens config show"))
		return nil
	},
}

func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("find home directory: %w", err)
	}
	return filepath.Join(home, ".biaslens", "config.yaml"), nil
}

// writeDefaultConfig writes the defaults with explanatory comments. It never
// replaces an existing file.
func writeDefaultConfig(configDir, configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s (use --force to replace it)", configPath)
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := renderDefaultConfig()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(configDir, ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return os.Rename(tmp.Name(), configPath)
}

// renderDefaultConfig encodes the defaults as a YAML document with head and
// foot comments
func renderDefaultConfig() ([]byte, error) {
	var doc yaml.Node
	if err := doc.Encode(model.DefaultConfig()); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	doc.HeadComment = "biaslens configuration\n\n" + precedence
	doc.FootComment = "API keys are never stored here. Export OPENAI_API_KEY or put it in .env."

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Replace an existing config file")

	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configPathCmd, configInitCmd)
}
