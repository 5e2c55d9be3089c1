package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/josancamon19/realtime-tutor/pkg/cli"
	"github.com/josancamon19/realtime-tutor/pkg/config"
)

var (
	verbose    bool
	configPath string
	outputFmt  string
	jqQuery    string

	globalConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "tutor",
	Short: "Realtime voice learning assistant",
	Long: `tutor - talk through a topic with an AI tutor.

Each topic keeps its own conversation history and concept graph. Starting a
session on a topic with history resumes where the last one stopped.

Configuration is read from the OS config directory:
  macOS:   ~/Library/Application Support/realtime-tutor/config.yaml
  Linux:   ~/.config/realtime-tutor/config.yaml
  Windows: %AppData%/realtime-tutor/config.yaml

Examples:
  tutor config init
  tutor topic add "Photosynthesis"
  tutor talk photosynthesis
  tutor history show photosynthesis --jq '.[] | select(.sender == "user")'`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(os.Stderr)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is the OS config directory)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "yaml", "output format: yaml, json, raw")
	rootCmd.PersistentFlags().StringVar(&jqQuery, "jq", "", "jq expression applied to structured output")
}

func setupLogging(w io.Writer) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// GetConfig loads the configuration once.
func GetConfig() (*config.Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}
	path := configPath
	if path == "" {
		var err error
		if path, err = config.Path(); err != nil {
			return nil, err
		}
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, fmt.Errorf("config not available: %w", err)
	}
	globalConfig = cfg
	return cfg, nil
}

// output writes v with the global --output and --jq flags.
func output(cmd *cobra.Command, v any) error {
	return cli.Output(v, cli.OutputOptions{
		Format: cli.OutputFormat(outputFmt),
		Query:  jqQuery,
		Writer: cmd.OutOrStdout(),
	})
}
