// Package cmd provides the Cobra commands for the OCRLens CLI.
package cmd

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cliconfig "github.com/fluxbase-eu/ocrlens/cli/config"
	"github.com/fluxbase-eu/ocrlens/cli/output"
	"github.com/fluxbase-eu/ocrlens/internal/ai"
	appconfig "github.com/fluxbase-eu/ocrlens/internal/config"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"

	// Global flags
	cfgFile   string
	outputFmt string
	noHeaders bool
	quiet     bool
	debug     bool

	// Shared across commands
	formatter *output.Formatter
	keyStore  = cliconfig.NewKeyStore()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ocrlens",
	Short: "OCRLens CLI - Extract and analyze text from images",
	Long: `OCRLens extracts the text of an image with Tesseract and asks an LLM
to analyze it.

Features:
  - OCR: Extract text from PNG and JPEG images
  - Analyze: Summarize, find entities or translate with GROQ or Hugging Face
  - Keys: Keep provider API keys in the system keychain

Get started:
  ocrlens keys set groq          Store your GROQ API key
  ocrlens analyze receipt.png    Summarize the text of an image
  ocrlens --help                 Show available commands`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Silence errors only when --quiet is used
		cmd.SilenceErrors = quiet
		setupLogging()

		format, err := output.ParseFormat(outputFmt)
		if err != nil {
			return err
		}
		formatter = output.NewFormatter(format, noHeaders, quiet)
		formatter.Writer = cmd.OutOrStdout()
		formatter.ErrWriter = cmd.ErrOrStderr()
		return nil
	},
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the CLI with a context that is canceled on interrupt
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is ./ocrlens.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table",
		"output format: table, json, yaml")
	rootCmd.PersistentFlags().BoolVar(&noHeaders, "no-headers", false,
		"hide table headers")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"minimal output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"enable debug output")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)
	rootCmd.AddCommand(ocrCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(keysCmd)

	registerCompletions()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

func setupLogging() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}
}

// loadConfig reads the shared configuration and fills missing provider keys
// from the keychain
func loadConfig() (*appconfig.Config, map[ai.ProviderType]cliconfig.KeySource, error) {
	cfg, err := appconfig.Load()
	if err != nil {
		return nil, nil, err
	}
	if debug {
		cfg.Debug = true
	}
	sources := keyStore.Fill(&cfg.Providers)
	return cfg, sources, nil
}

// GetFormatter returns the output formatter (for use by subcommands)
func GetFormatter() *output.Formatter {
	if formatter == nil {
		format, _ := output.ParseFormat(outputFmt)
		formatter = output.NewFormatter(format, noHeaders, quiet)
	}
	return formatter
}

// IsDebug returns true if debug mode is enabled
func IsDebug() bool {
	return debug
}
