package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	cliconfig "github.com/fluxbase-eu/ocrlens/cli/config"
	"github.com/fluxbase-eu/ocrlens/cli/output"
	"github.com/fluxbase-eu/ocrlens/cli/util"
	"github.com/fluxbase-eu/ocrlens/internal/ai"
	"github.com/fluxbase-eu/ocrlens/internal/analysis"
	"github.com/fluxbase-eu/ocrlens/internal/app"
	appconfig "github.com/fluxbase-eu/ocrlens/internal/config"
	"github.com/fluxbase-eu/ocrlens/internal/session"
)

var (
	analyzeProvider    string
	analyzeModel       string
	analyzeTask        string
	analyzeTemperature float64
	analyzeMaxTokens   int
	analyzeSaveKey     bool
	analyzeShowText    bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <image>",
	Short: "Extract the text of an image and analyze it with an LLM",
	Long: `Extract the text of a PNG or JPEG image and send it to GROQ or Hugging Face
together with the instruction of the selected task.

Hugging Face models that are not served through chat completion are called
through text generation instead.

Examples:
  # Summarize with the default provider and model
  ocrlens analyze receipt.png

  # Translate with a Hugging Face model
  ocrlens analyze letter.jpg --provider hf --task "Translate to English"

  # Custom instruction, more room for the answer
  ocrlens analyze notes.png --task "List every date mentioned" --max-tokens 1000`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeProvider, "provider", "", "LLM provider: groq or huggingface (default from config)")
	analyzeCmd.Flags().StringVar(&analyzeModel, "model", "", "model id (default is the provider's default model)")
	analyzeCmd.Flags().StringVar(&analyzeTask, "task", "", "analysis task or a custom instruction (default from config)")
	analyzeCmd.Flags().Float64Var(&analyzeTemperature, "temperature", analysis.DefaultTemperature, "sampling temperature between 0 and 1")
	analyzeCmd.Flags().IntVar(&analyzeMaxTokens, "max-tokens", analysis.DefaultMaxTokens, "maximum number of tokens to generate")
	analyzeCmd.Flags().BoolVar(&analyzeSaveKey, "save-key", false, "store a key entered at the prompt in the keychain")
	analyzeCmd.Flags().BoolVar(&analyzeShowText, "show-text", false, "print the extracted text before the analysis")
}

// AnalyzeResult is the structured output of the analyze command
type AnalyzeResult struct {
	Image       string `json:"image" yaml:"image"`
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`
	Text        string `json:"text" yaml:"text"`
	Provider    string `json:"provider" yaml:"provider"`
	Model       string `json:"model" yaml:"model"`
	Task        string `json:"task" yaml:"task"`
	Tier        string `json:"tier,omitempty" yaml:"tier,omitempty"`
	Analysis    string `json:"analysis,omitempty" yaml:"analysis,omitempty"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
	DurationMS  int64  `json:"duration_ms" yaml:"duration_ms"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, sources, err := loadConfig()
	if err != nil {
		return err
	}

	params, err := analyzeParams(cmd, cfg.Analysis)
	if err != nil {
		return err
	}

	if sources[params.Provider] == cliconfig.KeySourceNone {
		key, err := promptForKey(params.Provider, analyzeSaveKey)
		if err != nil {
			return err
		}
		if key != "" {
			cliconfig.Set(&cfg.Providers, params.Provider, key)
		} else {
			GetFormatter().PrintWarning(fmt.Sprintf("no %s API key configured; run 'ocrlens keys set %s'",
				params.Provider.DisplayName(), params.Provider))
		}
	}

	components, err := app.Build(cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = components.Close() }()
	params.Model = components.ResolveModel(params.Provider, params.Model)

	s := newSession(components)
	defer func() { _ = s.Close() }()

	outcome, err := extract(cmd.Context(), s, args[0])
	if err != nil {
		return err
	}

	result, err := s.Analyze(cmd.Context(), params)
	if err != nil {
		var vErr *analysis.ValidationError
		if errors.As(err, &vErr) && vErr.Field == "text" {
			return fmt.Errorf("no text was found in %s", args[0])
		}
		return err
	}

	f := GetFormatter()
	if f.Structured() {
		if err := f.Print(AnalyzeResult{
			Image:       args[0],
			Fingerprint: outcome.Fingerprint.String(),
			Text:        outcome.Text,
			Provider:    string(result.Provider),
			Model:       result.Model,
			Task:        string(params.Task),
			Tier:        string(result.Tier),
			Analysis:    result.Text,
			Error:       result.Error,
			DurationMS:  result.Duration.Milliseconds(),
		}); err != nil {
			return err
		}
	} else {
		var blocks []output.Block
		if analyzeShowText {
			blocks = append(blocks, output.Block{Title: "Extracted text", Body: displayText(outcome.Text)})
		}
		if result.OK() {
			blocks = append(blocks, output.Block{
				Title: fmt.Sprintf("%s (%s, %s)", result.Provider.DisplayName(), result.Model, util.FormatDuration(result.Duration)),
				Body:  result.Text,
			})
		}
		f.PrintBlocks(blocks...)
	}

	if !result.OK() {
		return errors.New(result.Error)
	}
	return nil
}

// analyzeParams resolves the flags against the configured defaults. The
// model is checked against the catalog later.
func analyzeParams(cmd *cobra.Command, defaults appconfig.AnalysisConfig) (session.AnalyzeParams, error) {
	providerName := analyzeProvider
	if providerName == "" {
		providerName = defaults.DefaultProvider
	}
	provider, err := ai.ParseProviderType(providerName)
	if err != nil {
		return session.AnalyzeParams{}, &analysis.ValidationError{Field: "provider", Message: err.Error()}
	}

	task := analysis.Task(analyzeTask)
	if task == "" {
		task = analysis.Task(defaults.DefaultTask)
	}

	temperature := defaults.Temperature
	if cmd.Flags().Changed("temperature") {
		temperature = analyzeTemperature
	}
	maxTokens := defaults.MaxTokens
	if cmd.Flags().Changed("max-tokens") {
		maxTokens = analyzeMaxTokens
	}

	return session.AnalyzeParams{
		Provider:    provider,
		Model:       analyzeModel,
		Task:        task,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}, nil
}
