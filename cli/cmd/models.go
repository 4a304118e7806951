package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/fluxbase-eu/ocrlens/cli/output"
	"github.com/fluxbase-eu/ocrlens/internal/ai"
	"github.com/fluxbase-eu/ocrlens/internal/analysis"
	"github.com/fluxbase-eu/ocrlens/internal/app"
)

var modelsProvider string

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models offered per provider",
	Long: `List the models offered per provider and the call shapes they are served with.

Examples:
  ocrlens models
  ocrlens models --provider hf -o json`,
	Args: cobra.NoArgs,
	RunE: runModels,
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List the predefined analysis tasks",
	Args:  cobra.NoArgs,
	RunE:  runTasks,
}

func init() {
	modelsCmd.Flags().StringVar(&modelsProvider, "provider", "", "only list models of this provider (groq, huggingface)")
}

// ModelRow is one model in structured output
type ModelRow struct {
	Provider     string   `json:"provider" yaml:"provider"`
	Model        string   `json:"model" yaml:"model"`
	Capabilities []string `json:"capabilities" yaml:"capabilities"`
	Default      bool     `json:"default" yaml:"default"`
}

func runModels(cmd *cobra.Command, args []string) error {
	providers := ai.ProviderTypes
	if modelsProvider != "" {
		p, err := ai.ParseProviderType(modelsProvider)
		if err != nil {
			return err
		}
		providers = []ai.ProviderType{p}
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	catalog := app.NewCatalog(cfg.Providers)
	defaults := map[ai.ProviderType]string{
		ai.ProviderTypeGroq:        cfg.Providers.Groq.DefaultModel,
		ai.ProviderTypeHuggingFace: cfg.Providers.HuggingFace.DefaultModel,
	}

	var rows []ModelRow
	for _, p := range providers {
		def := defaults[p]
		if def == "" {
			def = catalog.DefaultModel(p)
		}
		for _, m := range catalog.Models(p) {
			rows = append(rows, ModelRow{
				Provider:     string(p),
				Model:        m.ID,
				Capabilities: strings.Split(m.Capabilities.String(), ","),
				Default:      m.ID == def,
			})
		}
	}

	f := GetFormatter()
	if f.Structured() {
		return f.Print(rows)
	}

	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		mark := ""
		if r.Default {
			mark = "*"
		}
		data = append(data, []string{
			ai.ProviderType(r.Provider).DisplayName(),
			r.Model,
			strings.Join(r.Capabilities, ", "),
			mark,
		})
	}
	f.PrintTable(output.TableData{
		Headers: []string{"Provider", "Model", "Capabilities", "Default"},
		Rows:    data,
	})
	return nil
}

func runTasks(cmd *cobra.Command, args []string) error {
	data := make([][]string, 0, len(analysis.Tasks))
	for _, t := range analysis.Tasks {
		data = append(data, []string{string(t), t.Instruction()})
	}
	GetFormatter().PrintTable(output.TableData{
		Headers: []string{"Task", "Instruction"},
		Rows:    data,
	})
	return nil
}
