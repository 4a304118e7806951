package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fluxbase-eu/ocrlens/internal/ai"
	"github.com/fluxbase-eu/ocrlens/internal/analysis"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate a completion script for the given shell. Provider names and
the built-in analysis tasks are completed as well.

Examples:
  source <(ocrlens completion bash)
  ocrlens completion zsh > "${fpath[1]}/_ocrlens"
  ocrlens completion fish > ~/.config/fish/completions/ocrlens.fish
  ocrlens completion powershell | Out-String | Invoke-Expression`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, out := cmd.Root(), cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return root.GenBashCompletionV2(out, true)
		case "zsh":
			return root.GenZshCompletion(out)
		case "fish":
			return root.GenFishCompletion(out, true)
		case "powershell":
			return root.GenPowerShellCompletionWithDesc(out)
		}
		return fmt.Errorf("unsupported shell %q", args[0])
	},
}

// completeProviders offers the provider names with their display name
func completeProviders(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	names := make([]string, 0, len(ai.ProviderTypes))
	for _, p := range ai.ProviderTypes {
		names = append(names, fmt.Sprintf("%s\t%s", p, p.DisplayName()))
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

// completeTasks offers the built-in tasks. Any other text is accepted as a
// custom instruction.
func completeTasks(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	tasks := make([]string, 0, len(analysis.Tasks))
	for _, t := range analysis.Tasks {
		tasks = append(tasks, string(t))
	}
	return tasks, cobra.ShellCompDirectiveNoFileComp
}

func completeImage(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return []string{"png", "jpg", "jpeg"}, cobra.ShellCompDirectiveFilterFileExt
}

// registerCompletions runs after every command has defined its flags
func registerCompletions() {
	for _, c := range []*cobra.Command{analyzeCmd, modelsCmd} {
		_ = c.RegisterFlagCompletionFunc("provider", completeProviders)
	}
	_ = analyzeCmd.RegisterFlagCompletionFunc("task", completeTasks)

	analyzeCmd.ValidArgsFunction = completeImage
	ocrCmd.ValidArgsFunction = completeImage

	providerArg := func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return completeProviders(cmd, args, toComplete)
	}
	keysSetCmd.ValidArgsFunction = providerArg
	keysDeleteCmd.ValidArgsFunction = providerArg
}
