package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fluxbase-eu/ocrlens/cli/output"
	"github.com/fluxbase-eu/ocrlens/cli/util"
	"github.com/fluxbase-eu/ocrlens/internal/ai"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage provider API keys",
	Long: `Manage the GROQ and Hugging Face API keys kept in the system keychain.

Keys set in the configuration file or in the environment (GROQ_API_KEY,
HUGGINGFACE_API_KEY) take precedence over the keychain.`,
}

var keysSetCmd = &cobra.Command{
	Use:   "set <provider>",
	Short: "Store the API key of a provider",
	Long: `Store the API key of a provider in the system keychain. The key is read
from the terminal without echo, or from stdin when it is not a terminal.

Examples:
  ocrlens keys set groq
  echo "$HF_TOKEN" | ocrlens keys set huggingface`,
	Args: cobra.ExactArgs(1),
	RunE: runKeysSet,
}

var keysDeleteCmd = &cobra.Command{
	Use:     "delete <provider>",
	Aliases: []string{"rm"},
	Short:   "Remove the stored API key of a provider",
	Args:    cobra.ExactArgs(1),
	RunE:    runKeysDelete,
}

var keysStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show where each provider key comes from",
	Args:  cobra.NoArgs,
	RunE:  runKeysStatus,
}

func init() {
	keysCmd.AddCommand(keysSetCmd)
	keysCmd.AddCommand(keysDeleteCmd)
	keysCmd.AddCommand(keysStatusCmd)
}

func runKeysSet(cmd *cobra.Command, args []string) error {
	provider, err := ai.ParseProviderType(args[0])
	if err != nil {
		return err
	}

	key, err := readKey(cmd.InOrStdin(), provider)
	if err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("no API key given for %s", provider.DisplayName())
	}

	if err := keyStore.Save(provider, key); err != nil {
		return err
	}
	GetFormatter().PrintSuccess(fmt.Sprintf("Stored %s API key %s", provider.DisplayName(), util.MaskToken(key)))
	return nil
}

func runKeysDelete(cmd *cobra.Command, args []string) error {
	provider, err := ai.ParseProviderType(args[0])
	if err != nil {
		return err
	}
	if err := keyStore.Delete(provider); err != nil {
		return err
	}
	GetFormatter().PrintSuccess(fmt.Sprintf("Removed %s API key", provider.DisplayName()))
	return nil
}

func runKeysStatus(cmd *cobra.Command, args []string) error {
	cfg, sources, err := loadConfig()
	if err != nil {
		return err
	}

	keys := map[ai.ProviderType]string{
		ai.ProviderTypeGroq:        cfg.Providers.Groq.APIKey,
		ai.ProviderTypeHuggingFace: cfg.Providers.HuggingFace.APIKey,
	}

	rows := make([][]string, 0, len(ai.ProviderTypes))
	for _, p := range ai.ProviderTypes {
		rows = append(rows, []string{
			string(p),
			string(sources[p]),
			util.MaskToken(keys[p]),
		})
	}
	GetFormatter().PrintTable(output.TableData{
		Headers: []string{"Provider", "Source", "Key"},
		Rows:    rows,
	})
	return nil
}

// readKey prompts on a terminal and reads the first line of in otherwise
func readKey(in io.Reader, provider ai.ProviderType) (string, error) {
	if util.IsInteractive() {
		return util.ReadSecret(fmt.Sprintf("%s API key: ", provider.DisplayName()))
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read API key: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// promptForKey asks for a missing provider key when a terminal is attached.
// With save the key is also stored in the keychain.
func promptForKey(provider ai.ProviderType, save bool) (string, error) {
	if !util.IsInteractive() {
		return "", nil
	}
	key, err := util.ReadSecret(fmt.Sprintf("%s API key (not configured): ", provider.DisplayName()))
	if err != nil || key == "" {
		return "", err
	}
	if save {
		if err := keyStore.Save(provider, key); err != nil {
			GetFormatter().PrintWarning(err.Error())
		}
	}
	return key, nil
}
