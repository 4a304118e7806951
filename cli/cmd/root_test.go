package cmd

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/fluxbase-eu/ocrlens/internal/ai"
	"github.com/fluxbase-eu/ocrlens/internal/analysis"
	appconfig "github.com/fluxbase-eu/ocrlens/internal/config"
)

// execute runs the root command with fresh global flags and returns stdout
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	keyring.MockInit()
	viper.Reset()
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("HUGGINGFACE_API_KEY", "")

	cfgFile, outputFmt, noHeaders, quiet, debug = "", "table", false, false, false
	modelsProvider = ""
	formatter = nil

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)

	assert.Contains(t, out, "OCRLens CLI dev")
	assert.Contains(t, out, "Commit: unknown")
}

func TestCompletion(t *testing.T) {
	t.Run("script", func(t *testing.T) {
		out, err := execute(t, "", "completion", "bash")
		require.NoError(t, err)
		assert.Contains(t, out, "ocrlens")
	})

	t.Run("provider flag", func(t *testing.T) {
		out, err := execute(t, "", cobra.ShellCompRequestCmd, "analyze", "--provider", "")
		require.NoError(t, err)
		assert.Contains(t, out, "groq\tGROQ")
		assert.Contains(t, out, "huggingface\t")
	})

	t.Run("task flag", func(t *testing.T) {
		out, err := execute(t, "", cobra.ShellCompRequestCmd, "analyze", "img.png", "--task", "")
		require.NoError(t, err)
		assert.Contains(t, out, string(analysis.TaskSummarize))
	})
}

func TestInvalidOutputFormat(t *testing.T) {
	_, err := execute(t, "", "tasks", "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format")
}

func TestTasksCommand(t *testing.T) {
	out, err := execute(t, "", "tasks", "-o", "json")
	require.NoError(t, err)

	var rows []map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, len(analysis.Tasks))
	assert.Equal(t, string(analysis.TaskSummarize), rows[0]["task"])
	assert.Equal(t, analysis.TaskSummarize.Instruction(), rows[0]["instruction"])
}

func TestModelsCommand(t *testing.T) {
	out, err := execute(t, "", "models", "--provider", "hf", "-o", "json")
	require.NoError(t, err)

	var rows []ModelRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, len(ai.NewCatalog().Models(ai.ProviderTypeHuggingFace)))

	defaults := 0
	for _, r := range rows {
		assert.Equal(t, "huggingface", r.Provider)
		assert.Equal(t, []string{"chat", "text_generation"}, r.Capabilities)
		if r.Default {
			defaults++
		}
	}
	assert.Equal(t, 1, defaults)
}

func TestModelsCommand_Table(t *testing.T) {
	out, err := execute(t, "", "models", "--provider", "groq")
	require.NoError(t, err)

	assert.Contains(t, out, "PROVIDER")
	assert.Contains(t, out, "llama-3.1-8b-instant")
	assert.Contains(t, out, "GROQ")
	assert.NotContains(t, out, "Qwen")
}

func TestModelsCommand_UnknownProvider(t *testing.T) {
	_, err := execute(t, "", "models", "--provider", "openai")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported provider type")
}

func TestKeysCommands(t *testing.T) {
	out, err := execute(t, "gsk_abcdefgh1234\n", "keys", "set", "groq")
	require.NoError(t, err)
	assert.Equal(t, "Stored GROQ API key gsk_********1234\n", out)

	key, err := keyStore.Load(ai.ProviderTypeGroq)
	require.NoError(t, err)
	assert.Equal(t, "gsk_abcdefgh1234", key)

	viper.Reset()
	outputFmt = "json"
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"keys", "status", "-o", "json"})
	require.NoError(t, rootCmd.Execute())

	var rows []map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "groq", rows[0]["provider"])
	assert.Equal(t, "keychain", rows[0]["source"])
	assert.Equal(t, "gsk_********1234", rows[0]["key"])
	assert.Equal(t, "none", rows[1]["source"])
	assert.Empty(t, rows[1]["key"])
}

func TestKeysSet_EmptyInput(t *testing.T) {
	_, err := execute(t, "", "keys", "set", "hf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no API key given for Hugging Face")
}

func TestKeysDelete(t *testing.T) {
	out, err := execute(t, "", "keys", "delete", "huggingface")
	require.NoError(t, err)
	assert.Equal(t, "Removed Hugging Face API key\n", out)
}

func TestOCRCommand_MissingFile(t *testing.T) {
	_, err := execute(t, "", "ocr", filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open image")
}

func TestAnalyzeParams(t *testing.T) {
	defaults := appconfig.AnalysisConfig{
		DefaultProvider: "groq",
		DefaultTask:     string(analysis.TaskEntities),
		Temperature:     0.7,
		MaxTokens:       500,
	}

	newCmd := func() *cobra.Command {
		c := &cobra.Command{}
		c.Flags().Float64("temperature", 0, "")
		c.Flags().Int("max-tokens", 0, "")
		return c
	}

	t.Run("defaults", func(t *testing.T) {
		analyzeProvider, analyzeTask, analyzeModel = "", "", ""
		params, err := analyzeParams(newCmd(), defaults)
		require.NoError(t, err)

		assert.Equal(t, ai.ProviderTypeGroq, params.Provider)
		assert.Equal(t, analysis.TaskEntities, params.Task)
		assert.Equal(t, 0.7, params.Temperature)
		assert.Equal(t, 500, params.MaxTokens)
		assert.Empty(t, params.Model)
	})

	t.Run("flags override defaults", func(t *testing.T) {
		analyzeProvider, analyzeTask, analyzeModel = "hf", "Custom instruction", "Qwen/Qwen2.5-7B-Instruct"
		analyzeTemperature, analyzeMaxTokens = 0.2, 1000
		c := newCmd()
		require.NoError(t, c.Flags().Set("temperature", "0.2"))
		require.NoError(t, c.Flags().Set("max-tokens", "1000"))

		params, err := analyzeParams(c, defaults)
		require.NoError(t, err)

		assert.Equal(t, ai.ProviderTypeHuggingFace, params.Provider)
		assert.Equal(t, analysis.Task("Custom instruction"), params.Task)
		assert.Equal(t, "Qwen/Qwen2.5-7B-Instruct", params.Model)
		assert.Equal(t, 0.2, params.Temperature)
		assert.Equal(t, 1000, params.MaxTokens)
	})

	t.Run("unknown provider", func(t *testing.T) {
		analyzeProvider = "openai"
		_, err := analyzeParams(newCmd(), defaults)

		var vErr *analysis.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "provider", vErr.Field)
	})

	analyzeProvider, analyzeTask, analyzeModel = "", "", ""
	analyzeTemperature, analyzeMaxTokens = analysis.DefaultTemperature, analysis.DefaultMaxTokens
}
