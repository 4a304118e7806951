package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validServer() ServerConfig {
	return ServerConfig{
		Address:      ":8080",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		BodyLimit:    1024 * 1024,
	}
}

func TestServerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*ServerConfig)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid config",
			modify:  func(*ServerConfig) {},
			wantErr: false,
		},
		{
			name:    "empty address",
			modify:  func(c *ServerConfig) { c.Address = "" },
			wantErr: true,
			errMsg:  "server address cannot be empty",
		},
		{
			name:    "zero read timeout",
			modify:  func(c *ServerConfig) { c.ReadTimeout = 0 },
			wantErr: true,
			errMsg:  "read_timeout must be positive",
		},
		{
			name:    "negative write timeout",
			modify:  func(c *ServerConfig) { c.WriteTimeout = -1 * time.Second },
			wantErr: true,
			errMsg:  "write_timeout must be positive",
		},
		{
			name:    "zero idle timeout",
			modify:  func(c *ServerConfig) { c.IdleTimeout = 0 },
			wantErr: true,
			errMsg:  "idle_timeout must be positive",
		},
		{
			name:    "zero body limit",
			modify:  func(c *ServerConfig) { c.BodyLimit = 0 },
			wantErr: true,
			errMsg:  "body_limit must be positive",
		},
		{
			name:    "negative upload rate limit",
			modify:  func(c *ServerConfig) { c.UploadRateLimit = -1 },
			wantErr: true,
			errMsg:  "upload_rate_limit cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validServer()
			tt.modify(&config)
			err := config.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOCRConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  OCRConfig
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid config",
			config: OCRConfig{Enabled: true, Provider: "tesseract", Languages: []string{"spa", "eng"}, MinDimension: 1000},
		},
		{
			name:   "disabled skips checks",
			config: OCRConfig{Enabled: false, Provider: "cloud"},
		},
		{
			name:    "unknown provider",
			config:  OCRConfig{Enabled: true, Provider: "cloud", Languages: []string{"eng"}},
			wantErr: true,
			errMsg:  "unsupported OCR provider: cloud",
		},
		{
			name:    "no languages",
			config:  OCRConfig{Enabled: true, Provider: "tesseract"},
			wantErr: true,
			errMsg:  "at least one OCR language is required",
		},
		{
			name:    "negative min dimension",
			config:  OCRConfig{Enabled: true, Provider: "tesseract", Languages: []string{"eng"}, MinDimension: -5},
			wantErr: true,
			errMsg:  "min_dimension cannot be negative",
		},
		{
			name:    "negative max pixels",
			config:  OCRConfig{Enabled: true, Provider: "tesseract", Languages: []string{"eng"}, MaxPixels: -1},
			wantErr: true,
			errMsg:  "max_pixels cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAnalysisConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  AnalysisConfig
		wantErr bool
		errMsg  string
	}{
		{
			name:   "groq defaults",
			config: AnalysisConfig{DefaultProvider: "groq", Temperature: 0.7, MaxTokens: 500},
		},
		{
			name:   "huggingface bounds",
			config: AnalysisConfig{DefaultProvider: "huggingface", Temperature: 1, MaxTokens: 4096},
		},
		{
			name:    "unknown provider",
			config:  AnalysisConfig{DefaultProvider: "openai", Temperature: 0.7, MaxTokens: 500},
			wantErr: true,
			errMsg:  "default_provider must be 'groq' or 'huggingface'",
		},
		{
			name:    "temperature too high",
			config:  AnalysisConfig{DefaultProvider: "groq", Temperature: 1.5, MaxTokens: 500},
			wantErr: true,
			errMsg:  "temperature must be between 0 and 1",
		},
		{
			name:    "zero max tokens",
			config:  AnalysisConfig{DefaultProvider: "groq", Temperature: 0.7, MaxTokens: 0},
			wantErr: true,
			errMsg:  "max_tokens must be between 1 and 4096",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSessionConfig_Validate(t *testing.T) {
	valid := SessionConfig{IdleTimeout: 30 * time.Minute, SweepInterval: time.Minute, MaxSessions: 10, AnalyzeRate: 1, AnalyzeBurst: 1}

	tests := []struct {
		name    string
		modify  func(*SessionConfig)
		wantErr bool
		errMsg  string
	}{
		{name: "valid config", modify: func(*SessionConfig) {}},
		{name: "unlimited sessions and rate", modify: func(c *SessionConfig) { c.MaxSessions = 0; c.AnalyzeRate = 0 }},
		{
			name:    "zero idle timeout",
			modify:  func(c *SessionConfig) { c.IdleTimeout = 0 },
			wantErr: true,
			errMsg:  "idle_timeout must be positive",
		},
		{
			name:    "zero sweep interval",
			modify:  func(c *SessionConfig) { c.SweepInterval = 0 },
			wantErr: true,
			errMsg:  "sweep_interval must be positive",
		},
		{
			name:    "negative rate",
			modify:  func(c *SessionConfig) { c.AnalyzeRate = -1 },
			wantErr: true,
			errMsg:  "analyze_rate cannot be negative",
		},
		{
			name:    "negative memo ttl",
			modify:  func(c *SessionConfig) { c.MemoTTL = -time.Second },
			wantErr: true,
			errMsg:  "memo_ttl cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid
			tt.modify(&config)
			err := config.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateWrapsSection(t *testing.T) {
	viper.Reset()
	setDefaults()
	var config Config
	require.NoError(t, viper.Unmarshal(&config))
	require.NoError(t, config.Validate())

	config.Session.IdleTimeout = 0
	err := config.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session configuration error")

	config.Session.IdleTimeout = time.Minute
	config.Tracing.SampleRate = 2
	err = config.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sample_rate")
}

// chdir runs Load from an empty directory so no stray .env or config file is picked up
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	chdir(t, t.TempDir())
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("HUGGINGFACE_API_KEY", "")

	config, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", config.Server.Address)
	assert.Equal(t, 10*1024*1024, config.Server.BodyLimit)
	assert.True(t, config.OCR.Enabled)
	assert.Equal(t, []string{"spa", "eng"}, config.OCR.Languages)
	assert.Equal(t, 1000, config.OCR.MinDimension)
	assert.Equal(t, 40_000_000, config.OCR.MaxPixels)
	assert.Equal(t, "groq", config.Analysis.DefaultProvider)
	assert.Equal(t, "Summarize in 3 key points", config.Analysis.DefaultTask)
	assert.InDelta(t, 0.7, config.Analysis.Temperature, 1e-9)
	assert.Equal(t, 500, config.Analysis.MaxTokens)
	assert.False(t, config.Analysis.ExposeProviderErrors)
	assert.Equal(t, 30*time.Minute, config.Session.IdleTimeout)
	assert.Equal(t, 120*time.Second, config.Providers.Groq.Timeout)
	assert.Equal(t, "https://router.huggingface.co", config.Providers.HuggingFace.RouterURL)
	assert.Empty(t, config.Providers.Groq.APIKey)
	assert.Equal(t, "ocrlens", config.Tracing.ServiceName)
}

func TestLoad_Environment(t *testing.T) {
	viper.Reset()
	chdir(t, t.TempDir())
	t.Setenv("GROQ_API_KEY", "gsk_from_env")
	t.Setenv("OCRLENS_PROVIDERS_HUGGINGFACE_API_KEY", "hf_prefixed")
	t.Setenv("OCRLENS_ANALYSIS_TEMPERATURE", "0.3")
	t.Setenv("OCRLENS_SERVER_ADDRESS", ":9090")

	config, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gsk_from_env", config.Providers.Groq.APIKey)
	assert.Equal(t, "hf_prefixed", config.Providers.HuggingFace.APIKey)
	assert.InDelta(t, 0.3, config.Analysis.Temperature, 1e-9)
	assert.Equal(t, ":9090", config.Server.Address)
}

func TestLoad_ConfigFile(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("GROQ_API_KEY", "")

	content := `
analysis:
  default_provider: huggingface
  expose_provider_errors: true
providers:
  huggingface:
    text_only_models:
      - gpt2
session:
  max_sessions: 5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ocrlens.yaml"), []byte(content), 0o600))

	config, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "huggingface", config.Analysis.DefaultProvider)
	assert.True(t, config.Analysis.ExposeProviderErrors)
	assert.Equal(t, []string{"gpt2"}, config.Providers.HuggingFace.TextOnlyModels)
	assert.Equal(t, 5, config.Session.MaxSessions)
}

func TestLoad_InvalidConfig(t *testing.T) {
	viper.Reset()
	chdir(t, t.TempDir())
	t.Setenv("OCRLENS_ANALYSIS_MAX_TOKENS", "9000")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.Contains(t, err.Error(), "max_tokens must be between 1 and 4096")
}
