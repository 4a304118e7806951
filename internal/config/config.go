package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/fluxbase-eu/ocrlens/internal/observability"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig               `mapstructure:"server"`
	OCR       OCRConfig                  `mapstructure:"ocr"`
	Providers ProvidersConfig            `mapstructure:"providers"`
	Analysis  AnalysisConfig             `mapstructure:"analysis"`
	Session   SessionConfig              `mapstructure:"session"`
	Metrics   MetricsConfig              `mapstructure:"metrics"`
	Tracing   observability.TracerConfig `mapstructure:"tracing"`
	Debug     bool                       `mapstructure:"debug"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	BodyLimit    int           `mapstructure:"body_limit"`
	// UploadRateLimit is the number of image uploads allowed per client IP and minute. Zero disables it.
	UploadRateLimit int `mapstructure:"upload_rate_limit"`
}

// OCRConfig contains OCR engine settings
type OCRConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	Provider     string   `mapstructure:"provider"`
	Languages    []string `mapstructure:"languages"`
	MinDimension int      `mapstructure:"min_dimension"`
	// MaxPixels rejects uploads whose header declares more pixels. Zero applies the engine default.
	MaxPixels int `mapstructure:"max_pixels"`
}

// ProvidersConfig groups the LLM provider settings
type ProvidersConfig struct {
	Groq        GroqConfig        `mapstructure:"groq"`
	HuggingFace HuggingFaceConfig `mapstructure:"huggingface"`
}

// GroqConfig contains Groq API settings
type GroqConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	DefaultModel string        `mapstructure:"default_model"`
}

// HuggingFaceConfig contains Hugging Face API settings
type HuggingFaceConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	RouterURL    string        `mapstructure:"router_url"`
	InferenceURL string        `mapstructure:"inference_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	DefaultModel string        `mapstructure:"default_model"`
	// TextOnlyModels are served through text generation only
	TextOnlyModels []string `mapstructure:"text_only_models"`
}

// AnalysisConfig contains form defaults and the error display policy
type AnalysisConfig struct {
	DefaultProvider      string  `mapstructure:"default_provider"`
	DefaultTask          string  `mapstructure:"default_task"`
	Temperature          float64 `mapstructure:"temperature"`
	MaxTokens            int     `mapstructure:"max_tokens"`
	ExposeProviderErrors bool    `mapstructure:"expose_provider_errors"`
}

// SessionConfig contains session cache settings
type SessionConfig struct {
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	MaxSessions   int           `mapstructure:"max_sessions"`
	AnalyzeRate   float64       `mapstructure:"analyze_rate"`
	AnalyzeBurst  int           `mapstructure:"analyze_burst"`
	MemoTTL       time.Duration `mapstructure:"memo_ttl"`
}

// MetricsConfig contains Prometheus settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := loadEnvFile(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	viper.SetConfigName("ocrlens")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/ocrlens")

	// Set defaults
	setDefaults()

	// Enable environment variable support with underscore replacer
	viper.AutomaticEnv()
	viper.SetEnvPrefix("OCRLENS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// The provider SDKs' conventional variable names work as well
	_ = viper.BindEnv("providers.groq.api_key", "OCRLENS_PROVIDERS_GROQ_API_KEY", "GROQ_API_KEY")
	_ = viper.BindEnv("providers.huggingface.api_key", "OCRLENS_PROVIDERS_HUGGINGFACE_API_KEY", "HUGGINGFACE_API_KEY")

	// Read config file (if it exists)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; use defaults and environment variables
		log.Debug().Msg("No config file found, using environment variables and defaults")
	} else {
		log.Info().Str("file", viper.ConfigFileUsed()).Msg("Config file loaded")
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads environment variables from .env file
func loadEnvFile() error {
	// Check multiple locations for .env file
	locations := []string{
		".env",
		".env.local",
		"../.env", // For when running from subdirectories
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			if err := godotenv.Load(location); err != nil {
				return fmt.Errorf("error loading .env file from %s: %w", location, err)
			}
			log.Debug().Str("file", location).Msg(".env file loaded")
			return nil
		}
	}

	return fmt.Errorf("no .env file found")
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "150s") // provider calls may take up to two minutes
	viper.SetDefault("server.idle_timeout", "60s")
	viper.SetDefault("server.body_limit", 10*1024*1024) // 10MB
	viper.SetDefault("server.upload_rate_limit", 30)

	// OCR defaults
	viper.SetDefault("ocr.enabled", true)
	viper.SetDefault("ocr.provider", "tesseract")
	viper.SetDefault("ocr.languages", []string{"spa", "eng"})
	viper.SetDefault("ocr.min_dimension", 1000)
	viper.SetDefault("ocr.max_pixels", 40_000_000) // 40MP

	// Provider defaults
	viper.SetDefault("providers.groq.api_key", "")
	viper.SetDefault("providers.groq.base_url", "https://api.groq.com/openai/v1")
	viper.SetDefault("providers.groq.timeout", "120s")
	viper.SetDefault("providers.groq.default_model", "llama-3.1-8b-instant")
	viper.SetDefault("providers.huggingface.api_key", "")
	viper.SetDefault("providers.huggingface.router_url", "https://router.huggingface.co")
	viper.SetDefault("providers.huggingface.inference_url", "https://api-inference.huggingface.co")
	viper.SetDefault("providers.huggingface.timeout", "120s")
	viper.SetDefault("providers.huggingface.default_model", "meta-llama/Meta-Llama-3-8B-Instruct")
	viper.SetDefault("providers.huggingface.text_only_models", []string{})

	// Analysis defaults
	viper.SetDefault("analysis.default_provider", "groq")
	viper.SetDefault("analysis.default_task", "Summarize in 3 key points")
	viper.SetDefault("analysis.temperature", 0.7)
	viper.SetDefault("analysis.max_tokens", 500)
	viper.SetDefault("analysis.expose_provider_errors", false)

	// Session defaults
	viper.SetDefault("session.idle_timeout", "30m")
	viper.SetDefault("session.sweep_interval", "1m")
	viper.SetDefault("session.max_sessions", 1000)
	viper.SetDefault("session.analyze_rate", 0.5) // one call every two seconds
	viper.SetDefault("session.analyze_burst", 3)
	viper.SetDefault("session.memo_ttl", "0s")

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	// Tracing defaults
	tracing := observability.DefaultTracerConfig()
	viper.SetDefault("tracing.enabled", tracing.Enabled)
	viper.SetDefault("tracing.endpoint", tracing.Endpoint)
	viper.SetDefault("tracing.service_name", tracing.ServiceName)
	viper.SetDefault("tracing.environment", tracing.Environment)
	viper.SetDefault("tracing.sample_rate", tracing.SampleRate)
	viper.SetDefault("tracing.insecure", tracing.Insecure)

	// General defaults
	viper.SetDefault("debug", false)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server configuration error: %w", err)
	}
	if err := c.OCR.Validate(); err != nil {
		return fmt.Errorf("ocr configuration error: %w", err)
	}
	if err := c.Analysis.Validate(); err != nil {
		return fmt.Errorf("analysis configuration error: %w", err)
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session configuration error: %w", err)
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("tracing sample_rate must be between 0 and 1")
	}
	return nil
}

// Validate validates server configuration
func (sc *ServerConfig) Validate() error {
	if sc.Address == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if sc.ReadTimeout <= 0 {
		return fmt.Errorf("read_timeout must be positive")
	}
	if sc.WriteTimeout <= 0 {
		return fmt.Errorf("write_timeout must be positive")
	}
	if sc.IdleTimeout <= 0 {
		return fmt.Errorf("idle_timeout must be positive")
	}
	if sc.BodyLimit <= 0 {
		return fmt.Errorf("body_limit must be positive")
	}
	if sc.UploadRateLimit < 0 {
		return fmt.Errorf("upload_rate_limit cannot be negative")
	}
	return nil
}

// Validate validates OCR configuration
func (oc *OCRConfig) Validate() error {
	if !oc.Enabled {
		return nil
	}
	if oc.Provider != "tesseract" {
		return fmt.Errorf("unsupported OCR provider: %s", oc.Provider)
	}
	if len(oc.Languages) == 0 {
		return fmt.Errorf("at least one OCR language is required")
	}
	if oc.MinDimension < 0 {
		return fmt.Errorf("min_dimension cannot be negative")
	}
	if oc.MaxPixels < 0 {
		return fmt.Errorf("max_pixels cannot be negative")
	}
	return nil
}

// Validate validates analysis defaults
func (ac *AnalysisConfig) Validate() error {
	switch strings.ToLower(ac.DefaultProvider) {
	case "groq", "huggingface":
	default:
		return fmt.Errorf("default_provider must be 'groq' or 'huggingface'")
	}
	if ac.Temperature < 0 || ac.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1")
	}
	if ac.MaxTokens < 1 || ac.MaxTokens > 4096 {
		return fmt.Errorf("max_tokens must be between 1 and 4096")
	}
	return nil
}

// Validate validates session configuration
func (sc *SessionConfig) Validate() error {
	if sc.IdleTimeout <= 0 {
		return fmt.Errorf("idle_timeout must be positive")
	}
	if sc.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be positive")
	}
	if sc.MaxSessions < 0 {
		return fmt.Errorf("max_sessions cannot be negative")
	}
	if sc.AnalyzeRate < 0 {
		return fmt.Errorf("analyze_rate cannot be negative")
	}
	if sc.MemoTTL < 0 {
		return fmt.Errorf("memo_ttl cannot be negative")
	}
	return nil
}
