package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultModel   = "claude-3-5-sonnet-20241022"
	DefaultEnvFile = ".env"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	LogLevel           string

	AnthropicAPIKey  string
	AnthropicModel   string
	AnthropicBaseURL string
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// HasCredentials reports whether an API key was configured
func (c *Config) HasCredentials() bool {
	return strings.TrimSpace(c.AnthropicAPIKey) != ""
}

// LoadFromEnv loads configuration from the environment, reading the file
// named by ENV_FILE (default .env) first when it exists.
func LoadFromEnv() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	return Load(envFile)
}

// Load reads envFile (if present) and the process environment. Environment
// variables win over values from the file. A missing API key is not an error
// here; the container reports it when building the model client.
func Load(envFile string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", "8080")
	v.SetDefault("request_timeout", "120s")
	v.SetDefault("max_request_body_size", 12*1024*1024) // 10MB image plus form overhead
	v.SetDefault("log_level", "info")
	v.SetDefault("anthropic_model", DefaultModel)

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			v.SetConfigFile(envFile)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
			}
		}
	}

	cfg := &Config{
		Host:               strings.TrimSpace(v.GetString("host")),
		Port:               strings.TrimSpace(v.GetString("port")),
		RequestTimeout:     v.GetDuration("request_timeout"),
		MaxRequestBodySize: v.GetInt64("max_request_body_size"),
		LogLevel:           strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
		AnthropicAPIKey:    strings.TrimSpace(v.GetString("anthropic_api_key")),
		AnthropicModel:     strings.TrimSpace(v.GetString("anthropic_model")),
		AnthropicBaseURL:   strings.TrimSpace(v.GetString("anthropic_base_url")),
	}

	// Validate port is numeric and in range
	p, err := strconv.Atoi(cfg.Port)
	if err != nil || p < 1 || p > 65535 {
		return nil, fmt.Errorf("invalid PORT: %q", cfg.Port)
	}
	if cfg.MaxRequestBodySize <= 0 {
		return nil, fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", cfg.MaxRequestBodySize)
	}
	if cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("REQUEST_TIMEOUT must be > 0 (got %s)", cfg.RequestTimeout)
	}
	if cfg.AnthropicModel == "" {
		cfg.AnthropicModel = DefaultModel
	}
	return cfg, nil
}

// SetupInstructions explains how to provide the missing API key
const SetupInstructions = `1. Copy .env.example to .env
2. Add your Anthropic API key to the .env file:
   ANTHROPIC_API_KEY=your_actual_api_key_here
3. Restart the application

Get your API key from: https://console.anthropic.com/`
