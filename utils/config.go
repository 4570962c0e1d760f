package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

var (
	EnvPath string = "."
)

const EnvPrefix = "CHIEFPAY"

type Config struct {
	APIKey                     string        `mapstructure:"API_KEY"`
	BaseURL                    string        `mapstructure:"BASE_URL"`
	UserAgentSuffix            string        `mapstructure:"USER_AGENT_SUFFIX"`
	MaxRetries                 int           `mapstructure:"MAX_RETRIES"`
	HTTPTimeout                time.Duration `mapstructure:"HTTP_TIMEOUT"`
	SocketConnectionTimeout    time.Duration `mapstructure:"SOCKET_CONNECTION_TIMEOUT"`
	SocketReconnectionAttempts int           `mapstructure:"SOCKET_RECONNECTION_ATTEMPTS"`
	SocketReconnectionDelay    time.Duration `mapstructure:"SOCKET_RECONNECTION_DELAY"`
	LogLevel                   string        `mapstructure:"LOG_LEVEL"`
	LogFormat                  string        `mapstructure:"LOG_FORMAT"`
	Papertrail                 string        `mapstructure:"PAPERTRAIL"`
	PapertrailAppName          string        `mapstructure:"PAPERTRAIL_APP_NAME"`
}

var defaults = map[string]any{
	"API_KEY":                      "",
	"BASE_URL":                     "https://api.chiefpay.org",
	"USER_AGENT_SUFFIX":            "",
	"MAX_RETRIES":                  5,
	"HTTP_TIMEOUT":                 "30s",
	"SOCKET_CONNECTION_TIMEOUT":    "30s",
	"SOCKET_RECONNECTION_ATTEMPTS": 3,
	"SOCKET_RECONNECTION_DELAY":    "5s",
	"LOG_LEVEL":                    "info",
	"LOG_FORMAT":                   "json",
	"PAPERTRAIL":                   "",
	"PAPERTRAIL_APP_NAME":          "chiefpay",
}

// LoadConfig reads an optional .env file from path and overlays
// CHIEFPAY_-prefixed environment variables on top of it.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = "."
	}

	// Create a new Viper instance to avoid global state
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	// Viper only unmarshals env values for keys it already knows about.
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("unable to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validateConfig(config *Config) error {
	if config.APIKey == "" {
		return fmt.Errorf("api key must be specified (%s_API_KEY)", EnvPrefix)
	}
	if config.BaseURL == "" {
		return fmt.Errorf("base url must not be empty")
	}
	if config.SocketReconnectionAttempts < 0 {
		return fmt.Errorf("socket reconnection attempts must not be negative")
	}
	return nil
}

// Redact masks sensitive values so the config can be logged.
func (c *Config) Redact() Config {
	redacted := *c
	if redacted.APIKey != "" {
		redacted.APIKey = "****"
	}
	return redacted
}
