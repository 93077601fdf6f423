package config

import (
	"errors"
	"os"
	"strconv"
)

// AppConfig represents the application configuration
type AppConfig struct {
	Port             string
	AppURL           string
	OpenSearchURL    string
	OpenSearchUser   string
	OpenSearchPass   string
	EnableLogging    bool
	LoggingLevel     string
	StorePath        string
	LogRetentionDays int
}

var appConfigInstance *AppConfig

// GetAppConfig returns the application configuration
func GetAppConfig() *AppConfig {
	if appConfigInstance == nil {
		appConfigInstance = &AppConfig{
			Port:             GetEnv("APP_PORT", "9999"),
			AppURL:           GetEnv("APP_URL", "http://localhost:9999"),
			OpenSearchURL:    GetEnv("OPENSEARCH_URL", "http://localhost:9200"),
			OpenSearchUser:   GetEnv("OPENSEARCH_USER", ""),
			OpenSearchPass:   GetEnv("OPENSEARCH_PASSWORD", ""),
			EnableLogging:    GetBoolEnv("ENABLE_OPENSEARCH_LOGGING", false),
			LoggingLevel:     GetEnv("LOGGING_LEVEL", "info"),
			StorePath:        GetEnv("STORE_PATH", "data/payments.db"),
			LogRetentionDays: GetIntEnv("LOG_RETENTION_DAYS", 30),
		}
	}
	return appConfigInstance
}

// GatewayConfig holds the TatraPayPlus credentials and environment selection.
// It is loaded once at startup and validated at construction so that a
// missing credential fails the process, not the first gateway call.
type GatewayConfig struct {
	ClientID     string
	ClientSecret string
	Production   bool
	AppBaseURL   string
}

// LoadGatewayConfig reads the gateway configuration from the environment
// and validates it
func LoadGatewayConfig() (*GatewayConfig, error) {
	cfg := &GatewayConfig{
		ClientID:     GetEnv("TATRAPAY_CLIENT_ID", ""),
		ClientSecret: GetEnv("TATRAPAY_CLIENT_SECRET", ""),
		Production:   GetBoolEnv("TATRAPAY_PRODUCTION", false),
		AppBaseURL:   GetEnv("APP_URL", "http://localhost:9999"),
	}
	return cfg, cfg.Validate()
}

// Validate checks that all required gateway settings are present
func (c *GatewayConfig) Validate() error {
	if c.ClientID == "" {
		return errors.New("TATRAPAY_CLIENT_ID is required")
	}
	if c.ClientSecret == "" {
		return errors.New("TATRAPAY_CLIENT_SECRET is required")
	}
	if c.AppBaseURL == "" {
		return errors.New("APP_URL is required")
	}
	return nil
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetBoolEnv returns the boolean value of an environment variable or a default value
func GetBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetIntEnv returns the integer value of an environment variable or a default value
func GetIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
