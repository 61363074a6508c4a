package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	// QuoteBaseURL is the pricing backend that serves bridge quotes.
	QuoteBaseURL string
	// PrivateKey signs payments. Only commands that sign require it.
	PrivateKey string
	// RPCURLs overrides the default RPC endpoint per chain id.
	RPCURLs map[string]string
	// RefreshInterval is the passive balance auto-refresh interval.
	RefreshInterval time.Duration
	// ConfirmTimeout bounds confirmation polling per transaction.
	ConfirmTimeout time.Duration
	// LogLevel controls the structured logger ("debug", "info", ...).
	LogLevel string
}

var globalConfig *Config

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetConfigName(".bridgepay")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	// Set default values
	viper.SetDefault("quote_base_url", "https://quotes.bridgepay.dev")
	viper.SetDefault("refresh_interval", "30s")
	viper.SetDefault("confirm_timeout", "5m")
	viper.SetDefault("log_level", "info")

	// Read from environment variables
	viper.SetEnvPrefix("BRIDGEPAY")
	viper.AutomaticEnv()

	// Read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		QuoteBaseURL:    viper.GetString("quote_base_url"),
		PrivateKey:      viper.GetString("private_key"),
		RPCURLs:         viper.GetStringMapString("rpc_urls"),
		RefreshInterval: viper.GetDuration("refresh_interval"),
		ConfirmTimeout:  viper.GetDuration("confirm_timeout"),
		LogLevel:        viper.GetString("log_level"),
	}

	globalConfig = cfg
	return cfg, nil
}

// RequireSigner validates the fields signing commands need.
func (c *Config) RequireSigner() error {
	if c.PrivateKey == "" {
		return fmt.Errorf("private key not found. Please set BRIDGEPAY_PRIVATE_KEY environment variable or create a .bridgepay.yaml config file")
	}
	return nil
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
