// Package config loads service configuration from YAML files and
// environment variables and validates it before anything connects.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// AsterConfig holds the Aster venue credentials. The key pair signs every
// private REST call.
type AsterConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	APIKey    string `mapstructure:"api_key" validate:"required_if=Enabled true"`
	APISecret string `mapstructure:"api_secret" validate:"required_if=Enabled true"`
	Testnet   bool   `mapstructure:"testnet"`
}

// HyperliquidConfig holds the Hyperliquid wallet credentials. WalletAddress
// is only needed for agent wallets acting for a master account.
type HyperliquidConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	PrivateKey    string `mapstructure:"private_key" validate:"required_if=Enabled true"`
	WalletAddress string `mapstructure:"wallet_address"`
	Testnet       bool   `mapstructure:"testnet"`
}

// ExchangesConfig groups per-venue settings.
type ExchangesConfig struct {
	Aster       AsterConfig       `mapstructure:"aster"`
	Hyperliquid HyperliquidConfig `mapstructure:"hyperliquid"`
}

// FeaturesConfig toggles which capabilities the connection manager brings up.
type FeaturesConfig struct {
	SpotTrading    bool `mapstructure:"spot_trading"`
	FuturesTrading bool `mapstructure:"futures_trading"`
	Websocket      bool `mapstructure:"websocket"`
}

// LoggingConfig controls the shared logger.
type LoggingConfig struct {
	Level       string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Development bool   `mapstructure:"development"`
}

// Config is the root service configuration.
type Config struct {
	Exchanges ExchangesConfig `mapstructure:"exchanges"`
	Features  FeaturesConfig  `mapstructure:"features"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// Load reads configuration from path (or a config.yaml next to the binary
// when path is empty), overlays EXCHANGE_* environment variables, and
// validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("features.spot_trading", true)
	v.SetDefault("features.futures_trading", true)
	v.SetDefault("features.websocket", true)
	v.SetDefault("logging.level", "info")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("EXCHANGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing default file is fine: env vars and defaults still apply.
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the structural constraints: enabled venues must carry
// their credentials and the log level must be known.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
