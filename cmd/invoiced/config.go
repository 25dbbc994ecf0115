// config.go - Configuration management for the invoice daemon.

package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the daemon configuration, loaded from a TOML file.
type Config struct {
	// Server
	ListenAddr  string `toml:"listen_addr"`
	BaseLinkURL string `toml:"base_link_url"`

	// Off-chain metadata cache
	MetaDBPath  string `toml:"meta_db_path"`
	MetaKeyHex  string `toml:"meta_key_hex"` // AES key, hex-encoded
	MetaEnabled bool   `toml:"meta_enabled"`

	// Logging
	LogLevel string `toml:"log_level"`

	// Rate limiting
	RateLimitTokens int `toml:"rate_limit_tokens"`
	RateLimitRefill int `toml:"rate_limit_refill_per_second"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:          ":8480",
		BaseLinkURL:         "https://pay.example.com/p",
		MetaDBPath:          "invoiced.db",
		MetaKeyHex:          "",
		MetaEnabled:     true,
		LogLevel:        "info",
		RateLimitTokens: 50,
		RateLimitRefill: 25,
	}
}

// LoadConfig reads the TOML file at path, or returns defaults if path is
// empty.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.BaseLinkURL == "" {
		return fmt.Errorf("base_link_url must not be empty")
	}
	if c.RateLimitTokens <= 0 || c.RateLimitRefill <= 0 {
		return fmt.Errorf("rate limit settings must be positive")
	}
	// An empty key is allowed: the daemon falls back to an ephemeral key
	// and the cache resets across restarts.
	if c.MetaEnabled && c.MetaKeyHex != "" {
		key, err := c.MetaKey()
		if err != nil {
			return err
		}
		switch len(key) {
		case 16, 24, 32:
		default:
			return fmt.Errorf("meta_key_hex must decode to 16, 24, or 32 bytes")
		}
	}
	return nil
}

// MetaKey decodes the at-rest encryption key.
func (c *Config) MetaKey() ([]byte, error) {
	key, err := hex.DecodeString(c.MetaKeyHex)
	if err != nil {
		return nil, fmt.Errorf("meta_key_hex is not valid hex: %w", err)
	}
	return key, nil
}

