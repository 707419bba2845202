// Package config loads the configuration of the bcm tool using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/GeorgyFirsov/bcm-lib/internal/log"
	"github.com/GeorgyFirsov/bcm-lib/pkg/cipher"
)

// Supported sector encryption modes.
const (
	ModeDEC = "dec"
	ModeXTS = "xts"
	ModeCMC = "cmc"
	ModeHEH = "heh"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config holds the settings shared by all bcm commands
type Config struct {
	Cipher     string    `mapstructure:"cipher"`
	Mode       string    `mapstructure:"mode"`
	SectorSize int       `mapstructure:"sector_size"`
	Workers    int       `mapstructure:"workers"`
	Log        LogConfig `mapstructure:"log"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level   string `mapstructure:"level"`
	File    string `mapstructure:"file"`
	Disable bool   `mapstructure:"disable"`
}

// Load reads the configuration. An empty path searches for bcm-config.yaml in
// the working directory, $HOME/.bcm and /etc/bcm; a missing file there is not
// an error. Environment variables prefixed with BCM_ override both, e.g.
// BCM_LOG_LEVEL for log.level.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("bcm-config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.bcm")
		v.AddConfigPath("/etc/bcm")
	}

	// Set defaults
	v.SetDefault("cipher", "kuznyechik")
	v.SetDefault("mode", ModeDEC)
	v.SetDefault("sector_size", 512)
	v.SetDefault("workers", 1)
	v.SetDefault("log.level", "NOTICE")
	v.SetDefault("log.file", "")
	v.SetDefault("log.disable", false)

	// Allow environment variables
	v.SetEnvPrefix("BCM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration describes a usable setup.
func (c *Config) Validate() error {
	ci, err := cipher.Lookup(c.Cipher)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	switch mode := strings.ToLower(c.Mode); mode {
	case ModeDEC:
	case ModeXTS, ModeCMC, ModeHEH:
		if ci.BlockSize() != 16 {
			return fmt.Errorf("%w: %s needs a 128-bit block cipher, %s has %d byte blocks", ErrInvalidConfig, mode, ci.Name(), ci.BlockSize())
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, c.Mode)
	}

	if c.SectorSize <= 0 || c.SectorSize%ci.BlockSize() != 0 {
		return fmt.Errorf("%w: sector size %d is not a positive multiple of the %s block size", ErrInvalidConfig, c.SectorSize, ci.Name())
	}
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfig, c.Workers)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return nil
}
