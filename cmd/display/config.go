package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/0x-mperego/unimec-display/internal/display"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type displayConfig struct {
	Server        string        `mapstructure:"server"`
	RetryDelay    time.Duration `mapstructure:"retry-delay"`
	Transition    time.Duration `mapstructure:"transition"`
	PulseInterval time.Duration `mapstructure:"pulse-interval"`
	LogFile       string        `mapstructure:"log-file"`
	LogLevel      string        `mapstructure:"log-level"`
	LogFormat     string        `mapstructure:"log-format"`
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("display", pflag.ContinueOnError)
	fs.String("config", "", "path to display.yaml (default: ./display.yaml if present)")
	fs.String("server", "http://localhost:8080", "base URL of the playlist server")
	fs.Duration("retry-delay", display.DefaultRetryDelay, "wait between reconnect attempts")
	fs.Duration("transition", display.DefaultTransition, "cross-fade between items")
	fs.Duration("pulse-interval", 30*time.Second, "server keep-alive interval; the stream is dropped after 2.5x of silence")
	fs.String("log-file", "", "also write logs to this file, rotated")
	fs.String("log-level", "info", "debug, info, warn or error")
	fs.String("log-format", "text", "text or json")
	return fs
}

// loadConfig merges flags, DISPLAY_* environment variables and an optional
// YAML file, in that order of precedence.
func loadConfig(args []string) (*displayConfig, error) {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}
	v.SetEnvPrefix("DISPLAY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("display")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg displayConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *displayConfig) validate() error {
	if c.Server == "" {
		return errors.New("server is required")
	}
	if c.RetryDelay <= 0 {
		return errors.New("retry-delay must be positive")
	}
	if c.Transition < 0 {
		return errors.New("transition must not be negative")
	}
	if c.PulseInterval <= 0 {
		return errors.New("pulse-interval must be positive")
	}
	return nil
}
