// Package config loads runtime settings from flags, the environment and an
// optional .env file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"hark/platform"
	"hark/transcriber"
)

type Config struct {
	APIKey     string        `env:"HARK_API_KEY"`
	Provider   string        `env:"HARK_PROVIDER" envDefault:"openai"`
	Endpoint   string        `env:"HARK_ENDPOINT"`
	Model      string        `env:"HARK_MODEL"`
	Language   string        `env:"HARK_LANG" envDefault:"en"`
	Timeout    time.Duration `env:"HARK_TIMEOUT" envDefault:"30s"`
	Permission string        `env:"HARK_PERMISSION" envDefault:"passive"`
	Device     string        `env:"HARK_DEVICE"`
	Beep       bool          `env:"HARK_BEEP" envDefault:"true"`
}

// Overrides holds CLI flag values that take priority over env vars. A zero
// value means the flag was not given; Language is a pointer so an explicit
// empty value can request auto-detection.
type Overrides struct {
	EnvFile    string
	Provider   string
	Endpoint   string
	Model      string
	Language   *string
	Timeout    time.Duration
	Permission string
	Device     string
	NoBeep     bool
}

// Load reads configuration with priority flags > environment > .env file >
// defaults. A missing API key is not an error here; callers surface it when
// a transcription is attempted.
func Load(o Overrides) (*Config, error) {
	envFile := o.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if o.Provider != "" {
		cfg.Provider = o.Provider
	}
	if o.Endpoint != "" {
		cfg.Endpoint = o.Endpoint
	}
	if o.Model != "" {
		cfg.Model = o.Model
	}
	if o.Language != nil {
		cfg.Language = *o.Language
	}
	if o.Timeout != 0 {
		cfg.Timeout = o.Timeout
	}
	if o.Permission != "" {
		cfg.Permission = o.Permission
	}
	if o.Device != "" {
		cfg.Device = o.Device
	}
	if o.NoBeep {
		cfg.Beep = false
	}

	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks enumerated settings and fills endpoint and model from the
// provider preset when not overridden.
func (c *Config) validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	switch c.Permission {
	case platform.ModePassive, platform.ModeConsent:
	default:
		return fmt.Errorf("unknown permission mode %q (use %s or %s)", c.Permission, platform.ModePassive, platform.ModeConsent)
	}
	p, err := transcriber.LookupProvider(c.Provider)
	if err != nil {
		return err
	}
	if c.Endpoint == "" {
		c.Endpoint = p.URL
	}
	if c.Model == "" {
		c.Model = p.Model
	}
	return nil
}

// TranscriptionProvider is the endpoint after overrides.
func (c *Config) TranscriptionProvider() transcriber.Provider {
	return transcriber.Provider{Name: c.Provider, URL: c.Endpoint, Model: c.Model}
}

// HasCredential reports whether an API key is configured.
func (c *Config) HasCredential() bool {
	return c.APIKey != ""
}
