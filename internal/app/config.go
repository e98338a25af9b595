package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

const envPrefix = "LAWCHAT_"

type Config struct {
	APIBaseURL     string        `koanf:"api_base_url" yaml:"api_base_url"`
	RequestTimeout time.Duration `koanf:"request_timeout" yaml:"request_timeout"`
	StorageDir     string        `koanf:"storage_dir" yaml:"storage_dir"`
	Topic          string        `koanf:"topic" yaml:"topic"`
	Log            LogConfig     `koanf:"log" yaml:"log"`
}

type LogConfig struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"` // json|console
}

func DefaultConfig() Config {
	return Config{
		APIBaseURL:     "http://localhost:4001",
		RequestTimeout: 20 * time.Second,
		Topic:          "tenancy",
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func DefaultConfigPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "lawchat", "config.yaml")
}

// LoadConfig reads the YAML config file (if present), then overrides with
// LAWCHAT_* environment variables, then fills defaults.
//
// Examples: LAWCHAT_API_BASE_URL, LAWCHAT_REQUEST_TIMEOUT, LAWCHAT_LOG_LEVEL.
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = DefaultConfigPath()
	}
	if path != "" {
		content, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := k.Load(rawbytes.Provider(content), kyaml.Parser()); err != nil {
				return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
			// no config file; defaults + env apply
		default:
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	// LAWCHAT_LOG_LEVEL -> log.level; everything else stays a flat key.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		if rest, ok := strings.CutPrefix(key, "log_"); ok {
			return "log." + rest
		}
		return key
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = def.APIBaseURL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.StorageDir == "" {
		cfg.StorageDir = DefaultStorageRoot()
	}
	if cfg.Topic == "" {
		cfg.Topic = def.Topic
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}
}

func (c Config) Validate() error {
	if !strings.HasPrefix(c.APIBaseURL, "http://") && !strings.HasPrefix(c.APIBaseURL, "https://") {
		return fmt.Errorf("api_base_url must be an http(s) URL, got %q", c.APIBaseURL)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}

// WriteDefaultConfig writes a default config file for `lawchat init`. It
// refuses to overwrite an existing file.
func WriteDefaultConfig(path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}
	if path == "" {
		return errors.New("no config path available")
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	def := DefaultConfig()
	// request_timeout is written as a duration string ("20s"), which the
	// loader parses back into a time.Duration.
	data, err := yaml.Marshal(struct {
		APIBaseURL     string    `yaml:"api_base_url"`
		RequestTimeout string    `yaml:"request_timeout"`
		StorageDir     string    `yaml:"storage_dir,omitempty"`
		Topic          string    `yaml:"topic"`
		Log            LogConfig `yaml:"log"`
	}{
		APIBaseURL:     def.APIBaseURL,
		RequestTimeout: def.RequestTimeout.String(),
		Topic:          def.Topic,
		Log:            def.Log,
	})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
