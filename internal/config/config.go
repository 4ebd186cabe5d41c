// Package config loads redprl.toml, the settings shared by every surface.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/sanjit/redprl-mcp/internal/redprl"
)

// FileName is looked up in the working directory when no path is given.
const FileName = "redprl.toml"

// Duration decodes TOML strings such as "500ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type Config struct {
	RedPRL BinaryConfig `toml:"redprl"`
	Editor EditorConfig `toml:"editor"`
	Cache  CacheConfig  `toml:"cache"`
	Log    LogConfig    `toml:"log"`
}

type BinaryConfig struct {
	Path       string   `toml:"path"`
	Args       []string `toml:"args"`
	Invocation string   `toml:"invocation"`
	Stderr     string   `toml:"stderr"`
	Timeout    Duration `toml:"timeout"`
}

type EditorConfig struct {
	DiagnosticsOnSave   bool     `toml:"diagnostics_on_save"`
	DiagnosticsOnChange bool     `toml:"diagnostics_on_change"`
	Debounce            Duration `toml:"debounce"`
}

type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

func Default() Config {
	return Config{
		RedPRL: BinaryConfig{
			Path:       "redprl",
			Invocation: string(redprl.InvokeStdin),
			Stderr:     string(redprl.StderrMerge),
			Timeout:    Duration{30 * time.Second},
		},
		Editor: EditorConfig{
			DiagnosticsOnSave:   true,
			DiagnosticsOnChange: true,
			Debounce:            Duration{redprl.DefaultDebounce},
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults. An empty path tries FileName in the
// working directory and falls back to defaults when it does not exist.
// REDPRL_PATH overrides [redprl].path.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = FileName
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			cfg = cfg.withEnv()
			return cfg, cfg.Validate("")
		}
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	cfg = cfg.withEnv()
	return cfg, cfg.Validate(path)
}

func (c Config) withEnv() Config {
	if v := strings.TrimSpace(os.Getenv("REDPRL_PATH")); v != "" {
		c.RedPRL.Path = v
	}
	return c
}

// Validate reports the first invalid setting, prefixed with source.
func (c Config) Validate(source string) error {
	prefix := ""
	if source != "" {
		prefix = source + ": "
	}
	switch redprl.Invocation(c.RedPRL.Invocation) {
	case redprl.InvokeStdin, redprl.InvokeFile:
	default:
		return fmt.Errorf("%s[redprl].invocation must be %q or %q, got %q", prefix, redprl.InvokeStdin, redprl.InvokeFile, c.RedPRL.Invocation)
	}
	switch redprl.StderrPolicy(c.RedPRL.Stderr) {
	case redprl.StderrMerge, redprl.StderrAppend, redprl.StderrSeparate:
	default:
		return fmt.Errorf("%s[redprl].stderr must be merge, append or separate, got %q", prefix, c.RedPRL.Stderr)
	}
	if c.RedPRL.Timeout.Duration < 0 {
		return fmt.Errorf("%s[redprl].timeout must not be negative", prefix)
	}
	if c.Editor.Debounce.Duration < 0 {
		return fmt.Errorf("%s[editor].debounce must not be negative", prefix)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%s[log].level: %w", prefix, err)
	}
	return nil
}

// Runner builds the process runner described by the [redprl] section.
func (c Config) Runner(logger zerolog.Logger) *redprl.ProcessRunner {
	return &redprl.ProcessRunner{
		Binary:     c.RedPRL.Path,
		Args:       append([]string{}, c.RedPRL.Args...),
		Invocation: redprl.Invocation(c.RedPRL.Invocation),
		Stderr:     redprl.StderrPolicy(c.RedPRL.Stderr),
		Timeout:    c.RedPRL.Timeout.Duration,
		Logger:     logger,
	}
}

// SessionOptions opens the response cache when enabled.
func (c Config) SessionOptions(logger zerolog.Logger) ([]redprl.SessionOption, error) {
	opts := []redprl.SessionOption{redprl.WithLogger(logger)}
	if c.Cache.Enabled {
		cache, err := redprl.OpenResponseCache(c.Cache.Dir)
		if err != nil {
			return nil, err
		}
		opts = append(opts, redprl.WithResponseCache(cache))
	}
	return opts, nil
}
