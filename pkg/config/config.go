// Package config loads devserver configuration. Defaults come first,
// an optional YAML file overrides them, environment variables override
// the file, and the result is validated before anything starts.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file Load looks for when no path is
// given.
const DefaultFileName = "jsxedit.yaml"

var validate = validator.New()

// Configuration errors.
var (
	ErrWatchPathRequired = errors.New("watch.path is required when watch is enabled")
)

// Duration wraps time.Duration so YAML can say "300ms" or "5s".
type Duration time.Duration

// UnmarshalYAML parses a Go duration string like "300ms".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration in its string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `yaml:"addr" validate:"required"`

	// ShutdownTimeout bounds the graceful drain on exit.
	ShutdownTimeout Duration `yaml:"shutdown_timeout" validate:"min=0"`

	// AllowedOrigins for websocket upgrades. Empty means same-origin.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// EditorConfig configures session behavior.
type EditorConfig struct {
	// DebounceInterval is how long an edited property stays quiet
	// before its source commit.
	DebounceInterval Duration `yaml:"debounce_interval" validate:"min=0"`

	// HistoryDepth is how many document versions undo can walk back.
	HistoryDepth int `yaml:"history_depth" validate:"min=1"`

	// RecoveryTTL is how long a disconnected session can be resumed.
	RecoveryTTL Duration `yaml:"recovery_ttl" validate:"min=0"`

	// Sanitize strips scripts and event handlers from pasted source.
	Sanitize bool `yaml:"sanitize"`
}

// LimitsConfig configures per-session and server-wide limits.
type LimitsConfig struct {
	// EventsPerSecond refills each session's event budget. Zero
	// disables rate limiting.
	EventsPerSecond float64 `yaml:"events_per_second" validate:"min=0"`

	// EventBurst is the bucket size for short bursts.
	EventBurst int `yaml:"event_burst" validate:"min=0"`

	// MaxConnections caps concurrent editor sessions. Zero means
	// unlimited.
	MaxConnections int `yaml:"max_connections" validate:"min=0"`
}

// WatchConfig configures reloading documents from disk.
type WatchConfig struct {
	// Enabled turns the file watcher on.
	Enabled bool `yaml:"enabled"`

	// Path is the JSX file or directory to watch.
	Path string `yaml:"path"`
}

// GenerateConfig configures AI component generation.
type GenerateConfig struct {
	// APIKey authenticates against the OpenAI API. Usually set via
	// OPENAI_API_KEY rather than the file.
	APIKey string `yaml:"api_key"`

	// Model names the chat model to use.
	Model string `yaml:"model"`

	// Timeout bounds one generation request.
	Timeout Duration `yaml:"timeout" validate:"min=0"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	// Level is the minimum level emitted.
	Level string `yaml:"level" validate:"oneof=debug info warn error"`

	// Format selects text or json output.
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Config is the full devserver configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Editor   EditorConfig   `yaml:"editor"`
	Limits   LimitsConfig   `yaml:"limits"`
	Watch    WatchConfig    `yaml:"watch"`
	Generate GenerateConfig `yaml:"generate"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Default returns the configuration the devserver runs with when
// nothing else is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":3000",
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Editor: EditorConfig{
			DebounceInterval: Duration(300 * time.Millisecond),
			HistoryDepth:     50,
			RecoveryTTL:      Duration(5 * time.Minute),
			Sanitize:         true,
		},
		Limits: LimitsConfig{
			EventsPerSecond: 60,
			EventBurst:      120,
			MaxConnections:  256,
		},
		Generate: GenerateConfig{
			Model:   "gpt-4o-mini",
			Timeout: Duration(30 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the effective configuration: defaults, then the YAML
// file, then the environment. An empty path falls back to
// jsxedit.yaml in the working directory; a missing fallback is fine, a
// missing explicit path is not.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// No file, defaults apply.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables onto the configuration.
func (c *Config) applyEnv() {
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Addr = ":" + port
	}
	if addr := os.Getenv("JSXEDIT_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if level := os.Getenv("JSXEDIT_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.Generate.APIKey = key
	}
	if model := os.Getenv("JSXEDIT_MODEL"); model != "" {
		c.Generate.Model = model
	}
	if path := os.Getenv("JSXEDIT_WATCH"); path != "" {
		c.Watch.Enabled = true
		c.Watch.Path = path
	}
}

// Validate checks field constraints and the few rules that span
// fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Watch.Enabled && c.Watch.Path == "" {
		return ErrWatchPathRequired
	}
	return nil
}
