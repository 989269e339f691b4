// Package config loads and validates blame configuration from files,
// environment variables and defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/blame/pkg/gitlib"
	"github.com/Sumatoshi-tech/blame/pkg/identity"
	"github.com/Sumatoshi-tech/blame/pkg/report"
)

// Sentinel validation errors.
var (
	ErrInvalidWorkers   = errors.New("workers must not be negative")
	ErrInvalidTimeout   = errors.New("timeout must be positive")
	ErrInvalidGitHub    = errors.New("invalid github lookup settings")
	ErrInvalidColor     = errors.New("color must be auto, always or never")
	ErrInvalidLogLevel  = errors.New("invalid log level")
	ErrInvalidLogFormat = errors.New("log format must be text or json")
)

// EnvPrefix prefixes every environment variable, e.g. BLAME_BLAME_WORKERS.
const EnvPrefix = "BLAME"

// Config holds all configuration for a blame run.
type Config struct {
	Blame     BlameConfig     `mapstructure:"blame"`
	Identity  IdentityConfig  `mapstructure:"identity"`
	Output    OutputConfig    `mapstructure:"output"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// BlameConfig configures blame collection.
type BlameConfig struct {
	Backend      string        `mapstructure:"backend"`
	Git          string        `mapstructure:"git"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Workers      int           `mapstructure:"workers"`
	SkipVendored bool          `mapstructure:"skip_vendored"`
	SkipBinary   bool          `mapstructure:"skip_binary"`
}

// IdentityConfig configures identity grouping and username lookup.
type IdentityConfig struct {
	GroupBy string       `mapstructure:"group_by"`
	File    string       `mapstructure:"file"`
	Lookup  string       `mapstructure:"lookup"`
	Remote  string       `mapstructure:"remote"`
	GitHub  GitHubConfig `mapstructure:"github"`
}

// GitHubConfig configures the GitHub username lookup.
type GitHubConfig struct {
	Host       string        `mapstructure:"host"`
	RatePerSec float64       `mapstructure:"rate_per_sec"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxCommits int           `mapstructure:"max_commits"`
	CacheSize  int           `mapstructure:"cache_size"`
}

// OutputConfig configures rendering.
type OutputConfig struct {
	Format string `mapstructure:"format"`
	Color  string `mapstructure:"color"`
}

// LoggingConfig configures the diagnostic logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	OTLPEndpoint    string            `mapstructure:"otlp_endpoint"`
	OTLPHeaders     map[string]string `mapstructure:"otlp_headers"`
	MetricsTextfile string            `mapstructure:"metrics_textfile"`
	Environment     string            `mapstructure:"environment"`
	OTLPInsecure    bool              `mapstructure:"otlp_insecure"`
}

// LoadConfig loads configuration from file and environment variables. An
// empty configPath searches for blame.yaml in the working directory,
// $HOME/.config/blame and /etc/blame; a missing file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("blame")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("$HOME/.config/blame")
		viperCfg.AddConfigPath("/etc/blame")
	}

	viperCfg.SetEnvPrefix(EnvPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// setDefaults registers every key so that AutomaticEnv can override it.
func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("blame.backend", DefaultBackend)
	viperCfg.SetDefault("blame.git", "")
	viperCfg.SetDefault("blame.workers", DefaultWorkers)
	viperCfg.SetDefault("blame.timeout", DefaultTimeout)
	viperCfg.SetDefault("blame.skip_vendored", DefaultSkipVendored)
	viperCfg.SetDefault("blame.skip_binary", DefaultSkipBinary)

	viperCfg.SetDefault("identity.group_by", DefaultGroupBy)
	viperCfg.SetDefault("identity.file", "")
	viperCfg.SetDefault("identity.lookup", DefaultLookup)
	viperCfg.SetDefault("identity.remote", DefaultRemote)
	viperCfg.SetDefault("identity.github.host", DefaultGitHubHost)
	viperCfg.SetDefault("identity.github.max_commits", DefaultGitHubMaxCommits)
	viperCfg.SetDefault("identity.github.rate_per_sec", DefaultGitHubRate)
	viperCfg.SetDefault("identity.github.cache_size", DefaultGitHubCacheSize)
	viperCfg.SetDefault("identity.github.timeout", DefaultGitHubTimeout)

	viperCfg.SetDefault("output.format", DefaultFormat)
	viperCfg.SetDefault("output.color", DefaultColor)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.metrics_textfile", "")
	viperCfg.SetDefault("telemetry.environment", "")
}

// Validate checks the configuration, including values overridden by flags
// after loading.
func (c *Config) Validate() error {
	if _, err := gitlib.ParseBackend(c.Blame.Backend); err != nil {
		return err
	}

	if c.Blame.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Blame.Workers)
	}

	if c.Blame.Timeout <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTimeout, c.Blame.Timeout)
	}

	if _, err := identity.ParsePolicy(c.Identity.GroupBy); err != nil {
		return fmt.Errorf("%w: %q", err, c.Identity.GroupBy)
	}

	if _, err := identity.ParseLookupKind(c.Identity.Lookup); err != nil {
		return err
	}

	gh := c.Identity.GitHub
	if gh.MaxCommits <= 0 || gh.CacheSize <= 0 || gh.RatePerSec < 0 || gh.Timeout <= 0 {
		return fmt.Errorf("%w: max_commits=%d cache_size=%d rate_per_sec=%g timeout=%s",
			ErrInvalidGitHub, gh.MaxCommits, gh.CacheSize, gh.RatePerSec, gh.Timeout)
	}

	if _, err := report.ParseFormat(c.Output.Format); err != nil {
		return err
	}

	switch c.Output.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidColor, c.Output.Color)
	}

	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Logging.Format)
	}

	return nil
}

// ParseLevel converts a level name into a slog.Level.
func ParseLevel(value string) (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(strings.TrimSpace(value)))
	if err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, value)
	}

	return level, nil
}
