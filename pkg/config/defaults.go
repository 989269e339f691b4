package config

import "time"

// Blame defaults.
const (
	DefaultBackend      = "git"
	DefaultWorkers      = 0
	DefaultTimeout      = 30 * time.Second
	DefaultSkipVendored = false
	DefaultSkipBinary   = true
)

// Identity defaults.
const (
	DefaultGroupBy          = "email"
	DefaultLookup           = "auto"
	DefaultRemote           = "origin"
	DefaultGitHubHost       = "github.com"
	DefaultGitHubMaxCommits = 3
	DefaultGitHubRate       = 10.0
	DefaultGitHubCacheSize  = 1024
	DefaultGitHubTimeout    = 15 * time.Second
)

// Output defaults.
const (
	DefaultFormat = "text"
	DefaultColor  = ColorAuto
)

// Logging defaults.
const (
	DefaultLogLevel  = "warn"
	DefaultLogFormat = "text"
)

// Color modes.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Default returns the configuration used when no file or environment
// override is present.
func Default() *Config {
	return &Config{
		Blame: BlameConfig{
			Backend:      DefaultBackend,
			Timeout:      DefaultTimeout,
			Workers:      DefaultWorkers,
			SkipVendored: DefaultSkipVendored,
			SkipBinary:   DefaultSkipBinary,
		},
		Identity: IdentityConfig{
			GroupBy: DefaultGroupBy,
			Lookup:  DefaultLookup,
			Remote:  DefaultRemote,
			GitHub: GitHubConfig{
				Host:       DefaultGitHubHost,
				RatePerSec: DefaultGitHubRate,
				Timeout:    DefaultGitHubTimeout,
				MaxCommits: DefaultGitHubMaxCommits,
				CacheSize:  DefaultGitHubCacheSize,
			},
		},
		Output:  OutputConfig{Format: DefaultFormat, Color: DefaultColor},
		Logging: LoggingConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
	}
}
