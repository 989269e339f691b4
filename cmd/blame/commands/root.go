// Package commands implements CLI command handlers for blame.
package commands

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/blame/pkg/config"
	"github.com/Sumatoshi-tech/blame/pkg/identity"
	"github.com/Sumatoshi-tech/blame/pkg/observability"
	"github.com/Sumatoshi-tech/blame/pkg/ownership"
	"github.com/Sumatoshi-tech/blame/pkg/report"
	"github.com/Sumatoshi-tech/blame/pkg/version"
)

type ownershipRunner func(ctx context.Context, cfg *config.Config, query ownership.Query, deps ownership.Deps) (ownership.Report, error)

type observabilityInit func(cfg observability.Config) (observability.Providers, error)

type terminalCheck func(w io.Writer) bool

// globalOptions are the flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
	logJSON    bool
}

// RootCommand holds the flags and dependencies of the blame command.
type RootCommand struct {
	global *globalOptions

	verbose         bool
	gh              bool
	onlyName        bool
	noColor         bool
	format          string
	backend         string
	groupBy         string
	identities      string
	workers         int
	timeout         time.Duration
	skipVendored    bool
	skipBinary      bool
	metricsTextfile string

	runOwnership ownershipRunner
	initObs      observabilityInit
	isTerminal   terminalCheck
	now          func() time.Time
}

// NewRootCommand creates the blame command with its subcommands.
func NewRootCommand() *cobra.Command {
	return newRootCommandWithDeps(ownership.Run, observability.Init, isTerminal)
}

func newRootCommandWithDeps(run ownershipRunner, initObs observabilityInit, terminal terminalCheck) *cobra.Command {
	rc := &RootCommand{
		global:       &globalOptions{},
		runOwnership: run,
		initObs:      initObs,
		isTerminal:   terminal,
		now:          time.Now,
	}

	cmd := &cobra.Command{
		Use:   "blame [flags] <pattern>...",
		Short: "Find out who owns the code",
		Long: `Blame every file matched by the patterns and rank the contributors by the
number of lines they last touched. Patterns are files, directories or
doublestar globs (**) inside a git working tree.`,
		Example: `  blame main.go
  blame -v 'pkg/**/*.go'
  blame --gh --only-name internal/`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Get().Version,
		RunE:          rc.run,
	}

	pflags := cmd.PersistentFlags()
	pflags.StringVar(&rc.global.configPath, "config", "", "Config file (default: blame.yaml in ., ~/.config/blame, /etc/blame)")
	pflags.StringVar(&rc.global.logLevel, "log-level", config.DefaultLogLevel, "Log level: debug, info, warn, error")
	pflags.BoolVar(&rc.global.logJSON, "log-json", false, "Emit logs as JSON")

	flags := cmd.Flags()
	flags.BoolVarP(&rc.verbose, "verbose", "v", false, "List every contributor instead of the top one")
	flags.BoolVar(&rc.gh, "gh", false, "Resolve contributors to GitHub usernames")
	flags.BoolVar(&rc.onlyName, "only-name", false, "Print only the contributor name")
	flags.BoolVar(&rc.noColor, "no-color", false, "Disable colored output")
	flags.StringVar(&rc.format, "format", config.DefaultFormat, "Output format: text, json, yaml, plot")
	flags.StringVar(&rc.backend, "backend", config.DefaultBackend, "Blame backend: git, libgit2 (libgit2 blames one file at a time; --timeout bounds the wait, not a running blame)")
	flags.StringVar(&rc.groupBy, "group-by", config.DefaultGroupBy, "Group contributors by email or name")
	flags.StringVar(&rc.identities, "identities", "", "Identities file mapping aliases and usernames")
	flags.IntVar(&rc.workers, "workers", config.DefaultWorkers, "Files blamed in parallel (0 = CPU count)")
	flags.DurationVar(&rc.timeout, "timeout", config.DefaultTimeout, "Timeout of a single file blame")
	flags.BoolVar(&rc.skipVendored, "skip-vendored", config.DefaultSkipVendored, "Skip vendored files")
	flags.BoolVar(&rc.skipBinary, "skip-binary", config.DefaultSkipBinary, "Skip binary files")
	flags.StringVar(&rc.metricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this file on exit")

	cmd.AddCommand(newVersionCommand())
	cmd.AddCommand(newMCPCommand(rc.global, initObs))

	return cmd
}

func (rc *RootCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, rc.global)
	if err != nil {
		return err
	}

	rc.applyFlags(cmd, cfg)

	err = cfg.Validate()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	obsCfg, err := observabilityConfig(cfg, observability.ModeCLI, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	providers, err := rc.initObs(obsCfg)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	defer shutdown(providers)

	metrics, err := observability.NewBlameMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	ctx := cmd.Context()

	rep, err := rc.runOwnership(ctx, cfg, ownership.Query{Patterns: args, ResolveUsernames: rc.gh}, ownership.Deps{
		Logger:  providers.Logger,
		Tracer:  providers.Tracer,
		Metrics: metrics,
	})
	if err != nil {
		return commandError(ctx, err)
	}

	if rc.onlyName && rc.gh {
		top, ok := rep.Document.Top()
		if !ok {
			return &ExitError{
				Code: ExitNoIdentity,
				Err:  fmt.Errorf("%w: no contributors", identity.ErrNoIdentityResolved),
			}
		}

		if top.Username == "" {
			return &ExitError{
				Code: ExitNoIdentity,
				Err:  fmt.Errorf("%w for %s", identity.ErrNoIdentityResolved, top.Name),
			}
		}
	}

	format, err := report.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	return report.NewWriter(out, report.Options{
		Format:   format,
		Verbose:  rc.verbose,
		OnlyName: rc.onlyName,
		Color:    rc.useColor(cfg.Output.Color, out),
		Now:      rc.now,
	}).Write(rep.Document)
}

// applyFlags overrides configuration values with explicitly set flags.
func (rc *RootCommand) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("backend") {
		cfg.Blame.Backend = rc.backend
	}

	if flags.Changed("workers") {
		cfg.Blame.Workers = rc.workers
	}

	if flags.Changed("timeout") {
		cfg.Blame.Timeout = rc.timeout
	}

	if flags.Changed("skip-vendored") {
		cfg.Blame.SkipVendored = rc.skipVendored
	}

	if flags.Changed("skip-binary") {
		cfg.Blame.SkipBinary = rc.skipBinary
	}

	if flags.Changed("group-by") {
		cfg.Identity.GroupBy = rc.groupBy
	}

	if flags.Changed("identities") {
		cfg.Identity.File = rc.identities
	}

	if flags.Changed("format") {
		cfg.Output.Format = rc.format
	}

	if rc.noColor {
		cfg.Output.Color = config.ColorNever
	}

	if flags.Changed("metrics-textfile") {
		cfg.Telemetry.MetricsTextfile = rc.metricsTextfile
	}
}

func (rc *RootCommand) useColor(mode string, out io.Writer) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	default:
		return os.Getenv("NO_COLOR") == "" && rc.isTerminal(out)
	}
}

// loadConfig reads the configuration and applies the global flags.
func loadConfig(cmd *cobra.Command, global *globalOptions) (*config.Config, error) {
	cfg, err := config.LoadConfig(global.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()

	if flags.Changed("log-level") {
		cfg.Logging.Level = global.logLevel
	}

	if flags.Changed("log-json") && global.logJSON {
		cfg.Logging.Format = "json"
	}

	return cfg, nil
}

func observabilityConfig(cfg *config.Config, mode observability.AppMode, logOut io.Writer) (observability.Config, error) {
	level, err := config.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return observability.Config{}, err
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Get().Version
	obsCfg.Environment = cfg.Telemetry.Environment
	obsCfg.Mode = mode
	obsCfg.OTLPEndpoint = cmp.Or(cfg.Telemetry.OTLPEndpoint, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	obsCfg.OTLPHeaders = cfg.Telemetry.OTLPHeaders
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.MetricsTextfile = cfg.Telemetry.MetricsTextfile
	obsCfg.LogLevel = level
	obsCfg.LogJSON = cfg.Logging.Format == "json"
	obsCfg.LogOutput = logOut

	return obsCfg, nil
}

func shutdown(providers observability.Providers) {
	err := providers.Shutdown(context.Background())
	if err != nil {
		providers.Logger.Warn("observability shutdown failed", "error", err)
	}
}

// commandError pins the interrupted exit code when the run was cancelled.
func commandError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return &ExitError{Code: ExitInterrupted, Err: err}
	}

	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
