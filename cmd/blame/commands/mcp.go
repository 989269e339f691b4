package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/blame/pkg/mcp"
	"github.com/Sumatoshi-tech/blame/pkg/observability"
)

func newMCPCommand(global *globalOptions, initObs observabilityInit) *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes code ownership queries as tools that AI agents can
discover and invoke:
  - who_owns: rank the contributors of files, directories or globs
  - top_owner: name the contributor owning the most lines`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, global)
			if err != nil {
				return err
			}

			obsCfg, err := observabilityConfig(cfg, observability.ModeMCP, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			obsCfg.LogJSON = true

			if debug {
				obsCfg.LogLevel = slog.LevelDebug
			}

			providers, err := initObs(obsCfg)
			if err != nil {
				return err
			}

			defer shutdown(providers)

			red, err := observability.NewREDMetrics(providers.Meter)
			if err != nil {
				return err
			}

			blameMetrics, err := observability.NewBlameMetrics(providers.Meter)
			if err != nil {
				return err
			}

			srv := mcp.NewServer(mcp.ServerDeps{
				Config:       cfg,
				Logger:       providers.Logger,
				Metrics:      red,
				BlameMetrics: blameMetrics,
				Tracer:       providers.Tracer,
			})

			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging to stderr")

	return cmd
}
