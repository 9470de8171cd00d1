package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Oeditus/propwise/pkg/config"
	"github.com/Oeditus/propwise/pkg/mcp"
	"github.com/Oeditus/propwise/pkg/observability"
	"github.com/Oeditus/propwise/pkg/version"
)

// MCPCommand holds flags for the mcp command.
type MCPCommand struct {
	global *globalFlags

	metricsAddr string
	rulesPath   string
	minScore    int
	cacheSize   int
}

func newMCPCommand(global *globalFlags) *cobra.Command {
	mc := &MCPCommand{global: global}

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the analysis over the Model Context Protocol",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

Tools:
  - propwise_analyze: analyze inline Elixir source
  - propwise_rules:   return the active rule set

With --metrics-addr a Prometheus scrape endpoint is served on /metrics.`,
		Args: cobra.NoArgs,
		RunE: mc.run,
	}

	cmd.Flags().StringVar(&mc.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9464)")
	cmd.Flags().StringVar(&mc.rulesPath, "rules", "", "Rules file (YAML)")
	cmd.Flags().IntVar(&mc.minScore, "min-score", config.DefaultMinScore, "Default minimum score for analyze calls")
	cmd.Flags().IntVar(&mc.cacheSize, "cache-entries", mcp.DefaultCacheEntries,
		"Analyze results kept in memory (negative disables the cache)")

	return cmd
}

func (mc *MCPCommand) run(cmd *cobra.Command, _ []string) error {
	cfg, err := mc.global.loadConfig()
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("metrics-addr") {
		cfg.Telemetry.PrometheusAddr = mc.metricsAddr
	}

	if cmd.Flags().Changed("rules") {
		cfg.Rules.File = mc.rulesPath
	}

	if cmd.Flags().Changed("min-score") {
		cfg.Analysis.MinScore = mc.minScore
	}

	if cfg.Analysis.MinScore < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeMinScore, cfg.Analysis.MinScore)
	}

	obsCfg, err := mc.global.observabilityConfig(cmd, cfg, observability.ModeMCP)
	if err != nil {
		return err
	}

	obsCfg.LogJSON = true
	obsCfg.Prometheus = cfg.Telemetry.PrometheusAddr != ""

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	defer shutdownProviders(cmd, providers)

	set, err := loadRules(cfg.Rules.File, cfg.Rules.Mode)
	if err != nil {
		return err
	}

	red, err := observability.NewREDMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("create red metrics: %w", err)
	}

	analysisMetrics, err := observability.NewAnalysisMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("create analysis metrics: %w", err)
	}

	ctx := cmd.Context()

	if providers.MetricsHandler != nil {
		metricsServer, serveErr := observability.StartMetricsServer(ctx, cfg.Telemetry.PrometheusAddr, providers, red)
		if serveErr != nil {
			return fmt.Errorf("start metrics server: %w", serveErr)
		}

		defer metricsServer.Close() //nolint:errcheck // Best effort on exit.
	}

	srv := mcp.NewServer(mcp.ServerDeps{
		Logger:          providers.Logger,
		Metrics:         red,
		AnalysisMetrics: analysisMetrics,
		Tracer:          providers.Tracer,
		Rules:           set,
		MinScore:        &cfg.Analysis.MinScore,
		CacheEntries:    mc.cacheSize,
		Version:         version.Version,
	})

	return srv.Run(ctx)
}
