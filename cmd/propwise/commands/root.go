// Package commands implements CLI command handlers for propwise.
package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Oeditus/propwise/pkg/config"
	"github.com/Oeditus/propwise/pkg/observability"
	"github.com/Oeditus/propwise/pkg/rules"
	"github.com/Oeditus/propwise/pkg/version"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	verbose    bool
}

// NewRootCommand builds the propwise command tree.
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "propwise",
		Short: "Find property-based testing candidates in Elixir code",
		Long: `propwise analyzes Elixir projects and ranks functions that are good
candidates for property-based tests.

Commands:
  analyze   Score functions and suggest properties
  rules     Print the effective rule set
  validate  Check a JSON report against the report schema
  mcp       Serve the analysis over the Model Context Protocol`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "",
		"Config file (default: .propwise.yaml in the working directory or $HOME)")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Debug logging to stderr")

	rootCmd.AddCommand(newAnalyzeCommand(flags))
	rootCmd.AddCommand(newRulesCommand(flags))
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newMCPCommand(flags))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

// loadConfig reads the config file and environment.
func (flags *globalFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return cfg, nil
}

// observabilityConfig maps settings onto observability.Config. Logs go to
// the command's stderr so stdout stays a clean report.
func (flags *globalFlags) observabilityConfig(
	cmd *cobra.Command, cfg *config.Config, mode observability.AppMode,
) (observability.Config, error) {
	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = mode
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Telemetry.OTLPHeaders)
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.SampleRatio = cfg.Telemetry.SampleRatio
	obsCfg.LogJSON = cfg.Logging.JSON
	obsCfg.LogWriter = cmd.ErrOrStderr()

	level, err := observability.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return obsCfg, fmt.Errorf("logging: %w", err)
	}

	obsCfg.LogLevel = level

	if flags.verbose {
		obsCfg.LogLevel = slog.LevelDebug
	}

	return obsCfg, nil
}

// loadRules resolves the rule set from an explicit path or the config.
func loadRules(path, mode string) (*rules.Set, error) {
	parsedMode, err := rules.ParseMode(mode)
	if err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}

	set, err := rules.Load(path, parsedMode)
	if err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}

	return set, nil
}

// shutdownProviders flushes telemetry, logging failures instead of masking
// the command's own error.
func shutdownProviders(cmd *cobra.Command, providers observability.Providers) {
	if err := providers.Shutdown(cmd.Context()); err != nil {
		providers.Logger.Warn("observability shutdown failed", "error", err)
	}
}
