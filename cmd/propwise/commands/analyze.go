package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Oeditus/propwise/pkg/analyzers/analyze"
	"github.com/Oeditus/propwise/pkg/config"
	"github.com/Oeditus/propwise/pkg/elixir"
	"github.com/Oeditus/propwise/pkg/observability"
	"github.com/Oeditus/propwise/pkg/report"
	"github.com/Oeditus/propwise/pkg/source"
)

// ErrNegativeMinScore is returned for --min-score below zero.
var ErrNegativeMinScore = errors.New("--min-score must not be negative")

// AnalyzeCommand holds flags for the analyze command.
type AnalyzeCommand struct {
	global *globalFlags

	minScore  int
	format    string
	rulesPath string
	rulesMode string
	workers   int
	noColor   bool
	include   []string
	exclude   []string
}

func newAnalyzeCommand(global *globalFlags) *cobra.Command {
	ac := &AnalyzeCommand{global: global}

	cmd := &cobra.Command{
		Use:   "analyze [paths...]",
		Short: "Score functions and suggest properties",
		Long: `Analyze Elixir sources (.ex, .exs) under the given paths, default ".".

Pure functions are scored by the patterns they show; those at or above
--min-score are listed with suggested properties. Inverse function pairs
such as encode/decode are reported separately.`,
		RunE: ac.run,
	}

	cmd.Flags().IntVar(&ac.minScore, "min-score", config.DefaultMinScore, "Minimum score a candidate needs")
	cmd.Flags().StringVarP(&ac.format, "format", "f", config.DefaultFormat, "Output format: text, json, yaml")
	cmd.Flags().StringVar(&ac.rulesPath, "rules", "", "Rules file (YAML)")
	cmd.Flags().StringVar(&ac.rulesMode, "rules-mode", config.DefaultRulesMode,
		"How the rules file combines with the defaults: extend, replace")
	cmd.Flags().IntVar(&ac.workers, "workers", 0, "Parallel workers (0 = CPU count)")
	cmd.Flags().BoolVar(&ac.noColor, "no-color", false, "Disable colored text output")
	cmd.Flags().StringSliceVar(&ac.include, "include", nil, "Only analyze paths matching these globs")
	cmd.Flags().StringSliceVar(&ac.exclude, "exclude", nil, "Skip paths matching these globs")

	return cmd
}

// applyFlags overrides config values with explicitly set flags.
func (ac *AnalyzeCommand) applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("min-score") {
		cfg.Analysis.MinScore = ac.minScore
	}

	if flags.Changed("format") {
		cfg.Output.Format = ac.format
	}

	if flags.Changed("rules") {
		cfg.Rules.File = ac.rulesPath
	}

	if flags.Changed("rules-mode") {
		cfg.Rules.Mode = ac.rulesMode
	}

	if flags.Changed("workers") {
		cfg.Analysis.Workers = ac.workers
	}

	if flags.Changed("no-color") {
		cfg.Output.NoColor = ac.noColor
	}

	if flags.Changed("include") {
		cfg.Discovery.Include = ac.include
	}

	if flags.Changed("exclude") {
		cfg.Discovery.Exclude = ac.exclude
	}

	if cfg.Analysis.MinScore < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeMinScore, cfg.Analysis.MinScore)
	}

	return nil
}

func (ac *AnalyzeCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := ac.global.loadConfig()
	if err != nil {
		return err
	}

	err = ac.applyFlags(cmd, cfg)
	if err != nil {
		return err
	}

	format, err := report.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	obsCfg, err := ac.global.observabilityConfig(cmd, cfg, observability.ModeCLI)
	if err != nil {
		return err
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	defer shutdownProviders(cmd, providers)

	set, err := loadRules(cfg.Rules.File, cfg.Rules.Mode)
	if err != nil {
		return err
	}

	maxFileSize, err := cfg.Discovery.MaxFileSizeBytes()
	if err != nil {
		return err
	}

	loader, err := source.NewLoader(elixir.NewParser(), source.Options{
		Include:     cfg.Discovery.Include,
		Exclude:     cfg.Discovery.Exclude,
		SkipVendor:  cfg.Discovery.SkipVendor,
		MaxFileSize: maxFileSize,
		Workers:     cfg.Analysis.Workers,
	}, providers.Logger)
	if err != nil {
		return fmt.Errorf("create loader: %w", err)
	}

	roots := args
	if len(roots) == 0 {
		roots = []string{"."}
	}

	ctx := cmd.Context()
	start := time.Now()

	fns, warnings := loader.Load(ctx, roots)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("load sources: %w", ctxErr)
	}

	for _, warning := range warnings {
		providers.Logger.WarnContext(ctx, "skipped source", "error", warning)
	}

	analysisMetrics, err := observability.NewAnalysisMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("create analysis metrics: %w", err)
	}

	analyzer := analyze.New(set, analyze.Config{
		Workers:            cfg.Analysis.Workers,
		LargeModuleWarning: cfg.Analysis.LargeModuleWarning,
		Logger:             providers.Logger,
		Tracer:             providers.Tracer,
		Metrics:            analysisMetrics,
	})

	result, err := analyzer.AnalyzeProject(ctx, fns, cfg.Analysis.MinScore)
	if err != nil {
		return err
	}

	providers.Logger.DebugContext(ctx, "analyze finished",
		"roots", len(roots), "warnings", len(warnings), "elapsed", time.Since(start))

	return report.Write(cmd.OutOrStdout(), result, report.Options{
		Format:         format,
		NoColor:        cfg.Output.NoColor,
		MaxSuggestions: cfg.Output.MaxSuggestions,
	})
}
