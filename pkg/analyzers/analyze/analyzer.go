// Package analyze orchestrates purity classification, pattern detection,
// scoring and suggestion generation over a whole project.
package analyze

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Oeditus/propwise/pkg/analyzers/patterns"
	"github.com/Oeditus/propwise/pkg/analyzers/purity"
	"github.com/Oeditus/propwise/pkg/analyzers/scoring"
	"github.com/Oeditus/propwise/pkg/analyzers/suggest"
	"github.com/Oeditus/propwise/pkg/observability"
	"github.com/Oeditus/propwise/pkg/rules"
	"github.com/Oeditus/propwise/pkg/source"
)

// tracerName is the default OTel tracer name for the analyzer.
const tracerName = "propwise"

// DefaultLargeModuleWarning is the per-module function count above which
// the quadratic inverse-pair scan is reported.
const DefaultLargeModuleWarning = 200

// Config tunes an Analyzer. Zero values select defaults.
type Config struct {
	// Workers bounds per-function concurrency. Defaults to GOMAXPROCS.
	Workers int
	// LargeModuleWarning is the module size that triggers a warning.
	// Negative disables the warning.
	LargeModuleWarning int

	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *observability.AnalysisMetrics
}

// Analyzer runs the analysis engine with one immutable rule set. It is safe
// for concurrent use.
type Analyzer struct {
	rules    *rules.Set
	purity   *rules.Purity
	detector *patterns.Detector
	config   Config
}

// New creates an analyzer. A nil rule set selects the defaults.
func New(set *rules.Set, config Config) *Analyzer {
	if set == nil {
		set = rules.Defaults()
	}

	if config.Workers <= 0 {
		config.Workers = runtime.GOMAXPROCS(0)
	}

	if config.LargeModuleWarning == 0 {
		config.LargeModuleWarning = DefaultLargeModuleWarning
	}

	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	if config.Tracer == nil {
		config.Tracer = otel.Tracer(tracerName)
	}

	return &Analyzer{
		rules:    set,
		purity:   set.Purity(),
		detector: patterns.NewDetector(set.Patterns),
		config:   config,
	}
}

// Rules returns the rule set the analyzer was built with.
func (analyzer *Analyzer) Rules() *rules.Set {
	return analyzer.rules
}

// Evaluate classifies, detects, scores and suggests for one function.
func (analyzer *Analyzer) Evaluate(fn source.Function) Candidate {
	verdict := purity.Classify(fn.Body, analyzer.purity)
	matches := analyzer.detector.Detect(fn)
	breakdown := scoring.Explain(verdict, matches, fn)

	return Candidate{
		Function:    fn,
		Verdict:     verdict,
		Matches:     matches,
		Score:       breakdown.Total,
		Breakdown:   breakdown,
		Suggestions: suggest.Generate(matches, fn),
	}
}

// AnalyzeProject evaluates every function, keeps those scoring at least
// minScore sorted by descending score (ties keep input order), and finds
// inverse pairs over the full list. Impure functions score 0, so they are kept
// only when minScore is 0 or below. The only error is context cancellation.
func (analyzer *Analyzer) AnalyzeProject(ctx context.Context, fns []source.Function, minScore int) (*Result, error) {
	started := time.Now()
	ctx = observability.WithLogAttrs(ctx, slog.Int("min_score", minScore))

	ctx, span := analyzer.config.Tracer.Start(ctx, "propwise.analyze",
		trace.WithAttributes(
			attribute.Int("analysis.functions", len(fns)),
			attribute.Int("analysis.min_score", minScore),
			attribute.Int("analysis.workers", analyzer.config.Workers),
		))
	defer span.End()

	evaluated, err := analyzer.evaluateAll(ctx, fns)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "analysis cancelled")

		return nil, fmt.Errorf("analyze project: %w", err)
	}

	analyzer.warnLargeModules(ctx, fns)

	result := buildResult(evaluated, minScore)
	result.InversePairs = patterns.FindInversePairs(fns, analyzer.rules.Conventions)

	elapsed := time.Since(started)

	span.SetAttributes(
		attribute.Int("analysis.candidates", result.CandidatesCount),
		attribute.Int("analysis.impure", result.ImpureCount),
		attribute.Int("analysis.inverse_pairs", len(result.InversePairs)),
	)

	analyzer.config.Metrics.RecordRun(ctx, observability.AnalysisStats{
		Functions:    int64(result.TotalFunctions),
		Candidates:   int64(result.CandidatesCount),
		Dropped:      int64(result.DroppedCount),
		Impure:       int64(result.ImpureCount),
		InversePairs: int64(len(result.InversePairs)),
		Duration:     elapsed,
	})

	analyzer.config.Logger.InfoContext(ctx, "analysis complete",
		"functions", result.TotalFunctions,
		"candidates", result.CandidatesCount,
		"dropped", result.DroppedCount,
		"impure", result.ImpureCount,
		"inverse_pairs", len(result.InversePairs),
		"duration", elapsed,
	)

	return result, nil
}

// evaluateAll runs Evaluate concurrently; results are slotted by index so
// the output equals sequential evaluation.
func (analyzer *Analyzer) evaluateAll(ctx context.Context, fns []source.Function) ([]Candidate, error) {
	evaluated := make([]Candidate, len(fns))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(analyzer.config.Workers)

	for idx, fn := range fns {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			evaluated[idx] = analyzer.Evaluate(fn)

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	// Cancellation that raced the last worker still aborts the run.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return evaluated, nil
}

func (analyzer *Analyzer) warnLargeModules(ctx context.Context, fns []source.Function) {
	limit := analyzer.config.LargeModuleWarning
	if limit < 0 {
		return
	}

	for _, group := range patterns.GroupByModule(fns) {
		if len(group.Functions) > limit {
			analyzer.config.Logger.WarnContext(ctx, "large module slows inverse pair detection",
				"module", group.Module,
				"functions", len(group.Functions),
				"limit", limit,
			)
		}
	}
}

func buildResult(evaluated []Candidate, minScore int) *Result {
	result := &Result{
		TotalFunctions: len(evaluated),
		MinScore:       minScore,
		PatternStats:   make(map[patterns.Kind]int),
	}

	for _, candidate := range evaluated {
		if !candidate.Verdict.Pure() {
			result.ImpureCount++
		}

		switch {
		case candidate.Score >= minScore:
			result.Candidates = append(result.Candidates, candidate)

			for _, match := range candidate.Matches {
				result.PatternStats[match.Kind]++
			}
		case candidate.Score > 0:
			result.DroppedCount++
		}
	}

	slices.SortStableFunc(result.Candidates, func(left, right Candidate) int {
		return cmp.Compare(right.Score, left.Score)
	})

	result.CandidatesCount = len(result.Candidates)

	return result
}
