package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricFunctionsTotal    = "propwise.analysis.functions.total"
	metricCandidatesTotal   = "propwise.analysis.candidates.total"
	metricImpureTotal       = "propwise.analysis.impure.total"
	metricDroppedTotal      = "propwise.analysis.dropped.total"
	metricInversePairsTotal = "propwise.analysis.inverse_pairs.total"
	metricRunDuration       = "propwise.analysis.run.duration.seconds"

	attrOutcome = "outcome"
)

// AnalysisMetrics holds the instruments for analysis runs.
type AnalysisMetrics struct {
	functionsTotal    metric.Int64Counter
	candidatesTotal   metric.Int64Counter
	impureTotal       metric.Int64Counter
	droppedTotal      metric.Int64Counter
	inversePairsTotal metric.Int64Counter
	runDuration       metric.Float64Histogram
}

// AnalysisStats summarizes one analysis run.
type AnalysisStats struct {
	Functions    int64
	Candidates   int64
	Dropped      int64
	Impure       int64
	InversePairs int64
	Duration     time.Duration
}

// NewAnalysisMetrics creates the analysis instruments on meter.
func NewAnalysisMetrics(meter metric.Meter) (*AnalysisMetrics, error) {
	builder := newMetricBuilder(meter)

	analysis := &AnalysisMetrics{
		functionsTotal:    builder.counter(metricFunctionsTotal, "Functions analyzed", "{function}"),
		candidatesTotal:   builder.counter(metricCandidatesTotal, "Functions kept as candidates", "{function}"),
		impureTotal:       builder.counter(metricImpureTotal, "Functions classified impure", "{function}"),
		droppedTotal:      builder.counter(metricDroppedTotal, "Pure functions below the score threshold", "{function}"),
		inversePairsTotal: builder.counter(metricInversePairsTotal, "Inverse function pairs found", "{pair}"),
		runDuration: builder.histogram(metricRunDuration, "Analysis run duration in seconds", "s",
			durationBucketBoundaries...),
	}

	if builder.err != nil {
		return nil, builder.err
	}

	return analysis, nil
}

// RecordRun records a finished run. Nil receivers are no-ops.
func (analysis *AnalysisMetrics) RecordRun(ctx context.Context, stats AnalysisStats) {
	if analysis == nil {
		return
	}

	analysis.functionsTotal.Add(ctx, stats.Functions)
	analysis.candidatesTotal.Add(ctx, stats.Candidates)
	analysis.impureTotal.Add(ctx, stats.Impure)
	analysis.droppedTotal.Add(ctx, stats.Dropped)
	analysis.inversePairsTotal.Add(ctx, stats.InversePairs)

	outcome := "candidates"
	if stats.Candidates == 0 {
		outcome = "empty"
	}

	analysis.runDuration.Record(ctx, stats.Duration.Seconds(),
		metric.WithAttributes(attribute.String(attrOutcome, outcome)))
}
