package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRequestsTotal    = "propwise.requests.total"
	metricRequestDuration  = "propwise.request.duration.seconds"
	metricErrorsTotal      = "propwise.errors.total"
	metricInflightRequests = "propwise.inflight.requests"

	attrOp     = "op"
	attrStatus = "status"

	// StatusOK and StatusError label request outcomes.
	StatusOK    = "ok"
	StatusError = "error"
)

// durationBucketBoundaries covers 1ms to 60s: single-snippet MCP calls up to
// whole-project runs.
//
//nolint:gochecknoglobals // Read-only bucket layout.
var durationBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// metricBuilder keeps the first instrument creation error so a set of
// instruments can be built with one check.
type metricBuilder struct {
	meter metric.Meter
	err   error
}

func newMetricBuilder(meter metric.Meter) *metricBuilder {
	return &metricBuilder{meter: meter}
}

func (builder *metricBuilder) counter(name, desc, unit string) metric.Int64Counter {
	instrument, err := builder.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	builder.setErr(name, err)

	return instrument
}

func (builder *metricBuilder) histogram(name, desc, unit string, bounds ...float64) metric.Float64Histogram {
	opts := []metric.Float64HistogramOption{metric.WithDescription(desc), metric.WithUnit(unit)}
	if len(bounds) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(bounds...))
	}

	instrument, err := builder.meter.Float64Histogram(name, opts...)
	builder.setErr(name, err)

	return instrument
}

func (builder *metricBuilder) upDownCounter(name, desc, unit string) metric.Int64UpDownCounter {
	instrument, err := builder.meter.Int64UpDownCounter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	builder.setErr(name, err)

	return instrument
}

func (builder *metricBuilder) setErr(name string, err error) {
	if err != nil && builder.err == nil {
		builder.err = fmt.Errorf("create %s: %w", name, err)
	}
}

// REDMetrics holds Rate, Error and Duration instruments for request
// handlers such as MCP tools.
type REDMetrics struct {
	requestsTotal    metric.Int64Counter
	requestDuration  metric.Float64Histogram
	errorsTotal      metric.Int64Counter
	inflightRequests metric.Int64UpDownCounter
}

// NewREDMetrics creates the RED instruments on meter.
func NewREDMetrics(meter metric.Meter) (*REDMetrics, error) {
	builder := newMetricBuilder(meter)

	red := &REDMetrics{
		requestsTotal: builder.counter(metricRequestsTotal, "Total number of requests", "{request}"),
		requestDuration: builder.histogram(metricRequestDuration, "Request duration in seconds", "s",
			durationBucketBoundaries...),
		errorsTotal:      builder.counter(metricErrorsTotal, "Total number of failed requests", "{error}"),
		inflightRequests: builder.upDownCounter(metricInflightRequests, "Requests in flight", "{request}"),
	}

	if builder.err != nil {
		return nil, builder.err
	}

	return red, nil
}

// RecordRequest records one finished request. Nil receivers are no-ops.
func (red *REDMetrics) RecordRequest(ctx context.Context, op, status string, duration time.Duration) {
	if red == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	)

	red.requestsTotal.Add(ctx, 1, attrs)
	red.requestDuration.Record(ctx, duration.Seconds(), attrs)

	if status == StatusError {
		red.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOp, op)))
	}
}

// TrackInflight increments the in-flight gauge and returns its decrement.
func (red *REDMetrics) TrackInflight(ctx context.Context, op string) func() {
	if red == nil {
		return func() {}
	}

	attrs := metric.WithAttributes(attribute.String(attrOp, op))
	red.inflightRequests.Add(ctx, 1, attrs)

	return func() {
		red.inflightRequests.Add(ctx, -1, attrs)
	}
}
