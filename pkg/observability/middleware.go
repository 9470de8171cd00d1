package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// MetricsPath is where the Prometheus exposition is served.
	MetricsPath = "/metrics"

	// OpScrape labels scrape requests in the RED instruments.
	OpScrape = "metrics_scrape"

	scrapeSpanName        = "propwise.metrics.scrape"
	metricsHeaderTimeout  = 5 * time.Second
	metricsShutdownBudget = 5 * time.Second
)

// scrapeRecorder remembers the first status written for a scrape.
type scrapeRecorder struct {
	http.ResponseWriter

	status int
}

func (recorder *scrapeRecorder) WriteHeader(code int) {
	if recorder.status == 0 {
		recorder.status = code
	}

	recorder.ResponseWriter.WriteHeader(code)
}

func (recorder *scrapeRecorder) Write(buf []byte) (int, error) {
	if recorder.status == 0 {
		recorder.status = http.StatusOK
	}

	n, err := recorder.ResponseWriter.Write(buf)
	if err != nil {
		return n, fmt.Errorf("write scrape: %w", err)
	}

	return n, nil
}

// InstrumentScrape records each request to next as a span and as one
// OpScrape request on red. Any status of 400 or above counts as an error.
// Nil tracer or red disable the respective signal.
func InstrumentScrape(tracer trace.Tracer, red *REDMetrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ctx := req.Context()

		var span trace.Span
		if tracer != nil {
			ctx, span = tracer.Start(ctx, scrapeSpanName,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attribute.String("http.remote", req.RemoteAddr)),
			)
			defer span.End()
		}

		done := red.TrackInflight(ctx, OpScrape)
		defer done()

		recorder := &scrapeRecorder{ResponseWriter: rw}
		next.ServeHTTP(recorder, req.WithContext(ctx))

		if recorder.status == 0 {
			recorder.status = http.StatusOK
		}

		status := StatusOK
		if recorder.status >= http.StatusBadRequest {
			status = StatusError
		}

		red.RecordRequest(ctx, OpScrape, status, time.Since(start))

		if span != nil {
			span.SetAttributes(attribute.Int("http.status_code", recorder.status))

			if status == StatusError {
				span.SetStatus(codes.Error, http.StatusText(recorder.status))
			}
		}
	})
}

// ErrMetricsDisabled is returned by StartMetricsServer when Providers has no
// Prometheus handler.
var ErrMetricsDisabled = errors.New("prometheus exporter disabled")

// MetricsServer exposes Providers.MetricsHandler over HTTP while the MCP
// server runs.
type MetricsServer struct {
	server   *http.Server
	listener net.Listener
	logger   *slog.Logger
	done     chan struct{}
}

// StartMetricsServer listens on addr and serves the scrape endpoint in the
// background. providers.MetricsHandler must be set.
func StartMetricsServer(ctx context.Context, addr string, providers Providers, red *REDMetrics) (*MetricsServer, error) {
	if providers.MetricsHandler == nil {
		return nil, ErrMetricsDisabled
	}

	listener, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen metrics %s: %w", addr, err)
	}

	logger := providers.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle(MetricsPath, InstrumentScrape(providers.Tracer, red, providers.MetricsHandler))

	srv := &MetricsServer{
		server:   &http.Server{Handler: mux, ReadHeaderTimeout: metricsHeaderTimeout},
		listener: listener,
		logger:   logger,
		done:     make(chan struct{}),
	}

	go srv.serve()

	logger.InfoContext(ctx, "metrics server listening", slog.String("addr", srv.Addr()))

	return srv, nil
}

func (srv *MetricsServer) serve() {
	defer close(srv.done)

	err := srv.server.Serve(srv.listener)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		srv.logger.Error("metrics server failed", "error", err)
	}
}

// Addr returns the bound address, useful when addr asked for port 0.
func (srv *MetricsServer) Addr() string {
	return srv.listener.Addr().String()
}

// Close shuts the server down and waits for the serve loop to exit.
func (srv *MetricsServer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownBudget)
	defer cancel()

	err := srv.server.Shutdown(ctx)

	<-srv.done

	if err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}

	return nil
}
