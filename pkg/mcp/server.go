// Package mcp implements a Model Context Protocol server exposing propwise
// analysis as MCP tools over stdio transport.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Oeditus/propwise/pkg/alg/lru"
	"github.com/Oeditus/propwise/pkg/analyzers/analyze"
	"github.com/Oeditus/propwise/pkg/elixir"
	"github.com/Oeditus/propwise/pkg/observability"
	"github.com/Oeditus/propwise/pkg/report"
	"github.com/Oeditus/propwise/pkg/rules"
)

const (
	serverName = "propwise"

	// toolCount is the number of registered tools.
	toolCount = 2

	// DefaultMinScore applies when a call does not set min_score.
	DefaultMinScore = 3

	// DefaultCacheEntries bounds the analyze result cache.
	DefaultCacheEntries = 64
)

// ServerDeps holds injectable dependencies for the MCP server.
// Zero-value fields use production defaults.
type ServerDeps struct {
	// Logger is an optional structured logger. Nil uses slog default.
	Logger *slog.Logger

	// Metrics is an optional RED metrics recorder. Nil disables per-tool metrics.
	Metrics *observability.REDMetrics

	// AnalysisMetrics records per-run analysis counters. Nil disables them.
	AnalysisMetrics *observability.AnalysisMetrics

	// Tracer is an optional OTel tracer for per-tool-call spans. Nil disables tracing.
	Tracer trace.Tracer

	// Rules is the active rule set. Nil selects the defaults.
	Rules *rules.Set

	// MinScore is the threshold used when a call omits min_score. Nil
	// selects DefaultMinScore.
	MinScore *int

	// CacheEntries bounds the analyze result cache. Zero selects
	// DefaultCacheEntries; negative disables caching.
	CacheEntries int

	// Version is reported as the server implementation version.
	Version string
}

// Server wraps the MCP SDK server with propwise tool registrations.
type Server struct {
	inner    *mcpsdk.Server
	mu       sync.RWMutex
	tools    []string
	metrics  *observability.REDMetrics
	tracer   trace.Tracer
	analyzer *analyze.Analyzer
	parser   *elixir.Parser
	minScore int
	cache    *lru.Cache[uint64, report.Document]
	logger   *slog.Logger
}

// NewServer creates a new MCP server with all propwise tools registered.
func NewServer(deps ServerDeps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	version := deps.Version
	if version == "" {
		version = "dev"
	}

	minScore := DefaultMinScore
	if deps.MinScore != nil {
		minScore = *deps.MinScore
	}

	var cache *lru.Cache[uint64, report.Document]

	switch {
	case deps.CacheEntries == 0:
		cache = lru.New[uint64, report.Document](DefaultCacheEntries)
	case deps.CacheEntries > 0:
		cache = lru.New[uint64, report.Document](deps.CacheEntries)
	}

	inner := mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    serverName,
			Version: version,
		},
		&mcpsdk.ServerOptions{Logger: logger},
	)

	srv := &Server{
		inner:   inner,
		tools:   make([]string, 0, toolCount),
		metrics: deps.Metrics,
		tracer:  deps.Tracer,
		analyzer: analyze.New(deps.Rules, analyze.Config{
			Logger:  logger,
			Tracer:  deps.Tracer,
			Metrics: deps.AnalysisMetrics,
		}),
		parser:   elixir.NewParser(),
		minScore: minScore,
		cache:    cache,
		logger:   logger,
	}

	srv.registerTools()

	return srv
}

// ListToolNames returns the sorted names of all registered tools.
func (srv *Server) ListToolNames() []string {
	srv.mu.RLock()
	defer srv.mu.RUnlock()

	names := make([]string, len(srv.tools))
	copy(names, srv.tools)
	sort.Strings(names)

	return names
}

// Run starts the MCP server on stdio transport. It blocks until the context
// is canceled or the connection closes.
func (srv *Server) Run(ctx context.Context) error {
	return srv.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport starts the MCP server on the given transport. It blocks
// until the context is canceled or the connection closes.
func (srv *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	err := srv.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

// CacheStats reports the analyze result cache counters. It returns the zero
// value when caching is disabled.
func (srv *Server) CacheStats() lru.Stats {
	if srv.cache == nil {
		return lru.Stats{}
	}

	return srv.cache.Stats()
}

func (srv *Server) registerTools() {
	mcpsdk.AddTool(srv.inner, &mcpsdk.Tool{
		Name:        ToolNameAnalyze,
		Description: analyzeToolDescription,
	}, withToolLogAttrs(ToolNameAnalyze,
		withMetrics(srv.metrics, ToolNameAnalyze, withTracing(srv.tracer, ToolNameAnalyze, srv.handleAnalyze))))

	srv.trackTool(ToolNameAnalyze)

	mcpsdk.AddTool(srv.inner, &mcpsdk.Tool{
		Name:        ToolNameRules,
		Description: rulesToolDescription,
	}, withToolLogAttrs(ToolNameRules,
		withMetrics(srv.metrics, ToolNameRules, withTracing(srv.tracer, ToolNameRules, srv.handleRules))))

	srv.trackTool(ToolNameRules)
}

// mcpSpanPrefix is the prefix for MCP tool span and metric op names.
const mcpSpanPrefix = "mcp."

// traceIDMetaKey is the key of the trace_id line appended to sampled results.
const traceIDMetaKey = "trace_id"

type toolHandler[Input any] func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error)

// withTracing wraps a tool handler with one span per invocation and appends
// the trace_id to the result when the span is sampled.
func withTracing[Input any](tracer trace.Tracer, toolName string, handler toolHandler[Input]) toolHandler[Input] {
	if tracer == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, mcpSpanPrefix+toolName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", toolName)),
		)
		defer span.End()

		result, output, err := handler(ctx, req, input)

		if err != nil || (result != nil && result.IsError) {
			span.SetStatus(codes.Error, "tool call failed")
		}

		spanCtx := span.SpanContext()
		if spanCtx.IsSampled() && result != nil {
			result.Content = append(result.Content,
				&mcpsdk.TextContent{Text: traceIDMetaKey + "=" + spanCtx.TraceID().String()})
		}

		return result, output, err
	}
}

// withToolLogAttrs tags every record logged during a call with the tool name.
func withToolLogAttrs[Input any](toolName string, handler toolHandler[Input]) toolHandler[Input] {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		return handler(observability.WithLogAttrs(ctx, slog.String("tool", toolName)), req, input)
	}
}

// withMetrics wraps a tool handler with RED metrics.
func withMetrics[Input any](
	metrics *observability.REDMetrics, toolName string, handler toolHandler[Input],
) toolHandler[Input] {
	if metrics == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		start := time.Now()

		decInflight := metrics.TrackInflight(ctx, mcpSpanPrefix+toolName)
		defer decInflight()

		result, output, err := handler(ctx, req, input)

		status := observability.StatusOK
		if err != nil || (result != nil && result.IsError) {
			status = observability.StatusError
		}

		metrics.RecordRequest(ctx, mcpSpanPrefix+toolName, status, time.Since(start))

		return result, output, err
	}
}

func (srv *Server) trackTool(name string) {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	srv.tools = append(srv.tools, name)
}

// Tool description constants.
const (
	analyzeToolDescription = "Find property-based testing candidates in Elixir code. " +
		"Accepts inline source with one or more defmodule blocks and returns scored " +
		"candidates, suggested properties and inverse function pairs."

	rulesToolDescription = "Return the active rule set: side-effect rules, pattern keywords " +
		"and inverse naming conventions."
)
