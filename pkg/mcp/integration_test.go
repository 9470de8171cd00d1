package mcp_test

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Oeditus/propwise/pkg/mcp"
	"github.com/Oeditus/propwise/pkg/observability"
)

const codecSource = `defmodule Shop.Codec do
  def encode(term), do: term |> :erlang.term_to_binary()

  def decode(bin), do: :erlang.binary_to_term(bin)
end
`

// connect starts srv on an in-memory transport and returns a client session.
// The server stops when the test ends.
func connect(t *testing.T, srv *mcp.Server) (context.Context, *mcpsdk.ClientSession) {
	t.Helper()

	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)

	serverDone := make(chan error, 1)

	go func() {
		serverDone <- srv.RunWithTransport(ctx, serverTransport)
	}()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = session.Close()

		cancel()
		<-serverDone
	})

	return ctx, session
}

func quietDeps() mcp.ServerDeps {
	return mcp.ServerDeps{Logger: slog.New(slog.DiscardHandler)}
}

func TestNewServer_ToolsRegistered(t *testing.T) {
	t.Parallel()

	srv := mcp.NewServer(quietDeps())

	assert.Equal(t, []string{mcp.ToolNameAnalyze, mcp.ToolNameRules}, srv.ListToolNames())
}

func TestMCPServer_InMemoryTransport_ToolsList(t *testing.T) {
	t.Parallel()

	ctx, session := connect(t, mcp.NewServer(quietDeps()))

	toolsResult, err := session.ListTools(ctx, nil)
	require.NoError(t, err)

	toolNames := make([]string, 0, len(toolsResult.Tools))
	for _, tool := range toolsResult.Tools {
		toolNames = append(toolNames, tool.Name)
		assert.NotNil(t, tool.InputSchema, "tool %s missing input schema", tool.Name)
	}

	assert.ElementsMatch(t, []string{"propwise_analyze", "propwise_rules"}, toolNames)
}

func TestMCPServer_InMemoryTransport_CallAnalyze(t *testing.T) {
	t.Parallel()

	ctx, session := connect(t, mcp.NewServer(quietDeps()))

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      mcp.ToolNameAnalyze,
		Arguments: map[string]any{"code": codecSource},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	require.NotEmpty(t, result.Content)

	text, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "Shop.Codec.encode/1")
	assert.Contains(t, text.Text, "Round-trip property")
}

func TestMCPServer_InMemoryTransport_CallAnalyze_Error(t *testing.T) {
	t.Parallel()

	ctx, session := connect(t, mcp.NewServer(quietDeps()))

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      mcp.ToolNameAnalyze,
		Arguments: map[string]any{"code": ""},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestMCPServer_InMemoryTransport_CallRules(t *testing.T) {
	t.Parallel()

	ctx, session := connect(t, mcp.NewServer(quietDeps()))

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      mcp.ToolNameRules,
		Arguments: map[string]any{},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	require.NotEmpty(t, result.Content)

	text, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "inverse_conventions")
}

func TestMCPServer_TracingAndMetrics(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	t.Cleanup(func() { _ = tracerProvider.Shutdown(context.Background()) })

	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	red, err := observability.NewREDMetrics(meter)
	require.NoError(t, err)

	analysisMetrics, err := observability.NewAnalysisMetrics(meter)
	require.NoError(t, err)

	deps := quietDeps()
	deps.Tracer = tracerProvider.Tracer("test")
	deps.Metrics = red
	deps.AnalysisMetrics = analysisMetrics

	ctx, session := connect(t, mcp.NewServer(deps))

	result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      mcp.ToolNameAnalyze,
		Arguments: map[string]any{"code": codecSource},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	last, ok := result.Content[len(result.Content)-1].(*mcpsdk.TextContent)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(last.Text, "trace_id="))

	spanNames := make([]string, 0)
	for _, span := range exporter.GetSpans() {
		spanNames = append(spanNames, span.Name)
	}

	assert.Contains(t, spanNames, "mcp.propwise_analyze")
	assert.Contains(t, spanNames, "propwise.analyze")

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	names := make(map[string]bool)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			names[m.Name] = true
		}
	}

	assert.True(t, names["propwise.requests.total"])
	assert.True(t, names["propwise.analysis.functions.total"])
}
