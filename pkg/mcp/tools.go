package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Oeditus/propwise/pkg/report"
)

// Tool name constants.
const (
	ToolNameAnalyze = "propwise_analyze"
	ToolNameRules   = "propwise_rules"
)

// Input limits.
const (
	// MaxCodeInputBytes is the maximum allowed size for inline code input (1 MB).
	MaxCodeInputBytes = 1 << 20

	defaultSnippetPath = "snippet.ex"
)

// Sentinel errors for tool input validation.
var (
	// ErrEmptyCode indicates the code parameter is empty.
	ErrEmptyCode = errors.New("code parameter is required and must not be empty")
	// ErrCodeTooLarge indicates the code input exceeds the size limit.
	ErrCodeTooLarge = errors.New("code input exceeds maximum size")
	// ErrNegativeMinScore indicates a negative min_score.
	ErrNegativeMinScore = errors.New("min_score must not be negative")
)

// AnalyzeInput is the input schema for the propwise_analyze tool.
type AnalyzeInput struct {
	Code     string `json:"code"                jsonschema:"Elixir source with one or more defmodule blocks"`
	Path     string `json:"path,omitempty"      jsonschema:"file name reported in locations (default: snippet.ex)"`
	MinScore *int   `json:"min_score,omitempty" jsonschema:"minimum score a candidate needs (default: 3)"`
}

// RulesInput is the input schema for the propwise_rules tool.
type RulesInput struct{}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

func validateAnalyzeInput(input AnalyzeInput) error {
	if input.Code == "" {
		return ErrEmptyCode
	}

	if len(input.Code) > MaxCodeInputBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrCodeTooLarge, len(input.Code), MaxCodeInputBytes)
	}

	if input.MinScore != nil && *input.MinScore < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeMinScore, *input.MinScore)
	}

	return nil
}

// handleAnalyze processes propwise_analyze tool calls.
func (srv *Server) handleAnalyze(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input AnalyzeInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validateAnalyzeInput(input)
	if err != nil {
		return errorResult(err)
	}

	path := input.Path
	if path == "" {
		path = defaultSnippetPath
	}

	minScore := srv.minScore
	if input.MinScore != nil {
		minScore = *input.MinScore
	}

	key := analyzeCacheKey(path, minScore, input.Code)

	if srv.cache != nil {
		if doc, ok := srv.cache.Get(key); ok {
			srv.logger.DebugContext(ctx, "mcp analyze cache hit", "path", path)

			return jsonResult(doc)
		}
	}

	fns, err := srv.parser.Parse(path, []byte(input.Code))
	if err != nil {
		return errorResult(fmt.Errorf("parse code: %w", err))
	}

	result, err := srv.analyzer.AnalyzeProject(ctx, fns, minScore)
	if err != nil {
		return errorResult(err)
	}

	srv.logger.DebugContext(ctx, "mcp analyze",
		"path", path, "functions", result.TotalFunctions, "candidates", result.CandidatesCount)

	doc := report.NewDocument(result)

	if srv.cache != nil {
		srv.cache.Put(key, doc)
	}

	return jsonResult(doc)
}

// analyzeCacheKey hashes every input that affects the analyze result. The
// rule set is fixed for the server lifetime and is not part of the key.
func analyzeCacheKey(path string, minScore int, code string) uint64 {
	digest := xxhash.New()

	for _, part := range []string{path, strconv.Itoa(minScore), code} {
		_, _ = digest.WriteString(part) //nolint:errcheck // xxhash writes never fail.
		_, _ = digest.WriteString("\x00") //nolint:errcheck // xxhash writes never fail.
	}

	return digest.Sum64()
}

// handleRules processes propwise_rules tool calls.
func (srv *Server) handleRules(
	_ context.Context,
	_ *mcpsdk.CallToolRequest,
	_ RulesInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return jsonResult(srv.analyzer.Rules())
}
