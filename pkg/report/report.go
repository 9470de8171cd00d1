// Package report renders analysis results as text, JSON or YAML, and
// validates JSON reports against the embedded report schema.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Oeditus/propwise/pkg/analyzers/analyze"
	"github.com/Oeditus/propwise/pkg/analyzers/patterns"
	"github.com/Oeditus/propwise/pkg/analyzers/scoring"
)

// Format is an output format name.
type Format string

// Supported formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

const yamlIndent = 2

// ErrUnknownFormat is returned for unsupported format names.
var ErrUnknownFormat = errors.New("unknown report format")

// Formats lists every supported format.
func Formats() []Format {
	return []Format{FormatText, FormatJSON, FormatYAML}
}

// ParseFormat resolves a format name. Empty selects text.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Options controls rendering.
type Options struct {
	Format  Format
	NoColor bool
	// MaxSuggestions caps suggestions per candidate in text output. Zero
	// prints all.
	MaxSuggestions int
}

// Document is the serialized report shape shared by JSON and YAML.
type Document struct {
	Summary      Summary     `json:"summary"       yaml:"summary"`
	Candidates   []Entry     `json:"candidates"    yaml:"candidates"`
	InversePairs []PairEntry `json:"inverse_pairs" yaml:"inverse_pairs"`
}

// Summary carries the run counters.
type Summary struct {
	TotalFunctions int            `json:"total_functions" yaml:"total_functions"`
	Candidates     int            `json:"candidates"      yaml:"candidates"`
	Dropped        int            `json:"dropped"         yaml:"dropped"`
	Impure         int            `json:"impure"          yaml:"impure"`
	MinScore       int            `json:"min_score"       yaml:"min_score"`
	PatternStats   map[string]int `json:"pattern_stats"   yaml:"pattern_stats"`
}

// Entry is one candidate function.
type Entry struct {
	ID          string            `json:"id"          yaml:"id"`
	Function    string            `json:"function"    yaml:"function"`
	Module      string            `json:"module"      yaml:"module"`
	Name        string            `json:"name"        yaml:"name"`
	Arity       int               `json:"arity"       yaml:"arity"`
	File        string            `json:"file"        yaml:"file"`
	Line        uint              `json:"line"        yaml:"line"`
	Visibility  string            `json:"visibility"  yaml:"visibility"`
	Purity      string            `json:"purity"      yaml:"purity"`
	Effects     []string          `json:"effects"     yaml:"effects"`
	Score       int               `json:"score"       yaml:"score"`
	Priority    Priority          `json:"priority"    yaml:"priority"`
	Breakdown   scoring.Breakdown `json:"breakdown"   yaml:"breakdown"`
	Patterns    []patterns.Match  `json:"patterns"    yaml:"patterns"`
	Suggestions []string          `json:"suggestions" yaml:"suggestions"`
}

// PairEntry is one inverse function pair.
type PairEntry struct {
	Module     string `json:"module"     yaml:"module"`
	Forward    string `json:"forward"    yaml:"forward"`
	Inverse    string `json:"inverse"    yaml:"inverse"`
	Convention string `json:"convention" yaml:"convention"`
	Suggestion string `json:"suggestion" yaml:"suggestion"`
}

// NewDocument converts a result into its serialized form. Collections are
// never nil so empty reports still carry arrays.
func NewDocument(result *analyze.Result) Document {
	doc := Document{
		Summary: Summary{
			TotalFunctions: result.TotalFunctions,
			Candidates:     result.CandidatesCount,
			Dropped:        result.DroppedCount,
			Impure:         result.ImpureCount,
			MinScore:       result.MinScore,
			PatternStats:   make(map[string]int, len(result.PatternStats)),
		},
		Candidates:   make([]Entry, 0, len(result.Candidates)),
		InversePairs: make([]PairEntry, 0, len(result.InversePairs)),
	}

	for kind, count := range result.PatternStats {
		doc.Summary.PatternStats[string(kind)] = count
	}

	for _, candidate := range result.Candidates {
		fn := candidate.Function

		entry := Entry{
			ID:          fn.ID(),
			Function:    fn.QualifiedName(),
			Module:      fn.Module,
			Name:        fn.Name,
			Arity:       fn.Arity,
			File:        fn.File,
			Line:        fn.Line,
			Visibility:  string(fn.Visibility),
			Purity:      candidate.Verdict.Status(),
			Effects:     make([]string, 0, len(candidate.Verdict.Effects)),
			Score:       candidate.Score,
			Priority:    PriorityOf(candidate.Score),
			Breakdown:   candidate.Breakdown,
			Patterns:    candidate.Matches,
			Suggestions: candidate.Suggestions,
		}

		for _, effect := range candidate.Verdict.Effects {
			entry.Effects = append(entry.Effects, effect.String())
		}

		if entry.Patterns == nil {
			entry.Patterns = []patterns.Match{}
		}

		if entry.Suggestions == nil {
			entry.Suggestions = []string{}
		}

		doc.Candidates = append(doc.Candidates, entry)
	}

	for _, pair := range result.InversePairs {
		doc.InversePairs = append(doc.InversePairs, PairEntry{
			Module:     pair.Module,
			Forward:    pair.Forward.QualifiedName(),
			Inverse:    pair.Inverse.QualifiedName(),
			Convention: pair.Convention.Forward + "/" + pair.Convention.Inverse,
			Suggestion: pair.Suggestion,
		})
	}

	return doc
}

// Write renders result to writer in the requested format.
func Write(writer io.Writer, result *analyze.Result, opts Options) error {
	switch opts.Format {
	case "", FormatText:
		return writeText(writer, result, opts)
	case FormatJSON:
		return writeJSON(writer, NewDocument(result))
	case FormatYAML:
		return writeYAML(writer, NewDocument(result))
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
	}
}

func writeJSON(writer io.Writer, doc Document) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("encode json report: %w", err)
	}

	return nil
}

func writeYAML(writer io.Writer, doc Document) error {
	encoder := yaml.NewEncoder(writer)
	encoder.SetIndent(yamlIndent)

	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("encode yaml report: %w", err)
	}

	if err := encoder.Close(); err != nil {
		return fmt.Errorf("flush yaml report: %w", err)
	}

	return nil
}
