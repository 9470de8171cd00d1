package analyze

import (
	"github.com/Oeditus/propwise/pkg/analyzers/patterns"
	"github.com/Oeditus/propwise/pkg/analyzers/purity"
	"github.com/Oeditus/propwise/pkg/analyzers/scoring"
	"github.com/Oeditus/propwise/pkg/source"
)

// Candidate is the full evaluation of one function. It is never mutated
// after construction.
type Candidate struct {
	Function    source.Function   `json:"function"    yaml:"function"`
	Verdict     purity.Verdict    `json:"verdict"     yaml:"verdict"`
	Matches     []patterns.Match  `json:"matches"     yaml:"matches"`
	Score       int               `json:"score"       yaml:"score"`
	Breakdown   scoring.Breakdown `json:"breakdown"   yaml:"breakdown"`
	Suggestions []string          `json:"suggestions" yaml:"suggestions"`
}

// Result is the outcome of one project analysis.
type Result struct {
	TotalFunctions  int `json:"total_functions"  yaml:"total_functions"`
	CandidatesCount int `json:"candidates_count" yaml:"candidates_count"`
	// DroppedCount counts pure functions scoring below MinScore.
	DroppedCount int `json:"dropped_count" yaml:"dropped_count"`
	ImpureCount  int `json:"impure_count"  yaml:"impure_count"`
	MinScore     int `json:"min_score"     yaml:"min_score"`

	// PatternStats counts pattern kinds across the kept candidates.
	PatternStats map[patterns.Kind]int `json:"pattern_stats" yaml:"pattern_stats"`

	Candidates   []Candidate            `json:"candidates"    yaml:"candidates"`
	InversePairs []patterns.InversePair `json:"inverse_pairs" yaml:"inverse_pairs"`
}

// Empty reports whether no function passed the threshold.
func (result *Result) Empty() bool {
	return result.CandidatesCount == 0
}
