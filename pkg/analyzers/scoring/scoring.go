// Package scoring turns a purity verdict and detected patterns into a
// property-based-testing suitability score.
package scoring

import (
	"github.com/Oeditus/propwise/pkg/analyzers/patterns"
	"github.com/Oeditus/propwise/pkg/analyzers/purity"
	"github.com/Oeditus/propwise/pkg/source"
	"github.com/Oeditus/propwise/pkg/syntax"
)

// Score weights.
const (
	BasePure          = 1
	PerPattern        = 2
	MultiPatternBonus = 2
	ComplexityBonus   = 1
	PublicBonus       = 1

	// MultiPatternThreshold is the match count that earns MultiPatternBonus.
	MultiPatternThreshold = 2
	// ComplexLineThreshold is the rendered line count above which a body is
	// complex.
	ComplexLineThreshold = 3
)

// Breakdown itemizes a score. Total is zero for impure functions even
// though the other fields describe what a pure body would have earned.
type Breakdown struct {
	Pure         bool `json:"pure"          yaml:"pure"`
	Base         int  `json:"base"          yaml:"base"`
	Patterns     int  `json:"patterns"      yaml:"patterns"`
	MultiPattern int  `json:"multi_pattern" yaml:"multi_pattern"`
	Complexity   int  `json:"complexity"    yaml:"complexity"`
	Visibility   int  `json:"visibility"    yaml:"visibility"`
	Total        int  `json:"total"         yaml:"total"`
}

// Explain returns the itemized score of fn.
func Explain(verdict purity.Verdict, matches []patterns.Match, fn source.Function) Breakdown {
	breakdown := Breakdown{
		Pure:     verdict.Pure(),
		Patterns: PerPattern * len(matches),
	}

	if len(matches) >= MultiPatternThreshold {
		breakdown.MultiPattern = MultiPatternBonus
	}

	if IsComplex(fn.Body) {
		breakdown.Complexity = ComplexityBonus
	}

	if fn.IsPublic() {
		breakdown.Visibility = PublicBonus
	}

	if !breakdown.Pure {
		return breakdown
	}

	breakdown.Base = BasePure
	breakdown.Total = breakdown.Base + breakdown.Patterns + breakdown.MultiPattern +
		breakdown.Complexity + breakdown.Visibility

	return breakdown
}

// Score returns 0 for impure functions, otherwise
// 1 + 2*|matches| + multi-pattern bonus + complexity + visibility.
func Score(verdict purity.Verdict, matches []patterns.Match, fn source.Function) int {
	return Explain(verdict, matches, fn).Total
}

// IsComplex reports whether the rendered body spans more than
// ComplexLineThreshold lines or is a top-level case, cond or with.
func IsComplex(body *syntax.Node) bool {
	if body == nil {
		return false
	}

	if body.Kind == syntax.KindConditional {
		switch body.Token {
		case "case", "cond", "with":
			return true
		}
	}

	return syntax.LineCount(body) > ComplexLineThreshold
}
