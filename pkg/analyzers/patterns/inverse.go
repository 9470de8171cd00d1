package patterns

import (
	"fmt"
	"strings"

	"github.com/Oeditus/propwise/pkg/rules"
	"github.com/Oeditus/propwise/pkg/source"
)

// InversePair is a forward/inverse function pair in one module whose
// composition should be the identity.
type InversePair struct {
	Module     string           `json:"module"     yaml:"module"`
	Forward    source.Function  `json:"forward"    yaml:"forward"`
	Inverse    source.Function  `json:"inverse"    yaml:"inverse"`
	Convention rules.Convention `json:"convention" yaml:"convention"`
	Suggestion string           `json:"suggestion" yaml:"suggestion"`
}

// FindInversePairs reports, per module and convention, every ordered pair
// of distinct functions where the first name contains the forward
// substring but not the inverse one, and the second name contains the
// inverse substring. Clauses of one name/arity count as one function.
// Modules keep their first-appearance order.
func FindInversePairs(fns []source.Function, conventions []rules.Convention) []InversePair {
	var pairs []InversePair

	for _, group := range GroupByModule(fns) {
		pairs = append(pairs, modulePairs(group, conventions)...)
	}

	return pairs
}

// ModuleGroup is the distinct functions of one module, in source order.
type ModuleGroup struct {
	Module    string
	Functions []source.Function
}

// GroupByModule groups fns by module, keeping the first clause of every
// name/arity.
func GroupByModule(fns []source.Function) []ModuleGroup {
	index := make(map[string]int)
	seen := make(map[string]struct{}, len(fns))

	var groups []ModuleGroup

	for _, fn := range fns {
		key := fn.QualifiedName()
		if _, dup := seen[key]; dup {
			continue
		}

		seen[key] = struct{}{}

		pos, found := index[fn.Module]
		if !found {
			pos = len(groups)
			index[fn.Module] = pos
			groups = append(groups, ModuleGroup{Module: fn.Module})
		}

		groups[pos].Functions = append(groups[pos].Functions, fn)
	}

	return groups
}

func modulePairs(group ModuleGroup, conventions []rules.Convention) []InversePair {
	var pairs []InversePair

	for _, convention := range conventions {
		for fwdIdx, forward := range group.Functions {
			if !strings.Contains(forward.Name, convention.Forward) {
				continue
			}

			for invIdx, inverse := range group.Functions {
				if invIdx == fwdIdx || !strings.Contains(inverse.Name, convention.Inverse) {
					continue
				}

				pairs = append(pairs, InversePair{
					Module:     group.Module,
					Forward:    forward,
					Inverse:    inverse,
					Convention: convention,
					Suggestion: roundTripSuggestion(forward, inverse),
				})
			}
		}
	}

	return pairs
}

func roundTripSuggestion(forward, inverse source.Function) string {
	return fmt.Sprintf("Round-trip property: %s(%s(x)) == x for all valid x",
		inverse.Reference(), forward.Reference())
}
