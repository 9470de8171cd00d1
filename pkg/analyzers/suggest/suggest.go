// Package suggest maps detected patterns to property-test ideas.
package suggest

import (
	"fmt"

	"github.com/Oeditus/propwise/pkg/analyzers/patterns"
	"github.com/Oeditus/propwise/pkg/source"
)

// Templates take the function reference (Module.name) as %[1]s.
//
//nolint:gochecknoglobals // Immutable template table.
var templates = map[patterns.Kind][]string{
	patterns.KindCollection: {
		"Size preservation: length(%[1]s(list)) relates predictably to length(list) for any generated list",
		"Element preservation: every element of %[1]s(list) comes from an element of list",
	},
	patterns.KindTransformation: {
		"Shape: %[1]s(input) returns the expected structure for any valid generated input",
		"Determinism: %[1]s(input) == %[1]s(input) for any generated input",
	},
	patterns.KindValidation: {
		"Valid inputs: %[1]s(x) accepts every value from a valid-input generator",
		"Invalid inputs: %[1]s(x) rejects every value from an invalid-input generator",
	},
	patterns.KindAlgebraic: {
		"Associativity: %[1]s(%[1]s(a, b), c) == %[1]s(a, %[1]s(b, c))",
		"Commutativity: %[1]s(a, b) == %[1]s(b, a)",
		"Identity element: %[1]s(a, identity) == a",
	},
	patterns.KindEncoderDecoder: {
		"Round-trip: decoding the result of %[1]s(x) returns x for any generated x",
		"Malformed input: %[1]s returns an error instead of crashing on arbitrary input",
	},
	patterns.KindParser: {
		"Round-trip: %[1]s parses the formatted form of any generated value back to that value",
		"Robustness: %[1]s never raises on arbitrary generated strings",
	},
	patterns.KindNumeric: {
		"Range: %[1]s(n) stays within its expected bounds for any generated number",
		"Arithmetic laws: %[1]s respects sign and monotonicity for generated numbers",
	},
}

// Generate returns the suggestions for every match, in match order,
// deduplicated by exact text.
func Generate(matches []patterns.Match, fn source.Function) []string {
	reference := fn.Reference()
	seen := make(map[string]struct{})

	var suggestions []string

	for _, match := range matches {
		for _, template := range templates[match.Kind] {
			suggestion := fmt.Sprintf(template, reference)
			if _, dup := seen[suggestion]; dup {
				continue
			}

			seen[suggestion] = struct{}{}
			suggestions = append(suggestions, suggestion)
		}
	}

	return suggestions
}
