// Package rules holds the immutable rule configuration of the analysis
// engine: side-effect call rules, bare-function rules, pattern keyword sets
// and inverse naming conventions.
package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Wildcard matches any operation or arity.
const Wildcard = "*"

// AnyArity is the Arity value that matches every argument count.
const AnyArity Arity = -1

var errBadArity = errors.New("arity must be a non-negative integer or \"*\"")

// Arity is an exact argument count or AnyArity.
type Arity int

// Matches reports whether the rule arity accepts argument count n.
func (arity Arity) Matches(n int) bool {
	return arity == AnyArity || int(arity) == n
}

func (arity Arity) String() string {
	if arity == AnyArity {
		return Wildcard
	}

	return strconv.Itoa(int(arity))
}

// UnmarshalYAML accepts an integer or "*".
func (arity *Arity) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := parseArity(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}

	*arity = parsed

	return nil
}

// MarshalYAML writes "*" or the integer.
func (arity Arity) MarshalYAML() (any, error) {
	if arity == AnyArity {
		return Wildcard, nil
	}

	return int(arity), nil
}

// MarshalJSON writes "*" or the integer.
func (arity Arity) MarshalJSON() ([]byte, error) {
	if arity == AnyArity {
		return json.Marshal(Wildcard)
	}

	return json.Marshal(int(arity))
}

func parseArity(raw string) (Arity, error) {
	if raw == Wildcard {
		return AnyArity, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", errBadArity, raw)
	}

	return Arity(n), nil
}

// CallRule flags qualified calls. Operation may be Wildcard.
type CallRule struct {
	Qualifier string `json:"qualifier" yaml:"qualifier"`
	Operation string `json:"operation" yaml:"operation"`
	Arity     Arity  `json:"arity"     yaml:"arity"`
}

// Matches reports whether the rule matches a call site.
func (rule CallRule) Matches(qualifier, operation string, arity int) bool {
	return rule.Qualifier == qualifier &&
		(rule.Operation == Wildcard || rule.Operation == operation) &&
		rule.Arity.Matches(arity)
}

func (rule CallRule) String() string {
	return rule.Qualifier + "." + rule.Operation + "/" + rule.Arity.String()
}

// BareRule flags unqualified calls by exact name and arity.
type BareRule struct {
	Name  string `json:"name"  yaml:"name"`
	Arity int    `json:"arity" yaml:"arity"`
}

func (rule BareRule) String() string {
	return rule.Name + "/" + strconv.Itoa(rule.Arity)
}

// SideEffects is the configurable part of the purity rules.
type SideEffects struct {
	Calls []CallRule `json:"calls" yaml:"calls"`
	Bare  []BareRule `json:"bare"  yaml:"bare"`
}

// Keywords are the vocabularies of the pattern detectors.
type Keywords struct {
	CollectionOps        []string `json:"collection_ops"        yaml:"collection_ops"`
	ValidationPrefixes   []string `json:"validation_prefixes"   yaml:"validation_prefixes"`
	ValidationSubstrings []string `json:"validation_substrings" yaml:"validation_substrings"`
	CheckPrefixes        []string `json:"check_prefixes"        yaml:"check_prefixes"`
	BooleanVocabulary    []string `json:"boolean_vocabulary"    yaml:"boolean_vocabulary"`
	Algebraic            []string `json:"algebraic"             yaml:"algebraic"`
	EncoderDecoder       []string `json:"encoder_decoder"       yaml:"encoder_decoder"`
	ParserNames          []string `json:"parser_names"          yaml:"parser_names"`
	StringParsing        []string `json:"string_parsing"        yaml:"string_parsing"`
	NumericFunctions     []string `json:"numeric_functions"     yaml:"numeric_functions"`
	ArithmeticOperators  []string `json:"arithmetic_operators"  yaml:"arithmetic_operators"`
}

// Convention is a forward/inverse naming pair such as encode/decode.
type Convention struct {
	Forward string `json:"forward" yaml:"forward"`
	Inverse string `json:"inverse" yaml:"inverse"`
}

func (convention Convention) String() string {
	return convention.Forward + "/" + convention.Inverse
}

// Set is a complete rule configuration. Treat it as read-only once built.
type Set struct {
	SideEffects SideEffects  `json:"side_effects"        yaml:"side_effects"`
	Patterns    Keywords     `json:"patterns"            yaml:"patterns"`
	Conventions []Convention `json:"inverse_conventions" yaml:"inverse_conventions"`
}

// Purity returns the indexed purity rules of the set.
func (set *Set) Purity() *Purity {
	return NewPurity(set.SideEffects)
}

// Purity indexes side-effect rules for lookup during classification.
type Purity struct {
	byQualifier map[string][]CallRule
	bare        map[BareRule]struct{}
}

// NewPurity builds the lookup index for a rule list.
func NewPurity(effects SideEffects) *Purity {
	purity := &Purity{
		byQualifier: make(map[string][]CallRule, len(effects.Calls)),
		bare:        make(map[BareRule]struct{}, len(effects.Bare)),
	}

	for _, rule := range effects.Calls {
		purity.byQualifier[rule.Qualifier] = append(purity.byQualifier[rule.Qualifier], rule)
	}

	for _, rule := range effects.Bare {
		purity.bare[rule] = struct{}{}
	}

	return purity
}

// MatchCall returns the first rule matching a qualified call site.
func (purity *Purity) MatchCall(qualifier, operation string, arity int) (CallRule, bool) {
	for _, rule := range purity.byQualifier[qualifier] {
		if rule.Matches(qualifier, operation, arity) {
			return rule, true
		}
	}

	return CallRule{}, false
}

// MatchBare reports whether an unqualified call is a side effect.
func (purity *Purity) MatchBare(name string, arity int) bool {
	_, found := purity.bare[BareRule{Name: name, Arity: arity}]

	return found
}
