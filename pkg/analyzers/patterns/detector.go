// Package patterns detects structural patterns that suggest property-based
// tests, and finds inverse function pairs inside a module.
package patterns

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/Oeditus/propwise/pkg/rules"
	"github.com/Oeditus/propwise/pkg/source"
	"github.com/Oeditus/propwise/pkg/syntax"
)

// Kind is a pattern category.
type Kind string

// Pattern kinds, in detector order.
const (
	KindCollection     Kind = "collection_operation"
	KindTransformation Kind = "transformation"
	KindValidation     Kind = "validation"
	KindAlgebraic      Kind = "algebraic"
	KindEncoderDecoder Kind = "encoder_decoder"
	KindParser         Kind = "parser"
	KindNumeric        Kind = "numeric"
)

// Kinds returns every pattern kind in detector order.
func Kinds() []Kind {
	return []Kind{
		KindCollection, KindTransformation, KindValidation, KindAlgebraic,
		KindEncoderDecoder, KindParser, KindNumeric,
	}
}

// Reasons reported by the detectors.
const (
	ReasonEnumOperation    = "Enum collection operation"
	ReasonStreamOperation  = "Stream operation"
	ReasonPipedCollection  = "Piped collection operation"
	ReasonComprehension    = "Comprehension"
	ReasonPipeline         = "Pipeline transformation"
	ReasonStruct           = "Struct transformation"
	ReasonMap              = "Map transformation"
	ReasonValidationName   = "Validation function"
	ReasonCheckingName     = "Checking function"
	ReasonBooleanPredicate = "Boolean predicate"
	ReasonAlgebraic        = "Potentially algebraic operation"
	ReasonEncoding         = "Encoding/decoding function"
	ReasonParserName       = "Parser function"
	ReasonStringParsing    = "String parsing"
	ReasonNumeric          = "Numeric operations"
	ReasonArithmetic       = "Arithmetic operations"
)

// Match is one detected pattern.
type Match struct {
	Kind   Kind   `json:"kind"   yaml:"kind"`
	Reason string `json:"reason" yaml:"reason"`
}

//nolint:gochecknoglobals // Compiled once, read-only.
var (
	comprehensionPattern = regexp.MustCompile(`\bfor\b[^\n]*<-`)
	pipelinePattern      = regexp.MustCompile(`\|>|\bwith\s`)
	structPattern        = regexp.MustCompile(`%[A-Z][\w.]*\{`)
	mapPattern           = regexp.MustCompile(`%\{|\bMap\.`)
)

// Detector runs the seven pattern detectors. It is immutable and safe for
// concurrent use.
type Detector struct {
	keywords rules.Keywords

	enumCall      *regexp.Regexp
	streamCall    *regexp.Regexp
	pipedCall     *regexp.Regexp
	booleans      *regexp.Regexp
	stringParsing *regexp.Regexp
	numericCalls  *regexp.Regexp
	arithmetic    *regexp.Regexp
}

// NewDetector compiles the keyword vocabularies. Empty vocabularies disable
// the rules built from them.
func NewDetector(keywords rules.Keywords) *Detector {
	detector := &Detector{
		keywords:      keywords,
		booleans:      vocabularyPattern(keywords.BooleanVocabulary),
		stringParsing: vocabularyPattern(keywords.StringParsing),
		numericCalls:  vocabularyPattern(keywords.NumericFunctions),
		arithmetic:    vocabularyPattern(keywords.ArithmeticOperators),
	}

	if len(keywords.CollectionOps) > 0 {
		ops := alternation(keywords.CollectionOps)

		detector.enumCall = regexp.MustCompile(`\bEnum\.(?:` + ops + `)\(`)
		detector.streamCall = regexp.MustCompile(`\bStream\.(?:` + ops + `)\(`)
		detector.pipedCall = regexp.MustCompile(`\|>\s*Enum\.(?:` + ops + `)\b`)
	}

	return detector
}

// Detect runs every detector on fn and returns the matches in detector
// order, at most one per kind.
func (detector *Detector) Detect(fn source.Function) []Match {
	text := syntax.Render(fn.Body)

	checks := []func(name, text string) (Match, bool){
		detector.collection,
		detector.transformation,
		detector.validation,
		detector.algebraic,
		detector.encoderDecoder,
		detector.parser,
		detector.numeric,
	}

	var matches []Match

	for _, check := range checks {
		if match, found := check(fn.Name, text); found {
			matches = append(matches, match)
		}
	}

	return matches
}

func (detector *Detector) collection(_, text string) (Match, bool) {
	switch {
	case matches(detector.enumCall, text):
		return Match{KindCollection, ReasonEnumOperation}, true
	case matches(detector.streamCall, text):
		return Match{KindCollection, ReasonStreamOperation}, true
	case matches(detector.pipedCall, text):
		return Match{KindCollection, ReasonPipedCollection}, true
	case comprehensionPattern.MatchString(text):
		return Match{KindCollection, ReasonComprehension}, true
	default:
		return Match{}, false
	}
}

func (detector *Detector) transformation(_, text string) (Match, bool) {
	switch {
	case pipelinePattern.MatchString(text):
		return Match{KindTransformation, ReasonPipeline}, true
	case structPattern.MatchString(text):
		return Match{KindTransformation, ReasonStruct}, true
	case mapPattern.MatchString(text):
		return Match{KindTransformation, ReasonMap}, true
	default:
		return Match{}, false
	}
}

func (detector *Detector) validation(name, text string) (Match, bool) {
	switch {
	case hasAnyPrefix(name, detector.keywords.ValidationPrefixes) ||
		containsAny(name, detector.keywords.ValidationSubstrings):
		return Match{KindValidation, ReasonValidationName}, true
	case hasAnyPrefix(name, detector.keywords.CheckPrefixes):
		return Match{KindValidation, ReasonCheckingName}, true
	case matches(detector.booleans, text):
		return Match{KindValidation, ReasonBooleanPredicate}, true
	default:
		return Match{}, false
	}
}

func (detector *Detector) algebraic(name, _ string) (Match, bool) {
	if containsAny(name, detector.keywords.Algebraic) {
		return Match{KindAlgebraic, ReasonAlgebraic}, true
	}

	return Match{}, false
}

func (detector *Detector) encoderDecoder(name, _ string) (Match, bool) {
	if containsAny(name, detector.keywords.EncoderDecoder) {
		return Match{KindEncoderDecoder, ReasonEncoding}, true
	}

	return Match{}, false
}

func (detector *Detector) parser(name, text string) (Match, bool) {
	switch {
	case containsAny(name, detector.keywords.ParserNames):
		return Match{KindParser, ReasonParserName}, true
	case matches(detector.stringParsing, text):
		return Match{KindParser, ReasonStringParsing}, true
	default:
		return Match{}, false
	}
}

func (detector *Detector) numeric(_, text string) (Match, bool) {
	switch {
	case matches(detector.numericCalls, text):
		return Match{KindNumeric, ReasonNumeric}, true
	case matches(detector.arithmetic, text):
		return Match{KindNumeric, ReasonArithmetic}, true
	default:
		return Match{}, false
	}
}

// vocabularyPattern compiles a keyword list into one regexp. Alphanumeric
// edges get word boundaries; pure operator tokens must stand between
// whitespace, as binary operators do in rendered text.
func vocabularyPattern(words []string) *regexp.Regexp {
	parts := make([]string, 0, len(words))

	for _, word := range words {
		trimmed := strings.TrimSpace(word)
		if trimmed == "" {
			continue
		}

		parts = append(parts, wordPattern(trimmed))
	}

	if len(parts) == 0 {
		return nil
	}

	return regexp.MustCompile(strings.Join(parts, "|"))
}

func wordPattern(word string) string {
	if strings.IndexFunc(word, isWordRune) < 0 {
		return `\s` + regexp.QuoteMeta(word) + `\s`
	}

	pattern := regexp.QuoteMeta(word)

	runes := []rune(word)

	if isWordRune(runes[0]) {
		pattern = `\b` + pattern
	}

	if last := runes[len(runes)-1]; unicode.IsLetter(last) || unicode.IsDigit(last) {
		pattern += `\b`
	}

	return pattern
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func alternation(words []string) string {
	quoted := make([]string, 0, len(words))

	for _, word := range words {
		quoted = append(quoted, regexp.QuoteMeta(word))
	}

	return strings.Join(quoted, "|")
}

func matches(pattern *regexp.Regexp, text string) bool {
	return pattern != nil && pattern.MatchString(text)
}

func hasAnyPrefix(name string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if prefix != "" && strings.HasPrefix(name, prefix) {
			return true
		}
	}

	return false
}

func containsAny(name string, words []string) bool {
	for _, word := range words {
		if word != "" && strings.Contains(name, word) {
			return true
		}
	}

	return false
}
