package rules

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Mode selects how a rules file combines with the defaults.
type Mode string

// Merge modes.
const (
	// ModeExtend adds the file's entries to the defaults.
	ModeExtend Mode = "extend"
	// ModeReplace substitutes every list the file declares.
	ModeReplace Mode = "replace"
)

// Sentinel errors for rule loading.
var (
	ErrInvalidRules = errors.New("invalid rules file")
	ErrUnknownMode  = errors.New("unknown rules mode")
)

// Schema is the JSON schema rule files are validated against.
//
//go:embed rules.schema.json
var Schema []byte

type ruleFile struct {
	Mode Mode `yaml:"mode"`
	Set  `yaml:",inline"`
}

// ParseMode converts a configuration string into a Mode. Empty means extend.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeExtend:
		return ModeExtend, nil
	case ModeReplace:
		return ModeReplace, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, raw)
	}
}

// Load reads a YAML rules file and combines it with the defaults. The mode
// declared in the file wins over defaultMode. An empty path returns the
// defaults.
func Load(path string, defaultMode Mode) (*Set, error) {
	if path == "" {
		return Defaults(), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}

	set, err := Parse(content, defaultMode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return set, nil
}

// Parse validates YAML rules content against Schema and combines it with
// the defaults.
func Parse(content []byte, defaultMode Mode) (*Set, error) {
	var document any

	if err := yaml.Unmarshal(content, &document); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRules, err)
	}

	if document == nil {
		return Defaults(), nil
	}

	if err := validateDocument(document); err != nil {
		return nil, err
	}

	var file ruleFile

	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRules, err)
	}

	mode := file.Mode
	if mode == "" {
		mode = defaultMode
	}

	switch mode {
	case "", ModeExtend:
		return extend(Defaults(), &file.Set), nil
	case ModeReplace:
		return replace(Defaults(), &file.Set), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

func validateDocument(document any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(Schema),
		gojsonschema.NewGoLoader(document),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRules, err)
	}

	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))

	for _, resultErr := range result.Errors() {
		problems = append(problems, resultErr.Field()+": "+resultErr.Description())
	}

	return fmt.Errorf("%w: %s", ErrInvalidRules, strings.Join(problems, "; "))
}

func extend(base, overlay *Set) *Set {
	base.SideEffects.Calls = union(base.SideEffects.Calls, overlay.SideEffects.Calls)
	base.SideEffects.Bare = union(base.SideEffects.Bare, overlay.SideEffects.Bare)
	base.Conventions = union(base.Conventions, overlay.Conventions)

	forEachKeywordList(&base.Patterns, &overlay.Patterns, func(dst, src *[]string) {
		*dst = union(*dst, *src)
	})

	return base
}

// replace substitutes every list the overlay declares, including empty ones.
func replace(base, overlay *Set) *Set {
	if overlay.SideEffects.Calls != nil {
		base.SideEffects.Calls = overlay.SideEffects.Calls
	}

	if overlay.SideEffects.Bare != nil {
		base.SideEffects.Bare = overlay.SideEffects.Bare
	}

	if overlay.Conventions != nil {
		base.Conventions = overlay.Conventions
	}

	forEachKeywordList(&base.Patterns, &overlay.Patterns, func(dst, src *[]string) {
		if *src != nil {
			*dst = *src
		}
	})

	return base
}

func forEachKeywordList(dst, src *Keywords, apply func(dst, src *[]string)) {
	apply(&dst.CollectionOps, &src.CollectionOps)
	apply(&dst.ValidationPrefixes, &src.ValidationPrefixes)
	apply(&dst.ValidationSubstrings, &src.ValidationSubstrings)
	apply(&dst.CheckPrefixes, &src.CheckPrefixes)
	apply(&dst.BooleanVocabulary, &src.BooleanVocabulary)
	apply(&dst.Algebraic, &src.Algebraic)
	apply(&dst.EncoderDecoder, &src.EncoderDecoder)
	apply(&dst.ParserNames, &src.ParserNames)
	apply(&dst.StringParsing, &src.StringParsing)
	apply(&dst.NumericFunctions, &src.NumericFunctions)
	apply(&dst.ArithmeticOperators, &src.ArithmeticOperators)
}

// union appends the entries of extra missing from base, keeping order.
func union[T comparable](base, extra []T) []T {
	result := slices.Clone(base)

	for _, item := range extra {
		if !slices.Contains(result, item) {
			result = append(result, item)
		}
	}

	return result
}

// Marshal renders the set as YAML.
func (set *Set) Marshal() ([]byte, error) {
	out, err := yaml.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("marshal rules: %w", err)
	}

	return out, nil
}
