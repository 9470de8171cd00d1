package patterns_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Oeditus/propwise/pkg/analyzers/patterns"
	"github.com/Oeditus/propwise/pkg/elixir"
	"github.com/Oeditus/propwise/pkg/rules"
	"github.com/Oeditus/propwise/pkg/source"
)

func function(t *testing.T, name, code string) source.Function {
	t.Helper()

	body, err := elixir.NewParser().ParseExpression(code)
	require.NoError(t, err)

	return source.Function{Module: "M", Name: name, Arity: 1, Body: body, Visibility: source.Public}
}

func reasonFor(found []patterns.Match, kind patterns.Kind) string {
	for _, match := range found {
		if match.Kind == kind {
			return match.Reason
		}
	}

	return ""
}

func TestDetectByKind(t *testing.T) {
	t.Parallel()

	detector := patterns.NewDetector(rules.DefaultKeywords())

	tests := []struct {
		name   string
		fnName string
		code   string
		kind   patterns.Kind
		reason string
	}{
		{"enum", "run", "Enum.map(list, fn x -> x end)", patterns.KindCollection, patterns.ReasonEnumOperation},
		{"enum sort_by", "run", "Enum.sort_by(list, fn x -> x end)", patterns.KindCollection, patterns.ReasonEnumOperation},
		{"stream", "run", "Stream.filter(s, fn x -> x end)", patterns.KindCollection, patterns.ReasonStreamOperation},
		{"comprehension", "run", "for x <- xs, do: x", patterns.KindCollection, patterns.ReasonComprehension},
		{"enum outside vocabulary", "run", "Enum.count(list)", patterns.KindCollection, ""},
		{"pipeline", "run", "x |> String.trim()", patterns.KindTransformation, patterns.ReasonPipeline},
		{"with", "run", "with {:ok, a} <- fetch(x), do: a", patterns.KindTransformation, patterns.ReasonPipeline},
		{"struct", "run", "%User{name: n}", patterns.KindTransformation, patterns.ReasonStruct},
		{"map literal", "run", "%{a: x}", patterns.KindTransformation, patterns.ReasonMap},
		{"map module", "run", "Map.put(m, :k, x)", patterns.KindTransformation, patterns.ReasonMap},
		{"valid prefix", "valid_email?", "x", patterns.KindValidation, patterns.ReasonValidationName},
		{"validate substring", "do_validate", "x", patterns.KindValidation, patterns.ReasonValidationName},
		{"check prefix", "check_age", "x", patterns.KindValidation, patterns.ReasonCheckingName},
		{"comparison", "positive?", "x > 0", patterns.KindValidation, patterns.ReasonBooleanPredicate},
		{"boolean word", "both", "a and b", patterns.KindValidation, patterns.ReasonBooleanPredicate},
		{"guard function", "int", "is_integer(x)", patterns.KindValidation, patterns.ReasonBooleanPredicate},
		{"pipe is not comparison", "run", "x |> f()", patterns.KindValidation, ""},
		{"end is not and", "run", "fn x -> x end", patterns.KindValidation, ""},
		{"algebraic", "merge_maps", "x", patterns.KindAlgebraic, patterns.ReasonAlgebraic},
		{"encoder", "to_json", "x", patterns.KindEncoderDecoder, patterns.ReasonEncoding},
		{"decoder", "decode_token", "x", patterns.KindEncoderDecoder, patterns.ReasonEncoding},
		{"parser name", "parse_int", "x", patterns.KindParser, patterns.ReasonParserName},
		{"string split", "fields", `String.split(line, ",")`, patterns.KindParser, patterns.ReasonStringParsing},
		{"regex operator", "matches", `line =~ ~r/a/`, patterns.KindParser, patterns.ReasonStringParsing},
		{"numeric call", "half", "div(x, 2)", patterns.KindNumeric, patterns.ReasonNumeric},
		{"erlang math", "root", ":math.sqrt(x)", patterns.KindNumeric, patterns.ReasonNumeric},
		{"arithmetic", "sum", "a + b", patterns.KindNumeric, patterns.ReasonArithmetic},
		{"remove is not rem", "drop", "remove(x)", patterns.KindNumeric, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			found := detector.Detect(function(t, tt.fnName, tt.code))

			assert.Equal(t, tt.reason, reasonFor(found, tt.kind))
		})
	}
}

func TestDetectDouble(t *testing.T) {
	t.Parallel()

	detector := patterns.NewDetector(rules.DefaultKeywords())

	found := detector.Detect(function(t, "double", "x * 2"))

	assert.Equal(t, []patterns.Match{{Kind: patterns.KindNumeric, Reason: patterns.ReasonArithmetic}}, found)
}

func TestDetectOk(t *testing.T) {
	t.Parallel()

	detector := patterns.NewDetector(rules.DefaultKeywords())

	found := detector.Detect(function(t, "ok?", "x > 0"))

	assert.Equal(t, []patterns.Match{{Kind: patterns.KindValidation, Reason: patterns.ReasonBooleanPredicate}}, found)
}

func TestDetectOrderAndUniqueness(t *testing.T) {
	t.Parallel()

	detector := patterns.NewDetector(rules.DefaultKeywords())

	fn := function(t, "parse_and_sum", `line
|> String.split(",")
|> Enum.map(fn s -> String.to_integer(s) + 1 end)
|> Enum.reduce(0, fn x, acc -> x + acc end)`)

	found := detector.Detect(fn)

	kinds := make([]patterns.Kind, 0, len(found))
	for _, match := range found {
		kinds = append(kinds, match.Kind)
	}

	assert.Equal(t, []patterns.Kind{
		patterns.KindCollection,
		patterns.KindTransformation,
		patterns.KindParser,
		patterns.KindNumeric,
	}, kinds)
	assert.Equal(t, patterns.ReasonParserName, found[2].Reason)
}

func TestDetectIdempotent(t *testing.T) {
	t.Parallel()

	detector := patterns.NewDetector(rules.DefaultKeywords())

	fns := []source.Function{
		function(t, "encode", "Enum.map(xs, fn x -> x * 2 end)"),
		function(t, "valid?", "x > 0 and is_integer(x)"),
		function(t, "merge", "%{a | b: 1}"),
	}

	for _, fn := range fns {
		first := detector.Detect(fn)
		second := detector.Detect(fn)

		assert.Equal(t, first, second, fn.Name)
		assert.NotEmpty(t, first, fn.Name)
	}
}

func TestDetectEmptyVocabularies(t *testing.T) {
	t.Parallel()

	detector := patterns.NewDetector(rules.Keywords{})

	assert.Empty(t, detector.Detect(function(t, "valid_merge_parse", "Enum.map(xs, f) + 1")))

	found := detector.Detect(function(t, "squares", "for x <- xs, do: x"))
	assert.Equal(t, []patterns.Match{{Kind: patterns.KindCollection, Reason: patterns.ReasonComprehension}}, found)
}

func TestDetectCustomVocabulary(t *testing.T) {
	t.Parallel()

	keywords := rules.DefaultKeywords()
	keywords.Algebraic = append(keywords.Algebraic, "fold")
	keywords.CollectionOps = []string{"count"}

	detector := patterns.NewDetector(keywords)

	assert.Equal(t, patterns.ReasonAlgebraic, reasonFor(detector.Detect(function(t, "fold_all", "x")), patterns.KindAlgebraic))
	assert.Equal(t, patterns.ReasonEnumOperation,
		reasonFor(detector.Detect(function(t, "n", "Enum.count(xs)")), patterns.KindCollection))
	assert.Empty(t, reasonFor(detector.Detect(function(t, "n", "Enum.map(xs, f)")), patterns.KindCollection))
}

func TestKinds(t *testing.T) {
	t.Parallel()

	assert.Len(t, patterns.Kinds(), 7)
	assert.Equal(t, patterns.KindCollection, patterns.Kinds()[0])
	assert.Equal(t, patterns.KindNumeric, patterns.Kinds()[6])
}
