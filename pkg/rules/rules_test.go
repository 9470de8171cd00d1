package rules_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Oeditus/propwise/pkg/rules"
)

func TestArityMatches(t *testing.T) {
	t.Parallel()

	assert.True(t, rules.AnyArity.Matches(0))
	assert.True(t, rules.AnyArity.Matches(7))
	assert.True(t, rules.Arity(2).Matches(2))
	assert.False(t, rules.Arity(2).Matches(3))
	assert.Equal(t, "*", rules.AnyArity.String())
	assert.Equal(t, "3", rules.Arity(3).String())
}

func TestCallRuleMatches(t *testing.T) {
	t.Parallel()

	rule := rules.CallRule{Qualifier: "Process", Operation: "send", Arity: rules.AnyArity}

	assert.True(t, rule.Matches("Process", "send", 3))
	assert.False(t, rule.Matches("Process", "alive?", 1))
	assert.False(t, rule.Matches("Proc", "send", 3))
	assert.Equal(t, "Process.send/*", rule.String())
}

func TestDefaultWildcardNamespaces(t *testing.T) {
	t.Parallel()

	purity := rules.Defaults().Purity()

	samples := []struct {
		operation string
		arity     int
	}{
		{"anything", 0},
		{"write!", 2},
		{"zzz_unlisted", 5},
	}

	namespaces := []string{
		"IO", "File", "Logger", "GenServer", "Agent", "Task", "Registry",
		"Repo", "Ecto.Repo", "HTTPoison", "Req", "Tesla", "Finch",
		"System", "Port", "Node",
		":os", ":ets", ":dets", ":mnesia", ":persistent_term",
		"Supervisor", "DynamicSupervisor",
	}

	for _, namespace := range namespaces {
		for _, sample := range samples {
			_, found := purity.MatchCall(namespace, sample.operation, sample.arity)
			assert.True(t, found, "%s.%s/%d", namespace, sample.operation, sample.arity)
		}
	}
}

func TestDefaultNarrowRules(t *testing.T) {
	t.Parallel()

	purity := rules.Defaults().Purity()

	tests := []struct {
		qualifier string
		operation string
		arity     int
		want      bool
	}{
		{"Process", "send", 3, true},
		{"Process", "put", 2, true},
		{"Process", "delete", 1, true},
		{"Process", "alive?", 1, false},
		{":erlang", "send", 2, true},
		{":erlang", "phash2", 1, false},
		{"Application", "put_env", 3, true},
		{"Application", "get_env", 2, false},
		{"Enum", "map", 2, false},
		{"String", "upcase", 1, false},
	}

	for _, tt := range tests {
		_, found := purity.MatchCall(tt.qualifier, tt.operation, tt.arity)
		assert.Equal(t, tt.want, found, "%s.%s/%d", tt.qualifier, tt.operation, tt.arity)
	}
}

func TestDefaultBareRules(t *testing.T) {
	t.Parallel()

	purity := rules.Defaults().Purity()

	assert.True(t, purity.MatchBare("send", 2))
	assert.False(t, purity.MatchBare("send", 3))
	assert.True(t, purity.MatchBare("spawn", 1))
	assert.True(t, purity.MatchBare("spawn", 3))
	assert.False(t, purity.MatchBare("spawn", 2))
	assert.True(t, purity.MatchBare("put_in", 3))
	assert.True(t, purity.MatchBare("update_in", 3))
	assert.True(t, purity.MatchBare("get_and_update_in", 3))
	assert.False(t, purity.MatchBare("length", 1))
}

func TestDefaultsAreFreshCopies(t *testing.T) {
	t.Parallel()

	first := rules.Defaults()
	first.SideEffects.Calls[0].Qualifier = "Mutated"
	first.Patterns.CollectionOps[0] = "mutated"

	second := rules.Defaults()
	assert.Equal(t, "IO", second.SideEffects.Calls[0].Qualifier)
	assert.Equal(t, "map", second.Patterns.CollectionOps[0])
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	mode, err := rules.ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, rules.ModeExtend, mode)

	mode, err = rules.ParseMode(" Replace ")
	require.NoError(t, err)
	assert.Equal(t, rules.ModeReplace, mode)

	_, err = rules.ParseMode("merge")
	require.ErrorIs(t, err, rules.ErrUnknownMode)
}

func TestParseExtend(t *testing.T) {
	t.Parallel()

	content := []byte(`
side_effects:
  calls:
    - {qualifier: MyApp.Mailer, operation: deliver, arity: "*"}
    - {qualifier: IO, operation: "*", arity: "*"}
  bare:
    - {name: log_event, arity: 1}
patterns:
  algebraic: [merge, fold]
inverse_conventions:
  - {forward: wrap, inverse: unwrap}
`)

	set, err := rules.Parse(content, rules.ModeExtend)
	require.NoError(t, err)

	defaults := rules.Defaults()

	assert.Len(t, set.SideEffects.Calls, len(defaults.SideEffects.Calls)+1)
	assert.Equal(t, "MyApp.Mailer.deliver/*", set.SideEffects.Calls[len(set.SideEffects.Calls)-1].String())
	assert.Len(t, set.SideEffects.Bare, len(defaults.SideEffects.Bare)+1)
	assert.Equal(t, "fold", set.Patterns.Algebraic[len(set.Patterns.Algebraic)-1])
	assert.Len(t, set.Patterns.Algebraic, len(defaults.Patterns.Algebraic)+1)
	assert.Equal(t, defaults.Patterns.CollectionOps, set.Patterns.CollectionOps)
	assert.Equal(t, rules.Convention{Forward: "wrap", Inverse: "unwrap"}, set.Conventions[len(set.Conventions)-1])

	purity := set.Purity()
	_, found := purity.MatchCall("MyApp.Mailer", "deliver", 2)
	assert.True(t, found)
	assert.True(t, purity.MatchBare("log_event", 1))
}

func TestParseReplace(t *testing.T) {
	t.Parallel()

	content := []byte(`
mode: replace
side_effects:
  calls:
    - {qualifier: Repo, operation: insert, arity: 1}
patterns:
  collection_ops: []
`)

	set, err := rules.Parse(content, rules.ModeExtend)
	require.NoError(t, err)

	defaults := rules.Defaults()

	assert.Equal(t, []rules.CallRule{{Qualifier: "Repo", Operation: "insert", Arity: 1}}, set.SideEffects.Calls)
	assert.Equal(t, defaults.SideEffects.Bare, set.SideEffects.Bare)
	assert.Empty(t, set.Patterns.CollectionOps)
	assert.Equal(t, defaults.Patterns.Algebraic, set.Patterns.Algebraic)
	assert.Equal(t, defaults.Conventions, set.Conventions)

	purity := set.Purity()
	_, found := purity.MatchCall("Repo", "insert", 2)
	assert.False(t, found)
	_, found = purity.MatchCall("IO", "puts", 1)
	assert.False(t, found)
}

func TestParseDefaultModeApplies(t *testing.T) {
	t.Parallel()

	content := []byte("inverse_conventions:\n  - {forward: open, inverse: close}\n")

	set, err := rules.Parse(content, rules.ModeReplace)
	require.NoError(t, err)

	assert.Equal(t, []rules.Convention{{Forward: "open", Inverse: "close"}}, set.Conventions)
}

func TestParseEmptyIsDefaults(t *testing.T) {
	t.Parallel()

	set, err := rules.Parse([]byte("# nothing here\n"), rules.ModeReplace)
	require.NoError(t, err)

	if diff := cmp.Diff(rules.Defaults(), set); diff != "" {
		t.Errorf("empty file changed defaults (-want +got):\n%s", diff)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"unknown section", "effects: []\n"},
		{"bad mode", "mode: merge\n"},
		{"missing arity", "side_effects:\n  calls:\n    - {qualifier: IO, operation: puts}\n"},
		{"negative arity", "side_effects:\n  bare:\n    - {name: send, arity: -1}\n"},
		{"string bare arity", "side_effects:\n  bare:\n    - {name: send, arity: \"*\"}\n"},
		{"unknown keyword list", "patterns:\n  colors: [red]\n"},
		{"not a mapping", "- just\n- a list\n"},
		{"malformed yaml", "side_effects: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := rules.Parse([]byte(tt.content), rules.ModeExtend)
			require.ErrorIs(t, err, rules.ErrInvalidRules)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	set, err := rules.Load("", rules.ModeExtend)
	require.NoError(t, err)
	assert.Equal(t, rules.Defaults(), set)

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("patterns:\n  parser_names: [tokenize]\n"), 0o600))

	set, err = rules.Load(path, rules.ModeExtend)
	require.NoError(t, err)
	assert.Equal(t, []string{"parse", "tokenize"}, set.Patterns.ParserNames)

	_, err = rules.Load(filepath.Join(t.TempDir(), "missing.yaml"), rules.ModeExtend)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestMarshalRoundTrip(t *testing.T) {
	t.Parallel()

	out, err := rules.Defaults().Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(out), "qualifier: IO")

	set, err := rules.Parse(out, rules.ModeReplace)
	require.NoError(t, err)

	if diff := cmp.Diff(rules.Defaults(), set); diff != "" {
		t.Errorf("marshalled defaults did not reload (-want +got):\n%s", diff)
	}
}
