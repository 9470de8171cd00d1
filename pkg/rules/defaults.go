package rules

// Namespaces whose every call is a side effect.
//
//nolint:gochecknoglobals // Immutable default tables.
var defaultWildcardNamespaces = []string{
	"IO", "File", "Logger", "GenServer", "Agent", "Task", "Registry",
	"Repo", "Ecto.Repo", "HTTPoison", "Req", "Tesla", "Finch",
	"System", "Port", "Node",
	":os", ":ets", ":dets", ":mnesia", ":persistent_term",
	"Supervisor", "DynamicSupervisor",
}

//nolint:gochecknoglobals // Immutable default tables.
var defaultNarrowRules = []CallRule{
	{Qualifier: "Process", Operation: "send", Arity: AnyArity},
	{Qualifier: "Process", Operation: "exit", Arity: AnyArity},
	{Qualifier: "Process", Operation: "flag", Arity: AnyArity},
	{Qualifier: "Process", Operation: "put", Arity: AnyArity},
	{Qualifier: "Process", Operation: "delete", Arity: AnyArity},
	{Qualifier: ":erlang", Operation: "send", Arity: AnyArity},
	{Qualifier: "Application", Operation: "put_env", Arity: AnyArity},
}

//nolint:gochecknoglobals // Immutable default tables.
var defaultBareRules = []BareRule{
	{Name: "send", Arity: 2},
	{Name: "spawn", Arity: 1},
	{Name: "spawn", Arity: 3},
	{Name: "put_in", Arity: 3},
	{Name: "update_in", Arity: 3},
	{Name: "get_and_update_in", Arity: 3},
}

// DefaultSideEffects returns the built-in side-effect rules.
func DefaultSideEffects() SideEffects {
	calls := make([]CallRule, 0, len(defaultWildcardNamespaces)+len(defaultNarrowRules))

	for _, namespace := range defaultWildcardNamespaces {
		calls = append(calls, CallRule{Qualifier: namespace, Operation: Wildcard, Arity: AnyArity})
	}

	calls = append(calls, defaultNarrowRules...)

	return SideEffects{
		Calls: calls,
		Bare:  append([]BareRule(nil), defaultBareRules...),
	}
}

// DefaultKeywords returns the built-in detector vocabularies.
func DefaultKeywords() Keywords {
	return Keywords{
		CollectionOps: []string{
			"map", "filter", "sort", "sort_by", "group_by", "reduce", "flat_map",
			"chunk_every", "chunk_by", "uniq", "reject", "zip",
		},
		ValidationPrefixes:   []string{"valid"},
		ValidationSubstrings: []string{"validate"},
		CheckPrefixes:        []string{"check"},
		BooleanVocabulary: []string{
			"true", "false", "and", "or", "not", "==", "!=", "===", "<=", ">=", "<", ">", "is_",
		},
		Algebraic: []string{
			"merge", "concat", "combine", "union", "intersect", "compose", "append", "add", "multiply",
		},
		EncoderDecoder: []string{"encode", "decode", "serialize", "deserialize", "to_json", "from_json"},
		ParserNames:    []string{"parse"},
		StringParsing:  []string{"String.split", "Regex.run", "Regex.scan", "Regex.match?", "=~"},
		NumericFunctions: []string{
			"div(", "rem(", "abs(", "round(", "floor(", "ceil(", ":math.sqrt", ":math.pow", "Float.round",
		},
		ArithmeticOperators: []string{" + ", " - ", " * ", " / "},
	}
}

// DefaultConventions returns the built-in inverse naming conventions, in
// matching order.
func DefaultConventions() []Convention {
	return []Convention{
		{Forward: "encode", Inverse: "decode"},
		{Forward: "serialize", Inverse: "deserialize"},
		{Forward: "parse", Inverse: "generate"},
		{Forward: "parse", Inverse: "format"},
		{Forward: "compress", Inverse: "decompress"},
		{Forward: "encrypt", Inverse: "decrypt"},
		{Forward: "to_", Inverse: "from_"},
		{Forward: "pack", Inverse: "unpack"},
		{Forward: "marshal", Inverse: "unmarshal"},
	}
}

// Defaults returns a fresh copy of the built-in rule set.
func Defaults() *Set {
	return &Set{
		SideEffects: DefaultSideEffects(),
		Patterns:    DefaultKeywords(),
		Conventions: DefaultConventions(),
	}
}
