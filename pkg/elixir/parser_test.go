package elixir_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Oeditus/propwise/pkg/analyzers/purity"
	"github.com/Oeditus/propwise/pkg/elixir"
	"github.com/Oeditus/propwise/pkg/rules"
	"github.com/Oeditus/propwise/pkg/source"
	"github.com/Oeditus/propwise/pkg/syntax"
)

const mathModule = `defmodule MyApp.Math do
  @moduledoc false

  def double(x), do: x * 2

  def save(data, path), do: File.write!(path, data)

  defp ok?(x), do: x > 0

  def classify(n) when is_integer(n) do
    case n do
      0 -> :zero
      _ -> :other
    end
  end

  def zero, do: 0

  def head(x \\ 1)

  defmodule Inner do
    def inner(list) do
      list
      |> Enum.map(fn x -> x + 1 end)
      |> Enum.filter(&(&1 > 2))
    end
  end
end
`

func TestParseFunctions(t *testing.T) {
	t.Parallel()

	fns, err := elixir.NewParser().Parse("lib/math.ex", []byte(mathModule))
	require.NoError(t, err)

	type summary struct {
		module     string
		name       string
		arity      int
		line       uint
		visibility source.Visibility
	}

	got := make([]summary, 0, len(fns))
	for _, fn := range fns {
		got = append(got, summary{fn.Module, fn.Name, fn.Arity, fn.Line, fn.Visibility})
	}

	assert.Equal(t, []summary{
		{"MyApp.Math", "double", 1, 4, source.Public},
		{"MyApp.Math", "save", 2, 6, source.Public},
		{"MyApp.Math", "ok?", 1, 8, source.Private},
		{"MyApp.Math", "classify", 1, 10, source.Public},
		{"MyApp.Math", "zero", 0, 17, source.Public},
		{"MyApp.Math.Inner", "inner", 1, 22, source.Public},
	}, got)

	for _, fn := range fns {
		assert.Equal(t, "lib/math.ex", fn.File)
		assert.NotNil(t, fn.Body, fn.Name)
	}
}

func TestParseBodies(t *testing.T) {
	t.Parallel()

	fns, err := elixir.NewParser().Parse("lib/math.ex", []byte(mathModule))
	require.NoError(t, err)

	byName := make(map[string]source.Function, len(fns))
	for _, fn := range fns {
		byName[fn.Name] = fn
	}

	double := byName["double"]
	assert.Equal(t, []string{"x"}, double.Params)
	assert.Equal(t, syntax.KindOperator, double.Body.Kind)
	assert.Equal(t, "x * 2", syntax.Render(double.Body))

	save := byName["save"]
	require.Equal(t, syntax.KindRemoteCall, save.Body.Kind)
	assert.Equal(t, []string{"File"}, save.Body.Qualifier)
	assert.Equal(t, "write!", save.Body.Token)
	assert.Equal(t, 2, save.Body.Arity())
	assert.Equal(t, uint(6), save.Body.Line())

	classify := byName["classify"]
	require.Equal(t, syntax.KindConditional, classify.Body.Kind)
	assert.Equal(t, "case", classify.Body.Token)
	assert.Equal(t, "case n do\n  0 -> :zero\n  _ -> :other\nend", syntax.Render(classify.Body))

	inner := byName["inner"]
	assert.Equal(t, syntax.KindPipe, inner.Body.Kind)
	assert.Contains(t, syntax.Render(inner.Body), "|> Enum.map(fn x -> x + 1 end)")
}

func TestParseExpression(t *testing.T) {
	t.Parallel()

	parser := elixir.NewParser()

	tests := []struct {
		name     string
		code     string
		kind     syntax.Kind
		rendered string
	}{
		{"bang", "!valid", syntax.KindBang, "!valid"},
		{"erlang call", ":ets.insert(table, {k, v})", syntax.KindRemoteCall, ":ets.insert(table, {k, v})"},
		{"bare call", "send(pid, :msg)", syntax.KindCall, "send(pid, :msg)"},
		{"binding", "y = x + 1", syntax.KindBinding, "y = x + 1"},
		{"struct", "%User{name: n}", syntax.KindStruct, "%User{name: n}"},
		{"map arrow", `%{"a" => 1}`, syntax.KindMap, `%{"a" => 1}`},
		{"list", "[1, 2, 3]", syntax.KindList, "[1, 2, 3]"},
		{"if keyword", "if x, do: 1, else: 2", syntax.KindConditional, "if x do\n  1\nelse\n  2\nend"},
		{"comprehension", "for x <- xs, do: x * x", syntax.KindComprehension, "for x <- xs do\n  x * x\nend"},
		{"block", "a = 1\nb = 2", syntax.KindBlock, "a = 1\nb = 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			node, err := parser.ParseExpression(tt.code)
			require.NoError(t, err)

			assert.Equal(t, tt.kind, node.Kind)
			assert.Equal(t, tt.rendered, syntax.Render(node))
		})
	}
}

func TestParseEmbeddedCode(t *testing.T) {
	t.Parallel()

	parser := elixir.NewParser()
	purityRules := rules.Defaults().Purity()

	tests := []struct {
		name     string
		code     string
		rendered string
		effects  []string
	}{
		{
			"capture block", "Enum.each(xs, &(IO.puts(&1)))",
			"Enum.each(xs, &IO.puts(&1))", []string{"IO.puts/1"},
		},
		{
			"capture expression", "xs |> Enum.map(&(&1 + 1)) |> Enum.sum()",
			"xs |> Enum.map(&(&1 + 1)) |> Enum.sum()", nil,
		},
		{
			"remote capture", "Enum.map(xs, &String.upcase/1)",
			"Enum.map(xs, &String.upcase/1)", nil,
		},
		{
			"impure remote capture", "Enum.each(xs, &IO.inspect/1)",
			"Enum.each(xs, &IO.inspect/1)", []string{"IO.inspect/0"},
		},
		{
			"local capture", "Enum.map(xs, &double/1)",
			"Enum.map(xs, &double/1)", nil,
		},
		{
			"string interpolation", `"hello #{IO.gets("name? ")}"`,
			`"hello #{IO.gets("name? ")}"`, []string{"IO.gets/1"},
		},
		{
			"sigil interpolation", `~s(#{File.read!(path)})`,
			`~s(#{File.read!(path)})`, []string{"File.read!/1"},
		},
		{
			"plain string", `"a + b"`,
			`"a + b"`, nil,
		},
		{
			"bitstring", "<<a::8, rest::binary>>",
			"<<a::8, rest::binary>>", nil,
		},
		{
			"bitstring sized segment", "<<len::16, body::binary-size(len)>>",
			"<<len::16, body::binary-size(len)>>", nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			node, err := parser.ParseExpression(tt.code)
			require.NoError(t, err)

			assert.Equal(t, tt.rendered, syntax.Render(node))

			var effects []string
			for _, effect := range purity.Classify(node, purityRules).Effects {
				effects = append(effects, effect.String())
			}

			assert.Equal(t, tt.effects, effects)
		})
	}
}

func TestParseReceive(t *testing.T) {
	t.Parallel()

	node, err := elixir.NewParser().ParseExpression(`receive do
  {:ok, v} -> v
after
  1000 -> :timeout
end`)
	require.NoError(t, err)

	require.Equal(t, syntax.KindReceive, node.Kind)
	assert.Equal(t, "receive do\n  {:ok, v} -> v\nafter\n  1000 -> :timeout\nend", syntax.Render(node))
}

func TestParseDefimplAndSelf(t *testing.T) {
	t.Parallel()

	code := `defmodule Shape do
  defmodule __MODULE__.Circle do
    def area(r), do: r * r
  end

  defimpl String.Chars do
    def to_string(_), do: "shape"
  end
end

defimpl Inspect, for: Shape do
  def inspect(_, _), do: "#Shape<>"
end
`

	fns, err := elixir.NewParser().Parse("lib/shape.ex", []byte(code))
	require.NoError(t, err)
	require.Len(t, fns, 3)

	assert.Equal(t, "Shape.Circle", fns[0].Module)
	assert.Equal(t, "String.Chars.Shape", fns[1].Module)
	assert.Equal(t, "Inspect.Shape", fns[2].Module)
	assert.Equal(t, 2, fns[2].Arity)
}

func TestParseImplicitTry(t *testing.T) {
	t.Parallel()

	code := `defmodule Safe do
  def read(path) do
    File.read!(path)
  rescue
    _ -> :error
  end
end
`

	fns, err := elixir.NewParser().Parse("lib/safe.ex", []byte(code))
	require.NoError(t, err)
	require.Len(t, fns, 1)

	body := fns[0].Body
	require.Equal(t, syntax.KindCall, body.Kind)
	assert.Equal(t, "try", body.Token)
	assert.Equal(t, "try do\n  File.read!(path)\nrescue\n  _ -> :error\nend", syntax.Render(body))
}

func TestParseSyntaxError(t *testing.T) {
	t.Parallel()

	_, err := elixir.NewParser().Parse("lib/broken.ex", []byte("defmodule Broken do\n  def f(x), do: )\nend\n"))

	require.ErrorIs(t, err, elixir.ErrSyntax)
}

func TestParserConcurrentUse(t *testing.T) {
	t.Parallel()

	parser := elixir.NewParser()

	var wg sync.WaitGroup

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			fns, err := parser.Parse("lib/math.ex", []byte(mathModule))
			assert.NoError(t, err)
			assert.Len(t, fns, 6)
		}()
	}

	wg.Wait()

	assert.Equal(t, elixir.LanguageName, parser.Language())
}
