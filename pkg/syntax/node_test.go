package syntax //nolint:testpackage // Tests need access to internal helpers.

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTestTree() *Node {
	// Tree structure:
	//        block
	//       /     \
	//   binding   remote(File.write)
	//   /    \        |
	//  x    call(f)   x
	//         |
	//         y
	return NewBlock(
		NewBinding(NewIdentifier("x"), NewCall("f", NewIdentifier("y"))),
		NewRemoteCall("File", "write", NewIdentifier("x")),
	)
}

func TestVisitPreOrder(t *testing.T) {
	t.Parallel()

	var tokens []string

	makeTestTree().VisitPreOrder(func(curr *Node) {
		tokens = append(tokens, string(curr.Kind)+":"+curr.Token)
	})

	assert.Equal(t, []string{
		"Block:",
		"Binding:=",
		"Identifier:x",
		"Call:f",
		"Identifier:y",
		"RemoteCall:write",
		"Identifier:x",
	}, tokens)
}

func TestVisitPreOrderSkipsNilChildren(t *testing.T) {
	t.Parallel()

	tree := New(KindOpaque, "", nil, NewLiteral("1"), nil)

	assert.Equal(t, 2, tree.Count())

	var nilNode *Node

	assert.Equal(t, 0, nilNode.Count())
	assert.Nil(t, nilNode.Find(func(*Node) bool { return true }))
}

func TestFind(t *testing.T) {
	t.Parallel()

	tree := makeTestTree()

	tests := []struct {
		name      string
		predicate func(*Node) bool
		expected  int
	}{
		{"identifiers", func(n *Node) bool { return n.Kind == KindIdentifier }, 3},
		{"calls", func(n *Node) bool { return n.Is(KindCall, KindRemoteCall) }, 2},
		{"none", func(n *Node) bool { return n.Kind == KindReceive }, 0},
		{"all", func(*Node) bool { return true }, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Len(t, tree.Find(tt.predicate), tt.expected)
		})
	}
}

func TestSplitQualifier(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"Ecto", "Repo"}, SplitQualifier("Ecto.Repo"))
	assert.Equal(t, []string{":ets"}, SplitQualifier(":ets"))
	assert.Nil(t, SplitQualifier(""))

	call := NewRemoteCall("Mix.Project", "config")
	assert.Equal(t, "Mix.Project", call.QualifierString())
	assert.Equal(t, 0, call.Arity())
}

func TestClausePartsAndSplitHeads(t *testing.T) {
	t.Parallel()

	clause := NewClause(ClauseArrow, NewLiteral(":ok"), NewIdentifier("a"), NewIdentifier("b"))
	patterns, body := clause.ClauseParts()

	require.Len(t, patterns, 2)
	assert.Equal(t, ":ok", body.Token)

	cond := NewConditional("case", []*Node{NewIdentifier("x")}, clause)
	heads, clauses := cond.SplitHeads()

	require.Len(t, heads, 1)
	require.Len(t, clauses, 1)
	assert.Equal(t, "x", heads[0].Token)

	empty := New(KindClause, ClauseArrow)
	patterns, body = empty.ClauseParts()

	assert.Nil(t, patterns)
	assert.Nil(t, body)
}

func TestToMapAndString(t *testing.T) {
	t.Parallel()

	call := NewRemoteCall(":ets", "insert", NewIdentifier("t")).WithPos(3, 5)

	asMap := call.ToMap()
	assert.Equal(t, "RemoteCall", asMap["kind"])
	assert.Equal(t, ":ets", asMap["qualifier"])
	assert.Equal(t, uint(3), asMap["line"])
	assert.Len(t, asMap["children"], 1)

	assert.Equal(t, "Node{Kind:RemoteCall,Qualifier::ets,Token:insert,Children:1}", call.String())
	assert.Equal(t, uint(3), call.Line())

	var nilNode *Node

	assert.Equal(t, "nil", nilNode.String())
	assert.Equal(t, uint(0), nilNode.Line())
	assert.False(t, nilNode.Is(KindBlock))
}
