// Package syntax provides the tagged syntax tree consumed by the analysis
// engine, along with traversal helpers and the canonical text rendering.
package syntax

import (
	"slices"
	"strconv"
	"strings"
)

// Kind identifies the shape of a syntax node.
type Kind string

// Node kinds. Everything not semantically relevant to analysis is Opaque.
const (
	KindBlock         Kind = "Block"
	KindCall          Kind = "Call"
	KindRemoteCall    Kind = "RemoteCall"
	KindConditional   Kind = "Conditional"
	KindClause        Kind = "Clause"
	KindBinding       Kind = "Binding"
	KindOperator      Kind = "Operator"
	KindUnary         Kind = "Unary"
	KindPipe          Kind = "Pipe"
	KindLiteral       Kind = "Literal"
	KindIdentifier    Kind = "Identifier"
	KindReceive       Kind = "Receive"
	KindBang          Kind = "Bang"
	KindList          Kind = "List"
	KindTuple         Kind = "Tuple"
	KindBitstring     Kind = "Bitstring"
	KindMap           Kind = "Map"
	KindStruct        Kind = "Struct"
	KindPair          Kind = "Pair"
	KindComprehension Kind = "Comprehension"
	KindGenerator     Kind = "Generator"
	KindLambda        Kind = "Lambda"
	KindOpaque        Kind = "Opaque"
)

// Clause tokens. Arrow clauses carry patterns; the others mark the sections
// of a do/end construct.
const (
	ClauseArrow  = "->"
	ClauseDo     = "do"
	ClauseElse   = "else"
	ClauseAfter  = "after"
	ClauseRescue = "rescue"
	ClauseCatch  = "catch"
)

// Pair tokens.
const (
	PairKeyword = ":"
	PairArrow   = "=>"
)

// Positions holds the 1-based source location of a node.
type Positions struct {
	Line   uint `json:"line,omitempty"   yaml:"line,omitempty"`
	Column uint `json:"column,omitempty" yaml:"column,omitempty"`
}

// Node is a single syntax tree node.
//
// Fields:
//
//	Kind: node shape (see Kind constants).
//	Token: operation name, operator, literal text, identifier, struct name
//	       or conditional keyword, depending on Kind.
//	Qualifier: namespace path of a RemoteCall (e.g. ["Mix", "Project"]).
//	Pos: source position (optional).
//	Children: ordered child nodes.
//
// Child layout per kind:
//
//	Call, RemoteCall: arguments, followed by section Clauses when the call
//	                  takes a do/end block.
//	Conditional: head expressions followed by Clause nodes.
//	Clause: patterns followed by the body (last child).
//	Binding, Operator, Pipe, Pair, Generator: left, right.
//	Unary, Bang: operand.
//	Receive, Lambda: Clause nodes.
//	Comprehension: generators and filters followed by a "do" Clause.
//	Map, Struct: Pair nodes, or a single "|" Operator of the updated base
//	             and a List of Pairs (%{base | k: v}).
type Node struct {
	Kind      Kind       `json:"kind"                yaml:"kind"`
	Token     string     `json:"token,omitempty"     yaml:"token,omitempty"`
	Qualifier []string   `json:"qualifier,omitempty" yaml:"qualifier,omitempty"`
	Pos       *Positions `json:"pos,omitempty"       yaml:"pos,omitempty"`
	Children  []*Node    `json:"children,omitempty"  yaml:"children,omitempty"`
}

// New creates a node of the given kind, token and children.
func New(kind Kind, token string, children ...*Node) *Node {
	return &Node{Kind: kind, Token: token, Children: children}
}

// NewBlock creates a block of sequential expressions.
func NewBlock(exprs ...*Node) *Node {
	return New(KindBlock, "", exprs...)
}

// NewCall creates an unqualified call.
func NewCall(name string, args ...*Node) *Node {
	return New(KindCall, name, args...)
}

// NewRemoteCall creates a qualified call. The qualifier is a dot-separated
// namespace path such as "Mix.Project" or ":ets".
func NewRemoteCall(qualifier, operation string, args ...*Node) *Node {
	callNode := New(KindRemoteCall, operation, args...)
	callNode.Qualifier = SplitQualifier(qualifier)

	return callNode
}

// NewOperator creates a binary operator node.
func NewOperator(operator string, left, right *Node) *Node {
	return New(KindOperator, operator, left, right)
}

// NewPipe creates a pipeline node (left |> right).
func NewPipe(left, right *Node) *Node {
	return New(KindPipe, "|>", left, right)
}

// NewBinding creates a match binding node (left = right).
func NewBinding(left, right *Node) *Node {
	return New(KindBinding, "=", left, right)
}

// NewLiteral creates a literal node.
func NewLiteral(text string) *Node {
	return New(KindLiteral, text)
}

// NewIdentifier creates an identifier node.
func NewIdentifier(name string) *Node {
	return New(KindIdentifier, name)
}

// NewClause creates a clause. The body is always the last child.
func NewClause(token string, body *Node, patterns ...*Node) *Node {
	children := make([]*Node, 0, len(patterns)+1)
	children = append(children, patterns...)
	children = append(children, body)

	return New(KindClause, token, children...)
}

// NewConditional creates a conditional construct (case, cond, if, unless, with).
func NewConditional(keyword string, heads []*Node, clauses ...*Node) *Node {
	children := make([]*Node, 0, len(heads)+len(clauses))
	children = append(children, heads...)
	children = append(children, clauses...)

	return New(KindConditional, keyword, children...)
}

// WithPos sets the node position and returns the node.
func (targetNode *Node) WithPos(line, column uint) *Node {
	targetNode.Pos = &Positions{Line: line, Column: column}

	return targetNode
}

// Line returns the node's source line, or 0 when unknown.
func (targetNode *Node) Line() uint {
	if targetNode == nil || targetNode.Pos == nil {
		return 0
	}

	return targetNode.Pos.Line
}

// QualifierString returns the qualifier path joined with ".".
func (targetNode *Node) QualifierString() string {
	return strings.Join(targetNode.Qualifier, ".")
}

// Arity returns the number of arguments of a call node. Do-block sections
// attached to the call are not counted.
func (targetNode *Node) Arity() int {
	arity := 0

	for _, child := range targetNode.Children {
		if child == nil || child.Kind != KindClause {
			arity++
		}
	}

	return arity
}

// IsSection reports whether the node is a do/else/after/rescue/catch section.
func (targetNode *Node) IsSection() bool {
	return targetNode != nil && targetNode.Kind == KindClause && targetNode.Token != ClauseArrow
}

// Is reports whether the node has any of the given kinds.
func (targetNode *Node) Is(kinds ...Kind) bool {
	if targetNode == nil {
		return false
	}

	return slices.Contains(kinds, targetNode.Kind)
}

// ClauseParts splits a clause into its patterns and body.
func (targetNode *Node) ClauseParts() (patterns []*Node, body *Node) {
	if targetNode == nil || len(targetNode.Children) == 0 {
		return nil, nil
	}

	last := len(targetNode.Children) - 1

	return targetNode.Children[:last], targetNode.Children[last]
}

// SplitHeads splits the children of a Conditional, Receive or Comprehension
// into leading non-clause expressions and trailing clauses.
func (targetNode *Node) SplitHeads() (heads, clauses []*Node) {
	for _, child := range targetNode.Children {
		if child != nil && child.Kind == KindClause {
			clauses = append(clauses, child)

			continue
		}

		heads = append(heads, child)
	}

	return heads, clauses
}

// AddChild appends a child node.
func (targetNode *Node) AddChild(child *Node) {
	targetNode.Children = append(targetNode.Children, child)
}

// VisitPreOrder visits all nodes in pre-order (root, then children
// left-to-right). Nil children are skipped.
func (targetNode *Node) VisitPreOrder(fn func(*Node)) {
	if targetNode == nil {
		return
	}

	stack := make([]*Node, 0, defaultStackCap)
	stack = append(stack, targetNode)

	for len(stack) > 0 {
		curr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if curr == nil {
			continue
		}

		fn(curr)

		stack = pushChildrenReversed(stack, curr.Children)
	}
}

// Find returns all nodes in the tree (including root) for which predicate
// is true, in pre-order. Returns nil if the node is nil.
func (targetNode *Node) Find(predicate func(*Node) bool) []*Node {
	var result []*Node

	targetNode.VisitPreOrder(func(curr *Node) {
		if predicate(curr) {
			result = append(result, curr)
		}
	})

	return result
}

// Count returns the number of nodes in the tree.
func (targetNode *Node) Count() int {
	total := 0

	targetNode.VisitPreOrder(func(*Node) { total++ })

	return total
}

// ToMap converts the node to a map representation.
func (targetNode *Node) ToMap() map[string]any {
	if targetNode == nil {
		return nil
	}

	result := map[string]any{
		"kind": string(targetNode.Kind),
	}

	if targetNode.Token != "" {
		result["token"] = targetNode.Token
	}

	if len(targetNode.Qualifier) > 0 {
		result["qualifier"] = targetNode.QualifierString()
	}

	if targetNode.Pos != nil {
		result["line"] = targetNode.Pos.Line
	}

	if len(targetNode.Children) > 0 {
		children := make([]map[string]any, len(targetNode.Children))

		for idx, child := range targetNode.Children {
			children[idx] = child.ToMap()
		}

		result["children"] = children
	}

	return result
}

// String returns a compact debug representation of the node.
func (targetNode *Node) String() string {
	if targetNode == nil {
		return "nil"
	}

	var buf strings.Builder

	buf.WriteString("Node{Kind:")
	buf.WriteString(string(targetNode.Kind))

	if len(targetNode.Qualifier) > 0 {
		buf.WriteString(",Qualifier:")
		buf.WriteString(targetNode.QualifierString())
	}

	if targetNode.Token != "" {
		buf.WriteString(",Token:")
		buf.WriteString(targetNode.Token)
	}

	if len(targetNode.Children) > 0 {
		buf.WriteString(",Children:")
		buf.WriteString(strconv.Itoa(len(targetNode.Children)))
	}

	buf.WriteString("}")

	return buf.String()
}

// SplitQualifier splits a dotted namespace path into segments. Erlang module
// atoms (":ets") are kept whole.
func SplitQualifier(qualifier string) []string {
	if qualifier == "" {
		return nil
	}

	if strings.HasPrefix(qualifier, ":") {
		return []string{qualifier}
	}

	return strings.Split(qualifier, ".")
}

const defaultStackCap = 64

func pushChildrenReversed(stack, children []*Node) []*Node {
	for idx := len(children) - 1; idx >= 0; idx-- {
		stack = append(stack, children[idx])
	}

	return stack
}
