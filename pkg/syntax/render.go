package syntax

import (
	"strings"
)

const indentUnit = "  "

const captureOperator = "&"

// atomicPrecedence is assigned to operands that never need parentheses.
const atomicPrecedence = 100

// operatorPrecedence orders binary operators from loosest to tightest binding.
//
//nolint:gochecknoglobals // Immutable lookup table.
var operatorPrecedence = map[string]int{
	`\\`: 1, "<-": 1,
	"when": 2,
	"::":   3,
	"|":    4,
	"=>":   5,
	"=":    6,
	"||":   7, "|||": 7, "or": 7,
	"&&": 8, "&&&": 8, "and": 8,
	"==": 9, "!=": 9, "=~": 9, "===": 9, "!==": 9,
	"<": 10, ">": 10, "<=": 10, ">=": 10,
	"|>": 11, "<<<": 11, ">>>": 11, "<<~": 11, "~>>": 11, "<~": 11, "~>": 11, "<~>": 11,
	"in": 12, "not in": 12,
	"++": 13, "--": 13, "+++": 13, "---": 13, "..": 13, "<>": 13,
	"+": 14, "-": 14,
	"*": 15, "/": 15,
	"**": 16,
}

//nolint:gochecknoglobals // Immutable lookup table.
var rightAssociative = map[string]bool{
	`\\`: true, "<-": true, "when": true, "::": true, "|": true, "=>": true, "=": true,
	"++": true, "--": true, "+++": true, "---": true, "..": true, "<>": true, "**": true,
}

// Render produces the canonical textual form of a node: one expression per
// line for blocks, do/end constructs spread over multiple lines with
// two-space indentation, single spaces around binary operators. The output
// is deterministic for a given tree.
func Render(targetNode *Node) string {
	if targetNode == nil {
		return ""
	}

	return render(targetNode)
}

// LineCount returns the number of lines of the rendered node.
func LineCount(targetNode *Node) int {
	text := Render(targetNode)
	if text == "" {
		return 0
	}

	return strings.Count(text, "\n") + 1
}

//nolint:cyclop,gocyclo // Exhaustive dispatch over node kinds.
func render(targetNode *Node) string {
	if targetNode == nil {
		return ""
	}

	switch targetNode.Kind {
	case KindBlock:
		return renderLines(targetNode.Children)
	case KindCall:
		if hasSections(targetNode) {
			return renderDoConstruct(targetNode.Token, targetNode)
		}

		return targetNode.Token + "(" + renderArgs(targetNode.Children) + ")"
	case KindRemoteCall:
		return targetNode.QualifierString() + "." + targetNode.Token + "(" + renderArgs(targetNode.Children) + ")"
	case KindOperator, KindPipe, KindBinding:
		return renderBinary(targetNode)
	case KindUnary:
		return renderUnary(targetNode)
	case KindBang:
		return "!" + renderOperand(firstChild(targetNode))
	case KindLiteral, KindIdentifier:
		return targetNode.Token
	case KindList:
		return "[" + renderList(targetNode.Children) + "]"
	case KindTuple:
		return "{" + renderList(targetNode.Children) + "}"
	case KindBitstring:
		return "<<" + renderSegments(targetNode.Children) + ">>"
	case KindMap:
		return "%{" + renderMapContent(targetNode) + "}"
	case KindStruct:
		return "%" + targetNode.Token + "{" + renderMapContent(targetNode) + "}"
	case KindPair:
		return renderPair(targetNode)
	case KindGenerator:
		return render(childAt(targetNode, 0)) + " <- " + render(childAt(targetNode, 1))
	case KindClause:
		return renderClause(targetNode)
	case KindConditional:
		return renderDoConstruct(targetNode.Token, targetNode)
	case KindReceive:
		return renderDoConstruct("receive", targetNode)
	case KindComprehension:
		return renderDoConstruct("for", targetNode)
	case KindLambda:
		return renderLambda(targetNode)
	case KindOpaque:
		return renderOpaque(targetNode)
	default:
		return renderOpaque(targetNode)
	}
}

func renderLines(exprs []*Node) string {
	lines := make([]string, 0, len(exprs))

	for _, expr := range exprs {
		if expr == nil {
			continue
		}

		lines = append(lines, render(expr))
	}

	return strings.Join(lines, "\n")
}

// renderArgs renders call arguments; a trailing keyword list drops its brackets.
func renderArgs(args []*Node) string {
	parts := make([]string, 0, len(args))

	for idx, arg := range args {
		if idx == len(args)-1 && isKeywordList(arg) {
			parts = append(parts, renderList(arg.Children))

			continue
		}

		parts = append(parts, render(arg))
	}

	return strings.Join(parts, ", ")
}

func renderList(elems []*Node) string {
	parts := make([]string, 0, len(elems))

	for _, elem := range elems {
		parts = append(parts, render(elem))
	}

	return strings.Join(parts, ", ")
}

func renderMapContent(targetNode *Node) string {
	if len(targetNode.Children) == 1 {
		update := targetNode.Children[0]

		if update != nil && update.Kind == KindOperator && update.Token == "|" && len(update.Children) == 2 &&
			update.Children[1] != nil && update.Children[1].Kind == KindList {
			return render(update.Children[0]) + " | " + renderList(update.Children[1].Children)
		}
	}

	return renderList(targetNode.Children)
}

func renderPair(targetNode *Node) string {
	key := render(childAt(targetNode, 0))
	value := render(childAt(targetNode, 1))

	if targetNode.Token == PairArrow {
		return key + " => " + value
	}

	return key + ": " + value
}

func renderBinary(targetNode *Node) string {
	operator := targetNode.Token
	precedence := precedenceOf(targetNode)

	left := childAt(targetNode, 0)
	right := childAt(targetNode, 1)

	leftText := render(left)
	if precedenceOf(left) < precedence {
		leftText = "(" + leftText + ")"
	}

	rightText := render(right)

	rightPrecedence := precedenceOf(right)
	if rightPrecedence < precedence || (rightPrecedence == precedence && !rightAssociative[operator]) {
		rightText = "(" + rightText + ")"
	}

	return leftText + " " + operator + " " + rightText
}

func renderUnary(targetNode *Node) string {
	operand := firstChild(targetNode)

	if targetNode.Token == "not" {
		return "not " + renderOperand(operand)
	}

	if targetNode.Token == captureOperator {
		if reference, ok := captureReference(operand); ok {
			return captureOperator + reference
		}
	}

	return targetNode.Token + renderOperand(operand)
}

// captureReference renders the fun/arity of &Mod.fun/2 or &fun/2. The
// function side is a call without arguments or a bare identifier.
func captureReference(operand *Node) (string, bool) {
	if operand == nil || operand.Kind != KindOperator || operand.Token != "/" {
		return "", false
	}

	fun, arity := childAt(operand, 0), childAt(operand, 1)
	if fun == nil || arity == nil || arity.Kind != KindLiteral {
		return "", false
	}

	switch {
	case fun.Kind == KindIdentifier:
		return fun.Token + "/" + arity.Token, true
	case fun.Kind == KindRemoteCall && len(fun.Children) == 0:
		return fun.QualifierString() + "." + fun.Token + "/" + arity.Token, true
	case fun.Kind == KindCall && len(fun.Children) == 0:
		return fun.Token + "/" + arity.Token, true
	default:
		return "", false
	}
}

// renderSegments renders bitstring segments; size and type segments bind
// tightly as in <<a::8, rest::binary>>.
func renderSegments(segments []*Node) string {
	parts := make([]string, 0, len(segments))

	for _, segment := range segments {
		if segment != nil && segment.Kind == KindOperator && segment.Token == "::" {
			parts = append(parts, render(childAt(segment, 0))+"::"+renderSegmentType(childAt(segment, 1)))

			continue
		}

		parts = append(parts, render(segment))
	}

	return strings.Join(parts, ", ")
}

// renderSegmentType joins segment types like binary-size(4) without spaces.
func renderSegmentType(segType *Node) string {
	if segType != nil && segType.Kind == KindOperator && segType.Token == "-" {
		return renderSegmentType(childAt(segType, 0)) + "-" + renderSegmentType(childAt(segType, 1))
	}

	return render(segType)
}

func renderOperand(operand *Node) string {
	text := render(operand)

	if precedenceOf(operand) < atomicPrecedence {
		return "(" + text + ")"
	}

	return text
}

func renderClause(targetNode *Node) string {
	patterns, body := targetNode.ClauseParts()

	switch {
	case targetNode.Token == ClauseDo:
		return render(body)
	case targetNode.IsSection():
		return targetNode.Token + "\n" + indent(render(body))
	}

	head := renderList(patterns)
	bodyText := render(body)

	prefix := "->"
	if head != "" {
		prefix = head + " ->"
	}

	if strings.Contains(bodyText, "\n") {
		return prefix + "\n" + indent(bodyText)
	}

	return prefix + " " + bodyText
}

// renderDoConstruct renders keyword heads do ... end with else/after sections.
func renderDoConstruct(keyword string, targetNode *Node) string {
	heads, clauses := targetNode.SplitHeads()

	var buf strings.Builder

	buf.WriteString(keyword)

	if len(heads) > 0 {
		buf.WriteString(" ")
		buf.WriteString(renderArgs(heads))
	}

	buf.WriteString(" do")

	for _, clause := range clauses {
		switch {
		case clause.IsSection() && clause.Token != ClauseDo:
			_, body := clause.ClauseParts()

			buf.WriteString("\n")
			buf.WriteString(clause.Token)
			buf.WriteString("\n")
			buf.WriteString(indent(render(body)))
		default:
			buf.WriteString("\n")
			buf.WriteString(indent(render(clause)))
		}
	}

	buf.WriteString("\nend")

	return buf.String()
}

func renderLambda(targetNode *Node) string {
	if len(targetNode.Children) == 1 {
		clauseText := render(targetNode.Children[0])
		if !strings.Contains(clauseText, "\n") {
			return "fn " + clauseText + " end"
		}
	}

	lines := make([]string, 0, len(targetNode.Children))

	for _, clause := range targetNode.Children {
		lines = append(lines, indent(render(clause)))
	}

	return "fn\n" + strings.Join(lines, "\n") + "\nend"
}

func renderOpaque(targetNode *Node) string {
	if targetNode.Token != "" {
		return targetNode.Token
	}

	parts := make([]string, 0, len(targetNode.Children))

	for _, child := range targetNode.Children {
		parts = append(parts, render(child))
	}

	return strings.Join(parts, " ")
}

func precedenceOf(targetNode *Node) int {
	if targetNode == nil || !targetNode.Is(KindOperator, KindPipe, KindBinding) {
		return atomicPrecedence
	}

	if precedence, ok := operatorPrecedence[targetNode.Token]; ok {
		return precedence
	}

	return atomicPrecedence - 1
}

func hasSections(targetNode *Node) bool {
	for _, child := range targetNode.Children {
		if child.IsSection() {
			return true
		}
	}

	return false
}

func isKeywordList(targetNode *Node) bool {
	if targetNode == nil || targetNode.Kind != KindList || len(targetNode.Children) == 0 {
		return false
	}

	for _, child := range targetNode.Children {
		if child == nil || child.Kind != KindPair || child.Token != PairKeyword {
			return false
		}
	}

	return true
}

func indent(text string) string {
	if text == "" {
		return text
	}

	lines := strings.Split(text, "\n")

	for idx, line := range lines {
		if line != "" {
			lines[idx] = indentUnit + line
		}
	}

	return strings.Join(lines, "\n")
}

func firstChild(targetNode *Node) *Node {
	return childAt(targetNode, 0)
}

func childAt(targetNode *Node, idx int) *Node {
	if targetNode == nil || idx >= len(targetNode.Children) {
		return nil
	}

	return targetNode.Children[idx]
}
