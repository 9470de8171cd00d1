package elixir

import (
	"strings"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Oeditus/propwise/pkg/source"
	"github.com/Oeditus/propwise/pkg/syntax"
	"github.com/Oeditus/propwise/pkg/textutil"
)

// Tree-sitter node types of the Elixir grammar.
const (
	typeAccessCall    = "access_call"
	typeAlias         = "alias"
	typeAnonymousFunc = "anonymous_function"
	typeArguments     = "arguments"
	typeAtom          = "atom"
	typeBinaryOp      = "binary_operator"
	typeBitstring     = "bitstring"
	typeBlock         = "block"
	typeBody          = "body"
	typeCall          = "call"
	typeComment       = "comment"
	typeDoBlock       = "do_block"
	typeDot           = "dot"
	typeIdentifier    = "identifier"
	typeInterpolation = "interpolation"
	typeKeywords      = "keywords"
	typeList          = "list"
	typeMap           = "map"
	typeMapContent    = "map_content"
	typePair          = "pair"
	typeStabClause    = "stab_clause"
	typeString        = "string"
	typeStruct        = "struct"
	typeTuple         = "tuple"
	typeUnaryOp       = "unary_operator"
)

//nolint:gochecknoglobals // Immutable lookup table.
var literalTypes = map[string]bool{
	"atom": true, "boolean": true, "nil": true, "integer": true, "float": true,
	"char": true, "alias": true, "operator_identifier": true,
}

// quotedTypes may carry #{...} interpolations.
//
//nolint:gochecknoglobals // Immutable lookup table.
var quotedTypes = map[string]bool{
	"string": true, "charlist": true, "sigil": true, "quoted_atom": true,
}

//nolint:gochecknoglobals // Immutable lookup table.
var sectionBlockTypes = map[string]string{
	"else_block":   syntax.ClauseElse,
	"after_block":  syntax.ClauseAfter,
	"rescue_block": syntax.ClauseRescue,
	"catch_block":  syntax.ClauseCatch,
}

//nolint:gochecknoglobals // Immutable lookup table.
var sectionKeywords = map[string]bool{
	syntax.ClauseDo:     true,
	syntax.ClauseElse:   true,
	syntax.ClauseAfter:  true,
	syntax.ClauseRescue: true,
	syntax.ClauseCatch:  true,
}

// Definition macros.
const (
	macroDefmodule = "defmodule"
	macroDefimpl   = "defimpl"
	macroDef       = "def"
	macroDefp      = "defp"
	operatorWhen   = "when"
	moduleSelf     = "__MODULE__"
	implForKey     = "for"
	heredocQuote   = `"""`
	anonymousDot   = "."
)

// converter maps tree-sitter nodes of one file to syntax nodes.
type converter struct {
	source []byte
}

func newConverter(content []byte) *converter {
	return &converter{source: content}
}

func (conv *converter) text(tsNode sitter.Node) string {
	if tsNode.IsNull() {
		return ""
	}

	start, end := int(tsNode.StartByte()), int(tsNode.EndByte()) //nolint:gosec // Byte offsets fit in int.
	if start < 0 || end > len(conv.source) || start > end {
		return ""
	}

	return string(conv.source[start:end])
}

func (conv *converter) position(tsNode sitter.Node, targetNode *syntax.Node) *syntax.Node {
	if targetNode == nil || targetNode.Pos != nil {
		return targetNode
	}

	point := tsNode.StartPoint()

	return targetNode.WithPos(point.Row+1, point.Column+1)
}

// namedChildren returns the named children of a node, without comments.
func namedChildren(tsNode sitter.Node) []sitter.Node {
	if tsNode.IsNull() {
		return nil
	}

	children := make([]sitter.Node, 0, tsNode.NamedChildCount())

	for idx := range tsNode.NamedChildCount() {
		child := tsNode.NamedChild(idx)
		if child.IsNull() || child.Type() == typeComment {
			continue
		}

		children = append(children, child)
	}

	return children
}

func findChild(tsNode sitter.Node, nodeType string) (sitter.Node, bool) {
	for _, child := range namedChildren(tsNode) {
		if child.Type() == nodeType {
			return child, true
		}
	}

	return sitter.Node{}, false
}

// extractFunctions collects def/defp clauses, tracking nested module names.
func (conv *converter) extractFunctions(root sitter.Node, path string) []source.Function {
	var functions []source.Function

	var walk func(container sitter.Node, module string)

	walk = func(container sitter.Node, module string) {
		for _, child := range namedChildren(container) {
			if child.Type() != typeCall {
				continue
			}

			target := child.ChildByFieldName("target")
			if target.IsNull() || target.Type() != typeIdentifier {
				continue
			}

			switch macro := conv.text(target); macro {
			case macroDefmodule, macroDefimpl:
				doBlock, ok := findChild(child, typeDoBlock)
				if !ok {
					continue
				}

				walk(doBlock, conv.moduleName(child, macro, module))
			case macroDef:
				if fn, ok := conv.extractDefinition(child, module, path, source.Public); ok {
					functions = append(functions, fn)
				}
			case macroDefp:
				if fn, ok := conv.extractDefinition(child, module, path, source.Private); ok {
					functions = append(functions, fn)
				}
			}
		}
	}

	walk(root, "")

	return functions
}

// moduleName resolves the name declared by defmodule or defimpl. Nested
// modules are prefixed with the enclosing module; defimpl Proto, for: Type
// names the module Proto.Type.
func (conv *converter) moduleName(call sitter.Node, macro, outer string) string {
	args, _ := findChild(call, typeArguments)
	items := namedChildren(args)

	if len(items) == 0 {
		return outer
	}

	name := conv.expandSelf(items[0], outer)

	if macro != macroDefimpl {
		if outer != "" && !strings.HasPrefix(conv.text(items[0]), moduleSelf) {
			return outer + "." + name
		}

		return name
	}

	forType := outer

	for _, item := range items[1:] {
		if item.Type() != typeKeywords {
			continue
		}

		for _, pair := range namedChildren(item) {
			if conv.pairKey(pair) == implForKey {
				forType = conv.expandSelf(pair.ChildByFieldName("value"), outer)
			}
		}
	}

	if forType == "" {
		return name
	}

	return name + "." + forType
}

func (conv *converter) expandSelf(tsNode sitter.Node, outer string) string {
	name := strings.Join(strings.Fields(conv.text(tsNode)), "")

	if rest, ok := strings.CutPrefix(name, moduleSelf); ok {
		return outer + rest
	}

	return name
}

// extractDefinition builds a function record from a def/defp call. Bodiless
// heads are skipped.
func (conv *converter) extractDefinition(
	call sitter.Node, module, path string, visibility source.Visibility,
) (source.Function, bool) {
	args, ok := findChild(call, typeArguments)
	if !ok {
		return source.Function{}, false
	}

	items := namedChildren(args)
	if len(items) == 0 {
		return source.Function{}, false
	}

	body, hasBody := conv.definitionBody(call, items[1:])
	if !hasBody {
		return source.Function{}, false
	}

	head := items[0]
	if head.Type() == typeBinaryOp && conv.operator(head) == operatorWhen {
		head = head.ChildByFieldName("left")
	}

	var (
		name   string
		params []string
	)

	switch head.Type() {
	case typeIdentifier:
		name = conv.text(head)
	case typeCall:
		target := head.ChildByFieldName("target")
		if target.Type() != typeIdentifier {
			return source.Function{}, false
		}

		name = conv.text(target)

		headArgs, _ := findChild(head, typeArguments)
		for _, param := range conv.convertArguments(headArgs) {
			params = append(params, syntax.Render(param))
		}
	default:
		return source.Function{}, false
	}

	return source.Function{
		Module:     module,
		Name:       name,
		Arity:      len(params),
		Params:     params,
		Body:       body,
		File:       path,
		Line:       call.StartPoint().Row + 1,
		Visibility: visibility,
	}, true
}

// definitionBody returns the body of a def from its do/end block or its
// keyword do: form. Implicit try sections wrap the body in a try call.
func (conv *converter) definitionBody(call sitter.Node, rest []sitter.Node) (*syntax.Node, bool) {
	if doBlock, ok := findChild(call, typeDoBlock); ok {
		sections := conv.convertDoBlock(doBlock)

		if len(sections) == 1 && sections[0].Token == syntax.ClauseDo {
			_, body := sections[0].ClauseParts()

			return body, true
		}

		return conv.position(call, syntax.NewCall("try", sections...)), true
	}

	for _, item := range rest {
		if item.Type() != typeKeywords {
			continue
		}

		for _, pair := range namedChildren(item) {
			if conv.pairKey(pair) == syntax.ClauseDo {
				return conv.convert(pair.ChildByFieldName("value")), true
			}
		}
	}

	return nil, false
}

// convert maps one tree-sitter node to a syntax node.
//
//nolint:cyclop,gocyclo // Exhaustive dispatch over grammar node types.
func (conv *converter) convert(tsNode sitter.Node) *syntax.Node {
	if tsNode.IsNull() {
		return nil
	}

	nodeType := tsNode.Type()

	var result *syntax.Node

	switch {
	case nodeType == typeIdentifier:
		result = syntax.NewIdentifier(conv.text(tsNode))
	case nodeType == typeString && strings.HasPrefix(conv.text(tsNode), heredocQuote):
		result = conv.convertQuoted(tsNode, normalizeHeredoc(conv.text(tsNode)))
	case quotedTypes[nodeType]:
		result = conv.convertQuoted(tsNode, textutil.EscapeNewlines(conv.text(tsNode)))
	case literalTypes[nodeType]:
		result = syntax.NewLiteral(textutil.EscapeNewlines(conv.text(tsNode)))
	case nodeType == typeBitstring:
		result = syntax.New(syntax.KindBitstring, "", conv.convertItems(namedChildren(tsNode))...)
	case nodeType == typeBlock, nodeType == typeBody:
		result = conv.bodyOf(conv.convertChildren(tsNode))
	case nodeType == typeBinaryOp:
		result = conv.convertBinary(tsNode)
	case nodeType == typeUnaryOp:
		result = conv.convertUnary(tsNode)
	case nodeType == typeCall:
		result = conv.convertCall(tsNode)
	case nodeType == typeList:
		result = syntax.New(syntax.KindList, "", conv.convertItems(namedChildren(tsNode))...)
	case nodeType == typeTuple:
		result = syntax.New(syntax.KindTuple, "", conv.convertItems(namedChildren(tsNode))...)
	case nodeType == typeMap:
		result = conv.convertMap(tsNode)
	case nodeType == typeKeywords:
		result = syntax.New(syntax.KindList, "", conv.convertItems([]sitter.Node{tsNode})...)
	case nodeType == typePair:
		result = conv.convertPair(tsNode)
	case nodeType == typeAnonymousFunc:
		result = syntax.New(syntax.KindLambda, "", conv.convertStabClauses(namedChildren(tsNode))...)
	case nodeType == typeStabClause:
		result = conv.convertStabClause(tsNode)
	case nodeType == typeAccessCall:
		result = syntax.NewRemoteCall("Access", "get",
			conv.convert(tsNode.ChildByFieldName("target")),
			conv.convert(tsNode.ChildByFieldName("key")))
	default:
		result = conv.convertOpaque(tsNode)
	}

	return conv.position(tsNode, result)
}

func (conv *converter) convertChildren(tsNode sitter.Node) []*syntax.Node {
	children := namedChildren(tsNode)
	result := make([]*syntax.Node, 0, len(children))

	for _, child := range children {
		if converted := conv.convert(child); converted != nil {
			result = append(result, converted)
		}
	}

	return result
}

// bodyOf collapses a single expression to itself; several become a Block.
func (conv *converter) bodyOf(exprs []*syntax.Node) *syntax.Node {
	if len(exprs) == 1 {
		return exprs[0]
	}

	return syntax.NewBlock(exprs...)
}

func (conv *converter) operator(tsNode sitter.Node) string {
	return textutil.CollapseSpace(conv.text(tsNode.ChildByFieldName("operator")))
}

func (conv *converter) convertBinary(tsNode sitter.Node) *syntax.Node {
	operator := conv.operator(tsNode)
	left := conv.convert(tsNode.ChildByFieldName("left"))
	right := conv.convert(tsNode.ChildByFieldName("right"))

	switch operator {
	case "|>":
		return syntax.NewPipe(left, right)
	case "=":
		return syntax.NewBinding(left, right)
	case "<-":
		return syntax.New(syntax.KindGenerator, operator, left, right)
	case syntax.PairArrow:
		return syntax.New(syntax.KindPair, syntax.PairArrow, left, right)
	default:
		return syntax.NewOperator(operator, left, right)
	}
}

func (conv *converter) convertUnary(tsNode sitter.Node) *syntax.Node {
	operator := conv.operator(tsNode)
	operand := conv.convert(unaryOperand(tsNode))

	if operator == "!" {
		return syntax.New(syntax.KindBang, operator, operand)
	}

	return syntax.New(syntax.KindUnary, operator, operand)
}

// unaryOperand returns the operand of a unary operator. In &(expr) the
// operand field points at the anonymous "(" token, so the first named child
// is used instead.
func unaryOperand(tsNode sitter.Node) sitter.Node {
	operand := tsNode.ChildByFieldName("operand")
	if !operand.IsNull() && operand.IsNamed() {
		return operand
	}

	if children := namedChildren(tsNode); len(children) > 0 {
		return children[len(children)-1]
	}

	return operand
}

// convertCall dispatches on the call target: remote calls, special forms
// and plain local calls.
func (conv *converter) convertCall(tsNode sitter.Node) *syntax.Node {
	target := tsNode.ChildByFieldName("target")
	argsNode, hasArgs := findChild(tsNode, typeArguments)

	args := conv.convertArguments(argsNode)
	args, sections := splitKeywordSections(args)

	if doBlock, ok := findChild(tsNode, typeDoBlock); ok {
		sections = append(sections, conv.convertDoBlock(doBlock)...)
	}

	switch target.Type() {
	case typeDot:
		return conv.convertDotCall(target, args, hasArgs)
	case typeIdentifier:
		return conv.convertLocalCall(conv.text(target), args, sections)
	default:
		children := append([]*syntax.Node{conv.convert(target)}, args...)

		return syntax.New(syntax.KindOpaque, "", append(children, sections...)...)
	}
}

func (conv *converter) convertDotCall(dot sitter.Node, args []*syntax.Node, hasArgs bool) *syntax.Node {
	left := dot.ChildByFieldName("left")
	right := dot.ChildByFieldName("right")

	if right.IsNull() {
		return syntax.NewCall(strings.TrimSpace(conv.text(left))+anonymousDot, args...)
	}

	name := conv.text(right)

	if isModuleReference(left.Type(), conv.text(left)) {
		return syntax.NewRemoteCall(strings.Join(strings.Fields(conv.text(left)), ""), name, args...)
	}

	receiver := conv.convert(left)

	// Field access on a variable (user.name) keeps its dotted spelling.
	if !hasArgs && receiver.Is(syntax.KindIdentifier, syntax.KindOpaque) &&
		receiver.Token != "" && len(receiver.Children) == 0 {
		return syntax.New(syntax.KindOpaque, receiver.Token+"."+name)
	}

	return syntax.New(syntax.KindOpaque, "", append([]*syntax.Node{receiver, syntax.NewLiteral(name)}, args...)...)
}

func isModuleReference(nodeType, text string) bool {
	switch nodeType {
	case typeAlias, typeAtom:
		return true
	case typeIdentifier:
		return text == moduleSelf
	case typeDot:
		return strings.HasPrefix(text, moduleSelf)
	default:
		return false
	}
}

func (conv *converter) convertLocalCall(name string, args, sections []*syntax.Node) *syntax.Node {
	switch name {
	case "case", "cond", "if", "unless", "with":
		return syntax.NewConditional(name, args, sections...)
	case "receive":
		return syntax.New(syntax.KindReceive, "", append(args, sections...)...)
	case "for":
		return syntax.New(syntax.KindComprehension, "", append(args, sections...)...)
	default:
		return syntax.NewCall(name, append(args, sections...)...)
	}
}

// convertArguments converts call arguments; a trailing keyword list is kept
// as a single List of keyword Pairs.
func (conv *converter) convertArguments(argsNode sitter.Node) []*syntax.Node {
	if argsNode.IsNull() {
		return nil
	}

	return conv.convertChildren(argsNode)
}

// splitKeywordSections moves do:/else: style keyword pairs of the trailing
// keyword list into section Clauses.
func splitKeywordSections(args []*syntax.Node) ([]*syntax.Node, []*syntax.Node) {
	if len(args) == 0 {
		return args, nil
	}

	last := args[len(args)-1]
	if last.Kind != syntax.KindList || !hasDoPair(last) {
		return args, nil
	}

	var (
		remaining []*syntax.Node
		sections  []*syntax.Node
	)

	for _, pair := range last.Children {
		key := syntax.Render(pair.Children[0])
		if pair.Kind == syntax.KindPair && pair.Token == syntax.PairKeyword && sectionKeywords[key] {
			sections = append(sections, syntax.NewClause(key, pair.Children[1]))

			continue
		}

		remaining = append(remaining, pair)
	}

	result := args[:len(args)-1:len(args)-1]
	if len(remaining) > 0 {
		result = append(result, syntax.New(syntax.KindList, "", remaining...))
	}

	return result, sections
}

func hasDoPair(list *syntax.Node) bool {
	for _, pair := range list.Children {
		if pair.Kind != syntax.KindPair || pair.Token != syntax.PairKeyword || len(pair.Children) != 2 {
			return false
		}
	}

	for _, pair := range list.Children {
		if syntax.Render(pair.Children[0]) == syntax.ClauseDo {
			return true
		}
	}

	return false
}

// convertDoBlock returns the sections of a do/end block: arrow clauses or a
// "do" clause, followed by else/after/rescue/catch clauses.
func (conv *converter) convertDoBlock(doBlock sitter.Node) []*syntax.Node {
	var (
		exprs    []*syntax.Node
		arrows   []*syntax.Node
		sections []*syntax.Node
	)

	for _, child := range namedChildren(doBlock) {
		if keyword, ok := sectionBlockTypes[child.Type()]; ok {
			sections = append(sections, conv.position(child, syntax.NewClause(keyword, conv.sectionBody(child))))

			continue
		}

		if child.Type() == typeStabClause {
			arrows = append(arrows, conv.convertStabClause(child))

			continue
		}

		if converted := conv.convert(child); converted != nil {
			exprs = append(exprs, converted)
		}
	}

	var result []*syntax.Node

	switch {
	case len(arrows) > 0:
		result = append(result, arrows...)
	default:
		result = append(result, conv.position(doBlock, syntax.NewClause(syntax.ClauseDo, conv.bodyOf(exprs))))
	}

	return append(result, sections...)
}

// sectionBody converts the contents of an else/after/rescue/catch block.
func (conv *converter) sectionBody(block sitter.Node) *syntax.Node {
	children := namedChildren(block)

	var arrows, exprs []*syntax.Node

	for _, child := range children {
		if child.Type() == typeStabClause {
			arrows = append(arrows, conv.convertStabClause(child))

			continue
		}

		if converted := conv.convert(child); converted != nil {
			exprs = append(exprs, converted)
		}
	}

	if len(arrows) > 0 {
		return syntax.NewBlock(arrows...)
	}

	return conv.bodyOf(exprs)
}

func (conv *converter) convertStabClauses(children []sitter.Node) []*syntax.Node {
	clauses := make([]*syntax.Node, 0, len(children))

	for _, child := range children {
		if child.Type() == typeStabClause {
			clauses = append(clauses, conv.convertStabClause(child))
		}
	}

	return clauses
}

func (conv *converter) convertStabClause(tsNode sitter.Node) *syntax.Node {
	left := tsNode.ChildByFieldName("left")
	right := tsNode.ChildByFieldName("right")

	var patterns []*syntax.Node

	switch {
	case left.IsNull():
	case left.Type() == typeBinaryOp && conv.operator(left) == operatorWhen:
		heads := conv.convertArguments(left.ChildByFieldName("left"))
		if left.ChildByFieldName("left").Type() != typeArguments {
			heads = []*syntax.Node{conv.convert(left.ChildByFieldName("left"))}
		}

		patterns = []*syntax.Node{
			syntax.NewOperator(operatorWhen, conv.bodyOfPatterns(heads), conv.convert(left.ChildByFieldName("right"))),
		}
	case left.Type() == typeArguments:
		patterns = conv.convertArguments(left)
	default:
		patterns = []*syntax.Node{conv.convert(left)}
	}

	body := syntax.NewBlock()
	if !right.IsNull() {
		body = conv.convert(right)
	}

	return conv.position(tsNode, syntax.NewClause(syntax.ClauseArrow, body, patterns...))
}

// bodyOfPatterns joins multiple guarded patterns into an opaque sequence.
func (conv *converter) bodyOfPatterns(patterns []*syntax.Node) *syntax.Node {
	if len(patterns) == 1 {
		return patterns[0]
	}

	parts := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		parts = append(parts, syntax.Render(pattern))
	}

	return syntax.New(syntax.KindOpaque, strings.Join(parts, ", "), patterns...)
}

// convertItems converts list, tuple and map items, flattening keyword lists
// into their pairs.
func (conv *converter) convertItems(children []sitter.Node) []*syntax.Node {
	items := make([]*syntax.Node, 0, len(children))

	for _, child := range children {
		if child.Type() == typeKeywords {
			for _, pair := range namedChildren(child) {
				items = append(items, conv.convert(pair))
			}

			continue
		}

		if converted := conv.convert(child); converted != nil {
			items = append(items, converted)
		}
	}

	return items
}

func (conv *converter) pairKey(pair sitter.Node) string {
	key := strings.TrimSpace(conv.text(pair.ChildByFieldName("key")))

	return strings.TrimSpace(strings.TrimSuffix(key, ":"))
}

func (conv *converter) convertPair(tsNode sitter.Node) *syntax.Node {
	key := conv.position(tsNode.ChildByFieldName("key"), syntax.NewLiteral(conv.pairKey(tsNode)))

	return syntax.New(syntax.KindPair, syntax.PairKeyword, key, conv.convert(tsNode.ChildByFieldName("value")))
}

func (conv *converter) convertMap(tsNode sitter.Node) *syntax.Node {
	kind, name := syntax.KindMap, ""

	var contents []sitter.Node

	for _, child := range namedChildren(tsNode) {
		switch child.Type() {
		case typeStruct:
			kind, name = syntax.KindStruct, textutil.CollapseSpace(conv.text(child))
		case typeMapContent:
			contents = append(contents, namedChildren(child)...)
		default:
			contents = append(contents, child)
		}
	}

	// %{base | k: v} parses as a single "|" operator item.
	if len(contents) == 1 && contents[0].Type() == typeBinaryOp && conv.operator(contents[0]) == "|" {
		update := contents[0]
		base := conv.convert(update.ChildByFieldName("left"))
		pairs := conv.convertItems([]sitter.Node{update.ChildByFieldName("right")})

		return syntax.New(kind, name, syntax.NewOperator("|", base, syntax.New(syntax.KindList, "", pairs...)))
	}

	return syntax.New(kind, name, conv.convertItems(contents)...)
}

func (conv *converter) convertOpaque(tsNode sitter.Node) *syntax.Node {
	children := conv.convertChildren(tsNode)
	if len(children) == 0 {
		return syntax.New(syntax.KindOpaque, textutil.EscapeNewlines(textutil.CollapseSpace(conv.text(tsNode))))
	}

	return syntax.New(syntax.KindOpaque, "", children...)
}

// convertQuoted keeps the literal text of a string-like node for rendering
// and converts the expressions of its interpolations into children, so
// calls inside #{...} are traversed like any other code.
func (conv *converter) convertQuoted(tsNode sitter.Node, text string) *syntax.Node {
	var interpolations []*syntax.Node

	for _, child := range namedChildren(tsNode) {
		if child.Type() != typeInterpolation {
			continue
		}

		if expr := conv.bodyOf(conv.convertChildren(child)); expr != nil && !isEmptyBlock(expr) {
			interpolations = append(interpolations, expr)
		}
	}

	return syntax.New(syntax.KindLiteral, text, interpolations...)
}

func isEmptyBlock(targetNode *syntax.Node) bool {
	return targetNode.Kind == syntax.KindBlock && len(targetNode.Children) == 0
}

// normalizeHeredoc turns a triple-quoted string into a single-line literal.
func normalizeHeredoc(text string) string {
	inner := strings.TrimSuffix(strings.TrimPrefix(text, heredocQuote), heredocQuote)

	lines := strings.Split(strings.TrimSpace(inner), "\n")
	for idx, line := range lines {
		lines[idx] = strings.TrimSpace(line)
	}

	escaped := strings.ReplaceAll(strings.Join(lines, "\n"), `"`, `\"`)

	return `"` + textutil.EscapeNewlines(escaped) + `"`
}
