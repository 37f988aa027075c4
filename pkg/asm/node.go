package asm

import "fmt"

// NodeType identifies the shape and meaning of a syntax-tree node.
type NodeType int

const (
	NodeBlock NodeType = iota // statement list; the root of every parsed file

	// Statements that survive into the emitted tree
	NodeLabel  // "name:"; Str holds the label name
	NodeData   // db/dw/dl/ds; Width holds the keyword type, Body the parameters
	NodeIncbin // raw-bytes placeholder; Str holds the file path

	// Expression leaves
	NodeNumber // Num holds the parsed value, Str the raw literal text
	NodeString // Str holds the decoded text
	NodeIdent  // Str holds the name
	NodeArg    // @k placeholder; Num holds k
	NodeNarg   // narg inside a macro body

	// Expression interior
	NodeUnary  // Left operand; Token carries the operator
	NodeBinary // Left/Right operands; Token carries the operator

	// Constructs eliminated during reduction
	NodeDef       // Str holds the constant name, Left the bound expression
	NodeMacroDef  // Str holds the macro name, Left the captured body block
	NodeShift     // Left holds the cursor advance expression, nil for the default
	NodeMacroCall // Str holds the macro name, Body the argument expressions
	NodeRepeat    // Count expression, Body the unexpanded statements
	NodeFor       // Str var name, Count limit, Left start, Right step, Body statements
	NodeIf        // Cond expression, Body then-branch, Right elif chain or else block
)

var nodeTypeNames = [...]string{
	NodeBlock:     "BLOCK",
	NodeLabel:     "LABEL",
	NodeData:      "DATA",
	NodeIncbin:    "INCBIN",
	NodeNumber:    "NUMBER",
	NodeString:    "STRING",
	NodeIdent:     "IDENT",
	NodeArg:       "ARG",
	NodeNarg:      "NARG",
	NodeUnary:     "UNARY",
	NodeBinary:    "BINARY",
	NodeDef:       "DEF",
	NodeMacroDef:  "MACRO_DEF",
	NodeShift:     "SHIFT",
	NodeMacroCall: "MACRO_CALL",
	NodeRepeat:    "REPEAT",
	NodeFor:       "FOR",
	NodeIf:        "IF",
}

func (nt NodeType) String() string {
	if int(nt) >= 0 && int(nt) < len(nodeTypeNames) {
		return nodeTypeNames[nt]
	}
	return fmt.Sprintf("NodeType(%d)", int(nt))
}

// initialBodyCap is the starting capacity of every body array; growth is
// by doubling, so size <= capacity holds after every push.
const initialBodyCap = 8

// nodeHasBody reports whether a node type aggregates ordered children.
func nodeHasBody(nt NodeType) bool {
	switch nt {
	case NodeBlock, NodeData, NodeMacroCall, NodeRepeat, NodeFor, NodeIf:
		return true
	}
	return false
}

// nodeHasString reports whether a node type carries a string payload.
func nodeHasString(nt NodeType) bool {
	switch nt {
	case NodeLabel, NodeIncbin, NodeNumber, NodeString, NodeIdent,
		NodeDef, NodeMacroDef, NodeMacroCall, NodeFor:
		return true
	}
	return false
}

// Node is one syntax-tree node. Only the payload fields declared for the
// node's type are ever populated: Str for named/literal nodes, Num for
// number and argument nodes, Width for data statements, Body for
// aggregating nodes, and the named child slots for expressions, loops and
// conditionals. Every child reachable from a node is exclusively owned by
// that node.
type Node struct {
	Type  NodeType
	Token Token // originating token, kept for diagnostics

	Str   string
	Num   float64
	Width KeywordType // data-statement width tag (KwDB/KwDW/KwDL/KwDS)

	Body []*Node // ordered children: statements, data parameters, call arguments

	Count *Node // repeat count / for limit
	Cond  *Node // if/elif condition
	Left  *Node // binary left operand, unary operand, for start
	Right *Node // binary right operand, for step, if else-chain
}

// NewNode allocates a node of the given type led by tok. A body array is
// allocated only for types that aggregate children.
func NewNode(nt NodeType, tok Token) *Node {
	n := &Node{Type: nt, Token: tok}
	if nodeHasBody(nt) {
		n.Body = make([]*Node, 0, initialBodyCap)
	}
	return n
}

// Copy returns a recursive deep clone of n: the string payload, every body
// element and every named child subtree are duplicated, so the clone shares
// no mutable state with the original. Macro expansion relies on this to give
// each call site an independent instance of the stored body. Copy of nil is
// nil.
func (n *Node) Copy() *Node {
	if n == nil {
		return nil
	}
	c := &Node{
		Type:  n.Type,
		Token: n.Token,
		Str:   n.Str,
		Num:   n.Num,
		Width: n.Width,
		Count: n.Count.Copy(),
		Cond:  n.Cond.Copy(),
		Left:  n.Left.Copy(),
		Right: n.Right.Copy(),
	}
	if n.Body != nil {
		capacity := cap(n.Body)
		if capacity < initialBodyCap {
			capacity = initialBodyCap
		}
		c.Body = make([]*Node, 0, capacity)
		for _, child := range n.Body {
			c.Body = append(c.Body, child.Copy())
		}
	}
	return c
}

// Destroy recursively detaches every owned child so a discarded subtree can
// never be reattached through a stale reference. Destroy of nil is a no-op,
// so partially built trees can always be torn down safely.
func (n *Node) Destroy() {
	if n == nil {
		return
	}
	for i, child := range n.Body {
		child.Destroy()
		n.Body[i] = nil
	}
	n.Body = nil
	n.Count.Destroy()
	n.Count = nil
	n.Cond.Destroy()
	n.Cond = nil
	n.Left.Destroy()
	n.Left = nil
	n.Right.Destroy()
	n.Right = nil
	n.Str = ""
}

// PushBody appends child to n's body, doubling the capacity when full.
// Pushing to a node type that carries no body is a programming error and
// is reported rather than silently ignored.
func (n *Node) PushBody(child *Node) error {
	if !nodeHasBody(n.Type) {
		return fmt.Errorf("internal: %s node carries no body", n.Type)
	}
	if n.Body == nil {
		n.Body = make([]*Node, 0, initialBodyCap)
	}
	if len(n.Body) == cap(n.Body) {
		grown := make([]*Node, len(n.Body), cap(n.Body)*2)
		copy(grown, n.Body)
		n.Body = grown
	}
	n.Body = append(n.Body, child)
	return nil
}
