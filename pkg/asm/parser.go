package asm

import (
	"fmt"
	"math"
	"strconv"
)

// Parser consumes the Lexer's token stream and produces a single root block
// per compiled file.
//
// Parsing runs in two phases. The build phase is pure syntax: it turns the
// stream into a tree in which macro definitions, macro calls, repeat/for
// loops and if/elif/else chains are still present as nodes. The reduce
// phase then rewrites that tree into the final one, expanding every macro
// call by deep-copying its stored body with argument substitution and
// resolving every compile-time construct, so that only label, data and
// incbin statements remain for the code generator.
//
// Grammar:
//
//	program   = (statement NEWLINE)* EOF
//	statement = label | data | incbin | def | macroDef | macroCall
//	          | shift | repeat | for | if
//	label     = IDENTIFIER ":"
//	data      = ("db"|"dw"|"dl"|"ds") expression ("," expression)*
//	incbin    = "incbin" STRING
//	def       = "def" IDENTIFIER "=" expression
//	macroDef  = "macro" IDENTIFIER NEWLINE block "endm"
//	macroCall = IDENTIFIER (expression ("," expression)*)?
//	shift     = "shift" expression?
//	repeat    = ("repeat"|"rept") expression NEWLINE block "endr"
//	for       = "for" IDENTIFIER "," expression ("," expression ("," expression)?)? NEWLINE block "endr"
//	if        = "if" expression NEWLINE block
//	            ("elif" expression NEWLINE block)*
//	            ("else" NEWLINE block)? "endc"
//
// Expressions use the precedence ladder, tightest first:
// unary, multiplicative (* / % & | ^), additive, shift, comparison, logical.
type Parser struct {
	lex    *Lexer
	macros map[string]*Node // macro name -> stored unexpanded body block
	consts map[string]Value // def bindings and for-loop variables
}

func NewParser(lex *Lexer) *Parser {
	return &Parser{
		lex:    lex,
		macros: make(map[string]*Node),
		consts: make(map[string]Value),
	}
}

// expansion tracks one macro invocation: the reduced argument nodes and the
// shift cursor that offsets subsequent @k references.
type expansion struct {
	name  string
	args  []*Node
	shift int
}

// ParseTokens builds and reduces the tree for the lexer's buffered stream.
// On failure the partial trees are torn down and the first error is
// returned; there is no resynchronization.
func (p *Parser) ParseTokens() (*Node, error) {
	start := p.lex.PeekToken(0)
	raw := NewNode(NodeBlock, start)
	if _, err := p.buildBlockInto(raw, start); err != nil {
		raw.Destroy()
		return nil, err
	}

	root := NewNode(NodeBlock, start)
	if err := p.reduceInto(raw, root, nil); err != nil {
		raw.Destroy()
		root.Destroy()
		return nil, err
	}
	raw.Destroy()
	return root, nil
}

//  Build phase

// blockTerminators lists keywords that only ever close a block; meeting one
// at statement position means there was no matching opener.
var blockTerminators = map[KeywordType]string{
	KwEndm: "macro",
	KwEndr: "repeat or for",
	KwEndc: "if",
	KwElif: "if",
	KwElse: "if",
}

// buildBlockInto appends statements to owner until it meets EOF or one of
// the given closing keywords, which it consumes and returns. EOF is only a
// valid terminator for the top-level block.
func (p *Parser) buildBlockInto(owner *Node, opener Token, terms ...KeywordType) (Token, error) {
	for {
		if _, ok := p.lex.AdvanceTokenIfType(NEWLINE); ok {
			continue
		}
		tok := p.lex.PeekToken(0)
		if tok.Type == EOF {
			if len(terms) > 0 {
				return Token{}, fmt.Errorf("%s: block opened here is never closed", opener.Pos())
			}
			return tok, nil
		}
		if tok.Type == KEYWORD {
			closed := false
			for _, term := range terms {
				if tok.Keyword.Type == term {
					closed = true
					break
				}
			}
			if closed {
				return p.lex.AdvanceToken(), nil
			}
			if what, stray := blockTerminators[tok.Keyword.Type]; stray {
				return Token{}, fmt.Errorf("%s: %q without a matching %s block", tok.Pos(), tok.Lexeme, what)
			}
		}
		stmt, err := p.buildStatement()
		if err != nil {
			return Token{}, err
		}
		if err := owner.PushBody(stmt); err != nil {
			stmt.Destroy()
			return Token{}, err
		}
	}
}

// buildStatement dispatches on the leading keyword or identifier.
func (p *Parser) buildStatement() (*Node, error) {
	tok := p.lex.PeekToken(0)

	if tok.Type == IDENTIFIER {
		if p.lex.PeekToken(1).Type == COLON {
			p.lex.AdvanceToken()
			p.lex.AdvanceToken()
			n := NewNode(NodeLabel, tok)
			n.Str = tok.Lexeme
			return n, nil
		}
		return p.buildMacroCall()
	}

	if tok.Type != KEYWORD {
		return nil, fmt.Errorf("%s: unexpected %s %q, expected a statement", tok.Pos(), tok.Type, tok.Lexeme)
	}

	switch tok.Keyword.Type {
	case KwDB, KwDW, KwDL, KwDS:
		return p.buildData()
	case KwIncbin:
		return p.buildIncbin()
	case KwDef:
		return p.buildDef()
	case KwMacro:
		return p.buildMacroDef()
	case KwShift:
		return p.buildShift()
	case KwRepeat:
		return p.buildRepeat()
	case KwFor:
		return p.buildFor()
	case KwIf:
		return p.buildIf(p.lex.PeekToken(0))
	default:
		return nil, fmt.Errorf("%s: unexpected keyword %q, expected a statement", tok.Pos(), tok.Lexeme)
	}
}

// expectEnd consumes the statement-separating NEWLINE; EOF also ends a
// statement but stays in the stream.
func (p *Parser) expectEnd() error {
	tok := p.lex.PeekToken(0)
	if tok.Type == EOF {
		return nil
	}
	if tok.Type == NEWLINE {
		p.lex.AdvanceToken()
		return nil
	}
	return fmt.Errorf("%s: unexpected %s %q after statement", tok.Pos(), tok.Type, tok.Lexeme)
}

func (p *Parser) buildData() (*Node, error) {
	kwTok := p.lex.AdvanceToken()
	n := NewNode(NodeData, kwTok)
	n.Width = kwTok.Keyword.Type
	for {
		param, err := p.buildExpression()
		if err != nil {
			n.Destroy()
			return nil, err
		}
		if err := n.PushBody(param); err != nil {
			param.Destroy()
			n.Destroy()
			return nil, err
		}
		if _, ok := p.lex.AdvanceTokenIfType(COMMA); !ok {
			break
		}
	}
	if err := p.expectEnd(); err != nil {
		n.Destroy()
		return nil, err
	}
	return n, nil
}

func (p *Parser) buildIncbin() (*Node, error) {
	kwTok := p.lex.AdvanceToken()
	pathTok, ok := p.lex.AdvanceTokenIfType(STRING)
	if !ok {
		got := p.lex.PeekToken(0)
		return nil, fmt.Errorf("%s: incbin expects a quoted file path, got %s", got.Pos(), got.Type)
	}
	n := NewNode(NodeIncbin, kwTok)
	n.Str = pathTok.Lexeme
	if err := p.expectEnd(); err != nil {
		n.Destroy()
		return nil, err
	}
	return n, nil
}

func (p *Parser) buildDef() (*Node, error) {
	kwTok := p.lex.AdvanceToken()
	nameTok, ok := p.lex.AdvanceTokenIfType(IDENTIFIER)
	if !ok {
		got := p.lex.PeekToken(0)
		return nil, fmt.Errorf("%s: def expects a constant name, got %s", got.Pos(), got.Type)
	}
	if _, ok := p.lex.AdvanceTokenIfType(ASSIGN); !ok {
		got := p.lex.PeekToken(0)
		return nil, fmt.Errorf("%s: expected '=' after def %s", got.Pos(), nameTok.Lexeme)
	}
	expr, err := p.buildExpression()
	if err != nil {
		return nil, err
	}
	n := NewNode(NodeDef, kwTok)
	n.Str = nameTok.Lexeme
	n.Left = expr
	if err := p.expectEnd(); err != nil {
		n.Destroy()
		return nil, err
	}
	return n, nil
}

func (p *Parser) buildMacroDef() (*Node, error) {
	kwTok := p.lex.AdvanceToken()
	nameTok, ok := p.lex.AdvanceTokenIfType(IDENTIFIER)
	if !ok {
		got := p.lex.PeekToken(0)
		return nil, fmt.Errorf("%s: macro expects a name, got %s", got.Pos(), got.Type)
	}
	if err := p.expectEnd(); err != nil {
		return nil, err
	}
	body := NewNode(NodeBlock, nameTok)
	if _, err := p.buildBlockInto(body, kwTok, KwEndm); err != nil {
		body.Destroy()
		return nil, err
	}
	n := NewNode(NodeMacroDef, kwTok)
	n.Str = nameTok.Lexeme
	n.Left = body
	return n, nil
}

func (p *Parser) buildMacroCall() (*Node, error) {
	nameTok := p.lex.AdvanceToken()
	n := NewNode(NodeMacroCall, nameTok)
	n.Str = nameTok.Lexeme
	if next := p.lex.PeekToken(0); next.Type == NEWLINE || next.Type == EOF {
		return n, p.expectEnd()
	}
	for {
		arg, err := p.buildExpression()
		if err != nil {
			n.Destroy()
			return nil, err
		}
		if err := n.PushBody(arg); err != nil {
			arg.Destroy()
			n.Destroy()
			return nil, err
		}
		if _, ok := p.lex.AdvanceTokenIfType(COMMA); !ok {
			break
		}
	}
	if err := p.expectEnd(); err != nil {
		n.Destroy()
		return nil, err
	}
	return n, nil
}

func (p *Parser) buildShift() (*Node, error) {
	kwTok := p.lex.AdvanceToken()
	n := NewNode(NodeShift, kwTok)
	if next := p.lex.PeekToken(0); next.Type != NEWLINE && next.Type != EOF {
		expr, err := p.buildExpression()
		if err != nil {
			return nil, err
		}
		n.Left = expr
	}
	if err := p.expectEnd(); err != nil {
		n.Destroy()
		return nil, err
	}
	return n, nil
}

func (p *Parser) buildRepeat() (*Node, error) {
	kwTok := p.lex.AdvanceToken()
	count, err := p.buildExpression()
	if err != nil {
		return nil, err
	}
	n := NewNode(NodeRepeat, kwTok)
	n.Count = count
	if err := p.expectEnd(); err != nil {
		n.Destroy()
		return nil, err
	}
	if _, err := p.buildBlockInto(n, kwTok, KwEndr); err != nil {
		n.Destroy()
		return nil, err
	}
	return n, nil
}

func (p *Parser) buildFor() (*Node, error) {
	kwTok := p.lex.AdvanceToken()
	varTok, ok := p.lex.AdvanceTokenIfType(IDENTIFIER)
	if !ok {
		got := p.lex.PeekToken(0)
		return nil, fmt.Errorf("%s: for expects a variable name, got %s", got.Pos(), got.Type)
	}
	if _, ok := p.lex.AdvanceTokenIfType(COMMA); !ok {
		got := p.lex.PeekToken(0)
		return nil, fmt.Errorf("%s: expected ',' after for variable", got.Pos())
	}
	n := NewNode(NodeFor, kwTok)
	n.Str = varTok.Lexeme
	limit, err := p.buildExpression()
	if err != nil {
		n.Destroy()
		return nil, err
	}
	n.Count = limit
	if _, ok := p.lex.AdvanceTokenIfType(COMMA); ok {
		start, err := p.buildExpression()
		if err != nil {
			n.Destroy()
			return nil, err
		}
		n.Left = start
		if _, ok := p.lex.AdvanceTokenIfType(COMMA); ok {
			step, err := p.buildExpression()
			if err != nil {
				n.Destroy()
				return nil, err
			}
			n.Right = step
		}
	}
	if err := p.expectEnd(); err != nil {
		n.Destroy()
		return nil, err
	}
	if _, err := p.buildBlockInto(n, kwTok, KwEndr); err != nil {
		n.Destroy()
		return nil, err
	}
	return n, nil
}

// buildIf parses "if COND" or "elif COND" plus its branch body, then chains
// any elif/else continuation through the Right slot. The whole chain shares
// one closing endc.
func (p *Parser) buildIf(ifTok Token) (*Node, error) {
	p.lex.AdvanceToken() // if / elif keyword
	cond, err := p.buildExpression()
	if err != nil {
		return nil, err
	}
	n := NewNode(NodeIf, ifTok)
	n.Cond = cond
	if err := p.expectEnd(); err != nil {
		n.Destroy()
		return nil, err
	}
	term, err := p.buildBlockInto(n, ifTok, KwElif, KwElse, KwEndc)
	if err != nil {
		n.Destroy()
		return nil, err
	}
	switch term.Keyword.Type {
	case KwEndc:
		return n, nil
	case KwElif:
		chain, err := p.buildElif(term)
		if err != nil {
			n.Destroy()
			return nil, err
		}
		n.Right = chain
		return n, nil
	default: // KwElse
		if err := p.expectEnd(); err != nil {
			n.Destroy()
			return nil, err
		}
		elseBlock := NewNode(NodeBlock, term)
		if _, err := p.buildBlockInto(elseBlock, term, KwEndc); err != nil {
			elseBlock.Destroy()
			n.Destroy()
			return nil, err
		}
		n.Right = elseBlock
		return n, nil
	}
}

// buildElif parses the condition and body of an already-consumed elif.
func (p *Parser) buildElif(elifTok Token) (*Node, error) {
	cond, err := p.buildExpression()
	if err != nil {
		return nil, err
	}
	n := NewNode(NodeIf, elifTok)
	n.Cond = cond
	if err := p.expectEnd(); err != nil {
		n.Destroy()
		return nil, err
	}
	term, err := p.buildBlockInto(n, elifTok, KwElif, KwElse, KwEndc)
	if err != nil {
		n.Destroy()
		return nil, err
	}
	switch term.Keyword.Type {
	case KwEndc:
		return n, nil
	case KwElif:
		chain, err := p.buildElif(term)
		if err != nil {
			n.Destroy()
			return nil, err
		}
		n.Right = chain
		return n, nil
	default: // KwElse
		if err := p.expectEnd(); err != nil {
			n.Destroy()
			return nil, err
		}
		elseBlock := NewNode(NodeBlock, term)
		if _, err := p.buildBlockInto(elseBlock, term, KwEndc); err != nil {
			elseBlock.Destroy()
			n.Destroy()
			return nil, err
		}
		n.Right = elseBlock
		return n, nil
	}
}

//  Expressions

// buildExpression parses with logical operators as the loosest level.
func (p *Parser) buildExpression() (*Node, error) {
	return p.buildLogical()
}

func (p *Parser) buildLogical() (*Node, error) {
	expr, err := p.buildComparison()
	if err != nil {
		return nil, err
	}
	for {
		tt := p.lex.PeekToken(0).Type
		if tt != AND_LOGICAL && tt != OR_LOGICAL {
			return expr, nil
		}
		op := p.lex.AdvanceToken()
		right, err := p.buildComparison()
		if err != nil {
			expr.Destroy()
			return nil, err
		}
		expr = binaryNode(op, expr, right)
	}
}

func (p *Parser) buildComparison() (*Node, error) {
	expr, err := p.buildShiftExpr()
	if err != nil {
		return nil, err
	}
	for {
		tt := p.lex.PeekToken(0).Type
		if tt != EQUALS && tt != NOT_EQ && tt != LESS && tt != LESS_EQ &&
			tt != GREATER && tt != GREATER_EQ {
			return expr, nil
		}
		op := p.lex.AdvanceToken()
		right, err := p.buildShiftExpr()
		if err != nil {
			expr.Destroy()
			return nil, err
		}
		expr = binaryNode(op, expr, right)
	}
}

func (p *Parser) buildShiftExpr() (*Node, error) {
	expr, err := p.buildAdditive()
	if err != nil {
		return nil, err
	}
	for {
		tt := p.lex.PeekToken(0).Type
		if tt != SHL && tt != SHR {
			return expr, nil
		}
		op := p.lex.AdvanceToken()
		right, err := p.buildAdditive()
		if err != nil {
			expr.Destroy()
			return nil, err
		}
		expr = binaryNode(op, expr, right)
	}
}

func (p *Parser) buildAdditive() (*Node, error) {
	expr, err := p.buildMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		tt := p.lex.PeekToken(0).Type
		if tt != PLUS && tt != MINUS {
			return expr, nil
		}
		op := p.lex.AdvanceToken()
		right, err := p.buildMultiplicative()
		if err != nil {
			expr.Destroy()
			return nil, err
		}
		expr = binaryNode(op, expr, right)
	}
}

func (p *Parser) buildMultiplicative() (*Node, error) {
	expr, err := p.buildUnary()
	if err != nil {
		return nil, err
	}
	for {
		tt := p.lex.PeekToken(0).Type
		if tt != STAR && tt != SLASH && tt != PERCENT &&
			tt != AMP && tt != PIPE && tt != CARET {
			return expr, nil
		}
		op := p.lex.AdvanceToken()
		right, err := p.buildUnary()
		if err != nil {
			expr.Destroy()
			return nil, err
		}
		expr = binaryNode(op, expr, right)
	}
}

func (p *Parser) buildUnary() (*Node, error) {
	tok := p.lex.PeekToken(0)
	switch tok.Type {
	case PLUS, MINUS, TILDE, NOT:
		op := p.lex.AdvanceToken()
		operand, err := p.buildUnary()
		if err != nil {
			return nil, err
		}
		n := NewNode(NodeUnary, op)
		n.Left = operand
		return n, nil
	}
	return p.buildPrimary()
}

func (p *Parser) buildPrimary() (*Node, error) {
	tok := p.lex.PeekToken(0)
	switch tok.Type {
	case NUMBER:
		p.lex.AdvanceToken()
		f, err := parseNumberLexeme(tok.Lexeme)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid number %q: %w", tok.Pos(), tok.Lexeme, err)
		}
		n := NewNode(NodeNumber, tok)
		n.Num = f
		n.Str = tok.Lexeme
		return n, nil
	case STRING:
		p.lex.AdvanceToken()
		n := NewNode(NodeString, tok)
		n.Str = tok.Lexeme
		return n, nil
	case IDENTIFIER:
		p.lex.AdvanceToken()
		n := NewNode(NodeIdent, tok)
		n.Str = tok.Lexeme
		return n, nil
	case ARG:
		p.lex.AdvanceToken()
		k, err := strconv.Atoi(tok.Lexeme)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid argument index %q", tok.Pos(), tok.Lexeme)
		}
		n := NewNode(NodeArg, tok)
		n.Num = float64(k)
		return n, nil
	case KEYWORD:
		if tok.Keyword.Type == KwNarg {
			p.lex.AdvanceToken()
			return NewNode(NodeNarg, tok), nil
		}
	case LPAREN:
		p.lex.AdvanceToken()
		expr, err := p.buildExpression()
		if err != nil {
			return nil, err
		}
		if _, ok := p.lex.AdvanceTokenIfType(RPAREN); !ok {
			got := p.lex.PeekToken(0)
			expr.Destroy()
			return nil, fmt.Errorf("%s: expected ')', got %s", got.Pos(), got.Type)
		}
		return expr, nil
	}
	return nil, fmt.Errorf("%s: unexpected %s %q, expected an expression", tok.Pos(), tok.Type, tok.Lexeme)
}

func binaryNode(op Token, left, right *Node) *Node {
	n := NewNode(NodeBinary, op)
	n.Left = left
	n.Right = right
	return n
}

// parseNumberLexeme decodes a raw numeric lexeme in any of the four bases.
func parseNumberLexeme(lexeme string) (float64, error) {
	if len(lexeme) > 2 && lexeme[0] == '0' {
		switch lexeme[1] {
		case 'b', 'B':
			u, err := strconv.ParseUint(lexeme[2:], 2, 64)
			return float64(u), err
		case 'o', 'O':
			u, err := strconv.ParseUint(lexeme[2:], 8, 64)
			return float64(u), err
		case 'x', 'X':
			u, err := strconv.ParseUint(lexeme[2:], 16, 64)
			return float64(u), err
		}
	}
	return strconv.ParseFloat(lexeme, 64)
}

//  Reduce phase

// reduceInto interprets src's statements in order, appending the surviving
// ones to dst. exp is non-nil while reducing inside a macro expansion.
func (p *Parser) reduceInto(src, dst *Node, exp *expansion) error {
	for _, stmt := range src.Body {
		if err := p.reduceStatement(stmt, dst, exp); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) reduceStatement(stmt, dst *Node, exp *expansion) error {
	switch stmt.Type {
	case NodeLabel, NodeIncbin:
		return dst.PushBody(stmt.Copy())

	case NodeData:
		return p.reduceData(stmt, dst, exp)

	case NodeDef:
		v, err := p.evalExpr(stmt.Left, exp)
		if err != nil {
			return err
		}
		p.consts[stmt.Str] = v
		return nil

	case NodeMacroDef:
		if _, exists := p.macros[stmt.Str]; exists {
			return fmt.Errorf("%s: macro %q redefined", stmt.Token.Pos(), stmt.Str)
		}
		p.macros[stmt.Str] = stmt.Left.Copy()
		return nil

	case NodeMacroCall:
		return p.expandMacro(stmt, dst, exp)

	case NodeShift:
		if exp == nil {
			return fmt.Errorf("%s: shift outside a macro expansion", stmt.Token.Pos())
		}
		n := 1
		if stmt.Left != nil {
			count, err := p.evalInt(stmt.Left, exp)
			if err != nil {
				return err
			}
			n = int(count)
		}
		if n < 0 || exp.shift+n > len(exp.args) {
			return fmt.Errorf("%s: shift by %d moves past the %d supplied argument(s)",
				stmt.Token.Pos(), n, len(exp.args))
		}
		exp.shift += n
		return nil

	case NodeRepeat:
		return p.reduceRepeat(stmt, dst, exp)

	case NodeFor:
		return p.reduceFor(stmt, dst, exp)

	case NodeIf:
		return p.reduceIf(stmt, dst, exp)

	default:
		return fmt.Errorf("%s: internal: unexpected %s statement", stmt.Token.Pos(), stmt.Type)
	}
}

// reduceData rebuilds a data statement with every parameter reduced to a
// literal or a bare label reference.
func (p *Parser) reduceData(stmt, dst *Node, exp *expansion) error {
	out := NewNode(NodeData, stmt.Token)
	out.Width = stmt.Width
	for i, param := range stmt.Body {
		countSlot := stmt.Width == KwDS && i == 0
		reduced, err := p.reduceParam(param, exp, stmt.Width, countSlot)
		if err != nil {
			out.Destroy()
			return err
		}
		if err := out.PushBody(reduced); err != nil {
			reduced.Destroy()
			out.Destroy()
			return err
		}
	}
	return dst.PushBody(out)
}

// reduceParam reduces one data parameter. Bare identifiers that are not
// compile-time constants are label references and stay symbolic for the
// emitter; everything else must fold to a constant here.
func (p *Parser) reduceParam(param *Node, exp *expansion, width KeywordType, countSlot bool) (*Node, error) {
	if param.Type == NodeIdent {
		if _, isConst := p.consts[param.Str]; !isConst {
			if countSlot {
				return nil, fmt.Errorf("%s: ds count must be a constant", param.Token.Pos())
			}
			return param.Copy(), nil
		}
	}
	if param.Type == NodeArg && exp != nil {
		// A label passed as a macro argument stays symbolic too.
		arg, err := p.argNode(param, exp)
		if err != nil {
			return nil, err
		}
		if arg.Type == NodeIdent {
			if _, isConst := p.consts[arg.Str]; !isConst {
				return arg.Copy(), nil
			}
		}
	}

	v, err := p.evalExpr(param, exp)
	if err != nil {
		return nil, err
	}
	switch v.Kind {
	case NumberValue:
		if countSlot {
			if v.Frac != 0 || v.Int < 0 {
				return nil, fmt.Errorf("%s: ds count must be a non-negative integer, got %s",
					param.Token.Pos(), v.String())
			}
		} else if err := checkWidth(v, width, param.Token); err != nil {
			return nil, err
		}
		n := NewNode(NodeNumber, param.Token)
		n.Num = v.Float
		n.Str = v.String()
		return n, nil
	case StringValue:
		if width == KwDW || width == KwDL {
			return nil, fmt.Errorf("%s: string literal is only valid in db/ds data", param.Token.Pos())
		}
		if countSlot {
			return nil, fmt.Errorf("%s: ds count must be a number", param.Token.Pos())
		}
		n := NewNode(NodeString, param.Token)
		n.Str = v.Str
		return n, nil
	default:
		return nil, fmt.Errorf("%s: void value in data statement", param.Token.Pos())
	}
}

// checkWidth rejects a literal that does not fit its declared data width.
func checkWidth(v Value, width KeywordType, tok Token) error {
	if v.Frac != 0 {
		return fmt.Errorf("%s: data literal %s is not an integer", tok.Pos(), v.String())
	}
	var lo, hi int64
	switch width {
	case KwDB, KwDS:
		lo, hi = -128, 255
	case KwDW:
		lo, hi = -32768, 65535
	case KwDL:
		lo, hi = math.MinInt32, math.MaxUint32
	default:
		return nil
	}
	if v.Int < lo || v.Int > hi {
		return fmt.Errorf("%s: value %s does not fit %s data", tok.Pos(), v.String(), width)
	}
	return nil
}

// expandMacro instantiates a stored macro body at a call site: arguments
// are reduced in the caller's context, the body is deep-copied, and the
// copy is reduced with a fresh expansion so each call site owns an
// independent tree.
func (p *Parser) expandMacro(call, dst *Node, exp *expansion) error {
	body, ok := p.macros[call.Str]
	if !ok {
		return fmt.Errorf("%s: undefined macro or identifier %q", call.Token.Pos(), call.Str)
	}

	args := make([]*Node, 0, len(call.Body))
	defer func() {
		for _, a := range args {
			a.Destroy()
		}
	}()
	for _, argExpr := range call.Body {
		reduced, err := p.reduceParam(argExpr, exp, KwNone, false)
		if err != nil {
			return err
		}
		args = append(args, reduced)
	}

	instance := body.Copy()
	defer instance.Destroy()
	return p.reduceInto(instance, dst, &expansion{name: call.Str, args: args})
}

func (p *Parser) reduceRepeat(stmt, dst *Node, exp *expansion) error {
	count, err := p.evalInt(stmt.Count, exp)
	if err != nil {
		return err
	}
	if count < 0 {
		return fmt.Errorf("%s: repeat count must not be negative", stmt.Token.Pos())
	}
	for i := int64(0); i < count; i++ {
		iter := stmt.Copy()
		err := p.reduceInto(iter, dst, exp)
		iter.Destroy()
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) reduceFor(stmt, dst *Node, exp *expansion) error {
	limit, err := p.evalNumber(stmt.Count, exp)
	if err != nil {
		return err
	}
	start := 0.0
	if stmt.Left != nil {
		if start, err = p.evalNumber(stmt.Left, exp); err != nil {
			return err
		}
	}
	step := 1.0
	if stmt.Right != nil {
		if step, err = p.evalNumber(stmt.Right, exp); err != nil {
			return err
		}
	}
	if step == 0 {
		return fmt.Errorf("%s: for step must not be zero", stmt.Token.Pos())
	}

	prev, hadPrev := p.consts[stmt.Str]
	defer func() {
		if hadPrev {
			p.consts[stmt.Str] = prev
		} else {
			delete(p.consts, stmt.Str)
		}
	}()

	for i := start; (step > 0 && i < limit) || (step < 0 && i > limit); i += step {
		p.consts[stmt.Str] = NumberVal(i)
		iter := stmt.Copy()
		err := p.reduceInto(iter, dst, exp)
		iter.Destroy()
		if err != nil {
			return err
		}
	}
	return nil
}

// reduceIf evaluates the chain's conditions at parse time and splices in at
// most one branch; the construct itself never reaches the emitted tree.
func (p *Parser) reduceIf(stmt, dst *Node, exp *expansion) error {
	cur := stmt
	for cur != nil {
		if cur.Type == NodeBlock { // trailing else
			branch := cur.Copy()
			err := p.reduceInto(branch, dst, exp)
			branch.Destroy()
			return err
		}
		v, err := p.evalExpr(cur.Cond, exp)
		if err != nil {
			return err
		}
		if v.IsTrue() {
			branch := cur.Copy()
			branch.Right = nil // only this branch's body
			err := p.reduceInto(branch, dst, exp)
			branch.Destroy()
			return err
		}
		cur = cur.Right
	}
	return nil
}

//  Constant evaluation

// argNode resolves an @k placeholder to the reduced argument node it
// refers to, honoring the expansion's shift cursor.
func (p *Parser) argNode(n *Node, exp *expansion) (*Node, error) {
	idx := exp.shift + int(n.Num)
	if idx < 0 || idx >= len(exp.args) {
		return nil, fmt.Errorf("%s: argument @%d out of range (%d supplied, cursor at %d)",
			n.Token.Pos(), int(n.Num), len(exp.args), exp.shift)
	}
	return exp.args[idx], nil
}

// evalExpr folds an expression subtree into a constant Value.
func (p *Parser) evalExpr(n *Node, exp *expansion) (Value, error) {
	switch n.Type {
	case NodeNumber:
		return NumberVal(n.Num), nil
	case NodeString:
		return StringVal(n.Str), nil
	case NodeIdent:
		if v, ok := p.consts[n.Str]; ok {
			return v.Copy(), nil
		}
		return Value{}, fmt.Errorf("%s: undefined identifier %q", n.Token.Pos(), n.Str)
	case NodeNarg:
		if exp == nil {
			return Value{}, fmt.Errorf("%s: narg outside a macro expansion", n.Token.Pos())
		}
		return NumberVal(float64(len(exp.args))), nil
	case NodeArg:
		if exp == nil {
			return Value{}, fmt.Errorf("%s: '@' outside a macro expansion", n.Token.Pos())
		}
		arg, err := p.argNode(n, exp)
		if err != nil {
			return Value{}, err
		}
		// Arguments were reduced in the caller's context; evaluate the
		// stored literal without the callee's expansion.
		return p.evalExpr(arg, nil)
	case NodeUnary:
		return p.evalUnary(n, exp)
	case NodeBinary:
		return p.evalBinary(n, exp)
	}
	return Value{}, fmt.Errorf("%s: expected a constant expression, got %s", n.Token.Pos(), n.Type)
}

func (p *Parser) evalUnary(n *Node, exp *expansion) (Value, error) {
	v, err := p.evalExpr(n.Left, exp)
	if err != nil {
		return Value{}, err
	}
	switch n.Token.Type {
	case NOT:
		if v.IsTrue() {
			return NumberVal(0), nil
		}
		return NumberVal(1), nil
	case PLUS, MINUS, TILDE:
		if v.Kind != NumberValue {
			return Value{}, fmt.Errorf("%s: unary %q needs a number, got %s", n.Token.Pos(), n.Token.Lexeme, v.Kind)
		}
	}
	switch n.Token.Type {
	case PLUS:
		return v, nil
	case MINUS:
		return NumberVal(-v.Float), nil
	case TILDE:
		return NumberVal(float64(^v.Int)), nil
	}
	return Value{}, fmt.Errorf("%s: internal: unary operator %s", n.Token.Pos(), n.Token.Type)
}

func (p *Parser) evalBinary(n *Node, exp *expansion) (Value, error) {
	l, err := p.evalExpr(n.Left, exp)
	if err != nil {
		return Value{}, err
	}
	r, err := p.evalExpr(n.Right, exp)
	if err != nil {
		return Value{}, err
	}

	op := n.Token

	// String operands: concatenation and equality only.
	if l.Kind == StringValue || r.Kind == StringValue {
		switch op.Type {
		case PLUS:
			v, err := Concat(l, r)
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", op.Pos(), err)
			}
			return v, nil
		case EQUALS, NOT_EQ:
			if l.Kind != StringValue || r.Kind != StringValue {
				return Value{}, fmt.Errorf("%s: cannot compare %s with %s", op.Pos(), l.Kind, r.Kind)
			}
			eq := l.Str == r.Str
			if op.Type == NOT_EQ {
				eq = !eq
			}
			return boolVal(eq), nil
		}
		return Value{}, fmt.Errorf("%s: operator %q is not defined for strings", op.Pos(), op.Lexeme)
	}

	if l.Kind != NumberValue || r.Kind != NumberValue {
		return Value{}, fmt.Errorf("%s: operator %q needs number operands", op.Pos(), op.Lexeme)
	}

	switch op.Type {
	case PLUS:
		return NumberVal(l.Float + r.Float), nil
	case MINUS:
		return NumberVal(l.Float - r.Float), nil
	case STAR:
		return NumberVal(l.Float * r.Float), nil
	case SLASH:
		if r.Float == 0 {
			return Value{}, fmt.Errorf("%s: division by zero", op.Pos())
		}
		return NumberVal(l.Float / r.Float), nil
	case PERCENT:
		if r.Int == 0 {
			return Value{}, fmt.Errorf("%s: division by zero", op.Pos())
		}
		return NumberVal(float64(l.Int % r.Int)), nil
	case AMP:
		return NumberVal(float64(l.Int & r.Int)), nil
	case PIPE:
		return NumberVal(float64(l.Int | r.Int)), nil
	case CARET:
		return NumberVal(float64(l.Int ^ r.Int)), nil
	case SHL:
		return NumberVal(float64(l.Int << uint(r.Int))), nil
	case SHR:
		return NumberVal(float64(l.Int >> uint(r.Int))), nil
	case EQUALS:
		return boolVal(l.Float == r.Float), nil
	case NOT_EQ:
		return boolVal(l.Float != r.Float), nil
	case LESS:
		return boolVal(l.Float < r.Float), nil
	case LESS_EQ:
		return boolVal(l.Float <= r.Float), nil
	case GREATER:
		return boolVal(l.Float > r.Float), nil
	case GREATER_EQ:
		return boolVal(l.Float >= r.Float), nil
	case AND_LOGICAL:
		return boolVal(l.IsTrue() && r.IsTrue()), nil
	case OR_LOGICAL:
		return boolVal(l.IsTrue() || r.IsTrue()), nil
	}
	return Value{}, fmt.Errorf("%s: internal: binary operator %s", op.Pos(), op.Type)
}

func boolVal(b bool) Value {
	if b {
		return NumberVal(1)
	}
	return NumberVal(0)
}

// evalNumber folds an expression and requires a number result.
func (p *Parser) evalNumber(n *Node, exp *expansion) (float64, error) {
	v, err := p.evalExpr(n, exp)
	if err != nil {
		return 0, err
	}
	if v.Kind != NumberValue {
		return 0, fmt.Errorf("%s: expected a number, got %s", n.Token.Pos(), v.Kind)
	}
	return v.Float, nil
}

// evalInt folds an expression and requires an integral number result.
func (p *Parser) evalInt(n *Node, exp *expansion) (int64, error) {
	v, err := p.evalExpr(n, exp)
	if err != nil {
		return 0, err
	}
	if v.Kind != NumberValue || v.Frac != 0 {
		return 0, fmt.Errorf("%s: expected an integer, got %s", n.Token.Pos(), v.String())
	}
	return v.Int, nil
}
