package asm

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"unicode"
)

// Lexer buffers the ordered token stream of one compilation and exposes a
// randomly-peekable cursor over it. All state lives in the value itself, so
// independent compilations can run side by side; a single Lexer is reused
// across successive compilations via Reset.
type Lexer struct {
	tokens []Token
	pos    int
}

func NewLexer() *Lexer {
	return &Lexer{}
}

// Reset clears the buffered stream and cursor so the Lexer can be reused
// without reconstructing it.
func (l *Lexer) Reset() {
	l.tokens = nil
	l.pos = 0
}

// LexFile tokenizes one source file into the stream. An `include "path"`
// directive splices the included file's tokens in place of the directive;
// `incbin` is left in the stream for the parser. The stream is terminated
// by a single EOF token. Lexical errors abort the file and leave the
// stream cleared.
func (l *Lexer) LexFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}
	lastLine, err := l.splice(string(data), path, filepath.Dir(path), make(map[string]bool))
	if err != nil {
		l.Reset()
		return err
	}
	l.tokens = append(l.tokens, Token{Type: EOF, File: path, Line: lastLine, Col: 1})
	return nil
}

// LexString tokenizes in-memory source, attributing positions to name.
// Includes are resolved relative to the working directory.
func (l *Lexer) LexString(src, name string) error {
	lastLine, err := l.splice(src, name, ".", make(map[string]bool))
	if err != nil {
		l.Reset()
		return err
	}
	l.tokens = append(l.tokens, Token{Type: EOF, File: name, Line: lastLine, Col: 1})
	return nil
}

// splice scans src, appending tokens to the stream and recursing into
// include directives. It returns the line the scanner stopped on.
func (l *Lexer) splice(src, file, dir string, stack map[string]bool) (int, error) {
	s := &scanner{src: []rune(src), file: file, line: 1, col: 1}
	for {
		tok, err := s.next()
		if err != nil {
			return s.line, err
		}
		if tok.Type == EOF {
			return s.line, nil
		}
		if tok.Type == KEYWORD && tok.Keyword.Type == KwInclude {
			pathTok, err := s.next()
			if err != nil {
				return s.line, err
			}
			if pathTok.Type != STRING {
				return s.line, fmt.Errorf("%s: include expects a quoted file path, got %s", pathTok.Pos(), pathTok.Type)
			}
			if err := l.spliceInclude(pathTok, dir, stack); err != nil {
				return s.line, err
			}
			continue
		}
		l.tokens = append(l.tokens, tok)
	}
}

func (l *Lexer) spliceInclude(pathTok Token, dir string, stack map[string]bool) error {
	full := filepath.Join(dir, pathTok.Lexeme)
	abs, err := filepath.Abs(full)
	if err != nil {
		return fmt.Errorf("%s: cannot resolve include %q: %w", pathTok.Pos(), pathTok.Lexeme, err)
	}
	if stack[abs] {
		return fmt.Errorf("%s: circular include of %q", pathTok.Pos(), pathTok.Lexeme)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return fmt.Errorf("%s: cannot read include %q: %w", pathTok.Pos(), pathTok.Lexeme, err)
	}
	stack[abs] = true
	_, err = l.splice(string(data), full, filepath.Dir(full), stack)
	delete(stack, abs)
	return err
}

//  Cursor

// HasMoreTokens reports whether any tokens remain ahead of the cursor.
func (l *Lexer) HasMoreTokens() bool {
	return l.pos < len(l.tokens)
}

// PeekToken returns the token at the given offset past the cursor without
// consuming anything. Peeking past the end of the stream returns EOF.
func (l *Lexer) PeekToken(offset int) Token {
	idx := l.pos + offset
	if idx < 0 || idx >= len(l.tokens) {
		if n := len(l.tokens); n > 0 {
			return l.tokens[n-1]
		}
		return Token{Type: EOF}
	}
	return l.tokens[idx]
}

// AdvanceToken consumes and returns the current token.
func (l *Lexer) AdvanceToken() Token {
	tok := l.PeekToken(0)
	if l.pos < len(l.tokens) {
		l.pos++
	}
	return tok
}

// AdvanceTokenIfType consumes the current token only if it has the given
// type; otherwise it reports no match and consumes nothing.
func (l *Lexer) AdvanceTokenIfType(tt TokenType) (Token, bool) {
	if l.PeekToken(0).Type != tt {
		return Token{}, false
	}
	return l.AdvanceToken(), true
}

// AdvanceTokenIfKeyword consumes the current token only if it is the given
// keyword; otherwise it reports no match and consumes nothing.
func (l *Lexer) AdvanceTokenIfKeyword(kt KeywordType) (Token, bool) {
	cur := l.PeekToken(0)
	if cur.Type != KEYWORD || cur.Keyword.Type != kt {
		return Token{}, false
	}
	return l.AdvanceToken(), true
}

// DumpTokens writes the buffered stream one token per line; used by the
// driver's lex-only mode.
func (l *Lexer) DumpTokens(w io.Writer) {
	for _, tok := range l.tokens {
		fmt.Fprintln(w, tok)
	}
}

//  Scanner

// scanner holds the mutable state of one pass over a single file's source.
type scanner struct {
	src  []rune
	pos  int
	file string
	line int // current 1-based source line
	col  int // current 1-based source column
}

func (s *scanner) peek() rune {
	if s.pos >= len(s.src) {
		return 0
	}
	return s.src[s.pos]
}

func (s *scanner) peek2() rune {
	if s.pos+1 >= len(s.src) {
		return 0
	}
	return s.src[s.pos+1]
}

// advance consumes one rune, tracking line and column.
func (s *scanner) advance() rune {
	if s.pos >= len(s.src) {
		return 0
	}
	r := s.src[s.pos]
	s.pos++
	if r == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	return r
}

// skipSpace discards blanks but never newlines; NEWLINE is a significant
// token.
func (s *scanner) skipSpace() {
	for {
		r := s.peek()
		if r != ' ' && r != '\t' && r != '\r' {
			return
		}
		s.advance()
	}
}

func (s *scanner) skipLineComment() {
	for s.pos < len(s.src) && s.peek() != '\n' {
		s.advance()
	}
}

func (s *scanner) skipBlockComment() error {
	startLine := s.line
	for s.pos < len(s.src) {
		if s.peek() == '*' && s.peek2() == '/' {
			s.advance()
			s.advance()
			return nil
		}
		s.advance()
	}
	return fmt.Errorf("%s:%d: unterminated block comment", s.file, startLine)
}

func (s *scanner) errorf(line, col int, format string, args ...any) error {
	return fmt.Errorf("%s:%d:%d: %s", s.file, line, col, fmt.Sprintf(format, args...))
}

func (s *scanner) token(tt TokenType, lexeme string, line, col int) Token {
	return Token{Type: tt, Lexeme: lexeme, File: s.file, Line: line, Col: col}
}

// scanIdent collects an identifier or reserved word.
func (s *scanner) scanIdent() Token {
	line, col := s.line, s.col
	start := s.pos
	for s.pos < len(s.src) {
		r := s.peek()
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			break
		}
		s.advance()
	}
	lexeme := string(s.src[start:s.pos])
	if kw, ok := LookupKeyword(lexeme); ok {
		tok := s.token(KEYWORD, lexeme, line, col)
		tok.Keyword = kw
		return tok
	}
	return s.token(IDENTIFIER, lexeme, line, col)
}

// scanNumber collects a numeric literal: decimal (with optional fraction),
// 0b binary, 0o octal, or 0x hexadecimal. The raw text is preserved as the
// lexeme; base decoding happens in the parser.
func (s *scanner) scanNumber() (Token, error) {
	line, col := s.line, s.col
	start := s.pos

	digits := 0
	if s.peek() == '0' && (s.peek2() == 'b' || s.peek2() == 'B') {
		s.advance()
		s.advance()
		for s.peek() == '0' || s.peek() == '1' {
			s.advance()
			digits++
		}
		if digits == 0 {
			return Token{}, s.errorf(line, col, "invalid binary literal")
		}
	} else if s.peek() == '0' && (s.peek2() == 'o' || s.peek2() == 'O') {
		s.advance()
		s.advance()
		for s.peek() >= '0' && s.peek() <= '7' {
			s.advance()
			digits++
		}
		if digits == 0 {
			return Token{}, s.errorf(line, col, "invalid octal literal")
		}
	} else if s.peek() == '0' && (s.peek2() == 'x' || s.peek2() == 'X') {
		s.advance()
		s.advance()
		for isHexDigit(s.peek()) {
			s.advance()
			digits++
		}
		if digits == 0 {
			return Token{}, s.errorf(line, col, "invalid hexadecimal literal")
		}
	} else {
		for unicode.IsDigit(s.peek()) {
			s.advance()
		}
		if s.peek() == '.' && unicode.IsDigit(s.peek2()) {
			s.advance()
			for unicode.IsDigit(s.peek()) {
				s.advance()
			}
		}
	}

	return s.token(NUMBER, string(s.src[start:s.pos]), line, col), nil
}

// scanChar collects a character literal 'c'. It is emitted as a NUMBER
// token whose lexeme is the decimal code of the character.
func (s *scanner) scanChar() (Token, error) {
	line, col := s.line, s.col
	s.advance() // opening '

	r := s.peek()
	if r == '\'' || r == 0 {
		return Token{}, s.errorf(line, col, "empty character literal")
	}

	var val rune
	if r == '\\' {
		s.advance()
		dec, err := s.decodeEscape(line, col)
		if err != nil {
			return Token{}, err
		}
		val = dec
	} else {
		val = r
		s.advance()
	}

	if s.peek() != '\'' {
		return Token{}, s.errorf(line, col, "unterminated character literal")
	}
	s.advance() // closing '

	return s.token(NUMBER, strconv.Itoa(int(val)), line, col), nil
}

// scanString collects a string literal "..." with escape decoding.
func (s *scanner) scanString() (Token, error) {
	line, col := s.line, s.col
	s.advance() // opening "
	var val []rune

	for s.pos < len(s.src) {
		r := s.peek()
		if r == '"' {
			s.advance()
			return s.token(STRING, string(val), line, col), nil
		}
		if r == '\n' {
			break
		}
		if r == '\\' {
			s.advance()
			dec, err := s.decodeEscape(line, col)
			if err != nil {
				return Token{}, err
			}
			val = append(val, dec)
			continue
		}
		val = append(val, r)
		s.advance()
	}
	return Token{}, s.errorf(line, col, "unterminated string literal")
}

// decodeEscape consumes the character after a backslash and returns its
// decoded value.
func (s *scanner) decodeEscape(line, col int) (rune, error) {
	next := s.peek()
	var val rune
	switch next {
	case 'n':
		val = '\n'
	case 'r':
		val = '\r'
	case 't':
		val = '\t'
	case '0':
		val = 0
	case '\\':
		val = '\\'
	case '\'':
		val = '\''
	case '"':
		val = '"'
	default:
		return 0, s.errorf(line, col, "unknown escape sequence \\%c", next)
	}
	s.advance()
	return val, nil
}

// scanArg collects a macro-argument placeholder @k.
func (s *scanner) scanArg() (Token, error) {
	line, col := s.line, s.col
	s.advance() // @
	start := s.pos
	for unicode.IsDigit(s.peek()) {
		s.advance()
	}
	if s.pos == start {
		return Token{}, s.errorf(line, col, "expected argument index after '@'")
	}
	return s.token(ARG, string(s.src[start:s.pos]), line, col), nil
}

// next skips whitespace and comments and returns the next token. Operators
// are matched by maximal munch, so "<<=" is a single token.
func (s *scanner) next() (Token, error) {
	for {
		s.skipSpace()
		if s.pos >= len(s.src) {
			return s.token(EOF, "", s.line, s.col), nil
		}
		if s.peek() == ';' {
			s.skipLineComment()
			continue
		}
		if s.peek() == '/' && s.peek2() == '/' {
			s.advance()
			s.advance()
			s.skipLineComment()
			continue
		}
		if s.peek() == '/' && s.peek2() == '*' {
			s.advance()
			s.advance()
			if err := s.skipBlockComment(); err != nil {
				return Token{}, err
			}
			continue
		}
		break
	}

	ch := s.peek()
	line, col := s.line, s.col

	if ch == '\n' {
		s.advance()
		return s.token(NEWLINE, "\n", line, col), nil
	}
	if unicode.IsLetter(ch) || ch == '_' {
		return s.scanIdent(), nil
	}
	if unicode.IsDigit(ch) {
		return s.scanNumber()
	}
	if ch == '"' {
		return s.scanString()
	}
	if ch == '\'' {
		return s.scanChar()
	}
	if ch == '@' {
		return s.scanArg()
	}

	s.advance() // consume the character before the switch
	switch ch {
	case ':':
		return s.token(COLON, ":", line, col), nil
	case ',':
		return s.token(COMMA, ",", line, col), nil
	case '(':
		return s.token(LPAREN, "(", line, col), nil
	case ')':
		return s.token(RPAREN, ")", line, col), nil

	case '+':
		if s.peek() == '=' {
			s.advance()
			return s.token(PLUS_ASSIGN, "+=", line, col), nil
		}
		return s.token(PLUS, "+", line, col), nil
	case '-':
		if s.peek() == '=' {
			s.advance()
			return s.token(MINUS_ASSIGN, "-=", line, col), nil
		}
		return s.token(MINUS, "-", line, col), nil
	case '*':
		if s.peek() == '=' {
			s.advance()
			return s.token(STAR_ASSIGN, "*=", line, col), nil
		}
		return s.token(STAR, "*", line, col), nil
	case '/':
		if s.peek() == '=' {
			s.advance()
			return s.token(SLASH_ASSIGN, "/=", line, col), nil
		}
		return s.token(SLASH, "/", line, col), nil
	case '%':
		if s.peek() == '=' {
			s.advance()
			return s.token(PERCENT_ASSIGN, "%=", line, col), nil
		}
		return s.token(PERCENT, "%", line, col), nil
	case '~':
		return s.token(TILDE, "~", line, col), nil

	case '&':
		if s.peek() == '&' {
			s.advance()
			return s.token(AND_LOGICAL, "&&", line, col), nil
		}
		if s.peek() == '=' {
			s.advance()
			return s.token(AND_ASSIGN, "&=", line, col), nil
		}
		return s.token(AMP, "&", line, col), nil
	case '|':
		if s.peek() == '|' {
			s.advance()
			return s.token(OR_LOGICAL, "||", line, col), nil
		}
		if s.peek() == '=' {
			s.advance()
			return s.token(OR_ASSIGN, "|=", line, col), nil
		}
		return s.token(PIPE, "|", line, col), nil
	case '^':
		if s.peek() == '=' {
			s.advance()
			return s.token(XOR_ASSIGN, "^=", line, col), nil
		}
		return s.token(CARET, "^", line, col), nil

	case '<':
		if s.peek() == '<' {
			s.advance()
			if s.peek() == '=' {
				s.advance()
				return s.token(SHL_ASSIGN, "<<=", line, col), nil
			}
			return s.token(SHL, "<<", line, col), nil
		}
		if s.peek() == '=' {
			s.advance()
			return s.token(LESS_EQ, "<=", line, col), nil
		}
		return s.token(LESS, "<", line, col), nil
	case '>':
		if s.peek() == '>' {
			s.advance()
			if s.peek() == '=' {
				s.advance()
				return s.token(SHR_ASSIGN, ">>=", line, col), nil
			}
			return s.token(SHR, ">>", line, col), nil
		}
		if s.peek() == '=' {
			s.advance()
			return s.token(GREATER_EQ, ">=", line, col), nil
		}
		return s.token(GREATER, ">", line, col), nil

	case '=':
		if s.peek() == '=' { // lookahead: distinguish = vs ==
			s.advance()
			return s.token(EQUALS, "==", line, col), nil
		}
		return s.token(ASSIGN, "=", line, col), nil
	case '!':
		if s.peek() == '=' {
			s.advance()
			return s.token(NOT_EQ, "!=", line, col), nil
		}
		return s.token(NOT, "!", line, col), nil

	default:
		return Token{}, s.errorf(line, col, "unexpected character %q", ch)
	}
}

func isHexDigit(r rune) bool {
	return unicode.IsDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}
