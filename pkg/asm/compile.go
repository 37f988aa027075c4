package asm

// CompileFile tokenizes and parses one source file, returning the fully
// reduced root block. Includes are spliced, macros expanded and all
// compile-time control flow resolved; the result contains only label, data
// and incbin statements.
func CompileFile(path string) (*Node, error) {
	lex := NewLexer()
	if err := lex.LexFile(path); err != nil {
		return nil, err
	}
	return NewParser(lex).ParseTokens()
}

// CompileString is the in-memory counterpart of CompileFile; name is used
// in diagnostics.
func CompileString(src, name string) (*Node, error) {
	lex := NewLexer()
	if err := lex.LexString(src, name); err != nil {
		return nil, err
	}
	return NewParser(lex).ParseTokens()
}
