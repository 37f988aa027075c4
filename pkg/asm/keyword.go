package asm

import "fmt"

// KeywordType identifies one reserved word of the assembler language.
type KeywordType int

const (
	KwNone KeywordType = iota

	// Data statements
	KwDB // "db": byte data
	KwDW // "dw": word data
	KwDL // "dl": long data
	KwDS // "ds": fill sequence

	// File directives
	KwInclude // "include"
	KwIncbin  // "incbin"

	// Compile-time bindings
	KwDef   // "def"
	KwMacro // "macro"
	KwEndm  // "endm"
	KwNarg  // "narg"
	KwShift // "shift"

	// Compile-time control flow
	KwRepeat // "repeat" / "rept"
	KwFor    // "for"
	KwIf     // "if"
	KwElif   // "elif"
	KwElse   // "else"
	KwEndr   // "endr"
	KwEndc   // "endc"
)

var keywordTypeNames = [...]string{
	KwNone:    "NONE",
	KwDB:      "DB",
	KwDW:      "DW",
	KwDL:      "DL",
	KwDS:      "DS",
	KwInclude: "INCLUDE",
	KwIncbin:  "INCBIN",
	KwDef:     "DEF",
	KwMacro:   "MACRO",
	KwEndm:    "ENDM",
	KwNarg:    "NARG",
	KwShift:   "SHIFT",
	KwRepeat:  "REPEAT",
	KwFor:     "FOR",
	KwIf:      "IF",
	KwElif:    "ELIF",
	KwElse:    "ELSE",
	KwEndr:    "ENDR",
	KwEndc:    "ENDC",
}

func (kt KeywordType) String() string {
	if int(kt) >= 0 && int(kt) < len(keywordTypeNames) {
		return keywordTypeNames[kt]
	}
	return fmt.Sprintf("KeywordType(%d)", int(kt))
}

// Keyword describes one reserved word. Param carries the emitted width in
// bytes for the data keywords and is zero for everything else.
type Keyword struct {
	Name  string
	Type  KeywordType
	Param int
}

// keywords is the process-wide reserved-word table. It is never mutated
// after package init, so lookups are safe from concurrent compilations.
var keywords = map[string]*Keyword{
	"db":      {Name: "db", Type: KwDB, Param: 1},
	"dw":      {Name: "dw", Type: KwDW, Param: 2},
	"dl":      {Name: "dl", Type: KwDL, Param: 4},
	"ds":      {Name: "ds", Type: KwDS, Param: 1},
	"include": {Name: "include", Type: KwInclude},
	"incbin":  {Name: "incbin", Type: KwIncbin},
	"def":     {Name: "def", Type: KwDef},
	"macro":   {Name: "macro", Type: KwMacro},
	"endm":    {Name: "endm", Type: KwEndm},
	"narg":    {Name: "narg", Type: KwNarg},
	"shift":   {Name: "shift", Type: KwShift},
	"repeat":  {Name: "repeat", Type: KwRepeat},
	"rept":    {Name: "rept", Type: KwRepeat},
	"for":     {Name: "for", Type: KwFor},
	"if":      {Name: "if", Type: KwIf},
	"elif":    {Name: "elif", Type: KwElif},
	"else":    {Name: "else", Type: KwElse},
	"endr":    {Name: "endr", Type: KwEndr},
	"endc":    {Name: "endc", Type: KwEndc},
}

// LookupKeyword resolves a lexeme against the reserved-word table.
// Matching is exact and case-sensitive; any lexeme not found here is an
// ordinary identifier.
func LookupKeyword(name string) (*Keyword, bool) {
	kw, ok := keywords[name]
	return kw, ok
}
