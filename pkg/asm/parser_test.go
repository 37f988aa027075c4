package asm

import (
	"reflect"
	"strings"
	"testing"
)

func compile(t *testing.T, src string) *Node {
	t.Helper()
	root, err := CompileString(src, "test.s")
	if err != nil {
		t.Fatalf("CompileString(%q) failed: %v", src, err)
	}
	return root
}

// flatten renders the reduced tree one statement per entry, so expected
// trees read like the source they should be equivalent to.
func flatten(root *Node) []string {
	var out []string
	for _, stmt := range root.Body {
		switch stmt.Type {
		case NodeLabel:
			out = append(out, stmt.Str+":")
		case NodeIncbin:
			out = append(out, "incbin "+stmt.Str)
		case NodeData:
			var params []string
			for _, p := range stmt.Body {
				switch p.Type {
				case NodeNumber:
					params = append(params, p.Str)
				case NodeString:
					params = append(params, "\""+p.Str+"\"")
				case NodeIdent:
					params = append(params, p.Str)
				default:
					params = append(params, p.Type.String())
				}
			}
			out = append(out, strings.ToLower(stmt.Width.String())+" "+strings.Join(params, ", "))
		default:
			out = append(out, stmt.Type.String())
		}
	}
	return out
}

func TestParseReduced(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "All numeric bases evaluate to ten",
			input:    "db 0b1010, 0o12, 0x0A, 10",
			expected: []string{"db 10, 10, 10, 10"},
		},
		{
			name:     "Character literal data",
			input:    "db 'A', 'B'",
			expected: []string{"db 65, 66"},
		},
		{
			name:     "Constant folding",
			input:    "db (1 + 2) * 3, 16 >> 2, 1 << 3, 7 & 3, ~0 & 0xFF, -(-5)",
			expected: []string{"db 9, 4, 8, 3, 255, 5"},
		},
		{
			name:     "Comparisons and logic fold to flags",
			input:    "db 1 < 2, 2 <= 1, 3 == 3, 1 && 0, 1 || 0, !0",
			expected: []string{"db 1, 0, 1, 0, 1, 1"},
		},
		{
			name:     "Def constants",
			input:    "def N = 4\ndb N + 1, N * N",
			expected: []string{"db 5, 16"},
		},
		{
			name:     "Def rebinding",
			input:    "def N = 1\ndef N = N + 1\ndb N",
			expected: []string{"db 2"},
		},
		{
			name:     "Def string concatenation",
			input:    "def S = \"ab\" + \"cd\"\ndb S",
			expected: []string{"db \"abcd\""},
		},
		{
			name:     "Labels survive and references stay symbolic",
			input:    "start:\ndb 1\ndw start",
			expected: []string{"start:", "db 1", "dw start"},
		},
		{
			name:     "Incbin placeholder",
			input:    "incbin \"sprites.bin\"",
			expected: []string{"incbin sprites.bin"},
		},
		{
			name:     "Repeat unrolls with no repeat nodes left",
			input:    "repeat 3\ndb 1\nendr",
			expected: []string{"db 1", "db 1", "db 1"},
		},
		{
			name:     "Rept alias",
			input:    "rept 2\ndw 5\nendr",
			expected: []string{"dw 5", "dw 5"},
		},
		{
			name:     "Repeat zero produces nothing",
			input:    "repeat 0\ndb 1\nendr\ndb 2",
			expected: []string{"db 2"},
		},
		{
			name:     "For binds the loop variable per iteration",
			input:    "for i, 3\ndb i\nendr",
			expected: []string{"db 0", "db 1", "db 2"},
		},
		{
			name:     "For with start and step",
			input:    "for i, 0, 6, -2\ndb i\nendr",
			expected: []string{"db 6", "db 4", "db 2"},
		},
		{
			name:     "For variable scoped to the loop",
			input:    "def i = 9\nfor i, 2\ndb i\nendr\ndb i",
			expected: []string{"db 0", "db 1", "db 9"},
		},
		{
			name:     "If false takes else",
			input:    "if 0\ndb 1\nelse\ndb 2\nendc",
			expected: []string{"db 2"},
		},
		{
			name:     "If true takes then",
			input:    "if 1\ndb 1\nelse\ndb 2\nendc",
			expected: []string{"db 1"},
		},
		{
			name:     "Elif chain takes single branch",
			input:    "if 0\ndb 1\nelif 1\ndb 2\nelif 1\ndb 3\nelse\ndb 4\nendc",
			expected: []string{"db 2"},
		},
		{
			name:     "If without else and false condition",
			input:    "if 0\ndb 1\nendc\ndb 9",
			expected: []string{"db 9"},
		},
		{
			name:     "Macro expansion with argument and narg",
			input:    "macro m\ndb @0\ndb narg\nendm\nm 5, 6",
			expected: []string{"db 5", "db 2"},
		},
		{
			name:     "Macro expanded independently per call site",
			input:    "macro m\ndb @0\nendm\nm 1\nm 2",
			expected: []string{"db 1", "db 2"},
		},
		{
			name:     "Shift advances the argument cursor",
			input:    "macro m\ndb @0\nshift\ndb @0\nshift 1\ndb @0\nendm\nm 1, 2, 3",
			expected: []string{"db 1", "db 2", "db 3"},
		},
		{
			name:     "Narg ignores shift",
			input:    "macro m\nshift 1\ndb narg\nendm\nm 7, 8",
			expected: []string{"db 2"},
		},
		{
			name:     "Macro argument expressions evaluated at the call site",
			input:    "def N = 3\nmacro m\ndb @0\nendm\nm N * 2",
			expected: []string{"db 6"},
		},
		{
			name:     "String passed as a macro argument",
			input:    "macro say\ndb @0, 0\nendm\nsay \"hi\"",
			expected: []string{"db \"hi\", 0"},
		},
		{
			name:     "Label passed through a macro stays symbolic",
			input:    "macro ptr\ndw @0\nendm\nhere:\nptr here",
			expected: []string{"here:", "dw here"},
		},
		{
			name:     "Control flow inside a macro body",
			input:    "macro m\nif @0\ndb 1\nelse\ndb 2\nendc\nendm\nm 0\nm 1",
			expected: []string{"db 2", "db 1"},
		},
		{
			name:     "Repeat inside a macro body",
			input:    "macro m\nrepeat @0\ndb @1\nendr\nendm\nm 2, 9",
			expected: []string{"db 9", "db 9"},
		},
		{
			name:     "Nested repeat",
			input:    "repeat 2\nrepeat 2\ndb 1\nendr\ndb 2\nendr",
			expected: []string{"db 1", "db 1", "db 2", "db 1", "db 1", "db 2"},
		},
		{
			name:     "Ds count and fill",
			input:    "ds 4, 0xFF",
			expected: []string{"ds 4, 255"},
		},
		{
			name:     "String data in db",
			input:    "db \"AB\", 0",
			expected: []string{"db \"AB\", 0"},
		},
		{
			name:     "Blank lines and comments ignored",
			input:    "\n\n; header\ndb 1\n\n// tail\n",
			expected: []string{"db 1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := compile(t, tt.input)
			defer root.Destroy()
			got := flatten(root)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("reduced tree = %v, want %v", got, tt.expected)
			}
		})
	}
}

// TestParseTreeIsFullyReduced checks the contract handed to the emitter:
// nothing but label, data and incbin statements remain.
func TestParseTreeIsFullyReduced(t *testing.T) {
	src := `macro m
repeat 2
db @0
endr
endm
if 1
m 3
endc
for i, 2
dw i
endr`
	root := compile(t, src)
	defer root.Destroy()
	for _, stmt := range root.Body {
		switch stmt.Type {
		case NodeLabel, NodeData, NodeIncbin:
		default:
			t.Errorf("unreduced %s statement in final tree", stmt.Type)
		}
		for _, p := range stmt.Body {
			switch p.Type {
			case NodeNumber, NodeString, NodeIdent:
			default:
				t.Errorf("unreduced %s parameter in final tree", p.Type)
			}
		}
	}
	if len(root.Body) != 4 {
		t.Errorf("statement count = %d, want 4", len(root.Body))
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string // substring of the error
	}{
		{"Undefined macro", "nope 1", "undefined macro"},
		{"Undefined identifier in condition", "if missing\ndb 1\nendc", "undefined identifier"},
		{"Arg outside macro", "db @0", "outside a macro"},
		{"Narg outside macro", "db narg", "outside a macro"},
		{"Shift outside macro", "shift 1", "outside a macro"},
		{"Arg index out of range", "macro m\ndb @2\nendm\nm 1", "out of range"},
		{"Shift past arguments", "macro m\nshift 3\nendm\nm 1", "shift by 3"},
		{"Division by zero", "db 1 / 0", "division by zero"},
		{"Modulo by zero", "db 1 % 0", "division by zero"},
		{"Byte width violation", "db 256", "does not fit"},
		{"Word width violation", "dw 65536", "does not fit"},
		{"Negative width violation", "db -129", "does not fit"},
		{"String in word data", "dw \"AB\"", "only valid in db"},
		{"Stray endr", "endr", "without a matching"},
		{"Stray endm", "endm", "without a matching"},
		{"Stray else", "else", "without a matching"},
		{"Unclosed macro", "macro m\ndb 1", "never closed"},
		{"Unclosed repeat", "repeat 2\ndb 1", "never closed"},
		{"Unclosed if", "if 1\ndb 1", "never closed"},
		{"Macro redefinition", "macro m\nendm\nmacro m\nendm", "redefined"},
		{"Negative repeat", "repeat -1\nendr", "must not be negative"},
		{"Zero for step", "for i, 3, 0, 0\nendr", "must not be zero"},
		{"Non-integer repeat", "repeat 1.5\nendr", "expected an integer"},
		{"Missing expression", "db ,", "expected an expression"},
		{"Trailing junk", "db 1 2", "after statement"},
		{"Def without assign", "def N 4", "expected '='"},
		{"Incbin without path", "incbin 5", "quoted file path"},
		{"String minus string", "db \"a\" - \"b\"", "not defined for strings"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileString(tt.input, "test.s")
			if err == nil {
				t.Fatalf("CompileString(%q) succeeded, want error containing %q", tt.input, tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want substring %q", err, tt.want)
			}
			if !strings.Contains(err.Error(), "test.s:") {
				t.Errorf("error %v does not carry a source position", err)
			}
		})
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := CompileString("db 1\ndb 1 / 0\n", "rom.s")
	if err == nil {
		t.Fatal("expected division-by-zero error")
	}
	if !strings.Contains(err.Error(), "rom.s:2:") {
		t.Errorf("error %v does not point at line 2", err)
	}
}

func TestParserReuseAcrossCompilations(t *testing.T) {
	lex := NewLexer()
	if err := lex.LexString("db 1", "a.s"); err != nil {
		t.Fatal(err)
	}
	first, err := NewParser(lex).ParseTokens()
	if err != nil {
		t.Fatal(err)
	}
	defer first.Destroy()

	lex.Reset()
	if err := lex.LexString("dw 2", "b.s"); err != nil {
		t.Fatal(err)
	}
	second, err := NewParser(lex).ParseTokens()
	if err != nil {
		t.Fatal(err)
	}
	defer second.Destroy()

	if got := flatten(second); !reflect.DeepEqual(got, []string{"dw 2"}) {
		t.Errorf("second compilation = %v", got)
	}
}
