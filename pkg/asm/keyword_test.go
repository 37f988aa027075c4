package asm

import "testing"

func TestLookupKeyword(t *testing.T) {
	tests := []struct {
		name      string
		wantFound bool
		wantType  KeywordType
		wantParam int
	}{
		{"db", true, KwDB, 1},
		{"dw", true, KwDW, 2},
		{"dl", true, KwDL, 4},
		{"ds", true, KwDS, 1},
		{"if", true, KwIf, 0},
		{"elif", true, KwElif, 0},
		{"repeat", true, KwRepeat, 0},
		{"rept", true, KwRepeat, 0},
		{"endm", true, KwEndm, 0},
		{"narg", true, KwNarg, 0},
		{"myVar", false, KwNone, 0},
		{"DB", false, KwNone, 0}, // lookup is case-sensitive
		{"", false, KwNone, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kw, found := LookupKeyword(tt.name)
			if found != tt.wantFound {
				t.Fatalf("LookupKeyword(%q) found = %v, want %v", tt.name, found, tt.wantFound)
			}
			if !found {
				return
			}
			if kw.Type != tt.wantType || kw.Param != tt.wantParam {
				t.Errorf("LookupKeyword(%q) = {%s %d}, want {%s %d}",
					tt.name, kw.Type, kw.Param, tt.wantType, tt.wantParam)
			}
		})
	}
}
