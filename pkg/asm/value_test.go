package asm

import "testing"

func TestValueFormatting(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"Void", VoidVal(), "void"},
		{"Integer", NumberVal(10), "10"},
		{"Zero", NumberVal(0), "0"},
		{"Negative integer", NumberVal(-42), "-42"},
		{"Large integer stays exact", NumberVal(1e15), "1000000000000000"},
		{"Fraction", NumberVal(2.5), "2.5"},
		{"String", StringVal("hello"), "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValueDecomposition(t *testing.T) {
	v := NumberVal(3.25)
	if v.Int != 3 || v.Frac != 0.25 {
		t.Errorf("NumberVal(3.25) decomposed to Int=%d Frac=%v", v.Int, v.Frac)
	}
	v.SetNumber(-1.5)
	if v.Int != -1 || v.Frac != -0.5 {
		t.Errorf("SetNumber(-1.5) decomposed to Int=%d Frac=%v", v.Int, v.Frac)
	}
}

func TestValueMutation(t *testing.T) {
	v := NumberVal(7)
	v.SetString("seven")
	if v.Kind != StringValue || v.Str != "seven" || v.Int != 0 {
		t.Errorf("SetString left stale state: %+v", v)
	}
	v.SetNumber(8)
	if v.Kind != NumberValue || v.Str != "" || v.Int != 8 {
		t.Errorf("SetNumber left stale state: %+v", v)
	}
}

func TestValueCopyIndependence(t *testing.T) {
	orig := StringVal("abc")
	cp := orig.Copy()
	cp.SetString("xyz")
	if orig.Str != "abc" {
		t.Errorf("mutating the copy changed the original: %q", orig.Str)
	}
}

func TestConcat(t *testing.T) {
	got, err := Concat(StringVal("ab"), StringVal("cd"))
	if err != nil {
		t.Fatalf("Concat failed: %v", err)
	}
	if got.Str != "abcd" {
		t.Errorf("Concat = %q, want %q", got.Str, "abcd")
	}

	if _, err := Concat(StringVal("ab"), NumberVal(1)); err == nil {
		t.Error("Concat(string, number) succeeded, want error")
	}
}

func TestValueTruthiness(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"Void", VoidVal(), false},
		{"Zero", NumberVal(0), false},
		{"Nonzero", NumberVal(0.5), true},
		{"Empty string", StringVal(""), false},
		{"Nonempty string", StringVal("x"), true},
	}
	for _, tt := range tests {
		if got := tt.v.IsTrue(); got != tt.want {
			t.Errorf("%s: IsTrue() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
