package asm

import (
	"reflect"
	"strings"
	"testing"
)

func numNode(f float64, raw string) *Node {
	n := NewNode(NodeNumber, Token{Type: NUMBER, Lexeme: raw})
	n.Num = f
	n.Str = raw
	return n
}

func TestNewNodeAllocatesBodyConditionally(t *testing.T) {
	block := NewNode(NodeBlock, Token{})
	if block.Body == nil || cap(block.Body) != initialBodyCap {
		t.Errorf("block body = len %d cap %d, want empty with cap %d",
			len(block.Body), cap(block.Body), initialBodyCap)
	}
	leaf := NewNode(NodeNumber, Token{})
	if leaf.Body != nil {
		t.Error("number node allocated a body")
	}
}

func TestCopyIsDeep(t *testing.T) {
	orig := NewNode(NodeIf, Token{Type: KEYWORD, Lexeme: "if"})
	orig.Cond = numNode(1, "1")
	data := NewNode(NodeData, Token{Type: KEYWORD, Lexeme: "db"})
	data.Width = KwDB
	if err := data.PushBody(numNode(7, "7")); err != nil {
		t.Fatal(err)
	}
	if err := orig.PushBody(data); err != nil {
		t.Fatal(err)
	}
	label := NewNode(NodeLabel, Token{Type: IDENTIFIER, Lexeme: "start"})
	label.Str = "start"
	if err := orig.PushBody(label); err != nil {
		t.Fatal(err)
	}

	cp := orig.Copy()
	if !reflect.DeepEqual(cp, orig) {
		t.Fatalf("copy is not structurally equal to the original")
	}

	// Mutating the copy must never reach the original.
	cp.Body[1].Str = "changed"
	cp.Body[0].Body[0].Num = 99
	cp.Cond.Num = 0
	if err := cp.Body[0].PushBody(numNode(8, "8")); err != nil {
		t.Fatal(err)
	}

	if orig.Body[1].Str != "start" {
		t.Error("string payload is shared between copy and original")
	}
	if orig.Body[0].Body[0].Num != 7 {
		t.Error("body subtree is shared between copy and original")
	}
	if orig.Cond.Num != 1 {
		t.Error("named child subtree is shared between copy and original")
	}
	if len(orig.Body[0].Body) != 1 {
		t.Error("body array is shared between copy and original")
	}
}

func TestCopyNil(t *testing.T) {
	var n *Node
	if n.Copy() != nil {
		t.Error("Copy of nil is not nil")
	}
}

func TestPushBodyGrowth(t *testing.T) {
	tests := []struct {
		pushes       int
		wantReallocs int // ceil(log2(pushes/8)) doublings from capacity 8
	}{
		{1, 0},
		{8, 0},
		{9, 1},
		{16, 1},
		{17, 2},
		{100, 4},
	}

	for _, tt := range tests {
		block := NewNode(NodeBlock, Token{})
		reallocs := 0
		lastCap := cap(block.Body)
		for i := 0; i < tt.pushes; i++ {
			if err := block.PushBody(numNode(float64(i), "")); err != nil {
				t.Fatalf("push %d: %v", i, err)
			}
			if len(block.Body) > cap(block.Body) {
				t.Fatalf("size %d exceeds capacity %d", len(block.Body), cap(block.Body))
			}
			if cap(block.Body) != lastCap {
				if cap(block.Body) != lastCap*2 {
					t.Fatalf("capacity grew %d -> %d, want doubling", lastCap, cap(block.Body))
				}
				lastCap = cap(block.Body)
				reallocs++
			}
		}
		if reallocs != tt.wantReallocs {
			t.Errorf("%d pushes caused %d reallocations, want %d", tt.pushes, reallocs, tt.wantReallocs)
		}
		if len(block.Body) != tt.pushes {
			t.Errorf("body size = %d, want %d", len(block.Body), tt.pushes)
		}
	}
}

func TestPushBodyOnBodylessNode(t *testing.T) {
	leaf := numNode(1, "1")
	err := leaf.PushBody(numNode(2, "2"))
	if err == nil {
		t.Fatal("pushing to a bodyless node succeeded, want error")
	}
	if !strings.Contains(err.Error(), "no body") {
		t.Errorf("error = %v, want mention of missing body", err)
	}
}

func TestDestroyTolerance(t *testing.T) {
	var n *Node
	n.Destroy() // must not panic

	// String payload but no body.
	label := NewNode(NodeLabel, Token{})
	label.Str = "x"
	label.Destroy()

	// Body but no string, with a nil named child alongside a real one.
	block := NewNode(NodeBlock, Token{})
	if err := block.PushBody(numNode(1, "1")); err != nil {
		t.Fatal(err)
	}
	block.Left = numNode(2, "2")
	block.Destroy()
	if block.Body != nil || block.Left != nil {
		t.Error("Destroy left children attached")
	}
}
