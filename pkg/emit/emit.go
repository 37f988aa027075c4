// Package emit turns a fully reduced syntax tree into the flat binary
// cartridge blob loaded by the simulation engine.
//
// Emission is two passes over the root block's statements: pass 1 assigns a
// byte offset to every label, pass 2 encodes the data. The tree handed in
// must already be free of macro, if, repeat and for constructs; the only
// statements understood here are labels, data statements and incbin
// placeholders.
package emit

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gocart/pkg/asm"
)

// Emitter resolves label references while encoding one tree.
type Emitter struct {
	labels  map[string]uint32
	baseDir string // incbin paths are resolved against this
}

func NewEmitter(baseDir string) *Emitter {
	return &Emitter{
		labels:  make(map[string]uint32),
		baseDir: baseDir,
	}
}

// Emit encodes root with incbin paths resolved against baseDir.
func Emit(root *asm.Node, baseDir string) ([]byte, error) {
	return NewEmitter(baseDir).Emit(root)
}

func (e *Emitter) Emit(root *asm.Node) ([]byte, error) {
	if err := e.pass1(root); err != nil {
		return nil, err
	}
	return e.pass2(root)
}

// pass1 walks the statements once to assign byte offsets to labels.
func (e *Emitter) pass1(root *asm.Node) error {
	var offset uint32
	for _, stmt := range root.Body {
		switch stmt.Type {
		case asm.NodeLabel:
			if _, exists := e.labels[stmt.Str]; exists {
				return fmt.Errorf("%s: duplicate label %q", stmt.Token.Pos(), stmt.Str)
			}
			e.labels[stmt.Str] = offset
		case asm.NodeData:
			size, err := e.dataSize(stmt)
			if err != nil {
				return err
			}
			offset += size
		case asm.NodeIncbin:
			info, err := os.Stat(e.resolve(stmt.Str))
			if err != nil {
				return fmt.Errorf("%s: cannot stat incbin %q: %w", stmt.Token.Pos(), stmt.Str, err)
			}
			offset += uint32(info.Size())
		default:
			return fmt.Errorf("%s: internal: %s statement reached the emitter", stmt.Token.Pos(), stmt.Type)
		}
	}
	return nil
}

func (e *Emitter) pass2(root *asm.Node) ([]byte, error) {
	blob := make([]byte, 0)
	for _, stmt := range root.Body {
		switch stmt.Type {
		case asm.NodeLabel:
			// sized in pass 1, emits nothing
		case asm.NodeData:
			encoded, err := e.encodeData(stmt)
			if err != nil {
				return nil, err
			}
			blob = append(blob, encoded...)
		case asm.NodeIncbin:
			raw, err := os.ReadFile(e.resolve(stmt.Str))
			if err != nil {
				return nil, fmt.Errorf("%s: cannot read incbin %q: %w", stmt.Token.Pos(), stmt.Str, err)
			}
			blob = append(blob, raw...)
		}
	}
	return blob, nil
}

func (e *Emitter) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(e.baseDir, path)
}

// widthBytes maps a data statement's width tag to its unit size.
func widthBytes(width asm.KeywordType) uint32 {
	switch width {
	case asm.KwDW:
		return 2
	case asm.KwDL:
		return 4
	}
	return 1
}

// dataSize computes the encoded size of one data statement without
// resolving label operands; a label always occupies the declared width.
func (e *Emitter) dataSize(stmt *asm.Node) (uint32, error) {
	if stmt.Width == asm.KwDS {
		return e.fillSize(stmt)
	}
	unit := widthBytes(stmt.Width)
	var size uint32
	for _, param := range stmt.Body {
		if param.Type == asm.NodeString {
			size += uint32(len(param.Str))
			continue
		}
		size += unit
	}
	return size, nil
}

// fillSize computes the size of a ds statement: count repetitions of the
// fill pattern, a single zero byte when no fill values are given.
func (e *Emitter) fillSize(stmt *asm.Node) (uint32, error) {
	count, err := dsCount(stmt)
	if err != nil {
		return 0, err
	}
	var pattern uint32 = 1
	if len(stmt.Body) > 1 {
		pattern = 0
		for _, param := range stmt.Body[1:] {
			if param.Type == asm.NodeString {
				pattern += uint32(len(param.Str))
			} else {
				pattern++
			}
		}
	}
	return count * pattern, nil
}

func dsCount(stmt *asm.Node) (uint32, error) {
	if len(stmt.Body) == 0 {
		return 0, fmt.Errorf("%s: ds needs a count", stmt.Token.Pos())
	}
	countNode := stmt.Body[0]
	if countNode.Type != asm.NodeNumber || countNode.Num < 0 || countNode.Num != math.Trunc(countNode.Num) {
		return 0, fmt.Errorf("%s: ds count must be a non-negative integer", countNode.Token.Pos())
	}
	return uint32(countNode.Num), nil
}

func (e *Emitter) encodeData(stmt *asm.Node) ([]byte, error) {
	if stmt.Width == asm.KwDS {
		return e.encodeFill(stmt)
	}
	width := widthBytes(stmt.Width)
	out := make([]byte, 0, uint32(len(stmt.Body))*width)
	for _, param := range stmt.Body {
		encoded, err := e.encodeParam(param, stmt.Width, width)
		if err != nil {
			return nil, err
		}
		out = append(out, encoded...)
	}
	return out, nil
}

func (e *Emitter) encodeFill(stmt *asm.Node) ([]byte, error) {
	count, err := dsCount(stmt)
	if err != nil {
		return nil, err
	}
	pattern := []byte{0}
	if len(stmt.Body) > 1 {
		pattern = pattern[:0]
		for _, param := range stmt.Body[1:] {
			encoded, err := e.encodeParam(param, asm.KwDS, 1)
			if err != nil {
				return nil, err
			}
			pattern = append(pattern, encoded...)
		}
	}
	out := make([]byte, 0, int(count)*len(pattern))
	for i := uint32(0); i < count; i++ {
		out = append(out, pattern...)
	}
	return out, nil
}

// encodeParam encodes one data parameter: a string as its raw bytes, a
// number or resolved label little-endian at the declared width.
func (e *Emitter) encodeParam(param *asm.Node, tag asm.KeywordType, width uint32) ([]byte, error) {
	switch param.Type {
	case asm.NodeString:
		if tag != asm.KwDB && tag != asm.KwDS {
			return nil, fmt.Errorf("%s: string literal is only valid in db/ds data", param.Token.Pos())
		}
		return []byte(param.Str), nil
	case asm.NodeNumber:
		return encodeNumber(param.Num, tag, width, param.Token)
	case asm.NodeIdent:
		addr, ok := e.labels[param.Str]
		if !ok {
			return nil, fmt.Errorf("%s: undefined label %q", param.Token.Pos(), param.Str)
		}
		return encodeNumber(float64(addr), tag, width, param.Token)
	}
	return nil, fmt.Errorf("%s: internal: %s node in data statement", param.Token.Pos(), param.Type)
}

// encodeNumber range-checks a value against its declared width and encodes
// it little-endian. Negative values are encoded two's-complement.
func encodeNumber(f float64, tag asm.KeywordType, width uint32, tok asm.Token) ([]byte, error) {
	if f != math.Trunc(f) {
		return nil, fmt.Errorf("%s: data value %v is not an integer", tok.Pos(), f)
	}
	val := int64(f)
	var lo, hi int64
	switch tag {
	case asm.KwDW:
		lo, hi = -32768, 65535
	case asm.KwDL:
		lo, hi = math.MinInt32, math.MaxUint32
	default:
		lo, hi = -128, 255
	}
	if val < lo || val > hi {
		return nil, fmt.Errorf("%s: value %d does not fit %s data", tok.Pos(), val, tag)
	}
	out := make([]byte, width)
	u := uint64(val)
	for i := uint32(0); i < width; i++ {
		out[i] = byte(u >> (8 * i))
	}
	return out, nil
}
