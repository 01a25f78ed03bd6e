// Package asm is a small two-pass textual assembler for the
// noneleatic operation-record format. It exists purely to make test
// fixtures and example programs readable; the VM core never imports
// it and never assembles anything at runtime; it only ever executes
// raw bytes (SPEC_FULL.md §6.4).
package asm

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// recordSize is the fixed width of one operation record.
const recordSize = 16

// parsedLine is one instruction line, operand fields unresolved.
type parsedLine struct {
	lineNo int
	opcode byte
	tags   [3]byte
	fields map[string]string
}

// Assemble turns line-oriented mnemonic source into the flat 16-byte
// operation-record binary image the VM executes, plus a label-to-
// address map for tests to reference. Labels and operand payloads are
// resolved assuming the resulting image is loaded starting at address
// 0, matching the convention the VM's file format assumes.
func Assemble(source string) ([]byte, map[string]uint32, error) {
	lines := splitLines(source)

	labels := map[string]uint32{}
	var ops []parsedLine

	// Pass 1: strip comments/blanks, record label addresses, parse
	// each instruction line's shape without resolving operand values
	// (a field may name a label declared later in the source).
	var addr uint32
	for i, raw := range lines {
		line := stripComment(raw)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasSuffix(line, ":") {
			name := strings.TrimSuffix(line, ":")
			name = strings.TrimSpace(name)
			if name == "" {
				return nil, nil, fmt.Errorf("asm: line %d: empty label", i+1)
			}
			if _, dup := labels[name]; dup {
				return nil, nil, fmt.Errorf("asm: line %d: duplicate label %q", i+1, name)
			}
			labels[name] = addr
			continue
		}
		pl, err := parseInstructionLine(line, i+1)
		if err != nil {
			return nil, nil, err
		}
		ops = append(ops, pl)
		addr += recordSize
	}

	// Pass 2: resolve each operand field (numeric literal, 0x-hex, or
	// a label name) now that every label's address is known, and
	// encode the fixed-layout record.
	out := make([]byte, 0, len(ops)*recordSize)
	for _, pl := range ops {
		rec := make([]byte, recordSize)
		rec[0] = pl.opcode
		rec[1], rec[2], rec[3] = pl.tags[0], pl.tags[1], pl.tags[2]
		for idx, name := range [3]string{"dst", "src1", "src2"} {
			val, err := resolveOperand(pl.fields[name], labels)
			if err != nil {
				return nil, nil, fmt.Errorf("asm: line %d: %w", pl.lineNo, err)
			}
			binary.NativeEndian.PutUint32(rec[4+idx*4:8+idx*4], val)
		}
		out = append(out, rec...)
	}
	return out, labels, nil
}

func splitLines(source string) []string {
	return strings.Split(strings.ReplaceAll(source, "\r\n", "\n"), "\n")
}

func stripComment(line string) string {
	if i := strings.IndexByte(line, ';'); i >= 0 {
		return line[:i]
	}
	return line
}

func parseInstructionLine(line string, lineNo int) (parsedLine, error) {
	fieldsOf := strings.Fields(line)
	if len(fieldsOf) < 4 {
		return parsedLine{}, fmt.Errorf("asm: line %d: expected \"opcode dsttag src1tag src2tag [dst=.. src1=.. src2=..]\", got %q", lineNo, line)
	}
	if len(fieldsOf[0]) != 1 {
		return parsedLine{}, fmt.Errorf("asm: line %d: opcode must be one character, got %q", lineNo, fieldsOf[0])
	}
	var tags [3]byte
	for i := 0; i < 3; i++ {
		if len(fieldsOf[i+1]) != 1 {
			return parsedLine{}, fmt.Errorf("asm: line %d: type tag must be one character, got %q", lineNo, fieldsOf[i+1])
		}
		tags[i] = fieldsOf[i+1][0]
	}
	fields := map[string]string{}
	for _, kv := range fieldsOf[4:] {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return parsedLine{}, fmt.Errorf("asm: line %d: malformed operand field %q", lineNo, kv)
		}
		fields[parts[0]] = parts[1]
	}
	return parsedLine{
		lineNo: lineNo,
		opcode: fieldsOf[0][0],
		tags:   tags,
		fields: fields,
	}, nil
}

func resolveOperand(text string, labels map[string]uint32) (uint32, error) {
	if text == "" {
		return 0, nil
	}
	if addr, ok := labels[text]; ok {
		return addr, nil
	}
	if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
		v, err := strconv.ParseUint(text[2:], 16, 32)
		if err != nil {
			return 0, fmt.Errorf("bad hex literal %q: %w", text, err)
		}
		return uint32(v), nil
	}
	if v, err := strconv.ParseInt(text, 10, 64); err == nil {
		return uint32(v), nil
	}
	v, err := strconv.ParseUint(text, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("unresolved operand %q (not a label, hex, or decimal literal)", text)
	}
	return uint32(v), nil
}
