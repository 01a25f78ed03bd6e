package asm

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/ebuswell/noneleatic/vm"
)

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.NativeEndian.PutUint32(b, v)
	return b
}

// TestAssembleHaltRecord round-trips spec.md §8 scenario 1 (a single
// halt record) through the assembler's textual form.
func TestAssembleHaltRecord(t *testing.T) {
	src := `
start:
	# U U U
`
	out, labels, err := Assemble(src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(out) != 16 {
		t.Fatalf("want 16 bytes, got %d", len(out))
	}
	if out[0] != vm.OpHalt {
		t.Fatalf("want opcode %q, got %q", vm.OpHalt, out[0])
	}
	if addr, ok := labels["start"]; !ok || addr != 0 {
		t.Fatalf("want label start=0, got %v ok=%v", addr, ok)
	}
}

// TestAssembleImmediateAdd round-trips scenario 2: "+ U U U" with an
// immediate destination and two immediate sources.
func TestAssembleImmediateAdd(t *testing.T) {
	src := "+ U U U dst=0x10 src1=5 src2=7\n"
	out, _, err := Assemble(src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	want := []byte{'+', 'U', 'U', 'U'}
	if !bytes.Equal(out[0:4], want) {
		t.Fatalf("want header %v, got %v", want, out[0:4])
	}
	if !bytes.Equal(out[4:8], le32(0x10)) {
		t.Fatalf("want dst payload 0x10, got %v", out[4:8])
	}
	if !bytes.Equal(out[8:12], le32(5)) {
		t.Fatalf("want src1 payload 5, got %v", out[8:12])
	}
	if !bytes.Equal(out[12:16], le32(7)) {
		t.Fatalf("want src2 payload 7, got %v", out[12:16])
	}
}

// TestAssembleLabelForwardReference confirms a label used before its
// declaration resolves correctly once the full source has been scanned.
func TestAssembleLabelForwardReference(t *testing.T) {
	src := `
	= u U U dst=0 src1=target
halt:
	# U U U
target:
	# U U U
`
	out, labels, err := Assemble(src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(out) != 48 {
		t.Fatalf("want 48 bytes (3 records), got %d", len(out))
	}
	wantTarget := labels["target"]
	if wantTarget != 32 {
		t.Fatalf("want target at 32, got %d", wantTarget)
	}
	gotSrc1 := out[8:12]
	if !bytes.Equal(gotSrc1, le32(wantTarget)) {
		t.Fatalf("want src1 payload %v, got %v", le32(wantTarget), gotSrc1)
	}
}

// TestAssembleRejectsDuplicateLabel confirms the assembler refuses a
// source that declares the same label twice.
func TestAssembleRejectsDuplicateLabel(t *testing.T) {
	src := `
again:
	_ U U U
again:
	# U U U
`
	if _, _, err := Assemble(src); err == nil {
		t.Fatalf("expected an error for a duplicate label")
	}
}

// TestAssembleRejectsUnresolvedOperand confirms an operand field that
// names neither a label, a hex literal, nor a decimal literal fails.
func TestAssembleRejectsUnresolvedOperand(t *testing.T) {
	src := "= U U U dst=nowhere\n"
	if _, _, err := Assemble(src); err == nil {
		t.Fatalf("expected an error for an unresolved operand")
	}
}

// TestAssembleStripsCommentsAndBlankLines confirms comment-only and
// blank lines do not advance the address counter or otherwise disturb
// assembly.
func TestAssembleStripsCommentsAndBlankLines(t *testing.T) {
	src := `
; this is a whole-line comment

	# U U U ; trailing comment too

`
	out, _, err := Assemble(src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(out) != 16 {
		t.Fatalf("want a single 16-byte record, got %d bytes", len(out))
	}
	if out[0] != vm.OpHalt {
		t.Fatalf("want opcode %q, got %q", vm.OpHalt, out[0])
	}
}
