package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ebuswell/noneleatic/vm"
)

func writeTempFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "program.bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadFileAtCursorZero(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	path := writeTempFile(t, data)

	mem := vm.NewMemory(0)
	next, err := LoadFile(mem, 0, path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if next != uint32(len(data)) {
		t.Fatalf("want cursor %d, got %d", len(data), next)
	}
	got := mem.Window(0, uint32(len(data)))
	for i, b := range data {
		if got[i] != b {
			t.Fatalf("byte %d: want %#x, got %#x", i, b, got[i])
		}
	}
}

// A second file loaded with -l's moving cursor lands after the first,
// never overwriting it.
func TestLoadFileAdvancesCursorAcrossFiles(t *testing.T) {
	first := writeTempFile(t, []byte{0xAA, 0xAA, 0xAA, 0xAA})
	second := writeTempFile(t, []byte{0xBB, 0xBB})

	mem := vm.NewMemory(0)
	cursor, err := LoadFile(mem, 0, first)
	if err != nil {
		t.Fatalf("LoadFile(first): %v", err)
	}
	cursor, err = LoadFile(mem, cursor, second)
	if err != nil {
		t.Fatalf("LoadFile(second): %v", err)
	}
	if cursor != 6 {
		t.Fatalf("want final cursor 6, got %d", cursor)
	}
	got := mem.Window(4, 2)
	if got[0] != 0xBB || got[1] != 0xBB {
		t.Fatalf("second file must land at the first file's end, got %v", got)
	}
}

// A file spanning more than one internal read chunk still loads
// correctly and in order.
func TestLoadFileMultiChunk(t *testing.T) {
	data := make([]byte, chunkSize+37)
	for i := range data {
		data[i] = byte(i)
	}
	path := writeTempFile(t, data)

	mem := vm.NewMemory(0)
	next, err := LoadFile(mem, 0, path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if next != uint32(len(data)) {
		t.Fatalf("want cursor %d, got %d", len(data), next)
	}
	got := mem.Window(0, uint32(len(data)))
	for i, b := range data {
		if got[i] != b {
			t.Fatalf("byte %d: want %#x, got %#x", i, b, got[i])
		}
	}
}

func TestLoadFileMissingIsFileIOError(t *testing.T) {
	mem := vm.NewMemory(0)
	_, err := LoadFile(mem, 0, filepath.Join(t.TempDir(), "does-not-exist.bin"))
	ve, ok := err.(*vm.VMError)
	if !ok {
		t.Fatalf("want *vm.VMError, got %T (%v)", err, err)
	}
	if ve.Kind != vm.ErrFileIO {
		t.Fatalf("want ErrFileIO, got %v", ve.Kind)
	}
}

func TestLoadFileRejectsPastBrkMax(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	path := writeTempFile(t, data)

	mem := vm.NewMemory(2) // smaller than even one chunk
	_, err := LoadFile(mem, 0, path)
	ve, ok := err.(*vm.VMError)
	if !ok {
		t.Fatalf("want *vm.VMError, got %T (%v)", err, err)
	}
	if ve.Kind != vm.ErrMemoryLimit {
		t.Fatalf("want ErrMemoryLimit, got %v", ve.Kind)
	}
}
