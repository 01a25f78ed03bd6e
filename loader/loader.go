// Package loader concatenates raw input files into a VM's linear
// memory at a moving cursor, per SPEC_FULL.md §6.3. It never inspects
// the bytes it loads (no header, no relocation), matching the file
// format the VM itself expects.
package loader

import (
	"fmt"
	"io"
	"os"

	"github.com/ebuswell/noneleatic/vm"
)

// chunkSize mirrors the original implementation's FILE_CHUNK: files
// are read and committed to memory in fixed-size chunks so a failing
// Ensure mid-file reports the exact address it could not reach.
const chunkSize = 4096

// LoadFile reads filename's entire contents into mem starting at
// cursor, advancing and returning the new cursor. It reports progress
// to stderr the way the original loader does ("Loading %s at %u").
func LoadFile(mem *vm.Memory, cursor uint32, filename string) (uint32, error) {
	f, err := os.Open(filename)
	if err != nil {
		return cursor, vm.NewFileError(fmt.Errorf("opening %q: %w", filename, err))
	}
	defer f.Close()

	fmt.Fprintf(os.Stderr, "Loading %s at %d\n", filename, cursor)

	buf := make([]byte, chunkSize)
	for {
		if err := mem.Ensure(cursor + chunkSize); err != nil {
			return cursor, &vm.VMError{
				Kind:    vm.ErrMemoryLimit,
				Addr:    cursor + chunkSize,
				HasAddr: true,
				Err:     fmt.Errorf("could not create memory for file %q at %d", filename, cursor+chunkSize),
			}
		}
		n, err := f.Read(buf)
		if n > 0 {
			mem.StoreBytes(cursor, buf[:n])
			cursor += uint32(n)
		}
		if err == io.EOF {
			return cursor, nil
		}
		if err != nil {
			return cursor, vm.NewFileError(fmt.Errorf("reading %q: %w", filename, err))
		}
	}
}
