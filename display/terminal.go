// Package display is the terminal-rendering collaborator spec.md §1
// calls out as external to the core: it implements vm.ScreenSink and
// vm.DebugSink by drawing to an ANSI terminal, the way the original
// implementation drew to curses (SPEC_FULL.md §6.2).
package display

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	colorable "github.com/mattn/go-colorable"
	isatty "github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"

	"github.com/ebuswell/noneleatic/vm"
)

// ErrNoTerminal is returned by NewTerminal when stdout is not a
// terminal the display package knows how to drive, unless the
// NONELEATIC_FORCE_TERMINAL environment variable is non-empty. Callers treat this
// as "run without a display" per spec.md §4.5's best-effort tolerance
// (see SPEC_FULL.md §6.2).
var ErrNoTerminal = errors.New("display: no usable terminal")

// Terminal renders the framebuffer and, in debug mode, an annotated
// hex/op dump, to an ANSI-capable stdout.
type Terminal struct {
	out      io.Writer
	plain    bool // true when stdout isn't a real terminal: no color highlighting (screen-clear escapes are still written)
	debug    bool
	ipLookup func() uint32 // current IP, for highlighting the debug table's active row; nil if unknown
}

// NewTerminal constructs a Terminal. debug enables the hex/op dump
// pane. ipHighlight, if non-nil, is polled to find which debug row to
// highlight; it may be left nil (no highlighting).
func NewTerminal(debug bool, ipHighlight func() uint32) (*Terminal, error) {
	cout := colorable.NewColorableStdout()
	plain := !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd())
	if plain && os.Getenv("NONELEATIC_FORCE_TERMINAL") == "" {
		// No usable terminal: the core tolerates this by simply not
		// calling the sinks (spec.md §4.5). Report it so the caller
		// can choose not to wire a Terminal at all.
		return nil, ErrNoTerminal
	}
	return &Terminal{out: cout, plain: plain, debug: debug, ipLookup: ipHighlight}, nil
}

// clearHome resets the cursor to the top-left and clears the screen.
func (t *Terminal) clearHome() {
	fmt.Fprint(t.out, "\x1b[H\x1b[2J")
}

// RefreshFramebuffer implements vm.ScreenSink: renders mem (25*80
// bytes starting at vm.ScreenStart) as a character grid.
func (t *Terminal) RefreshFramebuffer(mem []byte) error {
	if len(mem) < vm.ScreenSize {
		return fmt.Errorf("display: short framebuffer window (%d bytes)", len(mem))
	}
	t.clearHome()
	var row bytes.Buffer
	for r := 0; r < vm.ScreenRows; r++ {
		row.Reset()
		for c := 0; c < vm.ScreenCols; c++ {
			b := mem[r*vm.ScreenCols+c]
			if b == 0 || b < 0x20 || b > 0x7e {
				row.WriteByte(' ')
			} else {
				row.WriteByte(b)
			}
		}
		fmt.Fprintln(t.out, row.String())
	}
	return nil
}

// RefreshDebug implements vm.DebugSink: renders a hex/op dump table,
// one row per 16-byte window, per spec.md §4.5.
func (t *Terminal) RefreshDebug(mem []byte) error {
	if !t.debug {
		return nil
	}
	var curIP uint32
	haveIP := false
	if t.ipLookup != nil {
		curIP = t.ipLookup()
		haveIP = true
	}

	table := tablewriter.NewWriter(t.out)
	table.SetHeader([]string{"addr", "decode"})
	table.SetAutoWrapText(false)

	highlight := color.New(color.FgYellow, color.Bold)

	for addr := uint32(0); addr+16 <= uint32(len(mem)); addr += 16 {
		window := mem[addr : addr+16]
		label := decodeDebugRow(window)
		row := []string{fmt.Sprintf("%#06x", addr), label}
		if haveIP && addr == curIP && !t.plain {
			row[0] = highlight.Sprint(row[0])
			row[1] = highlight.Sprint(row[1])
		}
		table.Append(row)
	}
	table.Render()
	return nil
}

// decodeDebugRow renders one 16-byte window per spec.md §4.5: as
// "opcode dst src1 src2" if the window is a valid op-shaped record,
// otherwise its leading 4-byte word as ASCII (if printable) or hex.
func decodeDebugRow(window []byte) string {
	if len(window) == 16 && vm.IsOpcode(window[0]) &&
		vm.IsTypeTag(window[1]) && vm.IsTypeTag(window[2]) && vm.IsTypeTag(window[3]) {
		return fmt.Sprintf("%c %c %c %c", window[0], window[1], window[2], window[3])
	}
	word := window[:4]
	if allPrintable(word) {
		return fmt.Sprintf("%q", string(word))
	}
	return fmt.Sprintf("%#08x", word)
}

func allPrintable(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}

// Close tears down the display. ANSI rendering needs no teardown
// beyond resetting text attributes, unlike the original's endwin().
func (t *Terminal) Close() {
	fmt.Fprint(t.out, "\x1b[0m")
}
