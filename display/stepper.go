package display

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/peterh/liner"
)

// Command is one interactive debugger instruction, in the same
// next/run/break vocabulary the teacher's own debug REPL uses.
type Command struct {
	Kind  CommandKind
	Break uint32 // valid when Kind == CmdBreak
}

type CommandKind int

const (
	CmdNext CommandKind = iota
	CmdRun
	CmdBreak
	CmdQuit
)

// Stepper reads single-step debugger commands from stdin via liner,
// giving the terminal line editing and history the way go-probe's
// console does. It runs its own input goroutine (per SPEC_FULL.md §5,
// the only goroutine in the repository) and hands commands to the run
// loop over a buffered channel; the run loop never touches VM memory
// from anywhere but itself.
type Stepper struct {
	line *liner.State
	cmds chan Command
	done chan struct{}
}

// NewStepper constructs a Stepper and starts its input goroutine.
// Callers must Close it when done.
func NewStepper() *Stepper {
	l := liner.NewLiner()
	l.SetCtrlCAborts(true)
	s := &Stepper{
		line: l,
		cmds: make(chan Command, 1),
		done: make(chan struct{}),
	}
	go s.readLoop()
	return s
}

// readLoop prompts for and parses commands until the line reader errors
// out (EOF, Ctrl-C/-D, or Close) or a quit command is issued, then
// closes cmds so the run loop's range/receive sees a clean end.
func (s *Stepper) readLoop() {
	defer close(s.cmds)
	for {
		text, err := s.line.Prompt("(noneleatic) ")
		if err != nil {
			return
		}
		s.line.AppendHistory(text)
		fields := strings.Fields(strings.TrimSpace(text))
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "n", "next":
			s.send(Command{Kind: CmdNext})
		case "r", "run":
			s.send(Command{Kind: CmdRun})
		case "q", "quit":
			s.send(Command{Kind: CmdQuit})
			return
		case "b", "break":
			if len(fields) != 2 {
				fmt.Println("usage: b <addr>")
				continue
			}
			addr, perr := parseAddr(fields[1])
			if perr != nil {
				fmt.Println(perr)
				continue
			}
			s.send(Command{Kind: CmdBreak, Break: addr})
		default:
			fmt.Printf("unknown command %q (try n, r, b <addr>, q)\n", fields[0])
		}
	}
}

// send delivers cmd to the run loop, giving up if Close has already
// been called (done is closed) so the goroutine never blocks forever
// on a receiver that has walked away.
func (s *Stepper) send(cmd Command) {
	select {
	case s.cmds <- cmd:
	case <-s.done:
	}
}

// Commands returns the channel the run loop receives parsed debugger
// commands from. It closes once the input goroutine exits.
func (s *Stepper) Commands() <-chan Command { return s.cmds }

func (s *Stepper) Close() error {
	close(s.done)
	return s.line.Close()
}

func parseAddr(s string) (uint32, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseUint(s[2:], 16, 32)
		return uint32(v), err
	}
	v, err := strconv.ParseUint(s, 10, 32)
	return uint32(v), err
}
