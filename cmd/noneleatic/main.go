// Command noneleatic runs programs written for the noneleatic
// instruction set (SPEC_FULL.md). Argument parsing is a hand-rolled
// sequential scan, not a declarative flag set, because -l's effect is
// positional: it only changes where the *next* file loads, which no
// flag library in the reference stack can express (see SPEC_FULL.md
// §6.1 and DESIGN.md's CLI entry).
package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ebuswell/noneleatic/display"
	"github.com/ebuswell/noneleatic/loader"
	"github.com/ebuswell/noneleatic/vm"
)

type action struct {
	setCursor bool
	cursor    uint32
	path      string
}

func main() {
	actions, cfg, err := parseArgs(os.Args[1:])
	if err != nil {
		usage(err)
	}

	machine := vm.New(cfg)

	var cursor uint32
	for _, a := range actions {
		if a.setCursor {
			cursor = a.cursor
			continue
		}
		cursor, err = loader.LoadFile(machine.Mem, cursor, a.path)
		if err != nil {
			fatalExit(err)
		}
	}
	if machine.Mem.Len() == 0 {
		usage(fmt.Errorf("no program loaded"))
	}

	term, derr := display.NewTerminal(cfg.Debug, func() uint32 { return machine.Mem.Load4(0) })
	if derr == nil {
		machine.Screen = term
		if cfg.Debug {
			machine.Debug = term
		}
		defer term.Close()
	}

	var stepper *display.Stepper
	if cfg.Debug && derr == nil {
		fmt.Fprintf(os.Stderr, "memory ceiling: %d bytes\n", machine.Mem.BrkMax())
		stepper = display.NewStepper()
		defer stepper.Close()
	}

	defer func() {
		if r := recover(); r != nil {
			if term != nil {
				term.Close()
			}
			fmt.Fprintf(os.Stderr, "fatal: %v\n", r)
			os.Exit(1)
		}
	}()

	var runErr error
	if stepper != nil {
		runErr = runStepped(machine, stepper)
	} else {
		runErr = machine.Run()
	}
	if runErr != nil {
		// os.Exit skips deferred calls, so tear the display down here.
		if stepper != nil {
			stepper.Close()
		}
		if term != nil {
			term.Close()
		}
		fatalExit(runErr)
	}
	os.Exit(0)
}

// runStepped drives machine.Step by hand under interactive control:
// "n"/"next" executes exactly one step, "r"/"run" and "b <addr>" free-
// run (optionally to a breakpoint), and "q"/"quit" stops early. It is
// the debug-mode counterpart to machine.Run, per SPEC_FULL.md §6.2's
// interactive stepper and §5's single-goroutine-plus-channel design.
func runStepped(machine *vm.VM, stepper *display.Stepper) error {
	running := false
	haveBreak := false
	var breakAddr uint32

	for {
		machine.RefreshViews()

		if !running {
			cmd, ok := <-stepper.Commands()
			if !ok {
				return nil // stdin closed: stop cleanly
			}
			switch cmd.Kind {
			case display.CmdQuit:
				return nil
			case display.CmdRun:
				running, haveBreak = true, false
			case display.CmdBreak:
				running, haveBreak, breakAddr = true, true, cmd.Break
			case display.CmdNext:
				// fall through and execute exactly one step
			}
		} else if d := machine.Delay(); d > 0 {
			time.Sleep(d)
		}

		halted, err := machine.Step()
		if err != nil {
			return err
		}
		if halted {
			return nil
		}
		if running && haveBreak && machine.Mem.Load4(0) == breakAddr {
			running = false
		}
	}
}

func fatalExit(err error) {
	fmt.Fprintf(os.Stderr, "%v\n", err)
	os.Exit(1)
}

func usage(cause error) {
	fmt.Fprintf(os.Stderr, "%v\n", cause)
	fmt.Fprintf(os.Stderr, "usage: %s [-d delay] [-g] [-l location] file [[-l location] file] ...\n", os.Args[0])
	os.Exit(1)
}

// parseArgs walks argv left to right exactly once, exactly as the
// original implementation's ARGBEGIN/EARGF loop does: -l and
// positional files are interleaved into an ordered action list so a
// later -l only affects files that follow it.
func parseArgs(argv []string) ([]action, vm.Config, error) {
	var actions []action
	var cfg vm.Config
	delaySet := false

	for i := 0; i < len(argv); i++ {
		switch argv[i] {
		case "-l":
			i++
			if i >= len(argv) {
				return nil, cfg, fmt.Errorf("-l requires an argument")
			}
			v, err := strconv.ParseUint(argv[i], 10, 32)
			if err != nil {
				return nil, cfg, fmt.Errorf("-l: %w", err)
			}
			actions = append(actions, action{setCursor: true, cursor: uint32(v)})
		case "-d":
			i++
			if i >= len(argv) {
				return nil, cfg, fmt.Errorf("-d requires an argument")
			}
			secs, err := strconv.ParseFloat(argv[i], 64)
			if err != nil {
				return nil, cfg, fmt.Errorf("-d: %w", err)
			}
			cfg.Delay = time.Duration(secs * float64(time.Second))
			delaySet = true
		case "-g":
			cfg.Debug = true
		default:
			actions = append(actions, action{path: argv[i]})
		}
	}
	if cfg.Debug && !delaySet {
		cfg.Delay = 2 * time.Second
	}
	return actions, cfg, nil
}
