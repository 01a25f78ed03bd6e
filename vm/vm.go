package vm

import "time"

// ScreenSink renders the framebuffer region to an output surface. See
// SPEC_FULL.md §4.5; implementations must not retain mem past the call.
type ScreenSink interface {
	RefreshFramebuffer(mem []byte) error
}

// DebugSink renders the annotated hex/op dump. See SPEC_FULL.md §4.5.
type DebugSink interface {
	RefreshDebug(mem []byte) error
}

// ScreenStart and the framebuffer's dimensions, per spec.md §3.
const (
	ScreenStart = 0xF000
	ScreenRows  = 25
	ScreenCols  = 80
	ScreenSize  = ScreenRows * ScreenCols
)

// Config holds the VM's startup parameters. This replaces the
// original implementation's package-level globals with an explicitly
// passed value, per spec.md §9's redesign note.
type Config struct {
	BrkMax uint32        // memory growth ceiling; 0 means DefaultBrkMax
	Delay  time.Duration // per-step sleep, may be zero
	Debug  bool          // whether a debug view is expected to be wired
}

// VM is one noneleatic interpreter instance. There is no requirement
// that multiple VMs coexist in a process, but nothing here prevents it.
type VM struct {
	Mem    *Memory
	Screen ScreenSink // optional; nil is tolerated
	Debug  DebugSink  // optional; nil is tolerated
	cfg    Config
}

// New constructs a VM over a fresh, empty linear memory.
func New(cfg Config) *VM {
	return &VM{
		Mem: NewMemory(cfg.BrkMax),
		cfg: cfg,
	}
}

// ipAddr is the fixed address at which the instruction pointer lives.
const ipAddr = 0

// Step executes exactly one fetch/validate/execute cycle, per the
// nine-step algorithm in spec.md §4.4. It returns (true, nil) after a
// halt opcode executes cleanly, (false, nil) after an ordinary step,
// and a non-nil *VMError on any fatal condition.
func (vm *VM) Step() (halted bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			if ve, ok := r.(*VMError); ok {
				err = ve
				return
			}
			panic(r) // a genuine host trap (e.g. integer divide by zero): do not guard it
		}
	}()

	// 1-2: screen/debug refresh and per-step delay are driven by Run,
	// not Step, so single-stepping from a debugger does not force a
	// sleep; Run calls RefreshViews/sleep around each Step call.

	// 3: read the instruction pointer.
	if err := vm.Mem.Ensure(ipAddr + 4); err != nil {
		return false, vm.wrapMemErr(err, 0)
	}
	ip := vm.Mem.Load4(ipAddr)

	// 4: ensure the full operation record is addressable.
	if err := vm.Mem.Ensure(ip + 16); err != nil {
		return false, vm.wrapMemErr2(ErrInvalidIP, err, ip)
	}

	// 5: decode.
	op := decodeOperation(vm.Mem, ip)

	// 6: validate.
	if !IsOpcode(op.opcode) {
		return false, fatal(ErrInvalidOpcode, ip)
	}
	for _, t := range [3]byte{op.dstTag, op.src1, op.src2} {
		if !IsTypeTag(t) {
			return false, fatal(ErrInvalidType, ip)
		}
	}
	for _, pa := range [3]struct {
		tag  byte
		addr uint32
	}{{op.dstTag, op.dstAddr}, {op.src1, op.s1Addr}, {op.src2, op.s2Addr}} {
		if IsImmediate(pa.tag) {
			continue
		}
		cellAddr := vm.Mem.Load4(pa.addr)
		if err := vm.Mem.Ensure(cellAddr + uint32(Width(pa.tag))); err != nil {
			return false, vm.wrapMemErr2(ErrOperandRange, err, ip)
		}
	}

	// 7: opcode-specific pre-checks.
	if op.opcode == OpBlockCopy {
		n, perr := project[uint32](vm.Mem, op.src2, op.s2Addr)
		if perr != nil {
			return false, fatal(ErrInvalidType, ip)
		}
		stride := uint32(Width(op.dstTag))
		dstBase := addressOf(vm.Mem, op.dstTag, op.dstAddr)
		srcBase := addressOf(vm.Mem, op.src1, op.s1Addr)
		if err := vm.Mem.Ensure(dstBase + stride*n); err != nil {
			return false, vm.wrapMemErr2(ErrOperandRange, err, ip)
		}
		if err := vm.Mem.Ensure(srcBase + stride*n); err != nil {
			return false, vm.wrapMemErr2(ErrOperandRange, err, ip)
		}
	}
	if isBitwiseOrShift(op.opcode) && IsFloatTag(op.dstTag) {
		return false, fatal(ErrIllegalFloatBitwise, ip)
	}

	// 8: advance IP before executing (load-bearing, see spec.md §4.4).
	vm.Mem.Store4(ipAddr, ip+16)

	// 9: execute.
	if execErr := execute(vm.Mem, op); execErr != nil {
		if execErr == errHalt {
			return true, nil
		}
		return false, execErr
	}
	return false, nil
}

// Run drives Step in a loop until halt or a fatal error, refreshing
// the display sinks and sleeping the configured delay between steps.
func (vm *VM) Run() error {
	for {
		vm.RefreshViews()
		if vm.cfg.Delay > 0 {
			time.Sleep(vm.cfg.Delay)
		}
		halted, err := vm.Step()
		if err != nil {
			return err
		}
		if halted {
			return nil
		}
	}
}

// RefreshViews pushes the current framebuffer and full memory image to
// the Screen and Debug sinks, if set. Both Run and an external caller
// driving Step by hand (the interactive stepper, see display.Stepper)
// call this between steps so the display stays in sync either way.
func (vm *VM) RefreshViews() {
	if vm.Screen != nil {
		_ = vm.Screen.RefreshFramebuffer(vm.framebufferView())
	}
	if vm.Debug != nil {
		_ = vm.Debug.RefreshDebug(vm.Mem.View(vm.Mem.Len()))
	}
}

// Delay reports the configured per-step delay.
func (vm *VM) Delay() time.Duration { return vm.cfg.Delay }

// framebufferView returns the 25x80 window starting at ScreenStart,
// growing memory to cover it if necessary (the framebuffer is ordinary
// memory; reading it must not fail merely because nothing wrote there
// yet).
func (vm *VM) framebufferView() []byte {
	if err := vm.Mem.Ensure(ScreenStart + ScreenSize); err != nil {
		return nil
	}
	return vm.Mem.Window(ScreenStart, ScreenSize)
}

func (vm *VM) wrapMemErr(err error, addr uint32) *VMError {
	if me, ok := err.(*memErr); ok {
		return fatalAddr(me.kind, 0, me.addr)
	}
	return fatal(ErrMemoryLimit, 0)
}

// wrapMemErr2 reports kind, the category implied by which validation
// step failed (invalid IP vs. operand out of range, per spec.md §7),
// rather than memErr's own generic "exceeded brk_max" cause, since the
// same underlying Ensure failure is categorized differently depending
// on which caller triggered it.
func (vm *VM) wrapMemErr2(kind ErrKind, err error, ip uint32) *VMError {
	if me, ok := err.(*memErr); ok {
		return fatalAddr(kind, ip, me.addr)
	}
	return fatalAddr(kind, ip, 0)
}
