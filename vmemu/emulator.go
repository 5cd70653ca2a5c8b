// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package vmemu provides a headless VM emulator that can be driven by a
// controller.Controller.
//
// The emulator understands the following script commands:
//
//	load [path]       load a .vm file or a directory of .vm files
//	set VAR VALUE     set a variable
//	vmstep            execute one VM instruction
//
// Values can be written in decimal, or in hexadecimal or binary with a %X or
// %B prefix.
//
package vmemu

import (
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	vm "github.com/db47h/vmsim"
	"github.com/db47h/vmsim/controller"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Memory layout.
//
const (
	RAMSize    = 32768
	SP         = 0
	LCL        = 1
	ARG        = 2
	THIS       = 3
	THAT       = 4
	TempBase   = 5
	TempSize   = 8
	StaticSize = 240
	StackBase  = 256
	HeapBase   = 2048
	HeapEnd    = 16384 // screen memory starts here
)

// Emulator is a VM emulator. It implements controller.Simulator.
//
type Emulator struct {
	cursor *vm.Cursor
	loader vm.Loader
	prof   *Profiler

	mu        sync.Mutex
	ram       [RAMSize]int16
	frames    []string // names of the functions in the call stack
	halted    bool
	heap      int // first free heap block, 0 if none
	heapReady bool
	dir       string
	listeners []controller.Listener
	pending   []controller.Event
}

var _ controller.Simulator = (*Emulator)(nil)

// New returns a new emulator that uses l to load programs.
//
func New(l vm.Loader) *Emulator {
	e := &Emulator{
		cursor: vm.NewCursor(),
		loader: l,
		prof:   newProfiler(),
	}
	e.cursor.OnLoad(func(p *vm.Program) {
		e.prof.Reset()
	})
	e.ram[SP] = StackBase
	return e
}

func programError(format string, args ...interface{}) *controller.RunError {
	return &controller.RunError{Kind: controller.ErrProgram, Msg: errors.Errorf(format, args...).Error()}
}

// Name implements controller.Simulator.
//
func (e *Emulator) Name() string { return "VM Emulator" }

// AddListener registers a listener for program events.
//
func (e *Emulator) AddListener(l controller.Listener) {
	e.mu.Lock()
	e.listeners = append(e.listeners, l)
	e.mu.Unlock()
}

// Program returns the current program.
//
func (e *Emulator) Program() *vm.Program {
	return e.cursor.Program()
}

// Halted reports whether the program has run past its last instruction.
//
func (e *Emulator) Halted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.halted
}

func (e *Emulator) post(a controller.Action) {
	e.pending = append(e.pending, controller.Event{Action: a})
}

// unlock releases e.mu and sends pending events. Listeners may call back
// into the emulator.
//
func (e *Emulator) unlock() {
	evs, ls := e.pending, e.listeners
	e.pending = nil
	e.mu.Unlock()
	for _, ev := range evs {
		for _, l := range ls {
			l.Handle(ev)
		}
	}
}

// DoCommand implements controller.Simulator.
//
func (e *Emulator) DoCommand(args []string) error {
	if len(args) == 0 {
		return &controller.RunError{Kind: controller.ErrCommand, Msg: "Empty command"}
	}
	e.mu.Lock()
	defer e.unlock()
	switch args[0] {
	case "load":
		if len(args) > 2 {
			return &controller.RunError{Kind: controller.ErrCommand, Msg: "Too many arguments in load command"}
		}
		path := e.dir
		if len(args) == 2 {
			path = args[1]
			if !filepath.IsAbs(path) {
				path = filepath.Join(e.dir, path)
			}
		}
		return e.load(path)
	case "set":
		if len(args) != 3 {
			return &controller.RunError{Kind: controller.ErrCommand, Msg: "set expects a variable name and a value"}
		}
		return e.set(args[1], args[2])
	case "vmstep":
		if len(args) != 1 {
			return &controller.RunError{Kind: controller.ErrCommand, Msg: "Too many arguments in vmstep command"}
		}
		return e.step()
	}
	return &controller.RunError{Kind: controller.ErrCommand, Msg: "Unknown simulator command", Var: args[0]}
}

func (e *Emulator) load(path string) error {
	if path == "" {
		path = "."
	}
	p, err := e.loader.Load(path)
	if err != nil {
		return err
	}
	e.cursor.Load(p)
	e.frames = e.frames[:0]
	if e.halted {
		e.halted = false
		e.post(controller.ActContinueProgram)
	}
	log.Debug().Str("path", path).Int("size", p.Size()).Msg("vm program loaded")
	return nil
}

// LoadProgram reloads the current program, or loads the working directory if
// no program has been loaded yet.
//
func (e *Emulator) LoadProgram() error {
	e.mu.Lock()
	defer e.unlock()
	path := e.cursor.Program().Path
	if path == "" {
		path = e.dir
	}
	return e.load(path)
}

// Restart clears the RAM and moves the program counter back to the start
// of the program.
//
func (e *Emulator) Restart() {
	e.mu.Lock()
	defer e.unlock()
	e.ram = [RAMSize]int16{}
	e.ram[SP] = StackBase
	e.frames = e.frames[:0]
	e.halted = false
	e.heap, e.heapReady = 0, false
	e.cursor.Restart()
	e.prof.Reset()
	e.post(controller.ActContinueProgram)
}

// Refresh implements controller.Simulator. It does nothing since the
// emulator has no display.
//
func (e *Emulator) Refresh() {}

// PrepareFastForward implements controller.Simulator.
//
func (e *Emulator) PrepareFastForward() {}

// SetAnimationMode implements controller.Simulator.
//
func (e *Emulator) SetAnimationMode(controller.AnimationMode) {}

// SetAnimationSpeed implements controller.Simulator.
//
func (e *Emulator) SetAnimationSpeed(int) {}

// SetNumericFormat implements controller.Simulator. Values are always
// returned in decimal.
//
func (e *Emulator) SetNumericFormat(controller.NumericFormat) {}

// SetWorkingDir sets the directory relative to which programs are loaded.
//
func (e *Emulator) SetWorkingDir(dir string) {
	e.mu.Lock()
	e.dir = dir
	e.mu.Unlock()
}

// Profiler returns the emulator's profiler.
//
func (e *Emulator) Profiler() controller.Profiler {
	return e.prof
}

// StepOverBreakpoint returns a breakpoint that fires when the next
// instruction, a call to a VM function, returns. It is set on the stack
// pointer the caller sees after the return: the callee and any deeper frame
// keep sp above it, so recursive calls do not fire it early.
//
func (e *Emulator) StepOverBreakpoint() *controller.Breakpoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	in, ok := e.cursor.Program().At(e.cursor.PC())
	if !ok || in.Op != vm.OpCall || in.Arg0 == vm.BuiltinAddress {
		return nil
	}
	sp := int(e.ram[SP]) - in.Arg1 + 1
	return controller.NewBreakpoint("sp", strconv.Itoa(sp))
}

// Value returns the value of the named variable.
//
func (e *Emulator) Value(name string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch name {
	case "pc":
		return strconv.Itoa(e.cursor.PC()), nil
	case "currentFunction":
		return e.currentFunction(), nil
	}
	addr, err := e.varAddr(name)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(int(e.ram[addr])), nil
}

func (e *Emulator) set(name, value string) error {
	v, err := parseValue(value)
	if err != nil {
		return controller.VariableError("Illegal value "+strconv.Quote(value)+" for", name)
	}
	switch name {
	case "pc":
		e.cursor.SetPC(int(v))
		if e.halted {
			e.halted = false
			e.post(controller.ActContinueProgram)
		}
		return nil
	case "currentFunction":
		return controller.VariableError("Read-only variable", name)
	}
	addr, err := e.varAddr(name)
	if err != nil {
		return err
	}
	e.ram[addr] = v
	return nil
}

func (e *Emulator) currentFunction() string {
	if len(e.frames) == 0 {
		return ""
	}
	return e.frames[len(e.frames)-1]
}

// varAddr returns the RAM address of a variable.
//
func (e *Emulator) varAddr(name string) (int, error) {
	i := strings.IndexByte(name, '[')
	if i < 0 {
		switch name {
		case "sp":
			return SP, nil
		case "local":
			return LCL, nil
		case "argument":
			return ARG, nil
		case "this":
			return THIS, nil
		case "that":
			return THAT, nil
		}
		return 0, controller.VariableError("Unknown variable", name)
	}
	if !strings.HasSuffix(name, "]") {
		return 0, controller.VariableError("Illegal variable name", name)
	}
	idx, err := strconv.Atoi(name[i+1 : len(name)-1])
	if err != nil || idx < 0 {
		return 0, controller.VariableError("Illegal variable index", name)
	}
	var addr, max int
	switch name[:i] {
	case "RAM":
		addr, max = idx, RAMSize
	case "local":
		addr, max = int(e.ram[LCL])+idx, RAMSize
	case "argument":
		addr, max = int(e.ram[ARG])+idx, RAMSize
	case "this":
		addr, max = int(e.ram[THIS])+idx, RAMSize
	case "that":
		addr, max = int(e.ram[THAT])+idx, RAMSize
	case "temp":
		addr, max = TempBase+idx, TempBase+TempSize
	case "pointer":
		addr, max = THIS+idx, THAT+1
	case "static":
		addr, max = vm.VarStartAddress+idx, vm.VarStartAddress+StaticSize
	default:
		return 0, controller.VariableError("Unknown variable", name)
	}
	if addr < 0 || addr >= max {
		return 0, controller.VariableError("Illegal variable index", name)
	}
	return addr, nil
}

// parseValue parses a 16-bit value in decimal, or with a %X, %B or %D
// prefix.
//
func parseValue(s string) (int16, error) {
	base := 10
	if len(s) > 2 && s[0] == '%' {
		switch s[1] {
		case 'X':
			base = 16
		case 'B':
			base = 2
		case 'D':
		default:
			return 0, errors.Errorf("illegal format %q", s)
		}
		s = s[2:]
	}
	n, err := strconv.ParseInt(s, base, 32)
	if err != nil {
		return 0, errors.Wrap(err, "parse value")
	}
	if n < -32768 || n > 65535 || (base == 10 && n > 32767) {
		return 0, errors.Errorf("value out of range: %d", n)
	}
	return int16(uint16(n)), nil
}
