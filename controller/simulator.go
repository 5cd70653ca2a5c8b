// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package controller

// AnimationMode controls how much a simulator displays while running.
//
type AnimationMode int

// Animation modes.
//
const (
	DisplayChanges AnimationMode = iota
	Animate
	NoDisplayChanges
)

var animNames = [...]string{"display", "animate", "none"}

func (m AnimationMode) String() string {
	if m >= 0 && int(m) < len(animNames) {
		return animNames[m]
	}
	return "unknown"
}

// ParseAnimationMode returns the animation mode with the given name.
//
func ParseAnimationMode(name string) (AnimationMode, bool) {
	for i, n := range animNames {
		if n == name {
			return AnimationMode(i), true
		}
	}
	return 0, false
}

// NumericFormat is the format used by simulators to display values.
//
type NumericFormat int

// Numeric formats.
//
const (
	Decimal NumericFormat = iota
	Hexadecimal
	Binary
)

var numNames = [...]string{"decimal", "hex", "binary"}

func (f NumericFormat) String() string {
	if f >= 0 && int(f) < len(numNames) {
		return numNames[f]
	}
	return "unknown"
}

// ParseNumericFormat returns the numeric format with the given name.
//
func ParseNumericFormat(name string) (NumericFormat, bool) {
	for i, n := range numNames {
		if n == name {
			return NumericFormat(i), true
		}
	}
	return 0, false
}

// A Listener handles controller events.
//
type Listener interface {
	Handle(Event)
}

// Profiler collects execution statistics. Data is organized in tabs, each
// tab mapping keys to counters.
//
type Profiler interface {
	Reset()
	Tabs() []string
	Headers(tab int) []string
	Data(tab int) map[string]int
	Enabled() bool
	SetEnabled(enabled bool)
}

// Simulator is the interface implemented by simulators driven by a
// Controller.
//
// Simulators notify the controller of program halts, display requests and
// errors by sending events to the listeners registered with AddListener.
// These events may be sent from within DoCommand or Restart.
//
type Simulator interface {
	Name() string
	AddListener(l Listener)
	// DoCommand executes a simulator specific script command.
	DoCommand(args []string) error
	// Value returns the value of the named variable.
	Value(name string) (string, error)
	// Restart resets the simulator to its initial state.
	Restart()
	Refresh()
	PrepareFastForward()
	SetAnimationMode(m AnimationMode)
	SetAnimationSpeed(speed int)
	SetNumericFormat(f NumericFormat)
	SetWorkingDir(dir string)
	// StepOverBreakpoint returns a breakpoint that fires once the current
	// instruction has completed, or nil if stepping over is not supported
	// for the current instruction.
	StepOverBreakpoint() *Breakpoint
	// LoadProgram loads the simulator's program from its working directory.
	LoadProgram() error
	Profiler() Profiler
}

// Control identifies a user control of the GUI.
//
type Control int

// User controls.
//
const (
	CtlSingleStep Control = iota
	CtlFastForward
	CtlStop
	CtlRewind
	CtlScript
	CtlLoadProgram
	CtlSpeed
	CtlAnimationModes
)

var ctlNames = [...]string{"single-step", "fast-forward", "stop", "rewind", "script", "load-program", "speed", "animation-modes"}

func (c Control) String() string {
	if c >= 0 && int(c) < len(ctlNames) {
		return ctlNames[c]
	}
	return "unknown"
}

// GUI receives state notifications from a Controller. User actions are sent
// back to the controller as events through its Handle method.
//
type GUI interface {
	SetEnabled(c Control, enabled bool)
	SetScriptFile(name string)
	SetOutputFile(name string)
	SetComparisonFile(name string)
	SetCurrentScriptLine(line int)
	SetCurrentOutputLine(line int)
	SetCurrentComparisonLine(line int)
	SetBreakpoints(bps []*Breakpoint)
	SetSpeed(speed int)
	SetAnimationMode(m AnimationMode)
	SetNumericFormat(f NumericFormat)
	SetProfiler(p Profiler)
	DisplayMessage(msg string, isErr bool)
	OutputFileUpdated()
}

// noGUI is used in headless mode.
//
type noGUI struct{}

func (noGUI) SetEnabled(Control, bool) {}
func (noGUI) SetScriptFile(string) {}
func (noGUI) SetOutputFile(string) {}
func (noGUI) SetComparisonFile(string) {}
func (noGUI) SetCurrentScriptLine(int) {}
func (noGUI) SetCurrentOutputLine(int) {}
func (noGUI) SetCurrentComparisonLine(int) {}
func (noGUI) SetBreakpoints([]*Breakpoint) {}
func (noGUI) SetSpeed(int) {}
func (noGUI) SetAnimationMode(AnimationMode) {}
func (noGUI) SetNumericFormat(NumericFormat) {}
func (noGUI) SetProfiler(Profiler) {}
func (noGUI) DisplayMessage(string, bool) {}
func (noGUI) OutputFileUpdated() {}

// Action is the type of a controller event.
//
type Action int

// Controller actions.
//
const (
	ActSingleStep          Action = iota
	ActStepOver                   // Data: none
	ActFastForward                // Data: none
	ActStop                       // Data: none
	ActRewind                     // Data: none
	ActSpeedChange                // Data: int, 1 to NumSpeedUnits
	ActBreakpointsChange          // Data: []*Breakpoint
	ActScriptChange               // Data: string, script path
	ActAnimationModeChange        // Data: AnimationMode
	ActNumericFormatChange        // Data: NumericFormat
	ActLoadProgram                // Data: none
	ActHaltProgram                // Data: none
	ActContinueProgram            // Data: none
	ActDisplayMessage             // Data: string
	ActDisplayErrorMessage        // Data: string
	ActDisableMovement
	ActEnableMovement
	ActDisableSingleStep
	ActEnableSingleStep
	ActDisableFastForward
	ActEnableFastForward
	ActDisableAnimationModeChange
	ActEnableAnimationModeChange
)

// Event is a request sent to a controller, either by its GUI or by its
// simulator.
//
type Event struct {
	Action Action
	Data   interface{}
}
