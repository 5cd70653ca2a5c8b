// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package controller implements a script driven simulation controller.
//
// A Controller walks the commands of a test script, forwarding simulator
// commands to a Simulator, writing output lines and comparing them with a
// comparison file. Scripts can be run one step at a time or fast forwarded
// until a breakpoint fires, a comparison fails or the script ends.
//
package controller

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// RunMode is the run state of a Controller.
//
type RunMode int32

// Run modes.
//
const (
	Stopped RunMode = iota
	SingleStepRunning
	FastForwardRunning
)

var modeNames = [...]string{"stopped", "single-step", "fast-forward"}

func (m RunMode) String() string {
	if m >= 0 && int(m) < len(modeNames) {
		return modeNames[m]
	}
	return "unknown"
}

// ScriptParser parses the script file at the given path.
//
type ScriptParser func(path string) (*Script, error)

// Config holds the parameters of a new Controller.
//
type Config struct {
	Simulator Simulator
	Parse     ScriptParser
	// GUI receives state notifications. If nil, the controller runs in
	// headless mode: messages are written to Stdout and animation is
	// disabled.
	GUI GUI
	// Stdout receives messages in headless mode. Defaults to os.Stdout.
	Stdout        io.Writer
	Speed         int // 1 to NumSpeedUnits, defaults to InitialSpeed
	AnimationMode AnimationMode
	NumericFormat NumericFormat
	WorkingDir    string // simulator working directory, defaults to the script directory
}

// Controller runs scripts against a simulator.
//
type Controller struct {
	sim      Simulator
	gui      GUI
	parse    ScriptParser
	stdout   io.Writer
	headless bool

	// mu guards the script state. It is held for the whole duration of a
	// step. Simulator events that may be sent during a step (halt, continue
	// and messages) are handled without locking mu.
	mu         sync.Mutex
	scriptPath string
	script     *Script
	index      int
	loopStart  int
	repeat     int
	while      *Condition
	vars       []VariableFormat
	outName    string
	outFile    *os.File
	out        *bufio.Writer
	outLines   int
	cmpName    string
	cmpFile    *os.File
	cmp        *bufio.Scanner
	cmpLines   int
	cmpFailed  bool
	cmpFailAt  int
	lastDiff   string

	breakpoints BreakpointSet
	temp        BreakpointSet

	mode      atomic.Int32
	stepping  atomic.Bool
	ended     atomic.Bool
	halted    atomic.Bool
	speed     atomic.Int32
	animation atomic.Int32
	echo      atomic.Value

	// slot is held by the single stepping or fast forward worker.
	slot *semaphore.Weighted
	wg   sync.WaitGroup

	tmu      sync.Mutex
	ticker   *time.Ticker
	tickDone chan struct{}

	errMu sync.Mutex
	err   error
}

// New returns a new controller running the given script file.
//
func New(cfg Config, script string) (*Controller, error) {
	if cfg.Simulator == nil {
		return nil, errors.New("no simulator")
	}
	if cfg.Parse == nil {
		return nil, errors.New("no script parser")
	}
	c := &Controller{
		sim:    cfg.Simulator,
		gui:    cfg.GUI,
		parse:  cfg.Parse,
		stdout: cfg.Stdout,
		slot:   semaphore.NewWeighted(1),
	}
	c.echo.Store("")
	anim := cfg.AnimationMode
	if c.gui == nil {
		c.gui = noGUI{}
		c.headless = true
		anim = NoDisplayChanges
	}
	if c.stdout == nil {
		c.stdout = os.Stdout
	}
	speed := cfg.Speed
	if !validSpeed(speed) {
		speed = InitialSpeed
	}
	c.speed.Store(int32(speed))
	c.animation.Store(int32(anim))

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.loadScript(script, false); err != nil {
		return nil, err
	}
	c.sim.AddListener(c)
	c.sim.SetAnimationMode(anim)
	c.sim.SetAnimationSpeed(speed)
	c.sim.SetNumericFormat(cfg.NumericFormat)
	if cfg.WorkingDir != "" {
		c.sim.SetWorkingDir(cfg.WorkingDir)
	} else {
		c.sim.SetWorkingDir(filepath.Dir(script))
	}
	c.gui.SetSpeed(speed)
	c.gui.SetAnimationMode(anim)
	c.gui.SetNumericFormat(cfg.NumericFormat)
	c.stopMode()
	c.gui.SetProfiler(c.sim.Profiler())
	log.Debug().Str("script", script).Str("simulator", c.sim.Name()).Bool("headless", c.headless).Msg("controller ready")
	return c, nil
}

// Mode returns the current run mode.
//
func (c *Controller) Mode() RunMode { return RunMode(c.mode.Load()) }

// Ended returns true if the script has reached its end.
//
func (c *Controller) Ended() bool { return c.ended.Load() }

// Halted returns true if the simulated program has halted.
//
func (c *Controller) Halted() bool { return c.halted.Load() }

// Speed returns the current speed setting.
//
func (c *Controller) Speed() int { return int(c.speed.Load()) }

// AnimationMode returns the current animation mode.
//
func (c *Controller) AnimationMode() AnimationMode { return AnimationMode(c.animation.Load()) }

// Index returns the index of the next script command.
//
func (c *Controller) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// Script returns the current script.
//
func (c *Controller) Script() *Script {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.script
}

// Breakpoints returns a copy of the current breakpoints.
//
func (c *Controller) Breakpoints() []*Breakpoint { return c.breakpoints.List() }

// LastDiff returns a unified diff of the expected and actual lines of the
// last comparison failure, or an empty string.
//
func (c *Controller) LastDiff() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastDiff
}

// Wait blocks until all step workers started by the controller are done.
//
func (c *Controller) Wait() { c.wg.Wait() }

// Close stops the controller, waits for workers and closes output and
// comparison files.
//
func (c *Controller) Close() error {
	c.stopRun()
	c.wg.Wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeFiles()
}

// Run runs the script to completion in fast forward mode. It stops early on
// breakpoints, program halts and errors. It returns the first error message
// displayed during the run, or ctx.Err() if ctx is done first.
//
func (c *Controller) Run(ctx context.Context) error {
	if !c.mode.CompareAndSwap(int32(Stopped), int32(FastForwardRunning)) {
		return errors.New("controller is already running")
	}
	c.errMu.Lock()
	c.err = nil
	c.errMu.Unlock()
	if err := c.slot.Acquire(ctx, 1); err != nil {
		c.stopRun()
		return err
	}
	defer c.slot.Release(1)
	stop := context.AfterFunc(ctx, c.stopRun)
	defer stop()

	c.sim.PrepareFastForward()
	for c.Mode() == FastForwardRunning && c.firstErr() == nil {
		c.singleStep()
	}
	c.stopRun()
	if err := c.firstErr(); err != nil {
		return err
	}
	return ctx.Err()
}

func (c *Controller) firstErr() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Handle handles a controller event.
//
func (c *Controller) Handle(ev Event) {
	if err := c.handle(ev); err != nil {
		c.displayMessage(err.Error(), true)
		c.stopRun()
	}
}

func (c *Controller) handle(ev Event) error {
	switch ev.Action {
	case ActStepOver:
		if c.Mode() != Stopped {
			log.Debug().Stringer("mode", c.Mode()).Msg("step over dropped")
			return nil
		}
		if bp := c.sim.StepOverBreakpoint(); bp != nil {
			c.temp.Add(bp)
			log.Debug().Stringer("breakpoint", bp).Msg("step over")
			c.displayMessage(c.lastEcho(), false)
			c.fastForward()
			return nil
		}
		c.startSingleStep()
	case ActSingleStep:
		c.startSingleStep()
	case ActFastForward:
		c.displayMessage(c.lastEcho(), false)
		c.fastForward()
	case ActStop:
		if c.AnimationMode() == NoDisplayChanges {
			c.displayMessage("", false)
		}
		c.stopRun()
	case ActRewind:
		c.displayMessage("Script restarted", false)
		c.stopRun()
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.rewind()
	case ActSpeedChange:
		n, ok := ev.Data.(int)
		if !ok || !validSpeed(n) {
			return runError(ErrCommand, "Illegal speed %v", ev.Data)
		}
		c.setSpeed(n)
	case ActBreakpointsChange:
		bps, ok := ev.Data.([]*Breakpoint)
		if !ok {
			return runError(ErrCommand, "Illegal breakpoint list")
		}
		c.breakpoints.Replace(bps)
	case ActScriptChange:
		name, ok := ev.Data.(string)
		if !ok {
			return runError(ErrCommand, "Illegal script name")
		}
		c.stopRun()
		c.mu.Lock()
		defer c.mu.Unlock()
		if err := c.loadScript(name, true); err != nil {
			return err
		}
		c.sim.SetWorkingDir(filepath.Dir(name))
		return c.rewind()
	case ActAnimationModeChange:
		m, ok := ev.Data.(AnimationMode)
		if !ok {
			return runError(ErrCommand, "Illegal animation mode")
		}
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.mu.Lock()
			c.setAnimationMode(m)
			c.mu.Unlock()
		}()
	case ActNumericFormatChange:
		f, ok := ev.Data.(NumericFormat)
		if !ok {
			return runError(ErrCommand, "Illegal numeric format")
		}
		c.sim.SetNumericFormat(f)
		c.gui.SetNumericFormat(f)
	case ActLoadProgram:
		if err := c.sim.LoadProgram(); err != nil {
			return classify(ErrProgram, err)
		}
	case ActHaltProgram:
		c.displayMessage("End of program", false)
		c.halted.Store(true)
		if c.Mode() == FastForwardRunning {
			c.stopRun()
		}
		c.gui.SetEnabled(CtlSingleStep, false)
		c.gui.SetEnabled(CtlFastForward, false)
	case ActContinueProgram:
		if c.halted.CompareAndSwap(true, false) {
			c.gui.SetEnabled(CtlSingleStep, true)
			c.gui.SetEnabled(CtlFastForward, true)
		}
	case ActDisplayMessage:
		msg, _ := ev.Data.(string)
		c.displayMessage(msg, false)
	case ActDisplayErrorMessage:
		if c.tickerRunning() {
			c.stopRun()
		}
		msg, _ := ev.Data.(string)
		c.displayMessage(msg, true)
	case ActDisableMovement, ActEnableMovement:
		on := ev.Action == ActEnableMovement
		c.gui.SetEnabled(CtlSingleStep, on)
		c.gui.SetEnabled(CtlFastForward, on)
		c.gui.SetEnabled(CtlRewind, on)
	case ActDisableSingleStep, ActEnableSingleStep:
		c.gui.SetEnabled(CtlSingleStep, ev.Action == ActEnableSingleStep)
	case ActDisableFastForward, ActEnableFastForward:
		c.gui.SetEnabled(CtlFastForward, ev.Action == ActEnableFastForward)
	case ActDisableAnimationModeChange, ActEnableAnimationModeChange:
		c.gui.SetEnabled(CtlAnimationModes, ev.Action == ActEnableAnimationModeChange)
	default:
		return runError(ErrCommand, "Unknown action %d", ev.Action)
	}
	return nil
}

func (c *Controller) lastEcho() string {
	s, _ := c.echo.Load().(string)
	return s
}

func (c *Controller) displayMessage(msg string, isErr bool) {
	if isErr {
		c.errMu.Lock()
		if c.err == nil {
			c.err = errors.New(msg)
		}
		c.errMu.Unlock()
		log.Debug().Str("msg", msg).Msg("error message")
	}
	if !c.headless {
		c.gui.DisplayMessage(msg, isErr)
		return
	}
	// errors are reported by Run
	if !isErr && msg != "" {
		fmt.Fprintln(c.stdout, msg)
	}
}

func (c *Controller) enable(on bool, ctls ...Control) {
	for _, ctl := range ctls {
		c.gui.SetEnabled(ctl, on)
	}
}

// startSingleStep runs a single step in a new worker. The request is dropped
// if the controller is not stopped or if a worker is still running.
//
func (c *Controller) startSingleStep() {
	if !c.mode.CompareAndSwap(int32(Stopped), int32(SingleStepRunning)) {
		log.Debug().Stringer("mode", c.Mode()).Msg("single step dropped")
		return
	}
	if !c.slot.TryAcquire(1) {
		c.mode.CompareAndSwap(int32(SingleStepRunning), int32(Stopped))
		log.Debug().Msg("single step dropped: worker busy")
		return
	}
	c.displayMessage(c.lastEcho(), false)
	c.enable(false, CtlSingleStep, CtlFastForward, CtlScript, CtlRewind)
	c.enable(true, CtlStop)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.slot.Release(1)
		c.singleStep()
		c.afterSingleStep()
	}()
}

func (c *Controller) afterSingleStep() {
	c.mode.CompareAndSwap(int32(SingleStepRunning), int32(Stopped))
	if c.Mode() != FastForwardRunning {
		if !c.ended.Load() && !c.halted.Load() {
			c.enable(true, CtlSingleStep, CtlFastForward)
			c.enable(false, CtlStop)
		}
		c.enable(true, CtlScript, CtlRewind)
	}
	if c.AnimationMode() == NoDisplayChanges {
		c.mu.Lock()
		c.refreshSimulator()
		c.gui.SetCurrentScriptLine(c.script.LineAt(c.index))
		c.mu.Unlock()
	}
}

// fastForward starts fast forwarding. In animated modes, steps are driven by
// a ticker, otherwise a worker runs steps until stopped.
//
func (c *Controller) fastForward() {
	if !c.mode.CompareAndSwap(int32(Stopped), int32(FastForwardRunning)) {
		log.Debug().Stringer("mode", c.Mode()).Msg("fast forward dropped")
		return
	}
	c.enable(true, CtlStop)
	c.enable(false, CtlSingleStep, CtlRewind, CtlScript, CtlFastForward, CtlAnimationModes, CtlLoadProgram)
	c.sim.PrepareFastForward()
	log.Debug().Stringer("animation", c.AnimationMode()).Int("speed", c.Speed()).Msg("fast forward")

	if c.AnimationMode() != NoDisplayChanges {
		c.startTicker()
		return
	}
	c.displayMessage("Running...", false)
	c.enable(false, CtlSpeed)
	c.wg.Add(1)
	go c.fastForwardTask()
}

func (c *Controller) fastForwardTask() {
	defer c.wg.Done()
	if err := c.slot.Acquire(context.Background(), 1); err != nil {
		return
	}
	defer c.slot.Release(1)
	count := 0
	for c.Mode() == FastForwardRunning {
		c.singleStep()
		if count >= Burst(c.Speed()) {
			count = 0
			time.Sleep(time.Millisecond)
		}
		count++
	}
	c.mu.Lock()
	c.refreshSimulator()
	c.gui.SetCurrentScriptLine(c.script.LineAt(c.index))
	c.mu.Unlock()
}

func (c *Controller) startTicker() {
	c.tmu.Lock()
	defer c.tmu.Unlock()
	if c.ticker != nil {
		return
	}
	t := time.NewTicker(Delay(c.Speed()))
	done := make(chan struct{})
	c.ticker, c.tickDone = t, done
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				c.tick()
			}
		}
	}()
}

func (c *Controller) stopTicker() {
	c.tmu.Lock()
	defer c.tmu.Unlock()
	if c.ticker == nil {
		return
	}
	c.ticker.Stop()
	close(c.tickDone)
	c.ticker, c.tickDone = nil, nil
}

func (c *Controller) tickerRunning() bool {
	c.tmu.Lock()
	defer c.tmu.Unlock()
	return c.ticker != nil
}

// tick runs one step if no step is in progress.
//
func (c *Controller) tick() {
	if c.Mode() != FastForwardRunning || !c.slot.TryAcquire(1) {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.slot.Release(1)
		c.singleStep()
		c.afterSingleStep()
	}()
}

func (c *Controller) setSpeed(speed int) {
	c.speed.Store(int32(speed))
	c.tmu.Lock()
	if c.ticker != nil {
		c.ticker.Reset(Delay(speed))
	}
	c.tmu.Unlock()
	c.sim.SetAnimationSpeed(speed)
}

// stopRun puts the controller in Stopped mode. It does not touch the script
// state and can be called from any goroutine.
//
func (c *Controller) stopRun() {
	if RunMode(c.mode.Swap(int32(Stopped))) == FastForwardRunning {
		c.stopTicker()
		c.enable(true, CtlLoadProgram, CtlSpeed)
	}
	c.stepping.Store(false)
	c.enable(true, CtlSingleStep, CtlFastForward, CtlScript, CtlRewind, CtlAnimationModes)
	c.enable(false, CtlStop)
}

// stopMode is like stopRun and also refreshes the display. c.mu must be held.
//
func (c *Controller) stopMode() {
	c.stopRun()
	if c.AnimationMode() == NoDisplayChanges {
		c.gui.SetCurrentScriptLine(c.script.LineAt(c.index))
		c.refreshSimulator()
	}
}

func (c *Controller) stopWithError(err error) {
	c.displayMessage(err.Error(), true)
	c.stopMode()
}

func (c *Controller) refreshSimulator() {
	if c.AnimationMode() == NoDisplayChanges {
		c.sim.SetAnimationMode(DisplayChanges)
		c.sim.Refresh()
		c.sim.SetAnimationMode(NoDisplayChanges)
	}
}

// setAnimationMode sets the animation mode. c.mu must be held.
//
func (c *Controller) setAnimationMode(m AnimationMode) {
	c.sim.SetAnimationMode(m)
	if c.AnimationMode() == NoDisplayChanges && m != NoDisplayChanges {
		c.sim.Refresh()
		c.gui.SetCurrentScriptLine(c.script.LineAt(c.index))
	}
	c.gui.SetAnimationMode(m)
	c.animation.Store(int32(m))
}

// loadScript loads a new script. c.mu must be held.
//
func (c *Controller) loadScript(name string, announce bool) error {
	s, err := c.parse(name)
	if err != nil {
		return err
	}
	if err = c.closeFiles(); err != nil {
		log.Debug().Err(err).Msg("closing previous script files")
	}
	c.scriptPath = name
	c.script = s
	c.breakpoints.Clear()
	c.index = 0
	c.outName, c.cmpName = "", ""
	c.vars = nil
	c.lastDiff = ""

	c.gui.SetOutputFile("")
	c.gui.SetComparisonFile("")
	c.gui.SetBreakpoints(c.breakpoints.List())
	c.gui.SetScriptFile(name)
	c.gui.SetCurrentScriptLine(s.LineAt(0))
	if announce {
		c.displayMessage("New script loaded: "+name, false)
	}
	log.Debug().Str("script", name).Int("commands", s.Len()).Msg("script loaded")
	return nil
}

// rewind restarts the script. c.mu must be held.
//
func (c *Controller) rewind() error {
	if c.ended.Load() || c.halted.Load() {
		c.enable(true, CtlSingleStep, CtlFastForward)
	}
	c.ended.Store(false)
	c.halted.Store(false)

	old := c.AnimationMode()
	c.setAnimationMode(DisplayChanges)
	c.sim.Restart()
	c.refreshSimulator()
	c.setAnimationMode(old)

	if c.outName != "" {
		if err := c.resetOutputFile(); err != nil {
			return err
		}
	}
	if c.cmpName != "" {
		if err := c.resetComparisonFile(); err != nil {
			return err
		}
	}
	c.echo.Store("")
	c.index = 0
	c.repeat, c.while = 0, nil
	c.lastDiff = ""
	c.gui.SetCurrentScriptLine(c.script.LineAt(0))
	log.Debug().Str("script", c.scriptPath).Msg("script restarted")
	return nil
}

// singleStep runs one step and checks breakpoints.
//
func (c *Controller) singleStep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.step(); err != nil {
		log.Debug().Err(err).Int("line", c.script.LineAt(c.index)).Msg("step failed")
		c.stopWithError(err)
	}
}

func (c *Controller) step() error {
	var term Terminator
	c.stepping.Store(true)
	for {
		t, err := c.miniStep()
		if err != nil {
			c.stepping.Store(false)
			return err
		}
		term = t
		if term != TermMiniStep || !c.stepping.Load() {
			break
		}
	}
	c.stepping.Store(false)

	if term == TermStop {
		c.displayMessage("Script reached a '!' terminator", false)
		c.stopMode()
	}
	return c.checkBreakpoints()
}

// checkBreakpoints stops the run if a breakpoint fires. Permanent
// breakpoints fire when their variable becomes equal to their value.
// Temporary breakpoints fire whenever they match and are all discarded once
// any breakpoint fires.
//
func (c *Controller) checkBreakpoints() error {
	reached := false
	for _, b := range c.breakpoints.items() {
		v, err := c.sim.Value(b.VarName)
		if err != nil {
			return classify(ErrVariable, err)
		}
		if v == b.Value {
			if !b.Reached() {
				reached = true
				c.breakpoints.mark(b, true)
				c.gui.SetBreakpoints(c.breakpoints.List())
				log.Debug().Stringer("breakpoint", b).Msg("breakpoint reached")
				c.displayMessage("Breakpoint reached", false)
				c.stopMode()
			}
		} else if b.Reached() {
			c.breakpoints.mark(b, false)
			c.gui.SetBreakpoints(c.breakpoints.List())
		}
	}
	if !reached {
		for _, b := range c.temp.items() {
			v, err := c.sim.Value(b.VarName)
			if err != nil {
				return classify(ErrVariable, err)
			}
			if v == b.Value {
				reached = true
				c.stopMode()
			}
		}
	}
	if reached {
		c.temp.Clear()
	}
	return nil
}

// miniStep executes the current command and advances the script. Loop
// commands do not count as steps: the command following them is executed
// right away. It returns the terminator of the last executed command.
//
func (c *Controller) miniStep() (Terminator, error) {
	for {
		cmd := c.script.At(c.index)
		redo := false
		if err := c.exec(cmd, &redo); err != nil {
			return 0, err
		}

		if cmd.Code != CmdEndScript {
			c.index++
			switch c.script.At(c.index).Code {
			case CmdEndRepeat:
				// a repeat count of 0 loops forever
				if c.repeat == 0 {
					c.index = c.loopStart
				} else if c.repeat--; c.repeat > 0 {
					c.index = c.loopStart
				} else {
					c.index++
				}
			case CmdEndWhile:
				ok, err := c.evalWhile()
				if err != nil {
					return 0, err
				}
				if ok {
					c.index = c.loopStart
				} else {
					c.index++
				}
			}
			if c.AnimationMode() != NoDisplayChanges {
				c.gui.SetCurrentScriptLine(c.script.LineAt(c.index))
			}
		}
		if !redo {
			return cmd.Term, nil
		}
	}
}

func (c *Controller) evalWhile() (bool, error) {
	if c.while == nil {
		return false, runError(ErrCommand, "end-while without while")
	}
	return c.while.Eval(c.sim)
}

func badArg(cmd Command) error {
	return runError(ErrCommand, "Illegal argument for %v command in line %d", cmd.Code, cmd.Line)
}

func (c *Controller) exec(cmd Command, redo *bool) error {
	switch cmd.Code {
	case CmdSimulator:
		args, ok := cmd.Arg.([]string)
		if !ok {
			return badArg(cmd)
		}
		if err := c.sim.DoCommand(args); err != nil {
			return classify(ErrProgram, err)
		}
	case CmdOutputFile:
		name, ok := cmd.Arg.(string)
		if !ok {
			return badArg(cmd)
		}
		c.outName = c.resolve(name)
		if err := c.resetOutputFile(); err != nil {
			return err
		}
		c.gui.SetOutputFile(c.outName)
	case CmdCompareTo:
		name, ok := cmd.Arg.(string)
		if !ok {
			return badArg(cmd)
		}
		c.cmpName = c.resolve(name)
		if err := c.resetComparisonFile(); err != nil {
			return err
		}
		c.gui.SetComparisonFile(c.cmpName)
	case CmdOutputList:
		vars, ok := cmd.Arg.([]VariableFormat)
		if !ok {
			return badArg(cmd)
		}
		if c.out == nil {
			return runError(ErrController, "No output file specified")
		}
		c.vars = vars
		return c.outputAndCompare(HeaderLine(vars))
	case CmdOutput:
		if c.out == nil {
			return runError(ErrController, "No output file specified")
		}
		line, err := OutputLine(c.sim, c.vars)
		if err != nil {
			return err
		}
		return c.outputAndCompare(line)
	case CmdEcho:
		s, ok := cmd.Arg.(string)
		if !ok {
			return badArg(cmd)
		}
		c.echo.Store(s)
		c.displayMessage(s, false)
	case CmdClearEcho:
		c.echo.Store("")
		if !c.headless {
			c.gui.DisplayMessage("", false)
		}
	case CmdBreakpoint:
		b, ok := cmd.Arg.(*Breakpoint)
		if !ok {
			return badArg(cmd)
		}
		if c.breakpoints.Add(NewBreakpoint(b.VarName, b.Value)) {
			c.gui.SetBreakpoints(c.breakpoints.List())
		}
	case CmdClearBreakpoints:
		c.breakpoints.Clear()
		c.gui.SetBreakpoints(c.breakpoints.List())
	case CmdRepeat:
		n, ok := cmd.Arg.(int)
		if !ok {
			return badArg(cmd)
		}
		c.repeat = n
		c.loopStart = c.index + 1
		*redo = true
	case CmdWhile:
		cond, ok := cmd.Arg.(Condition)
		if !ok {
			return badArg(cmd)
		}
		c.while = &cond
		c.loopStart = c.index + 1
		ok, err := cond.Eval(c.sim)
		if err != nil {
			return err
		}
		if !ok {
			for c.index < c.script.Len() && c.script.At(c.index).Code != CmdEndWhile {
				c.index++
			}
		}
		// the while command itself is not a step
		*redo = true
	case CmdEndRepeat, CmdEndWhile:
		// reached only through a jump into a loop's end.
	case CmdEndScript:
		return c.endScript()
	default:
		return runError(ErrCommand, "Unknown command %v in line %d", cmd.Code, cmd.Line)
	}
	return nil
}

func (c *Controller) endScript() error {
	c.ended.Store(true)
	c.stopMode()
	c.enable(false, CtlSingleStep, CtlFastForward)

	if c.out != nil {
		if err := c.out.Flush(); err != nil {
			return runError(ErrController, "Could not write output file %s", c.outName)
		}
		c.outFile.Close()
		c.out, c.outFile = nil, nil
	}
	if c.cmp == nil {
		c.displayMessage("End of script", false)
		return nil
	}
	if c.cmpFailed {
		c.displayMessage(fmt.Sprintf("End of script - Comparison failure at line %d", c.cmpFailAt), true)
	} else {
		c.displayMessage("End of script - Comparison ended successfully", false)
	}
	err := c.cmpFile.Close()
	c.cmp, c.cmpFile = nil, nil
	if err != nil {
		return runError(ErrController, "Could not read comparison file")
	}
	return nil
}

// resolve returns the path of a file named in the script, relative to the
// script's directory.
//
func (c *Controller) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(filepath.Dir(c.scriptPath), name)
}

func (c *Controller) resetOutputFile() error {
	if c.outFile != nil {
		c.outFile.Close()
		c.out, c.outFile = nil, nil
	}
	f, err := os.Create(c.outName)
	if err != nil {
		return runError(ErrController, "Could not create output file %s", c.outName)
	}
	c.outFile, c.out = f, bufio.NewWriter(f)
	c.outLines = 0
	c.gui.SetCurrentOutputLine(-1)
	c.gui.SetOutputFile(c.outName)
	return nil
}

func (c *Controller) resetComparisonFile() error {
	if c.cmpFile != nil {
		c.cmpFile.Close()
		c.cmp, c.cmpFile = nil, nil
	}
	f, err := os.Open(c.cmpName)
	if err != nil {
		return runError(ErrController, "Could not open comparison file %s", c.cmpName)
	}
	c.cmpFile, c.cmp = f, bufio.NewScanner(f)
	c.cmpLines = 0
	c.cmpFailed = false
	c.gui.SetCurrentComparisonLine(-1)
	return nil
}

func (c *Controller) closeFiles() error {
	var err error
	if c.outFile != nil {
		if e := c.out.Flush(); e != nil {
			err = e
		}
		if e := c.outFile.Close(); e != nil && err == nil {
			err = e
		}
	}
	if c.cmpFile != nil {
		if e := c.cmpFile.Close(); e != nil && err == nil {
			err = e
		}
	}
	c.out, c.outFile = nil, nil
	c.cmp, c.cmpFile = nil, nil
	return errors.Wrap(err, "closing script files")
}

// outputAndCompare writes line to the output file and compares it with the
// next line of the comparison file, if any. A comparison failure stops the
// run but does not return an error.
//
func (c *Controller) outputAndCompare(line string) error {
	if _, err := c.out.WriteString(line + "\n"); err != nil {
		return runError(ErrController, "Could not write output file %s", c.outName)
	}
	if err := c.out.Flush(); err != nil {
		return runError(ErrController, "Could not write output file %s", c.outName)
	}
	c.gui.OutputFileUpdated()
	c.gui.SetCurrentOutputLine(c.outLines)
	c.outLines++

	if c.cmp == nil {
		return nil
	}
	var want string
	ok := c.cmp.Scan()
	if ok {
		want = c.cmp.Text()
	} else if err := c.cmp.Err(); err != nil {
		return runError(ErrController, "Could not read comparison file")
	}
	c.gui.SetCurrentComparisonLine(c.cmpLines)
	c.cmpLines++
	if ok && CompareLineWithTemplate(line, want) {
		return nil
	}

	c.cmpFailed = true
	c.cmpFailAt = c.cmpLines
	c.lastDiff = lineDiff(filepath.Base(c.cmpName), filepath.Base(c.outName), want, line, ok)
	log.Warn().Int("line", c.cmpFailAt).Str("diff", c.lastDiff).Msg("comparison failure")
	c.displayMessage(fmt.Sprintf("Comparison failure at line %d", c.cmpFailAt), true)
	c.stopMode()
	return nil
}

// lineDiff returns a unified diff of a comparison failure. want is ignored if
// the comparison file has no more lines.
//
func lineDiff(cmpName, outName, want, got string, haveWant bool) string {
	var a []string
	if haveWant {
		a = difflib.SplitLines(want)
	}
	d := difflib.UnifiedDiff{
		A:        a,
		B:        difflib.SplitLines(got),
		FromFile: cmpName,
		ToFile:   outName,
		Context:  1,
	}
	s, err := difflib.GetUnifiedDiffString(d)
	if err != nil {
		return ""
	}
	return s
}
