// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package vmtest

import (
	"strconv"
	"strings"
	"sync"

	"github.com/db47h/vmsim/controller"
	"github.com/pkg/errors"
)

// Simulator is a fake controller.Simulator holding a set of string
// variables. It understands the following commands:
//
//	set VAR VALUE   sets a variable
//	inc VAR         increments a numeric variable
//	wait            blocks until a value is sent on Gate
//	halt            sends a halt event to the controller
//	message TEXT    sends a message event
//	error TEXT      fails with the given message
//
// Variables default to "0". Reading a variable whose name starts with "bad"
// fails. Restart clears all variables.
//
type Simulator struct {
	// Gate is read by the wait command.
	Gate chan struct{}
	// StepOver is returned by StepOverBreakpoint.
	StepOver *controller.Breakpoint

	mu        sync.Mutex
	vars      map[string]string
	listeners []controller.Listener
	commands  [][]string
	restarts  int
	anim      controller.AnimationMode
	dir       string
	prof      Profiler
}

var _ controller.Simulator = (*Simulator)(nil)

// NewSimulator returns a new fake simulator.
//
func NewSimulator() *Simulator {
	return &Simulator{
		Gate: make(chan struct{}),
		vars: make(map[string]string),
	}
}

func (s *Simulator) Name() string { return "Fake Simulator" }

func (s *Simulator) AddListener(l controller.Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

func (s *Simulator) send(ev controller.Event) {
	s.mu.Lock()
	ls := s.listeners
	s.mu.Unlock()
	for _, l := range ls {
		l.Handle(ev)
	}
}

func (s *Simulator) DoCommand(args []string) error {
	s.mu.Lock()
	s.commands = append(s.commands, args)
	s.mu.Unlock()

	if len(args) == 0 {
		return errors.New("empty command")
	}
	switch args[0] {
	case "set":
		if len(args) != 3 {
			return errors.New("usage: set VAR VALUE")
		}
		s.Set(args[1], args[2])
	case "inc":
		if len(args) != 2 {
			return errors.New("usage: inc VAR")
		}
		v, err := s.Value(args[1])
		if err != nil {
			return err
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return controller.VariableError("Variable is not numeric", args[1])
		}
		s.Set(args[1], strconv.Itoa(n+1))
	case "wait":
		<-s.Gate
	case "halt":
		s.send(controller.Event{Action: controller.ActHaltProgram})
	case "message":
		s.send(controller.Event{Action: controller.ActDisplayMessage, Data: strings.Join(args[1:], " ")})
	case "error":
		return errors.New(strings.Join(args[1:], " "))
	default:
		return errors.Errorf("Unknown simulator command %s", args[0])
	}
	return nil
}

// Set sets the value of a variable.
//
func (s *Simulator) Set(name, value string) {
	s.mu.Lock()
	s.vars[name] = value
	s.mu.Unlock()
}

func (s *Simulator) Value(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.HasPrefix(name, "bad") {
		return "", controller.VariableError("Unknown variable", name)
	}
	if v, ok := s.vars[name]; ok {
		return v, nil
	}
	return "0", nil
}

// Commands returns the commands executed so far.
//
func (s *Simulator) Commands() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]string(nil), s.commands...)
}

func (s *Simulator) Restart() {
	s.mu.Lock()
	s.vars = make(map[string]string)
	s.commands = nil
	s.restarts++
	s.mu.Unlock()
	s.send(controller.Event{Action: controller.ActContinueProgram})
}

// Restarts returns the number of calls to Restart.
//
func (s *Simulator) Restarts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts
}

func (s *Simulator) Refresh() {}

func (s *Simulator) PrepareFastForward() {}

func (s *Simulator) SetAnimationMode(m controller.AnimationMode) {
	s.mu.Lock()
	s.anim = m
	s.mu.Unlock()
}

func (s *Simulator) SetAnimationSpeed(int) {}

func (s *Simulator) SetNumericFormat(controller.NumericFormat) {}

func (s *Simulator) SetWorkingDir(dir string) {
	s.mu.Lock()
	s.dir = dir
	s.mu.Unlock()
}

func (s *Simulator) StepOverBreakpoint() *controller.Breakpoint {
	if s.StepOver == nil {
		return nil
	}
	return controller.NewBreakpoint(s.StepOver.VarName, s.StepOver.Value)
}

func (s *Simulator) LoadProgram() error { return nil }

func (s *Simulator) Profiler() controller.Profiler { return &s.prof }

// Profiler is a controller.Profiler that counts nothing.
//
type Profiler struct {
	mu      sync.Mutex
	enabled bool
}

func (p *Profiler) Reset() {}
func (p *Profiler) Tabs() []string { return nil }
func (p *Profiler) Headers(int) []string { return nil }
func (p *Profiler) Data(int) map[string]int { return nil }

func (p *Profiler) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

func (p *Profiler) SetEnabled(enabled bool) {
	p.mu.Lock()
	p.enabled = enabled
	p.mu.Unlock()
}
