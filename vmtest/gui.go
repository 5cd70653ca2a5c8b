// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package vmtest

import (
	"sync"

	"github.com/db47h/vmsim/controller"
)

// Message is a message displayed by a controller.
//
type Message struct {
	Text string
	Err  bool
}

// GUI is a controller.GUI that records the notifications it receives. It is
// safe for concurrent use.
//
type GUI struct {
	mu          sync.Mutex
	messages    []Message
	enabled     map[controller.Control]bool
	scriptLine  int
	outputLine  int
	cmpLine     int
	breakpoints []*controller.Breakpoint
	outputFile  string
	cmpFile     string
	updates     int
}

// NewGUI returns a new recording GUI.
//
func NewGUI() *GUI {
	return &GUI{enabled: make(map[controller.Control]bool)}
}

func (g *GUI) SetEnabled(c controller.Control, enabled bool) {
	g.mu.Lock()
	g.enabled[c] = enabled
	g.mu.Unlock()
}

// Enabled returns the state of the given control.
//
func (g *GUI) Enabled(c controller.Control) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled[c]
}

func (g *GUI) SetScriptFile(string) {}

func (g *GUI) SetOutputFile(name string) {
	g.mu.Lock()
	g.outputFile = name
	g.mu.Unlock()
}

func (g *GUI) SetComparisonFile(name string) {
	g.mu.Lock()
	g.cmpFile = name
	g.mu.Unlock()
}

func (g *GUI) SetCurrentScriptLine(line int) {
	g.mu.Lock()
	g.scriptLine = line
	g.mu.Unlock()
}

// ScriptLine returns the last script line set by the controller.
//
func (g *GUI) ScriptLine() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.scriptLine
}

func (g *GUI) SetCurrentOutputLine(line int) {
	g.mu.Lock()
	g.outputLine = line
	g.mu.Unlock()
}

func (g *GUI) SetCurrentComparisonLine(line int) {
	g.mu.Lock()
	g.cmpLine = line
	g.mu.Unlock()
}

func (g *GUI) SetBreakpoints(bps []*controller.Breakpoint) {
	g.mu.Lock()
	g.breakpoints = bps
	g.mu.Unlock()
}

// Breakpoints returns the last breakpoint list sent by the controller.
//
func (g *GUI) Breakpoints() []*controller.Breakpoint {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.breakpoints
}

func (g *GUI) SetSpeed(int) {}
func (g *GUI) SetAnimationMode(controller.AnimationMode) {}
func (g *GUI) SetNumericFormat(controller.NumericFormat) {}
func (g *GUI) SetProfiler(controller.Profiler) {}

func (g *GUI) DisplayMessage(msg string, isErr bool) {
	g.mu.Lock()
	g.messages = append(g.messages, Message{msg, isErr})
	g.mu.Unlock()
}

func (g *GUI) OutputFileUpdated() {
	g.mu.Lock()
	g.updates++
	g.mu.Unlock()
}

// Messages returns the non empty messages displayed so far.
//
func (g *GUI) Messages() []Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	var ms []Message
	for _, m := range g.messages {
		if m.Text != "" {
			ms = append(ms, m)
		}
	}
	return ms
}

// Errors returns the error messages displayed so far.
//
func (g *GUI) Errors() []string {
	var errs []string
	for _, m := range g.Messages() {
		if m.Err {
			errs = append(errs, m.Text)
		}
	}
	return errs
}

// Count returns how many times msg has been displayed.
//
func (g *GUI) Count(msg string) int {
	n := 0
	for _, m := range g.Messages() {
		if m.Text == msg {
			n++
		}
	}
	return n
}

// Last returns the last non empty message.
//
func (g *GUI) Last() Message {
	ms := g.Messages()
	if len(ms) == 0 {
		return Message{}
	}
	return ms[len(ms)-1]
}
