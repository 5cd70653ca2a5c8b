// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package vmemu

import (
	"strconv"
	"sync"

	vm "github.com/db47h/vmsim"
)

// profiler tabs
//
const (
	TabCalls = iota
	TabFunctions
	TabInstructions
)

const initFunction = "__init__"

// Profiler counts function calls and executed instructions. It is disabled
// by default.
//
type Profiler struct {
	mu        sync.Mutex
	enabled   bool
	stack     []string
	calls     map[string]int
	functions map[string]int
	counts    map[string]int
}

func newProfiler() *Profiler {
	p := new(Profiler)
	p.Reset()
	return p
}

// Reset clears all counters.
//
func (p *Profiler) Reset() {
	p.mu.Lock()
	p.stack = append(p.stack[:0], initFunction)
	p.calls = make(map[string]int)
	p.functions = make(map[string]int)
	p.counts = make(map[string]int)
	p.mu.Unlock()
}

// Tabs returns the names of the profiler tabs.
//
func (p *Profiler) Tabs() []string {
	return []string{"Calls", "Instruction per function", "Instruction counts"}
}

// Headers returns the column headers of the given tab.
//
func (p *Profiler) Headers(tab int) []string {
	switch tab {
	case TabCalls:
		return []string{"Function name", "Called count"}
	case TabFunctions:
		return []string{"Function name", "# executed instructions"}
	case TabInstructions:
		return []string{"Instruction address", "Execution count"}
	}
	return nil
}

// Data returns a copy of the counters of the given tab.
//
func (p *Profiler) Data(tab int) map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	var src map[string]int
	switch tab {
	case TabCalls:
		src = p.calls
	case TabFunctions:
		src = p.functions
	case TabInstructions:
		src = p.counts
	default:
		return nil
	}
	m := make(map[string]int, len(src))
	for k, v := range src {
		m[k] = v
	}
	return m
}

// Enabled reports whether the profiler is counting.
//
func (p *Profiler) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// SetEnabled enables or disables the profiler.
//
func (p *Profiler) SetEnabled(enabled bool) {
	p.mu.Lock()
	p.enabled = enabled
	p.mu.Unlock()
}

// mark records the execution of in.
//
func (p *Profiler) mark(in vm.Instruction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled {
		return
	}
	fn := p.stack[len(p.stack)-1]
	p.functions[fn]++
	p.counts[fn+":"+strconv.Itoa(in.Index)]++
	switch in.Op {
	case vm.OpCall:
		p.calls[in.Name]++
		p.stack = append(p.stack, in.Name)
	case vm.OpReturn:
		if len(p.stack) > 1 {
			p.stack = p.stack[:len(p.stack)-1]
		}
	}
}

// builtinReturn pops the frame pushed by a call to a built-in function.
//
func (p *Profiler) builtinReturn() {
	p.mu.Lock()
	if p.enabled && len(p.stack) > 1 {
		p.stack = p.stack[:len(p.stack)-1]
	}
	p.mu.Unlock()
}

// enter records a call to a function made by a built-in function.
//
func (p *Profiler) enter(name string) {
	p.mu.Lock()
	if p.enabled {
		p.calls[name]++
		p.stack = append(p.stack, name)
	}
	p.mu.Unlock()
}
