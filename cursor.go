// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package vmsim

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// NoPC is the value of CurrentPC and PreviousPC when no instruction has been
// executed since the last restart.
//
const NoPC = -999

// A Cursor holds the current program of an emulator together with its
// program counter. Programs are swapped atomically by Load: readers either see
// the old program or the new one, never a partial load.
//
// A Cursor is safe for concurrent use.
//
type Cursor struct {
	mu        sync.RWMutex
	prog      *Program
	next      int
	cur       int
	prev      int
	listeners []func(*Program)
}

// NewCursor returns a Cursor holding an empty program.
//
func NewCursor() *Cursor {
	c := new(Cursor)
	c.Reset()
	return c
}

// OnLoad registers a function called with the new program after each Load.
// Listeners must not call back into the Cursor's Load or Reset.
//
func (c *Cursor) OnLoad(fn func(*Program)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Load replaces the current program with p and moves the program counter to
// its start address.
//
func (c *Cursor) Load(p *Program) {
	c.mu.Lock()
	c.prog = p
	c.cur, c.prev = NoPC, NoPC
	c.next = p.Start
	ls := c.listeners
	c.mu.Unlock()

	log.Debug().Str("path", p.Path).Int("size", p.Size()).Int("start", p.Start).Msg("program swapped in")
	for _, fn := range ls {
		fn(p)
	}
}

// Reset erases the current program.
//
func (c *Cursor) Reset() {
	c.mu.Lock()
	c.prog = &Program{InfiniteLoop: -1}
	c.cur, c.prev = NoPC, NoPC
	c.next = -1
	c.mu.Unlock()
}

// Program returns the current program.
//
func (c *Cursor) Program() *Program {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.prog
}

// NextInstruction returns the instruction at the program counter and
// advances it, skipping labels. It returns false if the program counter is
// past the end of the program.
//
func (c *Cursor) NextInstruction() (Instruction, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.next < 0 || c.next >= c.prog.Size() {
		return Instruction{}, false
	}
	in := c.prog.Instructions[c.next]
	c.prev = c.cur
	c.cur = c.next
	c.next = c.prog.NextAddress(c.next)
	return in, true
}

// PC returns the address of the next instruction to execute.
//
func (c *Cursor) PC() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.next
}

// CurrentPC returns the address of the last instruction returned by
// NextInstruction.
//
func (c *Cursor) CurrentPC() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur
}

// PreviousPC returns the address of the instruction executed before the
// current one.
//
func (c *Cursor) PreviousPC() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.prev
}

// SetPC sets the address of the next instruction.
//
func (c *Cursor) SetPC(addr int) {
	c.mu.Lock()
	c.setPC(addr)
	c.mu.Unlock()
}

func (c *Cursor) setPC(addr int) {
	c.prev = c.cur
	c.cur = c.next
	c.next = addr
}

// JumpToInfiniteLoop moves the program counter to the infinite loop appended
// to programs that use built-in functions, de facto halting the program while
// keeping scripts counting steps. Programs without such a loop are ended
// instead.
//
func (c *Cursor) JumpToInfiniteLoop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.prog.InfiniteLoop < 0 {
		c.setPC(c.prog.Size())
		return
	}
	c.setPC(c.prog.InfiniteLoop)
}

// Restart moves the program counter back to the program's start address.
//
func (c *Cursor) Restart() {
	c.mu.Lock()
	c.cur, c.prev = NoPC, NoPC
	c.next = c.prog.Start
	c.mu.Unlock()
}
