// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package controller

import (
	"strings"
	"sync"
)

// A Breakpoint stops a running script when the named variable reaches a given
// value. Breakpoints are identified by their variable name and value only.
//
type Breakpoint struct {
	VarName string
	Value   string
	reached bool
}

// NewBreakpoint returns a new breakpoint.
//
func NewBreakpoint(varName, value string) *Breakpoint {
	return &Breakpoint{VarName: varName, Value: value}
}

// On marks the breakpoint as reached.
//
func (b *Breakpoint) On() { b.reached = true }

// Off clears the reached flag.
//
func (b *Breakpoint) Off() { b.reached = false }

// Reached returns true if the breakpoint's variable had the breakpoint value
// on the last check.
//
func (b *Breakpoint) Reached() bool { return b.reached }

// Equal returns true if b and o break on the same variable and value.
//
func (b *Breakpoint) Equal(o *Breakpoint) bool {
	return b.VarName == o.VarName && b.Value == o.Value
}

// Compare orders breakpoints by variable name, then value.
//
func (b *Breakpoint) Compare(o *Breakpoint) int {
	if c := strings.Compare(b.VarName, o.VarName); c != 0 {
		return c
	}
	return strings.Compare(b.Value, o.Value)
}

func (b *Breakpoint) String() string {
	return b.VarName + "=" + b.Value
}

// BreakpointSet is an insertion ordered set of breakpoints. It is safe for
// concurrent use.
//
type BreakpointSet struct {
	mu  sync.Mutex
	bps []*Breakpoint
}

func (s *BreakpointSet) index(b *Breakpoint) int {
	for i, o := range s.bps {
		if o.Equal(b) {
			return i
		}
	}
	return -1
}

// Add adds b to the set. It returns false if an equal breakpoint is already
// present.
//
func (s *BreakpointSet) Add(b *Breakpoint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index(b) >= 0 {
		return false
	}
	s.bps = append(s.bps, b)
	return true
}

// Remove removes the breakpoint equal to b from the set.
//
func (s *BreakpointSet) Remove(b *Breakpoint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(b)
	if i < 0 {
		return false
	}
	s.bps = append(s.bps[:i], s.bps[i+1:]...)
	return true
}

// Clear empties the set.
//
func (s *BreakpointSet) Clear() {
	s.mu.Lock()
	s.bps = nil
	s.mu.Unlock()
}

// Replace replaces the contents of the set with copies of bps. Duplicates are
// dropped.
//
func (s *BreakpointSet) Replace(bps []*Breakpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bps = nil
	for _, b := range bps {
		if s.index(b) < 0 {
			c := *b
			s.bps = append(s.bps, &c)
		}
	}
}

// Len returns the number of breakpoints in the set.
//
func (s *BreakpointSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bps)
}

// List returns a copy of the breakpoints in the set.
//
func (s *BreakpointSet) List() []*Breakpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := make([]*Breakpoint, len(s.bps))
	for i, b := range s.bps {
		c := *b
		l[i] = &c
	}
	return l
}

// items returns the breakpoints in the set. Their reached flag may be
// updated by the caller.
//
func (s *BreakpointSet) items() []*Breakpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Breakpoint(nil), s.bps...)
}

// mark sets the reached flag of b, which must belong to the set.
//
func (s *BreakpointSet) mark(b *Breakpoint, reached bool) {
	s.mu.Lock()
	b.reached = reached
	s.mu.Unlock()
}
