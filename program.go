// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package vmsim

import "sort"

// VarStartAddress is the RAM address of the first static variable.
//
const VarStartAddress = 16

// StaticRange is an inclusive range of addresses in the static segment.
// A class that uses no static variable has End == Start-1.
//
type StaticRange struct {
	Start int
	End   int
}

// Len returns the number of static variables in the range.
//
func (r StaticRange) Len() int { return r.End - r.Start + 1 }

// Program is a linked VM program. Programs are built by a Loader and must
// not be modified afterwards.
//
type Program struct {
	// Path of the loaded file or directory.
	Path string
	// Instructions indexed by address.
	Instructions []Instruction
	// Visible is the number of instructions that come from source files.
	// Instructions past Visible are synthesized by the linker.
	Visible int
	// Start is the address of the entry point.
	Start int
	// InfiniteLoop is the address of the self-jump used to halt programs
	// from built-in functions, or -1 if the program has none.
	InfiniteLoop int
	// Classes in load order.
	Classes []string
	// ClassStart holds the address of the first instruction of each class.
	ClassStart []int
	// Functions maps function names to their address.
	Functions map[string]int
	// Symbols maps function names and qualified labels (function$label)
	// to their address.
	Symbols map[string]int
	// Statics maps class names to their static variable range.
	Statics map[string]StaticRange
}

// Size returns the total number of instructions, including synthesized code.
//
func (p *Program) Size() int {
	return len(p.Instructions)
}

// At returns the instruction at address pc.
//
func (p *Program) At(pc int) (Instruction, bool) {
	if pc < 0 || pc >= len(p.Instructions) {
		return Instruction{}, false
	}
	return p.Instructions[pc], true
}

// NextAddress returns the address of the first instruction after pc that is
// not a label.
//
func (p *Program) NextAddress(pc int) int {
	for {
		pc++
		if pc >= len(p.Instructions) || p.Instructions[pc].Op != OpLabel {
			return pc
		}
	}
}

// StaticRange returns the static variable range of the given class.
//
func (p *Program) StaticRange(class string) (StaticRange, bool) {
	r, ok := p.Statics[class]
	return r, ok
}

// Address returns the address of the named function.
//
func (p *Program) Address(function string) (int, bool) {
	a, ok := p.Functions[function]
	return a, ok
}

// ClassAt returns the class of the instruction at address pc. Synthesized
// instructions belong to no class.
//
func (p *Program) ClassAt(pc int) (string, bool) {
	if pc < 0 || pc >= p.Visible {
		return "", false
	}
	i := sort.SearchInts(p.ClassStart, pc+1) - 1
	if i < 0 || i >= len(p.Classes) {
		return "", false
	}
	return p.Classes[i], true
}
