// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package vmsim

import (
	"strconv"
	"strings"
)

// Opcode identifies a VM instruction.
//
type Opcode uint8

// VM instructions.
//
const (
	OpUnknown Opcode = iota
	OpAdd
	OpSub
	OpNeg
	OpEq
	OpGt
	OpLt
	OpAnd
	OpOr
	OpNot
	OpPush
	OpPop
	OpLabel
	OpGoto
	OpIfGoto
	OpFunction
	OpCall
	OpReturn
)

var opNames = [...]string{
	OpUnknown:  "unknown",
	OpAdd:      "add",
	OpSub:      "sub",
	OpNeg:      "neg",
	OpEq:       "eq",
	OpGt:       "gt",
	OpLt:       "lt",
	OpAnd:      "and",
	OpOr:       "or",
	OpNot:      "not",
	OpPush:     "push",
	OpPop:      "pop",
	OpLabel:    "label",
	OpGoto:     "goto",
	OpIfGoto:   "if-goto",
	OpFunction: "function",
	OpCall:     "call",
	OpReturn:   "return",
}

func (op Opcode) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "Opcode(" + strconv.Itoa(int(op)) + ")"
}

// ParseOpcode returns the opcode for the given instruction name or OpUnknown.
//
func ParseOpcode(name string) Opcode {
	for op, n := range opNames {
		if op != int(OpUnknown) && n == name {
			return Opcode(op)
		}
	}
	return OpUnknown
}

// Segment identifies a virtual memory segment in push and pop instructions.
//
type Segment uint8

// Memory segments.
//
const (
	SegUnknown Segment = iota
	SegConstant
	SegLocal
	SegArgument
	SegThis
	SegThat
	SegTemp
	SegPointer
	SegStatic
)

var segNames = [...]string{
	SegUnknown:  "unknown",
	SegConstant: "constant",
	SegLocal:    "local",
	SegArgument: "argument",
	SegThis:     "this",
	SegThat:     "that",
	SegTemp:     "temp",
	SegPointer:  "pointer",
	SegStatic:   "static",
}

func (s Segment) String() string {
	if int(s) < len(segNames) {
		return segNames[s]
	}
	return "Segment(" + strconv.Itoa(int(s)) + ")"
}

// ParseSegment returns the segment with the given name or SegUnknown.
//
func ParseSegment(name string) Segment {
	for s, n := range segNames {
		if s != int(SegUnknown) && n == name {
			return Segment(s)
		}
	}
	return SegUnknown
}

// Instruction is a linked VM instruction.
//
// For push and pop, Arg0 is the Segment and Arg1 the offset. For call, Arg0
// is the resolved function address (or BuiltinAddress) and Arg1 the argument
// count. For function, Arg0 is the number of locals. For goto and if-goto,
// Arg0 is the target address. Labels are markers with Arg0 set to -1 and are
// skipped by the program counter.
//
// Name holds the function name for function and call, and the qualified
// label (function$label) for label, goto and if-goto.
//
type Instruction struct {
	Op    Opcode
	Arg0  int
	Arg1  int
	NArgs int // number of numeric arguments present in the source
	Name  string
	Index int // index of the instruction within its function
}

func (in Instruction) String() string {
	var b strings.Builder
	b.WriteString(in.Op.String())
	switch in.Op {
	case OpPush, OpPop:
		b.WriteByte(' ')
		b.WriteString(Segment(in.Arg0).String())
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(in.Arg1))
	case OpFunction:
		b.WriteByte(' ')
		b.WriteString(in.Name)
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(in.Arg0))
	case OpCall:
		b.WriteByte(' ')
		b.WriteString(in.Name)
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(in.Arg1))
	case OpLabel, OpGoto, OpIfGoto:
		b.WriteByte(' ')
		b.WriteString(in.Name)
	default:
		if in.NArgs > 0 {
			b.WriteByte(' ')
			b.WriteString(strconv.Itoa(in.Arg0))
		}
	}
	return b.String()
}
