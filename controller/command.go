// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package controller

import (
	"strconv"
	"strings"
)

// CommandCode identifies a script command.
//
type CommandCode int

// Script commands.
//
const (
	CmdSimulator        CommandCode = iota // Arg: []string, passed verbatim to the simulator
	CmdOutputFile                          // Arg: string, file name relative to the script
	CmdCompareTo                           // Arg: string, file name relative to the script
	CmdOutputList                          // Arg: []VariableFormat
	CmdOutput                              // no argument
	CmdEcho                                // Arg: string
	CmdClearEcho                           // no argument
	CmdBreakpoint                          // Arg: *Breakpoint
	CmdClearBreakpoints                    // no argument
	CmdRepeat                              // Arg: int, 0 repeats forever
	CmdWhile                               // Arg: Condition
	CmdEndRepeat                           // no argument
	CmdEndWhile                            // no argument
	CmdEndScript                           // no argument
)

var cmdNames = [...]string{
	CmdSimulator:        "simulator command",
	CmdOutputFile:       "output-file",
	CmdCompareTo:        "compare-to",
	CmdOutputList:       "output-list",
	CmdOutput:           "output",
	CmdEcho:             "echo",
	CmdClearEcho:        "clear-echo",
	CmdBreakpoint:       "breakpoint",
	CmdClearBreakpoints: "clear-breakpoints",
	CmdRepeat:           "repeat",
	CmdWhile:            "while",
	CmdEndRepeat:        "end-repeat",
	CmdEndWhile:         "end-while",
	CmdEndScript:        "end-script",
}

func (c CommandCode) String() string {
	if c >= 0 && int(c) < len(cmdNames) {
		return cmdNames[c]
	}
	return "CommandCode(" + strconv.Itoa(int(c)) + ")"
}

// Terminator tells the controller what to do after a command.
//
type Terminator byte

// Command terminators.
//
const (
	TermNone     Terminator = 0   // loop commands
	TermMiniStep Terminator = ',' // continue without pausing
	TermStep     Terminator = ';' // pause
	TermStop     Terminator = '!' // pause and stop fast forward
)

// Command is a parsed script command.
//
type Command struct {
	Code CommandCode
	Arg  interface{}
	Line int // line number in the script
	Term Terminator
}

// Script is a parsed control script. Scripts must end with a CmdEndScript
// command.
//
type Script struct {
	Path     string
	Commands []Command
}

var endScript = Command{Code: CmdEndScript}

// At returns the command at index i. Out of range indices return an
// end-script command.
//
func (s *Script) At(i int) Command {
	if s == nil || i < 0 || i >= len(s.Commands) {
		return endScript
	}
	return s.Commands[i]
}

// LineAt returns the line number of the command at index i.
//
func (s *Script) LineAt(i int) int {
	return s.At(i).Line
}

// Len returns the number of commands in the script.
//
func (s *Script) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Commands)
}

// CompareOp is a comparison operator in while conditions.
//
type CompareOp int

// Comparison operators.
//
const (
	OpEqual CompareOp = iota
	OpNotEqual
	OpLess
	OpGreater
	OpLessOrEqual
	OpGreaterOrEqual
)

var opNames = [...]string{"=", "<>", "<", ">", "<=", ">="}

func (op CompareOp) String() string {
	if op >= 0 && int(op) < len(opNames) {
		return opNames[op]
	}
	return "CompareOp(" + strconv.Itoa(int(op)) + ")"
}

// ParseCompareOp returns the operator with the given symbol.
//
func ParseCompareOp(s string) (CompareOp, bool) {
	for i, n := range opNames {
		if n == s {
			return CompareOp(i), true
		}
	}
	return 0, false
}

// A Valuer returns the current value of a named variable.
//
type Valuer interface {
	Value(name string) (string, error)
}

// Condition is the condition of a while loop.
//
type Condition struct {
	Var   string
	Op    CompareOp
	Value string
}

// Eval evaluates the condition against the current value of c.Var. Values
// are compared as integers if both sides are numeric, as strings otherwise.
//
func (c Condition) Eval(v Valuer) (bool, error) {
	s, err := v.Value(c.Var)
	if err != nil {
		return false, classify(ErrVariable, err)
	}
	var r int
	x, errX := strconv.Atoi(s)
	y, errY := strconv.Atoi(c.Value)
	if errX == nil && errY == nil {
		switch {
		case x < y:
			r = -1
		case x > y:
			r = 1
		}
	} else {
		r = strings.Compare(s, c.Value)
	}
	switch c.Op {
	case OpEqual:
		return r == 0, nil
	case OpNotEqual:
		return r != 0, nil
	case OpLess:
		return r < 0, nil
	case OpGreater:
		return r > 0, nil
	case OpLessOrEqual:
		return r <= 0, nil
	case OpGreaterOrEqual:
		return r >= 0, nil
	}
	return false, runError(ErrCommand, "Illegal comparison operator %v", c.Op)
}

func (c Condition) String() string {
	return c.Var + c.Op.String() + c.Value
}
