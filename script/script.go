// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package script parses test scripts that drive a controller.Controller.
//
// A script is a sequence of commands separated by terminators:
//
//	load Main.vm,
//	output-file Main.out,
//	compare-to Main.cmp,
//	output-list RAM[256]%D1.6.1 sp%D1.6.1;
//
//	repeat 100 {
//		vmstep;
//	}
//	output;
//
// A ',' terminator runs the next command without pausing, ';' pauses and '!'
// stops a fast forward run. Commands not known to the controller are passed
// verbatim to the simulator. Comments use the // and /* */ syntax.
//
package script

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/db47h/vmsim/controller"
	"github.com/db47h/vmsim/internal/lex"
	"github.com/pkg/errors"
)

// ErrSyntax is the cause of all script syntax errors.
//
var ErrSyntax = errors.New("script syntax error")

// Error is a script syntax error.
//
type Error struct {
	File string
	Line int
	Msg  string
}

func (e *Error) Error() string {
	if e.File == "" {
		return fmt.Sprintf("in line %d: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: in line %d: %s", e.File, e.Line, e.Msg)
}

// Unwrap returns ErrSyntax.
//
func (e *Error) Unwrap() error { return ErrSyntax }

// Cause returns ErrSyntax.
//
func (e *Error) Cause() error { return ErrSyntax }

// ParseFile parses the script file at path. It has the signature of a
// controller.ScriptParser.
//
func ParseFile(path string) (*controller.Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open script")
	}
	defer f.Close()
	return Parse(f, path)
}

// Parse parses a script read from r. The name is used as the script path
// and in error messages.
//
func Parse(r io.Reader, name string) (*controller.Script, error) {
	p := &parser{
		l:    lex.New(r, lexInit),
		name: name,
		loop: -1,
	}
	cmds, err := p.parse()
	if err != nil {
		return nil, err
	}
	return &controller.Script{Path: name, Commands: cmds}, nil
}

type parser struct {
	l        lex.Interface
	i        lex.Item
	name     string
	cmds     []controller.Command
	loop     controller.CommandCode // end command of the open loop, -1 if none
	loopLine int
}

func (p *parser) errorf(line int, format string, args ...interface{}) error {
	return &Error{File: p.name, Line: line, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) next() {
	p.i = p.l.Lex()
}

func (p *parser) emit(code controller.CommandCode, arg interface{}, line int, term controller.Terminator) {
	p.cmds = append(p.cmds, controller.Command{Code: code, Arg: arg, Line: line, Term: term})
}

func (p *parser) parse() ([]controller.Command, error) {
	p.next()
	for {
		switch p.i.Type {
		case EOF:
			if p.loop >= 0 {
				return nil, p.errorf(p.loopLine, "missing '}' for %s loop", p.loopName())
			}
			p.emit(controller.CmdEndScript, nil, p.i.Line, controller.TermNone)
			return p.cmds, nil
		case lex.Error:
			return nil, p.errorf(p.i.Line, "%s", p.i.String())
		case RBrace:
			if p.loop < 0 {
				return nil, p.errorf(p.i.Line, "'}' without a matching loop")
			}
			p.emit(p.loop, nil, p.i.Line, controller.TermNone)
			p.loop = -1
			p.next()
		case Word:
			if err := p.command(); err != nil {
				return nil, err
			}
		default:
			return nil, p.errorf(p.i.Line, "unexpected %s", p.i.String())
		}
	}
}

func (p *parser) loopName() string {
	if p.loop == controller.CmdEndWhile {
		return "while"
	}
	return "repeat"
}

// command parses a command starting at the current word, up to and
// including its terminator or opening brace.
//
func (p *parser) command() error {
	line := p.i.Line
	name := p.i.Value.(string)
	var args []string
	for p.next(); p.i.Type == Word || p.i.Type == String; p.next() {
		args = append(args, p.i.Value.(string))
	}
	if p.i.Type == lex.Error {
		return p.errorf(p.i.Line, "%s", p.i.String())
	}
	end := p.i

	switch name {
	case "repeat", "while":
		if end.Type != LBrace {
			return p.errorf(line, "missing '{' in %s command", name)
		}
		if p.loop >= 0 {
			return p.errorf(line, "nested loops are not supported")
		}
		p.next()
		p.loopLine = line
		if name == "repeat" {
			n, err := p.repeatCount(line, args)
			if err != nil {
				return err
			}
			p.loop = controller.CmdEndRepeat
			p.emit(controller.CmdRepeat, n, line, controller.TermNone)
			return nil
		}
		cond, err := parseCondition(strings.Join(args, " "))
		if err != nil {
			return p.errorf(line, "%v", err)
		}
		p.loop = controller.CmdEndWhile
		p.emit(controller.CmdWhile, cond, line, controller.TermNone)
		return nil
	}

	if end.Type != Term {
		return p.errorf(line, "missing terminator after %s command", name)
	}
	term := controller.Terminator(end.Value.(rune))
	p.next()

	switch name {
	case "output-file", "compare-to":
		if len(args) != 1 {
			return p.errorf(line, "%s expects a file name", name)
		}
		code := controller.CmdOutputFile
		if name == "compare-to" {
			code = controller.CmdCompareTo
		}
		p.emit(code, args[0], line, term)
	case "output-list":
		if len(args) == 0 {
			return p.errorf(line, "missing variables in output-list")
		}
		vars := make([]controller.VariableFormat, 0, len(args))
		for _, a := range args {
			vf, err := ParseFormat(a)
			if err != nil {
				return p.errorf(line, "%v", err)
			}
			vars = append(vars, vf)
		}
		p.emit(controller.CmdOutputList, vars, line, term)
	case "echo":
		if len(args) == 0 {
			return p.errorf(line, "missing text in echo command")
		}
		p.emit(controller.CmdEcho, strings.Join(args, " "), line, term)
	case "breakpoint":
		if len(args) != 2 {
			return p.errorf(line, "breakpoint expects a variable name and a value")
		}
		p.emit(controller.CmdBreakpoint, controller.NewBreakpoint(args[0], args[1]), line, term)
	case "output", "clear-echo", "clear-breakpoints":
		if len(args) != 0 {
			return p.errorf(line, "too many arguments for %s command", name)
		}
		code := controller.CmdOutput
		switch name {
		case "clear-echo":
			code = controller.CmdClearEcho
		case "clear-breakpoints":
			code = controller.CmdClearBreakpoints
		}
		p.emit(code, nil, line, term)
	default:
		p.emit(controller.CmdSimulator, append([]string{name}, args...), line, term)
	}
	return nil
}

func (p *parser) repeatCount(line int, args []string) (int, error) {
	switch len(args) {
	case 0:
		return 0, nil
	case 1:
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return 0, p.errorf(line, "illegal repeat count %q", args[0])
		}
		return n, nil
	}
	return 0, p.errorf(line, "too many arguments for repeat command")
}

// ParseFormat parses an output-list variable of the form name%F<padL>.<len>.<padR>
// where F is one of B, X, D or S. A name without format defaults to %D1.6.1.
//
func ParseFormat(s string) (controller.VariableFormat, error) {
	i := strings.IndexByte(s, '%')
	if i < 0 {
		if s == "" {
			return controller.VariableFormat{}, errors.New("empty variable name")
		}
		return controller.VariableFormat{VarName: s, Format: controller.FormatDecimal, PadL: 1, Len: 6, PadR: 1}, nil
	}
	bad := errors.Errorf("illegal output format %q", s)
	name, f := s[:i], s[i+1:]
	if name == "" || len(f) < 1 {
		return controller.VariableFormat{}, bad
	}
	vf := controller.VariableFormat{VarName: name, Format: controller.Format(f[0])}
	switch vf.Format {
	case controller.FormatBinary, controller.FormatHex, controller.FormatDecimal, controller.FormatString:
	default:
		return controller.VariableFormat{}, bad
	}
	parts := strings.Split(f[1:], ".")
	if len(parts) != 3 {
		return controller.VariableFormat{}, bad
	}
	var n [3]int
	for j, part := range parts {
		v, err := strconv.Atoi(part)
		if err != nil || v < 0 {
			return controller.VariableFormat{}, bad
		}
		n[j] = v
	}
	vf.PadL, vf.Len, vf.PadR = n[0], n[1], n[2]
	return vf, nil
}

// parseCondition parses a while condition like "sp <> 256".
//
func parseCondition(s string) (controller.Condition, error) {
	i := strings.IndexAny(s, "<>=")
	if i < 0 {
		return controller.Condition{}, errors.Errorf("missing operator in condition %q", s)
	}
	sym := s[i : i+1]
	if i+1 < len(s) {
		if op := s[i : i+2]; op == "<>" || op == "<=" || op == ">=" {
			sym = op
		}
	}
	op, _ := controller.ParseCompareOp(sym)
	c := controller.Condition{
		Var:   strings.TrimSpace(s[:i]),
		Op:    op,
		Value: strings.TrimSpace(s[i+len(sym):]),
	}
	if c.Var == "" || c.Value == "" || strings.ContainsAny(c.Var, " \t") {
		return controller.Condition{}, errors.Errorf("illegal condition %q", s)
	}
	return c, nil
}
