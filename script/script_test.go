// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package script_test

import (
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/db47h/vmsim/controller"
	"github.com/db47h/vmsim/script"
	"github.com/db47h/vmsim/vmtest"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const basicLoop = `// Runs Main.main
load BasicLoop.vm,
output-file BasicLoop.out,
compare-to BasicLoop.cmp,
output-list RAM[0]%D1.6.1 RAM[256]%X2.4.2;

set RAM[0] 256, /* stack
pointer */ set argument[0] 3;
repeat 600 {
	vmstep;
}
while sp<>256 { vmstep; }
echo "Done, really!";
breakpoint pc 12!
output;
`

func TestParse(t *testing.T) {
	s, err := script.Parse(strings.NewReader(basicLoop), "test/BasicLoop.tst")
	require.NoError(t, err)
	assert.Equal(t, "test/BasicLoop.tst", s.Path)

	want := []controller.Command{
		{Code: controller.CmdSimulator, Arg: []string{"load", "BasicLoop.vm"}, Line: 2, Term: controller.TermMiniStep},
		{Code: controller.CmdOutputFile, Arg: "BasicLoop.out", Line: 3, Term: controller.TermMiniStep},
		{Code: controller.CmdCompareTo, Arg: "BasicLoop.cmp", Line: 4, Term: controller.TermMiniStep},
		{Code: controller.CmdOutputList, Arg: []controller.VariableFormat{
			{VarName: "RAM[0]", Format: controller.FormatDecimal, PadL: 1, Len: 6, PadR: 1},
			{VarName: "RAM[256]", Format: controller.FormatHex, PadL: 2, Len: 4, PadR: 2},
		}, Line: 5, Term: controller.TermStep},
		{Code: controller.CmdSimulator, Arg: []string{"set", "RAM[0]", "256"}, Line: 7, Term: controller.TermMiniStep},
		{Code: controller.CmdSimulator, Arg: []string{"set", "argument[0]", "3"}, Line: 8, Term: controller.TermStep},
		{Code: controller.CmdRepeat, Arg: 600, Line: 9},
		{Code: controller.CmdSimulator, Arg: []string{"vmstep"}, Line: 10, Term: controller.TermStep},
		{Code: controller.CmdEndRepeat, Line: 11},
		{Code: controller.CmdWhile, Arg: controller.Condition{Var: "sp", Op: controller.OpNotEqual, Value: "256"}, Line: 12},
		{Code: controller.CmdSimulator, Arg: []string{"vmstep"}, Line: 12, Term: controller.TermStep},
		{Code: controller.CmdEndWhile, Line: 12},
		{Code: controller.CmdEcho, Arg: "Done, really!", Line: 13, Term: controller.TermStep},
		{Code: controller.CmdBreakpoint, Arg: controller.NewBreakpoint("pc", "12"), Line: 14, Term: controller.TermStop},
		{Code: controller.CmdOutput, Line: 15, Term: controller.TermStep},
		{Code: controller.CmdEndScript, Line: 16},
	}
	require.Equal(t, want, s.Commands)
}

func TestParse_conditions(t *testing.T) {
	data := []struct {
		src string
		c   controller.Condition
	}{
		{"while x = 1 {}", controller.Condition{Var: "x", Op: controller.OpEqual, Value: "1"}},
		{"while x<>1 {}", controller.Condition{Var: "x", Op: controller.OpNotEqual, Value: "1"}},
		{"while RAM[0] < -3 {}", controller.Condition{Var: "RAM[0]", Op: controller.OpLess, Value: "-3"}},
		{"while x >1 {}", controller.Condition{Var: "x", Op: controller.OpGreater, Value: "1"}},
		{"while x<= 1 {}", controller.Condition{Var: "x", Op: controller.OpLessOrEqual, Value: "1"}},
		{"while x >= 1 {}", controller.Condition{Var: "x", Op: controller.OpGreaterOrEqual, Value: "1"}},
	}
	for _, d := range data {
		t.Run(d.src, func(t *testing.T) {
			s, err := script.Parse(strings.NewReader(d.src), "")
			require.NoError(t, err)
			require.Equal(t, 3, s.Len())
			assert.Equal(t, d.c, s.At(0).Arg)
			assert.Equal(t, controller.CmdEndWhile, s.At(1).Code)
		})
	}
}

func TestParse_repeatForever(t *testing.T) {
	s, err := script.Parse(strings.NewReader("repeat {\n vmstep;\n}"), "")
	require.NoError(t, err)
	assert.Equal(t, controller.CmdRepeat, s.At(0).Code)
	assert.Equal(t, 0, s.At(0).Arg)
}

func TestParse_errors(t *testing.T) {
	data := []struct {
		name string
		src  string
		line int
		msg  string
	}{
		{"terminator", "output-file a.out;\noutput", 2, "missing terminator after output command"},
		{"nested", "repeat 2 {\nwhile x=1 {\n}\n}", 2, "nested loops are not supported"},
		{"unclosed", "vmstep;\nrepeat 2 {\nvmstep;", 2, "missing '}' for repeat loop"},
		{"closing", "vmstep;\n}", 2, "'}' without a matching loop"},
		{"repeatBrace", "repeat 3;", 1, "missing '{' in repeat command"},
		{"repeatCount", "repeat x {}", 1, `illegal repeat count "x"`},
		{"condition", "while x {}", 1, `missing operator in condition "x"`},
		{"format", "output-list x%Q1.2.3;", 1, `illegal output format "x%Q1.2.3"`},
		{"formatPad", "output-list x%D1.2;", 1, `illegal output format "x%D1.2"`},
		{"breakpoint", "breakpoint x;", 1, "breakpoint expects a variable name and a value"},
		{"output", "output x;", 1, "too many arguments for output command"},
		{"string", "echo \"abc\n\";", 1, "unterminated string"},
		{"comment", "vmstep;\n/* abc", 2, "unterminated comment"},
		{"unexpected", ";", 1, "unexpected ';'"},
	}
	for _, d := range data {
		t.Run(d.name, func(t *testing.T) {
			_, err := script.Parse(strings.NewReader(d.src), "x.tst")
			require.Error(t, err)
			assert.True(t, errors.Is(err, script.ErrSyntax))
			var e *script.Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, d.line, e.Line)
			assert.Equal(t, d.msg, e.Msg)
			assert.Equal(t, "x.tst: in line "+strconv.Itoa(d.line)+": "+d.msg, err.Error())
		})
	}
}

func TestParseFormat(t *testing.T) {
	vf, err := script.ParseFormat("time%S1.4.1")
	require.NoError(t, err)
	assert.Equal(t, controller.VariableFormat{VarName: "time", Format: controller.FormatString, PadL: 1, Len: 4, PadR: 1}, vf)
	vf, err = script.ParseFormat("pc")
	require.NoError(t, err)
	assert.Equal(t, controller.VariableFormat{VarName: "pc", Format: controller.FormatDecimal, PadL: 1, Len: 6, PadR: 1}, vf)
	_, err = script.ParseFormat("%D1.6.1")
	assert.Error(t, err)
}

func TestParseFile(t *testing.T) {
	dir := vmtest.WriteFiles(t, map[string]string{"a.tst": "echo \"hi\";\n"})
	s, err := script.ParseFile(filepath.Join(dir, "a.tst"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.tst"), s.Path)
	assert.Equal(t, 2, s.Len())

	_, err = script.ParseFile(filepath.Join(dir, "missing.tst"))
	assert.Error(t, err)
}
