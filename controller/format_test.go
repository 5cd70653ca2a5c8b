// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package controller_test

import (
	"testing"
	"time"

	"github.com/db47h/vmsim/controller"
	"github.com/db47h/vmsim/vmtest"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareLineWithTemplate(t *testing.T) {
	assert.True(t, controller.CompareLineWithTemplate("1234", "1*34"))
	assert.False(t, controller.CompareLineWithTemplate("1235", "1*34"))
	assert.False(t, controller.CompareLineWithTemplate("12345", "1*34"))
	assert.False(t, controller.CompareLineWithTemplate("123", "1*34"))
	assert.True(t, controller.CompareLineWithTemplate("", ""))
	assert.True(t, controller.CompareLineWithTemplate("|abc|", "|***|"))
}

func TestVariableFormat(t *testing.T) {
	data := []struct {
		f      controller.VariableFormat
		value  string
		header string
		cell   string
	}{
		{controller.VariableFormat{VarName: "RAM[0]", Format: controller.FormatDecimal, PadL: 1, Len: 6, PadR: 1}, "-17", "| RAM[0] |", "|    -17 |"},
		{controller.VariableFormat{VarName: "a", Format: controller.FormatBinary, PadL: 0, Len: 16, PadR: 0}, "5", "|       a        |", "|0000000000000101|"},
		{controller.VariableFormat{VarName: "a", Format: controller.FormatBinary, PadL: 1, Len: 4, PadR: 1}, "-1", "|  a   |", "| 1111 |"},
		{controller.VariableFormat{VarName: "out", Format: controller.FormatHex, PadL: 2, Len: 4, PadR: 2}, "4660", "|  out   |", "|  1234  |"},
		{controller.VariableFormat{VarName: "currentFunction", Format: controller.FormatString, PadL: 1, Len: 8, PadR: 1}, "Main.main", "|currentFun|", "| ain.main |"},
		{controller.VariableFormat{VarName: "s", Format: controller.FormatString, PadL: 1, Len: 5, PadR: 1}, "ab", "|   s   |", "| ab    |"},
	}
	sim := vmtest.NewSimulator()
	for _, d := range data {
		vars := []controller.VariableFormat{d.f}
		assert.Equal(t, d.header, controller.HeaderLine(vars))
		sim.Set(d.f.VarName, d.value)
		line, err := controller.OutputLine(sim, vars)
		require.NoError(t, err)
		assert.Equal(t, d.cell, line)
	}

	f := controller.VariableFormat{VarName: "x", Format: controller.FormatDecimal, Len: 6}
	_, err := f.Cell("abc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, controller.ErrVariable))

	_, err = controller.OutputLine(sim, []controller.VariableFormat{{VarName: "bad", Format: controller.FormatDecimal, Len: 6}})
	assert.True(t, errors.Is(err, controller.ErrVariable))
}

func TestCondition(t *testing.T) {
	sim := vmtest.NewSimulator()
	sim.Set("n", "10")
	sim.Set("s", "abc")
	data := []struct {
		c  controller.Condition
		ok bool
	}{
		{controller.Condition{Var: "n", Op: controller.OpEqual, Value: "10"}, true},
		{controller.Condition{Var: "n", Op: controller.OpNotEqual, Value: "10"}, false},
		{controller.Condition{Var: "n", Op: controller.OpLess, Value: "9"}, false},
		{controller.Condition{Var: "n", Op: controller.OpGreater, Value: "9"}, true},
		{controller.Condition{Var: "n", Op: controller.OpLessOrEqual, Value: "10"}, true},
		{controller.Condition{Var: "n", Op: controller.OpGreaterOrEqual, Value: "11"}, false},
		{controller.Condition{Var: "s", Op: controller.OpEqual, Value: "abc"}, true},
		{controller.Condition{Var: "s", Op: controller.OpLess, Value: "abd"}, true},
	}
	for _, d := range data {
		ok, err := d.c.Eval(sim)
		require.NoError(t, err)
		assert.Equal(t, d.ok, ok, d.c.String())
	}
	_, err := controller.Condition{Var: "bad", Op: controller.OpEqual, Value: "0"}.Eval(sim)
	assert.True(t, errors.Is(err, controller.ErrVariable))

	op, ok := controller.ParseCompareOp("<>")
	assert.True(t, ok)
	assert.Equal(t, controller.OpNotEqual, op)
	_, ok = controller.ParseCompareOp("!=")
	assert.False(t, ok)
}

func TestBreakpointSet(t *testing.T) {
	var s controller.BreakpointSet
	assert.True(t, s.Add(controller.NewBreakpoint("b", "1")))
	assert.True(t, s.Add(controller.NewBreakpoint("a", "2")))
	assert.False(t, s.Add(controller.NewBreakpoint("b", "1")))
	require.Equal(t, 2, s.Len())

	l := s.List()
	assert.Equal(t, "b=1", l[0].String())
	assert.Equal(t, "a=2", l[1].String())
	// copies
	l[0].On()
	assert.False(t, s.List()[0].Reached())

	a, b := controller.NewBreakpoint("a", "1"), controller.NewBreakpoint("a", "2")
	assert.Negative(t, a.Compare(b))
	assert.Positive(t, b.Compare(a))
	b.On()
	assert.True(t, controller.NewBreakpoint("a", "2").Equal(b))

	assert.True(t, s.Remove(controller.NewBreakpoint("b", "1")))
	assert.False(t, s.Remove(controller.NewBreakpoint("b", "1")))
	s.Replace([]*controller.Breakpoint{a, b, controller.NewBreakpoint("a", "1")})
	assert.Equal(t, 2, s.Len())
	s.Clear()
	assert.Zero(t, s.Len())
}

func TestSpeed(t *testing.T) {
	assert.Equal(t, 2500*time.Millisecond, controller.Delay(1))
	assert.Equal(t, 25*time.Millisecond, controller.Delay(controller.NumSpeedUnits))
	assert.Equal(t, controller.Delay(controller.InitialSpeed), controller.Delay(0))
	assert.Equal(t, 500, controller.Burst(1))
	assert.Equal(t, 15000, controller.Burst(5))
	assert.Equal(t, 2000, controller.Burst(42))
}

func TestRunError(t *testing.T) {
	err := controller.VariableError("Variable is not numeric", "RAM[3]")
	assert.EqualError(t, err, "Variable is not numeric: RAM[3]")
	assert.Equal(t, controller.ErrVariable, errors.Cause(err))
}

func TestParseModes(t *testing.T) {
	for _, m := range []controller.AnimationMode{controller.DisplayChanges, controller.Animate, controller.NoDisplayChanges} {
		p, ok := controller.ParseAnimationMode(m.String())
		assert.True(t, ok)
		assert.Equal(t, m, p)
	}
	for _, f := range []controller.NumericFormat{controller.Decimal, controller.Hexadecimal, controller.Binary} {
		p, ok := controller.ParseNumericFormat(f.String())
		assert.True(t, ok)
		assert.Equal(t, f, p)
	}
	_, ok := controller.ParseAnimationMode("fast")
	assert.False(t, ok)
	_, ok = controller.ParseNumericFormat("octal")
	assert.False(t, ok)
}
