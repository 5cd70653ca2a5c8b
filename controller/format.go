// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package controller

import (
	"strconv"
	"strings"
)

// Format is the output format of a variable in an output list.
//
type Format byte

// Output formats.
//
const (
	FormatBinary  Format = 'B'
	FormatHex     Format = 'X'
	FormatDecimal Format = 'D'
	FormatString  Format = 'S'
)

// VariableFormat describes the column of a variable in output files.
//
type VariableFormat struct {
	VarName string
	Format  Format
	PadL    int
	Len     int
	PadR    int
}

func (f *VariableFormat) width() int { return f.PadL + f.Len + f.PadR }

// Header returns the column header for f: the variable name centered in the
// column width.
//
func (f *VariableFormat) Header() string {
	w := f.width()
	name := f.VarName
	if len(name) > w {
		name = name[:w]
	}
	l := (w - len(name)) / 2
	return spaces(l) + name + spaces(w-l-len(name))
}

// Cell formats value for output in f's column. Numeric values are right
// aligned, strings are left aligned. Values too long for the column are
// truncated to their rightmost characters.
//
func (f *VariableFormat) Cell(value string) (string, error) {
	if f.Format != FormatString {
		n, err := strconv.Atoi(value)
		if err != nil {
			return "", VariableError("Variable is not numeric", f.VarName)
		}
		switch f.Format {
		case FormatHex:
			value = toBase(n, 16, 4)
		case FormatBinary:
			value = toBase(n, 2, 16)
		}
	}
	if len(value) > f.Len {
		value = value[len(value)-f.Len:]
	}
	pad := f.Len - len(value)
	if f.Format == FormatString {
		return spaces(f.PadL) + value + spaces(f.PadR+pad), nil
	}
	return spaces(f.PadL+pad) + value + spaces(f.PadR), nil
}

// toBase formats the 16 bits two's complement of n in the given base, zero
// padded to digits.
//
func toBase(n, base, digits int) string {
	s := strings.ToUpper(strconv.FormatUint(uint64(uint16(n)), base))
	if len(s) < digits {
		s = strings.Repeat("0", digits-len(s)) + s
	}
	return s
}

func spaces(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(" ", n)
}

// HeaderLine returns the header line of an output list.
//
func HeaderLine(vars []VariableFormat) string {
	var b strings.Builder
	b.WriteByte('|')
	for i := range vars {
		b.WriteString(vars[i].Header())
		b.WriteByte('|')
	}
	return b.String()
}

// OutputLine formats the current values of vars as an output line.
//
func OutputLine(v Valuer, vars []VariableFormat) (string, error) {
	var b strings.Builder
	b.WriteByte('|')
	for i := range vars {
		f := &vars[i]
		val, err := v.Value(f.VarName)
		if err != nil {
			return "", classify(ErrVariable, err)
		}
		c, err := f.Cell(val)
		if err != nil {
			return "", err
		}
		b.WriteString(c)
		b.WriteByte('|')
	}
	return b.String(), nil
}

// CompareLineWithTemplate returns true if out matches the template tmpl.
// A '*' in the template matches any single character. Lines of different
// length never match.
//
func CompareLineWithTemplate(out, tmpl string) bool {
	if len(out) != len(tmpl) {
		return false
	}
	for i := 0; i < len(out); i++ {
		if tmpl[i] != '*' && out[i] != tmpl[i] {
			return false
		}
	}
	return true
}
