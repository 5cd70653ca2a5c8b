// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package vmsim

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Load error kinds. A failed load returns a *LoadError whose Kind is one of
// these; use errors.Is to test for a specific kind.
//
var (
	ErrNoProgram           = errors.New("no program")
	ErrDuplicateSymbol     = errors.New("duplicate symbol")
	ErrUnterminatedComment = errors.New("unterminated comment")
	ErrUnknownInstruction  = errors.New("unknown instruction")
	ErrUnknownSegment      = errors.New("unknown segment")
	ErrUnknownLabel        = errors.New("unknown label")
	ErrUnresolvedFunction  = errors.New("unresolved function")
	ErrTooManyArguments    = errors.New("too many arguments")
	ErrIllegalArgument     = errors.New("illegal argument")
	ErrMalformedNumber     = errors.New("malformed number")
	ErrMissingArgument     = errors.New("missing argument")
)

// LoadError reports a failure to load a program.
//
type LoadError struct {
	File string // source file name, if known
	Line int    // 1 based line number, 0 if not applicable
	Kind error
	Msg  string
}

func (e *LoadError) Error() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		b.WriteString(": ")
	}
	if e.Line > 0 {
		b.WriteString("in line ")
		b.WriteString(strconv.Itoa(e.Line))
		b.WriteString(": ")
	}
	b.WriteString(e.Msg)
	return b.String()
}

// Unwrap returns the error kind.
//
func (e *LoadError) Unwrap() error { return e.Kind }

// Cause returns the error kind. It makes errors.Cause from pkg/errors return
// the kind as well.
//
func (e *LoadError) Cause() error { return e.Kind }

func loadError(kind error, format string, args ...interface{}) *LoadError {
	return &LoadError{Kind: kind, Msg: errors.Errorf(format, args...).Error()}
}
