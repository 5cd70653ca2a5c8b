// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package controller

import (
	"github.com/pkg/errors"
)

// Run-time error kinds. Errors of these kinds abort the current run and put
// the controller in Stopped mode.
//
var (
	ErrController = errors.New("controller error") // missing output file, I/O failures
	ErrProgram    = errors.New("program error")    // simulator level failure
	ErrVariable   = errors.New("variable error")   // bad variable name or value
	ErrCommand    = errors.New("command error")    // malformed script command
)

// RunError is an error raised while running a script.
//
type RunError struct {
	Kind error
	Msg  string
	Var  string // variable name for ErrVariable errors, may be empty
}

func (e *RunError) Error() string {
	if e.Var != "" {
		return e.Msg + ": " + e.Var
	}
	return e.Msg
}

// Unwrap returns the error kind.
//
func (e *RunError) Unwrap() error { return e.Kind }

// Cause returns the error kind.
//
func (e *RunError) Cause() error { return e.Kind }

func runError(kind error, format string, args ...interface{}) *RunError {
	return &RunError{Kind: kind, Msg: errors.Errorf(format, args...).Error()}
}

// VariableError returns a new ErrVariable error for the named variable.
//
func VariableError(msg, name string) *RunError {
	return &RunError{Kind: ErrVariable, Msg: msg, Var: name}
}

// classify converts err to a *RunError, using kind for errors that do not
// carry one.
//
func classify(kind error, err error) *RunError {
	var re *RunError
	if errors.As(err, &re) {
		return re
	}
	return &RunError{Kind: kind, Msg: err.Error()}
}
