// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package vmemu

import (
	"github.com/rs/zerolog/log"
)

// A builtin is the host implementation of an OS function. It returns the
// function's return value.
//
type builtin struct {
	nArgs int
	fn    func(e *Emulator, args []int16) (int16, error)
}

var builtins = map[string]builtin{
	"Math.init": {0, func(*Emulator, []int16) (int16, error) { return 0, nil }},
	"Math.abs": {1, func(_ *Emulator, a []int16) (int16, error) {
		if a[0] < 0 {
			return -a[0], nil
		}
		return a[0], nil
	}},
	"Math.multiply": {2, func(_ *Emulator, a []int16) (int16, error) { return a[0] * a[1], nil }},
	"Math.divide": {2, func(_ *Emulator, a []int16) (int16, error) {
		if a[1] == 0 {
			return 0, programError("Division by zero")
		}
		return a[0] / a[1], nil
	}},
	"Math.min": {2, func(_ *Emulator, a []int16) (int16, error) {
		if a[0] < a[1] {
			return a[0], nil
		}
		return a[1], nil
	}},
	"Math.max": {2, func(_ *Emulator, a []int16) (int16, error) {
		if a[0] > a[1] {
			return a[0], nil
		}
		return a[1], nil
	}},
	"Math.sqrt": {1, func(_ *Emulator, a []int16) (int16, error) {
		if a[0] < 0 {
			return 0, programError("Cannot compute square root of a negative number")
		}
		var r int16
		for r < 181 && (r+1)*(r+1) <= a[0] {
			r++
		}
		return r, nil
	}},
	"Memory.init": {0, func(e *Emulator, _ []int16) (int16, error) {
		e.initHeap()
		return 0, nil
	}},
	"Memory.alloc":   {1, func(e *Emulator, a []int16) (int16, error) { return e.alloc(int(a[0])) }},
	"Memory.deAlloc": {1, func(e *Emulator, a []int16) (int16, error) { return 0, e.free(int(a[0])) }},
	"Array.new": {1, func(e *Emulator, a []int16) (int16, error) {
		if a[0] <= 0 {
			return 0, programError("Array size must be positive")
		}
		return e.alloc(int(a[0]))
	}},
	"Array.dispose": {1, func(e *Emulator, a []int16) (int16, error) { return 0, e.free(int(a[0])) }},
	"Memory.peek":   {1, func(e *Emulator, a []int16) (int16, error) { return e.read(int(a[0])) }},
	"Memory.poke":   {2, func(e *Emulator, a []int16) (int16, error) { return 0, e.write(int(a[0]), a[1]) }},
	// headless runs do not sleep.
	"Sys.wait": {1, func(_ *Emulator, a []int16) (int16, error) {
		if a[0] < 0 {
			return 0, programError("Duration must be positive")
		}
		return 0, nil
	}},
}

// callBuiltin runs a built-in function. Sys.init, Sys.halt and Sys.error
// change the control flow and are handled here.
//
func (e *Emulator) callBuiltin(name string, nArgs int) error {
	args := make([]int16, nArgs)
	for i := nArgs - 1; i >= 0; i-- {
		v, err := e.pop()
		if err != nil {
			return err
		}
		args[i] = v
	}
	e.prof.builtinReturn()
	log.Trace().Str("function", name).Ints16("args", args).Msg("built-in call")

	p := e.cursor.Program()
	switch name {
	case "Sys.init":
		addr, ok := p.Address("Main.main")
		if !ok {
			return programError("Sys.init: function Main.main not found")
		}
		e.prof.enter("Main.main")
		return e.call("Main.main", addr, 0, p.InfiniteLoop)
	case "Sys.halt":
		e.cursor.JumpToInfiniteLoop()
		return nil
	case "Sys.error":
		e.cursor.JumpToInfiniteLoop()
		code := 0
		if len(args) > 0 {
			code = int(args[0])
		}
		return programError("Program error: ERR%d", code)
	}

	b, ok := builtins[name]
	if !ok {
		return programError("No built-in implementation for %s", name)
	}
	if b.nArgs != nArgs {
		return programError("%s expects %d arguments, got %d", name, b.nArgs, nArgs)
	}
	v, err := b.fn(e, args)
	if err != nil {
		return err
	}
	return e.push(v)
}
