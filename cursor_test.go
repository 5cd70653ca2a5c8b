// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package vmsim_test

import (
	"testing"
	"testing/fstest"

	vm "github.com/db47h/vmsim"
)

func TestCursor(t *testing.T) {
	c := vm.NewCursor()
	if _, ok := c.NextInstruction(); ok {
		t.Fatal("empty cursor returned an instruction")
	}
	var loaded *vm.Program
	c.OnLoad(func(p *vm.Program) { loaded = p })

	l := vm.Loader{Getenv: env("yes")}
	p, err := l.LoadFS(fstest.MapFS{"Main.vm": file(mainOnly)}, "Main.vm")
	if err != nil {
		t.Fatal(err)
	}
	c.Load(p)
	if loaded != p {
		t.Fatal("load listener not called")
	}
	if c.PC() != p.Start || c.CurrentPC() != vm.NoPC {
		t.Fatalf("bad pc after load: %d, %d", c.PC(), c.CurrentPC())
	}
	in, ok := c.NextInstruction()
	if !ok || in.Op != vm.OpCall || in.Name != "Sys.init" {
		t.Fatalf("expected synthesized call, got %v", in)
	}
	// skips the closing label
	if c.PC() != p.Size() {
		t.Errorf("expected pc at end of program, got %d", c.PC())
	}
	if _, ok = c.NextInstruction(); ok {
		t.Error("read past end of program")
	}
	c.JumpToInfiniteLoop()
	for i := 0; i < 3; i++ {
		in, ok = c.NextInstruction()
		if !ok || in.Op != vm.OpGoto || c.CurrentPC() != p.InfiniteLoop {
			t.Fatalf("not in infinite loop: %v at %d", in, c.CurrentPC())
		}
		c.SetPC(in.Arg0)
		if c.PreviousPC() != p.InfiniteLoop {
			t.Fatalf("bad previous pc %d", c.PreviousPC())
		}
	}
	c.Restart()
	if c.PC() != p.Start || c.PreviousPC() != vm.NoPC {
		t.Error("restart did not rewind")
	}
	c.Reset()
	if c.Program().Size() != 0 {
		t.Error("reset did not clear the program")
	}
}
