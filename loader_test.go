// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package vmsim_test

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"testing/fstest"

	vm "github.com/db47h/vmsim"
	"github.com/pkg/errors"
)

func env(v string) func(string) string {
	return func(name string) string {
		if name == vm.EnvUseBuiltins {
			return v
		}
		return ""
	}
}

func file(src string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(src)}
}

const simpleLoop = `// counts down from 3
function Main.loop 1
	push constant 3
	pop local 0
label LOOP /* decrement
	and loop */
	push local 0
	push constant 1
	sub
	pop local 0
	push local 0
	if-goto LOOP
	return
`

func TestLoader_labels(t *testing.T) {
	fsys := fstest.MapFS{"Main.vm": file(simpleLoop)}
	var l vm.Loader
	p, err := l.LoadFS(fsys, "Main.vm")
	if err != nil {
		t.Fatal(err)
	}
	if p.Size() != 11 || p.Visible != 11 {
		t.Fatalf("expected 11 instructions, got size %d, visible %d", p.Size(), p.Visible)
	}
	if p.Start != 0 {
		t.Errorf("expected start address 0, got %d", p.Start)
	}
	if p.InfiniteLoop != -1 {
		t.Errorf("unexpected infinite loop at %d", p.InfiniteLoop)
	}
	addr, ok := p.Symbols["Main.loop$LOOP"]
	if !ok {
		t.Fatal("label Main.loop$LOOP not found")
	}
	if addr != 4 {
		t.Errorf("expected label at 4, got %d", addr)
	}
	if in := p.Instructions[addr-1]; in.Op != vm.OpLabel {
		t.Errorf("expected label before %d, got %v", addr, in)
	}
	for pc, in := range p.Instructions {
		if in.Op == vm.OpLabel && in.Arg0 >= 0 {
			t.Errorf("label at %d has address %d", pc, in.Arg0)
		}
	}
	in := p.Instructions[9]
	if in.Op != vm.OpIfGoto || in.Arg0 != addr || in.Name != "Main.loop$LOOP" {
		t.Errorf("bad if-goto: %+v", in)
	}
	if got := p.NextAddress(2); got != 4 {
		t.Errorf("NextAddress(2) = %d, expected 4", got)
	}
	if s := p.Instructions[1].String(); s != "push constant 3" {
		t.Errorf("got %q", s)
	}
}

func TestLoader_reload(t *testing.T) {
	fsys := fstest.MapFS{
		"prog/Main.vm": file("function Main.main 0\ncall Math.multiply 2\npop static 2\npush constant 0\nreturn\n"),
		"prog/Sys.vm":  file("function Sys.init 0\ncall Main.main 0\npop static 0\nlabel END\ngoto END\n"),
	}
	l := vm.Loader{Getenv: env("yes")}
	p0, err := l.LoadFS(fsys, "prog")
	if err != nil {
		t.Fatal(err)
	}
	p1, err := l.LoadFS(fsys, "prog")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(p0, p1) {
		t.Fatal("reloaded program differs")
	}
	if p0.Start != p0.Symbols["Sys.init"] || p0.Start != 5 {
		t.Errorf("expected start at Sys.init (5), got %d", p0.Start)
	}
	// Math.multiply is built-in: 4 synthesized instructions, no Sys.init call.
	if p0.Visible != 10 || p0.Size() != 14 {
		t.Errorf("expected 10 visible instructions out of 14, got %d out of %d", p0.Visible, p0.Size())
	}
	if p0.Instructions[1].Arg0 != vm.BuiltinAddress {
		t.Errorf("expected built-in call, got address %d", p0.Instructions[1].Arg0)
	}
	if p0.Instructions[6].Arg0 != 0 {
		t.Errorf("expected call to Main.main at 0, got %d", p0.Instructions[6].Arg0)
	}
}

func TestLoader_statics(t *testing.T) {
	fsys := fstest.MapFS{
		"prog/A.vm": file("function A.f 0\npush static 2\npop static 0\nreturn\n"),
		"prog/B.vm": file("function B.f 0\npush static 1\nreturn\n"),
		"prog/C.vm": file("function C.f 0\npush constant 1\nreturn\n"),
		"prog/D.vm": file("function Sys.init 0\npop static 0\nreturn\n"),
	}
	var l vm.Loader
	p, err := l.LoadFS(fsys, "prog")
	if err != nil {
		t.Fatal(err)
	}
	expected := []struct {
		class string
		r     vm.StaticRange
	}{
		{"A", vm.StaticRange{Start: vm.VarStartAddress, End: vm.VarStartAddress + 2}},
		{"B", vm.StaticRange{Start: vm.VarStartAddress + 3, End: vm.VarStartAddress + 4}},
		{"C", vm.StaticRange{Start: vm.VarStartAddress + 5, End: vm.VarStartAddress + 4}},
		{"D", vm.StaticRange{Start: vm.VarStartAddress + 5, End: vm.VarStartAddress + 5}},
	}
	prev := vm.VarStartAddress - 1
	for _, e := range expected {
		r, ok := p.StaticRange(e.class)
		if !ok {
			t.Fatalf("no static range for %s", e.class)
		}
		if r != e.r {
			t.Errorf("%s: expected %v, got %v", e.class, e.r, r)
		}
		if r.Start != prev+1 {
			t.Errorf("%s: range not contiguous with previous class", e.class)
		}
		prev = r.End
	}
	if n := p.Statics["C"].Len(); n != 0 {
		t.Errorf("expected empty range for C, got %d", n)
	}
	if !reflect.DeepEqual(p.Classes, []string{"A", "B", "C", "D"}) {
		t.Errorf("bad class order: %v", p.Classes)
	}
	for pc, class := range map[int]string{0: "A", 3: "A", 4: "B", 9: "C", 12: "D", 13: ""} {
		if c, _ := p.ClassAt(pc); c != class {
			t.Errorf("ClassAt(%d): expected %q, got %q", pc, class, c)
		}
	}
}

const mainOnly = "function Main.main 0\ncall Sys.init 0\npush constant 1\nreturn\n"

func TestLoader_sysInit(t *testing.T) {
	fsys := fstest.MapFS{"Main.vm": file(mainOnly)}

	l := vm.Loader{Getenv: env("no")}
	_, err := l.LoadFS(fsys, "Main.vm")
	if !errors.Is(err, vm.ErrUnresolvedFunction) {
		t.Fatalf("expected unresolved function error, got %v", err)
	}

	l = vm.Loader{Getenv: env("yes")}
	p, err := l.LoadFS(fsys, "Main.vm")
	if err != nil {
		t.Fatal(err)
	}
	if p.Visible != 4 || p.Size() != 9 {
		t.Fatalf("expected 4 visible instructions out of 9, got %d out of %d", p.Visible, p.Size())
	}
	expected := []struct {
		op   vm.Opcode
		name string
	}{
		{vm.OpGoto, "afterInvisibleCode"},
		{vm.OpLabel, "infiniteLoopForBuiltIns"},
		{vm.OpGoto, "infiniteLoopForBuiltIns"},
		{vm.OpCall, "Sys.init"},
		{vm.OpLabel, "afterInvisibleCode"},
	}
	for i, e := range expected {
		in := p.Instructions[p.Visible+i]
		if in.Op != e.op || in.Name != e.name {
			t.Errorf("%d: expected %v %s, got %v", p.Visible+i, e.op, e.name, in)
		}
	}
	if p.Instructions[4].Arg0 != p.Size() {
		t.Errorf("jump over synthesized code to %d, expected %d", p.Instructions[4].Arg0, p.Size())
	}
	if p.InfiniteLoop != 6 || p.Instructions[6].Arg0 != 6 {
		t.Errorf("bad infinite loop at %d", p.InfiniteLoop)
	}
	if p.Start != 7 {
		t.Errorf("expected start at synthesized call (7), got %d", p.Start)
	}
	if p.Instructions[1].Arg0 != vm.BuiltinAddress || p.Instructions[7].Arg0 != vm.BuiltinAddress {
		t.Error("Sys.init does not resolve to a built-in")
	}
}

func TestLoader_builtinConfirm(t *testing.T) {
	fsys := fstest.MapFS{
		"Foo.vm": file("function Foo.f 0\ncall Math.multiply 2\ncall Math.divide 2\ncall Memory.peek 1\nreturn\n"),
	}
	for _, ok := range []bool{true, false} {
		n := 0
		l := vm.Loader{
			Getenv:  env(""),
			Confirm: func() bool { n++; return ok },
		}
		_, err := l.LoadFS(fsys, "Foo.vm")
		if ok && err != nil {
			t.Fatal(err)
		}
		if !ok && !errors.Is(err, vm.ErrUnresolvedFunction) {
			t.Fatalf("expected unresolved function error, got %v", err)
		}
		if n != 1 {
			t.Errorf("confirm called %d times", n)
		}
	}

	// environment overrides confirmation
	n := 0
	l := vm.Loader{Getenv: env("YES"), Confirm: func() bool { n++; return false }}
	if _, err := l.LoadFS(fsys, "Foo.vm"); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Error("confirm called despite environment override")
	}
}

func TestLoader_errors(t *testing.T) {
	data := []struct {
		name string
		src  string
		kind error
		line int
	}{
		{"duplicate", "function Main.f 0\nreturn\nfunction Main.f 0\nreturn", vm.ErrDuplicateSymbol, 3},
		{"comment", "push constant 1\n/* not closed\n", vm.ErrUnterminatedComment, 0},
		{"instruction", "push constant 1\nfoo\n", vm.ErrUnknownInstruction, 2},
		{"segment", "push stack 1", vm.ErrUnknownSegment, 1},
		{"negative", "pop local -1", vm.ErrIllegalArgument, 1},
		{"label", "function Main.f 0\ngoto NOWHERE\n", vm.ErrUnknownLabel, 2},
		{"unresolved", "function Main.f 0\ncall Foo.bar 0\n", vm.ErrUnresolvedFunction, 2},
		{"function name", "call foo 0\n", vm.ErrUnresolvedFunction, 1},
		{"too many", "\n\nadd 1 2", vm.ErrTooManyArguments, 3},
		{"overflow", "push constant 40000", vm.ErrMalformedNumber, 1},
		{"number", "push constant x", vm.ErrMalformedNumber, 1},
		{"missing", "push constant", vm.ErrMissingArgument, 1},
	}
	l := vm.Loader{Getenv: env("no")}
	for _, d := range data {
		t.Run(d.name, func(t *testing.T) {
			_, err := l.LoadFS(fstest.MapFS{"Foo.vm": file(d.src)}, "Foo.vm")
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, d.kind) {
				t.Fatalf("expected %v, got %v", d.kind, err)
			}
			var le *vm.LoadError
			if !errors.As(err, &le) {
				t.Fatalf("expected *LoadError, got %T", err)
			}
			if le.File != "Foo.vm" || le.Line != d.line {
				t.Errorf("expected error in Foo.vm:%d, got %s:%d", d.line, le.File, le.Line)
			}
		})
	}
}

func TestLoader_noProgram(t *testing.T) {
	fsys := fstest.MapFS{
		"empty/README": file("nothing here"),
		"Prog":         file("add"),
	}
	var l vm.Loader
	for _, name := range []string{"missing", "empty", "Prog"} {
		if _, err := l.LoadFS(fsys, name); !errors.Is(err, vm.ErrNoProgram) {
			t.Errorf("%s: expected no program error, got %v", name, err)
		}
	}
}

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Main.vm"), []byte(simpleLoop), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644); err != nil {
		t.Fatal(err)
	}
	l := vm.Loader{Getenv: env("no")}
	p, err := l.Load(filepath.Join(dir, "Main.vm"))
	if err != nil {
		t.Fatal(err)
	}
	if p.Size() != 11 {
		t.Errorf("expected 11 instructions, got %d", p.Size())
	}
	// directory loads need Sys.init
	_, err = l.Load(dir)
	if !errors.Is(err, vm.ErrUnresolvedFunction) {
		t.Errorf("expected unresolved function error, got %v", err)
	}
	if _, err = l.Load(filepath.Join(dir, "nope")); !errors.Is(err, vm.ErrNoProgram) {
		t.Errorf("expected no program error, got %v", err)
	}
}
