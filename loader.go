// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package vmsim

import (
	"bufio"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// FileExt is the extension of VM source files.
//
const FileExt = ".vm"

// Loader builds programs from VM source files.
//
// The zero value is usable: it denies access to built-in functions unless
// the N2T_VM_USE_BUILTINS environment variable is set to "yes".
//
type Loader struct {
	// Confirm is asked, at most once per load, whether unresolved functions
	// may fall back to built-in implementations. A nil Confirm denies access.
	Confirm Confirmer
	// Getenv looks up environment variables. Defaults to os.Getenv.
	Getenv func(string) string
}

// a source file.
type source struct {
	name string
	open func() (io.ReadCloser, error)
}

// Load loads the program at the given path, which must be a .vm file or a
// directory containing .vm files.
//
func (l *Loader) Load(name string) (*Program, error) {
	fi, err := os.Stat(name)
	if err != nil {
		return nil, loadError(ErrNoProgram, "cannot find %s", name)
	}
	if !fi.IsDir() {
		return l.load(name, []source{osSource(name)}, false)
	}
	des, err := os.ReadDir(name)
	if err != nil {
		return nil, &LoadError{Kind: ErrNoProgram, Msg: errors.Wrap(err, "cannot read "+name).Error()}
	}
	var srcs []source
	for _, de := range des {
		if !de.IsDir() && strings.HasSuffix(de.Name(), FileExt) {
			srcs = append(srcs, osSource(filepath.Join(name, de.Name())))
		}
	}
	if len(srcs) == 0 {
		return nil, loadError(ErrNoProgram, "No vm files found in %s", name)
	}
	return l.load(name, srcs, true)
}

// LoadFS is like Load but reads the program from fsys.
//
func (l *Loader) LoadFS(fsys fs.FS, name string) (*Program, error) {
	fi, err := fs.Stat(fsys, name)
	if err != nil {
		return nil, loadError(ErrNoProgram, "cannot find %s", name)
	}
	if !fi.IsDir() {
		return l.load(name, []source{fsSource(fsys, name)}, false)
	}
	des, err := fs.ReadDir(fsys, name)
	if err != nil {
		return nil, &LoadError{Kind: ErrNoProgram, Msg: errors.Wrap(err, "cannot read "+name).Error()}
	}
	var srcs []source
	for _, de := range des {
		if !de.IsDir() && strings.HasSuffix(de.Name(), FileExt) {
			srcs = append(srcs, fsSource(fsys, path.Join(name, de.Name())))
		}
	}
	if len(srcs) == 0 {
		return nil, loadError(ErrNoProgram, "No vm files found in %s", name)
	}
	return l.load(name, srcs, true)
}

func osSource(name string) source {
	return source{
		name: filepath.Base(name),
		open: func() (io.ReadCloser, error) { return os.Open(name) },
	}
}

func fsSource(fsys fs.FS, name string) source {
	return source{
		name: path.Base(name),
		open: func() (io.ReadCloser, error) { return fsys.Open(name) },
	}
}

func (l *Loader) load(name string, srcs []source, isDir bool) (*Program, error) {
	sort.Slice(srcs, func(i, j int) bool { return srcs[i].name < srcs[j].name })
	getenv := l.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	lk := &linker{
		symbols:   make(map[string]int),
		functions: make(map[string]int),
		classes:   make(map[string]bool),
		statics:   make(map[string]StaticRange),
		builtins:  builtinResolver{getenv: getenv, confirm: l.Confirm},
	}
	p, err := lk.link(srcs, isDir)
	if err != nil {
		log.Debug().Err(err).Str("path", name).Msg("program load failed")
		return nil, err
	}
	p.Path = name
	log.Debug().Str("path", name).Int("size", p.Size()).Int("visible", p.Visible).Int("start", p.Start).Msg("program loaded")
	return p, nil
}

// linker holds the state of a single load.
//
type linker struct {
	symbols   map[string]int
	functions map[string]int
	classes   map[string]bool
	statics   map[string]StaticRange
	builtins  builtinResolver
	code      []Instruction
	pc        int

	// current file and line for error reporting.
	file string
	line int
	// largest static index used in the current file.
	largestStatic int
}

func (lk *linker) fail(kind error, format string, args ...interface{}) error {
	e := loadError(kind, format, args...)
	e.File = lk.file
	e.Line = lk.line
	return e
}

func className(file string) (string, error) {
	i := strings.IndexByte(file, '.')
	if i < 0 {
		return "", loadError(ErrNoProgram, "File name without extension: %s", file)
	}
	return file[:i], nil
}

func (lk *linker) link(srcs []source, isDir bool) (*Program, error) {
	classes := make([]string, len(srcs))
	for i, src := range srcs {
		cn, err := className(src.name)
		if err != nil {
			return nil, err
		}
		classes[i] = cn
		lk.classes[cn] = true
	}

	// pass 1: symbols.
	for _, src := range srcs {
		if err := lk.scan(src); err != nil {
			return nil, err
		}
	}

	_, hasSysInit := lk.symbols["Sys.init"]
	_, hasMain := lk.symbols["Main.main"]
	addSysInit := false
	if (isDir || hasMain) && !hasSysInit {
		// The program is expected to start with Sys.init: reserve a slot
		// for a call to the built-in version.
		lk.file, lk.line = "", 0
		if _, err := lk.address("Sys.init"); err != nil {
			return nil, err
		}
		addSysInit = true
		lk.pc++
	}

	// pass 2: instructions.
	lk.code = make([]Instruction, 0, lk.pc+4)
	lk.pc = 0
	staticStart := VarStartAddress
	classStart := make([]int, len(srcs))
	for i, src := range srcs {
		classStart[i] = len(lk.code)
		lk.largestStatic = -1
		if err := lk.build(src); err != nil {
			return nil, err
		}
		r := StaticRange{Start: staticStart, End: staticStart + lk.largestStatic}
		lk.statics[classes[i]] = r
		staticStart = r.End + 1
	}

	p := &Program{
		Visible:      len(lk.code),
		InfiniteLoop: -1,
		Classes:      classes,
		ClassStart:   classStart,
		Functions:    lk.functions,
		Symbols:      lk.symbols,
		Statics:      lk.statics,
	}

	if lk.builtins.status == accessAuthorized {
		size := len(lk.code) + 4
		if addSysInit {
			size++
		}
		// Synthesized code, never reached by regular programs: a jump over
		// it, the infinite loop used by built-ins to halt and the call to
		// the built-in Sys.init.
		lk.emit(Instruction{Op: OpGoto, Arg0: size, Name: "afterInvisibleCode", Index: 0})
		lk.emit(Instruction{Op: OpLabel, Arg0: -1, Name: "infiniteLoopForBuiltIns", Index: -1})
		p.InfiniteLoop = len(lk.code)
		lk.emit(Instruction{Op: OpGoto, Arg0: p.InfiniteLoop, Name: "infiniteLoopForBuiltIns", Index: 1})
		if addSysInit {
			p.Start = len(lk.code)
			lk.emit(Instruction{Op: OpCall, Arg0: BuiltinAddress, Arg1: 0, NArgs: 2, Name: "Sys.init", Index: 2})
		}
		lk.emit(Instruction{Op: OpLabel, Arg0: -1, Name: "afterInvisibleCode", Index: -1})
	}
	if !addSysInit {
		if a, ok := lk.symbols["Sys.init"]; ok {
			p.Start = a
		}
	}
	p.Instructions = lk.code
	return p, nil
}

func (lk *linker) emit(in Instruction) {
	lk.code = append(lk.code, in)
}

func newScanner(r io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), 1<<20)
	return s
}

// scan is the first pass: it records the address of functions and labels.
// Every non blank line takes one address.
//
func (lk *linker) scan(src source) error {
	r, err := src.open()
	if err != nil {
		return &LoadError{File: src.name, Kind: ErrNoProgram, Msg: "file " + src.name + " does not exist"}
	}
	defer r.Close()

	lk.file, lk.line = src.name, 0
	var (
		u  uncommenter
		fn string
	)
	s := newScanner(r)
	for s.Scan() {
		lk.line++
		fields := strings.Fields(u.strip(s.Text()))
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "function":
			if len(fields) < 2 {
				return lk.fail(ErrMissingArgument, "unexpected end of command")
			}
			fn = fields[1]
			if _, ok := lk.symbols[fn]; ok {
				return lk.fail(ErrDuplicateSymbol, "subroutine %s already exists", fn)
			}
			lk.functions[fn] = lk.pc
			lk.symbols[fn] = lk.pc
		case "label":
			if len(fields) < 2 {
				return lk.fail(ErrMissingArgument, "unexpected end of command")
			}
			// labels are not physical instructions: they point to the next line.
			lk.symbols[fn+"$"+fields[1]] = lk.pc + 1
		}
		lk.pc++
	}
	if err := s.Err(); err != nil {
		return &LoadError{File: src.name, Kind: ErrNoProgram, Msg: errors.Wrap(err, "error while reading from file").Error()}
	}
	if u.inBlock {
		lk.line = 0
		return lk.fail(ErrUnterminatedComment, "Unterminated /* comment at end of file")
	}
	return nil
}

// tokens iterates over the operands of a source line.
//
type tokens []string

func (t *tokens) more() bool { return len(*t) > 0 }

func (t *tokens) next() (string, bool) {
	if len(*t) == 0 {
		return "", false
	}
	s := (*t)[0]
	*t = (*t)[1:]
	return s, true
}

// build is the second pass: it emits one instruction per non blank line.
//
func (lk *linker) build(src source) error {
	r, err := src.open()
	if err != nil {
		return &LoadError{File: src.name, Kind: ErrNoProgram, Msg: "file " + src.name + " does not exist"}
	}
	defer r.Close()

	lk.file, lk.line = src.name, 0
	var (
		u   uncommenter
		fn  string
		idx int
	)
	s := newScanner(r)
	for s.Scan() {
		lk.line++
		text := strings.TrimSpace(u.strip(s.Text()))
		if text == "" {
			continue
		}
		fields := strings.Fields(text)
		op := ParseOpcode(fields[0])
		if op == OpUnknown {
			return lk.fail(ErrUnknownInstruction, "unknown instruction - %s", fields[0])
		}
		t := tokens(fields[1:])
		var in Instruction
		switch op {
		case OpPush, OpPop:
			in, err = lk.pushPop(op, &t, text)
		case OpFunction:
			in, err = lk.function(&t, text)
			fn = in.Name
			idx = 0
		case OpCall:
			in, err = lk.call(&t, text)
		case OpLabel:
			in, err = lk.label(fn, &t)
			idx-- // not a physical instruction
		case OpGoto, OpIfGoto:
			in, err = lk.jump(op, fn, &t, text)
		default:
			in, err = lk.other(op, &t, text)
		}
		if err != nil {
			return err
		}
		if t.more() {
			return lk.fail(ErrTooManyArguments, "Too many arguments - %s", text)
		}
		if op != OpFunction && op != OpLabel {
			in.Index = idx
		}
		lk.emit(in)
		lk.pc++
		idx++
	}
	if err := s.Err(); err != nil {
		return &LoadError{File: src.name, Kind: ErrNoProgram, Msg: errors.Wrap(err, "error while reading from file").Error()}
	}
	if u.inBlock {
		lk.line = 0
		return lk.fail(ErrUnterminatedComment, "Unterminated /* comment at end of file")
	}
	return nil
}

func (lk *linker) operand(t *tokens) (string, error) {
	s, ok := t.next()
	if !ok {
		return "", lk.fail(ErrMissingArgument, "unexpected end of command")
	}
	return s, nil
}

// number parses a 16 bit signed operand.
//
func (lk *linker) number(t *tokens) (int, error) {
	s, err := lk.operand(t)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(s, 10, 16)
	if err != nil {
		return 0, lk.fail(ErrMalformedNumber, "Illegal 16-bit value - %s", s)
	}
	return int(n), nil
}

func (lk *linker) pushPop(op Opcode, t *tokens, text string) (Instruction, error) {
	name, err := lk.operand(t)
	if err != nil {
		return Instruction{}, err
	}
	seg := ParseSegment(name)
	if seg == SegUnknown {
		return Instruction{}, lk.fail(ErrUnknownSegment, "Illegal memory segment - %s", name)
	}
	n, err := lk.number(t)
	if err != nil {
		return Instruction{}, err
	}
	if n < 0 {
		return Instruction{}, lk.fail(ErrIllegalArgument, "Illegal argument - %s", text)
	}
	if seg == SegStatic && n > lk.largestStatic {
		lk.largestStatic = n
	}
	return Instruction{Op: op, Arg0: int(seg), Arg1: n, NArgs: 2}, nil
}

func (lk *linker) function(t *tokens, text string) (Instruction, error) {
	name, err := lk.operand(t)
	if err != nil {
		return Instruction{}, err
	}
	n, err := lk.number(t)
	if err != nil {
		return Instruction{}, err
	}
	if n < 0 {
		return Instruction{}, lk.fail(ErrIllegalArgument, "Illegal argument - %s", text)
	}
	return Instruction{Op: OpFunction, Arg0: n, NArgs: 1, Name: name}, nil
}

func (lk *linker) call(t *tokens, text string) (Instruction, error) {
	name, err := lk.operand(t)
	if err != nil {
		return Instruction{}, err
	}
	addr, err := lk.address(name)
	if err != nil {
		return Instruction{}, err
	}
	n, err := lk.number(t)
	if err != nil {
		return Instruction{}, err
	}
	if n < 0 || (addr < 0 && addr != BuiltinAddress) {
		return Instruction{}, lk.fail(ErrIllegalArgument, "Illegal argument - %s", text)
	}
	return Instruction{Op: OpCall, Arg0: addr, Arg1: n, NArgs: 2, Name: name}, nil
}

func (lk *linker) label(fn string, t *tokens) (Instruction, error) {
	name, err := lk.operand(t)
	if err != nil {
		return Instruction{}, err
	}
	return Instruction{Op: OpLabel, Arg0: -1, Name: fn + "$" + name, Index: -1}, nil
}

func (lk *linker) jump(op Opcode, fn string, t *tokens, text string) (Instruction, error) {
	name, err := lk.operand(t)
	if err != nil {
		return Instruction{}, err
	}
	label := fn + "$" + name
	addr, ok := lk.symbols[label]
	if !ok {
		return Instruction{}, lk.fail(ErrUnknownLabel, "Unknown label - %s", label)
	}
	if addr < 0 {
		return Instruction{}, lk.fail(ErrIllegalArgument, "Illegal argument - %s", text)
	}
	return Instruction{Op: op, Arg0: addr, NArgs: 1, Name: label}, nil
}

func (lk *linker) other(op Opcode, t *tokens, text string) (Instruction, error) {
	if !t.more() {
		return Instruction{Op: op}, nil
	}
	n, err := lk.number(t)
	if err != nil {
		return Instruction{}, err
	}
	if n < 0 {
		return Instruction{}, lk.fail(ErrIllegalArgument, "Illegal argument - %s", text)
	}
	return Instruction{Op: op, Arg0: n, NArgs: 1}, nil
}

// address resolves a function name. Functions of classes that have no
// source file in the program may resolve to BuiltinAddress.
//
func (lk *linker) address(name string) (int, error) {
	if a, ok := lk.functions[name]; ok {
		return a, nil
	}
	i := strings.IndexByte(name, '.')
	if i < 0 {
		return 0, lk.fail(ErrUnresolvedFunction, "Incorrect function name. Should be <ClassName>.<FunctionName>: %s", name)
	}
	class := name[:i]
	if !lk.classes[class] && lk.builtins.authorized() {
		return BuiltinAddress, nil
	}
	return 0, lk.fail(ErrUnresolvedFunction, "%s.vm not found or function %s not found in %s.vm", class, name, class)
}
