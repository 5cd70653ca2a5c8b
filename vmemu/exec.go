// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package vmemu

import (
	vm "github.com/db47h/vmsim"
	"github.com/db47h/vmsim/controller"
	"github.com/rs/zerolog/log"
)

// step executes one instruction. Once the program counter runs past the end
// of the program, the emulator halts and notifies its listeners.
//
func (e *Emulator) step() error {
	if e.halted {
		return nil
	}
	in, ok := e.cursor.NextInstruction()
	if !ok {
		e.halted = true
		e.post(controller.ActHaltProgram)
		log.Debug().Int("pc", e.cursor.PC()).Msg("end of program")
		return nil
	}
	pc := e.cursor.CurrentPC()
	log.Trace().Int("pc", pc).Stringer("instruction", in).Msg("vmstep")
	e.prof.mark(in)

	switch in.Op {
	case vm.OpAdd, vm.OpSub, vm.OpEq, vm.OpGt, vm.OpLt, vm.OpAnd, vm.OpOr:
		y, err := e.pop()
		if err != nil {
			return err
		}
		x, err := e.pop()
		if err != nil {
			return err
		}
		return e.push(binary(in.Op, x, y))
	case vm.OpNeg, vm.OpNot:
		x, err := e.pop()
		if err != nil {
			return err
		}
		if in.Op == vm.OpNeg {
			return e.push(-x)
		}
		return e.push(^x)
	case vm.OpPush:
		if vm.Segment(in.Arg0) == vm.SegConstant {
			return e.push(int16(in.Arg1))
		}
		addr, err := e.segAddr(vm.Segment(in.Arg0), in.Arg1, pc)
		if err != nil {
			return err
		}
		v, err := e.read(addr)
		if err != nil {
			return err
		}
		return e.push(v)
	case vm.OpPop:
		addr, err := e.segAddr(vm.Segment(in.Arg0), in.Arg1, pc)
		if err != nil {
			return err
		}
		v, err := e.pop()
		if err != nil {
			return err
		}
		return e.write(addr, v)
	case vm.OpLabel:
	case vm.OpGoto:
		e.cursor.SetPC(in.Arg0)
	case vm.OpIfGoto:
		v, err := e.pop()
		if err != nil {
			return err
		}
		if v != 0 {
			e.cursor.SetPC(in.Arg0)
		}
	case vm.OpFunction:
		if len(e.frames) == 0 {
			e.frames = append(e.frames, in.Name)
		} else {
			e.frames[len(e.frames)-1] = in.Name
		}
		for i := 0; i < in.Arg0; i++ {
			if err := e.push(0); err != nil {
				return err
			}
		}
	case vm.OpCall:
		if in.Arg0 == vm.BuiltinAddress {
			return e.callBuiltin(in.Name, in.Arg1)
		}
		return e.call(in.Name, in.Arg0, in.Arg1, e.cursor.PC())
	case vm.OpReturn:
		return e.ret()
	default:
		return programError("Unknown instruction %v at address %d", in.Op, pc)
	}
	return nil
}

func boolValue(b bool) int16 {
	if b {
		return -1
	}
	return 0
}

func binary(op vm.Opcode, x, y int16) int16 {
	switch op {
	case vm.OpAdd:
		return x + y
	case vm.OpSub:
		return x - y
	case vm.OpEq:
		return boolValue(x == y)
	case vm.OpGt:
		return boolValue(x > y)
	case vm.OpLt:
		return boolValue(x < y)
	case vm.OpAnd:
		return x & y
	case vm.OpOr:
		return x | y
	}
	panic("not a binary operator: " + op.String())
}

func (e *Emulator) read(addr int) (int16, error) {
	if addr < 0 || addr >= RAMSize {
		return 0, programError("Illegal memory address %d", addr)
	}
	return e.ram[addr], nil
}

func (e *Emulator) write(addr int, v int16) error {
	if addr < 0 || addr >= RAMSize {
		return programError("Illegal memory address %d", addr)
	}
	e.ram[addr] = v
	return nil
}

func (e *Emulator) push(v int16) error {
	sp := int(e.ram[SP])
	if err := e.write(sp, v); err != nil {
		return programError("Stack overflow")
	}
	e.ram[SP]++
	return nil
}

func (e *Emulator) pop() (int16, error) {
	sp := int(e.ram[SP]) - 1
	v, err := e.read(sp)
	if err != nil {
		return 0, programError("Stack underflow")
	}
	e.ram[SP]--
	return v, nil
}

// segAddr returns the RAM address of a segment entry for the instruction at
// address pc.
//
func (e *Emulator) segAddr(seg vm.Segment, idx int, pc int) (int, error) {
	switch seg {
	case vm.SegLocal:
		return int(e.ram[LCL]) + idx, nil
	case vm.SegArgument:
		return int(e.ram[ARG]) + idx, nil
	case vm.SegThis:
		return int(e.ram[THIS]) + idx, nil
	case vm.SegThat:
		return int(e.ram[THAT]) + idx, nil
	case vm.SegTemp:
		if idx < TempSize {
			return TempBase + idx, nil
		}
	case vm.SegPointer:
		if idx < 2 {
			return THIS + idx, nil
		}
	case vm.SegStatic:
		p := e.cursor.Program()
		class, ok := p.ClassAt(pc)
		if !ok {
			return 0, programError("No static segment at address %d", pc)
		}
		r, _ := p.StaticRange(class)
		if idx < r.Len() {
			return r.Start + idx, nil
		}
	default:
		return 0, programError("Illegal segment %v at address %d", seg, pc)
	}
	return 0, programError("Illegal %v index %d at address %d", seg, idx, pc)
}

// call pushes a new frame and jumps to the function at addr.
//
func (e *Emulator) call(name string, addr, nArgs, ret int) error {
	for _, v := range [...]int16{int16(ret), e.ram[LCL], e.ram[ARG], e.ram[THIS], e.ram[THAT]} {
		if err := e.push(v); err != nil {
			return err
		}
	}
	e.ram[ARG] = e.ram[SP] - int16(nArgs) - 5
	e.ram[LCL] = e.ram[SP]
	e.frames = append(e.frames, name)
	e.cursor.SetPC(addr)
	return nil
}

func (e *Emulator) ret() error {
	frame := int(e.ram[LCL])
	var saved [5]int16 // ret, LCL, ARG, THIS, THAT
	for i := range saved {
		v, err := e.read(frame - 5 + i)
		if err != nil {
			return err
		}
		saved[i] = v
	}
	v, err := e.pop()
	if err != nil {
		return err
	}
	if err = e.write(int(e.ram[ARG]), v); err != nil {
		return err
	}
	e.ram[SP] = e.ram[ARG] + 1
	e.ram[LCL], e.ram[ARG], e.ram[THIS], e.ram[THAT] = saved[1], saved[2], saved[3], saved[4]
	if len(e.frames) > 0 {
		e.frames = e.frames[:len(e.frames)-1]
	}
	e.cursor.SetPC(int(saved[0]))
	return nil
}
