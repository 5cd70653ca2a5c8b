// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

/*
Package vmsim loads programs written in the stack based VM language of the
Hack platform and turns them into a flat, addressable instruction array.

A program is either a single .vm file or a directory of .vm files (one file
per class). Loading is done in two passes: the first pass assigns an address
to every function and label, the second pass emits one Instruction per
source line and resolves calls and jumps against the symbols found in the
first pass. Functions whose class has no .vm file may be delegated to
built-in implementations provided by the host emulator, subject to the
user's approval (see Loader.Confirm and the N2T_VM_USE_BUILTINS environment
variable).

Loaded programs are immutable. A Cursor holds the current program together
with its program counter and swaps programs atomically.

*/
package vmsim
