// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package vmemu

// The heap is a first fit free list kept in RAM between HeapBase and
// HeapEnd. Every block starts with a one word header holding its size,
// header included. Free blocks hold the address of the next free block in
// their second word, 0 ending the list.

const minBlock = 2

func (e *Emulator) initHeap() {
	e.heap, e.heapReady = HeapBase, true
	e.ram[HeapBase] = HeapEnd - HeapBase
	e.ram[HeapBase+1] = 0
}

// alloc returns the address of a new block of n words.
//
func (e *Emulator) alloc(n int) (int16, error) {
	if n <= 0 {
		return 0, programError("Allocated memory size must be positive")
	}
	if !e.heapReady {
		e.initHeap()
	}
	need := n + 1
	prev := 0
	for b := e.heap; b != 0; b = int(e.ram[b+1]) {
		size := int(e.ram[b])
		if b < HeapBase || b >= HeapEnd-1 || size < minBlock || b+size > HeapEnd {
			return 0, programError("Heap corrupted at address %d", b)
		}
		switch {
		case size >= need+minBlock:
			// carve the new block from the end of the free one
			e.ram[b] = int16(size - need)
			nb := b + size - need
			e.ram[nb] = int16(need)
			return int16(nb + 1), nil
		case size >= need:
			if prev == 0 {
				e.heap = int(e.ram[b+1])
			} else {
				e.ram[prev+1] = e.ram[b+1]
			}
			return int16(b + 1), nil
		}
		prev = b
	}
	return 0, programError("Heap overflow")
}

// free returns the block at addr to the free list. Adjacent free blocks are
// not merged.
//
func (e *Emulator) free(addr int) error {
	b := addr - 1
	if !e.heapReady || b < HeapBase || b >= HeapEnd-1 {
		return programError("Illegal address for deAlloc: %d", addr)
	}
	e.ram[b+1] = int16(e.heap)
	e.heap = b
	return nil
}
