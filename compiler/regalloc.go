package compiler

import (
	"fmt"
	"strings"

	"github.com/chazu/purplegarden/vm"
)

// RegisterAllocator hands out register ids from a LIFO free stack. The stack
// starts as RegisterCount-1 ... 0, so the lowest free ids are reused first.
type RegisterAllocator struct {
	free []uint8
}

// NewRegisterAllocator returns an allocator with every register free.
func NewRegisterAllocator() *RegisterAllocator {
	ra := &RegisterAllocator{free: make([]uint8, 0, vm.RegisterCount)}
	for r := vm.RegisterCount - 1; r >= 0; r-- {
		ra.free = append(ra.free, uint8(r))
	}
	return ra
}

// Alloc pops a free register. Running out of registers means an expression
// needs more than RegisterCount live values at once, which the compiler
// cannot express; it panics with an *InternalError.
func (ra *RegisterAllocator) Alloc() uint8 {
	n := len(ra.free)
	if n == 0 {
		panic(&InternalError{Msg: fmt.Sprintf("out of registers: all %d in use", vm.RegisterCount)})
	}
	r := ra.free[n-1]
	ra.free = ra.free[:n-1]
	return r
}

// AllocRange reserves n contiguous registers and returns the first. It takes
// the lowest run that is entirely free.
func (ra *RegisterAllocator) AllocRange(n int) uint8 {
	if n == 1 {
		return ra.Alloc()
	}
	var isFree [vm.RegisterCount]bool
	for _, r := range ra.free {
		isFree[r] = true
	}
	run := 0
	for r := 0; r < vm.RegisterCount; r++ {
		if !isFree[r] {
			run = 0
			continue
		}
		run++
		if run == n {
			start := r - n + 1
			ra.take(start, n)
			return uint8(start)
		}
	}
	panic(&InternalError{Msg: fmt.Sprintf("out of registers: no %d contiguous free", n)})
}

// take removes [start, start+n) from the free stack, keeping the order of
// the rest.
func (ra *RegisterAllocator) take(start, n int) {
	kept := ra.free[:0]
	for _, r := range ra.free {
		if int(r) < start || int(r) >= start+n {
			kept = append(kept, r)
		}
	}
	ra.free = kept
}

// Free returns r to the allocator. Ownership is not checked; freeing a
// register twice corrupts the allocator.
func (ra *RegisterAllocator) Free(r uint8) {
	ra.free = append(ra.free, r)
}

// Outstanding returns the number of allocated registers.
func (ra *RegisterAllocator) Outstanding() int {
	return vm.RegisterCount - len(ra.free)
}

// IsFree reports whether r is on the free stack.
func (ra *RegisterAllocator) IsFree(r uint8) bool {
	for _, f := range ra.free {
		if f == r {
			return true
		}
	}
	return false
}

// Close checks that every register was returned. A leak is a compiler defect
// and is reported as an *InternalError naming the leaked registers.
func (ra *RegisterAllocator) Close() error {
	if ra.Outstanding() == 0 {
		return nil
	}
	var leaked []string
	for r := 0; r < vm.RegisterCount; r++ {
		if !ra.IsFree(uint8(r)) {
			leaked = append(leaked, fmt.Sprintf("r%d", r))
		}
	}
	return &InternalError{Msg: "register leak: " + strings.Join(leaked, ", ")}
}
