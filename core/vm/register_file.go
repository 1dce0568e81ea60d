package vm

import (
	"github.com/holiman/uint256"

	"github.com/Fantom-foundation/go-fvm/core/compiler"
)

// RegisterFile holds the word registers of one frame. Register i mirrors
// virtual stack slot i at every block boundary; within a block the translator
// assigns registers freely.
type RegisterFile struct {
	regs    []uint256.Int
	scratch []uint256.Int
}

// NewRegisterFile allocates a file sized for the given program.
func NewRegisterFile(size int) *RegisterFile {
	return &RegisterFile{regs: make([]uint256.Int, size)}
}

// Get returns a pointer into the file. The pointer stays valid until the
// next Grow, which only runs at block boundaries.
func (rf *RegisterFile) Get(r uint16) *uint256.Int {
	return &rf.regs[r]
}

// Grow extends the file to hold at least size registers, preserving
// contents. Blocks translated at a computed jump's arrival depth can need
// more registers than the statically reachable part of the program. Pointers
// handed out by Get are invalidated, so Grow must only run between blocks.
func (rf *RegisterFile) Grow(size int) {
	if size <= len(rf.regs) {
		return
	}
	regs := make([]uint256.Int, size)
	copy(regs, rf.regs)
	rf.regs = regs
}

// Shuffle applies a block-exit permutation. All sources are read before any
// destination is written, so overlapping move sets behave as a parallel
// assignment.
func (rf *RegisterFile) Shuffle(moves []compiler.RegMove) {
	if len(moves) == 0 {
		return
	}
	if cap(rf.scratch) < len(moves) {
		rf.scratch = make([]uint256.Int, len(moves))
	}
	tmp := rf.scratch[:len(moves)]
	for i, mv := range moves {
		tmp[i] = rf.regs[mv.Src]
	}
	for i, mv := range moves {
		rf.regs[mv.Dst] = tmp[i]
	}
}
