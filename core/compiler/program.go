package compiler

import (
	"fmt"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/holiman/uint256"
)

// Program is the register-form translation of one contract's bytecode.
// Everything the static worklist produced is immutable after Translate
// returns. Blocks reachable only through computed jumps are translated
// lazily by BlockFor, memoized per arrival depth under an internal lock,
// so a Program is safe to share between frames.
type Program struct {
	Code   []byte
	Blocks []*Block

	// MaxRegisters is the register file size a frame needs to execute the
	// statically reachable part of this program. Lazily translated blocks
	// may need more; callers grow the file to Block.Registers on entry.
	// It never exceeds StackLimit.
	MaxRegisters int

	byEntry   map[uint64]int
	jumpdests mapset.Set[uint64]
	bits      bitvec
	spans     []blockSpan

	mu       sync.Mutex
	variants map[variantKey]*Block
}

type variantKey struct {
	pc    uint64
	depth int
}

// EntryBlock returns the block starting at pc 0, or nil for empty code.
func (p *Program) EntryBlock() *Block {
	if len(p.Blocks) == 0 {
		return nil
	}
	return p.Blocks[0]
}

// BlockAt returns the block whose first instruction sits at pc.
func (p *Program) BlockAt(pc uint64) (*Block, bool) {
	i, ok := p.byEntry[pc]
	if !ok {
		return nil, false
	}
	return p.Blocks[i], true
}

// BlockFor resolves the block entered at pc with the given stack depth. A
// statically translated block must be entered at exactly the depth the
// worklist observed; any other arrival depth is a depth conflict. A block no
// static edge reaches is translated on first entry, at the depth the
// computed jump or fallthrough actually carries, and the result is memoized
// per depth. A nil block with a nil error means pc lies past the end of the
// code.
func (p *Program) BlockFor(pc uint64, depth int) (*Block, error) {
	i, ok := p.byEntry[pc]
	if !ok {
		return nil, nil
	}
	b := p.Blocks[i]
	if b.EntryDepth == depth {
		return b, nil
	}
	if b.EntryDepth != entryDepthUnset {
		return nil, fmt.Errorf("%w: block at %d entered with stack depth %d, translated for %d",
			ErrInvalidBytecode, pc, depth, b.EntryDepth)
	}
	return p.variantFor(i, depth), nil
}

func (p *Program) variantFor(i, depth int) *Block {
	span := p.spans[i]
	key := variantKey{pc: span.start, depth: depth}

	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.variants[key]; ok {
		return v
	}
	v := &Block{
		StartPC:    span.start,
		EndPC:      span.end,
		IsJumpdest: span.isJumpdest,
		EntryDepth: depth,
	}
	newTranslator(p.Code, v).run(span)
	if p.variants == nil {
		p.variants = make(map[variantKey]*Block)
	}
	p.variants[key] = v
	return v
}

// ValidJumpdest reports whether dest is a JUMPDEST on an instruction
// boundary.
func (p *Program) ValidJumpdest(dest *uint256.Int) bool {
	udest, overflow := dest.Uint64WithOverflow()
	if overflow || udest >= uint64(len(p.Code)) {
		return false
	}
	return p.jumpdests.Contains(udest)
}
