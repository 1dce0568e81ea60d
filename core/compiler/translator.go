package compiler

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// StackLimit is the maximum permitted virtual stack depth, and therefore the
// hard cap on the number of registers a frame may address.
const StackLimit = 1024

// entryDepthUnset marks a block no static edge reaches. Such blocks are
// translated lazily, at the stack depth the first computed jump arrives with.
const entryDepthUnset = -1

// ErrInvalidBytecode is returned for code the translator refuses to accept:
// code ending in the middle of a push immediate, or a jump target whose entry
// stack depth differs between two statically known paths reaching it. It is
// also raised at run time when a computed jump enters a statically translated
// block at a depth other than the one the translator observed.
var ErrInvalidBytecode = errors.New("invalid bytecode")

// StackUnderflowError marks a block that pops below its entry stack depth.
// It is detected during translation and raised when the block is entered.
type StackUnderflowError struct {
	PC       uint64
	Depth    int
	Required int
}

func (e *StackUnderflowError) Error() string {
	return fmt.Sprintf("stack underflow at pc %d (depth %d, required %d)", e.PC, e.Depth, e.Required)
}

// StackOverflowError marks a block that grows the virtual stack past
// StackLimit.
type StackOverflowError struct {
	PC    uint64
	Depth int
}

func (e *StackOverflowError) Error() string {
	return fmt.Sprintf("stack overflow at pc %d (depth %d, limit %d)", e.PC, e.Depth, StackLimit)
}

// Instruction is a single operation in register form: the source opcode with
// its stack operands resolved to register indices. Args are listed in pop
// order, so Args[0] is what the stack machine would have popped first.
type Instruction struct {
	Op        ByteCode
	PC        uint64
	Dst       uint16
	Args      []uint16
	Immediate *uint256.Int // push payload, nil otherwise
}

// RegMove copies one register into another as part of a block-exit shuffle.
// All moves of a shuffle read their sources before any destination is
// written.
type RegMove struct {
	Src, Dst uint16
}

// ExitKind describes how control leaves a basic block.
type ExitKind uint8

const (
	ExitFallthrough ExitKind = iota // continue at Next
	ExitJump                        // unconditional jump through TargetReg
	ExitCondJump                    // jump through TargetReg if CondReg is nonzero, else Next
	ExitTerminal                    // last instruction halts the frame
)

// Block is one translated basic block. On entry, virtual stack slot i
// (bottom = 0) lives in register i; EntryDepth slots are populated. The
// Shuffle restores that invariant for the exit stack before control moves on.
type Block struct {
	StartPC    uint64
	EndPC      uint64
	IsJumpdest bool

	EntryDepth int
	ExitDepth  int

	Instrs  []Instruction
	Shuffle []RegMove

	Exit         ExitKind
	TargetReg    uint16
	CondReg      uint16
	StaticTarget *uint64 // jump target when resolvable at translation time
	Next         uint64  // fallthrough continuation pc

	// Fault holds a statically detected stack bound violation. Executing a
	// faulted block fails immediately with this error.
	Fault error

	maxReg int
}

// translator carries the per-block virtual stack simulation state. Registers
// are reference counted so that a slot freed by POP (and not aliased by any
// DUP) can be reallocated within the same block, keeping the register file
// within StackLimit.
type translator struct {
	code   []byte
	block  *Block
	vstack []uint16
	refs   []int
	consts map[uint16]*uint256.Int
	maxReg int
}

func newTranslator(code []byte, b *Block) *translator {
	d := b.EntryDepth
	t := &translator{
		code:   code,
		block:  b,
		vstack: make([]uint16, d),
		refs:   make([]int, d),
		consts: make(map[uint16]*uint256.Int),
		maxReg: d,
	}
	for i := 0; i < d; i++ {
		t.vstack[i] = uint16(i)
		t.refs[i] = 1
	}
	return t
}

// alloc returns the lowest dead register, extending the file if none is free.
func (t *translator) alloc() uint16 {
	for i, n := range t.refs {
		if n == 0 {
			t.refs[i] = 1
			delete(t.consts, uint16(i))
			return uint16(i)
		}
	}
	r := uint16(len(t.refs))
	t.refs = append(t.refs, 1)
	if len(t.refs) > t.maxReg {
		t.maxReg = len(t.refs)
	}
	return r
}

func (t *translator) release(r uint16) {
	t.refs[r]--
}

func (t *translator) push(r uint16) {
	t.vstack = append(t.vstack, r)
}

func (t *translator) pop() uint16 {
	r := t.vstack[len(t.vstack)-1]
	t.vstack = t.vstack[:len(t.vstack)-1]
	return r
}

// popN pops n entries and returns them in pop order (top first).
func (t *translator) popN(n int) []uint16 {
	args := make([]uint16, n)
	for i := 0; i < n; i++ {
		args[i] = t.pop()
	}
	return args
}

func (t *translator) emit(inst Instruction) {
	t.block.Instrs = append(t.block.Instrs, inst)
}

// sealExit records the exit depth and generates the canonicalizing shuffle
// placing exit stack slot i back into register i.
func (t *translator) sealExit() {
	b := t.block
	b.ExitDepth = len(t.vstack)
	for i, r := range t.vstack {
		if r != uint16(i) {
			b.Shuffle = append(b.Shuffle, RegMove{Src: r, Dst: uint16(i)})
		}
	}
	b.maxReg = t.maxReg
}

func (t *translator) fault(err error) {
	t.block.Fault = err
	t.block.Exit = ExitTerminal
	// An overflow fault is recorded after the breaching allocation; clamp so
	// that the program never advertises a file larger than StackLimit.
	if t.maxReg > StackLimit {
		t.maxReg = StackLimit
	}
	t.block.maxReg = t.maxReg
}

// staticTarget resolves a jump target register to a concrete pc if the
// register was loaded from an immediate within this block.
func (t *translator) staticTarget(reg uint16) *uint64 {
	if c, ok := t.consts[reg]; ok && c.IsUint64() {
		v := c.Uint64()
		return &v
	}
	return nil
}

// run translates the instructions of t.block in order. The block's
// EntryDepth must be set before calling.
func (t *translator) run(span blockSpan) {
	b := t.block
	code := t.code
	pc := span.start

	for pc < span.end {
		op := ByteCode(code[pc])
		switch {
		case op == JUMPDEST:
			t.emit(Instruction{Op: op, PC: pc})
			pc++

		case op == PUSH0 || op.IsPush():
			size := op.PushSize()
			imm := new(uint256.Int).SetBytes(code[pc+1 : pc+1+uint64(size)])
			dst := t.alloc()
			t.emit(Instruction{Op: op, PC: pc, Dst: dst, Immediate: imm})
			t.push(dst)
			t.consts[dst] = imm
			if len(t.vstack) > StackLimit {
				t.fault(&StackOverflowError{PC: pc, Depth: len(t.vstack)})
				return
			}
			pc += 1 + uint64(size)

		case op.IsDup():
			n := int(op-DUP1) + 1
			if len(t.vstack) < n {
				t.fault(&StackUnderflowError{PC: pc, Depth: len(t.vstack), Required: n})
				return
			}
			reg := t.vstack[len(t.vstack)-n]
			t.refs[reg]++
			t.push(reg)
			if len(t.vstack) > StackLimit {
				t.fault(&StackOverflowError{PC: pc, Depth: len(t.vstack)})
				return
			}
			t.emit(Instruction{Op: op, PC: pc})
			pc++

		case op.IsSwap():
			n := int(op-SWAP1) + 1
			if len(t.vstack) < n+1 {
				t.fault(&StackUnderflowError{PC: pc, Depth: len(t.vstack), Required: n + 1})
				return
			}
			top := len(t.vstack) - 1
			t.vstack[top], t.vstack[top-n] = t.vstack[top-n], t.vstack[top]
			t.emit(Instruction{Op: op, PC: pc})
			pc++

		case op == POP:
			if len(t.vstack) < 1 {
				t.fault(&StackUnderflowError{PC: pc, Depth: 0, Required: 1})
				return
			}
			t.release(t.pop())
			t.emit(Instruction{Op: op, PC: pc})
			pc++

		case op == JUMP:
			if len(t.vstack) < 1 {
				t.fault(&StackUnderflowError{PC: pc, Depth: 0, Required: 1})
				return
			}
			target := t.pop()
			b.Exit = ExitJump
			b.TargetReg = target
			b.StaticTarget = t.staticTarget(target)
			t.release(target)
			t.sealExit()
			return

		case op == JUMPI:
			if len(t.vstack) < 2 {
				t.fault(&StackUnderflowError{PC: pc, Depth: len(t.vstack), Required: 2})
				return
			}
			target, cond := t.pop(), t.pop()
			b.Exit = ExitCondJump
			b.TargetReg = target
			b.CondReg = cond
			b.StaticTarget = t.staticTarget(target)
			b.Next = span.end
			t.release(target)
			t.release(cond)
			t.sealExit()
			return

		default:
			pops, pushes, known := stackEffect(op)
			if !known {
				// Undefined byte: the interpreter fails the frame when it
				// reaches this instruction.
				t.emit(Instruction{Op: op, PC: pc})
				b.Exit = ExitTerminal
				b.ExitDepth = len(t.vstack)
				b.maxReg = t.maxReg
				return
			}
			if len(t.vstack) < pops {
				t.fault(&StackUnderflowError{PC: pc, Depth: len(t.vstack), Required: pops})
				return
			}
			args := t.popN(pops)
			for _, a := range args {
				t.release(a)
			}
			inst := Instruction{Op: op, PC: pc, Args: args}
			if pushes == 1 {
				dst := t.alloc()
				inst.Dst = dst
				t.push(dst)
				if len(t.vstack) > StackLimit {
					t.fault(&StackOverflowError{PC: pc, Depth: len(t.vstack)})
					return
				}
			}
			t.emit(inst)
			if op.IsTerminator() {
				b.Exit = ExitTerminal
				b.ExitDepth = len(t.vstack)
				b.maxReg = t.maxReg
				return
			}
			pc++
		}
	}

	b.Exit = ExitFallthrough
	b.Next = span.end
	t.sealExit()
}

// Translate compiles raw bytecode into register form. It is deterministic
// and pure: identical code always yields an identical program.
func Translate(code []byte) (*Program, error) {
	if err := checkTruncatedPush(code); err != nil {
		return nil, err
	}
	bits := codeBitmap(code)
	spans := scanBlocks(code)

	p := &Program{
		Code:      code,
		bits:      bits,
		jumpdests: collectJumpdests(code, bits),
		byEntry:   make(map[uint64]int, len(spans)),
		spans:     spans,
	}
	p.Blocks = make([]*Block, len(spans))
	for i, span := range spans {
		p.Blocks[i] = &Block{
			StartPC:    span.start,
			EndPC:      span.end,
			IsJumpdest: span.isJumpdest,
			EntryDepth: entryDepthUnset,
		}
		p.byEntry[span.start] = i
	}
	if len(spans) == 0 {
		return p, nil
	}

	translated := make([]bool, len(spans))
	translate := func(i int) {
		b := p.Blocks[i]
		t := newTranslator(code, b)
		t.run(spans[i])
		translated[i] = true
		if b.maxReg > p.MaxRegisters {
			p.MaxRegisters = b.maxReg
		}
	}

	// Worklist pass: propagate entry depths along statically known edges,
	// rejecting any target reached with two different depths.
	var queue []int
	enqueue := func(pc uint64, depth int) error {
		i, ok := p.byEntry[pc]
		if !ok {
			return nil // runs off the end of the code: implicit STOP
		}
		b := p.Blocks[i]
		if b.EntryDepth == entryDepthUnset {
			b.EntryDepth = depth
			queue = append(queue, i)
			return nil
		}
		if b.EntryDepth != depth {
			return fmt.Errorf("%w: jump target %d entered with stack depth %d and %d",
				ErrInvalidBytecode, pc, b.EntryDepth, depth)
		}
		return nil
	}

	p.Blocks[0].EntryDepth = 0
	queue = append(queue, 0)
	drain := func() error {
		for len(queue) > 0 {
			i := queue[0]
			queue = queue[1:]
			if !translated[i] {
				translate(i)
			}
			b := p.Blocks[i]
			if b.Fault != nil {
				continue
			}
			switch b.Exit {
			case ExitFallthrough:
				if err := enqueue(b.Next, b.ExitDepth); err != nil {
					return err
				}
			case ExitCondJump:
				if err := enqueue(b.Next, b.ExitDepth); err != nil {
					return err
				}
				if tgt := b.StaticTarget; tgt != nil && p.jumpdests.Contains(*tgt) {
					if err := enqueue(*tgt, b.ExitDepth); err != nil {
						return err
					}
				}
			case ExitJump:
				if tgt := b.StaticTarget; tgt != nil && p.jumpdests.Contains(*tgt) {
					if err := enqueue(*tgt, b.ExitDepth); err != nil {
						return err
					}
				}
			}
		}
		return nil
	}
	if err := drain(); err != nil {
		return nil, err
	}

	// Blocks no static edge reaches keep EntryDepth unset. They are either
	// dead or entered only through computed jumps, whose arrival depth is a
	// runtime fact; BlockFor translates such a block the first time it is
	// entered, at the depth the jump actually carries.
	return p, nil
}

// checkTruncatedPush rejects code whose final push immediate extends past the
// end of the code.
func checkTruncatedPush(code []byte) error {
	for pc := uint64(0); pc < uint64(len(code)); {
		op := ByteCode(code[pc])
		size := uint64(op.PushSize())
		if pc+1+size > uint64(len(code)) {
			return fmt.Errorf("%w: push at pc %d truncated by end of code", ErrInvalidBytecode, pc)
		}
		pc += 1 + size
	}
	return nil
}

// Registers returns the register file size needed to execute the block.
func (b *Block) Registers() int {
	return b.maxReg
}
