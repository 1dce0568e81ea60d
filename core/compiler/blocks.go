package compiler

// blockSpan delimits one basic block in the raw code: a maximal straight-line
// run starting at a jump destination (or program start) and ending at a
// control transfer, a halt, or the start of the next jump destination.
type blockSpan struct {
	start      uint64 // first byte of the block
	end        uint64 // one past the last byte (terminator included)
	isJumpdest bool   // block begins with a JUMPDEST
}

// scanBlocks partitions code into basic blocks. Push immediates are stepped
// over so that opcode-valued bytes inside push payloads neither split blocks
// nor terminate them.
func scanBlocks(code []byte) []blockSpan {
	if len(code) == 0 {
		return nil
	}
	var blocks []blockSpan
	cur := blockSpan{start: 0, isJumpdest: ByteCode(code[0]) == JUMPDEST}

	for pc := uint64(0); pc < uint64(len(code)); {
		op := ByteCode(code[pc])

		if op == JUMPDEST && pc > cur.start {
			cur.end = pc
			blocks = append(blocks, cur)
			cur = blockSpan{start: pc, isJumpdest: true}
		}

		pc += 1 + uint64(op.PushSize())

		if op.IsTerminator() {
			cur.end = pc
			blocks = append(blocks, cur)
			if pc < uint64(len(code)) {
				cur = blockSpan{start: pc, isJumpdest: ByteCode(code[pc]) == JUMPDEST}
			} else {
				return blocks
			}
		}
	}
	cur.end = uint64(len(code))
	if cur.end > cur.start {
		blocks = append(blocks, cur)
	}
	return blocks
}
