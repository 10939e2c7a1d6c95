// Package asmbuild compiles parsed assembly (asmparse.LexInstruction
// values) into a gvm64 bytecode image, resolving labels and offsetof
// references in a finalize pass after the whole source has been scanned.
package asmbuild

import (
	"bytes"
	"strings"

	"github.com/kaelstrom/gvm64/asmparse"
	"github.com/kaelstrom/gvm64/internal/vmerr"
	"github.com/kaelstrom/gvm64/isa"
)

// stateKind distinguishes a fully compiled instruction from one still
// waiting on a label or offsetof resolution.
type stateKind uint8

const (
	stateCompiled stateKind = iota
	stateUnresolvedOffsetOf
	stateUnresolvedLabel
)

type compileState struct {
	kind        stateKind
	offset      int
	label       string
	lexi        asmparse.LexInstruction
	instruction isa.Instruction
	buf         []byte
}

// Builder accumulates compiled instructions across a whole source file and
// resolves forward references once every label has been seen.
type Builder struct {
	state  []compileState
	Labels map[string]uint64
	Cursor int
}

// New returns an empty Builder.
func New() *Builder {
	return &Builder{Labels: make(map[string]uint64)}
}

// Dump concatenates every compiled instruction's bytes into the final
// bytecode image. It errors if Finalize has not resolved every pending
// label or offsetof reference.
func (b *Builder) Dump() ([]byte, error) {
	var out bytes.Buffer
	for _, st := range b.state {
		if st.kind != stateCompiled {
			return nil, vmerr.Compile("unresolved compile state for %s", st.lexi.Mnemonic)
		}
		out.Write(st.buf)
	}
	return out.Bytes(), nil
}

// Finalize resolves every UnresolvedOffsetOf and UnresolvedLabel state
// against the label table built while compiling the source.
func (b *Builder) Finalize() error {
	final := make([]compileState, 0, len(b.state))

	for _, st := range b.state {
		switch st.kind {
		case stateCompiled:
			final = append(final, st)

		case stateUnresolvedOffsetOf:
			loc, ok := b.Labels[st.label]
			if !ok {
				return vmerr.Compile("unresolved label: %s", st.label)
			}
			st.instruction.SetImmediate(loc)
			var buf bytes.Buffer
			if err := st.instruction.Encode(&buf); err != nil {
				return err
			}
			st.kind = stateCompiled
			st.buf = buf.Bytes()
			final = append(final, st)

		case stateUnresolvedLabel:
			loc, ok := b.Labels[st.label]
			if !ok {
				return vmerr.Compile("unresolved label: %s", st.label)
			}
			var probe bytes.Buffer
			if err := st.instruction.Encode(&probe); err != nil {
				return err
			}
			target := int64(loc) - int64(st.offset) - int64(probe.Len())
			st.instruction.SetBranchTarget(target)

			var buf bytes.Buffer
			if err := st.instruction.Encode(&buf); err != nil {
				return err
			}
			st.kind = stateCompiled
			st.buf = buf.Bytes()
			final = append(final, st)
		}
	}

	b.state = final
	return nil
}

// CompileInstruction selects the opcode implied by lexi's operand kinds,
// encodes it, and appends the resulting compileState.
func (b *Builder) CompileInstruction(lexi *asmparse.LexInstruction) error {
	mnemonic := lexi.Mnemonic
	ops := lexi.Operands

	if len(ops) < mnemonic.MinOperands() {
		return vmerr.Compile("too few operands (%d) for %s", len(ops), mnemonic)
	}
	if len(ops) > mnemonic.MaxOperands() {
		return vmerr.Compile("too many operands (%d) for %s", len(ops), mnemonic)
	}

	var insn isa.Instruction
	var buf bytes.Buffer

	switch {
	case mnemonic == isa.MnemExit || mnemonic == isa.MnemUd:
		if mnemonic == isa.MnemExit {
			insn = isa.NewInstruction(isa.OpExit)
		} else {
			insn = isa.NewInstruction(isa.OpUd)
		}
		if err := insn.Encode(&buf); err != nil {
			return err
		}
		b.pushCompiled(lexi, insn, buf.Bytes())

	case isBinaryMnemonic(mnemonic):
		return b.compileBinary(lexi, mnemonic, ops)

	case mnemonic == isa.MnemInc || mnemonic == isa.MnemDec:
		return b.compileUnary(lexi, mnemonic, ops)

	case mnemonic == isa.MnemTest || mnemonic == isa.MnemCmp:
		return b.compileCompare(lexi, mnemonic, ops)

	case isBranchMnemonic(mnemonic):
		return b.compileBranch(lexi, mnemonic, ops)

	case mnemonic.IsData():
		return b.compileData(lexi, mnemonic, ops)

	default:
		return vmerr.Compile("unhandled mnemonic: %s", mnemonic)
	}

	b.Cursor += buf.Len()
	return nil
}

func isBinaryMnemonic(m isa.Mnemonic) bool {
	switch m {
	case isa.MnemMov, isa.MnemAdd, isa.MnemSub, isa.MnemAnd, isa.MnemOr,
		isa.MnemXor, isa.MnemXchg, isa.MnemImul:
		return true
	default:
		return false
	}
}

func isBranchMnemonic(m isa.Mnemonic) bool {
	switch m {
	case isa.MnemJmp, isa.MnemJz, isa.MnemJnz, isa.MnemJle, isa.MnemJg, isa.MnemJge, isa.MnemJb:
		return true
	default:
		return false
	}
}

func (b *Builder) pushCompiled(lexi *asmparse.LexInstruction, insn isa.Instruction, buf []byte) {
	b.state = append(b.state, compileState{
		kind:        stateCompiled,
		offset:      b.Cursor,
		lexi:        *lexi,
		instruction: insn,
		buf:         buf,
	})
}

func exprToOperand(e asmparse.Expr) isa.Operand {
	return isa.MemoryOperand(e.Size, e.Displacement, e.Scale, e.IndexReg, e.HasIndexReg, e.BaseReg, e.HasBaseReg)
}

func (b *Builder) compileBinary(lexi *asmparse.LexInstruction, mnemonic isa.Mnemonic, ops []asmparse.Expr) error {
	var insn isa.Instruction
	var offsetofLabel string

	switch ops[0].Kind {
	case asmparse.ExprRegisterOp:
		insn.SetOp0Reg(ops[0].Reg)
	case asmparse.ExprMemoryOp:
		insn.SetOp0Mem(exprToOperand(ops[0]))
	case asmparse.ExprImmediate:
		return vmerr.Compile("unexpected immediate at first operand")
	default:
		return vmerr.Compile("unexpected operand: %v", ops[0])
	}

	switch ops[1].Kind {
	case asmparse.ExprRegisterOp:
		insn.SetOp1Reg(ops[1].Reg)
	case asmparse.ExprMemoryOp:
		insn.SetOp1Mem(exprToOperand(ops[1]))
	case asmparse.ExprImmediate:
		insn.SetImmediate(ops[1].Imm)
	case asmparse.ExprLabelRef:
		insn.SetImmediate(0)
		offsetofLabel = ops[1].Label
	default:
		return vmerr.Compile("unexpected operand: %v", ops[1])
	}

	opcode, err := selectBinaryOpcode(mnemonic, ops[0].Kind, ops[1].Kind)
	if err != nil {
		return err
	}
	insn.Opcode = opcode

	var buf bytes.Buffer
	if err := insn.Encode(&buf); err != nil {
		return err
	}

	if offsetofLabel != "" {
		b.state = append(b.state, compileState{
			kind:        stateUnresolvedOffsetOf,
			offset:      b.Cursor,
			label:       offsetofLabel,
			lexi:        *lexi,
			instruction: insn,
			buf:         buf.Bytes(),
		})
	} else {
		b.pushCompiled(lexi, insn, buf.Bytes())
	}

	b.Cursor += buf.Len()
	return nil
}

func selectBinaryOpcode(mnemonic isa.Mnemonic, k0, k1 asmparse.ExprKind) (isa.OpCode, error) {
	switch {
	case k0 == asmparse.ExprRegisterOp && k1 == asmparse.ExprRegisterOp:
		switch mnemonic {
		case isa.MnemMov:
			return isa.OpMovRR, nil
		case isa.MnemAdd:
			return isa.OpAddRR, nil
		case isa.MnemSub:
			return isa.OpSubRR, nil
		case isa.MnemAnd:
			return isa.OpAndRR, nil
		case isa.MnemOr:
			return isa.OpOrRR, nil
		case isa.MnemXor:
			return isa.OpXorRR, nil
		case isa.MnemXchg:
			return isa.OpXchgRR, nil
		case isa.MnemImul:
			return isa.OpImulRR, nil
		}

	case k0 == asmparse.ExprRegisterOp && (k1 == asmparse.ExprImmediate || k1 == asmparse.ExprLabelRef):
		switch mnemonic {
		case isa.MnemMov:
			return isa.OpMovRIMM, nil
		case isa.MnemAdd:
			return isa.OpAddRIMM, nil
		case isa.MnemSub:
			return isa.OpSubRIMM, nil
		case isa.MnemAnd:
			return isa.OpAndRIMM, nil
		case isa.MnemOr:
			return isa.OpOrRIMM, nil
		case isa.MnemXor:
			return isa.OpXorRIMM, nil
		case isa.MnemImul:
			return isa.OpImulRIMM, nil
		case isa.MnemXchg:
			return 0, vmerr.Compile("xchg does not accept an immediate operand")
		}

	case k0 == asmparse.ExprRegisterOp && k1 == asmparse.ExprMemoryOp:
		if mnemonic == isa.MnemMov {
			return isa.OpMovRRM, nil
		}
		return 0, vmerr.Compile("%s does not support a register, memory form", mnemonic)

	case k0 == asmparse.ExprMemoryOp && k1 == asmparse.ExprRegisterOp:
		if mnemonic == isa.MnemMov {
			return isa.OpMovRMR, nil
		}
		return 0, vmerr.Compile("%s does not support a memory, register form", mnemonic)
	}

	return 0, vmerr.Compile("unsupported operand combination for %s", mnemonic)
}

func (b *Builder) compileUnary(lexi *asmparse.LexInstruction, mnemonic isa.Mnemonic, ops []asmparse.Expr) error {
	var insn isa.Instruction

	switch ops[0].Kind {
	case asmparse.ExprRegisterOp:
		insn.SetOp0Reg(ops[0].Reg)
		if mnemonic == isa.MnemInc {
			insn.Opcode = isa.OpIncR
		} else {
			insn.Opcode = isa.OpDecR
		}
	case asmparse.ExprMemoryOp:
		return vmerr.Compile("%s on a memory operand is not supported", mnemonic)
	case asmparse.ExprImmediate:
		return vmerr.Compile("unexpected immediate at first operand")
	default:
		return vmerr.Compile("unexpected operand: %v", ops[0])
	}

	var buf bytes.Buffer
	if err := insn.Encode(&buf); err != nil {
		return err
	}
	b.pushCompiled(lexi, insn, buf.Bytes())
	b.Cursor += buf.Len()
	return nil
}

func (b *Builder) compileCompare(lexi *asmparse.LexInstruction, mnemonic isa.Mnemonic, ops []asmparse.Expr) error {
	var insn isa.Instruction

	switch ops[0].Kind {
	case asmparse.ExprRegisterOp:
		insn.SetOp0Reg(ops[0].Reg)
	case asmparse.ExprMemoryOp:
		return vmerr.Compile("%s on a memory operand is not supported", mnemonic)
	default:
		return vmerr.Compile("unexpected operand: %v", ops[0])
	}

	switch ops[1].Kind {
	case asmparse.ExprRegisterOp:
		insn.SetOp1Reg(ops[1].Reg)
	case asmparse.ExprImmediate:
		insn.SetImmediate(ops[1].Imm)
	case asmparse.ExprMemoryOp:
		return vmerr.Compile("%s on a memory operand is not supported", mnemonic)
	default:
		return vmerr.Compile("unexpected operand: %v", ops[1])
	}

	switch {
	case ops[0].Kind == asmparse.ExprRegisterOp && ops[1].Kind == asmparse.ExprRegisterOp:
		if mnemonic == isa.MnemTest {
			insn.Opcode = isa.OpTestRR
		} else {
			insn.Opcode = isa.OpCmpRR
		}
	case ops[0].Kind == asmparse.ExprRegisterOp && ops[1].Kind == asmparse.ExprImmediate:
		if mnemonic == isa.MnemTest {
			insn.Opcode = isa.OpTestRIMM
		} else {
			insn.Opcode = isa.OpCmpRIMM
		}
	default:
		return vmerr.Compile("unsupported operand combination for %s", mnemonic)
	}

	var buf bytes.Buffer
	if err := insn.Encode(&buf); err != nil {
		return err
	}
	b.pushCompiled(lexi, insn, buf.Bytes())
	b.Cursor += buf.Len()
	return nil
}

// compileBranch selects the branch opcode for mnemonic. Jb gets its own
// distinct, carry-flag-based opcode rather than reusing Jge's — the
// original toolchain this was ported from aliased Jb onto OpCode::Jge at
// this exact selection point, even though its emulator always branched on
// CF for Jb.
func (b *Builder) compileBranch(lexi *asmparse.LexInstruction, mnemonic isa.Mnemonic, ops []asmparse.Expr) error {
	var insn isa.Instruction

	switch mnemonic {
	case isa.MnemJmp:
		insn.Opcode = isa.OpJmp
	case isa.MnemJz:
		insn.Opcode = isa.OpJz
	case isa.MnemJnz:
		insn.Opcode = isa.OpJnz
	case isa.MnemJle:
		insn.Opcode = isa.OpJle
	case isa.MnemJg:
		insn.Opcode = isa.OpJg
	case isa.MnemJge:
		insn.Opcode = isa.OpJge
	case isa.MnemJb:
		insn.Opcode = isa.OpJb
	}

	if ops[0].Kind != asmparse.ExprLabelRef {
		return vmerr.Compile("unexpected operand: %v", ops[0])
	}
	label := ops[0].Label

	insn.SetBranchTarget(0)
	var buf bytes.Buffer
	if err := insn.Encode(&buf); err != nil {
		return err
	}

	b.state = append(b.state, compileState{
		kind:        stateUnresolvedLabel,
		offset:      b.Cursor,
		label:       label,
		lexi:        *lexi,
		instruction: insn,
	})
	b.Cursor += buf.Len()
	return nil
}

func (b *Builder) compileData(lexi *asmparse.LexInstruction, mnemonic isa.Mnemonic, ops []asmparse.Expr) error {
	if ops[0].Kind != asmparse.ExprImmediate {
		return vmerr.Compile("unexpected token: %v", ops[0])
	}
	imm := ops[0].Imm

	var buf bytes.Buffer
	switch mnemonic {
	case isa.MnemDb:
		if imm > 0xFF {
			return vmerr.Compile("db overflows: %d", imm)
		}
		buf.WriteByte(byte(imm))
	case isa.MnemDw:
		if imm > 0xFFFF {
			return vmerr.Compile("dw overflows: %d", imm)
		}
		buf.Write([]byte{byte(imm), byte(imm >> 8)})
	case isa.MnemDd:
		if imm > 0xFFFFFFFF {
			return vmerr.Compile("dd overflows: %d", imm)
		}
		buf.Write([]byte{byte(imm), byte(imm >> 8), byte(imm >> 16), byte(imm >> 24)})
	case isa.MnemDq:
		for i := 0; i < 8; i++ {
			buf.WriteByte(byte(imm >> (8 * i)))
		}
	}

	var insn isa.Instruction
	b.pushCompiled(lexi, insn, buf.Bytes())
	b.Cursor += buf.Len()
	return nil
}

// CompileLine parses and compiles a single line of source, registering a
// label definition in the label table or compiling an instruction into
// pending Builder state. A trailing newline is optional: the lexer emits a
// line's final token whether or not a newline follows it.
func (b *Builder) CompileLine(line string) error {
	parser, err := asmparse.New(line)
	if err != nil {
		return vmerr.CompileLine(line, "%s", err.Error())
	}

	if label, ok, err := parser.ParseLabel(); err != nil {
		return vmerr.CompileLine(line, "%s", err.Error())
	} else if ok {
		b.Labels[strings.TrimSuffix(label, ":")] = uint64(b.Cursor)
		return nil
	}

	lexi, err := parser.Parse()
	if err != nil {
		return vmerr.CompileLine(line, "%s", err.Error())
	}
	if lexi == nil {
		return nil
	}

	if err := b.CompileInstruction(lexi); err != nil {
		return vmerr.CompileLine(line, "%s", err.Error())
	}
	return nil
}

// CompileSource compiles every line of source in order, feeding each line to
// CompileLine with its newline reattached.
func (b *Builder) CompileSource(source string) error {
	for _, line := range strings.Split(source, "\n") {
		if err := b.CompileLine(line + "\n"); err != nil {
			return err
		}
	}
	return nil
}
