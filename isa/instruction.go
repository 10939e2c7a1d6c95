package isa

import (
	"encoding/binary"
	"io"
)

// Instruction is a decoded or to-be-encoded CPU instruction: an opcode and
// up to two operands.
type Instruction struct {
	Opcode   OpCode
	Operands [2]Operand
}

// NewInstruction builds an Instruction with the given opcode and no operands
// set yet.
func NewInstruction(opcode OpCode) Instruction {
	return Instruction{Opcode: opcode}
}

// Op0Reg returns the first operand's register. Callers must only call this
// when Operands[0].Kind == KindRegister.
func (in *Instruction) Op0Reg() Register { return in.Operands[0].Reg }

// SetOp0Reg sets the first operand to a register operand.
func (in *Instruction) SetOp0Reg(r Register) { in.Operands[0] = RegisterOperand(r) }

// SetOp0Mem sets the first operand to a memory operand.
func (in *Instruction) SetOp0Mem(op Operand) { in.Operands[0] = op }

// Op1Reg returns the second operand's register.
func (in *Instruction) Op1Reg() Register { return in.Operands[1].Reg }

// SetOp1Reg sets the second operand to a register operand.
func (in *Instruction) SetOp1Reg(r Register) { in.Operands[1] = RegisterOperand(r) }

// SetOp1Mem sets the second operand to a memory operand.
func (in *Instruction) SetOp1Mem(op Operand) { in.Operands[1] = op }

// Immediate returns the second operand's 64-bit immediate value.
func (in *Instruction) Immediate() uint64 { return in.Operands[1].Imm }

// SetImmediate sets the second operand to a 64-bit immediate.
func (in *Instruction) SetImmediate(v uint64) { in.Operands[1] = Immediate64Operand(v) }

// MemSize returns the OperandSize of the memory operand at index op.
func (in *Instruction) MemSize(op int) OperandSize { return in.Operands[op].Size }

// SetMemSize overwrites the OperandSize of the memory operand at index op.
func (in *Instruction) SetMemSize(op int, size OperandSize) { in.Operands[op].Size = size }

// BranchTarget returns the first operand's signed branch displacement.
func (in *Instruction) BranchTarget() int64 { return in.Operands[0].Branch }

// SetBranchTarget sets the first operand to a branch displacement.
func (in *Instruction) SetBranchTarget(target int64) { in.Operands[0] = BranchOperand(target) }

// Encode writes the wire-format bytes of in to w: one opcode byte, then each
// non-absent operand in order. A Register operand is one byte; a Memory
// operand is twelve bytes (size, 8-byte LE displacement, scale, index
// register or 0xFF, base register or 0xFF); an Immediate64 or Branch operand
// is eight bytes, little-endian.
func (in *Instruction) Encode(w io.Writer) error {
	if _, err := w.Write([]byte{byte(in.Opcode)}); err != nil {
		return err
	}

	for _, op := range in.Operands {
		switch op.Kind {
		case KindNone:
			return nil
		case KindRegister:
			if _, err := w.Write([]byte{byte(op.Reg)}); err != nil {
				return err
			}
		case KindMemory:
			var buf [12]byte
			buf[0] = byte(op.Size)
			binary.LittleEndian.PutUint64(buf[1:9], op.Displacement)
			buf[9] = op.Scale
			if op.HasIndexReg {
				buf[10] = byte(op.IndexReg)
			} else {
				buf[10] = NoRegister
			}
			if op.HasBaseReg {
				buf[11] = byte(op.BaseReg)
			} else {
				buf[11] = NoRegister
			}
			if _, err := w.Write(buf[:]); err != nil {
				return err
			}
		case KindImmediate64:
			var buf [8]byte
			binary.LittleEndian.PutUint64(buf[:], op.Imm)
			if _, err := w.Write(buf[:]); err != nil {
				return err
			}
		case KindBranch:
			var buf [8]byte
			binary.LittleEndian.PutUint64(buf[:], uint64(op.Branch))
			if _, err := w.Write(buf[:]); err != nil {
				return err
			}
		}
	}

	return nil
}
