package emulator

import (
	"github.com/kaelstrom/gvm64/internal/vmerr"
	"github.com/kaelstrom/gvm64/isa"
)

// handler executes one decoded instruction against an Emulator's state.
type handler func(e *Emulator, in *isa.Instruction) error

// handlers is the opcode dispatch table, built once so SingleStep need only
// do a map lookup rather than a long type switch.
var handlers map[isa.OpCode]handler

func init() {
	handlers = map[isa.OpCode]handler{
		isa.OpUd:       handleUd,
		isa.OpMovRIMM:  handleMovRIMM,
		isa.OpMovRR:    handleMovRR,
		isa.OpMovRRM:   handleMovRRM,
		isa.OpMovRMR:   handleMovRMR,
		isa.OpAddRIMM:  handleAddRIMM,
		isa.OpAddRR:    handleAddRR,
		isa.OpSubRIMM:  handleSubRIMM,
		isa.OpSubRR:    handleSubRR,
		isa.OpAndRIMM:  handleAndRIMM,
		isa.OpAndRR:    handleAndRR,
		isa.OpOrRIMM:   handleOrRIMM,
		isa.OpOrRR:     handleOrRR,
		isa.OpXorRIMM:  handleXorRIMM,
		isa.OpXorRR:    handleXorRR,
		isa.OpXchgRR:   handleXchgRR,
		isa.OpImulRIMM: handleImulRIMM,
		isa.OpImulRR:   handleImulRR,
		isa.OpIncR:     handleIncR,
		isa.OpDecR:     handleDecR,
		isa.OpTestRIMM: handleTestRIMM,
		isa.OpTestRR:   handleTestRR,
		isa.OpCmpRIMM:  handleCmpRIMM,
		isa.OpCmpRR:    handleCmpRR,
		isa.OpJmp:      handleJmp,
		isa.OpJz:       handleJz,
		isa.OpJnz:      handleJnz,
		isa.OpJle:      handleJle,
		isa.OpJg:       handleJg,
		isa.OpJge:      handleJge,
		isa.OpJb:       handleJb,
	}
}

// filterSpecialReg rejects IP as a general-purpose write destination.
func filterSpecialReg(reg isa.Register) (isa.Register, bool) {
	if reg == isa.IP {
		return 0, false
	}
	return reg, true
}

func handleUd(e *Emulator, in *isa.Instruction) error {
	return vmerr.IllegalInstruction
}

func memOperandAddress(e *Emulator, op *isa.Operand) (uint64, error) {
	address := op.Displacement
	if op.HasBaseReg {
		address += e.Regs.Read(op.BaseReg)
	}
	if op.HasIndexReg {
		switch op.Scale {
		case 1, 2, 4, 8:
		default:
			return 0, vmerr.IllegalInstruction
		}
		address += e.Regs.Read(op.IndexReg) * uint64(op.Scale)
	}
	return address, nil
}

func handleMemOpRead(e *Emulator, in *isa.Instruction, opIdx int) (uint64, error) {
	op := &in.Operands[opIdx]
	if op.Kind != isa.KindMemory {
		return 0, vmerr.IllegalInstruction
	}
	address, err := memOperandAddress(e, op)
	if err != nil {
		return 0, err
	}
	return e.Dram.ReadSized(int(address), op.Size.Size())
}

func handleMemOpWrite(e *Emulator, in *isa.Instruction, opIdx int, value uint64) error {
	op := &in.Operands[opIdx]
	if op.Kind != isa.KindMemory {
		return vmerr.IllegalInstruction
	}
	address, err := memOperandAddress(e, op)
	if err != nil {
		return err
	}
	return e.Dram.WriteSized(int(address), op.Size.Size(), value)
}

func handleMovRIMM(e *Emulator, in *isa.Instruction) error {
	r, ok := filterSpecialReg(in.Op0Reg())
	if !ok {
		return vmerr.IllegalInstruction
	}
	e.Regs.Write(r, in.Immediate())
	return nil
}

func handleMovRR(e *Emulator, in *isa.Instruction) error {
	r, ok := filterSpecialReg(in.Op0Reg())
	if !ok {
		return vmerr.IllegalInstruction
	}
	e.Regs.Write(r, e.Regs.Read(in.Op1Reg()))
	return nil
}

func handleMovRRM(e *Emulator, in *isa.Instruction) error {
	r, ok := filterSpecialReg(in.Op0Reg())
	if !ok {
		return vmerr.IllegalInstruction
	}
	value, err := handleMemOpRead(e, in, 1)
	if err != nil {
		return err
	}
	e.Regs.Write(r, value)
	return nil
}

func handleMovRMR(e *Emulator, in *isa.Instruction) error {
	r, ok := filterSpecialReg(in.Op1Reg())
	if !ok {
		return vmerr.IllegalInstruction
	}
	return handleMemOpWrite(e, in, 0, e.Regs.Read(r))
}

func handleAddRIMM(e *Emulator, in *isa.Instruction) error {
	r, ok := filterSpecialReg(in.Op0Reg())
	if !ok {
		return vmerr.IllegalInstruction
	}
	e.Regs.Write(r, e.Regs.Read(r)+in.Immediate())
	return nil
}

func handleAddRR(e *Emulator, in *isa.Instruction) error {
	r, ok := filterSpecialReg(in.Op0Reg())
	if !ok {
		return vmerr.IllegalInstruction
	}
	e.Regs.Write(r, e.Regs.Read(r)+e.Regs.Read(in.Op1Reg()))
	return nil
}

func handleSubRIMM(e *Emulator, in *isa.Instruction) error {
	r, ok := filterSpecialReg(in.Op0Reg())
	if !ok {
		return vmerr.IllegalInstruction
	}
	e.Regs.Write(r, e.Regs.Read(r)-in.Immediate())
	return nil
}

func handleSubRR(e *Emulator, in *isa.Instruction) error {
	r, ok := filterSpecialReg(in.Op0Reg())
	if !ok {
		return vmerr.IllegalInstruction
	}
	e.Regs.Write(r, e.Regs.Read(r)-e.Regs.Read(in.Op1Reg()))
	return nil
}

func handleAndRIMM(e *Emulator, in *isa.Instruction) error {
	r, ok := filterSpecialReg(in.Op0Reg())
	if !ok {
		return vmerr.IllegalInstruction
	}
	e.Regs.Write(r, e.Regs.Read(r)&in.Immediate())
	return nil
}

func handleAndRR(e *Emulator, in *isa.Instruction) error {
	r, ok := filterSpecialReg(in.Op0Reg())
	if !ok {
		return vmerr.IllegalInstruction
	}
	e.Regs.Write(r, e.Regs.Read(r)&e.Regs.Read(in.Op1Reg()))
	return nil
}

func handleOrRIMM(e *Emulator, in *isa.Instruction) error {
	r, ok := filterSpecialReg(in.Op0Reg())
	if !ok {
		return vmerr.IllegalInstruction
	}
	e.Regs.Write(r, e.Regs.Read(r)|in.Immediate())
	return nil
}

func handleOrRR(e *Emulator, in *isa.Instruction) error {
	r, ok := filterSpecialReg(in.Op0Reg())
	if !ok {
		return vmerr.IllegalInstruction
	}
	e.Regs.Write(r, e.Regs.Read(r)|e.Regs.Read(in.Op1Reg()))
	return nil
}

func handleXorRIMM(e *Emulator, in *isa.Instruction) error {
	r, ok := filterSpecialReg(in.Op0Reg())
	if !ok {
		return vmerr.IllegalInstruction
	}
	e.Regs.Write(r, e.Regs.Read(r)^in.Immediate())
	return nil
}

func handleXorRR(e *Emulator, in *isa.Instruction) error {
	r, ok := filterSpecialReg(in.Op0Reg())
	if !ok {
		return vmerr.IllegalInstruction
	}
	e.Regs.Write(r, e.Regs.Read(r)^e.Regs.Read(in.Op1Reg()))
	return nil
}

func handleXchgRR(e *Emulator, in *isa.Instruction) error {
	r0, ok := filterSpecialReg(in.Op0Reg())
	if !ok {
		return vmerr.IllegalInstruction
	}
	r1 := in.Op1Reg()
	lhs, rhs := e.Regs.Read(r0), e.Regs.Read(r1)
	e.Regs.Write(r0, rhs)
	e.Regs.Write(r1, lhs)
	return nil
}

func handleImulRIMM(e *Emulator, in *isa.Instruction) error {
	r, ok := filterSpecialReg(in.Op0Reg())
	if !ok {
		return vmerr.IllegalInstruction
	}
	lhs := int64(e.Regs.Read(r))
	rhs := int64(in.Immediate())
	e.Regs.Write(r, uint64(lhs*rhs))
	return nil
}

func handleImulRR(e *Emulator, in *isa.Instruction) error {
	r, ok := filterSpecialReg(in.Op0Reg())
	if !ok {
		return vmerr.IllegalInstruction
	}
	lhs := int64(e.Regs.Read(r))
	rhs := int64(e.Regs.Read(in.Op1Reg()))
	e.Regs.Write(r, uint64(lhs*rhs))
	return nil
}

func handleIncR(e *Emulator, in *isa.Instruction) error {
	r, ok := filterSpecialReg(in.Op0Reg())
	if !ok {
		return vmerr.IllegalInstruction
	}
	e.Regs.Write(r, e.Regs.Read(r)+1)
	return nil
}

func handleDecR(e *Emulator, in *isa.Instruction) error {
	r, ok := filterSpecialReg(in.Op0Reg())
	if !ok {
		return vmerr.IllegalInstruction
	}
	e.Regs.Write(r, e.Regs.Read(r)-1)
	return nil
}

// Test and Cmp update only the flags documented here: Test sets ZF from the
// bitwise AND of its operands and leaves CF/PF/AF/SF/OF untouched; Cmp sets
// ZF/SF/OF from a signed subtraction and leaves CF/PF/AF untouched.

func handleTestRIMM(e *Emulator, in *isa.Instruction) error {
	r, ok := filterSpecialReg(in.Op0Reg())
	if !ok {
		return vmerr.IllegalInstruction
	}
	value := e.Regs.Read(r) & in.Immediate()
	rf := e.Regs.ReadRF()
	rf.SetZF(boolBit(value == 0))
	e.Regs.WriteRF(rf)
	return nil
}

func handleTestRR(e *Emulator, in *isa.Instruction) error {
	r, ok := filterSpecialReg(in.Op0Reg())
	if !ok {
		return vmerr.IllegalInstruction
	}
	value := e.Regs.Read(r) & e.Regs.Read(in.Op1Reg())
	rf := e.Regs.ReadRF()
	rf.SetZF(boolBit(value == 0))
	e.Regs.WriteRF(rf)
	return nil
}

func compareAndSetFlags(e *Emulator, lhs, rhs int64) {
	value := lhs - rhs

	rf := e.Regs.ReadRF()
	rf.SetZF(boolBit(value == 0))
	rf.SetSF(uint64(value) >> 63)

	lhsSign := (lhs >> 63) & 1
	rhsSign := (rhs >> 63) & 1
	resSign := (value >> 63) & 1
	of := lhsSign != rhsSign && lhsSign != resSign
	rf.SetOF(boolBit(of))

	e.Regs.WriteRF(rf)
}

func handleCmpRIMM(e *Emulator, in *isa.Instruction) error {
	r, ok := filterSpecialReg(in.Op0Reg())
	if !ok {
		return vmerr.IllegalInstruction
	}
	compareAndSetFlags(e, int64(e.Regs.Read(r)), int64(in.Immediate()))
	return nil
}

func handleCmpRR(e *Emulator, in *isa.Instruction) error {
	r, ok := filterSpecialReg(in.Op0Reg())
	if !ok {
		return vmerr.IllegalInstruction
	}
	compareAndSetFlags(e, int64(e.Regs.Read(r)), int64(e.Regs.Read(in.Op1Reg())))
	return nil
}

func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func takeBranch(e *Emulator, in *isa.Instruction, taken bool) error {
	target := in.BranchTarget()
	if target == 0 {
		return vmerr.IllegalInstruction
	}
	if !taken {
		return nil
	}
	e.SetIP(uint64(int64(e.IP()) + target))
	return nil
}

func handleJmp(e *Emulator, in *isa.Instruction) error {
	return takeBranch(e, in, true)
}

func handleJz(e *Emulator, in *isa.Instruction) error {
	return takeBranch(e, in, e.Regs.ReadRF().ZF()&1 == 1)
}

func handleJnz(e *Emulator, in *isa.Instruction) error {
	return takeBranch(e, in, e.Regs.ReadRF().ZF()&1 == 0)
}

func handleJle(e *Emulator, in *isa.Instruction) error {
	rf := e.Regs.ReadRF()
	return takeBranch(e, in, rf.ZF()&1 == 1 || rf.SF() != rf.OF())
}

func handleJg(e *Emulator, in *isa.Instruction) error {
	rf := e.Regs.ReadRF()
	return takeBranch(e, in, rf.ZF() == 0 && rf.SF() == rf.OF())
}

func handleJge(e *Emulator, in *isa.Instruction) error {
	rf := e.Regs.ReadRF()
	return takeBranch(e, in, rf.SF() == rf.OF())
}

func handleJb(e *Emulator, in *isa.Instruction) error {
	rf := e.Regs.ReadRF()
	return takeBranch(e, in, rf.CF()&1 == 1)
}
