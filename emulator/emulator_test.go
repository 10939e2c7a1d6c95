package emulator

import (
	"bytes"
	"testing"

	"github.com/kaelstrom/gvm64/cpuregs"
	"github.com/kaelstrom/gvm64/internal/vmerr"
	"github.com/kaelstrom/gvm64/isa"
)

func assert(t *testing.T, cond bool, msg string) {
	t.Helper()
	if !cond {
		t.Fatal(msg)
	}
}

func encode(t *testing.T, instrs ...isa.Instruction) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, in := range instrs {
		if err := in.Encode(&buf); err != nil {
			t.Fatal(err)
		}
	}
	return buf.Bytes()
}

func movRIMM(r isa.Register, v uint64) isa.Instruction {
	in := isa.NewInstruction(isa.OpMovRIMM)
	in.SetOp0Reg(r)
	in.SetImmediate(v)
	return in
}

func addRIMM(r isa.Register, v uint64) isa.Instruction {
	in := isa.NewInstruction(isa.OpAddRIMM)
	in.SetOp0Reg(r)
	in.SetImmediate(v)
	return in
}

func exitInsn() isa.Instruction { return isa.NewInstruction(isa.OpExit) }

func TestExecuteSimpleProgram(t *testing.T) {
	bc := encode(t, movRIMM(isa.R0, 41), addRIMM(isa.R0, 1), exitInsn())
	e := WithBytecode(bc)
	if err := e.Execute(); err != nil {
		t.Fatal(err)
	}
	if e.Regs.Read(isa.R0) != 42 {
		t.Fatalf("got %d want 42", e.Regs.Read(isa.R0))
	}
}

func TestMovRejectsIPAsDestination(t *testing.T) {
	bc := encode(t, movRIMM(isa.IP, 1))
	e := WithBytecode(bc)
	if err := e.Execute(); err != vmerr.IllegalInstruction {
		t.Fatalf("expected IllegalInstruction, got %v", err)
	}
}

func TestUnknownOpcodeByteIsIllegal(t *testing.T) {
	e := WithBytecode([]byte{0xfe})
	if err := e.Execute(); err != vmerr.IllegalInstruction {
		t.Fatalf("expected IllegalInstruction, got %v", err)
	}
}

func TestReadPastEndOfImageIsAccessViolation(t *testing.T) {
	e := WithBytecode(encode(t, movRIMM(isa.R0, 1))[:2])
	if err := e.Execute(); err != vmerr.AccessViolation {
		t.Fatalf("expected AccessViolation, got %v", err)
	}
}

func TestZeroBranchTargetIsAlwaysIllegal(t *testing.T) {
	jmp := isa.NewInstruction(isa.OpJmp)
	jmp.SetBranchTarget(0)
	e := WithBytecode(encode(t, jmp))
	if err := e.Execute(); err != vmerr.IllegalInstruction {
		t.Fatalf("expected IllegalInstruction even for an untaken-looking jmp, got %v", err)
	}
}

func TestCmpSetsOnlyZfSfOf(t *testing.T) {
	cmp := isa.NewInstruction(isa.OpCmpRIMM)
	cmp.SetOp0Reg(isa.R0)
	cmp.SetImmediate(5)

	bc := encode(t, movRIMM(isa.R0, 5), cmp, exitInsn())
	e := WithBytecode(bc)
	if err := e.Execute(); err != nil {
		t.Fatal(err)
	}
	rf := e.Regs.ReadRF()
	assert(t, rf.ZF() == 1, "expected ZF set for equal operands")
	if rf.CF() != 0 || rf.PF() != 0 || rf.AF() != 0 {
		t.Fatal("cmp must not touch CF/PF/AF")
	}
}

func TestTestInstructionSetsOnlyZf(t *testing.T) {
	test := isa.NewInstruction(isa.OpTestRIMM)
	test.SetOp0Reg(isa.R0)
	test.SetImmediate(0)

	bc := encode(t, movRIMM(isa.R0, 7), test, exitInsn())
	e := WithBytecode(bc)
	if err := e.Execute(); err != nil {
		t.Fatal(err)
	}
	rf := e.Regs.ReadRF()
	assert(t, rf.ZF() == 1, "expected ZF set: 7 & 0 == 0")
	if rf.SF() != 0 || rf.OF() != 0 || rf.CF() != 0 {
		t.Fatal("test must not touch SF/OF/CF")
	}
}

func TestJbBranchesOnCarryFlag(t *testing.T) {
	jb := isa.NewInstruction(isa.OpJb)
	jb.SetBranchTarget(100) // arbitrary nonzero, never taken here

	e := WithBytecode(encode(t, jb))
	if err := e.SingleStep(); err != nil {
		t.Fatal(err)
	}
	if e.IP() != 9 {
		t.Fatalf("expected jb to fall through when CF==0, IP=%d", e.IP())
	}
}

func TestJbTakenWhenCarrySet(t *testing.T) {
	jb := isa.NewInstruction(isa.OpJb)
	jb.SetBranchTarget(5)
	bc := encode(t, jb)

	e := WithBytecode(bc)
	var rf cpuregs.RFlags
	rf.SetCF(1)
	e.Regs.WriteRF(rf)

	if err := e.SingleStep(); err != nil {
		t.Fatal(err)
	}
	// the 9-byte jb is decoded first, so the target is relative to IP 9
	if e.IP() != 9+5 {
		t.Fatalf("expected IP advanced by the branch target, got %d", e.IP())
	}
}

func TestMemoryOperandRoundTrip(t *testing.T) {
	// displacement chosen well past the instruction stream itself, since
	// the emulator's flat memory holds code and data together
	store := isa.NewInstruction(isa.OpMovRMR)
	store.SetOp0Mem(isa.MemoryOperand(isa.QWord, 256, 1, 0, false, 0, false))
	store.SetOp1Reg(isa.R0)

	load := isa.NewInstruction(isa.OpMovRRM)
	load.SetOp0Reg(isa.R1)
	load.SetOp1Mem(isa.MemoryOperand(isa.QWord, 256, 1, 0, false, 0, false))

	bc := encode(t, movRIMM(isa.R0, 1234), store, load, exitInsn())
	e := New()
	for i, b := range bc {
		if err := e.Dram.WriteU8(i, b); err != nil {
			t.Fatal(err)
		}
	}
	if err := e.Execute(); err != nil {
		t.Fatal(err)
	}
	if e.Regs.Read(isa.R1) != 1234 {
		t.Fatalf("got %d want 1234", e.Regs.Read(isa.R1))
	}
}

func TestScaledIndexAddressing(t *testing.T) {
	load := isa.NewInstruction(isa.OpMovRRM)
	load.SetOp0Reg(isa.R1)
	// base r3 + index r2 * 8, pointed well past the instruction stream so the
	// sentinel write below can't clobber the program itself
	load.SetOp1Mem(isa.MemoryOperand(isa.QWord, 0, 8, isa.R2, true, isa.R3, true))

	bc := encode(t, movRIMM(isa.R3, 256), movRIMM(isa.R2, 2), load, exitInsn())

	e := New()
	for i, b := range bc {
		if err := e.Dram.WriteU8(i, b); err != nil {
			t.Fatal(err)
		}
	}
	// address == r3(256) + r2(2)*8 == 272
	if err := e.Dram.WriteU64LE(272, 777); err != nil {
		t.Fatal(err)
	}
	if err := e.Execute(); err != nil {
		t.Fatal(err)
	}
	if e.Regs.Read(isa.R1) != 777 {
		t.Fatalf("got %d want 777", e.Regs.Read(isa.R1))
	}
}

func TestBadScaleIsIllegal(t *testing.T) {
	load := isa.NewInstruction(isa.OpMovRRM)
	load.SetOp0Reg(isa.R1)
	load.SetOp1Mem(isa.MemoryOperand(isa.QWord, 0, 3, isa.R2, true, 0, false))
	e := WithBytecode(encode(t, load))
	if err := e.Execute(); err != vmerr.IllegalInstruction {
		t.Fatalf("expected IllegalInstruction for scale 3, got %v", err)
	}
}
