package asmbuild

import (
	"testing"

	"github.com/kaelstrom/gvm64/emulator"
	"github.com/kaelstrom/gvm64/isa"
)

func assemble(t *testing.T, source string) []byte {
	t.Helper()
	b := New()
	if err := b.CompileSource(source); err != nil {
		t.Fatal(err)
	}
	if err := b.Finalize(); err != nil {
		t.Fatal(err)
	}
	bc, err := b.Dump()
	if err != nil {
		t.Fatal(err)
	}
	return bc
}

func TestAssembleSimpleProgram(t *testing.T) {
	bc := assemble(t, "mov r0, 40\nadd r0, 2\nexit\n")
	e := emulator.WithBytecode(bc)
	if err := e.Execute(); err != nil {
		t.Fatal(err)
	}
	if e.Regs.Read(isa.R0) != 42 {
		t.Fatalf("got %d want 42", e.Regs.Read(isa.R0))
	}
}

func TestAssembleForwardBranch(t *testing.T) {
	src := "mov r0, 0\njmp skip\nmov r0, 999\nskip:\nexit\n"
	bc := assemble(t, src)
	e := emulator.WithBytecode(bc)
	if err := e.Execute(); err != nil {
		t.Fatal(err)
	}
	if e.Regs.Read(isa.R0) != 0 {
		t.Fatalf("expected the skipped mov to never execute, got %d", e.Regs.Read(isa.R0))
	}
}

func TestAssembleBackwardBranchLoop(t *testing.T) {
	src := "mov r0, 0\nmov r1, 5\nloop_top:\nadd r0, 1\ndec r1\ntest r1, r1\njnz loop_top\nexit\n"
	bc := assemble(t, src)
	e := emulator.WithBytecode(bc)
	if err := e.Execute(); err != nil {
		t.Fatal(err)
	}
	if e.Regs.Read(isa.R0) != 5 {
		t.Fatalf("got %d want 5", e.Regs.Read(isa.R0))
	}
}

// TestJbAssemblesToItsOwnOpcode is the regression test for the redesigned
// builder behavior: jb must not alias jge's opcode.
func TestJbAssemblesToItsOwnOpcode(t *testing.T) {
	b := New()
	if err := b.CompileSource("jb target\ntarget:\nexit\n"); err != nil {
		t.Fatal(err)
	}
	if err := b.Finalize(); err != nil {
		t.Fatal(err)
	}
	bc, err := b.Dump()
	if err != nil {
		t.Fatal(err)
	}
	if bc[0] != byte(isa.OpJb) {
		t.Fatalf("expected jb to assemble to OpJb (%d), got opcode byte %d", isa.OpJb, bc[0])
	}
}

func TestAssembleOffsetOfReference(t *testing.T) {
	src := "mov r0, offsetof buf\nexit\nbuf:\ndb 7\n"
	bc := assemble(t, src)
	e := emulator.WithBytecode(bc)
	if err := e.Execute(); err != nil {
		t.Fatal(err)
	}
	bufOffset := e.Regs.Read(isa.R0)
	v, err := e.Dram.ReadU8(int(bufOffset))
	if err != nil {
		t.Fatal(err)
	}
	if v != 7 {
		t.Fatalf("got %d want 7", v)
	}
}

func TestUnresolvedLabelErrors(t *testing.T) {
	b := New()
	if err := b.CompileSource("jmp nowhere\n"); err != nil {
		t.Fatal(err)
	}
	if err := b.Finalize(); err == nil {
		t.Fatal("expected an error for a branch to an undefined label")
	}
}

func TestDataDirectiveOverflowErrors(t *testing.T) {
	b := New()
	if err := b.CompileSource("db 256\n"); err == nil {
		t.Fatal("expected db to reject a value above a byte's range")
	}
}

func TestCompileMemoryOperand(t *testing.T) {
	src := "mov qword [r1], r0\nmov r2, qword [r1]\nexit\n"
	b := New()
	if err := b.CompileSource(src); err != nil {
		t.Fatal(err)
	}
	if err := b.Finalize(); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Dump(); err != nil {
		t.Fatal(err)
	}
}
