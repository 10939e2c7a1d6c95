package isa

import (
	"bytes"
	"testing"
)

func assert(t *testing.T, cond bool, msg string) {
	t.Helper()
	if !cond {
		t.Fatal(msg)
	}
}

func TestRegisterRoundTrip(t *testing.T) {
	for _, name := range []string{"ip", "IP", "r0", "R15", "rf"} {
		reg, ok := ParseRegister(name)
		assert(t, ok, "expected "+name+" to resolve")
		assert(t, reg.String() != "", "expected non-empty name for "+name)
	}
	if _, ok := ParseRegister("nope"); ok {
		t.Fatal("expected unknown register name to fail")
	}
}

func TestParseOperandSize(t *testing.T) {
	cases := map[string]OperandSize{
		"byte": Byte, "BYTE PTR": Byte,
		"word": Word, "dword": DWord, "qword ptr": QWord,
	}
	for s, want := range cases {
		got, ok := ParseOperandSize(s)
		assert(t, ok, "expected "+s+" to parse")
		if got != want {
			t.Fatalf("%s: got %v want %v", s, got, want)
		}
	}
}

func TestParseMnemonicCaseInsensitive(t *testing.T) {
	m, ok := ParseMnemonic("JB")
	assert(t, ok, "expected JB to resolve")
	if m != MnemJb {
		t.Fatalf("got %v want MnemJb", m)
	}
}

func TestMnemonicOperandCounts(t *testing.T) {
	if MnemExit.MinOperands() != 0 || MnemExit.MaxOperands() != 0 {
		t.Fatal("exit takes no operands")
	}
	if MnemMov.MinOperands() != 2 || MnemMov.MaxOperands() != 2 {
		t.Fatal("mov takes exactly two operands")
	}
	if MnemInc.MinOperands() != 1 {
		t.Fatal("inc takes exactly one operand")
	}
}

func TestInstructionEncodeRegisterImmediate(t *testing.T) {
	in := NewInstruction(OpMovRIMM)
	in.SetOp0Reg(R0)
	in.SetImmediate(0x0102030405060708)

	var buf bytes.Buffer
	if err := in.Encode(&buf); err != nil {
		t.Fatal(err)
	}

	want := append([]byte{byte(OpMovRIMM), byte(R0)}, 0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01)
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("got % x want % x", buf.Bytes(), want)
	}
}

func TestInstructionEncodeMemoryOperand(t *testing.T) {
	in := NewInstruction(OpMovRRM)
	in.SetOp0Reg(R0)
	in.SetOp1Mem(MemoryOperand(QWord, 16, 8, R2, true, R1, true))

	var buf bytes.Buffer
	if err := in.Encode(&buf); err != nil {
		t.Fatal(err)
	}

	// opcode, reg, then 12-byte memory operand
	if buf.Len() != 1+1+12 {
		t.Fatalf("unexpected encoded length: %d", buf.Len())
	}
	b := buf.Bytes()
	assert(t, b[2] == byte(QWord), "expected size byte to be QWord")
	assert(t, b[12] == byte(R2), "expected index register byte")
	assert(t, b[13] == byte(R1), "expected base register byte")
}

func TestInstructionEncodeStopsAtNoneOperand(t *testing.T) {
	in := NewInstruction(OpExit)
	var buf bytes.Buffer
	if err := in.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf.Bytes(), []byte{byte(OpExit)}) {
		t.Fatalf("expected exit to encode as a single opcode byte, got % x", buf.Bytes())
	}
}

func TestOpCodeFromByte(t *testing.T) {
	if _, ok := OpCodeFromByte(255); ok {
		t.Fatal("expected out-of-range opcode byte to be rejected")
	}
	op, ok := OpCodeFromByte(byte(OpJb))
	assert(t, ok, "expected OpJb's own byte to round-trip")
	if op != OpJb {
		t.Fatalf("got %v want OpJb", op)
	}
}
