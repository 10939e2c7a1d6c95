package isa

import "fmt"

// OpCode is the wire-level operation code, the first byte of every encoded
// instruction.
type OpCode uint8

const (
	OpExit OpCode = iota
	OpUd
	OpMovRIMM
	OpMovRR
	OpMovRRM
	OpMovRMR
	OpAddRIMM
	OpAddRR
	OpSubRIMM
	OpSubRR
	OpAndRIMM
	OpAndRR
	OpOrRIMM
	OpOrRR
	OpXorRIMM
	OpXorRR
	OpXchgRR
	OpImulRIMM
	OpImulRR
	OpIncR
	OpDecR
	OpTestRIMM
	OpTestRR
	OpCmpRIMM
	OpCmpRR
	OpJmp
	OpJz
	OpJnz
	OpJle
	OpJg
	OpJge
	OpJb
)

// NumOpCodes is one past the last valid OpCode ordinal.
const NumOpCodes = int(OpJb) + 1

var opcodeNames = [NumOpCodes]string{
	OpExit: "Exit", OpUd: "Ud",
	OpMovRIMM: "MovRIMM", OpMovRR: "MovRR", OpMovRRM: "MovRRM", OpMovRMR: "MovRMR",
	OpAddRIMM: "AddRIMM", OpAddRR: "AddRR",
	OpSubRIMM: "SubRIMM", OpSubRR: "SubRR",
	OpAndRIMM: "AndRIMM", OpAndRR: "AndRR",
	OpOrRIMM: "OrRIMM", OpOrRR: "OrRR",
	OpXorRIMM: "XorRIMM", OpXorRR: "XorRR",
	OpXchgRR:  "XchgRR",
	OpImulRIMM: "ImulRIMM", OpImulRR: "ImulRR",
	OpIncR: "IncR", OpDecR: "DecR",
	OpTestRIMM: "TestRIMM", OpTestRR: "TestRR",
	OpCmpRIMM: "CmpRIMM", OpCmpRR: "CmpRR",
	OpJmp: "Jmp", OpJz: "Jz", OpJnz: "Jnz",
	OpJle: "Jle", OpJg: "Jg", OpJge: "Jge", OpJb: "Jb",
}

func (o OpCode) String() string {
	if int(o) < len(opcodeNames) {
		return opcodeNames[o]
	}
	return fmt.Sprintf("OpCode(%d)", uint8(o))
}

// OpCodeFromByte validates a raw opcode byte read from the bytecode stream.
func OpCodeFromByte(b uint8) (OpCode, bool) {
	if int(b) >= NumOpCodes {
		return 0, false
	}
	return OpCode(b), true
}

// Mnemonic is the human-readable assembly name of an instruction; several
// mnemonics (Mov, Add, Sub, ...) map to more than one OpCode depending on
// their operand kinds.
type Mnemonic uint8

const (
	MnemExit Mnemonic = iota
	MnemUd
	MnemMov
	MnemAdd
	MnemSub
	MnemAnd
	MnemOr
	MnemXor
	MnemXchg
	MnemImul
	MnemInc
	MnemDec
	MnemTest
	MnemCmp
	MnemJmp
	MnemJz
	MnemJnz
	MnemJle
	MnemJg
	MnemJge
	MnemJb
	MnemDb
	MnemDw
	MnemDd
	MnemDq
)

var mnemonicNames = map[Mnemonic]string{
	MnemExit: "exit", MnemUd: "ud", MnemMov: "mov",
	MnemAdd: "add", MnemSub: "sub", MnemAnd: "and", MnemOr: "or", MnemXor: "xor",
	MnemXchg: "xchg", MnemImul: "imul", MnemInc: "inc", MnemDec: "dec",
	MnemTest: "test", MnemCmp: "cmp",
	MnemJmp: "jmp", MnemJz: "jz", MnemJnz: "jnz", MnemJle: "jle",
	MnemJg: "jg", MnemJge: "jge", MnemJb: "jb",
	MnemDb: "db", MnemDw: "dw", MnemDd: "dd", MnemDq: "dq",
}

var mnemonicByName map[string]Mnemonic

func init() {
	mnemonicByName = make(map[string]Mnemonic, len(mnemonicNames))
	for m, name := range mnemonicNames {
		mnemonicByName[name] = m
	}
}

func (m Mnemonic) String() string {
	if name, ok := mnemonicNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mnemonic(%d)", uint8(m))
}

// ParseMnemonic recognizes a mnemonic case-insensitively.
func ParseMnemonic(s string) (Mnemonic, bool) {
	m, ok := mnemonicByName[toLower(s)]
	return m, ok
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// IsData reports whether m is one of the Db/Dw/Dd/Dq raw-data directives.
func (m Mnemonic) IsData() bool {
	switch m {
	case MnemDb, MnemDw, MnemDd, MnemDq:
		return true
	default:
		return false
	}
}

var minOperands = map[Mnemonic]int{
	MnemExit: 0, MnemUd: 0,
	MnemMov: 2, MnemAdd: 2, MnemSub: 2, MnemAnd: 2, MnemOr: 2, MnemXor: 2,
	MnemXchg: 2, MnemImul: 2,
	MnemInc: 1, MnemDec: 1,
	MnemTest: 2, MnemCmp: 2,
	MnemJmp: 1, MnemJz: 1, MnemJnz: 1, MnemJle: 1, MnemJg: 1, MnemJge: 1, MnemJb: 1,
	MnemDb: 1, MnemDw: 1, MnemDd: 1, MnemDq: 1,
}

// MinOperands and MaxOperands coincide for every mnemonic in this ISA: none
// accepts a variable operand count.
var maxOperands = minOperands

// MinOperands returns the minimum operand count accepted by m.
func (m Mnemonic) MinOperands() int { return minOperands[m] }

// MaxOperands returns the maximum operand count accepted by m.
func (m Mnemonic) MaxOperands() int { return maxOperands[m] }
