package isa

import "fmt"

// Register names one slot of the 18-entry register file.
type Register uint8

const (
	IP Register = iota
	RF
	R0
	R1
	R2
	R3
	R4
	R5
	R6
	R7
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

// NumRegs is the size of the register file.
const NumRegs = 18

var registerNames = [NumRegs]string{
	IP: "IP", RF: "RF",
	R0: "R0", R1: "R1", R2: "R2", R3: "R3",
	R4: "R4", R5: "R5", R6: "R6", R7: "R7",
	R8: "R8", R9: "R9", R10: "R10", R11: "R11",
	R12: "R12", R13: "R13", R14: "R14", R15: "R15",
}

var registerByName map[string]Register

func init() {
	registerByName = make(map[string]Register, NumRegs)
	for i, name := range registerNames {
		registerByName[name] = Register(i)
	}
}

func (r Register) String() string {
	if int(r) < len(registerNames) {
		return registerNames[r]
	}
	return fmt.Sprintf("Register(%d)", uint8(r))
}

// ParseRegister recognizes a register mnemonic case-insensitively. "ip" and
// "IP" both resolve to Register IP.
func ParseRegister(s string) (Register, bool) {
	r, ok := registerByName[upperFold(s)]
	return r, ok
}

func upperFold(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}
