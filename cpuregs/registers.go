// Package cpuregs holds the register file and flags view used by the gvm64
// emulator, mirroring the teacher's small value-type state objects.
package cpuregs

import (
	"fmt"
	"strings"

	"github.com/kaelstrom/gvm64/isa"
)

// Registers is the 18-slot general/special register file.
type Registers struct {
	slots [isa.NumRegs]uint64
}

// Reset zeroes every register.
func (r *Registers) Reset() {
	for i := range r.slots {
		r.slots[i] = 0
	}
}

// Read returns the current value of reg.
func (r *Registers) Read(reg isa.Register) uint64 { return r.slots[reg] }

// Write stores value into reg.
func (r *Registers) Write(reg isa.Register, value uint64) { r.slots[reg] = value }

// ReadRF reads the RF register and views it as flags.
func (r *Registers) ReadRF() RFlags { return RFlags(r.slots[isa.RF]) }

// WriteRF stores rf back into the RF register.
func (r *Registers) WriteRF(rf RFlags) { r.slots[isa.RF] = uint64(rf) }

func (r *Registers) String() string {
	var b strings.Builder
	for i := 0; i < isa.NumRegs; i++ {
		fmt.Fprintf(&b, "%s=%016x ", isa.Register(i), r.slots[i])
	}
	return strings.TrimSpace(b.String())
}

// RFlags is a bitfield view of the RF register: CF at bit 0, PF at bit 2, AF
// at bit 4, ZF at bit 6, SF at bit 7, OF at bit 11. Remaining bits are
// reserved and preserved verbatim by every flag write.
type RFlags uint64

const (
	bitCF = 0
	bitPF = 2
	bitAF = 4
	bitZF = 6
	bitSF = 7
	bitOF = 11
)

func readBit(rf RFlags, bit uint) uint64 {
	return (uint64(rf) >> bit) & 1
}

func writeBit(rf *RFlags, bit uint, value uint64) {
	if value&1 == 1 {
		*rf |= RFlags(1) << bit
	} else {
		*rf &^= RFlags(1) << bit
	}
}

// CF returns the carry flag.
func (rf RFlags) CF() uint64 { return readBit(rf, bitCF) }

// SetCF writes the carry flag.
func (rf *RFlags) SetCF(v uint64) { writeBit(rf, bitCF, v) }

// PF returns the parity flag.
func (rf RFlags) PF() uint64 { return readBit(rf, bitPF) }

// SetPF writes the parity flag.
func (rf *RFlags) SetPF(v uint64) { writeBit(rf, bitPF, v) }

// AF returns the auxiliary carry flag.
func (rf RFlags) AF() uint64 { return readBit(rf, bitAF) }

// SetAF writes the auxiliary carry flag.
func (rf *RFlags) SetAF(v uint64) { writeBit(rf, bitAF, v) }

// ZF returns the zero flag.
func (rf RFlags) ZF() uint64 { return readBit(rf, bitZF) }

// SetZF writes the zero flag.
func (rf *RFlags) SetZF(v uint64) { writeBit(rf, bitZF, v) }

// SF returns the sign flag.
func (rf RFlags) SF() uint64 { return readBit(rf, bitSF) }

// SetSF writes the sign flag.
func (rf *RFlags) SetSF(v uint64) { writeBit(rf, bitSF, v) }

// OF returns the overflow flag.
func (rf RFlags) OF() uint64 { return readBit(rf, bitOF) }

// SetOF writes the overflow flag.
func (rf *RFlags) SetOF(v uint64) { writeBit(rf, bitOF, v) }
