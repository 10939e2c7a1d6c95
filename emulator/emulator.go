// Package emulator implements the gvm64 CPU: register file, flat memory,
// instruction fetch/decode, and the ALU dispatch that executes a decoded
// Instruction.
package emulator

import (
	"github.com/kaelstrom/gvm64/cpuregs"
	"github.com/kaelstrom/gvm64/internal/vmerr"
	"github.com/kaelstrom/gvm64/isa"
	"github.com/kaelstrom/gvm64/vmem"
)

// Emulator is a single CPU core: its registers, its memory, and a cycle
// counter advanced once per retired instruction.
type Emulator struct {
	Regs  cpuregs.Registers
	Dram  *vmem.Memory
	Cycle uint64
}

// New returns an Emulator with a freshly allocated, empty DefaultSize DRAM.
func New() *Emulator {
	return &Emulator{Dram: vmem.New()}
}

// WithBytecode returns an Emulator whose DRAM contains exactly bytecode,
// ready to execute starting at IP==0.
func WithBytecode(bytecode []byte) *Emulator {
	return &Emulator{Dram: vmem.NewWithImage(bytecode)}
}

// Reset zeroes the register file and cycle counter; DRAM contents are left
// untouched.
func (e *Emulator) Reset() {
	e.Regs.Reset()
	e.Cycle = 0
}

// IP returns the current instruction pointer.
func (e *Emulator) IP() uint64 { return e.Regs.Read(isa.IP) }

// IncrementIP advances the instruction pointer by value bytes.
func (e *Emulator) IncrementIP(value uint64) { e.Regs.Write(isa.IP, e.IP()+value) }

// SetIP sets the instruction pointer directly, used by taken branches.
func (e *Emulator) SetIP(value uint64) { e.Regs.Write(isa.IP, value) }

// FetchU8 reads one byte at IP and advances IP on success.
func (e *Emulator) FetchU8() (uint8, error) {
	v, err := e.Dram.ReadU8(int(e.IP()))
	if err != nil {
		return 0, err
	}
	e.IncrementIP(1)
	return v, nil
}

// FetchU16LE reads a little-endian u16 at IP and advances IP on success.
func (e *Emulator) FetchU16LE() (uint16, error) {
	v, err := e.Dram.ReadU16LE(int(e.IP()))
	if err != nil {
		return 0, err
	}
	e.IncrementIP(2)
	return v, nil
}

// FetchU32LE reads a little-endian u32 at IP and advances IP on success.
func (e *Emulator) FetchU32LE() (uint32, error) {
	v, err := e.Dram.ReadU32LE(int(e.IP()))
	if err != nil {
		return 0, err
	}
	e.IncrementIP(4)
	return v, nil
}

// FetchU64LE reads a little-endian u64 at IP and advances IP on success.
func (e *Emulator) FetchU64LE() (uint64, error) {
	v, err := e.Dram.ReadU64LE(int(e.IP()))
	if err != nil {
		return 0, err
	}
	e.IncrementIP(8)
	return v, nil
}

func (e *Emulator) decodeRIMM(in *isa.Instruction) error {
	rb, err := e.FetchU8()
	if err != nil {
		return err
	}
	reg, ok := validRegister(rb)
	if !ok {
		return vmerr.IllegalInstruction
	}
	imm, err := e.FetchU64LE()
	if err != nil {
		return err
	}
	in.SetOp0Reg(reg)
	in.SetImmediate(imm)
	return nil
}

func (e *Emulator) decodeRRM(in *isa.Instruction) error {
	rb, err := e.FetchU8()
	if err != nil {
		return err
	}
	reg, ok := validRegister(rb)
	if !ok {
		return vmerr.IllegalInstruction
	}
	in.SetOp0Reg(reg)

	mem, err := e.decodeMemory()
	if err != nil {
		return err
	}
	in.SetOp1Mem(mem)
	return nil
}

func (e *Emulator) decodeRMR(in *isa.Instruction) error {
	mem, err := e.decodeMemory()
	if err != nil {
		return err
	}
	in.SetOp0Mem(mem)

	rb, err := e.FetchU8()
	if err != nil {
		return err
	}
	reg, ok := validRegister(rb)
	if !ok {
		return vmerr.IllegalInstruction
	}
	in.SetOp1Reg(reg)
	return nil
}

func (e *Emulator) decodeRR(in *isa.Instruction) error {
	r0b, err := e.FetchU8()
	if err != nil {
		return err
	}
	r1b, err := e.FetchU8()
	if err != nil {
		return err
	}
	r0, ok0 := validRegister(r0b)
	r1, ok1 := validRegister(r1b)
	if !ok0 || !ok1 {
		return vmerr.IllegalInstruction
	}
	in.SetOp0Reg(r0)
	in.SetOp1Reg(r1)
	return nil
}

func (e *Emulator) decodeR(in *isa.Instruction) error {
	r0b, err := e.FetchU8()
	if err != nil {
		return err
	}
	r0, ok := validRegister(r0b)
	if !ok {
		return vmerr.IllegalInstruction
	}
	in.SetOp0Reg(r0)
	return nil
}

func (e *Emulator) decodeBranch(in *isa.Instruction) error {
	target, err := e.FetchU64LE()
	if err != nil {
		return err
	}
	in.SetBranchTarget(int64(target))
	return nil
}

// decodeMemory reads the 12-byte memory operand encoding: size, 8-byte LE
// displacement, scale, index register (0xFF = none), base register (0xFF =
// none).
func (e *Emulator) decodeMemory() (isa.Operand, error) {
	sizeb, err := e.FetchU8()
	if err != nil {
		return isa.Operand{}, err
	}
	size := isa.OperandSize(sizeb)
	if size > isa.QWord {
		return isa.Operand{}, vmerr.IllegalInstruction
	}

	disp, err := e.FetchU64LE()
	if err != nil {
		return isa.Operand{}, err
	}
	scale, err := e.FetchU8()
	if err != nil {
		return isa.Operand{}, err
	}
	idxb, err := e.FetchU8()
	if err != nil {
		return isa.Operand{}, err
	}
	baseb, err := e.FetchU8()
	if err != nil {
		return isa.Operand{}, err
	}

	idx, hasIdx := validRegister(idxb)
	base, hasBase := validRegister(baseb)

	return isa.MemoryOperand(size, disp, scale, idx, hasIdx, base, hasBase), nil
}

func validRegister(b uint8) (isa.Register, bool) {
	if b == isa.NoRegister || int(b) >= isa.NumRegs {
		return 0, false
	}
	return isa.Register(b), true
}

// Decode reads the operand bytes for opcode and builds an Instruction.
func (e *Emulator) Decode(opcode isa.OpCode) (isa.Instruction, error) {
	in := isa.NewInstruction(opcode)

	var err error
	switch opcode {
	case isa.OpExit, isa.OpUd:
		// no operands
	case isa.OpMovRIMM, isa.OpAddRIMM, isa.OpSubRIMM, isa.OpAndRIMM,
		isa.OpOrRIMM, isa.OpXorRIMM, isa.OpImulRIMM, isa.OpTestRIMM, isa.OpCmpRIMM:
		err = e.decodeRIMM(&in)
	case isa.OpMovRR, isa.OpAddRR, isa.OpSubRR, isa.OpAndRR, isa.OpOrRR,
		isa.OpXorRR, isa.OpXchgRR, isa.OpImulRR, isa.OpTestRR, isa.OpCmpRR:
		err = e.decodeRR(&in)
	case isa.OpMovRRM:
		err = e.decodeRRM(&in)
	case isa.OpMovRMR:
		err = e.decodeRMR(&in)
	case isa.OpIncR, isa.OpDecR:
		err = e.decodeR(&in)
	case isa.OpJmp, isa.OpJz, isa.OpJnz, isa.OpJle, isa.OpJg, isa.OpJge, isa.OpJb:
		err = e.decodeBranch(&in)
	default:
		return in, vmerr.IllegalInstruction
	}

	return in, err
}

// SingleStep fetches, decodes, and executes exactly one instruction,
// advancing the cycle counter on success.
func (e *Emulator) SingleStep() error {
	opb, err := e.FetchU8()
	if err != nil {
		return err
	}
	opcode, ok := isa.OpCodeFromByte(opb)
	if !ok {
		return vmerr.IllegalInstruction
	}

	in, err := e.Decode(opcode)
	if err != nil {
		return err
	}

	if opcode == isa.OpExit {
		return vmerr.Exit
	}

	handler, ok := handlers[opcode]
	if !ok {
		return vmerr.IllegalInstruction
	}
	if err := handler(e, &in); err != nil {
		return err
	}

	e.Cycle++
	return nil
}

// Execute runs SingleStep in a loop. An Exit exception ends the loop
// successfully; any other error is returned to the caller.
func (e *Emulator) Execute() error {
	for {
		err := e.SingleStep()
		if err == nil {
			continue
		}
		if err == vmerr.Exit {
			return nil
		}
		return err
	}
}
