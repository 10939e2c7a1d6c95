// Package vmem implements the flat, bounds-checked byte memory backing a
// gvm64 emulator. It stores no page table and performs no address
// translation: every offset maps directly onto the underlying slice.
package vmem

import (
	"encoding/binary"

	"github.com/kaelstrom/gvm64/internal/vmerr"
)

// DefaultSize is the capacity a freshly constructed Memory reserves when no
// explicit size is requested.
const DefaultSize = 1024 * 1024

// Memory is DRAM: a flat byte slice doubling as both the loaded bytecode
// image and general-purpose data storage. It is not safe for concurrent
// access.
type Memory struct {
	buf []byte
}

// New allocates a zeroed Memory of DefaultSize bytes.
func New() *Memory {
	return &Memory{buf: make([]byte, DefaultSize)}
}

// NewSized allocates a zeroed Memory of exactly size bytes.
func NewSized(size int) *Memory {
	return &Memory{buf: make([]byte, size)}
}

// NewWithImage allocates a Memory whose contents are exactly image; no
// padding is added. Loading a bytecode image this way places IP==0 at the
// image's first instruction.
func NewWithImage(image []byte) *Memory {
	buf := make([]byte, len(image))
	copy(buf, image)
	return &Memory{buf: buf}
}

// Len returns the memory's total size in bytes.
func (m *Memory) Len() int { return len(m.buf) }

// Bytes exposes the underlying storage directly; callers must not retain the
// slice past the Memory's lifetime expectations (e.g. across a reset).
func (m *Memory) Bytes() []byte { return m.buf }

func (m *Memory) checkRange(offset, size int) error {
	if offset < 0 || offset+size > len(m.buf) {
		return vmerr.AccessViolation
	}
	return nil
}

// ReadU8 reads one byte at offset.
func (m *Memory) ReadU8(offset int) (uint8, error) {
	if err := m.checkRange(offset, 1); err != nil {
		return 0, err
	}
	return m.buf[offset], nil
}

// ReadU16LE reads a little-endian 16-bit value at offset.
func (m *Memory) ReadU16LE(offset int) (uint16, error) {
	if err := m.checkRange(offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(m.buf[offset : offset+2]), nil
}

// ReadU32LE reads a little-endian 32-bit value at offset.
func (m *Memory) ReadU32LE(offset int) (uint32, error) {
	if err := m.checkRange(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.buf[offset : offset+4]), nil
}

// ReadU64LE reads a little-endian 64-bit value at offset.
func (m *Memory) ReadU64LE(offset int) (uint64, error) {
	if err := m.checkRange(offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(m.buf[offset : offset+8]), nil
}

// WriteU8 writes one byte at offset.
func (m *Memory) WriteU8(offset int, value uint8) error {
	if err := m.checkRange(offset, 1); err != nil {
		return err
	}
	m.buf[offset] = value
	return nil
}

// WriteU16LE writes a little-endian 16-bit value at offset.
func (m *Memory) WriteU16LE(offset int, value uint16) error {
	if err := m.checkRange(offset, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(m.buf[offset:offset+2], value)
	return nil
}

// WriteU32LE writes a little-endian 32-bit value at offset.
func (m *Memory) WriteU32LE(offset int, value uint32) error {
	if err := m.checkRange(offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.buf[offset:offset+4], value)
	return nil
}

// WriteU64LE writes a little-endian 64-bit value at offset.
func (m *Memory) WriteU64LE(offset int, value uint64) error {
	if err := m.checkRange(offset, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.buf[offset:offset+8], value)
	return nil
}

// ReadSized reads a value of the given width and zero-extends it to uint64.
func (m *Memory) ReadSized(offset int, size int) (uint64, error) {
	switch size {
	case 1:
		v, err := m.ReadU8(offset)
		return uint64(v), err
	case 2:
		v, err := m.ReadU16LE(offset)
		return uint64(v), err
	case 4:
		v, err := m.ReadU32LE(offset)
		return uint64(v), err
	case 8:
		return m.ReadU64LE(offset)
	default:
		return 0, vmerr.IllegalInstruction
	}
}

// WriteSized writes the low size bytes of value at offset.
func (m *Memory) WriteSized(offset int, size int, value uint64) error {
	switch size {
	case 1:
		return m.WriteU8(offset, uint8(value))
	case 2:
		return m.WriteU16LE(offset, uint16(value))
	case 4:
		return m.WriteU32LE(offset, uint32(value))
	case 8:
		return m.WriteU64LE(offset, value)
	default:
		return vmerr.IllegalInstruction
	}
}
