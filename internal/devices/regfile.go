// Package devices provides small memory-mapped I/O devices used by the
// rvmmu demos and tests, adapted from the teacher's 16550 UART model
// (internal/hv/riscv/rv64/uart.go in the reference pack) to the
// min/max-op-size device descriptor shape spec.md §3 requires of MMIO
// devices in this module.
package devices

import (
	"encoding/binary"
	"fmt"
)

// RegisterFile is a bank of little-endian registers backing a simple
// device window, useful for exercising the MMIO adapter's splitting and
// widening logic against a concrete MinOpSize/MaxOpSize window.
type RegisterFile struct {
	data    []byte
	minOp   int
	maxOp   int
	onWrite func(offset uint64, size int)
}

// NewRegisterFile creates a register file of the given byte size, with the
// MMIO access-size window [minOp, maxOp] (both must be powers of two,
// minOp <= maxOp <= 16, per spec.md §3).
func NewRegisterFile(size int, minOp, maxOp int) *RegisterFile {
	return &RegisterFile{data: make([]byte, size), minOp: minOp, maxOp: maxOp}
}

// OnWrite installs a callback invoked after every accepted write, useful
// for demos that want to react to a guest poking a control register.
func (r *RegisterFile) OnWrite(fn func(offset uint64, size int)) {
	r.onWrite = fn
}

func (r *RegisterFile) MinOpSize() int { return r.minOp }
func (r *RegisterFile) MaxOpSize() int { return r.maxOp }
func (r *RegisterFile) Ctx() any       { return r }
func (r *RegisterFile) Size() uint64   { return uint64(len(r.data)) }

func (r *RegisterFile) Read(_ any, dst []byte, size int, offset uint64) error {
	if offset+uint64(size) > uint64(len(r.data)) {
		return fmt.Errorf("devices: register read out of bounds: offset=0x%x size=%d", offset, size)
	}
	copy(dst[:size], r.data[offset:offset+uint64(size)])
	return nil
}

func (r *RegisterFile) Write(_ any, src []byte, size int, offset uint64) error {
	if offset+uint64(size) > uint64(len(r.data)) {
		return fmt.Errorf("devices: register write out of bounds: offset=0x%x size=%d", offset, size)
	}
	copy(r.data[offset:offset+uint64(size)], src[:size])
	if r.onWrite != nil {
		r.onWrite(offset, size)
	}
	return nil
}

// Uint32At and Uint64At are test/demo conveniences for reading back a
// register at a known offset without going through the MMIO path.
func (r *RegisterFile) Uint32At(offset uint64) uint32 {
	return binary.LittleEndian.Uint32(r.data[offset:])
}

func (r *RegisterFile) Uint64At(offset uint64) uint64 {
	return binary.LittleEndian.Uint64(r.data[offset:])
}
