package mmu

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Device is a memory-mapped I/O device. Size/offset callbacks are always
// device-relative; the MMIO adapter (mmio.go) is responsible for turning
// an arbitrary access into a sequence of calls that respect
// MinOpSize/MaxOpSize and alignment.
type Device interface {
	Read(ctx any, dst []byte, size int, offset uint64) error
	Write(ctx any, src []byte, size int, offset uint64) error
	MinOpSize() int
	MaxOpSize() int
	Ctx() any
}

// MMIORegion describes one device's placement in the physical address space.
type MMIORegion struct {
	Begin, End uint64 // [Begin, End)
	Device     Device
}

func (r MMIORegion) contains(p uint64) bool { return p >= r.Begin && p < r.End }

// RAM is the machine's single contiguous RAM region, backed by an
// anonymous mmap rather than a bare make([]byte, ...) so that the "host
// pointer minus virtual base" TLB bias (§4.4/§9 of the spec) refers to a
// stable, page-aligned host address for the region's whole lifetime —
// matching the way the teacher backs guest RAM for its KVM/HVF
// hypervisors (internal/hv/kvm/kvm.go, internal/asm/amd64/exec.go).
type RAM struct {
	Begin uint64
	Size  uint64
	Data  []byte
}

// newRAM mmaps size bytes of zero-initialized, page-aligned memory. begin
// and size must both already be page-aligned; the caller (NewPAM) enforces
// this.
func newRAM(begin, size uint64) (*RAM, error) {
	data, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("mmu: mmap %d bytes of RAM: %w", size, err)
	}
	return &RAM{Begin: begin, Size: size, Data: data}, nil
}

func (r *RAM) free() error {
	if r.Data == nil {
		return nil
	}
	err := unix.Munmap(r.Data)
	r.Data = nil
	return err
}

// contains reports whether p lies within [Begin, Begin+Size).
func (r *RAM) contains(p uint64) bool {
	return p >= r.Begin && p < r.Begin+r.Size
}

// hostPtr returns the host address of physical address p within RAM.
// Callers must have already checked contains(p).
func (r *RAM) hostPtr(p uint64) unsafe.Pointer {
	return unsafe.Pointer(&r.Data[p-r.Begin])
}

// PAM (physical address map) answers "given a physical address, is it RAM,
// an MMIO device, or void?" per spec.md §4.1.
type PAM struct {
	ram    *RAM
	mmio   []MMIORegion
}

// NewPAM allocates RAM of the given size at the given physical base. Both
// must be page-aligned; ram_init-equivalent failures are surfaced as a
// plain error, per spec.md §7 point 1 — they are configuration errors
// fatal to machine start, never a trap.
func NewPAM(ramBegin, ramSize uint64) (*PAM, error) {
	if ramBegin%PageSize != 0 {
		return nil, fmt.Errorf("mmu: RAM base 0x%x is not page-aligned", ramBegin)
	}
	if ramSize == 0 || ramSize%PageSize != 0 {
		return nil, fmt.Errorf("mmu: RAM size 0x%x is not a nonzero multiple of the page size", ramSize)
	}
	ram, err := newRAM(ramBegin, ramSize)
	if err != nil {
		return nil, err
	}
	return &PAM{ram: ram}, nil
}

// Close releases the RAM mapping. Safe to call once the machine is torn
// down; never called while a hart may still be translating.
func (p *PAM) Close() error {
	return p.ram.free()
}

// RAMBase and RAMSize report the RAM region's placement.
func (p *PAM) RAMBase() uint64 { return p.ram.Begin }
func (p *PAM) RAMSize() uint64 { return p.ram.Size }

// AddDevice registers an MMIO device covering [base, base+dev.Size()).
// Devices must not overlap RAM; overlap among MMIO regions is
// caller-forbidden per spec.md §4.1 and is not validated here (the device
// list is only reconfigured while all harts are quiesced — §5).
func (p *PAM) AddDevice(base uint64, size uint64, dev Device) {
	p.mmio = append(p.mmio, MMIORegion{Begin: base, End: base + size, Device: dev})
}

// PhysToHost returns the host pointer for a RAM physical address, and true
// if p is within the RAM region.
func (p *PAM) PhysToHost(paddr uint64) (unsafe.Pointer, bool) {
	if p.ram.contains(paddr) {
		return p.ram.hostPtr(paddr), true
	}
	return nil, false
}

// PhysToHostSlice returns a byte slice view of [paddr, paddr+size) within
// RAM, or nil if the range is not entirely within RAM.
func (p *PAM) PhysToHostSlice(paddr uint64, size uint64) ([]byte, bool) {
	if !p.ram.contains(paddr) || !p.ram.contains(paddr+size-1) {
		return nil, false
	}
	off := paddr - p.ram.Begin
	return p.ram.Data[off : off+size], true
}

// FindMMIO returns the device mapping covering p, if any. A linear scan,
// per spec.md §4.1 — the device list is expected to be short and is
// read-only during hart execution.
func (p *PAM) FindMMIO(paddr uint64) (MMIORegion, bool) {
	for _, r := range p.mmio {
		if r.contains(paddr) {
			return r, true
		}
	}
	return MMIORegion{}, false
}

// LoadBytes copies data into RAM at the given physical address, for
// initial image loading. Not part of the hot translation path.
func (p *PAM) LoadBytes(paddr uint64, data []byte) error {
	if !p.ram.contains(paddr) || !p.ram.contains(paddr+uint64(len(data))-1) {
		return fmt.Errorf("mmu: LoadBytes at 0x%x, size %d, out of RAM bounds", paddr, len(data))
	}
	off := paddr - p.ram.Begin
	copy(p.ram.Data[off:], data)
	return nil
}
