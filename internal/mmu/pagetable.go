package mmu

import "fmt"

// PageTableBuilder is a small bump-allocating helper for constructing
// valid multi-level page tables directly in a PAM's RAM, used by tests
// exercising the scenarios in spec.md §8 and by the rvmmu-bench demo. It
// is not part of the translation hot path.
type PageTableBuilder struct {
	pam    *PAM
	mode   PagingMode
	next   uint64
	root   uint64
}

// NewPageTableBuilder allocates the root table at scratchBase (must be
// page-aligned and within pam's RAM) and bump-allocates further
// intermediate tables upward from there.
func NewPageTableBuilder(pam *PAM, mode PagingMode, scratchBase uint64) (*PageTableBuilder, error) {
	if scratchBase%PageSize != 0 {
		return nil, fmt.Errorf("mmu: page table scratch base 0x%x is not page-aligned", scratchBase)
	}
	b := &PageTableBuilder{pam: pam, mode: mode, next: scratchBase, root: scratchBase}
	if err := b.zeroPage(scratchBase); err != nil {
		return nil, err
	}
	b.next += PageSize
	return b, nil
}

func (b *PageTableBuilder) Root() uint64 { return b.root }

func (b *PageTableBuilder) zeroPage(addr uint64) error {
	slice, ok := b.pam.PhysToHostSlice(addr, PageSize)
	if !ok {
		return fmt.Errorf("mmu: page table page 0x%x is not in RAM", addr)
	}
	for i := range slice {
		slice[i] = 0
	}
	return nil
}

func (b *PageTableBuilder) allocTable() (uint64, error) {
	addr := b.next
	if err := b.zeroPage(addr); err != nil {
		return 0, err
	}
	b.next += PageSize
	return addr, nil
}

func (b *PageTableBuilder) readPTE(tableAddr uint64, index uint64) (uint64, error) {
	slice, ok := b.pam.PhysToHostSlice(tableAddr+index*uint64(b.mode.PTEBytes), uint64(b.mode.PTEBytes))
	if !ok {
		return 0, fmt.Errorf("mmu: page table index out of RAM")
	}
	if b.mode.PTEBytes == 4 {
		return uint64(Load32LE(unsafePtr(slice))), nil
	}
	return Load64LE(unsafePtr(slice)), nil
}

func (b *PageTableBuilder) writePTE(tableAddr uint64, index uint64, pte uint64) error {
	slice, ok := b.pam.PhysToHostSlice(tableAddr+index*uint64(b.mode.PTEBytes), uint64(b.mode.PTEBytes))
	if !ok {
		return fmt.Errorf("mmu: page table index out of RAM")
	}
	if b.mode.PTEBytes == 4 {
		putLE32(slice, uint32(pte))
	} else {
		putLE64(slice, pte)
	}
	return nil
}

// Map installs a single leaf PTE mapping the 4 KiB page containing vaddr
// to the 4 KiB page containing paddr, with the given permission bits
// (PteR/PteW/PteX/PteU/PteG ORed together; V is added automatically).
// Intermediate (pointer) tables are created on demand.
func (b *PageTableBuilder) Map(vaddr, paddr uint64, perm uint64) error {
	bitOff := (b.mode.Levels-1)*b.mode.VPNBits + PageShift
	vpnMask := uint64(1)<<b.mode.VPNBits - 1
	table := b.root

	for level := b.mode.Levels - 1; level > 0; level-- {
		index := (vaddr >> bitOff) & vpnMask
		pte, err := b.readPTE(table, index)
		if err != nil {
			return err
		}
		if pte&PteV == 0 {
			child, err := b.allocTable()
			if err != nil {
				return err
			}
			pte = ((child >> PageShift) << 10) | PteV
			if err := b.writePTE(table, index, pte); err != nil {
				return err
			}
		}
		table = ((pte >> 10) & (uint64(1)<<b.mode.PhysBits - 1)) << PageShift
		bitOff -= b.mode.VPNBits
	}

	index := (vaddr >> bitOff) & vpnMask
	leaf := ((paddr >> PageShift) << 10) | perm | PteV
	return b.writePTE(table, index, leaf)
}

// ReadLeafPTE reads back the PTE currently mapping vaddr's page at the leaf
// level, for test assertions against A/D bits after a translation.
func (b *PageTableBuilder) ReadLeafPTE(vaddr uint64) (uint64, error) {
	bitOff := (b.mode.Levels-1)*b.mode.VPNBits + PageShift
	vpnMask := uint64(1)<<b.mode.VPNBits - 1
	table := b.root

	for level := b.mode.Levels - 1; level > 0; level-- {
		index := (vaddr >> bitOff) & vpnMask
		pte, err := b.readPTE(table, index)
		if err != nil {
			return 0, err
		}
		if pte&PteV == 0 {
			return 0, fmt.Errorf("mmu: no mapping for 0x%x", vaddr)
		}
		table = ((pte >> 10) & (uint64(1)<<b.mode.PhysBits - 1)) << PageShift
		bitOff -= b.mode.VPNBits
	}
	index := (vaddr >> bitOff) & vpnMask
	return b.readPTE(table, index)
}
