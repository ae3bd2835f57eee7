package mmu

import "unsafe"

// walk performs a full page-table walk from the hart's root page table for
// vaddr, requiring the permission bit implied by accessBit (which may
// differ from op's natural bit when MXR is blended in — see
// effectiveAccessBit). It implements spec.md §4.2 verbatim, generalized
// across all four paging modes via PagingMode.
//
// On success it returns the translated physical address, the final PTE
// (with A/D applied) and the page size the leaf covers. On any failure it
// returns a *TrapError with the appropriate PAGEFAULT cause.
func (h *Hart) walk(vaddr uint64, op AccessKind, accessBit uint64, mode PagingMode) (paddr uint64, pte uint64, pageSize uint64, err error) {
	bitOff := (mode.Levels-1)*mode.VPNBits + PageShift
	topBits := mode.VPNBits

	if mode.Canonical64 {
		// Step 1: canonical-address check. Bits above bitOff+topBits-1 must
		// be a sign extension of bit bitOff+topBits-1.
		signBit := uint64(1) << (bitOff + topBits - 1)
		upperMask := ^uint64(0) << (bitOff + topBits - 1)
		upper := vaddr & upperMask
		if vaddr&signBit != 0 {
			if upper != upperMask {
				return 0, 0, 0, trap(pageFaultCause(op), vaddr)
			}
		} else if upper != 0 {
			return 0, 0, 0, trap(pageFaultCause(op), vaddr)
		}
	}

	pagetable := h.RootPageTable
	vpnMask := uint64(1)<<mode.VPNBits - 1

	for level := mode.Levels - 1; level >= 0; level-- {
		index := (vaddr >> bitOff) & vpnMask
		pteAddr := pagetable + index*uint64(mode.PTEBytes)

		host, ok := h.PAM.PhysToHost(pteAddr)
		if !ok {
			// Walks may not target MMIO (spec.md §4.2 step 2b); the source
			// treats this as a page fault rather than an access fault —
			// flagged as an open architectural question in spec.md §9.
			return 0, 0, 0, trap(pageFaultCause(op), vaddr)
		}

		raw := loadPTE(host, mode)

		if raw&PteV == 0 {
			return 0, 0, 0, trap(pageFaultCause(op), vaddr)
		}
		if raw&PteR == 0 && raw&PteW != 0 {
			return 0, 0, 0, trap(pageFaultCause(op), vaddr)
		}

		if isLeaf(raw) {
			if raw&accessBit == 0 {
				return 0, 0, 0, trap(pageFaultCause(op), vaddr)
			}

			vmask := uint64(1)<<bitOff - 1
			pmask := (uint64(1)<<(mode.PhysBits-bitOff) - 1) << bitOff

			// Misaligned superpage check (spec.md §4.2 step 2e / P6): any PPN
			// bit between the page offset and this level's VPN field being
			// set is a fault. The low 12 bits of vmask are the page offset,
			// which PPN never encodes, so they're excluded from the test.
			if (raw<<2)&(vmask&^uint64(PageSize-1)) != 0 {
				return 0, 0, 0, trap(pageFaultCause(op), vaddr)
			}

			final := h.updateAD(host, raw, op, mode)

			paddr = ((final << 2) & pmask) | (vaddr & vmask)
			return paddr, final, uint64(1) << bitOff, nil
		}

		// Pointer PTE: W=1 alone (R=0,X=0) was already rejected above as the
		// reserved R=0∧W=1 encoding, so no further check is needed here.
		ppn := (raw >> 10) & (uint64(1)<<mode.PhysBits - 1)
		pagetable = ppn << PageShift
		bitOff -= mode.VPNBits
	}

	return 0, 0, 0, trap(pageFaultCause(op), vaddr)
}

func loadPTE(host unsafe.Pointer, mode PagingMode) uint64 {
	if mode.PTEBytes == 4 {
		return uint64(Load32LE(host))
	}
	return Load64LE(host)
}

// updateAD sets A (always) and D (on write) via CAS, ignoring CAS failure
// per spec.md §4.2 step 2e / §5 / §9: a concurrent walker setting the same
// bits is an acceptable race outcome. It returns the PTE value this walker
// should use for permission/TLB purposes (with A/D applied, regardless of
// whether the CAS that installed them was this walker's or a racing one's).
func (h *Hart) updateAD(host unsafe.Pointer, pte uint64, op AccessKind, mode PagingMode) uint64 {
	newPte := pte | PteA
	if op == AccessWrite {
		newPte |= PteD
	}
	if newPte == pte {
		return pte
	}
	if mode.PTEBytes == 4 {
		Cas32LE(host, uint32(pte), uint32(newPte))
	} else {
		Cas64LE(host, pte, newPte)
	}
	return newPte
}
