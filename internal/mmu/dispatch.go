package mmu

import "unsafe"

// Access is the top-level entry point the rest of the emulator calls:
// mmu_access(hart, vaddr, buf, size, op) from spec.md §4.3/§6. buf is
// filled on a read, or is the source on a write; len(buf) is the access
// size. It returns false when a trap was raised via h.TrapRaiser, in which
// case the caller must discard the instruction's effects.
func (h *Hart) Access(vaddr uint64, buf []byte, op AccessKind) bool {
	size := len(buf)

	// Page-crossing split, per spec.md §4.3. Each half must succeed
	// independently; per spec.md §9, a fault on the second half has
	// already committed the first half's side effects — an accepted
	// architectural approximation carried from the source.
	pageOff := vaddr % PageSize
	if pageOff+uint64(size) > PageSize {
		firstLen := PageSize - pageOff
		if !h.Access(vaddr, buf[:firstLen], op) {
			return false
		}
		return h.Access(vaddr+firstLen, buf[firstLen:], op)
	}

	priv := h.effectivePrivilege(op)

	// Bare/Machine shortcut, per spec.md §4.3.
	if priv == PrivMachine || h.MMUMode == SatpModeBare {
		return h.accessPhysical(vaddr, vaddr, buf, op)
	}

	// Fast path: TLB.
	if host, hit := h.tlb.lookup(vaddr, op); hit {
		copyAt(host, buf, op == AccessWrite)
		return true
	}

	// Slow path: full walk.
	mode, ok := pagingModeFor(h.MMUMode)
	if !ok {
		// Unknown SATP mode: a WARL field. spec.md §7 point 4 treats this
		// as a bug upstream and faults rather than silently identity-mapping.
		h.Log.Warn("mmu: unknown SATP mode, treating as page fault", "satp_mode", h.MMUMode)
		h.raiseTrap(pageFaultCause(op), vaddr)
		return false
	}

	accessBit := h.effectiveAccessBit(op)
	paddr, _, pageSize, err := h.walk(vaddr, op, accessBit, mode)
	if err != nil {
		if te, ok := err.(*TrapError); ok {
			h.raiseTrap(te.Cause, vaddr)
		} else {
			h.raiseTrap(pageFaultCause(op), vaddr)
		}
		return false
	}

	if host, isRAM := h.PAM.PhysToHost(paddr); isRAM {
		pageBase := paddr &^ (pageSize - 1)
		hostPageBase, _ := h.PAM.PhysToHost(pageBase)
		h.tlb.fill(vaddr, op, hostPageBase, pageSize)
		if op == AccessWrite {
			h.JITInvalidate(vaddr, paddr, size)
		}
		copyAt(host, buf, op == AccessWrite)
		return true
	}

	return h.accessPhysical(vaddr, paddr, buf, op)
}

// accessPhysical performs the RAM-copy-or-MMIO-dispatch step once paddr is
// known (either identity-mapped under Bare/Machine, or the walker's
// output), per spec.md §4.3's "slow path" / "Bare/Machine shortcut".
func (h *Hart) accessPhysical(vaddr, paddr uint64, buf []byte, op AccessKind) bool {
	if host, ok := h.PAM.PhysToHost(paddr); ok {
		if op == AccessWrite {
			h.JITInvalidate(vaddr, paddr, len(buf))
		}
		copyAt(host, buf, op == AccessWrite)
		return true
	}

	if region, ok := h.PAM.FindMMIO(paddr); ok {
		offset := paddr - region.Begin
		isWrite := op == AccessWrite
		if err := mmioAccess(region.Device, buf, len(buf), offset, isWrite); err != nil {
			h.Log.Warn("mmu: mmio access failed", "paddr", paddr, "error", err)
			h.raiseTrap(accessFaultCause(op), vaddr)
			return false
		}
		return true
	}

	h.raiseTrap(accessFaultCause(op), vaddr)
	return false
}

func (h *Hart) raiseTrap(cause, tval uint64) {
	if h.TrapRaiser != nil {
		h.TrapRaiser.RaiseTrap(cause, tval)
	}
}

// copyAt copies between buf and the host address: buf -> host on a write,
// host -> buf otherwise.
func copyAt(host unsafe.Pointer, buf []byte, isWrite bool) {
	hostSlice := unsafe.Slice((*byte)(host), len(buf))
	if isWrite {
		copy(hostSlice, buf)
	} else {
		copy(buf, hostSlice)
	}
}
