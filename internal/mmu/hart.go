package mmu

import "log/slog"

// Privilege levels, per spec.md §3.
const (
	PrivUser       uint8 = 0
	PrivSupervisor uint8 = 1
	PrivReserved   uint8 = 2
	PrivMachine    uint8 = 3
)

// AccessKind is the kind of memory operation being translated.
type AccessKind int

const (
	AccessRead AccessKind = iota
	AccessWrite
	AccessExec
)

func (a AccessKind) String() string {
	switch a {
	case AccessWrite:
		return "write"
	case AccessExec:
		return "exec"
	default:
		return "read"
	}
}

// Status bits read by the MMU from the hart's status CSR (mstatus/sstatus),
// per spec.md §3.
const (
	StatusMPRV uint64 = 1 << 17
	StatusSUM  uint64 = 1 << 18
	StatusMXR  uint64 = 1 << 19
)

const statusMPPShift = 11
const statusMPPMask = 0x3

// Hart is the per-hart context the MMU core reads and owns the TLB for.
// The hart execution loop, CSR file, and trap dispatcher that surround
// this struct are external collaborators (spec.md §1); Hart only carries
// the fields the core itself needs.
type Hart struct {
	PrivMode      uint8
	MMUMode       uint64 // SATP mode field: SatpModeBare/Sv32/Sv39/Sv48/Sv57
	RootPageTable uint64 // physical address of the root page table (SATP PPN << PageShift)
	Status        uint64 // mstatus bits this core cares about: MPRV, MXR, MPP
	ASID          uint16

	PAM *PAM
	tlb softTLB

	// TrapRaiser is invoked by Access on any translation failure.
	TrapRaiser TrapRaiser

	// JITInvalidate models the external trace-cache invalidation hook.
	// Defaults to a no-op; spec.md §1 treats JIT/trace-cache invalidation
	// as an external collaborator this core only calls into.
	JITInvalidate func(vaddr, paddr uint64, size int)

	Log *slog.Logger
}

// DefaultTLBEntries is a reasonable default software TLB size, per spec.md
// §3's suggested 256-1024 entry range.
const DefaultTLBEntries = 512

// NewHart creates a hart bound to the given PAM, with a TLB of the given
// size (must be a power of two; spec.md §3 suggests 256-1024 entries).
func NewHart(pam *PAM, tlbEntries int, raiser TrapRaiser) *Hart {
	h := &Hart{
		PrivMode:      PrivMachine,
		MMUMode:       SatpModeBare,
		PAM:           pam,
		TrapRaiser:    raiser,
		JITInvalidate: func(uint64, uint64, int) {},
		Log:           slog.Default(),
	}
	h.tlb.init(tlbEntries)
	return h
}

// effectivePrivilege applies MPRV blending, per spec.md §4.3: a non-fetch
// access executed in Machine mode with MPRV set is translated as if
// executed at MPP's privilege.
func (h *Hart) effectivePrivilege(op AccessKind) uint8 {
	if h.PrivMode == PrivMachine && op != AccessExec && h.Status&StatusMPRV != 0 {
		return uint8((h.Status >> statusMPPShift) & statusMPPMask)
	}
	return h.PrivMode
}

// effectiveAccessBit applies MXR blending, per spec.md §4.3: with MXR set,
// a read may be satisfied by an execute-only page.
func (h *Hart) effectiveAccessBit(op AccessKind) uint64 {
	if op == AccessRead && h.Status&StatusMXR != 0 {
		return PteX
	}
	return permBit(op)
}

// FlushTLB invalidates the whole TLB, per spec.md §4.4. Called on
// SFENCE.VMA with no arguments, a SATP write, or a privilege-affecting
// CSR change (the caller's responsibility to invoke at the right time).
func (h *Hart) FlushTLB() {
	h.tlb.flushAll()
	h.Log.Debug("mmu: full TLB flush")
}

// FlushTLBPage invalidates only the TLB slot for vaddr's page, per
// spec.md §4.4 (SFENCE.VMA vaddr).
func (h *Hart) FlushTLBPage(vaddr uint64) {
	h.tlb.flushPage(vaddr)
	h.Log.Debug("mmu: single-page TLB flush", "vaddr", vaddr)
}
