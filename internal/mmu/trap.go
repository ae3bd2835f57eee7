// Package mmu implements the RISC-V guest virtual-to-physical memory
// translation core: the page-table walker, the per-hart software TLB, and
// the dispatcher that routes translated physical accesses into RAM or
// memory-mapped I/O devices.
package mmu

import "fmt"

// Trap causes, as defined by the RISC-V privileged architecture. The core
// raises only the access-fault and page-fault causes below;
// CauseInstrAddrMisaligned is defined but never raised by this package.
// The hart's other exception causes (illegal instruction, ecall,
// breakpoint, ...) belong to the instruction executor, not here.
const (
	CauseInstrAddrMisaligned uint64 = 0
	CauseInstrAccessFault    uint64 = 1
	CauseLoadAccessFault     uint64 = 5
	CauseStoreAccessFault    uint64 = 7
	CauseInstrPageFault      uint64 = 12
	CauseLoadPageFault       uint64 = 13
	CauseStorePageFault      uint64 = 15
)

// TrapError is returned internally by the walker and dispatcher whenever a
// translation cannot complete. It is never returned to the caller of
// Access directly — Access converts it into a call to the hart's
// TrapRaiser and returns false, matching the "discard the instruction"
// contract of mmu_access in spec.md §6.
type TrapError struct {
	Cause uint64
	Tval  uint64
}

func (e *TrapError) Error() string {
	return fmt.Sprintf("mmu: trap cause=%d tval=0x%x", e.Cause, e.Tval)
}

func trap(cause, tval uint64) *TrapError {
	return &TrapError{Cause: cause, Tval: tval}
}

// pageFaultCause returns the PAGEFAULT cause code for the given access kind.
func pageFaultCause(op AccessKind) uint64 {
	switch op {
	case AccessWrite:
		return CauseStorePageFault
	case AccessExec:
		return CauseInstrPageFault
	default:
		return CauseLoadPageFault
	}
}

// accessFaultCause returns the ACCESS_FAULT cause code for the given access kind.
func accessFaultCause(op AccessKind) uint64 {
	switch op {
	case AccessWrite:
		return CauseStoreAccessFault
	case AccessExec:
		return CauseInstrAccessFault
	default:
		return CauseLoadAccessFault
	}
}

// TrapRaiser is the external collaborator that signals a synchronous fault
// to the hart's trap dispatcher. The core never implements this itself —
// spec.md §1 treats the hart execution loop, CSR file, and trap dispatcher
// as external collaborators.
type TrapRaiser interface {
	RaiseTrap(cause, tval uint64)
}

// TrapRaiserFunc adapts a function to TrapRaiser.
type TrapRaiserFunc func(cause, tval uint64)

// RaiseTrap implements TrapRaiser.
func (f TrapRaiserFunc) RaiseTrap(cause, tval uint64) { f(cause, tval) }
