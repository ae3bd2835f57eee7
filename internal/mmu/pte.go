package mmu

// Page-table entry permission/status bits. Identical bit positions in
// every paging mode; only the word width and PPN field width differ.
const (
	PteV uint64 = 1 << 0 // Valid
	PteR uint64 = 1 << 1 // Readable
	PteW uint64 = 1 << 2 // Writable
	PteX uint64 = 1 << 3 // Executable
	PteU uint64 = 1 << 4 // User accessible
	PteG uint64 = 1 << 5 // Global
	PteA uint64 = 1 << 6 // Accessed
	PteD uint64 = 1 << 7 // Dirty
)

const (
	PageShift = 12
	PageSize  = 1 << PageShift
)

// SATP mode field values (bits 63:60 on rv64, bits 31 on rv32).
const (
	SatpModeBare uint64 = 0
	SatpModeSv32 uint64 = 1
	SatpModeSv39 uint64 = 8
	SatpModeSv48 uint64 = 9
	SatpModeSv57 uint64 = 10
)

// PagingMode describes one of Sv32/Sv39/Sv48/Sv57's geometry. The walker
// in walker.go is written once against this descriptor instead of once per
// mode, generalizing the teacher's Sv39/Sv48-only implementation.
type PagingMode struct {
	Name     string
	Satp     uint64
	Levels   int
	VPNBits  int
	PTEBytes int // 4 for Sv32, 8 otherwise
	PhysBits int
	// Sv32 addresses are already only 32 bits wide, so the 64-bit
	// canonical-address check in walker.go step 1 does not apply to it.
	Canonical64 bool
}

var (
	modeSv32 = PagingMode{Name: "Sv32", Satp: SatpModeSv32, Levels: 2, VPNBits: 10, PTEBytes: 4, PhysBits: 34, Canonical64: false}
	modeSv39 = PagingMode{Name: "Sv39", Satp: SatpModeSv39, Levels: 3, VPNBits: 9, PTEBytes: 8, PhysBits: 56, Canonical64: true}
	modeSv48 = PagingMode{Name: "Sv48", Satp: SatpModeSv48, Levels: 4, VPNBits: 9, PTEBytes: 8, PhysBits: 56, Canonical64: true}
	modeSv57 = PagingMode{Name: "Sv57", Satp: SatpModeSv57, Levels: 5, VPNBits: 9, PTEBytes: 8, PhysBits: 56, Canonical64: true}
)

// pagingModeFor resolves the SATP mode field to a PagingMode. The second
// return value is false for Bare and for any WARL-reserved encoding, which
// per spec.md §7 point 4 the caller must treat as a page fault.
func pagingModeFor(satpMode uint64) (PagingMode, bool) {
	switch satpMode {
	case SatpModeSv32:
		return modeSv32, true
	case SatpModeSv39:
		return modeSv39, true
	case SatpModeSv48:
		return modeSv48, true
	case SatpModeSv57:
		return modeSv57, true
	default:
		return PagingMode{}, false
	}
}

// PagingModeFor is the exported form of pagingModeFor, for callers outside
// the package building page tables directly (the rvmmu-bench demo and
// tests of PageTableBuilder's callers).
func PagingModeFor(satpMode uint64) (PagingMode, bool) {
	return pagingModeFor(satpMode)
}

// isLeaf reports whether a PTE is a leaf (maps a page/superpage) as opposed
// to a pointer to the next level table.
func isLeaf(pte uint64) bool {
	return pte&(PteR|PteW|PteX) != 0
}

// permBit returns the PTE permission bit required to satisfy access.
func permBit(op AccessKind) uint64 {
	switch op {
	case AccessWrite:
		return PteW
	case AccessExec:
		return PteX
	default:
		return PteR
	}
}
