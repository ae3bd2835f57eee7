package mmu

import (
	"encoding/binary"
	"testing"
)

// Scenario 1 (spec.md §8): Bare passthrough.
func TestBareIdentity(t *testing.T) {
	pam := newTestPAM(t, 0x80000000, 0x100000)
	if err := pam.LoadBytes(0x80001234, []byte{0xEF, 0xBE, 0xAD, 0xDE}); err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}

	raiser := &recordingRaiser{}
	h := newTestHart(pam, raiser)
	h.MMUMode = SatpModeBare

	buf := make([]byte, 4)
	if !h.Access(0x80001234, buf, AccessRead) {
		t.Fatalf("access failed, trap cause=%d", raiser.cause)
	}
	if got := binary.LittleEndian.Uint32(buf); got != 0xDEADBEEF {
		t.Fatalf("got 0x%x, want 0xDEADBEEF", got)
	}
}

// Scenario 2 (spec.md §8): Sv32 two-level walk, with A-bit verification.
func TestSv32TwoLevelWalk(t *testing.T) {
	pam := newTestPAM(t, 0x80000000, 0x40000)

	rootPT := uint64(0x80010000)
	childPT := uint64(0x80011000)
	leafTarget := uint64(0x80020000)

	rootPTE := (childPT >> PageShift << 10) | PteV
	if err := pam.LoadBytes(rootPT, le32(rootPTE)); err != nil {
		t.Fatal(err)
	}
	childPTE := (leafTarget >> PageShift << 10) | PteV | PteR | PteW | PteX
	if err := pam.LoadBytes(childPT+1*4, le32(childPTE)); err != nil {
		t.Fatal(err)
	}

	raiser := &recordingRaiser{}
	h := newTestHart(pam, raiser)
	h.PrivMode = PrivSupervisor
	h.MMUMode = SatpModeSv32
	h.RootPageTable = rootPT

	buf := make([]byte, 4)
	if !h.Access(0x00001000, buf, AccessRead) {
		t.Fatalf("access failed, trap cause=%d tval=0x%x", raiser.cause, raiser.tval)
	}

	host, ok := pam.PhysToHost(childPT + 1*4)
	if !ok {
		t.Fatal("child PTE not in RAM")
	}
	updated := uint64(Load32LE(host))
	if updated&PteA == 0 {
		t.Fatalf("expected A bit set after translation, PTE=0x%x", updated)
	}
}

// Scenario 3 (spec.md §8) / P6: misaligned superpage rejection.
func TestSv32MisalignedSuperpageFaults(t *testing.T) {
	pam := newTestPAM(t, 0x80000000, 0x40000)
	rootPT := uint64(0x80010000)

	// PPN 0x80001 has its low bit set: a 4MiB (level-1) leaf must have
	// zero PPN bits below that level.
	leafPTE := (uint64(0x80001) << 10) | PteV | PteR | PteW | PteX
	if err := pam.LoadBytes(rootPT, le32(leafPTE)); err != nil {
		t.Fatal(err)
	}

	raiser := &recordingRaiser{}
	h := newTestHart(pam, raiser)
	h.PrivMode = PrivSupervisor
	h.MMUMode = SatpModeSv32
	h.RootPageTable = rootPT

	buf := make([]byte, 4)
	if h.Access(0, buf, AccessRead) {
		t.Fatal("expected page fault")
	}
	if !raiser.raised || raiser.cause != CauseLoadPageFault || raiser.tval != 0 {
		t.Fatalf("got cause=%d tval=0x%x, want cause=%d tval=0", raiser.cause, raiser.tval, CauseLoadPageFault)
	}
}

// Scenario 4 (spec.md §8): page-crossing split.
func TestPageCrossingSplit(t *testing.T) {
	pam := newTestPAM(t, 0x80000000, 0x40000)
	rootPT := uint64(0x80010000)

	b, err := NewPageTableBuilder(pam, modeSv39, rootPT)
	if err != nil {
		t.Fatal(err)
	}
	// Map the two pages straddled by vaddr 0xFFE..0x1002 onto two
	// contiguous physical pages.
	if err := b.Map(0x0000, 0x80030000, PteR|PteW|PteX); err != nil {
		t.Fatal(err)
	}
	if err := b.Map(0x1000, 0x80031000, PteR|PteW|PteX); err != nil {
		t.Fatal(err)
	}

	if err := pam.LoadBytes(0x80030FFE, []byte{0x11, 0x22}); err != nil {
		t.Fatal(err)
	}
	if err := pam.LoadBytes(0x80031000, []byte{0x33, 0x44}); err != nil {
		t.Fatal(err)
	}

	raiser := &recordingRaiser{}
	h := newTestHart(pam, raiser)
	h.PrivMode = PrivSupervisor
	h.MMUMode = SatpModeSv39
	h.RootPageTable = b.Root()

	buf := make([]byte, 4)
	if !h.Access(0x0FFE, buf, AccessRead) {
		t.Fatalf("access failed, cause=%d", raiser.cause)
	}
	want := []byte{0x11, 0x22, 0x33, 0x44}
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("byte %d: got 0x%x want 0x%x", i, buf[i], want[i])
		}
	}
}

// P2: Machine-mode bypass is identity regardless of mmu_mode.
func TestMachineModeBypass(t *testing.T) {
	pam := newTestPAM(t, 0x80000000, 0x10000)
	if err := pam.LoadBytes(0x80000100, []byte{0x42}); err != nil {
		t.Fatal(err)
	}
	raiser := &recordingRaiser{}
	h := newTestHart(pam, raiser)
	h.PrivMode = PrivMachine
	h.MMUMode = SatpModeSv39
	h.RootPageTable = 0 // garbage root; must never be consulted

	buf := make([]byte, 1)
	if !h.Access(0x80000100, buf, AccessRead) {
		t.Fatalf("access failed, cause=%d", raiser.cause)
	}
	if buf[0] != 0x42 {
		t.Fatalf("got 0x%x want 0x42", buf[0])
	}
}

// P8: MXR lets a read be satisfied by an execute-only page.
func TestMXRAllowsReadOfExecuteOnlyPage(t *testing.T) {
	pam := newTestPAM(t, 0x80000000, 0x40000)
	b, err := NewPageTableBuilder(pam, modeSv39, 0x80010000)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Map(0x2000, 0x80020000, PteX); err != nil { // X-only
		t.Fatal(err)
	}
	if err := pam.LoadBytes(0x80020000, []byte{0x7}); err != nil {
		t.Fatal(err)
	}

	mkHart := func(mxr bool) (*Hart, *recordingRaiser) {
		raiser := &recordingRaiser{}
		h := newTestHart(pam, raiser)
		h.PrivMode = PrivSupervisor
		h.MMUMode = SatpModeSv39
		h.RootPageTable = b.Root()
		if mxr {
			h.Status |= StatusMXR
		}
		return h, raiser
	}

	h, raiser := mkHart(true)
	buf := make([]byte, 1)
	if !h.Access(0x2000, buf, AccessRead) {
		t.Fatalf("MXR=1 read should succeed, cause=%d", raiser.cause)
	}

	h2, raiser2 := mkHart(false)
	if h2.Access(0x2000, buf, AccessRead) {
		t.Fatal("MXR=0 read of X-only page should fault")
	}
	if raiser2.cause != CauseLoadPageFault {
		t.Fatalf("cause=%d want %d", raiser2.cause, CauseLoadPageFault)
	}
}

// P9: MPRV blends MPP into a non-fetch access; a fetch still uses Machine.
func TestMPRVBlendsPrivilegeExceptFetch(t *testing.T) {
	pam := newTestPAM(t, 0x80000000, 0x40000)
	b, err := NewPageTableBuilder(pam, modeSv39, 0x80010000)
	if err != nil {
		t.Fatal(err)
	}
	// Supervisor-only mapping (no U bit); readable and executable.
	if err := b.Map(0x3000, 0x80030000, PteR|PteW|PteX); err != nil {
		t.Fatal(err)
	}
	if err := pam.LoadBytes(0x80030000, []byte{0x9}); err != nil {
		t.Fatal(err)
	}

	raiser := &recordingRaiser{}
	h := newTestHart(pam, raiser)
	h.PrivMode = PrivMachine
	h.MMUMode = SatpModeSv39
	h.RootPageTable = b.Root()
	h.Status = StatusMPRV | (uint64(PrivSupervisor) << statusMPPShift)

	buf := make([]byte, 1)
	if !h.Access(0x3000, buf, AccessRead) {
		t.Fatalf("MPRV-blended read should translate via the walker, cause=%d", raiser.cause)
	}

	// A fetch ignores MPRV and stays in Machine mode, which bypasses
	// translation entirely and treats vaddr as a bare physical address.
	// 0x3000 is not backed by RAM at that physical address (RAM starts at
	// 0x80000000), so the fetch must fault — proving it did not follow the
	// Sv39 mapping that covers the same vaddr.
	buf2 := make([]byte, 1)
	if h.Access(0x3000, buf2, AccessExec) {
		t.Fatal("fetch under MPRV should bypass translation and fault on a bare physical access")
	}
	if raiser.cause != CauseInstrAccessFault {
		t.Fatalf("cause=%d want %d", raiser.cause, CauseInstrAccessFault)
	}
}

func le32(v uint64) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return b
}
