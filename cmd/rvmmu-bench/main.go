// Command rvmmu-bench drives a synthetic access stream through the
// translation core and reports throughput, grounded on the pack's
// benchmark CLI shape (flag.FlagSet + schollz/progressbar/v3) but with no
// VM, snapshot, or OCI bundle machinery behind it.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/tinyrange/rvmmu/internal/mmu"
)

var modes = []struct {
	name string
	satp uint64
}{
	{"sv32", mmu.SatpModeSv32},
	{"sv39", mmu.SatpModeSv39},
	{"sv48", mmu.SatpModeSv48},
	{"sv57", mmu.SatpModeSv57},
}

func run() error {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	n := fs.Int("n", 1_000_000, "the number of translated accesses to perform per mode")
	tlbEntries := fs.Int("tlb-entries", mmu.DefaultTLBEntries, "software TLB size")
	mode := fs.String("mode", "", "restrict the run to a single mode (sv32, sv39, sv48, sv57); default runs all four")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return fmt.Errorf("parse args: %w", err)
	}

	for _, m := range modes {
		if *mode != "" && m.name != *mode {
			continue
		}
		if err := runMode(m.name, m.satp, *n, *tlbEntries); err != nil {
			return fmt.Errorf("%s: %w", m.name, err)
		}
	}
	return nil
}

func runMode(name string, satp uint64, n, tlbEntries int) error {
	// 32 pages of RAM: enough headroom for Sv57's 5-level page table (one
	// page per level, bump-allocated from the base) plus a leaf data page
	// well clear of that scratch area.
	pam, err := mmu.NewPAM(0x80000000, 32*mmu.PageSize)
	if err != nil {
		return fmt.Errorf("new pam: %w", err)
	}
	defer pam.Close()

	pagingMode, ok := mmu.PagingModeFor(satp)
	if !ok {
		return fmt.Errorf("unsupported satp mode 0x%x", satp)
	}
	b, err := mmu.NewPageTableBuilder(pam, pagingMode, 0x80000000)
	if err != nil {
		return fmt.Errorf("new page table builder: %w", err)
	}
	const (
		vaddr     = 0x1000
		leafPaddr = 0x80008000 // clear of the bump-allocated page table pages
	)
	if err := b.Map(vaddr, leafPaddr, mmu.PteR|mmu.PteW); err != nil {
		return fmt.Errorf("map: %w", err)
	}

	raiser := mmu.TrapRaiserFunc(func(cause, tval uint64) {
		slog.Error("unexpected trap during benchmark", "mode", name, "cause", cause, "tval", tval)
		os.Exit(1)
	})
	h := mmu.NewHart(pam, tlbEntries, raiser)
	h.PrivMode = mmu.PrivSupervisor
	h.MMUMode = satp
	h.RootPageTable = b.Root()

	buf := make([]byte, 8)
	pb := progressbar.Default(int64(n), name)
	defer pb.Close()

	start := time.Now()
	for i := 0; i < n; i++ {
		if !h.Access(vaddr, buf, mmu.AccessRead) {
			return fmt.Errorf("access failed unexpectedly")
		}
		pb.Add(1)
	}
	elapsed := time.Since(start)

	fmt.Printf("%s: %d accesses in %s (%.1f ns/access)\n", name, n, elapsed, float64(elapsed.Nanoseconds())/float64(n))
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "rvmmu-bench: %v\n", err)
		os.Exit(1)
	}
}
