package mmu

import (
	"encoding/binary"
	"sync/atomic"
	"unsafe"
)

// Load32LE and Load64LE perform an unaligned-safe, little-endian load of
// a PTE word directly out of the host-mapped RAM. They do not need to be
// atomic themselves (spec.md §5 only requires the A/D *update* to be a
// CAS); a plain load can race harmlessly with a concurrent CAS since any
// torn read is re-validated by the walker on its next lookup.
func Load32LE(host unsafe.Pointer) uint32 {
	return binary.LittleEndian.Uint32(unsafe.Slice((*byte)(host), 4))
}

func Load64LE(host unsafe.Pointer) uint64 {
	return binary.LittleEndian.Uint64(unsafe.Slice((*byte)(host), 8))
}

// Cas32LE and Cas64LE perform a little-endian compare-and-swap of a PTE
// word at its natural alignment, per spec.md §5/§6. A CAS failure is not
// retried by the caller (walker.go) — the architectural requirement is
// only that A/D eventually reflect some observed access, and a losing
// race means a concurrent walker already set the same or stronger bits.
//
// They take an unsafe.Pointer because PTE words live inside the mmap'd RAM
// byte slice, and sync/atomic requires a pointer of the exact word type at
// natural alignment to perform the CAS.
func Cas32LE(host unsafe.Pointer, expected, desired uint32) bool {
	addr := (*uint32)(host)
	var expBuf, desBuf [4]byte
	binary.LittleEndian.PutUint32(expBuf[:], expected)
	binary.LittleEndian.PutUint32(desBuf[:], desired)
	expHost := binary.NativeEndian.Uint32(expBuf[:])
	desHost := binary.NativeEndian.Uint32(desBuf[:])
	return atomic.CompareAndSwapUint32(addr, expHost, desHost)
}

func Cas64LE(host unsafe.Pointer, expected, desired uint64) bool {
	addr := (*uint64)(host)
	var expBuf, desBuf [8]byte
	binary.LittleEndian.PutUint64(expBuf[:], expected)
	binary.LittleEndian.PutUint64(desBuf[:], desired)
	expHost := binary.NativeEndian.Uint64(expBuf[:])
	desHost := binary.NativeEndian.Uint64(desBuf[:])
	return atomic.CompareAndSwapUint64(addr, expHost, desHost)
}
