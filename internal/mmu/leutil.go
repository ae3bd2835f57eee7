package mmu

import (
	"encoding/binary"
	"unsafe"
)

func unsafePtr(b []byte) unsafe.Pointer {
	return unsafe.Pointer(&b[0])
}

func putLE32(b []byte, v uint32) {
	binary.LittleEndian.PutUint32(b, v)
}

func putLE64(b []byte, v uint64) {
	binary.LittleEndian.PutUint64(b, v)
}
