package mmu

import "testing"

func TestCas32LE(t *testing.T) {
	buf := make([]byte, 4)
	putLE32(buf, 0x1000)
	host := unsafePtr(buf)

	if Cas32LE(host, 0x2000, 0x3000) {
		t.Fatal("CAS with wrong expected value must fail")
	}
	if !Cas32LE(host, 0x1000, 0x3000) {
		t.Fatal("CAS with matching expected value must succeed")
	}
	if got := Load32LE(host); got != 0x3000 {
		t.Fatalf("got 0x%x want 0x3000", got)
	}
}

func TestCas64LE(t *testing.T) {
	buf := make([]byte, 8)
	putLE64(buf, 0x123456789)
	host := unsafePtr(buf)

	if Cas64LE(host, 0, 0xFFFF) {
		t.Fatal("CAS with wrong expected value must fail")
	}
	if !Cas64LE(host, 0x123456789, 0xABCDEF) {
		t.Fatal("CAS with matching expected value must succeed")
	}
	if got := Load64LE(host); got != 0xABCDEF {
		t.Fatalf("got 0x%x want 0xABCDEF", got)
	}
}

func TestLoadLERoundTrip(t *testing.T) {
	buf := []byte{0xEF, 0xBE, 0xAD, 0xDE, 0, 0, 0, 0}
	if got := Load32LE(unsafePtr(buf)); got != 0xDEADBEEF {
		t.Fatalf("got 0x%x want 0xDEADBEEF", got)
	}
	buf2 := []byte{1, 0, 0, 0, 0, 0, 0, 0}
	if got := Load64LE(unsafePtr(buf2)); got != 1 {
		t.Fatalf("got %d want 1", got)
	}
}
