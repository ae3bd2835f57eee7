package mmu

import "testing"

// recordingRaiser captures the last trap raised, for assertions.
type recordingRaiser struct {
	raised bool
	cause  uint64
	tval   uint64
}

func (r *recordingRaiser) RaiseTrap(cause, tval uint64) {
	r.raised = true
	r.cause = cause
	r.tval = tval
}

func newTestPAM(t *testing.T, ramBegin, ramSize uint64) *PAM {
	t.Helper()
	pam, err := NewPAM(ramBegin, ramSize)
	if err != nil {
		t.Fatalf("NewPAM: %v", err)
	}
	t.Cleanup(func() { pam.Close() })
	return pam
}

func newTestHart(pam *PAM, raiser *recordingRaiser) *Hart {
	h := NewHart(pam, 256, raiser)
	return h
}
