package reconcile

import "testing"

func TestFingerprint(t *testing.T) {
	a := Fingerprint("frontdoor/state", []byte(`{"state":"locked"}`))
	b := Fingerprint("frontdoor/state", []byte(`{"state":"locked"}`))
	if a != b {
		t.Error("identical messages must fingerprint identically")
	}
	if len(a) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(a))
	}

	if a == Fingerprint("backdoor/state", []byte(`{"state":"locked"}`)) {
		t.Error("different topics must fingerprint differently")
	}
	if a == Fingerprint("frontdoor/state", []byte(`{"state":"unlocked"}`)) {
		t.Error("different payloads must fingerprint differently")
	}

	// The separator keeps topic/payload boundaries unambiguous
	if Fingerprint("a/b", []byte("c")) == Fingerprint("a", []byte("b|c")) {
		t.Error("fingerprint must separate topic from payload")
	}
}
