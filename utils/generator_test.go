package utils

import (
	"strings"
	"testing"
)

func TestNewPaymentReference(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		ref := NewPaymentReference()
		if !strings.HasPrefix(ref, "BKP-") {
			t.Fatalf("reference %q lacks the BKP- prefix", ref)
		}
		if len(ref) != len("BKP-")+referenceLength {
			t.Fatalf("reference %q has wrong length", ref)
		}
		if seen[ref] {
			t.Fatalf("duplicate reference %q", ref)
		}
		seen[ref] = true
	}
}
