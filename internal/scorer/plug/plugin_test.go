package plug

import "testing"

func TestOpenMissingFile(t *testing.T) {
	if _, _, err := Open("/no/such/scorer.so"); err == nil {
		t.Fatalf("expected error opening missing plugin file")
	}
}
