package sizestring

import "testing"

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"2Gi":    "2g",
		"2G":     "2g",
		"2g":     "2g",
		"512Mi":  "512m",
		"512M":   "512m",
		"1.5Gi":  "1.5g",
		"1024mi": "1024m",
	}
	for in, want := range cases {
		got, err := Normalize(in)
		if err != nil {
			t.Fatalf("Normalize(%q) error: %v", in, err)
		}
		if got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeInvalid(t *testing.T) {
	for _, in := range []string{"", "abc", "2Ti", "-5g"} {
		if _, err := Normalize(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestBytes(t *testing.T) {
	b, err := Bytes("2g")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b != 2*1024*1024*1024 {
		t.Fatalf("unexpected byte count: %d", b)
	}
}

func TestValid(t *testing.T) {
	if !Valid("2Gi") {
		t.Fatalf("expected 2Gi to be valid")
	}
	if Valid("2Ti") {
		t.Fatalf("expected 2Ti to be invalid")
	}
}
