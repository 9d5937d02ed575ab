package holder

import (
	"errors"
	"testing"
	"unsafe"
)

// Vectors from EIP-55.
const (
	checksummed = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	other       = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
)

func TestNormalizeAddress(t *testing.T) {
	got, err := Normalize("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	if err != nil {
		t.Fatalf("normalize lower: %v", err)
	}
	if got != checksummed {
		t.Fatalf("expected %s, got %s", checksummed, got)
	}

	got, err = Normalize("0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED")
	if err != nil {
		t.Fatalf("normalize upper: %v", err)
	}
	if got != checksummed {
		t.Fatalf("expected %s, got %s", checksummed, got)
	}

	if got, err := Normalize(other); err != nil || got != other {
		t.Fatalf("expected checksummed input to round trip, got %s %v", got, err)
	}
}

func TestNormalizeRejectsBadChecksum(t *testing.T) {
	bad := "0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	if _, err := Normalize(bad); !errors.Is(err, ErrChecksum) {
		t.Fatalf("expected checksum error, got %v", err)
	}
}

func TestNormalizeOpaqueKeys(t *testing.T) {
	if got, err := Normalize("  H1 "); err != nil || got != "H1" {
		t.Fatalf("expected opaque key to be trimmed, got %q %v", got, err)
	}
	if _, err := Normalize(""); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
	if _, err := Normalize("two words"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestNormalizeCopiesOpaqueKeys(t *testing.T) {
	buf := []byte("H1")
	got, err := Normalize(unsafe.String(&buf[0], len(buf)))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	copy(buf, "XX")
	if got != "H1" {
		t.Fatalf("expected key to survive buffer reuse, got %q", got)
	}
}

func TestEqual(t *testing.T) {
	if !Equal("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", checksummed) {
		t.Fatalf("expected addresses in different case to be equal")
	}
	if Equal("H1", "h1") {
		t.Fatalf("opaque keys are case sensitive")
	}
}
