// Package holder canonicalizes participant identity keys.
//
// Holders are opaque to the ledger, but most deployments key them by
// Ethereum-style account addresses. Those are accepted in any case: lower or
// upper case input is rewritten into its EIP-55 checksummed form, and mixed
// case input must already carry a valid checksum.
package holder

import (
	"encoding/hex"
	"errors"
	"strings"
	"unicode"

	"golang.org/x/crypto/sha3"
)

const maxKeyLength = 128

var (
	// ErrEmpty is returned for a blank holder key.
	ErrEmpty = errors.New("holder is required")
	// ErrMalformed is returned for keys with whitespace, control characters or excessive length.
	ErrMalformed = errors.New("holder is malformed")
	// ErrChecksum is returned for a mixed-case address whose EIP-55 checksum does not match.
	ErrChecksum = errors.New("holder address checksum mismatch")
)

// Normalize returns the canonical form of key.
func Normalize(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrEmpty
	}
	if len(key) > maxKeyLength {
		return "", ErrMalformed
	}
	for _, r := range key {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return "", ErrMalformed
		}
	}
	if !IsAddress(key) {
		// Callers may pass views into reused request buffers; the result is
		// kept as a map key, so it must own its bytes.
		return strings.Clone(key), nil
	}

	canonical := Checksum(key)
	body := key[2:]
	if strings.ToLower(body) == body || strings.ToUpper(body) == body {
		return canonical, nil
	}
	if key[2:] != canonical[2:] {
		return "", ErrChecksum
	}
	return canonical, nil
}

// IsAddress reports whether key looks like a 20 byte hex account address.
func IsAddress(key string) bool {
	if len(key) != 42 || !(strings.HasPrefix(key, "0x") || strings.HasPrefix(key, "0X")) {
		return false
	}
	_, err := hex.DecodeString(key[2:])
	return err == nil
}

// Checksum renders an address in EIP-55 mixed case. It assumes IsAddress(addr).
func Checksum(addr string) string {
	lower := strings.ToLower(addr[2:])
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	digest := h.Sum(nil)

	out := []byte(lower)
	for i, c := range out {
		if c < 'a' || c > 'f' {
			continue
		}
		nibble := digest[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if nibble&0x0f >= 8 {
			out[i] = c - 'a' + 'A'
		}
	}
	return "0x" + string(out)
}

// Equal compares two holder keys after normalization. Keys that fail to
// normalize are compared verbatim.
func Equal(a, b string) bool {
	na, errA := Normalize(a)
	nb, errB := Normalize(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return na == nb
}
