package money

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// MaxDecimals bounds the fraction digits a deployment may configure. 10^18 is
// the largest power of ten an int64 can hold.
const MaxDecimals = 18

var (
	// ErrMalformed is returned for input that is not an unsigned decimal number.
	ErrMalformed = errors.New("malformed amount")
	// ErrPrecision is returned when the input carries more fraction digits than configured.
	ErrPrecision = errors.New("too many fraction digits")
	// ErrOverflow is returned when the amount does not fit the integer representation.
	ErrOverflow = errors.New("amount overflows")
)

// Parse converts a decimal string such as "12.5" into smallest units with the
// given number of fraction digits ("12.5" with 2 decimals is 1250).
func Parse(s string, decimals int) (int64, error) {
	if decimals < 0 || decimals > MaxDecimals {
		return 0, fmt.Errorf("decimals %d out of range", decimals)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrMalformed
	}

	whole, frac, hasDot := strings.Cut(s, ".")
	if whole == "" && (!hasDot || frac == "") {
		return 0, ErrMalformed
	}
	if hasDot && frac == "" {
		return 0, ErrMalformed
	}
	if !allDigits(whole) || !allDigits(frac) {
		return 0, ErrMalformed
	}

	frac = strings.TrimRight(frac, "0")
	if len(frac) > decimals {
		return 0, ErrPrecision
	}
	frac += strings.Repeat("0", decimals-len(frac))

	var units int64
	for _, r := range whole + frac {
		d := int64(r - '0')
		if units > (math.MaxInt64-d)/10 {
			return 0, ErrOverflow
		}
		units = units*10 + d
	}
	return units, nil
}

// Format renders smallest units back into a decimal string with exactly
// decimals fraction digits.
func Format(units int64, decimals int) string {
	if decimals <= 0 {
		return fmt.Sprintf("%d", units)
	}
	sign := ""
	u := uint64(units)
	if units < 0 {
		sign = "-"
		u = uint64(-(units + 1)) + 1
	}
	digits := fmt.Sprintf("%0*d", decimals+1, u)
	cut := len(digits) - decimals
	return sign + digits[:cut] + "." + digits[cut:]
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
