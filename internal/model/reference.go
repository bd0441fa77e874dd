package model

import (
	"errors"
	"strings"
)

const ReferenceNumberLength = 6

var ErrInvalidReferenceNumber = errors.New("reference number must contain between 1 and 6 digits")

// NormalizeReferenceNumber keeps the digits of raw and left pads them with
// zeros to six characters. "INV-1234" becomes "001234".
func NormalizeReferenceNumber(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" || len(digits) > ReferenceNumberLength {
		return "", ErrInvalidReferenceNumber
	}
	return strings.Repeat("0", ReferenceNumberLength-len(digits)) + digits, nil
}
