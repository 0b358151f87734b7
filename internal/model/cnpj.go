package model

import (
	"errors"
	"strings"
)

// ErrInvalidCNPJ is returned for a CNPJ with a bad length or check digits.
var ErrInvalidCNPJ = errors.New("invalid CNPJ")

var (
	cnpjWeights1 = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeights2 = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// NormalizeCNPJ strips punctuation and validates the two check digits.
// Returns the 14-digit form.
func NormalizeCNPJ(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '/' || r == '-' || r == ' ':
		default:
			return "", ErrInvalidCNPJ
		}
	}
	digits := b.String()
	if len(digits) != 14 {
		return "", ErrInvalidCNPJ
	}
	if strings.Count(digits, digits[:1]) == 14 {
		return "", ErrInvalidCNPJ
	}
	if cnpjDigit(digits[:12], cnpjWeights1) != digits[12] ||
		cnpjDigit(digits[:13], cnpjWeights2) != digits[13] {
		return "", ErrInvalidCNPJ
	}
	return digits, nil
}

// FormatCNPJ renders a normalized CNPJ as 00.000.000/0000-00.
func FormatCNPJ(digits string) string {
	if len(digits) != 14 {
		return digits
	}
	return digits[0:2] + "." + digits[2:5] + "." + digits[5:8] + "/" + digits[8:12] + "-" + digits[12:14]
}

func cnpjDigit(base string, weights []int) byte {
	sum := 0
	for i := 0; i < len(base); i++ {
		sum += int(base[i]-'0') * weights[i]
	}
	rem := sum % 11
	if rem < 2 {
		return '0'
	}
	return byte('0' + 11 - rem)
}
