package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Cents is a monetary amount in hundredths of the currency unit (BRL).
// All totals are exact integer sums.
type Cents int64

// maxUnits is the largest whole amount whose cents still fit in an int64.
const maxUnits = (math.MaxInt64 - 99) / 100

// ParseCents parses a decimal amount such as "5000", "1200.5" or "1.200,50".
//
// A comma is treated as the decimal separator when it appears after the last
// dot, matching pt-BR input. More than two fractional digits is an error. A
// single sign may lead the amount or follow the "R$" prefix.
func ParseCents(s string) (Cents, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, fmt.Errorf("parse amount: empty")
	}
	neg, signed := cutSign(&raw)
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "R$"))
	if !signed {
		neg, _ = cutSign(&raw)
	}

	if i := strings.LastIndex(raw, ","); i >= 0 && i > strings.LastIndex(raw, ".") {
		raw = strings.ReplaceAll(raw[:i], ".", "") + "." + raw[i+1:]
	} else {
		raw = strings.ReplaceAll(raw, ",", "")
	}

	whole, frac, _ := strings.Cut(raw, ".")
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("parse amount %q: no digits", s)
	}
	if !isDigits(whole) || !isDigits(frac) {
		return 0, fmt.Errorf("parse amount %q: invalid character", s)
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("parse amount %q: more than two decimal places", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	if whole == "" {
		whole = "0"
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units > maxUnits {
		return 0, fmt.Errorf("parse amount %q: out of range", s)
	}
	hundredths, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	c := Cents(units*100 + hundredths)
	if neg {
		c = -c
	}
	return c, nil
}

// cutSign strips one leading '-' or '+' from *raw.
func cutSign(raw *string) (neg, found bool) {
	if *raw == "" {
		return false, false
	}
	switch (*raw)[0] {
	case '-':
		*raw = strings.TrimSpace((*raw)[1:])
		return true, true
	case '+':
		*raw = strings.TrimSpace((*raw)[1:])
		return false, true
	}
	return false, false
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// FromUnits converts a whole-unit amount to Cents.
func FromUnits(units int64) Cents {
	return Cents(units * 100)
}

// String renders the amount with a dot decimal separator, e.g. "6200.00".
func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Units returns the amount as a float for display formatting only.
func (c Cents) Units() float64 {
	return float64(c) / 100
}

// UnmarshalYAML accepts either an integer number of cents or a quoted decimal
// amount ("5000", "1.200,50").
func (c *Cents) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: amount must be a scalar", node.Line)
	}
	if node.Tag == "!!str" {
		v, err := ParseCents(node.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*c = v
		return nil
	}
	n, err := strconv.ParseInt(node.Value, 10, 64)
	if err != nil {
		return fmt.Errorf("line %d: amount in cents must be an integer: %w", node.Line, err)
	}
	*c = Cents(n)
	return nil
}

// MarshalYAML writes the amount as integer cents.
func (c Cents) MarshalYAML() (any, error) {
	return int64(c), nil
}
