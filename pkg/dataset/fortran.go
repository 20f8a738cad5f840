package dataset

import (
	"fmt"
	"strconv"
	"strings"
)

// ConvertFortranNumber parses a dataset cell the way NM-TRAN reads it.
// Beyond ordinary floats this accepts Fortran D exponents (1.25D+2 is 125),
// the exponent shorthand without a letter (1+2 is 100, 4-1 is 0.4), and a
// bare sign, which NM-TRAN reads as zero.
func ConvertFortranNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "+" || s == "-" {
		return 0, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}
	if t := replaceDExponent(s); t != s {
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return f, nil
		}
	}
	// A sign after the first character with no exponent letter before it
	// starts the exponent: 0.25+2 reads as 0.25e+2.
	for i := 1; i < len(s); i++ {
		if s[i] != '+' && s[i] != '-' {
			continue
		}
		switch s[i-1] {
		case 'e', 'E', 'd', 'D':
			continue
		}
		if f, err := strconv.ParseFloat(s[:i]+"e"+s[i:], 64); err == nil {
			return f, nil
		}
		break
	}
	return 0, fmt.Errorf("cannot parse %q as a number", s)
}

func replaceDExponent(s string) string {
	return strings.Map(func(r rune) rune {
		if r == 'd' || r == 'D' {
			return 'e'
		}
		return r
	}, s)
}
