package model

import (
	"fmt"
	"strconv"
	"strings"
)

// MicroPerUnit is the number of micro-units in one native token.
const MicroPerUnit = 1_000_000

// FormatMicro renders a micro-unit amount as a decimal token amount,
// trimming trailing zeros ("1.5", "2", "0.000001").
func FormatMicro(micro uint64) string {
	whole := micro / MicroPerUnit
	frac := micro % MicroPerUnit
	if frac == 0 {
		return strconv.FormatUint(whole, 10)
	}
	fs := strings.TrimRight(fmt.Sprintf("%06d", frac), "0")
	return strconv.FormatUint(whole, 10) + "." + fs
}

// ParseMicro parses a decimal token amount into micro-units. At most six
// fractional digits are accepted.
func ParseMicro(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	w, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	var f uint64
	if hasFrac {
		if frac == "" || len(frac) > 6 {
			return 0, fmt.Errorf("invalid amount %q: at most 6 decimal places", s)
		}
		f, err = strconv.ParseUint(frac+strings.Repeat("0", 6-len(frac)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
	}
	if w > (^uint64(0)-f)/MicroPerUnit {
		return 0, fmt.Errorf("amount %q overflows", s)
	}
	return w*MicroPerUnit + f, nil
}
