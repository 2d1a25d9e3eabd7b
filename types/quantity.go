package types

import (
	"strconv"
	"strings"
)

// ParseQuantity parses a user supplied amount. Only base-10 positive
// integers that fit in a uint64 are accepted.
func ParseQuantity(field, input string) (uint64, error) {
	s := strings.TrimSpace(input)
	if s == "" || s[0] == '+' || s[0] == '-' {
		return 0, &QuantityError{Field: field, Input: input}
	}

	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, &QuantityError{Field: field, Input: input}
	}
	return n, nil
}
