package models

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// NumericPattern is the accepted textual form of a number. The SQL dialects
// match the same pattern so in-memory and query evaluation agree.
const NumericPattern = `^[-+]?([0-9]+\.?[0-9]*|\.[0-9]+)([eE][-+]?[0-9]+)?$`

var numericRe = regexp.MustCompile(NumericPattern)

// ParseNumber interprets a stored value as a number. Surrounding whitespace is
// ignored; anything else that is not a plain decimal is not a number.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if !numericRe.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	// out of range values saturate to ±Inf and still compare
	return f, true
}
