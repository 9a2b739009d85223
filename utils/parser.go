package utils

import (
	"regexp"
	"strconv"
	"strings"
)

// numberRegex matches a whole numeric literal: optional sign, thousands commas, decimals, exponent.
var numberRegex = regexp.MustCompile(`^[-+]?(?:\d{1,3}(?:,\d{3})+|\d+)?(?:\.\d+)?(?:[eE][-+]?\d+)?$`)

// ParseNumber converts strings like "1,079.50" or "-3.2e4" to a float64.
// Unlike a price scan it rejects text around the number, so "12 km" is not a number.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || !numberRegex.MatchString(s) {
		return 0, false
	}
	cleaned := strings.ReplaceAll(s, ",", "")
	if cleaned == "" || cleaned == "+" || cleaned == "-" {
		return 0, false
	}
	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// NormalizeNumber returns the canonical text form of a numeric string.
func NormalizeNumber(s string) (string, bool) {
	n, ok := ParseNumber(s)
	if !ok {
		return "", false
	}
	return strconv.FormatFloat(n, 'f', -1, 64), true
}

var yearRegex = regexp.MustCompile(`(?:^|\D)(19\d{2}|20\d{2})(?:\D|$)`)

// HasYear reports whether s carries a four digit year between 1900 and 2099.
func HasYear(s string) bool {
	return yearRegex.MatchString(s)
}

var spaceRegex = regexp.MustCompile(`\s+`)

// CleanText collapses runs of whitespace and trims the result.
func CleanText(s string) string {
	return strings.TrimSpace(spaceRegex.ReplaceAllString(s, " "))
}
