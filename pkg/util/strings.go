package util

import (
	"strconv"
	"strings"
)

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return v
}

// Percent renders a [0,1] confidence as a percentage with one decimal, e.g. 0.9876 -> "98.8%".
func Percent(x float64) string {
	return strconv.FormatFloat(x*100, 'f', 1, 64) + "%"
}
