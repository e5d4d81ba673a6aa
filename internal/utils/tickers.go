// Package utils holds small helpers shared by the transport layers.
package utils

import "strings"

// ParseTickers splits a comma-separated ticker list.
// See NormalizeTickers for the rules applied to each value.
func ParseTickers(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return NormalizeTickers(strings.Split(s, ","))
}

// NormalizeTickers trims and upper-cases tickers, dropping blanks and
// repeats. The first occurrence keeps its position. Returns nil when
// nothing is left.
func NormalizeTickers(in []string) []string {
	var out []string
	seen := make(map[string]bool, len(in))
	for _, t := range in {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
