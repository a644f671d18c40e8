package recommender

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	numberRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	// a dash between two numbers is a range, not a sign
	rangeDashRe = regexp.MustCompile(`(\d)\s*[-–—]\s*(\d)`)
)

// Numbers extracts the numbers of a string such as "20–30 °C" or "-5 to 10".
func Numbers(s string) []float64 {
	s = rangeDashRe.ReplaceAllString(s, "$1 to $2")
	s = strings.NewReplacer("–", " ", "—", " ").Replace(s)
	var out []float64
	for _, m := range numberRe.FindAllString(s, -1) {
		if f, err := strconv.ParseFloat(m, 64); err == nil {
			out = append(out, f)
		}
	}
	return out
}

// ParseRange reduces "min–max" to its midpoint and a single number to itself.
// ok is false when s holds no number.
func ParseRange(s string) (v float64, ok bool) {
	n := Numbers(s)
	switch {
	case len(n) >= 2:
		return (n[0] + n[1]) / 2, true
	case len(n) == 1:
		return n[0], true
	default:
		return 0, false
	}
}

// MinMax returns the first two numbers of s; a single number is both bounds.
func MinMax(s string) (lo, hi float64, ok bool) {
	n := Numbers(s)
	switch {
	case len(n) >= 2:
		return n[0], n[1], true
	case len(n) == 1:
		return n[0], n[0], true
	default:
		return 0, 0, false
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
