package models

import "strings"

// CodeSet is the set of valid career codes for one run. It is read-only once built.
type CodeSet struct {
	codes map[string]struct{}
}

// NewCodeSet builds a CodeSet from codes, ignoring blanks.
func NewCodeSet(codes ...string) CodeSet {
	m := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		m[c] = struct{}{}
	}
	return CodeSet{codes: m}
}

// Contains reports whether code is a valid career code.
func (s CodeSet) Contains(code string) bool {
	_, ok := s.codes[code]
	return ok
}

// Len returns the number of codes.
func (s CodeSet) Len() int {
	return len(s.codes)
}
