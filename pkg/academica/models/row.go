// Package models defines the data structures passed between the import stages.
package models

import "strings"

// Row represents one physical row of a report.
type Row struct {
	// R is the row index (1-based).
	R int `json:"r"`
	// Cells holds the trimmed cell text by 0-based column offset. Blank cells are "".
	Cells []string `json:"cells"`
}

// Cell returns the cell at offset, or "" when the row is shorter.
func (r Row) Cell(offset int) string {
	if offset < 0 || offset >= len(r.Cells) {
		return ""
	}
	return r.Cells[offset]
}

// IsBlank reports whether every cell of the row is empty.
func (r Row) IsBlank() bool {
	for _, c := range r.Cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// NonBlank returns the number of non-empty cells.
func (r Row) NonBlank() int {
	n := 0
	for _, c := range r.Cells {
		if strings.TrimSpace(c) != "" {
			n++
		}
	}
	return n
}
