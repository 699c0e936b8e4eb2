package claimform

import "github.com/garyjia/claim-reconciler/internal/models"

// Slot is one data row of a page: either a claim row or an explicitly cleared placeholder
type Slot struct {
	Serial int              // 1-based position across the whole claim; 0 when cleared
	Row    *models.ClaimRow // nil when cleared
}

// Cleared reports whether the slot is an empty placeholder
func (s Slot) Cleared() bool {
	return s.Row == nil
}

// Page is one fixed-size batch of claim rows
type Page struct {
	Index  int // 1-based
	Slots  []Slot
	Header HeaderFields
}

// Populated returns the number of slots carrying a claim row
func (p Page) Populated() int {
	n := 0
	for _, s := range p.Slots {
		if !s.Cleared() {
			n++
		}
	}
	return n
}

// Rows returns the claim rows on the page in slot order
func (p Page) Rows() []models.ClaimRow {
	rows := make([]models.ClaimRow, 0, len(p.Slots))
	for _, s := range p.Slots {
		if !s.Cleared() {
			rows = append(rows, *s.Row)
		}
	}
	return rows
}
