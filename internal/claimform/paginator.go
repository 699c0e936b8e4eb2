package claimform

import "github.com/garyjia/claim-reconciler/internal/models"

// PageCount returns ceil(rows / pageSize), never less than one
func PageCount(rows, pageSize int) int {
	if rows <= 0 {
		return 1
	}
	return (rows + pageSize - 1) / pageSize
}

// Paginate splits claim rows into pages of exactly pageSize slots.
// An empty claim still yields one fully cleared page. Rows are copied
// into the pages, so later changes to the input slice do not reach them.
func Paginate(rows []models.ClaimRow, pageSize int) ([]Page, error) {
	if pageSize <= 0 {
		return nil, configError("page_size", "must be positive, got %d", pageSize)
	}

	count := PageCount(len(rows), pageSize)
	pages := make([]Page, 0, count)
	for i := 0; i < count; i++ {
		start := i * pageSize
		end := start + pageSize
		if end > len(rows) {
			end = len(rows)
		}

		slots := make([]Slot, pageSize)
		for j := start; j < end; j++ {
			row := rows[j]
			slots[j-start] = Slot{Serial: j + 1, Row: &row}
		}
		// slots[end-start:] keep their zero value: cleared placeholders

		pages = append(pages, Page{Index: i + 1, Slots: slots})
	}
	return pages, nil
}
