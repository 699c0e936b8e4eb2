package models

import "time"

// Output formats for a generated claim
const (
	FormatPaginated = "paginated" // One sheet per form page
	FormatCSV       = "csv"       // Flat CSV
	FormatFlatXLSX  = "xlsx"      // Flat single-sheet workbook
)

// ClaimRun represents one persisted claim generation
type ClaimRun struct {
	ID          string       `json:"id"`
	Format      string       `json:"format"`
	OutputPath  string       `json:"output_path"`
	PageCount   int          `json:"page_count"`
	Summary     Summary      `json:"summary"`
	TotalAmount string       `json:"total_amount"` // Quantized display value
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}
