package models

import "fmt"

// DiagnosticKind classifies a row-level data-quality problem
type DiagnosticKind string

// Diagnostic kinds
const (
	// DiagnosticMalformedRecord marks a row that was skipped
	DiagnosticMalformedRecord DiagnosticKind = "malformed_record"
	// DiagnosticAmountPrecision marks an amount that needed lossy conversion; the row is kept
	DiagnosticAmountPrecision DiagnosticKind = "amount_precision"
)

// Record origins used in diagnostics
const (
	OriginReceipt  = "receipt"
	OriginExternal = "external"
)

// Diagnostic describes one skipped or warned input row
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Origin  string         `json:"origin"`           // receipt or external
	Source  string         `json:"source,omitempty"` // file or upload name
	Index   int            `json:"index"`            // 1-based row number within the source
	Field   string         `json:"field,omitempty"`
	Message string         `json:"message"`
}

// IsSkip reports whether the diagnostic caused the row to be dropped
func (d Diagnostic) IsSkip() bool {
	return d.Kind == DiagnosticMalformedRecord
}

func (d Diagnostic) String() string {
	loc := fmt.Sprintf("%s #%d", d.Origin, d.Index)
	if d.Source != "" {
		loc = fmt.Sprintf("%s (%s)", loc, d.Source)
	}
	if d.Field != "" {
		return fmt.Sprintf("%s: %s: %s: %s", d.Kind, loc, d.Field, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s", d.Kind, loc, d.Message)
}

// CountSkipped returns the number of skip diagnostics
func CountSkipped(diags []Diagnostic) int {
	n := 0
	for _, d := range diags {
		if d.IsSkip() {
			n++
		}
	}
	return n
}
