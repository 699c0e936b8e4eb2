package claimform

import (
	"strings"

	"cloud.google.com/go/civil"
)

// HeaderFields are the per-run header and footer values of the form.
// They come from configuration and are identical on every page of a run.
type HeaderFields struct {
	Employee      string     `json:"employee"`
	Department    string     `json:"department"`
	Approver      string     `json:"approver"`
	PeriodStart   civil.Date `json:"period_start"`
	PeriodEnd     civil.Date `json:"period_end"`
	SignatureDate civil.Date `json:"signature_date"` // Zero means the render date
}

// Validate checks the header before any page is built
func (h HeaderFields) Validate() error {
	if strings.TrimSpace(h.Department) == "" {
		return configError("header.department", "is required")
	}
	if strings.TrimSpace(h.Approver) == "" {
		return configError("header.approver", "is required")
	}
	if !h.PeriodStart.IsZero() && !h.PeriodStart.IsValid() {
		return configError("header.period_start", "invalid date %s", h.PeriodStart)
	}
	if !h.PeriodEnd.IsZero() && !h.PeriodEnd.IsValid() {
		return configError("header.period_end", "invalid date %s", h.PeriodEnd)
	}
	if !h.PeriodStart.IsZero() && !h.PeriodEnd.IsZero() && h.PeriodEnd.Before(h.PeriodStart) {
		return configError("header.period_end", "%s is before period start %s", h.PeriodEnd, h.PeriodStart)
	}
	return nil
}

// PeriodLabel renders the claim period as "start ~ end"
func (h HeaderFields) PeriodLabel() string {
	switch {
	case h.PeriodStart.IsZero() && h.PeriodEnd.IsZero():
		return ""
	case h.PeriodEnd.IsZero():
		return h.PeriodStart.String() + " ~"
	case h.PeriodStart.IsZero():
		return "~ " + h.PeriodEnd.String()
	}
	return h.PeriodStart.String() + " ~ " + h.PeriodEnd.String()
}
