package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	currencyCodeRegex = regexp.MustCompile(`^[A-Z]{3}$`)
	controlCharsRegex = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// ValidateCurrencyCode checks an ISO 4217 style code such as "SGD"
func ValidateCurrencyCode(code string) error {
	if !currencyCodeRegex.MatchString(strings.ToUpper(strings.TrimSpace(code))) {
		return fmt.Errorf("invalid currency code: %q", code)
	}
	return nil
}

// SanitizeString removes control characters and surrounding whitespace
func SanitizeString(s string) string {
	return strings.TrimSpace(controlCharsRegex.ReplaceAllString(s, ""))
}
