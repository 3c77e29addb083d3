package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	currencyPattern   = regexp.MustCompile(`^[A-Z]{3}$`)
	identifierPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:\-]{0,127}$`)
	controlChars      = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// ValidateCurrency checks an ISO 4217 style code such as XOF or EUR
func ValidateCurrency(code string) error {
	if !currencyPattern.MatchString(code) {
		return fmt.Errorf("invalid currency code: %q", code)
	}
	return nil
}

// ValidateIdentifier checks workspace, user and entity identifiers taken
// from request headers and paths
func ValidateIdentifier(field, id string) error {
	if id == "" {
		return fmt.Errorf("%s is required", field)
	}
	if !identifierPattern.MatchString(id) {
		return fmt.Errorf("invalid %s: %q", field, id)
	}
	return nil
}

// SanitizeString removes control characters and surrounding whitespace
func SanitizeString(s string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(s, ""))
}
