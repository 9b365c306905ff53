package common

import (
	"fmt"
	"slices"

	"resumematch/internal/formatters"
)

// ValidateOutputFormat validates format against configured supported formats
func ValidateOutputFormat(format string, supportedFormats []string) error {
	if len(supportedFormats) == 0 {
		return nil // No restrictions configured
	}

	if slices.Contains(supportedFormats, format) {
		return nil
	}

	return fmt.Errorf("unsupported output format '%s'. Supported formats: %v",
		format, supportedFormats)
}

// GetSupportedFormats returns the list of supported formats
func GetSupportedFormats(supportedFormats []string) []string {
	return supportedFormats
}

// ValidateFormatFor checks that a formatter exists for values of dataType.
func ValidateFormatFor(format, dataType string) error {
	if formatters.GlobalRegistry.Supports(format, dataType) {
		return nil
	}
	return fmt.Errorf("output format '%s' is not available for %s", format, dataType)
}
