package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateOutputFormat(t *testing.T) {
	formats := []string{"json", "text", "markdown", "html"}

	tests := []struct {
		name        string
		format      string
		supported   []string
		expectedErr string
	}{
		{name: "html", format: "html", supported: formats},
		{name: "text", format: "text", supported: formats},
		{
			name:        "case sensitive",
			format:      "JSON",
			supported:   formats,
			expectedErr: "unsupported output format 'JSON'. Supported formats: [json text markdown html]",
		},
		{
			name:        "empty",
			format:      "",
			supported:   []string{"json"},
			expectedErr: "unsupported output format ''. Supported formats: [json]",
		},
		{name: "no restrictions configured", format: "yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutputFormat(tt.format, tt.supported)
			if tt.expectedErr != "" {
				assert.EqualError(t, err, tt.expectedErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateFormatFor(t *testing.T) {
	tests := []struct {
		format      string
		dataType    string
		expectError bool
	}{
		{"html", "AnalysisResult", false},
		{"text", "AnalysisResult", false},
		{"json", "Document", false},
		{"markdown", "Document", false},
		{"html", "Document", true},
		{"yaml", "AnalysisResult", true},
	}

	for _, tt := range tests {
		t.Run(tt.format+"/"+tt.dataType, func(t *testing.T) {
			err := ValidateFormatFor(tt.format, tt.dataType)
			if tt.expectError {
				assert.ErrorContains(t, err, "not available for "+tt.dataType)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestGetSupportedFormats(t *testing.T) {
	assert.Equal(t, []string{"json", "html"}, GetSupportedFormats([]string{"json", "html"}))
	assert.Nil(t, GetSupportedFormats(nil))
}
