package errors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_ErrorString(t *testing.T) {
	err := NewExtractionError(ErrCodeExtractionFailed, "bad pdf", fmt.Errorf("xref missing"))
	assert.Equal(t, "EXTRACTION_FAILED: bad pdf (caused by: xref missing)", err.Error())

	plain := NewValidationError(ErrCodeMissingInput, MsgMissingInput, nil)
	assert.Equal(t, "MISSING_INPUT: "+MsgMissingInput, plain.Error())
}

func TestIsTypeAndUserMessage_Wrapped(t *testing.T) {
	apiErr := NewAPIError(ErrCodeAPIStatus, fmt.Sprintf(MsgAPIStatus, 403), 403, nil)
	wrapped := fmt.Errorf("check: %w", apiErr)

	assert.True(t, IsType(wrapped, ErrorTypeAPI))
	assert.False(t, IsType(wrapped, ErrorTypeParse))
	assert.Equal(t, "API request failed with status 403", UserMessage(wrapped))
	assert.Equal(t, MsgUnexpected, UserMessage(fmt.Errorf("boom")))
	assert.Empty(t, UserMessage(nil))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", NewValidationError(ErrCodeMissingInput, MsgMissingInput, nil), http.StatusBadRequest},
		{"too large", NewValidationError(ErrCodeFileTooLarge, MsgFileTooLarge, nil), http.StatusRequestEntityTooLarge},
		{"unsupported", NewUnsupportedFormatError(ErrCodeUnsupportedFile, MsgUnsupportedFile, nil), http.StatusUnsupportedMediaType},
		{"extraction", NewExtractionError(ErrCodeExtractionFailed, "x", nil), http.StatusUnprocessableEntity},
		{"config", NewConfigError(ErrCodeMissingAPIKey, MsgMissingAPIKey, nil), http.StatusServiceUnavailable},
		{"api", NewAPIError(ErrCodeRetriesExhausted, MsgRetriesExhausted, 0, nil), http.StatusBadGateway},
		{"parse", NewParseError(ErrCodeInvalidAnalysis, MsgInvalidAnalysis, nil), http.StatusBadGateway},
		{"plain", fmt.Errorf("x"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestLogger_LogErrorIncludesStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithHandler(slog.NewJSONHandler(&buf, nil))

	err := NewAPIError(ErrCodeAPIStatus, "failed", 503, nil).WithContext("model", "gemini")
	logger.LogError(err, "analysis failed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "api", entry["error_type"])
	assert.Equal(t, float64(503), entry["status_code"])
	assert.Equal(t, "gemini", entry["model"])
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New("verbose")
	require.Error(t, err)

	logger, err := New("debug")
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
