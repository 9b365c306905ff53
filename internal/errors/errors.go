package errors

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation        ErrorType = "validation"
	ErrorTypeUnsupportedFormat ErrorType = "unsupported_format"
	ErrorTypeExtraction        ErrorType = "extraction"
	ErrorTypeConfig            ErrorType = "config"
	ErrorTypeAPI               ErrorType = "api"
	ErrorTypeResponseShape     ErrorType = "response_shape"
	ErrorTypeParse             ErrorType = "parse"
	ErrorTypeIO                ErrorType = "io"
	ErrorTypeInternal          ErrorType = "internal"
)

// AppError represents a structured application error. Message is what the
// user gets to see.
type AppError struct {
	Type       ErrorType      `json:"type"`
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	StatusCode int            `json:"statusCode,omitempty"`
	Cause      error          `json:"-"`
	Context    map[string]any `json:"context,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func newAppError(typ ErrorType, code, message string, cause error) *AppError {
	return &AppError{
		Type:    typ,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Error constructors for different types
func NewValidationError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeValidation, code, message, cause)
}

func NewUnsupportedFormatError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeUnsupportedFormat, code, message, cause)
}

func NewExtractionError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeExtraction, code, message, cause)
}

func NewConfigError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeConfig, code, message, cause)
}

// NewAPIError creates an analysis service error. statusCode is zero when no
// HTTP status was received.
func NewAPIError(code, message string, statusCode int, cause error) *AppError {
	e := newAppError(ErrorTypeAPI, code, message, cause)
	e.StatusCode = statusCode
	return e
}

func NewResponseShapeError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeResponseShape, code, message, cause)
}

func NewParseError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeParse, code, message, cause)
}

func NewIOError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeIO, code, message, cause)
}

func NewInternalError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeInternal, code, message, cause)
}

// WithContext adds context to an error
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// AsAppError returns the first AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType reports whether err carries an AppError of the given type.
func IsType(err error, typ ErrorType) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Type == typ
}

// UserMessage returns the text to show an end user for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr.Message
	}
	return MsgUnexpected
}

// HTTPStatus maps an error to the status the HTTP API answers with.
func HTTPStatus(err error) int {
	appErr, ok := AsAppError(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch appErr.Type {
	case ErrorTypeValidation:
		if appErr.Code == ErrCodeFileTooLarge {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	case ErrorTypeUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case ErrorTypeExtraction:
		return http.StatusUnprocessableEntity
	case ErrorTypeConfig:
		return http.StatusServiceUnavailable
	case ErrorTypeAPI, ErrorTypeResponseShape, ErrorTypeParse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Logger wraps slog with application-specific methods
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a new structured logger writing JSON to stderr.
func NewLogger(level slog.Level) *Logger {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := slog.NewJSONHandler(os.Stderr, opts)
	return &Logger{logger: slog.New(handler)}
}

// NewLoggerWithHandler wraps an arbitrary slog handler, mostly for tests.
func NewLoggerWithHandler(h slog.Handler) *Logger {
	return &Logger{logger: slog.New(h)}
}

// LogError logs an application error with appropriate level and context
func (l *Logger) LogError(err error, message string, args ...any) {
	if appErr, ok := AsAppError(err); ok {
		logArgs := []any{
			"error_type", appErr.Type,
			"error_code", appErr.Code,
			"error_message", appErr.Message,
		}
		if appErr.StatusCode != 0 {
			logArgs = append(logArgs, "status_code", appErr.StatusCode)
		}
		if appErr.Cause != nil {
			logArgs = append(logArgs, "cause", appErr.Cause.Error())
		}

		for key, value := range appErr.Context {
			logArgs = append(logArgs, key, value)
		}

		logArgs = append(logArgs, args...)

		l.logger.Error(message, logArgs...)
	} else {
		logArgs := append([]any{"error", err.Error()}, args...)
		l.logger.Error(message, logArgs...)
	}
}

// Error logs at error level.
func (l *Logger) Error(message string, args ...any) {
	l.logger.Error(message, args...)
}

func (l *Logger) Info(message string, args ...any) {
	l.logger.Info(message, args...)
}

func (l *Logger) Debug(message string, args ...any) {
	l.logger.Debug(message, args...)
}

func (l *Logger) Warn(message string, args ...any) {
	l.logger.Warn(message, args...)
}

// New creates a new logger instance
func New(level string) (*Logger, error) {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	return NewLogger(slogLevel), nil
}

// Common error codes
const (
	ErrCodeFileNotFound      = "FILE_NOT_FOUND"
	ErrCodeFileNotReadable   = "FILE_NOT_READABLE"
	ErrCodeFileTooLarge      = "FILE_TOO_LARGE"
	ErrCodeInvalidFormat     = "INVALID_FORMAT"
	ErrCodeUnsupportedFile   = "UNSUPPORTED_FILE_TYPE"
	ErrCodeExtractionFailed  = "EXTRACTION_FAILED"
	ErrCodeMissingInput      = "MISSING_INPUT"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeMissingAPIKey     = "MISSING_API_KEY"
	ErrCodeInvalidConfig     = "INVALID_CONFIG"
	ErrCodeAPIStatus         = "API_STATUS"
	ErrCodeRetriesExhausted  = "RETRIES_EXHAUSTED"
	ErrCodeCircuitOpen       = "CIRCUIT_OPEN"
	ErrCodeRequestFailed     = "REQUEST_FAILED"
	ErrCodeUnexpectedShape   = "UNEXPECTED_RESPONSE_SHAPE"
	ErrCodeInvalidAnalysis   = "INVALID_ANALYSIS_JSON"
	ErrCodeAIServiceFailed   = "AI_SERVICE_FAILED"
	ErrCodeOutputWriteFailed = "OUTPUT_WRITE_FAILED"
)

// User-facing messages
const (
	MsgMissingInput       = "Please paste a job description and upload your resume file."
	MsgUnsupportedFile    = "Unsupported file type. Please upload a PDF or DOCX."
	MsgMissingAPIKey      = "API Key is missing. Please add your Gemini API key to continue."
	MsgRetriesExhausted   = "API request failed after multiple retries."
	MsgAPIStatus          = "API request failed with status %d"
	MsgCircuitOpen        = "The analysis service is temporarily unavailable. Please try again shortly."
	MsgUnexpectedShape    = "Received an unexpected response from the analysis service."
	MsgInvalidAnalysis    = "Could not parse the analysis from the AI. The format was unexpected."
	MsgFileTooLarge       = "The uploaded file is too large."
	MsgRequestFailed      = "Could not send the request to the analysis service."
	MsgInsecureConnection = "Could not establish a trusted connection to the analysis service."
	MsgExtractionFailedF  = "Could not read the %s file: %v"
	MsgUnexpected         = "An unexpected error occurred."
)
