package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"resumematch/internal/errors"
	"resumematch/internal/formatters"
	"resumematch/internal/types"
	"resumematch/internal/utils"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	// multipartOverhead is allowed on top of MaxRequestSize for the form
	// envelope and the job description.
	multipartOverhead = 1 << 20
	// multipartMemory is held in memory before parts spill to disk.
	multipartMemory = 8 << 20

	formJobDescription = "jobDescription"
	formResumeText     = "resumeText"
	formResumeFile     = "resume"
	formFileName       = "fileName"

	msgMissingFile = "Please upload your resume file."
)

// upload is a parsed multipart form.
type upload struct {
	JobDescription string
	ResumeText     string
	LoadedFileName string // name of the file ResumeText came from
	FileName       string
	MIMEType       string
	Data           []byte
}

func (s *Server) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	tracer := s.tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("resumematch.api")
	}
	return tracer.Start(ctx, name)
}

// extractHandler runs the file loader only and returns the Document.
func (s *Server) extractHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.startSpan(r.Context(), "api.extract")
	defer span.End()

	u, err := s.readUpload(r)
	if err != nil {
		s.fail(w, r, span, err)
		return
	}
	if u.FileName == "" && len(u.Data) == 0 {
		s.fail(w, r, span, errors.NewValidationError(errors.ErrCodeMissingInput, msgMissingFile, nil))
		return
	}

	format, err := responseFormat(r, "Document")
	if err != nil {
		s.fail(w, r, span, err)
		return
	}

	doc, err := s.Matcher.LoadResume(ctx, &types.Session{}, u.FileName, u.MIMEType, u.Data)
	if err != nil {
		s.fail(w, r, span, err)
		return
	}

	span.SetAttributes(
		attribute.String("document.format", doc.Format),
		attribute.Int("document.size", doc.Size),
		attribute.Int("document.text_length", len(doc.Text)),
	)
	s.writeFormatted(w, r, *doc, format)
}

// checkHandler loads the uploaded résumé and scores it against the job
// description in the same form.
func (s *Server) checkHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.startSpan(r.Context(), "api.check")
	defer span.End()

	format, err := responseFormat(r, "AnalysisResult")
	if err != nil {
		s.fail(w, r, span, err)
		return
	}

	u, err := s.readUpload(r)
	if err != nil {
		s.fail(w, r, span, err)
		return
	}

	session := &types.Session{ResumeText: u.ResumeText}
	if _, err := s.Matcher.LoadResume(ctx, session, u.FileName, u.MIMEType, u.Data); err != nil {
		s.fail(w, r, span, err)
		return
	}

	result, err := s.Matcher.Check(ctx, session, u.JobDescription)
	if err != nil {
		s.fail(w, r, span, err)
		return
	}

	span.SetAttributes(
		attribute.Int("match.score", result.Score),
		attribute.Int("match.matched_keywords", len(result.MatchedKeywords)),
		attribute.Int("match.missing_keywords", len(result.MissingKeywords)),
	)
	s.writeFormatted(w, r, result, format)
}

// analyzeHandler scores text that the caller already extracted.
func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.startSpan(r.Context(), "api.analyze")
	defer span.End()

	format, err := responseFormat(r, "AnalysisResult")
	if err != nil {
		s.fail(w, r, span, err)
		return
	}

	var req types.AnalyzeTextRequest
	if err := parseJSONRequest(r, &req); err != nil {
		s.fail(w, r, span, err)
		return
	}

	span.SetAttributes(
		attribute.Int("request.job_length", len(req.JobDescription)),
		attribute.Int("request.resume_length", len(req.ResumeText)),
	)

	result, err := s.Matcher.CheckText(ctx, req.JobDescription, req.ResumeText)
	if err != nil {
		s.fail(w, r, span, err)
		return
	}

	span.SetAttributes(attribute.Int("match.score", result.Score))
	s.writeFormatted(w, r, result, format)
}

// readUpload parses the multipart form. A missing file part is not an error.
func (s *Server) readUpload(r *http.Request) (upload, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return upload{}, requestError(err)
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	u := upload{
		JobDescription: r.FormValue(formJobDescription),
		ResumeText:     r.FormValue(formResumeText),
		LoadedFileName: r.FormValue(formFileName),
	}

	file, header, err := r.FormFile(formResumeFile)
	switch {
	case stderrors.Is(err, http.ErrMissingFile):
		return u, nil
	case err != nil:
		return upload{}, requestError(err)
	}

	data, err := readPart(file)
	if err != nil {
		return upload{}, requestError(err)
	}

	u.FileName = header.Filename
	u.MIMEType = utils.DeclaredOrDetectedMIMEType(header.Header.Get("Content-Type"), header.Filename, data)
	u.Data = data
	return u, nil
}

func readPart(file multipart.File) ([]byte, error) {
	defer func() { _ = file.Close() }()
	return io.ReadAll(file)
}

// requestError turns a body read failure into a validation error.
func requestError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if stderrors.As(err, &maxBytesErr) {
		return errors.NewValidationError(errors.ErrCodeFileTooLarge, errors.MsgFileTooLarge, err).
			WithContext("limit_bytes", maxBytesErr.Limit)
	}
	return errors.NewValidationError(errors.ErrCodeInvalidRequest, fmt.Sprintf("Invalid request: %v", err), err)
}

// responseFormat reads ?format=, defaulting to json.
func responseFormat(r *http.Request, dataType string) (string, error) {
	format := r.URL.Query().Get("format")
	if format == "" {
		return "json", nil
	}
	if !formatters.GlobalRegistry.Supports(format, dataType) {
		return "", errors.NewValidationError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("Unsupported output format: %s", format), nil)
	}
	return format, nil
}

var contentTypes = map[string]string{
	"json":     "application/json",
	"text":     "text/plain; charset=utf-8",
	"markdown": "text/markdown; charset=utf-8",
	"html":     "text/html; charset=utf-8",
}

func (s *Server) writeFormatted(w http.ResponseWriter, r *http.Request, data any, format string) {
	body, err := formatters.GlobalRegistry.Format(data, format)
	if err != nil {
		s.Logger.LogError(err, "Failed to format response", "format", format,
			"request_id", requestIDFromContext(r.Context()))
		writeErrorResponse(w, string(errors.ErrorTypeInternal), errors.MsgUnexpected, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypes[format])
	if _, err := io.WriteString(w, body); err != nil {
		s.Logger.Debug("Failed to write response", "error", err)
	}
}

// fail records err on the span and answers with the user-facing message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, errors.UserMessage(err))

	errorType := string(errors.ErrorTypeInternal)
	if appErr, ok := errors.AsAppError(err); ok {
		errorType = string(appErr.Type)
		span.SetAttributes(attribute.String("error.type", errorType), attribute.String("error.code", appErr.Code))
	}

	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.Logger.LogError(err, "Request failed", "endpoint", r.URL.Path,
			"request_id", requestIDFromContext(r.Context()))
	}
	writeErrorResponse(w, errorType, errors.UserMessage(err), status)
}
