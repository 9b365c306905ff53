package server

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"resumematch/internal/errors"
	"resumematch/internal/formatters"
	"resumematch/internal/presenter"
	"resumematch/internal/types"
	"resumematch/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

//go:embed templates/index.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// pageData feeds templates/index.html.
type pageData struct {
	Version     string
	MaxFileSize string

	JobDescription string
	ResumeText     string
	FileName       string
	Status         string
	Error          string

	Result          *presenter.View
	SuggestionsHTML template.HTML
}

func (s *Server) newPageData() pageData {
	return pageData{
		Version:     s.Version,
		MaxFileSize: utils.FormatFileSize(s.MaxRequestSize),
	}
}

// pageHandler renders the empty form.
func (s *Server) pageHandler(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, s.newPageData())
}

// pageSubmitHandler loads the selected file, if any, and runs the check.
// Résumé text from an earlier submit travels in a hidden field so a failed
// upload falls back to it.
func (s *Server) pageSubmitHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.startSpan(r.Context(), "web.check")
	defer span.End()

	data := s.newPageData()

	u, err := s.readUpload(r)
	if err != nil {
		span.RecordError(err)
		data.Error = errors.UserMessage(err)
		s.renderPage(w, r, data)
		return
	}
	data.JobDescription = u.JobDescription

	session := &types.Session{ResumeText: u.ResumeText}
	if session.HasResume() {
		session.FileName = u.LoadedFileName
	}

	if _, err := s.Matcher.LoadResume(ctx, session, u.FileName, u.MIMEType, u.Data); err != nil {
		span.RecordError(err)
		data.Error = errors.UserMessage(err)
	} else if result, err := s.Matcher.Check(ctx, session, u.JobDescription); err != nil {
		span.RecordError(err)
		data.Error = errors.UserMessage(err)
	} else {
		view := presenter.Present(result)
		data.Result = &view
		data.SuggestionsHTML = template.HTML(formatters.SuggestionsHTML(view.SuggestionLines)) // escaped by SuggestionsHTML
		span.SetAttributes(attribute.Int("match.score", result.Score))
	}

	data.ResumeText = session.ResumeText
	data.FileName = session.FileName
	data.Status = session.Status
	s.renderPage(w, r, data)
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, data pageData) {
	tmpl := s.page
	if tmpl == nil {
		tmpl = pageTemplate
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		s.Logger.LogError(err, "Failed to render page", "request_id", requestIDFromContext(r.Context()))
		http.Error(w, errors.MsgUnexpected, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
