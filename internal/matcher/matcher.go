// Package matcher ties the file loader and the analyzer to a Session.
package matcher

import (
	"context"
	"strings"
	"time"

	"resumematch/internal/ai"
	"resumematch/internal/errors"
	"resumematch/internal/extractor"
	"resumematch/internal/types"
)

// DocumentLoader extracts text from an uploaded file.
type DocumentLoader interface {
	Load(ctx context.Context, fileName, mimeType string, data []byte) (*types.Document, error)
}

var _ DocumentLoader = (*extractor.Loader)(nil)

// Recorder receives outcome metrics. observability.Metrics implements it.
type Recorder interface {
	RecordExtraction(ctx context.Context, format string, err error)
	RecordCheck(ctx context.Context, duration time.Duration, usage *ai.TokenUsage, err error)
}

// Matcher runs the load and check actions against a Session.
type Matcher struct {
	loader   DocumentLoader
	analyzer ai.Analyzer
	logger   *errors.Logger
	recorder Recorder
}

// Option customises a Matcher.
type Option func(*Matcher)

// WithRecorder reports extraction and check outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(m *Matcher) { m.recorder = r }
}

// New creates a Matcher.
func New(loader DocumentLoader, analyzer ai.Analyzer, logger *errors.Logger, opts ...Option) *Matcher {
	m := &Matcher{
		loader:   loader,
		analyzer: analyzer,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LoadResume extracts the uploaded file into session. On failure the
// session keeps its previous résumé text but forgets the file name. An
// empty selection leaves the session untouched and returns nil, nil.
func (m *Matcher) LoadResume(ctx context.Context, session *types.Session, fileName, mimeType string, data []byte) (*types.Document, error) {
	doc, err := m.loader.Load(ctx, fileName, mimeType, data)
	if m.recorder != nil && (doc != nil || err != nil) {
		format := ""
		if doc != nil {
			format = doc.Format
		}
		m.recorder.RecordExtraction(ctx, format, err)
	}
	if err != nil {
		session.ResetFile()
		m.logger.LogError(err, "Failed to load resume", "file_name", fileName, "mime_type", mimeType)
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}

	session.AcceptDocument(doc)
	m.logger.Info("Resume loaded",
		"file_name", doc.FileName,
		"format", doc.Format,
		"size", doc.Size,
		"pages", doc.PageCount,
		"text_length", len(doc.Text))
	return doc, nil
}

// Check scores the session's résumé against jobDescription. The analyzer is
// not called unless both texts are present.
func (m *Matcher) Check(ctx context.Context, session *types.Session, jobDescription string) (types.AnalysisResult, error) {
	jobDescription = strings.TrimSpace(jobDescription)
	if jobDescription == "" || !session.HasResume() {
		err := errors.NewValidationError(errors.ErrCodeMissingInput, errors.MsgMissingInput, nil).
			WithContext("has_job_description", jobDescription != "").
			WithContext("has_resume", session.HasResume())
		m.logger.LogError(err, "Check rejected")
		return types.AnalysisResult{}, err
	}

	return m.analyze(ctx, types.AnalysisRequest{
		JobDescription: jobDescription,
		ResumeText:     session.ResumeText,
	})
}

// CheckText is Check for callers that already hold the résumé text.
func (m *Matcher) CheckText(ctx context.Context, jobDescription, resumeText string) (types.AnalysisResult, error) {
	return m.Check(ctx, &types.Session{ResumeText: resumeText}, jobDescription)
}

func (m *Matcher) analyze(ctx context.Context, req types.AnalysisRequest) (types.AnalysisResult, error) {
	start := time.Now()
	result, usage, err := m.analyzer.Analyze(ctx, req)
	duration := time.Since(start)

	if m.recorder != nil {
		m.recorder.RecordCheck(ctx, duration, usage, err)
	}
	if err != nil {
		m.logger.LogError(err, "Analysis failed", "duration", duration)
		return types.AnalysisResult{}, err
	}

	args := []any{
		"score", result.Score,
		"matched", len(result.MatchedKeywords),
		"missing", len(result.MissingKeywords),
		"duration", duration,
	}
	if usage != nil {
		args = append(args,
			"input_tokens", usage.InputTokens,
			"output_tokens", usage.OutputTokens,
			"total_tokens", usage.TotalTokens)
	}
	m.logger.Info("Analysis completed", args...)
	return result, nil
}
