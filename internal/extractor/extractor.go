// Package extractor turns uploaded résumé files into plain text.
package extractor

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"resumematch/internal/errors"
	"resumematch/internal/types"
)

// MIME type and extension the loader dispatches on.
const (
	MIMETypePDF   = "application/pdf"
	ExtensionDOCX = ".docx"

	FormatPDF  = "pdf"
	FormatDOCX = "docx"
)

// TextExtractor pulls the plain text out of a single document format.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (text string, pages int, err error)
	Format() string
}

// Loader selects an extractor for an uploaded file and runs it.
type Loader struct {
	pdf         TextExtractor
	docx        TextExtractor
	maxFileSize int64
}

// LoaderOption customises a Loader.
type LoaderOption func(*Loader)

// WithMaxFileSize rejects files larger than n bytes. Zero disables the check.
func WithMaxFileSize(n int64) LoaderOption {
	return func(l *Loader) {
		l.maxFileSize = n
	}
}

// WithExtractors replaces the default PDF and DOCX extractors.
func WithExtractors(pdf, docx TextExtractor) LoaderOption {
	return func(l *Loader) {
		l.pdf = pdf
		l.docx = docx
	}
}

// NewLoader creates a loader backed by the PDF and DOCX extractors.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		pdf:  NewPDFExtractor(),
		docx: NewDOCXExtractor(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load extracts text from data. The declared MIME type decides PDF, the
// file name suffix decides DOCX; anything else is unsupported. An empty
// selection (no name and no bytes) is a no-op and returns nil, nil.
func (l *Loader) Load(ctx context.Context, fileName, mimeType string, data []byte) (*types.Document, error) {
	if fileName == "" && len(data) == 0 {
		return nil, nil
	}

	extractor, err := l.selectExtractor(fileName, mimeType)
	if err != nil {
		return nil, err.WithContext("file_name", fileName).WithContext("mime_type", mimeType)
	}

	if l.maxFileSize > 0 && int64(len(data)) > l.maxFileSize {
		return nil, errors.NewValidationError(errors.ErrCodeFileTooLarge, errors.MsgFileTooLarge, nil).
			WithContext("file_name", fileName).
			WithContext("size", len(data)).
			WithContext("max_size", l.maxFileSize)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, pages, extractErr := extractor.Extract(ctx, data)
	if extractErr != nil {
		if stderrors.Is(extractErr, context.Canceled) || stderrors.Is(extractErr, context.DeadlineExceeded) {
			return nil, extractErr
		}
		if _, ok := errors.AsAppError(extractErr); ok {
			return nil, extractErr
		}
		return nil, errors.NewExtractionError(errors.ErrCodeExtractionFailed,
			fmt.Sprintf(errors.MsgExtractionFailedF, strings.ToUpper(extractor.Format()), extractErr), extractErr).
			WithContext("file_name", fileName)
	}

	return &types.Document{
		FileName:  fileName,
		Format:    extractor.Format(),
		MIMEType:  mimeType,
		Size:      len(data),
		PageCount: pages,
		Text:      text,
	}, nil
}

func (l *Loader) selectExtractor(fileName, mimeType string) (TextExtractor, *errors.AppError) {
	switch {
	case mimeType == MIMETypePDF:
		return l.pdf, nil
	case strings.HasSuffix(fileName, ExtensionDOCX):
		return l.docx, nil
	default:
		return nil, errors.NewUnsupportedFormatError(errors.ErrCodeUnsupportedFile, errors.MsgUnsupportedFile, nil)
	}
}
