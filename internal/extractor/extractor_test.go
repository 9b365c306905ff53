package extractor

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumematch/internal/errors"
)

type stubExtractor struct {
	format string
	text   string
	err    error
	calls  int
}

func (s *stubExtractor) Extract(_ context.Context, _ []byte) (string, int, error) {
	s.calls++
	return s.text, 1, s.err
}

func (s *stubExtractor) Format() string { return s.format }

func TestLoader_Dispatch(t *testing.T) {
	tests := []struct {
		name       string
		fileName   string
		mimeType   string
		wantFormat string
		wantErr    errors.ErrorType
	}{
		{name: "pdf by mime", fileName: "cv.pdf", mimeType: "application/pdf", wantFormat: FormatPDF},
		{name: "pdf mime wins over name", fileName: "cv.docx", mimeType: "application/pdf", wantFormat: FormatPDF},
		{name: "docx by name", fileName: "cv.docx", mimeType: "application/octet-stream", wantFormat: FormatDOCX},
		{name: "docx without mime", fileName: "resume.docx", wantFormat: FormatDOCX},
		{name: "pdf name without mime", fileName: "cv.pdf", mimeType: "", wantErr: errors.ErrorTypeUnsupportedFormat},
		{name: "upper case docx suffix", fileName: "CV.DOCX", mimeType: "", wantErr: errors.ErrorTypeUnsupportedFormat},
		{name: "plain text", fileName: "notes.txt", mimeType: "text/plain", wantErr: errors.ErrorTypeUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pdf := &stubExtractor{format: FormatPDF, text: "pdf text"}
			docx := &stubExtractor{format: FormatDOCX, text: "docx text"}
			loader := NewLoader(WithExtractors(pdf, docx))

			doc, err := loader.Load(context.Background(), tt.fileName, tt.mimeType, []byte("data"))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, tt.wantErr))
				assert.Equal(t, errors.MsgUnsupportedFile, errors.UserMessage(err))
				assert.Zero(t, pdf.calls+docx.calls)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFormat, doc.Format)
			assert.Equal(t, tt.fileName, doc.FileName)
			assert.Equal(t, 4, doc.Size)
		})
	}
}

func TestLoader_EmptySelectionIsNoop(t *testing.T) {
	loader := NewLoader()
	doc, err := loader.Load(context.Background(), "", "", nil)
	assert.NoError(t, err)
	assert.Nil(t, doc)
}

func TestLoader_ExtractorFailureBecomesExtractionError(t *testing.T) {
	pdf := &stubExtractor{format: FormatPDF, err: fmt.Errorf("invalid xref")}
	loader := NewLoader(WithExtractors(pdf, &stubExtractor{format: FormatDOCX}))

	_, err := loader.Load(context.Background(), "cv.pdf", MIMETypePDF, []byte("%PDF"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeExtraction))
	assert.Contains(t, errors.UserMessage(err), "invalid xref")
}

func TestLoader_MaxFileSize(t *testing.T) {
	pdf := &stubExtractor{format: FormatPDF}
	loader := NewLoader(WithExtractors(pdf, &stubExtractor{format: FormatDOCX}), WithMaxFileSize(3))

	_, err := loader.Load(context.Background(), "cv.pdf", MIMETypePDF, []byte("1234"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.Zero(t, pdf.calls)
}

func TestLoader_RealDocuments(t *testing.T) {
	loader := NewLoader()

	doc, err := loader.Load(context.Background(), "cv.pdf", MIMETypePDF,
		buildPDF(t, [][]string{{"Jane Doe", "Python developer"}, {"Docker"}}))
	require.NoError(t, err)
	assert.Equal(t, 2, doc.PageCount)
	assert.Equal(t, "Jane Doe Python developerDocker", doc.Text)

	doc, err = loader.Load(context.Background(), "cv.docx", "", buildDOCX(t, docxBody))
	require.NoError(t, err)
	assert.Contains(t, doc.Text, "Jane Doe")
	assert.Contains(t, doc.Text, "Skills: Python\tGo")
}

func TestLoader_CorruptDocuments(t *testing.T) {
	loader := NewLoader()

	_, err := loader.Load(context.Background(), "cv.pdf", MIMETypePDF, []byte("not a pdf at all"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeExtraction))

	_, err = loader.Load(context.Background(), "cv.docx", "", []byte("not a zip"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeExtraction))
}
