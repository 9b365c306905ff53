package extractor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainText(t *testing.T) {
	text, err := plainText(docxBody)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe\n\nSkills: Python\tGo\n\nLine one\nLine two", text)
}

func TestPlainText_Malformed(t *testing.T) {
	_, err := plainText("<w:document><w:body>")
	assert.Error(t, err)
}

func TestDOCXExtractor_Extract(t *testing.T) {
	text, pages, err := NewDOCXExtractor().Extract(context.Background(), buildDOCX(t, docxBody))
	require.NoError(t, err)
	assert.Zero(t, pages)
	assert.Contains(t, text, "Line one\nLine two")
}
