package common

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumematch/internal/errors"
	"resumematch/internal/types"
)

func TestReadDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cv.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0600))

	in, err := NewFileProcessor(nil).ReadDocument(path)
	require.NoError(t, err)
	assert.Equal(t, "cv.pdf", in.Name)
	assert.Equal(t, "application/pdf", in.MIMEType)
	assert.Equal(t, []byte("%PDF-1.4"), in.Data)

	_, err = NewFileProcessor(nil).ReadDocument(filepath.Join(dir, "missing.docx"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestHandleOutput(t *testing.T) {
	var stdout bytes.Buffer
	oh := NewOutputHandler(nil)
	oh.stdout = &stdout

	result := types.AnalysisResult{Score: 82}
	require.NoError(t, oh.HandleOutput(result, CommandConfig{OutputFormat: "text"}))
	assert.Contains(t, stdout.String(), "82%")

	target := filepath.Join(t.TempDir(), "out", "result.json")
	require.NoError(t, oh.HandleOutput(result, CommandConfig{OutputFile: target, OutputFormat: "json"}))
	written, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(written), `"score": 82`)

	err = oh.HandleOutput(result, CommandConfig{OutputFormat: "yaml"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestRunCommand_StopsOnOperationError(t *testing.T) {
	opErr := fmt.Errorf("boom")
	err := RunCommand(context.Background(), nil, CommandConfig{OutputFormat: "json"},
		func(context.Context) (types.AnalysisResult, error) {
			return types.AnalysisResult{}, opErr
		})
	assert.Same(t, opErr, err)
}

func TestRunCommand_WritesFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "doc.txt")
	err := RunCommand(context.Background(), nil, CommandConfig{OutputFile: target, OutputFormat: "text"},
		func(context.Context) (*types.Document, error) {
			return &types.Document{FileName: "cv.docx", Format: "docx", Text: "Jane"}, nil
		})
	require.NoError(t, err)

	written, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "Jane\n", string(written))
}
