package utils

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Generic type sent by clients that do not know better.
const MIMETypeOctetStream = "application/octet-stream"

// ValidateInputFile checks if a file exists and is readable
func ValidateInputFile(filename string) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	info, err := os.Stat(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file does not exist: %s", filename)
		}
		return fmt.Errorf("cannot access file %s: %w", filename, err)
	}

	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", filename)
	}

	// Check if file is readable
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("cannot read file %s: %w", filename, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close file %s: %w", filename, err)
	}

	return nil
}

// ValidateOutputFile checks if the output file path is valid
func ValidateOutputFile(filename string) error {
	if filename == "" {
		return nil // stdout is valid
	}

	dir := filepath.Dir(filename)
	if dir != "." {
		// Check if directory exists or can be created
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("cannot create directory %s: %w", dir, err)
			}
		}
	}

	return nil
}

// GetFileExtension returns the file extension in lowercase
func GetFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	return strings.ToLower(ext)
}

// IsSupportedDocument reports whether the file name looks like a résumé the
// loader can read.
func IsSupportedDocument(filename string) bool {
	switch GetFileExtension(filename) {
	case ".pdf", ".docx":
		return true
	}
	return false
}

// DetectMIMEType guesses the media type of a file from its extension, then
// from its leading bytes. Parameters such as charset are dropped.
func DetectMIMEType(filename string, data []byte) string {
	if byExt := mime.TypeByExtension(GetFileExtension(filename)); byExt != "" {
		return baseMediaType(byExt)
	}
	if len(data) > 0 {
		return baseMediaType(http.DetectContentType(data))
	}
	return MIMETypeOctetStream
}

// DeclaredOrDetectedMIMEType keeps a client-declared type unless it is
// missing or generic.
func DeclaredOrDetectedMIMEType(declared, filename string, data []byte) string {
	declared = baseMediaType(declared)
	if declared != "" && declared != MIMETypeOctetStream {
		return declared
	}
	return DetectMIMEType(filename, data)
}

func baseMediaType(v string) string {
	if v == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(v)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(v))
	}
	return mediaType
}

// FormatFileSize returns a human-readable file size
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
