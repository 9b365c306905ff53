package extractor

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/ledongthuc/pdf"

	"resumematch/internal/errors"
)

// PDFExtractor reads text from PDF documents page by page.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

func (e *PDFExtractor) Format() string {
	return FormatPDF
}

// Extract joins the text fragments of each page with a single space and
// concatenates pages in order without a separator.
func (e *PDFExtractor) Extract(ctx context.Context, data []byte) (text string, pages int, err error) {
	// The decoder panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewExtractionError(errors.ErrCodeExtractionFailed,
				fmt.Sprintf(errors.MsgExtractionFailedF, "PDF", r), fmt.Errorf("pdf decoder panic: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("failed to open pdf: %w", err)
	}

	var b strings.Builder
	pages = reader.NumPage()
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", 0, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		b.WriteString(strings.Join(pageFragments(page), " "))
	}

	return b.String(), pages, nil
}

// baselineTolerance is how far, in text space units, a glyph may sit from
// the previous one and still belong to the same line.
const baselineTolerance = 1.0

// pageFragments returns one string per text line, in content stream order.
// Glyphs stay in the current fragment while their baseline does not move.
func pageFragments(page pdf.Page) []string {
	var (
		fragments []string
		current   strings.Builder
		baseline  float64
	)
	flush := func() {
		if current.Len() > 0 {
			fragments = append(fragments, current.String())
			current.Reset()
		}
	}

	for i, glyph := range page.Content().Text {
		if i > 0 && math.Abs(glyph.Y-baseline) > baselineTolerance {
			flush()
		}
		current.WriteString(glyph.S)
		baseline = glyph.Y
	}
	flush()
	return fragments
}
