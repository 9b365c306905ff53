package formatters

import (
	"encoding/json"
	"fmt"
	"html"
	"sort"
	"strings"

	"resumematch/internal/presenter"
	"resumematch/internal/types"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	// Register default formatters
	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("text", "AnalysisResult", &ResultTextFormatter{})
	registry.RegisterFormatter("markdown", "AnalysisResult", &ResultMarkdownFormatter{})
	registry.RegisterFormatter("html", "AnalysisResult", &ResultHTMLFormatter{})
	registry.RegisterFormatter("text", "Document", &DocumentTextFormatter{})
	registry.RegisterFormatter("markdown", "Document", &DocumentMarkdownFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	// Try specific formatter first
	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		// Fall back to generic formatter
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// Supports reports whether format can render values of dataType.
func (fr *FormatterRegistry) Supports(format, dataType string) bool {
	byType, ok := fr.formatters[format]
	if !ok {
		return false
	}
	_, specific := byType[dataType]
	_, generic := byType["any"]
	return specific || generic
}

// GetSupportedFormats returns all supported formats, sorted.
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	sort.Strings(formats)
	return formats
}

func getDataType(data any) string {
	switch data.(type) {
	case types.AnalysisResult, *types.AnalysisResult:
		return "AnalysisResult"
	case types.Document, *types.Document:
		return "Document"
	default:
		return "any"
	}
}

func asResult(data any) (types.AnalysisResult, error) {
	switch r := data.(type) {
	case types.AnalysisResult:
		return r, nil
	case *types.AnalysisResult:
		if r != nil {
			return *r, nil
		}
	}
	return types.AnalysisResult{}, fmt.Errorf("expected AnalysisResult, got %T", data)
}

func asDocument(data any) (types.Document, error) {
	switch d := data.(type) {
	case types.Document:
		return d, nil
	case *types.Document:
		if d != nil {
			return *d, nil
		}
	}
	return types.Document{}, fmt.Errorf("expected Document, got %T", data)
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData) + "\n", nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// ResultTextFormatter renders an analysis for the terminal.
type ResultTextFormatter struct{}

func (rtf *ResultTextFormatter) Format(data any) (string, error) {
	result, err := asResult(data)
	if err != nil {
		return "", err
	}
	view := presenter.Present(result)

	var output strings.Builder

	output.WriteString("=== MATCH SCORE ===\n")
	output.WriteString(view.Score)
	output.WriteString("\n\n")

	output.WriteString("=== MATCHED KEYWORDS ===\n")
	writeList(&output, view.Matched, view.MatchedIsEmpty, "- ")
	output.WriteString("\n")

	output.WriteString("=== MISSING KEYWORDS ===\n")
	writeList(&output, view.Missing, view.MissingIsEmpty, "- ")
	output.WriteString("\n")

	output.WriteString("=== SUGGESTIONS ===\n")
	output.WriteString(strings.Join(view.SuggestionLines, "\n"))
	output.WriteString("\n")

	return output.String(), nil
}

func (rtf *ResultTextFormatter) SupportedType() string {
	return "AnalysisResult"
}

// ResultMarkdownFormatter renders an analysis as markdown.
type ResultMarkdownFormatter struct{}

func (rmf *ResultMarkdownFormatter) Format(data any) (string, error) {
	result, err := asResult(data)
	if err != nil {
		return "", err
	}
	view := presenter.Present(result)

	var output strings.Builder

	output.WriteString("# Resume Match\n\n")
	output.WriteString(fmt.Sprintf("**Score:** %s\n\n", view.Score))

	output.WriteString("## Matched Keywords\n\n")
	writeList(&output, view.Matched, view.MatchedIsEmpty, "- ")
	output.WriteString("\n")

	output.WriteString("## Missing Keywords\n\n")
	writeList(&output, view.Missing, view.MissingIsEmpty, "- ")
	output.WriteString("\n")

	output.WriteString("## Suggestions\n\n")
	// Two trailing spaces force a markdown line break.
	output.WriteString(strings.Join(view.SuggestionLines, "  \n"))
	output.WriteString("\n")

	return output.String(), nil
}

func (rmf *ResultMarkdownFormatter) SupportedType() string {
	return "AnalysisResult"
}

// ResultHTMLFormatter renders the results panel as an HTML fragment.
type ResultHTMLFormatter struct{}

func (rhf *ResultHTMLFormatter) Format(data any) (string, error) {
	result, err := asResult(data)
	if err != nil {
		return "", err
	}
	view := presenter.Present(result)

	var output strings.Builder

	output.WriteString("<section class=\"results\">\n")
	output.WriteString(fmt.Sprintf("<div class=\"score\">%s</div>\n", html.EscapeString(view.Score)))
	writeHTMLList(&output, "matched", view.Matched, view.MatchedIsEmpty)
	writeHTMLList(&output, "missing", view.Missing, view.MissingIsEmpty)
	output.WriteString("<p class=\"suggestions\">")
	output.WriteString(SuggestionsHTML(view.SuggestionLines))
	output.WriteString("</p>\n</section>\n")

	return output.String(), nil
}

func (rhf *ResultHTMLFormatter) SupportedType() string {
	return "AnalysisResult"
}

// SuggestionsHTML escapes each line and joins them with <br>.
func SuggestionsHTML(lines []string) string {
	escaped := make([]string, len(lines))
	for i, line := range lines {
		escaped[i] = html.EscapeString(line)
	}
	return strings.Join(escaped, "<br>")
}

// DocumentTextFormatter prints the extracted text only, so it can be piped.
type DocumentTextFormatter struct{}

func (dtf *DocumentTextFormatter) Format(data any) (string, error) {
	doc, err := asDocument(data)
	if err != nil {
		return "", err
	}
	if strings.HasSuffix(doc.Text, "\n") {
		return doc.Text, nil
	}
	return doc.Text + "\n", nil
}

func (dtf *DocumentTextFormatter) SupportedType() string {
	return "Document"
}

// DocumentMarkdownFormatter adds a short header to the extracted text.
type DocumentMarkdownFormatter struct{}

func (dmf *DocumentMarkdownFormatter) Format(data any) (string, error) {
	doc, err := asDocument(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder
	output.WriteString(fmt.Sprintf("# %s\n\n", doc.FileName))
	output.WriteString(fmt.Sprintf("- **Format:** %s\n", strings.ToUpper(doc.Format)))
	if doc.PageCount > 0 {
		output.WriteString(fmt.Sprintf("- **Pages:** %d\n", doc.PageCount))
	}
	output.WriteString(fmt.Sprintf("- **Characters:** %d\n\n", len([]rune(doc.Text))))
	output.WriteString("```text\n")
	output.WriteString(doc.Text)
	output.WriteString("\n```\n")

	return output.String(), nil
}

func (dmf *DocumentMarkdownFormatter) SupportedType() string {
	return "Document"
}

// writeList writes one item per line. A placeholder is written bare.
func writeList(b *strings.Builder, items []string, placeholder bool, bullet string) {
	for _, item := range items {
		if !placeholder {
			b.WriteString(bullet)
		}
		b.WriteString(item)
		b.WriteString("\n")
	}
}

func writeHTMLList(b *strings.Builder, class string, items []string, placeholder bool) {
	if placeholder {
		class += " placeholder"
	}
	b.WriteString(fmt.Sprintf("<ul class=\"%s\">", class))
	for _, item := range items {
		b.WriteString("<li>")
		b.WriteString(html.EscapeString(item))
		b.WriteString("</li>")
	}
	b.WriteString("</ul>\n")
}

// Global formatter registry
var GlobalRegistry = NewFormatterRegistry()
