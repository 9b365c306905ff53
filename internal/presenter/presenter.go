// Package presenter turns an analysis result into display-ready values.
package presenter

import (
	"strconv"
	"strings"

	"resumematch/internal/types"
)

// Placeholders shown when the analysis leaves a section empty.
const (
	NoMatchedKeywords = "No significant keywords matched."
	NoMissingKeywords = "No significant keywords were found missing. Great job!"
	NoSuggestions     = "No suggestions provided."
)

// View is the rendered state of the results panel.
type View struct {
	Score string // "82%"

	Matched        []string
	MatchedIsEmpty bool // Matched holds only the placeholder
	Missing        []string
	MissingIsEmpty bool

	Suggestions     string   // raw text, or the placeholder
	SuggestionLines []string // Suggestions split on newlines

	Loading       bool
	ResultVisible bool
}

// Present builds the view for result. It never fails: absent parts are
// replaced with placeholders.
func Present(result types.AnalysisResult) View {
	v := View{
		Score:         strconv.Itoa(result.Score) + "%",
		Loading:       false,
		ResultVisible: true,
	}

	v.Matched, v.MatchedIsEmpty = keywordsOr(result.MatchedKeywords, NoMatchedKeywords)
	v.Missing, v.MissingIsEmpty = keywordsOr(result.MissingKeywords, NoMissingKeywords)

	v.Suggestions = result.Suggestions
	if strings.TrimSpace(v.Suggestions) == "" {
		v.Suggestions = NoSuggestions
	}
	v.SuggestionLines = splitLines(v.Suggestions)

	return v
}

// Loading is the view while a check is in flight: the previous result is
// hidden.
func Loading() View {
	return View{Loading: true}
}

func keywordsOr(keywords []string, placeholder string) ([]string, bool) {
	if len(keywords) == 0 {
		return []string{placeholder}, true
	}
	return append([]string(nil), keywords...), false
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Split(s, "\n")
}
