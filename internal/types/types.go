package types

// AnalysisRequest is the input for one match check. It is built once per
// check and not modified afterwards.
type AnalysisRequest struct {
	JobDescription string `json:"jobDescription"`
	ResumeText     string `json:"resumeText"`
}

// AnalysisResult is the structured verdict returned by the AI.
type AnalysisResult struct {
	Score           int      `json:"score"`            // 0-100
	MatchedKeywords []string `json:"matched_keywords"` // present in both texts
	MissingKeywords []string `json:"missing_keywords"` // in the job description only
	Suggestions     string   `json:"suggestions"`      // newline separated
}

// Document is the outcome of extracting text from an uploaded file.
type Document struct {
	FileName  string `json:"fileName"`
	Format    string `json:"format"` // "pdf" or "docx"
	MIMEType  string `json:"mimeType,omitempty"`
	Size      int    `json:"size"`
	PageCount int    `json:"pageCount,omitempty"`
	Text      string `json:"text"`
}

// Session holds the state that lives between loading a résumé and running
// a check. ResumeText is only ever written by a successful extraction.
type Session struct {
	ResumeText string
	FileName   string
	Status     string
}

// HasResume reports whether a résumé has been loaded.
func (s *Session) HasResume() bool {
	return s != nil && s.ResumeText != ""
}

// AcceptDocument records a successfully extracted document.
func (s *Session) AcceptDocument(doc *Document) {
	s.ResumeText = doc.Text
	s.FileName = doc.FileName
	s.Status = "Successfully loaded: " + doc.FileName
}

// ResetFile clears the selected file after a failed load. Any previously
// loaded text is kept.
func (s *Session) ResetFile() {
	s.FileName = ""
	s.Status = ""
}

// AnalyzeTextRequest is the JSON body accepted by the analyze endpoint.
type AnalyzeTextRequest struct {
	JobDescription string `json:"jobDescription"`
	ResumeText     string `json:"resumeText"`
}
