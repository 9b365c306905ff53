package ai

import (
	"fmt"

	"resumematch/internal/config"
)

// DefaultUserPrompt is the analysis instruction. The job description fills
// the first %s and the résumé text the second; both are embedded verbatim.
const DefaultUserPrompt = `Act as an expert Applicant Tracking System (ATS).
Analyze the provided resume against the job description.
Provide your analysis in a JSON format with the following structure:
{
  "score": <a number between 0 and 100 representing the match percentage>,
  "matched_keywords": [<an array of important keywords found in both the resume and job description>],
  "missing_keywords": [<an array of important keywords from the job description that are missing from the resume>],
  "suggestions": "<a string containing specific, actionable advice on how to improve the resume to better match the job description>"
}

Here is the Job Description:
---
%s
---

Here is the Resume Content:
---
%s
---`

// DefaultSystemPrompt is empty: the user prompt alone carries the
// instruction unless an operator configures one.
const DefaultSystemPrompt = ""

// buildPrompts returns the system instruction and the filled user prompt.
func buildPrompts(cfg config.PromptConfig, jobDescription, resumeText string) (string, string) {
	loaded := config.GetLoadedPrompts()

	system := resolvePrompt(loaded.System, cfg.System, DefaultSystemPrompt)
	user := resolvePrompt(loaded.User, cfg.User, DefaultUserPrompt)

	return system, fmt.Sprintf(user, jobDescription, resumeText)
}

// resolvePrompt picks the first non-empty prompt: loaded from a file, set in
// configuration, built in.
func resolvePrompt(loadedFromFile, fromConfig, fromDefault string) string {
	if loadedFromFile != "" {
		return loadedFromFile
	}
	if fromConfig != "" {
		return fromConfig
	}
	return fromDefault
}
