package ai

import (
	"google.golang.org/genai"

	"resumematch/internal/types"
)

// generateContentRequest is the JSON body of a generateContent call.
type generateContentRequest struct {
	Contents          []*genai.Content `json:"contents"`
	SystemInstruction *genai.Content   `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	ResponseMIMEType string        `json:"responseMimeType"`
	ResponseSchema   *genai.Schema `json:"responseSchema,omitempty"`
	Temperature      *float32      `json:"temperature,omitempty"`
}

// analysisSchema constrains the model output to the AnalysisResult shape.
func analysisSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"score": {
				Type:        genai.TypeInteger,
				Description: "Match percentage between 0 and 100",
			},
			"matched_keywords": {
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeString},
			},
			"missing_keywords": {
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeString},
			},
			"suggestions": {Type: genai.TypeString},
		},
		Required:         []string{"score", "matched_keywords", "missing_keywords", "suggestions"},
		PropertyOrdering: []string{"score", "matched_keywords", "missing_keywords", "suggestions"},
	}
}

func (g *GeminiProvider) buildRequest(req types.AnalysisRequest) generateContentRequest {
	system, user := buildPrompts(g.config.Prompts, req.JobDescription, req.ResumeText)

	body := generateContentRequest{
		Contents: []*genai.Content{genai.NewContentFromText(user, genai.RoleUser)},
		GenerationConfig: generationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   analysisSchema(),
		},
	}
	if system != "" {
		body.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if g.config.Temperature > 0 {
		t := g.config.Temperature
		body.GenerationConfig.Temperature = &t
	}
	return body
}
