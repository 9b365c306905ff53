package ai

import (
	"context"

	"resumematch/internal/types"
)

// Analyzer scores a résumé against a job description.
type Analyzer interface {
	Analyze(ctx context.Context, req types.AnalysisRequest) (types.AnalysisResult, *TokenUsage, error)
}

// AIProvider is an Analyzer backed by a remote model.
type AIProvider interface {
	Analyzer
	GetModelInfo(ctx context.Context) *ModelInfo
	GetCircuitBreakerStats() map[string]any
	// SetAPIKey replaces the credential used for subsequent requests.
	SetAPIKey(key string)
	HasAPIKey() bool
	Close() error
}

// TokenUsage represents token usage information from AI responses
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// ModelInfo represents information about the AI model
type ModelInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version,omitempty"`
	Available   bool   `json:"available"`
	Error       string `json:"error,omitempty"`
}
