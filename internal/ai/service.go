package ai

import (
	"context"
	"fmt"

	"resumematch/internal/config"
	"resumematch/internal/errors"
	"resumematch/internal/types"
)

// Service handles AI operations for résumé matching
type Service struct {
	Provider AIProvider // exported for the server's health and key rotation
	config   config.AIConfig
	logger   *errors.Logger
}

var _ Analyzer = (*Service)(nil)

// NewService creates the provider named in the configuration.
func NewService(cfg config.AIConfig, logger *errors.Logger, opts ...ProviderOption) (*Service, error) {
	logger.Debug("Initializing AI service",
		"provider", cfg.Provider,
		"model", cfg.Model,
		"timeout", cfg.Timeout,
		"max_retries", cfg.MaxRetries,
		"has_api_key", cfg.APIKey != "")

	var provider AIProvider
	switch cfg.Provider {
	case "gemini":
		p, err := NewGeminiProvider(cfg, logger, opts...)
		if err != nil {
			return nil, err
		}
		provider = p
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("Unsupported AI provider: %s", cfg.Provider), nil)
	}

	return &Service{
		Provider: provider,
		config:   cfg,
		logger:   logger,
	}, nil
}

// Analyze implements Analyzer.
func (s *Service) Analyze(ctx context.Context, req types.AnalysisRequest) (types.AnalysisResult, *TokenUsage, error) {
	return s.Provider.Analyze(ctx, req)
}

// GetModelInfo returns information about the AI model for health checks
func (s *Service) GetModelInfo(ctx context.Context) *ModelInfo {
	return s.Provider.GetModelInfo(ctx)
}

// Close releases provider resources.
func (s *Service) Close() error {
	return s.Provider.Close()
}
