package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/genai"

	"resumematch/internal/config"
	"resumematch/internal/errors"
	"resumematch/internal/types"
)

// RetryObserver is told about every retry before it is sent. attempt is
// 1 for the first retry.
type RetryObserver func(ctx context.Context, attempt int)

// GeminiProvider implements AIProvider against the Generative Language REST
// API. The key travels in the query string.
type GeminiProvider struct {
	config         config.AIConfig
	baseURL        *url.URL
	httpClient     *http.Client
	retryClient    *retryablehttp.Client
	circuitBreaker *AICircuitBreaker
	modelBreaker   *ModelCircuitBreaker
	logger         *errors.Logger
	onRetry        RetryObserver

	mu     sync.RWMutex
	apiKey string
}

var _ AIProvider = (*GeminiProvider)(nil)

const defaultModelCheckTimeout = 10 * time.Second

// ProviderOption customises a GeminiProvider.
type ProviderOption func(*providerOptions)

type providerOptions struct {
	httpClient *http.Client
	backoff    retryablehttp.Backoff
	onRetry    RetryObserver
}

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(c *http.Client) ProviderOption {
	return func(o *providerOptions) { o.httpClient = c }
}

// WithBackoff replaces ExponentialBackoff.
func WithBackoff(b retryablehttp.Backoff) ProviderOption {
	return func(o *providerOptions) { o.backoff = b }
}

// WithRetryObserver registers a callback invoked before each retry.
func WithRetryObserver(fn RetryObserver) ProviderOption {
	return func(o *providerOptions) { o.onRetry = fn }
}

// NewGeminiProvider creates a provider. A blank API key is accepted here and
// reported when Analyze is called.
func NewGeminiProvider(cfg config.AIConfig, logger *errors.Logger, opts ...ProviderOption) (*GeminiProvider, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("Invalid AI base URL: %q", cfg.BaseURL), err)
	}

	o := providerOptions{backoff: ExponentialBackoff}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	g := &GeminiProvider{
		config:         cfg,
		baseURL:        base,
		httpClient:     o.httpClient,
		circuitBreaker: NewAICircuitBreaker(cfg.CircuitBreaker, logger),
		modelBreaker:   NewModelCircuitBreaker(cfg.CircuitBreaker, logger),
		logger:         logger,
		onRetry:        o.onRetry,
		apiKey:         strings.TrimSpace(cfg.APIKey),
	}
	g.retryClient = newRetryClient(o.httpClient, cfg.MaxRetries, cfg.RetryWaitMin, cfg.RetryWaitMax, o.backoff)
	g.retryClient.RequestLogHook = g.logAttempt

	return g, nil
}

// SetAPIKey replaces the credential used for subsequent requests.
func (g *GeminiProvider) SetAPIKey(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.apiKey = strings.TrimSpace(key)
}

func (g *GeminiProvider) currentAPIKey() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.apiKey
}

// HasAPIKey reports whether a credential is configured.
func (g *GeminiProvider) HasAPIKey() bool {
	return g.currentAPIKey() != ""
}

// endpoint builds {base}/models/{model}{suffix}?key={apiKey}.
func (g *GeminiProvider) endpoint(apiKey, suffix string) string {
	u := *g.baseURL
	u.Path = u.Path + "/models/" + g.config.Model + suffix
	u.RawQuery = url.Values{"key": {apiKey}}.Encode()
	return u.String()
}

func (g *GeminiProvider) logAttempt(_ retryablehttp.Logger, req *http.Request, attempt int) {
	if attempt == 0 {
		return
	}
	if g.logger != nil {
		g.logger.Warn("Retrying analysis request",
			"attempt", attempt+1,
			"max_attempts", g.config.MaxRetries+1,
			"model", g.config.Model)
	}
	if g.onRetry != nil {
		g.onRetry(req.Context(), attempt)
	}
}

// Analyze sends one generateContent request (with retries) and decodes the
// model's JSON verdict.
func (g *GeminiProvider) Analyze(ctx context.Context, req types.AnalysisRequest) (types.AnalysisResult, *TokenUsage, error) {
	tracer := otel.Tracer("resumematch.ai.gemini")
	ctx, span := tracer.Start(ctx, "gemini.analyze")
	defer span.End()

	span.SetAttributes(
		attribute.String("ai.provider", "gemini"),
		attribute.String("ai.model", g.config.Model),
		attribute.Int("input.job_length", len(req.JobDescription)),
		attribute.Int("input.resume_length", len(req.ResumeText)),
	)

	fail := func(err error) (types.AnalysisResult, *TokenUsage, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, errors.UserMessage(err))
		span.SetAttributes(attribute.Bool("success", false))
		return types.AnalysisResult{}, nil, err
	}

	apiKey := g.currentAPIKey()
	if apiKey == "" {
		return fail(errors.NewConfigError(errors.ErrCodeMissingAPIKey, errors.MsgMissingAPIKey, nil))
	}

	body, err := json.Marshal(g.buildRequest(req))
	if err != nil {
		return fail(errors.NewInternalError(errors.ErrCodeInvalidRequest, "Failed to encode analysis request", err))
	}

	resp, err := g.circuitBreaker.Execute(func() (*genai.GenerateContentResponse, error) {
		return g.generateContent(ctx, apiKey, body)
	})
	if err != nil {
		return fail(err)
	}

	text, err := responseText(resp)
	if err != nil {
		return fail(err)
	}

	result, err := parseAnalysis(text)
	if err != nil {
		if g.logger != nil {
			g.logger.Debug("Unparseable analysis text", "raw_length", len(text))
		}
		return fail(err)
	}

	usage := extractTokenUsage(resp)
	if usage != nil {
		span.SetAttributes(
			attribute.Int64("ai.tokens.input", usage.InputTokens),
			attribute.Int64("ai.tokens.output", usage.OutputTokens),
			attribute.Int64("ai.tokens.total", usage.TotalTokens),
		)
	}
	span.SetAttributes(
		attribute.Bool("success", true),
		attribute.Int("analysis.score", result.Score),
		attribute.Int("analysis.matched", len(result.MatchedKeywords)),
		attribute.Int("analysis.missing", len(result.MissingKeywords)),
	)
	return result, usage, nil
}

// generateContent performs the retried POST and decodes the envelope.
func (g *GeminiProvider) generateContent(ctx context.Context, apiKey string, body []byte) (*genai.GenerateContentResponse, error) {
	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(apiKey, ":generateContent"), body)
	if err != nil {
		return nil, errors.NewAPIError(errors.ErrCodeRequestFailed, errors.MsgRequestFailed, 0, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.retryClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var envelope genai.GenerateContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, errors.NewResponseShapeError(errors.ErrCodeUnexpectedShape, errors.MsgUnexpectedShape, err)
	}
	return &envelope, nil
}

// responseText returns candidates[0].content.parts[0].text.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	shapeErr := func(path string) error {
		return errors.NewResponseShapeError(errors.ErrCodeUnexpectedShape, errors.MsgUnexpectedShape, nil).
			WithContext("missing", path)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return "", shapeErr("candidates[0]")
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return "", shapeErr("candidates[0].content")
	}
	if len(content.Parts) == 0 || content.Parts[0] == nil {
		return "", shapeErr("candidates[0].content.parts[0]")
	}
	return content.Parts[0].Text, nil
}

// analysisPayload accepts fractional scores, which the model occasionally
// produces despite the schema.
type analysisPayload struct {
	Score           *float64 `json:"score"`
	MatchedKeywords []string `json:"matched_keywords"`
	MissingKeywords []string `json:"missing_keywords"`
	Suggestions     string   `json:"suggestions"`
}

// parseAnalysis decodes the model text. Missing fields stay zero and are
// filled with placeholders at display time.
func parseAnalysis(text string) (types.AnalysisResult, error) {
	raw := strings.TrimSpace(stripCodeFence(text))
	if !strings.HasPrefix(raw, "{") {
		return types.AnalysisResult{}, errors.NewParseError(errors.ErrCodeInvalidAnalysis, errors.MsgInvalidAnalysis,
			fmt.Errorf("analysis is not a JSON object"))
	}

	var payload analysisPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return types.AnalysisResult{}, errors.NewParseError(errors.ErrCodeInvalidAnalysis, errors.MsgInvalidAnalysis, err)
	}

	result := types.AnalysisResult{
		MatchedKeywords: payload.MatchedKeywords,
		MissingKeywords: payload.MissingKeywords,
		Suggestions:     payload.Suggestions,
	}
	if payload.Score != nil {
		result.Score = int(math.Round(*payload.Score))
	}
	return result, nil
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return s
}

// GetModelInfo checks the readiness and availability of the configured model
func (g *GeminiProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	info := &ModelInfo{Name: g.config.Model}

	apiKey := g.currentAPIKey()
	if apiKey == "" {
		info.Error = errors.MsgMissingAPIKey
		return info
	}

	timeout := g.config.ModelCheck
	if timeout <= 0 {
		timeout = defaultModelCheckTimeout
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	model, err := g.modelBreaker.Execute(func() (*genai.Model, error) {
		return g.fetchModel(checkCtx, apiKey)
	})
	if err != nil {
		info.Error = fmt.Sprintf("Failed to get model info: %s", errors.UserMessage(err))
		if g.logger != nil {
			g.logger.Warn("Model availability check failed", "model", g.config.Model, "error", err.Error())
		}
		return info
	}

	info.Available = true
	info.DisplayName = model.DisplayName
	info.Version = model.Version
	return info
}

// fetchModel issues a single GET without retries.
func (g *GeminiProvider) fetchModel(ctx context.Context, apiKey string) (*genai.Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint(apiKey, ""), nil)
	if err != nil {
		return nil, errors.NewAPIError(errors.ErrCodeRequestFailed, errors.MsgRequestFailed, 0, err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewAPIError(errors.ErrCodeRequestFailed, errors.MsgRequestFailed, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if c := Classify(resp, nil); c.Verdict != VerdictSuccess {
		return nil, errors.NewAPIError(errors.ErrCodeAPIStatus, fmt.Sprintf(errors.MsgAPIStatus, resp.StatusCode), resp.StatusCode, nil)
	}

	var model genai.Model
	if err := json.NewDecoder(resp.Body).Decode(&model); err != nil {
		return nil, errors.NewResponseShapeError(errors.ErrCodeUnexpectedShape, errors.MsgUnexpectedShape, err)
	}
	return &model, nil
}

// GetCircuitBreakerStats returns circuit breaker statistics
func (g *GeminiProvider) GetCircuitBreakerStats() map[string]any {
	return map[string]any{
		"ai_operations":    g.circuitBreaker.GetStats(),
		"model_operations": g.modelBreaker.GetStats(),
		"overall_healthy":  g.circuitBreaker.IsHealthy() && g.modelBreaker.IsHealthy(),
	}
}

// Close releases idle connections.
func (g *GeminiProvider) Close() error {
	g.httpClient.CloseIdleConnections()
	return nil
}

// extractTokenUsage extracts token usage information from Gemini API response
func extractTokenUsage(result *genai.GenerateContentResponse) *TokenUsage {
	if result == nil || result.UsageMetadata == nil {
		return nil
	}

	usage := result.UsageMetadata
	return &TokenUsage{
		InputTokens:  int64(usage.PromptTokenCount),
		OutputTokens: int64(usage.CandidatesTokenCount),
		TotalTokens:  int64(usage.TotalTokenCount),
	}
}
