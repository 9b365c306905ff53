package server

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"resumematch/internal/errors"
)

// Certificates expiring sooner than this make the service degraded.
const (
	certCriticalThreshold = 24 * time.Hour
	certWarningThreshold  = 7 * 24 * time.Hour
)

// healthHandler reports analyzer readiness, breaker state and certificates.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":  "healthy",
		"service": "resumematch",
		"version": s.Version,
	}
	healthy := true

	if s.Provider != nil {
		model := s.Provider.GetModelInfo(r.Context())
		response["analyzer"] = map[string]any{
			"api_key_configured": s.Provider.HasAPIKey(),
			"model":              model,
		}
		response["circuit_breakers"] = s.Provider.GetCircuitBreakerStats()
		healthy = healthy && model.Available
	}

	if certStatus := s.checkCertificateHealth(); certStatus != nil {
		response["certificates"] = certStatus
		if certHealthy, ok := certStatus["healthy"].(bool); ok && !certHealthy {
			healthy = false
		}
	}

	if s.keyWatcher != nil {
		response["key_rotation"] = s.keyWatcher.Status()
	}

	status := http.StatusOK
	if !healthy {
		response["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, response)
}

// checkCertificateHealth checks the health of TLS certificates
func (s *Server) checkCertificateHealth() map[string]any {
	if s.certs == nil {
		return nil
	}

	certStatus := s.certs.Status()

	timeToExpiry, err := s.certs.TimeToExpiry()
	if err != nil {
		certStatus["healthy"] = false
		certStatus["error"] = fmt.Sprintf("Failed to check certificate expiry: %v", err)
		return certStatus
	}

	certStatus["time_to_expiry_hours"] = int(timeToExpiry.Hours())
	certStatus["time_to_expiry"] = timeToExpiry.String()

	switch {
	case timeToExpiry <= 0:
		certStatus["healthy"] = false
		certStatus["status"] = "expired"
		certStatus["message"] = "Certificate has expired"
	case timeToExpiry <= certCriticalThreshold:
		certStatus["healthy"] = false
		certStatus["status"] = "critical"
		certStatus["message"] = "Certificate expires within 24 hours"
	case timeToExpiry <= certWarningThreshold:
		certStatus["healthy"] = true
		certStatus["status"] = "warning"
		certStatus["message"] = "Certificate expires within 7 days"
	default:
		certStatus["healthy"] = true
		certStatus["status"] = "ok"
		certStatus["message"] = "Certificate is valid"
	}

	watched := []string{}
	running := false
	for _, fw := range s.fileWatchers {
		if fw.name != certificateWatcher {
			continue
		}
		watched = append(watched, fw.GetWatchedFiles()...)
		running = running || fw.IsRunning()
	}
	certStatus["auto_reload"] = map[string]any{
		"enabled":       s.TLSConfig.AutoReload,
		"running":       running,
		"watched_files": watched,
	}

	return certStatus
}

// statsHandler provides server statistics including rate limiting info
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"service": "resumematch",
		"version": s.Version,
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
			"auth_enabled":           s.authEnabled(),
			"api_keys_configured":    len(s.APIKeys),
			"tls_mode":               s.TLSConfig.Mode,
		},
	}

	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{
			"enabled": false,
		}
	}

	if s.RateLimit != nil {
		response["rate_limit_config"] = map[string]any{
			"enabled":          s.RateLimit.Enabled,
			"requests_per_min": s.RateLimit.RequestsPerMin,
			"burst_capacity":   s.RateLimit.BurstCapacity,
			"by_ip":            s.RateLimit.ByIP,
			"by_api_key":       s.RateLimit.ByAPIKey,
		}
	}

	s.writeJSON(w, http.StatusOK, response)
}

// parseJSONRequest parses JSON request body into the provided struct
func parseJSONRequest(r *http.Request, v any) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "Content-Type must be application/json", nil)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return requestError(err)
	}
	defer func() { _ = r.Body.Close() }()

	if err := json.Unmarshal(body, v); err != nil {
		var syntaxErr *json.SyntaxError
		if stderrors.As(err, &syntaxErr) {
			return errors.NewValidationError(errors.ErrCodeInvalidRequest,
				fmt.Sprintf("Invalid JSON at offset %d", syntaxErr.Offset), err)
		}
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "Invalid JSON request body", err)
	}

	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.LogError(err, "Failed to encode response")
	}
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, errorType, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errorType,
		Message: message,
	})
}
