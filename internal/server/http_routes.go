package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

type requestIDKeyType struct{}

var requestIDKey = requestIDKeyType{}

// setupRoutes configures all HTTP routes and middleware
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	rateLimit := s.rateLimitMiddleware()
	sizeLimit := s.requestSizeLimitMiddleware()

	api := func(h http.HandlerFunc) http.HandlerFunc {
		return requestIDMiddleware(rateLimit(s.authMiddleware(sizeLimit(h))))
	}

	mux.HandleFunc("GET /health", requestIDMiddleware(s.healthHandler))
	mux.HandleFunc("GET /stats", requestIDMiddleware(s.statsHandler))
	mux.HandleFunc("POST /api/extract", api(s.extractHandler))
	mux.HandleFunc("POST /api/check", api(s.checkHandler))
	mux.HandleFunc("POST /api/analyze", api(s.analyzeHandler))

	// Browsers cannot send the API key header, so the form is only served
	// on open deployments.
	if !s.authEnabled() {
		mux.HandleFunc("GET /{$}", requestIDMiddleware(s.pageHandler))
		mux.HandleFunc("POST /{$}", requestIDMiddleware(rateLimit(sizeLimit(s.pageSubmitHandler))))
	}

	return mux
}

func (s *Server) authEnabled() bool {
	return len(s.APIKeys) > 0
}

// requestIDMiddleware tags every request with an ID, reusing the caller's
// X-Request-ID when it is a valid UUID.
func requestIDMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	}
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// requestAPIKey returns the X-API-Key header or, failing that, a Bearer token.
func requestAPIKey(r *http.Request) string {
	if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
		return apiKey
	}
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return after
	}
	return ""
}

// authMiddleware provides API key authentication
func (s *Server) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authEnabled() {
			next(w, r)
			return
		}

		apiKey := requestAPIKey(r)
		if apiKey == "" {
			s.Logger.Info("Authentication failed: missing API key",
				"endpoint", r.URL.Path,
				"client_ip", getClientIP(r),
				"request_id", requestIDFromContext(r.Context()))
			writeErrorResponse(w, "unauthorized", "X-API-Key header or Authorization Bearer token required", http.StatusUnauthorized)
			return
		}

		if !s.APIKeys[apiKey] {
			s.Logger.Info("Authentication failed: invalid API key",
				"endpoint", r.URL.Path,
				"client_ip", getClientIP(r),
				"api_key_prefix", maskAPIKey(apiKey),
				"request_id", requestIDFromContext(r.Context()))
			writeErrorResponse(w, "unauthorized", "Invalid API key", http.StatusUnauthorized)
			return
		}

		s.Logger.Debug("API authentication successful",
			"endpoint", r.URL.Path,
			"api_key_prefix", maskAPIKey(apiKey))

		next(w, r)
	}
}

// requestSizeLimitMiddleware limits the size of incoming requests
func (s *Server) requestSizeLimitMiddleware() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if s.MaxRequestSize > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, s.maxBodySize())
			}
			next(w, r)
		}
	}
}

// maxBodySize leaves room for the multipart envelope and the job
// description on top of the largest accepted file.
func (s *Server) maxBodySize() int64 {
	return s.MaxRequestSize + multipartOverhead
}

// maskAPIKey masks an API key for logging (shows only first 8 characters)
func maskAPIKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return "****"
	}
	return apiKey[:8] + "****"
}
