package server

import (
	"fmt"
	"io"
	"os"
)

// displayServerInfo prints the endpoint and limit summary at startup.
func (s *Server) displayServerInfo() {
	s.writeServerInfo(os.Stdout)
}

func (s *Server) writeServerInfo(w io.Writer) {
	s.displayEndpoints(w)
	s.displayAuthInfo(w)
	s.displayRequestLimitInfo(w)
	s.displayRateLimitInfo(w)
	s.displayReloadInfo(w)
}

func (s *Server) displayEndpoints(w io.Writer) {
	fmt.Fprintln(w, "Available endpoints:")
	if !s.authEnabled() {
		fmt.Fprintln(w, "  GET  /             - Web form")
		fmt.Fprintln(w, "  POST /             - Web form submit")
	}
	fmt.Fprintln(w, "  GET  /health       - Health check")
	fmt.Fprintln(w, "  GET  /stats        - Server statistics")
	fmt.Fprintln(w, "  POST /api/extract  - Extract resume text (multipart: resume)")
	fmt.Fprintln(w, "  POST /api/check    - Score an uploaded resume (multipart: jobDescription, resume)")
	fmt.Fprintln(w, "  POST /api/analyze  - Score resume text (JSON: jobDescription, resumeText)")
}

func (s *Server) displayAuthInfo(w io.Writer) {
	if s.authEnabled() {
		fmt.Fprintf(w, "API authentication: ENABLED (%d keys configured)\n", len(s.APIKeys))
		fmt.Fprintln(w, "Include 'X-API-Key: <your-key>' header in requests to /api/*")
		fmt.Fprintln(w, "Web form: DISABLED while authentication is on")
	} else {
		fmt.Fprintln(w, "API authentication: DISABLED (no API keys configured)")
		fmt.Fprintln(w, "WARNING: API endpoints are publicly accessible!")
	}
}

func (s *Server) displayRequestLimitInfo(w io.Writer) {
	if s.MaxRequestSize > 0 {
		fmt.Fprintf(w, "Upload size limit: %d bytes (%.1f MB)\n", s.MaxRequestSize, float64(s.MaxRequestSize)/(1024*1024))
	} else {
		fmt.Fprintln(w, "Upload size limit: DISABLED")
	}
}

func (s *Server) displayRateLimitInfo(w io.Writer) {
	if s.RateLimit != nil && s.RateLimit.Enabled {
		fmt.Fprintf(w, "Rate limiting: ENABLED (%d requests/min, burst: %d)\n",
			s.RateLimit.RequestsPerMin, s.RateLimit.BurstCapacity)
		if s.RateLimit.ByAPIKey {
			fmt.Fprintln(w, "  - Per API key rate limiting enabled")
		}
		if s.RateLimit.ByIP {
			fmt.Fprintln(w, "  - Per IP address rate limiting enabled")
		}
	} else {
		fmt.Fprintln(w, "Rate limiting: DISABLED")
	}
}

func (s *Server) displayReloadInfo(w io.Writer) {
	for _, fw := range s.fileWatchers {
		fmt.Fprintf(w, "Auto-reload (%s): %v\n", fw.name, fw.GetWatchedFiles())
	}
	if s.keyWatcher != nil {
		fmt.Fprintf(w, "Gemini key rotation: polling %s every %s\n", s.keyWatcher.secretPath, s.keyWatcher.pollInterval)
	}
}
