package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resumematch/internal/ai"
	"resumematch/internal/extractor"
	"resumematch/internal/matcher"
	"resumematch/internal/observability"
)

const shutdownTimeout = 30 * time.Second

// Start runs the server until ctx is cancelled or SIGINT/SIGTERM arrives.
func (s *Server) Start(ctx context.Context) error {
	om, err := s.initializeObservability()
	if err != nil {
		return err
	}
	defer s.shutdownObservability(om)

	if err := s.initializeAnalyzer(om); err != nil {
		return err
	}
	defer s.closeAnalyzer()

	httpServer := s.setupHTTPServer(om)

	if err := s.configureTLS(httpServer); err != nil {
		return err
	}
	if err := s.startPromptWatcher(); err != nil {
		return err
	}
	if err := s.startKeyWatcher(); err != nil {
		return err
	}

	s.displayServerInfo()

	return s.startWithGracefulShutdown(ctx, httpServer)
}

// initializeObservability sets up observability components
func (s *Server) initializeObservability() (*observability.ObservabilityManager, error) {
	obsConfig := observability.GetObservabilityConfig(s.AppConfig, s.Version)

	om, err := observability.NewObservabilityManager(obsConfig, s.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	return om, nil
}

// shutdownObservability handles observability cleanup
func (s *Server) shutdownObservability(om *observability.ObservabilityManager) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := om.Shutdown(ctx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown observability")
	}
}

// initializeAnalyzer builds the provider and matcher unless they were
// injected, and wires both to the metrics.
func (s *Server) initializeAnalyzer(om *observability.ObservabilityManager) error {
	s.metrics = om.GetMetrics()
	s.tracer = om.Tracer("resumematch.api")

	if s.Provider == nil {
		service, err := ai.NewService(s.AppConfig.AI, s.Logger, ai.WithRetryObserver(s.metrics.RecordRetry))
		if err != nil {
			return fmt.Errorf("failed to create AI service: %w", err)
		}
		s.Provider = service.Provider
	}

	if s.Matcher == nil {
		loader := extractor.NewLoader(extractor.WithMaxFileSize(s.AppConfig.App.MaxFileSize))
		s.Matcher = matcher.New(loader, s.Provider, s.Logger, matcher.WithRecorder(s.metrics))
	}

	if !s.Provider.HasAPIKey() {
		s.Logger.Warn("No Gemini API key configured; checks will fail until one is provided")
	}
	return nil
}

func (s *Server) closeAnalyzer() {
	if s.Provider == nil {
		return
	}
	if err := s.Provider.Close(); err != nil {
		s.Logger.LogError(err, "Failed to close AI provider")
	}
}

// setupHTTPServer creates and configures the HTTP server
func (s *Server) setupHTTPServer(om *observability.ObservabilityManager) *http.Server {
	handler := om.HTTPMiddleware()(s.setupRoutes())

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.Host, s.Port),
		Handler:      handler,
		ReadTimeout:  s.ReadTimeout,
		WriteTimeout: s.WriteTimeout,
		IdleTimeout:  s.IdleTimeout,
	}
}

// startPromptWatcher reloads prompt files on change when enabled.
func (s *Server) startPromptWatcher() error {
	files := s.AppConfig.PromptFiles()
	if !s.AppConfig.Server.WatchPrompts || len(files) == 0 {
		return nil
	}

	watcher, err := NewFileWatcher("prompt", files, 0, s.reloadPrompts, s.Logger)
	if err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("failed to start prompt watcher: %w", err)
	}
	s.fileWatchers = append(s.fileWatchers, watcher)
	return nil
}

func (s *Server) reloadPrompts() {
	if err := s.AppConfig.LoadPrompts(); err != nil {
		s.Logger.LogError(err, "Prompt reload failed, keeping the previous prompts")
		return
	}
	s.Logger.Info("Prompts reloaded", "files", s.AppConfig.PromptFiles())
}

// startKeyWatcher polls Vault for a rotated Gemini key when configured.
func (s *Server) startKeyWatcher() error {
	path := s.AppConfig.Vault.Secrets.GeminiKey
	interval := s.AppConfig.Server.KeyRefreshInterval
	if s.Secrets == nil || path == "" || interval <= 0 {
		return nil
	}

	s.keyWatcher = NewKeyWatcher(s.Secrets, path, interval, s.Provider.SetAPIKey, s.Logger)
	if err := s.keyWatcher.Start(); err != nil {
		return fmt.Errorf("failed to start key watcher: %w", err)
	}
	return nil
}

// startWithGracefulShutdown starts the HTTP server and handles graceful shutdown
func (s *Server) startWithGracefulShutdown(ctx context.Context, server *http.Server) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.Logger.Info("Starting HTTP server",
			"address", server.Addr,
			"tls_enabled", server.TLSConfig != nil)

		var err error
		if server.TLSConfig != nil {
			// certificates come from TLSConfig.GetCertificate
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}

		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		s.stopBackground()
		return fmt.Errorf("server failed to start: %w", err)
	case sig := <-quit:
		s.Logger.Info("Received shutdown signal, starting graceful shutdown",
			"signal", sig.String())
	case <-ctx.Done():
		s.Logger.Info("Context cancelled, starting graceful shutdown")
	}

	return s.performGracefulShutdown(server)
}

// performGracefulShutdown handles the graceful shutdown process
func (s *Server) performGracefulShutdown(server *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.stopBackground()

	s.Logger.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown server gracefully, forcing close")
		return server.Close()
	}

	s.Logger.Info("Server shutdown completed successfully")
	return nil
}

// stopBackground stops the watchers and the rate limiter cleanup.
func (s *Server) stopBackground() {
	for _, fw := range s.fileWatchers {
		if err := fw.Stop(); err != nil {
			s.Logger.LogError(err, "Failed to stop file watcher")
		}
	}
	if s.keyWatcher != nil {
		if err := s.keyWatcher.Stop(); err != nil {
			s.Logger.LogError(err, "Failed to stop key watcher")
		}
	}
	if s.RateLimiter != nil {
		s.RateLimiter.Close()
		s.Logger.Info("Rate limiter cleaned up")
	}
}
