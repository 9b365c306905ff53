package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"resumematch/internal/config"
	"resumematch/internal/errors"
)

const certificateWatcher = "certificate"

// CertReloader hands the current server certificate to the TLS stack and
// swaps it when the files on disk change. A failed reload keeps serving
// the previous certificate.
type CertReloader struct {
	mu   sync.RWMutex
	cert *tls.Certificate
	leaf *x509.Certificate

	certFile string
	keyFile  string

	reloadCount   int64
	reloadFailed  int64
	lastReload    time.Time
	lastReloadErr string

	logger *errors.Logger
}

// NewCertReloader loads the initial key pair from content (Vault) or files.
func NewCertReloader(cfg config.TLSConfig, logger *errors.Logger) (*CertReloader, error) {
	cr := &CertReloader{logger: logger}

	var (
		cert tls.Certificate
		err  error
	)
	switch {
	case cfg.CertContent != "" && cfg.KeyContent != "":
		cert, err = tls.X509KeyPair([]byte(cfg.CertContent), []byte(cfg.KeyContent))
		if err != nil {
			return nil, fmt.Errorf("failed to load server cert/key from content: %w", err)
		}
	case cfg.UsesFiles():
		cr.certFile, cr.keyFile = cfg.CertFile, cfg.KeyFile
		cert, err = tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load server cert/key from files: %w", err)
		}
	default:
		return nil, fmt.Errorf("TLS certificate and key are required (provide either files or content)")
	}

	if err := cr.store(cert); err != nil {
		return nil, err
	}
	return cr, nil
}

func (cr *CertReloader) store(cert tls.Certificate) error {
	if len(cert.Certificate) == 0 {
		return fmt.Errorf("certificate chain is empty")
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fmt.Errorf("failed to parse server certificate: %w", err)
	}

	cr.mu.Lock()
	cr.cert = &cert
	cr.leaf = leaf
	cr.mu.Unlock()
	return nil
}

// Reload re-reads the certificate files. Content based certificates cannot
// be reloaded.
func (cr *CertReloader) Reload() error {
	if cr.certFile == "" {
		return fmt.Errorf("certificate was not loaded from files")
	}

	cert, err := tls.LoadX509KeyPair(cr.certFile, cr.keyFile)
	if err == nil {
		err = cr.store(cert)
	}

	cr.mu.Lock()
	cr.reloadCount++
	cr.lastReload = time.Now()
	if err != nil {
		cr.reloadFailed++
		cr.lastReloadErr = err.Error()
	} else {
		cr.lastReloadErr = ""
	}
	cr.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to reload server certificate: %w", err)
	}
	if cr.logger != nil {
		cr.logger.Info("Server certificate reloaded", "cert_file", cr.certFile)
	}
	return nil
}

// GetCertificate implements tls.Config.GetCertificate.
func (cr *CertReloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	return cr.cert, nil
}

// TimeToExpiry returns how long the current certificate stays valid.
func (cr *CertReloader) TimeToExpiry() (time.Duration, error) {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	if cr.leaf == nil {
		return 0, fmt.Errorf("no certificate loaded")
	}
	return time.Until(cr.leaf.NotAfter), nil
}

// Files lists the files the certificate was loaded from.
func (cr *CertReloader) Files() []string {
	if cr.certFile == "" {
		return nil
	}
	return []string{cr.certFile, cr.keyFile}
}

// Status reports the certificate and reload state for /health.
func (cr *CertReloader) Status() map[string]any {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	status := map[string]any{
		"source":        "content",
		"reload_count":  cr.reloadCount,
		"reload_failed": cr.reloadFailed,
	}
	if cr.certFile != "" {
		status["source"] = "files"
	}
	if cr.leaf != nil {
		status["subject"] = cr.leaf.Subject.String()
		status["not_after"] = cr.leaf.NotAfter
	}
	if !cr.lastReload.IsZero() {
		status["last_reload_time"] = cr.lastReload
		status["last_reload_success"] = cr.lastReloadErr == ""
	}
	if cr.lastReloadErr != "" {
		status["last_reload_error"] = cr.lastReloadErr
	}
	return status
}

// configureTLS attaches a TLS config to server when TLS is enabled and
// starts the certificate file watcher if auto reload is on.
func (s *Server) configureTLS(server *http.Server) error {
	if !s.TLSConfig.Enabled() {
		s.Logger.Info("TLS disabled, serving plain HTTP")
		return nil
	}

	certs, err := NewCertReloader(s.TLSConfig, s.Logger)
	if err != nil {
		return err
	}
	s.certs = certs

	tlsConfig, err := buildTLSConfig(s.TLSConfig, certs)
	if err != nil {
		return err
	}
	server.TLSConfig = tlsConfig

	if s.TLSConfig.AutoReload && len(certs.Files()) > 0 {
		watcher, err := NewFileWatcher(certificateWatcher, certs.Files(), s.TLSConfig.DebounceDelay, s.reloadCertificate, s.Logger)
		if err != nil {
			return err
		}
		if err := watcher.Start(); err != nil {
			return fmt.Errorf("failed to start certificate watcher: %w", err)
		}
		s.fileWatchers = append(s.fileWatchers, watcher)
	}

	s.Logger.Info("TLS configured",
		"mode", s.TLSConfig.Mode,
		"min_version", s.TLSConfig.MinVersion,
		"auto_reload", s.TLSConfig.AutoReload)
	return nil
}

func (s *Server) reloadCertificate() {
	err := s.certs.Reload()
	s.metrics.RecordCertReload(context.Background(), err == nil)
	if err != nil {
		s.Logger.LogError(err, "Certificate reload failed, keeping the current certificate")
	}
}

// buildTLSConfig creates the server side tls.Config.
func buildTLSConfig(cfg config.TLSConfig, certs *CertReloader) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		GetCertificate: certs.GetCertificate,
		MinVersion:     minTLSVersion(cfg.MinVersion),
		ClientAuth:     tls.NoClientCert,
	}

	if cfg.Mode != "mutual" {
		return tlsConfig, nil
	}

	caCertPool, err := loadCACertificatePool(cfg)
	if err != nil {
		return nil, err
	}
	tlsConfig.ClientCAs = caCertPool
	tlsConfig.ClientAuth = clientAuthPolicy(cfg.ClientAuthPolicy)
	return tlsConfig, nil
}

// loadCACertificatePool loads the CA used to verify client certificates.
func loadCACertificatePool(cfg config.TLSConfig) (*x509.CertPool, error) {
	var caCert []byte
	switch {
	case cfg.CAContent != "":
		caCert = []byte(cfg.CAContent)
	case cfg.CAFile != "":
		data, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		caCert = data
	default:
		return nil, fmt.Errorf("CA certificate is required for mutual TLS mode (provide either caFile or caContent)")
	}

	pool := x509.NewCertPool()
	if ok := pool.AppendCertsFromPEM(caCert); !ok {
		return nil, fmt.Errorf("failed to append CA cert")
	}
	return pool, nil
}

func clientAuthPolicy(policy string) tls.ClientAuthType {
	switch policy {
	case "request":
		return tls.RequestClientCert
	case "verify":
		return tls.VerifyClientCertIfGiven
	default:
		return tls.RequireAndVerifyClientCert
	}
}

func minTLSVersion(v string) uint16 {
	if v == "1.3" {
		return tls.VersionTLS13
	}
	return tls.VersionTLS12
}
