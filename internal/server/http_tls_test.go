package server

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumematch/internal/config"
)

// selfSignedPair returns a PEM encoded certificate and key valid for validFor.
func selfSignedPair(t *testing.T, commonName string, validFor time.Duration) (certPEM, keyPEM []byte) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(validFor),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		DNSNames:              []string{"localhost"},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM
}

func writeCertFiles(t *testing.T, dir string, certPEM, keyPEM []byte) (certFile, keyFile string) {
	t.Helper()
	certFile = filepath.Join(dir, "server.crt")
	keyFile = filepath.Join(dir, "server.key")
	require.NoError(t, os.WriteFile(certFile, certPEM, 0o600))
	require.NoError(t, os.WriteFile(keyFile, keyPEM, 0o600))
	return certFile, keyFile
}

func TestNewCertReloader_FromFiles(t *testing.T) {
	certPEM, keyPEM := selfSignedPair(t, "files.local", 30*24*time.Hour)
	certFile, keyFile := writeCertFiles(t, t.TempDir(), certPEM, keyPEM)

	cr, err := NewCertReloader(config.TLSConfig{Mode: "server", CertFile: certFile, KeyFile: keyFile}, testLogger())
	require.NoError(t, err)

	assert.Equal(t, []string{certFile, keyFile}, cr.Files())

	cert, err := cr.GetCertificate(&tls.ClientHelloInfo{})
	require.NoError(t, err)
	require.NotNil(t, cert)

	ttl, err := cr.TimeToExpiry()
	require.NoError(t, err)
	assert.InDelta(t, (30 * 24 * time.Hour).Hours(), ttl.Hours(), 1)

	status := cr.Status()
	assert.Equal(t, "files", status["source"])
	assert.Equal(t, "CN=files.local", status["subject"])
}

func TestNewCertReloader_FromContent(t *testing.T) {
	certPEM, keyPEM := selfSignedPair(t, "vault.local", time.Hour)

	cr, err := NewCertReloader(config.TLSConfig{
		Mode:        "server",
		CertContent: string(certPEM),
		KeyContent:  string(keyPEM),
	}, testLogger())
	require.NoError(t, err)

	assert.Nil(t, cr.Files())
	assert.Equal(t, "content", cr.Status()["source"])
	require.Error(t, cr.Reload(), "content certificates cannot be reloaded")
}

func TestNewCertReloader_Errors(t *testing.T) {
	_, err := NewCertReloader(config.TLSConfig{Mode: "server"}, testLogger())
	require.Error(t, err)

	_, err = NewCertReloader(config.TLSConfig{
		Mode:        "server",
		CertContent: "not a cert",
		KeyContent:  "not a key",
	}, testLogger())
	require.Error(t, err)
}

func TestCertReloader_Reload(t *testing.T) {
	dir := t.TempDir()
	certPEM, keyPEM := selfSignedPair(t, "first.local", time.Hour)
	certFile, keyFile := writeCertFiles(t, dir, certPEM, keyPEM)

	cr, err := NewCertReloader(config.TLSConfig{Mode: "server", CertFile: certFile, KeyFile: keyFile}, testLogger())
	require.NoError(t, err)

	certPEM, keyPEM = selfSignedPair(t, "second.local", 48*time.Hour)
	writeCertFiles(t, dir, certPEM, keyPEM)

	require.NoError(t, cr.Reload())
	status := cr.Status()
	assert.Equal(t, "CN=second.local", status["subject"])
	assert.Equal(t, int64(1), status["reload_count"])
	assert.Equal(t, true, status["last_reload_success"])

	require.NoError(t, os.WriteFile(certFile, []byte("corrupt"), 0o600))
	require.Error(t, cr.Reload())

	status = cr.Status()
	assert.Equal(t, "CN=second.local", status["subject"], "failed reload keeps the previous certificate")
	assert.Equal(t, int64(2), status["reload_count"])
	assert.Equal(t, int64(1), status["reload_failed"])
	assert.Equal(t, false, status["last_reload_success"])
	assert.Contains(t, status, "last_reload_error")
}

func TestBuildTLSConfig(t *testing.T) {
	certPEM, keyPEM := selfSignedPair(t, "server.local", time.Hour)
	caPEM, _ := selfSignedPair(t, "ca.local", time.Hour)

	cr, err := NewCertReloader(config.TLSConfig{CertContent: string(certPEM), KeyContent: string(keyPEM)}, testLogger())
	require.NoError(t, err)

	t.Run("server mode", func(t *testing.T) {
		tlsConfig, err := buildTLSConfig(config.TLSConfig{Mode: "server", MinVersion: "1.3"}, cr)
		require.NoError(t, err)
		assert.Equal(t, uint16(tls.VersionTLS13), tlsConfig.MinVersion)
		assert.Equal(t, tls.NoClientCert, tlsConfig.ClientAuth)
		assert.Nil(t, tlsConfig.ClientCAs)
		assert.NotNil(t, tlsConfig.GetCertificate)
	})

	t.Run("mutual mode", func(t *testing.T) {
		tlsConfig, err := buildTLSConfig(config.TLSConfig{Mode: "mutual", CAContent: string(caPEM)}, cr)
		require.NoError(t, err)
		assert.Equal(t, uint16(tls.VersionTLS12), tlsConfig.MinVersion)
		assert.Equal(t, tls.RequireAndVerifyClientCert, tlsConfig.ClientAuth)
		assert.NotNil(t, tlsConfig.ClientCAs)
	})

	t.Run("mutual mode from CA file", func(t *testing.T) {
		caFile := filepath.Join(t.TempDir(), "ca.crt")
		require.NoError(t, os.WriteFile(caFile, caPEM, 0o600))

		tlsConfig, err := buildTLSConfig(config.TLSConfig{Mode: "mutual", CAFile: caFile, ClientAuthPolicy: "verify"}, cr)
		require.NoError(t, err)
		assert.Equal(t, tls.VerifyClientCertIfGiven, tlsConfig.ClientAuth)
	})

	t.Run("mutual mode without CA", func(t *testing.T) {
		_, err := buildTLSConfig(config.TLSConfig{Mode: "mutual"}, cr)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "CA certificate is required")
	})

	t.Run("mutual mode with bad CA", func(t *testing.T) {
		_, err := buildTLSConfig(config.TLSConfig{Mode: "mutual", CAContent: "garbage"}, cr)
		require.Error(t, err)
	})
}

func TestClientAuthPolicy(t *testing.T) {
	tests := []struct {
		policy string
		want   tls.ClientAuthType
	}{
		{"request", tls.RequestClientCert},
		{"verify", tls.VerifyClientCertIfGiven},
		{"require", tls.RequireAndVerifyClientCert},
		{"", tls.RequireAndVerifyClientCert},
	}
	for _, tt := range tests {
		t.Run(tt.policy, func(t *testing.T) {
			assert.Equal(t, tt.want, clientAuthPolicy(tt.policy))
		})
	}
}

func TestCheckCertificateHealth(t *testing.T) {
	tests := []struct {
		name        string
		validFor    time.Duration
		wantStatus  string
		wantHealthy bool
	}{
		{"valid", 90 * 24 * time.Hour, "ok", true},
		{"expiring this week", 3 * 24 * time.Hour, "warning", true},
		{"expiring today", 12 * time.Hour, "critical", false},
		{"expired", -time.Minute, "expired", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			certPEM, keyPEM := selfSignedPair(t, "health.local", tt.validFor)
			cr, err := NewCertReloader(config.TLSConfig{CertContent: string(certPEM), KeyContent: string(keyPEM)}, testLogger())
			require.NoError(t, err)

			s := newTestServer(t, &fakeProvider{})
			s.certs = cr

			status := s.checkCertificateHealth()
			assert.Equal(t, tt.wantStatus, status["status"])
			assert.Equal(t, tt.wantHealthy, status["healthy"])
		})
	}
}

func TestCheckCertificateHealth_NoTLS(t *testing.T) {
	s := newTestServer(t, &fakeProvider{})
	assert.Nil(t, s.checkCertificateHealth())
}
