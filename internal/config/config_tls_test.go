package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTLSConfig(t *testing.T) {
	tests := []struct {
		name     string
		tls      TLSConfig
		errorMsg string
	}{
		{name: "disabled", tls: TLSConfig{Mode: "disabled"}},
		{name: "empty mode is disabled", tls: TLSConfig{}},
		{
			name: "server with files",
			tls:  TLSConfig{Mode: "server", CertFile: "/c.pem", KeyFile: "/k.pem"},
		},
		{
			name: "server with vault content",
			tls:  TLSConfig{Mode: "server", CertContent: "CERT", KeyContent: "KEY"},
		},
		{
			name:     "server missing key",
			tls:      TLSConfig{Mode: "server", CertFile: "/c.pem"},
			errorMsg: "TLS key is required",
		},
		{
			name:     "server duplicate cert source",
			tls:      TLSConfig{Mode: "server", CertFile: "/c.pem", CertContent: "CERT", KeyFile: "/k.pem"},
			errorMsg: "cannot specify both file and content for TLS certificate",
		},
		{
			name: "mutual valid",
			tls:  TLSConfig{Mode: "mutual", CertFile: "/c.pem", KeyFile: "/k.pem", CAFile: "/ca.pem", ClientAuthPolicy: "verify"},
		},
		{
			name:     "mutual missing CA",
			tls:      TLSConfig{Mode: "mutual", CertFile: "/c.pem", KeyFile: "/k.pem"},
			errorMsg: "TLS CA certificate is required",
		},
		{
			name:     "mutual bad policy",
			tls:      TLSConfig{Mode: "mutual", CertFile: "/c.pem", KeyFile: "/k.pem", CAFile: "/ca.pem", ClientAuthPolicy: "maybe"},
			errorMsg: "invalid clientAuthPolicy: maybe",
		},
		{
			name:     "bad min version",
			tls:      TLSConfig{Mode: "server", CertFile: "/c.pem", KeyFile: "/k.pem", MinVersion: "1.1"},
			errorMsg: "invalid TLS minVersion: 1.1",
		},
		{
			name:     "invalid mode",
			tls:      TLSConfig{Mode: "invalid"},
			errorMsg: "invalid TLS mode: invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Server: ServerConfig{TLS: tt.tls}}
			err := cfg.ValidateTLSConfig()
			if tt.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.errorMsg)
			}
		})
	}
}

func TestTLSConfigHelpers(t *testing.T) {
	assert.False(t, TLSConfig{Mode: "disabled"}.Enabled())
	assert.True(t, TLSConfig{Mode: "server"}.Enabled())
	assert.True(t, TLSConfig{Mode: "mutual"}.Enabled())

	assert.True(t, TLSConfig{CertFile: "c", KeyFile: "k"}.UsesFiles())
	assert.False(t, TLSConfig{CertContent: "c", KeyContent: "k"}.UsesFiles())
}
