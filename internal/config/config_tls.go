package config

import (
	"fmt"
	"time"
)

// TLSConfig holds TLS/mTLS configuration
type TLSConfig struct {
	Mode     string `mapstructure:"mode"` // "disabled", "server", "mutual"
	CertFile string `mapstructure:"certFile"`
	KeyFile  string `mapstructure:"keyFile"`
	CAFile   string `mapstructure:"caFile"` // client CA, mutual mode only

	// PEM content, filled from Vault instead of files
	CertContent string `mapstructure:"certContent"`
	KeyContent  string `mapstructure:"keyContent"`
	CAContent   string `mapstructure:"caContent"`

	MinVersion       string `mapstructure:"minVersion"`       // "1.2" or "1.3"
	ClientAuthPolicy string `mapstructure:"clientAuthPolicy"` // "require", "request", "verify"

	// Reload file based certificates when they change on disk.
	AutoReload    bool          `mapstructure:"autoReload"`
	DebounceDelay time.Duration `mapstructure:"debounceDelay"`
}

// Enabled reports whether the server should terminate TLS.
func (t TLSConfig) Enabled() bool {
	return t.Mode == "server" || t.Mode == "mutual"
}

// UsesFiles reports whether the certificate pair is read from disk.
func (t TLSConfig) UsesFiles() bool {
	return t.CertFile != "" && t.KeyFile != ""
}

// ValidateTLSConfig validates the TLS configuration
func (c *Config) ValidateTLSConfig() error {
	tls := c.Server.TLS

	switch tls.Mode {
	case "disabled", "":
		return nil
	case "server", "mutual":
	default:
		return fmt.Errorf("invalid TLS mode: %s (must be 'disabled', 'server', or 'mutual')", tls.Mode)
	}

	if err := requireOneSource("certificate", tls.CertFile, tls.CertContent); err != nil {
		return err
	}
	if err := requireOneSource("key", tls.KeyFile, tls.KeyContent); err != nil {
		return err
	}

	if tls.Mode == "mutual" {
		if err := requireOneSource("CA certificate", tls.CAFile, tls.CAContent); err != nil {
			return err
		}
		switch tls.ClientAuthPolicy {
		case "require", "request", "verify", "":
		default:
			return fmt.Errorf("invalid clientAuthPolicy: %s (must be 'require', 'request', or 'verify')", tls.ClientAuthPolicy)
		}
	}

	switch tls.MinVersion {
	case "", "1.2", "1.3":
		return nil
	default:
		return fmt.Errorf("invalid TLS minVersion: %s (must be '1.2' or '1.3')", tls.MinVersion)
	}
}

// requireOneSource checks that exactly one of file or inline content is set.
func requireOneSource(what, file, content string) error {
	switch {
	case file == "" && content == "":
		return fmt.Errorf("TLS %s is required (provide either a file or content)", what)
	case file != "" && content != "":
		return fmt.Errorf("cannot specify both file and content for TLS %s - choose one", what)
	}
	return nil
}
