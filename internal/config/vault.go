package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/vault/api"

	"resumematch/internal/errors"
)

// VaultConfig holds Vault connection configuration
type VaultConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"tokenFile"`
	Namespace string `mapstructure:"namespace"`

	Secrets VaultSecrets `mapstructure:"secrets"`
}

// VaultSecrets defines where to find secrets in a KVv2 mount.
type VaultSecrets struct {
	APIKeys   string `mapstructure:"apiKeys"`   // key "keys", comma separated
	GeminiKey string `mapstructure:"geminiKey"` // key "api_key"
	TLSCerts  string `mapstructure:"tlsCerts"`  // keys "cert", "key", "ca"
}

// Secret keys inside the KVv2 data map.
const (
	VaultKeyAPIKeys   = "keys"
	VaultKeyGeminiKey = "api_key"
)

// SecretReader reads versioned KVv2 secrets.
type SecretReader interface {
	GetSecretV2(path string) (*VaultSecret, error)
}

// logicalReader is the subset of api.Logical used here.
type logicalReader interface {
	Read(path string) (*api.Secret, error)
}

// VaultClient wraps the Vault API client
type VaultClient struct {
	logical logicalReader
	config  VaultConfig
	logger  *errors.Logger
}

var _ SecretReader = (*VaultClient)(nil)

// NewVaultClient creates a new Vault client from configuration. It returns
// nil, nil when Vault is disabled.
func NewVaultClient(config VaultConfig, logger *errors.Logger) (*VaultClient, error) {
	if !config.Enabled {
		return nil, nil
	}

	vaultConfig := api.DefaultConfig()
	if config.Address != "" {
		vaultConfig.Address = config.Address
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if config.Namespace != "" {
		client.SetNamespace(config.Namespace)
	}

	token, err := resolveVaultToken(config)
	if err != nil {
		return nil, err
	}
	client.SetToken(token)

	health, err := client.Sys().Health()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to vault: %w", err)
	}
	if logger != nil {
		logger.Info("Connected to Vault",
			"address", vaultConfig.Address,
			"version", health.Version,
			"sealed", health.Sealed)
	}

	return &VaultClient{
		logical: client.Logical(),
		config:  config,
		logger:  logger,
	}, nil
}

// resolveVaultToken resolves the Vault token from config or file
func resolveVaultToken(config VaultConfig) (string, error) {
	token := config.Token

	if token == "" && config.TokenFile != "" {
		tokenBytes, err := os.ReadFile(config.TokenFile)
		if err != nil {
			return "", fmt.Errorf("failed to read vault token file: %w", err)
		}
		token = strings.TrimSpace(string(tokenBytes))
	}

	if token == "" {
		return "", fmt.Errorf("vault token is required when vault is enabled")
	}
	return token, nil
}

// VaultSecret represents a secret read from Vault's KVv2 engine.
type VaultSecret struct {
	Data    map[string]any
	Version int64
}

// GetSecretV2 retrieves a secret from a Vault KVv2 store.
func (vc *VaultClient) GetSecretV2(path string) (*VaultSecret, error) {
	if vc == nil {
		return nil, fmt.Errorf("vault client not initialized")
	}

	secret, err := vc.logical.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret from %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("secret not found at path: %s", path)
	}

	data, ok := secret.Data["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s is not in KVv2 format (missing 'data' field)", path)
	}

	metadata, ok := secret.Data["metadata"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s is not in KVv2 format (missing 'metadata' field)", path)
	}
	version, err := parseVersionValue(metadata["version"], path)
	if err != nil {
		return nil, err
	}

	if vc.logger != nil {
		vc.logger.Debug("Read secret from Vault", "path", path, "version", version)
	}
	return &VaultSecret{Data: data, Version: version}, nil
}

// parseVersionValue parses version value from the types Vault's JSON
// decoding may produce.
func parseVersionValue(versionRaw any, path string) (int64, error) {
	switch v := versionRaw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case json.Number:
		version, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("could not parse secret version at %s: %w", path, err)
		}
		return version, nil
	case float64:
		return int64(v), nil
	case string:
		version, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("could not parse secret version at %s: %w", path, err)
		}
		return version, nil
	case nil:
		return 0, fmt.Errorf("secret metadata at %s is missing 'version' field", path)
	default:
		return 0, fmt.Errorf("unexpected type for version at %s: %T", path, versionRaw)
	}
}

// StringValue returns data[key] as a string.
func (s *VaultSecret) StringValue(path, key string) (string, error) {
	value, ok := s.Data[key]
	if !ok {
		return "", fmt.Errorf("key '%s' not found in secret %s", key, path)
	}
	str, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("value for key '%s' is not a string in secret %s", key, path)
	}
	return str, nil
}

// GetStringSecret retrieves a string value from a Vault secret
func GetStringSecret(r SecretReader, path, key string) (string, error) {
	secret, err := r.GetSecretV2(path)
	if err != nil {
		return "", err
	}
	return secret.StringValue(path, key)
}

// ApplyVaultSecrets loads secrets from Vault and applies them to the config
func ApplyVaultSecrets(config *Config, logger *errors.Logger) (SecretReader, error) {
	if !config.Vault.Enabled {
		return nil, nil
	}

	client, err := NewVaultClient(config.Vault, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vault client: %w", err)
	}

	if err := applySecrets(client, config, logger); err != nil {
		return nil, err
	}
	return client, nil
}

// applySecrets copies every configured secret into config.
func applySecrets(r SecretReader, config *Config, logger *errors.Logger) error {
	paths := config.Vault.Secrets

	if paths.GeminiKey != "" {
		key, err := GetStringSecret(r, paths.GeminiKey, VaultKeyGeminiKey)
		if err != nil {
			return fmt.Errorf("failed to load Gemini API key from vault: %w", err)
		}
		if key = strings.TrimSpace(key); key != "" {
			config.AI.APIKey = key
			logInfo(logger, "Gemini API key loaded from Vault")
		}
	}

	if paths.APIKeys != "" {
		raw, err := GetStringSecret(r, paths.APIKeys, VaultKeyAPIKeys)
		if err != nil {
			return fmt.Errorf("failed to load API keys from vault: %w", err)
		}
		if keys := splitList(raw); len(keys) > 0 {
			config.Server.APIKeys = keys
			logInfo(logger, "Server API keys loaded from Vault", "count", len(keys))
		}
	}

	if paths.TLSCerts != "" {
		secret, err := r.GetSecretV2(paths.TLSCerts)
		if err != nil {
			return fmt.Errorf("failed to load TLS certificates from vault: %w", err)
		}
		tls := &config.Server.TLS
		loaded := 0
		for key, target := range map[string]*string{
			"cert": &tls.CertContent,
			"key":  &tls.KeyContent,
			"ca":   &tls.CAContent,
		} {
			if content, ok := secret.Data[key].(string); ok && content != "" {
				*target = content
				loaded++
			}
		}
		logInfo(logger, "TLS material loaded from Vault", "items", loaded)
	}

	return nil
}

func logInfo(logger *errors.Logger, msg string, args ...any) {
	if logger != nil {
		logger.Info(msg, args...)
	}
}
