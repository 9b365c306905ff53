package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/vault/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumematch/internal/errors"
)

type fakeLogical struct {
	secrets map[string]*api.Secret
	err     error
}

func (f *fakeLogical) Read(path string) (*api.Secret, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.secrets[path], nil
}

func kv2(version any, data map[string]any) *api.Secret {
	return &api.Secret{Data: map[string]any{
		"data":     data,
		"metadata": map[string]any{"version": version},
	}}
}

func newTestVaultClient(secrets map[string]*api.Secret) *VaultClient {
	logger, _ := errors.New("debug")
	return &VaultClient{logical: &fakeLogical{secrets: secrets}, logger: logger}
}

func TestParseVersionValue(t *testing.T) {
	tests := []struct {
		name        string
		input       any
		expected    int64
		expectError bool
	}{
		{name: "int64 value", input: int64(42), expected: 42},
		{name: "int value", input: 1, expected: 1},
		{name: "int32 value", input: int32(5), expected: 5},
		{name: "float64 value", input: float64(42.0), expected: 42},
		{name: "string value", input: "42", expected: 42},
		{name: "json number", input: json.Number("7"), expected: 7},
		{name: "fractional json number", input: json.Number("7.5"), expectError: true},
		{name: "invalid string value", input: "not-a-number", expectError: true},
		{name: "missing", input: nil, expectError: true},
		{name: "unsupported type", input: []string{"42"}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseVersionValue(tt.input, "test/path")
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestVaultClient_GetSecretV2(t *testing.T) {
	client := newTestVaultClient(map[string]*api.Secret{
		"secret/data/gemini": kv2(json.Number("3"), map[string]any{"api_key": "AIza-rotated"}),
		"secret/data/flat":   {Data: map[string]any{"api_key": "x"}},
	})

	secret, err := client.GetSecretV2("secret/data/gemini")
	require.NoError(t, err)
	assert.Equal(t, int64(3), secret.Version)

	value, err := secret.StringValue("secret/data/gemini", "api_key")
	require.NoError(t, err)
	assert.Equal(t, "AIza-rotated", value)

	_, err = secret.StringValue("secret/data/gemini", "missing")
	assert.Error(t, err)

	_, err = client.GetSecretV2("secret/data/flat")
	assert.ErrorContains(t, err, "not in KVv2 format")

	_, err = client.GetSecretV2("secret/data/absent")
	assert.ErrorContains(t, err, "secret not found")
}

func TestVaultClient_ReadError(t *testing.T) {
	client := &VaultClient{logical: &fakeLogical{err: fmt.Errorf("permission denied")}}
	_, err := client.GetSecretV2("secret/data/x")
	assert.ErrorContains(t, err, "permission denied")

	var nilClient *VaultClient
	_, err = nilClient.GetSecretV2("secret/data/x")
	assert.Error(t, err)
}

func TestApplySecrets(t *testing.T) {
	client := newTestVaultClient(map[string]*api.Secret{
		"secret/data/gemini": kv2(1, map[string]any{"api_key": " AIza-from-vault "}),
		"secret/data/keys":   kv2(1, map[string]any{"keys": "k1, k2,,k3"}),
		"secret/data/tls":    kv2(1, map[string]any{"cert": "CERT", "key": "KEY"}),
	})

	cfg := &Config{
		AI: AIConfig{APIKey: "from-env"},
		Vault: VaultConfig{Secrets: VaultSecrets{
			GeminiKey: "secret/data/gemini",
			APIKeys:   "secret/data/keys",
			TLSCerts:  "secret/data/tls",
		}},
	}

	require.NoError(t, applySecrets(client, cfg, nil))
	assert.Equal(t, "AIza-from-vault", cfg.AI.APIKey, "vault has the highest precedence")
	assert.Equal(t, []string{"k1", "k2", "k3"}, cfg.Server.APIKeys)
	assert.Equal(t, "CERT", cfg.Server.TLS.CertContent)
	assert.Equal(t, "KEY", cfg.Server.TLS.KeyContent)
	assert.Empty(t, cfg.Server.TLS.CAContent)
}

func TestApplySecrets_MissingGeminiKey(t *testing.T) {
	client := newTestVaultClient(map[string]*api.Secret{
		"secret/data/gemini": kv2(1, map[string]any{"other": "x"}),
	})
	cfg := &Config{Vault: VaultConfig{Secrets: VaultSecrets{GeminiKey: "secret/data/gemini"}}}

	err := applySecrets(client, cfg, nil)
	assert.ErrorContains(t, err, "Gemini API key")
}

func TestApplyVaultSecretsDisabled(t *testing.T) {
	reader, err := ApplyVaultSecrets(&Config{}, nil)
	assert.NoError(t, err)
	assert.Nil(t, reader)
}

func TestResolveVaultToken(t *testing.T) {
	tempDir := t.TempDir()
	tokenFile := filepath.Join(tempDir, "token")
	require.NoError(t, os.WriteFile(tokenFile, []byte("s.file-token\n"), 0600))

	token, err := resolveVaultToken(VaultConfig{Token: "s.inline"})
	require.NoError(t, err)
	assert.Equal(t, "s.inline", token)

	token, err = resolveVaultToken(VaultConfig{TokenFile: tokenFile})
	require.NoError(t, err)
	assert.Equal(t, "s.file-token", token)

	_, err = resolveVaultToken(VaultConfig{TokenFile: filepath.Join(tempDir, "missing")})
	assert.Error(t, err)

	_, err = resolveVaultToken(VaultConfig{})
	assert.Error(t, err)
}
