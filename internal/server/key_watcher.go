package server

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"resumematch/internal/config"
	"resumematch/internal/errors"
)

// KeyRotateCallback receives the Gemini key from a new secret version.
type KeyRotateCallback func(apiKey string)

// KeyWatcher polls a Vault KVv2 secret and hands the Gemini API key to a
// callback whenever the secret version moves forward.
type KeyWatcher struct {
	mu sync.RWMutex

	client       config.SecretReader
	secretPath   string
	pollInterval time.Duration
	onRotate     KeyRotateCallback
	logger       *errors.Logger

	stopChan    chan struct{}
	running     bool
	lastVersion int64
	lastChecked time.Time
	lastError   string
	rotations   int
}

// NewKeyWatcher creates a new KeyWatcher
func NewKeyWatcher(client config.SecretReader, secretPath string, pollInterval time.Duration, onRotate KeyRotateCallback, logger *errors.Logger) *KeyWatcher {
	return &KeyWatcher{
		client:       client,
		secretPath:   secretPath,
		pollInterval: pollInterval,
		onRotate:     onRotate,
		logger:       logger,
	}
}

// Start records the current secret version and begins polling. The key in
// use at startup was already applied from Vault, so only later versions
// trigger the callback. A stopped watcher can be started again.
func (kw *KeyWatcher) Start() error {
	kw.mu.Lock()
	if kw.running {
		kw.mu.Unlock()
		return fmt.Errorf("key watcher is already running")
	}
	if kw.pollInterval <= 0 {
		kw.mu.Unlock()
		return fmt.Errorf("key watcher poll interval must be positive")
	}
	stop := make(chan struct{})
	kw.stopChan = stop
	kw.running = true
	kw.mu.Unlock()

	secret, err := kw.client.GetSecretV2(kw.secretPath)

	kw.mu.Lock()
	defer kw.mu.Unlock()
	if kw.stopChan != stop || !kw.running {
		// Stopped while the initial version was being read.
		return nil
	}
	if err == nil {
		kw.lastVersion = secret.Version
	} else if kw.logger != nil {
		kw.logger.Warn("Could not read initial Gemini key version", "secret_path", kw.secretPath, "error", err.Error())
	}

	go kw.pollLoop(stop)
	if kw.logger != nil {
		kw.logger.Info("Key watcher started", "secret_path", kw.secretPath, "poll_interval", kw.pollInterval, "version", kw.lastVersion)
	}
	return nil
}

// Stop stops the watcher
func (kw *KeyWatcher) Stop() error {
	kw.mu.Lock()
	defer kw.mu.Unlock()
	if !kw.running {
		return nil
	}
	close(kw.stopChan)
	kw.running = false
	if kw.logger != nil {
		kw.logger.Info("Key watcher stopped")
	}
	return nil
}

func (kw *KeyWatcher) pollLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(kw.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			kw.poll()
		case <-stop:
			return
		}
	}
}

// poll runs one check and invokes the callback on a new key.
func (kw *KeyWatcher) poll() {
	key, changed, err := kw.checkForUpdates()
	if err != nil {
		if kw.logger != nil {
			kw.logger.LogError(err, "Failed to check Vault for a rotated Gemini key")
		}
		return
	}
	if !changed {
		return
	}
	if kw.logger != nil {
		kw.logger.Info("Gemini API key rotated in Vault, applying", "version", kw.Version())
	}
	kw.onRotate(key)
}

// checkForUpdates reads the secret and returns its key when the version
// is newer than the last one seen. A newer version with an empty key is
// an error and is retried on the next poll.
func (kw *KeyWatcher) checkForUpdates() (string, bool, error) {
	secret, err := kw.client.GetSecretV2(kw.secretPath)

	kw.mu.Lock()
	defer kw.mu.Unlock()
	kw.lastChecked = time.Now()

	if err != nil {
		kw.lastError = err.Error()
		return "", false, fmt.Errorf("failed to read secret: %w", err)
	}
	if secret.Version <= kw.lastVersion {
		kw.lastError = ""
		return "", false, nil
	}

	key, err := secret.StringValue(kw.secretPath, config.VaultKeyGeminiKey)
	if err == nil && strings.TrimSpace(key) == "" {
		err = fmt.Errorf("key '%s' is empty in secret %s", config.VaultKeyGeminiKey, kw.secretPath)
	}
	if err != nil {
		kw.lastError = err.Error()
		return "", false, err
	}

	kw.lastVersion = secret.Version
	kw.lastError = ""
	kw.rotations++
	return strings.TrimSpace(key), true, nil
}

// Version returns the last secret version applied.
func (kw *KeyWatcher) Version() int64 {
	kw.mu.RLock()
	defer kw.mu.RUnlock()
	return kw.lastVersion
}

// Status returns the current status of the KeyWatcher for health reporting
func (kw *KeyWatcher) Status() map[string]any {
	kw.mu.RLock()
	defer kw.mu.RUnlock()
	status := map[string]any{
		"running":       kw.running,
		"poll_interval": kw.pollInterval.String(),
		"secret_path":   kw.secretPath,
		"last_version":  kw.lastVersion,
		"rotations":     kw.rotations,
	}
	if !kw.lastChecked.IsZero() {
		status["last_checked"] = kw.lastChecked
	}
	if kw.lastError != "" {
		status["last_error"] = kw.lastError
	}
	return status
}
