package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"resumematch/internal/config"
	"resumematch/internal/errors"
)

// Private context key types.
type configKeyType struct{}
type loggerKeyType struct{}
type secretsKeyType struct{}

var (
	configKey  = configKeyType{}
	loggerKey  = loggerKeyType{}
	secretsKey = secretsKeyType{}
)

var rootCmd = &cobra.Command{
	Use:   "resumematch",
	Short: "Score a resume against a job description using AI",
	Long: `Resumematch compares a resume (PDF or DOCX) with a job description
using Google Gemini. It reports a match score, the keywords the resume
already covers, the keywords it is missing and suggestions for improving it.

Run it once from the command line with "check", or start the web form and
HTTP API with "serve".`,
	SilenceUsage:      true,
	PersistentPreRunE: loadRuntime,
}

// Execute runs the root command with ctx as the parent of every command
// context.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// loadRuntime loads the configuration after flags are parsed so that flags
// bound to viper take part, then applies Vault secrets.
func loadRuntime(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfigWith(viper.GetViper())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := errors.New(cfg.App.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	secrets, err := config.ApplyVaultSecrets(cfg, logger)
	if err != nil {
		return err
	}

	logger.Debug("Starting resumematch",
		"version", Version,
		"command", cmd.Name(),
		"model", cfg.AI.Model)

	ctx := cmd.Context()
	ctx = context.WithValue(ctx, configKey, cfg)
	ctx = context.WithValue(ctx, loggerKey, logger)
	ctx = context.WithValue(ctx, secretsKey, secrets)
	cmd.SetContext(ctx)
	return nil
}

// getConfigFromContext is a helper function to get config from context
func getConfigFromContext(ctx context.Context) (*config.Config, error) {
	if cfg, ok := ctx.Value(configKey).(*config.Config); ok {
		return cfg, nil
	}
	return nil, fmt.Errorf("config not found in context")
}

// getLoggerFromContext is a helper function to get logger from context
func getLoggerFromContext(ctx context.Context) (*errors.Logger, error) {
	if logger, ok := ctx.Value(loggerKey).(*errors.Logger); ok {
		return logger, nil
	}
	return nil, fmt.Errorf("logger not found in context")
}

// getSecretsFromContext returns the Vault reader, or nil when Vault is off.
func getSecretsFromContext(ctx context.Context) config.SecretReader {
	secrets, _ := ctx.Value(secretsKey).(config.SecretReader)
	return secrets
}

func init() {
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
