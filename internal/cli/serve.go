package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"resumematch/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web form and HTTP API",
	Long: `Start an HTTP server with the resume match web form and a REST API.

Available endpoints:
- GET  /: Web form (only when no API keys are configured)
- POST /api/extract: Extract the text of an uploaded resume
- POST /api/check: Score an uploaded resume against a job description
- POST /api/analyze: Score resume text against a job description (JSON)
- GET  /health: Health check endpoint
- GET  /stats: Server statistics and rate limiting info

TLS Configuration:
- Use --tls-mode to set TLS mode: disabled, server, mutual
- Use --cert-file and --key-file for TLS certificates
- Use --ca-file for mutual TLS client certificate verification`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from config)")
	serveCmd.Flags().String("tls-mode", "", "TLS mode: disabled, server, mutual (overrides config)")
	serveCmd.Flags().String("cert-file", "", "Server certificate file (PEM, overrides config)")
	serveCmd.Flags().String("key-file", "", "Server private key file (PEM, overrides config)")
	serveCmd.Flags().String("ca-file", "", "CA certificate file for client cert verification (PEM, overrides config)")
	serveCmd.Flags().Bool("watch-prompts", false, "Reload prompt files when they change")

	// Bind flags to viper config keys; the root command loads config after
	// flag parsing, so these take precedence over file and environment.
	bindFlag := func(key, flagName string) {
		if err := viper.BindPFlag(key, serveCmd.Flags().Lookup(flagName)); err != nil {
			panic(err)
		}
	}

	bindFlag("server.port", "port")
	bindFlag("server.host", "host")
	bindFlag("server.tls.mode", "tls-mode")
	bindFlag("server.tls.certfile", "cert-file")
	bindFlag("server.tls.keyfile", "key-file")
	bindFlag("server.tls.cafile", "ca-file")
	bindFlag("server.watchprompts", "watch-prompts")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return err
	}
	logger, err := getLoggerFromContext(cmd.Context())
	if err != nil {
		return err
	}

	serverCfg := server.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Version:        Version,
		TLSConfig:      cfg.Server.TLS,
		APIKeys:        cfg.Server.APIKeys,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxRequestSize: cfg.App.MaxFileSize,
		RateLimit:      &cfg.Server.RateLimit,
		Secrets:        getSecretsFromContext(cmd.Context()),
	}
	return server.NewServer(cfg, serverCfg, logger).Start(cmd.Context())
}
