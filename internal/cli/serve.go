package cli

import (
	"fmt"

	"resumesense/internal/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server with the resume upload form",
	Long: `Start an HTTP server that serves the upload form and forwards
submissions to the analysis service.

Available endpoints:
- GET  /: Upload form
- POST /analyze: Analyze a resume (multipart form, field "resume")
- POST /api/render: Render an analysis payload (JSON body)
- GET  /health: Health check endpoint
- GET  /stats: Server statistics and rate limiting info

TLS Configuration:
- Use --tls-mode to set TLS mode: disabled, server
- Use --cert-file and --key-file for TLS certificates`,
	RunE: runServe,
}

var serveOptions struct {
	port     string
	host     string
	tlsMode  string
	certFile string
	keyFile  string
	upstream string
	policy   string
}

func init() {
	serveCmd.Flags().StringVarP(&serveOptions.port, "port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().StringVar(&serveOptions.host, "host", "", "Host to bind to (default from config)")
	serveCmd.Flags().StringVar(&serveOptions.tlsMode, "tls-mode", "", "TLS mode: disabled, server (overrides config)")
	serveCmd.Flags().StringVar(&serveOptions.certFile, "cert-file", "", "Server certificate file (PEM, overrides config)")
	serveCmd.Flags().StringVar(&serveOptions.keyFile, "key-file", "", "Server private key file (PEM, overrides config)")
	serveCmd.Flags().StringVar(&serveOptions.upstream, "upstream", "", "Analysis service base URL (overrides config)")
	serveCmd.Flags().StringVar(&serveOptions.policy, "policy", "", "Concurrent submission policy: reject, supersede (overrides config)")
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

	override := func(target *string, value string) {
		if value != "" {
			*target = value
		}
	}
	override(&cfg.Server.Port, serveOptions.port)
	override(&cfg.Server.Host, serveOptions.host)
	override(&cfg.Server.TLS.Mode, serveOptions.tlsMode)
	override(&cfg.Server.TLS.CertFile, serveOptions.certFile)
	override(&cfg.Server.TLS.KeyFile, serveOptions.keyFile)
	override(&cfg.Upstream.BaseURL, serveOptions.upstream)
	override(&cfg.Submission.Policy, serveOptions.policy)

	// Validate again after applying flag overrides
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return server.NewServer(cfg, server.ServerConfigFrom(cfg, Version), logger).Start()
}
