package server

import (
	"crypto/tls"
	"fmt"
	"net/http"

	"resumesense/internal/config"
	"resumesense/internal/observability"
)

// configureTLS sets up TLS configuration based on the mode
func (s *Server) configureTLS(httpServer *http.Server, om *observability.ObservabilityManager) error {
	addr := httpServer.Addr

	switch s.TLSConfig.Mode {
	case config.TLSModeServer:
		fmt.Printf("Starting server with HTTPS on https://%s\n", addr)
		fmt.Println("TLS mode: Server-only")

		if err := s.setupCertificateManager(om); err != nil {
			return err
		}
		httpServer.TLSConfig = s.buildTLSConfig()
		return nil
	case config.TLSModeDisabled, "":
		fmt.Printf("Starting server on http://%s\n", addr)
		fmt.Println("TLS mode: Disabled (HTTP only)")
		return nil
	default:
		return fmt.Errorf("invalid TLS mode: %s (must be 'disabled' or 'server')", s.TLSConfig.Mode)
	}
}

// setupCertificateManager loads the server certificate and starts watching it
func (s *Server) setupCertificateManager(om *observability.ObservabilityManager) error {
	certManager := NewCertificateManager(&s.TLSConfig, om, s.Logger)
	if err := certManager.Start(); err != nil {
		return fmt.Errorf("failed to start certificate manager: %w", err)
	}
	s.CertificateManager = certManager

	certManager.AddReloadCallback(func(success bool, err error) {
		if success {
			s.Logger.Info("TLS certificates reloaded successfully")
		} else {
			s.Logger.LogError(err, "Failed to reload TLS certificates")
		}
	})

	if s.TLSConfig.AutoReload.Enabled {
		fmt.Printf("TLS auto-reload: ENABLED (debounce %s)\n", s.TLSConfig.AutoReload.DebounceDelay)
	} else {
		fmt.Println("TLS auto-reload: DISABLED")
	}

	return nil
}

// buildTLSConfig serves certificates through the certificate manager
func (s *Server) buildTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:     tlsMinVersion(s.TLSConfig.MinVersion),
		GetCertificate: s.CertificateManager.GetServerCertificate,
		ClientAuth:     tls.NoClientCert,
	}
}

// tlsMinVersion maps the configured minimum version, defaulting to TLS 1.2
func tlsMinVersion(version string) uint16 {
	if version == "1.3" {
		return tls.VersionTLS13
	}
	return tls.VersionTLS12
}
