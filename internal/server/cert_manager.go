package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"sync"
	"time"

	"resumesense/internal/config"
	"resumesense/internal/errors"
	"resumesense/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const expiryMonitorInterval = time.Minute

// CertificateManager serves the TLS server certificate and swaps it in place
// when the files on disk change.
type CertificateManager struct {
	mu sync.RWMutex

	serverCert       *tls.Certificate
	serverCertExpiry time.Time
	lastReloadTime   time.Time

	fileWatcher *CertWatcher

	config *config.TLSConfig

	reloadCallbacks []ReloadCallback
	logger          *errors.Logger
	om              *observability.ObservabilityManager

	reloadCount        int64
	reloadSuccessCount int64
	reloadFailureCount int64
	lastReloadSuccess  bool
	lastReloadError    string

	stopMonitor chan struct{}
	stopOnce    sync.Once
}

// ReloadCallback is called when certificates are reloaded
type ReloadCallback func(success bool, err error)

// CertificateMetrics holds metrics about certificate operations
type CertificateMetrics struct {
	ReloadCount        int64
	ReloadSuccessCount int64
	ReloadFailureCount int64
	LastReloadTime     time.Time
	LastReloadSuccess  bool
	LastReloadError    string
}

// NewCertificateManager creates a new certificate manager
func NewCertificateManager(tlsConfig *config.TLSConfig, om *observability.ObservabilityManager, logger *errors.Logger) *CertificateManager {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	return &CertificateManager{
		config:      tlsConfig,
		logger:      logger,
		om:          om,
		stopMonitor: make(chan struct{}),
	}
}

// Start loads the certificate and, when auto-reload is enabled, watches its files
func (cm *CertificateManager) Start() error {
	if err := cm.loadCertificates(); err != nil {
		return fmt.Errorf("failed to load initial certificates: %w", err)
	}

	cm.startExpiryMonitoring()

	if !cm.config.AutoReload.Enabled {
		return nil
	}

	watcher := NewCertWatcher(cm.config.CertFile, cm.config.KeyFile,
		cm.config.AutoReload.DebounceDelay, cm.triggerReload, cm.logger)
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	cm.fileWatcher = watcher

	return nil
}

// Stop stops the file watcher and expiry monitoring
func (cm *CertificateManager) Stop() error {
	cm.stopOnce.Do(func() { close(cm.stopMonitor) })

	if cm.fileWatcher != nil {
		if err := cm.fileWatcher.Stop(); err != nil {
			cm.logger.LogError(err, "Failed to stop file watcher")
			return err
		}
	}

	cm.logger.Info("Certificate manager stopped")
	return nil
}

// GetServerCertificate returns the current server certificate for TLS handshakes
func (cm *CertificateManager) GetServerCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if cm.serverCert == nil {
		return nil, fmt.Errorf("no server certificate available")
	}

	if time.Now().After(cm.serverCertExpiry) {
		serverName := ""
		if hello != nil {
			serverName = hello.ServerName
		}
		cm.logger.LogError(fmt.Errorf("server certificate expired"), "Server certificate expired",
			"expiry", cm.serverCertExpiry,
			"server_name", serverName)
		return nil, fmt.Errorf("server certificate expired")
	}

	return cm.serverCert, nil
}

// ReloadCertificates manually triggers a certificate reload
func (cm *CertificateManager) ReloadCertificates() error {
	return cm.loadCertificates()
}

// AddReloadCallback adds a callback to be called when certificates are reloaded
func (cm *CertificateManager) AddReloadCallback(callback ReloadCallback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.reloadCallbacks = append(cm.reloadCallbacks, callback)
}

// CheckExpiry returns the time until the server certificate expires
func (cm *CertificateManager) CheckExpiry() (time.Duration, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if cm.serverCertExpiry.IsZero() {
		return 0, fmt.Errorf("no certificates loaded")
	}
	return time.Until(cm.serverCertExpiry), nil
}

// GetMetrics returns certificate management metrics
func (cm *CertificateManager) GetMetrics() *CertificateMetrics {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	return &CertificateMetrics{
		ReloadCount:        cm.reloadCount,
		ReloadSuccessCount: cm.reloadSuccessCount,
		ReloadFailureCount: cm.reloadFailureCount,
		LastReloadTime:     cm.lastReloadTime,
		LastReloadSuccess:  cm.lastReloadSuccess,
		LastReloadError:    cm.lastReloadError,
	}
}

// loadCertificates loads the key pair from disk and swaps it in. On failure
// the previous certificate stays in service.
func (cm *CertificateManager) loadCertificates() error {
	cert, err := tls.LoadX509KeyPair(cm.config.CertFile, cm.config.KeyFile)
	if err != nil {
		return fmt.Errorf("failed to load server cert/key from files: %w", err)
	}

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fmt.Errorf("failed to parse server certificate: %w", err)
	}

	cm.mu.Lock()
	cm.serverCert = &cert
	cm.serverCertExpiry = leaf.NotAfter
	cm.lastReloadTime = time.Now()
	cm.updateReloadMetrics(nil)
	callbacks := append([]ReloadCallback(nil), cm.reloadCallbacks...)
	cm.mu.Unlock()

	cm.recordMetrics(nil, leaf.NotAfter)
	for _, callback := range callbacks {
		go callback(true, nil)
	}

	cm.logger.Info("Certificates reloaded successfully",
		"server_cert_expiry", leaf.NotAfter,
		"subject", leaf.Subject.CommonName)
	return nil
}

// updateReloadMetrics updates the internal counters. Callers hold mu.
func (cm *CertificateManager) updateReloadMetrics(err error) {
	cm.reloadCount++
	if err == nil {
		cm.reloadSuccessCount++
		cm.lastReloadSuccess = true
		cm.lastReloadError = ""
		return
	}
	cm.reloadFailureCount++
	cm.lastReloadSuccess = false
	cm.lastReloadError = err.Error()
}

// triggerReload is called by the file watcher
func (cm *CertificateManager) triggerReload() {
	cm.logger.Info("Certificate reload triggered by file watcher")

	if err := cm.loadCertificates(); err != nil {
		cm.handleReloadError(err)
	}
}

// handleReloadError handles errors that occur during certificate reload
func (cm *CertificateManager) handleReloadError(err error) {
	cm.mu.Lock()
	cm.updateReloadMetrics(err)
	expiry := cm.serverCertExpiry
	callbacks := append([]ReloadCallback(nil), cm.reloadCallbacks...)
	cm.mu.Unlock()

	cm.recordMetrics(err, expiry)
	cm.logger.LogError(err, "Failed to reload certificates")

	for _, callback := range callbacks {
		go callback(false, err)
	}
}

// recordMetrics records the reload outcome and current expiry to OpenTelemetry
func (cm *CertificateManager) recordMetrics(err error, expiry time.Time) {
	metrics := cm.om.GetMetrics()
	ctx := context.Background()

	attrs := []attribute.KeyValue{attribute.String("cert_type", "server")}
	if err != nil {
		attrs = append(attrs, attribute.String("error", err.Error()))
	}
	metrics.RecordBusinessMetric(ctx, observability.MetricCertReload, err == nil, cm.om, attrs...)

	if !expiry.IsZero() {
		metrics.RecordCertExpiry(ctx, expiry)
	}
}

// startExpiryMonitoring periodically republishes the expiry gauge
func (cm *CertificateManager) startExpiryMonitoring() {
	if cm.om == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(expiryMonitorInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				cm.mu.RLock()
				expiry := cm.serverCertExpiry
				cm.mu.RUnlock()
				cm.om.GetMetrics().RecordCertExpiry(context.Background(), expiry)
			case <-cm.stopMonitor:
				return
			}
		}
	}()

	cm.logger.Info("Certificate expiry monitoring started")
}
