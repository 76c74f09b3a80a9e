package server

import (
	"net/http"

	"resumesense/internal/observability"
	"resumesense/internal/submission"
)

// setupRoutes configures all HTTP routes and middleware
func (s *Server) setupRoutes(om *observability.ObservabilityManager) *http.ServeMux {
	mux := http.NewServeMux()

	rateLimitHandler := s.rateLimitMiddleware(om)
	requestLimitHandler := s.requestSizeLimitMiddleware()

	mux.HandleFunc("/", s.indexHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/stats", s.statsHandler)
	mux.HandleFunc("/analyze",
		rateLimitHandler(requestLimitHandler(s.createAnalyzeHandler(om))),
	)
	mux.HandleFunc("/api/render",
		rateLimitHandler(
			s.authMiddleware(requestLimitHandler(s.createRenderHandler(om))),
		),
	)

	return mux
}

// Handler returns the instrumented route tree. The session registry is
// created on first use when Start has not already done so.
func (s *Server) Handler(om *observability.ObservabilityManager) http.Handler {
	s.ensureSessions(om)
	return om.HTTPMiddleware()(s.setupRoutes(om))
}

// ensureSessions builds the session registry over the configured analyzer
func (s *Server) ensureSessions(om *observability.ObservabilityManager) {
	if s.Sessions != nil {
		return
	}

	policy, ttl, interval := "", defaultSessionTTL, defaultSessionTTL/6
	if s.AppConfig != nil {
		policy = s.AppConfig.Submission.Policy
		ttl = s.AppConfig.Submission.SessionTTL
		interval = s.AppConfig.Submission.CleanupInterval
	}
	s.Sessions = submission.NewRegistry(s.Analyzer, policy, ttl, interval, om, s.Logger)
}

// authMiddleware provides API key authentication
func (s *Server) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Skip authentication if no API keys are configured
		if len(s.APIKeys) == 0 {
			next(w, r)
			return
		}

		apiKey := requestAPIKey(r)
		if apiKey == "" {
			s.Logger.Info("Authentication failed: missing API key",
				"endpoint", r.URL.Path,
				"client_ip", getClientIP(r))
			writeErrorResponse(w, "Missing API key", "X-API-Key header or Authorization Bearer token required", http.StatusUnauthorized)
			return
		}

		if !s.APIKeys[apiKey] {
			s.Logger.Info("Authentication failed: invalid API key",
				"endpoint", r.URL.Path,
				"client_ip", getClientIP(r),
				"api_key_prefix", maskAPIKey(apiKey))
			writeErrorResponse(w, "Invalid API key", "Unauthorized access", http.StatusUnauthorized)
			return
		}

		s.Logger.Debug("API authentication successful",
			"endpoint", r.URL.Path,
			"api_key_prefix", maskAPIKey(apiKey))

		next(w, r)
	}
}

// requestSizeLimitMiddleware limits the size of incoming requests
func (s *Server) requestSizeLimitMiddleware() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if s.MaxRequestSize > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, s.MaxRequestSize)
			}

			next(w, r)
		}
	}
}

// maskAPIKey masks an API key for logging (shows only first 8 characters)
func maskAPIKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return "****"
	}
	return apiKey[:8] + "****"
}
