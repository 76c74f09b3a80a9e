package submission

import (
	"sync"
	"time"

	"resumesense/internal/analysis"
	"resumesense/internal/errors"
	"resumesense/internal/observability"

	"github.com/google/uuid"
)

// clientPrefix marks controllers keyed by client identity rather than session
const clientPrefix = "client:"

// Registry hands out one Controller per browser session and evicts idle ones.
type Registry struct {
	mu          sync.Mutex
	controllers map[string]*Controller
	analyzer    analysis.Analyzer
	policy      string
	ttl         time.Duration
	om          *observability.ObservabilityManager
	logger      *errors.Logger
	done        chan struct{}
	closeOnce   sync.Once
}

// NewRegistry creates a registry and starts its cleanup goroutine when
// cleanupInterval is positive.
func NewRegistry(analyzer analysis.Analyzer, policy string, ttl, cleanupInterval time.Duration, om *observability.ObservabilityManager, logger *errors.Logger) *Registry {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	r := &Registry{
		controllers: make(map[string]*Controller),
		analyzer:    analyzer,
		policy:      policy,
		ttl:         ttl,
		om:          om,
		logger:      logger,
		done:        make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go r.cleanupRoutine(cleanupInterval)
	}
	return r
}

// NewSessionID returns a fresh random session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// Get returns the controller for sessionID, creating it if needed. A missing
// or malformed ID is replaced by a fresh one for the caller to issue, and the
// request is served by the controller shared by clientKey so that callers
// without a session still get a single in-flight slot.
func (r *Registry) Get(sessionID, clientKey string) (string, *Controller) {
	key := sessionID
	if _, err := uuid.Parse(sessionID); err != nil {
		sessionID = NewSessionID()
		key = sessionID
		if clientKey != "" {
			key = clientPrefix + clientKey
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	controller, ok := r.controllers[key]
	if !ok {
		controller = NewController(r.analyzer, r.policy, r.om, r.logger)
		r.controllers[key] = controller
		r.logger.Debug("Session created", "session", key)
	}
	return sessionID, controller
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.controllers)
}

// GetStats returns registry statistics for the stats endpoint
func (r *Registry) GetStats() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()

	busy := 0
	for _, c := range r.controllers {
		if c.State().Busy {
			busy++
		}
	}
	return map[string]any{
		"active_sessions": len(r.controllers),
		"busy_sessions":   busy,
		"policy":          r.policy,
		"session_ttl":     r.ttl.String(),
	}
}

func (r *Registry) cleanupRoutine(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.cleanup(time.Now())
		case <-r.done:
			return
		}
	}
}

// cleanup drops idle controllers unused for longer than the TTL. Busy ones
// are kept regardless of age.
func (r *Registry) cleanup(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, c := range r.controllers {
		if c.State().Busy {
			continue
		}
		if now.Sub(c.LastUsed()) > r.ttl {
			delete(r.controllers, id)
		}
	}

	r.logger.Debug("Session cleanup completed", "remaining_sessions", len(r.controllers))
}

// Close stops the cleanup goroutine.
func (r *Registry) Close() {
	r.closeOnce.Do(func() { close(r.done) })
}
