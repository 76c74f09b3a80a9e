// Package submission owns the lifecycle of one analysis request per client
// session: the in-flight slot, the concurrency policy and stale-response
// protection.
package submission

import (
	"context"
	stderrors "errors"
	"net/http"
	"sync"
	"time"

	"resumesense/internal/analysis"
	"resumesense/internal/config"
	"resumesense/internal/errors"
	"resumesense/internal/observability"
	"resumesense/internal/render"
	"resumesense/internal/types"
	"resumesense/internal/view"

	"go.opentelemetry.io/otel/attribute"
)

var (
	// ErrSubmissionInFlight is returned under the reject policy while a
	// submission is still running.
	ErrSubmissionInFlight = errors.NewValidationError(errors.ErrCodeSubmissionInFlight,
		"An analysis is already in progress. Please wait for it to finish.", nil)

	// ErrSuperseded marks a submission whose response arrived after a newer
	// submission took its place.
	ErrSuperseded = errors.NewValidationError(errors.ErrCodeSubmissionStale,
		"This analysis was replaced by a newer submission.", nil)
)

// State is a snapshot of a controller.
type State struct {
	Busy     bool   `json:"busy"`
	Sequence uint64 `json:"sequence"`
}

// String reports idle or busy.
func (s State) String() string {
	if s.Busy {
		return "busy"
	}
	return "idle"
}

// Outcome is what one Submit produced. Page is nil when the submission was
// rejected before running or superseded after it.
type Outcome struct {
	Page       *view.Page
	Status     int
	Sequence   uint64
	Superseded bool
	Err        error
}

// Controller runs at most one submission at a time for one session.
type Controller struct {
	analyzer analysis.Analyzer
	policy   string
	render   func(*types.AnalysisResult) *view.Page
	om       *observability.ObservabilityManager
	logger   *errors.Logger

	mu       sync.Mutex
	seq      uint64
	busy     bool
	cancel   context.CancelFunc
	lastUsed time.Time
}

// NewController creates a controller. An unknown policy behaves as reject.
func NewController(analyzer analysis.Analyzer, policy string, om *observability.ObservabilityManager, logger *errors.Logger) *Controller {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	if policy != config.PolicySupersede {
		policy = config.PolicyReject
	}
	return &Controller{
		analyzer: analyzer,
		policy:   policy,
		render:   render.Results,
		om:       om,
		logger:   logger,
		lastUsed: time.Now(),
	}
}

// Policy returns the effective concurrency policy.
func (c *Controller) Policy() string {
	return c.policy
}

// State reports whether a submission is in flight and the latest sequence.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{Busy: c.busy, Sequence: c.seq}
}

// LastUsed is the time of the most recent Submit.
func (c *Controller) LastUsed() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsed
}

// Submit runs one submission through the analysis service and renders it.
func (c *Controller) Submit(ctx context.Context, sub analysis.Submission) Outcome {
	metrics := c.om.GetMetrics()

	seq, runCtx, release, err := c.acquire(ctx)
	if err != nil {
		metrics.RecordBusinessMetric(ctx, observability.MetricSubmissionRejected, false, c.om,
			attribute.String("policy", c.policy))
		c.logger.Info("Submission rejected while another is in flight", "sequence", c.State().Sequence)
		return Outcome{Status: http.StatusConflict, Err: err}
	}
	defer release()

	c.logger.Debug("Submission started", "sequence", seq, "filename", sub.Filename, "policy", c.policy)
	result, err := c.analyzer.Analyze(runCtx, sub)

	if !c.isCurrent(seq) {
		metrics.RecordBusinessMetric(ctx, observability.MetricSubmissionSuperseded, true, c.om)
		c.logger.Info("Discarding response of superseded submission", "sequence", seq)
		return Outcome{Status: http.StatusConflict, Sequence: seq, Superseded: true, Err: ErrSuperseded}
	}

	if err != nil {
		return Outcome{
			Page:     render.RenderError(errors.UserMessage(err)),
			Status:   statusFor(err),
			Sequence: seq,
			Err:      err,
		}
	}

	page := c.render(result)
	metrics.RecordBusinessMetric(ctx, observability.MetricResultRendered, true, c.om,
		attribute.Bool("has_job_description", sub.JobDescription != ""))
	return Outcome{Page: page, Status: http.StatusOK, Sequence: seq}
}

// acquire takes the in-flight slot. The returned release must be called
// exactly once; it frees the slot only if no newer submission owns it.
func (c *Controller) acquire(ctx context.Context) (uint64, context.Context, func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.busy {
		if c.policy == config.PolicyReject {
			return 0, nil, nil, ErrSubmissionInFlight
		}
		c.cancel()
	}

	c.seq++
	seq := c.seq
	runCtx, cancel := context.WithCancel(ctx)
	c.busy = true
	c.cancel = cancel
	c.lastUsed = time.Now()

	release := func() {
		cancel()
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.seq == seq {
			c.busy = false
			c.cancel = nil
		}
	}
	return seq, runCtx, release, nil
}

func (c *Controller) isCurrent(seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq == seq
}

// statusFor maps a submission error to the HTTP status the front end replies with.
func statusFor(err error) int {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		return http.StatusInternalServerError
	}
	switch appErr.Type {
	case errors.ErrorTypeValidation:
		return http.StatusBadRequest
	case errors.ErrorTypeUpstream:
		if status := errors.StatusOf(appErr); status >= http.StatusBadRequest {
			return status
		}
		return http.StatusBadGateway
	case errors.ErrorTypeNetwork:
		if appErr.Code == errors.ErrCodeNetworkTimeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
