// Package analysis talks to the external resume analysis service.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"resumesense/internal/config"
	"resumesense/internal/errors"
	"resumesense/internal/observability"
	"resumesense/internal/types"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	analyzePath = "/api/analyze"

	// Multipart field names expected by the service
	fieldResume         = "resume"
	fieldJobDescription = "job_description"

	// DefaultFailureMessage replaces a missing or unreadable error body.
	DefaultFailureMessage = "Analysis failed"

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 10 << 20
)

// Submission is one resume upload plus its optional job description.
type Submission struct {
	Filename       string
	Content        []byte
	JobDescription string
}

// Validate checks the submission before any network use.
func (s Submission) Validate() error {
	if s.Filename == "" {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "A resume file is required", nil)
	}
	if len(s.Content) == 0 {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "The resume file is empty", nil).
			WithContext("filename", s.Filename)
	}
	return nil
}

// Analyzer is the behaviour the submission lifecycle needs from a client.
type Analyzer interface {
	Analyze(ctx context.Context, sub Submission) (*types.AnalysisResult, error)
}

// Client posts submissions to the analysis service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *CircuitBreaker
	om         *observability.ObservabilityManager
	logger     *errors.Logger
}

var _ Analyzer = (*Client)(nil)

// NewClient builds a client from the upstream section of the config.
func NewClient(cfg config.UpstreamConfig, om *observability.ObservabilityManager, logger *errors.Logger) *Client {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: NewCircuitBreaker("analysis-service", cfg.CircuitBreaker, logger),
		om:      om,
		logger:  logger,
	}
}

// Breaker exposes the client's circuit breaker for health reporting.
func (c *Client) Breaker() *CircuitBreaker {
	return c.breaker
}

// Analyze submits the resume and decodes the service's result. Every error
// returned is an *errors.AppError.
func (c *Client) Analyze(ctx context.Context, sub Submission) (*types.AnalysisResult, error) {
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	var result *types.AnalysisResult
	err := c.om.GetMetrics().TrackUpstreamCall(ctx, "analyze", func(ctx context.Context) error {
		var callErr error
		result, callErr = c.breaker.Execute(func() (*types.AnalysisResult, error) {
			return c.post(ctx, sub)
		})
		return callErr
	}, c.om)
	if err != nil {
		c.logger.LogError(err, "Analysis request failed",
			"filename", sub.Filename,
			"status", errors.StatusOf(err))
		return nil, err
	}

	c.logger.Debug("Analysis request succeeded",
		"filename", sub.Filename,
		"quality_score", result.QualityScore)
	return result, nil
}

func (c *Client) post(ctx context.Context, sub Submission) (*types.AnalysisResult, error) {
	body, contentType, err := encodeSubmission(sub)
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInvalidRequest, "Failed to encode submission", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+analyzePath, body)
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInvalidRequest, "Failed to build analysis request", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, networkError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, networkError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, upstreamError(resp.StatusCode, raw)
	}

	var result types.AnalysisResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, errors.NewUpstreamError(errors.ErrCodeUpstreamFailed, DefaultFailureMessage, resp.StatusCode).
			WithContext("decode_error", err.Error())
	}
	return &result, nil
}

// encodeSubmission writes the multipart form the service expects.
func encodeSubmission(sub Submission) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	fileWriter, err := writer.CreateFormFile(fieldResume, sub.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := fileWriter.Write(sub.Content); err != nil {
		return nil, "", fmt.Errorf("write form file: %w", err)
	}
	if sub.JobDescription != "" {
		if err := writer.WriteField(fieldJobDescription, sub.JobDescription); err != nil {
			return nil, "", fmt.Errorf("write job description: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}

// upstreamError turns a non-2xx response into the message shown to the user.
func upstreamError(status int, raw []byte) *errors.AppError {
	message := DefaultFailureMessage
	var body types.ErrorBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		message = body.Error
	}
	return errors.NewUpstreamError(errors.ErrCodeUpstreamRejected, message, status)
}

// networkError keeps the transport's own text as the user message. Context
// errors pass through unwrapped in Cause so callers can detect cancellation.
func networkError(err error) *errors.AppError {
	code := errors.ErrCodeUpstreamFailed
	if stderrors.Is(err, context.DeadlineExceeded) {
		code = errors.ErrCodeNetworkTimeout
	}
	return errors.NewNetworkError(code, err.Error(), err)
}
