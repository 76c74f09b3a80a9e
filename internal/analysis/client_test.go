package analysis

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"resumesense/internal/config"
	"resumesense/internal/errors"
	"resumesense/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUpstreamConfig(baseURL string) config.UpstreamConfig {
	return config.UpstreamConfig{
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
	}
}

func sampleSubmission() Submission {
	return Submission{
		Filename:       "resume.pdf",
		Content:        []byte("%PDF-1.4 resume"),
		JobDescription: "Senior Go engineer",
	}
}

func TestAnalyzeSendsMultipartForm(t *testing.T) {
	var gotAPIKey, gotFilename, gotContent, gotJD string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/analyze", r.URL.Path)
		gotAPIKey = r.Header.Get("X-API-Key")

		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("resume")
		require.NoError(t, err)
		defer file.Close()
		raw, _ := io.ReadAll(file)
		gotFilename = header.Filename
		gotContent = string(raw)
		gotJD = r.FormValue("job_description")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"quality_score": 82.5, "match_score": 71.25}`))
	}))
	defer server.Close()

	cfg := testUpstreamConfig(server.URL)
	cfg.APIKey = "upstream-key"
	client := NewClient(cfg, nil, nil)

	result, err := client.Analyze(context.Background(), sampleSubmission())
	require.NoError(t, err)

	assert.Equal(t, 82.5, result.QualityScore)
	require.NotNil(t, result.MatchScore)
	assert.Equal(t, 71.25, *result.MatchScore)
	assert.Nil(t, result.ATSScore)

	assert.Equal(t, "upstream-key", gotAPIKey)
	assert.Equal(t, "resume.pdf", gotFilename)
	assert.Equal(t, "%PDF-1.4 resume", gotContent)
	assert.Equal(t, "Senior Go engineer", gotJD)
}

func TestAnalyzeOmitsEmptyJobDescription(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, present := r.MultipartForm.Value["job_description"]
		assert.False(t, present)
		assert.Empty(t, r.Header.Get("X-API-Key"))
		_, _ = w.Write([]byte(`{"quality_score": 10}`))
	}))
	defer server.Close()

	sub := sampleSubmission()
	sub.JobDescription = ""
	_, err := NewClient(testUpstreamConfig(server.URL), nil, nil).Analyze(context.Background(), sub)
	require.NoError(t, err)
}

func TestAnalyzeUpstreamErrors(t *testing.T) {
	tests := []struct {
		name           string
		status         int
		body           string
		expectedStatus int
		expectedMsg    string
	}{
		{
			name:           "error field is surfaced",
			status:         http.StatusBadRequest,
			body:           `{"error":"file too large"}`,
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "file too large",
		},
		{
			name:           "missing error field",
			status:         http.StatusInternalServerError,
			body:           `{}`,
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    "Analysis failed",
		},
		{
			name:           "non-json body",
			status:         http.StatusBadGateway,
			body:           `<html>bad gateway</html>`,
			expectedStatus: http.StatusBadGateway,
			expectedMsg:    "Analysis failed",
		},
		{
			name:           "undecodable success body",
			status:         http.StatusOK,
			body:           `not json`,
			expectedStatus: http.StatusOK,
			expectedMsg:    "Analysis failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(testUpstreamConfig(server.URL), nil, nil).Analyze(context.Background(), sampleSubmission())
			require.Error(t, err)

			appErr, ok := err.(*errors.AppError)
			require.True(t, ok, "expected *errors.AppError, got %T", err)
			assert.Equal(t, errors.ErrorTypeUpstream, appErr.Type)
			assert.Equal(t, tt.expectedMsg, errors.UserMessage(err))
			assert.Equal(t, tt.expectedStatus, errors.StatusOf(err))
		})
	}
}

func TestAnalyzeNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(testUpstreamConfig(url), nil, nil).Analyze(context.Background(), sampleSubmission())
	require.Error(t, err)

	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorTypeNetwork, appErr.Type)
	assert.NotEmpty(t, appErr.UserMessage())
	assert.Contains(t, appErr.UserMessage(), "connect")
}

func TestAnalyzeRejectsInvalidSubmission(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := NewClient(testUpstreamConfig(server.URL), nil, nil)

	_, err := client.Analyze(context.Background(), Submission{})
	require.Error(t, err)
	assert.Equal(t, "A resume file is required", errors.UserMessage(err))

	_, err = client.Analyze(context.Background(), Submission{Filename: "empty.pdf"})
	require.Error(t, err)
	assert.Equal(t, "The resume file is empty", errors.UserMessage(err))

	assert.Zero(t, calls.Load())
}

func TestAnalyzeHonoursCancellation(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := NewClient(testUpstreamConfig(server.URL), nil, nil).Analyze(ctx, sampleSubmission())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzeFullPayloadRoundTrip(t *testing.T) {
	payload := types.AnalysisResult{
		QualityScore: 90,
		ATSScore:     types.Float(88),
		ATSReport: &types.ATSReport{
			SectionChecks:   types.SectionChecks{Education: true, Experience: true},
			Recommendations: []string{"Add a skills section"},
		},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	result, err := NewClient(testUpstreamConfig(server.URL), nil, nil).Analyze(context.Background(), sampleSubmission())
	require.NoError(t, err)
	assert.Equal(t, payload, *result)
}
