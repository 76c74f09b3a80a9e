package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"resumesense/internal/analysis"
	"resumesense/internal/config"
	"resumesense/internal/errors"
	"resumesense/internal/submission"
	"resumesense/internal/types"
	"resumesense/internal/view"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultPayload = `{
	"quality_score": 82.5,
	"ats_score": 74,
	"ats_report": {"section_checks": {"education": true, "experience": true, "skills": false}, "recommendations": ["Add a skills section"]},
	"match_score": null,
	"resume_insights": {
		"projects": [{"title": "Ledger", "summary": "Built a <b>ledger</b>", "tech_stack": ["Go"], "confidence": 0.9}],
		"achievements": []
	}
}`

type pageJSON struct {
	Containers []struct {
		ID      string `json:"id"`
		Visible bool   `json:"visible"`
		Text    string `json:"text"`
	} `json:"containers"`
	ActiveTab string `json:"activeTab"`
}

func (p pageJSON) visible(id string) bool {
	for _, c := range p.Containers {
		if c.ID == id {
			return c.Visible
		}
	}
	return false
}

func (p pageJSON) text(id string) string {
	for _, c := range p.Containers {
		if c.ID == id {
			return c.Text
		}
	}
	return ""
}

func testConfig(upstreamURL string) *config.Config {
	return &config.Config{
		Upstream: config.UpstreamConfig{BaseURL: upstreamURL, Timeout: 5 * time.Second},
		Submission: config.SubmissionConfig{
			Policy:     config.PolicyReject,
			SessionTTL: time.Minute,
			CookieName: "rs_session",
		},
		App: config.AppConfig{
			DefaultFormat:    "html",
			SupportedFormats: []string{"html", "json", "text", "markdown"},
			MaxFileSize:      1024,
		},
	}
}

// newTestServer wires a server whose analyzer talks to upstream over HTTP.
func newTestServer(t *testing.T, cfg *config.Config, analyzer analysis.Analyzer) (*Server, http.Handler) {
	t.Helper()
	s := NewServer(cfg, ServerConfigFrom(cfg, "test"), errors.NewNopLogger())
	if analyzer == nil {
		client := analysis.NewClient(cfg.Upstream, nil, nil)
		analyzer = client
		s.Breaker = client.Breaker()
	}
	s.Analyzer = analyzer
	handler := s.Handler(nil)
	t.Cleanup(s.releaseResources)
	return s, handler
}

func upstream(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/analyze", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func analyzeRequest(t *testing.T, fields map[string]string, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		fw, err := mw.CreateFormFile("resume", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodePage(t *testing.T, rec *httptest.ResponseRecorder) pageJSON {
	t.Helper()
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var page pageJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	return page
}

func TestIndexServesBaselineForm(t *testing.T) {
	_, handler := newTestServer(t, testConfig("http://unused.invalid"), &stubAnalyzer{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, `action="/analyze"`)
	assert.Contains(t, body, `name="resume"`)
	assert.Contains(t, body, `id="results" class="results" style="display:none"`)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyzeRendersUpstreamResult(t *testing.T) {
	srv := upstream(t, http.StatusOK, resultPayload)
	_, handler := newTestServer(t, testConfig(srv.URL), nil)

	rec := httptest.NewRecorder()
	req := analyzeRequest(t, map[string]string{"format": "json", "tab": "achievements"}, "resume.pdf", []byte("%PDF"))
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	page := decodePage(t, rec)
	assert.True(t, page.visible(view.IDResults))
	assert.False(t, page.visible(view.IDError))
	assert.Equal(t, "82.5", page.text(view.IDQualityScore))
	assert.True(t, page.visible(view.IDATSCard))
	assert.False(t, page.visible(view.IDMatchCard), "null match score stays hidden")
	assert.True(t, page.visible(view.IDInsightsPanel))
	assert.Equal(t, view.TabAchievements, page.ActiveTab)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "rs_session", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
}

func TestAnalyzeEscapesPayloadInHTML(t *testing.T) {
	srv := upstream(t, http.StatusOK, resultPayload)
	_, handler := newTestServer(t, testConfig(srv.URL), nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, analyzeRequest(t, nil, "resume.pdf", []byte("%PDF")))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Built a &lt;b&gt;ledger&lt;/b&gt;")
	assert.NotContains(t, body, "<b>ledger</b>")
}

func TestAnalyzeSurfacesUpstreamErrors(t *testing.T) {
	tests := []struct {
		name           string
		status         int
		body           string
		expectedStatus int
		expectedError  string
	}{
		{"rejected file", http.StatusBadRequest, `{"error":"file too large"}`, http.StatusBadRequest, "file too large"},
		{"server error without message", http.StatusInternalServerError, `{}`, http.StatusInternalServerError, "Analysis failed"},
		{"gateway html", http.StatusBadGateway, `<html>bad gateway</html>`, http.StatusBadGateway, "Analysis failed"},
		{"undecodable success", http.StatusOK, `not json`, http.StatusBadGateway, "Analysis failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := upstream(t, tt.status, tt.body)
			s, handler := newTestServer(t, testConfig(srv.URL), nil)

			sessionID, controller := s.Sessions.Get("", "")
			req := analyzeRequest(t, map[string]string{"format": "json"}, "resume.pdf", []byte("%PDF"))
			req.AddCookie(&http.Cookie{Name: "rs_session", Value: sessionID})

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			page := decodePage(t, rec)
			assert.True(t, page.visible(view.IDError))
			assert.False(t, page.visible(view.IDResults))
			assert.Equal(t, tt.expectedError, page.text(view.IDError))

			state := controller.State()
			assert.False(t, state.Busy, "the session is idle again after an upstream error")
			assert.Equal(t, uint64(1), state.Sequence)
		})
	}
}

func TestAnalyzeUnreachableUpstream(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, handler := newTestServer(t, testConfig(url), nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, analyzeRequest(t, map[string]string{"format": "json"}, "resume.pdf", []byte("%PDF")))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	page := decodePage(t, rec)
	assert.Contains(t, page.text(view.IDError), "connect")
}

func TestAnalyzeFormValidation(t *testing.T) {
	analyzer := &stubAnalyzer{result: &types.AnalysisResult{}}
	_, handler := newTestServer(t, testConfig("http://unused.invalid"), analyzer)

	tests := []struct {
		name           string
		filename       string
		content        []byte
		expectedStatus int
		expectedError  string
	}{
		{"missing file", "", nil, http.StatusBadRequest, "Please select a resume file to analyze."},
		{"empty file", "resume.pdf", nil, http.StatusBadRequest, "The resume file is empty"},
		{"oversized file", "resume.pdf", bytes.Repeat([]byte("x"), 2048), http.StatusRequestEntityTooLarge, "The resume file is too large (limit is 1 KB)."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, analyzeRequest(t, map[string]string{"format": "json"}, tt.filename, tt.content))

			assert.Equal(t, tt.expectedStatus, rec.Code)
			page := decodePage(t, rec)
			assert.Equal(t, tt.expectedError, page.text(view.IDError))
		})
	}

	assert.Zero(t, analyzer.calls.Load(), "invalid forms never reach the service")
}

func TestAnalyzeRejectsNonMultipartBody(t *testing.T) {
	_, handler := newTestServer(t, testConfig("http://unused.invalid"), &stubAnalyzer{})

	req := httptest.NewRequest(http.MethodPost, "/analyze?format=text", strings.NewReader("resume=plain"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "The upload could not be read.")
}

func TestAnalyzeRejectsConcurrentSubmissionInSession(t *testing.T) {
	analyzer := &stubAnalyzer{
		result:  &types.AnalysisResult{QualityScore: 60},
		gate:    make(chan struct{}),
		started: make(chan struct{}),
	}
	s, handler := newTestServer(t, testConfig("http://unused.invalid"), analyzer)

	sessionID, _ := s.Sessions.Get("", "")
	withSession := func(req *http.Request) *http.Request {
		req.AddCookie(&http.Cookie{Name: "rs_session", Value: sessionID})
		return req
	}

	firstReq := withSession(analyzeRequest(t, map[string]string{"format": "json"}, "a.pdf", []byte("a")))
	first := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, firstReq)
		first <- rec
	}()
	<-analyzer.started

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, withSession(analyzeRequest(t, map[string]string{"format": "json"}, "b.pdf", []byte("b"))))
	assert.Equal(t, http.StatusConflict, rec.Code)
	page := decodePage(t, rec)
	assert.Equal(t, errors.UserMessage(submission.ErrSubmissionInFlight), page.text(view.IDError))
	assert.Empty(t, rec.Result().Cookies(), "known session keeps its cookie")

	// A different client is independent.
	otherReq := analyzeRequest(t, map[string]string{"format": "json"}, "c.pdf", []byte("c"))
	otherReq.RemoteAddr = "198.51.100.9:4000"
	other := httptest.NewRecorder()
	handler.ServeHTTP(other, otherReq)
	assert.Equal(t, http.StatusOK, other.Code)

	close(analyzer.gate)
	done := <-first
	assert.Equal(t, http.StatusOK, done.Code)
	assert.Equal(t, "60.0", decodePage(t, done).text(view.IDQualityScore))
}

func TestAnalyzeRejectsConcurrentSubmissionWithoutCookie(t *testing.T) {
	analyzer := &stubAnalyzer{
		result:  &types.AnalysisResult{QualityScore: 70},
		gate:    make(chan struct{}),
		started: make(chan struct{}),
	}
	s, handler := newTestServer(t, testConfig("http://unused.invalid"), analyzer)

	firstReq := analyzeRequest(t, map[string]string{"format": "json"}, "a.pdf", []byte("a"))
	first := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, firstReq)
		first <- rec
	}()
	<-analyzer.started

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, analyzeRequest(t, map[string]string{"format": "json"}, "b.pdf", []byte("b")))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, errors.UserMessage(submission.ErrSubmissionInFlight), decodePage(t, rec).text(view.IDError))

	close(analyzer.gate)
	done := <-first
	assert.Equal(t, http.StatusOK, done.Code)
	assert.Equal(t, int32(1), analyzer.calls.Load())

	for range 3 {
		handler.ServeHTTP(httptest.NewRecorder(), analyzeRequest(t, map[string]string{"format": "json"}, "c.pdf", []byte("c")))
	}
	assert.Equal(t, 1, s.Sessions.Len(), "cookie-less requests from one client share a controller")
}

func TestAnalyzeUnsupportedFormat(t *testing.T) {
	cfg := testConfig("http://unused.invalid")
	cfg.App.SupportedFormats = []string{"html", "json"}
	_, handler := newTestServer(t, cfg, &stubAnalyzer{result: &types.AnalysisResult{}})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, analyzeRequest(t, map[string]string{"format": "markdown"}, "resume.pdf", []byte("x")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Unsupported format", resp.Error)
}

func TestRenderEndpoint(t *testing.T) {
	_, handler := newTestServer(t, testConfig("http://unused.invalid"), &stubAnalyzer{})

	t.Run("json by default", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/render?tab=achievements", strings.NewReader(resultPayload))
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		page := decodePage(t, rec)
		assert.True(t, page.visible(view.IDResults))
		assert.Equal(t, "74.0", page.text(view.IDATSScore))
		assert.Equal(t, view.TabAchievements, page.ActiveTab)
	})

	t.Run("markdown on request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/render?format=markdown", strings.NewReader(resultPayload))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), "Add a skills section")
	})

	t.Run("unknown tab is ignored", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/render?tab=bogus", strings.NewReader(resultPayload))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, view.TabProjects, decodePage(t, rec).ActiveTab)
	})

	t.Run("invalid bodies", func(t *testing.T) {
		for _, tc := range []struct{ contentType, body string }{
			{"text/plain", resultPayload},
			{"application/json", "{"},
		} {
			req := httptest.NewRequest(http.MethodPost, "/api/render", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", tc.contentType)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code, tc.contentType)
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/render", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestRenderEndpointRequiresAPIKey(t *testing.T) {
	cfg := testConfig("http://unused.invalid")
	cfg.Server.APIKeys = []string{"secret-key-123"}
	_, handler := newTestServer(t, cfg, &stubAnalyzer{})

	tests := []struct {
		name           string
		header         string
		value          string
		expectedStatus int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong", "X-API-Key", "nope", http.StatusUnauthorized},
		{"header", "X-API-Key", "secret-key-123", http.StatusOK},
		{"bearer", "Authorization", "Bearer secret-key-123", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/render", strings.NewReader(`{"quality_score": 10}`))
			req.Header.Set("Content-Type", "application/json")
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.expectedStatus, rec.Code)
		})
	}

	// The browser form stays public.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitedRoutes(t *testing.T) {
	cfg := testConfig("http://unused.invalid")
	cfg.Server.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMin: 1, BurstCapacity: 1, ByIP: true}
	_, handler := newTestServer(t, cfg, &stubAnalyzer{})

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/render", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", ip)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1"))
	assert.Equal(t, http.StatusOK, send("10.0.0.2"), "limits are per client")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "health is not rate limited")
}

func TestHealthAndStats(t *testing.T) {
	s, handler := newTestServer(t, testConfig("http://upstream.test"), &stubAnalyzer{})
	s.Sessions.Get("", "")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "test", health["version"])
	upstreamStatus := health["upstream"].(map[string]any)
	assert.Equal(t, "http://upstream.test", upstreamStatus["base_url"])
	assert.NotContains(t, health, "certificates")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	sessions := stats["sessions"].(map[string]any)
	assert.EqualValues(t, 1, sessions["active_sessions"])
	assert.Equal(t, config.PolicyReject, sessions["policy"])
	assert.Equal(t, map[string]any{"enabled": false}, stats["rate_limiting"])

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthDegradesWhenBreakerOpens(t *testing.T) {
	srv := upstream(t, http.StatusServiceUnavailable, `{"error":"overloaded"}`)
	cfg := testConfig(srv.URL)
	cfg.Upstream.CircuitBreaker = config.CircuitBreakerConfig{
		Enabled: true, MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute,
		MinRequests: 1, FailureThreshold: 0.5,
	}
	_, handler := newTestServer(t, cfg, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, analyzeRequest(t, map[string]string{"format": "json"}, "resume.pdf", []byte("x")))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, analyzeRequest(t, map[string]string{"format": "json"}, "resume.pdf", []byte("x")))
	assert.Equal(t, analysis.UnavailableMessage, decodePage(t, rec).text(view.IDError))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"degraded"`)
}

func TestNegotiateFormat(t *testing.T) {
	s := NewServer(testConfig("http://unused.invalid"), ServerConfig{}, nil)

	tests := []struct {
		name     string
		explicit string
		accept   string
		expected string
	}{
		{"explicit wins", "Markdown", "application/json", "markdown"},
		{"json accept", "", "application/json", "json"},
		{"browser accept", "", "text/html,application/xhtml+xml,*/*;q=0.8", "html"},
		{"plain text", "", "text/plain; charset=utf-8", "text"},
		{"markdown accept", "", "text/markdown", "markdown"},
		{"wildcard falls back", "", "*/*", "html"},
		{"no header", "", "", "html"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/analyze", nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			assert.Equal(t, tt.expected, s.negotiateFormat(req, tt.explicit))
		})
	}
}

// stubAnalyzer returns a canned result. When gate is set the first call
// blocks until it closes.
type stubAnalyzer struct {
	calls   atomic.Int32
	result  *types.AnalysisResult
	err     error
	gate    chan struct{}
	started chan struct{}
}

func (s *stubAnalyzer) Analyze(ctx context.Context, _ analysis.Submission) (*types.AnalysisResult, error) {
	if s.calls.Add(1) == 1 && s.gate != nil {
		close(s.started)
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.result, s.err
}
