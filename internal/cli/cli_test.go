package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"resumesense/internal/config"
	"resumesense/internal/errors"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePayload = `{
	"quality_score": 82.5,
	"ats_score": 74,
	"ats_report": {"section_checks": {"education": true, "experience": true, "skills": false}, "recommendations": ["Add a skills section"]},
	"resume_insights": {"projects": [{"title": "Search engine", "description": "Built an index"}]}
}`

func testConfig(upstreamURL string) *config.Config {
	return &config.Config{
		Upstream: config.UpstreamConfig{BaseURL: upstreamURL, Timeout: 5 * time.Second},
		App: config.AppConfig{
			DefaultFormat:    "text",
			SupportedFormats: []string{"html", "json", "text", "markdown"},
			MaxFileSize:      1024,
		},
	}
}

// testCommand returns a command carrying cfg and a silent logger in its context.
func testCommand(cfg *config.Config) (*cobra.Command, *bytes.Buffer) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetContext(withRuntime(context.Background(), cfg, errors.NewNopLogger()))
	cmd.SetOut(&out)
	return cmd, &out
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRenderCommand(t *testing.T) {
	payload := writeFile(t, "result.json", samplePayload)

	t.Run("text output", func(t *testing.T) {
		cmd, out := testCommand(testConfig("http://localhost:5000"))
		renderOptions.OutputFormat = ""
		renderOptions.tab = ""
		require.NoError(t, resolveFormat(cmd, &renderOptions.CommandConfig))
		assert.Equal(t, "text", renderOptions.OutputFormat)

		require.NoError(t, runRender(cmd, []string{payload}))
		assert.Contains(t, out.String(), "82.5")
		assert.Contains(t, out.String(), "Add a skills section")
	})

	t.Run("json with tab", func(t *testing.T) {
		cmd, out := testCommand(testConfig("http://localhost:5000"))
		renderOptions.OutputFormat = "json"
		renderOptions.tab = "achievements"

		require.NoError(t, runRender(cmd, []string{payload}))

		var page map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &page))
		assert.Equal(t, "achievements", page["activeTab"])
	})

	t.Run("stdin", func(t *testing.T) {
		cmd, out := testCommand(testConfig("http://localhost:5000"))
		cmd.SetIn(strings.NewReader(`{"quality_score": 55}`))
		renderOptions.OutputFormat = "markdown"
		renderOptions.tab = ""

		require.NoError(t, runRender(cmd, []string{"-"}))
		assert.Contains(t, out.String(), "55.0")
	})

	t.Run("invalid payload", func(t *testing.T) {
		cmd, out := testCommand(testConfig("http://localhost:5000"))
		renderOptions.OutputFormat = "text"

		err := runRender(cmd, []string{writeFile(t, "bad.json", "{not json")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Invalid analysis payload")
		assert.Empty(t, out.String())
	})
}

func TestResolveFormatRejectsDisabledFormat(t *testing.T) {
	cfg := testConfig("http://localhost:5000")
	cfg.App.SupportedFormats = []string{"json"}
	cfg.App.DefaultFormat = "json"
	cmd, _ := testCommand(cfg)

	opts := renderOptions.CommandConfig
	opts.OutputFormat = "html"
	assert.Error(t, resolveFormat(cmd, &opts))
}

func TestAnalyzeCommand(t *testing.T) {
	var gotJobDescription string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/analyze", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		gotJobDescription = r.FormValue("job_description")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(samplePayload))
	}))
	defer upstream.Close()

	resume := writeFile(t, "resume.pdf", "%PDF-1.4 resume")
	jobDescription := writeFile(t, "job.txt", "  Go engineer with Kubernetes  \n")

	cmd, out := testCommand(testConfig(upstream.URL))
	analyzeOptions.OutputFormat = "text"
	analyzeOptions.jobDescriptionFile = jobDescription
	analyzeOptions.tab = ""

	require.NoError(t, runAnalyze(cmd, []string{resume}))
	assert.Equal(t, "Go engineer with Kubernetes", gotJobDescription)
	assert.Contains(t, out.String(), "82.5")
}

func TestAnalyzeCommandWritesErrorPage(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "Unsupported file type"}`))
	}))
	defer upstream.Close()

	cmd, out := testCommand(testConfig(upstream.URL))
	analyzeOptions.OutputFormat = "text"
	analyzeOptions.jobDescriptionFile = ""

	err := runAnalyze(cmd, []string{writeFile(t, "resume.pdf", "%PDF-1.4")})
	require.Error(t, err)
	assert.Contains(t, out.String(), "Unsupported file type")
}

func TestAnalyzeCommandRejectsOversizedResume(t *testing.T) {
	cmd, out := testCommand(testConfig("http://127.0.0.1:1"))
	analyzeOptions.OutputFormat = "text"
	analyzeOptions.jobDescriptionFile = ""

	err := runAnalyze(cmd, []string{writeFile(t, "resume.pdf", strings.Repeat("x", 2048))})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid resume file")
	assert.Empty(t, out.String())
}

func TestContextHelpersRequireRuntime(t *testing.T) {
	_, err := getConfigFromContext(context.Background())
	assert.Error(t, err)
	_, err = getLoggerFromContext(context.Background())
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	defer versionCmd.SetOut(nil)

	versionCmd.Run(versionCmd, nil)
	assert.Contains(t, out.String(), "resumesense version "+Version)
}
