package server

import (
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"resumesense/internal/analysis"
	"resumesense/internal/config"
	"resumesense/internal/errors"
	"resumesense/internal/formatters"
	"resumesense/internal/observability"
	"resumesense/internal/render"
	"resumesense/internal/submission"
	"resumesense/internal/types"
	"resumesense/internal/view"

	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultSessionTTL = 30 * time.Minute
	defaultCookieName = "resumesense_session"
)

// acceptFormats maps media types from the Accept header to output formats
var acceptFormats = map[string]string{
	"text/html":        formatters.FormatHTML,
	"application/json": formatters.FormatJSON,
	"text/plain":       formatters.FormatText,
	"text/markdown":    formatters.FormatMarkdown,
}

// analyzeForm is the browser form, minus the file itself
type analyzeForm struct {
	format string
	tab    string
}

// indexHandler serves the upload form over the baseline page
func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = formatters.FormatHTML
	}
	s.writePage(w, view.NewPage(), format, http.StatusOK)
}

// createAnalyzeHandler runs one browser submission through the session's controller
func (s *Server) createAnalyzeHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		ctx, span := om.Tracer("resumesense.api").Start(r.Context(), "api.analyze")
		defer span.End()

		sub, form, err := s.parseSubmission(r)
		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "validation"))
			s.Logger.Debug("Rejected analyze form", "error", err.Error())
			status := errors.StatusOf(err)
			if status == 0 {
				status = http.StatusBadRequest
			}
			s.writePage(w, render.RenderError(errors.UserMessage(err)), form.format, status)
			return
		}

		span.SetAttributes(
			attribute.String("request.filename", sub.Filename),
			attribute.Int("request.resume_size", len(sub.Content)),
			attribute.Bool("request.has_job_description", sub.JobDescription != ""),
		)

		controller := s.sessionController(w, r)
		outcome := controller.Submit(ctx, sub)

		span.SetAttributes(
			attribute.Int("response.status", outcome.Status),
			attribute.Int64("submission.sequence", int64(outcome.Sequence)),
			attribute.Bool("submission.superseded", outcome.Superseded),
		)

		page := outcome.Page
		if outcome.Err != nil {
			span.RecordError(outcome.Err)
			if page == nil {
				page = render.RenderError(errors.UserMessage(outcome.Err))
			}
		}
		s.activateTab(page, form.tab)

		s.writePage(w, page, form.format, outcome.Status)
	}
}

// createRenderHandler renders a posted analysis payload without calling upstream
func (s *Server) createRenderHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		ctx, span := om.Tracer("resumesense.api").Start(r.Context(), "api.render")
		defer span.End()

		var result types.AnalysisResult
		if err := parseJSONRequest(r, &result); err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "validation"))
			writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
			return
		}

		format := r.URL.Query().Get("format")
		if format == "" {
			format = formatters.FormatJSON
		}

		page := render.Results(&result)
		s.activateTab(page, r.URL.Query().Get("tab"))

		om.GetMetrics().RecordBusinessMetric(ctx, observability.MetricResultRendered, true, om,
			attribute.String("source", "api"))
		span.SetAttributes(attribute.String("response.format", format))

		s.writePage(w, page, format, http.StatusOK)
	}
}

// parseSubmission reads the multipart form. The returned form is usable even
// when err is set so the error page honors the requested format.
func (s *Server) parseSubmission(r *http.Request) (analysis.Submission, analyzeForm, error) {
	form := analyzeForm{format: s.negotiateFormat(r, r.URL.Query().Get("format"))}

	if err := r.ParseMultipartForm(s.formMemory()); err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			return analysis.Submission{}, form, s.fileTooLarge(err)
		}
		return analysis.Submission{}, form, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"The upload could not be read. Please choose a resume file and try again.", err)
	}

	form.format = s.negotiateFormat(r, r.FormValue("format"))
	form.tab = strings.TrimSpace(r.FormValue("tab"))

	file, header, err := r.FormFile("resume")
	if err != nil {
		return analysis.Submission{}, form, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"Please select a resume file to analyze.", err)
	}
	defer func() { _ = file.Close() }()

	content, err := io.ReadAll(file)
	if err != nil {
		return analysis.Submission{}, form, errors.NewIOError(errors.ErrCodeFileNotReadable,
			"The resume file could not be read.", err).WithContext("status", http.StatusBadRequest)
	}
	if s.MaxFileSize > 0 && int64(len(content)) > s.MaxFileSize {
		return analysis.Submission{}, form, s.fileTooLarge(nil)
	}

	sub := analysis.Submission{
		Filename:       header.Filename,
		Content:        content,
		JobDescription: strings.TrimSpace(r.FormValue("job_description")),
	}
	if err := sub.Validate(); err != nil {
		return analysis.Submission{}, form, err
	}
	return sub, form, nil
}

func (s *Server) fileTooLarge(cause error) error {
	return errors.NewValidationError(errors.ErrCodeInvalidRequest,
		fmt.Sprintf("The resume file is too large (limit is %s).", formatSize(s.MaxFileSize)),
		cause).WithContext("status", http.StatusRequestEntityTooLarge)
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%d KB", n>>10)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}

func (s *Server) formMemory() int64 {
	if s.MaxRequestSize > 0 {
		return s.MaxRequestSize
	}
	return 32 << 20
}

// negotiateFormat prefers an explicit format, then the Accept header, then
// the configured default.
func (s *Server) negotiateFormat(r *http.Request, explicit string) string {
	if format := strings.ToLower(strings.TrimSpace(explicit)); format != "" {
		return format
	}

	for part := range strings.SplitSeq(r.Header.Get("Accept"), ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if format, ok := acceptFormats[mediaType]; ok {
			return format
		}
	}

	if s.AppConfig != nil && s.AppConfig.App.DefaultFormat != "" {
		return s.AppConfig.App.DefaultFormat
	}
	return formatters.FormatHTML
}

// sessionController finds the caller's controller, issuing a session cookie
// when the request has none or an unknown one. Requests without a session
// share the controller of their API key or client IP.
func (s *Server) sessionController(w http.ResponseWriter, r *http.Request) *submission.Controller {
	name := s.cookieName()

	current := ""
	if cookie, err := r.Cookie(name); err == nil {
		current = cookie.Value
	}

	id, controller := s.Sessions.Get(current, getRateLimitKey(r, true, true))
	if id != current {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			Secure:   s.TLSConfig.Mode == config.TLSModeServer,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return controller
}

func (s *Server) cookieName() string {
	if s.AppConfig != nil && s.AppConfig.Submission.CookieName != "" {
		return s.AppConfig.Submission.CookieName
	}
	return defaultCookieName
}

func (s *Server) activateTab(page *view.Page, tab string) {
	if tab == "" {
		return
	}
	if !page.Tabs.Activate(tab) {
		s.Logger.Debug("Ignoring unknown insights tab", "tab", tab)
	}
}

// writePage serializes page in format with the given status
func (s *Server) writePage(w http.ResponseWriter, page *view.Page, format string, status int) {
	if s.AppConfig != nil && !s.AppConfig.SupportsFormat(format) {
		writeErrorResponse(w, "Unsupported format", fmt.Sprintf("format '%s' is not enabled", format), http.StatusBadRequest)
		return
	}

	formatter, err := s.Formatters.Lookup(page, format)
	if err != nil {
		writeErrorResponse(w, "Unsupported format", err.Error(), http.StatusBadRequest)
		return
	}

	output, err := formatter.Format(page)
	if err != nil {
		s.Logger.LogError(err, "Failed to format page", "format", format)
		writeErrorResponse(w, "Failed to format page", errors.GenericFailureMessage, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", formatter.ContentType())
	w.WriteHeader(status)
	if _, err := io.WriteString(w, output); err != nil {
		s.Logger.Debug("Failed to write page", "error", err.Error())
	}
}
