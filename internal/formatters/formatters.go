package formatters

import (
	"encoding/json"
	"fmt"
	"sort"

	"resumesense/internal/types"
	"resumesense/internal/view"
)

// Supported output formats
const (
	FormatJSON     = "json"
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
	ContentType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter(FormatJSON, "any", &JSONFormatter{})
	registry.RegisterFormatter(FormatText, "Page", &PageTextFormatter{})
	registry.RegisterFormatter(FormatMarkdown, "Page", &PageMarkdownFormatter{})
	registry.RegisterFormatter(FormatHTML, "Page", NewPageHTMLFormatter())

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Lookup returns the formatter that Format would use for data in format.
func (fr *FormatterRegistry) Lookup(data any, format string) (Formatter, error) {
	dataType := getDataType(data)

	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter, nil
		}
		if formatter, exists := formatters["any"]; exists {
			return formatter, nil
		}
	}

	return nil, fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	formatter, err := fr.Lookup(data, format)
	if err != nil {
		return "", err
	}
	return formatter.Format(data)
}

// GetSupportedFormats returns all supported formats, sorted
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	sort.Strings(formats)
	return formats
}

func getDataType(data any) string {
	switch data.(type) {
	case *view.Page:
		return "Page"
	case *types.AnalysisResult, types.AnalysisResult:
		return "AnalysisResult"
	default:
		return "any"
	}
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

func (jf *JSONFormatter) ContentType() string {
	return "application/json"
}

func asPage(data any) (*view.Page, error) {
	page, ok := data.(*view.Page)
	if !ok || page == nil {
		return nil, fmt.Errorf("expected *view.Page, got %T", data)
	}
	return page, nil
}

var sectionTitles = map[string]string{
	view.IDError:         "Error",
	view.IDQualityCard:   "Resume Quality",
	view.IDATSCard:       "ATS Score",
	view.IDMatchCard:     "Job Match",
	view.IDATSPanel:      "ATS Report",
	view.IDMatchPanel:    "Keyword Match",
	view.IDVerbsPanel:    "Power Verbs",
	view.IDInsightsPanel: "Resume Insights",
}

// sections lists the shown top-level regions in markup order: the error
// region and the direct children of the results region.
func sections(page *view.Page) []*view.Container {
	var out []*view.Container
	if page.IsShown(view.IDError) {
		out = append(out, page.MustGet(view.IDError))
	}
	for _, c := range page.Children(view.IDResults) {
		if page.IsShown(c.ID) {
			out = append(out, c)
		}
	}
	return out
}

func tabLabel(page *view.Page, containerID string) string {
	target, ok := view.TabTarget(containerID)
	if !ok {
		return ""
	}
	for _, tab := range page.Tabs.Tabs() {
		if tab.Target == target {
			return tab.Label
		}
	}
	return ""
}
