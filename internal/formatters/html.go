package formatters

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"resumesense/internal/view"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// htmlContainer is the template-side shape of a container and its subtree.
type htmlContainer struct {
	ID       string
	Title    string
	Visible  bool
	Text     string
	Fill     *view.Fill
	Nodes    []*view.Node
	Children []htmlContainer
	Tabs     []htmlTab
	Tab      string
}

type htmlTab struct {
	view.Tab
	Active bool
}

type htmlPage struct {
	Title      string
	FormAction string
	Error      htmlContainer
	Results    htmlContainer
}

// PageHTMLFormatter renders a page as a complete HTML document.
// All payload text goes through html/template and is escaped.
type PageHTMLFormatter struct {
	tmpl       *template.Template
	FormAction string
}

// NewPageHTMLFormatter parses the embedded page template.
func NewPageHTMLFormatter() *PageHTMLFormatter {
	tmpl := template.Must(template.New("page.html.tmpl").Funcs(template.FuncMap{
		"fillStyle":      fillStyle,
		"containerClass": containerClass,
	}).ParseFS(templateFS, "templates/*.tmpl"))
	return &PageHTMLFormatter{tmpl: tmpl, FormAction: "/analyze"}
}

func (phf *PageHTMLFormatter) Format(data any) (string, error) {
	page, err := asPage(data)
	if err != nil {
		return "", err
	}

	doc := htmlPage{
		Title:      "ResumeSense",
		FormAction: phf.FormAction,
		Error:      buildHTMLContainer(page, page.MustGet(view.IDError)),
		Results:    buildHTMLContainer(page, page.MustGet(view.IDResults)),
	}

	var buf bytes.Buffer
	if err := phf.tmpl.Execute(&buf, doc); err != nil {
		return "", fmt.Errorf("failed to execute page template: %w", err)
	}
	return buf.String(), nil
}

func (phf *PageHTMLFormatter) SupportedType() string {
	return "Page"
}

func (phf *PageHTMLFormatter) ContentType() string {
	return "text/html; charset=utf-8"
}

func buildHTMLContainer(page *view.Page, c *view.Container) htmlContainer {
	hc := htmlContainer{
		ID:      c.ID,
		Visible: c.Visible,
		Text:    c.Text,
		Fill:    c.Fill,
		Nodes:   c.Children,
	}
	switch c.ID {
	case view.IDQualityCard, view.IDATSCard, view.IDMatchCard:
		hc.Title = sectionTitles[c.ID]
	}
	if target, ok := view.TabTarget(c.ID); ok {
		hc.Tab = target
	}
	for _, child := range page.Children(c.ID) {
		hc.Children = append(hc.Children, buildHTMLContainer(page, child))
	}
	if c.ID == view.IDInsightsPanel {
		for _, tab := range page.Tabs.Tabs() {
			hc.Tabs = append(hc.Tabs, htmlTab{Tab: tab, Active: page.Tabs.IsActive(tab.Target)})
		}
	}
	return hc
}

// fillStyle builds the inline style for a score bar. Width and gradient come
// from view.Fill, never from payload text.
func fillStyle(f *view.Fill) template.CSS {
	if f == nil {
		return ""
	}
	return template.CSS(fmt.Sprintf("width: %.1f%%; background: %s;", f.Width, f.Gradient()))
}

var containerClasses = map[string]string{
	view.IDError:         "error-message",
	view.IDResults:       "results",
	view.IDQualityCard:   "score-card",
	view.IDATSCard:       "score-card",
	view.IDMatchCard:     "score-card",
	view.IDQualityScore:  "score-value",
	view.IDATSScore:      "score-value",
	view.IDMatchScore:    "score-value",
	view.IDATSPanel:      "panel",
	view.IDMatchPanel:    "panel",
	view.IDVerbsPanel:    "panel",
	view.IDInsightsPanel: "panel insights",
}

func containerClass(id string) string {
	return containerClasses[id]
}
