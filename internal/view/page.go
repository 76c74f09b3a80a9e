package view

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Container IDs shared between the markup and the renderer.
const (
	IDResults            = "results"
	IDError              = "error"
	IDQualityCard        = "qualityCard"
	IDQualityScore       = "qualityScore"
	IDQualityFill        = "qualityFill"
	IDATSCard            = "atsCard"
	IDATSScore           = "atsScore"
	IDATSFill            = "atsFill"
	IDMatchCard          = "matchCard"
	IDMatchScore         = "matchScore"
	IDMatchFill          = "matchFill"
	IDATSPanel           = "atsPanel"
	IDATSRecommendations = "atsRecommendations"
	IDMatchPanel         = "matchPanel"
	IDMatchDetails       = "matchDetails"
	IDVerbsPanel         = "verbsPanel"
	IDVerbFindings       = "verbFindings"
	IDInsightsPanel      = "insightsPanel"
	IDProjectsList       = "projectsList"
	IDAchievementsList   = "achievementsList"
)

// Insight tab panel targets.
const (
	TabProjects     = "projects"
	TabAchievements = "achievements"
)

var tabPanels = map[string]string{
	IDProjectsList:     TabProjects,
	IDAchievementsList: TabAchievements,
}

// TabTarget returns the tab that controls the container, if any.
func TabTarget(containerID string) (string, bool) {
	target, ok := tabPanels[containerID]
	return target, ok
}

// layout is the markup skeleton: id, parent id, initially visible.
var layout = []struct {
	id      string
	parent  string
	visible bool
}{
	{IDError, "", false},
	{IDResults, "", false},
	{IDQualityCard, IDResults, true},
	{IDQualityScore, IDQualityCard, true},
	{IDQualityFill, IDQualityCard, true},
	{IDATSCard, IDResults, false},
	{IDATSScore, IDATSCard, true},
	{IDATSFill, IDATSCard, true},
	{IDMatchCard, IDResults, false},
	{IDMatchScore, IDMatchCard, true},
	{IDMatchFill, IDMatchCard, true},
	{IDATSPanel, IDResults, false},
	{IDATSRecommendations, IDATSPanel, true},
	{IDMatchPanel, IDResults, false},
	{IDMatchDetails, IDMatchPanel, true},
	{IDVerbsPanel, IDResults, false},
	{IDVerbFindings, IDVerbsPanel, true},
	{IDInsightsPanel, IDResults, false},
	{IDProjectsList, IDInsightsPanel, true},
	{IDAchievementsList, IDInsightsPanel, true},
}

// Container is a named region of the page
type Container struct {
	ID       string  `json:"id"`
	Parent   string  `json:"parent,omitempty"`
	Visible  bool    `json:"visible"`
	Text     string  `json:"text,omitempty"`
	Fill     *Fill   `json:"fill,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

func (c *Container) Show() { c.Visible = true }
func (c *Container) Hide() { c.Visible = false }

// Replace clears the container and sets its content.
func (c *Container) Replace(children ...*Node) {
	c.Children = append([]*Node(nil), children...)
}

// Append adds content after what is already there.
func (c *Container) Append(children ...*Node) {
	c.Children = append(c.Children, children...)
}

// Content returns the container's own text and its children's, one per line.
func (c *Container) Content() string {
	var sb strings.Builder
	if c.Text != "" {
		sb.WriteString(c.Text)
		sb.WriteByte('\n')
	}
	for _, child := range c.Children {
		child.writeText(&sb)
	}
	return sb.String()
}

// Count returns the number of matching nodes among the container's children.
func (c *Container) Count(kind Kind, class string) int {
	count := 0
	for _, child := range c.Children {
		count += child.Count(kind, class)
	}
	return count
}

// Page is the full view state of the results screen
type Page struct {
	containers map[string]*Container
	order      []string
	Tabs       *TabSet
}

// NewPage returns the page as the markup declares it before any render.
func NewPage() *Page {
	p := &Page{
		containers: make(map[string]*Container, len(layout)),
		order:      make([]string, 0, len(layout)),
		Tabs: NewTabSet(
			Tab{Label: "Projects", Target: TabProjects},
			Tab{Label: "Achievements", Target: TabAchievements},
		),
	}
	for _, l := range layout {
		p.containers[l.id] = &Container{ID: l.id, Parent: l.parent, Visible: l.visible}
		p.order = append(p.order, l.id)
	}
	return p
}

// Get returns the container with the given ID.
func (p *Page) Get(id string) (*Container, bool) {
	c, ok := p.containers[id]
	return c, ok
}

// MustGet returns the container with the given ID and panics if the
// markup does not declare it.
func (p *Page) MustGet(id string) *Container {
	c, ok := p.containers[id]
	if !ok {
		panic(fmt.Sprintf("view: unknown container %q", id))
	}
	return c
}

// Containers returns every container in markup order.
func (p *Page) Containers() []*Container {
	out := make([]*Container, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.containers[id])
	}
	return out
}

// Children returns the direct child containers of id, in markup order.
func (p *Page) Children(id string) []*Container {
	var out []*Container
	for _, cid := range p.order {
		if c := p.containers[cid]; c.Parent == id {
			out = append(out, c)
		}
	}
	return out
}

// IsShown reports whether the container and all of its ancestors are visible.
func (p *Page) IsShown(id string) bool {
	for id != "" {
		c, ok := p.containers[id]
		if !ok || !c.Visible {
			return false
		}
		id = c.Parent
	}
	return true
}

// ShownIDs lists the containers that are effectively visible, in markup order.
func (p *Page) ShownIDs() []string {
	var ids []string
	for _, id := range p.order {
		if p.IsShown(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// TextContent concatenates the content of all shown containers in markup order.
func (p *Page) TextContent() string {
	var sb strings.Builder
	for _, id := range p.order {
		if p.IsShown(id) {
			sb.WriteString(p.containers[id].Content())
		}
	}
	return sb.String()
}

// ShowResults reveals the results region and clears the error region.
func (p *Page) ShowResults() {
	p.MustGet(IDError).Hide()
	p.MustGet(IDResults).Show()
}

// ShowError displays message in the error region and hides the results.
func (p *Page) ShowError(message string) {
	p.MustGet(IDResults).Hide()
	errRegion := p.MustGet(IDError)
	errRegion.Text = message
	errRegion.Show()
}

// ErrorMessage returns the error region's text when it is visible.
func (p *Page) ErrorMessage() string {
	if !p.IsShown(IDError) {
		return ""
	}
	return p.MustGet(IDError).Text
}

type pageJSON struct {
	Containers []*Container `json:"containers"`
	Tabs       []Tab        `json:"tabs"`
	ActiveTab  string       `json:"activeTab"`
}

// MarshalJSON encodes the page with containers in markup order.
func (p *Page) MarshalJSON() ([]byte, error) {
	return json.Marshal(pageJSON{
		Containers: p.Containers(),
		Tabs:       p.Tabs.Tabs(),
		ActiveTab:  p.Tabs.Active(),
	})
}
