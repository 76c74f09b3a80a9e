// Package render turns an analysis result into a view.Page.
//
// Render is a pure function of its input: every call starts from the
// baseline page, so rendering the same result twice yields identical pages.
package render

import (
	"fmt"
	"math"

	"resumesense/internal/types"
	"resumesense/internal/view"
)

const (
	atsPassMessage       = "✓ Resume passes key ATS checks."
	noWeakVerbsMessage   = "✓ No weak verbs found! Your resume uses strong action verbs."
	noProjectsMessage    = "No project highlights detected. Add quantified, tech-focused projects to boost credibility."
	noAchievementMessage = "No co-curricular achievements detected. Highlight leadership roles, awards, or community work."
)

// Render builds the page for result. Sections absent from result stay hidden.
// The results region itself is left hidden; callers reveal it with ShowResults.
func Render(result *types.AnalysisResult) *view.Page {
	page := view.NewPage()
	if result == nil {
		result = &types.AnalysisResult{}
	}

	renderQuality(page, result.QualityScore)
	if result.ATSScore != nil {
		renderATS(page, *result.ATSScore, result.ATSReport)
	}
	if result.MatchScore != nil {
		renderMatch(page, *result.MatchScore, result.MatchDetails)
	}
	if result.PowerVerbs != nil {
		renderPowerVerbs(page, result.PowerVerbs)
	}
	renderInsights(page, result.ResumeInsights)

	return page
}

// Results renders result and reveals the results region.
func Results(result *types.AnalysisResult) *view.Page {
	page := Render(result)
	page.ShowResults()
	return page
}

// RenderError returns a page showing only message in the error region.
func RenderError(message string) *view.Page {
	page := view.NewPage()
	page.ShowError(message)
	return page
}

func renderScore(page *view.Page, scoreID, fillID, text string, score float64) {
	page.MustGet(scoreID).Text = text
	page.MustGet(fillID).Fill = view.NewFill(score)
}

func renderQuality(page *view.Page, score float64) {
	renderScore(page, view.IDQualityScore, view.IDQualityFill, fmt.Sprintf("%.1f", score), score)
}

func renderATS(page *view.Page, score float64, report *types.ATSReport) {
	page.MustGet(view.IDATSCard).Show()
	renderScore(page, view.IDATSScore, view.IDATSFill, fmt.Sprintf("%.1f", score), score)

	if report == nil {
		report = &types.ATSReport{}
	}
	checks := report.SectionChecks

	recs := page.MustGet(view.IDATSRecommendations)
	page.MustGet(view.IDATSPanel).Show()
	recs.Replace(view.Block("recommendation-item neutral",
		view.Strong("Section Coverage"),
		view.Paragraph("", fmt.Sprintf("Education: %s | Experience: %s | Skills: %s",
			checkGlyph(checks.Education), checkGlyph(checks.Experience), checkGlyph(checks.Skills))),
	))

	if len(report.Recommendations) == 0 {
		recs.Append(view.Paragraph("success-message", atsPassMessage))
		return
	}
	recs.Append(view.Heading("Recommendations"))
	for _, rec := range report.Recommendations {
		recs.Append(view.Paragraph("recommendation-item", rec))
	}
}

func checkGlyph(ok bool) string {
	if ok {
		return "✅"
	}
	return "⚠️"
}

func renderMatch(page *view.Page, score float64, details *types.MatchDetails) {
	page.MustGet(view.IDMatchCard).Show()
	renderScore(page, view.IDMatchScore, view.IDMatchFill, fmt.Sprintf("%.1f%%", score), score)

	if details == nil {
		return
	}
	page.MustGet(view.IDMatchPanel).Show()

	groups := []struct {
		title    string
		class    string
		keywords []string
	}{
		{"Matched Keywords:", "keyword matched", details.CommonKeywords},
		{"Missing Keywords:", "keyword missing", details.MissingKeywords},
		{"Matched Important Keywords:", "keyword matched", details.MatchedImportantKeywords},
	}

	var nodes []*view.Node
	for _, g := range groups {
		if len(g.keywords) == 0 {
			continue
		}
		nodes = append(nodes, view.Heading(g.title), view.Block("match-keywords", view.Chips(g.class, g.keywords)...))
	}
	nodes = append(nodes, view.Block("match-stats",
		view.Paragraph("", fmt.Sprintf("Important Keywords Matched: %d / %d",
			details.ImportantKeywordsMatched, details.ImportantKeywordsTotal)),
	))

	page.MustGet(view.IDMatchDetails).Replace(nodes...)
}

func renderPowerVerbs(page *view.Page, data *types.PowerVerbs) {
	page.MustGet(view.IDVerbsPanel).Show()
	findings := page.MustGet(view.IDVerbFindings)

	if len(data.Findings) == 0 {
		findings.Replace(view.Paragraph("success-message", noWeakVerbsMessage))
	} else {
		nodes := make([]*view.Node, 0, len(data.Findings))
		for _, f := range data.Findings {
			suggestions := append([]*view.Node{view.Label("Suggestions:")}, view.Chips("verb-suggestion", f.Suggestions)...)
			nodes = append(nodes, view.Block("verb-finding",
				view.Strong(fmt.Sprintf("Found: \"%s\"", f.WeakVerb)),
				view.Paragraph("verb-context", f.Context),
				view.Block("verb-suggestions", suggestions...),
			))
		}
		findings.Replace(nodes...)
	}

	if data.Stats != nil {
		findings.Append(view.Block("verb-stats",
			view.Heading("Power Verb Statistics"),
			view.Paragraph("", fmt.Sprintf("Strong Verbs: %d | Weak Verbs: %d | Power Verb Score: %.1f%%",
				data.Stats.StrongVerbCount, data.Stats.WeakVerbCount, data.Stats.PowerVerbScore)),
		))
	}
}

func renderInsights(page *view.Page, insights *types.ResumeInsights) {
	panel := page.MustGet(view.IDInsightsPanel)
	if insights.Empty() {
		panel.Hide()
		return
	}
	panel.Show()
	renderProjects(page.MustGet(view.IDProjectsList), insights.Projects)
	renderAchievements(page.MustGet(view.IDAchievementsList), insights.Achievements)
}

func renderProjects(list *view.Container, projects []types.Project) {
	if len(projects) == 0 {
		list.Replace(view.Paragraph("empty-message", noProjectsMessage))
		return
	}

	cards := make([]*view.Node, 0, len(projects))
	for _, p := range projects {
		var children []*view.Node
		if p.Confidence != nil {
			children = append(children, view.Meta(fmt.Sprintf("Confidence %d%%", int(math.Round(*p.Confidence*100)))))
		}
		children = append(children, view.Heading(p.Title), view.Paragraph("", p.Summary))
		if len(p.TechStack) > 0 {
			children = append(children, view.Block("tech-stack", view.Chips("tech-badge", p.TechStack)...))
		}
		cards = append(cards, view.Card("project-card", children...))
	}
	list.Replace(cards...)
}

func renderAchievements(list *view.Container, achievements []types.Achievement) {
	if len(achievements) == 0 {
		list.Replace(view.Paragraph("empty-message", noAchievementMessage))
		return
	}

	cards := make([]*view.Node, 0, len(achievements))
	for _, a := range achievements {
		children := []*view.Node{view.Meta(a.Category), view.Heading(a.Title), view.Paragraph("", a.Details)}
		if len(a.ImpactKeywords) > 0 {
			children = append(children, view.Block("tech-stack", view.Chips("tech-badge", a.ImpactKeywords)...))
		}
		cards = append(cards, view.Card("achievement-card", children...))
	}
	list.Replace(cards...)
}
