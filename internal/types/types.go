package types

// AnalysisResult is the payload returned by the analysis service for one submission.
// Optional sections are pointers: nil means the section is absent.
type AnalysisResult struct {
	QualityScore   float64         `json:"quality_score"`
	ATSScore       *float64        `json:"ats_score,omitempty"`
	ATSReport      *ATSReport      `json:"ats_report,omitempty"`
	MatchScore     *float64        `json:"match_score,omitempty"`
	MatchDetails   *MatchDetails   `json:"match_details,omitempty"`
	PowerVerbs     *PowerVerbs     `json:"power_verbs,omitempty"`
	ResumeInsights *ResumeInsights `json:"resume_insights,omitempty"`
}

// SectionChecks records which standard resume sections were detected
type SectionChecks struct {
	Education  bool `json:"education"`
	Experience bool `json:"experience"`
	Skills     bool `json:"skills"`
}

// ATSReport represents the applicant-tracking-system compatibility report
type ATSReport struct {
	SectionChecks   SectionChecks `json:"section_checks"`
	Recommendations []string      `json:"recommendations"`
}

// MatchDetails represents the resume-vs-job-description keyword comparison
type MatchDetails struct {
	CommonKeywords           []string `json:"common_keywords"`
	MissingKeywords          []string `json:"missing_keywords"`
	MatchedImportantKeywords []string `json:"matched_important_keywords"`
	ImportantKeywordsMatched int      `json:"important_keywords_matched"`
	ImportantKeywordsTotal   int      `json:"important_keywords_total"`
}

// VerbFinding is a weak verb found in the resume with stronger replacements
type VerbFinding struct {
	WeakVerb    string   `json:"weak_verb"`
	Context     string   `json:"context"`
	Suggestions []string `json:"suggestions"`
}

// VerbStats summarizes action-verb usage
type VerbStats struct {
	StrongVerbCount int     `json:"strong_verb_count"`
	WeakVerbCount   int     `json:"weak_verb_count"`
	PowerVerbScore  float64 `json:"power_verb_score"`
}

// PowerVerbs holds the power-verb analysis
type PowerVerbs struct {
	Findings []VerbFinding `json:"findings"`
	Stats    *VerbStats    `json:"stats,omitempty"`
}

// Project is a project highlight extracted from the resume
type Project struct {
	Title      string   `json:"title"`
	Summary    string   `json:"summary"`
	TechStack  []string `json:"tech_stack,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Achievement is an achievement or co-curricular highlight
type Achievement struct {
	Category       string   `json:"category"`
	Title          string   `json:"title"`
	Details        string   `json:"details"`
	ImpactKeywords []string `json:"impact_keywords,omitempty"`
}

// ResumeInsights groups project and achievement highlights
type ResumeInsights struct {
	Projects     []Project     `json:"projects"`
	Achievements []Achievement `json:"achievements"`
}

// Empty reports whether neither list has entries.
func (ri *ResumeInsights) Empty() bool {
	return ri == nil || (len(ri.Projects) == 0 && len(ri.Achievements) == 0)
}

// ErrorBody is the analysis service's failure response
type ErrorBody struct {
	Error string `json:"error"`
}

// Float returns a pointer to v; convenient for building optional scores.
func Float(v float64) *float64 {
	return &v
}
