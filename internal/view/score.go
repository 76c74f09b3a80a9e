package view

// Tier is the three-level color band used for score bars
type Tier string

const (
	TierGreen Tier = "green"
	TierAmber Tier = "amber"
	TierRed   Tier = "red"
)

var tierGradients = map[Tier]string{
	TierGreen: "linear-gradient(90deg, #28a745 0%, #20c997 100%)",
	TierAmber: "linear-gradient(90deg, #ffc107 0%, #ff9800 100%)",
	TierRed:   "linear-gradient(90deg, #dc3545 0%, #c82333 100%)",
}

// Gradient returns the CSS background for the tier.
func (t Tier) Gradient() string {
	return tierGradients[t]
}

// ScoreColor picks the tier for a score. Each boundary belongs to the higher tier.
func ScoreColor(score float64) Tier {
	switch {
	case score >= 80:
		return TierGreen
	case score >= 60:
		return TierAmber
	default:
		return TierRed
	}
}

// ClampPercent limits a fill width to [0, 100].
func ClampPercent(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Fill is a progress-bar style fill
type Fill struct {
	Width float64 `json:"width"`
	Tier  Tier    `json:"tier"`
}

// NewFill builds the fill for a score: clamped width, tier from the raw score.
func NewFill(score float64) *Fill {
	return &Fill{Width: ClampPercent(score), Tier: ScoreColor(score)}
}

// Gradient returns the CSS background of the fill.
func (f *Fill) Gradient() string {
	if f == nil {
		return ""
	}
	return f.Tier.Gradient()
}
