package model

// Stage is a coarse disease-progression classification.
type Stage string

// Stages in order of progression.
const (
	StageEarly  Stage = "early"
	StageMiddle Stage = "middle"
	StageLate   Stage = "late"
)

// TrendLabel classifies the MMSE decline rate.
type TrendLabel string

// Decline-rate labels.
const (
	TrendStableOrSlow TrendLabel = "stable_or_slow"
	TrendMildDecline  TrendLabel = "mild_decline"
	TrendRapidDecline TrendLabel = "rapid_decline"
)

// StageResult is the outcome of stage inference.
type StageResult struct {
	Stage  Stage     `json:"stage"`
	Reason string    `json:"reason,omitempty"`
	Meta   StageMeta `json:"meta"`
}

// StageMeta carries auxiliary stage information.
type StageMeta struct {
	// Rule names the fallback rule that produced the stage.
	Rule      string     `json:"rule,omitempty"`
	MMSETrend TrendLabel `json:"mmse_trend,omitempty"`
}
