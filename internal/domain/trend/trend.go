// Package trend derives MMSE decline rates and CDR stage transitions from
// scored scale records.
package trend

import (
	"time"

	"github.com/okian/caretrack/internal/domain/model"
)

// Decline-rate thresholds in MMSE points per year.
const (
	slowDeclineFloor  = -1.0
	rapidDeclineLimit = -3.0
)

// MMSEPoint is one scored MMSE measurement.
type MMSEPoint struct {
	Date  string  `json:"date"`
	Score float64 `json:"score"`
}

// MMSETrend summarises the MMSE history of a case.
type MMSETrend struct {
	Points       []MMSEPoint `json:"points"`
	SlopePerYear float64     `json:"slope_per_year"`
	SlopePer6m   float64     `json:"slope_per_6m"`
	Latest       *MMSEPoint  `json:"latest"`
}

// HasSlope reports whether there are enough points for the slope to carry
// meaning. A zero slope with fewer than two points means no data.
func (t MMSETrend) HasSlope() bool {
	return len(t.Points) >= 2
}

// Label classifies the slope. The second value is false when HasSlope is.
func (t MMSETrend) Label() (model.TrendLabel, bool) {
	if !t.HasSlope() {
		return "", false
	}
	return Label(t.SlopePerYear), true
}

// CDRPoint is one scored CDR measurement.
type CDRPoint struct {
	Date   string  `json:"date"`
	Global float64 `json:"global"`
}

// Transition records a change of CDR global between consecutive records.
type Transition struct {
	From float64 `json:"from"`
	To   float64 `json:"to"`
	Date string  `json:"date"`
}

// CDRTrend summarises the CDR history of a case.
type CDRTrend struct {
	Points      []CDRPoint   `json:"points"`
	Latest      *CDRPoint    `json:"latest"`
	Transitions []Transition `json:"transitions"`
}

// Label maps a yearly MMSE slope to its decline label. -1 is still slow;
// -3 is already rapid.
func Label(slopePerYear float64) model.TrendLabel {
	switch {
	case slopePerYear >= slowDeclineFloor:
		return model.TrendStableOrSlow
	case slopePerYear > rapidDeclineLimit:
		return model.TrendMildDecline
	default:
		return model.TrendRapidDecline
	}
}

// MMSE builds the MMSE trend. The slope is the two-point rate between the
// first and last scored records, not a regression over all points.
func MMSE(records []model.ScaleRecord) MMSETrend {
	scored := model.SortScored(records, model.ScaleMMSE)
	t := MMSETrend{Points: make([]MMSEPoint, 0, len(scored))}
	for _, s := range scored {
		t.Points = append(t.Points, MMSEPoint{Date: model.FormatDay(s.Day), Score: s.Score})
	}
	if len(t.Points) == 0 {
		return t
	}
	latest := t.Points[len(t.Points)-1]
	t.Latest = &latest
	if len(scored) < 2 {
		return t
	}

	first, last := scored[0], scored[len(scored)-1]
	if years := yearsBetween(first.Day, last.Day); years > 0 {
		t.SlopePerYear = (last.Score - first.Score) / years
	}
	t.SlopePer6m = t.SlopePerYear * 0.5
	return t
}

// CDR builds the CDR trend. Equal consecutive globals produce no transition.
func CDR(records []model.ScaleRecord) CDRTrend {
	scored := model.SortScored(records, model.ScaleCDR)
	t := CDRTrend{
		Points:      make([]CDRPoint, 0, len(scored)),
		Transitions: []Transition{},
	}
	for i, s := range scored {
		day := model.FormatDay(s.Day)
		t.Points = append(t.Points, CDRPoint{Date: day, Global: s.Score})
		if i > 0 && scored[i-1].Score != s.Score {
			t.Transitions = append(t.Transitions, Transition{From: scored[i-1].Score, To: s.Score, Date: day})
		}
	}
	if n := len(t.Points); n > 0 {
		latest := t.Points[n-1]
		t.Latest = &latest
	}
	return t
}

// yearsBetween counts whole calendar years from a to b plus the elapsed
// fraction of the following year. Same calendar date one year apart is 1.
func yearsBetween(a, b time.Time) float64 {
	if b.Before(a) {
		return -yearsBetween(b, a)
	}
	years := b.Year() - a.Year()
	anniversary := a.AddDate(years, 0, 0)
	if anniversary.After(b) {
		years--
		anniversary = a.AddDate(years, 0, 0)
	}
	next := a.AddDate(years+1, 0, 0)
	return float64(years) + float64(b.Sub(anniversary))/float64(next.Sub(anniversary))
}
