// Package analysis runs the engine components over one case with a shared
// configuration.
package analysis

import (
	"time"

	"github.com/okian/caretrack/internal/domain/linker"
	"github.com/okian/caretrack/internal/domain/model"
	"github.com/okian/caretrack/internal/domain/scoring"
	"github.com/okian/caretrack/internal/domain/stage"
	"github.com/okian/caretrack/internal/domain/summary"
	"github.com/okian/caretrack/internal/domain/symptoms"
	"github.com/okian/caretrack/internal/domain/trend"
)

// SymptomReport holds the symptom distributions of a trailing window.
type SymptomReport struct {
	WindowDays int                  `json:"window_days"`
	Frequency  []symptoms.Frequency `json:"frequency"`
	TimeOfDay  symptoms.TimeOfDay   `json:"time_of_day"`
	Weekday    symptoms.Weekday     `json:"weekday"`
	Daily      []symptoms.DayCount  `json:"daily"`
}

// TrendReport holds the scale trajectories over the whole history.
type TrendReport struct {
	MMSE      trend.MMSETrend  `json:"mmse"`
	MMSELabel model.TrendLabel `json:"mmse_label,omitempty"`
	CDR       trend.CDRTrend   `json:"cdr"`
}

// Report is the full analysis of a case.
type Report struct {
	CaseID   string                  `json:"case_id,omitempty"`
	Now      string                  `json:"now"`
	Summary  summary.ClinicalSummary `json:"summary"`
	Stage    model.StageResult       `json:"stage"`
	Trends   TrendReport             `json:"trends"`
	Links    []linker.ScaleLink      `json:"links"`
	Symptoms SymptomReport           `json:"symptoms"`
}

// Option applies a configuration option to the Analyzer.
type Option func(*Analyzer)

// WithLocation sets the zone for hour and weekday bucketing.
func WithLocation(loc *time.Location) Option {
	return func(a *Analyzer) {
		if loc != nil {
			a.loc = loc
		}
	}
}

// WithPolicy sets the keyword policy of the stage detector.
func WithPolicy(p stage.Policy) Option {
	return func(a *Analyzer) {
		a.policy = p
	}
}

// WithScorer rescores scale payloads before analysis. Records whose payload
// cannot be scored keep their submitted total.
func WithScorer(s scoring.Scorer) Option {
	return func(a *Analyzer) {
		a.scorer = s
	}
}

// WithSummaryWindowDays sets the default summary and symptom window.
func WithSummaryWindowDays(days int) Option {
	return func(a *Analyzer) {
		if days > 0 {
			a.summaryDays = days
		}
	}
}

// WithStageWindowDays sets the default stage window.
func WithStageWindowDays(days int) Option {
	return func(a *Analyzer) {
		if days > 0 {
			a.stageDays = days
		}
	}
}

// WithLinkWindowDays sets the default linker distance.
func WithLinkWindowDays(days int) Option {
	return func(a *Analyzer) {
		if days > 0 {
			a.linkDays = days
		}
	}
}

// Analyzer is safe for concurrent use. Every method takes the reference
// time explicitly; a non-positive windowDays selects the configured default.
type Analyzer struct {
	loc         *time.Location
	policy      stage.Policy
	scorer      scoring.Scorer
	summaryDays int
	stageDays   int
	linkDays    int

	aggregator *symptoms.Aggregator
	builder    *summary.Builder
	detector   *stage.Detector
}

// New creates an Analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		loc:         time.UTC,
		policy:      stage.DefaultPolicy(),
		summaryDays: summary.DefaultWindowDays,
		stageDays:   stage.DefaultWindowDays,
		linkDays:    linker.DefaultWindowDays,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.aggregator = symptoms.New(symptoms.WithLocation(a.loc))
	a.builder = summary.New(summary.WithAggregator(a.aggregator))
	a.detector = a.newDetector(a.stageDays)
	return a
}

func (a *Analyzer) newDetector(days int) *stage.Detector {
	return stage.New(stage.WithWindowDays(days), stage.WithPolicy(a.policy))
}

// Policy returns the stage keyword policy.
func (a *Analyzer) Policy() stage.Policy {
	return a.policy
}

// Summary builds the clinical summary.
func (a *Analyzer) Summary(events []model.CaseEvent, windowDays int, now time.Time) summary.ClinicalSummary {
	return a.builder.Build(events, a.days(windowDays, a.summaryDays), now)
}

// Stage runs the stage fallback chain.
func (a *Analyzer) Stage(events []model.CaseEvent, scales []model.ScaleRecord, windowDays int, now time.Time) model.StageResult {
	d := a.detector
	if windowDays > 0 && windowDays != a.stageDays {
		d = a.newDetector(windowDays)
	}
	return d.Detect(events, a.score(scales), now)
}

// Trends computes the MMSE and CDR trajectories.
func (a *Analyzer) Trends(scales []model.ScaleRecord) TrendReport {
	return trends(a.score(scales))
}

func trends(scored []model.ScaleRecord) TrendReport {
	mmse := trend.MMSE(scored)
	label, _ := mmse.Label()
	return TrendReport{MMSE: mmse, MMSELabel: label, CDR: trend.CDR(scored)}
}

// Links cross-references scales with nearby events.
func (a *Analyzer) Links(scales []model.ScaleRecord, events []model.CaseEvent, windowDays int) []linker.ScaleLink {
	return linker.Link(scales, events, a.days(windowDays, a.linkDays))
}

// Symptoms builds the distributions of the trailing window.
func (a *Analyzer) Symptoms(events []model.CaseEvent, windowDays int, now time.Time) SymptomReport {
	days := a.days(windowDays, a.summaryDays)
	inWindow := model.Events(model.FilterWindow(model.SortEvents(events), model.NewWindow(now, days)))
	return SymptomReport{
		WindowDays: days,
		Frequency:  a.aggregator.BuildSymptomFrequency(inWindow),
		TimeOfDay:  a.aggregator.BuildTimeOfDayBuckets(inWindow),
		Weekday:    a.aggregator.BuildWeekdayBuckets(inWindow),
		Daily:      a.aggregator.GroupEventsByDay(events, days, now),
	}
}

// Analyze runs every component with its default window.
func (a *Analyzer) Analyze(caseID string, events []model.CaseEvent, scales []model.ScaleRecord, now time.Time) Report {
	scored := a.score(scales)
	return Report{
		CaseID:   caseID,
		Now:      now.UTC().Format(time.RFC3339),
		Summary:  a.Summary(events, 0, now),
		Stage:    a.detector.Detect(events, scored, now),
		Trends:   trends(scored),
		Links:    a.Links(scored, events, 0),
		Symptoms: a.Symptoms(events, 0, now),
	}
}

// score returns scales with payload totals applied. The input is not modified.
func (a *Analyzer) score(scales []model.ScaleRecord) []model.ScaleRecord {
	if a.scorer == nil {
		return scales
	}
	out := make([]model.ScaleRecord, len(scales))
	for i, rec := range scales {
		scored, err := a.scorer.Apply(rec)
		if err != nil {
			scored = rec
		}
		out[i] = scored
	}
	return out
}

func (a *Analyzer) days(requested, fallback int) int {
	if requested > 0 {
		return requested
	}
	return fallback
}
