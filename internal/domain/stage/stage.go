// Package stage infers a coarse disease stage from scale records, falling
// back to a keyword heuristic over recent events when no recent scale exists.
//
// The chain is ordered and the first rule with data wins: CDR, then MMSE,
// then keywords. Results never depend on the order of the inputs.
package stage

import (
	"time"

	"github.com/okian/caretrack/internal/domain/model"
	"github.com/okian/caretrack/internal/domain/trend"
)

// DefaultWindowDays is the trailing window the rules look at.
const DefaultWindowDays = 90

// Option applies a configuration option to the Detector.
type Option func(*Detector)

// WithWindowDays sets the trailing window. Non-positive values are ignored.
func WithWindowDays(days int) Option {
	return func(d *Detector) {
		if days > 0 {
			d.windowDays = days
		}
	}
}

// WithPolicy replaces the keyword policy of the final rule.
func WithPolicy(p Policy) Option {
	return func(d *Detector) {
		d.keywords = NewKeywordRule(p)
	}
}

// WithRules replaces the whole chain.
func WithRules(rules ...Rule) Option {
	return func(d *Detector) {
		d.rules = rules
	}
}

// Detector runs the fallback chain.
type Detector struct {
	windowDays int
	keywords   *KeywordRule
	rules      []Rule
}

// New creates a Detector with the CDR, MMSE and keyword rules.
func New(opts ...Option) *Detector {
	d := &Detector{
		windowDays: DefaultWindowDays,
		keywords:   NewKeywordRule(DefaultPolicy()),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.rules == nil {
		d.rules = []Rule{CDRRule{}, MMSERule{}, d.keywords}
	}
	return d
}

// WindowDays returns the configured window.
func (d *Detector) WindowDays() int {
	return d.windowDays
}

// Detect classifies the case as of now. meta.mmse_trend is attached whenever
// at least two scored MMSE records exist, inside the window or not.
func (d *Detector) Detect(events []model.CaseEvent, scales []model.ScaleRecord, now time.Time) model.StageResult {
	w := model.NewWindow(now, d.windowDays)
	in := Input{
		Window: w,
		Events: model.FilterWindow(model.SortEvents(events), w),
		MMSE:   model.SortScored(scales, model.ScaleMMSE),
		CDR:    model.SortScored(scales, model.ScaleCDR),
	}

	res := model.StageResult{Stage: model.StageEarly, Meta: model.StageMeta{Rule: RuleDefault}}
	for _, r := range d.rules {
		if out, ok := r.Evaluate(in); ok {
			res = out
			res.Meta.Rule = r.Name()
			break
		}
	}

	if label, ok := trend.MMSE(scales).Label(); ok {
		res.Meta.MMSETrend = label
	}
	return res
}
