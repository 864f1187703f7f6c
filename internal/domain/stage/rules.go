package stage

import (
	"fmt"
	"strconv"

	"github.com/okian/caretrack/internal/domain/model"
)

// Rule names reported in StageResult.Meta.Rule.
const (
	RuleCDR      = "cdr"
	RuleMMSE     = "mmse"
	RuleKeywords = "keywords"
	RuleDefault  = "default"
)

// Input is the sorted, pre-parsed material a Rule sees.
type Input struct {
	Window model.Window
	// Events are valid-timestamp events inside Window, ascending.
	Events []model.TimedEvent
	// MMSE and CDR hold every scored record of that type, ascending by day.
	MMSE []model.DatedScale
	CDR  []model.DatedScale
}

// Rule is one step of the fallback chain. It reports false when it has no
// data to decide on.
type Rule interface {
	Name() string
	Evaluate(in Input) (model.StageResult, bool)
}

// CDRRule stages by the latest CDR global inside the window.
type CDRRule struct{}

// Name implements Rule.
func (CDRRule) Name() string { return RuleCDR }

// Evaluate implements Rule.
func (CDRRule) Evaluate(in Input) (model.StageResult, bool) {
	latest, ok := latestInWindow(in.CDR, in.Window)
	if !ok {
		return model.StageResult{}, false
	}
	s := model.StageMiddle
	switch {
	case latest.Score <= 0.5:
		s = model.StageEarly
	case latest.Score >= 2:
		s = model.StageLate
	}
	return model.StageResult{
		Stage: s,
		Reason: fmt.Sprintf("CDR global %s on %s",
			strconv.FormatFloat(latest.Score, 'f', -1, 64), model.FormatDay(latest.Day)),
	}, true
}

// MMSERule stages by the latest MMSE total inside the window.
type MMSERule struct{}

// Name implements Rule.
func (MMSERule) Name() string { return RuleMMSE }

// Evaluate implements Rule.
func (MMSERule) Evaluate(in Input) (model.StageResult, bool) {
	latest, ok := latestInWindow(in.MMSE, in.Window)
	if !ok {
		return model.StageResult{}, false
	}
	s := model.StageMiddle
	switch {
	case latest.Score >= 24:
		s = model.StageEarly
	case latest.Score <= 17:
		s = model.StageLate
	}
	return model.StageResult{
		Stage: s,
		Reason: fmt.Sprintf("MMSE %s on %s",
			strconv.FormatFloat(latest.Score, 'f', -1, 64), model.FormatDay(latest.Day)),
	}, true
}

// KeywordRule scores windowed events against a Policy. It always decides,
// so it belongs at the end of the chain.
type KeywordRule struct {
	c compiled
}

// NewKeywordRule compiles p into a rule.
func NewKeywordRule(p Policy) *KeywordRule {
	return &KeywordRule{c: compile(p)}
}

// Name implements Rule.
func (*KeywordRule) Name() string { return RuleKeywords }

// Score returns the heuristic score of the events.
func (r *KeywordRule) Score(events []model.TimedEvent) int {
	total := 0
	for _, te := range events {
		total += r.c.score(te.Event.Text(), te.Event.Categories())
	}
	return total
}

// Evaluate implements Rule.
func (r *KeywordRule) Evaluate(in Input) (model.StageResult, bool) {
	score := r.Score(in.Events)
	s := model.StageMiddle
	switch {
	case score <= r.c.policy.EarlyMax:
		s = model.StageEarly
	case score >= r.c.policy.LateMin:
		s = model.StageLate
	}
	return model.StageResult{
		Stage:  s,
		Reason: fmt.Sprintf("keyword score %d over %d events", score, len(in.Events)),
	}, true
}

// latestInWindow returns the most recent record when it falls inside w.
// records must be ascending.
func latestInWindow(records []model.DatedScale, w model.Window) (model.DatedScale, bool) {
	if len(records) == 0 {
		return model.DatedScale{}, false
	}
	last := records[len(records)-1]
	return last, w.ContainsDay(last.Day)
}
