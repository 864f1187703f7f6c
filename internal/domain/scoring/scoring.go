// Package scoring computes scale totals from structured sub-item payloads.
//
// MMSE totals are the unclamped sum of the eleven sub-items. CDR globals follow
// the Washington University ADRC rules (Morris, 1993):
//
//  1. CDR = M (memory) when at least three secondary domains equal M.
//  2. When three or more secondary domains fall on one side of M, CDR is the
//     most frequent score on that side; ties go to the score closest to M.
//     When three fall on one side and two on the other, CDR = M.
//  3. When only one or two secondary domains equal M and no more than two
//     fall on either side, CDR = M.
//  4. M = 0: CDR = 0.5 when two or more secondary domains are 0.5 or greater,
//     otherwise 0.
//  5. M = 0.5: CDR = 1 when three or more secondary domains are 1 or greater,
//     otherwise 0.5. CDR is never 0.
//  6. M >= 1: CDR is never 0; a result of 0 from rule 2 becomes 0.5.
package scoring

import (
	"fmt"

	"github.com/okian/caretrack/internal/domain/model"
)

// minAgreement is the number of secondary domains that forms a majority.
const minAgreement = 3

// MMSEResult is the outcome of ScoreMMSE.
type MMSEResult struct {
	Total float64 `json:"total"`
}

// CDRResult is the outcome of ScoreCDR.
type CDRResult struct {
	Global float64 `json:"global"`
}

// Scorer fills scale totals from payloads.
type Scorer interface {
	// Apply returns a copy of rec with its total computed from the payload.
	// On failure the copy keeps the prior total and the error says why.
	Apply(rec model.ScaleRecord) (model.ScaleRecord, error)
}

// Option applies a configuration option to the PayloadScorer.
type Option func(*PayloadScorer)

// WithMMSEClamp clamps MMSE totals into 0..30. Off by default: the caller is
// responsible for sub-item ranges.
func WithMMSEClamp(clamp bool) Option {
	return func(s *PayloadScorer) {
		s.clampMMSE = clamp
	}
}

// PayloadScorer implements Scorer for MMSE and CDR payloads.
type PayloadScorer struct {
	clampMMSE bool
}

// NewPayloadScorer creates a scorer with configuration options.
func NewPayloadScorer(opts ...Option) *PayloadScorer {
	s := &PayloadScorer{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply implements Scorer.
func (s *PayloadScorer) Apply(rec model.ScaleRecord) (model.ScaleRecord, error) {
	payload, err := rec.DecodePayload()
	if err != nil {
		return rec, err
	}
	switch p := payload.(type) {
	case model.MMSEPayload:
		total := ScoreMMSE(p).Total
		if s.clampMMSE {
			total = min(max(total, model.MMSEMin), model.MMSEMax)
		}
		return rec.WithTotal(total), nil
	case model.CDRPayload:
		res, err := ScoreCDR(p)
		if err != nil {
			return rec, err
		}
		return rec.WithTotal(res.Global), nil
	default:
		return rec, fmt.Errorf("%w: %T", model.ErrUnsupportedScale, payload)
	}
}

// ScoreMMSE sums the MMSE sub-items.
func ScoreMMSE(p model.MMSEPayload) MMSEResult {
	return MMSEResult{Total: p.OrientationTime + p.OrientationPlace + p.Registration +
		p.AttentionCalculation + p.Recall + p.Language + p.Repetition +
		p.ThreeStepCommand + p.Reading + p.Writing + p.Drawing}
}

// ScoreCDR derives the global CDR from the six box scores. Every box must be
// present and one of 0, 0.5, 1, 2, 3.
func ScoreCDR(p model.CDRPayload) (CDRResult, error) {
	if p.Memory == nil || !model.IsCDRValue(*p.Memory) {
		return CDRResult{}, fmt.Errorf("%w: memory box missing or invalid", model.ErrMalformedPayload)
	}
	m := *p.Memory
	secondary := make([]float64, 0, 5)
	for i, box := range p.Secondary() {
		if box == nil || !model.IsCDRValue(*box) {
			return CDRResult{}, fmt.Errorf("%w: secondary box %d missing or invalid", model.ErrMalformedPayload, i)
		}
		secondary = append(secondary, *box)
	}
	return CDRResult{Global: globalCDR(m, secondary)}, nil
}

func globalCDR(m float64, secondary []float64) float64 {
	switch m {
	case 0:
		if countWhere(secondary, func(v float64) bool { return v >= 0.5 }) >= 2 {
			return 0.5
		}
		return 0
	case 0.5:
		if countWhere(secondary, func(v float64) bool { return v >= 1 }) >= minAgreement {
			return 1
		}
		return 0.5
	}

	var above, below []float64
	equal := 0
	for _, v := range secondary {
		switch {
		case v > m:
			above = append(above, v)
		case v < m:
			below = append(below, v)
		default:
			equal++
		}
	}

	global := m
	switch {
	case equal >= minAgreement:
	case len(above) == minAgreement && len(below) == 2, len(below) == minAgreement && len(above) == 2:
	case len(above) >= minAgreement:
		global = modeClosestTo(above, m)
	case len(below) >= minAgreement:
		global = modeClosestTo(below, m)
	}
	if global == 0 {
		global = 0.5
	}
	return global
}

// modeClosestTo returns the most frequent value, preferring the one nearest
// to ref on ties.
func modeClosestTo(values []float64, ref float64) float64 {
	counts := make(map[float64]int, len(values))
	for _, v := range values {
		counts[v]++
	}
	best, bestCount := values[0], 0
	for _, v := range values {
		c := counts[v]
		if c > bestCount || (c == bestCount && distance(v, ref) < distance(best, ref)) {
			best, bestCount = v, c
		}
	}
	return best
}

func distance(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

func countWhere(values []float64, pred func(float64) bool) int {
	n := 0
	for _, v := range values {
		if pred(v) {
			n++
		}
	}
	return n
}
