package model

import (
	"math"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// ScaleType identifies the clinical instrument of a ScaleRecord.
type ScaleType string

// Known scale types.
const (
	ScaleMMSE  ScaleType = "MMSE"
	ScaleCDR   ScaleType = "CDR"
	ScaleOther ScaleType = "OTHER"
)

// Normalize upper-cases the type and maps anything unknown to ScaleOther.
func (t ScaleType) Normalize() ScaleType {
	switch ScaleType(strings.ToUpper(strings.TrimSpace(string(t)))) {
	case ScaleMMSE:
		return ScaleMMSE
	case ScaleCDR:
		return ScaleCDR
	default:
		return ScaleOther
	}
}

// MMSE score domain.
const (
	MMSEMin = 0
	MMSEMax = 30
)

// CDR score domain. Stored totals may fall between the standard values.
const (
	CDRMin = 0
	CDRMax = 3
)

// cdrGlobals is the discrete set of valid CDR box scores.
var cdrGlobals = []float64{0, 0.5, 1, 2, 3}

// IsCDRValue reports whether v is one of 0, 0.5, 1, 2, 3.
func IsCDRValue(v float64) bool {
	for _, g := range cdrGlobals {
		if v == g {
			return true
		}
	}
	return false
}

// ScaleRecord is one administration of a clinical scale.
type ScaleRecord struct {
	ID         string     `json:"id"`
	Date       string     `json:"date"`
	ScaleType  ScaleType  `json:"scale_type"`
	TotalScore *float64   `json:"total_score"`
	Payload    RawPayload `json:"payload,omitempty"`
}

// Type returns the normalized scale type.
func (r ScaleRecord) Type() ScaleType {
	return r.ScaleType.Normalize()
}

// Day parses the record date as a UTC calendar day. Full instants are
// accepted and truncated to their UTC date.
func (r ScaleRecord) Day() (time.Time, bool) {
	t, ok := parseInstant(r.Date)
	if !ok {
		return time.Time{}, false
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
}

// Score returns the stored total when it is present, finite and inside the
// domain of the record's scale type.
func (r ScaleRecord) Score() (float64, bool) {
	if r.TotalScore == nil {
		return 0, false
	}
	v := *r.TotalScore
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	switch r.Type() {
	case ScaleMMSE:
		if v < MMSEMin || v > MMSEMax {
			return 0, false
		}
	case ScaleCDR:
		if v < CDRMin || v > CDRMax {
			return 0, false
		}
	}
	return v, true
}

// WithTotal returns a copy of r carrying total.
func (r ScaleRecord) WithTotal(total float64) ScaleRecord {
	r.TotalScore = &total
	return r
}

// FormatDay renders a calendar day the way records carry it.
func FormatDay(t time.Time) string {
	return t.UTC().Format(dateLayout)
}
