package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RawPayload holds the undecoded sub-item object of a scale record. Decoding
// is deferred so that a malformed payload never rejects the record itself.
type RawPayload = json.RawMessage

// Payload is the structured sub-item content of a scale record. The concrete
// type is selected by the record's scale type.
type Payload interface {
	ScaleType() ScaleType
}

// MMSEPayload carries the eleven MMSE sub-item scores. Absent items are 0.
type MMSEPayload struct {
	OrientationTime      float64 `json:"orientation_time"`
	OrientationPlace     float64 `json:"orientation_place"`
	Registration         float64 `json:"registration"`
	AttentionCalculation float64 `json:"attention_calculation"`
	Recall               float64 `json:"recall"`
	Language             float64 `json:"language"`
	Repetition           float64 `json:"repetition"`
	ThreeStepCommand     float64 `json:"three_step_command"`
	Reading              float64 `json:"reading"`
	Writing              float64 `json:"writing"`
	Drawing              float64 `json:"drawing"`
}

// ScaleType implements Payload.
func (MMSEPayload) ScaleType() ScaleType { return ScaleMMSE }

// CDRPayload carries the six CDR domain box scores. All six are required.
type CDRPayload struct {
	Memory                 *float64 `json:"memory"`
	Orientation            *float64 `json:"orientation"`
	JudgmentProblemSolving *float64 `json:"judgment_problem_solving"`
	CommunityAffairs       *float64 `json:"community_affairs"`
	HomeHobbies            *float64 `json:"home_hobbies"`
	PersonalCare           *float64 `json:"personal_care"`
}

// ScaleType implements Payload.
func (CDRPayload) ScaleType() ScaleType { return ScaleCDR }

// Secondary returns the five non-memory box scores in a fixed order.
func (p CDRPayload) Secondary() []*float64 {
	return []*float64{p.Orientation, p.JudgmentProblemSolving, p.CommunityAffairs, p.HomeHobbies, p.PersonalCare}
}

// DecodePayload decodes the record payload into the variant matching its
// scale type.
func (r ScaleRecord) DecodePayload() (Payload, error) {
	raw := bytes.TrimSpace(r.Payload)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, ErrNoPayload
	}
	switch r.Type() {
	case ScaleMMSE:
		var p MMSEPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
		}
		return p, nil
	case ScaleCDR:
		var p CDRPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScale, r.ScaleType)
	}
}
