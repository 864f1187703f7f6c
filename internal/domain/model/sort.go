package model

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// TimedEvent pairs an event with its parsed timestamp.
type TimedEvent struct {
	Event CaseEvent
	At    time.Time
}

// SortEvents drops events without a valid timestamp and orders the rest by
// timestamp, breaking ties on the record content so the result is identical
// for any permutation of the input. The input slice is not modified.
func SortEvents(events []CaseEvent) []TimedEvent {
	out := make([]TimedEvent, 0, len(events))
	for _, e := range events {
		if at, ok := e.Time(); ok {
			out = append(out, TimedEvent{Event: e, At: at})
		}
	}
	slices.SortStableFunc(out, compareTimed)
	return out
}

// FilterWindow keeps the sorted events inside w.
func FilterWindow(events []TimedEvent, w Window) []TimedEvent {
	out := make([]TimedEvent, 0, len(events))
	for _, te := range events {
		if w.Contains(te.At) {
			out = append(out, te)
		}
	}
	return out
}

// Events strips the parsed timestamps.
func Events(timed []TimedEvent) []CaseEvent {
	out := make([]CaseEvent, len(timed))
	for i, te := range timed {
		out[i] = te.Event
	}
	return out
}

func compareTimed(a, b TimedEvent) int {
	if c := a.At.Compare(b.At); c != 0 {
		return c
	}
	return compareEventContent(a.Event, b.Event)
}

func compareEventContent(a, b CaseEvent) int {
	return cmp.Or(
		cmp.Compare(a.ID, b.ID),
		cmp.Compare(a.Slug, b.Slug),
		cmp.Compare(a.Title, b.Title),
		cmp.Compare(a.ShortText, b.ShortText),
		cmp.Compare(a.Summary, b.Summary),
		cmp.Compare(a.FullText, b.FullText),
		cmp.Compare(strings.Join(a.SymptomCategories, "\x00"), strings.Join(b.SymptomCategories, "\x00")),
	)
}

// DatedScale pairs a scale record with its parsed calendar day and score.
type DatedScale struct {
	Record ScaleRecord
	Day    time.Time
	Score  float64
}

// SortScored returns the records of type t that carry a valid date and a
// valid score, ascending by day with content tie-breaks.
func SortScored(records []ScaleRecord, t ScaleType) []DatedScale {
	out := make([]DatedScale, 0, len(records))
	for _, r := range records {
		if r.Type() != t {
			continue
		}
		day, ok := r.Day()
		if !ok {
			continue
		}
		score, ok := r.Score()
		if !ok {
			continue
		}
		out = append(out, DatedScale{Record: r, Day: day, Score: score})
	}
	slices.SortStableFunc(out, func(a, b DatedScale) int {
		return cmp.Or(
			a.Day.Compare(b.Day),
			cmp.Compare(a.Record.ID, b.Record.ID),
			cmp.Compare(a.Score, b.Score),
		)
	})
	return out
}

// SortDated returns every record with a valid date, ascending by day with
// content tie-breaks. Scores are not required.
func SortDated(records []ScaleRecord) []DatedScale {
	out := make([]DatedScale, 0, len(records))
	for _, r := range records {
		day, ok := r.Day()
		if !ok {
			continue
		}
		score, _ := r.Score()
		out = append(out, DatedScale{Record: r, Day: day, Score: score})
	}
	slices.SortStableFunc(out, func(a, b DatedScale) int {
		return cmp.Or(
			a.Day.Compare(b.Day),
			cmp.Compare(a.Record.ID, b.Record.ID),
			cmp.Compare(string(a.Record.Type()), string(b.Record.Type())),
			cmp.Compare(a.Score, b.Score),
		)
	})
	return out
}
