// Package symptoms buckets case events into category, time-of-day and weekday
// distributions.
package symptoms

import (
	"encoding/json"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/okian/caretrack/internal/domain/model"
)

// Frequency is the number of events carrying a label.
type Frequency struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// TimeOfDay counts events per six-hour bucket. Buckets are half-open:
// 06:00 belongs to Morning.
type TimeOfDay struct {
	Night     int `json:"00-06"`
	Morning   int `json:"06-12"`
	Afternoon int `json:"12-18"`
	Evening   int `json:"18-24"`
}

// Total returns the sum of all buckets.
func (t TimeOfDay) Total() int {
	return t.Night + t.Morning + t.Afternoon + t.Evening
}

// Weekday counts events per weekday, Sunday = 0.
type Weekday [7]int

// MarshalJSON renders the buckets as an object keyed "0".."6".
func (w Weekday) MarshalJSON() ([]byte, error) {
	m := make(map[string]int, len(w))
	for i, n := range w {
		m[strconv.Itoa(i)] = n
	}
	return json.Marshal(m)
}

// DayCount holds the per-category counts of one UTC calendar day.
type DayCount struct {
	Date   string         `json:"date"`
	Counts map[string]int `json:"counts"`
}

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithLocation sets the zone used for hour and weekday bucketing.
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) {
		if loc != nil {
			a.loc = loc
		}
	}
}

// Aggregator builds symptom distributions. It holds no state between calls
// and is safe for concurrent use.
type Aggregator struct {
	loc *time.Location
}

// New creates an Aggregator. Hours and weekdays default to UTC.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{loc: time.UTC}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Location returns the bucketing zone.
func (a *Aggregator) Location() *time.Location {
	return a.loc
}

// BuildSymptomFrequency counts events per category, most frequent first.
// Events without categories count once toward model.Uncategorized; events
// with several count once per category. Ties keep first-encounter order.
func (a *Aggregator) BuildSymptomFrequency(events []model.CaseEvent) []Frequency {
	var out []Frequency
	index := make(map[string]int)
	bump := func(label string) {
		if i, ok := index[label]; ok {
			out[i].Count++
			return
		}
		index[label] = len(out)
		out = append(out, Frequency{Label: label, Count: 1})
	}
	for _, e := range events {
		cats := e.Categories()
		if len(cats) == 0 {
			bump(model.Uncategorized)
			continue
		}
		for _, c := range cats {
			bump(c)
		}
	}
	slices.SortStableFunc(out, func(x, y Frequency) int {
		return y.Count - x.Count
	})
	if out == nil {
		out = []Frequency{}
	}
	return out
}

// BuildTimeOfDayBuckets counts events by local hour. Events with invalid
// timestamps are skipped.
func (a *Aggregator) BuildTimeOfDayBuckets(events []model.CaseEvent) TimeOfDay {
	var t TimeOfDay
	for _, e := range events {
		at, ok := e.Time()
		if !ok {
			continue
		}
		switch h := at.In(a.loc).Hour(); {
		case h < 6:
			t.Night++
		case h < 12:
			t.Morning++
		case h < 18:
			t.Afternoon++
		default:
			t.Evening++
		}
	}
	return t
}

// BuildWeekdayBuckets counts events by local weekday. Events with invalid
// timestamps are skipped.
func (a *Aggregator) BuildWeekdayBuckets(events []model.CaseEvent) Weekday {
	var w Weekday
	for _, e := range events {
		if at, ok := e.Time(); ok {
			w[at.In(a.loc).Weekday()]++
		}
	}
	return w
}

// GroupEventsByDay counts categories per UTC calendar day for the events in
// the trailing window of windowDays days from now, oldest day first.
func (a *Aggregator) GroupEventsByDay(events []model.CaseEvent, windowDays int, now time.Time) []DayCount {
	w := model.NewWindow(now, windowDays)
	byDay := make(map[string]map[string]int)
	for _, te := range model.FilterWindow(model.SortEvents(events), w) {
		day := model.FormatDay(te.At)
		counts, ok := byDay[day]
		if !ok {
			counts = make(map[string]int)
			byDay[day] = counts
		}
		cats := te.Event.Categories()
		if len(cats) == 0 {
			counts[model.Uncategorized]++
			continue
		}
		for _, c := range cats {
			counts[c]++
		}
	}

	out := make([]DayCount, 0, len(byDay))
	for day, counts := range byDay {
		out = append(out, DayCount{Date: day, Counts: counts})
	}
	slices.SortFunc(out, func(x, y DayCount) int {
		return strings.Compare(x.Date, y.Date)
	})
	return out
}
