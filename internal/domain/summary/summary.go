// Package summary composes the symptom distributions, notable events and
// trend notes of a case into one clinical summary.
package summary

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/okian/caretrack/internal/domain/model"
	"github.com/okian/caretrack/internal/domain/symptoms"
)

// Builder defaults.
const (
	DefaultWindowDays    = 60
	DefaultSubWindowDays = 30
	topSymptoms          = 3
	maxNotable           = 5
)

// Note kinds.
const (
	NoteMemoryIncrease = "memory_increase"
	NoteSundowning     = "sundowning"
	NoteVolumeDrop     = "volume_drop"
	NoteNoClearTrend   = "no_clear_trend"
)

// DefaultPriority lists the categories that get one notable example each.
var DefaultPriority = []string{"memory", "orientation", "behavior"}

// Timeframe describes the window a summary covers.
type Timeframe struct {
	Days int    `json:"days"`
	From string `json:"from"`
	To   string `json:"to"`
}

// Note is one clinical observation derived from the window.
type Note struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// ClinicalSummary is the result of Build.
type ClinicalSummary struct {
	Timeframe           Timeframe            `json:"timeframe"`
	TotalEvents         int                  `json:"total_events"`
	TopSymptoms         []symptoms.Frequency `json:"top_symptoms"`
	RecentNotableEvents []model.EventRef     `json:"recent_notable_events"`
	TimeDistribution    symptoms.TimeOfDay   `json:"time_distribution"`
	WeekdayDistribution symptoms.Weekday     `json:"weekday_distribution"`
	FirstEventDate      *string              `json:"first_event_date"`
	LastEventDate       *string              `json:"last_event_date"`
	ClinicalNotes       []Note               `json:"clinical_notes"`
}

// Option applies a configuration option to the Builder.
type Option func(*Builder)

// WithAggregator sets the aggregator used for the distributions.
func WithAggregator(a *symptoms.Aggregator) Option {
	return func(b *Builder) {
		if a != nil {
			b.agg = a
		}
	}
}

// WithSubWindowDays sets the length of the recent and prior note windows.
func WithSubWindowDays(days int) Option {
	return func(b *Builder) {
		if days > 0 {
			b.subWindowDays = days
		}
	}
}

// WithPriority sets the priority categories for notable events.
func WithPriority(tags ...string) Option {
	return func(b *Builder) {
		b.priority = normalizeTags(tags)
	}
}

// Builder builds clinical summaries. It is safe for concurrent use.
type Builder struct {
	agg           *symptoms.Aggregator
	subWindowDays int
	priority      []string
}

// New creates a Builder.
func New(opts ...Option) *Builder {
	b := &Builder{
		agg:           symptoms.New(),
		subWindowDays: DefaultSubWindowDays,
		priority:      normalizeTags(DefaultPriority),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build summarises the events in the trailing window of windowDays days from
// now. A non-positive windowDays selects DefaultWindowDays.
func (b *Builder) Build(events []model.CaseEvent, windowDays int, now time.Time) ClinicalSummary {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	w := model.NewWindow(now, windowDays)
	timed := model.FilterWindow(model.SortEvents(events), w)
	windowed := model.Events(timed)

	freq := b.agg.BuildSymptomFrequency(windowed)
	s := ClinicalSummary{
		Timeframe: Timeframe{
			Days: windowDays,
			From: w.Start.UTC().Format(time.RFC3339),
			To:   now.UTC().Format(time.RFC3339),
		},
		TotalEvents:         len(timed),
		TopSymptoms:         freq[:min(topSymptoms, len(freq))],
		RecentNotableEvents: b.notable(timed),
		TimeDistribution:    b.agg.BuildTimeOfDayBuckets(windowed),
		WeekdayDistribution: b.agg.BuildWeekdayBuckets(windowed),
	}
	if n := len(timed); n > 0 {
		first, last := model.FormatDay(timed[0].At), model.FormatDay(timed[n-1].At)
		s.FirstEventDate, s.LastEventDate = &first, &last
	}
	s.ClinicalNotes = b.notes(timed, w, s.TimeDistribution)
	return s
}

// notable picks up to maxNotable events that carry a category and a title.
// One example per priority category comes first, most recent wins; the rest
// are the most recent remaining candidates.
func (b *Builder) notable(timed []model.TimedEvent) []model.EventRef {
	var candidates []model.CaseEvent
	for i := len(timed) - 1; i >= 0; i-- {
		e := timed[i].Event
		if len(e.Categories()) > 0 && e.DisplayTitle() != "" {
			candidates = append(candidates, e)
		}
	}

	picked := make([]bool, len(candidates))
	out := make([]model.EventRef, 0, maxNotable)
	for _, tag := range b.priority {
		if len(out) == maxNotable {
			break
		}
		for i, e := range candidates {
			if !picked[i] && e.HasCategory(tag) {
				picked[i] = true
				out = append(out, e.Ref())
				break
			}
		}
	}
	for i, e := range candidates {
		if len(out) == maxNotable {
			break
		}
		if !picked[i] {
			picked[i] = true
			out = append(out, e.Ref())
		}
	}
	return out
}

// notes compares the recent sub-window with the one before it. Both are
// clipped to the outer window. The result is never empty.
func (b *Builder) notes(timed []model.TimedEvent, w model.Window, tod symptoms.TimeOfDay) []Note {
	sub := time.Duration(b.subWindowDays) * model.Day
	recentStart := maxTime(w.Now.Add(-sub), w.Start)
	priorStart := maxTime(recentStart.Add(-sub), w.Start)

	var recent, prior, recentMemory, priorMemory int
	for _, te := range timed {
		memory := te.Event.HasCategory("memory")
		switch {
		case !te.At.Before(recentStart):
			recent++
			if memory {
				recentMemory++
			}
		case !te.At.Before(priorStart):
			prior++
			if memory {
				priorMemory++
			}
		}
	}

	var notes []Note
	if float64(recentMemory) > math.Max(float64(priorMemory)*1.2, float64(priorMemory+1)) {
		notes = append(notes, Note{
			Kind: NoteMemoryIncrease,
			Text: fmt.Sprintf("Memory-related events rose from %d to %d over the last %d days.",
				priorMemory, recentMemory, b.subWindowDays),
		})
	}
	if total := tod.Total(); total > 0 && float64(tod.Evening)/float64(total) > 0.5 {
		notes = append(notes, Note{
			Kind: NoteSundowning,
			Text: fmt.Sprintf("%d of %d events were recorded between 18:00 and 24:00, a pattern consistent with sundowning.",
				tod.Evening, total),
		})
	}
	if prior > 0 && float64(recent) < 0.5*float64(prior) {
		notes = append(notes, Note{
			Kind: NoteVolumeDrop,
			Text: fmt.Sprintf("Recorded events fell from %d to %d compared with the previous %d days.",
				prior, recent, b.subWindowDays),
		})
	}
	if len(notes) == 0 {
		notes = append(notes, Note{Kind: NoteNoClearTrend, Text: "No clear trend in the recorded events."})
	}
	return notes
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}
