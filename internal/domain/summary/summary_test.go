package summary_test

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/okian/caretrack/internal/domain/model"
	"github.com/okian/caretrack/internal/domain/summary"
	"github.com/okian/caretrack/internal/domain/symptoms"
	. "github.com/smartystreets/goconvey/convey"
)

var now = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

func at(day, hour int) string {
	return time.Date(2024, 6, day, hour, 0, 0, 0, time.UTC).Format(time.RFC3339)
}

func daysAgo(days, hour int) string {
	d := now.AddDate(0, 0, -days)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, time.UTC).Format(time.RFC3339)
}

func ids(refs []model.EventRef) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.ID
	}
	return out
}

func kinds(notes []summary.Note) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.Kind
	}
	return out
}

func TestBuild_Empty(t *testing.T) {
	Convey("Given no events", t, func() {
		s := summary.New().Build(nil, 0, now)

		Convey("Then the summary is well formed and empty", func() {
			So(s.Timeframe.Days, ShouldEqual, summary.DefaultWindowDays)
			So(s.TotalEvents, ShouldEqual, 0)
			So(s.TopSymptoms, ShouldNotBeNil)
			So(s.TopSymptoms, ShouldBeEmpty)
			So(s.RecentNotableEvents, ShouldBeEmpty)
			So(s.TimeDistribution, ShouldResemble, symptoms.TimeOfDay{})
			So(s.WeekdayDistribution, ShouldResemble, symptoms.Weekday{})
			So(s.FirstEventDate, ShouldBeNil)
			So(s.LastEventDate, ShouldBeNil)
			So(kinds(s.ClinicalNotes), ShouldResemble, []string{summary.NoteNoClearTrend})
		})

		Convey("Then the JSON keeps lists as arrays and dates as null", func() {
			raw, err := json.Marshal(s)
			So(err, ShouldBeNil)
			So(string(raw), ShouldContainSubstring, `"top_symptoms":[]`)
			So(string(raw), ShouldContainSubstring, `"recent_notable_events":[]`)
			So(string(raw), ShouldContainSubstring, `"first_event_date":null`)
		})
	})
}

func TestBuild_Window(t *testing.T) {
	Convey("Given events inside and outside a 60 day window", t, func() {
		events := []model.CaseEvent{
			{ID: "old", Timestamp: daysAgo(61, 9), SymptomCategories: []string{"memory"}, Title: "old"},
			{ID: "a", Timestamp: at(2, 9), SymptomCategories: []string{"memory", "sleep"}},
			{ID: "b", Timestamp: at(10, 9), SymptomCategories: []string{"memory"}},
			{ID: "c", Timestamp: at(20, 14), SymptomCategories: []string{"safety"}},
			{ID: "d", Timestamp: at(21, 14), SymptomCategories: []string{"behavior"}},
			{ID: "e", Timestamp: at(22, 14)},
			{ID: "bad", Timestamp: "yesterday"},
		}
		s := summary.New().Build(events, 60, now)

		Convey("Then only windowed events are counted", func() {
			So(s.TotalEvents, ShouldEqual, 5)
			So(*s.FirstEventDate, ShouldEqual, "2024-06-02")
			So(*s.LastEventDate, ShouldEqual, "2024-06-22")
			So(s.TimeDistribution.Total(), ShouldEqual, 5)
		})

		Convey("Then the top three symptoms are listed", func() {
			So(s.TopSymptoms, ShouldResemble, []symptoms.Frequency{
				{Label: "memory", Count: 2},
				{Label: "sleep", Count: 1},
				{Label: "safety", Count: 1},
			})
		})

		Convey("Then events without a title are not notable", func() {
			So(s.RecentNotableEvents, ShouldBeEmpty)
		})
	})
}

func TestBuild_NotableEvents(t *testing.T) {
	Convey("Given ten qualifying events", t, func() {
		var events []model.CaseEvent
		add := func(id string, day int, tag string) {
			events = append(events, model.CaseEvent{
				ID: id, Timestamp: at(day, 10), Title: "event " + id, SymptomCategories: []string{tag},
			})
		}
		add("x3", 29, "sleep")
		add("x2", 28, "sleep")
		add("x1", 27, "safety")
		for i := 1; i <= 4; i++ {
			add(fmt.Sprintf("m%d", i), 10+i, "memory")
		}
		for i := 1; i <= 3; i++ {
			add(fmt.Sprintf("o%d", i), 20+i, "orientation")
		}

		Convey("When building the summary", func() {
			s := summary.New().Build(events, 60, now)

			Convey("Then one memory and one orientation example lead, followed by three recent fillers", func() {
				So(ids(s.RecentNotableEvents), ShouldResemble, []string{"m4", "o3", "x3", "x2", "x1"})
			})

			Convey("Then notable events are condensed", func() {
				So(s.RecentNotableEvents[0], ShouldResemble, model.EventRef{
					ID: "m4", Timestamp: at(14, 10), Title: "event m4", SymptomCategories: []string{"memory"},
				})
			})
		})

		Convey("When the priority list is changed", func() {
			s := summary.New(summary.WithPriority("Safety", "safety")).Build(events, 60, now)

			Convey("Then its tags lead instead", func() {
				So(ids(s.RecentNotableEvents), ShouldResemble, []string{"x1", "x3", "x2", "o3", "o2"})
			})
		})
	})
}

func TestBuild_Notes(t *testing.T) {
	Convey("Given the recent and prior sub-windows", t, func() {
		build := func(events ...model.CaseEvent) []string {
			return kinds(summary.New().Build(events, 60, now).ClinicalNotes)
		}
		ev := func(id string, ago, hour int, tags ...string) model.CaseEvent {
			return model.CaseEvent{ID: id, Timestamp: daysAgo(ago, hour), SymptomCategories: tags}
		}

		Convey("When memory events clearly rise", func() {
			notes := build(
				ev("p1", 40, 9, "memory"),
				ev("r1", 5, 9, "memory"), ev("r2", 6, 9, "memory"), ev("r3", 7, 9, "memory"),
			)
			So(notes, ShouldResemble, []string{summary.NoteMemoryIncrease})
		})

		Convey("When the rise does not beat prior+1", func() {
			notes := build(
				ev("p1", 40, 9, "memory"),
				ev("r1", 5, 9, "memory"), ev("r2", 6, 9, "memory"),
			)
			So(notes, ShouldResemble, []string{summary.NoteNoClearTrend})
		})

		Convey("When most events happen in the evening", func() {
			notes := build(ev("1", 3, 19), ev("2", 4, 20), ev("3", 5, 9))
			So(notes, ShouldResemble, []string{summary.NoteSundowning})
		})

		Convey("When exactly half happen in the evening", func() {
			notes := build(ev("1", 3, 19), ev("2", 5, 9))
			So(notes, ShouldResemble, []string{summary.NoteNoClearTrend})
		})

		Convey("When recent volume halves", func() {
			notes := build(
				ev("p1", 35, 9), ev("p2", 36, 9), ev("p3", 37, 9), ev("p4", 38, 9),
				ev("r1", 2, 9),
			)
			So(notes, ShouldResemble, []string{summary.NoteVolumeDrop})
		})

		Convey("When recent volume is exactly half", func() {
			notes := build(
				ev("p1", 35, 9), ev("p2", 36, 9), ev("p3", 37, 9), ev("p4", 38, 9),
				ev("r1", 2, 9), ev("r2", 3, 9),
			)
			So(notes, ShouldResemble, []string{summary.NoteNoClearTrend})
		})

		Convey("When the outer window is shorter than a sub-window", func() {
			s := summary.New().Build([]model.CaseEvent{ev("r1", 2, 9)}, 20, now)

			Convey("Then there is no prior period to compare with", func() {
				So(kinds(s.ClinicalNotes), ShouldResemble, []string{summary.NoteNoClearTrend})
			})
		})
	})
}

func TestBuild_Determinism(t *testing.T) {
	Convey("Given a fixed set of events", t, func() {
		events := []model.CaseEvent{
			{ID: "1", Timestamp: at(20, 19), Title: "Up at night", SymptomCategories: []string{"sleep", "behavior"}},
			{ID: "2", Timestamp: at(20, 19), Title: "Asked for mother", SymptomCategories: []string{"memory"}},
			{ID: "3", Timestamp: at(12, 8), ShortText: "Lost in store", SymptomCategories: []string{"orientation"}},
			{ID: "4", Timestamp: at(5, 13), Title: "Fall", SymptomCategories: []string{"safety"}},
			{ID: "5", Timestamp: "2024-06-01"},
		}
		b := summary.New()
		want, err := json.Marshal(b.Build(events, 60, now))
		So(err, ShouldBeNil)

		Convey("When built again with the same input", func() {
			again, err := json.Marshal(b.Build(events, 60, now))

			Convey("Then the output is byte-identical", func() {
				So(err, ShouldBeNil)
				So(string(again), ShouldEqual, string(want))
			})
		})

		Convey("When the input is permuted", func() {
			r := rand.New(rand.NewSource(3))
			for i := 0; i < 20; i++ {
				shuffled := append([]model.CaseEvent(nil), events...)
				r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
				got, err := json.Marshal(b.Build(shuffled, 60, now))
				So(err, ShouldBeNil)
				So(string(got), ShouldEqual, string(want))
			}
		})

		Convey("Then the input is not modified", func() {
			So(events[0].SymptomCategories, ShouldResemble, []string{"sleep", "behavior"})
		})
	})
}
