package linker_test

import (
	"encoding/json"
	"testing"

	"github.com/okian/caretrack/internal/domain/linker"
	"github.com/okian/caretrack/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLink(t *testing.T) {
	Convey("Given one scale and events around it", t, func() {
		score := 22.0
		scales := []model.ScaleRecord{
			{ID: "s1", Date: "2024-05-10", ScaleType: "mmse", TotalScore: &score},
			{ID: "bad", Date: "someday", ScaleType: model.ScaleCDR},
		}
		events := []model.CaseEvent{
			{ID: "after-edge", Timestamp: "2024-05-17T00:00:00Z", Title: "After", FullText: "long narrative"},
			{ID: "too-late", Timestamp: "2024-05-17T00:00:01Z", Title: "Too late"},
			{ID: "before-edge", Timestamp: "2024-05-03T00:00:00Z", ShortText: "Before", Summary: "private",
				SymptomCategories: []string{"Memory"}},
			{ID: "too-early", Timestamp: "2024-05-02T23:59:59Z"},
			{ID: "no-time"},
		}

		Convey("When linking with the default window", func() {
			links := linker.Link(scales, events, linker.DefaultWindowDays)

			Convey("Then records without a valid date are skipped", func() {
				So(links, ShouldHaveLength, 1)
				So(links[0].ScaleID, ShouldEqual, "s1")
				So(links[0].ScaleType, ShouldEqual, model.ScaleMMSE)
				So(links[0].Date, ShouldEqual, "2024-05-10")
			})

			Convey("Then both boundaries are inclusive and matches ascend", func() {
				So(links[0].NearbyEvents, ShouldResemble, []model.EventRef{
					{ID: "before-edge", Timestamp: "2024-05-03T00:00:00Z", Title: "Before", SymptomCategories: []string{"memory"}},
					{ID: "after-edge", Timestamp: "2024-05-17T00:00:00Z", Title: "After", SymptomCategories: []string{}},
				})
			})

			Convey("Then narrative text never leaks into the projection", func() {
				raw, err := json.Marshal(links)
				So(err, ShouldBeNil)
				So(string(raw), ShouldNotContainSubstring, "long narrative")
				So(string(raw), ShouldNotContainSubstring, "private")
			})
		})

		Convey("When the window is negative", func() {
			Convey("Then the default applies", func() {
				So(linker.Link(scales, events, -1), ShouldResemble, linker.Link(scales, events, 7))
			})
		})

		Convey("When the window is zero", func() {
			links := linker.Link(scales, []model.CaseEvent{{ID: "x", Timestamp: "2024-05-10"}}, 0)

			Convey("Then only events at the scale instant match", func() {
				So(links[0].NearbyEvents, ShouldHaveLength, 1)
			})
		})
	})

	Convey("Given no scales", t, func() {
		Convey("Then the result is empty", func() {
			So(linker.Link(nil, []model.CaseEvent{{Timestamp: "2024-01-01"}}, 7), ShouldBeEmpty)
		})
	})
}
