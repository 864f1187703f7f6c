package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	service "github.com/okian/caretrack/internal/app"
	"github.com/okian/caretrack/internal/domain/model"
	"github.com/okian/caretrack/internal/domain/stage"
	"github.com/okian/caretrack/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

var fixedNow = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

func daysAgo(n, hour int) string {
	d := fixedNow.AddDate(0, 0, -n)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, time.UTC).Format(time.RFC3339)
}

// eventually polls cond until it holds or the deadline passes.
func eventually(cond func() bool) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a started service with a fixed clock", t, func() {
		svc := service.New(
			service.WithWorkerCount(2),
			service.WithQueueSize(1000),
			service.WithDedupeSize(500),
			service.WithSnapshotInterval(10*time.Millisecond),
			service.WithClock(func() time.Time { return fixedNow }),
		)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		Convey("When a case history is ingested", func() {
			events := []model.CaseEvent{
				{ID: "e1", Timestamp: daysAgo(2, 22), SymptomCategories: []string{"sleep"}, Title: "Up at night"},
				{ID: "e2", Timestamp: daysAgo(9, 9), SymptomCategories: []string{"memory"}, Title: "Forgot stove"},
				{ID: "e3", Timestamp: daysAgo(40, 15), SymptomCategories: []string{"orientation"}, Title: "Lost in store"},
			}
			for _, e := range events {
				ack, err := svc.IngestEvent(ctx, "case-1", e)
				So(err, ShouldBeNil)
				So(ack.Status, ShouldEqual, types.StatusAccepted)
			}

			payload, _ := json.Marshal(model.MMSEPayload{OrientationTime: 5, OrientationPlace: 5, Registration: 3, Recall: 3, Language: 2})
			stored := 28.0
			_, err := svc.IngestScale(ctx, "case-1", model.ScaleRecord{
				ID: "m1", Date: model.FormatDay(fixedNow.AddDate(0, 0, -10)), ScaleType: model.ScaleMMSE,
				TotalScore: &stored, Payload: payload,
			})
			So(err, ShouldBeNil)

			So(eventually(func() bool {
				tr, err := svc.Trends(ctx, "case-1")
				if err != nil {
					return false
				}
				s, err := svc.Summary(ctx, "case-1", types.Query{WindowDays: 60})
				return err == nil && s.TotalEvents == 3 && len(tr.MMSE.Points) == 1
			}), ShouldBeTrue)

			Convey("Then the case is listed", func() {
				cases, err := svc.Cases(ctx)
				So(err, ShouldBeNil)
				So(cases, ShouldResemble, []string{"case-1"})
			})

			Convey("Then the worker rescored the scale from its payload", func() {
				tr, err := svc.Trends(ctx, "case-1")
				So(err, ShouldBeNil)
				So(tr.MMSE.Latest.Score, ShouldEqual, 18)
			})

			Convey("Then the stage follows the MMSE rule", func() {
				res, err := svc.Stage(ctx, "case-1", types.Query{})
				So(err, ShouldBeNil)
				So(res.Meta.Rule, ShouldEqual, stage.RuleMMSE)
				So(res.Stage, ShouldEqual, model.StageMiddle)
			})

			Convey("Then the summary window limits the events", func() {
				s, err := svc.Summary(ctx, "case-1", types.Query{WindowDays: 7})
				So(err, ShouldBeNil)
				So(s.TotalEvents, ShouldEqual, 1)
			})

			Convey("Then links pick up events near the scale", func() {
				links, err := svc.Links(ctx, "case-1", types.Query{})
				So(err, ShouldBeNil)
				So(len(links), ShouldEqual, 1)
				So(len(links[0].NearbyEvents), ShouldEqual, 1)
				So(links[0].NearbyEvents[0].ID, ShouldEqual, "e2")
			})

			Convey("Then symptoms use the requested window", func() {
				sym, err := svc.Symptoms(ctx, "case-1", types.Query{WindowDays: 30})
				So(err, ShouldBeNil)
				So(sym.WindowDays, ShouldEqual, 30)
				So(len(sym.Frequency), ShouldEqual, 2)
			})

			Convey("Then the report combines every analysis", func() {
				r, err := svc.Report(ctx, "case-1", types.Query{WindowDays: 7})
				So(err, ShouldBeNil)
				So(r.CaseID, ShouldEqual, "case-1")
				So(r.Summary.TotalEvents, ShouldEqual, 3)
				So(r.Stage.Stage, ShouldEqual, model.StageMiddle)
				So(len(r.Links), ShouldEqual, 1)
			})

			Convey("Then the statistics reflect the stored records", func() {
				So(eventually(func() bool {
					rt := svc.GetStats().Runtime
					return rt != nil && rt.Events == 3
				}), ShouldBeTrue)
				rt := svc.GetStats().Runtime
				So(rt.Cases, ShouldEqual, 1)
				So(rt.Scales, ShouldEqual, 1)
				So(rt.SnapshotAt.IsZero(), ShouldBeFalse)
			})

			Convey("And an event is replaced by id", func() {
				_, err := svc.IngestEvent(ctx, "case-1", model.CaseEvent{
					ID: "e3", Timestamp: daysAgo(3, 15), SymptomCategories: []string{"orientation"}, Title: "Lost in store",
				})
				So(err, ShouldBeNil)

				Convey("Then the case keeps three events and the new timestamp", func() {
					So(eventually(func() bool {
						s, err := svc.Summary(ctx, "case-1", types.Query{WindowDays: 7})
						return err == nil && s.TotalEvents == 2
					}), ShouldBeTrue)
					s, _ := svc.Summary(ctx, "case-1", types.Query{WindowDays: 60})
					So(s.TotalEvents, ShouldEqual, 3)
				})
			})
		})
	})
}

func TestServiceRescoreFailure(t *testing.T) {
	Convey("Given a single-worker service holding a scored MMSE", t, func() {
		svc := service.New(
			service.WithWorkerCount(1),
			service.WithClock(func() time.Time { return fixedNow }),
		)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		total := 22.0
		_, err := svc.IngestScale(ctx, "case-r", model.ScaleRecord{ID: "s1", Date: "2024-06-01", ScaleType: model.ScaleMMSE, TotalScore: &total})
		So(err, ShouldBeNil)
		So(eventually(func() bool {
			tr, err := svc.Trends(ctx, "case-r")
			return err == nil && len(tr.MMSE.Points) == 1
		}), ShouldBeTrue)

		Convey("When it is resubmitted with a malformed payload and no total", func() {
			ack, err := svc.IngestScale(ctx, "case-r", model.ScaleRecord{
				ID: "s1", Date: "2024-06-01", ScaleType: model.ScaleMMSE, Payload: model.RawPayload(`{"recall":"two"}`),
			})
			So(err, ShouldBeNil)
			So(ack.Status, ShouldEqual, types.StatusAccepted)

			// A single worker drains in order, so the marker lands after the rescore.
			_, err = svc.IngestEvent(ctx, "case-r", model.CaseEvent{ID: "marker", Timestamp: daysAgo(1, 9)})
			So(err, ShouldBeNil)
			So(eventually(func() bool {
				s, err := svc.Summary(ctx, "case-r", types.Query{})
				return err == nil && s.TotalEvents == 1
			}), ShouldBeTrue)

			Convey("Then the previously stored total is kept", func() {
				tr, err := svc.Trends(ctx, "case-r")
				So(err, ShouldBeNil)
				So(len(tr.MMSE.Points), ShouldEqual, 1)
				So(tr.MMSE.Points[0].Score, ShouldEqual, 22)

				res, err := svc.Stage(ctx, "case-r", types.Query{})
				So(err, ShouldBeNil)
				So(res.Meta.Rule, ShouldEqual, stage.RuleMMSE)
				So(res.Stage, ShouldEqual, model.StageMiddle)
			})
		})
	})
}

func TestServiceConcurrency(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := service.New(
			service.WithWorkerCount(4),
			service.WithQueueSize(5000),
			service.WithClock(func() time.Time { return fixedNow }),
		)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		Convey("When many goroutines ingest and query concurrently", func() {
			const (
				cases    = 5
				perCase  = 40
				queriers = 8
			)
			var wg sync.WaitGroup
			for c := 0; c < cases; c++ {
				wg.Add(1)
				go func(c int) {
					defer wg.Done()
					caseID := fmt.Sprintf("case-%d", c)
					for i := 0; i < perCase; i++ {
						_, _ = svc.IngestEvent(ctx, caseID, model.CaseEvent{
							ID:                fmt.Sprintf("e-%d", i),
							Timestamp:         daysAgo(i%30, i%24),
							SymptomCategories: []string{"memory"},
						})
					}
				}(c)
			}
			for q := 0; q < queriers; q++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < 20; i++ {
						_, _ = svc.Stage(ctx, "case-0", types.Query{})
						_, _ = svc.Summary(ctx, "case-0", types.Query{})
					}
				}()
			}
			wg.Wait()

			Convey("Then every record is eventually stored", func() {
				So(eventually(func() bool {
					for c := 0; c < cases; c++ {
						s, err := svc.Summary(ctx, fmt.Sprintf("case-%d", c), types.Query{})
						if err != nil || s.TotalEvents != perCase {
							return false
						}
					}
					return true
				}), ShouldBeTrue)
			})
		})
	})
}

func TestServiceStopDrainsQueue(t *testing.T) {
	Convey("Given a service with queued submissions", t, func() {
		svc := service.New(service.WithWorkerCount(1), service.WithQueueSize(1000))
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)

		accepted := 0
		for i := 0; i < 200; i++ {
			ack, err := svc.IngestEvent(ctx, "case-1", model.CaseEvent{ID: fmt.Sprintf("e-%d", i)})
			if err == nil && !ack.Duplicate {
				accepted++
			}
		}

		Convey("When the service is stopped", func() {
			err := svc.Stop(ctx)

			Convey("Then it stops cleanly after draining", func() {
				So(err, ShouldBeNil)
				So(accepted, ShouldEqual, 200)
				So(svc.GetStats().Started, ShouldEqual, false)
			})
		})
	})
}
