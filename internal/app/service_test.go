package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	service "github.com/okian/caretrack/internal/app"
	"github.com/okian/caretrack/internal/domain/model"
	"github.com/okian/caretrack/internal/domain/types"
	"github.com/okian/caretrack/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should report sensible defaults", func() {
			stats := svc.GetStats()
			So(stats.Started, ShouldEqual, false)
			So(stats.Runtime, ShouldBeNil)
			So(stats.QueueSize, ShouldEqual, 10_000)
			So(stats.DedupeSize, ShouldEqual, 50_000)
			So(stats.MaxWindowDays, ShouldEqual, 3650)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithWorkerCount(8),
			service.WithQueueSize(500),
			service.WithDedupeSize(250),
			service.WithMaxWindowDays(365),
		)

		Convey("Then the options are applied", func() {
			stats := svc.GetStats()
			So(stats.WorkerCount, ShouldEqual, 8)
			So(stats.QueueSize, ShouldEqual, 500)
			So(stats.DedupeSize, ShouldEqual, 250)
			So(stats.MaxWindowDays, ShouldEqual, 365)
		})
	})
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(service.WithWorkerCount(2))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		Convey("When it has not been started", func() {
			_, ingestErr := svc.IngestEvent(ctx, "case-1", model.CaseEvent{ID: "e1"})
			_, queryErr := svc.Summary(ctx, "case-1", types.Query{})
			_, casesErr := svc.Cases(ctx)

			Convey("Then every operation is unavailable", func() {
				So(errors.Is(ingestErr, types.ErrUnavailable), ShouldBeTrue)
				So(errors.Is(queryErr, types.ErrUnavailable), ShouldBeTrue)
				So(errors.Is(casesErr, types.ErrUnavailable), ShouldBeTrue)
			})

			Convey("Then Stop is a no-op", func() {
				So(svc.Stop(ctx), ShouldBeNil)
			})
		})

		Convey("When starting the service", func() {
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop(ctx)

			Convey("Then it should be marked as started", func() {
				So(svc.GetStats().Started, ShouldEqual, true)
			})

			Convey("Then starting again is a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})

			Convey("And stopping it", func() {
				So(svc.Stop(ctx), ShouldBeNil)

				Convey("Then it should be marked as stopped", func() {
					So(svc.GetStats().Started, ShouldEqual, false)
				})
			})
		})
	})
}

func TestService_IngestValidation(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := service.New(service.WithWorkerCount(1))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		Convey("When the case id is blank", func() {
			_, err := svc.IngestEvent(ctx, "   ", model.CaseEvent{ID: "e1"})

			Convey("Then the input is rejected", func() {
				So(errors.Is(err, types.ErrInvalidInput), ShouldBeTrue)
			})
		})

		Convey("When the same event is submitted twice", func() {
			e := model.CaseEvent{ID: "e1", Timestamp: "2024-06-01T10:00:00Z", Title: "Fall"}
			first, err1 := svc.IngestEvent(ctx, "case-1", e)
			second, err2 := svc.IngestEvent(ctx, " case-1 ", e)

			Convey("Then the second is acknowledged as a duplicate", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(first, ShouldResemble, types.Accepted("e1"))
				So(second, ShouldResemble, types.Duplicated("e1"))
			})
		})

		Convey("When an edited event reuses an id", func() {
			_, _ = svc.IngestEvent(ctx, "case-1", model.CaseEvent{ID: "e1", Title: "Fall"})
			ack, err := svc.IngestEvent(ctx, "case-1", model.CaseEvent{ID: "e1", Title: "Fall at night"})

			Convey("Then it is accepted as a new version", func() {
				So(err, ShouldBeNil)
				So(ack.Duplicate, ShouldBeFalse)
			})
		})

		Convey("When a scale has no id", func() {
			score := 24.0
			ack, err := svc.IngestScale(ctx, "case-1", model.ScaleRecord{Date: "2024-06-01", ScaleType: model.ScaleMMSE, TotalScore: &score})

			Convey("Then an id is assigned", func() {
				So(err, ShouldBeNil)
				So(ack.Status, ShouldEqual, types.StatusAccepted)
				So(ack.ID, ShouldNotBeEmpty)
			})
		})
	})
}

func TestService_QueryValidation(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := service.New(service.WithWorkerCount(1), service.WithMaxWindowDays(365))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		Convey("When the window is negative or too large", func() {
			_, negErr := svc.Summary(ctx, "case-1", types.Query{WindowDays: -1})
			_, bigErr := svc.Stage(ctx, "case-1", types.Query{WindowDays: 366})

			Convey("Then the query is rejected", func() {
				So(errors.Is(negErr, types.ErrInvalidInput), ShouldBeTrue)
				So(errors.Is(bigErr, types.ErrInvalidInput), ShouldBeTrue)
			})
		})

		Convey("When the case is unknown", func() {
			_, err := svc.Symptoms(ctx, "nobody", types.Query{})

			Convey("Then it is not found", func() {
				So(errors.Is(err, types.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When the case id is blank", func() {
			_, err := svc.Trends(ctx, " ")

			Convey("Then the input is rejected", func() {
				So(errors.Is(err, types.ErrInvalidInput), ShouldBeTrue)
			})
		})
	})
}
