package casefile_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okian/caretrack/internal/casefile"
	"github.com/okian/caretrack/internal/domain/model"
	"github.com/okian/caretrack/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

const yamlCase = `
case_id: " case-42 "
events:
  - id: e1
    timestamp: 2024-05-01T21:30:00Z
    symptom_categories: [orientation, Sleep]
    title: Confused at dusk
scales:
  - id: s1
    date: 2024-05-02
    scale_type: MMSE
    total_score: 22
    payload:
      recall: 2
      language: 2
`

func TestDecode(t *testing.T) {
	Convey("Given a YAML case file", t, func() {
		f, err := casefile.Decode(strings.NewReader(yamlCase))

		Convey("Then records keep their JSON field names", func() {
			So(err, ShouldBeNil)
			So(f.CaseID, ShouldEqual, "case-42")
			So(len(f.Events), ShouldEqual, 1)
			So(f.Events[0].Timestamp, ShouldEqual, "2024-05-01T21:30:00Z")
			So(f.Events[0].SymptomCategories, ShouldResemble, []string{"orientation", "Sleep"})
			So(len(f.Scales), ShouldEqual, 1)
			So(f.Scales[0].Date, ShouldEqual, "2024-05-02")
			So(f.Scales[0].Type(), ShouldEqual, model.ScaleMMSE)
			So(*f.Scales[0].TotalScore, ShouldEqual, 22)
		})

		Convey("Then the payload stays decodable", func() {
			p, err := f.Scales[0].DecodePayload()
			So(err, ShouldBeNil)
			So(p.(model.MMSEPayload).Recall, ShouldEqual, 2)
		})
	})

	Convey("Given a JSON case file", t, func() {
		f, err := casefile.Decode(strings.NewReader(`{"case_id":"c1","events":[{"id":"e1","title":"Fall"}]}`))

		Convey("Then it decodes the same way", func() {
			So(err, ShouldBeNil)
			So(f.CaseID, ShouldEqual, "c1")
			So(f.Events[0].Title, ShouldEqual, "Fall")
			So(f.Scales, ShouldBeEmpty)
		})
	})

	Convey("Given malformed input", t, func() {
		for _, in := range []string{"", "   ", "- a\n- b\n", "case_id: [unclosed"} {
			_, err := casefile.Decode(strings.NewReader(in))
			So(errors.Is(err, casefile.ErrInvalidFile), ShouldBeTrue)
		}
	})
}

func TestLoad(t *testing.T) {
	Convey("Given a case file on disk", t, func() {
		path := filepath.Join(t.TempDir(), "case.yaml")
		So(os.WriteFile(path, []byte(yamlCase), 0o600), ShouldBeNil)

		Convey("Then Load reads it", func() {
			f, err := casefile.Load(path)
			So(err, ShouldBeNil)
			So(f.CaseID, ShouldEqual, "case-42")
		})

		Convey("Then a missing file is an error", func() {
			_, err := casefile.Load(filepath.Join(t.TempDir(), "missing.yaml"))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestReplay(t *testing.T) {
	_ = logger.Init(logger.WithWriter(io.Discard))

	Convey("Given a service that accepts the first submission of each record", t, func() {
		var (
			mu    sync.Mutex
			paths []string
			seen  = make(map[string]bool)
		)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			mu.Lock()
			defer mu.Unlock()
			paths = append(paths, r.URL.Path)
			if strings.Contains(string(body), "reject") {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			key := r.URL.Path + string(body)
			if seen[key] {
				w.WriteHeader(http.StatusOK)
				_ = json.NewEncoder(w).Encode(map[string]any{"status": "accepted", "duplicate": true})
				return
			}
			seen[key] = true
			w.WriteHeader(http.StatusAccepted)
		}))
		defer srv.Close()

		f := casefile.File{
			CaseID: "case 1",
			Events: []model.CaseEvent{{ID: "e1"}, {ID: "e1"}, {ID: "reject"}},
			Scales: []model.ScaleRecord{{ID: "s1", ScaleType: model.ScaleMMSE}},
		}

		Convey("When the file is replayed", func() {
			stats, err := casefile.NewReplayer(srv.URL+"/", casefile.WithWorkers(1)).Replay(context.Background(), f)

			Convey("Then every record is submitted and classified", func() {
				So(err, ShouldBeNil)
				So(stats, ShouldResemble, casefile.ReplayStats{Submitted: 4, Accepted: 2, Duplicate: 1, Failed: 1})
				So(paths, ShouldContain, "/cases/case 1/scales")
			})
		})

		Convey("When the file has no case id", func() {
			_, err := casefile.NewReplayer(srv.URL).Replay(context.Background(), casefile.File{})

			Convey("Then nothing is submitted", func() {
				So(errors.Is(err, casefile.ErrInvalidFile), ShouldBeTrue)
				So(paths, ShouldBeEmpty)
			})
		})
	})
}

func TestAnalyze(t *testing.T) {
	Convey("Given a decoded case file", t, func() {
		f, err := casefile.Decode(strings.NewReader(yamlCase))
		So(err, ShouldBeNil)
		now := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

		Convey("When it is analyzed with the default analyzer", func() {
			r := casefile.Analyze(nil, f, now)

			Convey("Then the report covers the file", func() {
				So(r.CaseID, ShouldEqual, "case-42")
				So(r.Summary.TotalEvents, ShouldEqual, 1)
				So(r.Stage.Stage, ShouldEqual, model.StageMiddle)
				So(len(r.Links), ShouldEqual, 1)
				So(len(r.Links[0].NearbyEvents), ShouldEqual, 1)
			})
		})
	})
}
