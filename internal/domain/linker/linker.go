// Package linker cross-references scale measurements with the events recorded
// around them.
package linker

import (
	"time"

	"github.com/okian/caretrack/internal/domain/model"
)

// DefaultWindowDays is the distance on either side of a scale date.
const DefaultWindowDays = 7

// ScaleLink lists the events recorded near one scale measurement.
type ScaleLink struct {
	ScaleID      string           `json:"scale_id"`
	ScaleType    model.ScaleType  `json:"scale_type"`
	Date         string           `json:"date"`
	NearbyEvents []model.EventRef `json:"nearby_events"`
}

// Link returns one entry per scale record with a valid date, ascending by
// date. An event is nearby when |timestamp - date| <= windowDays days; the
// bound is inclusive. A negative windowDays selects DefaultWindowDays.
func Link(scales []model.ScaleRecord, events []model.CaseEvent, windowDays int) []ScaleLink {
	if windowDays < 0 {
		windowDays = DefaultWindowDays
	}
	span := time.Duration(windowDays) * model.Day
	timed := model.SortEvents(events)

	dated := model.SortDated(scales)
	out := make([]ScaleLink, 0, len(dated))
	for _, s := range dated {
		from, to := s.Day.Add(-span), s.Day.Add(span)
		nearby := []model.EventRef{}
		for _, te := range timed {
			if te.At.Before(from) {
				continue
			}
			if te.At.After(to) {
				break
			}
			nearby = append(nearby, te.Event.Ref())
		}
		out = append(out, ScaleLink{
			ScaleID:      s.Record.ID,
			ScaleType:    s.Record.Type(),
			Date:         model.FormatDay(s.Day),
			NearbyEvents: nearby,
		})
	}
	return out
}
