// Package repository defines the case store interface and errors.
package repository

import (
	"context"

	"github.com/okian/caretrack/internal/domain/model"
)

// Case is a consistent copy of everything stored for one case.
type Case struct {
	ID       string
	Events   []model.CaseEvent
	Scales   []model.ScaleRecord
	Revision uint64
}

// Counts totals the stored records.
type Counts struct {
	Cases  int `json:"cases"`
	Events int `json:"events"`
	Scales int `json:"scales"`
}

// Store provides read/write access to case records.
type Store interface {
	// UpsertEvent stores an event, replacing any record with the same id.
	// Events without an id get a generated one. Returns the stored id and
	// whether the record is new.
	UpsertEvent(ctx context.Context, caseID string, e model.CaseEvent) (string, bool, error)

	// UpsertScale stores a scale record with the same semantics as UpsertEvent.
	UpsertScale(ctx context.Context, caseID string, r model.ScaleRecord) (string, bool, error)

	// RetainScale is UpsertScale for a record whose payload could not be
	// scored. A record without a total keeps the total stored under its id.
	RetainScale(ctx context.Context, caseID string, r model.ScaleRecord) (string, bool, error)

	// Case returns a copy of the case records.
	// Returns ErrNotFound if the case is unknown.
	Case(ctx context.Context, caseID string) (Case, error)

	// Cases returns the known case ids in ascending order.
	Cases(ctx context.Context) []string

	// Counts returns the current record totals.
	Counts(ctx context.Context) Counts
}
