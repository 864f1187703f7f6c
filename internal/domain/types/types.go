// Package types contains the request and response shapes shared by the
// service and its HTTP layer.
package types

import "time"

// Ack statuses.
const (
	StatusAccepted  = "accepted"
	StatusDuplicate = "duplicate"
)

// Ack acknowledges a submitted record. Processing is asynchronous; an
// accepted record becomes visible to analyses once a worker stores it.
type Ack struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
	ID        string `json:"id,omitempty"`
}

// Accepted returns the ack for a newly queued record.
func Accepted(id string) Ack {
	return Ack{Status: StatusAccepted, ID: id}
}

// Duplicated returns the ack for an exact resubmission.
func Duplicated(id string) Ack {
	return Ack{Status: StatusDuplicate, Duplicate: true, ID: id}
}

// Query parameterises an analysis request.
type Query struct {
	// WindowDays overrides the default trailing window when positive.
	WindowDays int
	// Now is the reference time. Analyses never read the clock themselves.
	Now time.Time
}

// Stats describes the service for monitoring. Runtime is nil until the
// service is started.
type Stats struct {
	Started       bool          `json:"started"`
	WorkerCount   int           `json:"workerCount"`
	QueueSize     int           `json:"queueSize"`
	DedupeSize    int           `json:"dedupeSize"`
	MaxWindowDays int           `json:"maxWindowDays"`
	Runtime       *RuntimeStats `json:"runtime,omitempty"`
}

// RuntimeStats is the live part of Stats. Store totals come from the last
// published snapshot and may lag writes.
type RuntimeStats struct {
	QueueLength   int       `json:"queueLength"`
	ActiveWorkers int       `json:"activeWorkers"`
	Fingerprints  int64     `json:"fingerprints"`
	Cases         int       `json:"cases"`
	Events        int       `json:"events"`
	Scales        int       `json:"scales"`
	SnapshotAt    time.Time `json:"snapshotAt"`
}
