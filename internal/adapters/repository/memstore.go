package repository

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/caretrack/internal/domain/model"
	"github.com/okian/caretrack/pkg/metrics"
)

const (
	defaultSnapshotInterval      = time.Second
	defaultMetricsUpdateInterval = 5 * time.Second
)

// caseRecords keeps records in insertion order with an id index for upserts.
type caseRecords struct {
	events     []model.CaseEvent
	eventIndex map[string]int
	scales     []model.ScaleRecord
	scaleIndex map[string]int
	revision   uint64
}

func newCaseRecords() *caseRecords {
	return &caseRecords{
		eventIndex: make(map[string]int),
		scaleIndex: make(map[string]int),
	}
}

// CaseCounts is the per-case part of a Snapshot.
type CaseCounts struct {
	Events   int    `json:"events"`
	Scales   int    `json:"scales"`
	Revision uint64 `json:"revision"`
}

// Snapshot is an immutable view of store sizes, rebuilt periodically.
type Snapshot struct {
	Cases   map[string]CaseCounts
	Totals  Counts
	TakenAt time.Time
}

// MemoryStore is an in-memory Store. Writes take a single lock; size
// queries for stats read the periodically published Snapshot.
type MemoryStore struct {
	mu    sync.RWMutex
	cases map[string]*caseRecords

	snapshotInterval      time.Duration
	metricsUpdateInterval time.Duration

	snapshot atomic.Pointer[Snapshot]

	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewMemoryStore constructs a store and starts its background goroutines.
// Call Close to stop them.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		cases:                 make(map[string]*caseRecords),
		snapshotInterval:      defaultSnapshotInterval,
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.publishSnapshot()
	s.startTicker(ctx, s.snapshotInterval, s.publishSnapshot)
	s.startTicker(ctx, s.metricsUpdateInterval, s.updateMetrics)

	return s
}

func (s *MemoryStore) startTicker(ctx context.Context, every time.Duration, fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

// Close stops the background goroutines.
func (s *MemoryStore) Close() error {
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	s.wg.Wait()
	return nil
}

// UpsertEvent implements Store.
func (s *MemoryStore) UpsertEvent(ctx context.Context, caseID string, e model.CaseEvent) (string, bool, error) {
	start := time.Now()
	defer recordUpdateLatency(start)

	caseID, err := normalizeCaseID(caseID)
	if err != nil {
		return "", false, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.caseFor(caseID)
	c.revision++
	if i, ok := c.eventIndex[e.ID]; ok {
		c.events[i] = e
		return e.ID, false, nil
	}
	c.eventIndex[e.ID] = len(c.events)
	c.events = append(c.events, e)
	return e.ID, true, nil
}

// UpsertScale implements Store.
func (s *MemoryStore) UpsertScale(ctx context.Context, caseID string, r model.ScaleRecord) (string, bool, error) {
	return s.upsertScale(caseID, r, false)
}

// RetainScale implements Store.
func (s *MemoryStore) RetainScale(ctx context.Context, caseID string, r model.ScaleRecord) (string, bool, error) {
	return s.upsertScale(caseID, r, true)
}

func (s *MemoryStore) upsertScale(caseID string, r model.ScaleRecord, retain bool) (string, bool, error) {
	start := time.Now()
	defer recordUpdateLatency(start)

	caseID, err := normalizeCaseID(caseID)
	if err != nil {
		return "", false, err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.caseFor(caseID)
	c.revision++
	if i, ok := c.scaleIndex[r.ID]; ok {
		if retain && r.TotalScore == nil {
			r.TotalScore = c.scales[i].TotalScore
		}
		c.scales[i] = r
		return r.ID, false, nil
	}
	c.scaleIndex[r.ID] = len(c.scales)
	c.scales = append(c.scales, r)
	return r.ID, true, nil
}

// Case implements Store.
func (s *MemoryStore) Case(ctx context.Context, caseID string) (Case, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	caseID, err := normalizeCaseID(caseID)
	if err != nil {
		return Case{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cases[caseID]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Case{}, fmt.Errorf("%w: %s", ErrNotFound, caseID)
	}
	return Case{
		ID:       caseID,
		Events:   slices.Clone(c.events),
		Scales:   slices.Clone(c.scales),
		Revision: c.revision,
	}, nil
}

// Cases implements Store.
func (s *MemoryStore) Cases(ctx context.Context) []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.cases))
	for id := range s.cases {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	slices.Sort(ids)
	return ids
}

// Counts implements Store.
func (s *MemoryStore) Counts(ctx context.Context) Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countsLocked()
}

// Snapshot returns the last published snapshot. It may lag writes by up to
// the snapshot interval.
func (s *MemoryStore) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

// caseFor returns the records of a case, creating them. Must be called with
// s.mu held for writing.
func (s *MemoryStore) caseFor(caseID string) *caseRecords {
	c, ok := s.cases[caseID]
	if !ok {
		c = newCaseRecords()
		s.cases[caseID] = c
	}
	return c
}

func (s *MemoryStore) countsLocked() Counts {
	out := Counts{Cases: len(s.cases)}
	for _, c := range s.cases {
		out.Events += len(c.events)
		out.Scales += len(c.scales)
	}
	return out
}

func (s *MemoryStore) publishSnapshot() {
	start := time.Now()

	s.mu.RLock()
	snap := &Snapshot{
		Cases:   make(map[string]CaseCounts, len(s.cases)),
		Totals:  s.countsLocked(),
		TakenAt: start,
	}
	for id, c := range s.cases {
		snap.Cases[id] = CaseCounts{Events: len(c.events), Scales: len(c.scales), Revision: c.revision}
	}
	s.mu.RUnlock()

	s.snapshot.Store(snap)
	metrics.RecordRepositorySnapshot(float64(time.Since(start).Milliseconds()), time.Now().Unix())
}

func (s *MemoryStore) updateMetrics() {
	c := s.Counts(context.Background())
	metrics.UpdateRepositorySizes(c.Cases, c.Events, c.Scales)
}

func normalizeCaseID(caseID string) (string, error) {
	id := strings.TrimSpace(caseID)
	if id == "" {
		metrics.RecordErrorByComponent("repository", "invalid_case")
		return "", ErrInvalidCase
	}
	return id, nil
}

func recordUpdateLatency(start time.Time) {
	metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
}
