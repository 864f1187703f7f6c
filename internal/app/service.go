// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	eventqueue "github.com/okian/caretrack/internal/adapters/mq/queue"
	workerpool "github.com/okian/caretrack/internal/adapters/mq/worker"
	repository "github.com/okian/caretrack/internal/adapters/repository"
	"github.com/okian/caretrack/internal/domain/analysis"
	"github.com/okian/caretrack/internal/domain/dedupe"
	"github.com/okian/caretrack/internal/domain/linker"
	"github.com/okian/caretrack/internal/domain/model"
	"github.com/okian/caretrack/internal/domain/scoring"
	"github.com/okian/caretrack/internal/domain/summary"
	"github.com/okian/caretrack/internal/domain/types"
	"github.com/okian/caretrack/pkg/logger"
	"github.com/okian/caretrack/pkg/metrics"
)

// Analysis kinds, used as metric labels and singleflight key prefixes.
const (
	KindSummary  = "summary"
	KindStage    = "stage"
	KindTrends   = "trends"
	KindLinks    = "links"
	KindSymptoms = "symptoms"
	KindReport   = "report"
)

const (
	defaultMaxWindowDays = 3650
	stopTimeout          = 30 * time.Second
)

// Service implements the API dependencies for case ingestion and analysis.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    *repository.MemoryStore
	deduper  dedupe.Deduper
	queue    *eventqueue.InMemoryQueue
	pool     *workerpool.Pool
	analyzer *analysis.Analyzer
	group    singleflight.Group

	// Configuration
	workerCount      int
	queueSize        int
	dedupeSize       int
	maxWindowDays    int
	snapshotInterval time.Duration
	analyzerOpts     []analysis.Option
	clock            func() time.Time

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the submission queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the fingerprint cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithMaxWindowDays caps the window of analysis queries.
func WithMaxWindowDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.maxWindowDays = days
		}
	}
}

// WithSnapshotInterval sets how often store statistics are refreshed.
func WithSnapshotInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.snapshotInterval = interval
		}
	}
}

// WithAnalyzerOptions configures the analysis engine.
func WithAnalyzerOptions(opts ...analysis.Option) Option {
	return func(s *Service) {
		s.analyzerOpts = append(s.analyzerOpts, opts...)
	}
}

// WithClock sets the source of the reference time for queries that do not
// carry one.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:   runtime.NumCPU() * 2,
		queueSize:     10_000,
		dedupeSize:    50_000,
		maxWindowDays: defaultMaxWindowDays,
		clock:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.analyzer = analysis.New(append([]analysis.Option{
		analysis.WithScorer(scoring.NewPayloadScorer()),
	}, s.analyzerOpts...)...)
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting caretrack service...")

	var storeOpts []repository.Option
	if s.snapshotInterval > 0 {
		storeOpts = append(storeOpts, repository.WithSnapshotInterval(s.snapshotInterval))
	}
	s.store = repository.NewMemoryStore(ctx, storeOpts...)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, scoring.NewPayloadScorer(), s.store)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "caretrack service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains queued submissions and shuts the components down.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping caretrack service...")

	shutdownCtx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()

	err := s.pool.Shutdown(shutdownCtx)
	if cerr := s.store.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}

	s.started = false
	s.logger.Info(ctx, "caretrack service stopped")
	return err
}

// IngestEvent queues an event for storage. An exact resubmission of an
// already queued event is acknowledged as a duplicate.
func (s *Service) IngestEvent(ctx context.Context, caseID string, e model.CaseEvent) (types.Ack, error) {
	return s.ingest(ctx, eventqueue.Submission{CaseID: caseID, Kind: eventqueue.KindEvent, Event: e})
}

// IngestScale queues a scale record for scoring and storage.
func (s *Service) IngestScale(ctx context.Context, caseID string, r model.ScaleRecord) (types.Ack, error) {
	return s.ingest(ctx, eventqueue.Submission{CaseID: caseID, Kind: eventqueue.KindScale, Scale: r})
}

func (s *Service) ingest(ctx context.Context, sub eventqueue.Submission) (types.Ack, error) { //nolint:gocritic // hugeParam: Submission travels by value
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return types.Ack{}, types.ErrUnavailable
	}

	sub.CaseID = strings.TrimSpace(sub.CaseID)
	if err := sub.Validate(); err != nil {
		return types.Ack{}, fmt.Errorf("%w: %w", types.ErrInvalidInput, err)
	}
	kind := string(sub.Kind)

	var record any = sub.Event
	if sub.Kind == eventqueue.KindScale {
		record = sub.Scale
	}
	body, err := json.Marshal(record)
	if err != nil {
		return types.Ack{}, fmt.Errorf("%w: %w", types.ErrInvalidInput, err)
	}

	key := dedupe.Fingerprint(sub.CaseID, kind, sub.RecordID(), body)
	if s.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordSubmissionDuplicate(kind)
		s.logger.Debug(ctx, "duplicate submission",
			logger.String("case_id", sub.CaseID),
			logger.String("kind", kind),
			logger.String("id", sub.RecordID()),
		)
		return types.Duplicated(sub.RecordID()), nil
	}

	if sub.RecordID() == "" {
		id := uuid.NewString()
		if sub.Kind == eventqueue.KindScale {
			sub.Scale.ID = id
		} else {
			sub.Event.ID = id
		}
	}
	sub.Fingerprint = key

	if !s.queue.Enqueue(ctx, sub) {
		s.deduper.Unrecord(ctx, key)
		return types.Ack{}, types.ErrBackpressure
	}
	metrics.RecordSubmission(kind)
	return types.Accepted(sub.RecordID()), nil
}

// Summary builds the clinical summary of a case.
func (s *Service) Summary(ctx context.Context, caseID string, q types.Query) (summary.ClinicalSummary, error) {
	return analyze(ctx, s, KindSummary, caseID, q, func(c repository.Case, q types.Query) summary.ClinicalSummary {
		return s.analyzer.Summary(c.Events, q.WindowDays, q.Now)
	})
}

// Stage infers the disease stage of a case.
func (s *Service) Stage(ctx context.Context, caseID string, q types.Query) (model.StageResult, error) {
	return analyze(ctx, s, KindStage, caseID, q, func(c repository.Case, q types.Query) model.StageResult {
		res := s.analyzer.Stage(c.Events, c.Scales, q.WindowDays, q.Now)
		metrics.RecordStageRule(res.Meta.Rule, string(res.Stage))
		return res
	})
}

// Trends returns the MMSE and CDR trajectories of a case. The window does
// not apply; trends cover the whole history.
func (s *Service) Trends(ctx context.Context, caseID string) (analysis.TrendReport, error) {
	return analyze(ctx, s, KindTrends, caseID, types.Query{}, func(c repository.Case, _ types.Query) analysis.TrendReport {
		return s.analyzer.Trends(c.Scales)
	})
}

// Links cross-references the scales of a case with nearby events. The
// window is the distance on either side of each scale date.
func (s *Service) Links(ctx context.Context, caseID string, q types.Query) ([]linker.ScaleLink, error) {
	return analyze(ctx, s, KindLinks, caseID, q, func(c repository.Case, q types.Query) []linker.ScaleLink {
		return s.analyzer.Links(c.Scales, c.Events, q.WindowDays)
	})
}

// Symptoms returns the symptom distributions of a case.
func (s *Service) Symptoms(ctx context.Context, caseID string, q types.Query) (analysis.SymptomReport, error) {
	return analyze(ctx, s, KindSymptoms, caseID, q, func(c repository.Case, q types.Query) analysis.SymptomReport {
		return s.analyzer.Symptoms(c.Events, q.WindowDays, q.Now)
	})
}

// Report runs every analysis with its default window.
func (s *Service) Report(ctx context.Context, caseID string, q types.Query) (analysis.Report, error) {
	q.WindowDays = 0
	return analyze(ctx, s, KindReport, caseID, q, func(c repository.Case, q types.Query) analysis.Report {
		return s.analyzer.Analyze(c.ID, c.Events, c.Scales, q.Now)
	})
}

// Cases lists the known case ids.
func (s *Service) Cases(ctx context.Context) ([]string, error) {
	st, err := s.readStore()
	if err != nil {
		return nil, err
	}
	return st.Cases(ctx), nil
}

// analyze loads a case and runs fn once per distinct (kind, case revision,
// window, now). Concurrent identical requests share one computation and
// therefore one result value; callers must treat it as read-only.
func analyze[T any](ctx context.Context, s *Service, kind, caseID string, q types.Query, fn func(repository.Case, types.Query) T) (T, error) {
	var zero T

	q, err := s.normalize(q)
	if err != nil {
		return zero, err
	}
	st, err := s.readStore()
	if err != nil {
		return zero, err
	}

	c, err := st.Case(ctx, caseID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return zero, fmt.Errorf("%w: %w", types.ErrNotFound, err)
	case errors.Is(err, repository.ErrInvalidCase):
		return zero, fmt.Errorf("%w: %w", types.ErrInvalidInput, err)
	case err != nil:
		return zero, err
	}

	start := time.Now()
	key := strings.Join([]string{
		kind, c.ID,
		strconv.FormatUint(c.Revision, 10),
		strconv.Itoa(q.WindowDays),
		strconv.FormatInt(q.Now.UnixNano(), 10),
	}, "\x00")
	v, _, shared := s.group.Do(key, func() (any, error) {
		return fn(c, q), nil
	})
	if shared {
		metrics.RecordAnalysisShared(kind)
	}
	metrics.RecordAnalysis(kind, float64(time.Since(start).Milliseconds()))
	return v.(T), nil
}

func (s *Service) normalize(q types.Query) (types.Query, error) {
	if q.WindowDays < 0 || q.WindowDays > s.maxWindowDays {
		return q, fmt.Errorf("%w: window must be between 1 and %d days", types.ErrInvalidInput, s.maxWindowDays)
	}
	if q.Now.IsZero() {
		q.Now = s.clock()
	}
	return q, nil
}

func (s *Service) readStore() (*repository.MemoryStore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, types.ErrUnavailable
	}
	return s.store, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() types.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := types.Stats{
		Started:       s.started,
		WorkerCount:   s.workerCount,
		QueueSize:     s.queueSize,
		DedupeSize:    s.dedupeSize,
		MaxWindowDays: s.maxWindowDays,
	}
	if !s.started {
		return stats
	}

	rt := &types.RuntimeStats{
		QueueLength:   s.queue.Len(context.Background()),
		ActiveWorkers: s.pool.Active(),
		Fingerprints:  s.deduper.Size(),
	}
	if snap := s.store.Snapshot(); snap != nil {
		rt.Cases = snap.Totals.Cases
		rt.Events = snap.Totals.Events
		rt.Scales = snap.Totals.Scales
		rt.SnapshotAt = snap.TakenAt.UTC()
	}
	stats.Runtime = rt

	metrics.UpdateQueueSize(rt.QueueLength)
	return stats
}
