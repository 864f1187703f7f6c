package casefile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/caretrack/pkg/logger"
)

const (
	defaultReplayWorkers = 4
	defaultReplayTimeout = 10 * time.Second
)

// ReplayStats counts the outcome of a replay.
type ReplayStats struct {
	Submitted int64 `json:"submitted"`
	Accepted  int64 `json:"accepted"`
	Duplicate int64 `json:"duplicate"`
	Failed    int64 `json:"failed"`
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// ReplayOption applies a configuration option to a Replayer.
type ReplayOption func(*Replayer)

// WithWorkers sets the number of concurrent submitters.
func WithWorkers(n int) ReplayOption {
	return func(r *Replayer) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithHTTPClient sets the client used for submissions.
func WithHTTPClient(c *http.Client) ReplayOption {
	return func(r *Replayer) {
		if c != nil {
			r.client = c
		}
	}
}

// Replayer posts the records of a case file to a running service.
type Replayer struct {
	baseURL string
	client  *http.Client
	workers int
	logger  logger.Logger
}

// NewReplayer creates a replayer for the service at baseURL.
func NewReplayer(baseURL string, opts ...ReplayOption) *Replayer {
	r := &Replayer{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultReplayTimeout},
		workers: defaultReplayWorkers,
		logger:  logger.Get().Named("replay"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Replay submits every event and scale of f. Individual rejections are
// counted, not returned; the error reports only a cancelled context or a
// file without a case id.
func (r *Replayer) Replay(ctx context.Context, f File) (ReplayStats, error) {
	if f.CaseID == "" {
		return ReplayStats{}, fmt.Errorf("%w: missing case_id", ErrInvalidFile)
	}
	base := r.baseURL + "/cases/" + url.PathEscape(f.CaseID)

	var stats ReplayStats
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	submit := func(endpoint string, record any) {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			atomic.AddInt64(&stats.Submitted, 1)
			switch r.post(gctx, endpoint, record) {
			case outcomeAccepted:
				atomic.AddInt64(&stats.Accepted, 1)
			case outcomeDuplicate:
				atomic.AddInt64(&stats.Duplicate, 1)
			default:
				atomic.AddInt64(&stats.Failed, 1)
			}
			return nil
		})
	}
	for _, e := range f.Events {
		submit(base+"/events", e)
	}
	for _, s := range f.Scales {
		submit(base+"/scales", s)
	}

	err := g.Wait()
	r.logger.Info(ctx, "replay finished",
		logger.String("case_id", f.CaseID),
		logger.Any("submitted", stats.Submitted),
		logger.Any("accepted", stats.Accepted),
		logger.Any("duplicate", stats.Duplicate),
		logger.Any("failed", stats.Failed),
	)
	return stats, err
}

type outcome int

const (
	outcomeFailed outcome = iota
	outcomeAccepted
	outcomeDuplicate
)

func (r *Replayer) post(ctx context.Context, endpoint string, record any) outcome {
	body, err := json.Marshal(record)
	if err != nil {
		return outcomeFailed
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return outcomeFailed
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warn(ctx, "submission failed", logger.String("endpoint", endpoint), logger.Error(err))
		return outcomeFailed
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)

	switch resp.StatusCode {
	case http.StatusAccepted:
		return outcomeAccepted
	case http.StatusOK:
		var ack ackResponse
		if json.Unmarshal(data, &ack) == nil && ack.Duplicate {
			return outcomeDuplicate
		}
		return outcomeAccepted
	default:
		r.logger.Warn(ctx, "submission rejected",
			logger.String("endpoint", endpoint),
			logger.Int("status", resp.StatusCode),
		)
		return outcomeFailed
	}
}
