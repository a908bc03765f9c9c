// Package dispatcher admits, throttles and executes fetch requests.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/crawlkit/fetchd/internal/counter"
	"github.com/crawlkit/fetchd/internal/fetch"
	"github.com/crawlkit/fetchd/internal/pool"
	"github.com/crawlkit/fetchd/internal/throttle"
)

// Config controls Dispatcher behavior.
type Config struct {
	// WindowSeconds is the length of the throughput window. Defaults to 30.
	WindowSeconds int
	// FetchTimeout bounds each fetch attempt. Defaults to 15s.
	FetchTimeout time.Duration
}

// Dispatcher routes each incoming request through admission control, executes
// admitted fetches on the worker pool and completes every request with
// exactly one ResultRecord delivered to the sink.
type Dispatcher struct {
	domains *throttle.DomainMap
	counts  *counter.TimedCounter
	pool    *pool.Pool
	fetcher fetch.Fetcher
	mapper  fetch.Mapper
	sink    fetch.Sink
	clock   fetch.Clock
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Dispatcher.
func New(
	workers *pool.Pool,
	fetcher fetch.Fetcher,
	mapper fetch.Mapper,
	sink fetch.Sink,
	clock fetch.Clock,
	cfg Config,
	logger *zap.Logger,
) (*Dispatcher, error) {
	if workers == nil || fetcher == nil || mapper == nil || sink == nil || clock == nil {
		return nil, errors.New("dispatcher requires pool, fetcher, mapper, sink and clock")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WindowSeconds <= 0 {
		cfg.WindowSeconds = 30
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 15 * time.Second
	}
	counts, err := counter.New(cfg.WindowSeconds, clock.Now())
	if err != nil {
		return nil, fmt.Errorf("create fetch counter: %w", err)
	}
	return &Dispatcher{
		domains: throttle.NewDomainMap(),
		counts:  counts,
		pool:    workers,
		fetcher: fetcher,
		mapper:  mapper,
		sink:    sink,
		clock:   clock,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// Dispatch admits or skips one request. Skips complete synchronously; admitted
// requests are handed to the worker pool and this call returns immediately.
func (d *Dispatcher) Dispatch(ctx context.Context, req fetch.Request) {
	now := d.clock.Now()
	decision := d.domains.CheckAndReserve(req.DomainKey, now, req.CrawlDelay)
	if !decision.Admitted {
		d.logger.Debug("skipping (crawl-delay)",
			zap.String("url", req.URL),
			zap.Time("retry_at", decision.RetryAt),
		)
		d.deliver(ctx, fetch.SkippedRecord(req, now, decision.RetryAt))
		return
	}

	d.logger.Debug("queueing for fetch", zap.String("url", req.URL))
	d.pool.Submit(func(taskCtx context.Context) error {
		return d.execute(taskCtx, req)
	})
}

// Run drains the pool's failure channel, surfacing unrecoverable task errors
// to the operator. It blocks until the context finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-d.pool.Failures():
			d.logger.Error("fetch task terminated abnormally", zap.Error(err))
		}
	}
}

// ActiveFetches reports the number of fetches currently executing.
func (d *Dispatcher) ActiveFetches() int {
	return d.pool.ActiveCount()
}

// QueuedFetches reports the number of admitted fetches not yet started.
func (d *Dispatcher) QueuedFetches() int {
	return d.pool.QueuedCount()
}

// CurrentRate reports completed fetch attempts per second over the window.
func (d *Dispatcher) CurrentRate() float64 {
	return float64(d.counts.Total()) / float64(d.counts.Window())
}

// TrackedDomains reports how many distinct domains the throttle map holds.
func (d *Dispatcher) TrackedDomains() int {
	return d.domains.Len()
}

func (d *Dispatcher) execute(ctx context.Context, req fetch.Request) error {
	d.logger.Debug("fetching", zap.String("url", req.URL))

	fetchCtx, cancel := context.WithTimeout(ctx, d.cfg.FetchTimeout)
	defer cancel()

	payload, err := d.fetcher.Fetch(fetchCtx, req.URL)
	if err != nil {
		var fetchErr *fetch.Error
		if !errors.As(err, &fetchErr) {
			// Not a fetch-level failure: a defect or environment problem.
			return fmt.Errorf("fetch %s: %w", req.URL, err)
		}
		d.logger.Warn("fetch failed",
			zap.String("url", req.URL),
			zap.String("kind", fetchErr.Kind.String()),
			zap.Error(err),
		)
		d.deliver(ctx, fetch.FailedRecord(req, d.mapper.MapError(fetchErr), d.clock.Now()))
		return nil
	}

	// A returned payload is a completed attempt, success or not, and counts
	// toward throughput.
	if err := d.counts.Increment(d.clock.Now()); err != nil {
		return fmt.Errorf("count fetch of %s: %w", req.URL, err)
	}

	if payload.StatusCode != http.StatusOK {
		msg := "fetch returned non-200"
		fields := []zap.Field{
			zap.String("url", req.URL),
			zap.Int("status_code", payload.StatusCode),
		}
		if payload.StatusCode == http.StatusNotFound {
			d.logger.Debug(msg, fields...)
		} else {
			d.logger.Warn(msg, fields...)
		}
		d.deliver(ctx, fetch.FailedRecord(req, d.mapper.MapStatus(payload.StatusCode), d.clock.Now()))
		return nil
	}

	d.logger.Debug("fetched",
		zap.String("url", req.URL),
		zap.Int("bytes", len(payload.Body)),
		zap.Duration("elapsed", payload.Elapsed),
	)
	d.deliver(ctx, fetch.FetchedRecord(req, payload))
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, rec fetch.ResultRecord) {
	if err := d.sink.Deliver(ctx, rec); err != nil {
		d.logger.Error("result delivery failed",
			zap.String("url", rec.State.URL),
			zap.String("status", string(rec.State.Status)),
			zap.Error(err),
		)
	}
}
