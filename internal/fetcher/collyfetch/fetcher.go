// Package collyfetch implements fetch.Fetcher using gocolly.
package collyfetch

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/crawlkit/fetchd/internal/fetch"
)

// Config controls collector behavior.
type Config struct {
	UserAgent   string
	Timeout     time.Duration
	MaxBodySize int
}

// Fetcher executes single HTTP GETs through a Colly collector. It is safe for
// concurrent use; every Fetch clones the base collector.
type Fetcher struct {
	cfg  Config
	base *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.AllowURLRevisit = true
	if cfg.MaxBodySize > 0 {
		c.MaxBodySize = cfg.MaxBodySize
	}
	return &Fetcher{cfg: cfg, base: c}
}

// Fetch performs one GET. Recoverable transport failures come back as
// *fetch.Error; HTTP error statuses are a successful exchange and are
// reported through the payload's StatusCode.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (fetch.Payload, error) {
	collector := f.base.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.timeout(ctx))

	var (
		payload  fetch.Payload
		fetchErr error
	)
	start := time.Now()

	collector.OnResponse(func(r *colly.Response) {
		payload = buildPayload(r, start)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			// The exchange completed; the status code is the outcome.
			payload = buildPayload(r, start)
			return
		}
		fetchErr = classify(rawURL, err)
	})

	if err := collector.Visit(rawURL); err != nil && fetchErr == nil && payload.StatusCode == 0 {
		fetchErr = classify(rawURL, err)
	}
	collector.Wait()

	if fetchErr != nil {
		return fetch.Payload{}, fetchErr
	}
	if payload.StatusCode == 0 {
		return fetch.Payload{}, fetch.NewError(fetch.KindProtocol, rawURL, errors.New("no response received"))
	}
	return payload, nil
}

func (f *Fetcher) timeout(ctx context.Context) time.Duration {
	timeout := f.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		timeout = time.Millisecond
	}
	return timeout
}

func buildPayload(r *colly.Response, start time.Time) fetch.Payload {
	p := fetch.Payload{
		URL:        r.Request.URL.String(),
		StatusCode: r.StatusCode,
		Body:       append([]byte(nil), r.Body...),
		FetchedAt:  time.Now().UTC(),
		Elapsed:    time.Since(start),
	}
	if r.Headers != nil {
		p.Headers = r.Headers.Clone()
		p.ContentType = r.Headers.Get("Content-Type")
	}
	return p
}

// classify sorts transport errors into the recoverable kinds. Anything it
// does not recognize as fetch-level is returned as-is and treated as
// unrecoverable upstream.
func classify(rawURL string, err error) error {
	var dnsErr *net.DNSError
	var netErr net.Error
	var opErr *net.OpError
	var urlErr *url.Error

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fetch.NewError(fetch.KindTimeout, rawURL, err)
	case errors.Is(err, context.Canceled):
		return fetch.NewError(fetch.KindAborted, rawURL, err)
	case errors.As(err, &dnsErr):
		return fetch.NewError(fetch.KindDNS, rawURL, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return fetch.NewError(fetch.KindTimeout, rawURL, err)
	case isRedirectLoop(err):
		return fetch.NewError(fetch.KindRedirectLoop, rawURL, err)
	case errors.As(err, &opErr):
		return fetch.NewError(fetch.KindConnection, rawURL, err)
	case errors.As(err, &urlErr):
		return fetch.NewError(fetch.KindProtocol, rawURL, err)
	default:
		return err
	}
}

func isRedirectLoop(err error) bool {
	// net/http reports redirect exhaustion as "stopped after N redirects"
	// with no dedicated sentinel.
	return strings.Contains(err.Error(), "stopped after")
}
