// Package fetch defines core types shared across subsystems.
package fetch

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Status is the normalized outcome vocabulary for completed requests.
type Status string

// Status values recorded in state updates.
const (
	StatusFetched           Status = "fetched"
	StatusSkippedCrawlDelay Status = "skipped_crawl_delay"
	StatusNotFound          Status = "http_not_found"
	StatusForbidden         Status = "http_forbidden"
	StatusUnauthorized      Status = "http_unauthorized"
	StatusGone              Status = "http_gone"
	StatusTooManyRequests   Status = "http_too_many_requests"
	StatusRedirectError     Status = "http_redirect_error"
	StatusClientError       Status = "http_client_error"
	StatusServerError       Status = "http_server_error"
	StatusTimeout           Status = "error_timeout"
	StatusDNSFailure        Status = "error_dns"
	StatusConnectionFailed  Status = "error_connection"
	StatusProtocolError     Status = "error_protocol"
	StatusRedirectLoop      Status = "error_redirect_loop"
	StatusAborted           Status = "error_aborted"
)

// Request captures one URL to fetch plus the politeness budget for its domain.
// Requests are immutable once created.
type Request struct {
	ID         string
	URL        string
	DomainKey  string
	CrawlDelay time.Duration
}

// NewRequest builds a Request, deriving the domain key from the URL.
func NewRequest(id, rawURL string, delay time.Duration) (Request, error) {
	key, err := DomainKey(rawURL)
	if err != nil {
		return Request{}, err
	}
	return Request{
		ID:         id,
		URL:        rawURL,
		DomainKey:  key,
		CrawlDelay: delay,
	}, nil
}

// DomainKey returns the scheme+authority portion of a URL, lowercased and
// without path or query. Requests sharing a key share one crawl-delay budget.
func DomainKey(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q has no scheme or host", rawURL)
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), nil
}

// Payload is the raw result returned by a Fetcher for a completed HTTP exchange.
type Payload struct {
	URL         string
	StatusCode  int
	Headers     http.Header
	Body        []byte
	ContentType string
	FetchedAt   time.Time
	Elapsed     time.Duration
}

// StateUpdate describes the outcome of one request for the crawl-state stream.
// Score and FetchedCount are reserved for future scoring and are always zero
// in this pipeline.
type StateUpdate struct {
	RequestID    string        `json:"request_id"`
	DomainKey    string        `json:"domain_key"`
	URL          string        `json:"url"`
	Status       Status        `json:"status"`
	Timestamp    time.Time     `json:"timestamp"`
	RetryAt      time.Time     `json:"retry_at,omitzero"`
	Elapsed      time.Duration `json:"elapsed,omitempty"`
	Score        float64       `json:"score"`
	FetchedCount int64         `json:"fetched_count"`
}

// ResultRecord pairs a state update with the fetched payload. Payload is nil
// for every outcome except StatusFetched. PayloadURI is set when an archiving
// sink has persisted the body to a blob store.
type ResultRecord struct {
	State      StateUpdate
	Payload    *Payload
	PayloadURI string
}

// FetchedRecord builds the record for a successful fetch.
func FetchedRecord(req Request, p Payload) ResultRecord {
	return ResultRecord{
		State: StateUpdate{
			RequestID: req.ID,
			DomainKey: req.DomainKey,
			URL:       req.URL,
			Status:    StatusFetched,
			Timestamp: p.FetchedAt,
			Elapsed:   p.Elapsed,
		},
		Payload: &p,
	}
}

// SkippedRecord builds the record for a request rejected by crawl-delay.
func SkippedRecord(req Request, now, retryAt time.Time) ResultRecord {
	return ResultRecord{
		State: StateUpdate{
			RequestID: req.ID,
			DomainKey: req.DomainKey,
			URL:       req.URL,
			Status:    StatusSkippedCrawlDelay,
			Timestamp: now,
			RetryAt:   retryAt,
		},
	}
}

// FailedRecord builds the record for a mapped fetch failure.
func FailedRecord(req Request, status Status, now time.Time) ResultRecord {
	return ResultRecord{
		State: StateUpdate{
			RequestID: req.ID,
			DomainKey: req.DomainKey,
			URL:       req.URL,
			Status:    status,
			Timestamp: now,
		},
	}
}
