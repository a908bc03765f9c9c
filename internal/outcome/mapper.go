// Package outcome maps HTTP status codes and fetch errors to result statuses.
package outcome

import (
	"net/http"

	"github.com/crawlkit/fetchd/internal/fetch"
)

// Mapper implements fetch.Mapper over the full HTTP status range and the
// known recoverable failure kinds.
type Mapper struct{}

// New returns a Mapper.
func New() Mapper {
	return Mapper{}
}

// MapStatus translates an HTTP status code into a result status. 200 is the
// only success; everything else maps to a failure bucket.
func (Mapper) MapStatus(httpStatus int) fetch.Status {
	switch httpStatus {
	case http.StatusOK:
		return fetch.StatusFetched
	case http.StatusNotFound:
		return fetch.StatusNotFound
	case http.StatusForbidden:
		return fetch.StatusForbidden
	case http.StatusUnauthorized:
		return fetch.StatusUnauthorized
	case http.StatusGone:
		return fetch.StatusGone
	case http.StatusTooManyRequests:
		return fetch.StatusTooManyRequests
	}
	switch {
	case httpStatus >= 300 && httpStatus < 400:
		return fetch.StatusRedirectError
	case httpStatus >= 400 && httpStatus < 500:
		return fetch.StatusClientError
	case httpStatus >= 500:
		return fetch.StatusServerError
	default:
		return fetch.StatusProtocolError
	}
}

// MapError translates a recoverable fetch failure into a result status.
func (Mapper) MapError(err *fetch.Error) fetch.Status {
	if err == nil {
		return fetch.StatusProtocolError
	}
	switch err.Kind {
	case fetch.KindTimeout:
		return fetch.StatusTimeout
	case fetch.KindDNS:
		return fetch.StatusDNSFailure
	case fetch.KindConnection:
		return fetch.StatusConnectionFailed
	case fetch.KindRedirectLoop:
		return fetch.StatusRedirectLoop
	case fetch.KindAborted:
		return fetch.StatusAborted
	default:
		return fetch.StatusProtocolError
	}
}
