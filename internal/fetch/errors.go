package fetch

import "fmt"

// ErrorKind classifies recoverable fetch failures. Anything a Fetcher returns
// that is not an *Error is treated as unrecoverable by the dispatcher.
type ErrorKind int

// Recoverable failure kinds a Fetcher may report.
const (
	KindTimeout ErrorKind = iota
	KindDNS
	KindConnection
	KindProtocol
	KindRedirectLoop
	KindAborted
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindDNS:
		return "dns"
	case KindConnection:
		return "connection"
	case KindProtocol:
		return "protocol"
	case KindRedirectLoop:
		return "redirect_loop"
	case KindAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Error is a recoverable, fetch-level failure: the attempt was made but the
// exchange could not complete. It always maps to a failure status.
type Error struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s (%s): %v", e.URL, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps a cause as a recoverable fetch failure.
func NewError(kind ErrorKind, url string, err error) *Error {
	return &Error{Kind: kind, URL: url, Err: err}
}
