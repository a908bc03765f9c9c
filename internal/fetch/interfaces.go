package fetch

import (
	"context"
	"time"
)

// Fetcher executes one HTTP fetch. Implementations must be safe for
// concurrent calls with different URLs. Recoverable failures are reported as
// *Error; any other error is treated as unrecoverable by the caller.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Payload, error)
}

// Mapper translates low-level fetch outcomes into the normalized status
// vocabulary. Both methods are pure.
type Mapper interface {
	MapStatus(httpStatus int) Status
	MapError(err *Error) Status
}

// Sink receives exactly one ResultRecord per request that entered the
// dispatcher. Implementations must tolerate concurrent delivery.
type Sink interface {
	Deliver(ctx context.Context, rec ResultRecord) error
}

// BlobStore writes raw payload bodies and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces request IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
