// Package archive persists fetched payload bodies before forwarding results.
package archive

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/crawlkit/fetchd/internal/fetch"
	"github.com/crawlkit/fetchd/internal/hash/sha256"
)

var invalidPathChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Sink wraps another sink and writes every Fetched body to a blob store,
// stamping the resulting URI onto the record before forwarding it.
type Sink struct {
	next   fetch.Sink
	store  fetch.BlobStore
	hasher *sha256.Hasher
	prefix string
}

// New builds an archiving sink. Prefix is prepended to every object path.
func New(next fetch.Sink, store fetch.BlobStore, prefix string) (*Sink, error) {
	if next == nil {
		return nil, fmt.Errorf("archive sink requires a downstream sink")
	}
	if store == nil {
		return nil, fmt.Errorf("archive sink requires a blob store")
	}
	return &Sink{
		next:   next,
		store:  store,
		hasher: sha256.New(),
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

// Deliver archives the payload body when present, then forwards the record.
// An archiving failure does not block the record itself.
func (s *Sink) Deliver(ctx context.Context, rec fetch.ResultRecord) error {
	if rec.Payload == nil || len(rec.Payload.Body) == 0 {
		return s.next.Deliver(ctx, rec)
	}
	uri, putErr := s.store.PutObject(ctx, s.objectPath(rec), rec.Payload.ContentType, rec.Payload.Body)
	if putErr != nil {
		putErr = fmt.Errorf("archive payload for %s: %w", rec.State.URL, putErr)
	} else {
		rec.PayloadURI = uri
	}
	return errors.Join(putErr, s.next.Deliver(ctx, rec))
}

func (s *Sink) objectPath(rec fetch.ResultRecord) string {
	host := "unknown"
	if u, err := url.Parse(rec.State.URL); err == nil && u.Hostname() != "" {
		host = invalidPathChars.ReplaceAllString(strings.ToLower(u.Hostname()), "_")
	}
	name := fmt.Sprintf("%s/%s.html", host, s.hasher.Hash(rec.Payload.Body))
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}
