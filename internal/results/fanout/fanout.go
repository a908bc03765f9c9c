// Package fanout tees result records to several sinks.
package fanout

import (
	"context"
	"errors"

	"github.com/crawlkit/fetchd/internal/fetch"
)

// Sink delivers each record to every wrapped sink. A failing sink does not
// prevent delivery to the others.
type Sink struct {
	sinks []fetch.Sink
}

// New builds a fan-out over the given sinks.
func New(sinks ...fetch.Sink) *Sink {
	return &Sink{sinks: sinks}
}

// Deliver forwards the record to all sinks and joins any errors.
func (s *Sink) Deliver(ctx context.Context, rec fetch.ResultRecord) error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Deliver(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
