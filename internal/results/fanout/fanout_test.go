package fanout

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crawlkit/fetchd/internal/fetch"
	"github.com/crawlkit/fetchd/internal/results/memory"
)

type brokenSink struct{ err error }

func (s brokenSink) Deliver(context.Context, fetch.ResultRecord) error { return s.err }

func TestDeliverReachesAllSinks(t *testing.T) {
	t.Parallel()

	first := memory.New()
	second := memory.New()
	sink := New(first, second)

	rec := fetch.ResultRecord{State: fetch.StateUpdate{RequestID: "req-1", Status: fetch.StatusFetched}}
	require.NoError(t, sink.Deliver(context.Background(), rec))

	assert.Equal(t, 1, first.Len())
	assert.Equal(t, 1, second.Len())
}

func TestDeliverContinuesPastFailingSink(t *testing.T) {
	t.Parallel()

	boom := errors.New("downstream unavailable")
	healthy := memory.New()
	sink := New(brokenSink{err: boom}, healthy)

	err := sink.Deliver(context.Background(), fetch.ResultRecord{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, healthy.Len())
}

func TestDeliverWithNoSinks(t *testing.T) {
	t.Parallel()

	require.NoError(t, New().Deliver(context.Background(), fetch.ResultRecord{}))
}
