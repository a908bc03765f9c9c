package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crawlkit/fetchd/internal/fetch"
)

func TestNewWithPoolValidatesTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, "fetch_results; DROP TABLE users")
	require.Error(t, err)

	store, err := NewWithPool(mock, "")
	require.NoError(t, err)
	assert.Equal(t, "fetch_results", store.table)
}

func TestDeliverInsertsFetchedRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "fetch_results")
	require.NoError(t, err)

	fetchedAt := time.Date(2025, time.March, 4, 12, 0, 0, 0, time.UTC)
	rec := fetch.ResultRecord{
		State: fetch.StateUpdate{
			RequestID: "req-1",
			DomainKey: "http://example.com",
			URL:       "http://example.com/a",
			Status:    fetch.StatusFetched,
			Timestamp: fetchedAt,
			Elapsed:   120 * time.Millisecond,
		},
		PayloadURI: "memory://pages/example.com/abc.html",
	}

	mock.ExpectExec("INSERT INTO fetch_results").
		WithArgs(
			"req-1",
			"http://example.com",
			"http://example.com/a",
			"fetched",
			fetchedAt,
			(*time.Time)(nil),
			int64(120),
			"memory://pages/example.com/abc.html",
			0.0,
			int64(0),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Deliver(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliverSkippedRowKeepsRetryAt(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "fetch_results")
	require.NoError(t, err)

	now := time.Date(2025, time.March, 4, 12, 0, 0, 0, time.UTC)
	retryAt := now.Add(750 * time.Millisecond)
	req, err := fetch.NewRequest("req-2", "http://example.com/b", 750*time.Millisecond)
	require.NoError(t, err)
	rec := fetch.SkippedRecord(req, now, retryAt)

	mock.ExpectExec("INSERT INTO fetch_results").
		WithArgs(
			"req-2",
			"http://example.com",
			"http://example.com/b",
			"skipped_crawl_delay",
			now,
			&retryAt,
			int64(0),
			"",
			0.0,
			int64(0),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Deliver(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliverWrapsExecError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock, "fetch_results")
	require.NoError(t, err)

	boom := errors.New("connection reset")
	mock.ExpectExec("INSERT INTO fetch_results").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(boom)

	err = store.Deliver(context.Background(), fetch.ResultRecord{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
