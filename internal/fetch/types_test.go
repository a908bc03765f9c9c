package fetch

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainKeyStripsPathAndLowercases(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want string
	}{
		{"http://example.com/a/b?q=1", "http://example.com"},
		{"HTTPS://Example.COM/path", "https://example.com"},
		{"http://example.com:8080/x", "http://example.com:8080"},
		{"https://sub.example.com", "https://sub.example.com"},
	}
	for _, tc := range cases {
		got, err := DomainKey(tc.raw)
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}
}

func TestDomainKeyRejectsRelativeURLs(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "/just/a/path", "example.com/no-scheme", "::bad::"} {
		_, err := DomainKey(raw)
		assert.Error(t, err, raw)
	}
}

func TestNewRequestDerivesDomainKey(t *testing.T) {
	t.Parallel()

	req, err := NewRequest("id-1", "http://example.com/page", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "http://example.com", req.DomainKey)
	assert.Equal(t, time.Second, req.CrawlDelay)
}

func TestRecordConstructors(t *testing.T) {
	t.Parallel()

	req, err := NewRequest("id-1", "http://example.com/page", time.Second)
	require.NoError(t, err)
	now := time.Unix(1000, 0)

	fetched := FetchedRecord(req, Payload{StatusCode: 200, Body: []byte("x"), FetchedAt: now})
	assert.Equal(t, StatusFetched, fetched.State.Status)
	assert.Equal(t, now, fetched.State.Timestamp)
	require.NotNil(t, fetched.Payload)

	skipped := SkippedRecord(req, now, now.Add(time.Second))
	assert.Equal(t, StatusSkippedCrawlDelay, skipped.State.Status)
	assert.Equal(t, now.Add(time.Second), skipped.State.RetryAt)
	assert.Nil(t, skipped.Payload)

	failed := FailedRecord(req, StatusNotFound, now)
	assert.Equal(t, StatusNotFound, failed.State.Status)
	assert.Nil(t, failed.Payload)
}

func TestErrorWrapsCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	err := NewError(KindConnection, "http://example.com", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection")

	var fetchErr *Error
	assert.ErrorAs(t, error(err), &fetchErr)
	assert.Equal(t, KindConnection, fetchErr.Kind)
}
