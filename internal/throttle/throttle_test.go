package throttle

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCheckAndReserveAdmitsUnknownDomain(t *testing.T) {
	t.Parallel()

	m := NewDomainMap()
	now := time.Unix(1000, 0)

	dec := m.CheckAndReserve("https://example.com", now, time.Second)
	require.True(t, dec.Admitted)
	require.Equal(t, 1, m.Len())
}

func TestCheckAndReserveSkipsWithinDelay(t *testing.T) {
	t.Parallel()

	m := NewDomainMap()
	t0 := time.Unix(1000, 0)
	delay := time.Second

	require.True(t, m.CheckAndReserve("https://example.com", t0, delay).Admitted)

	dec := m.CheckAndReserve("https://example.com", t0.Add(200*time.Millisecond), delay)
	require.False(t, dec.Admitted)
	require.Equal(t, t0.Add(delay), dec.RetryAt)

	// The skip must not have advanced the reservation.
	dec = m.CheckAndReserve("https://example.com", t0.Add(999*time.Millisecond), delay)
	require.False(t, dec.Admitted)
	require.Equal(t, t0.Add(delay), dec.RetryAt)
}

func TestCheckAndReserveAdmitsOnceDelayElapsed(t *testing.T) {
	t.Parallel()

	m := NewDomainMap()
	t0 := time.Unix(1000, 0)
	delay := time.Second

	require.True(t, m.CheckAndReserve("https://example.com", t0, delay).Admitted)

	dec := m.CheckAndReserve("https://example.com", t0.Add(delay), delay)
	require.True(t, dec.Admitted)

	// The second admission reserved a fresh window.
	dec = m.CheckAndReserve("https://example.com", t0.Add(delay+time.Millisecond), delay)
	require.False(t, dec.Admitted)
	require.Equal(t, t0.Add(2*delay), dec.RetryAt)
}

func TestDomainsAreThrottledIndependently(t *testing.T) {
	t.Parallel()

	m := NewDomainMap()
	now := time.Unix(1000, 0)

	require.True(t, m.CheckAndReserve("https://a.com", now, time.Second).Admitted)
	require.True(t, m.CheckAndReserve("https://b.com", now, time.Second).Admitted)
	require.False(t, m.CheckAndReserve("https://a.com", now, time.Second).Admitted)
	require.Equal(t, 2, m.Len())
}

func TestNoDoubleAdmissionUnderConcurrency(t *testing.T) {
	t.Parallel()

	m := NewDomainMap()
	now := time.Unix(1000, 0)

	const callers = 50
	var wg sync.WaitGroup
	admitted := make(chan struct{}, callers)

	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.CheckAndReserve("https://example.com", now, time.Hour).Admitted {
				admitted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(admitted)

	require.Len(t, admitted, 1, "exactly one concurrent caller may win the reservation")
}
