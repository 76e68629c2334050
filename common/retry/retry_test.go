package retry

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	pe "wuyrush.io/serendipity/errors"
)

type testErrRetryable struct {
}

func (e testErrRetryable) Error() string {
	return "retryable err"
}

func TestRetry(t *testing.T) {
	retryable, nonRetryable := testErrRetryable{}, fmt.Errorf("non-retryable")
	f := func(count *int, errs []error) error {
		cnt := *count
		// to prove the function logic is actually executed
		*count = cnt + 1
		return errs[cnt]
	}
	retryOn := func(e error) bool {
		_, ok := e.(testErrRetryable)
		return ok
	}
	tcs := []struct {
		name     string
		errs     []error
		strategy []RetryOption
		expected int
	}{
		{
			name:     "no retry",
			errs:     []error{nil},
			expected: 1,
		},
		{
			name: "retry with max attempt",
			errs: []error{
				retryable,
				retryable,
				nonRetryable,
			},
			expected: 3,
			strategy: []RetryOption{
				WithMaxAttempts(2),
				WithRetryOn(retryOn),
			},
		},
		{
			name: "retryOn",
			errs: []error{
				retryable,
				retryable,
				nonRetryable,
				retryable,
				retryable,
			},
			expected: 3,
			strategy: []RetryOption{
				WithMaxAttempts(10),
				WithRetryOn(retryOn),
			},
		},
	}

	for _, c := range tcs {
		errs, strategy, exp := c.errs, c.strategy, c.expected
		t.Run(c.name, func(*testing.T) {
			actual := 0
			Retry(
				func() error {
					// f can also return result besides values as long as we refer to
					// the result with pointer so that it won't get lost
					return f(&actual, errs)
				},
				strategy...,
			)
			if actual != exp {
				t.Errorf("expected %d for %v and %v but got %d", exp, errs, strategy, actual)
			}
		})
	}

}

func TestRetryTimeout(t *testing.T) {
	count := 0
	start := time.Now()
	err := Retry(
		func() error {
			count++
			return testErrRetryable{}
		},
		WithBaseDelay(20*time.Millisecond),
		WithTimeout(50*time.Millisecond),
		WithRetryOn(func(error) bool { return true }),
	)
	assert.Equal(t, ErrTimedOut, err)
	assert.True(t, count >= 2 && count <= 4, "unexpected attempts %d", count)
	assert.True(t, time.Since(start) < time.Second)
}

func TestRetryExponentialBackoff(t *testing.T) {
	var stamps []time.Time
	Retry(
		func() error {
			stamps = append(stamps, time.Now())
			return testErrRetryable{}
		},
		WithMaxAttempts(3),
		WithBaseDelay(10*time.Millisecond),
		WithExp(2),
		WithMaxBackoff(35*time.Millisecond),
		WithRetryOn(func(error) bool { return true }),
	)
	if assert.Len(t, stamps, 4) {
		// waits are 10ms, 20ms then 40ms capped to 35ms
		assert.True(t, stamps[1].Sub(stamps[0]) >= 10*time.Millisecond)
		assert.True(t, stamps[2].Sub(stamps[1]) >= 20*time.Millisecond)
		assert.True(t, stamps[3].Sub(stamps[2]) >= 35*time.Millisecond)
	}
}

func TestIsDepOffline(t *testing.T) {
	var nilErr *pe.Err
	tcs := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "Nil", err: nil, expected: false},
		{name: "TypedNil", err: nilErr, expected: false},
		{name: "Network", err: pe.NewNetworkFailure("down"), expected: true},
		{name: "Dependency", err: pe.NewDependencyFailure("down"), expected: true},
		{name: "Wrapped", err: fmt.Errorf("ping: %w", pe.NewNetworkFailure("down")), expected: true},
		{name: "NotFound", err: pe.NewNotFound("gone"), expected: false},
		{name: "ConnRefused", err: fmt.Errorf("dial tcp 127.0.0.1:6379: connect: connection refused"), expected: true},
	}
	for _, c := range tcs {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, IsDepOffline(c.err))
		})
	}
}
