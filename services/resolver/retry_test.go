package resolver

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"no response", &StatusError{Provider: "tvdb"}, true},
		{"429", &StatusError{Provider: "tvdb", StatusCode: http.StatusTooManyRequests}, true},
		{"502", &StatusError{Provider: "tvdb", StatusCode: http.StatusBadGateway}, true},
		{"503", &StatusError{Provider: "tvdb", StatusCode: http.StatusServiceUnavailable}, true},
		{"500", &StatusError{Provider: "tvdb", StatusCode: http.StatusInternalServerError}, true},
		{"404", &StatusError{Provider: "tvdb", StatusCode: http.StatusNotFound}, false},
		{"401", &StatusError{Provider: "tvdb", StatusCode: http.StatusUnauthorized}, false},
		{"plain transport error", errors.New("connection refused"), true},
		{"canceled", context.Canceled, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsRetryable(tc.err))
		})
	}
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	err := fastRetry().Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &StatusError{Provider: "tvdb", StatusCode: http.StatusServiceUnavailable}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls, "initial attempt plus exactly two retries")
}

func TestDoTerminalErrorPropagatesImmediately(t *testing.T) {
	calls := 0
	err := fastRetry().Do(context.Background(), func() error {
		calls++
		return &StatusError{Provider: "tvdb", StatusCode: http.StatusNotFound}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}

func TestDoExhaustsAttemptsAndReturnsLastError(t *testing.T) {
	calls := 0
	err := fastRetry().Do(context.Background(), func() error {
		calls++
		return &StatusError{Provider: "tvdb", StatusCode: http.StatusBadGateway}
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}
