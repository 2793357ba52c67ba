package dberror

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"nil", nil, ErrorTypeUnknown},
		{"connection refused", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), ErrorTypeConnectivity},
		{"closed pool", errors.New("closed pool"), ErrorTypeConnectivity},
		{"timeout text", errors.New("query timed out"), ErrorTypeTimeout},
		{"auth text", errors.New("password authentication failed for user"), ErrorTypeAuth},
		{"pg connection exception", &pgconn.PgError{Code: "08006"}, ErrorTypeConnectivity},
		{"pg admin shutdown", &pgconn.PgError{Code: "57P01"}, ErrorTypeConnectivity},
		{"pg statement timeout", &pgconn.PgError{Code: "57014"}, ErrorTypeTimeout},
		{"pg serialization", &pgconn.PgError{Code: "40001"}, ErrorTypeSerialization},
		{"pg deadlock", &pgconn.PgError{Code: "40P01"}, ErrorTypeSerialization},
		{"pg undefined table", &pgconn.PgError{Code: "42P01"}, ErrorTypeQuery},
		{"pg unique violation", &pgconn.PgError{Code: "23505"}, ErrorTypeUnknown},
		{"wrapped pg error", fmt.Errorf("insert claim: %w", &pgconn.PgError{Code: "08001"}), ErrorTypeConnectivity},
		{"other", errors.New("boom"), ErrorTypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(context.Canceled))
	assert.False(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(errors.New("connection reset by peer")))
	assert.True(t, IsTransient(&pgconn.PgError{Code: "40001"}))
	assert.False(t, IsTransient(&pgconn.PgError{Code: "23505"}))
}

func TestUserMessage(t *testing.T) {
	t.Parallel()

	assert.Empty(t, UserMessage(nil))
	assert.Contains(t, UserMessage(errors.New("connection refused")), "temporarily unavailable")
	assert.Contains(t, UserMessage(&pgconn.PgError{Code: "40P01"}), "concurrent update")
}

func TestRetry(t *testing.T) {
	t.Parallel()

	cfg := RetryConfig{MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}

	t.Run("retries transient errors", func(t *testing.T) {
		t.Parallel()
		attempts := 0
		got, err := Retry(context.Background(), cfg, func() (int, error) {
			attempts++
			if attempts < 3 {
				return 0, errors.New("connection reset")
			}
			return 42, nil
		})
		require.NoError(t, err)
		require.Equal(t, 42, got)
		require.Equal(t, 3, attempts)
	})

	t.Run("does not retry permanent errors", func(t *testing.T) {
		t.Parallel()
		attempts := 0
		_, err := Retry(context.Background(), cfg, func() (int, error) {
			attempts++
			return 0, &pgconn.PgError{Code: "23505"}
		})
		require.Error(t, err)
		require.Equal(t, 1, attempts)
	})
}

func TestCalculateBackoff(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 400*time.Millisecond, calculateBackoff(200*time.Millisecond, 2*time.Second, 1))
	assert.Equal(t, 2*time.Second, calculateBackoff(200*time.Millisecond, 2*time.Second, 5))
}
