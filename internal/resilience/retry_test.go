package resilience

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fast(attempts int) Backoff {
	return Backoff{Attempts: attempts, Initial: time.Millisecond, Max: 5 * time.Millisecond}
}

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	var calls int
	err := Do(context.Background(), fast(3), "test", func(_ context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_SuccessAfterRetry(t *testing.T) {
	var calls int
	err := Do(context.Background(), fast(3), "test", func(_ context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("database is locked (5) (SQLITE_BUSY)")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	var calls int
	err := Do(context.Background(), fast(2), "test", func(_ context.Context) error {
		calls++
		return eris.Wrap(syscall.ECONNREFUSED, "dial")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, syscall.ECONNREFUSED)
	assert.Equal(t, 2, calls)
}

func TestDo_PermanentErrorNotRetried(t *testing.T) {
	var calls int
	err := Do(context.Background(), fast(5), "test", func(_ context.Context) error {
		calls++
		return errors.New("syntax error at or near SELEC")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	err := Do(ctx, Backoff{Attempts: 5, Initial: time.Second, Max: time.Second}, "test", func(_ context.Context) error {
		calls++
		cancel()
		return errors.New("connection refused")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_ReturnsValue(t *testing.T) {
	var calls int
	v, err := DoVal(context.Background(), fast(3), "test", func(_ context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("i/o timeout")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 2, calls)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", eris.Wrap(context.DeadlineExceeded, "query"), false},
		{"refused", eris.Wrap(syscall.ECONNREFUSED, "connect"), true},
		{"reset", syscall.ECONNRESET, true},
		{"sqlite busy", errors.New("database is locked"), true},
		{"pg starting", errors.New("FATAL: the database system is starting up"), true},
		{"bad data", errors.New("run not found"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Initial: 10 * time.Millisecond, Max: 30 * time.Millisecond}
	assert.Equal(t, 10*time.Millisecond, b.delay(0))
	assert.Equal(t, 20*time.Millisecond, b.delay(1))
	assert.Equal(t, 30*time.Millisecond, b.delay(2))
	assert.Equal(t, 30*time.Millisecond, b.delay(5))
}

func TestBackoff_WithDefaults(t *testing.T) {
	b := Backoff{}.withDefaults()
	assert.Equal(t, 3, b.Attempts)
	assert.Equal(t, 250*time.Millisecond, b.Initial)
	assert.Equal(t, 5*time.Second, b.Max)
	assert.Zero(t, b.Jitter)
}
