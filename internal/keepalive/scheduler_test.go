package keepalive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsInvalidExpression(t *testing.T) {
	_, err := New("every now and then", func(context.Context) error { return nil })
	require.Error(t, err)
}

func TestUntilNext(t *testing.T) {
	s, err := New("*/5 * * * *", func(context.Context) error { return nil })
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2026, 1, 1, 10, 3, 0, 0, time.UTC) }

	wait, err := s.untilNext()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, wait)
}

func TestRunPingsAndStopsOnCancel(t *testing.T) {
	pinged := make(chan struct{}, 1)
	s, err := New("* * * * *", func(context.Context) error {
		pinged <- struct{}{}
		return errors.New("database asleep")
	})
	require.NoError(t, err)

	fire := make(chan time.Time, 1)
	s.after = func(time.Duration) <-chan time.Time { return fire }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	fire <- time.Now()
	select {
	case <-pinged:
	case <-time.After(time.Second):
		t.Fatal("expected a ping")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunDisabled(t *testing.T) {
	s, err := New("", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, s.Run(ctx))
}
