package cron_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"slotbook/cron"
	"slotbook/services/booking"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptedSubscriber returns the scripted errors in order, then ErrAlreadyStarted.
type scriptedSubscriber struct {
	mu     sync.Mutex
	script []error
	calls  int
}

func (s *scriptedSubscriber) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.script) == 0 {
		return booking.ErrAlreadyStarted
	}
	err := s.script[0]
	s.script = s.script[1:]
	return err
}

func (s *scriptedSubscriber) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func run(t *testing.T, w *cron.FeedWorker) (context.CancelFunc, <-chan struct{}) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel, done
}

func TestFeedWorkerRetriesFailedSubscribe(t *testing.T) {
	sub := &scriptedSubscriber{script: []error{errors.New("unavailable"), errors.New("unavailable"), nil}}
	run(t, &cron.FeedWorker{Store: sub, Interval: time.Millisecond, MaxBackoff: 4 * time.Millisecond, Logger: zap.NewNop()})

	assert.Eventually(t, func() bool { return sub.Calls() >= 4 }, time.Second, time.Millisecond)
}

func TestFeedWorkerStopsWhenStoreClosed(t *testing.T) {
	sub := &scriptedSubscriber{script: []error{booking.ErrClosed}}
	_, done := run(t, &cron.FeedWorker{Store: sub, Interval: time.Millisecond, Logger: zap.NewNop()})

	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "worker did not stop")
	}
	assert.Equal(t, 1, sub.Calls())
}

func TestFeedWorkerStopsOnContextCancel(t *testing.T) {
	sub := &scriptedSubscriber{}
	cancel, done := run(t, &cron.FeedWorker{Store: sub, Interval: time.Hour, Logger: zap.NewNop()})

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "worker did not stop")
	}
}
