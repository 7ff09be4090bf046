package cron

import (
	"context"
	"errors"
	"time"

	"slotbook/services/booking"

	"go.uber.org/zap"
)

// Subscriber is the part of the booking store the feed worker drives.
type Subscriber interface {
	Start(ctx context.Context) error
}

// FeedWorker keeps the store subscribed. It checks every Interval and, when
// the feed has ended, resubscribes with a doubling backoff capped at MaxBackoff.
type FeedWorker struct {
	Store      Subscriber
	Interval   time.Duration
	MaxBackoff time.Duration
	Logger     *zap.Logger
}

// Run blocks until ctx is done or the store is closed.
func (w *FeedWorker) Run(ctx context.Context) {
	interval := w.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	maxBackoff := w.MaxBackoff
	if maxBackoff < interval {
		maxBackoff = max(2*time.Minute, interval)
	}
	logger := w.Logger
	if logger == nil {
		logger = zap.L()
	}

	backoff := interval
	attempts := 0
	for {
		wait := interval
		err := w.Store.Start(ctx)
		switch {
		case err == nil:
			if attempts > 0 {
				logger.Info("[FeedWorker] Resubscribed to bookings", zap.Int("attempts", attempts))
			}
			attempts = 0
			backoff = interval
		case errors.Is(err, booking.ErrAlreadyStarted):
			attempts = 0
			backoff = interval
		case errors.Is(err, booking.ErrClosed):
			logger.Info("[FeedWorker] Store closed, stopping")
			return
		default:
			attempts++
			wait = backoff
			logger.Warn("[FeedWorker] Subscribe failed",
				zap.Int("attempt", attempts), zap.Duration("retryIn", wait), zap.Error(err))
			backoff = min(backoff*2, maxBackoff)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}
