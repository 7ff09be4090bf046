package bookingRepo_test

import (
	"context"
	"testing"
	"time"

	bookingRepo "slotbook/database/repository/booking"
	"slotbook/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const slot = "2025-07-16T01:00:00.000Z"

func nextSnapshot(t *testing.T, ch <-chan bookingRepo.Snapshot) bookingRepo.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "feed closed")
		return snap
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
		return bookingRepo.Snapshot{}
	}
}

func TestMemoryBookingRepo(t *testing.T) {
	ctx := context.Background()

	t.Run("create and fetch", func(t *testing.T) {
		repo := bookingRepo.NewMemoryBookingRepo()
		id, err := repo.Create(ctx, "Alice", slot)
		require.NoError(t, err)
		assert.NotEmpty(t, id)

		all, err := repo.FetchAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, id, all[0].ID)
		assert.Equal(t, "Alice", all[0].BookerName)
		assert.Equal(t, slot, all[0].BookingTime)
	})

	t.Run("create allows double booking", func(t *testing.T) {
		repo := bookingRepo.NewMemoryBookingRepo()
		_, err := repo.Create(ctx, "Alice", slot)
		require.NoError(t, err)
		_, err = repo.Create(ctx, "Bob", slot)
		require.NoError(t, err)

		all, err := repo.FetchAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("exclusive create rejects a taken slot", func(t *testing.T) {
		repo := bookingRepo.NewMemoryBookingRepo()
		_, err := repo.CreateExclusive(ctx, "Alice", slot)
		require.NoError(t, err)
		_, err = repo.CreateExclusive(ctx, "Bob", slot)
		assert.ErrorIs(t, err, bookingRepo.ErrSlotTaken)
	})

	t.Run("delete removes every match", func(t *testing.T) {
		repo := bookingRepo.NewMemoryBookingRepo()
		repo.Seed(
			models.Booking{ID: "1", BookerName: "Carol", BookingTime: slot},
			models.Booking{ID: "2", BookerName: "Carol", BookingTime: slot},
			models.Booking{ID: "3", BookerName: "Dave", BookingTime: slot},
		)

		ok, err := repo.DeleteByNameAndTime(ctx, "Carol", slot)
		require.NoError(t, err)
		assert.True(t, ok)

		all, err := repo.FetchAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "3", all[0].ID)
	})

	t.Run("delete with no match", func(t *testing.T) {
		repo := bookingRepo.NewMemoryBookingRepo()
		ok, err := repo.DeleteByNameAndTime(ctx, "Bob", slot)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("subscribe delivers initial and later snapshots", func(t *testing.T) {
		repo := bookingRepo.NewMemoryBookingRepo()
		subCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		ch, err := repo.Subscribe(subCtx)
		require.NoError(t, err)
		assert.Empty(t, nextSnapshot(t, ch).Bookings)

		_, err = repo.Create(ctx, "Alice", slot)
		require.NoError(t, err)
		snap := nextSnapshot(t, ch)
		require.NoError(t, snap.Err)
		require.Len(t, snap.Bookings, 1)
		assert.Equal(t, "Alice", snap.Bookings[0].BookerName)
	})

	t.Run("slow subscriber sees the latest snapshot", func(t *testing.T) {
		repo := bookingRepo.NewMemoryBookingRepo()
		subCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		ch, err := repo.Subscribe(subCtx)
		require.NoError(t, err)
		for _, name := range []string{"A", "B", "C"} {
			_, err := repo.Create(ctx, name, slot)
			require.NoError(t, err)
		}
		assert.Len(t, nextSnapshot(t, ch).Bookings, 3)
	})

	t.Run("cancel closes the feed", func(t *testing.T) {
		repo := bookingRepo.NewMemoryBookingRepo()
		subCtx, cancel := context.WithCancel(ctx)
		ch, err := repo.Subscribe(subCtx)
		require.NoError(t, err)
		nextSnapshot(t, ch)

		cancel()
		assert.Eventually(t, func() bool {
			_, ok := <-ch
			return !ok
		}, time.Second, 10*time.Millisecond)
	})
}
