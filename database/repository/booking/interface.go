package bookingRepo

import (
	"context"
	"errors"

	"slotbook/models"
)

// ErrSlotTaken is returned by CreateExclusive when the slot already has a booking.
var ErrSlotTaken = errors.New("slot already booked")

// Snapshot is one full listing of the bookings collection, or the error that
// ended the feed.
type Snapshot struct {
	Bookings []models.Booking
	Err      error
}

// BookingRepository is the document store holding the bookings collection.
type BookingRepository interface {
	// FetchAll reads every booking once.
	FetchAll(ctx context.Context) ([]models.Booking, error)
	// Subscribe delivers a full snapshot immediately and again after every
	// change. The channel is closed once ctx is cancelled or after a snapshot
	// carrying an error.
	Subscribe(ctx context.Context) (<-chan Snapshot, error)
	// Create appends a booking and returns its id. Nothing stops two bookings
	// for the same time.
	Create(ctx context.Context, bookerName, bookingTime string) (string, error)
	// CreateExclusive is Create with a conditional write: it fails with
	// ErrSlotTaken when bookingTime already has a booking.
	CreateExclusive(ctx context.Context, bookerName, bookingTime string) (string, error)
	// DeleteByNameAndTime deletes every booking matching both fields and
	// reports whether any matched.
	DeleteByNameAndTime(ctx context.Context, bookerName, bookingTime string) (bool, error)
}
