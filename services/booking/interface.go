package booking

import (
	"context"

	"slotbook/models"
)

// Status is the lifecycle state reported by the Store.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusSubscribing Status = "subscribing"
	StatusFetching    Status = "fetching"
	StatusLive        Status = "live"
	StatusErrored     Status = "errored"
	StatusMutating    Status = "mutating"
	StatusClosed      Status = "closed"
)

// State is a read-only copy of what the calendar looks like right now.
type State struct {
	Schedules []models.Schedule `json:"schedules"`
	Loading   bool              `json:"loading"`
	Error     string            `json:"error,omitempty"`
	ErrorKind ErrorKind         `json:"errorKind,omitempty"`
	Status    Status            `json:"status"`
	// Live reports an attached feed, independent of in-flight work.
	Live      bool              `json:"live"`
}

// Public returns the state with booker identities removed.
func (s State) Public() State {
	s.Schedules = models.PublicSchedules(s.Schedules)
	return s
}

// BookingService is the surface presentation code works against.
type BookingService interface {
	State() State
	Bookings() []models.Booking
	Watch() (<-chan State, func())
	CreateBooking(ctx context.Context, bookerName, bookingTime string) (string, error)
	CancelBooking(ctx context.Context, bookerName, bookingTime string) (bool, error)
	Refresh(ctx context.Context) error
}

var _ BookingService = (*Store)(nil)
