package bookingRepo

import (
	"context"
	"sync"
	"time"

	"slotbook/models"

	"github.com/google/uuid"
)

// MemoryBookingRepo keeps bookings in process. It backs local development and tests.
type MemoryBookingRepo struct {
	mu       sync.Mutex
	bookings []models.Booking
	subs     map[int]chan Snapshot
	nextSub  int
	now      func() time.Time
}

// NewMemoryBookingRepo returns an empty in-process BookingRepository.
func NewMemoryBookingRepo() *MemoryBookingRepo {
	return &MemoryBookingRepo{
		subs: make(map[int]chan Snapshot),
		now:  time.Now,
	}
}

// Seed replaces the stored bookings as-is, duplicates included, and notifies subscribers.
func (r *MemoryBookingRepo) Seed(bookings ...models.Booking) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings = append([]models.Booking(nil), bookings...)
	r.publishLocked()
}

func (r *MemoryBookingRepo) FetchAll(ctx context.Context) ([]models.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.copyLocked(), nil
}

func (r *MemoryBookingRepo) Subscribe(ctx context.Context) (<-chan Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := make(chan Snapshot, 1)

	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch
	ch <- Snapshot{Bookings: r.copyLocked()}
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		delete(r.subs, id)
		close(ch)
		r.mu.Unlock()
	}()
	return ch, nil
}

func (r *MemoryBookingRepo) Create(ctx context.Context, bookerName, bookingTime string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(bookerName, bookingTime), nil
}

func (r *MemoryBookingRepo) CreateExclusive(ctx context.Context, bookerName, bookingTime string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bookings {
		if b.BookingTime == bookingTime {
			return "", ErrSlotTaken
		}
	}
	return r.insertLocked(bookerName, bookingTime), nil
}

func (r *MemoryBookingRepo) DeleteByNameAndTime(ctx context.Context, bookerName, bookingTime string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.bookings[:0]
	deleted := 0
	for _, b := range r.bookings {
		if b.BookerName == bookerName && b.BookingTime == bookingTime {
			deleted++
			continue
		}
		kept = append(kept, b)
	}
	r.bookings = kept
	if deleted == 0 {
		return false, nil
	}
	r.publishLocked()
	return true, nil
}

func (r *MemoryBookingRepo) insertLocked(bookerName, bookingTime string) string {
	b := models.Booking{
		ID:          uuid.New().String(),
		BookerName:  bookerName,
		BookingTime: bookingTime,
		CreatedAt:   r.now(),
	}
	r.bookings = append(r.bookings, b)
	r.publishLocked()
	return b.ID
}

func (r *MemoryBookingRepo) copyLocked() []models.Booking {
	return append([]models.Booking{}, r.bookings...)
}

// publishLocked hands every subscriber the current listing. A subscriber that
// has not consumed the previous snapshot gets it replaced by the newer one.
func (r *MemoryBookingRepo) publishLocked() {
	for _, ch := range r.subs {
		snap := Snapshot{Bookings: r.copyLocked()}
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}
