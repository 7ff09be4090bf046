package bookingRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"slotbook/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// ChangeChannel is the NOTIFY channel the bookings trigger publishes on.
const ChangeChannel = "bookings_changed"

const uniqueViolation = "23505"

const (
	selectBookingsQuery = `SELECT id, booker_name, booking_time, created_at FROM bookings ORDER BY created_at, id`
	insertBookingQuery  = `INSERT INTO bookings (id, booker_name, booking_time, created_at) VALUES ($1, $2, $3, $4)`
	deleteBookingsQuery = `DELETE FROM bookings WHERE booker_name = $1 AND booking_time = $2`
)

type postgresBookingRepo struct {
	db     *sqlx.DB
	dsn    string
	logger *zap.Logger
	now    func() time.Time
}

// NewPostgresBookingRepo constructs a BookingRepository over the bookings
// table. dsn is used to open the LISTEN connection behind Subscribe.
func NewPostgresBookingRepo(db *sqlx.DB, dsn string, logger *zap.Logger) BookingRepository {
	if logger == nil {
		logger = zap.L()
	}
	return &postgresBookingRepo{db: db, dsn: dsn, logger: logger, now: time.Now}
}

func (r *postgresBookingRepo) FetchAll(ctx context.Context) ([]models.Booking, error) {
	bookings := []models.Booking{}
	if err := r.db.SelectContext(ctx, &bookings, selectBookingsQuery); err != nil {
		return nil, fmt.Errorf("failed to fetch bookings: %w", err)
	}
	return bookings, nil
}

func (r *postgresBookingRepo) Subscribe(ctx context.Context) (<-chan Snapshot, error) {
	l := pq.NewListener(r.dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			r.logger.Warn("Postgres listener event", zap.Int("event", int(ev)), zap.Error(err))
		}
	})
	// Listen before the first read so no change falls in between.
	if err := l.Listen(ChangeChannel); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", ChangeChannel, err)
	}
	initial, err := r.FetchAll(ctx)
	if err != nil {
		_ = l.Close()
		return nil, err
	}

	ch := make(chan Snapshot)
	go func() {
		defer close(ch)
		defer l.Close()

		if !send(ctx, ch, Snapshot{Bookings: initial}) {
			return
		}
		ping := time.NewTicker(90 * time.Second)
		defer ping.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ping.C:
				go func() { _ = l.Ping() }()
			case <-l.NotificationChannel():
				// A nil notification follows a reconnect; re-read either way.
				bookings, err := r.FetchAll(ctx)
				if err != nil {
					if ctx.Err() == nil {
						r.logger.Error("Failed to re-read bookings after notification", zap.Error(err))
						send(ctx, ch, Snapshot{Err: err})
					}
					return
				}
				if !send(ctx, ch, Snapshot{Bookings: bookings}) {
					return
				}
			}
		}
	}()
	return ch, nil
}

func (r *postgresBookingRepo) Create(ctx context.Context, bookerName, bookingTime string) (string, error) {
	id, err := r.insert(ctx, bookerName, bookingTime)
	if err != nil {
		return "", fmt.Errorf("failed to create booking: %w", err)
	}
	return id, nil
}

// CreateExclusive relies on the unique booking_time index from EnsureSchema.
func (r *postgresBookingRepo) CreateExclusive(ctx context.Context, bookerName, bookingTime string) (string, error) {
	id, err := r.insert(ctx, bookerName, bookingTime)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return "", ErrSlotTaken
		}
		return "", fmt.Errorf("failed to create booking: %w", err)
	}
	return id, nil
}

func (r *postgresBookingRepo) DeleteByNameAndTime(ctx context.Context, bookerName, bookingTime string) (bool, error) {
	res, err := r.db.ExecContext(ctx, deleteBookingsQuery, bookerName, bookingTime)
	if err != nil {
		return false, fmt.Errorf("failed to cancel booking: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to cancel booking: %w", err)
	}
	if n > 1 {
		r.logger.Warn("Deleted duplicate bookings",
			zap.String("bookerName", bookerName),
			zap.String("bookingTime", bookingTime),
			zap.Int64("count", n))
	}
	return n > 0, nil
}

func (r *postgresBookingRepo) insert(ctx context.Context, bookerName, bookingTime string) (string, error) {
	id := uuid.New().String()
	if _, err := r.db.ExecContext(ctx, insertBookingQuery, id, bookerName, bookingTime, r.now().UTC()); err != nil {
		return "", err
	}
	return id, nil
}
