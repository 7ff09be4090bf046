package bookingRepo

import (
	"context"
	"errors"
	"fmt"

	"slotbook/models"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type firestoreBookingRepo struct {
	client *firestore.Client
	coll   *firestore.CollectionRef
	logger *zap.Logger
}

// NewFirestoreBookingRepo constructs a BookingRepository over a Firestore collection.
func NewFirestoreBookingRepo(client *firestore.Client, collection string, logger *zap.Logger) BookingRepository {
	if logger == nil {
		logger = zap.L()
	}
	return &firestoreBookingRepo{
		client: client,
		coll:   client.Collection(collection),
		logger: logger,
	}
}

func (r *firestoreBookingRepo) FetchAll(ctx context.Context) ([]models.Booking, error) {
	docs, err := r.coll.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bookings: %w", err)
	}
	return decodeDocs(docs)
}

func (r *firestoreBookingRepo) Subscribe(ctx context.Context) (<-chan Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	it := r.coll.Snapshots(ctx)
	ch := make(chan Snapshot)

	go func() {
		defer close(ch)
		defer it.Stop()

		for {
			qs, err := it.Next()
			if err != nil {
				if ctx.Err() != nil || status.Code(err) == codes.Canceled || errors.Is(err, iterator.Done) {
					return
				}
				r.logger.Error("Firestore snapshot listener failed", zap.Error(err))
				send(ctx, ch, Snapshot{Err: err})
				return
			}

			docs, err := qs.Documents.GetAll()
			if err == nil {
				var bookings []models.Booking
				bookings, err = decodeDocs(docs)
				if err == nil {
					if !send(ctx, ch, Snapshot{Bookings: bookings}) {
						return
					}
					continue
				}
			}
			r.logger.Error("Failed to read Firestore snapshot", zap.Error(err))
			send(ctx, ch, Snapshot{Err: err})
			return
		}
	}()
	return ch, nil
}

func (r *firestoreBookingRepo) Create(ctx context.Context, bookerName, bookingTime string) (string, error) {
	ref, _, err := r.coll.Add(ctx, models.Booking{
		BookerName:  bookerName,
		BookingTime: bookingTime,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create booking: %w", err)
	}
	return ref.ID, nil
}

func (r *firestoreBookingRepo) CreateExclusive(ctx context.Context, bookerName, bookingTime string) (string, error) {
	ref := r.coll.NewDoc()
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, err := tx.Documents(r.coll.Where("bookingTime", "==", bookingTime).Limit(1)).GetAll()
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return ErrSlotTaken
		}
		return tx.Create(ref, models.Booking{
			BookerName:  bookerName,
			BookingTime: bookingTime,
		})
	})
	if err != nil {
		if errors.Is(err, ErrSlotTaken) {
			return "", ErrSlotTaken
		}
		return "", fmt.Errorf("failed to create booking: %w", err)
	}
	return ref.ID, nil
}

func (r *firestoreBookingRepo) DeleteByNameAndTime(ctx context.Context, bookerName, bookingTime string) (bool, error) {
	q := r.coll.Where("bookerName", "==", bookerName).Where("bookingTime", "==", bookingTime)

	deleted := 0
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docs, err := tx.Documents(q).GetAll()
		if err != nil {
			return err
		}
		deleted = len(docs)
		for _, doc := range docs {
			if err := tx.Delete(doc.Ref); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to cancel booking: %w", err)
	}
	if deleted > 1 {
		r.logger.Warn("Deleted duplicate bookings",
			zap.String("bookerName", bookerName),
			zap.String("bookingTime", bookingTime),
			zap.Int("count", deleted))
	}
	return deleted > 0, nil
}

func decodeDocs(docs []*firestore.DocumentSnapshot) ([]models.Booking, error) {
	bookings := make([]models.Booking, 0, len(docs))
	for _, doc := range docs {
		var b models.Booking
		if err := doc.DataTo(&b); err != nil {
			return nil, fmt.Errorf("decode booking %s: %w", doc.Ref.ID, err)
		}
		b.ID = doc.Ref.ID
		bookings = append(bookings, b)
	}
	return bookings, nil
}

// send delivers s unless ctx ends first.
func send(ctx context.Context, ch chan<- Snapshot, s Snapshot) bool {
	select {
	case ch <- s:
		return true
	case <-ctx.Done():
		return false
	}
}
