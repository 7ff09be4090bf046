package bookingRepo

import (
	"context"
	"fmt"
	"time"

	"slotbook/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type mongoBookingRepo struct {
	coll   *mongo.Collection
	logger *zap.Logger
	now    func() time.Time
}

// NewMongoBookingRepo constructs a BookingRepository over a MongoDB collection.
// The live feed relies on change streams, so the server must be a replica set.
func NewMongoBookingRepo(coll *mongo.Collection, logger *zap.Logger) BookingRepository {
	if logger == nil {
		logger = zap.L()
	}
	return &mongoBookingRepo{coll: coll, logger: logger, now: time.Now}
}

func (r *mongoBookingRepo) FetchAll(ctx context.Context) ([]models.Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := []models.Booking{}
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("error decoding bookings: %w", err)
	}
	return bookings, nil
}

func (r *mongoBookingRepo) Subscribe(ctx context.Context) (<-chan Snapshot, error) {
	// Open the stream before the first read so no change falls in between.
	stream, err := r.coll.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, fmt.Errorf("failed to open change stream: %w", err)
	}
	initial, err := r.FetchAll(ctx)
	if err != nil {
		_ = stream.Close(context.Background())
		return nil, err
	}

	ch := make(chan Snapshot)
	go func() {
		defer close(ch)
		defer stream.Close(context.Background())

		if !send(ctx, ch, Snapshot{Bookings: initial}) {
			return
		}
		for stream.Next(ctx) {
			bookings, err := r.FetchAll(ctx)
			if err != nil {
				if ctx.Err() == nil {
					send(ctx, ch, Snapshot{Err: err})
				}
				return
			}
			if !send(ctx, ch, Snapshot{Bookings: bookings}) {
				return
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			r.logger.Error("Mongo change stream failed", zap.Error(err))
			send(ctx, ch, Snapshot{Err: err})
		}
	}()
	return ch, nil
}

func (r *mongoBookingRepo) Create(ctx context.Context, bookerName, bookingTime string) (string, error) {
	b := r.newBooking(bookerName, bookingTime)
	if _, err := r.coll.InsertOne(ctx, b); err != nil {
		return "", fmt.Errorf("failed to create booking: %w", err)
	}
	return b.ID, nil
}

// CreateExclusive relies on the unique bookingTime index from EnsureIndexes.
func (r *mongoBookingRepo) CreateExclusive(ctx context.Context, bookerName, bookingTime string) (string, error) {
	b := r.newBooking(bookerName, bookingTime)
	if _, err := r.coll.InsertOne(ctx, b); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", ErrSlotTaken
		}
		return "", fmt.Errorf("failed to create booking: %w", err)
	}
	return b.ID, nil
}

func (r *mongoBookingRepo) DeleteByNameAndTime(ctx context.Context, bookerName, bookingTime string) (bool, error) {
	filter := bson.M{"bookerName": bookerName, "bookingTime": bookingTime}
	res, err := r.coll.DeleteMany(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("failed to cancel booking: %w", err)
	}
	if res.DeletedCount > 1 {
		r.logger.Warn("Deleted duplicate bookings",
			zap.String("bookerName", bookerName),
			zap.String("bookingTime", bookingTime),
			zap.Int64("count", res.DeletedCount))
	}
	return res.DeletedCount > 0, nil
}

func (r *mongoBookingRepo) newBooking(bookerName, bookingTime string) models.Booking {
	return models.Booking{
		ID:          uuid.New().String(),
		BookerName:  bookerName,
		BookingTime: bookingTime,
		CreatedAt:   r.now().UTC(),
	}
}
