package bookingRepo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes used by the bookings collection. With
// exclusive set, bookingTime is unique and backs CreateExclusive.
func EnsureIndexes(ctx context.Context, coll *mongo.Collection, exclusive bool) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		// Cancel matches on both fields.
		{
			Keys:    bson.D{{Key: "bookerName", Value: 1}, {Key: "bookingTime", Value: 1}},
			Options: options.Index().SetName("booker_time_idx"),
		},
		{
			Keys:    bson.D{{Key: "createdAt", Value: 1}},
			Options: options.Index().SetName("created_at_idx"),
		},
	}
	if exclusive {
		indexModels = append(indexModels, mongo.IndexModel{
			Keys:    bson.D{{Key: "bookingTime", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_booking_time"),
		})
	}

	if _, err := coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create booking indexes: %w", err)
	}
	return nil
}
