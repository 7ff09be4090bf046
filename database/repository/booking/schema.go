package bookingRepo

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS bookings (
		id           TEXT PRIMARY KEY,
		booker_name  TEXT NOT NULL,
		booking_time TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS bookings_booker_time_idx ON bookings (booker_name, booking_time)`,
	`CREATE INDEX IF NOT EXISTS bookings_created_at_idx ON bookings (created_at)`,
	`CREATE OR REPLACE FUNCTION notify_bookings_changed() RETURNS trigger AS $$
	BEGIN
		PERFORM pg_notify('` + ChangeChannel + `', TG_OP);
		RETURN NULL;
	END;
	$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS bookings_changed ON bookings`,
	`CREATE TRIGGER bookings_changed AFTER INSERT OR UPDATE OR DELETE ON bookings
		FOR EACH STATEMENT EXECUTE FUNCTION notify_bookings_changed()`,
}

const uniqueBookingTimeIndex = `CREATE UNIQUE INDEX IF NOT EXISTS bookings_booking_time_key ON bookings (booking_time)`

// EnsureSchema creates the bookings table and the trigger that feeds
// Subscribe. With exclusive set, booking_time is unique and backs CreateExclusive.
func EnsureSchema(ctx context.Context, db *sqlx.DB, exclusive bool) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	stmts := schemaStatements
	if exclusive {
		stmts = append(append([]string{}, stmts...), uniqueBookingTimeIndex)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply booking schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking schema: %w", err)
	}
	return nil
}
