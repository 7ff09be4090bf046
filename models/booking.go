package models

import "time"

// Booking is one reserved slot as stored in the booking collection.
type Booking struct {
	ID          string    `bson:"_id" json:"id" firestore:"-" db:"id"`                                                        // assigned by the store on create
	BookerName  string    `bson:"bookerName" json:"bookerName" firestore:"bookerName" db:"booker_name"`                       // display name, not unique
	BookingTime string    `bson:"bookingTime" json:"bookingTime" firestore:"bookingTime" db:"booking_time"`                   // canonical slot key, see TimeSlot.DateTime
	CreatedAt   time.Time `bson:"createdAt,omitempty" json:"createdAt,omitzero" firestore:"createdAt,serverTimestamp" db:"created_at"`
}

// BookingRequest is the payload used to create or cancel a booking.
type BookingRequest struct {
	BookerName  string `json:"bookerName" binding:"required"`
	BookingTime string `json:"bookingTime" binding:"required"`
}
