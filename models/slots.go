package models

// TimeSlot is a fixed 15 minute window in one day's grid. Time and DateTime
// never change after generation; the booking fields are derived on every merge.
type TimeSlot struct {
	Time       string `json:"time"`     // wall clock label, e.g. "10:00"
	DateTime   string `json:"dateTime"` // join key against Booking.BookingTime
	IsBooked   bool   `json:"isBooked"`
	BookingID  string `json:"bookingId,omitempty"`
	BookerName string `json:"bookerName,omitempty"`
}

// Schedule is one day of slots.
type Schedule struct {
	Date  string     `json:"date"` // display label
	Day   string     `json:"day"`  // "2006-01-02"
	Slots []TimeSlot `json:"slots"`
}

// DayConfig describes one statically configured day.
type DayConfig struct {
	Label string `mapstructure:"label" json:"label"`
	Date  string `mapstructure:"date" json:"date"`   // "2006-01-02"
	Start string `mapstructure:"start" json:"start"` // "15:04"
	End   string `mapstructure:"end" json:"end"`     // "15:04"
}

// Clone returns a deep copy of the schedule.
func (s Schedule) Clone() Schedule {
	out := Schedule{Date: s.Date, Day: s.Day, Slots: make([]TimeSlot, len(s.Slots))}
	copy(out.Slots, s.Slots)
	return out
}

// Public returns a copy with booker identities stripped, for visitor views.
func (s Schedule) Public() Schedule {
	out := s.Clone()
	for i := range out.Slots {
		out.Slots[i].BookingID = ""
		out.Slots[i].BookerName = ""
	}
	return out
}

// CloneSchedules deep copies a list of schedules.
func CloneSchedules(in []Schedule) []Schedule {
	out := make([]Schedule, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}

// PublicSchedules strips booker identities from every schedule.
func PublicSchedules(in []Schedule) []Schedule {
	out := make([]Schedule, len(in))
	for i, s := range in {
		out[i] = s.Public()
	}
	return out
}
