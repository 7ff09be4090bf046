package booking

import "slotbook/models"

// Duplicate records bookings that share a slot key. Kept is the booking shown
// in the grid; the rest are ignored until cleaned up.
type Duplicate struct {
	BookingTime string
	Kept        string
	Ignored     []string
}

// Merge recomputes the derived booking fields of every slot in base from the
// snapshot. base is never modified. When several bookings share a slot key the
// first one in snapshot order wins and the collision is reported.
func Merge(base []models.Schedule, bookings []models.Booking) ([]models.Schedule, []Duplicate) {
	index := make(map[string]models.Booking, len(bookings))
	dupIndex := make(map[string]int)
	var dups []Duplicate
	for _, b := range bookings {
		first, seen := index[b.BookingTime]
		if !seen {
			index[b.BookingTime] = b
			continue
		}
		i, ok := dupIndex[b.BookingTime]
		if !ok {
			i = len(dups)
			dupIndex[b.BookingTime] = i
			dups = append(dups, Duplicate{BookingTime: b.BookingTime, Kept: first.ID})
		}
		dups[i].Ignored = append(dups[i].Ignored, b.ID)
	}

	out := make([]models.Schedule, len(base))
	for i, s := range base {
		merged := models.Schedule{Date: s.Date, Day: s.Day, Slots: make([]models.TimeSlot, len(s.Slots))}
		for j, slot := range s.Slots {
			derived := models.TimeSlot{Time: slot.Time, DateTime: slot.DateTime}
			if b, ok := index[slot.DateTime]; ok {
				derived.IsBooked = true
				derived.BookingID = b.ID
				derived.BookerName = b.BookerName
			}
			merged.Slots[j] = derived
		}
		out[i] = merged
	}
	return out, dups
}
