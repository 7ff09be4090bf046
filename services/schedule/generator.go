// Package schedule builds the fixed slot grids shown for each configured day.
package schedule

import (
	"fmt"
	"time"

	"slotbook/models"
)

// SlotDuration is the width of every generated slot.
const SlotDuration = 15 * time.Minute

// KeyLayout is the canonical slot key format: UTC with millisecond precision.
const KeyLayout = "2006-01-02T15:04:05.000Z"

const (
	dateLayout  = "2006-01-02"
	labelLayout = "15:04"
)

// TimeOfDay is a wall clock hour and minute.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse(labelLayout, s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On returns the instant of t on the calendar day of date, in date's location.
func (t TimeOfDay) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, date.Location())
}

// Key renders an instant as a canonical slot key.
func Key(t time.Time) string {
	return t.UTC().Format(KeyLayout)
}

// NormalizeKey parses an RFC 3339 timestamp and returns its canonical key, so
// that equal instants written with different offsets address the same slot.
func NormalizeKey(s string) (string, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return "", fmt.Errorf("invalid booking time %q: %w", s, err)
	}
	return Key(t), nil
}

// Generate returns the slots of date between start and end. Labels use the
// wall clock of date's location. A slot is emitted only when its whole window
// ends at or before end, so start >= end yields no slots.
func Generate(date time.Time, start, end TimeOfDay) []models.TimeSlot {
	from := start.On(date)
	until := end.On(date)

	slots := []models.TimeSlot{}
	for cur := from; !cur.Add(SlotDuration).After(until); cur = cur.Add(SlotDuration) {
		slots = append(slots, models.TimeSlot{
			Time:     cur.Format(labelLayout),
			DateTime: Key(cur),
		})
	}
	return slots
}

// Build generates the base schedules for the configured days in loc.
func Build(days []models.DayConfig, loc *time.Location) ([]models.Schedule, error) {
	if loc == nil {
		loc = time.UTC
	}
	schedules := make([]models.Schedule, 0, len(days))
	for i, day := range days {
		date, err := time.ParseInLocation(dateLayout, day.Date, loc)
		if err != nil {
			return nil, fmt.Errorf("day %d: invalid date %q: %w", i+1, day.Date, err)
		}
		start, err := ParseTimeOfDay(day.Start)
		if err != nil {
			return nil, fmt.Errorf("day %d: %w", i+1, err)
		}
		end, err := ParseTimeOfDay(day.End)
		if err != nil {
			return nil, fmt.Errorf("day %d: %w", i+1, err)
		}
		label := day.Label
		if label == "" {
			label = day.Date
		}
		schedules = append(schedules, models.Schedule{
			Date:  label,
			Day:   day.Date,
			Slots: Generate(date, start, end),
		})
	}
	return schedules, nil
}

// SlotKeys returns the set of slot keys present in schedules.
func SlotKeys(schedules []models.Schedule) map[string]struct{} {
	keys := make(map[string]struct{})
	for _, s := range schedules {
		for _, slot := range s.Slots {
			keys[slot.DateTime] = struct{}{}
		}
	}
	return keys
}
