package reschedule

import "time"

// HasConflict reports whether any event other than excludeID overlaps
// the half-open window [startAt, endAt). Pure function, no I/O.
func HasConflict(events []CalendarEvent, startAt, endAt time.Time, excludeID string) bool {
	for _, ev := range events {
		if excludeID != "" && ev.ID == excludeID {
			continue
		}
		if ev.Start.Before(endAt) && ev.End.After(startAt) {
			return true
		}
	}
	return false
}
