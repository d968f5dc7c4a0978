package reschedule

import (
	"context"
	"time"
)

// Override moves a mission's next run to a new instant without touching
// the mission graph. Deleting it restores the original trigger time.
type Override struct {
	OwnerID      string    `json:"ownerId"`
	MissionID    string    `json:"missionId"`
	NewStartAt   time.Time `json:"newStartAt"`
	OriginalTime time.Time `json:"originalTime"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CalendarEvent is one aggregated calendar entry inside a lookup window.
type CalendarEvent struct {
	ID    string    `json:"id"`
	Title string    `json:"title,omitempty"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// CalendarAggregator returns the owner's events between windowStart and
// windowEnd. Implementations live outside the core; callers pass a
// context with a timeout so a slow calendar cannot stall a reschedule.
type CalendarAggregator interface {
	Events(ctx context.Context, ownerID string, windowStart, windowEnd time.Time) ([]CalendarEvent, error)
}
