package notify

import "time"

// Schedule is one notification schedule. Time is a daily "HH:MM" in the
// schedule's timezone; Expr optionally replaces it with a 5-field cron
// expression. Either way a schedule fires at most once per local
// calendar day, tracked by LastSentLocalDate.
type Schedule struct {
	ID                string    `json:"id"`
	MissionID         string    `json:"missionId,omitempty"`
	Label             string    `json:"label"`
	Message           string    `json:"message"`
	Time              string    `json:"time"`
	Expr              string    `json:"expr,omitempty"`
	Timezone          string    `json:"timezone"`
	Enabled           bool      `json:"enabled"`
	ChatIDs           []string  `json:"chatIds"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
	LastSentLocalDate string    `json:"lastSentLocalDate,omitempty"`
	LastStatus        string    `json:"lastStatus,omitempty"` // ok, error, skipped
	LastError         string    `json:"lastError,omitempty"`
}

// Location resolves the schedule's timezone, defaulting to UTC.
func (s *Schedule) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
