package models

import "time"

// HeatingCycle represents one continuous interval during which a zone was
// actively calling for heat, as distinct from the device's on/off duty
// cycling inside that interval.
type HeatingCycle struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes float64   `json:"duration_minutes"`
}

// NewHeatingCycle builds a cycle from its endpoints, deriving the duration
// from wall-clock span.
func NewHeatingCycle(start, end time.Time) HeatingCycle {
	return HeatingCycle{
		Start:           start,
		End:             end,
		DurationMinutes: end.Sub(start).Minutes(),
	}
}
