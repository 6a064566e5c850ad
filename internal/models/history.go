package models

import "time"

// RawHistoryRecord is one state observation fetched from the history
// service. Immutable once fetched.
type RawHistoryRecord struct {
	EntityID   string                 `json:"entity_id"`
	ObservedAt time.Time              `json:"observed_at"`
	RawState   string                 `json:"raw_state"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// MergedSeries is the chronologically ordered event series for one entity:
// non-decreasing ObservedAt, no duplicate (observed_at, raw_state) pairs.
type MergedSeries []RawHistoryRecord
