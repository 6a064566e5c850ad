package homeassistant

import (
	"time"

	"github.com/ihplabs/heatcast-go/internal/models"
)

// stateRecord is the wire shape of one state observation in a history
// response. The history endpoint returns a list of per-entity record lists.
type stateRecord struct {
	EntityID    string                 `json:"entity_id"`
	State       string                 `json:"state"`
	Attributes  map[string]interface{} `json:"attributes,omitempty"`
	LastChanged string                 `json:"last_changed,omitempty"`
	LastUpdated string                 `json:"last_updated,omitempty"`
}

// observedAt resolves the record timestamp, preferring last_changed. The
// API emits RFC 3339 with either a Z or a numeric offset.
func (r stateRecord) observedAt() (time.Time, bool) {
	for _, raw := range []string{r.LastChanged, r.LastUpdated} {
		if raw == "" {
			continue
		}
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// toRecord converts a wire record into the domain shape. Records without a
// parseable timestamp are dropped by the caller.
func (r stateRecord) toRecord(entityID string) (models.RawHistoryRecord, bool) {
	ts, ok := r.observedAt()
	if !ok {
		return models.RawHistoryRecord{}, false
	}
	if r.EntityID != "" {
		entityID = r.EntityID
	}
	return models.RawHistoryRecord{
		EntityID:   entityID,
		ObservedAt: ts,
		RawState:   r.State,
		Attributes: r.Attributes,
	}, true
}

// errorResponse is the error payload shape of the history API.
type errorResponse struct {
	Message string `json:"message"`
}
