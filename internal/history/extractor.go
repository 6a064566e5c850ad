package history

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ihplabs/heatcast-go/internal/models"
)

// EventKind classifies how numeric values are read from an entity's records.
type EventKind int

const (
	// EventKindPlain reads the numeric value from the record state itself
	// (sensors, counters).
	EventKindPlain EventKind = iota
	// EventKindComposite reads named numeric values from the record's
	// attribute map (climate entities).
	EventKindComposite
)

// Recognized composite attribute fields.
const (
	FieldCurrentTemperature = "current_temperature"
	FieldTargetTemperature  = "temperature"
	FieldOutdoorTemperature = "ext_current_temperature"
	FieldHumidity           = "humidity"
	FieldHVACAction         = "hvac_action"
	FieldHVACMode           = "hvac_mode"
)

// Sensor states that carry no value.
var nonNumericStates = map[string]struct{}{
	"":            {},
	"unknown":     {},
	"unavailable": {},
	"none":        {},
}

// KindForEntity resolves the event kind once per entity from its ID. Climate
// entities are composite; everything else reports a plain state value.
func KindForEntity(entityID string) EventKind {
	if strings.HasPrefix(entityID, "climate.") {
		return EventKindComposite
	}
	return EventKindPlain
}

// ValueAt returns the value of the most recent record at or before the given
// instant. For plain entities the field is ignored and the record state is
// parsed; for composite entities the named attribute is read. Records whose
// value is absent or unparseable are skipped in favor of the next older one.
//
// Parameters:
//
//	series: Chronologically ordered series for one entity.
//	at: Instant to sample.
//	kind: How values are read from the entity's records.
//	field: Attribute name, used only for composite entities.
//
// Returns:
//
//	float64: Sampled value.
//	bool: False when no record at or before the instant carries a value.
func ValueAt(series models.MergedSeries, at time.Time, kind EventKind, field string) (float64, bool) {
	// First index strictly after the instant; everything before it is a
	// candidate, newest first.
	idx := sort.Search(len(series), func(i int) bool {
		return series[i].ObservedAt.After(at)
	})

	for i := idx - 1; i >= 0; i-- {
		if value, ok := RecordValue(series[i], kind, field); ok {
			return value, true
		}
	}
	return 0, false
}

// RecordValue reads the numeric value of a single record.
func RecordValue(record models.RawHistoryRecord, kind EventKind, field string) (float64, bool) {
	if kind == EventKindComposite {
		if record.Attributes == nil {
			return 0, false
		}
		return numericAttribute(record.Attributes[field])
	}

	state := strings.ToLower(strings.TrimSpace(record.RawState))
	if _, skip := nonNumericStates[state]; skip {
		return 0, false
	}
	value, err := strconv.ParseFloat(record.RawState, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// StringAttribute reads a string attribute from a record, for discrete
// fields such as the HVAC action.
func StringAttribute(record models.RawHistoryRecord, field string) (string, bool) {
	if record.Attributes == nil {
		return "", false
	}
	raw, present := record.Attributes[field]
	if !present {
		return "", false
	}
	value, ok := raw.(string)
	return value, ok
}

// numericAttribute coerces a decoded JSON attribute value to float64.
// History payloads deliver numbers as float64 but some integrations report
// them as strings.
func numericAttribute(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		value, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return value, true
	default:
		return 0, false
	}
}
