package cycles

import (
	"log/slog"
	"strings"
	"time"

	"github.com/ihplabs/heatcast-go/internal/history"
	"github.com/ihplabs/heatcast-go/internal/models"
)

// TransitionDetector extracts heating cycles from a series whose records
// flip between an idle and an actively-heating state. A cycle opens on the
// idle-to-heating transition and closes on the next heating-to-idle one.
type TransitionDetector struct {
	kind     history.EventKind
	minCycle time.Duration
	maxCycle time.Duration
	logger   *slog.Logger
}

// NewTransitionDetector creates a transition detector for an entity of the
// given kind.
//
// Parameters:
//
//	kind: How heating activity is read from the entity's records.
//	minCycleMinutes: Cycles shorter than this are dropped as noise.
//	maxCycleMinutes: Cycles longer than this are dropped as implausible.
//	logger: Structured logger.
//
// Returns:
//
//	*TransitionDetector: Initialized detector.
func NewTransitionDetector(kind history.EventKind, minCycleMinutes, maxCycleMinutes int, logger *slog.Logger) *TransitionDetector {
	return &TransitionDetector{
		kind:     kind,
		minCycle: time.Duration(minCycleMinutes) * time.Minute,
		maxCycle: time.Duration(maxCycleMinutes) * time.Minute,
		logger:   logger,
	}
}

// Detect walks the series chronologically and returns the closed heating
// cycles in order. A cycle still open at the end of the series has no known
// end and is discarded.
func (d *TransitionDetector) Detect(series models.MergedSeries) []models.HeatingCycle {
	var (
		cycles     []models.HeatingCycle
		active     bool
		cycleStart time.Time
	)

	for _, rec := range series {
		heating := heatingActive(rec, d.kind)
		switch {
		case heating && !active:
			active = true
			cycleStart = rec.ObservedAt
		case !heating && active:
			active = false
			if cycle, ok := boundedCycle(cycleStart, rec.ObservedAt, d.minCycle, d.maxCycle); ok {
				cycles = append(cycles, cycle)
			} else {
				d.logger.Debug("discarded out-of-bounds heating cycle",
					"start", cycleStart,
					"end", rec.ObservedAt,
				)
			}
		}
	}

	if active {
		d.logger.Debug("discarded trailing open heating cycle", "start", cycleStart)
	}

	return cycles
}

// heatingActive reports whether a single record shows the zone actively
// heating. Composite records carry the action as an attribute; plain records
// carry it as the state itself.
func heatingActive(rec models.RawHistoryRecord, kind history.EventKind) bool {
	if kind == history.EventKindComposite {
		if action, ok := history.StringAttribute(rec, history.FieldHVACAction); ok {
			action = strings.ToLower(strings.TrimSpace(action))
			return action == "heating" || action == "on"
		}
		// Older integrations report the action through the state.
		return strings.ToLower(strings.TrimSpace(rec.RawState)) == "heating"
	}

	switch strings.ToLower(strings.TrimSpace(rec.RawState)) {
	case "on", "heat", "heating", "true", "1":
		return true
	}
	return false
}

// boundedCycle builds a cycle and checks it against the plausibility bounds.
func boundedCycle(start, end time.Time, minCycle, maxCycle time.Duration) (models.HeatingCycle, bool) {
	span := end.Sub(start)
	if span < minCycle || span > maxCycle {
		return models.HeatingCycle{}, false
	}
	return models.NewHeatingCycle(start, end), true
}
