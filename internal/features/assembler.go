package features

import (
	"log/slog"
	"sort"
	"time"

	"github.com/ihplabs/heatcast-go/internal/history"
	"github.com/ihplabs/heatcast-go/internal/models"
)

// DefaultHumidity is substituted when no humidity signal is available at a
// cycle's start. Humidity is auxiliary; its absence never drops a cycle.
const DefaultHumidity = 50.0

// BaseFeatureNames is the fixed base feature set, in contract order.
var BaseFeatureNames = []string{
	"outdoor_temp",
	"indoor_temp",
	"target_temp",
	"temp_delta",
	"humidity",
	"hour_of_day",
	"minutes_since_last_cycle",
}

// ZoneFeatureSuffixes are the four per-zone feature suffixes, in contract
// order within each zone's block.
var ZoneFeatureSuffixes = []string{
	"current_temp",
	"current_humidity",
	"next_target_temp",
	"duration_until_change",
}

// ZoneFeatureName builds the contract name of one adjacent-zone feature.
func ZoneFeatureName(zone, suffix string) string {
	return zone + "_" + suffix
}

// RoleSeries binds one signal role to the history series that carries it and
// to how values are read from that series.
type RoleSeries struct {
	Series models.MergedSeries
	Kind   history.EventKind
	// Field is the attribute name for composite entities; empty for plain.
	Field string
}

// ZoneSeries carries the series of one adjacent zone's sensors.
type ZoneSeries struct {
	Zone     string
	Temp     RoleSeries
	Humidity RoleSeries
	Target   RoleSeries
}

// DeviceSeries is everything the assembler samples from: the zone's own base
// signals plus any adjacent zones. The zone slice order decides which zone is
// "seen first" when two zones both appear in the earliest row.
type DeviceSeries struct {
	Indoor   RoleSeries
	Outdoor  RoleSeries
	Target   RoleSeries
	Humidity RoleSeries
	Zones    []ZoneSeries
}

// Assembler joins signal series against detected heating cycles to produce
// training rows, and freezes the discovered feature set into an ordered
// feature name list.
type Assembler struct {
	logger *slog.Logger
}

// NewAssembler creates a feature assembler.
func NewAssembler(logger *slog.Logger) *Assembler {
	return &Assembler{logger: logger}
}

// Build samples every signal at each cycle's start time and returns the
// training rows plus the frozen, ordered feature name list.
//
// A cycle is dropped (not failed) when any required base feature is absent
// at its start. Adjacent zones join the feature set in first-seen order: the
// order in which rows first carry data for them. The returned name list is
// the column order that must be handed to the trainer and persisted as the
// model's contract.
//
// Parameters:
//
//	cycles: Detected heating cycles in chronological order.
//	series: Signal series for the device and its adjacent zones.
//
// Returns:
//
//	[]models.TrainingRow: One row per usable cycle.
//	[]string: Ordered feature names (base set plus discovered zones).
func (a *Assembler) Build(cycles []models.HeatingCycle, series DeviceSeries) ([]models.TrainingRow, []string) {
	rows := make([]models.TrainingRow, 0, len(cycles))
	var discoveredZones []string
	seenZones := make(map[string]struct{})

	var lastCycleEnd time.Time
	for _, cycle := range cycles {
		row, ok := a.buildRow(cycle, series, lastCycleEnd)
		lastCycleEnd = cycle.End
		if !ok {
			continue
		}
		if err := row.Validate(); err != nil {
			a.logger.Warn("dropping implausible training row",
				"cycle_start", cycle.Start,
				"error", err.Error(),
			)
			continue
		}

		for _, zone := range series.Zones {
			if _, present := row.AdjacentZones[zone.Zone]; !present {
				continue
			}
			if _, seen := seenZones[zone.Zone]; !seen {
				seenZones[zone.Zone] = struct{}{}
				discoveredZones = append(discoveredZones, zone.Zone)
			}
		}

		rows = append(rows, row)
	}

	featureNames := make([]string, 0, len(BaseFeatureNames)+4*len(discoveredZones))
	featureNames = append(featureNames, BaseFeatureNames...)
	for _, zone := range discoveredZones {
		for _, suffix := range ZoneFeatureSuffixes {
			featureNames = append(featureNames, ZoneFeatureName(zone, suffix))
		}
	}

	a.logger.Info("assembled training rows",
		"cycles", len(cycles),
		"rows", len(rows),
		"features", len(featureNames),
		"adjacent_zones", len(discoveredZones),
	)

	return rows, featureNames
}

// buildRow samples one cycle. Required base features are outdoor, indoor and
// target temperature; humidity falls back to a default.
func (a *Assembler) buildRow(cycle models.HeatingCycle, series DeviceSeries, lastCycleEnd time.Time) (models.TrainingRow, bool) {
	at := cycle.Start

	outdoor, ok := roleValue(series.Outdoor, at)
	if !ok {
		a.logger.Debug("dropping cycle without outdoor temperature", "cycle_start", at)
		return models.TrainingRow{}, false
	}
	indoor, ok := roleValue(series.Indoor, at)
	if !ok {
		a.logger.Debug("dropping cycle without indoor temperature", "cycle_start", at)
		return models.TrainingRow{}, false
	}
	target, ok := roleValue(series.Target, at)
	if !ok {
		a.logger.Debug("dropping cycle without target temperature", "cycle_start", at)
		return models.TrainingRow{}, false
	}

	humidity, ok := roleValue(series.Humidity, at)
	if !ok {
		humidity = DefaultHumidity
	}

	minutesSinceLast := 0.0
	if !lastCycleEnd.IsZero() && cycle.Start.After(lastCycleEnd) {
		minutesSinceLast = cycle.Start.Sub(lastCycleEnd).Minutes()
	}

	row := models.TrainingRow{
		OutdoorTemp:            outdoor,
		IndoorTemp:             indoor,
		TargetTemp:             target,
		Humidity:               humidity,
		HourOfDay:              at.Hour(),
		MinutesSinceLastCycle:  minutesSinceLast,
		HeatingDurationMinutes: cycle.DurationMinutes,
		Timestamp:              at,
	}

	for _, zone := range series.Zones {
		sample, present := zoneSample(zone, at)
		if !present {
			continue
		}
		if row.AdjacentZones == nil {
			row.AdjacentZones = make(map[string]models.AdjacentZoneSample, len(series.Zones))
		}
		row.AdjacentZones[zone.Zone] = sample
	}

	return row, true
}

// zoneSample samples one adjacent zone at an instant. A zone counts as
// present when at least one of its four fields has a value.
func zoneSample(zone ZoneSeries, at time.Time) (models.AdjacentZoneSample, bool) {
	var sample models.AdjacentZoneSample
	present := false

	if v, ok := roleValue(zone.Temp, at); ok {
		sample.CurrentTemp = &v
		present = true
	}
	if v, ok := roleValue(zone.Humidity, at); ok {
		sample.CurrentHumidity = &v
		present = true
	}
	if v, ok := roleValue(zone.Target, at); ok {
		sample.NextTargetTemp = &v
		present = true
	}
	if v, ok := durationUntilTargetChange(zone.Target, at); ok {
		sample.DurationUntilChange = &v
		present = true
	}

	return sample, present
}

// roleValue samples one role's series at an instant.
func roleValue(role RoleSeries, at time.Time) (float64, bool) {
	if len(role.Series) == 0 {
		return 0, false
	}
	return history.ValueAt(role.Series, at, role.Kind, role.Field)
}

// durationUntilTargetChange measures how long, in minutes, the zone's target
// temperature holds its current value after the instant. Absent when there
// is no current value or the target never changes within the series.
func durationUntilTargetChange(target RoleSeries, at time.Time) (float64, bool) {
	current, ok := roleValue(target, at)
	if !ok {
		return 0, false
	}

	idx := sort.Search(len(target.Series), func(i int) bool {
		return target.Series[i].ObservedAt.After(at)
	})
	for i := idx; i < len(target.Series); i++ {
		value, ok := history.RecordValue(target.Series[i], target.Kind, target.Field)
		if !ok {
			continue
		}
		if value != current {
			return target.Series[i].ObservedAt.Sub(at).Minutes(), true
		}
	}
	return 0, false
}
