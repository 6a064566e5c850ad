package models

import (
	"time"

	"github.com/ihplabs/heatcast-go/internal/utils"
)

// AdjacentZoneSample holds the four auxiliary signals contributed by one
// adjacent zone. Any field may be absent; absence means imputation with 0.0
// at assembly or inference time.
type AdjacentZoneSample struct {
	CurrentTemp         *float64 `json:"current_temp,omitempty"`
	CurrentHumidity     *float64 `json:"current_humidity,omitempty"`
	NextTargetTemp      *float64 `json:"next_target_temp,omitempty"`
	DurationUntilChange *float64 `json:"duration_until_change,omitempty"`
}

// TrainingRow is a single training example: the fixed base features, any
// adjacent-zone features, and the heating duration label.
type TrainingRow struct {
	OutdoorTemp           float64 `json:"outdoor_temp"`
	IndoorTemp            float64 `json:"indoor_temp"`
	TargetTemp            float64 `json:"target_temp"`
	Humidity              float64 `json:"humidity"`
	HourOfDay             int     `json:"hour_of_day"`
	MinutesSinceLastCycle float64 `json:"minutes_since_last_cycle"`

	// AdjacentZones maps zone id to that zone's sample. Zones missing here
	// are imputed against the discovered contract.
	AdjacentZones map[string]AdjacentZoneSample `json:"adjacent_zones,omitempty"`

	// HeatingDurationMinutes is the label.
	HeatingDurationMinutes float64 `json:"heating_duration_minutes"`

	Timestamp time.Time `json:"timestamp"`
}

// TempDelta returns the computed target-minus-indoor feature. It is always
// derived, never supplied directly.
func (r TrainingRow) TempDelta() float64 {
	return r.TargetTemp - r.IndoorTemp
}

// Validate checks that the row's values are physically plausible. The
// ranges come from the sensors this service is pointed at; anything outside
// them is a parsing or unit error upstream.
func (r TrainingRow) Validate() error {
	if r.OutdoorTemp < -50 || r.OutdoorTemp > 60 {
		return utils.NewValidationErrorf("outdoor_temp must be between -50 and 60, got %g", r.OutdoorTemp)
	}
	if r.IndoorTemp < -20 || r.IndoorTemp > 50 {
		return utils.NewValidationErrorf("indoor_temp must be between -20 and 50, got %g", r.IndoorTemp)
	}
	if r.TargetTemp < 0 || r.TargetTemp > 50 {
		return utils.NewValidationErrorf("target_temp must be between 0 and 50, got %g", r.TargetTemp)
	}
	if r.Humidity < 0 || r.Humidity > 100 {
		return utils.NewValidationErrorf("humidity must be between 0 and 100, got %g", r.Humidity)
	}
	if r.HourOfDay < 0 || r.HourOfDay > 23 {
		return utils.NewValidationErrorf("hour_of_day must be between 0 and 23, got %d", r.HourOfDay)
	}
	if r.MinutesSinceLastCycle < 0 {
		return utils.NewValidationErrorf("minutes_since_last_cycle must be non-negative, got %g", r.MinutesSinceLastCycle)
	}
	if r.HeatingDurationMinutes < 0 {
		return utils.NewValidationErrorf("heating_duration_minutes must be non-negative, got %g", r.HeatingDurationMinutes)
	}
	return nil
}

// ZoneEntities identifies the sensors of one adjacent zone.
type ZoneEntities struct {
	TempEntityID       string `json:"temp_entity_id"`
	HumidityEntityID   string `json:"humidity_entity_id,omitempty"`
	TargetTempEntityID string `json:"target_temp_entity_id"`
}

// DeviceConfig tells the training pipeline which entities carry each signal
// role for one heating zone, plus the lookback window and cycle-detection
// tuning.
type DeviceConfig struct {
	DeviceID string `json:"device_id"`

	IndoorTempEntityID   string `json:"indoor_temp_entity_id"`
	OutdoorTempEntityID  string `json:"outdoor_temp_entity_id"`
	TargetTempEntityID   string `json:"target_temp_entity_id"`
	HeatingStateEntityID string `json:"heating_state_entity_id"`
	HumidityEntityID     string `json:"humidity_entity_id,omitempty"`

	// OnTimeEntityID selects the cumulative-counter detector when set. The
	// counter sensor survives the source system's retention policy where
	// raw mode/action history does not.
	OnTimeEntityID string `json:"on_time_entity_id,omitempty"`

	HistoryDays         int `json:"history_days"`
	MinCycleMinutes     int `json:"min_cycle_minutes,omitempty"`
	OnTimeBufferMinutes int `json:"on_time_buffer_minutes,omitempty"`

	// AdjacentZones maps zone id to that zone's sensor entities.
	AdjacentZones map[string]ZoneEntities `json:"adjacent_zones,omitempty"`
}

// Validate checks the device configuration.
func (c DeviceConfig) Validate() error {
	if c.DeviceID == "" {
		return utils.NewValidationError("device_id cannot be empty")
	}
	if c.IndoorTempEntityID == "" {
		return utils.NewValidationError("indoor_temp_entity_id cannot be empty")
	}
	if c.OutdoorTempEntityID == "" {
		return utils.NewValidationError("outdoor_temp_entity_id cannot be empty")
	}
	if c.TargetTempEntityID == "" {
		return utils.NewValidationError("target_temp_entity_id cannot be empty")
	}
	if c.HeatingStateEntityID == "" && c.OnTimeEntityID == "" {
		return utils.NewValidationError("either heating_state_entity_id or on_time_entity_id is required")
	}
	if c.HistoryDays < 1 || c.HistoryDays > 365 {
		return utils.NewValidationErrorf("history_days must be between 1 and 365, got %d", c.HistoryDays)
	}
	if c.OnTimeBufferMinutes < 0 {
		return utils.NewValidationErrorf("on_time_buffer_minutes must be non-negative, got %d", c.OnTimeBufferMinutes)
	}
	for zone, entities := range c.AdjacentZones {
		if entities.TempEntityID == "" && entities.TargetTempEntityID == "" {
			return utils.NewValidationErrorf("adjacent zone %q has no entities configured", zone)
		}
	}
	return nil
}
