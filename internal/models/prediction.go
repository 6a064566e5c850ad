package models

import (
	"time"

	"github.com/ihplabs/heatcast-go/internal/utils"
)

// PredictionRequest carries the current signal values for one prediction.
type PredictionRequest struct {
	OutdoorTemp float64 `json:"outdoor_temp"`
	IndoorTemp  float64 `json:"indoor_temp"`
	TargetTemp  float64 `json:"target_temp"`
	Humidity    float64 `json:"humidity"`
	HourOfDay   int     `json:"hour_of_day"`

	// MinutesSinceLastCycle defaults to 0 when the caller does not track it.
	MinutesSinceLastCycle float64 `json:"minutes_since_last_cycle,omitempty"`

	AdjacentZones map[string]AdjacentZoneSample `json:"adjacent_zones,omitempty"`

	// DeviceID selects the latest model for that device when ModelID is
	// not given.
	DeviceID string `json:"device_id,omitempty"`
	ModelID  string `json:"model_id,omitempty"`
}

// Validate checks the prediction request values.
func (r PredictionRequest) Validate() error {
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
	return nil
}

// TempDelta returns the target-minus-indoor delta for this request.
func (r PredictionRequest) TempDelta() float64 {
	return r.TargetTemp - r.IndoorTemp
}

// PredictionResult is the outcome of one prediction. A partial result (some
// contract features imputed) is still a usable prediction; IsComplete and
// MissingFeatures let the transport layer signal the difference.
type PredictionResult struct {
	PredictedDurationMinutes float64   `json:"predicted_duration_minutes"`
	ModelID                  string    `json:"model_id"`
	Timestamp                time.Time `json:"timestamp"`
	Reasoning                string    `json:"reasoning"`
	IsComplete               bool      `json:"is_complete"`
	MissingFeatures          []string  `json:"missing_features,omitempty"`
}

// TrainingResult summarizes a completed training run.
type TrainingResult struct {
	ModelID         string             `json:"model_id"`
	DeviceID        string             `json:"device_id,omitempty"`
	TrainingSamples int                `json:"training_samples"`
	Metrics         map[string]float64 `json:"metrics"`
	CreatedAt       time.Time          `json:"created_at"`
}
