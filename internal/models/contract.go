package models

import "time"

// FeatureContract is the frozen, ordered list of input feature names a
// trained model expects. It is fixed once at training completion and
// enforced at inference time; the order is load-bearing and must equal the
// column order handed to the trainer.
type FeatureContract struct {
	ModelID      string    `json:"model_id"`
	DeviceID     string    `json:"device_id,omitempty"`
	FeatureNames []string  `json:"feature_names"`
	CreatedAt    time.Time `json:"created_at"`
}

// ModelRecord is one registry row per trained model. The registry answers
// "latest model for device" lookups and model listings; the contract file
// remains the authoritative feature ordering.
type ModelRecord struct {
	ModelID         string             `json:"model_id" db:"model_id"`
	DeviceID        string             `json:"device_id,omitempty" db:"device_id"`
	TrainingSamples int                `json:"training_samples" db:"training_samples"`
	Metrics         map[string]float64 `json:"metrics" db:"metrics"`
	CreatedAt       time.Time          `json:"created_at" db:"created_at"`
}
