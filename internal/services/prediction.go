package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ihplabs/heatcast-go/internal/features"
	"github.com/ihplabs/heatcast-go/internal/models"
	"github.com/ihplabs/heatcast-go/internal/utils"
)

// PredictionService serves duration predictions against trained models,
// enforcing each model's frozen feature contract.
type PredictionService struct {
	trainer   ModelTrainer
	contracts ContractStore
	registry  ModelRegistry
	cache     ContractCache
	logger    *slog.Logger

	now func() time.Time
}

// NewPredictionService wires the prediction use case.
func NewPredictionService(
	modelTrainer ModelTrainer,
	contracts ContractStore,
	registry ModelRegistry,
	contractCache ContractCache,
	logger *slog.Logger,
) *PredictionService {
	return &PredictionService{
		trainer:   modelTrainer,
		contracts: contracts,
		registry:  registry,
		cache:     contractCache,
		logger:    logger,
		now:       time.Now,
	}
}

// Predict resolves the model, validates the request against its contract,
// imputes any missing features and returns the prediction. An incomplete
// input yields a flagged partial result, never an error.
func (s *PredictionService) Predict(ctx context.Context, req models.PredictionRequest) (*models.PredictionResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	modelID, err := s.resolveModelID(ctx, req)
	if err != nil {
		return nil, err
	}

	contract, err := s.loadContract(ctx, modelID)
	if err != nil {
		return nil, err
	}

	vector, complete, missing := features.Prepare(*contract, features.RequestFeatures(req))

	duration, err := s.trainer.Predict(ctx, modelID, vector)
	if err != nil {
		return nil, fmt.Errorf("prediction failed: %w", err)
	}
	// The regressor can extrapolate below zero near cold-start inputs.
	if duration < 0 {
		duration = 0
	}

	if !complete {
		s.logger.Info("serving partial prediction",
			"model_id", modelID,
			"missing_features", len(missing),
		)
	}

	return &models.PredictionResult{
		PredictedDurationMinutes: duration,
		ModelID:                  modelID,
		Timestamp:                s.now().UTC(),
		Reasoning:                reasoning(req, duration, complete, missing),
		IsComplete:               complete,
		MissingFeatures:          missing,
	}, nil
}

// resolveModelID returns the explicit model id, or the device's latest
// trained model.
func (s *PredictionService) resolveModelID(ctx context.Context, req models.PredictionRequest) (string, error) {
	if req.ModelID != "" {
		return req.ModelID, nil
	}
	if req.DeviceID == "" {
		return "", utils.NewValidationError("either model_id or device_id is required")
	}

	record, err := s.registry.GetLatestForDevice(ctx, req.DeviceID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve model for device %s: %w", req.DeviceID, err)
	}
	if record == nil {
		return "", utils.NewContractMismatchError(req.DeviceID, "no trained model for device")
	}
	return record.ModelID, nil
}

// loadContract reads through the cache to the authoritative file store.
func (s *PredictionService) loadContract(ctx context.Context, modelID string) (*models.FeatureContract, error) {
	if s.cache != nil {
		if contract, hit := s.cache.Get(ctx, modelID); hit {
			return contract, nil
		}
	}

	contract, err := s.contracts.Load(modelID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, *contract)
	}
	return contract, nil
}

// reasoning renders a short human-readable account of the prediction.
func reasoning(req models.PredictionRequest, duration float64, complete bool, missing []string) string {
	base := fmt.Sprintf("predicted %.1f min to raise %.1f°C to %.1f°C (delta %.1f°C, outdoor %.1f°C)",
		duration, req.IndoorTemp, req.TargetTemp, req.TempDelta(), req.OutdoorTemp)
	if complete {
		return base
	}
	return fmt.Sprintf("%s; partial input, %d feature(s) imputed", base, len(missing))
}
