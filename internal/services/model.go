package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ihplabs/heatcast-go/internal/models"
)

// ModelService answers model listings and owns model deletion, which must
// touch the registry, the contract store, the cache and the sidecar's
// artifact together.
type ModelService struct {
	trainer   ModelTrainer
	contracts ContractStore
	registry  ModelRegistry
	cache     ContractCache
	logger    *slog.Logger
}

// NewModelService wires the model management use case.
func NewModelService(
	modelTrainer ModelTrainer,
	contracts ContractStore,
	registry ModelRegistry,
	contractCache ContractCache,
	logger *slog.Logger,
) *ModelService {
	return &ModelService{
		trainer:   modelTrainer,
		contracts: contracts,
		registry:  registry,
		cache:     contractCache,
		logger:    logger,
	}
}

// List returns all trained models, newest first.
func (s *ModelService) List(ctx context.Context) ([]models.ModelRecord, error) {
	return s.registry.List(ctx)
}

// ListForDevice returns one device's trained models, newest first.
func (s *ModelService) ListForDevice(ctx context.Context, deviceID string) ([]models.ModelRecord, error) {
	return s.registry.ListForDevice(ctx, deviceID)
}

// Get returns one model record, or nil when unknown.
func (s *ModelService) Get(ctx context.Context, modelID string) (*models.ModelRecord, error) {
	return s.registry.Get(ctx, modelID)
}

// Delete removes a model everywhere: registry record, contract file, cache
// entry and the sidecar's artifact. Reports whether the model existed.
func (s *ModelService) Delete(ctx context.Context, modelID string) (bool, error) {
	removed, err := s.registry.Delete(ctx, modelID)
	if err != nil {
		return false, fmt.Errorf("failed to delete registry record: %w", err)
	}

	if _, err := s.contracts.Delete(modelID); err != nil {
		return removed, fmt.Errorf("failed to delete contract: %w", err)
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, modelID)
	}
	if err := s.trainer.DeleteModel(ctx, modelID); err != nil {
		// The registry row and contract are already gone; report but do not
		// resurrect them.
		s.logger.Warn("failed to delete trainer artifact", "model_id", modelID, "error", err.Error())
	}

	if removed {
		s.logger.Info("deleted model", "model_id", modelID)
	}
	return removed, nil
}
