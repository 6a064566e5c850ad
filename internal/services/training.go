package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ihplabs/heatcast-go/internal/config"
	"github.com/ihplabs/heatcast-go/internal/cycles"
	"github.com/ihplabs/heatcast-go/internal/features"
	"github.com/ihplabs/heatcast-go/internal/history"
	"github.com/ihplabs/heatcast-go/internal/models"
	"github.com/ihplabs/heatcast-go/internal/trainer"
	"github.com/ihplabs/heatcast-go/internal/utils"
)

// HistoryFetcher is the chunked, merged history retrieval step.
type HistoryFetcher interface {
	Fetch(ctx context.Context, entityIDs []string, start, end time.Time) (map[string]models.MergedSeries, error)
}

// ModelTrainer is the external gradient-boosted-tree sidecar.
type ModelTrainer interface {
	Train(ctx context.Context, req trainer.TrainRequest) (*trainer.TrainResponse, error)
	Predict(ctx context.Context, modelID string, featureVector []float64) (float64, error)
	DeleteModel(ctx context.Context, modelID string) error
}

// ContractStore persists feature contracts.
type ContractStore interface {
	Save(contract models.FeatureContract) error
	Load(modelID string) (*models.FeatureContract, error)
	Delete(modelID string) (bool, error)
}

// ModelRegistry records trained models.
type ModelRegistry interface {
	Insert(ctx context.Context, record models.ModelRecord) error
	Get(ctx context.Context, modelID string) (*models.ModelRecord, error)
	GetLatestForDevice(ctx context.Context, deviceID string) (*models.ModelRecord, error)
	List(ctx context.Context) ([]models.ModelRecord, error)
	ListForDevice(ctx context.Context, deviceID string) ([]models.ModelRecord, error)
	Delete(ctx context.Context, modelID string) (bool, error)
}

// ContractCache is the optional read cache in front of the contract store.
type ContractCache interface {
	Get(ctx context.Context, modelID string) (*models.FeatureContract, bool)
	Set(ctx context.Context, contract models.FeatureContract)
	Invalidate(ctx context.Context, modelID string)
}

// TrainingPipeline owns the end-to-end device-training use case: fetch
// history, extract cycles, assemble features, delegate the fit to the
// trainer sidecar and persist the resulting contract and registry record.
type TrainingPipeline struct {
	aggregator HistoryFetcher
	trainer    ModelTrainer
	contracts  ContractStore
	registry   ModelRegistry
	cache      ContractCache
	cfg        config.TrainingConfig
	logger     *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewTrainingPipeline wires the training use case.
func NewTrainingPipeline(
	aggregator HistoryFetcher,
	modelTrainer ModelTrainer,
	contracts ContractStore,
	registry ModelRegistry,
	contractCache ContractCache,
	cfg config.TrainingConfig,
	logger *slog.Logger,
) *TrainingPipeline {
	return &TrainingPipeline{
		aggregator: aggregator,
		trainer:    modelTrainer,
		contracts:  contracts,
		registry:   registry,
		cache:      contractCache,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// TrainDevice runs the full pipeline for one device configuration.
//
// Stage failures are wrapped with the stage name so callers can report which
// part of the pipeline failed.
func (p *TrainingPipeline) TrainDevice(ctx context.Context, device models.DeviceConfig) (*models.TrainingResult, error) {
	if err := device.Validate(); err != nil {
		return nil, err
	}

	end := p.now().UTC()
	start := end.Add(-time.Duration(device.HistoryDays) * 24 * time.Hour)

	entityIDs := deviceEntityIDs(device)
	p.logger.Info("starting device training",
		"device_id", device.DeviceID,
		"entities", len(entityIDs),
		"history_days", device.HistoryDays,
	)

	seriesByEntity, err := p.aggregator.Fetch(ctx, entityIDs, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch stage failed: %w", err)
	}

	detected := p.detectCycles(device, seriesByEntity)
	deviceSeries := buildDeviceSeries(device, seriesByEntity)

	rows, featureNames := features.NewAssembler(p.logger).Build(detected, deviceSeries)
	if len(rows) < p.minRows() {
		return nil, fmt.Errorf("extraction stage failed: %w",
			utils.NewInsufficientDataError(len(rows), p.minRows()))
	}

	return p.fit(ctx, device.DeviceID, rows, featureNames)
}

// TrainRows fits a model on caller-supplied training rows, bypassing history
// retrieval and cycle extraction. Zone discovery still runs so the contract
// reflects the zones actually present in the data.
func (p *TrainingPipeline) TrainRows(ctx context.Context, deviceID string, rows []models.TrainingRow) (*models.TrainingResult, error) {
	if deviceID == "" {
		return nil, utils.NewValidationError("device_id cannot be empty")
	}

	valid := make([]models.TrainingRow, 0, len(rows))
	for i, row := range rows {
		if err := row.Validate(); err != nil {
			return nil, utils.NewValidationErrorf("row %d: %v", i, err)
		}
		valid = append(valid, row)
	}
	if len(valid) < p.minRows() {
		return nil, utils.NewInsufficientDataError(len(valid), p.minRows())
	}

	return p.fit(ctx, deviceID, valid, discoverFeatureNames(valid))
}

// fit hands the assembled rows to the trainer sidecar and persists the
// contract, cache entry and registry record.
func (p *TrainingPipeline) fit(ctx context.Context, deviceID string, rows []models.TrainingRow, featureNames []string) (*models.TrainingResult, error) {
	modelID := newModelID(deviceID)

	matrix := make([][]float64, 0, len(rows))
	labels := make([]float64, 0, len(rows))
	for _, row := range rows {
		matrix = append(matrix, features.Vectorize(row, featureNames))
		labels = append(labels, row.HeatingDurationMinutes)
	}

	resp, err := p.trainer.Train(ctx, trainer.TrainRequest{
		ModelID:      modelID,
		FeatureNames: featureNames,
		Rows:         matrix,
		Labels:       labels,
	})
	if err != nil {
		return nil, fmt.Errorf("training stage failed: %w", err)
	}

	createdAt := p.now().UTC()
	contract := models.FeatureContract{
		ModelID:      modelID,
		DeviceID:     deviceID,
		FeatureNames: featureNames,
		CreatedAt:    createdAt,
	}
	if err := p.contracts.Save(contract); err != nil {
		return nil, fmt.Errorf("contract stage failed: %w", err)
	}
	if p.cache != nil {
		p.cache.Set(ctx, contract)
	}

	record := models.ModelRecord{
		ModelID:         modelID,
		DeviceID:        deviceID,
		TrainingSamples: len(rows),
		Metrics:         resp.Metrics,
		CreatedAt:       createdAt,
	}
	if err := p.registry.Insert(ctx, record); err != nil {
		return nil, fmt.Errorf("registry stage failed: %w", err)
	}

	p.logger.Info("training complete",
		"device_id", deviceID,
		"model_id", modelID,
		"rows", len(rows),
		"features", len(featureNames),
	)

	return &models.TrainingResult{
		ModelID:         modelID,
		DeviceID:        deviceID,
		TrainingSamples: len(rows),
		Metrics:         resp.Metrics,
		CreatedAt:       createdAt,
	}, nil
}

// detectCycles picks the detector per device configuration: the cumulative
// on-time counter when one is configured, otherwise heating-state
// transitions.
func (p *TrainingPipeline) detectCycles(device models.DeviceConfig, series map[string]models.MergedSeries) []models.HeatingCycle {
	minCycle := device.MinCycleMinutes
	if minCycle == 0 {
		minCycle = p.cfg.MinCycleMinutes
	}
	maxCycle := p.cfg.MaxCycleMinutes

	if device.OnTimeEntityID != "" {
		buffer := device.OnTimeBufferMinutes
		if buffer == 0 {
			buffer = p.cfg.OnTimeBufferMinutes
		}
		detector := cycles.NewOnTimeDetector(buffer, minCycle, maxCycle, p.logger)
		return detector.Detect(series[device.OnTimeEntityID])
	}

	kind := history.KindForEntity(device.HeatingStateEntityID)
	detector := cycles.NewTransitionDetector(kind, minCycle, maxCycle, p.logger)
	return detector.Detect(series[device.HeatingStateEntityID])
}

func (p *TrainingPipeline) minRows() int {
	if p.cfg.MinTrainingRows < 1 {
		return 10
	}
	return p.cfg.MinTrainingRows
}

// deviceEntityIDs gathers every entity the pipeline must fetch.
func deviceEntityIDs(device models.DeviceConfig) []string {
	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if id == "" {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	add(device.IndoorTempEntityID)
	add(device.OutdoorTempEntityID)
	add(device.TargetTempEntityID)
	add(device.HeatingStateEntityID)
	add(device.HumidityEntityID)
	add(device.OnTimeEntityID)
	for _, zone := range sortedZoneNames(device.AdjacentZones) {
		entities := device.AdjacentZones[zone]
		add(entities.TempEntityID)
		add(entities.HumidityEntityID)
		add(entities.TargetTempEntityID)
	}
	return ids
}

// buildDeviceSeries binds each signal role to its series and read path. A
// climate-style entity serves several roles through its attributes; plain
// sensors serve one role each.
func buildDeviceSeries(device models.DeviceConfig, series map[string]models.MergedSeries) features.DeviceSeries {
	ds := features.DeviceSeries{
		Indoor:   roleSeries(device.IndoorTempEntityID, series, history.FieldCurrentTemperature),
		Outdoor:  roleSeries(device.OutdoorTempEntityID, series, history.FieldOutdoorTemperature),
		Target:   roleSeries(device.TargetTempEntityID, series, history.FieldTargetTemperature),
		Humidity: roleSeries(device.HumidityEntityID, series, history.FieldHumidity),
	}

	for _, zone := range sortedZoneNames(device.AdjacentZones) {
		entities := device.AdjacentZones[zone]
		ds.Zones = append(ds.Zones, features.ZoneSeries{
			Zone:     zone,
			Temp:     roleSeries(entities.TempEntityID, series, history.FieldCurrentTemperature),
			Humidity: roleSeries(entities.HumidityEntityID, series, history.FieldHumidity),
			Target:   roleSeries(entities.TargetTempEntityID, series, history.FieldTargetTemperature),
		})
	}
	return ds
}

func roleSeries(entityID string, series map[string]models.MergedSeries, compositeField string) features.RoleSeries {
	if entityID == "" {
		return features.RoleSeries{}
	}
	kind := history.KindForEntity(entityID)
	role := features.RoleSeries{Series: series[entityID], Kind: kind}
	if kind == history.EventKindComposite {
		role.Field = compositeField
	}
	return role
}

// discoverFeatureNames freezes the feature ordering for caller-supplied
// rows: the base set plus adjacent zones in first-seen row order. Zone names
// within a single row are ordered lexicographically to keep discovery
// deterministic.
func discoverFeatureNames(rows []models.TrainingRow) []string {
	seen := make(map[string]struct{})
	var zones []string
	for _, row := range rows {
		rowZones := make([]string, 0, len(row.AdjacentZones))
		for zone := range row.AdjacentZones {
			rowZones = append(rowZones, zone)
		}
		sort.Strings(rowZones)
		for _, zone := range rowZones {
			if _, dup := seen[zone]; dup {
				continue
			}
			seen[zone] = struct{}{}
			zones = append(zones, zone)
		}
	}

	names := make([]string, 0, len(features.BaseFeatureNames)+4*len(zones))
	names = append(names, features.BaseFeatureNames...)
	for _, zone := range zones {
		for _, suffix := range features.ZoneFeatureSuffixes {
			names = append(names, features.ZoneFeatureName(zone, suffix))
		}
	}
	return names
}

func sortedZoneNames(zones map[string]models.ZoneEntities) []string {
	names := make([]string, 0, len(zones))
	for name := range zones {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// newModelID builds a model identifier from the device and a short random
// suffix.
func newModelID(deviceID string) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("gbt_%s_%s", deviceID, suffix)
}
