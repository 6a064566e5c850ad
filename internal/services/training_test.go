package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ihplabs/heatcast-go/internal/config"
	"github.com/ihplabs/heatcast-go/internal/features"
	"github.com/ihplabs/heatcast-go/internal/models"
	"github.com/ihplabs/heatcast-go/internal/trainer"
	"github.com/ihplabs/heatcast-go/internal/utils"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeAggregator struct {
	series map[string]models.MergedSeries
	err    error

	gotEntityIDs []string
	gotStart     time.Time
	gotEnd       time.Time
}

func (f *fakeAggregator) Fetch(_ context.Context, entityIDs []string, start, end time.Time) (map[string]models.MergedSeries, error) {
	f.gotEntityIDs = entityIDs
	f.gotStart = start
	f.gotEnd = end
	if f.err != nil {
		return nil, f.err
	}
	result := make(map[string]models.MergedSeries, len(entityIDs))
	for _, id := range entityIDs {
		result[id] = f.series[id]
	}
	return result, nil
}

type fakeTrainer struct {
	trainReq   *trainer.TrainRequest
	trainErr   error
	metrics    map[string]float64
	prediction float64
	predictErr error
	predicted  [][]float64
	deleted    []string
}

func (f *fakeTrainer) Train(_ context.Context, req trainer.TrainRequest) (*trainer.TrainResponse, error) {
	f.trainReq = &req
	if f.trainErr != nil {
		return nil, f.trainErr
	}
	metrics := f.metrics
	if metrics == nil {
		metrics = map[string]float64{"mae": 4.0, "r2": 0.8}
	}
	return &trainer.TrainResponse{
		ModelID:         req.ModelID,
		TrainingSamples: len(req.Rows),
		Metrics:         metrics,
	}, nil
}

func (f *fakeTrainer) Predict(_ context.Context, _ string, featureVector []float64) (float64, error) {
	f.predicted = append(f.predicted, featureVector)
	if f.predictErr != nil {
		return 0, f.predictErr
	}
	return f.prediction, nil
}

func (f *fakeTrainer) DeleteModel(_ context.Context, modelID string) error {
	f.deleted = append(f.deleted, modelID)
	return nil
}

type fakeContractStore struct {
	saved   map[string]models.FeatureContract
	saveErr error
	loadErr error
}

func newFakeContractStore() *fakeContractStore {
	return &fakeContractStore{saved: make(map[string]models.FeatureContract)}
}

func (f *fakeContractStore) Save(contract models.FeatureContract) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved[contract.ModelID] = contract
	return nil
}

func (f *fakeContractStore) Load(modelID string) (*models.FeatureContract, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	contract, ok := f.saved[modelID]
	if !ok {
		return nil, utils.NewContractMismatchError(modelID, "contract file not found")
	}
	return &contract, nil
}

func (f *fakeContractStore) Delete(modelID string) (bool, error) {
	_, ok := f.saved[modelID]
	delete(f.saved, modelID)
	return ok, nil
}

type fakeRegistry struct {
	inserted []models.ModelRecord
	records  map[string]models.ModelRecord
	latest   map[string]models.ModelRecord
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		records: make(map[string]models.ModelRecord),
		latest:  make(map[string]models.ModelRecord),
	}
}

func (f *fakeRegistry) Insert(_ context.Context, record models.ModelRecord) error {
	f.inserted = append(f.inserted, record)
	f.records[record.ModelID] = record
	f.latest[record.DeviceID] = record
	return nil
}

func (f *fakeRegistry) Get(_ context.Context, modelID string) (*models.ModelRecord, error) {
	record, ok := f.records[modelID]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (f *fakeRegistry) GetLatestForDevice(_ context.Context, deviceID string) (*models.ModelRecord, error) {
	record, ok := f.latest[deviceID]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (f *fakeRegistry) List(_ context.Context) ([]models.ModelRecord, error) {
	var records []models.ModelRecord
	for _, record := range f.records {
		records = append(records, record)
	}
	return records, nil
}

func (f *fakeRegistry) ListForDevice(_ context.Context, deviceID string) ([]models.ModelRecord, error) {
	var records []models.ModelRecord
	for _, record := range f.records {
		if record.DeviceID == deviceID {
			records = append(records, record)
		}
	}
	return records, nil
}

func (f *fakeRegistry) Delete(_ context.Context, modelID string) (bool, error) {
	_, ok := f.records[modelID]
	delete(f.records, modelID)
	return ok, nil
}

type fakeCache struct {
	entries map[string]models.FeatureContract
	sets    int
	hits    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]models.FeatureContract)}
}

func (f *fakeCache) Get(_ context.Context, modelID string) (*models.FeatureContract, bool) {
	contract, ok := f.entries[modelID]
	if !ok {
		return nil, false
	}
	f.hits++
	return &contract, true
}

func (f *fakeCache) Set(_ context.Context, contract models.FeatureContract) {
	f.sets++
	f.entries[contract.ModelID] = contract
}

func (f *fakeCache) Invalidate(_ context.Context, modelID string) {
	delete(f.entries, modelID)
}

func testTrainingConfig() config.TrainingConfig {
	return config.TrainingConfig{
		MinTrainingRows:     10,
		MinCycleMinutes:     5,
		MaxCycleMinutes:     300,
		OnTimeBufferMinutes: 15,
	}
}

// trainingHistory builds a realistic week of history: hourly 30-minute
// heating cycles plus stable base sensors.
func trainingHistory(base time.Time, cycleCount int) map[string]models.MergedSeries {
	series := make(map[string]models.MergedSeries)

	sensor := func(id, state string) {
		series[id] = models.MergedSeries{{EntityID: id, ObservedAt: base, RawState: state}}
	}
	sensor("sensor.outdoor", "-2.0")
	sensor("sensor.indoor", "18.0")
	sensor("sensor.target", "21.0")
	sensor("sensor.humidity", "48.0")

	var heating models.MergedSeries
	for i := 0; i < cycleCount; i++ {
		hour := base.Add(time.Duration(i) * time.Hour)
		heating = append(heating,
			models.RawHistoryRecord{EntityID: "binary_sensor.heating", ObservedAt: hour, RawState: "off"},
			models.RawHistoryRecord{EntityID: "binary_sensor.heating", ObservedAt: hour.Add(10 * time.Minute), RawState: "on"},
			models.RawHistoryRecord{EntityID: "binary_sensor.heating", ObservedAt: hour.Add(40 * time.Minute), RawState: "off"},
		)
	}
	series["binary_sensor.heating"] = heating

	return series
}

func testDevice() models.DeviceConfig {
	return models.DeviceConfig{
		DeviceID:             "livingroom",
		IndoorTempEntityID:   "sensor.indoor",
		OutdoorTempEntityID:  "sensor.outdoor",
		TargetTempEntityID:   "sensor.target",
		HeatingStateEntityID: "binary_sensor.heating",
		HumidityEntityID:     "sensor.humidity",
		HistoryDays:          7,
	}
}

func newTestPipeline(agg *fakeAggregator) (*TrainingPipeline, *fakeTrainer, *fakeContractStore, *fakeRegistry, *fakeCache) {
	ft := &fakeTrainer{}
	store := newFakeContractStore()
	registry := newFakeRegistry()
	cacheFake := newFakeCache()
	pipeline := NewTrainingPipeline(agg, ft, store, registry, cacheFake, testTrainingConfig(), testLogger())
	return pipeline, ft, store, registry, cacheFake
}

func TestTrainDeviceEndToEnd(t *testing.T) {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	agg := &fakeAggregator{series: trainingHistory(base, 12)}
	pipeline, ft, store, registry, cacheFake := newTestPipeline(agg)
	pipeline.now = func() time.Time { return base.Add(13 * time.Hour) }

	result, err := pipeline.TrainDevice(context.Background(), testDevice())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(result.ModelID, "gbt_livingroom_"))
	assert.Equal(t, 12, result.TrainingSamples)
	assert.InDelta(t, 0.8, result.Metrics["r2"], 0.001)

	// The trainer saw one row per cycle with the base feature columns.
	require.NotNil(t, ft.trainReq)
	assert.Equal(t, features.BaseFeatureNames, ft.trainReq.FeatureNames)
	require.Len(t, ft.trainReq.Rows, 12)
	require.Len(t, ft.trainReq.Labels, 12)
	for _, label := range ft.trainReq.Labels {
		assert.InDelta(t, 30.0, label, 0.001)
	}

	// The contract, cache entry and registry record exist and agree.
	contract, ok := store.saved[result.ModelID]
	require.True(t, ok)
	assert.Equal(t, ft.trainReq.FeatureNames, contract.FeatureNames)
	assert.Equal(t, 1, cacheFake.sets)
	require.Len(t, registry.inserted, 1)
	assert.Equal(t, result.ModelID, registry.inserted[0].ModelID)

	// The fetch window matches the configured lookback.
	assert.Equal(t, 7*24*time.Hour, agg.gotEnd.Sub(agg.gotStart))
	assert.Contains(t, agg.gotEntityIDs, "binary_sensor.heating")
}

func TestTrainDeviceInsufficientData(t *testing.T) {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	agg := &fakeAggregator{series: trainingHistory(base, 3)}
	pipeline, _, _, _, _ := newTestPipeline(agg)

	_, err := pipeline.TrainDevice(context.Background(), testDevice())
	require.Error(t, err)

	var insufficient *utils.InsufficientDataError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 3, insufficient.Rows)
	assert.Equal(t, 10, insufficient.MinRows)
	assert.Contains(t, err.Error(), "extraction stage")
}

func TestTrainDeviceFetchFailure(t *testing.T) {
	agg := &fakeAggregator{err: utils.NewCredentialError(401)}
	pipeline, _, _, _, _ := newTestPipeline(agg)

	_, err := pipeline.TrainDevice(context.Background(), testDevice())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch stage")

	var credErr *utils.CredentialError
	assert.True(t, errors.As(err, &credErr))
}

func TestTrainDeviceUsesOnTimeDetectorWhenConfigured(t *testing.T) {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	series := trainingHistory(base, 0)

	// A counter that heats 30 of every 60 minutes, 12 sessions.
	var counter models.MergedSeries
	value := 0.0
	for session := 0; session < 12; session++ {
		start := base.Add(time.Duration(session) * time.Hour)
		for minute := 0; minute <= 60; minute += 5 {
			if minute > 0 && minute <= 30 {
				value += 5
			}
			counter = append(counter, models.RawHistoryRecord{
				EntityID:   "sensor.on_time",
				ObservedAt: start.Add(time.Duration(minute) * time.Minute),
				RawState:   strconv.FormatFloat(value, 'f', -1, 64),
			})
		}
	}
	series["sensor.on_time"] = counter

	agg := &fakeAggregator{series: series}
	pipeline, ft, _, _, _ := newTestPipeline(agg)

	device := testDevice()
	device.HeatingStateEntityID = ""
	device.OnTimeEntityID = "sensor.on_time"

	result, err := pipeline.TrainDevice(context.Background(), device)
	require.NoError(t, err)
	assert.Equal(t, 12, result.TrainingSamples)
	require.NotNil(t, ft.trainReq)
	assert.Contains(t, agg.gotEntityIDs, "sensor.on_time")
}

func TestTrainDeviceRejectsInvalidConfig(t *testing.T) {
	pipeline, _, _, _, _ := newTestPipeline(&fakeAggregator{})

	device := testDevice()
	device.HistoryDays = 0

	_, err := pipeline.TrainDevice(context.Background(), device)
	require.Error(t, err)
	var validation *utils.ValidationError
	assert.True(t, errors.As(err, &validation))
}

func TestTrainRowsFreezesZoneOrderAcrossRows(t *testing.T) {
	pipeline, ft, store, _, _ := newTestPipeline(&fakeAggregator{})

	temp := 19.0
	rows := make([]models.TrainingRow, 0, 12)
	for i := 0; i < 12; i++ {
		row := models.TrainingRow{
			OutdoorTemp:            -1.0,
			IndoorTemp:             18.0,
			TargetTemp:             21.0,
			Humidity:               50.0,
			HourOfDay:              8,
			HeatingDurationMinutes: 40.0,
			Timestamp:              time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour),
		}
		// The kitchen only reports from the fourth row on.
		row.AdjacentZones = map[string]models.AdjacentZoneSample{
			"hallway": {CurrentTemp: &temp},
		}
		if i >= 3 {
			row.AdjacentZones["kitchen"] = models.AdjacentZoneSample{CurrentTemp: &temp}
		}
		rows = append(rows, row)
	}

	result, err := pipeline.TrainRows(context.Background(), "livingroom", rows)
	require.NoError(t, err)

	expected := append([]string{}, features.BaseFeatureNames...)
	for _, suffix := range features.ZoneFeatureSuffixes {
		expected = append(expected, features.ZoneFeatureName("hallway", suffix))
	}
	for _, suffix := range features.ZoneFeatureSuffixes {
		expected = append(expected, features.ZoneFeatureName("kitchen", suffix))
	}
	assert.Equal(t, expected, ft.trainReq.FeatureNames)
	assert.Equal(t, expected, store.saved[result.ModelID].FeatureNames)

	// Early rows have the kitchen columns imputed to zero.
	kitchenCol := len(features.BaseFeatureNames) + 4
	assert.Equal(t, 0.0, ft.trainReq.Rows[0][kitchenCol])
	assert.Equal(t, temp, ft.trainReq.Rows[3][kitchenCol])
}

func TestTrainRowsValidation(t *testing.T) {
	pipeline, _, _, _, _ := newTestPipeline(&fakeAggregator{})

	_, err := pipeline.TrainRows(context.Background(), "", nil)
	require.Error(t, err)

	bad := models.TrainingRow{OutdoorTemp: 500}
	_, err = pipeline.TrainRows(context.Background(), "livingroom", []models.TrainingRow{bad})
	require.Error(t, err)
	var validation *utils.ValidationError
	assert.True(t, errors.As(err, &validation))

	_, err = pipeline.TrainRows(context.Background(), "livingroom", nil)
	require.Error(t, err)
	var insufficient *utils.InsufficientDataError
	assert.True(t, errors.As(err, &insufficient))
}
