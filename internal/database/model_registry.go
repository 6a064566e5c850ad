package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ihplabs/heatcast-go/internal/models"
)

// DatabasePool defines the interface for database pool operations.
// This interface allows for both real pool and mock pool implementations.
type DatabasePool interface {
	// QueryRow executes a query that is expected to return at most one row.
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	// Exec executes a query without returning any rows.
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	// Query executes a query that returns rows.
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// ModelRegistry handles database operations for trained model records. The
// registry answers "which models exist" and "latest model for device"; the
// feature ordering itself lives in the contract store, not here.
type ModelRegistry struct {
	pool DatabasePool
}

// NewModelRegistry creates a new model registry over the given pool.
func NewModelRegistry(pool DatabasePool) *ModelRegistry {
	return &ModelRegistry{
		pool: pool,
	}
}

// EnsureSchema creates the registry table when it does not exist yet.
func (r *ModelRegistry) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS model_registry (
			model_id TEXT PRIMARY KEY,
			device_id TEXT NOT NULL,
			training_samples INTEGER NOT NULL,
			metrics JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("failed to ensure model_registry schema: %w", err)
	}
	return nil
}

// Insert stores one trained model record.
func (r *ModelRegistry) Insert(ctx context.Context, record models.ModelRecord) error {
	metrics, err := json.Marshal(record.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	query := `
		INSERT INTO model_registry (model_id, device_id, training_samples, metrics, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err = r.pool.Exec(ctx, query,
		record.ModelID, record.DeviceID, record.TrainingSamples, metrics, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert model record: %w", err)
	}
	return nil
}

// Get retrieves one model record by id. Returns nil when the model is
// unknown.
func (r *ModelRegistry) Get(ctx context.Context, modelID string) (*models.ModelRecord, error) {
	query := `
		SELECT model_id, device_id, training_samples, metrics, created_at
		FROM model_registry
		WHERE model_id = $1`

	record, err := r.scanRecord(r.pool.QueryRow(ctx, query, modelID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get model record: %w", err)
	}
	return record, nil
}

// GetLatestForDevice retrieves the most recently trained model for a device.
// Returns nil when the device has no models.
func (r *ModelRegistry) GetLatestForDevice(ctx context.Context, deviceID string) (*models.ModelRecord, error) {
	query := `
		SELECT model_id, device_id, training_samples, metrics, created_at
		FROM model_registry
		WHERE device_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	record, err := r.scanRecord(r.pool.QueryRow(ctx, query, deviceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest model for device: %w", err)
	}
	return record, nil
}

// List retrieves all model records, newest first.
func (r *ModelRegistry) List(ctx context.Context) ([]models.ModelRecord, error) {
	query := `
		SELECT model_id, device_id, training_samples, metrics, created_at
		FROM model_registry
		ORDER BY created_at DESC`

	return r.queryRecords(ctx, query)
}

// ListForDevice retrieves all model records for one device, newest first.
func (r *ModelRegistry) ListForDevice(ctx context.Context, deviceID string) ([]models.ModelRecord, error) {
	query := `
		SELECT model_id, device_id, training_samples, metrics, created_at
		FROM model_registry
		WHERE device_id = $1
		ORDER BY created_at DESC`

	return r.queryRecords(ctx, query, deviceID)
}

// Delete removes one model record. Reports whether a record was removed.
func (r *ModelRegistry) Delete(ctx context.Context, modelID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM model_registry WHERE model_id = $1`, modelID)
	if err != nil {
		return false, fmt.Errorf("failed to delete model record: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ModelRegistry) queryRecords(ctx context.Context, query string, args ...interface{}) ([]models.ModelRecord, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query model records: %w", err)
	}
	defer rows.Close()

	var records []models.ModelRecord
	for rows.Next() {
		record, err := r.scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan model record: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate model records: %w", err)
	}
	return records, nil
}

func (r *ModelRegistry) scanRecord(row pgx.Row) (*models.ModelRecord, error) {
	var (
		record  models.ModelRecord
		metrics []byte
		created time.Time
	)
	if err := row.Scan(&record.ModelID, &record.DeviceID, &record.TrainingSamples, &metrics, &created); err != nil {
		return nil, err
	}
	record.CreatedAt = created
	if len(metrics) > 0 {
		if err := json.Unmarshal(metrics, &record.Metrics); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
		}
	}
	return &record, nil
}
