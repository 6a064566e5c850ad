package storage

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ihplabs/heatcast-go/internal/models"
	"github.com/ihplabs/heatcast-go/internal/utils"
)

func testStore(t *testing.T) *ContractStore {
	t.Helper()
	store, err := NewContractStore(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return store
}

func testContract() models.FeatureContract {
	return models.FeatureContract{
		ModelID:  "gbt_livingroom_0a1b2c3d",
		DeviceID: "livingroom",
		FeatureNames: []string{
			"outdoor_temp", "indoor_temp", "target_temp", "temp_delta",
			"humidity", "hour_of_day", "minutes_since_last_cycle",
			"kitchen_current_temp", "kitchen_current_humidity",
			"kitchen_next_target_temp", "kitchen_duration_until_change",
		},
		CreatedAt: time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSaveLoadRoundTripPreservesOrder(t *testing.T) {
	store := testStore(t)
	contract := testContract()

	require.NoError(t, store.Save(contract))

	loaded, err := store.Load(contract.ModelID)
	require.NoError(t, err)
	// Order-sensitive equality; the ordering is the whole point of the
	// contract.
	assert.Equal(t, contract.FeatureNames, loaded.FeatureNames)
	assert.Equal(t, contract.ModelID, loaded.ModelID)
	assert.True(t, contract.CreatedAt.Equal(loaded.CreatedAt))
}

func TestSaveRefusesOverwrite(t *testing.T) {
	store := testStore(t)
	contract := testContract()

	require.NoError(t, store.Save(contract))

	err := store.Save(contract)
	require.Error(t, err)
	var mismatch *utils.ContractMismatchError
	assert.True(t, errors.As(err, &mismatch))
}

func TestSaveValidatesContract(t *testing.T) {
	store := testStore(t)

	err := store.Save(models.FeatureContract{FeatureNames: []string{"a"}})
	require.Error(t, err)
	var validation *utils.ValidationError
	assert.True(t, errors.As(err, &validation))

	err = store.Save(models.FeatureContract{ModelID: "gbt_x_00000000"})
	require.Error(t, err)
	assert.True(t, errors.As(err, &validation))
}

func TestLoadMissingContractIsMismatch(t *testing.T) {
	store := testStore(t)

	_, err := store.Load("gbt_unknown_00000000")
	require.Error(t, err)
	var mismatch *utils.ContractMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "gbt_unknown_00000000", mismatch.ModelID)
}

func TestLoadCorruptContractIsMismatch(t *testing.T) {
	dir := t.TempDir()
	store, err := NewContractStore(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	path := filepath.Join(dir, "gbt_bad_00000000_features.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err = store.Load("gbt_bad_00000000")
	require.Error(t, err)
	var mismatch *utils.ContractMismatchError
	assert.True(t, errors.As(err, &mismatch))
}

func TestDeleteAndList(t *testing.T) {
	store := testStore(t)
	contract := testContract()
	require.NoError(t, store.Save(contract))

	ids, err := store.ListModelIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{contract.ModelID}, ids)

	removed, err := store.Delete(contract.ModelID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.Delete(contract.ModelID)
	require.NoError(t, err)
	assert.False(t, removed)

	ids, err = store.ListModelIDs()
	require.NoError(t, err)
	assert.Empty(t, ids)
}
