package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ihplabs/heatcast-go/internal/models"
	"github.com/ihplabs/heatcast-go/internal/utils"
)

// ContractStore persists feature contracts as one JSON file per model,
// content-addressed by model id. A contract is written exactly once at
// training completion and never mutated in place; the read path is therefore
// race-free without locking.
type ContractStore struct {
	dir    string
	logger *slog.Logger
}

// NewContractStore creates a contract store rooted at dir, creating the
// directory if needed.
func NewContractStore(dir string, logger *slog.Logger) (*ContractStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create contract directory %s: %w", dir, err)
	}
	return &ContractStore{dir: dir, logger: logger}, nil
}

// Save writes a contract. Overwriting an existing contract is refused:
// contracts are immutable and a second write for the same model id means a
// model id collision upstream.
func (s *ContractStore) Save(contract models.FeatureContract) error {
	if contract.ModelID == "" {
		return utils.NewValidationError("contract model_id cannot be empty")
	}
	if len(contract.FeatureNames) == 0 {
		return utils.NewValidationError("contract feature_names cannot be empty")
	}

	path := s.path(contract.ModelID)
	if _, err := os.Stat(path); err == nil {
		return utils.NewContractMismatchError(contract.ModelID, "contract already exists and is immutable")
	}

	payload, err := json.MarshalIndent(contract, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal contract: %w", err)
	}

	// Write-then-rename so a crashed write never leaves a readable partial
	// contract behind.
	tmp, err := os.CreateTemp(s.dir, contract.ModelID+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp contract file: %w", err)
	}
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write contract: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to close contract file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to finalize contract file: %w", err)
	}

	s.logger.Info("persisted feature contract",
		"model_id", contract.ModelID,
		"features", len(contract.FeatureNames),
	)
	return nil
}

// Load reads the contract for a model. A missing or unreadable contract is a
// ContractMismatchError: contracts are never regenerated implicitly.
func (s *ContractStore) Load(modelID string) (*models.FeatureContract, error) {
	payload, err := os.ReadFile(s.path(modelID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, utils.NewContractMismatchError(modelID, "contract file not found")
		}
		return nil, fmt.Errorf("failed to read contract for %s: %w", modelID, err)
	}

	var contract models.FeatureContract
	if err := json.Unmarshal(payload, &contract); err != nil {
		return nil, utils.NewContractMismatchError(modelID, fmt.Sprintf("contract file unreadable: %v", err))
	}
	if len(contract.FeatureNames) == 0 {
		return nil, utils.NewContractMismatchError(modelID, "contract has no feature names")
	}
	return &contract, nil
}

// Delete removes a contract file. Reports whether a file was removed.
func (s *ContractStore) Delete(modelID string) (bool, error) {
	err := os.Remove(s.path(modelID))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete contract for %s: %w", modelID, err)
	}
	return true, nil
}

// ListModelIDs returns the model ids that have a persisted contract.
func (s *ContractStore) ListModelIDs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list contract directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, "_features.json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, "_features.json"))
	}
	return ids, nil
}

func (s *ContractStore) path(modelID string) string {
	return filepath.Join(s.dir, modelID+"_features.json")
}
