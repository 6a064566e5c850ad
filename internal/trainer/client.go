package trainer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ihplabs/heatcast-go/internal/config"
)

// Client talks to the gradient-boosted-tree trainer sidecar. The sidecar
// owns model fitting, artifacts and inference; this service owns the data
// pipeline and the feature contract.
type Client struct {
	HTTPClient *http.Client
	baseURL    string
}

// NewClient creates a new trainer sidecar client.
//
// Parameters:
//
//	cfg: Trainer service configuration.
//
// Returns:
//
//	*Client: Initialized client.
func NewClient(cfg *config.TrainerConfig) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout == 0 {
		// Fitting a multi-week training set takes a while.
		timeout = 120 * time.Second
	}

	return &Client{
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimSuffix(cfg.ServiceURL, "/"),
	}
}

// HealthCheck verifies the sidecar is up and answering.
func (c *Client) HealthCheck(ctx context.Context) error {
	var response healthResponse
	if err := c.makeRequest(ctx, http.MethodGet, "/health", nil, &response); err != nil {
		return fmt.Errorf("trainer service unavailable: %w", err)
	}
	if response.Status != "ok" && response.Status != "healthy" {
		return fmt.Errorf("trainer service unhealthy: %s", response.Status)
	}
	return nil
}

// Train fits a model on the given column matrix.
//
// Parameters:
//
//	ctx: Context.
//	req: Training payload; row columns follow req.FeatureNames.
//
// Returns:
//
//	*TrainResponse: Fit summary with evaluation metrics.
//	error: Error if the sidecar rejects or fails the fit.
func (c *Client) Train(ctx context.Context, req TrainRequest) (*TrainResponse, error) {
	if len(req.Rows) == 0 {
		return nil, fmt.Errorf("training request has no rows")
	}
	if len(req.Rows) != len(req.Labels) {
		return nil, fmt.Errorf("training request has %d rows but %d labels", len(req.Rows), len(req.Labels))
	}

	var response TrainResponse
	if err := c.makeRequest(ctx, http.MethodPost, "/train", req, &response); err != nil {
		return nil, fmt.Errorf("failed to train model %s: %w", req.ModelID, err)
	}
	return &response, nil
}

// Predict asks the sidecar for one duration prediction.
//
// Parameters:
//
//	ctx: Context.
//	modelID: Trained model identifier.
//	features: Feature vector in the model's contract order.
//
// Returns:
//
//	float64: Predicted duration in minutes.
//	error: Error if the sidecar cannot serve the model.
func (c *Client) Predict(ctx context.Context, modelID string, features []float64) (float64, error) {
	var response PredictResponse
	req := PredictRequest{ModelID: modelID, Features: features}
	if err := c.makeRequest(ctx, http.MethodPost, "/predict", req, &response); err != nil {
		return 0, fmt.Errorf("failed to predict with model %s: %w", modelID, err)
	}
	return response.Prediction, nil
}

// DeleteModel removes the sidecar's model artifact. A missing artifact is
// not an error; the registry row may outlive a manually pruned artifact.
func (c *Client) DeleteModel(ctx context.Context, modelID string) error {
	err := c.makeRequest(ctx, http.MethodDelete, "/models/"+modelID, nil, nil)
	if err != nil && !strings.Contains(err.Error(), "(404)") {
		return fmt.Errorf("failed to delete model %s: %w", modelID, err)
	}
	return nil
}

// makeRequest is a helper method to make HTTP requests to the trainer sidecar
func (c *Client) makeRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errorResp errorResponse
		if err := json.Unmarshal(respBody, &errorResp); err == nil && errorResp.Error != "" {
			return fmt.Errorf("trainer service error (%d): %s", resp.StatusCode, errorResp.Error)
		}
		return fmt.Errorf("trainer service error (%d): %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}

// BaseURL returns the base URL of the trainer service.
func (c *Client) BaseURL() string {
	return c.baseURL
}
