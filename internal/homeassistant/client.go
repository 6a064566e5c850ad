package homeassistant

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/ihplabs/heatcast-go/internal/config"
	"github.com/ihplabs/heatcast-go/internal/models"
	"github.com/ihplabs/heatcast-go/internal/utils"
)

// Client represents the Home Assistant history HTTP client. It issues
// bounded, time-ranged queries; splitting long windows into chunks is the
// aggregator's job, not the client's.
type Client struct {
	HTTPClient *http.Client
	baseURL    string
	token      string
	timeout    time.Duration
}

// NewClient creates a new history client instance.
//
// Parameters:
//
//	cfg: Home Assistant configuration.
//
// Returns:
//
//	*Client: Initialized client.
func NewClient(cfg *config.HomeAssistantConfig) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		token:   cfg.Token,
		timeout: timeout,
	}
}

// CheckAvailability verifies that the history service answers API requests
// with the configured credential.
//
// Parameters:
//
//	ctx: Context.
//
// Returns:
//
//	error: Error if the service is unreachable or rejects the credential.
func (c *Client) CheckAvailability(ctx context.Context) error {
	var response struct {
		Message string `json:"message"`
	}
	return c.makeRequest(ctx, "/api/", nil, &response)
}

// FetchHistoryChunk retrieves one bounded chunk of state history for a set
// of entities. The underlying API treats chunk boundaries as inclusive on
// both ends, so callers merging adjacent chunks must expect duplicate
// boundary records.
//
// Parameters:
//
//	ctx: Context.
//	entityIDs: Entities to query.
//	start: Chunk start (inclusive).
//	end: Chunk end (inclusive at the API level).
//
// Returns:
//
//	map[string][]models.RawHistoryRecord: Records per entity, each list
//	sorted chronologically. Entities with no history are absent from the
//	map, never an error.
//	error: Error if the chunk query fails.
func (c *Client) FetchHistoryChunk(ctx context.Context, entityIDs []string, start, end time.Time) (map[string][]models.RawHistoryRecord, error) {
	if len(entityIDs) == 0 {
		return map[string][]models.RawHistoryRecord{}, nil
	}

	params := url.Values{}
	params.Set("end_time", end.UTC().Format(time.RFC3339))
	params.Set("filter_entity_id", strings.Join(entityIDs, ","))
	params.Set("significant_changes_only", "false")
	path := fmt.Sprintf("/api/history/period/%s?%s", start.UTC().Format(time.RFC3339), params.Encode())

	var payload [][]stateRecord
	if err := c.makeRequest(ctx, path, nil, &payload); err != nil {
		return nil, err
	}

	result := make(map[string][]models.RawHistoryRecord, len(payload))
	for _, entityHistory := range payload {
		if len(entityHistory) == 0 {
			continue
		}
		entityID := entityHistory[0].EntityID
		if entityID == "" {
			continue
		}
		records := make([]models.RawHistoryRecord, 0, len(entityHistory))
		for _, raw := range entityHistory {
			if rec, ok := raw.toRecord(entityID); ok {
				records = append(records, rec)
			}
		}
		sort.Slice(records, func(i, j int) bool {
			return records[i].ObservedAt.Before(records[j].ObservedAt)
		})
		result[entityID] = records
	}

	return result, nil
}

// makeRequest is a helper method to make HTTP requests to the history API
func (c *Client) makeRequest(ctx context.Context, path string, body io.Reader, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			// Nothing actionable; the response is already consumed.
			_ = cerr
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return utils.NewCredentialError(resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		var errorResp errorResponse
		if err := json.Unmarshal(respBody, &errorResp); err == nil && errorResp.Message != "" {
			return fmt.Errorf("history service error (%d): %s", resp.StatusCode, errorResp.Message)
		}
		return fmt.Errorf("history service error (%d): %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}

// BaseURL returns the base URL of the history service.
func (c *Client) BaseURL() string {
	return c.baseURL
}
