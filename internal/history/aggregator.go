package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/ihplabs/heatcast-go/internal/config"
	"github.com/ihplabs/heatcast-go/internal/models"
	"github.com/ihplabs/heatcast-go/internal/utils"
)

// Fetcher is the bounded-chunk history query issued against the external
// service. Implemented by the Home Assistant client.
type Fetcher interface {
	FetchHistoryChunk(ctx context.Context, entityIDs []string, start, end time.Time) (map[string][]models.RawHistoryRecord, error)
}

// Aggregator splits long lookback windows into bounded chunks, fetches them
// concurrently within a rate cap, and reassembles one chronologically
// ordered, de-duplicated series per entity.
type Aggregator struct {
	client        Fetcher
	maxChunkSpan  time.Duration
	maxConcurrent int
	logger        *slog.Logger
}

// NewAggregator creates an aggregator over the given fetcher.
func NewAggregator(client Fetcher, cfg config.HistoryConfig, logger *slog.Logger) *Aggregator {
	maxChunkDays := cfg.MaxChunkDays
	if maxChunkDays < 1 {
		maxChunkDays = 7
	}
	maxConcurrent := cfg.MaxConcurrentFetches
	if maxConcurrent < 1 {
		maxConcurrent = 4
	}
	return &Aggregator{
		client:        client,
		maxChunkSpan:  time.Duration(maxChunkDays) * 24 * time.Hour,
		maxConcurrent: maxConcurrent,
		logger:        logger,
	}
}

type chunk struct {
	start time.Time
	end   time.Time
}

// partition splits [start, end) into consecutive chunks of at most
// maxChunkSpan; the final chunk may be shorter.
func (a *Aggregator) partition(start, end time.Time) []chunk {
	var chunks []chunk
	for current := start; current.Before(end); {
		chunkEnd := current.Add(a.maxChunkSpan)
		if chunkEnd.After(end) {
			chunkEnd = end
		}
		chunks = append(chunks, chunk{start: current, end: chunkEnd})
		current = chunkEnd
	}
	return chunks
}

// Fetch retrieves and merges history for all entities over [start, end).
//
// Per-chunk failures are skipped: partial data is acceptable, and an entity
// for which every chunk failed (or which has no history at all) yields an
// empty series rather than failing the request. Only a credential rejection
// or caller cancellation aborts the whole fetch.
func (a *Aggregator) Fetch(ctx context.Context, entityIDs []string, start, end time.Time) (map[string]models.MergedSeries, error) {
	chunks := a.partition(start, end)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		collected = make(map[string][]models.RawHistoryRecord, len(entityIDs))
		succeeded = make(map[string]int, len(entityIDs))
		fatalOnce sync.Once
		fatalErr  error
	)
	sem := make(chan struct{}, a.maxConcurrent)

issuing:
	for _, entityID := range entityIDs {
		for _, ch := range chunks {
			// A triggered deadline stops new chunk fetches; in-flight ones
			// finish on their own.
			if ctx.Err() != nil {
				break issuing
			}
			wg.Add(1)
			go func(entityID string, ch chunk) {
				defer wg.Done()
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					return
				}

				records, err := a.client.FetchHistoryChunk(ctx, []string{entityID}, ch.start, ch.end)
				if err != nil {
					var credErr *utils.CredentialError
					if errors.As(err, &credErr) {
						fatalOnce.Do(func() { fatalErr = err })
						return
					}
					if ctx.Err() != nil {
						return
					}
					transient := utils.NewTransientFetchError(entityID, err)
					a.logger.Warn("history chunk fetch failed, continuing with remaining chunks",
						"entity_id", entityID,
						"chunk_start", ch.start,
						"chunk_end", ch.end,
						"error", transient.Error(),
					)
					return
				}

				mu.Lock()
				collected[entityID] = append(collected[entityID], records[entityID]...)
				succeeded[entityID]++
				mu.Unlock()
			}(entityID, ch)
		}
	}

	wg.Wait()

	if fatalErr != nil {
		return nil, fatalErr
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("history fetch canceled: %w", err)
	}

	result := make(map[string]models.MergedSeries, len(entityIDs))
	for _, entityID := range entityIDs {
		series := mergeSeries(collected[entityID])
		result[entityID] = series
		a.logger.Info("merged entity history",
			"entity_id", entityID,
			"chunks_total", len(chunks),
			"chunks_succeeded", succeeded[entityID],
			"records", len(series),
		)
	}

	return result, nil
}

// mergeSeries sorts the concatenated chunk records chronologically and
// removes the exact (observed_at, raw_state) duplicates produced by the
// API's inclusive chunk boundaries.
func mergeSeries(records []models.RawHistoryRecord) models.MergedSeries {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ObservedAt.Before(records[j].ObservedAt)
	})

	merged := make(models.MergedSeries, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		key := strconv.FormatInt(rec.ObservedAt.UnixNano(), 10) + "|" + rec.RawState
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, rec)
	}
	return merged
}
