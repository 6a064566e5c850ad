package cycles

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ihplabs/heatcast-go/internal/models"
)

// OnTimeDetector extracts heating cycles from a cumulative on-time counter.
// The counter increases while the zone heats and holds steady while it
// idles, so a heating session is a run of increases; a short plateau inside
// the debounce buffer is treated as part of the same session.
type OnTimeDetector struct {
	buffer   time.Duration
	minCycle time.Duration
	maxCycle time.Duration
	logger   *slog.Logger
}

// NewOnTimeDetector creates an on-time counter detector.
//
// Parameters:
//
//	bufferMinutes: Plateau length tolerated before a session is closed.
//	minCycleMinutes: Sessions shorter than this are dropped as noise.
//	maxCycleMinutes: Sessions longer than this are dropped as implausible.
//	logger: Structured logger.
//
// Returns:
//
//	*OnTimeDetector: Initialized detector.
func NewOnTimeDetector(bufferMinutes, minCycleMinutes, maxCycleMinutes int, logger *slog.Logger) *OnTimeDetector {
	if bufferMinutes < 1 {
		bufferMinutes = 15
	}
	return &OnTimeDetector{
		buffer:   time.Duration(bufferMinutes) * time.Minute,
		minCycle: time.Duration(minCycleMinutes) * time.Minute,
		maxCycle: time.Duration(maxCycleMinutes) * time.Minute,
		logger:   logger,
	}
}

// Detect walks the counter series chronologically and returns heating
// sessions in order.
//
// A session opens at the sample preceding the first increase and stays open
// while the counter keeps increasing. A plateau longer than the buffer
// closes the session at the last increase, so the dead plateau tail is never
// counted as heating. A counter reset closes the session the same way and
// the next increase opens a fresh one. A session still open at the end of
// the series closes at its last increase.
func (d *OnTimeDetector) Detect(series models.MergedSeries) []models.HeatingCycle {
	var (
		cycles       []models.HeatingCycle
		havePrev     bool
		prevTime     time.Time
		prevValue    float64
		active       bool
		sessionStart time.Time
		lastActive   time.Time
	)

	closeSession := func() {
		active = false
		if cycle, ok := boundedCycle(sessionStart, lastActive, d.minCycle, d.maxCycle); ok {
			cycles = append(cycles, cycle)
		} else {
			d.logger.Debug("discarded out-of-bounds heating session",
				"start", sessionStart,
				"end", lastActive,
			)
		}
	}

	for _, rec := range series {
		value, ok := counterValue(rec.RawState)
		if !ok {
			continue
		}
		if !havePrev {
			havePrev = true
			prevTime, prevValue = rec.ObservedAt, value
			continue
		}

		switch {
		case value > prevValue:
			if !active {
				active = true
				sessionStart = prevTime
			}
			lastActive = rec.ObservedAt
		case value < prevValue:
			// Counter reset.
			if active {
				closeSession()
			}
		default:
			if active && rec.ObservedAt.Sub(lastActive) > d.buffer {
				closeSession()
			}
		}

		prevTime, prevValue = rec.ObservedAt, value
	}

	if active {
		closeSession()
	}

	return cycles
}

// counterValue parses the numeric counter reading from a record state.
func counterValue(rawState string) (float64, bool) {
	state := strings.TrimSpace(rawState)
	switch strings.ToLower(state) {
	case "", "unknown", "unavailable", "none":
		return 0, false
	}
	value, err := strconv.ParseFloat(state, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
