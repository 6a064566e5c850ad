package features

import (
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ihplabs/heatcast-go/internal/history"
	"github.com/ihplabs/heatcast-go/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func plainSeries(entityID string, base time.Time, values ...float64) RoleSeries {
	series := make(models.MergedSeries, 0, len(values))
	for i, v := range values {
		series = append(series, models.RawHistoryRecord{
			EntityID:   entityID,
			ObservedAt: base.Add(time.Duration(i) * time.Hour),
			RawState:   strconv.FormatFloat(v, 'f', -1, 64),
		})
	}
	return RoleSeries{Series: series, Kind: history.EventKindPlain}
}

func cycleAt(start time.Time, minutes float64) models.HeatingCycle {
	return models.NewHeatingCycle(start, start.Add(time.Duration(minutes*float64(time.Minute))))
}

func TestBuildProducesRowPerUsableCycle(t *testing.T) {
	base := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	series := DeviceSeries{
		Outdoor:  plainSeries("sensor.outdoor", base, -2.0, -2.5, -3.0),
		Indoor:   plainSeries("sensor.indoor", base, 18.0, 18.5, 19.0),
		Target:   plainSeries("sensor.target", base, 21.0, 21.0, 21.0),
		Humidity: plainSeries("sensor.humidity", base, 45.0, 46.0, 47.0),
	}
	cycles := []models.HeatingCycle{
		cycleAt(base.Add(30*time.Minute), 40),
		cycleAt(base.Add(150*time.Minute), 25),
	}

	rows, names := NewAssembler(testLogger()).Build(cycles, series)

	require.Len(t, rows, 2)
	assert.Equal(t, BaseFeatureNames, names)

	first := rows[0]
	assert.Equal(t, -2.0, first.OutdoorTemp)
	assert.Equal(t, 18.0, first.IndoorTemp)
	assert.Equal(t, 21.0, first.TargetTemp)
	assert.Equal(t, 45.0, first.Humidity)
	assert.Equal(t, 3.0, first.TempDelta())
	assert.Equal(t, 0, first.HourOfDay)
	assert.Equal(t, 0.0, first.MinutesSinceLastCycle)
	assert.Equal(t, 40.0, first.HeatingDurationMinutes)

	second := rows[1]
	// 150min start minus first cycle's end at 70min.
	assert.InDelta(t, 80.0, second.MinutesSinceLastCycle, 0.001)
	assert.Equal(t, 2, second.HourOfDay)
}

func TestBuildDropsCycleMissingRequiredBaseFeature(t *testing.T) {
	base := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	series := DeviceSeries{
		// Outdoor data only starts one hour in.
		Outdoor: RoleSeries{
			Series: models.MergedSeries{{
				EntityID:   "sensor.outdoor",
				ObservedAt: base.Add(time.Hour),
				RawState:   "-1.0",
			}},
			Kind: history.EventKindPlain,
		},
		Indoor: plainSeries("sensor.indoor", base, 18.0, 18.5),
		Target: plainSeries("sensor.target", base, 21.0, 21.0),
	}
	cycles := []models.HeatingCycle{
		cycleAt(base.Add(10*time.Minute), 30),
		cycleAt(base.Add(90*time.Minute), 30),
	}

	rows, _ := NewAssembler(testLogger()).Build(cycles, series)

	require.Len(t, rows, 1)
	assert.Equal(t, base.Add(90*time.Minute), rows[0].Timestamp)
}

func TestBuildDefaultsHumidityWhenAbsent(t *testing.T) {
	base := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	series := DeviceSeries{
		Outdoor: plainSeries("sensor.outdoor", base, -2.0),
		Indoor:  plainSeries("sensor.indoor", base, 18.0),
		Target:  plainSeries("sensor.target", base, 21.0),
	}
	cycles := []models.HeatingCycle{cycleAt(base.Add(10*time.Minute), 30)}

	rows, _ := NewAssembler(testLogger()).Build(cycles, series)

	require.Len(t, rows, 1)
	assert.Equal(t, DefaultHumidity, rows[0].Humidity)
}

func TestBuildDiscoversZoneOnceAndInFirstSeenOrder(t *testing.T) {
	base := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	series := DeviceSeries{
		Outdoor: plainSeries("sensor.outdoor", base, -2.0, -2.0, -2.0),
		Indoor:  plainSeries("sensor.indoor", base, 18.0, 18.0, 18.0),
		Target:  plainSeries("sensor.target", base, 21.0, 21.0, 21.0),
		Zones: []ZoneSeries{
			{
				// Kitchen data starts only before the second cycle, so the
				// hallway is discovered first despite the slice order.
				Zone: "kitchen",
				Temp: RoleSeries{
					Series: models.MergedSeries{{
						EntityID:   "sensor.kitchen_temp",
						ObservedAt: base.Add(2 * time.Hour),
						RawState:   "19.5",
					}},
					Kind: history.EventKindPlain,
				},
			},
			{
				Zone: "hallway",
				Temp: plainSeries("sensor.hallway_temp", base, 17.0, 17.2, 17.4),
			},
		},
	}
	cycles := []models.HeatingCycle{
		cycleAt(base.Add(30*time.Minute), 30),
		cycleAt(base.Add(150*time.Minute), 30),
	}

	rows, names := NewAssembler(testLogger()).Build(cycles, series)
	require.Len(t, rows, 2)

	expected := append([]string{}, BaseFeatureNames...)
	for _, suffix := range ZoneFeatureSuffixes {
		expected = append(expected, ZoneFeatureName("hallway", suffix))
	}
	for _, suffix := range ZoneFeatureSuffixes {
		expected = append(expected, ZoneFeatureName("kitchen", suffix))
	}
	assert.Equal(t, expected, names)

	// The first row has no kitchen data; imputation happens at
	// vectorization, where its four columns become 0.0.
	_, kitchenPresent := rows[0].AdjacentZones["kitchen"]
	assert.False(t, kitchenPresent)
	vector := Vectorize(rows[0], names)
	require.Len(t, vector, len(names))
	for i := len(BaseFeatureNames) + 4; i < len(names); i++ {
		assert.Equal(t, 0.0, vector[i], "feature %s", names[i])
	}

	_, kitchenPresent = rows[1].AdjacentZones["kitchen"]
	assert.True(t, kitchenPresent)
}

func TestZoneSampleDurationUntilTargetChange(t *testing.T) {
	base := time.Date(2026, 1, 12, 6, 0, 0, 0, time.UTC)
	zone := ZoneSeries{
		Zone: "kitchen",
		Target: RoleSeries{
			Series: models.MergedSeries{
				{EntityID: "sensor.kitchen_target", ObservedAt: base, RawState: "19.0"},
				{EntityID: "sensor.kitchen_target", ObservedAt: base.Add(90 * time.Minute), RawState: "21.0"},
			},
			Kind: history.EventKindPlain,
		},
	}

	sample, present := zoneSample(zone, base.Add(30*time.Minute))
	require.True(t, present)
	require.NotNil(t, sample.NextTargetTemp)
	assert.Equal(t, 19.0, *sample.NextTargetTemp)
	require.NotNil(t, sample.DurationUntilChange)
	assert.InDelta(t, 60.0, *sample.DurationUntilChange, 0.001)

	// After the last change the duration is unknowable and stays absent.
	sample, present = zoneSample(zone, base.Add(2*time.Hour))
	require.True(t, present)
	assert.Nil(t, sample.DurationUntilChange)
}

func TestBuildDropsImplausibleRows(t *testing.T) {
	base := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	series := DeviceSeries{
		// A unit error upstream: outdoor reported in tenths of a degree.
		Outdoor: plainSeries("sensor.outdoor", base, 215.0),
		Indoor:  plainSeries("sensor.indoor", base, 18.0),
		Target:  plainSeries("sensor.target", base, 21.0),
	}
	cycles := []models.HeatingCycle{cycleAt(base.Add(10*time.Minute), 30)}

	rows, _ := NewAssembler(testLogger()).Build(cycles, series)
	assert.Empty(t, rows)
}
