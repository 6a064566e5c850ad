package services

import (
	"math"
	"math/rand"
	"time"

	"github.com/ihplabs/heatcast-go/internal/models"
	"github.com/ihplabs/heatcast-go/internal/utils"
)

// baseHeatingRate is the assumed heating rate in °C per minute for a
// typical home (3°C per hour).
const baseHeatingRate = 0.05

// FakeDataGenerator produces synthetic training rows that mimic real
// heating patterns, for validating the pipeline without live history.
type FakeDataGenerator struct {
	rng *rand.Rand
}

// NewFakeDataGenerator creates a generator with the given seed for
// reproducibility.
func NewFakeDataGenerator(seed int64) *FakeDataGenerator {
	return &FakeDataGenerator{rng: rand.New(rand.NewSource(seed))}
}

// Generate produces numSamples rows spread over the past, six hours apart.
func (g *FakeDataGenerator) Generate(numSamples int) ([]models.TrainingRow, error) {
	if numSamples < 1 {
		return nil, utils.NewValidationErrorf("num_samples must be at least 1, got %d", numSamples)
	}

	base := time.Now().UTC().AddDate(0, 0, -numSamples)
	rows := make([]models.TrainingRow, 0, numSamples)
	for i := 0; i < numSamples; i++ {
		rows = append(rows, g.generateRow(base.Add(time.Duration(i)*6*time.Hour)))
	}
	return rows, nil
}

func (g *FakeDataGenerator) generateRow(timestamp time.Time) models.TrainingRow {
	hour := timestamp.Hour()

	outdoor := g.outdoorTemp(hour)
	indoor := g.indoorTemp(outdoor)
	target := g.targetTemp(hour)
	humidity := g.humidity(outdoor)

	return models.TrainingRow{
		OutdoorTemp:            round1(outdoor),
		IndoorTemp:             round1(indoor),
		TargetTemp:             round1(target),
		Humidity:               round1(humidity),
		HourOfDay:              hour,
		MinutesSinceLastCycle:  round1(g.rng.Float64() * 360),
		HeatingDurationMinutes: round1(g.heatingDuration(outdoor, indoor, target, humidity, hour)),
		Timestamp:              timestamp,
	}
}

// outdoorTemp varies by time of day: coldest in the early morning, warmest
// mid-afternoon.
func (g *FakeDataGenerator) outdoorTemp(hour int) float64 {
	base := g.rng.Float64() * 15
	hourAdjustment := -5 * math.Abs(float64(hour-14)/12)
	noise := g.rng.NormFloat64() * 2
	return base + hourAdjustment + noise
}

// indoorTemp tracks outdoor temperature loosely but stays far more stable.
func (g *FakeDataGenerator) indoorTemp(outdoor float64) float64 {
	base := 18 + (outdoor-10)*0.1
	noise := g.rng.NormFloat64()
	return clamp(base+noise, 10, 25)
}

// targetTemp is higher during waking hours.
func (g *FakeDataGenerator) targetTemp(hour int) float64 {
	if hour >= 6 && hour <= 22 {
		return 20 + g.rng.Float64()*2
	}
	return 17 + g.rng.Float64()*2
}

// humidity runs higher in colder weather.
func (g *FakeDataGenerator) humidity(outdoor float64) float64 {
	base := 60 - outdoor*0.5
	noise := g.rng.NormFloat64() * 10
	return clamp(base+noise, 30, 90)
}

// heatingDuration simulates how long heating from indoor to target takes
// under the given conditions.
func (g *FakeDataGenerator) heatingDuration(outdoor, indoor, target, humidity float64, hour int) float64 {
	tempDelta := target - indoor
	if tempDelta <= 0 {
		return 0
	}

	baseMinutes := tempDelta / baseHeatingRate
	outdoorFactor := 1 + math.Max(0, (10-outdoor)*0.03)
	humidityFactor := 1 + math.Max(0, (humidity-50)*0.002)
	// Mornings heat slightly faster on residual warmth.
	timeFactor := 1.0
	if hour >= 5 && hour <= 9 {
		timeFactor = 0.95
	}

	duration := baseMinutes * outdoorFactor * humidityFactor * timeFactor
	noise := g.rng.NormFloat64() * duration * 0.1
	return math.Max(5, duration+noise)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
