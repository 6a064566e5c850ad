package features

import (
	"strconv"

	"github.com/ihplabs/heatcast-go/internal/models"
)

// Prepare validates a set of provided feature values against a contract and
// produces the full-length, contract-ordered feature vector.
//
// Every contract name missing from the provided map is imputed with 0.0 and
// reported; an incomplete input is never a failure here, the caller decides
// how to signal partial results.
//
// Parameters:
//
//	contract: The trained model's frozen feature contract.
//	provided: Feature values by contract name.
//
// Returns:
//
//	[]float64: Vector in contract order, same length as the contract.
//	bool: True iff no feature was imputed.
//	[]string: Imputed feature names, in contract order.
func Prepare(contract models.FeatureContract, provided map[string]float64) ([]float64, bool, []string) {
	vector := make([]float64, len(contract.FeatureNames))
	var missing []string

	for i, name := range contract.FeatureNames {
		value, present := provided[name]
		if !present {
			missing = append(missing, name)
			continue
		}
		vector[i] = value
	}

	return vector, len(missing) == 0, missing
}

// RequestFeatures flattens a prediction request into feature values keyed by
// contract name. Base features are always present; adjacent-zone features
// appear only for the fields the caller supplied.
func RequestFeatures(req models.PredictionRequest) map[string]float64 {
	provided := map[string]float64{
		"outdoor_temp":             req.OutdoorTemp,
		"indoor_temp":              req.IndoorTemp,
		"target_temp":              req.TargetTemp,
		"temp_delta":               req.TempDelta(),
		"humidity":                 req.Humidity,
		"hour_of_day":              float64(req.HourOfDay),
		"minutes_since_last_cycle": req.MinutesSinceLastCycle,
	}

	addZoneFeatures(provided, req.AdjacentZones)
	return provided
}

// RowFeatures flattens a training row into feature values keyed by contract
// name, for building trainer column matrices.
func RowFeatures(row models.TrainingRow) map[string]float64 {
	provided := map[string]float64{
		"outdoor_temp":             row.OutdoorTemp,
		"indoor_temp":              row.IndoorTemp,
		"target_temp":              row.TargetTemp,
		"temp_delta":               row.TempDelta(),
		"humidity":                 row.Humidity,
		"hour_of_day":              float64(row.HourOfDay),
		"minutes_since_last_cycle": row.MinutesSinceLastCycle,
	}

	addZoneFeatures(provided, row.AdjacentZones)
	return provided
}

// addZoneFeatures adds the supplied fields of each adjacent-zone sample
// under their contract names.
func addZoneFeatures(provided map[string]float64, zones map[string]models.AdjacentZoneSample) {
	for zone, sample := range zones {
		if sample.CurrentTemp != nil {
			provided[ZoneFeatureName(zone, "current_temp")] = *sample.CurrentTemp
		}
		if sample.CurrentHumidity != nil {
			provided[ZoneFeatureName(zone, "current_humidity")] = *sample.CurrentHumidity
		}
		if sample.NextTargetTemp != nil {
			provided[ZoneFeatureName(zone, "next_target_temp")] = *sample.NextTargetTemp
		}
		if sample.DurationUntilChange != nil {
			provided[ZoneFeatureName(zone, "duration_until_change")] = *sample.DurationUntilChange
		}
	}
}

// Vectorize maps a training row onto a frozen feature ordering, imputing 0.0
// for any contract feature the row does not carry.
func Vectorize(row models.TrainingRow, featureNames []string) []float64 {
	vector, _, _ := Prepare(models.FeatureContract{FeatureNames: featureNames}, RowFeatures(row))
	return vector
}

// FormatVector renders a feature vector for log output.
func FormatVector(vector []float64) string {
	out := "["
	for i, v := range vector {
		if i > 0 {
			out += ", "
		}
		out += strconv.FormatFloat(v, 'f', -1, 64)
	}
	return out + "]"
}
