package trainer

// TrainRequest is the column-ordered training payload handed to the trainer
// sidecar. FeatureNames gives the column order of every row; that exact
// order is frozen into the model's feature contract.
type TrainRequest struct {
	ModelID      string      `json:"model_id"`
	FeatureNames []string    `json:"feature_names"`
	Rows         [][]float64 `json:"rows"`
	Labels       []float64   `json:"labels"`
}

// TrainResponse reports the fitted model's evaluation metrics.
type TrainResponse struct {
	ModelID         string             `json:"model_id"`
	TrainingSamples int                `json:"training_samples"`
	Metrics         map[string]float64 `json:"metrics"`
}

// PredictRequest asks the sidecar for one prediction. Features must follow
// the model's contract order.
type PredictRequest struct {
	ModelID  string    `json:"model_id"`
	Features []float64 `json:"features"`
}

// PredictResponse carries the predicted duration in minutes.
type PredictResponse struct {
	ModelID    string  `json:"model_id"`
	Prediction float64 `json:"prediction"`
}

// healthResponse is the sidecar health payload.
type healthResponse struct {
	Status string `json:"status"`
}

// errorResponse is the sidecar error payload.
type errorResponse struct {
	Error string `json:"error"`
}
