package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ihplabs/heatcast-go/internal/models"
)

// Predictor is the prediction use case surface the handler needs.
type Predictor interface {
	Predict(ctx context.Context, req models.PredictionRequest) (*models.PredictionResult, error)
}

type PredictionHandler struct {
	service Predictor
}

func NewPredictionHandler(service Predictor) *PredictionHandler {
	return &PredictionHandler{service: service}
}

// Predict serves one duration prediction. A complete input answers 200; a
// partial one (some contract features imputed) answers 206 with the imputed
// names listed, never an error.
// POST /api/v1/predict
func (h *PredictionHandler) Predict(c *gin.Context) {
	var req models.PredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	result, err := h.service.Predict(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusOK
	if !result.IsComplete {
		status = http.StatusPartialContent
	}
	c.JSON(status, result)
}
