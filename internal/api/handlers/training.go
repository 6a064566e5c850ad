package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ihplabs/heatcast-go/internal/models"
	"github.com/ihplabs/heatcast-go/internal/services"
)

// TrainingService is the training use case surface the handler needs.
type TrainingService interface {
	TrainDevice(ctx context.Context, device models.DeviceConfig) (*models.TrainingResult, error)
	TrainRows(ctx context.Context, deviceID string, rows []models.TrainingRow) (*models.TrainingResult, error)
}

type TrainingHandler struct {
	pipeline TrainingService
}

func NewTrainingHandler(pipeline TrainingService) *TrainingHandler {
	return &TrainingHandler{pipeline: pipeline}
}

// TrainRowsRequest is the direct-rows training request body.
type TrainRowsRequest struct {
	DeviceID string               `json:"device_id"`
	Rows     []models.TrainingRow `json:"rows"`
}

// TrainSampleRequest asks for a model fitted on generated sample data.
type TrainSampleRequest struct {
	DeviceID   string `json:"device_id"`
	NumSamples int    `json:"num_samples"`
	Seed       *int64 `json:"seed,omitempty"`
}

// TrainDevice runs the full pipeline against live history for one device.
// POST /api/v1/train/device
func (h *TrainingHandler) TrainDevice(c *gin.Context) {
	var device models.DeviceConfig
	if err := c.ShouldBindJSON(&device); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	result, err := h.pipeline.TrainDevice(c.Request.Context(), device)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// TrainRows fits a model on rows supplied in the request body.
// POST /api/v1/train
func (h *TrainingHandler) TrainRows(c *gin.Context) {
	var req TrainRowsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	result, err := h.pipeline.TrainRows(c.Request.Context(), req.DeviceID, req.Rows)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// TrainSample fits a model on generated sample rows, for validating the
// deployment without live history.
// POST /api/v1/train/sample
func (h *TrainingHandler) TrainSample(c *gin.Context) {
	var req TrainSampleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if req.NumSamples <= 0 {
		req.NumSamples = 200
	}
	seed := time.Now().UnixNano()
	if req.Seed != nil {
		seed = *req.Seed
	}

	rows, err := services.NewFakeDataGenerator(seed).Generate(req.NumSamples)
	if err != nil {
		writeError(c, err)
		return
	}

	result, err := h.pipeline.TrainRows(c.Request.Context(), req.DeviceID, rows)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
