package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ihplabs/heatcast-go/internal/models"
)

// ModelManager is the model management surface the handler needs.
type ModelManager interface {
	List(ctx context.Context) ([]models.ModelRecord, error)
	ListForDevice(ctx context.Context, deviceID string) ([]models.ModelRecord, error)
	Get(ctx context.Context, modelID string) (*models.ModelRecord, error)
	Delete(ctx context.Context, modelID string) (bool, error)
}

type ModelHandler struct {
	service ModelManager
}

func NewModelHandler(service ModelManager) *ModelHandler {
	return &ModelHandler{service: service}
}

// ModelListResponse wraps a model listing.
type ModelListResponse struct {
	Models []models.ModelRecord `json:"models"`
	Total  int                  `json:"total"`
}

// List returns all trained models.
// GET /api/v1/models
func (h *ModelHandler) List(c *gin.Context) {
	records, err := h.service.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ModelListResponse{Models: records, Total: len(records)})
}

// ListForDevice returns one device's trained models.
// GET /api/v1/models/device/:device_id
func (h *ModelHandler) ListForDevice(c *gin.Context) {
	records, err := h.service.ListForDevice(c.Request.Context(), c.Param("device_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ModelListResponse{Models: records, Total: len(records)})
}

// Get returns one model record.
// GET /api/v1/models/:model_id
func (h *ModelHandler) Get(c *gin.Context) {
	record, err := h.service.Get(c.Request.Context(), c.Param("model_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "model not found"})
		return
	}
	c.JSON(http.StatusOK, record)
}

// Delete removes a model, its contract and its trainer artifact.
// DELETE /api/v1/models/:model_id
func (h *ModelHandler) Delete(c *gin.Context) {
	removed, err := h.service.Delete(c.Request.Context(), c.Param("model_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "model not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("model_id")})
}
