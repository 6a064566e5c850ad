package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ihplabs/heatcast-go/internal/api/handlers"
)

// HealthChecker reports whether a backing service answers.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// AvailabilityChecker reports whether the history service answers with the
// configured credential.
type AvailabilityChecker interface {
	CheckAvailability(ctx context.Context) error
}

// Dependencies carries everything the route table wires together. Nil
// optional members are reported as "disabled" by the status endpoint.
type Dependencies struct {
	Database      HealthChecker
	Redis         HealthChecker
	HomeAssistant AvailabilityChecker
	Trainer       HealthChecker

	Training   handlers.TrainingService
	Prediction handlers.Predictor
	Models     handlers.ModelManager
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Services  Services  `json:"services"`
}

type Services struct {
	Database      string `json:"database"`
	Redis         string `json:"redis"`
	HomeAssistant string `json:"homeassistant"`
	Trainer       string `json:"trainer"`
}

// StatusResponse extends the health payload with a model inventory summary.
type StatusResponse struct {
	HealthResponse
	Models ModelSummary `json:"models"`
}

type ModelSummary struct {
	Total  int    `json:"total"`
	Latest string `json:"latest,omitempty"`
}

func SetupRoutes(router *gin.Engine, deps Dependencies) {
	// Health check endpoint
	router.GET("/health", healthCheck(deps))

	trainingHandler := handlers.NewTrainingHandler(deps.Training)
	predictionHandler := handlers.NewPredictionHandler(deps.Prediction)
	modelHandler := handlers.NewModelHandler(deps.Models)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/status", statusCheck(deps))

		// Training routes
		train := v1.Group("/train")
		{
			train.POST("", trainingHandler.TrainRows)
			train.POST("/device", trainingHandler.TrainDevice)
			train.POST("/sample", trainingHandler.TrainSample)
		}

		// Prediction route
		v1.POST("/predict", predictionHandler.Predict)

		// Model management routes
		modelRoutes := v1.Group("/models")
		{
			modelRoutes.GET("", modelHandler.List)
			modelRoutes.GET("/device/:device_id", modelHandler.ListForDevice)
			modelRoutes.GET("/:model_id", modelHandler.Get)
			modelRoutes.DELETE("/:model_id", modelHandler.Delete)
		}
	}
}

func healthCheck(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		response, status := healthSnapshot(c.Request.Context(), deps)
		c.JSON(status, response)
	}
}

func statusCheck(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		health, status := healthSnapshot(ctx, deps)
		response := StatusResponse{HealthResponse: health}

		if deps.Models != nil {
			// Listing failures leave the summary empty rather than failing the probe.
			if records, err := deps.Models.List(ctx); err == nil {
				response.Models.Total = len(records)
				if len(records) > 0 {
					response.Models.Latest = records[0].ModelID
				}
			}
		}

		c.JSON(status, response)
	}
}

func healthSnapshot(ctx context.Context, deps Dependencies) (HealthResponse, int) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   "1.0.0",
		Services: Services{
			Database:      checkService(ctx, deps.Database),
			Redis:         checkService(ctx, deps.Redis),
			HomeAssistant: checkAvailability(ctx, deps.HomeAssistant),
			Trainer:       checkService(ctx, deps.Trainer),
		},
	}

	status := http.StatusOK
	if response.Services.Database == "error" ||
		response.Services.HomeAssistant == "error" ||
		response.Services.Trainer == "error" {
		response.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	return response, status
}

func checkService(ctx context.Context, checker HealthChecker) string {
	if checker == nil {
		return "disabled"
	}
	if err := checker.HealthCheck(ctx); err != nil {
		return "error"
	}
	return "ok"
}

func checkAvailability(ctx context.Context, checker AvailabilityChecker) string {
	if checker == nil {
		return "disabled"
	}
	if err := checker.CheckAvailability(ctx); err != nil {
		return "error"
	}
	return "ok"
}
