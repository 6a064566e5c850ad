package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ihplabs/heatcast-go/internal/utils"
)

// ErrorResponse is the error payload shape for every endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError maps pipeline error types onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var (
		validation   *utils.ValidationError
		insufficient *utils.InsufficientDataError
		mismatch     *utils.ContractMismatchError
		credential   *utils.CredentialError
	)

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.As(err, &insufficient):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
	case errors.As(err, &mismatch):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.As(err, &credential):
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}
