package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/scenekit/builder-backend/pkg/logger"
)

// APIResponse standard API response structure
type APIResponse struct {
	OK    bool   `json:"ok"`
	Data  any    `json:"data"`
	Error string `json:"error,omitempty"`
}

// dataCarrier is implemented by domain errors that expose the offending ids
type dataCarrier interface {
	Data() map[string]any
}

// SuccessResponse returns a successful JSON response
func SuccessResponse(c *gin.Context, data any) {
	c.JSON(http.StatusOK, APIResponse{OK: true, Data: data})
}

// ErrorResponse returns an error JSON response
func ErrorResponse(c *gin.Context, status int, message string, data any) {
	c.AbortWithStatusJSON(status, APIResponse{OK: false, Error: message, Data: data})
}

// StatusOf maps an error to an HTTP status. Unpublished entities are a 401 on
// read paths and a 409 on write paths.
func StatusOf(err error, write bool) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnpublished):
		if write {
			return http.StatusConflict
		}
		return http.StatusUnauthorized
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidToken), errors.Is(err, ErrExpiredToken):
		return http.StatusUnauthorized
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrOngoingReview), errors.Is(err, ErrNotPending), errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// HandleError writes err using the status from StatusOf
func HandleError(c *gin.Context, err error) {
	write := c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead
	status := StatusOf(err, write)

	var data any
	var dc dataCarrier
	if errors.As(err, &dc) {
		data = dc.Data()
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.GetLogger().Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("unhandled error")
		message = "internal server error"
	}
	ErrorResponse(c, status, message, data)
}
