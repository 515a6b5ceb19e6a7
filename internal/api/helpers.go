package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/darkwatch/internal/model"
)

// parseLimit parses the limit query parameter, falling back to
// defaultLimit for missing or non-positive values.
func parseLimit(c *gin.Context, defaultLimit int) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit <= 0 {
		return defaultLimit
	}
	return limit
}

// respondError sends a JSON error response.
func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// respondBadRequest sends a 400 with message.
func respondBadRequest(c *gin.Context, message string) {
	respondError(c, http.StatusBadRequest, message)
}

// respondErr maps err to its status code, records it on the context for
// the request logger and sends it.
func respondErr(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err) //nolint:errcheck // returns err unchanged
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	respondError(c, status, message)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrCapacity):
		return http.StatusConflict
	case errors.Is(err, model.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
