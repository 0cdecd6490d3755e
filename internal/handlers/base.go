package handlers

import (
	"errors"
	"net/http"

	"evforum/internal/services"

	"github.com/gin-gonic/gin"
)

// RenderError maps the service error taxonomy onto HTTP statuses. Validation
// failures carry the offending field so the client can highlight it.
func RenderError(c *gin.Context, err error) {
	var v *services.ValidationError
	switch {
	case errors.As(err, &v):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": v.Reason, "field": v.Field})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrThreadLocked):
		c.JSON(http.StatusForbidden, gin.H{"error": "thread is locked"})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporary storage failure, retry shortly"})
	}
}
