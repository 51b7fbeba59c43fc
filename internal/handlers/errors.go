package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chat-core/internal/apperr"
	"chat-core/internal/models"
)

const internalErrorMessage = "internal server error"

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrResourceExhausted):
		return http.StatusTooManyRequests
	case errors.Is(err, apperr.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as JSON. Unclassified errors are logged and hidden
// from the client.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("request failed method=%s path=%s request_id=%s: %v", c.Request.Method, c.FullPath(), requestIDFromContext(c), err)
		c.JSON(status, gin.H{"error": internalErrorMessage})
		return
	}
	c.JSON(status, gin.H{"error": apperr.Message(err, internalErrorMessage)})
}

// pathID parses a positive integer path parameter. It writes a 400 and
// returns false on failure.
func pathID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// pageFromQuery reads ?page= (0-based) and ?size=; bad values fall back to
// the defaults.
func pageFromQuery(c *gin.Context) models.Page {
	number, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("size"))
	return models.NewPage(number, size)
}

// apperrText is the audit text for a failed request.
func apperrText(err error) string {
	if statusFor(err) == http.StatusInternalServerError {
		return "internal error"
	}
	return apperr.Message(err, "internal error")
}
