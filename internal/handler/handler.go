package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"omnitip-relay/pkg/errors"
)

func writeJSON(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

func writeError(c *gin.Context, statusCode int, message string) {
	writeJSON(c, statusCode, gin.H{"error": message})
}

// statusFor 将错误码映射为 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.HasCode(err, errors.ErrInvalidSide), errors.HasCode(err, errors.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.HasCode(err, errors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.HasCode(err, errors.ErrLedgerUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// parseLimit 缺省时返回 fallback，非法或负数返回 false
func parseLimit(c *gin.Context, fallback int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return fallback, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, false
	}
	return limit, true
}

type HealthHandler struct {
	ledgerConfigured bool
	sides            [2]string
}

func NewHealthHandler(ledgerConfigured bool, sides [2]string) *HealthHandler {
	return &HealthHandler{ledgerConfigured: ledgerConfigured, sides: sides}
}

func (h *HealthHandler) HandleHealth(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{
		"status":           "ok",
		"ledgerConfigured": h.ledgerConfigured,
		"sides":            h.sides,
		"time":             time.Now().Format(time.RFC3339),
	})
}
