package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"omnitip-relay/internal/models"
	"omnitip-relay/internal/repository"
	"omnitip-relay/internal/service"
)

type DashboardHandler struct {
	dashboard *service.DashboardService
}

func NewDashboardHandler(dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

func (h *DashboardHandler) GetTips(c *gin.Context) {
	limit, ok := parseLimit(c, repository.DefaultRecentLimit)
	if !ok {
		writeError(c, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}

	tips, err := h.dashboard.RecentTips(c.Request.Context(), limit)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "failed to load tips: "+err.Error())
		return
	}
	if tips == nil {
		tips = []models.Tip{}
	}

	writeJSON(c, http.StatusOK, gin.H{"tips": tips})
}

// GetScores 账本不可用时返回零分，不返回错误
func (h *DashboardHandler) GetScores(c *gin.Context) {
	writeJSON(c, http.StatusOK, h.dashboard.Scores(c.Request.Context()))
}

func (h *DashboardHandler) GetSentiment(c *gin.Context) {
	writeJSON(c, http.StatusOK, h.dashboard.Sentiment(c.Request.Context()))
}

func (h *DashboardHandler) GetTrend(c *gin.Context) {
	limit, ok := parseLimit(c, service.DefaultTrendLimit)
	if !ok {
		writeError(c, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}

	points, err := h.dashboard.Trend(c.Request.Context(), limit)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "failed to load trend: "+err.Error())
		return
	}

	writeJSON(c, http.StatusOK, gin.H{"points": points})
}

func (h *DashboardHandler) GetLedgerEvents(c *gin.Context) {
	limit, ok := parseLimit(c, 20)
	if !ok {
		writeError(c, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}

	kind := models.LedgerEventKind(c.Query("kind"))
	switch kind {
	case "", models.LedgerEventTip, models.LedgerEventGoal:
	default:
		writeError(c, http.StatusBadRequest, "kind must be tip or goal")
		return
	}

	events, err := h.dashboard.LedgerEvents(c.Request.Context(), kind, limit)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "failed to load events: "+err.Error())
		return
	}
	if events == nil {
		events = []models.LedgerEvent{}
	}

	writeJSON(c, http.StatusOK, gin.H{"events": events})
}
