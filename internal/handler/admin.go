package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"omnitip-relay/internal/auth"
	"omnitip-relay/internal/blockchain"
)

type goalTrigger interface {
	TriggerGoal(ctx context.Context, side string) (*blockchain.TxRef, error)
}

type AdminHandler struct {
	auth       *auth.AdminAuth
	settlement goalTrigger
}

func NewAdminHandler(adminAuth *auth.AdminAuth, settlement goalTrigger) *AdminHandler {
	return &AdminHandler{
		auth:       adminAuth,
		settlement: settlement,
	}
}

type loginRequest struct {
	Password string `json:"password"`
}

func (h *AdminHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	token, expiresAt, err := h.auth.Login(req.Password)
	if err != nil {
		writeError(c, statusFor(err), "invalid credentials")
		return
	}

	writeJSON(c, http.StatusOK, gin.H{
		"token":     token,
		"expiresAt": expiresAt.Format(time.RFC3339),
	})
}

// goalRequest team 与 password 为旧版管理面板使用的字段名
type goalRequest struct {
	Side      string `json:"side"`
	Team      string `json:"team"`
	AuthToken string `json:"authToken"`
	Password  string `json:"password"`
}

// ScoreGoal 鉴权先于参数校验，令牌无效时无论 side 为何都返回 401
func (h *AdminHandler) ScoreGoal(c *gin.Context) {
	var req goalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	token := firstNonEmpty(req.AuthToken, req.Password, bearerToken(c))
	if err := h.auth.Authorize(token); err != nil {
		writeError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	side := firstNonEmpty(req.Side, req.Team)
	ref, err := h.settlement.TriggerGoal(c.Request.Context(), side)
	if err != nil {
		writeError(c, statusFor(err), err.Error())
		return
	}

	writeJSON(c, http.StatusOK, gin.H{
		"success":     true,
		"side":        side,
		"txHash":      ref.Hash,
		"blockNumber": ref.BlockNumber,
	})
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
