package handler

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"omnitip-relay/pkg/logger"
)

type Handlers struct {
	Health    *HealthHandler
	Webhook   *WebhookHandler
	Dashboard *DashboardHandler
	Admin     *AdminHandler
	Hub       *TipHub
}

func NewRouter(h Handlers, corsEnabled bool) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	if corsEnabled {
		cfg := cors.DefaultConfig()
		cfg.AllowAllOrigins = true
		cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
		router.Use(cors.New(cfg))
	}

	router.GET("/", func(c *gin.Context) {
		c.String(200, "OmniTip Webhook Server")
	})
	router.GET("/health", h.Health.HandleHealth)

	router.GET("/webhook", h.Webhook.Verify)
	router.POST("/webhook", h.Webhook.Receive)

	api := router.Group("/api")
	{
		api.GET("/tips", h.Dashboard.GetTips)
		api.GET("/scores", h.Dashboard.GetScores)
		api.GET("/sentiment", h.Dashboard.GetSentiment)
		api.GET("/sentiment/trend", h.Dashboard.GetTrend)
		api.GET("/ledger/events", h.Dashboard.GetLedgerEvents)

		api.POST("/admin/login", h.Admin.Login)
		api.POST("/admin/goal", h.Admin.ScoreGoal)
	}

	router.GET("/ws/tips", h.Hub.Serve)

	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
		if c.Writer.Status() >= 500 {
			entry.Warn("请求失败")
			return
		}
		entry.Debug("请求已处理")
	}
}
