// Package router provides portfolio service routing.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/smaxiso/portfolio-rag/internal/portfolio/handler"
)

// Admin actions checked by the authorizer.
const (
	AdminResource = "ingestion"
	ActionTrigger = "trigger"
	ActionRead    = "read"
)

// Routes holds everything Register mounts.
type Routes struct {
	Chat   *handler.ChatHandler
	Ingest *handler.IngestHandler
	// Metrics is served on GET /metrics when set.
	Metrics http.Handler
	// RateLimit guards the chat endpoint when set.
	RateLimit gin.HandlerFunc
	// AdminAuth returns the guard for an admin action. Nil disables admin
	// authentication.
	AdminAuth func(action string) gin.HandlerFunc
}

// Register registers the portfolio routes on engine.
func Register(engine *gin.Engine, routes Routes) {
	logger.Info("Registering portfolio routes...")

	engine.GET("/healthz", handler.Healthz)
	engine.GET("/version", handler.Version)
	if routes.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(routes.Metrics))
	}

	v1 := engine.Group("/v1")
	{
		chat := []gin.HandlerFunc{}
		if routes.RateLimit != nil {
			chat = append(chat, routes.RateLimit)
		}
		v1.POST("/chat", append(chat, routes.Chat.Chat)...)

		admin := v1.Group("/admin")
		admin.POST("/ingest", guarded(routes.AdminAuth, ActionTrigger, routes.Ingest.Trigger)...)
		admin.GET("/ingest/status", guarded(routes.AdminAuth, ActionRead, routes.Ingest.Status)...)
	}

	if routes.AdminAuth == nil {
		logger.Warn("admin authentication is disabled, ingestion endpoints are open")
	}
	logger.Info("HTTP routes registered")
}

func guarded(auth func(string) gin.HandlerFunc, action string, h gin.HandlerFunc) []gin.HandlerFunc {
	if auth == nil {
		return []gin.HandlerFunc{h}
	}
	return []gin.HandlerFunc{auth(action), h}
}
