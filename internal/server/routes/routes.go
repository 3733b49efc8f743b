// Package routes wires the HTTP surface: inbound webhook delivery, the
// integration health report, and the admin read/resolve endpoints for
// quarantined events, sync audits, and rate-limit state.
package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"channel-integration-engine/internal/config"
	"channel-integration-engine/internal/health"
	"channel-integration-engine/internal/ratestate"
	"channel-integration-engine/internal/server/handlers"
)

// Setup registers every route group on router.
func Setup(router *gin.Engine, db *gorm.DB, cfg *config.Config, rateStates *ratestate.Store, reporter *health.Reporter) {
	webhookHandler := handlers.NewWebhookHandler(db, cfg.ChannelWebhookSecret, cfg.WebhookMaxBodyBytes)
	healthHandler := handlers.NewHealthHandler(reporter)
	adminHandler := handlers.NewAdminHandler(db, rateStates)

	webhooks := router.Group("/webhooks/channex")
	{
		webhooks.POST("/bookings", webhookHandler.ReceiveBookings)
		webhooks.POST("/health", webhookHandler.ReceiveHealth)
	}

	router.GET("/health/integration", healthHandler.Report)

	admin := router.Group("/admin")
	{
		admin.GET("/unmatched-events", adminHandler.ListUnmatchedEvents)
		admin.POST("/unmatched-events/:id/resolve", adminHandler.ResolveUnmatchedEvent)
		admin.GET("/audits", adminHandler.ListAudits)
		admin.GET("/rate-state/:property_id", adminHandler.RateState)
	}
}
