package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"channel-integration-engine/internal/utils"
	"channel-integration-engine/internal/webhook"
)

// WebhookHandler receives inbound Channel deliveries (C7).
type WebhookHandler struct {
	db           *gorm.DB
	secret       string
	maxBodyBytes int64
}

func NewWebhookHandler(db *gorm.DB, webhookSecret string, maxBodyBytes int64) *WebhookHandler {
	return &WebhookHandler{db: db, secret: webhookSecret, maxBodyBytes: maxBodyBytes}
}

// ReceiveBookings handles POST /webhooks/channex/bookings.
func (h *WebhookHandler) ReceiveBookings(c *gin.Context) {
	h.receive(c, "bookings")
}

// ReceiveHealth handles POST /webhooks/channex/health, the provider's own
// connectivity probe.
func (h *WebhookHandler) ReceiveHealth(c *gin.Context) {
	h.receive(c, "health")
}

func (h *WebhookHandler) receive(c *gin.Context, endpointType string) {
	if !webhook.VerifySecretHeader(c.GetHeader("X-Mnam-Webhook-Token"), h.secret) {
		c.JSON(http.StatusUnauthorized, utils.ErrorResponse("invalid webhook secret", nil))
		return
	}

	limit := h.maxBodyBytes
	if limit <= 0 {
		limit = 1 << 20
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, limit+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("failed to read request body", err.Error()))
		return
	}

	headers := make(map[string]string, len(c.Request.Header))
	for k := range c.Request.Header {
		headers[k] = c.Request.Header.Get(k)
	}

	result, err := webhook.Receive(h.db, "channex", endpointType, body, headers, int(limit))
	if err != nil {
		if err == webhook.ErrBodyTooLarge {
			c.JSON(http.StatusRequestEntityTooLarge, utils.ErrorResponse("webhook body too large", nil))
			return
		}
		slog.Error("webhook receive failed", "error", err)
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("failed to process webhook", err.Error()))
		return
	}

	if result.AlreadyProcessed {
		c.JSON(http.StatusOK, utils.SuccessResponse("already received", gin.H{"event_id": result.Log.ID, "duplicate": true}))
		return
	}
	c.JSON(http.StatusAccepted, utils.SuccessResponse("accepted", gin.H{"event_id": result.Log.ID}))
}
