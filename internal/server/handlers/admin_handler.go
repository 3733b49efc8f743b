package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"channel-integration-engine/internal/models"
	"channel-integration-engine/internal/ratestate"
	"channel-integration-engine/internal/utils"
)

// AdminHandler exposes read/resolve endpoints for quarantined events, sync
// audits, and per-property rate-limit state. No authentication is applied
// here; the surrounding deployment is expected to gate access to this
// router group.
type AdminHandler struct {
	db         *gorm.DB
	rateStates *ratestate.Store
}

func NewAdminHandler(db *gorm.DB, rateStates *ratestate.Store) *AdminHandler {
	return &AdminHandler{db: db, rateStates: rateStates}
}

// ListUnmatchedEvents handles GET /admin/unmatched-events.
func (h *AdminHandler) ListUnmatchedEvents(c *gin.Context) {
	page := utils.GetIntQuery(c, "page", 1)
	limit := utils.GetIntQuery(c, "limit", 20)
	page, limit = utils.ValidatePagination(page, limit)

	query := h.db.Model(&models.UnmatchedWebhookEvent{})
	if status := utils.GetStringQuery(c, "status", ""); status != "" {
		query = query.Where("status = ?", status)
	}
	if reason := utils.GetStringQuery(c, "reason", ""); reason != "" {
		query = query.Where("reason = ?", reason)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("failed to count unmatched events", err.Error()))
		return
	}

	var rows []models.UnmatchedWebhookEvent
	if err := query.Order("created_at DESC").Offset(utils.CalculateOffset(page, limit)).Limit(limit).Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("failed to list unmatched events", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.PaginatedSuccessResponse("unmatched events", rows, utils.CreatePaginationMeta(page, limit, total)))
}

// ResolveUnmatchedEventRequest is the body of POST /admin/unmatched-events/:id/resolve.
type ResolveUnmatchedEventRequest struct {
	ResolvedBookingID *string `json:"resolved_booking_id"`
	Ignore            bool    `json:"ignore"`
}

// ResolveUnmatchedEvent handles POST /admin/unmatched-events/:id/resolve.
func (h *AdminHandler) ResolveUnmatchedEvent(c *gin.Context) {
	id := c.Param("id")

	var req ResolveUnmatchedEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	var event models.UnmatchedWebhookEvent
	if err := h.db.Where("id = ?", id).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, utils.ErrorResponse("unmatched event not found", nil))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("failed to load unmatched event", err.Error()))
		return
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{"resolved_at": now}
	if req.Ignore {
		updates["status"] = models.UnmatchedStatusIgnored
	} else {
		updates["status"] = models.UnmatchedStatusResolved
		if req.ResolvedBookingID != nil {
			updates["resolved_booking_id"] = *req.ResolvedBookingID
		}
	}

	if err := h.db.Model(&event).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("failed to resolve unmatched event", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("unmatched event resolved", nil))
}

// ListAudits handles GET /admin/audits, a recent-first tail of sync attempts.
func (h *AdminHandler) ListAudits(c *gin.Context) {
	page := utils.GetIntQuery(c, "page", 1)
	limit := utils.GetIntQuery(c, "limit", 50)
	page, limit = utils.ValidatePagination(page, limit)

	query := h.db.Model(&models.IntegrationAudit{})
	if connectionID := utils.GetStringQuery(c, "connection_id", ""); connectionID != "" {
		query = query.Where("connection_id = ?", connectionID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("failed to count audits", err.Error()))
		return
	}

	var rows []models.IntegrationAudit
	if err := query.Order("created_at DESC").Offset(utils.CalculateOffset(page, limit)).Limit(limit).Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("failed to list audits", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.PaginatedSuccessResponse("integration audits", rows, utils.CreatePaginationMeta(page, limit, total)))
}

// RateState handles GET /admin/rate-state/:property_id.
func (h *AdminHandler) RateState(c *gin.Context) {
	propertyID := c.Param("property_id")
	snapshot, err := h.rateStates.Snapshot(propertyID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("failed to load rate state", err.Error()))
		return
	}
	c.JSON(http.StatusOK, utils.SuccessResponse("rate state", snapshot))
}
