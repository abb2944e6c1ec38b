package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jopa/salestracker/internal/domain/models"
	"github.com/jopa/salestracker/pkg/clients/whatsapp"
)

// NotificationHandler sends ad-hoc WhatsApp messages, e.g. stock alerts.
type NotificationHandler struct {
	client whatsapp.Client
	logger *zap.Logger
}

// NewNotificationHandler constructs the notification HTTP adapter.
func NewNotificationHandler(client whatsapp.Client, logger *zap.Logger) *NotificationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationHandler{client: client, logger: logger}
}

// SendMessage sends an outbound WhatsApp text.
func (h *NotificationHandler) SendMessage(c *gin.Context) {
	var req models.OutboundMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid outbound payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	id, err := h.client.SendText(c.Request.Context(), req)
	if errors.Is(err, whatsapp.ErrNotConfigured) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "whatsapp is not configured"})
		return
	}
	if err != nil {
		h.logger.Error("failed sending outbound", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "unable to send message"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message_id": id})
}
