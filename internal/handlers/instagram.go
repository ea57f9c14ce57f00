package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ticketdesk-go/internal/instagram"
	"ticketdesk-go/internal/model"
	"ticketdesk-go/internal/pipeline"
)

// VerifyInstagramWebhook answers the Meta subscription handshake.
func (h *Handlers) VerifyInstagramWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if !h.igConfig.Enabled || h.igConfig.WebhookToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "instagram integration not configured"})
		return
	}

	if instagram.VerifyWebhookToken(mode, token, h.igConfig.WebhookToken) {
		logrus.Info("Instagram webhook verified successfully")
		c.String(http.StatusOK, challenge)
		return
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "verification failed"})
}

// HandleInstagramWebhook ingests direct-message events. Each message runs
// through the shared pipeline, so dedup and assignment behave the same as
// for email. The endpoint always answers 200 so Meta does not retry events
// that failed ingestion; failures land in the ingest ledger.
func (h *Handlers) HandleInstagramWebhook(c *gin.Context) {
	if !h.igConfig.Enabled {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "instagram integration disabled"})
		return
	}

	var payload instagram.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	for _, entry := range payload.Entry {
		for _, event := range entry.Messaging {
			if event.Message == nil || event.Message.Echo {
				continue
			}

			msg := pipeline.ChannelMessage{
				Channel:           model.ChannelInstagram,
				ProviderMessageID: event.Message.MID,
				SenderID:          event.Sender.ID,
				SenderName:        h.lookupSenderName(c, event.Sender.ID),
				Text:              event.Message.Text,
				ReceivedAt:        time.UnixMilli(event.Timestamp),
			}
			if err := h.pipeline.ProcessChannelMessage(c.Request.Context(), msg); err != nil {
				logrus.Errorf("Failed to ingest Instagram message %s: %v", event.Message.MID, err)
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// SendInstagramReply sends an operator direct-message reply on an Instagram
// ticket and records it as an outbound turn of the conversation.
func (h *Handlers) SendInstagramReply(c *gin.Context) {
	if h.igClient == nil || !h.igConfig.Enabled {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "instagram_disabled", Message: "Instagram integration is not configured", Code: http.StatusBadRequest})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid_id", Message: "Invalid ticket ID", Code: http.StatusBadRequest})
		return
	}

	var req model.InstagramReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid_request", Message: err.Error(), Code: http.StatusBadRequest})
		return
	}

	ticket, err := h.repo.TicketByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "database_error", Message: "Failed to fetch ticket", Code: http.StatusInternalServerError})
		return
	}
	if ticket == nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{Error: "not_found", Message: "Ticket not found", Code: http.StatusNotFound})
		return
	}
	if ticket.Channel != model.ChannelInstagram || ticket.ChannelIdentifier == nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "wrong_channel", Message: "Ticket is not an Instagram conversation", Code: http.StatusBadRequest})
		return
	}

	messageID, err := h.igClient.SendMessage(c.Request.Context(), *ticket.ChannelIdentifier, req.Message)
	if err != nil {
		logrus.Errorf("Failed to send Instagram reply for ticket %d: %v", ticket.ID, err)
		c.JSON(http.StatusBadGateway, model.ErrorResponse{Error: "send_failed", Message: "Failed to send Instagram message", Code: http.StatusBadGateway})
		return
	}

	reply := &model.TicketMessage{
		TicketID:  ticket.ID,
		Direction: model.DirectionOutbound,
		FromEmail: fmt.Sprintf("instagram_%s@instagram.local", h.igConfig.BusinessAccountID),
		ToEmail:   ticket.CustomerEmail,
		Subject:   ticket.Subject,
		Body:      req.Message,
		SentAt:    time.Now(),
	}
	if messageID != "" {
		reply.ProviderMsgID = &messageID
	}
	if err := h.repo.CreateMessage(c.Request.Context(), reply); err != nil {
		logrus.Errorf("Failed to record Instagram reply for ticket %d: %v", ticket.ID, err)
	}
	if err := h.repo.UpdateTicket(c.Request.Context(), ticket); err != nil {
		logrus.Errorf("Failed to touch ticket %d after Instagram reply: %v", ticket.ID, err)
	}

	c.JSON(http.StatusOK, gin.H{"status": "sent", "provider_msg_id": messageID})
}

// SyncInstagramMessages backfills recent direct-message conversations from
// the Graph API. Webhook delivery can drop events; a sync walks the
// conversation list and replays every customer message through the
// pipeline, where the ingest ledger discards the ones already seen.
func (h *Handlers) SyncInstagramMessages(c *gin.Context) {
	if h.igClient == nil || !h.igConfig.Enabled {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "instagram_disabled", Message: "Instagram integration is not configured", Code: http.StatusBadRequest})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "25"))
	conversations, err := h.igClient.GetConversations(c.Request.Context(), limit)
	if err != nil {
		logrus.Errorf("Failed to list Instagram conversations: %v", err)
		c.JSON(http.StatusBadGateway, model.ErrorResponse{Error: "graph_api_error", Message: "Failed to list conversations", Code: http.StatusBadGateway})
		return
	}

	synced := 0
	failed := 0
	for _, conv := range conversations {
		messages, err := h.igClient.GetMessages(c.Request.Context(), conv.ID)
		if err != nil {
			logrus.Errorf("Failed to fetch Instagram conversation %s: %v", conv.ID, err)
			failed++
			continue
		}
		for _, msg := range messages {
			if msg.From.ID == h.igConfig.BusinessAccountID {
				continue
			}
			receivedAt, err := time.Parse(time.RFC3339, msg.CreatedTime)
			if err != nil {
				receivedAt = time.Now()
			}
			cm := pipeline.ChannelMessage{
				Channel:           model.ChannelInstagram,
				ProviderMessageID: msg.ID,
				SenderID:          msg.From.ID,
				SenderName:        msg.From.Username,
				Text:              msg.Message,
				ReceivedAt:        receivedAt,
			}
			if err := h.pipeline.ProcessChannelMessage(c.Request.Context(), cm); err != nil {
				logrus.Errorf("Failed to ingest Instagram message %s: %v", msg.ID, err)
				failed++
				continue
			}
			synced++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"conversations": len(conversations),
		"synced":        synced,
		"failed":        failed,
	})
}

// lookupSenderName asks the Graph API for the sender's username. A lookup
// failure falls back to an id-derived placeholder.
func (h *Handlers) lookupSenderName(c *gin.Context, senderID string) string {
	if h.igClient == nil {
		return ""
	}
	info, err := h.igClient.GetUserInfo(c.Request.Context(), senderID)
	if err != nil || info == nil || info.Username == "" {
		if err != nil {
			logrus.Warnf("Failed to look up Instagram user %s: %v", senderID, err)
		}
		return fmt.Sprintf("instagram user %s", senderID)
	}
	return info.Username
}
