package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"ticketdesk-go/internal/model"
)

// GetBlockedSenders returns all blocklist entries
func (h *Handlers) GetBlockedSenders(c *gin.Context) {
	blocked, err := h.repo.ListBlockedSenders(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch blocked senders",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	c.JSON(http.StatusOK, blocked)
}

// CreateBlockedSender adds an address to the blocklist
func (h *Handlers) CreateBlockedSender(c *gin.Context) {
	var req model.BlockedSenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid request body",
			Code:    http.StatusBadRequest,
		})
		return
	}

	sender := model.BlockedSender{
		Email:  strings.ToLower(strings.TrimSpace(req.Email)),
		Reason: req.Reason,
	}
	if err := h.repo.AddBlockedSender(c.Request.Context(), &sender); err != nil {
		c.JSON(http.StatusConflict, model.ErrorResponse{
			Error:   "conflict",
			Message: err.Error(),
			Code:    http.StatusConflict,
		})
		return
	}
	c.JSON(http.StatusCreated, sender)
}

// DeleteBlockedSender removes a blocklist entry by ID
func (h *Handlers) DeleteBlockedSender(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid_id", Message: "Invalid blocked sender ID", Code: http.StatusBadRequest})
		return
	}

	if err := h.repo.RemoveBlockedSender(c.Request.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, model.ErrorResponse{Error: "not_found", Message: "Blocked sender not found", Code: http.StatusNotFound})
			return
		}
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "database_error", Message: "Failed to delete blocked sender", Code: http.StatusInternalServerError})
		return
	}
	c.Status(http.StatusNoContent)
}
