package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ticketdesk-go/internal/model"
)

// GetTickets returns tickets newest-first, optionally filtered by ?status=.
func (h *Handlers) GetTickets(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	status := model.TicketStatus(c.Query("status"))

	tickets, err := h.repo.ListTickets(c.Request.Context(), status, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch tickets",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	c.JSON(http.StatusOK, tickets)
}

// GetTicket returns one ticket and its messages
func (h *Handlers) GetTicket(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid_id", Message: "Invalid ticket ID", Code: http.StatusBadRequest})
		return
	}

	ticket, messages, err := h.repo.TicketWithMessages(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "database_error", Message: "Failed to fetch ticket", Code: http.StatusInternalServerError})
		return
	}
	if ticket == nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{Error: "not_found", Message: "Ticket not found", Code: http.StatusNotFound})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ticket":   ticket,
		"messages": messages,
	})
}
