package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ticketdesk-go/internal/model"
)

// GetIngestRecords returns recent ingest ledger entries, optionally
// filtered by ?status= and limited by ?limit=.
func (h *Handlers) GetIngestRecords(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	status := model.IngestStatus(c.Query("status"))

	records, err := h.repo.ListIngestRecords(c.Request.Context(), status, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch ingest records",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	c.JSON(http.StatusOK, records)
}

// GetIngestRecord returns a single ledger entry by ID
func (h *Handlers) GetIngestRecord(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid_id", Message: "Invalid ingest record ID", Code: http.StatusBadRequest})
		return
	}

	record, err := h.repo.IngestRecordByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "database_error", Message: "Failed to fetch ingest record", Code: http.StatusInternalServerError})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{Error: "not_found", Message: "Ingest record not found", Code: http.StatusNotFound})
		return
	}
	c.JSON(http.StatusOK, record)
}
