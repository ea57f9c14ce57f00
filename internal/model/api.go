package model

import (
	"time"
)

// BlockedSenderRequest is the request body for adding a blocked sender.
type BlockedSenderRequest struct {
	Email  string `json:"email" binding:"required,email"`
	Reason string `json:"reason"`
}

// InstagramReplyRequest is the request body for an operator direct-message
// reply on an Instagram ticket.
type InstagramReplyRequest struct {
	Message string `json:"message" binding:"required"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Database  string            `json:"database"`
	Details   map[string]string `json:"details,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
